package service

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	salePrefix   = "TXN"
	voidPrefix   = "VOID"
	refundPrefix = "RFND"

	// Attempts at inserting a transaction before a code collision is reported.
	maxCodeAttempts = 3
)

// newCode builds prefix + yyyymmdd + 12 random hex digits. The random part
// comes from a v4 UUID, so codes double as unguessable gateway references.
func newCode(prefix string, now time.Time) string {
	random := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return prefix + now.UTC().Format("20060102") + random[:12]
}
