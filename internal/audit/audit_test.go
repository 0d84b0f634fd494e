package audit_test

import (
	"context"
	"errors"
	"testing"

	"go-pos-engine/internal/audit"
	"go-pos-engine/internal/model"
	"go-pos-engine/internal/storetest"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestEmitter_SinkFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	sink := &audit.MemorySink{Err: errors.New("sink down")}
	em := audit.NewEmitter(sink, zap.New(core))

	em.Emit(context.Background(), audit.Event{Action: audit.ActionCreate, EntityType: audit.EntityTransaction, EntityID: uuid.New()})
	em.Close()

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "failed to record audit event", logs.All()[0].Message)
	assert.Empty(t, sink.Events())
}

func TestEmitter_SurvivesCancelledContext(t *testing.T) {
	sink := &audit.MemorySink{}
	em := audit.NewEmitter(sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	em.Emit(ctx, audit.Event{Action: audit.ActionVoid})
	em.Close()

	assert.Equal(t, []string{audit.ActionVoid}, sink.Actions())
}

func TestEmitter_EmitAfterCloseRecordsSynchronously(t *testing.T) {
	sink := &audit.MemorySink{}
	em := audit.NewEmitter(sink, nil)

	em.Emit(context.Background(), audit.Event{Action: audit.ActionCreate})
	em.Close()
	em.Emit(context.Background(), audit.Event{Action: audit.ActionFail})

	assert.Equal(t, []string{audit.ActionCreate, audit.ActionFail}, sink.Actions())
	em.Close()
}

func TestGormSink_Record(t *testing.T) {
	db := storetest.New(t)
	sink := audit.NewGormSink(db)
	entity := uuid.New()

	err := sink.Record(context.Background(), audit.Event{
		ActorUserID: "user-1",
		TenantID:    uuid.New(),
		Action:      audit.ActionRefund,
		EntityType:  audit.EntityTransaction,
		EntityID:    entity,
		OldValues:   map[string]string{"status": "completed"},
		NewValues:   map[string]string{"status": "refunded"},
		Reason:      "damaged",
	})
	require.NoError(t, err)

	var row model.AuditLog
	require.NoError(t, db.First(&row).Error)
	require.NotNil(t, row.EntityID)
	assert.Equal(t, entity, *row.EntityID)
	require.NotNil(t, row.Reason)
	assert.Equal(t, "damaged", *row.Reason)
	assert.JSONEq(t, `{"status":"refunded"}`, string(row.NewValues))
}
