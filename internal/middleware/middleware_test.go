package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go-pos-engine/internal/access"
	"go-pos-engine/internal/logging"
	"go-pos-engine/internal/metrics"
	"go-pos-engine/internal/middleware"
	"go-pos-engine/pkg/jwt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newApp(signer *jwt.Signer) *fiber.App {
	app := fiber.New()
	app.Get("/void",
		middleware.RequireAuth(signer),
		middleware.RequireCapability(access.DefaultPolicy(), access.ActionVoid),
		func(c *fiber.Ctx) error {
			p, _ := middleware.PrincipalFrom(c)
			return c.SendString(p.Name)
		},
	)
	return app
}

func TestRequireAuthAndCapability(t *testing.T) {
	signer := jwt.NewSigner("test-secret", "test")
	app := newApp(signer)

	manager, err := signer.GenerateToken(uuid.New(), uuid.New(), "Otieno", access.RoleManager, time.Hour)
	require.NoError(t, err)
	cashier, err := signer.GenerateToken(uuid.New(), uuid.New(), "Wanjiru", access.RoleCashier, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing token", header: "", want: http.StatusUnauthorized},
		{name: "bad scheme", header: "Token " + manager, want: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "cashier cannot void", header: "Bearer " + cashier, want: http.StatusForbidden},
		{name: "manager may void", header: "Bearer " + manager, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/void", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestObservability(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	app := fiber.New()
	app.Use(middleware.Observability(zap.NewNop(), m))

	var sawLogger bool
	app.Get("/things/:id", func(c *fiber.Ctx) error {
		sawLogger = logging.FromContext(c.UserContext()) != zap.L()
		return c.SendStatus(fiber.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/things/42", nil)
	req.Header.Set("X-Request-ID", "rid-1")
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, "rid-1", resp.Header.Get("X-Request-ID"))
	assert.True(t, sawLogger)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/things/:id", "204")))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/things/7", nil))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}
