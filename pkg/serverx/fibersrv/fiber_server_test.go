package fibersrv_test

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/marcodd23/go-micro-dbcmd/pkg/configx"
	"github.com/marcodd23/go-micro-dbcmd/pkg/errorx"
	"github.com/marcodd23/go-micro-dbcmd/pkg/serverx/fibersrv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *fiber.App {
	t.Helper()

	cfg := configx.BaseConfig{
		Name:   "orders-service",
		Server: &configx.ServerConfig{Port: "0", DisableStartupMessage: true},
	}

	srv := fibersrv.NewFiberServer(cfg)
	srv.Setup(context.Background(), func(app *fiber.App) {
		app.Get("/ok", func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{"status": "up"})
		})
		app.Get("/usage", func(*fiber.Ctx) error {
			return errorx.NewUsageError("query requires exactly one command, got %d", 2)
		})
		app.Get("/cancelled", func(*fiber.Ctx) error {
			return errorx.NewCancellationError(context.Canceled, errors.New("connection reset"))
		})
		app.Get("/boom", func(*fiber.Ctx) error {
			return errors.New("boom")
		})
	})

	return srv.GetServer()
}

func TestErrorHandlerStatusCodes(t *testing.T) {
	app := newServer(t)

	tests := []struct {
		path   string
		status int
	}{
		{"/ok", fiber.StatusOK},
		{"/usage", fiber.StatusBadRequest},
		{"/cancelled", fiber.StatusServiceUnavailable},
		{"/boom", fiber.StatusInternalServerError},
		{"/missing", fiber.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, tt.path, nil))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestErrorResponseBody(t *testing.T) {
	app := newServer(t)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/usage", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out fibersrv.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Contains(t, out.Error, "exactly one command")
}
