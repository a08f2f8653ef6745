package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/gatewarden/internal/interfaces/http/handlers/testutil"
	"github.com/orris-inc/gatewarden/internal/shared/logger"
)

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(ctx context.Context) error {
	return m.err
}

func TestHealthHandler_Live(t *testing.T) {
	h := NewHealthHandler(&mockPinger{err: errors.New("down")}, logger.NewNop())
	c, w := testutil.NewTestContext(http.MethodGet, "/health", nil)

	h.Live(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthHandler_Ready(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "store reachable", wantStatus: http.StatusOK},
		{name: "store down", err: errors.New("dial tcp: connection refused"), wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(&mockPinger{err: tt.err}, logger.NewNop())
			c, w := testutil.NewTestContext(http.MethodGet, "/health/ready", nil)

			h.Ready(c)

			assert.Equal(t, tt.wantStatus, w.Code)
			var resp testutil.APIResponse
			require.NoError(t, testutil.ParseResponse(w, &resp))
			assert.Equal(t, tt.err == nil, resp.Success)
		})
	}
}
