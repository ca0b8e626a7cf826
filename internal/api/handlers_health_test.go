// handlers_health_test.go - Tests for the health handler
package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caffeinepub/ofs/internal/ledger"
	"github.com/caffeinepub/ofs/internal/registry"
	"github.com/caffeinepub/ofs/internal/testutil"
)

func TestHealthHandler_HandleHealth(t *testing.T) {
	store := testutil.NewMockStorage()
	md, err := store.SaveBytes("a.txt", "text/plain", "alice", []byte("x"))
	require.NoError(t, err)

	reg := registry.New(store, clockwork.NewFakeClock(), registry.Options{})
	_, err = reg.Create("alice", md.ID, time.Minute)
	require.NoError(t, err)

	l, err := ledger.Open("")
	require.NoError(t, err)

	handler := NewHealthHandler("test", reg, l)

	check := func(t *testing.T) map[string]interface{} {
		t.Helper()
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		rec := httptest.NewRecorder()

		require.NoError(t, handler.HandleHealth(e.NewContext(req, rec)))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp
	}

	t.Run("reports session count and ledger reachability", func(t *testing.T) {
		resp := check(t)
		assert.Equal(t, "ok", resp["status"])
		assert.Equal(t, "test", resp["version"])
		assert.Equal(t, float64(1), resp["sessions"])
		assert.Equal(t, "ok", resp["ledger"])
	})

	t.Run("degrades when the ledger is unreachable", func(t *testing.T) {
		require.NoError(t, l.Close())

		resp := check(t)
		assert.Equal(t, "degraded", resp["status"])
		assert.Equal(t, "unavailable", resp["ledger"])
	})
}
