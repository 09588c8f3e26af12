package shelves

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/vending/core/metrics"
	"github.com/kilianp07/vending/core/model"
	"github.com/kilianp07/vending/infra/metrics"
)

type fakeHealth struct {
	healthy bool
	shelves []model.ShelfHealth
}

func (f fakeHealth) IsLinkHealthy() bool          { return f.healthy }
func (f fakeHealth) Shelves() []model.ShelfHealth { return f.shelves }

func TestLinkHandler(t *testing.T) {
	for _, healthy := range []bool{true, false} {
		rr := httptest.NewRecorder()
		NewLinkHandler(fakeHealth{healthy: healthy}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/esp32-status", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		var out map[string]bool
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&out))
		assert.Equal(t, healthy, out["connected"])
	}
}

func TestStatusHandler(t *testing.T) {
	now := time.Now().UTC()
	h := fakeHealth{healthy: true, shelves: []model.ShelfHealth{
		{Shelf: 1, Online: true, LastHeartbeat: now},
		{Shelf: 2},
	}}
	stats := metrics.NewStatsSink(8)
	require.NoError(t, stats.RecordDispense(coremetrics.DispenseEvent{Shelf: 1, ItemID: 30, Status: model.StatusDispensed, Latency: 40 * time.Millisecond}))

	rr := httptest.NewRecorder()
	NewStatusHandler(h, stats).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/shelves", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var out shelvesResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&out))
	assert.True(t, out.Connected)
	require.Len(t, out.Shelves, 2)
	assert.True(t, out.Shelves[0].Online)
	assert.True(t, out.Shelves[1].LastHeartbeat.IsZero())
	require.Len(t, out.Stats, 1)
	assert.Equal(t, 1, out.Stats[0].Dispensed)

	rr = httptest.NewRecorder()
	NewStatusHandler(h, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/shelves", nil))
	assert.Contains(t, rr.Body.String(), `"stats":[]`)
	assert.NotContains(t, rr.Body.String(), "0001-01-01")
}
