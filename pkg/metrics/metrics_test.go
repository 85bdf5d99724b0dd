package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestRecorders(t *testing.T) {
	m := New("")

	m.RecordGuidanceTurn("resolved")
	m.RecordGuidanceTurn("resolved")
	m.RecordChatTurn("failed")
	m.RecordLiveConnect("failed")
	m.RecordLiveSessionStart()
	m.RecordLiveSessionStart()
	m.RecordLiveSessionEnd()
	m.ObserveProvider("guidance", 250*time.Millisecond)

	body := scrape(t, m)
	assert.Contains(t, body, `mindful_guidance_turns_total{outcome="resolved"} 2`)
	assert.Contains(t, body, `mindful_chat_turns_total{outcome="failed"} 1`)
	assert.Contains(t, body, `mindful_live_connects_total{outcome="failed"} 1`)
	assert.Contains(t, body, "mindful_live_sessions_active 1")
	assert.Contains(t, body, `mindful_provider_request_seconds_count{operation="guidance"} 1`)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordGuidanceTurn("failed")
		m.RecordLiveSessionStart()
		m.ObserveProvider("chat", time.Second)
	})
}
