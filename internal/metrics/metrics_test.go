package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()

	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}

	if m.registry == nil {
		t.Error("Registry is nil")
	}

	if m.ShortcutPressesTotal == nil {
		t.Error("ShortcutPressesTotal is nil")
	}
	if m.CommandsSubmittedTotal == nil {
		t.Error("CommandsSubmittedTotal is nil")
	}
	if m.StreamSubscribers == nil {
		t.Error("StreamSubscribers is nil")
	}
	if m.RPCCallsTotal == nil {
		t.Error("RPCCallsTotal is nil")
	}
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics()

	m.RecordShortcutPress("overlay_move")
	m.RecordShortcutError("overlay_move")
	m.RecordCommand("shortcut")
	m.RecordRPC("get_shortcut_config", "ok")
	m.RecordProbe("reachable")
	m.HTTPRequestsTotal.WithLabelValues("/ping", "200").Inc()
	m.HTTPRequestDuration.WithLabelValues("/ping").Observe(0.01)

	handler := m.Handler()
	if handler == nil {
		t.Fatal("Handler returned nil")
	}

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	body := w.Body.String()

	expectedMetrics := []string{
		"observer_companion_shortcuts_registered",
		"observer_companion_shortcuts_skipped",
		"observer_companion_shortcut_presses_total",
		"observer_companion_shortcut_effect_errors_total",
		"observer_companion_commands_submitted_total",
		"observer_companion_commands_pending",
		"observer_companion_stream_subscribers",
		"observer_companion_stream_missed_total",
		"observer_companion_http_requests_total",
		"observer_companion_http_request_duration_seconds",
		"observer_companion_rpc_calls_total",
		"observer_companion_websocket_clients",
		"observer_companion_backend_probes_total",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(body, metric) {
			t.Errorf("Metrics output missing: %s", metric)
		}
	}
}

func TestRecordHelpers(t *testing.T) {
	m := NewMetrics()

	m.RecordRegistration(9, 2)
	m.RecordCommand("http")
	m.RecordCommand("http")
	m.SetPending(3)
	m.SetSubscribers(2)
	m.RecordMissed(50)
	m.RecordMissed(0)
	m.SetWebsocketClients(1)
	m.RecordHTTP("/ping", 200, 10*time.Millisecond)

	if got := testutil.ToFloat64(m.ShortcutsRegistered); got != 9 {
		t.Errorf("Expected 9 registered, got %v", got)
	}
	if got := testutil.ToFloat64(m.ShortcutsSkipped); got != 2 {
		t.Errorf("Expected 2 skipped, got %v", got)
	}
	if got := testutil.ToFloat64(m.CommandsSubmittedTotal.WithLabelValues("http")); got != 2 {
		t.Errorf("Expected 2 http commands, got %v", got)
	}
	if got := testutil.ToFloat64(m.CommandsPending); got != 3 {
		t.Errorf("Expected 3 pending, got %v", got)
	}
	if got := testutil.ToFloat64(m.StreamSubscribers); got != 2 {
		t.Errorf("Expected 2 subscribers, got %v", got)
	}
	if got := testutil.ToFloat64(m.StreamMissedTotal); got != 50 {
		t.Errorf("Expected 50 missed, got %v", got)
	}
	if got := testutil.ToFloat64(m.WebsocketClients); got != 1 {
		t.Errorf("Expected 1 websocket client, got %v", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("/ping", "200")); got != 1 {
		t.Errorf("Expected 1 ping request, got %v", got)
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics

	m.RecordRegistration(1, 1)
	m.RecordShortcutPress("overlay_toggle")
	m.RecordShortcutError("overlay_toggle")
	m.RecordCommand("rpc")
	m.SetPending(1)
	m.SetSubscribers(1)
	m.RecordMissed(1)
	m.RecordRPC("x", "ok")
	m.RecordHTTP("/x", 500, time.Second)
	m.SetWebsocketClients(1)
	m.RecordProbe("unreachable")
}
