package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSourceMetrics(t *testing.T) {
	element := "camsrc-test"
	defer Delete(element)

	SetFrameDuration(element, 40*time.Millisecond)
	RecordBuffer(element, 100, time.Millisecond, true)
	RecordBuffer(element, 50, 2*time.Millisecond, false)
	RecordShutdown(element)
	RecordNegotiationFailure(element, "not-supported")

	if got := testutil.ToFloat64(buffersTotal.WithLabelValues(element)); got != 2 {
		t.Errorf("buffersTotal = %v, want 2", got)
	}
	if got := testutil.ToFloat64(bytesTotal.WithLabelValues(element)); got != 150 {
		t.Errorf("bytesTotal = %v, want 150", got)
	}
	if got := testutil.ToFloat64(shutdownsTotal.WithLabelValues(element)); got != 1 {
		t.Errorf("shutdownsTotal = %v, want 1", got)
	}
	if got := testutil.ToFloat64(negotiationFailures.WithLabelValues(element, "not-supported")); got != 1 {
		t.Errorf("negotiationFailures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(frameDuration.WithLabelValues(element)); got != 0.04 {
		t.Errorf("frameDuration = %v, want 0.04", got)
	}
	if got := testutil.ToFloat64(pending.WithLabelValues(element)); got != 0 {
		t.Errorf("pending = %v, want 0", got)
	}

	snap := Get(element)
	if snap == nil {
		t.Fatal("expected snapshot")
	}
	if snap.Buffers != 2 || snap.Bytes != 150 || snap.Shutdowns != 1 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	if snap.FrameDuration != 40*time.Millisecond {
		t.Errorf("FrameDuration = %v, want 40ms", snap.FrameDuration)
	}
}

func TestDelete(t *testing.T) {
	RecordBuffer("camsrc-delete", 1, 0, false)
	Delete("camsrc-delete")
	if Get("camsrc-delete") != nil {
		t.Error("snapshot should be removed")
	}
	// Deleting unknown elements must not panic
	Delete("non-existent-element")
}

func TestHandler(t *testing.T) {
	element := "handler-test"
	SetFrameDuration(element, 33*time.Millisecond)
	defer Delete(element)

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := w.Body.String()
	for _, want := range []string{
		`camsrc_source_frame_duration_seconds{element="handler-test"} 0.033`,
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("response missing %q", want)
		}
	}
}
