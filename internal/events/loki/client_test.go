package loki

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func newCaptureServer(t *testing.T, status int) (*httptest.Server, *PushRequest) {
	t.Helper()
	captured := &PushRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/loki/api/v1/push" {
			t.Errorf("path = %q, want /loki/api/v1/push", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(captured); err != nil {
			t.Errorf("decode push body: %v", err)
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func TestPushEvent_SendsStream(t *testing.T) {
	srv, captured := newCaptureServer(t, http.StatusNoContent)
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	err := PushEvent(context.Background(), srv.URL, ts, `{"eventType":"code_issued"}`, map[string]string{"event_type": "code_issued"})
	if err != nil {
		t.Fatalf("PushEvent: %v", err)
	}

	if len(captured.Streams) != 1 {
		t.Fatalf("streams = %d, want 1", len(captured.Streams))
	}
	stream := captured.Streams[0]
	if stream.Stream["job"] != "linkbot" {
		t.Errorf("job label = %q, want linkbot", stream.Stream["job"])
	}
	if stream.Stream["event_type"] != "code_issued" {
		t.Errorf("event_type label = %q, want code_issued", stream.Stream["event_type"])
	}
	if len(stream.Values) != 1 || len(stream.Values[0]) != 2 {
		t.Fatalf("values = %v, want one [ts, line] pair", stream.Values)
	}
	if stream.Values[0][0] != strconv.FormatInt(ts.UnixNano(), 10) {
		t.Errorf("timestamp = %q, want %d", stream.Values[0][0], ts.UnixNano())
	}
}

func TestPushEvent_SanitizesLabelValues(t *testing.T) {
	srv, captured := newCaptureServer(t, http.StatusNoContent)

	err := PushEvent(context.Background(), srv.URL, time.Now(), "line", map[string]string{
		"source": " bot loop! ",
		"empty":  "   ",
	})
	if err != nil {
		t.Fatalf("PushEvent: %v", err)
	}
	stream := captured.Streams[0]
	if stream.Stream["source"] != "bot_loop_" {
		t.Errorf("source label = %q, want sanitized value", stream.Stream["source"])
	}
	if _, ok := stream.Stream["empty"]; ok {
		t.Error("label that sanitizes to empty should be dropped")
	}
}

func TestPushEvent_ErrorOnNon2xx(t *testing.T) {
	srv, _ := newCaptureServer(t, http.StatusInternalServerError)

	if err := PushEvent(context.Background(), srv.URL, time.Now(), "line", nil); err == nil {
		t.Error("PushEvent should fail on a 5xx response")
	}
}

func TestPushEvent_EmptyBaseURL(t *testing.T) {
	if err := PushEvent(context.Background(), "", time.Now(), "line", nil); err == nil {
		t.Error("PushEvent should fail with an empty base URL")
	}
}

func TestPushEventJSON_ExtractsLabelsAndTimestamp(t *testing.T) {
	srv, captured := newCaptureServer(t, http.StatusNoContent)
	raw := []byte(`{"eventType":"account_bound","telegramId":100,"source":"monitor","createdAt":"2025-06-01T12:00:00Z"}`)

	if err := PushEventJSON(context.Background(), srv.URL, raw); err != nil {
		t.Fatalf("PushEventJSON: %v", err)
	}

	stream := captured.Streams[0]
	if stream.Stream["event_type"] != "account_bound" {
		t.Errorf("event_type label = %q, want account_bound", stream.Stream["event_type"])
	}
	if stream.Stream["source"] != "monitor" {
		t.Errorf("source label = %q, want monitor", stream.Stream["source"])
	}
	want := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC).UnixNano()
	if stream.Values[0][0] != strconv.FormatInt(want, 10) {
		t.Errorf("timestamp = %q, want %d from createdAt", stream.Values[0][0], want)
	}
	if stream.Values[0][1] != string(raw) {
		t.Errorf("line = %q, want the raw event JSON", stream.Values[0][1])
	}
}

func TestPushEventJSON_UnparseableFallsBackToRawLine(t *testing.T) {
	srv, captured := newCaptureServer(t, http.StatusNoContent)

	if err := PushEventJSON(context.Background(), srv.URL, []byte("not json")); err != nil {
		t.Fatalf("PushEventJSON: %v", err)
	}
	stream := captured.Streams[0]
	if stream.Values[0][1] != "not json" {
		t.Errorf("line = %q, want the raw input", stream.Values[0][1])
	}
	if _, ok := stream.Stream["event_type"]; ok {
		t.Error("no labels should be extracted from unparseable input")
	}
}
