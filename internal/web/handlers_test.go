package web

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/cjeanneret/PanView/internal/logic/control"
)

func newTestHandlers() *Handlers {
	staticFS := fstest.MapFS{
		"index.html": &fstest.MapFile{Data: []byte("<html>test</html>")},
	}
	return NewHandlers(
		NewStatusBroadcaster(),
		NewRegistry(),
		ViewerConfig{
			MaxPitch:         1.4137,
			YawSensitivity:   0.005,
			PitchSensitivity: 0.0035,
			MotionSource:     "browser",
		},
		SessionOptions{Control: control.DefaultConfig()},
		staticFS,
	)
}

// ---------- HandleConfig ----------

func TestHandleConfig(t *testing.T) {
	h := newTestHandlers()
	req := httptest.NewRequest(http.MethodGet, "/config", nil)
	w := httptest.NewRecorder()

	h.HandleConfig(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var vc ViewerConfig
	if err := json.NewDecoder(w.Body).Decode(&vc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if vc.YawSensitivity != 0.005 {
		t.Errorf("YawSensitivity = %v, want 0.005", vc.YawSensitivity)
	}
	if vc.PitchSensitivity != 0.0035 {
		t.Errorf("PitchSensitivity = %v, want 0.0035", vc.PitchSensitivity)
	}
	if vc.MotionSource != "browser" {
		t.Errorf("MotionSource = %q, want browser", vc.MotionSource)
	}
}

// ---------- ServeIndex ----------

func TestServeIndex(t *testing.T) {
	h := newTestHandlers()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	h.ServeIndex(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q, want text/html; charset=utf-8", ct)
	}
	if !strings.Contains(w.Body.String(), "<html>") {
		t.Error("body should contain HTML content")
	}
}

func TestServeIndex_Missing(t *testing.T) {
	h := NewHandlers(NewStatusBroadcaster(), NewRegistry(), ViewerConfig{}, SessionOptions{}, fstest.MapFS{})
	w := httptest.NewRecorder()
	h.ServeIndex(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ---------- Sessions ----------

func TestHandleSessions_Empty(t *testing.T) {
	h := newTestHandlers()
	w := httptest.NewRecorder()
	h.HandleSessions(w, httptest.NewRequest(http.MethodGet, "/sessions", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if body := strings.TrimSpace(w.Body.String()); body != "[]" {
		t.Errorf("body = %q, want []", body)
	}
}

func TestHandleSessionMotion_UnknownSession(t *testing.T) {
	srv, err := NewServer(":0", NewStatusBroadcaster(), NewRegistry(), ViewerConfig{}, SessionOptions{})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	w := httptest.NewRecorder()
	srv.Mux().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sessions/nope/motion", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestMux_MethodRouting(t *testing.T) {
	srv, err := NewServer(":0", NewStatusBroadcaster(), NewRegistry(), ViewerConfig{}, SessionOptions{})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	cases := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/static/viewer.js", http.StatusOK},
		{http.MethodGet, "/config", http.StatusOK},
		{http.MethodGet, "/sessions", http.StatusOK},
		{http.MethodGet, "/sessions/x/motion", http.StatusMethodNotAllowed},
		{http.MethodPost, "/config", http.StatusMethodNotAllowed},
		{http.MethodGet, "/missing", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.Mux().ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
			if w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}

// ---------- HandleStatusStream ----------

func TestHandleStatusStream(t *testing.T) {
	h := newTestHandlers()
	ts := httptest.NewServer(http.HandlerFunc(h.HandleStatusStream))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	r := bufio.NewReader(resp.Body)
	line, err := r.ReadString('\n')
	if err != nil || line != ": connected\n" {
		t.Fatalf("first line = %q, %v", line, err)
	}

	for h.Broadcaster.Clients() == 0 {
		time.Sleep(time.Millisecond)
	}
	h.Broadcaster.SessionEvent("s1", "connected")

	for {
		line, err = r.ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if strings.HasPrefix(line, "data: ") {
			break
		}
	}
	var evt StatusEvent
	if err := json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &evt); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if evt.Session != "s1" || evt.Msg != "connected" {
		t.Errorf("event = %+v", evt)
	}
}
