package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ivlev/story2video/internal/export"
	"github.com/ivlev/story2video/internal/generator"
	"github.com/ivlev/story2video/internal/pipeline"
	"github.com/ivlev/story2video/internal/session"
	"github.com/ivlev/story2video/internal/story"
)

func newTestServer(t *testing.T) (*httptest.Server, *session.Session, string) {
	t.Helper()
	orch := pipeline.NewOrchestrator(generator.NewLocal(), pipeline.SimulatedPostProduction{Scale: 0})
	sess := session.New(orch, nil)
	t.Cleanup(sess.Close)

	dir := t.TempDir()
	srv := httptest.NewServer(New(context.Background(), sess, export.ZipSink{Dir: dir}).Handler())
	t.Cleanup(srv.Close)
	return srv, sess, dir
}

func do(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func waitForState(t *testing.T, sess *session.Session, want session.State) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if sess.State() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Session stuck in %s, want %s", sess.State(), want)
}

func TestGenerateAndPreview(t *testing.T) {
	srv, sess, dir := newTestServer(t)

	resp, _ := do(t, http.MethodPost, srv.URL+"/api/generate", map[string]any{
		"prompt": "A robot learns to paint. It paints the sea.",
		"length": "15s",
		"voice":  "female-calm",
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", resp.StatusCode)
	}
	waitForState(t, sess, session.Previewing)

	if got := sess.Request().Voice; got != story.VoiceFemaleCalm {
		t.Errorf("Voice not applied: %s", got)
	}

	resp, view := do(t, http.MethodGet, srv.URL+"/api/session", nil)
	if resp.StatusCode != http.StatusOK || view["state"] != "previewing" {
		t.Fatalf("Unexpected session view %v", view)
	}
	script := view["script"].([]any)
	first := script[0].(map[string]any)
	if first["image_url"] != "/api/scenes/1/image" {
		t.Errorf("Expected image link, got %v", first["image_url"])
	}

	img, err := http.Get(srv.URL + "/api/scenes/1/image")
	if err != nil {
		t.Fatal(err)
	}
	img.Body.Close()
	if img.StatusCode != http.StatusOK || img.Header.Get("Content-Type") != "image/jpeg" {
		t.Errorf("Unexpected image response %d %s", img.StatusCode, img.Header.Get("Content-Type"))
	}

	resp, st := do(t, http.MethodPost, srv.URL+"/api/playback/toggle", nil)
	if resp.StatusCode != http.StatusOK || st["playing"] != true {
		t.Errorf("Expected playing state, got %v", st)
	}
	do(t, http.MethodPost, srv.URL+"/api/playback/pause", nil)

	resp, out := do(t, http.MethodPost, srv.URL+"/api/export", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Export failed: %v", out)
	}
	location, _ := out["location"].(string)
	if !strings.HasPrefix(location, dir) {
		t.Errorf("Unexpected export location %s", location)
	}
	if _, err := os.Stat(location); err != nil {
		t.Errorf("Export missing: %v", err)
	}
}

func TestCommandConflicts(t *testing.T) {
	srv, _, _ := newTestServer(t)

	tests := []struct {
		method, path string
	}{
		{http.MethodPost, "/api/continue"},
		{http.MethodPost, "/api/edit"},
		{http.MethodDelete, "/api/edit"},
		{http.MethodPost, "/api/reset"},
		{http.MethodPost, "/api/playback/play"},
		{http.MethodPost, "/api/export"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			resp, out := do(t, tt.method, srv.URL+tt.path, nil)
			if resp.StatusCode != http.StatusConflict {
				t.Errorf("Expected 409, got %d (%v)", resp.StatusCode, out)
			}
		})
	}
}

func TestGenerateRejectsUnknownOption(t *testing.T) {
	srv, sess, _ := newTestServer(t)
	resp, _ := do(t, http.MethodPost, srv.URL+"/api/generate", map[string]any{"aspect_ratio": "21:9"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
	if sess.State() != session.Configuring {
		t.Errorf("Session must stay configuring, got %s", sess.State())
	}
}

func TestEditOverHTTP(t *testing.T) {
	srv, sess, _ := newTestServer(t)
	do(t, http.MethodPost, srv.URL+"/api/generate", map[string]any{"length": "15s"})
	waitForState(t, sess, session.Previewing)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/edit", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	var scenes []story.Scene
	json.NewDecoder(resp.Body).Decode(&scenes)
	resp.Body.Close()
	if len(scenes) == 0 || sess.State() != session.Editing {
		t.Fatalf("Expected editing with scenes, got %s / %d", sess.State(), len(scenes))
	}

	scenes[0].Narration = "Rewritten opening."
	resp, out := do(t, http.MethodPut, srv.URL+"/api/edit", scenes)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Save failed: %v", out)
	}
	assets := sess.Assets()
	if assets.Script[0].Narration != "Rewritten opening." || assets.Script[0].ImageURL == "" {
		t.Errorf("Unexpected saved scene %+v", assets.Script[0])
	}
}

func TestOptions(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/options")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var opts []story.Option
	if err := json.NewDecoder(resp.Body).Decode(&opts); err != nil {
		t.Fatal(err)
	}
	if len(opts) != len(story.Options()) {
		t.Errorf("Expected %d options, got %d", len(story.Options()), len(opts))
	}
}

func TestWebSocketStreamsEvents(t *testing.T) {
	srv, sess, _ := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	// the subscription is registered once the handler runs
	time.Sleep(50 * time.Millisecond)
	if _, err := sess.StartGeneration(context.Background(), story.DefaultRequest()); err != nil {
		t.Fatal(err)
	}

	sawProgress := false
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var ev session.Event
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if ev.Kind == session.EventProgress {
			sawProgress = true
		}
		if ev.Kind == session.EventState && ev.State == session.Previewing {
			break
		}
	}
	if !sawProgress {
		t.Error("Expected progress events before preview")
	}
}
