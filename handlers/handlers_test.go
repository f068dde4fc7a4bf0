package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"videosync/internal/collab"
	"videosync/internal/session"
	"videosync/internal/store"
	"videosync/internal/worker"
)

func testAPI(t *testing.T) (*fiber.App, *API) {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	registry := session.NewRegistry(log)
	dispatcher := worker.NewDispatcher(1, 4, log)
	dispatcher.Run()
	t.Cleanup(dispatcher.Stop)

	api := &API{
		Registry:   registry,
		Dispatcher: dispatcher,
		Store:      store.New(nil, log),
		Hub:        collab.NewHub(registry, log),
		Log:        log,
	}

	app := fiber.New()
	app.Post("/api/v1/sessions", api.CreateSession)
	app.Get("/api/v1/sessions", api.ListSessions)
	app.Get("/api/v1/sessions/:sessionId", api.GetSession)
	scope := app.Group("/api/v1/sessions/:sessionId")
	scope.Post("/clips", api.ImportClip)
	scope.Post("/segments", api.AddSegment)
	scope.Post("/playback/play", api.Play)
	scope.Post("/playback/seek", api.Seek)
	scope.Get("/playback", api.GetPlaybackState)
	return app, api
}

func postJSON(t *testing.T, app *fiber.App, path string, body interface{}) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request %s: %v", path, err)
	}
	return resp
}

func decodeEnvelope(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var envelope map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return envelope
}

func createSession(t *testing.T, app *fiber.App) string {
	t.Helper()
	resp := postJSON(t, app, "/api/v1/sessions", map[string]string{"name": "test cut"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session status = %d, want 201", resp.StatusCode)
	}
	envelope := decodeEnvelope(t, resp)
	data := envelope["data"].(map[string]interface{})
	return data["id"].(string)
}

func TestCreateSessionValidation(t *testing.T) {
	app, _ := testAPI(t)

	resp := postJSON(t, app, "/api/v1/sessions", map[string]string{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing name status = %d, want 400", resp.StatusCode)
	}

	id := createSession(t, app)
	if id == "" {
		t.Fatal("created session should return an id")
	}
}

func TestImportClipStartsProbing(t *testing.T) {
	app, _ := testAPI(t)
	id := createSession(t, app)

	resp := postJSON(t, app, "/api/v1/sessions/"+id+"/clips", map[string]interface{}{
		"source_path":    "/media/a.mp4",
		"timeline_start": 0,
		"order":          0,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("import clip status = %d, want 201", resp.StatusCode)
	}
	envelope := decodeEnvelope(t, resp)
	data := envelope["data"].(map[string]interface{})
	if data["status"] != "probing" {
		t.Errorf("new clip status = %v, want probing", data["status"])
	}
}

func TestSegmentOverlapConflict(t *testing.T) {
	app, _ := testAPI(t)
	id := createSession(t, app)

	first := map[string]interface{}{
		"start_time":               0.0,
		"end_time":                 5.0,
		"audio_path":               "/media/vo1.wav",
		"estimated_audio_duration": 5.0,
	}
	if resp := postJSON(t, app, "/api/v1/sessions/"+id+"/segments", first); resp.StatusCode != http.StatusCreated {
		t.Fatalf("first segment status = %d, want 201", resp.StatusCode)
	}

	overlapping := map[string]interface{}{
		"start_time":               4.0,
		"end_time":                 9.0,
		"audio_path":               "/media/vo2.wav",
		"estimated_audio_duration": 5.0,
	}
	if resp := postJSON(t, app, "/api/v1/sessions/"+id+"/segments", overlapping); resp.StatusCode != http.StatusConflict {
		t.Errorf("overlapping segment status = %d, want 409", resp.StatusCode)
	}

	touching := map[string]interface{}{
		"start_time":               5.0,
		"end_time":                 9.0,
		"audio_path":               "/media/vo2.wav",
		"estimated_audio_duration": 4.0,
	}
	if resp := postJSON(t, app, "/api/v1/sessions/"+id+"/segments", touching); resp.StatusCode != http.StatusCreated {
		t.Errorf("edge-to-edge segment status = %d, want 201", resp.StatusCode)
	}
}

func TestSeekMovesPlayhead(t *testing.T) {
	app, _ := testAPI(t)
	id := createSession(t, app)

	if resp := postJSON(t, app, "/api/v1/sessions/"+id+"/playback/seek", map[string]float64{"time": 12.5}); resp.StatusCode != http.StatusOK {
		t.Fatalf("seek status = %d, want 200", resp.StatusCode)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+id+"/playback", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("get playback: %v", err)
	}
	envelope := decodeEnvelope(t, resp)
	data := envelope["data"].(map[string]interface{})
	playback := data["playback"].(map[string]interface{})
	if playback["current_time"].(float64) != 12.5 {
		t.Errorf("current_time = %v, want 12.5", playback["current_time"])
	}
}

func TestUnknownSessionRejected(t *testing.T) {
	app, _ := testAPI(t)

	resp := postJSON(t, app, "/api/v1/sessions/not-a-uuid/playback/play", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", resp.StatusCode)
	}

	resp = postJSON(t, app, "/api/v1/sessions/00000000-0000-0000-0000-000000000001/playback/play", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing session status = %d, want 404", resp.StatusCode)
	}
}
