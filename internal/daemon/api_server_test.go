package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"quill/internal/api"
	"quill/internal/store"
	"quill/internal/testsupport"
)

type apiFixture struct {
	t       *testing.T
	handler http.Handler
	tr      *store.Transcription
}

func newAPIFixture(t *testing.T, token string) *apiFixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithAPIToken(token), testsupport.WithKeepCount(2))
	reg := prometheus.NewRegistry()
	app := testsupport.MustOpenApp(t, cfg, reg)
	d, err := New(cfg, app, nil, reg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	project, err := app.Store.EnsureProject(ctx, "u1", "Interviews")
	if err != nil {
		t.Fatalf("EnsureProject: %v", err)
	}
	tr, err := app.Store.CreateTranscription(ctx, store.Transcription{UserID: "u1", ProjectID: project.ID, Title: "Session one"})
	if err != nil {
		t.Fatalf("CreateTranscription: %v", err)
	}
	return &apiFixture{t: t, handler: d.api.handler, tr: tr}
}

func (f *apiFixture) do(method, path, user, body string, headers ...string) *httptest.ResponseRecorder {
	f.t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

const snapshotBody = `{
  "speakers": [{"code": "A", "name": "Alice"}],
  "blocks": [
    {"timestamp": "00:00:01", "speaker": "A", "text": "hello there"},
    {"text": "plain line"}
  ]
}`

func TestBackupLifecycleOverHTTP(t *testing.T) {
	f := newAPIFixture(t, "")
	base := "/api/transcriptions/" + f.tr.ID + "/backups"

	var ids []string
	for i := 0; i < 3; i++ {
		w := f.do(http.MethodPost, base, "u1", snapshotBody)
		if w.Code != http.StatusCreated {
			t.Fatalf("create status = %d body=%s", w.Code, w.Body.String())
		}
		resp := decodeBody[api.BackupResponse](t, w)
		if resp.Backup.Version != i+1 {
			t.Fatalf("version = %d, want %d", resp.Backup.Version, i+1)
		}
		if resp.Backup.WordCount != 4 || resp.Backup.BlockCount != 2 || resp.Backup.SpeakerCount != 1 {
			t.Fatalf("unexpected counts: %+v", resp.Backup)
		}
		ids = append(ids, resp.Backup.ID)
	}

	w := f.do(http.MethodGet, base, "u1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("history status = %d", w.Code)
	}
	history := decodeBody[api.BackupListResponse](t, w)
	if len(history.Backups) != 2 || history.Backups[0].Version != 3 {
		t.Fatalf("expected auto-pruned history [3 2], got %+v", history.Backups)
	}

	w = f.do(http.MethodGet, "/api/backups/"+ids[2], "u1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("preview status = %d", w.Code)
	}
	preview := decodeBody[api.PreviewResponse](t, w)
	if preview.Content.Version != "3" || len(preview.Content.Blocks) != 2 {
		t.Fatalf("unexpected preview content: %+v", preview.Content)
	}
	if preview.Content.ProjectName != "Interviews" {
		t.Fatalf("project name = %q", preview.Content.ProjectName)
	}

	w = f.do(http.MethodGet, "/api/backups/"+ids[0], "u1", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("pruned preview status = %d, want 404", w.Code)
	}

	w = f.do(http.MethodPost, "/api/backups/"+ids[1]+"/restore", "u1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("restore status = %d body=%s", w.Code, w.Body.String())
	}

	w = f.do(http.MethodDelete, base+"?keep=1", "u1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("cleanup status = %d", w.Code)
	}
	cleanup := decodeBody[api.CleanupResponse](t, w)
	if cleanup.Keep != 1 || cleanup.Removed != 1 {
		t.Fatalf("unexpected cleanup: %+v", cleanup)
	}
}

func TestBackupErrorsMapToStatus(t *testing.T) {
	f := newAPIFixture(t, "")
	base := "/api/transcriptions/" + f.tr.ID + "/backups"

	tests := []struct {
		name   string
		method string
		path   string
		user   string
		body   string
		want   int
		kind   string
	}{
		{"other owner", http.MethodPost, base, "u2", snapshotBody, http.StatusForbidden, "access_denied"},
		{"unknown transcription", http.MethodPost, "/api/transcriptions/missing/backups", "u1", snapshotBody, http.StatusNotFound, "not_found"},
		{"malformed body", http.MethodPost, base, "u1", "{", http.StatusBadRequest, "validation"},
		{"invalid timestamp", http.MethodPost, base, "u1", `{"blocks":[{"timestamp":"1:2","text":"x"}]}`, http.StatusBadRequest, "validation"},
		{"bad limit", http.MethodGet, base + "?limit=abc", "u1", "", http.StatusBadRequest, "validation"},
		{"unknown backup", http.MethodGet, "/api/backups/nope", "u1", "", http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(tt.method, tt.path, tt.user, tt.body)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (body=%s)", w.Code, tt.want, w.Body.String())
			}
			resp := decodeBody[api.ErrorResponse](t, w)
			if resp.Kind != tt.kind {
				t.Fatalf("kind = %q, want %q", resp.Kind, tt.kind)
			}
		})
	}
}

func TestSessionRoutes(t *testing.T) {
	f := newAPIFixture(t, "")

	w := f.do(http.MethodPost, "/api/sessions/m1/1", "", snapshotBody)
	if w.Code != http.StatusOK {
		t.Fatalf("save status = %d body=%s", w.Code, w.Body.String())
	}
	meta := decodeBody[api.SessionMetadata](t, w)
	if meta.MediaID != "m1" || meta.TranscriptionNumber != 1 || meta.WordCount != 4 {
		t.Fatalf("unexpected metadata: %+v", meta)
	}

	w = f.do(http.MethodGet, "/api/sessions/m1/1", "", "")
	loaded := decodeBody[api.SessionResponse](t, w)
	if loaded.Content.Version != "CURRENT" || len(loaded.Content.Blocks) != 2 {
		t.Fatalf("unexpected load: %+v", loaded.Content)
	}

	w = f.do(http.MethodPost, "/api/sessions/m1/1/backups", "", snapshotBody)
	if w.Code != http.StatusCreated {
		t.Fatalf("trail backup status = %d body=%s", w.Code, w.Body.String())
	}
	trail := decodeBody[api.TrailFile](t, w)
	if trail.Version != 1 || !strings.HasPrefix(trail.FileName, "v1_") {
		t.Fatalf("unexpected trail file: %+v", trail)
	}

	w = f.do(http.MethodGet, "/api/sessions/m1/1/backups", "", "")
	history := decodeBody[api.SessionHistoryResponse](t, w)
	if len(history.Backups) != 1 || history.Backups[0].FileName != trail.FileName {
		t.Fatalf("unexpected trail history: %+v", history.Backups)
	}

	w = f.do(http.MethodPost, "/api/sessions/m1/1", "", `{"blocks":[{"text":"replaced"}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("overwrite status = %d", w.Code)
	}
	w = f.do(http.MethodPost, "/api/sessions/m1/1/backups/"+trail.FileName+"/restore", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("restore status = %d body=%s", w.Code, w.Body.String())
	}
	restored := decodeBody[api.SessionResponse](t, w)
	if len(restored.Content.Blocks) != 2 {
		t.Fatalf("restore returned %d blocks", len(restored.Content.Blocks))
	}

	w = f.do(http.MethodGet, "/api/sessions/m1", "", "")
	list := decodeBody[api.SessionListResponse](t, w)
	if len(list.Slots) != 1 || list.Slots[0].Metadata == nil || list.Slots[0].Metadata.BlockCount != 2 {
		t.Fatalf("unexpected slot list: %+v", list.Slots)
	}

	if w := f.do(http.MethodGet, "/api/sessions/m1/zero", "", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad slot status = %d", w.Code)
	}
	if w := f.do(http.MethodPost, "/api/sessions/m1/1/backups/../restore", "", ""); w.Code == http.StatusOK {
		t.Fatal("expected traversal file name to be rejected")
	}
}

func TestAuthAndInstrumentation(t *testing.T) {
	f := newAPIFixture(t, "secret")

	w := f.do(http.MethodGet, "/api/status", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status without token = %d", w.Code)
	}
	if got := w.Header().Get("WWW-Authenticate"); got != `Bearer realm="quill"` {
		t.Fatalf("WWW-Authenticate = %q", got)
	}
	if errBody := decodeBody[api.ErrorResponse](t, w); errBody.Kind != "unauthorized" {
		t.Fatalf("unexpected error body: %+v", errBody)
	}
	w = f.do(http.MethodGet, "/api/status", "", "", "Authorization", "Bearer wrong")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status with wrong token = %d", w.Code)
	}

	w = f.do(http.MethodGet, "/api/status", "", "", "Authorization", "Bearer secret", requestIDHeader, "req-42")
	if w.Code != http.StatusOK {
		t.Fatalf("status with token = %d", w.Code)
	}
	if got := w.Header().Get(requestIDHeader); got != "req-42" {
		t.Fatalf("request id echoed = %q", got)
	}
	status := decodeBody[api.DaemonStatus](t, w)
	if status.Running || status.Stats == nil || status.Stats.Transcriptions != 1 {
		t.Fatalf("unexpected status: %+v", status)
	}

	w = f.do(http.MethodGet, "/metrics", "", "", "Authorization", "Bearer secret")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `quill_http_requests_total{code="401",route="GET /api/status"} 2`) {
		t.Fatalf("expected unauthorized requests counted, got:\n%s", body)
	}
}
