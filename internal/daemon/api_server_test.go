package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"skelrec/internal/api"
	"skelrec/internal/catalog"
	"skelrec/internal/config"
	"skelrec/internal/logging"
	"skelrec/internal/recording"
	"skelrec/internal/testsupport"
)

func newTestDaemon(t *testing.T, mutate func(*config.Config)) (*Daemon, *catalog.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	if mutate != nil {
		mutate(cfg)
	}
	store := testsupport.MustOpenCatalog(t, cfg)
	d, err := New(cfg, logging.NewNop(), testsupport.NewFakeDevice(), store)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})
	return d, store
}

func TestAPIServerHandleRecordings(t *testing.T) {
	d, _ := newTestDaemon(t, nil)
	ctx := context.Background()
	path, err := d.RecordingPath(ctx, "example")
	if err != nil {
		t.Fatalf("RecordingPath: %v", err)
	}
	if _, err := d.StartRecording(ctx, path, StartOptions{}); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}

	handler := newAPIHandler(d, "", logging.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/api/recordings?limit=5", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var resp api.RecordingListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Recordings) != 1 {
		t.Fatalf("expected 1 recording, got %d", len(resp.Recordings))
	}
	if resp.Recordings[0].Status != "recording" {
		t.Fatalf("unexpected status: %q", resp.Recordings[0].Status)
	}

	bad := httptest.NewRecorder()
	handler.ServeHTTP(bad, httptest.NewRequest(http.MethodGet, "/api/recordings?limit=x", nil))
	if bad.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", bad.Code)
	}
}

func TestAPIServerRejectsNonGet(t *testing.T) {
	d, _ := newTestDaemon(t, nil)
	handler := newAPIHandler(d, "", logging.NewNop())
	for _, name := range []string{"status", "snapshot", "recordings"} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/"+name, nil))
		if w.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s: expected 405, got %d", name, w.Code)
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/snapshot", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("snapshot: expected 200, got %d", w.Code)
	}
}

func TestAPIServerServesStatusWithToken(t *testing.T) {
	d, _ := newTestDaemon(t, func(cfg *config.Config) {
		cfg.API.Bind = "127.0.0.1:0"
		cfg.API.Token = "secret"
	})
	d.mu.Lock()
	addr := d.api.addr()
	d.mu.Unlock()
	if addr == "" {
		t.Fatal("expected api server to be listening")
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + addr + "/api/status")
	if err != nil {
		t.Fatalf("GET without token: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, "http://"+addr+"/api/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("GET with token: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", resp.StatusCode)
	}
	var status api.DaemonStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Running || status.Device != "fake" {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestAuthMiddleware(t *testing.T) {
	next := func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }

	open := authMiddleware("", next)
	w := httptest.NewRecorder()
	open(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected passthrough without token, got %d", w.Code)
	}

	guarded := authMiddleware("tok", next)
	for header, want := range map[string]int{
		"":             http.StatusUnauthorized,
		"Basic tok":    http.StatusUnauthorized,
		"Bearer wrong": http.StatusUnauthorized,
		"Bearer tok":   http.StatusNoContent,
		"bearer tok":   http.StatusNoContent,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		guarded(w, req)
		if w.Code != want {
			t.Fatalf("header %q: expected %d, got %d", header, want, w.Code)
		}
		if want == http.StatusUnauthorized && w.Header().Get("WWW-Authenticate") == "" {
			t.Fatalf("header %q: expected WWW-Authenticate challenge", header)
		}
	}
}

func TestWriteFailureMarksEntryFailed(t *testing.T) {
	d, store := newTestDaemon(t, nil)
	ctx := context.Background()
	path, err := d.RecordingPath(ctx, "broken")
	if err != nil {
		t.Fatalf("RecordingPath: %v", err)
	}
	result, err := d.StartRecording(ctx, path, StartOptions{})
	if err != nil {
		t.Fatalf("StartRecording: %v", err)
	}

	// The writer disarms itself before reporting a failure.
	summary, err := d.writer.StopRecording()
	if err != nil {
		t.Fatalf("writer stop: %v", err)
	}
	d.handleWriteFailure(summary, errors.New("disk full"))

	if _, err := d.StopRecording(ctx); !errors.Is(err, recording.ErrNotRecording) {
		t.Fatalf("expected ErrNotRecording after failure, got %v", err)
	}
	entry, err := store.Get(ctx, result.ID)
	if err != nil || entry == nil {
		t.Fatalf("Get: %v %v", entry, err)
	}
	if entry.Status != catalog.StatusFailed || entry.Failure != "disk full" {
		t.Fatalf("expected failed entry, got %+v", entry)
	}
}

func TestStopRacingWriteFailureLeavesEntryToFailureHandler(t *testing.T) {
	d, store := newTestDaemon(t, nil)
	ctx := context.Background()
	path, err := d.RecordingPath(ctx, "race")
	if err != nil {
		t.Fatalf("RecordingPath: %v", err)
	}
	result, err := d.StartRecording(ctx, path, StartOptions{})
	if err != nil {
		t.Fatalf("StartRecording: %v", err)
	}

	// The writer has disarmed itself but its failure callback has not run.
	summary, err := d.writer.StopRecording()
	if err != nil {
		t.Fatalf("writer stop: %v", err)
	}
	if _, err := d.StopRecording(ctx); !errors.Is(err, recording.ErrNotRecording) {
		t.Fatalf("expected ErrNotRecording, got %v", err)
	}
	d.handleWriteFailure(summary, errors.New("permission denied"))

	entry, err := store.Get(ctx, result.ID)
	if err != nil || entry == nil {
		t.Fatalf("Get: %v %v", entry, err)
	}
	if entry.Status != catalog.StatusFailed || entry.Failure != "permission denied" {
		t.Fatalf("expected failed entry, got %+v", entry)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active != nil || d.stopping != nil {
		t.Fatal("session should be fully released")
	}
}

func TestThrottle(t *testing.T) {
	th := throttle{interval: time.Second}
	base := time.Unix(1000, 0)

	if ok, n := th.allow(base); !ok || n != 0 {
		t.Fatalf("first event: got %v %d", ok, n)
	}
	for i := 1; i <= 3; i++ {
		if ok, _ := th.allow(base.Add(time.Duration(i) * 100 * time.Millisecond)); ok {
			t.Fatalf("event %d should be suppressed", i)
		}
	}
	if ok, n := th.allow(base.Add(2 * time.Second)); !ok || n != 3 {
		t.Fatalf("expected release with 3 suppressed, got %v %d", ok, n)
	}
}
