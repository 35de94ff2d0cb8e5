package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BlackLotus/nomad/pkg/config"
	"github.com/BlackLotus/nomad/pkg/controller"
	"github.com/BlackLotus/nomad/pkg/filestore"
	"github.com/BlackLotus/nomad/pkg/model"
	"github.com/BlackLotus/nomad/pkg/statestore"
)

type fakeScheduler struct{}

func (fakeScheduler) EnqueueParseAll(uploadID string) (string, error)  { return "task-" + uploadID, nil }
func (fakeScheduler) EnqueueReprocess(uploadID string) (string, error) { return "task-" + uploadID, nil }

type fakeSearch struct{}

func (fakeSearch) DeleteByUpload(context.Context, string) error { return nil }
func (fakeSearch) Refresh(context.Context) error                { return nil }

func newTestRouter(t *testing.T) (http.Handler, string) {
	t.Helper()
	root := t.TempDir()

	store, err := statestore.Open(&config.DatabaseConfig{
		Type:   config.DatabaseTypeSQLite,
		SQLite: config.SQLiteConfig{Path: filepath.Join(root, "state.db")},
	})
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	layout := &filestore.Layout{
		StagingRoot: filepath.Join(root, "staging"),
		PublicRoot:  filepath.Join(root, "public"),
		TmpRoot:     filepath.Join(root, "tmp"),
	}

	ctrl := controller.New(store, layout, fakeScheduler{}, fakeSearch{}, nil, 10, 100,
		config.BundleImportConfig{}, model.BundleSource{})

	secret := "test-secret-key-at-least-32-characters!"
	r := NewRouter(config.HTTPConfig{JWTSecret: secret}, ctrl)
	return r, secret
}

func TestHealthEndpointIsUnauthenticated(t *testing.T) {
	r, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateUploadRequiresAuth(t *testing.T) {
	r, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads/", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", rec.Code)
	}
}

func TestCreateUploadWithValidToken(t *testing.T) {
	r, secret := newTestRouter(t)
	token, err := issueDevToken(secret, "user1", false, time.Minute)
	if err != nil {
		t.Fatalf("issueDevToken: %v", err)
	}

	body := strings.NewReader(`{"upload_name":"my upload"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads/", body)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp envelope
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Status != "ok" {
		t.Fatalf("expected ok status, got %q (%s)", resp.Status, resp.Error)
	}
}
