package server

import (
	"bytes"
	"errors"
	"io"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/Vampire/setup-wsl-sub000/internal/cache"
)

const testKey = "2:distributionDirectory_Debian_1.0.0"

func TestCachePutThenGet(t *testing.T) {
	app, _ := newTestApp(t)

	put := httptest.NewRequest("PUT", "/cache/"+url.PathEscape(testKey), bytes.NewReader([]byte("archive-bytes")))
	resp, err := app.Test(put)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 201, got %d (body=%s)", resp.StatusCode, body)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/cache/"+url.PathEscape(testKey), nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "archive-bytes" {
		t.Fatalf("unexpected body %q", body)
	}
	if reqID := resp.Header.Get("X-Request-ID"); reqID == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
}

func TestCacheMissReturns404(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/cache/missing", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte(`"cache_miss"`)) {
		t.Fatalf("expected cache_miss error, got %s", body)
	}

	resp, err = app.Test(httptest.NewRequest("HEAD", "/cache/missing", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected HEAD 404, got %d", resp.StatusCode)
	}
}

func TestCacheHeadReportsHit(t *testing.T) {
	app, store := newTestApp(t)
	locator := cache.Locator{Namespace: Namespace, Key: testKey}
	if _, err := store.Put(t.Context(), locator, strings.NewReader("12345"), cache.PutOptions{}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	resp, err := app.Test(httptest.NewRequest("HEAD", "/cache/"+url.PathEscape(testKey), nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestCacheConditionalGet(t *testing.T) {
	app, store := newTestApp(t)
	locator := cache.Locator{Namespace: Namespace, Key: testKey}
	entry, err := store.Put(t.Context(), locator, strings.NewReader("12345"), cache.PutOptions{})
	if err != nil {
		t.Fatalf("seed store: %v", err)
	}

	req := httptest.NewRequest("GET", "/cache/"+url.PathEscape(testKey), nil)
	req.Header.Set("If-None-Match", entry.ETag())
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotModified {
		t.Fatalf("expected 304, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest("GET", "/cache/"+url.PathEscape(testKey), nil)
	req.Header.Set("If-None-Match", `"stale"`)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 for stale etag, got %d", resp.StatusCode)
	}
	if resp.Header.Get("ETag") != entry.ETag() {
		t.Fatalf("unexpected etag %q", resp.Header.Get("ETag"))
	}
}

func TestCacheDeleteRemovesEntry(t *testing.T) {
	app, store := newTestApp(t)
	locator := cache.Locator{Namespace: Namespace, Key: testKey}
	if _, err := store.Put(t.Context(), locator, strings.NewReader("12345"), cache.PutOptions{}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest("DELETE", "/cache/"+url.PathEscape(testKey), nil))
		if err != nil {
			t.Fatalf("app.Test failed: %v", err)
		}
		if resp.StatusCode != fiber.StatusNoContent {
			t.Fatalf("delete #%d expected 204, got %d", i+1, resp.StatusCode)
		}
	}

	if _, err := store.Stat(t.Context(), locator); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("entry should be gone, got %v", err)
	}
	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte("setup_wsl_content_cache_removals_total 2")) {
		t.Fatalf("expected removal counter in metrics, got %s", body)
	}
}

func TestCachePutRejectsEmptyBody(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest("PUT", "/cache/empty", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestMetricsCountLookups(t *testing.T) {
	app, _ := newTestApp(t)

	if _, err := app.Test(httptest.NewRequest("GET", "/cache/missing", nil)); err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte(`setup_wsl_content_cache_lookups_total{result="miss"} 1`)) {
		t.Fatalf("expected miss counter in metrics, got %s", body)
	}
}

func TestHealthz(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/healthz", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestNewAppRequiresDependencies(t *testing.T) {
	if _, err := NewApp(AppOptions{}); err == nil {
		t.Fatalf("expected error without logger")
	}
	if _, err := NewApp(AppOptions{Logger: logrus.New()}); err == nil {
		t.Fatalf("expected error without store")
	}
}

func newTestApp(t *testing.T) (*fiber.App, cache.Store) {
	t.Helper()

	store, err := cache.NewStore(afero.NewMemMapFs(), "/srv/cache")
	if err != nil {
		t.Fatalf("store init failed: %v", err)
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	app, err := NewApp(AppOptions{Logger: logger, Store: store, BodyLimit: 1 << 20})
	if err != nil {
		t.Fatalf("app init failed: %v", err)
	}
	return app, store
}
