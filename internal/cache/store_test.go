package cache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
)

const testNamespace = "content"

func TestStorePutAndGet(t *testing.T) {
	store, _ := newTestStore(t)
	locator := Locator{Namespace: testNamespace, Key: "2:distributionDirectory_Debian_1.0.0"}

	modTime := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	payload := []byte("tarball")
	if _, err := store.Put(context.Background(), locator, bytes.NewReader(payload), PutOptions{ModTime: modTime}); err != nil {
		t.Fatalf("put error: %v", err)
	}

	result, err := store.Get(context.Background(), locator)
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	defer result.Reader.Close()

	body, err := io.ReadAll(result.Reader)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != string(payload) {
		t.Fatalf("payload mismatch: %s", body)
	}
	if result.Entry.SizeBytes != int64(len(payload)) {
		t.Fatalf("size mismatch: %d", result.Entry.SizeBytes)
	}
	if !result.Entry.ModTime.Equal(modTime) {
		t.Fatalf("modtime mismatch: expected %v got %v", modTime, result.Entry.ModTime)
	}
	sum := sha256.Sum256(payload)
	if result.Entry.Digest != hex.EncodeToString(sum[:]) {
		t.Fatalf("digest mismatch: %s", result.Entry.Digest)
	}
	if result.Entry.ETag() != `"`+result.Entry.Digest+`"` {
		t.Fatalf("unexpected etag %s", result.Entry.ETag())
	}
}

func TestStoreGetMissing(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Get(context.Background(), Locator{Namespace: testNamespace, Key: "missing"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreBlobWithoutDigestIsAbsent(t *testing.T) {
	store, fsys := newTestStore(t)
	locator := Locator{Namespace: testNamespace, Key: "partial"}
	path, err := store.(*blobStore).blobPath(locator)
	if err != nil {
		t.Fatalf("path error: %v", err)
	}
	if err := afero.WriteFile(fsys, path, []byte("half"), 0o644); err != nil {
		t.Fatalf("seed blob: %v", err)
	}
	if _, err := store.Stat(context.Background(), locator); !errors.Is(err, ErrNotFound) {
		t.Fatalf("blob without digest should be absent, got %v", err)
	}
}

func TestStoreOverwriteReplacesDigest(t *testing.T) {
	store, _ := newTestStore(t)
	locator := Locator{Namespace: testNamespace, Key: "overwrite"}
	first, err := store.Put(context.Background(), locator, strings.NewReader("one"), PutOptions{})
	if err != nil {
		t.Fatalf("first put: %v", err)
	}
	second, err := store.Put(context.Background(), locator, strings.NewReader("two"), PutOptions{})
	if err != nil {
		t.Fatalf("second put: %v", err)
	}
	if first.Digest == second.Digest {
		t.Fatalf("digest should change after overwrite")
	}
	entry, err := store.Stat(context.Background(), locator)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if entry.Digest != second.Digest {
		t.Fatalf("stat digest %s, want %s", entry.Digest, second.Digest)
	}
}

func TestStoreRemove(t *testing.T) {
	store, fsys := newTestStore(t)
	locator := Locator{Namespace: testNamespace, Key: "remove/me"}
	entry, err := store.Put(context.Background(), locator, bytes.NewReader([]byte("data")), PutOptions{})
	if err != nil {
		t.Fatalf("put error: %v", err)
	}
	if err := store.Remove(context.Background(), locator); err != nil {
		t.Fatalf("remove error: %v", err)
	}
	if _, err := store.Get(context.Background(), locator); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after remove, got %v", err)
	}
	if ok, _ := afero.Exists(fsys, entry.FilePath+digestSuffix); ok {
		t.Fatalf("digest sidecar should be removed")
	}
	if err := store.Remove(context.Background(), locator); err != nil {
		t.Fatalf("second remove should be a no-op: %v", err)
	}
}

func TestStoreIgnoresDirectories(t *testing.T) {
	store, fsys := newTestStore(t)
	locator := Locator{Namespace: testNamespace, Key: "dir"}
	path, err := store.(*blobStore).blobPath(locator)
	if err != nil {
		t.Fatalf("path error: %v", err)
	}
	if err := fsys.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir error: %v", err)
	}
	if _, err := store.Get(context.Background(), locator); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for directory, got %v", err)
	}
}

func TestStoreKeysDoNotEscapeNamespace(t *testing.T) {
	store, _ := newTestStore(t)
	bs := store.(*blobStore)

	for _, key := range []string{"../../etc/passwd", "a/b", `c:\d`, ".."} {
		path, err := bs.blobPath(Locator{Namespace: testNamespace, Key: key})
		if err != nil {
			continue
		}
		if filepath.Dir(path) != filepath.Join(bs.basePath, testNamespace) {
			t.Fatalf("key %q escaped namespace: %s", key, path)
		}
	}
	if _, err := bs.blobPath(Locator{Namespace: "../x", Key: "k"}); err == nil {
		t.Fatalf("namespace traversal should be rejected")
	}
	if _, err := bs.blobPath(Locator{Namespace: testNamespace, Key: "x.sha256"}); err == nil {
		t.Fatalf("keys colliding with digest sidecars should be rejected")
	}
}

func TestStorePutHonoursCancellation(t *testing.T) {
	store, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	locator := Locator{Namespace: testNamespace, Key: "cancelled"}
	if _, err := store.Put(ctx, locator, strings.NewReader("data"), PutOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := store.Stat(context.Background(), locator); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cancelled put must not leave an entry, got %v", err)
	}
}

func TestStoreConcurrentPutsSameKey(t *testing.T) {
	store, _ := newTestStore(t)
	locator := Locator{Namespace: testNamespace, Key: "race"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Put(context.Background(), locator, strings.NewReader("same"), PutOptions{}); err != nil {
				t.Errorf("put: %v", err)
			}
		}()
	}
	wg.Wait()

	entry, err := store.Stat(context.Background(), locator)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if entry.SizeBytes != 4 {
		t.Fatalf("size mismatch: %d", entry.SizeBytes)
	}
	if len(store.(*blobStore).writers) != 0 {
		t.Fatalf("writer locks should be released")
	}
}

// newTestStore 返回基于内存文件系统的 Store。
func newTestStore(t *testing.T) (Store, afero.Fs) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	store, err := NewStore(fsys, "/srv/cache")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store, fsys
}
