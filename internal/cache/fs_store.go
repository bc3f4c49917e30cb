package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
)

const digestSuffix = ".sha256"

// NewStore 在 fsys 的 basePath 下建立存储根目录。
func NewStore(fsys afero.Fs, basePath string) (Store, error) {
	if fsys == nil {
		return nil, errors.New("filesystem required")
	}
	if basePath == "" {
		return nil, errors.New("storage path required")
	}
	if err := fsys.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage path: %w", err)
	}
	return &blobStore{
		fs:       fsys,
		basePath: filepath.Clean(basePath),
		writers:  make(map[string]*keyLock),
	}, nil
}

type blobStore struct {
	fs       afero.Fs
	basePath string

	mu      sync.Mutex
	writers map[string]*keyLock
}

type keyLock struct {
	sync.Mutex
	waiting int
}

func (s *blobStore) Get(ctx context.Context, locator Locator) (*ReadResult, error) {
	entry, err := s.Stat(ctx, locator)
	if err != nil {
		return nil, err
	}
	f, err := s.fs.Open(entry.FilePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ReadResult{Entry: *entry, Reader: f}, nil
}

func (s *blobStore) Stat(ctx context.Context, locator Locator) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	blobPath, err := s.blobPath(locator)
	if err != nil {
		return nil, err
	}

	info, err := s.fs.Stat(blobPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}

	digest, err := afero.ReadFile(s.fs, blobPath+digestSuffix)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read digest: %w", err)
	}

	return &Entry{
		Locator:   locator,
		FilePath:  blobPath,
		SizeBytes: info.Size(),
		Digest:    strings.TrimSpace(string(digest)),
		ModTime:   info.ModTime(),
	}, nil
}

func (s *blobStore) Put(ctx context.Context, locator Locator, body io.Reader, opts PutOptions) (*Entry, error) {
	blobPath, err := s.blobPath(locator)
	if err != nil {
		return nil, err
	}
	release := s.acquire(blobPath)
	defer release()

	dir := filepath.Dir(blobPath)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	// 旧摘要先删除，写入过程中读者看到的是缺失而不是错配。
	if err := s.fs.Remove(blobPath + digestSuffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	tmp, err := afero.TempFile(s.fs, dir, ".blob-*")
	if err != nil {
		return nil, err
	}
	tmpName := tmp.Name()

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(tmp, hasher), contextReader{ctx: ctx, r: body})
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = s.fs.Rename(tmpName, blobPath)
	}
	if err != nil {
		_ = s.fs.Remove(tmpName)
		return nil, err
	}

	modTime := opts.ModTime
	if modTime.IsZero() {
		modTime = time.Now().UTC()
	}
	if err := s.fs.Chtimes(blobPath, modTime, modTime); err != nil {
		return nil, err
	}

	digest := hex.EncodeToString(hasher.Sum(nil))
	if err := afero.WriteFile(s.fs, blobPath+digestSuffix, []byte(digest+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("write digest: %w", err)
	}

	return &Entry{
		Locator:   locator,
		FilePath:  blobPath,
		SizeBytes: written,
		Digest:    digest,
		ModTime:   modTime,
	}, nil
}

func (s *blobStore) Remove(ctx context.Context, locator Locator) error {
	blobPath, err := s.blobPath(locator)
	if err != nil {
		return err
	}
	release := s.acquire(blobPath)
	defer release()

	for _, name := range []string{blobPath + digestSuffix, blobPath} {
		if err := s.fs.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// acquire 串行化同一路径的写入，锁在最后一个等待者释放后回收。
func (s *blobStore) acquire(path string) func() {
	s.mu.Lock()
	lock := s.writers[path]
	if lock == nil {
		lock = &keyLock{}
		s.writers[path] = lock
	}
	lock.waiting++
	s.mu.Unlock()

	lock.Lock()
	return func() {
		lock.Unlock()
		s.mu.Lock()
		if lock.waiting--; lock.waiting == 0 {
			delete(s.writers, path)
		}
		s.mu.Unlock()
	}
}

// blobPath 把键转义为单个文件名，键里的分隔符不会产生子目录。
func (s *blobStore) blobPath(locator Locator) (string, error) {
	if locator.Namespace == "" || strings.ContainsAny(locator.Namespace, `/\.`) {
		return "", errors.New("invalid cache namespace")
	}
	if locator.Key == "" {
		return "", errors.New("cache key required")
	}
	name := url.QueryEscape(locator.Key)
	if name == "." || name == ".." || strings.HasSuffix(name, digestSuffix) {
		return "", fmt.Errorf("invalid cache key %q", locator.Key)
	}
	return filepath.Join(s.basePath, locator.Namespace, name), nil
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
