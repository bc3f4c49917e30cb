package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/Vampire/setup-wsl-sub000/internal/distribution"
	"github.com/Vampire/setup-wsl-sub000/internal/logging"
	"github.com/Vampire/setup-wsl-sub000/internal/remotecache"
	"github.com/Vampire/setup-wsl-sub000/internal/toolcache"
	"github.com/Vampire/setup-wsl-sub000/internal/transport"
)

// ErrInstallerNotFound 表示下载并解压后仍找不到安装程序。
var ErrInstallerNotFound = errors.New("installer not found")

// Options 汇总 Manager 的依赖，Remote 与 Resolver 可以为空。
type Options struct {
	Fs       afero.Fs
	Tools    *toolcache.Cache
	Remote   *remotecache.Client
	HTTP     *retryablehttp.Client
	Resolver distribution.URLResolver
	TempDir  string
	Logger   logrus.FieldLogger
}

// Manager 负责把发行版解析为包含安装程序的本地目录。
type Manager struct {
	fs       afero.Fs
	tools    *toolcache.Cache
	remote   *remotecache.Client
	http     *retryablehttp.Client
	resolver distribution.URLResolver
	tempDir  string
	logger   logrus.FieldLogger

	mu   sync.Mutex
	memo map[string]string
}

// NewManager 校验依赖并构造 Manager。
func NewManager(opts Options) (*Manager, error) {
	if opts.Tools == nil {
		return nil, errors.New("tool cache required")
	}
	if opts.HTTP == nil {
		return nil, errors.New("http client required")
	}
	if opts.TempDir == "" {
		return nil, errors.New("temp dir required")
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Manager{
		fs:       opts.Fs,
		tools:    opts.Tools,
		remote:   opts.Remote,
		http:     opts.HTTP,
		resolver: opts.Resolver,
		tempDir:  opts.TempDir,
		logger:   opts.Logger,
		memo:     make(map[string]string),
	}, nil
}

// Resolve 返回包含 dist.InstallerFile 的目录。同一 Manager 对同一 name+version
// 只解析一次。useCache 控制是否读写远端内容缓存。
func (m *Manager) Resolve(ctx context.Context, dist *distribution.Distribution, useCache bool) (string, error) {
	name, ver := dist.CacheName(), dist.SemVer()
	memoKey := name + "@" + ver

	m.mu.Lock()
	defer m.mu.Unlock()
	if dir, ok := m.memo[memoKey]; ok {
		return dir, nil
	}

	dir, err := m.resolve(ctx, dist, useCache)
	if err != nil {
		return "", err
	}
	m.memo[memoKey] = dir
	return dir, nil
}

func (m *Manager) resolve(ctx context.Context, dist *distribution.Distribution, useCache bool) (string, error) {
	name, ver := dist.CacheName(), dist.SemVer()
	key := distribution.CacheKey(dist)
	logger := m.logger.WithFields(logging.DistributionFields(dist.UserID, dist.WSLID, "artifact"))

	if dir, ok := m.tools.Find(name, ver); ok {
		logger.WithFields(logging.CacheFields("tool", key, true)).Debug("installer found in tool cache")
		return dir, nil
	}

	if useCache && m.remote.Configured() {
		if dir, ok := m.restore(ctx, logger, dist, key); ok {
			return dir, nil
		}
	}

	extracted, err := m.download(ctx, logger, dist)
	if err != nil {
		return "", err
	}

	cached, err := m.tools.CacheDir(extracted, name, ver)
	if err != nil {
		return "", err
	}

	if useCache && m.remote.Configured() {
		if err := m.remote.Save(ctx, key, cached); err != nil {
			logger.WithError(err).Warnf("Failed to save %s to the cache, continuing without it", key)
		} else {
			logger.WithFields(logging.CacheFields("remote", key, false)).Info("distribution saved to cache")
		}
	}
	return cached, nil
}

// restore 只有在缓存命中且安装程序确实存在时才算命中。
func (m *Manager) restore(ctx context.Context, logger logrus.FieldLogger, dist *distribution.Distribution, key string) (string, bool) {
	dir := m.placeholder()
	hit, err := m.remote.Restore(ctx, key, dir)
	if err != nil {
		logger.WithError(err).Warnf("Failed to restore %s from the cache, downloading instead", key)
		return "", false
	}
	if !hit {
		logger.WithFields(logging.CacheFields("remote", key, false)).Debug("cache miss")
		return "", false
	}
	if ok, _ := afero.Exists(m.fs, filepath.Join(dir, dist.InstallerFile)); !ok {
		logger.WithFields(logging.CacheFields("remote", key, true)).
			Debugf("cache entry lacks %s, treating as miss", dist.InstallerFile)
		return "", false
	}
	logger.WithFields(logging.CacheFields("remote", key, true)).Info("distribution restored from cache")
	return dir, true
}

func (m *Manager) download(ctx context.Context, logger logrus.FieldLogger, dist *distribution.Distribution) (string, error) {
	url, err := dist.DownloadURL(ctx, m.resolver)
	if err != nil {
		return "", fmt.Errorf("resolve download url for %s: %w", dist.UserID, err)
	}
	logger.Infof("Downloading %s", url)

	if err := m.fs.MkdirAll(m.tempDir, 0o755); err != nil {
		return "", err
	}
	file := m.placeholder()
	out, err := m.fs.OpenFile(file, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}
	written, err := transport.Fetch(ctx, m.http, url, out)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", err
	}
	logger.Debugf("downloaded %d bytes", written)

	archive := file + ".zip"
	if err := m.fs.Rename(file, archive); err != nil {
		return "", fmt.Errorf("rename download: %w", err)
	}

	dir := m.placeholder()
	if err := Extract(m.fs, archive, dir); err != nil {
		return "", fmt.Errorf("extract %s: %w", url, err)
	}
	if ok, _ := afero.Exists(m.fs, filepath.Join(dir, dist.InstallerFile)); ok {
		return dir, nil
	}
	return m.scanNested(logger, dist, dir)
}

// scanNested 依次解压顶层的 appx/appxbundle 包，返回首个包含安装程序的目录。
func (m *Manager) scanNested(logger logrus.FieldLogger, dist *distribution.Distribution, dir string) (string, error) {
	entries, err := afero.ReadDir(m.fs, dir)
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		if entry.IsDir() || !IsPrimaryPackage(entry.Name()) {
			continue
		}
		nested := m.placeholder()
		if err := Extract(m.fs, filepath.Join(dir, entry.Name()), nested); err != nil {
			logger.WithError(err).Debugf("skip %s", entry.Name())
			continue
		}
		if ok, _ := afero.Exists(m.fs, filepath.Join(nested, dist.InstallerFile)); ok {
			logger.Debugf("installer found in %s", entry.Name())
			return nested, nil
		}
	}
	return "", fmt.Errorf("%w: '%s' for distribution '%s'", ErrInstallerNotFound, dist.InstallerFile, dist.UserID)
}

func (m *Manager) placeholder() string {
	return filepath.Join(m.tempDir, uuid.NewString())
}
