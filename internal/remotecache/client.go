// Package remotecache is the client of the run-scoped content cache. Entries
// are whole directories, transferred as gzip-compressed tar streams under an
// opaque key.
package remotecache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// ErrUnavailable 表示未配置缓存服务或服务当前不可达。
var ErrUnavailable = errors.New("remote cache unavailable")

// Client 通过 HTTP 访问内容缓存服务。
type Client struct {
	http    *retryablehttp.Client
	baseURL string
	fs      afero.Fs
	logger  logrus.FieldLogger
}

// New 构造客户端；baseURL 为空时所有操作返回 ErrUnavailable。
func New(client *retryablehttp.Client, baseURL string, fs afero.Fs, logger logrus.FieldLogger) *Client {
	return &Client{
		http:    client,
		baseURL: strings.TrimRight(baseURL, "/"),
		fs:      fs,
		logger:  logger,
	}
}

// Configured 表示是否配置了缓存服务地址。
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != ""
}

// Available 探测 /healthz，任何错误都视为不可用。
func (c *Client) Available(ctx context.Context) bool {
	if !c.Configured() {
		return false
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WithError(err).Debug("remote cache health check failed")
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

func (c *Client) entryURL(key string) string {
	return c.baseURL + "/cache/" + url.PathEscape(key)
}

// Restore 把 key 对应的目录解包到 dir。未命中时返回 false 且不报错。
func (c *Client) Restore(ctx context.Context, key, dir string) (bool, error) {
	if !c.Configured() {
		return false, ErrUnavailable
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.entryURL(key), nil)
	if err != nil {
		return false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode != http.StatusOK:
		return false, fmt.Errorf("restore %s: unexpected HTTP %d", key, resp.StatusCode)
	}

	if err := c.fs.MkdirAll(dir, 0o755); err != nil {
		return false, err
	}
	if err := Unpack(c.fs, resp.Body, dir); err != nil {
		return false, fmt.Errorf("restore %s: %w", key, err)
	}
	return true, nil
}

// Save 把 dir 打包到临时文件后上传到 key，重试时从文件头重放。
func (c *Client) Save(ctx context.Context, key, dir string) error {
	if !c.Configured() {
		return ErrUnavailable
	}
	archive, size, err := c.packToTemp(dir)
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	defer func() {
		archive.Close()
		_ = c.fs.Remove(archive.Name())
	}()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPut, c.entryURL(key), io.ReadSeeker(archive))
	if err != nil {
		return err
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", ContentType)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("save %s: unexpected HTTP %d", key, resp.StatusCode)
	}
	return nil
}

func (c *Client) packToTemp(dir string) (afero.File, int64, error) {
	tempDir := os.TempDir()
	if err := c.fs.MkdirAll(tempDir, 0o755); err != nil {
		return nil, 0, err
	}
	f, err := afero.TempFile(c.fs, tempDir, "setup-wsl-cache-*.tar.gz")
	if err != nil {
		return nil, 0, err
	}
	discard := func(err error) (afero.File, int64, error) {
		f.Close()
		_ = c.fs.Remove(f.Name())
		return nil, 0, err
	}
	if err := Pack(c.fs, dir, f); err != nil {
		return discard(err)
	}
	size, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return discard(err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return discard(err)
	}
	return f, size, nil
}
