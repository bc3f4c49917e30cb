// Package toolcache implements the durable runner tool cache:
//
//	<root>/<name>/<semver>/<arch>/        # cached directory
//	<root>/<name>/<semver>/<arch>.complete # marker written last
//
// A directory only counts as cached once its marker exists, so an interrupted
// copy is never returned.
package toolcache

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-version"
	"github.com/spf13/afero"
)

// Cache 以 afero.Fs 为后端，方便测试使用内存文件系统。
type Cache struct {
	fs   afero.Fs
	root string
	arch string
}

// New 构造工具缓存。arch 为空时使用 x64。
func New(fs afero.Fs, root, arch string) (*Cache, error) {
	if root == "" {
		return nil, errors.New("tool cache root required")
	}
	if arch == "" {
		arch = "x64"
	}
	return &Cache{fs: fs, root: root, arch: strings.ToLower(arch)}, nil
}

// Find 返回 name+ver 对应的缓存目录；未命中时返回 false。
func (c *Cache) Find(name, ver string) (string, bool) {
	dir, err := c.dir(name, ver)
	if err != nil {
		return "", false
	}
	if ok, _ := afero.Exists(c.fs, dir+".complete"); !ok {
		return "", false
	}
	if ok, _ := afero.DirExists(c.fs, dir); !ok {
		return "", false
	}
	return dir, true
}

// CacheDir 把 src 复制进缓存并写入完成标记，返回缓存目录。
func (c *Cache) CacheDir(src, name, ver string) (string, error) {
	dir, err := c.dir(name, ver)
	if err != nil {
		return "", err
	}
	if err := c.fs.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("clear tool cache %s: %w", dir, err)
	}
	if err := c.fs.Remove(dir + ".complete"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("clear tool cache marker: %w", err)
	}
	if err := CopyTree(c.fs, src, dir); err != nil {
		return "", fmt.Errorf("populate tool cache %s: %w", dir, err)
	}
	if err := afero.WriteFile(c.fs, dir+".complete", nil, 0o644); err != nil {
		return "", fmt.Errorf("mark tool cache %s complete: %w", dir, err)
	}
	return dir, nil
}

func (c *Cache) dir(name, ver string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid tool name %q", name)
	}
	parsed, err := version.NewSemver(ver)
	if err != nil {
		return "", fmt.Errorf("invalid tool version %q: %w", ver, err)
	}
	return filepath.Join(c.root, name, semver(parsed), c.arch), nil
}

func semver(v *version.Version) string {
	segments := v.Segments()
	for len(segments) < 3 {
		segments = append(segments, 0)
	}
	return fmt.Sprintf("%d.%d.%d", segments[0], segments[1], segments[2])
}

// CopyTree 递归复制目录，保留文件权限。
func CopyTree(fs afero.Fs, src, dst string) error {
	return afero.Walk(fs, src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return fs.MkdirAll(target, 0o755)
		}
		return copyFile(fs, path, target, info.Mode().Perm())
	})
}

func copyFile(fs afero.Fs, src, dst string, perm os.FileMode) error {
	in, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := fs.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
