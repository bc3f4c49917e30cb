package artifact

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"
)

var (
	packagePattern = glob.MustCompile("*.{appx,appxbundle}")
	variantPattern = regexp.MustCompile(`_(scale-(100|125|150|400)|ARM64)\.appx(bundle)?$`)
)

// IsPrimaryPackage 判断文件名是否为需要继续解压的主包，排除缩放与 ARM64 变体。
func IsPrimaryPackage(name string) bool {
	return packagePattern.Match(name) && !variantPattern.MatchString(name)
}

// Extract 把 zip 格式的 archive 解压到 dir，拒绝逃逸出 dir 的条目。
func Extract(fs afero.Fs, archive, dir string) error {
	f, err := fs.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	reader, err := zip.NewReader(f, info.Size())
	if err != nil {
		return err
	}

	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	root := filepath.Clean(dir) + string(os.PathSeparator)
	for _, file := range reader.File {
		target := filepath.Join(dir, filepath.FromSlash(file.Name))
		if !strings.HasPrefix(target, root) {
			return fmt.Errorf("zip entry %q escapes %s", file.Name, dir)
		}
		if file.FileInfo().IsDir() {
			if err := fs.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := extractFile(fs, file, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(fs afero.Fs, file *zip.File, target string) error {
	if err := fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	in, err := file.Open()
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := fs.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o755)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
