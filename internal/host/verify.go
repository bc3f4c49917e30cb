package host

import (
	"fmt"

	"github.com/Vampire/setup-wsl-sub000/internal/config"
)

var (
	// ErrNotWindows 表示当前 runner 不是 Windows。
	ErrNotWindows = fmt.Errorf("%w: Windows Subsystem for Linux can only be set up on Windows runners, please check the 'runs-on' setting of your job", config.ErrConfiguration)
	// ErrWSLMissing 表示 PATH 上找不到 wsl.exe 与 wslconfig.exe。
	ErrWSLMissing = fmt.Errorf("%w: Windows Subsystem for Linux is not available on this runner (neither wsl.exe nor wslconfig.exe is on the PATH), please check the 'runs-on' setting of your job", config.ErrConfiguration)
)

// WSL 的两个命令行入口。
const (
	WSLExecutable       = "wsl.exe"
	WSLConfigExecutable = "wslconfig.exe"
)

// LookPathFunc 与 exec.LookPath 签名一致，便于测试替换。
type LookPathFunc func(file string) (string, error)

// Verify 在做任何事情之前确认宿主是 Windows 且至少有一个 WSL 入口可用。
func Verify(goos string, lookPath LookPathFunc) error {
	if goos != "windows" {
		return ErrNotWindows
	}
	for _, exe := range []string{WSLExecutable, WSLConfigExecutable} {
		if _, err := lookPath(exe); err == nil {
			return nil
		}
	}
	return ErrWSLMissing
}
