//go:build windows

package host

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// OSVersion 返回宿主 Windows 的版本号，例如 10.0.20348。
func OSVersion() string {
	info := windows.RtlGetVersion()
	return fmt.Sprintf("%d.%d.%d", info.MajorVersion, info.MinorVersion, info.BuildNumber)
}
