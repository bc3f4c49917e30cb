//go:build !windows

package host

import "runtime"

// OSVersion 在非 Windows 宿主上只返回平台名称。
func OSVersion() string {
	return runtime.GOOS + "/" + runtime.GOARCH
}
