package host

import (
	"bytes"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

// DecodeOutput 将 wsl.exe 的输出转为字符串。旧版本 wsl.exe 以 UTF-16LE 输出，
// 新版本在设置 WSL_UTF8 后输出 UTF-8，这里两种都接受。
func DecodeOutput(raw []byte) string {
	if !looksUTF16LE(raw) {
		return string(raw)
	}
	decoder := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
	decoded, err := decoder.Bytes(raw)
	if err != nil {
		return strings.ReplaceAll(string(raw), "\x00", "")
	}
	return string(decoded)
}

func looksUTF16LE(raw []byte) bool {
	if bytes.HasPrefix(raw, []byte{0xFF, 0xFE}) {
		return true
	}
	if len(raw) < 2 || len(raw)%2 != 0 {
		return false
	}
	zeros := 0
	for i := 1; i < len(raw); i += 2 {
		if raw[i] == 0 {
			zeros++
		}
	}
	return zeros*2 >= len(raw)/2
}
