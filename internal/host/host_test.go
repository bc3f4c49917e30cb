package host

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"

	"github.com/Vampire/setup-wsl-sub000/internal/config"
)

func lookPathFor(available ...string) LookPathFunc {
	return func(file string) (string, error) {
		for _, a := range available {
			if a == file {
				return `C:\Windows\System32\` + file, nil
			}
		}
		return "", errors.New("not found")
	}
}

func TestVerifyRejectsNonWindows(t *testing.T) {
	err := Verify("linux", lookPathFor(WSLExecutable))
	require.ErrorIs(t, err, ErrNotWindows)
	assert.ErrorIs(t, err, config.ErrConfiguration)
	assert.Contains(t, err.Error(), "runs-on")
}

func TestVerifyRequiresAnEntryPoint(t *testing.T) {
	err := Verify("windows", lookPathFor())
	require.ErrorIs(t, err, ErrWSLMissing)
	assert.ErrorIs(t, err, config.ErrConfiguration)

	assert.NoError(t, Verify("windows", lookPathFor(WSLConfigExecutable)))
	assert.NoError(t, Verify("windows", lookPathFor(WSLExecutable)))
}

func TestDecodeOutputHandlesUTF16(t *testing.T) {
	encoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().String("Default Version: 2\r\n")
	require.NoError(t, err)
	assert.Equal(t, "Default Version: 2\r\n", DecodeOutput([]byte(encoded)))
	assert.Equal(t, "plain utf-8", DecodeOutput([]byte("plain utf-8")))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, -1, ExitCode(errors.New("spawn failed")))
	wrapped := fmt.Errorf("install: %w", &ExitError{Command: "wsl", Code: 3})
	assert.Equal(t, 3, ExitCode(wrapped))
}

func TestFormatCommandQuotes(t *testing.T) {
	got := FormatCommand("wsl.exe", "--distribution", "Ubuntu-22.04", "sh", "-c", "echo 'x' > /etc/wsl.conf")
	assert.Equal(t, `wsl.exe --distribution Ubuntu-22.04 sh -c "echo 'x' > /etc/wsl.conf"`, got)
}
