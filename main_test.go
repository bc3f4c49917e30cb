package main

import (
	"errors"
	"runtime"
	"strings"
	"testing"
)

func TestResolveConfigPathPriority(t *testing.T) {
	t.Setenv(configEnv, "/tmp/env.toml")

	if path := resolveConfigPath(""); path != "/tmp/env.toml" {
		t.Fatalf("应使用环境变量，得到 %s", path)
	}
	if path := resolveConfigPath("/tmp/flag.toml"); path != "/tmp/flag.toml" {
		t.Fatalf("flag 应高于环境变量，得到 %s", path)
	}
}

func TestRunCheckConfigSuccess(t *testing.T) {
	clearInputEnv(t)
	out, _ := captureOutput(t)
	code := run(cliOptions{configPath: configFixture(t, "valid.toml"), checkOnly: true})
	if code != 0 {
		t.Fatalf("期望退出码 0，得到 %d (stdout=%s)", code, out.String())
	}
}

func TestRunCheckConfigFailure(t *testing.T) {
	clearInputEnv(t)
	out, _ := captureOutput(t)
	code := run(cliOptions{configPath: configFixture(t, "invalid.toml"), checkOnly: true})
	if code != 1 {
		t.Fatalf("无效配置应返回 1，得到 %d", code)
	}
	text := out.String()
	if !strings.HasPrefix(text, "::error::") {
		t.Fatalf("错误应以 ::error:: 输出，得到 %q", text)
	}
	if !strings.Contains(text, "Valid values: Alpine, Debian, kali-linux") {
		t.Fatalf("错误应列出全部合法发行版，得到 %q", text)
	}
}

func TestRunVersionOutput(t *testing.T) {
	out, _ := captureOutput(t)
	code := run(cliOptions{showVersion: true})
	if code != 0 {
		t.Fatalf("version 模式应成功退出，得到 %d", code)
	}
	if !strings.Contains(out.String(), "setup-wsl") {
		t.Fatalf("version 输出应包含 setup-wsl 标识")
	}
}

func TestExecuteVersionSubcommand(t *testing.T) {
	out, _ := captureOutput(t)
	if code := execute([]string{"version"}); code != 0 {
		t.Fatalf("version 子命令应成功，得到 %d", code)
	}
	if !strings.Contains(out.String(), "setup-wsl") {
		t.Fatalf("version 子命令应输出版本信息")
	}
}

func TestExecuteRejectsUnknownFlag(t *testing.T) {
	out, _ := captureOutput(t)
	if code := execute([]string{"--bogus"}); code != 1 {
		t.Fatalf("未知参数应返回 1，得到 %d", code)
	}
	line := out.String()
	if !strings.HasPrefix(line, "::error::") || !strings.Contains(line, "bogus") {
		t.Fatalf("未知参数应以 ::error:: 报告，得到 %q", line)
	}
}

func TestExecuteRejectsPositionalArgs(t *testing.T) {
	out, _ := captureOutput(t)
	if code := execute([]string{"version", "extra"}); code != 1 {
		t.Fatalf("多余参数应返回 1，得到 %d", code)
	}
	if !strings.HasPrefix(out.String(), "::error::") {
		t.Fatalf("多余参数应以 ::error:: 报告，得到 %q", out.String())
	}
}

func TestExecuteFlagOverridesConfigFile(t *testing.T) {
	clearInputEnv(t)
	captureOutput(t)
	code := execute([]string{"--config", configFixture(t, "valid.toml"), "--check-config", "--distribution", "bogus"})
	if code != 1 {
		t.Fatalf("flag 中的未知发行版应导致失败，得到 %d", code)
	}
}

func TestRunFailsOffWindows(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("只在非 Windows 上验证")
	}
	clearInputEnv(t)
	t.Setenv("INPUT_DISTRIBUTION", "Debian")
	t.Setenv("RUNNER_TEMP", t.TempDir())
	t.Setenv("RUNNER_TOOL_CACHE", t.TempDir())
	t.Setenv("GITHUB_OUTPUT", "")
	t.Setenv("GITHUB_PATH", "")
	out, _ := captureOutput(t)

	if code := run(cliOptions{}); code != 1 {
		t.Fatalf("非 Windows 宿主应失败，得到 %d", code)
	}
	if !strings.Contains(out.String(), "'runs-on'") {
		t.Fatalf("错误应提示 runs-on 设置，得到 %q", out.String())
	}
}

func TestFailEscapesWorkflowCommand(t *testing.T) {
	out, _ := captureOutput(t)
	if code := fail(nil, errors.New("first line\nsecond 100%")); code != 1 {
		t.Fatalf("fail 应返回 1，得到 %d", code)
	}
	if got := out.String(); got != "::error::first line%0Asecond 100%25\n" {
		t.Fatalf("unexpected error line %q", got)
	}
}
