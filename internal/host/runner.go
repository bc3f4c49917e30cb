// Package host wraps the host operating system: process execution, output
// decoding for wsl.exe and the precondition checks run before anything else.
package host

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
	"mvdan.cc/sh/v3/syntax"
)

// Command 描述一次外部进程调用。Stdin 为 nil 时进程读到空输入。
type Command struct {
	Name  string
	Args  []string
	Env   []string
	Stdin io.Reader
}

// String 以 shell 转义形式展示命令，仅用于日志。
func (c Command) String() string {
	return FormatCommand(c.Name, c.Args...)
}

// Result 保存已解码的进程输出。
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner 执行外部命令。实现需要在非零退出码时返回 *ExitError，同时保留 Result。
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExitError 表示进程以非零退出码结束。
type ExitError struct {
	Command string
	Code    int
	Stderr  string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("command `%s` exited with code %d", e.Command, e.Code)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

// ExitCode 提取 err 链上的退出码；err 为 nil 时返回 0，非进程错误返回 -1。
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return -1
}

// ExecRunner 通过 os/exec 启动真实进程，并把输出同时转发到 Stream（若设置）。
type ExecRunner struct {
	Logger logrus.FieldLogger
	Stream io.Writer
}

// NewExecRunner 构造默认 Runner，进程输出实时写入 stream。
func NewExecRunner(logger logrus.FieldLogger, stream io.Writer) *ExecRunner {
	return &ExecRunner{Logger: logger, Stream: stream}
}

func (r *ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	// 新版 wsl.exe 在该变量存在时输出 UTF-8。
	c.Env = append(append(os.Environ(), "WSL_UTF8=1"), cmd.Env...)
	c.Stdin = cmd.Stdin

	var stdout, stderr bytes.Buffer
	if r.Stream != nil {
		c.Stdout = io.MultiWriter(&stdout, decodingWriter{r.Stream})
		c.Stderr = io.MultiWriter(&stderr, decodingWriter{r.Stream})
	} else {
		c.Stdout = &stdout
		c.Stderr = &stderr
	}

	if r.Logger != nil {
		r.Logger.WithField("action", "exec").Debugf("[command]%s", cmd.String())
	}

	err := c.Run()
	result := Result{
		Stdout: DecodeOutput(stdout.Bytes()),
		Stderr: DecodeOutput(stderr.Bytes()),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, &ExitError{Command: cmd.String(), Code: result.ExitCode, Stderr: result.Stderr}
		}
		return result, fmt.Errorf("run `%s`: %w", cmd.String(), err)
	}
	return result, nil
}

type decodingWriter struct {
	w io.Writer
}

func (d decodingWriter) Write(p []byte) (int, error) {
	if _, err := io.WriteString(d.w, DecodeOutput(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// FormatCommand 把命令渲染为可复制粘贴的 bash 命令行。
func FormatCommand(name string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	for _, word := range append([]string{name}, args...) {
		quoted, err := syntax.Quote(word, syntax.LangBash)
		if err != nil {
			quoted = fmt.Sprintf("%q", word)
		}
		parts = append(parts, quoted)
	}
	return strings.Join(parts, " ")
}
