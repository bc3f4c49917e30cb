package wsl

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Vampire/setup-wsl-sub000/internal/host"
)

// verb 描述一个可在新旧两种入口之间分派的操作。legacy 为空表示旧版没有等价命令。
type verb struct {
	probe  string
	modern []string
	legacy []string
}

var (
	verbSetDefault  = verb{probe: "--set-default", modern: []string{"--set-default"}, legacy: []string{"/setdefault"}}
	verbTerminate   = verb{probe: "--terminate", modern: []string{"--terminate"}, legacy: []string{"/terminate"}}
	verbListVerbose = verb{probe: "--verbose", modern: []string{"--list", "--verbose"}}
)

// Client 通过 host.Runner 调用 wsl.exe / wslconfig.exe。
type Client struct {
	runner host.Runner
	logger logrus.FieldLogger

	helpMu     sync.Mutex
	helpCached bool
	help       string
}

// NewClient 构造 Client。
func NewClient(runner host.Runner, logger logrus.FieldLogger) *Client {
	return &Client{runner: runner, logger: logger}
}

// Help 返回 `wsl --help` 的输出，成功后缓存，直到 resetHelp。旧版 wsl.exe 以非零码退出，忽略之。
func (c *Client) Help(ctx context.Context) (string, error) {
	c.helpMu.Lock()
	defer c.helpMu.Unlock()
	if c.helpCached {
		return c.help, nil
	}
	result, err := c.wsl(ctx, "--help")
	if err != nil && !isExit(err) {
		return "", err
	}
	c.help = result.Stdout + result.Stderr
	c.helpCached = true
	return c.help, nil
}

// resetHelp 丢弃缓存的帮助文本。安装 WSL 后 wsl.exe 会换成完整版本。
func (c *Client) resetHelp() {
	c.helpMu.Lock()
	c.helpCached = false
	c.help = ""
	c.helpMu.Unlock()
}

// Supports 判断帮助文本是否包含 flag。
func (c *Client) Supports(ctx context.Context, flag string) (bool, error) {
	help, err := c.Help(ctx)
	if err != nil {
		return false, err
	}
	return strings.Contains(help, flag), nil
}

// Status 返回 `wsl --status` 的输出，不关心退出码。
func (c *Client) Status(ctx context.Context) (string, error) {
	result, err := c.wsl(ctx, "--status")
	if err != nil && !isExit(err) {
		return "", err
	}
	return result.Stdout + result.Stderr, nil
}

func (c *Client) wsl(ctx context.Context, args ...string) (host.Result, error) {
	return c.runner.Run(ctx, host.Command{Name: host.WSLExecutable, Args: args})
}

// dispatch 按帮助文本选择新版 wsl 或旧版 wslconfig；两者都不适用时静默跳过。
func (c *Client) dispatch(ctx context.Context, v verb, args ...string) (host.Result, error) {
	modern, err := c.Supports(ctx, v.probe)
	if err != nil {
		return host.Result{}, err
	}
	if modern {
		return c.wsl(ctx, append(append([]string(nil), v.modern...), args...)...)
	}
	if len(v.legacy) == 0 {
		c.logger.Debugf("%s is not supported by this host, skipping", strings.Join(v.modern, " "))
		return host.Result{}, nil
	}
	return c.runner.Run(ctx, host.Command{
		Name: host.WSLConfigExecutable,
		Args: append(append([]string(nil), v.legacy...), args...),
	})
}

func isExit(err error) bool {
	var exitErr *host.ExitError
	return errors.As(err, &exitErr)
}
