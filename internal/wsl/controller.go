package wsl

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"

	"github.com/Vampire/setup-wsl-sub000/internal/config"
	"github.com/Vampire/setup-wsl-sub000/internal/distribution"
	"github.com/Vampire/setup-wsl-sub000/internal/host"
	"github.com/Vampire/setup-wsl-sub000/internal/logging"
	"github.com/Vampire/setup-wsl-sub000/internal/retry"
)

const (
	notInstalledMarker    = "not installed"
	upgradeMarker         = "finishing an upgrade"
	kernelUpdateAttempts  = 10
	setDefaultVersionFlag = "--set-default-version"
	wslConfPath           = "/etc/wsl.conf"
)

// Controller 实现 WSL 生命周期的各个步骤，每一步都先判断是否已经满足。
type Controller struct {
	Client       *Client
	Host         config.HostEnv
	PollInterval time.Duration
	PollTimeout  time.Duration
	Logger       logrus.FieldLogger
}

// NewController 使用配置中的轮询参数构造 Controller。
func NewController(client *Client, cfg *config.Config, logger logrus.FieldLogger) *Controller {
	return &Controller{
		Client:       client,
		Host:         cfg.Host,
		PollInterval: cfg.Global.PollInterval.DurationValue(),
		PollTimeout:  cfg.Global.InstallPollTimeout.DurationValue(),
		Logger:       logger,
	}
}

// Shell 返回在 dist 内以 root 执行命令的 distribution.Shell。
func (c *Controller) Shell(dist *distribution.Distribution) distribution.Shell {
	return &distShell{client: c.Client, wslID: dist.WSLID}
}

// EnsureWSL 在宿主尚未安装 WSL 时触发安装并等待完成。等待超时只是提示性的。
func (c *Controller) EnsureWSL(ctx context.Context) error {
	status, err := c.Client.Status(ctx)
	if err != nil {
		return err
	}
	if !mentions(status, notInstalledMarker) {
		return nil
	}

	c.Logger.Info("Installing WSL")
	if _, err := c.Client.wsl(ctx, "--install", "--no-distribution"); err != nil {
		return fmt.Errorf("install WSL: %w", err)
	}
	_, err = retry.Poll(ctx, c.Client.Status, func(status string) bool {
		return mentions(status, notInstalledMarker)
	}, c.PollInterval, c.PollTimeout)
	c.Client.resetHelp()
	return err
}

// IsInstalled 在发行版内执行 true，非零退出码即视为未安装。
func (c *Controller) IsInstalled(ctx context.Context, dist *distribution.Distribution) (bool, error) {
	_, err := c.Client.wsl(ctx, "--distribution", dist.WSLID, "true")
	if err == nil {
		return true, nil
	}
	if isExit(err) {
		return false, nil
	}
	return false, err
}

// NegotiateVersion 校验宿主是否支持请求的 WSL 协议版本。
func (c *Controller) NegotiateVersion(ctx context.Context, v config.WSLVersion) error {
	if !v.IsSet() || v == 1 {
		return nil
	}
	supported, err := c.Client.Supports(ctx, setDefaultVersionFlag)
	if err != nil {
		return err
	}
	if !supported {
		return fmt.Errorf("%w: WSL version %d is not supported by this host, only WSL version 1 is available", config.ErrConfiguration, v)
	}
	if v > 2 {
		c.Logger.Warnf("WSL version %d is not tested, use at your own risk", v)
	}
	return nil
}

func (c *Controller) setDefaultVersion(ctx context.Context, v config.WSLVersion) error {
	if !v.IsSet() {
		return nil
	}
	supported, err := c.Client.Supports(ctx, setDefaultVersionFlag)
	if err != nil || !supported {
		return err
	}
	_, err = c.Client.wsl(ctx, setDefaultVersionFlag, fmt.Sprint(int(v)))
	return err
}

// needsKernelRefresh 标识安装后需要刷新 WSL 内核的托管镜像。
func (c *Controller) needsKernelRefresh() bool {
	return c.Host.ImageOS == "win25" && c.Host.RunnerEnvironment == "github-hosted"
}

func (c *Controller) refreshKernel(ctx context.Context) error {
	err := retry.Do(ctx, c.Logger, kernelUpdateAttempts, func(ctx context.Context) error {
		_, err := c.Client.wsl(ctx, "--update", "--web-download")
		return err
	})
	if err != nil {
		return fmt.Errorf("update WSL: %w", err)
	}
	_, err = retry.Poll(ctx, c.Client.Status, func(status string) bool {
		return mentions(status, upgradeMarker)
	}, c.PollInterval, c.PollTimeout)
	return err
}

// InstallDistribution 先设置默认版本，使新实例以该版本创建，然后非交互地运行安装程序。
func (c *Controller) InstallDistribution(ctx context.Context, dist *distribution.Distribution, dir string, v config.WSLVersion) error {
	logger := c.Logger.WithFields(logging.DistributionFields(dist.UserID, dist.WSLID, "install"))
	if err := c.setDefaultVersion(ctx, v); err != nil {
		return fmt.Errorf("set default WSL version: %w", err)
	}
	if c.needsKernelRefresh() {
		logger.Info("Updating WSL kernel")
		if err := c.refreshKernel(ctx); err != nil {
			return err
		}
	}

	logger.Infof("Installing %s", dist.DisplayName)
	_, err := c.Client.runner.Run(ctx, host.Command{
		Name:  filepath.Join(dir, dist.InstallerFile),
		Args:  []string{"install", "--root"},
		Stdin: strings.NewReader(""),
	})
	if err != nil {
		return fmt.Errorf("install %s: %w", dist.UserID, err)
	}
	return nil
}

// SetDefault 把 dist 设为默认发行版。
func (c *Controller) SetDefault(ctx context.Context, dist *distribution.Distribution) error {
	_, err := c.Client.dispatch(ctx, verbSetDefault, dist.WSLID)
	return err
}

// Terminate 终止 dist 的运行实例，使下次启动重新读取 wsl.conf。
func (c *Controller) Terminate(ctx context.Context, dist *distribution.Distribution) error {
	_, err := c.Client.dispatch(ctx, verbTerminate, dist.WSLID)
	return err
}

// ListVerbose 返回 `wsl --list --verbose` 的输出；旧版宿主返回空字符串。
func (c *Controller) ListVerbose(ctx context.Context) (string, error) {
	result, err := c.Client.dispatch(ctx, verbListVerbose)
	return result.Stdout, err
}

// ReconcileConfig 覆盖写入 /etc/wsl.conf 并终止实例。content 为空时什么都不做。
func (c *Controller) ReconcileConfig(ctx context.Context, dist *distribution.Distribution, content string) error {
	if content == "" {
		return nil
	}
	logger := c.Logger.WithFields(logging.DistributionFields(dist.UserID, dist.WSLID, "wsl-conf"))
	if _, err := ini.Load([]byte(content)); err != nil {
		logger.WithError(err).Warn("wsl-conf does not look like valid INI content")
	}
	if strings.Contains(content, "'") {
		logger.Warn("wsl-conf contains single quotes which will break the generated echo command")
	}

	err := c.Shell(dist).Exec(ctx, distribution.ExecRequest{
		Args: []string{"sh", "-c", fmt.Sprintf("echo '%s' > %s", content, wslConfPath)},
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", wslConfPath, err)
	}
	return c.Terminate(ctx, dist)
}

// HasBash 判断发行版内是否有 bash。
func (c *Controller) HasBash(ctx context.Context, dist *distribution.Distribution) (bool, error) {
	return c.succeeds(ctx, dist, "sh", "-c", "command -v bash")
}

// EnsureUser 在用户不存在时以占位密码创建。
func (c *Controller) EnsureUser(ctx context.Context, dist *distribution.Distribution, user string) error {
	exists, err := c.succeeds(ctx, dist, "id", "-u", user)
	if err != nil || exists {
		return err
	}
	c.Logger.WithFields(logging.DistributionFields(dist.UserID, dist.WSLID, "user")).Infof("Creating user %s", user)
	return dist.CreateUser(ctx, c.Shell(dist), user)
}

func (c *Controller) succeeds(ctx context.Context, dist *distribution.Distribution, args ...string) (bool, error) {
	err := c.Shell(dist).Exec(ctx, distribution.ExecRequest{Args: args})
	if err == nil {
		return true, nil
	}
	if isExit(err) {
		return false, nil
	}
	return false, err
}

// mentions 忽略大小写与 wsl.exe 输出中残留的 NUL 字节。
func mentions(output, marker string) bool {
	cleaned := strings.ReplaceAll(output, "\x00", "")
	return strings.Contains(strings.ToLower(cleaned), marker)
}
