package distribution

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Vampire/setup-wsl-sub000/internal/retry"
)

// PlaceholderPasswordHash 是新建用户使用的固定 crypt 哈希。runner 是一次性单租户环境，这里不追求保密。
const PlaceholderPasswordHash = "4qBD5NWD3IkbU"

// zypper 仓库不稳定，refresh 需要重试。
const zypperRefreshAttempts = 5

// Family 描述一类包管理器的具体命令。RefreshOverride 非空时替代默认的 refresh。
type Family struct {
	Name        string
	Env         []string
	RefreshArgs []string
	UpdateArgs  []string
	InstallArgs []string
	UserCommands func(user string) []ExecRequest

	RefreshOverride func(ctx context.Context, f *Family, sh Shell) error
	Logger          logrus.FieldLogger
}

func (f *Family) exec(ctx context.Context, sh Shell, args ...string) error {
	return sh.Exec(ctx, ExecRequest{Env: f.Env, Args: args})
}

// Refresh 同步仓库元数据。
func (f *Family) Refresh(ctx context.Context, sh Shell) error {
	if f.RefreshOverride != nil {
		return f.RefreshOverride(ctx, f, sh)
	}
	return f.refresh(ctx, sh)
}

func (f *Family) refresh(ctx context.Context, sh Shell) error {
	if err := f.exec(ctx, sh, f.RefreshArgs...); err != nil {
		return fmt.Errorf("%s refresh: %w", f.Name, err)
	}
	return nil
}

// Update 总是先 refresh。
func (f *Family) Update(ctx context.Context, sh Shell) error {
	if err := f.Refresh(ctx, sh); err != nil {
		return err
	}
	if err := f.exec(ctx, sh, f.UpdateArgs...); err != nil {
		return fmt.Errorf("%s update: %w", f.Name, err)
	}
	return nil
}

// Install 总是先 refresh，即使没有要安装的包。
func (f *Family) Install(ctx context.Context, sh Shell, packages ...string) error {
	if err := f.Refresh(ctx, sh); err != nil {
		return err
	}
	if len(packages) == 0 {
		return nil
	}
	args := append(append([]string(nil), f.InstallArgs...), packages...)
	if err := f.exec(ctx, sh, args...); err != nil {
		return fmt.Errorf("%s install %s: %w", f.Name, strings.Join(packages, " "), err)
	}
	return nil
}

// CreateUser 依次执行该家族的建用户命令。
func (f *Family) CreateUser(ctx context.Context, sh Shell, user string) error {
	for _, req := range f.UserCommands(user) {
		if len(req.Env) == 0 {
			req.Env = f.Env
		}
		if err := sh.Exec(ctx, req); err != nil {
			return fmt.Errorf("create user %s: %w", user, err)
		}
	}
	return nil
}

func useradd(user string) []ExecRequest {
	return []ExecRequest{{Args: []string{"useradd", "-m", "-p", PlaceholderPasswordHash, user}}}
}

// NewAptFamily 返回 Debian/Ubuntu 系的 apt-get 命令集。
func NewAptFamily() *Family {
	return &Family{
		Name:         "apt",
		Env:          []string{"DEBIAN_FRONTEND=noninteractive"},
		RefreshArgs:  []string{"apt-get", "update"},
		UpdateArgs:   []string{"apt-get", "upgrade", "--yes"},
		InstallArgs:  []string{"apt-get", "install", "--yes", "--no-install-recommends"},
		UserCommands: useradd,
	}
}

// NewZypperFamily 返回 openSUSE 的 zypper 命令集，refresh 带重试。
func NewZypperFamily(logger logrus.FieldLogger) *Family {
	return &Family{
		Name:         "zypper",
		RefreshArgs:  []string{"zypper", "--non-interactive", "refresh"},
		UpdateArgs:   []string{"zypper", "--non-interactive", "update"},
		InstallArgs:  []string{"zypper", "--non-interactive", "install"},
		UserCommands: useradd,
		Logger:       logger,
		RefreshOverride: func(ctx context.Context, f *Family, sh Shell) error {
			return retry.Do(ctx, f.Logger, zypperRefreshAttempts, func(ctx context.Context) error {
				return f.refresh(ctx, sh)
			})
		},
	}
}

// NewApkFamily 返回 Alpine 的 apk 命令集。
func NewApkFamily() *Family {
	return &Family{
		Name:        "apk",
		RefreshArgs: []string{"apk", "update"},
		UpdateArgs:  []string{"apk", "upgrade"},
		InstallArgs: []string{"apk", "add"},
		UserCommands: func(user string) []ExecRequest {
			return []ExecRequest{
				{Args: []string{"adduser", "-D", user}},
				{Args: []string{"chpasswd", "-e"}, Stdin: strings.NewReader(user + ":" + PlaceholderPasswordHash + "\n")},
			}
		},
	}
}
