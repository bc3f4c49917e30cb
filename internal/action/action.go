// Package action wires the stages of one setup-wsl invocation together.
package action

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Vampire/setup-wsl-sub000/internal/artifact"
	"github.com/Vampire/setup-wsl-sub000/internal/config"
	"github.com/Vampire/setup-wsl-sub000/internal/distribution"
	"github.com/Vampire/setup-wsl-sub000/internal/logging"
	"github.com/Vampire/setup-wsl-sub000/internal/remotecache"
	"github.com/Vampire/setup-wsl-sub000/internal/wrapper"
	"github.com/Vampire/setup-wsl-sub000/internal/wsl"
)

// 步骤输出名称。
const (
	OutputWrapperPath             = "wsl-shell-wrapper-path"
	OutputDistributionWrapperPath = "wsl-shell-distribution-wrapper-path"
)

// Action 持有一次调用所需的全部组件，Run 按顺序收敛各阶段状态。
type Action struct {
	Config     *config.Config
	Verify     func() error
	Controller *wsl.Controller
	Artifacts  *artifact.Manager
	Remote     *remotecache.Client
	Wrappers   *wrapper.Generator
	Outputs    *Outputs
	Logger     *logrus.Logger
}

// Run 依次执行各阶段。发行版解析之后，无论后续成败都会输出两个包装脚本路径。
func (a *Action) Run(ctx context.Context) (err error) {
	if a.Verify != nil {
		if err := a.Verify(); err != nil {
			return err
		}
	}

	inputs := a.Config.Inputs
	dist, err := distribution.Lookup(inputs.Distribution)
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}
	logger := a.Logger.WithFields(logging.DistributionFields(dist.UserID, dist.WSLID, "setup"))

	req := wrapper.Request{
		UserID:       dist.UserID,
		WSLID:        dist.WSLID,
		ShellCommand: inputs.WSLShellCommand,
		DefaultUser:  inputs.WSLShellUser,
	}
	paths := a.Wrappers.PathsFor(req)
	defer func() {
		err = errors.Join(err, a.emit(paths))
	}()

	if err := a.Controller.EnsureWSL(ctx); err != nil {
		return err
	}
	if err := a.Controller.NegotiateVersion(ctx, inputs.WSLVersion); err != nil {
		return err
	}

	installed, err := a.Controller.IsInstalled(ctx, dist)
	if err != nil {
		return err
	}
	fresh := false
	if !installed {
		if err := a.install(ctx, logger, dist); err != nil {
			return err
		}
		fresh = true
	} else {
		logger.Infof("%s is already installed", dist.DisplayName)
	}

	if err := a.Controller.ReconcileConfig(ctx, dist, inputs.WSLConf); err != nil {
		return err
	}

	if inputs.SetAsDefault.Resolve(fresh) {
		if err := a.Controller.SetDefault(ctx, dist); err != nil {
			return fmt.Errorf("set %s as default: %w", dist.UserID, err)
		}
	}

	shell := a.Controller.Shell(dist)
	if inputs.Update {
		if err := dist.Update(ctx, shell); err != nil {
			return err
		}
	}
	if len(inputs.AdditionalPackages) > 0 {
		if err := dist.Install(ctx, shell, inputs.AdditionalPackages...); err != nil {
			return err
		}
	}

	if inputs.WSLShellUser != "" {
		if err := a.Controller.EnsureUser(ctx, dist, inputs.WSLShellUser); err != nil {
			return err
		}
	}

	if !a.Config.CustomShellCommand() {
		if req.HasBash, err = a.Controller.HasBash(ctx, dist); err != nil {
			return err
		}
	}
	if _, err := a.Wrappers.Generate(req); err != nil {
		return err
	}
	return nil
}

func (a *Action) install(ctx context.Context, logger logrus.FieldLogger, dist *distribution.Distribution) error {
	useCache := artifact.ResolveCaching(ctx, a.Config.Inputs.UseCache, a.Remote, a.Config.Host.ServerURL, logger)
	dir, err := a.Artifacts.Resolve(ctx, dist, useCache)
	if err != nil {
		return err
	}
	if err := a.Controller.InstallDistribution(ctx, dist, dir, a.Config.Inputs.WSLVersion); err != nil {
		return err
	}
	if a.Logger.IsLevelEnabled(logrus.DebugLevel) {
		if list, err := a.Controller.ListVerbose(ctx); err == nil && list != "" {
			logger.Debugf("installed distributions:\n%s", list)
		}
	}
	return nil
}

func (a *Action) emit(paths wrapper.Paths) error {
	return errors.Join(
		a.Outputs.Set(OutputWrapperPath, paths.Agnostic),
		a.Outputs.Set(OutputDistributionWrapperPath, paths.Pinned),
		a.Outputs.AddPath(a.Wrappers.Dir),
	)
}
