package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Vampire/setup-wsl-sub000/internal/action"
	"github.com/Vampire/setup-wsl-sub000/internal/artifact"
	"github.com/Vampire/setup-wsl-sub000/internal/cache"
	"github.com/Vampire/setup-wsl-sub000/internal/config"
	"github.com/Vampire/setup-wsl-sub000/internal/distribution"
	"github.com/Vampire/setup-wsl-sub000/internal/host"
	"github.com/Vampire/setup-wsl-sub000/internal/logging"
	"github.com/Vampire/setup-wsl-sub000/internal/remotecache"
	"github.com/Vampire/setup-wsl-sub000/internal/server"
	"github.com/Vampire/setup-wsl-sub000/internal/toolcache"
	"github.com/Vampire/setup-wsl-sub000/internal/transport"
	"github.com/Vampire/setup-wsl-sub000/internal/version"
	"github.com/Vampire/setup-wsl-sub000/internal/wrapper"
	"github.com/Vampire/setup-wsl-sub000/internal/wsl"
)

// configEnv 可以代替 --config 指定配置文件。
const configEnv = "SETUP_WSL_CONFIG"

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
	flags       *pflag.FlagSet
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	os.Exit(execute(os.Args[1:]))
}

// execute 构建 cobra 命令树并返回退出码；参数解析错误同样经 fail 输出。
func execute(args []string) int {
	code := 0
	root := newRootCommand(&code)
	root.SetArgs(args)
	root.SetOut(stdOut)
	root.SetErr(stdErr)
	if err := root.Execute(); err != nil {
		return fail(nil, fmt.Errorf("%w: %w", config.ErrConfiguration, err))
	}
	return code
}

func newRootCommand(code *int) *cobra.Command {
	var opts cliOptions
	root := &cobra.Command{
		Use:           "setup-wsl",
		Short:         "Install and configure a WSL distribution on a Windows runner",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.configPath = resolveConfigPath(opts.configPath)
			opts.flags = cmd.Flags()
			*code = run(opts)
			return nil
		},
	}

	flags := root.Flags()
	flags.BoolVar(&opts.checkOnly, "check-config", false, "仅校验配置后退出")
	flags.BoolVar(&opts.showVersion, "version", false, "显示版本信息")
	flags.String("distribution", "", "要安装的发行版标识")
	flags.String("use-cache", "", "是否使用缓存 (true|false|auto)")
	flags.String("set-as-default", "", "是否设为默认发行版 (true|false|auto)")
	flags.Bool("update", false, "升级发行版内已安装的包")
	flags.String("additional-packages", "", "额外安装的包，空白分隔")
	flags.String("wsl-shell-user", "", "包装脚本默认使用的用户")
	flags.String("wsl-shell-command", "", "包装脚本使用的 shell 命令模板，{0} 为脚本路径")
	flags.String("wsl-conf", "", "写入 /etc/wsl.conf 的内容")
	flags.String("wsl-version", "", "WSL 协议版本")
	addCommonFlags(root.PersistentFlags(), &opts.configPath)

	root.AddCommand(newServeCacheCommand(code, &opts.configPath), newVersionCommand())
	return root
}

func addCommonFlags(flags *pflag.FlagSet, configPath *string) {
	flags.StringVar(configPath, "config", "", "配置文件路径（可被 "+configEnv+" 指定）")
	flags.String("log-level", "", "日志级别")
	flags.String("log-format", "", "日志格式 (actions|text|json)")
}

func newServeCacheCommand(code *int, configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve-cache",
		Short: "Serve the content cache used by self-hosted runners",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			*code = serveCache(resolveConfigPath(*configPath), cmd.Flags())
			return nil
		},
	}
	cmd.Flags().Int("listen-port", 0, "监听端口")
	cmd.Flags().String("storage-path", "", "缓存存储目录")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			printVersion()
		},
	}
}

// resolveConfigPath 让 --config 优先于环境变量。
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(configEnv)
}

// run 是唯一的失败出口：所有错误与 panic 都变成一条 ::error:: 并返回 1。
func run(opts cliOptions) (code int) {
	if opts.showVersion {
		printVersion()
		return 0
	}

	var logger *logrus.Logger
	defer func() {
		if r := recover(); r != nil {
			code = fail(logger, fmt.Errorf("%v", r))
		}
	}()

	cfg, err := config.Load(opts.configPath, opts.flags)
	if err != nil {
		return fail(nil, err)
	}

	logger, err = logging.InitLogger(cfg.Global)
	if err != nil {
		return fail(nil, err)
	}

	fields := logging.BaseFields("setup", opts.configPath)
	fields["distribution"] = cfg.Inputs.Distribution
	fields["version"] = version.Full()
	if opts.checkOnly {
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}
	fields["os"] = host.OSVersion()
	logger.WithFields(fields).Debug("配置加载完成")

	act, err := buildAction(cfg, logger)
	if err != nil {
		return fail(logger, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := act.Run(ctx); err != nil {
		return fail(logger, err)
	}
	return 0
}

// fail 输出 ::error::，调试级别下额外打印完整错误链。
func fail(logger *logrus.Logger, err error) int {
	if logger != nil && logger.IsLevelEnabled(logrus.DebugLevel) {
		logger.Debugf("%+v", err)
	}
	msg := err.Error()
	if msg == "" {
		msg = fmt.Sprintf("%v", err)
	}
	fmt.Fprintf(stdOut, "::error::%s\n", logging.EscapeCommand(msg))
	return 1
}

// buildAction 按依赖顺序组装一次调用所需的组件。
func buildAction(cfg *config.Config, logger *logrus.Logger) (*action.Action, error) {
	if cfg.Host.RunnerTemp == "" {
		cfg.Host.RunnerTemp = os.TempDir()
	}
	toolRoot := cfg.Host.ToolCache
	if toolRoot == "" {
		toolRoot = filepath.Join(cfg.Host.RunnerTemp, "setup-wsl-tools")
	}

	fs := afero.NewOsFs()
	client := transport.NewClient(cfg, logger)
	runner := host.NewExecRunner(logger, stdOut)

	tools, err := toolcache.New(fs, toolRoot, cfg.Host.RunnerArch)
	if err != nil {
		return nil, err
	}
	remote := remotecache.New(client, cfg.Host.CacheURL, fs, logger)
	artifacts, err := artifact.NewManager(artifact.Options{
		Fs:       fs,
		Tools:    tools,
		Remote:   remote,
		HTTP:     client,
		Resolver: distribution.NewCatalog(client, cfg.Global.CatalogURL, cfg.Global.CatalogEchoURL, logger),
		TempDir:  filepath.Join(cfg.Host.RunnerTemp, "setup-wsl"),
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	return &action.Action{
		Config: cfg,
		Verify: func() error {
			return host.Verify(runtime.GOOS, exec.LookPath)
		},
		Controller: wsl.NewController(wsl.NewClient(runner, logger), cfg, logger),
		Artifacts:  artifacts,
		Remote:     remote,
		Wrappers:   &wrapper.Generator{Fs: fs, Dir: cfg.WrapperDir(), Logger: logger},
		Outputs: &action.Outputs{
			Fs:         fs,
			OutputFile: cfg.Host.OutputFile,
			PathFile:   cfg.Host.PathFile,
			Logger:     logger,
		},
		Logger: logger,
	}, nil
}

// serveCache 启动内容缓存服务，启动顺序为“配置 → 磁盘缓存 → Fiber server”。
func serveCache(configPath string, flags *pflag.FlagSet) int {
	cfg, err := config.Decode(configPath, flags)
	if err != nil {
		return fail(nil, err)
	}
	if err := cfg.ValidateCacheServer(); err != nil {
		return fail(nil, err)
	}
	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		return fail(nil, err)
	}

	store, err := cache.NewStore(afero.NewOsFs(), cfg.CacheServer.StoragePath)
	if err != nil {
		return fail(logger, fmt.Errorf("初始化缓存目录失败: %w", err))
	}
	app, err := server.NewApp(server.AppOptions{
		Logger:    logger,
		Store:     store,
		BodyLimit: cfg.CacheServer.BodyLimit,
	})
	if err != nil {
		return fail(logger, err)
	}

	fields := logging.BaseFields("listen", configPath)
	fields["port"] = cfg.CacheServer.ListenPort
	fields["storage_path"] = cfg.CacheServer.StoragePath
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("Fiber 服务启动")

	if err := app.Listen(fmt.Sprintf(":%d", cfg.CacheServer.ListenPort)); err != nil {
		return fail(logger, fmt.Errorf("HTTP 服务启动失败: %w", err))
	}
	return 0
}
