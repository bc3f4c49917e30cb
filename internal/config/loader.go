package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// InputEnvPrefix 是 runner 传递 action 输入时使用的环境变量前缀。
const InputEnvPrefix = "INPUT_"

// InputKeys 列出所有已知 action 输入，顺序与 action 元数据一致。
var InputKeys = []string{
	"distribution",
	"use-cache",
	"set-as-default",
	"update",
	"additional-packages",
	"wsl-shell-user",
	"wsl-shell-command",
	"wsl-conf",
	"wsl-version",
}

// hostEnvBindings 将宿主环境变量映射到 Host.* 配置键。
var hostEnvBindings = map[string]string{
	"Host.RunnerTemp":        "RUNNER_TEMP",
	"Host.ToolCache":         "RUNNER_TOOL_CACHE",
	"Host.RunnerArch":        "RUNNER_ARCH",
	"Host.OutputFile":        "GITHUB_OUTPUT",
	"Host.PathFile":          "GITHUB_PATH",
	"Host.ServerURL":         "GITHUB_SERVER_URL",
	"Host.ImageOS":           "ImageOS",
	"Host.RunnerEnvironment": "RUNNER_ENVIRONMENT",
	"Host.Debug":             "RUNNER_DEBUG",
	"Host.CacheURL":          "SETUP_WSL_CACHE_URL",
}

// extraFlagBindings 把非输入类标志映射到配置键。
var extraFlagBindings = map[string]string{
	"log-level":    "LogLevel",
	"log-format":   "LogFormat",
	"listen-port":  "CacheServer.ListenPort",
	"storage-path": "CacheServer.StoragePath",
}

// Load 合并 TOML 文件、环境变量与 CLI 标志，注入默认值后执行语义校验。
// path 为空时仅使用环境变量与标志；flags 可以为 nil。
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	cfg, err := Decode(path, flags)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode 只做读取与反序列化，不做校验，serve-cache 等不需要 action 输入的入口复用它。
func Decode(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := bindEnv(v); err != nil {
		return nil, err
	}
	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHooks())); err != nil {
		return nil, fmt.Errorf("%w: decode config: %w", ErrConfiguration, err)
	}

	applyGlobalDefaults(&cfg)
	if err := resolvePaths(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFormat", "actions")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("DownloadTimeout", "10m")
	v.SetDefault("DownloadRetries", 3)
	v.SetDefault("CatalogURL", "https://store.rg-adguard.net/api/GetFiles")
	v.SetDefault("CatalogEchoURL", "https://httpbin.org/anything")
	v.SetDefault("PollInterval", "5s")
	v.SetDefault("InstallPollTimeout", "5m")
	v.SetDefault("use-cache", string(TriStateAuto))
	v.SetDefault("set-as-default", string(TriStateAuto))
	v.SetDefault("Host.RunnerArch", "X64")
	v.SetDefault("CacheServer.ListenPort", 5080)
	v.SetDefault("CacheServer.StoragePath", "./cache-storage")
	v.SetDefault("CacheServer.BodyLimit", 2*1024*1024*1024)
}

func bindEnv(v *viper.Viper) error {
	for _, key := range InputKeys {
		if err := v.BindEnv(key, InputEnvName(key)); err != nil {
			return fmt.Errorf("bind input %s: %w", key, err)
		}
	}
	for key, env := range hostEnvBindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind env %s: %w", env, err)
		}
	}
	return nil
}

// bindFlags 仅绑定与配置键同名的标志，其余标志（如 --config）由调用方自行处理。
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for _, key := range InputKeys {
		flag := flags.Lookup(key)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag %s: %w", key, err)
		}
	}
	for name, key := range extraFlagBindings {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// InputEnvName 返回 runner 为输入 key 生成的环境变量名，例如 INPUT_USE-CACHE。
func InputEnvName(key string) string {
	return InputEnvPrefix + strings.ToUpper(strings.ReplaceAll(key, " ", "_"))
}

func applyGlobalDefaults(cfg *Config) {
	g := &cfg.Global
	if g.LogLevel == "" {
		g.LogLevel = "info"
	}
	if cfg.Host.Debug {
		g.LogLevel = "debug"
	}
	if g.DownloadTimeout.DurationValue() == 0 {
		g.DownloadTimeout = Duration(10 * time.Minute)
	}
	if g.PollInterval.DurationValue() == 0 {
		g.PollInterval = Duration(5 * time.Second)
	}
	if g.InstallPollTimeout.DurationValue() == 0 {
		g.InstallPollTimeout = Duration(5 * time.Minute)
	}
	if cfg.Inputs.UseCache == "" {
		cfg.Inputs.UseCache = TriStateAuto
	}
	if cfg.Inputs.SetAsDefault == "" {
		cfg.Inputs.SetAsDefault = TriStateAuto
	}
	cfg.Inputs.Distribution = strings.TrimSpace(cfg.Inputs.Distribution)
	cfg.Inputs.WSLShellUser = strings.TrimSpace(cfg.Inputs.WSLShellUser)
}

func resolvePaths(cfg *Config) error {
	if cfg.CacheServer.StoragePath == "" {
		return nil
	}
	abs, err := filepath.Abs(cfg.CacheServer.StoragePath)
	if err != nil {
		return fmt.Errorf("resolve cache storage path: %w", err)
	}
	cfg.CacheServer.StoragePath = abs
	return nil
}

func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		triStateDecodeHook(),
		boolDecodeHook(),
		wslVersionDecodeHook(),
		packageListDecodeHook(),
		durationDecodeHook(),
	)
}

func triStateDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(TriState(""))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return ParseTriState(v)
		case bool:
			if v {
				return TriStateTrue, nil
			}
			return TriStateFalse, nil
		case TriState:
			return ParseTriState(string(v))
		default:
			return nil, fmt.Errorf("unsupported value %v, expected %s", data, triStateDomain)
		}
	}
}

// boolDecodeHook 让字符串布尔值的报错列出合法取值，空字符串视为 false。
func boolDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to.Kind() != reflect.Bool || from.Kind() != reflect.String {
			return data, nil
		}
		raw := strings.TrimSpace(data.(string))
		if raw == "" {
			return false, nil
		}
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("'%s' is not one of %s", data, boolDomain)
		}
		return value, nil
	}
}

func wslVersionDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(WSLVersion(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return ParseWSLVersion(v)
		case int:
			return ParseWSLVersion(strconv.Itoa(v))
		case int64:
			return ParseWSLVersion(strconv.FormatInt(v, 10))
		case float64:
			if v != float64(int64(v)) {
				return nil, fmt.Errorf("'%v' is not a valid positive integer", v)
			}
			return ParseWSLVersion(strconv.FormatInt(int64(v), 10))
		case WSLVersion:
			return ParseWSLVersion(strconv.Itoa(int(v)))
		default:
			return nil, fmt.Errorf("'%v' is not a valid positive integer", data)
		}
	}
}

// packageListDecodeHook 把以空白分隔的包列表拆分为切片。
func packageListDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf([]string(nil))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType || from.Kind() != reflect.String {
			return data, nil
		}
		return strings.Fields(data.(string)), nil
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("invalid duration: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("unsupported duration type: %T", v)
		}
	}
}
