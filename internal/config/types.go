package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if seconds, err := time.ParseDuration(raw); err == nil {
		*d = Duration(seconds)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// TriState 描述 true/false/auto 三态输入，auto 的含义由使用方决定。
type TriState string

const (
	TriStateAuto  TriState = "auto"
	TriStateTrue  TriState = "true"
	TriStateFalse TriState = "false"
)

const (
	triStateDomain = "true|false|auto"
	boolDomain     = "true|false"
)

// ParseTriState 大小写不敏感地解析三态值，空字符串视为 auto。
func ParseTriState(raw string) (TriState, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(TriStateAuto):
		return TriStateAuto, nil
	case string(TriStateTrue):
		return TriStateTrue, nil
	case string(TriStateFalse):
		return TriStateFalse, nil
	default:
		return "", fmt.Errorf("'%s' is not one of %s", raw, triStateDomain)
	}
}

// IsAuto 表示需要由运行时探测决定最终取值。
func (t TriState) IsAuto() bool {
	return t == "" || t == TriStateAuto
}

// Resolve 在 auto 时返回 fallback，否则返回显式设置的布尔值。
func (t TriState) Resolve(fallback bool) bool {
	if t.IsAuto() {
		return fallback
	}
	return t == TriStateTrue
}

// WSLVersion 为 0 表示未设置（保持宿主默认值），其余必须为正整数。
type WSLVersion int

// ParseWSLVersion 对 0、负数与非数字统一报告“不是合法正整数”。
func ParseWSLVersion(raw string) (WSLVersion, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(trimmed)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("'%s' is not a valid positive integer", raw)
	}
	return WSLVersion(value), nil
}

// IsSet 表示调用方显式请求了某个 WSL 协议版本。
func (v WSLVersion) IsSet() bool {
	return v > 0
}

// GlobalConfig 描述日志与网络等全局运行时行为。
type GlobalConfig struct {
	LogLevel           string   `mapstructure:"LogLevel"`
	LogFormat          string   `mapstructure:"LogFormat"`
	LogFilePath        string   `mapstructure:"LogFilePath"`
	LogMaxSize         int      `mapstructure:"LogMaxSize"`
	LogMaxBackups      int      `mapstructure:"LogMaxBackups"`
	LogCompress        bool     `mapstructure:"LogCompress"`
	DownloadTimeout    Duration `mapstructure:"DownloadTimeout"`
	DownloadRetries    int      `mapstructure:"DownloadRetries"`
	CatalogURL         string   `mapstructure:"CatalogURL"`
	CatalogEchoURL     string   `mapstructure:"CatalogEchoURL"`
	PollInterval       Duration `mapstructure:"PollInterval"`
	InstallPollTimeout Duration `mapstructure:"InstallPollTimeout"`
}

// Inputs 对应 action 的调用参数，键名与 action 输入名保持一致。
type Inputs struct {
	Distribution       string     `mapstructure:"distribution"`
	UseCache           TriState   `mapstructure:"use-cache"`
	SetAsDefault       TriState   `mapstructure:"set-as-default"`
	Update             bool       `mapstructure:"update"`
	AdditionalPackages []string   `mapstructure:"additional-packages"`
	WSLShellUser       string     `mapstructure:"wsl-shell-user"`
	WSLShellCommand    string     `mapstructure:"wsl-shell-command"`
	WSLConf            string     `mapstructure:"wsl-conf"`
	WSLVersion         WSLVersion `mapstructure:"wsl-version"`
}

// HostEnv 汇总宿主 runner 通过环境变量暴露的标记与路径。
type HostEnv struct {
	RunnerTemp        string `mapstructure:"RunnerTemp"`
	ToolCache         string `mapstructure:"ToolCache"`
	RunnerArch        string `mapstructure:"RunnerArch"`
	OutputFile        string `mapstructure:"OutputFile"`
	PathFile          string `mapstructure:"PathFile"`
	ServerURL         string `mapstructure:"ServerURL"`
	ImageOS           string `mapstructure:"ImageOS"`
	RunnerEnvironment string `mapstructure:"RunnerEnvironment"`
	Debug             bool   `mapstructure:"Debug"`
	CacheURL          string `mapstructure:"CacheURL"`
}

// CacheServerConfig 控制 serve-cache 子命令提供的内容缓存服务。
type CacheServerConfig struct {
	ListenPort  int    `mapstructure:"ListenPort"`
	StoragePath string `mapstructure:"StoragePath"`
	BodyLimit   int    `mapstructure:"BodyLimit"`
}

// Config 是 TOML 文件、环境变量与 CLI 标志合并后的整体结构。
type Config struct {
	Global      GlobalConfig      `mapstructure:",squash"`
	Inputs      Inputs            `mapstructure:",squash"`
	Host        HostEnv           `mapstructure:"Host"`
	CacheServer CacheServerConfig `mapstructure:"CacheServer"`
}

// WrapperDir 返回包装脚本所在目录。
func (c *Config) WrapperDir() string {
	return filepath.Join(c.Host.RunnerTemp, "wsl-shell-wrapper")
}

// CustomShellCommand 表示调用方是否显式配置了 wsl-shell-command。
func (c *Config) CustomShellCommand() bool {
	return strings.TrimSpace(c.Inputs.WSLShellCommand) != ""
}
