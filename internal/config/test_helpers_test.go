package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("写入临时配置失败: %v", err)
	}
	return path
}

// clearInputs 清空可能由外部 runner 注入的输入与宿主变量，避免污染用例。
func clearInputs(t *testing.T) {
	t.Helper()
	for _, key := range InputKeys {
		t.Setenv(InputEnvName(key), "")
	}
	for _, env := range hostEnvBindings {
		t.Setenv(env, "")
	}
}

func validConfig() *Config {
	return &Config{
		Global: GlobalConfig{
			LogLevel:           "info",
			LogFormat:          "actions",
			DownloadTimeout:    Duration(time.Minute),
			DownloadRetries:    3,
			CatalogURL:         "https://store.rg-adguard.net/api/GetFiles",
			PollInterval:       Duration(5 * time.Second),
			InstallPollTimeout: Duration(5 * time.Minute),
		},
		Inputs: Inputs{
			Distribution: "Debian",
			UseCache:     TriStateAuto,
			SetAsDefault: TriStateAuto,
		},
		CacheServer: CacheServerConfig{
			ListenPort:  5080,
			StoragePath: "/tmp/cache",
			BodyLimit:   1024,
		},
	}
}
