package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/Vampire/setup-wsl-sub000/internal/distribution"
)

var supportedLogFormats = map[string]struct{}{
	"actions": {},
	"text":    {},
	"json":    {},
}

const supportedLogFormatList = "actions|text|json"

// Validate 针对语义级别做进一步校验，在任何副作用发生前拒绝非法输入。
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: 配置为空", ErrConfiguration)
	}

	if err := c.validateGlobal(); err != nil {
		return err
	}

	in := c.Inputs
	if in.Distribution == "" {
		return newFieldError(inputField("distribution"), "is required")
	}
	if _, err := distribution.Lookup(in.Distribution); err != nil {
		return newFieldError(inputField("distribution"), err.Error())
	}
	if _, err := ParseTriState(string(in.UseCache)); err != nil {
		return newFieldError(inputField("use-cache"), err.Error())
	}
	if _, err := ParseTriState(string(in.SetAsDefault)); err != nil {
		return newFieldError(inputField("set-as-default"), err.Error())
	}
	if in.WSLVersion < 0 {
		return newFieldError(inputField("wsl-version"), fmt.Sprintf("'%d' is not a valid positive integer", in.WSLVersion))
	}
	if strings.ContainsAny(in.WSLShellUser, " \t\r\n'\"") {
		return newFieldError(inputField("wsl-shell-user"), "must not contain whitespace or quotes")
	}
	for _, pkg := range in.AdditionalPackages {
		if strings.HasPrefix(pkg, "-") {
			return newFieldError(inputField("additional-packages"), fmt.Sprintf("'%s' looks like an option, not a package", pkg))
		}
	}
	return nil
}

func (c *Config) validateGlobal() error {
	g := c.Global
	if _, ok := supportedLogFormats[strings.ToLower(g.LogFormat)]; !ok {
		return newFieldError("Global.LogFormat", "仅支持 "+supportedLogFormatList)
	}
	if g.DownloadRetries < 1 {
		return newFieldError("Global.DownloadRetries", "必须大于 0")
	}
	if g.DownloadTimeout.DurationValue() <= 0 {
		return newFieldError("Global.DownloadTimeout", "必须大于 0")
	}
	if g.PollInterval.DurationValue() <= 0 {
		return newFieldError("Global.PollInterval", "必须大于 0")
	}
	if g.InstallPollTimeout.DurationValue() < g.PollInterval.DurationValue() {
		return newFieldError("Global.InstallPollTimeout", "不能小于 PollInterval")
	}
	if err := validateEndpoint(g.CatalogURL); err != nil {
		return fmt.Errorf("%w: Global.CatalogURL: %w", ErrConfiguration, err)
	}
	if g.CatalogEchoURL != "" {
		if err := validateEndpoint(g.CatalogEchoURL); err != nil {
			return fmt.Errorf("%w: Global.CatalogEchoURL: %w", ErrConfiguration, err)
		}
	}
	if c.Host.CacheURL != "" {
		if err := validateEndpoint(c.Host.CacheURL); err != nil {
			return fmt.Errorf("%w: Host.CacheURL: %w", ErrConfiguration, err)
		}
	}
	return nil
}

// ValidateCacheServer 只校验 serve-cache 需要的字段。
func (c *Config) ValidateCacheServer() error {
	if c == nil {
		return fmt.Errorf("%w: 配置为空", ErrConfiguration)
	}
	s := c.CacheServer
	if s.ListenPort <= 0 || s.ListenPort > 65535 {
		return newFieldError("CacheServer.ListenPort", "必须在 1-65535")
	}
	if s.StoragePath == "" {
		return newFieldError("CacheServer.StoragePath", "不能为空")
	}
	if s.BodyLimit <= 0 {
		return newFieldError("CacheServer.BodyLimit", "必须大于 0")
	}
	return nil
}

func validateEndpoint(raw string) error {
	if raw == "" {
		return errors.New("缺少地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("缺少 Host: %s", raw)
	}
	return nil
}
