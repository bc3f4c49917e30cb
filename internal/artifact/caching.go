package artifact

import (
	"context"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Vampire/setup-wsl-sub000/internal/config"
	"github.com/Vampire/setup-wsl-sub000/internal/remotecache"
)

// ResolveCaching 把 use-cache 输入解析为是否真正启用远端缓存。
// auto 等价于“缓存服务可达”；显式 true 但不可达时降级并告警。
func ResolveCaching(ctx context.Context, requested config.TriState, remote *remotecache.Client, serverURL string, logger logrus.FieldLogger) bool {
	if requested == config.TriStateFalse {
		return false
	}
	available := remote.Available(ctx)
	if requested.IsAuto() || available {
		return available
	}

	if isGitHubDotCom(serverURL) {
		logger.Warn("The cache service is currently unavailable, continuing without caching. This is probably a temporary outage.")
	} else {
		logger.Warn("The cache service is not available on this host, continuing without caching. " +
			"This is probably caused by an unsupported server version or a missing SETUP_WSL_CACHE_URL.")
	}
	return false
}

func isGitHubDotCom(serverURL string) bool {
	if serverURL == "" {
		return true
	}
	parsed, err := url.Parse(serverURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(parsed.Hostname(), "github.com")
}
