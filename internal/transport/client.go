package transport

import (
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/Vampire/setup-wsl-sub000/internal/config"
	"github.com/Vampire/setup-wsl-sub000/internal/logging"
	"github.com/Vampire/setup-wsl-sub000/internal/version"
)

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// NewClient 返回共享的可重试 HTTP 客户端，用于安装包下载、目录查询与远程缓存。
// 非 2xx 响应原样返回给调用方，由调用方决定如何报告。
func NewClient(cfg *config.Config, logger *logrus.Logger) *retryablehttp.Client {
	timeout := 10 * time.Minute
	retries := 3
	if cfg != nil {
		if cfg.Global.DownloadTimeout.DurationValue() > 0 {
			timeout = cfg.Global.DownloadTimeout.DurationValue()
		}
		if cfg.Global.DownloadRetries > 0 {
			retries = cfg.Global.DownloadRetries
		}
	}

	client := retryablehttp.NewClient()
	client.HTTPClient = &http.Client{
		Timeout:   timeout,
		Transport: &userAgentTransport{next: defaultTransport.Clone(), agent: version.UserAgent()},
	}
	client.RetryMax = retries
	client.RetryWaitMin = time.Second
	client.RetryWaitMax = 30 * time.Second
	client.Logger = logging.NewRHLeveledLogger(logger)
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return client
}

type userAgentTransport struct {
	next  http.RoundTripper
	agent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.agent)
	}
	return t.next.RoundTrip(req)
}
