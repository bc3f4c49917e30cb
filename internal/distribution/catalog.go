package distribution

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"

	"github.com/Vampire/setup-wsl-sub000/internal/retry"
)

// 商店目录服务不稳定，查询整体重试 5 次。
const catalogAttempts = 5

// ErrNoPackageLink 表示目录服务的响应里没有 appx/appxbundle 链接。
var ErrNoPackageLink = errors.New("no .appx or .appxbundle link in catalog response")

// Catalog 通过第三方商店目录服务把 product id 解析为下载地址。
type Catalog struct {
	Client       *retryablehttp.Client
	Endpoint     string
	EchoEndpoint string
	Logger       logrus.FieldLogger
	Attempts     int
}

// NewCatalog 构造目录查询器，echoEndpoint 为空时不做调试回显。
func NewCatalog(client *retryablehttp.Client, endpoint, echoEndpoint string, logger logrus.FieldLogger) *Catalog {
	return &Catalog{
		Client:       client,
		Endpoint:     endpoint,
		EchoEndpoint: echoEndpoint,
		Logger:       logger,
		Attempts:     catalogAttempts,
	}
}

// Lookup 实现 URLResolver。
func (c *Catalog) Lookup(ctx context.Context, productID string) (string, error) {
	attempts := c.Attempts
	if attempts <= 0 {
		attempts = catalogAttempts
	}
	return retry.DoValue(ctx, c.logger(), attempts, func(ctx context.Context) (string, error) {
		return c.lookupOnce(ctx, productID)
	})
}

func (c *Catalog) logger() logrus.FieldLogger {
	if c.Logger == nil {
		return logrus.StandardLogger()
	}
	return c.Logger
}

func catalogForm(productID string) url.Values {
	return url.Values{
		"type": {"ProductId"},
		"url":  {productID},
		"ring": {"Retail"},
		"lang": {"en-US"},
	}
}

func (c *Catalog) post(ctx context.Context, endpoint, productID string) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(catalogForm(productID).Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.Client.Do(req)
}

func (c *Catalog) lookupOnce(ctx context.Context, productID string) (string, error) {
	resp, err := c.post(ctx, c.Endpoint, productID)
	if err != nil {
		return "", fmt.Errorf("catalog lookup for %s: %w", productID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.echo(ctx, productID)
		return "", fmt.Errorf("catalog lookup for %s failed with HTTP %d (%s)", productID, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	link, err := FirstPackageLink(resp.Body)
	if err != nil {
		return "", fmt.Errorf("catalog lookup for %s: %w", productID, err)
	}
	return link, nil
}

// echo 在 debug 级别把同样的请求发往回显服务，记录请求与响应形态供事后排查。
func (c *Catalog) echo(ctx context.Context, productID string) {
	if c.EchoEndpoint == "" || !retry.Verbose(c.logger()) {
		return
	}
	resp, err := c.post(ctx, c.EchoEndpoint, productID)
	if err != nil {
		c.logger().WithError(err).Debug("catalog echo request failed")
		return
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	c.logger().WithField("status", resp.StatusCode).Debugf("catalog echo response: %s", body)
}

// FirstPackageLink 返回第一个文本以 .appx 或 .appxbundle 结尾（忽略大小写）的 <a> 的 href。
func FirstPackageLink(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)

	inAnchor := false
	var href string
	var text strings.Builder

	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return "", ErrNoPackageLink
			}
			return "", z.Err()
		case html.StartTagToken:
			tok := z.Token()
			if tok.Data != "a" {
				continue
			}
			inAnchor = true
			href = ""
			text.Reset()
			for _, attr := range tok.Attr {
				if attr.Key == "href" {
					href = attr.Val
				}
			}
		case html.TextToken:
			if inAnchor {
				text.Write(z.Text())
			}
		case html.EndTagToken:
			if tok := z.Token(); tok.Data != "a" || !inAnchor {
				continue
			}
			inAnchor = false
			name := strings.ToLower(strings.TrimSpace(text.String()))
			if href != "" && (strings.HasSuffix(name, ".appx") || strings.HasSuffix(name, ".appxbundle")) {
				return href, nil
			}
		}
	}
}
