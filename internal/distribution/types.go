package distribution

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hashicorp/go-version"
)

// Shell 在目标发行版内以 root 身份执行命令，由 WSL 控制器实现。
type Shell interface {
	Exec(ctx context.Context, req ExecRequest) error
}

// ExecRequest 描述一次发行版内部命令。Env 为 KEY=VALUE 形式。
type ExecRequest struct {
	Env   []string
	Stdin io.Reader
	Args  []string
}

// Distribution 是不可变的发行版描述。DirectURL 与 ProductID 二选一，
// 后者需要通过商店目录服务解析真实下载地址。
type Distribution struct {
	WSLID         string
	UserID        string
	DisplayName   string
	Version       *version.Version
	DirectURL     string
	ProductID     string
	InstallerFile string
	Family        *Family
}

// URLResolver 把商店 product id 解析为可下载的 appx 地址。
type URLResolver interface {
	Lookup(ctx context.Context, productID string) (string, error)
}

// CacheName 返回缓存层使用的名称。
func (d *Distribution) CacheName() string {
	return d.UserID
}

// CacheKey 返回远端内容缓存使用的键，前缀 "2:" 标识目录归档格式的版本。
func CacheKey(d *Distribution) string {
	return fmt.Sprintf("2:distributionDirectory_%s_%s", d.CacheName(), d.SemVer())
}

// SemVer 返回用于缓存键的语义化版本字符串。
func (d *Distribution) SemVer() string {
	if d.Version == nil {
		return "0.0.0"
	}
	segments := d.Version.Segments()
	for len(segments) < 3 {
		segments = append(segments, 0)
	}
	return fmt.Sprintf("%d.%d.%d", segments[0], segments[1], segments[2])
}

// DownloadURL 返回安装包下载地址：直链原样返回，否则通过 resolver 查询。
func (d *Distribution) DownloadURL(ctx context.Context, resolver URLResolver) (string, error) {
	if d.DirectURL != "" {
		return d.DirectURL, nil
	}
	if d.ProductID == "" {
		return "", fmt.Errorf("distribution %s has neither a download url nor a product id", d.UserID)
	}
	if resolver == nil {
		return "", errors.New("catalog resolver required for product id lookup")
	}
	return resolver.Lookup(ctx, d.ProductID)
}

// Refresh 同步仓库元数据。
func (d *Distribution) Refresh(ctx context.Context, sh Shell) error {
	return d.Family.Refresh(ctx, sh)
}

// Update 先刷新再升级全部已安装的包。
func (d *Distribution) Update(ctx context.Context, sh Shell) error {
	return d.Family.Update(ctx, sh)
}

// Install 先刷新再安装 packages；packages 为空时只刷新。
func (d *Distribution) Install(ctx context.Context, sh Shell, packages ...string) error {
	return d.Family.Install(ctx, sh, packages...)
}

// CreateUser 以固定占位密码创建用户。
func (d *Distribution) CreateUser(ctx context.Context, sh Shell, user string) error {
	return d.Family.CreateUser(ctx, sh, user)
}

func (d *Distribution) String() string {
	return d.UserID
}
