package cache

import (
	"context"
	"errors"
	"io"
	"time"
)

// Store 保存内容缓存的压缩归档，键对客户端不透明。
type Store interface {
	// Get 打开条目正文，不存在时返回 ErrNotFound。
	Get(ctx context.Context, locator Locator) (*ReadResult, error)

	// Stat 只读取元数据（大小、时间与摘要）。
	Stat(ctx context.Context, locator Locator) (*Entry, error)

	// Put 写入正文并计算 sha256，同一 Locator 的并发写入会被串行化。
	Put(ctx context.Context, locator Locator, body io.Reader, opts PutOptions) (*Entry, error)

	// Remove 删除正文与摘要，条目不存在时不报错。
	Remove(ctx context.Context, locator Locator) error
}

// PutOptions 控制写入时的可选属性，ModTime 为空时取当前时间。
type PutOptions struct {
	ModTime time.Time
}

// Locator 由命名空间与键组成。
type Locator struct {
	Namespace string
	Key       string
}

// Entry 描述一个已落盘的归档。
type Entry struct {
	Locator   Locator   `json:"locator"`
	FilePath  string    `json:"file_path"`
	SizeBytes int64     `json:"size_bytes"`
	Digest    string    `json:"sha256"`
	ModTime   time.Time `json:"mod_time"`
}

// ETag 以摘要构造强校验值。
func (e Entry) ETag() string {
	return `"` + e.Digest + `"`
}

// ReadResult 组合 Entry 与正文 Reader。
type ReadResult struct {
	Entry  Entry
	Reader io.ReadSeekCloser
}

// ErrNotFound 表示条目不存在或尚未写完。
var ErrNotFound = errors.New("cache entry not found")
