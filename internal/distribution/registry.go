package distribution

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

var globalRegistry = newRegistry()

type registry struct {
	mu            sync.RWMutex
	distributions map[string]*Distribution
}

func newRegistry() *registry {
	return &registry{distributions: make(map[string]*Distribution)}
}

// UnknownError 表示调用方请求了未注册的发行版，消息中列出全部合法标识。
type UnknownError struct {
	ID    string
	Valid []string
}

func (e *UnknownError) Error() string {
	return fmt.Sprintf("'%s' is not a valid distribution. Valid values: %s", e.ID, strings.Join(e.Valid, ", "))
}

// Register 将发行版加入全局注册表，重复的 UserID 会返回错误。
func Register(dist *Distribution) error {
	return globalRegistry.register(dist)
}

// MustRegister 在注册失败时 panic，适合 init() 中调用。
func MustRegister(dist *Distribution) {
	if err := Register(dist); err != nil {
		panic(err)
	}
}

// Lookup 大小写敏感地按 UserID 查找发行版。
func Lookup(id string) (*Distribution, error) {
	return globalRegistry.lookup(id)
}

// List 返回按标识（忽略大小写）排序的发行版列表。
func List() []*Distribution {
	return globalRegistry.list()
}

// IDs 返回所有已注册发行版的标识。
func IDs() []string {
	items := List()
	result := make([]string, len(items))
	for i, dist := range items {
		result[i] = dist.UserID
	}
	return result
}

func (r *registry) register(dist *Distribution) error {
	if dist == nil || dist.UserID == "" {
		return fmt.Errorf("distribution id is required")
	}
	if dist.WSLID == "" {
		return fmt.Errorf("distribution %s: wsl id is required", dist.UserID)
	}
	if (dist.DirectURL == "") == (dist.ProductID == "") {
		return fmt.Errorf("distribution %s: exactly one of download url and product id is required", dist.UserID)
	}
	if dist.InstallerFile == "" || dist.Family == nil {
		return fmt.Errorf("distribution %s: installer file and family are required", dist.UserID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.distributions[dist.UserID]; exists {
		return fmt.Errorf("distribution %s already registered", dist.UserID)
	}
	r.distributions[dist.UserID] = dist
	return nil
}

func (r *registry) lookup(id string) (*Distribution, error) {
	r.mu.RLock()
	dist, ok := r.distributions[id]
	r.mu.RUnlock()
	if ok {
		return dist, nil
	}
	return nil, &UnknownError{ID: id, Valid: r.ids()}
}

func (r *registry) ids() []string {
	items := r.list()
	ids := make([]string, len(items))
	for i, dist := range items {
		ids[i] = dist.UserID
	}
	return ids
}

func (r *registry) list() []*Distribution {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.distributions) == 0 {
		return nil
	}

	result := make([]*Distribution, 0, len(r.distributions))
	for _, dist := range r.distributions {
		result = append(result, dist)
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := strings.ToLower(result[i].UserID), strings.ToLower(result[j].UserID)
		if a == b {
			return result[i].UserID < result[j].UserID
		}
		return a < b
	})
	return result
}
