package server

import "github.com/prometheus/client_golang/prometheus"

// Metrics 汇总内容缓存的查询、写入与删除次数，使用独立 Registry 以便测试。
type Metrics struct {
	Registry *prometheus.Registry
	Lookups  *prometheus.CounterVec
	Stores   prometheus.Counter
	Bytes    prometheus.Counter
	Removals prometheus.Counter
}

// NewMetrics 创建并注册全部指标。
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "setup_wsl",
			Subsystem: "content_cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by result (hit or miss).",
		}, []string{"result"}),
		Stores: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "setup_wsl",
			Subsystem: "content_cache",
			Name:      "stores_total",
			Help:      "Cache entries written.",
		}),
		Bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "setup_wsl",
			Subsystem: "content_cache",
			Name:      "stored_bytes_total",
			Help:      "Bytes written to the cache.",
		}),
		Removals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "setup_wsl",
			Subsystem: "content_cache",
			Name:      "removals_total",
			Help:      "Cache entries deleted.",
		}),
	}
	m.Registry.MustRegister(m.Lookups, m.Stores, m.Bytes, m.Removals)
	return m
}
