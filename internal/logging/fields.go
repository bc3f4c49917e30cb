package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// DistributionFields 提供发行版标识与阶段字段，供各安装阶段复用。
func DistributionFields(userID, wslID, stage string) logrus.Fields {
	return logrus.Fields{
		"distribution": userID,
		"wsl_id":       wslID,
		"stage":        stage,
	}
}

// CacheFields 描述缓存层级与命中状态。
func CacheFields(tier, key string, hit bool) logrus.Fields {
	return logrus.Fields{
		"cache_tier": tier,
		"cache_key":  key,
		"cache_hit":  hit,
	}
}
