package models

import (
	"time"
)

// 健康状态
const (
	HealthHealthy   = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"
)

// SiteHealth 单站点健康状态
type SiteHealth struct {
	Site       SiteID        `json:"site"`
	Available  bool          `json:"available"`             // 爬取器已注册且未关闭
	Probed     bool          `json:"probed"`                // 是否执行了可达性探测
	Reachable  bool          `json:"reachable"`             // 首页可访问
	StatusCode int           `json:"status_code,omitempty"` // 探测HTTP状态码
	Challenged bool          `json:"challenged"`            // 首页返回了人机验证
	Latency    time.Duration `json:"latency,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// HealthReport 健康检查报告
type HealthReport struct {
	Status            string            `json:"status"`
	ScrapersAvailable int               `json:"scrapers_available"`
	SupportedSites    []SiteID          `json:"supported_sites"`
	Sites             []SiteHealth      `json:"sites"`
	Performance       PerformanceReport `json:"performance"`
	Config            ScrapingConfig    `json:"config"`
	Timestamp         time.Time         `json:"timestamp"`
}
