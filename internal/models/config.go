package models

import (
	"fmt"
	"time"
)

// 退避策略
const (
	BackoffExponential = "exponential" // 指数退避
	BackoffConstant    = "constant"    // 固定间隔
)

// ScrapingConfig 爬取运行参数
// 每个编排器实例构造时复制一份,之后不再修改
type ScrapingConfig struct {
	MaxRetries          int           `mapstructure:"max_retries" json:"max_retries"`                   // 最大尝试次数 (默认:3)
	RetryDelay          time.Duration `mapstructure:"retry_delay" json:"retry_delay"`                   // 重试基础间隔 (默认:2s)
	Backoff             string        `mapstructure:"backoff" json:"backoff"`                           // 退避策略 exponential|constant
	Timeout             time.Duration `mapstructure:"timeout" json:"timeout"`                           // 单次尝试超时 (默认:30s)
	ConcurrentLimit     int           `mapstructure:"concurrent_limit" json:"concurrent_limit"`         // 并发会话上限 (默认:3)
	Headless            bool          `mapstructure:"headless" json:"headless"`                         // 无头模式 (默认:false)
	ProxyPool           []string      `mapstructure:"proxy_pool" json:"proxy_pool,omitempty"`           // 预留字段,当前不参与请求路由
	EnableMonitoring    bool          `mapstructure:"enable_monitoring" json:"enable_monitoring"`       // 记录性能统计 (默认:true)
	DataValidation      bool          `mapstructure:"data_validation" json:"data_validation"`           // 校验并清洗职位数据 (默认:true)
	UserDataDir         string        `mapstructure:"user_data_dir" json:"user_data_dir,omitempty"`     // 浏览器用户数据目录(保留cookie)
	VerificationTimeout time.Duration `mapstructure:"verification_timeout" json:"verification_timeout"` // 有头模式等待人工验证的最长时间
	VerificationPoll    time.Duration `mapstructure:"verification_poll" json:"verification_poll"`       // 人工验证轮询间隔
	ProbeReachability   bool          `mapstructure:"probe_reachability" json:"probe_reachability"`     // 健康检查时探测站点可达性
}

// DefaultScrapingConfig 默认爬取配置
func DefaultScrapingConfig() ScrapingConfig {
	return ScrapingConfig{
		MaxRetries:          3,
		RetryDelay:          2 * time.Second,
		Backoff:             BackoffExponential,
		Timeout:             30 * time.Second,
		ConcurrentLimit:     3,
		Headless:            false,
		EnableMonitoring:    true,
		DataValidation:      true,
		VerificationTimeout: 5 * time.Minute,
		VerificationPoll:    3 * time.Second,
	}
}

// Validate 验证配置
func (c *ScrapingConfig) Validate() error {
	if c.MaxRetries < 1 || c.MaxRetries > 10 {
		return fmt.Errorf("最大尝试次数必须在1-10之间")
	}
	if c.RetryDelay < 0 || c.RetryDelay > 5*time.Minute {
		return fmt.Errorf("重试间隔必须在0-5分钟之间")
	}
	if c.Backoff != BackoffExponential && c.Backoff != BackoffConstant {
		return fmt.Errorf("退避策略必须是 %s 或 %s", BackoffExponential, BackoffConstant)
	}
	if c.Timeout <= 0 || c.Timeout > 10*time.Minute {
		return fmt.Errorf("超时时间必须在0-10分钟之间")
	}
	if c.ConcurrentLimit < 1 || c.ConcurrentLimit > 20 {
		return fmt.Errorf("并发上限必须在1-20之间")
	}
	if c.VerificationTimeout < 0 {
		return fmt.Errorf("人工验证等待时间不能为负数")
	}
	if c.VerificationPoll < 0 {
		return fmt.Errorf("人工验证轮询间隔不能为负数")
	}
	return nil
}
