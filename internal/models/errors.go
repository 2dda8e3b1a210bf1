package models

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind 爬取错误分类,编排器据此决定是否重试
type ErrorKind string

const (
	KindUnsupportedSite ErrorKind = "unsupported_site" // URL不属于任何支持的站点
	KindNetwork         ErrorKind = "network"          // 超时/连接失败
	KindVerification    ErrorKind = "verification"     // 触发人机验证
	KindExtraction      ErrorKind = "extraction"       // 页面加载成功但缺少必需字段
	KindResource        ErrorKind = "resource"         // 浏览器会话无法启动
	KindCancelled       ErrorKind = "cancelled"        // 被调用方取消
)

// ScrapeError 带分类的爬取错误
type ScrapeError struct {
	Kind  ErrorKind
	Site  SiteID
	URL   string
	Cause error
}

// NewScrapeError 创建爬取错误
func NewScrapeError(kind ErrorKind, site SiteID, url string, cause error) *ScrapeError {
	return &ScrapeError{Kind: kind, Site: site, URL: url, Cause: cause}
}

// Error 实现error接口
func (e *ScrapeError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("[%s] %s", e.Kind, e.URL)
	}
	return fmt.Sprintf("[%s] %v", e.Kind, e.Cause)
}

// Unwrap 支持errors.Unwrap
func (e *ScrapeError) Unwrap() error {
	return e.Cause
}

// KindOf 提取错误分类
// 上下文取消归为KindCancelled,未分类错误按网络错误处理
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	return KindNetwork
}

// ValidationError 数据验证错误
// 用于职位字段校验和HTTP头部校验
type ValidationError struct {
	// Field 出错的字段 (如 "title", "name", "value")
	Field string

	// Subject 被校验的对象 (职位URL或头部名称)
	Subject string

	// Reason 错误原因
	Reason string

	// Suggestion 修复建议 (可选)
	Suggestion string
}

// Error 实现error接口
func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("验证失败 [%s] %s: %s", e.Subject, e.Field, e.Reason)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (建议: %s)", e.Suggestion)
	}
	return msg
}

// ConfigError 配置文件错误
type ConfigError struct {
	// FilePath 配置文件路径
	FilePath string

	// Cause 底层错误
	Cause error
}

// Error 实现error接口
func (e *ConfigError) Error() string {
	return fmt.Sprintf("配置文件错误 [%s]: %v", e.FilePath, e.Cause)
}

// Unwrap 支持errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Cause
}
