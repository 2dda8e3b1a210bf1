package models

import (
	"time"
)

// ScrapingResult 单个URL的爬取结果
// Job与Error有且仅有一个被填充
type ScrapingResult struct {
	Success   bool          `json:"success"`
	Job       *Job          `json:"job,omitempty"`
	Error     string        `json:"error,omitempty"`
	ErrorKind ErrorKind     `json:"error_kind,omitempty"`
	URL       string        `json:"url"`
	Site      SiteID        `json:"site"`
	Attempts  int           `json:"attempts"` // 实际调用站点爬取器的次数
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewSuccessResult 创建成功结果
func NewSuccessResult(url string, site SiteID, job *Job, attempts int, duration time.Duration) ScrapingResult {
	return ScrapingResult{
		Success:   true,
		Job:       job,
		URL:       url,
		Site:      site,
		Attempts:  attempts,
		Duration:  duration,
		Timestamp: time.Now(),
	}
}

// NewFailureResult 创建失败结果
func NewFailureResult(url string, site SiteID, err error, attempts int, duration time.Duration) ScrapingResult {
	msg := "未知错误"
	if err != nil {
		msg = err.Error()
	}
	return ScrapingResult{
		Success:   false,
		Error:     msg,
		ErrorKind: KindOf(err),
		URL:       url,
		Site:      site,
		Attempts:  attempts,
		Duration:  duration,
		Timestamp: time.Now(),
	}
}
