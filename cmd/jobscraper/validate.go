package main

import (
	"fmt"
	"time"

	"github.com/RecoveryAshes/JobScraper/internal/detector"
	"github.com/RecoveryAshes/JobScraper/internal/models"
)

// ValidateURL 验证职位URL格式及站点
func ValidateURL(urlStr string) error {
	if err := models.ValidateURL(urlStr); err != nil {
		return err
	}
	if !detector.IsSupported(urlStr) {
		return fmt.Errorf("不支持的站点或非职位详情页: %s (支持: %v)", urlStr, detector.SupportedSites())
	}
	return nil
}

// ValidateFlags 验证命令行标志
func ValidateFlags(
	targetURL string,
	urlFile string,
	maxRetries int,
	retryDelay time.Duration,
	timeout time.Duration,
	concurrentLimit int,
) error {
	if targetURL != "" && urlFile != "" {
		return fmt.Errorf("--url 和 --url-file 不能同时使用")
	}

	// 验证URL
	if targetURL != "" {
		if err := ValidateURL(models.NormalizeURL(targetURL)); err != nil {
			return fmt.Errorf("无效的目标URL: %w", err)
		}
	}

	// 验证尝试次数
	if maxRetries < 1 || maxRetries > 10 {
		return fmt.Errorf("最大尝试次数必须在1-10之间,当前值: %d", maxRetries)
	}

	// 验证重试间隔
	if retryDelay < 0 || retryDelay > 5*time.Minute {
		return fmt.Errorf("重试间隔必须在0-5分钟之间,当前值: %v", retryDelay)
	}

	// 验证超时
	if timeout <= 0 || timeout > 10*time.Minute {
		return fmt.Errorf("超时时间必须在0-10分钟之间,当前值: %v", timeout)
	}

	// 验证并发数
	if concurrentLimit < 1 || concurrentLimit > 20 {
		return fmt.Errorf("并发数必须在1-20之间,当前值: %d", concurrentLimit)
	}

	return nil
}
