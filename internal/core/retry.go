package core

import (
	"math/rand/v2"
	"time"

	"github.com/RecoveryAshes/JobScraper/internal/models"
)

// maxExtractionAttempts 提取失败的尝试上限,页面结构问题通常重试无效
const maxExtractionAttempts = 2

// maxBackoff 单次退避上限
const maxBackoff = 5 * time.Minute

// shouldRetry 判断第 attempt 次尝试失败后是否继续
// attempt 从1开始计数,maxRetries 为总尝试次数上限
func shouldRetry(kind models.ErrorKind, attempt, maxRetries int, headless bool) bool {
	switch kind {
	case models.KindUnsupportedSite, models.KindCancelled:
		return false
	case models.KindVerification:
		// 无头模式无法人工处理验证
		return !headless && attempt < maxRetries
	case models.KindExtraction:
		return attempt < min(maxRetries, maxExtractionAttempts)
	default:
		return attempt < maxRetries
	}
}

// retryDelay 计算第 attempt 次失败后的等待时间
// constant: base; exponential: base*2^(attempt-1); 均附加 [0, base/2) 的抖动
func retryDelay(cfg models.ScrapingConfig, attempt int, rng *rand.Rand) time.Duration {
	base := cfg.RetryDelay
	if base <= 0 {
		return 0
	}

	d := base
	if cfg.Backoff == models.BackoffExponential && attempt > 1 {
		shift := min(attempt-1, 16)
		d = base << shift
		if d <= 0 || d > maxBackoff {
			d = maxBackoff
		}
	}

	if half := int64(base / 2); half > 0 && rng != nil {
		d += time.Duration(rng.Int64N(half))
	}
	return d
}
