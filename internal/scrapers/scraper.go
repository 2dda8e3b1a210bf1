package scrapers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/RecoveryAshes/JobScraper/internal/antidetect"
	"github.com/RecoveryAshes/JobScraper/internal/models"
)

// 错误类型定义
var (
	ErrBrowserCrashed = errors.New("浏览器崩溃")
	ErrPoolClosed     = errors.New("页面池已关闭")
)

// Scraper 单站点职位爬取器
// 返回的错误均为 *models.ScrapeError
type Scraper interface {
	Site() models.SiteID
	Scrape(ctx context.Context, url string) (*models.Job, error)
	Close() error
}

// ChallengeHandler 有头模式下检测到人机验证时的回调,用于提示用户
type ChallengeHandler func(site models.SiteID, url string)

// Options 爬取器依赖
type Options struct {
	Config      models.ScrapingConfig
	AntiDetect  *antidetect.Manager
	Headers     models.HeaderProvider
	Challenge   *antidetect.ChallengeDetector
	OnChallenge ChallengeHandler
	Resource    ResourceMonitorConfig
}

// session 单次爬取独占的页面
type session interface {
	antidetect.Surface

	// Prepare 设置UA和额外请求头
	Prepare(ctx context.Context, userAgent string, headers http.Header) error
	Navigate(ctx context.Context, url string) error
	HTML(ctx context.Context) (string, error)

	// WaitVisible 在timeout内等待选择器出现,未出现返回false
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) bool
}

// pageSource 页面来源,Browser是唯一的生产实现
type pageSource interface {
	Acquire(ctx context.Context) (session, func(), error)
	Close() error
}

// New 按站点创建爬取器
func New(site models.SiteID, opts Options) (Scraper, error) {
	switch site {
	case models.SiteBoss:
		return NewBossScraper(opts), nil
	case models.SiteLagou:
		return NewLagouScraper(opts), nil
	default:
		return nil, fmt.Errorf("没有对应站点的爬取器: %s", site)
	}
}
