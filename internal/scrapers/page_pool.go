package scrapers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/RecoveryAshes/JobScraper/internal/antidetect"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"
)

// pageResetTimeout 归还页面时重置为空白页的超时
const pageResetTimeout = 5 * time.Second

// PageHealthStatus 页面健康状态,用于重试和销毁决策
type PageHealthStatus struct {
	ResetFailureCount int       // 重置失败次数
	LastSuccessTime   time.Time // 最后一次成功使用时间
	IsDirty           bool      // 重置失败2次后标记
}

// PagePool 页面池
// 每次爬取独占一个页面;页面数受 maxPages 和 ResourceMonitor 双重限制,
// 达到上限时 AcquirePage 阻塞直到有页面归还或被销毁
type PagePool struct {
	browser         *rod.Browser
	resourceMonitor *ResourceMonitor
	maxPages        int

	pages          []*rod.Page
	creating       int
	availablePages chan *rod.Page

	// changed 在页面被销毁或创建失败时关闭并替换,唤醒等待者
	changed chan struct{}

	mu     sync.Mutex
	closed bool

	pageHealth map[*rod.Page]*PageHealthStatus
	healthMu   sync.RWMutex
}

// NewPagePool 创建页面池
// resourceMonitor 为nil时只受 maxPages 限制
func NewPagePool(browser *rod.Browser, resourceMonitor *ResourceMonitor, maxPages int) *PagePool {
	if maxPages < 1 {
		maxPages = 1
	}
	return &PagePool{
		browser:         browser,
		resourceMonitor: resourceMonitor,
		maxPages:        maxPages,
		pages:           make([]*rod.Page, 0, maxPages),
		availablePages:  make(chan *rod.Page, maxPages),
		changed:         make(chan struct{}),
		pageHealth:      make(map[*rod.Page]*PageHealthStatus),
	}
}

// limit 当前允许的最大页面数
func (pp *PagePool) limit() int {
	if pp.resourceMonitor == nil {
		return pp.maxPages
	}
	return min(pp.maxPages, pp.resourceMonitor.CalculateMaxPages())
}

// AcquirePage 获取一个独占页面
func (pp *PagePool) AcquirePage(ctx context.Context) (*rod.Page, error) {
	for {
		select {
		case page, ok := <-pp.availablePages:
			if !ok {
				return nil, ErrPoolClosed
			}
			return page, nil
		default:
		}

		pp.mu.Lock()
		if pp.closed {
			pp.mu.Unlock()
			return nil, ErrPoolClosed
		}

		current := len(pp.pages) + pp.creating
		canCreate := current < pp.limit()
		if canCreate && current > 0 && pp.resourceMonitor != nil {
			ok, reason := pp.resourceMonitor.CheckResourceAvailability()
			if !ok {
				log.Warn().Msgf("资源不足,暂不创建新页面: %s", reason)
				canCreate = false
			}
		}

		if canCreate {
			pp.creating++
			pp.mu.Unlock()
			return pp.createPage()
		}

		changed := pp.changed
		pp.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case page, ok := <-pp.availablePages:
			if !ok {
				return nil, ErrPoolClosed
			}
			return page, nil
		case <-changed:
		}
	}
}

// createPage 创建页面并注入反检测脚本,调用前已占用一个 creating 名额
func (pp *PagePool) createPage() (*rod.Page, error) {
	page, err := pp.browser.Page(proto.TargetCreateTarget{})
	if err == nil {
		if _, evalErr := page.EvalOnNewDocument(antidetect.StealthScript); evalErr != nil {
			log.Debug().Err(evalErr).Msg("注入反检测脚本失败")
		}
	}

	pp.mu.Lock()
	pp.creating--
	if err != nil {
		if !pp.closed {
			pp.signalLocked()
		}
		pp.mu.Unlock()
		log.Error().Err(err).Msg("创建页面失败,浏览器可能已崩溃")
		return nil, fmt.Errorf("%w: 创建页面失败: %v", ErrBrowserCrashed, err)
	}
	if pp.closed {
		pp.mu.Unlock()
		_ = page.Close()
		return nil, ErrPoolClosed
	}
	pp.pages = append(pp.pages, page)
	size := len(pp.pages)
	pp.mu.Unlock()

	pp.healthMu.Lock()
	pp.pageHealth[page] = &PageHealthStatus{LastSuccessTime: time.Now()}
	pp.healthMu.Unlock()

	log.Debug().Msgf("创建新页面,当前页面数: %d, 最大限制: %d", size, pp.limit())
	return page, nil
}

// signalLocked 唤醒所有等待者,调用方持有 mu
func (pp *PagePool) signalLocked() {
	close(pp.changed)
	pp.changed = make(chan struct{})
}

// ReleasePage 归还页面
// 重置失败: 第一次立即重试,第二次标记为脏,第三次销毁
func (pp *PagePool) ReleasePage(page *rod.Page) {
	if page == nil {
		return
	}

	pp.healthMu.RLock()
	health, exists := pp.pageHealth[page]
	pp.healthMu.RUnlock()

	if !exists {
		log.Warn().Msg("页面没有健康记录,直接销毁")
		pp.destroyPage(page)
		return
	}

	if err := pp.resetPage(page); err != nil {
		pp.healthMu.Lock()
		health.ResetFailureCount++
		failures := health.ResetFailureCount
		pp.healthMu.Unlock()

		log.Warn().Err(err).Msgf("重置页面失败 (第%d次失败)", failures)

		switch failures {
		case 1:
			if err := pp.resetPage(page); err == nil {
				pp.markHealthy(health)
				log.Debug().Msg("重试重置成功,页面恢复正常")
			} else {
				pp.healthMu.Lock()
				health.ResetFailureCount++
				pp.healthMu.Unlock()
			}
		case 2:
			pp.healthMu.Lock()
			health.IsDirty = true
			pp.healthMu.Unlock()
			log.Warn().Msg("页面标记为脏状态,下次失败将销毁")
		default:
			pp.destroyPage(page)
			return
		}
	} else {
		pp.markHealthy(health)
	}

	pp.mu.Lock()
	defer pp.mu.Unlock()
	if pp.closed {
		_ = page.Close()
		return
	}
	select {
	case pp.availablePages <- page:
	default:
		go pp.destroyPage(page)
	}
}

func (pp *PagePool) markHealthy(health *PageHealthStatus) {
	pp.healthMu.Lock()
	health.ResetFailureCount = 0
	health.LastSuccessTime = time.Now()
	health.IsDirty = false
	pp.healthMu.Unlock()
}

// resetPage 导航到空白页,停止上一个站点的脚本和定时器
// cookie保留,人工验证后的会话可继续使用
func (pp *PagePool) resetPage(page *rod.Page) error {
	ctx, cancel := context.WithTimeout(context.Background(), pageResetTimeout)
	defer cancel()

	if err := page.Context(ctx).Navigate("about:blank"); err != nil {
		return fmt.Errorf("重置页面失败: %w", err)
	}
	return nil
}

// destroyPage 关闭并移除页面
func (pp *PagePool) destroyPage(page *rod.Page) {
	pp.mu.Lock()
	for i, p := range pp.pages {
		if p == page {
			pp.pages = append(pp.pages[:i], pp.pages[i+1:]...)
			break
		}
	}
	size := len(pp.pages)
	if !pp.closed {
		pp.signalLocked()
	}
	pp.mu.Unlock()

	pp.healthMu.Lock()
	delete(pp.pageHealth, page)
	pp.healthMu.Unlock()

	if err := page.Close(); err != nil {
		log.Debug().Err(err).Msg("关闭页面失败")
	}

	log.Debug().Msgf("销毁页面,当前页面数: %d", size)
}

// CurrentSize 当前页面数
func (pp *PagePool) CurrentSize() int {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	return len(pp.pages)
}

// MaxSize 当前允许的最大页面数
func (pp *PagePool) MaxSize() int {
	return pp.limit()
}

// Close 关闭所有页面,重复调用无副作用
func (pp *PagePool) Close() error {
	pp.mu.Lock()
	defer pp.mu.Unlock()

	if pp.closed {
		return nil
	}

	for _, page := range pp.pages {
		if err := page.Close(); err != nil {
			log.Debug().Err(err).Msg("关闭页面失败")
		}
	}

	pp.pages = nil
	pp.closed = true
	close(pp.availablePages)
	close(pp.changed)

	log.Debug().Msg("页面池已关闭")
	return nil
}
