package scrapers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/RecoveryAshes/JobScraper/internal/antidetect"
	"github.com/RecoveryAshes/JobScraper/internal/models"
	"github.com/RecoveryAshes/JobScraper/internal/utils"
)

const (
	// detailWaitTimeout 等待详情区域出现的上限,超时仍继续提取
	detailWaitTimeout = 10 * time.Second

	defaultVerificationPoll = 3 * time.Second
)

// siteSpec 站点差异部分
type siteSpec struct {
	site models.SiteID

	// acceptPath 判断路径是否为职位详情页
	acceptPath func(path string) bool

	// detailSelector 详情区域选择器,用于等待动态内容
	detailSelector string

	parse func(markup, rawURL string) (*models.Job, error)
}

// pageScraper 基于浏览器页面的通用爬取流程
type pageScraper struct {
	spec        siteSpec
	src         pageSource
	cfg         models.ScrapingConfig
	anti        *antidetect.Manager
	headers     models.HeaderProvider
	challenge   *antidetect.ChallengeDetector
	onChallenge ChallengeHandler
	closed      atomic.Bool
}

func newPageScraper(spec siteSpec, opts Options, src pageSource) *pageScraper {
	if src == nil {
		dir := ""
		if opts.Config.UserDataDir != "" {
			// 每个站点独立的浏览器配置目录,避免两个浏览器争用同一目录锁
			dir = filepath.Join(opts.Config.UserDataDir, string(spec.site))
		}
		res := opts.Resource
		if res == (ResourceMonitorConfig{}) {
			res = DefaultResourceMonitorConfig()
		}
		src = NewBrowser(BrowserConfig{
			Headless:    opts.Config.Headless,
			UserDataDir: dir,
			MaxPages:    opts.Config.ConcurrentLimit,
			Resource:    res,
		})
	}
	anti := opts.AntiDetect
	if anti == nil {
		anti = antidetect.NewManager(antidetect.Options{})
	}
	challenge := opts.Challenge
	if challenge == nil {
		challenge = antidetect.NewChallengeDetector(nil, nil)
	}
	return &pageScraper{
		spec:        spec,
		src:         src,
		cfg:         opts.Config,
		anti:        anti,
		headers:     opts.Headers,
		challenge:   challenge,
		onChallenge: opts.OnChallenge,
	}
}

// Site 实现Scraper
func (ps *pageScraper) Site() models.SiteID {
	return ps.spec.site
}

// Closed 是否已关闭
func (ps *pageScraper) Closed() bool {
	return ps.closed.Load()
}

// Close 实现Scraper,重复调用无副作用
func (ps *pageScraper) Close() error {
	if ps.closed.Swap(true) {
		return nil
	}
	return ps.src.Close()
}

// Scrape 实现Scraper
func (ps *pageScraper) Scrape(ctx context.Context, rawURL string) (job *models.Job, err error) {
	if ps.closed.Load() {
		return nil, ps.fail(models.KindResource, rawURL, ErrPoolClosed)
	}

	u, perr := url.Parse(rawURL)
	if perr != nil || !ps.spec.acceptPath(u.Path) {
		return nil, ps.fail(models.KindUnsupportedSite, rawURL, fmt.Errorf("不是%s职位详情页: %s", ps.spec.site, rawURL))
	}

	sess, release, aerr := ps.src.Acquire(ctx)
	if aerr != nil {
		return nil, ps.classify(ctx, models.KindResource, rawURL, aerr)
	}
	defer release()

	defer func() {
		if r := recover(); r != nil {
			utils.Errorf("页面操作panic: URL=%s, 错误=%v", rawURL, r)
			job = nil
			err = ps.fail(models.KindResource, rawURL, fmt.Errorf("%w: %v", ErrBrowserCrashed, r))
		}
	}()

	if err := sess.Prepare(ctx, ps.anti.SelectUserAgent(), ps.extraHeaders()); err != nil {
		return nil, ps.classify(ctx, models.KindResource, rawURL, err)
	}

	if err := ps.anti.Wait(ctx); err != nil {
		return nil, ps.classify(ctx, models.KindNetwork, rawURL, err)
	}

	utils.Debugf("访问职位页面: %s", rawURL)
	if err := sess.Navigate(ctx, rawURL); err != nil {
		return nil, ps.classify(ctx, models.KindNetwork, rawURL, err)
	}

	markup, err := sess.HTML(ctx)
	if err != nil {
		return nil, ps.classify(ctx, models.KindNetwork, rawURL, err)
	}

	if ps.challenge.Detect(markup) {
		if err := ps.awaitVerification(ctx, sess, rawURL); err != nil {
			return nil, err
		}
	}

	ps.anti.SimulateHumanBehavior(ctx, sess)

	if !sess.WaitVisible(ctx, ps.spec.detailSelector, detailWaitTimeout) {
		utils.Debugf("未等到详情区域,继续提取: %s", rawURL)
	}

	markup, err = sess.HTML(ctx)
	if err != nil {
		return nil, ps.classify(ctx, models.KindNetwork, rawURL, err)
	}

	job, err = ps.spec.parse(markup, rawURL)
	if err != nil {
		return nil, ps.fail(models.KindExtraction, rawURL, err)
	}
	utils.Debugf("提取职位成功: %s - %s", job.Title, job.Company)
	return job, nil
}

// awaitVerification 轮询直到页面不再是验证页
// 无头模式无法人工处理,直接失败
func (ps *pageScraper) awaitVerification(ctx context.Context, sess session, rawURL string) error {
	if ps.cfg.Headless {
		return ps.fail(models.KindVerification, rawURL, errors.New("检测到人机验证,无头模式下无法人工处理"))
	}

	timeout := ps.cfg.VerificationTimeout
	if timeout <= 0 {
		return ps.fail(models.KindVerification, rawURL, errors.New("检测到人机验证,未配置人工验证等待时间"))
	}
	poll := ps.cfg.VerificationPoll
	if poll <= 0 {
		poll = defaultVerificationPoll
	}

	if ps.onChallenge != nil {
		ps.onChallenge(ps.spec.site, rawURL)
	}
	utils.Warnf("⚠️ 检测到人机验证,请在浏览器中完成验证 (最长等待 %s): %s", timeout, rawURL)

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ps.classify(ctx, models.KindVerification, rawURL, ctx.Err())
		case <-deadline.C:
			return ps.fail(models.KindVerification, rawURL, fmt.Errorf("等待人工验证超时(%s)", timeout))
		case <-ticker.C:
			markup, err := sess.HTML(ctx)
			if err != nil {
				utils.Debugf("轮询验证状态失败: %v", err)
				continue
			}
			if !ps.challenge.Detect(markup) {
				utils.Infof("✅ 人工验证已完成: %s", rawURL)
				return nil
			}
		}
	}
}

func (ps *pageScraper) extraHeaders() http.Header {
	if ps.headers == nil {
		return nil
	}
	h, err := ps.headers.GetHeaders()
	if err != nil {
		utils.Warnf("获取HTTP头部失败: %v", err)
		return nil
	}
	return h
}

func (ps *pageScraper) fail(kind models.ErrorKind, rawURL string, cause error) error {
	return models.NewScrapeError(kind, ps.spec.site, rawURL, cause)
}

// classify 调用方主动取消归为KindCancelled,超时归为KindNetwork,其余使用给定分类
func (ps *pageScraper) classify(ctx context.Context, kind models.ErrorKind, rawURL string, cause error) error {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		kind = models.KindCancelled
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		kind = models.KindNetwork
	}
	return ps.fail(kind, rawURL, cause)
}
