package core

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RecoveryAshes/JobScraper/internal/antidetect"
	"github.com/RecoveryAshes/JobScraper/internal/detector"
	"github.com/RecoveryAshes/JobScraper/internal/models"
	"github.com/RecoveryAshes/JobScraper/internal/monitor"
	"github.com/RecoveryAshes/JobScraper/internal/scrapers"
	"github.com/RecoveryAshes/JobScraper/internal/utils"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// ErrOrchestratorClosed 编排器已清理
var ErrOrchestratorClosed = errors.New("编排器已关闭")

// ResultHook 每个URL得到最终结果后调用,可能被并发调用
type ResultHook func(result models.ScrapingResult)

// Option 编排器选项
type Option func(*Orchestrator) error

// WithScraper 为站点注入爬取器,替换默认实现
func WithScraper(site models.SiteID, s scrapers.Scraper) Option {
	return func(o *Orchestrator) error {
		if !site.Valid() {
			return fmt.Errorf("未知站点: %q", site)
		}
		if s == nil {
			return fmt.Errorf("站点 %s 的爬取器不能为空", site)
		}
		o.registry[site] = s
		return nil
	}
}

// WithAntiDetection 使用指定的反检测管理器
func WithAntiDetection(m *antidetect.Manager) Option {
	return func(o *Orchestrator) error {
		o.anti = m
		return nil
	}
}

// WithRateLimit 按主机限速,reqPerSec <= 0 表示不限速
func WithRateLimit(reqPerSec float64, burst int) Option {
	return func(o *Orchestrator) error {
		o.limiter = antidetect.NewHostLimiter(reqPerSec, burst)
		return nil
	}
}

// WithChallengeHandler 有头模式检测到人机验证时的回调
func WithChallengeHandler(fn scrapers.ChallengeHandler) Option {
	return func(o *Orchestrator) error {
		o.onChallenge = fn
		return nil
	}
}

// WithHeaderProvider 附加HTTP头部来源
func WithHeaderProvider(p models.HeaderProvider) Option {
	return func(o *Orchestrator) error {
		o.headers = p
		return nil
	}
}

// WithProber 健康检查使用的探测器
func WithProber(p Prober) Option {
	return func(o *Orchestrator) error {
		o.prober = p
		return nil
	}
}

// WithResultHook 结果回调
func WithResultHook(fn ResultHook) Option {
	return func(o *Orchestrator) error {
		o.hook = fn
		return nil
	}
}

// WithChallengeDetector 人机验证识别器
func WithChallengeDetector(d *antidetect.ChallengeDetector) Option {
	return func(o *Orchestrator) error {
		o.challenge = d
		return nil
	}
}

// WithResourceConfig 浏览器页面数的资源限制
func WithResourceConfig(rc scrapers.ResourceMonitorConfig) Option {
	return func(o *Orchestrator) error {
		o.resource = rc
		return nil
	}
}

// Orchestrator 爬取编排器
// 按URL分派到站点爬取器,负责重试、并发控制和性能统计
type Orchestrator struct {
	config    models.ScrapingConfig
	registry  map[models.SiteID]scrapers.Scraper
	monitor   *monitor.Monitor
	validator *utils.JobValidator
	sem       *semaphore.Weighted

	anti        *antidetect.Manager
	limiter     *antidetect.HostLimiter
	headers     models.HeaderProvider
	challenge   *antidetect.ChallengeDetector
	onChallenge scrapers.ChallengeHandler
	prober      Prober
	hook        ResultHook
	resource    scrapers.ResourceMonitorConfig

	rngMu sync.Mutex
	rng   *rand.Rand

	closed    atomic.Bool
	closeOnce sync.Once
}

// NewOrchestrator 创建编排器
// 配置在构造时复制,之后的修改不影响编排器
func NewOrchestrator(cfg models.ScrapingConfig, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("爬取配置无效: %w", err)
	}
	cfg.ProxyPool = slices.Clone(cfg.ProxyPool)

	o := &Orchestrator{
		config:    cfg,
		registry:  make(map[models.SiteID]scrapers.Scraper),
		monitor:   monitor.New(),
		validator: utils.NewJobValidator(),
		sem:       semaphore.NewWeighted(int64(cfg.ConcurrentLimit)),
		rng:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}

	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	if o.anti == nil {
		o.anti = antidetect.NewManager(antidetect.Options{SimulateBehavior: true})
	}
	if o.limiter == nil {
		o.limiter = antidetect.NewHostLimiter(0, 1)
	}
	if o.challenge == nil {
		o.challenge = antidetect.NewChallengeDetector(nil, nil)
	}
	if o.prober == nil {
		o.prober = NewCollyProber(o.anti, o.headers, o.challenge, cfg.Timeout)
	}

	for _, site := range detector.SupportedSites() {
		if _, ok := o.registry[site]; ok {
			continue
		}
		s, err := scrapers.New(site, scrapers.Options{
			Config:      o.config,
			AntiDetect:  o.anti,
			Headers:     o.headers,
			Challenge:   o.challenge,
			OnChallenge: o.onChallenge,
			Resource:    o.resource,
		})
		if err != nil {
			return nil, err
		}
		o.registry[site] = s
	}

	if len(cfg.ProxyPool) > 0 {
		utils.Debugf("已配置%d个代理,当前版本不使用代理池", len(cfg.ProxyPool))
	}
	utils.Debugf("编排器已创建: 并发=%d 最大尝试=%d 无头=%v", cfg.ConcurrentLimit, cfg.MaxRetries, cfg.Headless)

	return o, nil
}

// Config 返回配置副本
func (o *Orchestrator) Config() models.ScrapingConfig {
	cfg := o.config
	cfg.ProxyPool = slices.Clone(cfg.ProxyPool)
	return cfg
}

// SupportedSites 支持的站点
func (o *Orchestrator) SupportedSites() []models.SiteID {
	return detector.SupportedSites()
}

// IsURLSupported URL是否属于支持的站点
func (o *Orchestrator) IsURLSupported(url string) bool {
	return detector.IsSupported(url)
}

// PerformanceStats 性能统计
func (o *Orchestrator) PerformanceStats() models.PerformanceReport {
	return o.monitor.Report()
}

// ScrapeSingle 爬取单个URL
// 不支持的URL直接失败且不计入统计,其余按错误分类决定是否重试
func (o *Orchestrator) ScrapeSingle(ctx context.Context, url string) models.ScrapingResult {
	start := time.Now()
	site := detector.Detect(url)

	finish := func(r models.ScrapingResult) models.ScrapingResult {
		if o.hook != nil {
			o.hook(r)
		}
		return r
	}

	if o.closed.Load() {
		err := models.NewScrapeError(models.KindResource, site, url, ErrOrchestratorClosed)
		return finish(models.NewFailureResult(url, site, err, 0, time.Since(start)))
	}
	if site == models.SiteUnsupported {
		err := models.NewScrapeError(models.KindUnsupportedSite, site, url, fmt.Errorf("不支持的站点"))
		utils.Warnf("⚠️  不支持的URL: %s", url)
		return finish(models.NewFailureResult(url, site, err, 0, time.Since(start)))
	}
	if err := ctx.Err(); err != nil {
		return finish(models.NewFailureResult(url, site, o.cancelled(site, url, err), 0, time.Since(start)))
	}

	scraper := o.registry[site]
	attempts := 0
	var lastErr error

	for {
		job, invoked, err := o.attempt(ctx, site, scraper, url)
		if invoked {
			attempts++
		}
		if err == nil {
			utils.Infof("✅ 爬取成功 [%s] %s (尝试%d次)", site, url, attempts)
			return finish(models.NewSuccessResult(url, site, job, attempts, time.Since(start)))
		}
		lastErr = err

		if ctx.Err() != nil {
			lastErr = o.cancelled(site, url, err)
			break
		}
		kind := models.KindOf(err)
		if !shouldRetry(kind, attempts, o.config.MaxRetries, o.config.Headless) {
			break
		}

		delay := o.backoff(attempts)
		utils.Warnf("🔄 第%d次尝试失败 [%s] %s: %v, %v后重试", attempts, kind, url, err, delay.Round(time.Millisecond))
		if err := antidetect.Sleep(ctx, delay); err != nil {
			lastErr = o.cancelled(site, url, err)
			break
		}
	}

	utils.Errorf("❌ 爬取失败 [%s] %s (尝试%d次): %v", site, url, attempts, lastErr)
	return finish(models.NewFailureResult(url, site, lastErr, attempts, time.Since(start)))
}

// attempt 执行一次尝试,invoked 表示是否实际调用了站点爬取器
func (o *Orchestrator) attempt(ctx context.Context, site models.SiteID, s scrapers.Scraper, url string) (job *models.Job, invoked bool, err error) {
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return nil, false, o.cancelled(site, url, err)
	}
	if err := o.limiter.WaitURL(ctx, url); err != nil {
		o.sem.Release(1)
		return nil, false, o.cancelled(site, url, err)
	}

	actx, cancel := context.WithTimeout(ctx, o.attemptTimeout())
	start := time.Now()
	job, err = s.Scrape(actx, url)
	elapsed := time.Since(start)
	cancel()
	o.sem.Release(1)

	if err == nil && job == nil {
		err = fmt.Errorf("爬取器未返回职位")
	}
	if err == nil && o.config.DataValidation {
		job, err = o.validator.CleanAndValidate(job)
	}
	if err != nil {
		var se *models.ScrapeError
		if !errors.As(err, &se) {
			kind := models.KindOf(err)
			var ve *models.ValidationError
			if errors.As(err, &ve) {
				kind = models.KindExtraction
			}
			err = models.NewScrapeError(kind, site, url, err)
		}
	}

	if o.config.EnableMonitoring {
		o.monitor.Record(site, err == nil, elapsed)
	}
	return job, true, err
}

// attemptTimeout 单次尝试的超时,有头模式额外留出人工验证时间
func (o *Orchestrator) attemptTimeout() time.Duration {
	if o.config.Headless {
		return o.config.Timeout
	}
	return o.config.Timeout + o.config.VerificationTimeout
}

func (o *Orchestrator) backoff(attempt int) time.Duration {
	o.rngMu.Lock()
	defer o.rngMu.Unlock()
	return retryDelay(o.config, attempt, o.rng)
}

func (o *Orchestrator) cancelled(site models.SiteID, url string, cause error) error {
	return models.NewScrapeError(models.KindCancelled, site, url, cause)
}

// ScrapeBatch 并发爬取多个URL,结果顺序与输入一致
// 单个URL失败不影响其他URL,取消后未完成的URL返回已取消结果
func (o *Orchestrator) ScrapeBatch(ctx context.Context, urls []string) []models.ScrapingResult {
	results := make([]models.ScrapingResult, len(urls))
	if len(urls) == 0 {
		return results
	}

	utils.Infof("🚀 开始批量爬取: %d个URL, 并发上限%d", len(urls), o.config.ConcurrentLimit)

	var g errgroup.Group
	for i, url := range urls {
		g.Go(func() error {
			results[i] = o.ScrapeSingle(ctx, url)
			return nil
		})
	}
	_ = g.Wait()

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	utils.Infof("📊 批量爬取完成: 成功%d/%d", succeeded, len(urls))
	return results
}

// HealthCheck 检查各站点爬取器状态,开启探测时并发访问站点首页
func (o *Orchestrator) HealthCheck(ctx context.Context) models.HealthReport {
	closed := o.closed.Load()
	sites := detector.SupportedSites()

	report := models.HealthReport{
		SupportedSites: sites,
		Sites:          make([]models.SiteHealth, len(sites)),
		Performance:    o.PerformanceStats(),
		Config:         o.Config(),
		Timestamp:      time.Now(),
	}

	var wg sync.WaitGroup
	for i, site := range sites {
		s := o.registry[site]
		h := models.SiteHealth{Site: site, Available: !closed && s != nil && !isClosed(s)}
		report.Sites[i] = h
		if !h.Available {
			continue
		}
		report.ScrapersAvailable++
		if !o.config.ProbeReachability {
			continue
		}

		info, _ := detector.Lookup(site)
		wg.Add(1)
		go func() {
			defer wg.Done()
			probed := o.prober.Probe(ctx, info)
			probed.Site = site
			probed.Available = true
			probed.Probed = true
			report.Sites[i] = probed
		}()
	}
	wg.Wait()

	report.Status = healthStatus(report.Sites, closed)
	return report
}

// isClosed 爬取器实现了 Closed() 时据此判断
func isClosed(s scrapers.Scraper) bool {
	c, ok := s.(interface{ Closed() bool })
	return ok && c.Closed()
}

// Cleanup 关闭所有爬取器及其浏览器,重复调用返回nil
// 之后的爬取调用返回 ErrOrchestratorClosed
func (o *Orchestrator) Cleanup() error {
	var err error
	o.closeOnce.Do(func() {
		o.closed.Store(true)

		var errs []error
		for _, site := range detector.SupportedSites() {
			s, ok := o.registry[site]
			if !ok {
				continue
			}
			if cerr := s.Close(); cerr != nil {
				errs = append(errs, fmt.Errorf("关闭%s爬取器失败: %w", site, cerr))
			}
		}
		err = errors.Join(errs...)
		if err != nil {
			utils.Errorf("清理资源失败: %v", err)
		} else {
			utils.Debugf("编排器资源已清理")
		}
	})
	return err
}
