package scrapers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/RecoveryAshes/JobScraper/internal/antidetect"
	"github.com/RecoveryAshes/JobScraper/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/gofrs/flock"
)

const (
	profileLockName         = ".jobscraper.lock"
	resourceMonitorInterval = 2 * time.Second
)

// BrowserConfig 浏览器配置
type BrowserConfig struct {
	Headless bool

	// UserDataDir 浏览器用户数据目录,为空时使用临时目录并在关闭时删除
	UserDataDir string

	// MaxPages 同时打开的页面上限
	MaxPages int

	Resource ResourceMonitorConfig
}

// Browser 单个爬取器共享的浏览器,首次获取页面时启动
// 浏览器崩溃后下一次获取页面会重新启动
type Browser struct {
	cfg BrowserConfig

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
	pool     *PagePool
	monitor  *ResourceMonitor
	lock     *flock.Flock
	dir      string
	tempDir  bool
	closed   bool
}

// NewBrowser 创建浏览器,不会立即启动
func NewBrowser(cfg BrowserConfig) *Browser {
	return &Browser{cfg: cfg}
}

// ensure 确保浏览器已启动,调用方持有 mu
func (b *Browser) ensure() error {
	if b.closed {
		return ErrPoolClosed
	}
	if b.pool != nil {
		return nil
	}

	dir, temp, err := b.profileDir()
	if err != nil {
		return err
	}

	lock := flock.New(filepath.Join(dir, profileLockName))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("锁定用户数据目录失败: %w", err)
	}
	if !locked {
		return fmt.Errorf("用户数据目录已被其他进程占用: %s", dir)
	}

	l := launcher.New().
		Headless(b.cfg.Headless).
		UserDataDir(dir)
	for name, value := range antidetect.LaunchFlags() {
		if value == "" {
			l = l.Set(flags.Flag(name))
		} else {
			l = l.Set(flags.Flag(name), value)
		}
	}

	controlURL, err := l.Launch()
	if err != nil {
		_ = lock.Unlock()
		if temp {
			_ = os.RemoveAll(dir)
		}
		return fmt.Errorf("启动浏览器失败(请确认已安装Chrome/Chromium,可运行 go run scripts/verify_setup.go 检查环境): %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		_ = lock.Unlock()
		if temp {
			_ = os.RemoveAll(dir)
		}
		return fmt.Errorf("连接浏览器失败: %w", err)
	}

	monitor := NewResourceMonitor(b.cfg.Resource)
	monitor.StartMonitoring(resourceMonitorInterval)
	status := monitor.GetMemoryStatus()

	b.launcher = l
	b.browser = browser
	b.monitor = monitor
	b.pool = NewPagePool(browser, monitor, b.cfg.MaxPages)
	b.lock = lock
	b.dir = dir
	b.tempDir = temp

	utils.Debugf("🌐 浏览器已启动: %s (无头: %v, 用户数据目录: %s, 内存压力: %s)",
		controlURL, b.cfg.Headless, dir, status.MemoryPressure)
	return nil
}

func (b *Browser) profileDir() (dir string, temp bool, err error) {
	if b.cfg.UserDataDir == "" {
		dir, err = os.MkdirTemp("", "jobscraper-profile-*")
		if err != nil {
			return "", false, fmt.Errorf("创建临时用户数据目录失败: %w", err)
		}
		return dir, true, nil
	}
	if err := os.MkdirAll(b.cfg.UserDataDir, 0755); err != nil {
		return "", false, fmt.Errorf("创建用户数据目录失败: %w", err)
	}
	return b.cfg.UserDataDir, false, nil
}

// Acquire 获取独占页面,release 必须在所有路径上调用
func (b *Browser) Acquire(ctx context.Context) (session, func(), error) {
	b.mu.Lock()
	if err := b.ensure(); err != nil {
		b.mu.Unlock()
		return nil, nil, err
	}
	pool := b.pool
	b.mu.Unlock()

	page, err := pool.AcquirePage(ctx)
	if err != nil {
		if errors.Is(err, ErrBrowserCrashed) {
			b.restart(pool)
		}
		return nil, nil, err
	}

	release := func() { pool.ReleasePage(page) }
	return rodSession{page: page}, release, nil
}

// restart 丢弃已崩溃的浏览器,下一次 Acquire 重新启动
func (b *Browser) restart(crashed *PagePool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pool != crashed || b.closed {
		return
	}
	utils.Warnf("⚠️ 浏览器已崩溃,下一次爬取时重新启动")
	if err := b.shutdownLocked(); err != nil {
		utils.Debugf("清理崩溃的浏览器: %v", err)
	}
}

// shutdownLocked 关闭当前浏览器进程并释放目录锁,调用方持有 mu
func (b *Browser) shutdownLocked() error {
	if b.pool == nil {
		return nil
	}

	var errs []error
	if err := b.pool.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := b.browser.Close(); err != nil {
		utils.Debugf("关闭浏览器连接: %v", err)
	}
	b.monitor.StopMonitoring()

	if b.tempDir {
		// Cleanup 等待进程退出并删除用户数据目录
		b.launcher.Kill()
		b.launcher.Cleanup()
	} else {
		b.launcher.Kill()
	}

	if err := b.lock.Unlock(); err != nil {
		errs = append(errs, fmt.Errorf("释放用户数据目录锁失败: %w", err))
	}

	b.pool = nil
	b.browser = nil
	b.launcher = nil
	b.monitor = nil
	b.lock = nil
	return errors.Join(errs...)
}

// Running 浏览器是否已启动
func (b *Browser) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pool != nil
}

// Close 关闭浏览器,重复调用无副作用
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	if err := b.shutdownLocked(); err != nil {
		return err
	}
	utils.Debugf("浏览器已关闭")
	return nil
}

// rodSession 基于rod页面的session
type rodSession struct {
	page *rod.Page
}

func (s rodSession) Prepare(ctx context.Context, userAgent string, headers http.Header) error {
	p := s.page.Context(ctx)
	if userAgent != "" {
		if err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      userAgent,
			AcceptLanguage: "zh-CN,zh;q=0.9,en;q=0.8",
		}); err != nil {
			return fmt.Errorf("设置UA失败: %w", err)
		}
	}

	dict := make([]string, 0, len(headers)*2)
	for name, values := range headers {
		if len(values) > 0 {
			dict = append(dict, name, values[0])
		}
	}
	if len(dict) > 0 {
		if _, err := p.SetExtraHeaders(dict); err != nil {
			return fmt.Errorf("设置请求头失败: %w", err)
		}
	}
	return nil
}

func (s rodSession) Navigate(ctx context.Context, url string) error {
	p := s.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("导航失败: %w", err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("等待页面加载失败: %w", err)
	}
	return nil
}

func (s rodSession) HTML(ctx context.Context) (string, error) {
	markup, err := s.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("读取页面内容失败: %w", err)
	}
	return markup, nil
}

func (s rodSession) WaitVisible(ctx context.Context, selector string, timeout time.Duration) bool {
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err := s.page.Context(wctx).Element(selector)
	return err == nil
}

func (s rodSession) ScrollBy(ctx context.Context, dy int) error {
	return antidetect.RodSurface{Page: s.page}.ScrollBy(ctx, dy)
}

func (s rodSession) MoveMouse(ctx context.Context, x, y float64) error {
	return antidetect.RodSurface{Page: s.page}.MoveMouse(ctx, x, y)
}
