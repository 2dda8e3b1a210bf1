package antidetect

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/RecoveryAshes/JobScraper/internal/utils"
)

// intervalWindow 计算平均请求间隔时保留的样本数
const intervalWindow = 10

// DefaultUserAgents 默认UA池(桌面版Chrome)
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
}

// Options 反检测管理器选项
type Options struct {
	// UserAgents UA池,为空时使用 DefaultUserAgents
	UserAgents []string

	// Policy 延迟策略,为空时使用 DefaultJitterPolicy
	Policy DelayPolicy

	// SimulateBehavior 是否在提取前模拟人类浏览行为
	SimulateBehavior bool

	// Rand 随机源,为空时使用随机种子
	Rand *rand.Rand

	// Now 时钟,测试时注入
	Now func() time.Time

	// Sleep 可取消的等待,测试时注入
	Sleep func(ctx context.Context, d time.Duration) error
}

// Manager 反检测管理器,并发安全
type Manager struct {
	mu sync.Mutex

	agents    []string
	lastAgent int

	policy     DelayPolicy
	lastAction time.Time
	intervals  []time.Duration

	simulate bool

	rng   *rand.Rand
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewManager 创建反检测管理器
func NewManager(opts Options) *Manager {
	m := &Manager{
		agents:    opts.UserAgents,
		lastAgent: -1,
		policy:    opts.Policy,
		intervals: make([]time.Duration, 0, intervalWindow),
		simulate:  opts.SimulateBehavior,
		rng:       opts.Rand,
		now:       opts.Now,
		sleep:     opts.Sleep,
	}
	if len(m.agents) == 0 {
		m.agents = DefaultUserAgents
	}
	m.agents = append([]string(nil), m.agents...)
	if m.policy == nil {
		m.policy = DefaultJitterPolicy()
	}
	if m.rng == nil {
		m.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.sleep == nil {
		m.sleep = Sleep
	}
	return m
}

// SelectUserAgent 随机选取UA,池中多于一个时不会与上次相同
func (m *Manager) SelectUserAgent() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.agents)
	if n == 1 {
		m.lastAgent = 0
		return m.agents[0]
	}

	var idx int
	if m.lastAgent < 0 {
		idx = m.rng.IntN(n)
	} else {
		// 在除上次之外的 n-1 个位置中选取
		idx = m.rng.IntN(n - 1)
		if idx >= m.lastAgent {
			idx++
		}
	}
	m.lastAgent = idx
	return m.agents[idx]
}

// UserAgents 返回UA池副本
func (m *Manager) UserAgents() []string {
	return append([]string(nil), m.agents...)
}

// CalculateDelay 计算本次请求前应等待的时长并记录本次请求
func (m *Manager) CalculateDelay() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	h := History{First: m.lastAction.IsZero(), Rand: m.rng}
	if !h.First {
		h.SinceLast = now.Sub(m.lastAction)
		m.intervals = append(m.intervals, h.SinceLast)
		if len(m.intervals) > intervalWindow {
			m.intervals = m.intervals[len(m.intervals)-intervalWindow:]
		}
	}
	h.Intervals = append([]time.Duration(nil), m.intervals...)
	m.lastAction = now

	d := m.policy.NextDelay(h)
	if d < 0 {
		d = 0
	}
	return d
}

// Wait 等待 CalculateDelay 给出的时长,ctx取消时提前返回
func (m *Manager) Wait(ctx context.Context) error {
	d := m.CalculateDelay()
	utils.Debugf("反检测延迟: %.2fs", d.Seconds())
	return m.sleep(ctx, d)
}

// SimulationEnabled 是否启用行为模拟
func (m *Manager) SimulationEnabled() bool {
	return m.simulate
}

// Sleep 可取消的等待
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
