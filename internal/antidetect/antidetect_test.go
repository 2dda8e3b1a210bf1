package antidetect

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"
)

// fakeClock 手动推进的时钟
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestManager(opts Options) (*Manager, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(1, 2))
	}
	opts.Now = clock.Now
	if opts.Sleep == nil {
		opts.Sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	}
	return NewManager(opts), clock
}

func TestSelectUserAgent_NoImmediateRepeat(t *testing.T) {
	m, _ := newTestManager(Options{})

	prev := m.SelectUserAgent()
	seen := map[string]bool{prev: true}
	for i := 0; i < 1000; i++ {
		ua := m.SelectUserAgent()
		if ua == prev {
			t.Fatalf("第%d次选择与上次UA相同: %s", i, ua)
		}
		seen[ua] = true
		prev = ua
	}
	if len(seen) != len(DefaultUserAgents) {
		t.Errorf("应覆盖整个UA池, 实际覆盖 %d/%d", len(seen), len(DefaultUserAgents))
	}
}

func TestSelectUserAgent_SinglePool(t *testing.T) {
	m, _ := newTestManager(Options{UserAgents: []string{"only-agent"}})
	for i := 0; i < 5; i++ {
		if ua := m.SelectUserAgent(); ua != "only-agent" {
			t.Fatalf("单个UA时应始终返回该UA, got %s", ua)
		}
	}
}

func TestSelectUserAgent_TwoAgentsAlternate(t *testing.T) {
	m, _ := newTestManager(Options{UserAgents: []string{"a", "b"}})
	first := m.SelectUserAgent()
	for i := 0; i < 10; i++ {
		next := m.SelectUserAgent()
		if next == first {
			t.Fatalf("两个UA时应交替出现")
		}
		first = next
	}
}

func TestCalculateDelay_Jitter(t *testing.T) {
	m, clock := newTestManager(Options{})

	// 首次请求: 仅基础延迟
	d := m.CalculateDelay()
	if d < time.Second || d >= 3*time.Second {
		t.Errorf("首次延迟 %v 不在 [1s,3s)", d)
	}

	// 间隔充足的请求: 基础延迟,平均间隔也充足
	clock.Advance(10 * time.Second)
	d = m.CalculateDelay()
	if d < time.Second || d >= 3*time.Second {
		t.Errorf("间隔充足时延迟 %v 不在 [1s,3s)", d)
	}

	// 连续快速请求: 基础 + 突发惩罚 (+ 平均间隔惩罚)
	for i := 0; i < 12; i++ {
		clock.Advance(500 * time.Millisecond)
		d = m.CalculateDelay()
	}
	if d < 4*time.Second || d >= 11*time.Second {
		t.Errorf("快速连续请求延迟 %v 不在 [4s,11s)", d)
	}
}

func TestCalculateDelay_PolicyInjection(t *testing.T) {
	tests := []struct {
		name   string
		policy DelayPolicy
		want   time.Duration
	}{
		{"固定延迟", FixedPolicy(250 * time.Millisecond), 250 * time.Millisecond},
		{"缩放固定延迟", ScaledPolicy{Inner: FixedPolicy(time.Second), Factor: 0.5}, 500 * time.Millisecond},
		{"零系数", ScaledPolicy{Inner: FixedPolicy(time.Second), Factor: 0}, 0},
		{"函数策略", DelayFunc(func(h History) time.Duration { return time.Duration(len(h.Intervals)) }), 0},
		{"负数截断为0", FixedPolicy(-time.Second), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestManager(Options{Policy: tt.policy})
			if got := m.CalculateDelay(); got != tt.want {
				t.Errorf("CalculateDelay() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCalculateDelay_HistoryWindow(t *testing.T) {
	var last History
	m, clock := newTestManager(Options{Policy: DelayFunc(func(h History) time.Duration {
		last = h
		return 0
	})})

	m.CalculateDelay()
	if !last.First {
		t.Error("首次调用应标记First")
	}
	for i := 0; i < 15; i++ {
		clock.Advance(time.Second)
		m.CalculateDelay()
	}
	if last.First || last.SinceLast != time.Second {
		t.Errorf("History = %+v", last)
	}
	if len(last.Intervals) != intervalWindow {
		t.Errorf("间隔窗口长度 = %d, want %d", len(last.Intervals), intervalWindow)
	}
}

func TestWait_Cancelled(t *testing.T) {
	m := NewManager(Options{Policy: FixedPolicy(time.Hour)})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := m.Wait(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Error("取消后应立即返回")
	}
}

func TestNewPlan_Bounds(t *testing.T) {
	m, _ := newTestManager(Options{SimulateBehavior: true})

	for i := 0; i < 200; i++ {
		plan := m.NewPlan()
		if len(plan.Actions) > MaxPlanActions {
			t.Fatalf("动作数 %d 超过上限 %d", len(plan.Actions), MaxPlanActions)
		}

		var scrolls, moves int
		for _, a := range plan.Actions {
			switch a.Kind {
			case ActionScroll:
				scrolls++
				if a.DY < minScrollPx || a.DY > maxScrollPx {
					t.Fatalf("滚动距离越界: %d", a.DY)
				}
			case ActionMove:
				moves++
				if a.X < mouseMinX || a.X > mouseMaxX || a.Y < mouseMinY || a.Y > mouseMaxY {
					t.Fatalf("鼠标坐标越界: (%v,%v)", a.X, a.Y)
				}
			}
			if a.Pause < 0 || a.Pause > 3*time.Second {
				t.Fatalf("停顿越界: %v", a.Pause)
			}
		}
		if scrolls < minScrolls || scrolls > maxScrolls {
			t.Fatalf("滚动次数越界: %d", scrolls)
		}
		if moves < minMoves || moves > maxMoves {
			t.Fatalf("鼠标移动次数越界: %d", moves)
		}
	}
}

// recordingSurface 记录动作,可配置为失败或panic
type recordingSurface struct {
	scrolls, moves int
	fail           bool
	panicOnMove    bool
}

func (s *recordingSurface) ScrollBy(ctx context.Context, dy int) error {
	s.scrolls++
	if s.fail {
		return errors.New("页面已关闭")
	}
	return nil
}

func (s *recordingSurface) MoveMouse(ctx context.Context, x, y float64) error {
	s.moves++
	if s.panicOnMove {
		panic("鼠标不可用")
	}
	if s.fail {
		return errors.New("页面已关闭")
	}
	return nil
}

func TestSimulateHumanBehavior(t *testing.T) {
	t.Run("正常执行全部动作", func(t *testing.T) {
		m, _ := newTestManager(Options{SimulateBehavior: true})
		s := &recordingSurface{}
		m.SimulateHumanBehavior(context.Background(), s)
		if s.scrolls < minScrolls || s.moves < minMoves {
			t.Errorf("动作未执行完整: scrolls=%d moves=%d", s.scrolls, s.moves)
		}
	})

	t.Run("动作失败不中断", func(t *testing.T) {
		m, _ := newTestManager(Options{SimulateBehavior: true})
		s := &recordingSurface{fail: true}
		m.SimulateHumanBehavior(context.Background(), s)
		if s.moves < minMoves {
			t.Errorf("失败后应继续执行: moves=%d", s.moves)
		}
	})

	t.Run("panic被吞掉", func(t *testing.T) {
		m, _ := newTestManager(Options{SimulateBehavior: true})
		m.SimulateHumanBehavior(context.Background(), &recordingSurface{panicOnMove: true})
	})

	t.Run("关闭模拟时不执行", func(t *testing.T) {
		m, _ := newTestManager(Options{SimulateBehavior: false})
		s := &recordingSurface{}
		m.SimulateHumanBehavior(context.Background(), s)
		if s.scrolls+s.moves != 0 {
			t.Error("关闭模拟时不应执行动作")
		}
	})

	t.Run("取消后停止", func(t *testing.T) {
		m, _ := newTestManager(Options{SimulateBehavior: true})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		s := &recordingSurface{}
		m.SimulateHumanBehavior(ctx, s)
		if s.scrolls+s.moves != 0 {
			t.Errorf("已取消时不应执行动作: %+v", s)
		}
	})
}

func TestChallengeDetector(t *testing.T) {
	d := NewChallengeDetector(nil, nil)

	tests := []struct {
		name   string
		markup string
		want   bool
	}{
		{"普通职位页", `<html><head><title>Go开发工程师-BOSS直聘</title></head><body><div class="job-sec">负责后端开发</div></body></html>`, false},
		{"标题含验证", `<html><head><title>安全验证</title></head><body></body></html>`, true},
		{"正文含验证码", `<html><head><title>拉勾</title></head><body><p>请输入验证码后继续访问</p></body></html>`, true},
		{"访问频繁", `<html><body><div>您的访问过于频繁,请稍后再试</div></body></html>`, true},
		{"英文captcha大小写", `<html><body><div id="CAPTCHA">Please solve the CAPTCHA</div></body></html>`, true},
		{"脚本中的关键字不算", `<html><head><title>职位详情</title></head><body><script>var tip = "请输入验证码";</script><p>职位描述</p></body></html>`, false},
		{"空内容", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Detect(tt.markup); got != tt.want {
				t.Errorf("Detect() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChallengeDetector_CustomPatterns(t *testing.T) {
	d := NewChallengeDetector([]string{"滑块"}, []string{"Robot Check"})

	if !d.Detect(`<html><body>请拖动滑块完成拼图</body></html>`) {
		t.Error("自定义正文特征未生效")
	}
	if !d.Detect(`<html><head><title>robot check</title></head></html>`) {
		t.Error("自定义标题特征应忽略大小写")
	}
	if d.Detect(`<html><body>请输入验证码</body></html>`) {
		t.Error("替换特征后默认特征不应生效")
	}
}

func TestHostLimiter(t *testing.T) {
	t.Run("不限速", func(t *testing.T) {
		hl := NewHostLimiter(0, 1)
		for i := 0; i < 100; i++ {
			if err := hl.WaitURL(context.Background(), "https://www.zhipin.com/job_detail/1.html"); err != nil {
				t.Fatalf("WaitURL() error = %v", err)
			}
		}
	})

	t.Run("按主机隔离", func(t *testing.T) {
		hl := NewHostLimiter(0.001, 1)
		ctx := context.Background()
		if err := hl.WaitURL(ctx, "https://www.zhipin.com/a"); err != nil {
			t.Fatalf("首个令牌应立即可用: %v", err)
		}
		if err := hl.WaitURL(ctx, "https://www.lagou.com/b"); err != nil {
			t.Fatalf("不同主机应使用独立的桶: %v", err)
		}

		short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		if err := hl.WaitURL(short, "https://WWW.ZHIPIN.COM/c"); err == nil {
			t.Error("同一主机令牌耗尽时应等待直至超时")
		}
	})
}

func TestLaunchFlags(t *testing.T) {
	flags := LaunchFlags()
	if flags["disable-blink-features"] != "AutomationControlled" {
		t.Errorf("缺少AutomationControlled启动参数: %v", flags)
	}
}
