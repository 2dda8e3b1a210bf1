package antidetect

import (
	"math/rand/v2"
	"time"
)

// History 计算延迟时可用的历史信息
type History struct {
	// First 是否为本管理器的首次请求
	First bool

	// SinceLast 距上次请求的间隔(首次为0)
	SinceLast time.Duration

	// Intervals 最近的请求间隔,按时间先后排列
	Intervals []time.Duration

	// Rand 随机源,由Manager持有,调用期间受其锁保护
	Rand *rand.Rand
}

// DelayPolicy 请求前等待时长的计算策略
// 通过 Options.Policy 注入,替换或缩放默认抖动而不影响管理器其他行为
type DelayPolicy interface {
	NextDelay(h History) time.Duration
}

// DelayFunc 函数适配器
type DelayFunc func(h History) time.Duration

// NextDelay 实现DelayPolicy
func (f DelayFunc) NextDelay(h History) time.Duration {
	return f(h)
}

// JitterPolicy 默认抖动策略
//
// 基础延迟在 [BaseMin, BaseMax) 内均匀分布;距上次请求不足 BurstWindow 时追加
// [BurstMin, BurstMax);最近若干个间隔的平均值低于 SlowThreshold 时再追加
// [SlowMin, SlowMax)。
type JitterPolicy struct {
	BaseMin, BaseMax   time.Duration
	BurstWindow        time.Duration
	BurstMin, BurstMax time.Duration
	SlowThreshold      time.Duration
	SlowMin, SlowMax   time.Duration
}

// DefaultJitterPolicy 默认抖动参数
func DefaultJitterPolicy() JitterPolicy {
	return JitterPolicy{
		BaseMin:       1 * time.Second,
		BaseMax:       3 * time.Second,
		BurstWindow:   2 * time.Second,
		BurstMin:      2 * time.Second,
		BurstMax:      5 * time.Second,
		SlowThreshold: 3 * time.Second,
		SlowMin:       1 * time.Second,
		SlowMax:       3 * time.Second,
	}
}

// NextDelay 实现DelayPolicy
func (p JitterPolicy) NextDelay(h History) time.Duration {
	d := uniform(h.Rand, p.BaseMin, p.BaseMax)

	if !h.First && h.SinceLast < p.BurstWindow {
		d += uniform(h.Rand, p.BurstMin, p.BurstMax)
	}

	if len(h.Intervals) > 0 && mean(h.Intervals) < p.SlowThreshold {
		d += uniform(h.Rand, p.SlowMin, p.SlowMax)
	}

	return d
}

// ScaledPolicy 按系数缩放内部策略的结果
type ScaledPolicy struct {
	Inner  DelayPolicy
	Factor float64
}

// NextDelay 实现DelayPolicy
func (p ScaledPolicy) NextDelay(h History) time.Duration {
	if p.Factor <= 0 {
		return 0
	}
	return time.Duration(float64(p.Inner.NextDelay(h)) * p.Factor)
}

// FixedPolicy 固定延迟
type FixedPolicy time.Duration

// NextDelay 实现DelayPolicy
func (p FixedPolicy) NextDelay(History) time.Duration {
	return time.Duration(p)
}

// uniform 返回 [min, max) 内的均匀随机时长
func uniform(r *rand.Rand, min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	span := int64(max - min)
	if r == nil {
		return min + time.Duration(rand.Int64N(span))
	}
	return min + time.Duration(r.Int64N(span))
}

func mean(ds []time.Duration) time.Duration {
	if len(ds) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range ds {
		total += d
	}
	return total / time.Duration(len(ds))
}
