package antidetect

import (
	"context"
	"fmt"
	"time"

	"github.com/RecoveryAshes/JobScraper/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Surface 行为模拟所需的最小浏览器能力
type Surface interface {
	ScrollBy(ctx context.Context, dy int) error
	MoveMouse(ctx context.Context, x, y float64) error
}

// ActionKind 模拟动作类型
type ActionKind int

const (
	ActionScroll ActionKind = iota
	ActionMove
	ActionPause
)

// Action 单个模拟动作
type Action struct {
	Kind  ActionKind
	DY    int           // 滚动距离(像素)
	X, Y  float64       // 鼠标目标坐标
	Pause time.Duration // 动作后的停顿
}

// BehaviorPlan 一次模拟的动作序列,长度有上界
type BehaviorPlan struct {
	Actions []Action
}

// 行为模拟的取值范围
const (
	minScrolls, maxScrolls   = 2, 5
	minScrollPx, maxScrollPx = 300, 800
	minMoves, maxMoves       = 3, 8
	mouseMinX, mouseMaxX     = 100, 1000
	mouseMinY, mouseMaxY     = 100, 600

	// MaxPlanActions 单次计划的动作数上限
	MaxPlanActions = maxScrolls + maxMoves + 1
)

var (
	scrollPauseMin, scrollPauseMax = 500 * time.Millisecond, 2 * time.Second
	movePauseMin, movePauseMax     = 100 * time.Millisecond, 500 * time.Millisecond
	finalPauseMin, finalPauseMax   = 1 * time.Second, 3 * time.Second
)

// NewPlan 生成随机行为计划
func (m *Manager) NewPlan() BehaviorPlan {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.rng
	plan := BehaviorPlan{Actions: make([]Action, 0, MaxPlanActions)}

	scrolls := minScrolls + r.IntN(maxScrolls-minScrolls+1)
	for i := 0; i < scrolls; i++ {
		plan.Actions = append(plan.Actions, Action{
			Kind:  ActionScroll,
			DY:    minScrollPx + r.IntN(maxScrollPx-minScrollPx+1),
			Pause: uniform(r, scrollPauseMin, scrollPauseMax),
		})
	}

	moves := minMoves + r.IntN(maxMoves-minMoves+1)
	for i := 0; i < moves; i++ {
		plan.Actions = append(plan.Actions, Action{
			Kind:  ActionMove,
			X:     mouseMinX + r.Float64()*(mouseMaxX-mouseMinX),
			Y:     mouseMinY + r.Float64()*(mouseMaxY-mouseMinY),
			Pause: uniform(r, movePauseMin, movePauseMax),
		})
	}

	plan.Actions = append(plan.Actions, Action{
		Kind:  ActionPause,
		Pause: uniform(r, finalPauseMin, finalPauseMax),
	})
	return plan
}

// SimulateHumanBehavior 在提取前执行一组随机浏览动作
// 尽力而为: 动作失败只记录日志,不向调用方返回错误;ctx取消时停止
func (m *Manager) SimulateHumanBehavior(ctx context.Context, s Surface) {
	if !m.simulate || s == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			utils.Debugf("行为模拟异常已忽略: %v", r)
		}
	}()

	plan := m.NewPlan()
	failed := 0
	for _, a := range plan.Actions {
		if ctx.Err() != nil {
			return
		}

		var err error
		switch a.Kind {
		case ActionScroll:
			err = s.ScrollBy(ctx, a.DY)
		case ActionMove:
			err = s.MoveMouse(ctx, a.X, a.Y)
		}
		if err != nil {
			failed++
			utils.Debugf("行为模拟动作失败: %v", err)
		}

		if err := m.sleep(ctx, a.Pause); err != nil {
			return
		}
	}

	if failed > 0 {
		utils.Debugf("行为模拟完成,%d/%d 个动作失败", failed, len(plan.Actions))
	}
}

// RodSurface 基于rod页面的Surface实现
type RodSurface struct {
	Page *rod.Page
}

// ScrollBy 实现Surface
func (s RodSurface) ScrollBy(ctx context.Context, dy int) error {
	_, err := s.Page.Context(ctx).Eval(`(dy) => window.scrollBy(0, dy)`, dy)
	if err != nil {
		return fmt.Errorf("滚动失败: %w", err)
	}
	return nil
}

// MoveMouse 实现Surface
func (s RodSurface) MoveMouse(ctx context.Context, x, y float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.Page.Mouse.MoveTo(proto.Point{X: x, Y: y}); err != nil {
		return fmt.Errorf("移动鼠标失败: %w", err)
	}
	return nil
}
