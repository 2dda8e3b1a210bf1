// Package monitor 记录每个站点的爬取尝试、成功率和响应时间
package monitor

import (
	"sync"
	"time"

	"github.com/RecoveryAshes/JobScraper/internal/models"
)

// Monitor 性能监控器,并发安全
// 每个编排器持有自己的实例
type Monitor struct {
	mu    sync.Mutex
	sites map[models.SiteID]*models.SiteStats
	now   func() time.Time
}

// New 创建监控器
func New() *Monitor {
	return &Monitor{
		sites: make(map[models.SiteID]*models.SiteStats),
		now:   time.Now,
	}
}

// Record 记录一次尝试,计数和时间戳在同一把锁内更新
func (m *Monitor) Record(site models.SiteID, success bool, elapsed time.Duration) {
	if elapsed < 0 {
		elapsed = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.sites[site]
	if !ok {
		st = &models.SiteStats{}
		m.sites[site] = st
	}

	st.Attempts++
	st.TotalResponseTime += elapsed
	if success {
		st.Successes++
		st.LastSuccess = m.now()
	} else {
		st.Failures++
		st.LastFailure = m.now()
	}
}

// Snapshot 返回各站点计数的副本
func (m *Monitor) Snapshot() map[models.SiteID]models.SiteStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[models.SiteID]models.SiteStats, len(m.sites))
	for site, st := range m.sites {
		out[site] = *st
	}
	return out
}

// Report 生成性能报告
func (m *Monitor) Report() models.PerformanceReport {
	return models.BuildPerformanceReport(m.Snapshot())
}

// Reset 清空所有计数
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sites = make(map[models.SiteID]*models.SiteStats)
}
