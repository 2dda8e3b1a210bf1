package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// SiteStats 单站点统计计数
// 首次尝试时创建,进程生命周期内不删除
type SiteStats struct {
	Attempts          int           `json:"attempts"`
	Successes         int           `json:"successes"`
	Failures          int           `json:"failures"`
	TotalResponseTime time.Duration `json:"total_response_time"`
	LastSuccess       time.Time     `json:"last_success,omitempty"`
	LastFailure       time.Time     `json:"last_failure,omitempty"`
}

// StatsSummary 汇总指标
type StatsSummary struct {
	Attempts        int           `json:"attempts"`
	Successes       int           `json:"successes"`
	Failures        int           `json:"failures"`
	SuccessRate     float64       `json:"success_rate"` // 百分比 0-100
	AvgResponseTime time.Duration `json:"avg_response_time"`
}

// SiteReport 单站点报告
type SiteReport struct {
	Site SiteID `json:"site"`
	StatsSummary
	LastSuccess time.Time `json:"last_success,omitempty"`
	LastFailure time.Time `json:"last_failure,omitempty"`
}

// PerformanceReport 性能报告
type PerformanceReport struct {
	Overall     StatsSummary `json:"overall"`
	Sites       []SiteReport `json:"sites"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// Summarize 由计数计算汇总指标
func Summarize(attempts, successes, failures int, total time.Duration) StatsSummary {
	s := StatsSummary{
		Attempts:  attempts,
		Successes: successes,
		Failures:  failures,
	}
	if attempts > 0 {
		s.SuccessRate = float64(successes) / float64(attempts) * 100
		s.AvgResponseTime = total / time.Duration(attempts)
	}
	return s
}

// BuildPerformanceReport 由各站点计数构建报告,站点按站点表顺序排列
func BuildPerformanceReport(stats map[SiteID]SiteStats) PerformanceReport {
	report := PerformanceReport{
		Sites:       make([]SiteReport, 0, len(stats)),
		GeneratedAt: time.Now(),
	}

	var attempts, successes, failures int
	var total time.Duration
	for site, st := range stats {
		attempts += st.Attempts
		successes += st.Successes
		failures += st.Failures
		total += st.TotalResponseTime

		report.Sites = append(report.Sites, SiteReport{
			Site:         site,
			StatsSummary: Summarize(st.Attempts, st.Successes, st.Failures, st.TotalResponseTime),
			LastSuccess:  st.LastSuccess,
			LastFailure:  st.LastFailure,
		})
	}
	report.Overall = Summarize(attempts, successes, failures, total)

	sort.Slice(report.Sites, func(i, j int) bool {
		oi, oj := siteOrder(report.Sites[i].Site), siteOrder(report.Sites[j].Site)
		if oi != oj {
			return oi < oj
		}
		return report.Sites[i].Site < report.Sites[j].Site
	})
	return report
}

// Format 格式化为可读文本
func (r PerformanceReport) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "总尝试: %d, 成功率: %.2f%%, 平均响应: %.2fs\n",
		r.Overall.Attempts, r.Overall.SuccessRate, r.Overall.AvgResponseTime.Seconds())
	for _, s := range r.Sites {
		b.WriteString("  ")
		b.WriteString(s.Format())
		b.WriteString("\n")
	}
	return b.String()
}

// Format 格式化单站点统计
func (s SiteReport) Format() string {
	line := fmt.Sprintf("%s: 尝试 %d, 成功 %d, 失败 %d, 成功率 %.2f%%, 平均响应 %.2fs",
		s.Site, s.Attempts, s.Successes, s.Failures, s.SuccessRate, s.AvgResponseTime.Seconds())
	if !s.LastSuccess.IsZero() {
		line += ", 最近成功 " + s.LastSuccess.Format(time.DateTime)
	}
	if !s.LastFailure.IsZero() {
		line += ", 最近失败 " + s.LastFailure.Format(time.DateTime)
	}
	return line
}
