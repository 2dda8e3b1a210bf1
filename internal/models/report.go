package models

import (
	"time"
)

// BatchReport 批量爬取报告
type BatchReport struct {
	// 时间信息
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  float64   `json:"duration"` // 秒

	// 统计信息
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`

	// 逐条结果,顺序与输入一致
	Results []ScrapingResult `json:"results"`

	// 失败条目按错误分类计数
	FailuresByKind map[ErrorKind]int `json:"failures_by_kind,omitempty"`

	// 性能快照
	Performance PerformanceReport `json:"performance"`

	// 配置快照
	Config ScrapingConfig `json:"config"`
}

// NewBatchReport 汇总批量结果
func NewBatchReport(results []ScrapingResult, start, end time.Time, perf PerformanceReport, config ScrapingConfig) BatchReport {
	report := BatchReport{
		StartTime:      start,
		EndTime:        end,
		Duration:       end.Sub(start).Seconds(),
		Total:          len(results),
		Results:        results,
		FailuresByKind: make(map[ErrorKind]int),
		Performance:    perf,
		Config:         config,
	}
	for _, r := range results {
		if r.Success {
			report.Succeeded++
			continue
		}
		report.Failed++
		report.FailuresByKind[r.ErrorKind]++
	}
	return report
}
