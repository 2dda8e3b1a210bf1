package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/RecoveryAshes/JobScraper/internal/models"
	"github.com/schollz/progressbar/v3"
)

// Reporter 报告生成器
type Reporter struct {
	outputDir string
}

// NewReporter 创建报告生成器
func NewReporter(outputDir string) *Reporter {
	return &Reporter{outputDir: outputDir}
}

// SaveBatchReport 保存批量爬取报告,返回文件路径
func (r *Reporter) SaveBatchReport(report models.BatchReport) (string, error) {
	name := fmt.Sprintf("batch_%s.json", report.StartTime.Format("20060102_150405"))
	path, err := r.saveJSONReport(name, report)
	if err != nil {
		return "", err
	}
	Infof("✅ 批量报告已生成: %s", path)
	return path, nil
}

// SavePerformanceReport 保存性能统计快照,固定文件名,每次覆盖
func (r *Reporter) SavePerformanceReport(report models.PerformanceReport) (string, error) {
	return r.saveJSONReport("scraping_stats.json", report)
}

// LoadPerformanceReport 读取上次保存的性能统计
func (r *Reporter) LoadPerformanceReport() (*models.PerformanceReport, error) {
	data, err := os.ReadFile(filepath.Join(r.outputDir, "scraping_stats.json"))
	if err != nil {
		return nil, fmt.Errorf("读取统计文件失败: %w", err)
	}
	var report models.PerformanceReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("解析统计文件失败: %w", err)
	}
	return &report, nil
}

// saveJSONReport 保存JSON报告
func (r *Reporter) saveJSONReport(filename string, data interface{}) (string, error) {
	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return "", fmt.Errorf("创建报告目录失败: %w", err)
	}

	path := filepath.Join(r.outputDir, filename)

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("序列化JSON失败: %w", err)
	}

	// 先写临时文件再重命名,避免中断时留下半个文件
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, jsonData, 0644); err != nil {
		return "", fmt.Errorf("写入报告文件失败: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("写入报告文件失败: %w", err)
	}

	Debugf("保存报告: %s", path)
	return path, nil
}

// NewProgressBar 创建进度条
func NewProgressBar(max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
