package main

import (
	"testing"

	"github.com/RecoveryAshes/JobScraper/internal/core"
	"github.com/RecoveryAshes/JobScraper/internal/models"
	"github.com/RecoveryAshes/JobScraper/internal/utils"
)

func TestStatsCmd(t *testing.T) {
	savedDir := t.TempDir()
	perf := models.BuildPerformanceReport(map[models.SiteID]models.SiteStats{
		models.SiteBoss: {Attempts: 2, Successes: 1, Failures: 1},
	})
	if _, err := utils.NewReporter(savedDir).SavePerformanceReport(perf); err != nil {
		t.Fatalf("SavePerformanceReport() error = %v", err)
	}

	tests := []struct {
		name      string
		configDir string
		flagDir   string
		asJSON    bool
		wantErr   bool
	}{
		{"读取配置目录", savedDir, "", false, false},
		{"命令行目录优先", t.TempDir(), savedDir, false, false},
		{"JSON输出", savedDir, "", true, false},
		{"统计文件不存在", t.TempDir(), "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appConfig = &core.Config{Output: core.OutputConfig{ReportDir: tt.configDir}}
			statsDir, statsJSON = tt.flagDir, tt.asJSON
			t.Cleanup(func() {
				appConfig = nil
				statsDir, statsJSON = "", false
			})

			err := statsCmd.RunE(statsCmd, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("stats error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
