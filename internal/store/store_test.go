package store

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/RecoveryAshes/JobScraper/internal/models"
	"github.com/RecoveryAshes/JobScraper/internal/utils"
	"github.com/rs/zerolog"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "jobs.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleJob(site models.SiteID, url string, scrapedAt time.Time) *models.Job {
	job := models.NewJob(site, url)
	job.SourceID = "abc123"
	job.Title = "Go开发工程师"
	job.Company = "示例科技"
	job.Location = "北京"
	job.Salary = "20-40K"
	job.Description = "负责后端服务开发"
	job.Requirements = "熟悉Go语言"
	job.Skills = []string{"Go", "MySQL"}
	job.ScrapedAt = scrapedAt
	return job
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"空路径", "", true},
		{"自动创建目录", filepath.Join(t.TempDir(), "a", "b", "jobs.db"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				_ = s.Close()
			}
		})
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SaveJob(ctx, sampleJob(models.SiteBoss, "https://www.zhipin.com/job_detail/a.html", time.Now())); err != nil {
		t.Fatal(err)
	}
	_ = s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("重新打开失败: %v", err)
	}
	defer s.Close()
	n, err := s.Count(ctx)
	if err != nil || n != 1 {
		t.Errorf("Count() = %d, %v, want 1", n, err)
	}
}

func TestSaveAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	job := sampleJob(models.SiteLagou, "https://www.lagou.com/jobs/123.html", at)
	if err := s.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob() error = %v", err)
	}

	got, err := s.GetJobByURL(ctx, job.URL)
	if err != nil {
		t.Fatalf("GetJobByURL() error = %v", err)
	}
	if got.ID != job.ID || got.Site != models.SiteLagou || got.Title != job.Title || got.Company != job.Company {
		t.Errorf("got = %+v", got)
	}
	if len(got.Skills) != 2 || got.Skills[0] != "Go" || got.Skills[1] != "MySQL" {
		t.Errorf("Skills = %v", got.Skills)
	}
	if !got.ScrapedAt.Equal(at) {
		t.Errorf("ScrapedAt = %v, want %v", got.ScrapedAt, at)
	}

	if _, err := s.GetJobByURL(ctx, "https://www.lagou.com/jobs/404.html"); !errors.Is(err, ErrNotFound) {
		t.Errorf("不存在的URL应返回ErrNotFound, got %v", err)
	}
}

func TestSaveJob_Upsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	url := "https://www.zhipin.com/job_detail/x.html"

	first := sampleJob(models.SiteBoss, url, time.Now())
	if err := s.SaveJob(ctx, first); err != nil {
		t.Fatal(err)
	}

	second := sampleJob(models.SiteBoss, url, time.Now())
	second.Salary = "30-50K"
	second.Skills = nil
	if err := s.SaveJob(ctx, second); err != nil {
		t.Fatal(err)
	}

	n, _ := s.Count(ctx)
	if n != 1 {
		t.Fatalf("重复URL应更新而非插入, Count = %d", n)
	}
	got, err := s.GetJobByURL(ctx, url)
	if err != nil {
		t.Fatal(err)
	}
	if got.Salary != "30-50K" {
		t.Errorf("Salary = %q, want 30-50K", got.Salary)
	}
	if got.ID != first.ID {
		t.Errorf("更新时应保留首次入库的ID: got %s, want %s", got.ID, first.ID)
	}
	if got.Skills == nil || len(got.Skills) != 0 {
		t.Errorf("空技能应读回空切片, got %#v", got.Skills)
	}
}

func TestSaveJob_Invalid(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SaveJob(ctx, nil); err == nil {
		t.Error("nil职位应返回错误")
	}
	if err := s.SaveJob(ctx, &models.Job{}); err == nil {
		t.Error("空URL应返回错误")
	}
}

func TestListJobs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	jobs := []*models.Job{
		sampleJob(models.SiteBoss, "https://www.zhipin.com/job_detail/1.html", base),
		sampleJob(models.SiteLagou, "https://www.lagou.com/jobs/2.html", base.Add(time.Hour)),
		sampleJob(models.SiteBoss, "https://www.zhipin.com/job_detail/3.html", base.Add(2*time.Hour)),
	}
	for _, j := range jobs {
		if err := s.SaveJob(ctx, j); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name     string
		opts     ListOptions
		wantURLs []string
	}{
		{"全部", ListOptions{}, []string{jobs[2].URL, jobs[1].URL, jobs[0].URL}},
		{"限制数量", ListOptions{Limit: 1}, []string{jobs[2].URL}},
		{"按站点", ListOptions{Site: models.SiteBoss}, []string{jobs[2].URL, jobs[0].URL}},
		{"无匹配", ListOptions{Site: models.SiteID("liepin")}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListJobs(ctx, tt.opts)
			if err != nil {
				t.Fatalf("ListJobs() error = %v", err)
			}
			if len(got) != len(tt.wantURLs) {
				t.Fatalf("数量 = %d, want %d", len(got), len(tt.wantURLs))
			}
			for i, j := range got {
				if j.URL != tt.wantURLs[i] {
					t.Errorf("[%d] URL = %s, want %s", i, j.URL, tt.wantURLs[i])
				}
			}
		})
	}
}

func TestSaveResults(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ok := sampleJob(models.SiteBoss, "https://www.zhipin.com/job_detail/ok.html", time.Now())
	results := []models.ScrapingResult{
		{Success: true, Job: ok, URL: ok.URL, Site: models.SiteBoss},
		{Success: false, URL: "https://www.lagou.com/jobs/9.html", Site: models.SiteLagou, Error: "超时"},
		{Success: true, Job: nil, URL: "https://example.com"},
	}

	saved, err := s.SaveResults(ctx, results)
	if err != nil {
		t.Fatalf("SaveResults() error = %v", err)
	}
	if saved != 1 {
		t.Errorf("saved = %d, want 1", saved)
	}
}

func TestSaveResults_LogsFailures(t *testing.T) {
	logDir := t.TempDir()
	if err := utils.InitLogger(utils.LogConfig{Level: "info", LogDir: logDir, MaxSize: 1, Console: &bytes.Buffer{}}); err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}
	t.Cleanup(func() { utils.Logger = zerolog.Nop() })

	s := openTestStore(t)
	broken := &models.Job{Title: "无URL职位", Company: "示例科技"}
	saved, err := s.SaveResults(context.Background(), []models.ScrapingResult{
		{Success: true, Job: broken, URL: "https://www.zhipin.com/job_detail/broken.html", Site: models.SiteBoss},
	})
	if err == nil || saved != 0 {
		t.Fatalf("SaveResults() = %d, %v, want 0 and error", saved, err)
	}

	content, err := os.ReadFile(filepath.Join(logDir, "jobscraper.log"))
	if err != nil {
		t.Fatalf("读取日志文件失败: %v", err)
	}
	for _, want := range []string{`"component":"store"`, "数据库已就绪", "保存职位失败"} {
		if !strings.Contains(string(content), want) {
			t.Errorf("日志缺少 %s: %s", want, content)
		}
	}
}

func TestClose_Nil(t *testing.T) {
	var s *Store
	if err := s.Close(); err != nil {
		t.Errorf("nil Store Close() = %v", err)
	}
}
