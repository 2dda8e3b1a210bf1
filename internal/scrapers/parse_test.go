package scrapers

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/RecoveryAshes/JobScraper/internal/models"
)

const bossFixture = `<!DOCTYPE html>
<html>
<head><title>Go开发工程师-某科技公司-BOSS直聘</title></head>
<body>
<div class="job-banner">
  <div class="name"><h1 class="job-title">  Go开发工程师  </h1><span class="salary">20-35K·14薪</span></div>
  <p><span class="text-city">上海</span><span class="text-experiece">3-5年</span><span class="text-degree">本科</span></p>
</div>
<div class="job-detail">
  <ul class="job-tags"><li>Golang</li><li>微服务</li><li>Golang</li></ul>
  <div class="job-sec-text">
    岗位职责:<br>
    1. 负责交易系统后端开发,使用Go和MySQL<br>
    2. 参与Kubernetes平台建设<br>
    任职要求:<br>
    1. 熟悉Redis、Kafka<br>
    2. 有Docker使用经验
  </div>
</div>
<div class="company-info"><div class="company-name"><a href="/c/1">某科技公司</a></div></div>
<script>var tip = "Python";</script>
</body>
</html>`

const lagouFixture = `<html>
<head><title>后端开发-拉勾招聘</title></head>
<body>
<div class="position-head">
  <span class="name">Java高级工程师</span>
  <span class="salary">25k-40k</span>
</div>
<dd class="job_request"><h3><span>/上海 /</span><span>经验3-5年 /</span><span>本科及以上 /</span><span>全职</span></h3></dd>
<dl class="job-company"><a class="b2" href="#">拉勾示例公司</a></dl>
<input type="hidden" name="positionAddress" value=" 上海市浦东新区张江路 ">
<dd class="job_bt">
  <div>
    <p>职位描述:</p>
    <p>负责基于Spring Cloud的微服务开发,熟悉Java与MySQL。</p>
    <p>岗位要求:</p>
    <p>熟悉Elasticsearch,了解大数据处理。</p>
  </div>
</dd>
</body>
</html>`

func TestParseBossHTML(t *testing.T) {
	url := "https://www.zhipin.com/job_detail/abc123XYZ.html?ka=search"
	job, err := ParseBossHTML(bossFixture, url)
	if err != nil {
		t.Fatalf("ParseBossHTML() error = %v", err)
	}

	checks := []struct {
		name, got, want string
	}{
		{"职位ID", job.SourceID, "abc123XYZ"},
		{"标题", job.Title, "Go开发工程师"},
		{"公司", job.Company, "某科技公司"},
		{"薪资", job.Salary, "20-35K·14薪"},
		{"地点", job.Location, "上海"},
		{"经验", job.Experience, "3-5年"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.name, c.got, c.want)
		}
	}

	if job.Site != models.SiteBoss || job.URL != url || job.ID == "" {
		t.Errorf("基础字段错误: %+v", job)
	}
	if !strings.Contains(job.Description, "负责交易系统后端开发") || !strings.Contains(job.Description, "\n") {
		t.Errorf("描述应保留换行: %q", job.Description)
	}
	if !strings.HasPrefix(job.Requirements, "1. 熟悉Redis") {
		t.Errorf("任职要求 = %q", job.Requirements)
	}

	wantSkills := []string{"Golang", "微服务", "Go", "MySQL", "Kubernetes", "Redis", "Kafka", "Docker"}
	if !reflect.DeepEqual(job.Skills, wantSkills) {
		t.Errorf("Skills = %v, want %v", job.Skills, wantSkills)
	}
}

func TestParseBossHTML_TitleFallback(t *testing.T) {
	markup := `<html><head><title>数据分析师-示例公司-BOSS直聘</title></head>
<body><div class="company-name">示例公司</div></body></html>`

	job, err := ParseBossHTML(markup, "https://www.zhipin.com/job_detail/x.html")
	if err != nil {
		t.Fatalf("ParseBossHTML() error = %v", err)
	}
	if job.Title != "数据分析师" {
		t.Errorf("Title = %q, want 从页面标题回退", job.Title)
	}
	if job.Description != "" || job.Salary != "" {
		t.Errorf("可选字段应为空: %+v", job)
	}
}

func TestParseBossHTML_MissingRequired(t *testing.T) {
	tests := []struct {
		name    string
		markup  string
		wantErr error
	}{
		{"缺少标题", `<html><head><title>BOSS直聘</title></head><body><div class="company-name">公司</div></body></html>`, errTitleNotFound},
		{"缺少公司", `<html><body><h1 class="job-title">职位</h1></body></html>`, errCompanyNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBossHTML(tt.markup, "https://www.zhipin.com/job_detail/1.html")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseLagouHTML(t *testing.T) {
	job, err := ParseLagouHTML(lagouFixture, "https://www.lagou.com/jobs/7654321.html")
	if err != nil {
		t.Fatalf("ParseLagouHTML() error = %v", err)
	}

	checks := []struct {
		name, got, want string
	}{
		{"职位ID", job.SourceID, "7654321"},
		{"标题", job.Title, "Java高级工程师"},
		{"公司", job.Company, "拉勾示例公司"},
		{"薪资", job.Salary, "25k-40k"},
		{"地点", job.Location, "上海市浦东新区张江路"},
		{"经验", job.Experience, "3-5年"},
		{"学历", job.Education, "本科"},
		{"任职要求", job.Requirements, "熟悉Elasticsearch,了解大数据处理。"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.name, c.got, c.want)
		}
	}

	wantSkills := []string{"Spring", "Java", "MySQL", "Elasticsearch", "大数据"}
	if !reflect.DeepEqual(job.Skills, wantSkills) {
		t.Errorf("Skills = %v, want %v", job.Skills, wantSkills)
	}
}

func TestParseLagouHTML_Fallbacks(t *testing.T) {
	markup := `<html><body>
<h1 class="position-head-wrap-name">产品经理</h1>
<h2 class="fl">示例公司</h2>
<em class="add">北京</em>
<dd class="job_request">经验不限 学历不限</dd>
</body></html>`

	job, err := ParseLagouHTML(markup, "https://www.lagou.com/jobs/42")
	if err != nil {
		t.Fatalf("ParseLagouHTML() error = %v", err)
	}
	if job.SourceID != "42" || job.Location != "北京" || job.Experience != "经验不限" || job.Education != "不限" {
		t.Errorf("回退字段错误: %+v", job)
	}
	if len(job.Skills) != 0 {
		t.Errorf("无描述时技能应为空: %v", job.Skills)
	}
}

func TestJobIDs(t *testing.T) {
	t.Run("BOSS直聘", func(t *testing.T) {
		if got := BossJobID("https://www.zhipin.com/job_detail/a1b2c3~.html"); got != "a1b2c3~" {
			t.Errorf("BossJobID() = %q", got)
		}
		fallback := BossJobID("https://www.zhipin.com/job_detail/")
		if len(fallback) != 8 || fallback != BossJobID("https://www.zhipin.com/job_detail/") {
			t.Errorf("回退ID应为稳定的8位哈希: %q", fallback)
		}
	})

	t.Run("拉勾网", func(t *testing.T) {
		tests := map[string]string{
			"https://www.lagou.com/jobs/123.html":        "123",
			"https://www.lagou.com/jobs/456":             "456",
			"https://www.lagou.com/jobs/789.html?show=1": "789",
			"/jobs/321.html":                             "321",
			"https://www.lagou.com/jobs/list_go":         "",
			"https://www.lagou.com/gongsi/123.html":      "",
		}
		for in, want := range tests {
			if got := LagouJobID(in); got != want {
				t.Errorf("LagouJobID(%q) = %q, want %q", in, got, want)
			}
		}
	})
}

func TestExtractSkills(t *testing.T) {
	tests := []struct {
		name string
		desc string
		want []string
	}{
		{"按出现顺序", "熟悉Python和Java,了解Docker", []string{"Python", "Java", "Docker"}},
		{"单词边界", "JavaScript开发,熟悉Google生态", []string{"JavaScript"}},
		{"忽略大小写并使用规范写法", "熟悉 mysql / REDIS", []string{"MySQL", "Redis"}},
		{"符号技能", "精通C++与C#,熟悉Node.js", []string{"C++", "C#", "Node.js"}},
		{"中文关键词", "有机器学习和数据分析经验", []string{"机器学习", "数据分析"}},
		{"无技能", "负责日常运营工作", []string{}},
		{
			"最多10个",
			"Java Python Go PHP Ruby Scala Kotlin React Vue Angular Spring Django",
			[]string{"Java", "Python", "Go", "PHP", "Ruby", "Scala", "Kotlin", "React", "Vue", "Angular"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractSkills(tt.desc); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("extractSkills() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractRequirements(t *testing.T) {
	tests := []struct {
		name string
		desc string
		want string
	}{
		{"任职要求", "岗位职责:\n写代码\n任职要求:\n本科以上\n三年经验", "本科以上\n三年经验"},
		{"全角冒号", "职位要求：熟悉Go", "熟悉Go"},
		{"取最先出现的标题", "岗位要求\nA\n任职资格\nB", "A\n任职资格\nB"},
		{"无标题", "负责后端开发", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractRequirements(tt.desc); got != tt.want {
				t.Errorf("extractRequirements() = %q, want %q", got, tt.want)
			}
		})
	}
}
