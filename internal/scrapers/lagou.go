package scrapers

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/RecoveryAshes/JobScraper/internal/detector"
	"github.com/RecoveryAshes/JobScraper/internal/models"
	"github.com/RecoveryAshes/JobScraper/internal/utils"
)

var (
	lagouJobIDPattern      = regexp.MustCompile(`/jobs/(\d+)\.html`)
	lagouJobIDPathPattern  = regexp.MustCompile(`/jobs/(\d+)$`)
	lagouExperiencePattern = regexp.MustCompile(`\d+\s*[-~]\s*\d+\s*年`)
)

var (
	lagouTitleSelectors       = []string{"span.name", "h1.position-head-wrap-name"}
	lagouCompanySelectors     = []string{"a.b2", "h2.fl"}
	lagouSalarySelectors      = []string{"span.salary", "span.position-head-wrap-salary"}
	lagouLocationSelectors    = []string{"span.add", "em.add"}
	lagouDescriptionSelectors = []string{"dd.job_bt", "div.job_bt"}
)

// lagouEducationLevels 学历关键词,按匹配优先级排列
var lagouEducationLevels = []struct{ keyword, value string }{
	{"本科", "本科"},
	{"硕士", "硕士"},
	{"大专", "大专"},
	{"博士", "博士"},
	{"学历不限", "不限"},
}

var lagouSpec = siteSpec{
	site: models.SiteLagou,
	acceptPath: func(path string) bool {
		return detector.IsDetailPath(models.SiteLagou, path)
	},
	detailSelector: ".job_bt, .position-head-wrap-name, span.name",
	parse:          ParseLagouHTML,
}

// LagouScraper 拉勾网职位详情爬取器
type LagouScraper struct {
	*pageScraper
}

// NewLagouScraper 创建拉勾网爬取器
func NewLagouScraper(opts Options) *LagouScraper {
	return &LagouScraper{newPageScraper(lagouSpec, opts, nil)}
}

// LagouJobID 从URL或路径提取职位ID,支持 /jobs/123.html 和 /jobs/123 两种格式
func LagouJobID(s string) string {
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	return matchID(s, lagouJobIDPattern, lagouJobIDPathPattern)
}

// ParseLagouHTML 从拉勾网职位详情页提取职位
func ParseLagouHTML(markup, rawURL string) (*models.Job, error) {
	doc, err := parseDocument(markup)
	if err != nil {
		return nil, fmt.Errorf("解析页面失败: %w", err)
	}

	job := models.NewJob(models.SiteLagou, rawURL)
	job.SourceID = LagouJobID(rawURL)
	if job.SourceID == "" {
		job.SourceID = shortHash(rawURL)
	}

	job.Title = firstText(doc, lagouTitleSelectors)
	if job.Title == "" {
		return nil, errTitleNotFound
	}
	job.Company = firstText(doc, lagouCompanySelectors)
	if job.Company == "" {
		return nil, errCompanyNotFound
	}

	job.Salary = firstText(doc, lagouSalarySelectors)

	if addr, ok := doc.Find(`input[name="positionAddress"]`).First().Attr("value"); ok && strings.TrimSpace(addr) != "" {
		job.Location = utils.CleanText(addr)
	} else {
		job.Location = firstText(doc, lagouLocationSelectors)
	}

	request := utils.CleanText(doc.Find("dd.job_request").First().Text())
	switch {
	case lagouExperiencePattern.MatchString(request):
		job.Experience = strings.Join(strings.Fields(lagouExperiencePattern.FindString(request)), "")
	case strings.Contains(request, "经验不限"):
		job.Experience = "经验不限"
	}
	for _, level := range lagouEducationLevels {
		if strings.Contains(request, level.keyword) {
			job.Education = level.value
			break
		}
	}

	job.Description = firstBlockText(doc, lagouDescriptionSelectors)
	job.Requirements = extractRequirements(job.Description)
	job.Skills = extractSkills(job.Description)

	return job, nil
}
