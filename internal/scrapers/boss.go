package scrapers

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/RecoveryAshes/JobScraper/internal/detector"
	"github.com/RecoveryAshes/JobScraper/internal/models"
	"github.com/RecoveryAshes/JobScraper/internal/utils"
)

var bossJobIDPattern = regexp.MustCompile(`/job_detail/([^/?#]+?)\.html`)

// BOSS直聘选择器,按优先级排列
var (
	bossTitleSelectors = []string{
		".job-title", ".job-name", "h1.name", `[class*="job"][class*="title"]`, "h1", ".position-head h1",
	}
	bossCompanySelectors = []string{
		".company-name a", ".company-name", `[class*="company"][class*="name"]`, ".info-company h3", ".company-info .name",
	}
	bossSalarySelectors = []string{
		".salary", ".job-salary", `[class*="salary"]`, ".position-salary",
	}
	bossLocationSelectors = []string{
		".job-area", ".job-location", `[class*="location"]`, ".position-location", ".text-city",
	}
	bossExperienceSelectors = []string{
		".job-experience", `[class*="experience"]`, ".text-experiece", ".position-require",
	}
	bossEducationSelectors = []string{
		".job-degree", `[class*="degree"]`, `[class*="education"]`,
	}
	bossDescriptionSelectors = []string{
		".job-sec-text", ".job-sec", ".job-detail", ".job-description", `[class*="job"][class*="desc"]`, ".position-detail",
	}
	bossTagSelectors = []string{
		".job-tags li", ".job-tags span", ".job-tag", ".position-tag",
	}
)

var bossSpec = siteSpec{
	site: models.SiteBoss,
	acceptPath: func(path string) bool {
		return detector.IsDetailPath(models.SiteBoss, path)
	},
	detailSelector: ".job-sec, .job-detail, .job-sec-text",
	parse:          ParseBossHTML,
}

// BossScraper BOSS直聘职位详情爬取器
type BossScraper struct {
	*pageScraper
}

// NewBossScraper 创建BOSS直聘爬取器
func NewBossScraper(opts Options) *BossScraper {
	return &BossScraper{newPageScraper(bossSpec, opts, nil)}
}

// BossJobID 从URL提取职位ID,无法提取时返回URL哈希
func BossJobID(rawURL string) string {
	if id := matchID(rawURL, bossJobIDPattern); id != "" {
		return id
	}
	return shortHash(rawURL)
}

// ParseBossHTML 从BOSS直聘职位详情页提取职位
func ParseBossHTML(markup, rawURL string) (*models.Job, error) {
	doc, err := parseDocument(markup)
	if err != nil {
		return nil, fmt.Errorf("解析页面失败: %w", err)
	}

	job := models.NewJob(models.SiteBoss, rawURL)
	job.SourceID = BossJobID(rawURL)

	job.Title = firstText(doc, bossTitleSelectors)
	if job.Title == "" {
		// 页面标题格式通常为 "职位名-公司名-BOSS直聘"
		title := utils.CleanText(doc.Find("title").First().Text())
		if name, _, found := strings.Cut(title, "-"); found {
			job.Title = strings.TrimSpace(name)
		}
	}
	if job.Title == "" {
		return nil, errTitleNotFound
	}

	job.Company = firstText(doc, bossCompanySelectors)
	if job.Company == "" {
		return nil, errCompanyNotFound
	}

	job.Salary = firstText(doc, bossSalarySelectors)
	job.Location = firstText(doc, bossLocationSelectors)
	job.Experience = firstText(doc, bossExperienceSelectors)
	job.Education = firstText(doc, bossEducationSelectors)
	job.Description = firstBlockText(doc, bossDescriptionSelectors)
	job.Requirements = extractRequirements(job.Description)

	skills := append(allTexts(doc, bossTagSelectors), extractSkills(job.Description)...)
	skills = utils.DedupeStrings(skills)
	if len(skills) > utils.MaxSkills {
		skills = skills[:utils.MaxSkills]
	}
	job.Skills = skills

	return job, nil
}
