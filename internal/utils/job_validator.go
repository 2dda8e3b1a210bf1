package utils

import (
	"fmt"
	"unicode/utf8"

	"github.com/RecoveryAshes/JobScraper/internal/models"
)

const (
	// MinTitleLength 职位名称最少字符数
	MinTitleLength = 2
	// MinCompanyLength 公司名称最少字符数
	MinCompanyLength = 2
	// MinDescriptionLength 职位描述最少字符数
	MinDescriptionLength = 10
	// MaxDescriptionLength 职位描述最多字符数
	MaxDescriptionLength = 10000
	// MaxSkills 技能标签上限
	MaxSkills = 20
)

// JobValidator 职位数据校验与清洗
type JobValidator struct{}

// NewJobValidator 创建职位校验器
func NewJobValidator() *JobValidator {
	return &JobValidator{}
}

// Validate 校验必需字段,只有标题和公司缺失或过短时返回错误
func (v *JobValidator) Validate(job *models.Job) error {
	if job == nil {
		return &models.ValidationError{Field: "job", Reason: "职位数据为空"}
	}

	required := []struct {
		field string
		value string
		min   int
	}{
		{"title", job.Title, MinTitleLength},
		{"company", job.Company, MinCompanyLength},
	}
	for _, c := range required {
		if n := utf8.RuneCountInString(c.value); n < c.min {
			return &models.ValidationError{
				Field:   c.field,
				Subject: job.URL,
				Reason:  fmt.Sprintf("长度不足: %d 字符 (至少 %d)", n, c.min),
			}
		}
	}
	return nil
}

// QualityIssues 检查可选字段的质量问题,不影响爬取结果
func (v *JobValidator) QualityIssues(job *models.Job) []string {
	if job == nil {
		return nil
	}

	var issues []string
	n := utf8.RuneCountInString(job.Description)
	switch {
	case n < MinDescriptionLength:
		issues = append(issues, fmt.Sprintf("描述过短: %d 字符 (至少 %d)", n, MinDescriptionLength))
	case n > MaxDescriptionLength:
		issues = append(issues, fmt.Sprintf("描述过长: %d 字符 (最多 %d),检查选择器是否匹配到了整页内容", n, MaxDescriptionLength))
	}
	if len(job.Skills) > MaxSkills {
		issues = append(issues, fmt.Sprintf("技能标签过多: %d (最多 %d)", len(job.Skills), MaxSkills))
	}
	return issues
}

// Clean 返回清洗后的职位副本,原对象不变
func (v *JobValidator) Clean(job *models.Job) *models.Job {
	if job == nil {
		return nil
	}
	c := job.Clone()
	c.Title = CleanText(c.Title)
	c.Company = CleanText(c.Company)
	c.Location = CleanText(c.Location)
	c.Salary = CleanText(c.Salary)
	c.Experience = CleanText(c.Experience)
	c.Education = CleanText(c.Education)
	c.Description = CleanMultiline(c.Description)
	c.Requirements = CleanMultiline(c.Requirements)
	c.Skills = DedupeStrings(c.Skills)
	return c
}

// CleanAndValidate 先清洗再校验
// 必需字段不满足时返回错误,可选字段的质量问题只记录警告
func (v *JobValidator) CleanAndValidate(job *models.Job) (*models.Job, error) {
	cleaned := v.Clean(job)
	if err := v.Validate(cleaned); err != nil {
		return nil, err
	}
	for _, issue := range v.QualityIssues(cleaned) {
		Warnf("⚠️  数据质量问题 [%s]: %s", cleaned.URL, issue)
	}
	return cleaned, nil
}
