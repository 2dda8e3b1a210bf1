package models

import (
	"time"
)

// Job 职位信息
// 由站点爬取器在提取成功后创建,返回后视为不可变
type Job struct {
	ID           string    `json:"id"`                   // 唯一ID (UUID)
	SourceID     string    `json:"source_id"`            // 站点内职位ID
	URL          string    `json:"url"`                  // 职位链接(唯一键)
	Site         SiteID    `json:"site"`                 // 来源站点
	Title        string    `json:"title"`                // 职位名称
	Company      string    `json:"company"`              // 公司名称
	Location     string    `json:"location,omitempty"`   // 工作地点
	Salary       string    `json:"salary,omitempty"`     // 薪资范围
	Experience   string    `json:"experience,omitempty"` // 经验要求
	Education    string    `json:"education,omitempty"`  // 学历要求
	Description  string    `json:"description"`          // 职位描述
	Requirements string    `json:"requirements"`         // 任职要求
	Skills       []string  `json:"skills"`               // 技能标签(有序去重)
	ScrapedAt    time.Time `json:"scraped_at"`           // 提取时间
}

// NewJob 创建职位记录
func NewJob(site SiteID, url string) *Job {
	return &Job{
		ID:        generateID(),
		URL:       url,
		Site:      site,
		Skills:    []string{},
		ScrapedAt: time.Now(),
	}
}

// Clone 深拷贝
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	c.Skills = append([]string{}, j.Skills...)
	return &c
}
