package models

// SiteID 招聘站点标识(封闭枚举)
type SiteID string

const (
	SiteUnsupported SiteID = ""      // 不支持的站点
	SiteBoss        SiteID = "boss"  // BOSS直聘
	SiteLagou       SiteID = "lagou" // 拉勾网
)

// SiteInfo 站点静态描述
type SiteInfo struct {
	ID         SiteID   `json:"id"`
	Name       string   `json:"name"`
	Domains    []string `json:"domains"`     // 主机名匹配的根域名
	HomeURL    string   `json:"home_url"`    // 健康检查探测地址
	DetailPath string   `json:"detail_path"` // 职位详情页路径的正则
}

// siteTable 支持的站点表,顺序即展示顺序
var siteTable = []SiteInfo{
	{
		ID:         SiteBoss,
		Name:       "BOSS直聘",
		Domains:    []string{"zhipin.com"},
		HomeURL:    "https://www.zhipin.com/",
		DetailPath: `/job_detail/[^/]+$`,
	},
	{
		ID:         SiteLagou,
		Name:       "拉勾网",
		Domains:    []string{"lagou.com"},
		HomeURL:    "https://www.lagou.com/",
		DetailPath: `/jobs/\d+(\.html)?$`,
	},
}

// AllSites 返回站点表副本
func AllSites() []SiteInfo {
	out := make([]SiteInfo, len(siteTable))
	for i, s := range siteTable {
		s.Domains = append([]string(nil), s.Domains...)
		out[i] = s
	}
	return out
}

// Valid 判断是否为已知站点
func (s SiteID) Valid() bool {
	for _, info := range siteTable {
		if info.ID == s {
			return true
		}
	}
	return false
}

// String 实现fmt.Stringer
func (s SiteID) String() string {
	if s == SiteUnsupported {
		return "unsupported"
	}
	return string(s)
}

// siteOrder 返回站点在表中的位置,未知站点排在最后
func siteOrder(s SiteID) int {
	for i, info := range siteTable {
		if info.ID == s {
			return i
		}
	}
	return len(siteTable)
}
