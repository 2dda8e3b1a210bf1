// Package detector 将职位URL归类到支持的招聘站点
//
// 纯函数实现,不做任何网络访问。
package detector

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/RecoveryAshes/JobScraper/internal/models"
)

// detailPaths 各站点职位详情页路径规则,由站点表编译
var detailPaths = func() map[models.SiteID]*regexp.Regexp {
	m := make(map[models.SiteID]*regexp.Regexp)
	for _, site := range models.AllSites() {
		m[site.ID] = regexp.MustCompile(site.DetailPath)
	}
	return m
}()

// Detect 返回URL所属站点,无法识别时返回 models.SiteUnsupported
// 主机名等于站点域名或为其子域名,且路径为职位详情页时视为匹配
func Detect(rawURL string) models.SiteID {
	u := parseURL(rawURL)
	if u == nil {
		return models.SiteUnsupported
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return models.SiteUnsupported
	}

	for _, site := range models.AllSites() {
		for _, domain := range site.Domains {
			if host == domain || strings.HasSuffix(host, "."+domain) {
				if IsDetailPath(site.ID, u.Path) {
					return site.ID
				}
				return models.SiteUnsupported
			}
		}
	}
	return models.SiteUnsupported
}

// IsDetailPath 判断路径是否为站点的职位详情页
func IsDetailPath(site models.SiteID, path string) bool {
	re, ok := detailPaths[site]
	return ok && re.MatchString(path)
}

// IsSupported 判断URL是否属于支持的站点
func IsSupported(rawURL string) bool {
	return Detect(rawURL) != models.SiteUnsupported
}

// SupportedSites 按站点表顺序返回所有支持的站点
func SupportedSites() []models.SiteID {
	sites := models.AllSites()
	ids := make([]models.SiteID, 0, len(sites))
	for _, s := range sites {
		ids = append(ids, s.ID)
	}
	return ids
}

// Lookup 查询站点描述
func Lookup(id models.SiteID) (models.SiteInfo, bool) {
	for _, s := range models.AllSites() {
		if s.ID == id {
			return s, true
		}
	}
	return models.SiteInfo{}, false
}

func parseURL(rawURL string) *url.URL {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil
	}
	return u
}
