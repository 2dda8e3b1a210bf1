package antidetect

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultChallengePatterns 页面正文中的人机验证特征
var DefaultChallengePatterns = []string{
	"请输入验证码",
	"人机验证",
	"安全验证",
	"访问过于频繁",
	"请稍后再试",
	"访问受限",
	"captcha",
	"not a robot",
}

// DefaultChallengeTitlePatterns 页面标题中的人机验证特征
var DefaultChallengeTitlePatterns = []string{
	"验证",
	"captcha",
	"请稍候",
	"security check",
}

// ChallengeDetector 人机验证页识别
// 特征随站点改版漂移,列表可通过配置替换
type ChallengeDetector struct {
	bodyPatterns  []string
	titlePatterns []string
}

// NewChallengeDetector 创建识别器,参数为空时使用默认特征
func NewChallengeDetector(bodyPatterns, titlePatterns []string) *ChallengeDetector {
	if len(bodyPatterns) == 0 {
		bodyPatterns = DefaultChallengePatterns
	}
	if len(titlePatterns) == 0 {
		titlePatterns = DefaultChallengeTitlePatterns
	}
	return &ChallengeDetector{
		bodyPatterns:  lowerAll(bodyPatterns),
		titlePatterns: lowerAll(titlePatterns),
	}
}

// Detect 判断页面是否为人机验证页
// 标题匹配标题特征,或标题与可见正文匹配正文特征时返回true
func (d *ChallengeDetector) Detect(markup string) bool {
	if strings.TrimSpace(markup) == "" {
		return false
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return containsAny(strings.ToLower(markup), d.bodyPatterns)
	}

	title := strings.ToLower(strings.TrimSpace(doc.Find("title").First().Text()))
	if containsAny(title, d.titlePatterns) {
		return true
	}

	doc.Find("script, style, noscript, template").Remove()
	body := strings.ToLower(doc.Find("body").Text())
	return containsAny(title, d.bodyPatterns) || containsAny(body, d.bodyPatterns)
}

func containsAny(s string, patterns []string) bool {
	if s == "" {
		return false
	}
	for _, p := range patterns {
		if p != "" && strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
