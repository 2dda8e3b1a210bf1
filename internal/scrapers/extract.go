package scrapers

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/RecoveryAshes/JobScraper/internal/utils"
	"golang.org/x/net/html"
)

// 提取错误
var (
	errTitleNotFound   = errors.New("未找到职位标题,页面结构可能已变化")
	errCompanyNotFound = errors.New("未找到公司名称,页面结构可能已变化")
)

// maxKeywordSkills 描述关键词扫描得到的技能上限
const maxKeywordSkills = 10

// skillKeywords 描述中识别的技能关键词(按字母边界匹配,忽略大小写)
var skillKeywords = []string{
	"Java", "Python", "JavaScript", "TypeScript", "C++", "C#", "Go", "Golang", "PHP", "Ruby", "Scala", "Kotlin",
	"React", "Vue", "Angular", "Spring", "Django", "Flask", "Node.js", "Express",
	"MySQL", "PostgreSQL", "MongoDB", "Redis", "Elasticsearch", "Kafka",
	"Docker", "Kubernetes", "Jenkins", "Git", "Linux", "AWS", "Azure",
	"HTML", "CSS", "SASS", "Webpack", "Babel",
}

// cjkSkillKeywords 中文技能关键词(子串匹配)
var cjkSkillKeywords = []string{"机器学习", "深度学习", "人工智能", "数据分析", "大数据"}

// requirementHeadings 描述中任职要求段落的标题
var requirementHeadings = []string{"任职要求", "岗位要求", "职位要求", "任职资格"}

// blockSelector 提取多行文本时视为换行的块级元素
const blockSelector = "p, div, li, dd, dt, h1, h2, h3, h4, h5, h6, section"

// parseDocument 解析HTML,容错处理残缺标记
func parseDocument(markup string) (*goquery.Document, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromNode(root), nil
}

// firstText 按顺序尝试选择器,返回第一个非空文本
func firstText(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		if text := utils.CleanText(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// firstBlockText 同firstText,保留块级元素之间的换行
func firstBlockText(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			if text := blockText(node); text != "" {
				return text
			}
		}
	}
	return ""
}

// blockText 取节点文本,<br>与块级元素转为换行
func blockText(sel *goquery.Selection) string {
	c := sel.Clone()
	c.Find("script, style").Remove()
	c.Find("br").ReplaceWithHtml("\n")
	c.Find(blockSelector).AppendHtml("\n")
	return utils.CleanMultiline(c.Text())
}

// allTexts 收集所有匹配节点的文本
func allTexts(doc *goquery.Document, selectors []string) []string {
	var out []string
	for _, sel := range selectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if text := utils.CleanText(s.Text()); text != "" {
				out = append(out, text)
			}
		})
	}
	return out
}

// extractSkills 按出现顺序返回描述中的技能关键词,最多 maxKeywordSkills 个
func extractSkills(description string) []string {
	type hit struct {
		pos  int
		word string
	}

	lower := strings.ToLower(description)
	var hits []hit
	for _, kw := range skillKeywords {
		if pos := indexWord(lower, strings.ToLower(kw)); pos >= 0 {
			hits = append(hits, hit{pos, kw})
		}
	}
	for _, kw := range cjkSkillKeywords {
		if pos := strings.Index(description, kw); pos >= 0 {
			hits = append(hits, hit{pos, kw})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	skills := make([]string, 0, len(hits))
	for _, h := range hits {
		skills = append(skills, h.word)
	}
	skills = utils.DedupeStrings(skills)
	if len(skills) > maxKeywordSkills {
		skills = skills[:maxKeywordSkills]
	}
	return skills
}

// indexWord 返回kw在s中首次以完整单词出现的位置,未出现返回-1
func indexWord(s, kw string) int {
	for from := 0; from < len(s); {
		i := strings.Index(s[from:], kw)
		if i < 0 {
			return -1
		}
		start := from + i
		end := start + len(kw)
		if (start == 0 || !isWordByte(s[start-1])) && (end == len(s) || !isWordByte(s[end])) {
			return start
		}
		from = start + 1
	}
	return -1
}

func isWordByte(c byte) bool {
	return c == '_' || c == '+' || c == '#' ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

// extractRequirements 取描述中任职要求标题之后的内容,没有标题时返回空
func extractRequirements(description string) string {
	best := -1
	var heading string
	for _, h := range requirementHeadings {
		if i := strings.Index(description, h); i >= 0 && (best < 0 || i < best) {
			best, heading = i, h
		}
	}
	if best < 0 {
		return ""
	}
	rest := description[best+len(heading):]
	rest = strings.TrimLeft(rest, " \t\r\n:：")
	return utils.CleanMultiline(rest)
}

// shortHash URL的md5前8位,站点ID无法解析时作为兜底
func shortHash(rawURL string) string {
	sum := md5.Sum([]byte(rawURL))
	return hex.EncodeToString(sum[:])[:8]
}

// matchID 返回第一个匹配的捕获组
func matchID(s string, patterns ...*regexp.Regexp) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(s); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}
