package utils

import (
	"strings"
)

// CleanText 合并空白字符为单个空格并去除首尾空白
func CleanText(s string) string {
	// strings.Fields 按 unicode.IsSpace 切分,已覆盖不间断空格和全角空格
	return strings.Join(strings.Fields(s), " ")
}

// CleanMultiline 逐行清理并去掉空行,保留换行结构
func CleanMultiline(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = CleanText(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// DedupeStrings 保序去重,忽略空白项
func DedupeStrings(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = CleanText(item)
		if item == "" {
			continue
		}
		key := strings.ToLower(item)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out
}
