package biz

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/kart-io/memoria/internal/pkg/matcher"
	"github.com/kart-io/memoria/internal/pkg/textutil"
)

// leadingHeader 开头的标题行，第 1 组为标题文字。
var leadingHeader = regexp.MustCompile(`^[ \t]*#{1,6}[ \t]+([^\n]*)\n?`)

// leadingLabel 匹配模型有时加在开头的 "Content (improved):"、"Improved section:" 之类标签。
var leadingLabel = regexp.MustCompile(`(?i)^[*_\s]*(?:(?:improved|rewritten)\s+)?(?:content|section)(?:\s*\((?:improved|rewritten)\))?[*_ \t]*:[*_\s]*`)

// cleanRewrite 去掉代码围栏、Markdown 标题和开头标签。
// 开头的标题行与 title 匹配时整行删除，其余标题只去掉 # 标记。
func cleanRewrite(raw, title string) string {
	s := strings.TrimSpace(textutil.StripCodeFences(raw))
	if m := leadingHeader.FindStringSubmatch(s); m != nil && matcher.Matches(m[1], title) {
		s = s[len(m[0]):]
	}
	s = textutil.StripMarkdownHeaders(s)
	s = strings.TrimSpace(s)
	s = leadingLabel.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// longEnough 判断清理后的内容是否达到最短长度。
func longEnough(s string, min int) bool {
	return utf8.RuneCountInString(s) >= min
}
