// Package textutil 提供文档章节相关的文本处理工具函数。
package textutil

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// TruncateString 截断字符串到指定的最大 Unicode 字符数。
func TruncateString(s string, maxLen int) string {
	if maxLen < 0 {
		maxLen = 0
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen])
}

// TruncateWithEllipsis 超长时截断并追加省略标记。
func TruncateWithEllipsis(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return TruncateString(s, maxLen) + "\n[...]"
}

// WordCount 按空白切分统计单词数，忽略空片段。
func WordCount(s string) int {
	return len(strings.Fields(s))
}

var (
	fenceLine    = regexp.MustCompile("(?m)^[ \t]*```[a-zA-Z0-9_-]*[ \t]*\r?$\n?")
	headerPrefix = regexp.MustCompile(`(?m)^[ \t]*#{1,6}[ \t]+`)
)

// StripCodeFences 删除代码围栏行，保留围栏内的文字。
func StripCodeFences(s string) string {
	return fenceLine.ReplaceAllString(s, "")
}

// StripMarkdownHeaders 删除行首的 Markdown 标题标记，保留标题文字。
func StripMarkdownHeaders(s string) string {
	return headerPrefix.ReplaceAllString(s, "")
}
