// Package matcher 判断模型给出的自由文本标题是否指向某个文档章节。
package matcher

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Resolver 将模型引用（章节标题、风险或建议中的 section 字段）解析到章节标题。
type Resolver interface {
	// MatchesSection 判断 ref 是否指向标题为 title 的章节。
	MatchesSection(ref, title string) bool
}

// Lookup 在以章节标题为键的映射中查找 title 对应的条目。
// 精确键优先，其余按键的字典序取第一个命中项，保证结果稳定。
func Lookup[V any](r Resolver, title string, m map[string]V) (V, bool) {
	if v, ok := m[title]; ok {
		return v, true
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if r.MatchesSection(k, title) {
			return m[k], true
		}
	}
	var zero V
	return zero, false
}

// FuzzyResolver 基于 Matches 的宽松匹配，召回优先。
type FuzzyResolver struct{}

// MatchesSection 实现 Resolver。
func (FuzzyResolver) MatchesSection(ref, title string) bool {
	return Matches(ref, title)
}

// ExactResolver 要求引用与标题（去除首尾空白后）完全一致，适用于按 id 或精确标题输出的诊断格式。
type ExactResolver struct{}

// MatchesSection 实现 Resolver。
func (ExactResolver) MatchesSection(ref, title string) bool {
	ref = strings.TrimSpace(ref)
	return ref != "" && ref == strings.TrimSpace(title)
}

const (
	// minSubstringLen 子串规则要求的最短长度（不含）。
	minSubstringLen = 4
	// minTokenLen 参与重叠计算的单词最短长度（不含）。
	minTokenLen = 2
	// overlapThreshold 单词重叠率阈值（不含）。
	overlapThreshold = 0.5
)

// Matches 判断两个标题是否指向同一章节，结果与参数顺序无关。
//
// 规范化后依次检查：完全相等；较长者超过 4 个字符且为另一方子串；
// 长度大于 2 的单词交集占较大集合的比例超过 0.5。
func Matches(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	if (len(na) > minSubstringLen && strings.Contains(nb, na)) ||
		(len(nb) > minSubstringLen && strings.Contains(na, nb)) {
		return true
	}

	ta, tb := tokens(na), tokens(nb)
	larger := len(ta)
	if len(tb) > larger {
		larger = len(tb)
	}
	if larger == 0 {
		return false
	}
	common := 0
	for w := range ta {
		if _, ok := tb[w]; ok {
			common++
		}
	}
	return float64(common)/float64(larger) > overlapThreshold
}

// Normalize 转小写、去除变音符号，只保留 [a-z0-9 ] 并去除首尾空格。
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		folded = strings.ToLower(s)
	}

	var sb strings.Builder
	sb.Grow(len(folded))
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == ' ' {
			sb.WriteRune(r)
		}
	}
	return strings.TrimSpace(sb.String())
}

func tokens(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		if len(w) > minTokenLen {
			set[w] = struct{}{}
		}
	}
	return set
}
