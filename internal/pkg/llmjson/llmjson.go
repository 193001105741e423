// Package llmjson 从模型响应中提取 JSON，容忍前后附带的说明文字或代码围栏。
//
// 只剥离多余的包裹文本，不修复截断或语法错误的 JSON。
package llmjson

import (
	"regexp"
	"strings"

	"github.com/kart-io/memoria/pkg/utils/json"
)

var fencedBlock = regexp.MustCompile("(?s)```(?:json|JSON)?[ \t]*\r?\n?(.*?)```")

// Parse 依次尝试以下策略，第一个成功即返回：
//  1. 直接解析去除首尾空白后的原文；
//  2. 解析第一个代码围栏块的内容；
//  3. 解析原文中第一个 '{' 到最后一个 '}' 之间（含）的子串；
//  4. 对围栏块内容去掉第一个 '{' 之前和最后一个 '}' 之后的字符，以 '{' 开头时解析。
//
// 全部失败时 ok 为 false。
func Parse[T any](raw string) (T, bool) {
	var zero T

	trimmed := strings.TrimSpace(raw)
	if v, ok := decode[T](trimmed); ok {
		return v, true
	}

	fenced, hasFence := fencedContent(raw)
	if hasFence {
		if v, ok := decode[T](fenced); ok {
			return v, true
		}
	}

	if v, ok := decode[T](braceSpan(raw)); ok {
		return v, true
	}

	if hasFence {
		if s := stripOutside(fenced); strings.HasPrefix(s, "{") {
			if v, ok := decode[T](s); ok {
				return v, true
			}
		}
	}

	return zero, false
}

func decode[T any](s string) (T, bool) {
	var v T
	if s == "" {
		return v, false
	}
	data := []byte(s)
	if !json.Valid(data) {
		return v, false
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, false
	}
	return v, true
}

func fencedContent(raw string) (string, bool) {
	m := fencedBlock.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// braceSpan 返回第一个 '{' 到最后一个 '}'（含）之间的子串。
func braceSpan(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}

// stripOutside 去掉第一个 '{' 之前与最后一个 '}' 之后的字符。
func stripOutside(s string) string {
	if i := strings.Index(s, "{"); i > 0 {
		s = s[i:]
	}
	if j := strings.LastIndex(s, "}"); j >= 0 {
		s = s[:j+1]
	}
	return strings.TrimSpace(s)
}
