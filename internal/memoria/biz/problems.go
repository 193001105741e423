package biz

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kart-io/memoria/internal/model"
	"github.com/kart-io/memoria/internal/pkg/matcher"
	"github.com/kart-io/memoria/internal/pkg/textutil"
)

const (
	// defaultScoreWithContent 诊断中找不到章节分数且章节有内容时的默认分。
	defaultScoreWithContent = 30

	criticalWordCount = 0
	warningWordCount  = 50
	noticeWordCount   = 150

	genericProblem = "Improve overall quality."
)

// SectionAnalysis 单次修复运行中某个章节的分析结果，不持久化。
type SectionAnalysis struct {
	Section  *model.Section
	Score    int
	Feedback string
	Problems []string
}

// BuildAnalysis 汇总章节分数、反馈、风险、建议与字数检查，问题列表不会为空。
func BuildAnalysis(r matcher.Resolver, section *model.Section, d *model.Diagnostic) SectionAnalysis {
	a := SectionAnalysis{Section: section}

	if sc, ok := matcher.Lookup(r, section.Title, d.SectionScores.V); ok {
		a.Score = clampScore(float64(sc.Score))
		a.Feedback = sc.Feedback
	} else if strings.TrimSpace(section.Content) != "" {
		a.Score = defaultScoreWithContent
	}

	if a.Feedback != "" {
		a.Problems = append(a.Problems, "FEEDBACK: "+a.Feedback)
	}
	for _, risk := range d.Risks.V {
		if r.MatchesSection(risk.SectionID, section.Title) {
			a.Problems = append(a.Problems, fmt.Sprintf("RISK [%s]: %s", strings.ToUpper(risk.Level), risk.Message))
		}
	}
	for _, sug := range d.Suggestions.V {
		if r.MatchesSection(sug.SectionTitle, section.Title) {
			a.Problems = append(a.Problems, fmt.Sprintf("SUGGESTION [P%d]: %s", sug.Priority, sug.Action))
		}
	}

	switch words := textutil.WordCount(section.Content); {
	case words == criticalWordCount:
		a.Problems = append(a.Problems, "CRITICAL: section is completely empty")
	case words < warningWordCount:
		a.Problems = append(a.Problems, fmt.Sprintf("WARNING: only %d words, the section needs development", words))
	case words < noticeWordCount:
		a.Problems = append(a.Problems, fmt.Sprintf("NOTICE: %d words, the section should be expanded", words))
	}

	if len(a.Problems) == 0 {
		a.Problems = append(a.Problems, genericProblem)
	}
	return a
}

// AnalyzeSections 为每个章节生成分析并按分数升序排列。
func AnalyzeSections(r matcher.Resolver, sections []*model.Section, d *model.Diagnostic) []SectionAnalysis {
	list := make([]SectionAnalysis, 0, len(sections))
	for _, sec := range sections {
		list = append(list, BuildAnalysis(r, sec, d))
	}
	RankSections(list)
	return list
}

// RankSections 按分数升序稳定排序，同分保持原有文档顺序。
func RankSections(list []SectionAnalysis) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Score < list[j].Score
	})
}
