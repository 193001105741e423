package biz

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kart-io/memoria/internal/model"
	"github.com/kart-io/memoria/internal/pkg/textutil"
)

const diagnosisInstructions = `You are an expert evaluator of public grant applications ("memorias técnicas").
Evaluate the document below against this rubric:
- alignment with the objectives and requirements of the grant call;
- technical quality, innovation and methodological clarity;
- feasibility of the work plan, schedule and budget;
- expected impact and measurable results;
- completeness and internal consistency across sections.

Respond ONLY with a JSON object, no prose, using this shape:
{
  "overall_score": <integer 0-100>,
  "summary": "<two or three sentences>",
  "risks": [{"level": "high|medium|low", "message": "<risk>", "section_id": "<exact section title>"}],
  "suggestions": [{"priority": 1, "action": "<concrete action>", "section_title": "<exact section title>"}],
  "section_scores": {"<exact section title>": {"score": <integer 0-100>, "feedback": "<short feedback>"}},
  "requirements_found": ["<requirement of the call detected in the document>"]
}
Use the exact section titles listed below as keys. Priority 1 is the most urgent.
Write summary, messages and feedback in the language of the document.`

const rewriteInstructions = `You are an expert writer of public grant applications ("memorias técnicas").
Rewrite the section below so that it fixes every problem in the checklist.
Keep the facts already stated, stay consistent with the other sections, do not repeat
content that belongs to other sections, and write in the language of the document.
Return ONLY the new section text, without the title, without markdown headers and
without any introduction or closing remarks.`

// buildDiagnosisPrompt 构建评分提示。
func buildDiagnosisPrompt(project *model.Project, sections []*model.Section, reference string, contentBudget int) string {
	var sb strings.Builder
	sb.WriteString(diagnosisInstructions)
	sb.WriteString("\n\n")
	writeProjectContext(&sb, project)

	if reference != "" {
		sb.WriteString("## Grant call reference material (excerpt)\n")
		sb.WriteString(reference)
		sb.WriteString("\n\n")
	}

	sb.WriteString("## Document sections\n")
	for i, sec := range sections {
		status := "draft"
		if sec.IsCompleted {
			status = "completed"
		}
		fmt.Fprintf(&sb, "\n### %d. %s\nStatus: %s\nWords: %d\nContent:\n", i+1, sec.Title, status, textutil.WordCount(sec.Content))
		if strings.TrimSpace(sec.Content) == "" {
			sb.WriteString("(empty)\n")
			continue
		}
		sb.WriteString(textutil.TruncateWithEllipsis(sec.Content, contentBudget))
		sb.WriteString("\n")
	}
	return sb.String()
}

// rewriteInput 重写单个章节所需的全部上下文。
type rewriteInput struct {
	Project    *model.Project
	Diagnostic *model.Diagnostic
	Analysis   SectionAnalysis
	Sections   []*model.Section
	Reference  string
	// Improved 本次运行中已经重写的章节，标题到新内容。
	Improved Improved
	// ContextBudget 其他章节内容的字符上限。
	ContextBudget int
}

// buildRewritePrompt 构建单个章节的重写提示。
func buildRewritePrompt(in rewriteInput) string {
	var sb strings.Builder
	sb.WriteString(rewriteInstructions)
	sb.WriteString("\n\n")

	fmt.Fprintf(&sb, "## Current diagnosis\nOverall score: %d/100\nSummary: %s\n\n", in.Diagnostic.OverallScore, in.Diagnostic.Summary)
	writeProjectContext(&sb, in.Project)

	if in.Reference != "" {
		sb.WriteString("## Grant call reference material (excerpt)\n")
		sb.WriteString(in.Reference)
		sb.WriteString("\n\n")
	}

	target := in.Analysis.Section
	var others []*model.Section
	for _, sec := range in.Sections {
		if sec.ID == target.ID {
			continue
		}
		if _, done := in.Improved[sec.Title]; done {
			continue
		}
		if strings.TrimSpace(sec.Content) == "" {
			continue
		}
		others = append(others, sec)
	}
	if len(others) > 0 {
		sb.WriteString("## Other sections (for consistency)\n")
		for _, sec := range others {
			fmt.Fprintf(&sb, "\n### %s\n%s\n", sec.Title, textutil.TruncateWithEllipsis(sec.Content, in.ContextBudget))
		}
		sb.WriteString("\n")
	}

	if len(in.Improved) > 0 {
		sb.WriteString("## Sections already improved in this run (do not contradict or repeat them)\n")
		for _, title := range in.Improved.Titles() {
			fmt.Fprintf(&sb, "\n### %s\n%s\n", title, textutil.TruncateWithEllipsis(in.Improved[title], in.ContextBudget))
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "## Section to rewrite: %s\nCurrent score: %d/100\n\nProblems to fix:\n", target.Title, in.Analysis.Score)
	for i, p := range in.Analysis.Problems {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, p)
	}
	sb.WriteString("\nCurrent content:\n")
	if strings.TrimSpace(target.Content) == "" {
		sb.WriteString("(empty, write it from scratch)\n")
	} else {
		sb.WriteString(target.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}

func writeProjectContext(sb *strings.Builder, p *model.Project) {
	if p == nil {
		return
	}
	sb.WriteString("## Project\n")
	fmt.Fprintf(sb, "Title: %s\n", p.Title)
	if p.ClientName != "" {
		fmt.Fprintf(sb, "Client: %s\n", p.ClientName)
	}
	if p.GrantName != "" {
		fmt.Fprintf(sb, "Grant call: %s\n", p.GrantName)
	}
	if p.Description != "" {
		fmt.Fprintf(sb, "Description: %s\n", p.Description)
	}
	sb.WriteString("\n")
}

// Improved 记录本次运行已重写章节的累加器，标题到新内容。
type Improved map[string]string

// With 返回加入一项后的新累加器，原值不变。
func (m Improved) With(title, content string) Improved {
	next := make(Improved, len(m)+1)
	for k, v := range m {
		next[k] = v
	}
	next[title] = content
	return next
}

// Titles 返回排序后的标题。
func (m Improved) Titles() []string {
	titles := make([]string, 0, len(m))
	for t := range m {
		titles = append(titles, t)
	}
	sort.Strings(titles)
	return titles
}
