package memoriactl

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/kart-io/memoria/internal/memoria/biz"
	"github.com/kart-io/memoria/internal/model"
	"github.com/kart-io/memoria/pkg/utils/json"
)

// Output formats.
const (
	OutputHuman = "human"
	OutputJSON  = "json"
	OutputYAML  = "yaml"
)

// RenderDiagnostic writes d in the given format.
func RenderDiagnostic(w io.Writer, d *model.Diagnostic, format string) error {
	switch format {
	case OutputJSON:
		out, err := json.MarshalIndent(d, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	case OutputYAML:
		// 先转为通用结构，沿用 JSON 字段名
		var generic any
		if err := roundTrip(d, &generic); err != nil {
			return err
		}
		out, err := yaml.Marshal(generic)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	case OutputHuman, "":
		renderDiagnosticHuman(w, d)
		return nil
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func roundTrip(in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func renderDiagnosticHuman(w io.Writer, d *model.Diagnostic) {
	if d == nil {
		fmt.Fprintln(w, "No diagnostic yet. Run `memoriactl diagnose` first.")
		return
	}

	bold := color.New(color.Bold)
	fmt.Fprintln(w)
	scoreColor(d.OverallScore).Fprintf(w, "OVERALL SCORE: %d/100\n", d.OverallScore)
	fmt.Fprintf(w, "   %s\n", d.Summary)
	fmt.Fprintf(w, "   %s\n\n", color.HiBlackString("model %s, %s", d.ModelUsed, d.GeneratedAt.Format("2006-01-02 15:04:05")))

	if scores := d.SectionScores.V; len(scores) > 0 {
		bold.Fprintln(w, "SECTIONS:")
		titles := make([]string, 0, len(scores))
		for title := range scores {
			titles = append(titles, title)
		}
		sort.Slice(titles, func(i, j int) bool {
			si, sj := scores[titles[i]].Score, scores[titles[j]].Score
			if si != sj {
				return si < sj
			}
			return titles[i] < titles[j]
		})
		for _, title := range titles {
			s := scores[title]
			fmt.Fprintf(w, "   %s %s\n", scoreColor(s.Score).Sprintf("%3d", s.Score), title)
			if s.Feedback != "" {
				fmt.Fprintf(w, "       %s\n", s.Feedback)
			}
		}
		fmt.Fprintln(w)
	}

	if risks := d.Risks.V; len(risks) > 0 {
		color.New(color.FgYellow, color.Bold).Fprintln(w, "RISKS:")
		for i, r := range risks {
			fmt.Fprintf(w, "   %d. %s %s\n", i+1, riskColor(r.Level).Sprintf("[%s]", strings.ToUpper(r.Level)), r.Message)
			if r.SectionID != "" {
				fmt.Fprintf(w, "      Section: %s\n", r.SectionID)
			}
		}
		fmt.Fprintln(w)
	}

	if suggestions := d.Suggestions.V; len(suggestions) > 0 {
		color.New(color.FgCyan, color.Bold).Fprintln(w, "SUGGESTIONS:")
		for _, s := range suggestions {
			fmt.Fprintf(w, "   P%d %s\n", s.Priority, s.Action)
			if s.SectionTitle != "" {
				fmt.Fprintf(w, "      Section: %s\n", s.SectionTitle)
			}
		}
		fmt.Fprintln(w)
	}

	if reqs := d.RequirementsFound.V; len(reqs) > 0 {
		bold.Fprintln(w, "REQUIREMENTS FOUND:")
		for _, r := range reqs {
			fmt.Fprintf(w, "   - %s\n", r)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, strings.Repeat("─", 60))
	fmt.Fprintln(w, color.HiBlackString("Run with -o json or -o yaml for machine-readable output"))
}

// EventPrinter 以人类可读格式打印修复进度。
type EventPrinter struct {
	w     io.Writer
	total int
	done  int
}

// NewEventPrinter creates an EventPrinter writing to w.
func NewEventPrinter(w io.Writer) *EventPrinter {
	return &EventPrinter{w: w}
}

// Print renders one event.
func (p *EventPrinter) Print(ev biz.Event) {
	switch ev.Type {
	case biz.EventStart:
		p.total = ev.Start.Total
		color.New(color.Bold).Fprintf(p.w, "Improving %d section(s):\n", ev.Start.Total)
		for _, s := range ev.Start.Sections {
			fmt.Fprintf(p.w, "   %s %s\n", scoreColor(s.Score).Sprintf("%3d", s.Score), s.Title)
			for _, problem := range s.Problems {
				fmt.Fprintf(p.w, "       - %s\n", problem)
			}
		}
	case biz.EventProgress:
		pr := ev.Progress
		switch pr.Status {
		case biz.StatusImproving:
			fmt.Fprintf(p.w, "[%d/%d] %s ... ", p.done+1, p.total, pr.Title)
		case biz.StatusDone:
			p.done++
			fmt.Fprintln(p.w, color.GreenString("done"))
		case biz.StatusError:
			p.done++
			fmt.Fprintln(p.w, color.RedString("error: %s", pr.Error))
		}
	case biz.EventRediagnosing:
		fmt.Fprintln(p.w, "Re-diagnosing the document...")
	case biz.EventComplete:
		c := ev.Complete
		fmt.Fprintln(p.w)
		color.New(color.Bold).Fprintf(p.w, "Improved %d section(s), %d error(s)\n", c.Improved, c.Errors)
		if c.NewScore != nil {
			fmt.Fprintf(p.w, "Score: %d -> %s\n", c.OldScore, scoreColor(*c.NewScore).Sprintf("%d", *c.NewScore))
		} else {
			fmt.Fprintf(p.w, "Score: %d -> %s\n", c.OldScore, color.HiBlackString("not available"))
		}
		if c.Summary != "" {
			fmt.Fprintf(p.w, "   %s\n", c.Summary)
		}
	case biz.EventError:
		fmt.Fprintln(p.w, color.RedString("Error: %s", ev.Error.Message))
	}
}

func scoreColor(score int) *color.Color {
	switch {
	case score < 50:
		return color.New(color.FgRed, color.Bold)
	case score < 70:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgGreen)
	}
}

func riskColor(level string) *color.Color {
	switch level {
	case model.RiskHigh:
		return color.New(color.FgRed)
	case model.RiskMedium:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgGreen)
	}
}
