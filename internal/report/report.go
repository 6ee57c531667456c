// Package report renders scenario and suite results for the terminal.
// Comparator failures are explained with the failing path, both values, a
// character diff for strings and the exclusion path that would skip them.
package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/wildwatch/apicheck/internal/scenario"
	"github.com/wildwatch/apicheck/internal/suite"
	"github.com/wildwatch/apicheck/pkg/treecompare"
)

// Color modes accepted by New.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Tally counts outcomes across scenarios or checks.
type Tally struct {
	Passed int
	Failed int
}

// Add accumulates o into t.
func (t *Tally) Add(o Tally) {
	t.Passed += o.Passed
	t.Failed += o.Failed
}

// Printer writes human-readable results to w.
type Printer struct {
	w       io.Writer
	colored bool

	pass *color.Color
	fail *color.Color
	del  *color.Color
	ins  *color.Color
	dim  *color.Color
	bold *color.Color
}

// New creates a Printer. In ColorAuto mode colours are used only when w is
// a terminal and NO_COLOR is unset.
func New(w io.Writer, mode string) *Printer {
	p := &Printer{
		w:       w,
		colored: colorEnabled(w, mode),
		pass:    color.New(color.FgGreen),
		fail:    color.New(color.FgRed, color.Bold),
		del:     color.New(color.FgRed, color.CrossedOut),
		ins:     color.New(color.FgGreen, color.Underline),
		dim:     color.New(color.Faint),
		bold:    color.New(color.Bold),
	}
	for _, c := range []*color.Color{p.pass, p.fail, p.del, p.ins, p.dim, p.bold} {
		if p.colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func colorEnabled(w io.Writer, mode string) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Scenario prints one scenario's steps and returns the step tally. A
// non-nil err means the scenario could not run at all.
func (p *Printer) Scenario(s *scenario.Scenario, result *scenario.Result, err error) Tally {
	fmt.Fprintf(p.w, "\n--- %s ---\n", p.bold.Sprint(s.Name))
	if s.Description != "" {
		fmt.Fprintf(p.w, "    %s\n", p.dim.Sprint(s.Description))
	}
	fmt.Fprintln(p.w)

	if err != nil {
		fmt.Fprintf(p.w, "  %s %v\n", p.fail.Sprint("ERROR"), err)
		return Tally{Failed: 1}
	}

	var t Tally
	for _, sr := range result.Steps {
		p.line(sr.Passed, sr.Name, sr.Duration, sr.Err)
		if sr.Passed {
			t.Passed++
		} else {
			t.Failed++
		}
	}
	fmt.Fprintf(p.w, "\n  Scenario: %s (%s)\n", p.label(result.Passed), result.Duration.Round(time.Millisecond))
	return t
}

// LoadError prints a scenario file that failed to load.
func (p *Printer) LoadError(path string, err error) Tally {
	fmt.Fprintf(p.w, "\n  %s loading %s: %v\n", p.fail.Sprint("ERROR"), path, err)
	return Tally{Failed: 1}
}

// Suite prints a suite report grouped by area.
func (p *Printer) Suite(r *suite.Report) Tally {
	fmt.Fprintf(p.w, "\n--- %s ---\n\n", p.bold.Sprint("API suite against "+r.BaseURL))
	area := ""
	for _, res := range r.Results {
		if res.Area != area {
			area = res.Area
			fmt.Fprintf(p.w, "  %s\n", p.dim.Sprint(area))
		}
		p.line(res.Passed, res.Name, res.Duration, res.Err)
	}
	fmt.Fprintf(p.w, "\n  Suite: %s (%s)\n", p.label(r.Failed == 0), r.Duration.Round(time.Millisecond))
	return Tally{Passed: r.Passed, Failed: r.Failed}
}

// Summary prints the closing totals line.
func (p *Printer) Summary(t Tally) {
	fmt.Fprintln(p.w)
	fmt.Fprintf(p.w, "Results: %s, %s, %d total\n",
		p.pass.Sprintf("%d passed", t.Passed),
		p.failOrDim(t.Failed).Sprintf("%d failed", t.Failed),
		t.Passed+t.Failed)
}

// Comparison prints the outcome of a single comparison.
func (p *Printer) Comparison(err error) {
	if err == nil {
		fmt.Fprintln(p.w, p.pass.Sprint("OK"))
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", p.fail.Sprint("MISMATCH"), p.Explain(err, ""))
}

func (p *Printer) line(passed bool, name string, d time.Duration, err error) {
	if passed {
		fmt.Fprintf(p.w, "  %s  %-50s (%s)\n", p.pass.Sprint("PASS"), name, d.Round(time.Millisecond))
		return
	}
	fmt.Fprintf(p.w, "  %s  %-50s (%s)\n", p.fail.Sprint("FAIL"), name, d.Round(time.Millisecond))
	fmt.Fprintf(p.w, "        %s\n", p.Explain(err, "        "))
}

func (p *Printer) label(passed bool) string {
	if passed {
		return p.pass.Sprint("PASSED")
	}
	return p.fail.Sprint("FAILED")
}

func (p *Printer) failOrDim(n int) *color.Color {
	if n > 0 {
		return p.fail
	}
	return p.dim
}

// Explain renders err for a person. Comparator mismatches get one line per
// detail, each continuation line starting with indent.
func (p *Printer) Explain(err error, indent string) string {
	if err == nil {
		return ""
	}
	var me *treecompare.MismatchError
	if !errors.As(err, &me) {
		return err.Error()
	}

	var b strings.Builder
	b.WriteString(err.Error())
	field := func(name, value string) {
		fmt.Fprintf(&b, "\n%s  %-9s %s", indent, name+":", value)
	}
	field("expected", me.Expected)
	field("actual", me.Actual)
	if me.Kind == treecompare.ValueMismatch {
		if d, ok := p.StringDiff(me.Expected, me.Actual); ok {
			field("diff", d)
		}
	}
	if me.Path != "" {
		field("exclude", p.dim.Sprint(me.Pattern()))
	}
	return b.String()
}
