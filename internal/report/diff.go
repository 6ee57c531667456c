package report

import (
	"strconv"
	"strings"

	diffpatch "github.com/sergi/go-diff/diffmatchpatch"
)

// StringDiff returns a character diff between two rendered string values,
// both in the quoted form the comparator reports. ok is false when either
// side is not a string. Without colour, deletions read [-x-] and
// insertions {+y+}.
func (p *Printer) StringDiff(expected, actual string) (string, bool) {
	from, err := strconv.Unquote(expected)
	if err != nil {
		return "", false
	}
	to, err := strconv.Unquote(actual)
	if err != nil {
		return "", false
	}

	dmp := diffpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(from, to, false))

	var b strings.Builder
	for _, d := range diffs {
		text := strconv.Quote(d.Text)
		text = text[1 : len(text)-1]
		switch d.Type {
		case diffpatch.DiffDelete:
			if p.colored {
				b.WriteString(p.del.Sprint(text))
			} else {
				b.WriteString("[-" + text + "-]")
			}
		case diffpatch.DiffInsert:
			if p.colored {
				b.WriteString(p.ins.Sprint(text))
			} else {
				b.WriteString("{+" + text + "+}")
			}
		case diffpatch.DiffEqual:
			b.WriteString(text)
		}
	}
	return b.String(), true
}
