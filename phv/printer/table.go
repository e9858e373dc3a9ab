package printer

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

const columnGap = "  "

// table accumulates rows and pads columns to their widest cell.
type table struct {
	header []string
	rows   [][]string
}

func newTable(header ...string) *table {
	return &table{header: header}
}

func (t *table) add(cells ...any) {
	row := make([]string, len(cells))
	for i, c := range cells {
		row[i] = fmt.Sprint(c)
	}
	t.rows = append(t.rows, row)
}

func (t *table) widths() []int {
	w := make([]int, len(t.header))
	for i, h := range t.header {
		w[i] = runewidth.StringWidth(h)
	}
	for _, r := range t.rows {
		for i, c := range r {
			if i < len(w) {
				w[i] = max(w[i], runewidth.StringWidth(c))
			}
		}
	}
	return w
}

func (t *table) writeRow(b *strings.Builder, cells []string, w []int) {
	for i, c := range cells {
		if i == len(cells)-1 {
			b.WriteString(c)
			break
		}
		b.WriteString(runewidth.FillRight(c, w[i]))
		b.WriteString(columnGap)
	}
	b.WriteByte('\n')
}

// render writes the table, keeping at most limit rows when limit > 0.
func (t *table) render(w io.Writer, limit int) error {
	widths := t.widths()
	var b strings.Builder
	t.writeRow(&b, t.header, widths)
	rows := t.rows
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	for _, r := range rows {
		t.writeRow(&b, r, widths)
	}
	if len(rows) < len(t.rows) {
		fmt.Fprintf(&b, "... %d more\n", len(t.rows)-len(rows))
	}
	_, err := io.WriteString(w, b.String())
	return err
}
