package render

import (
	"fmt"
	"regexp"

	"bloodfinder/internal/aiclient"
	"bloodfinder/internal/phone"
)

// MaxInlineRows is how many result rows are shown inline.
const MaxInlineRows = 10

var phoneColumn = regexp.MustCompile(`(?i)phone|contact|mobile|whatsapp`)

// Cell is one rendered table cell. Link is set when the whole cell is a phone number;
// Segments is set when phones are embedded in longer text.
type Cell struct {
	Text     string          `json:"text"`
	Link     string          `json:"link,omitempty"`
	Segments []phone.Segment `json:"segments,omitempty"`
}

// Table is the inline view of an answer's rows.
type Table struct {
	Columns   []string `json:"columns"`
	Rows      [][]Cell `json:"rows"`
	Total     int      `json:"total"`
	Indicator string   `json:"indicator,omitempty"`
}

// Rows builds the inline table: at most MaxInlineRows rows, columns in first-seen key
// order. It returns nil for no rows.
func Rows(rows []aiclient.Row) *Table {
	if len(rows) == 0 {
		return nil
	}
	t := &Table{Columns: aiclient.Columns(rows), Total: len(rows)}
	shown := rows
	if len(shown) > MaxInlineRows {
		shown = shown[:MaxInlineRows]
		t.Indicator = fmt.Sprintf("Showing first %d of %d results", MaxInlineRows, len(rows))
	}
	for _, r := range shown {
		cells := make([]Cell, len(t.Columns))
		for i, col := range t.Columns {
			f, _ := r.Get(col)
			cells[i] = cellFor(col, f.Text())
		}
		t.Rows = append(t.Rows, cells)
	}
	return t
}

func cellFor(column, value string) Cell {
	c := Cell{Text: value}
	switch {
	case value == "":
	case phoneColumn.MatchString(column):
		if digits := phone.Clean(value); digits != "" {
			c.Link = phone.WhatsAppLink(digits, "")
		}
	case phone.Shaped(value):
		c.Link = phone.WhatsAppLink(value, "")
	default:
		if segs := phone.Split(value); len(segs) > 1 || (len(segs) == 1 && segs[0].IsPhone()) {
			c.Segments = segs
		}
	}
	return c
}
