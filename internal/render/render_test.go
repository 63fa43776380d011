package render

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloodfinder/internal/aiclient"
)

func TestHTMLLinksPhoneOnly(t *testing.T) {
	out, err := NewRenderer().HTML("Contact: 9876543211 now")
	require.NoError(t, err)
	assert.Contains(t, out, `href="https://wa.me/9876543211"`)
	assert.Contains(t, out, `>9876543211</a> now</p>`)
	assert.Contains(t, out, `<p>Contact: <a `)
	assert.Contains(t, out, `class="phone-link"`)
}

func TestHTMLDigitBounds(t *testing.T) {
	r := NewRenderer()

	out, err := r.HTML("call 987654321 today")
	require.NoError(t, err)
	assert.NotContains(t, out, "wa.me")

	out, err = r.HTML("card 1234567890123456 on file")
	require.NoError(t, err)
	assert.NotContains(t, out, "wa.me")

	out, err = r.HTML("intl +919876543210.")
	require.NoError(t, err)
	assert.Contains(t, out, `href="https://wa.me/919876543210"`)
	assert.Contains(t, out, `>+919876543210</a>.`)
}

func TestHTMLKeepsMarkdownAndCode(t *testing.T) {
	src := "| name | phone |\n|---|---|\n| Asha | 919876543210 |\n\n- `9876543210`\n- **bold**\n"
	out, err := NewRenderer().HTML(src)
	require.NoError(t, err)
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, `<td><a href="https://wa.me/919876543210"`)
	assert.Contains(t, out, "<code>9876543210</code>")
	assert.Contains(t, out, "<strong>bold</strong>")
}

func TestHTMLDropsRawHTML(t *testing.T) {
	out, err := NewRenderer().HTML("<script>alert(1)</script>")
	require.NoError(t, err)
	assert.NotContains(t, out, "<script>")
}

func parseRows(t *testing.T, raw string) []aiclient.Row {
	t.Helper()
	var rows []aiclient.Row
	require.NoError(t, json.Unmarshal([]byte(raw), &rows))
	return rows
}

func TestRowsCapAndIndicator(t *testing.T) {
	raw := "["
	for i := 0; i < 12; i++ {
		if i > 0 {
			raw += ","
		}
		raw += fmt.Sprintf(`{"name":"D%d"}`, i)
	}
	raw += "]"

	table := Rows(parseRows(t, raw))
	require.NotNil(t, table)
	assert.Len(t, table.Rows, MaxInlineRows)
	assert.Equal(t, 12, table.Total)
	assert.Equal(t, "Showing first 10 of 12 results", table.Indicator)

	small := Rows(parseRows(t, `[{"name":"A"},{"name":"B"}]`))
	assert.Len(t, small.Rows, 2)
	assert.Empty(t, small.Indicator)

	assert.Nil(t, Rows(nil))
}

func TestRowsPhoneCells(t *testing.T) {
	table := Rows(parseRows(t, `[
		{"full_name":"Asha","Contact No":"+91 98765 43210","alt":"919812345678","note":"ring 9876500000 first","year":2}
	]`))
	require.NotNil(t, table)
	assert.Equal(t, []string{"full_name", "Contact No", "alt", "note", "year"}, table.Columns)

	cells := table.Rows[0]
	assert.Empty(t, cells[0].Link)
	assert.Equal(t, "https://wa.me/919876543210", cells[1].Link)
	assert.Equal(t, "https://wa.me/919812345678", cells[2].Link)
	assert.Empty(t, cells[3].Link)
	require.Len(t, cells[3].Segments, 3)
	assert.Equal(t, "9876500000", cells[3].Segments[1].Phone)
	assert.Equal(t, "2", cells[4].Text)
	assert.Empty(t, cells[4].Link)
}

func TestRowsMissingKeysRenderEmpty(t *testing.T) {
	table := Rows(parseRows(t, `[{"a":"x"},{"b":"y"}]`))
	require.NotNil(t, table)
	assert.Equal(t, []string{"a", "b"}, table.Columns)
	assert.Equal(t, "", table.Rows[0][1].Text)
	assert.Equal(t, "", table.Rows[1][0].Text)
}
