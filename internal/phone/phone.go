// Package phone normalizes donor phone numbers and finds phone-shaped substrings in
// free text.
package phone

import (
	"net/url"
	"regexp"
	"strings"
)

const (
	MinDigits = 10
	MaxDigits = 15
)

var shaped = regexp.MustCompile(`^\+?\d{10,15}$`)

// Clean strips everything that is not a digit.
func Clean(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Normalize returns digits only, prefixed with countryCode unless the digits already
// start with it. Empty input stays empty.
//
// A number that carries a different country code gets countryCode prepended anyway;
// that matches the registration form's behavior and is left as is on purpose.
func Normalize(raw, countryCode string) string {
	digits := Clean(raw)
	if digits == "" {
		return ""
	}
	if strings.HasPrefix(digits, countryCode) {
		return digits
	}
	return countryCode + digits
}

// Shaped reports whether s as a whole looks like a phone number: an optional leading
// plus followed by 10 to 15 digits.
func Shaped(s string) bool {
	return shaped.MatchString(strings.TrimSpace(s))
}

// WhatsAppLink builds a wa.me deep link, with an optional prefilled message.
func WhatsAppLink(number, message string) string {
	base := "https://wa.me/" + Clean(number)
	if message == "" {
		return base
	}
	return base + "?text=" + strings.ReplaceAll(url.QueryEscape(message), "+", "%20")
}

// Match is one phone-shaped run found in text. Start and End are byte offsets of Raw.
type Match struct {
	Start  int
	End    int
	Raw    string
	Digits string
}

// Find returns every maximal run of 10 to 15 digits, optionally preceded by '+', that
// is not directly adjacent to another digit. Longer or shorter runs are skipped whole.
func Find(text string) []Match {
	var out []Match
	i := 0
	for i < len(text) {
		start := i
		j := i
		if text[j] == '+' {
			j++
		}
		if j >= len(text) || !isDigit(text[j]) || (start > 0 && isDigit(text[start-1])) {
			i++
			continue
		}
		k := j
		for k < len(text) && isDigit(text[k]) {
			k++
		}
		if n := k - j; n >= MinDigits && n <= MaxDigits {
			out = append(out, Match{Start: start, End: k, Raw: text[start:k], Digits: text[j:k]})
		}
		i = k
	}
	return out
}

// Segment is a piece of text that is either plain or a phone number.
type Segment struct {
	Text  string
	Phone string
}

// IsPhone reports whether the segment is a phone match.
func (s Segment) IsPhone() bool { return s.Phone != "" }

// Split cuts text into alternating plain and phone segments, in order. Concatenating
// every segment's Text yields the input.
func Split(text string) []Segment {
	matches := Find(text)
	if len(matches) == 0 {
		if text == "" {
			return nil
		}
		return []Segment{{Text: text}}
	}
	segs := make([]Segment, 0, 2*len(matches)+1)
	last := 0
	for _, m := range matches {
		if m.Start > last {
			segs = append(segs, Segment{Text: text[last:m.Start]})
		}
		segs = append(segs, Segment{Text: m.Raw, Phone: m.Digits})
		last = m.End
	}
	if last < len(text) {
		segs = append(segs, Segment{Text: text[last:]})
	}
	return segs
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
