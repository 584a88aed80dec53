// Package codeblock pulls source code out of model responses.
package codeblock

import (
	"errors"
	"regexp"
	"strings"
)

// ErrNotFound means the response held no usable code.
var ErrNotFound = errors.New("codeblock: no code found")

// Lang selects the fence tags accepted as a primary match.
type Lang int

const (
	Python Lang = iota
	VB
)

func (l Lang) String() string {
	if l == VB {
		return "vb"
	}
	return "python"
}

var aliases = map[Lang][]string{
	Python: {"python", "py", "python3"},
	VB:     {"vb", "vba", "vbnet", "basic"},
}

// subSpan matches a bare VB procedure when no fence is present.
var subSpan = regexp.MustCompile(`(?is)\bSub\s+[A-Za-z_][A-Za-z0-9_]*\s*\(.*?\bEnd\s+Sub\b`)

type block struct {
	tag  string
	body string
}

// Extract returns the trimmed code for lang. Fences tagged with one of the
// language aliases win, then any fence; for VB a bare Sub ... End Sub span
// is tried last. Unterminated fences are ignored.
func Extract(raw string, lang Lang) (string, error) {
	blocks := fences(raw)
	for _, b := range blocks {
		if matches(b.tag, lang) && b.body != "" {
			return b.body, nil
		}
	}
	for _, b := range blocks {
		if b.body != "" {
			return b.body, nil
		}
	}
	if lang == VB {
		if span := subSpan.FindString(raw); span != "" {
			return strings.TrimSpace(span), nil
		}
	}
	return "", ErrNotFound
}

func matches(tag string, lang Lang) bool {
	for _, a := range aliases[lang] {
		if strings.EqualFold(tag, a) {
			return true
		}
	}
	return false
}

// fences scans raw line by line. A fence opens on a line starting with ```
// and closes on the next line that ends with ```.
func fences(raw string) []block {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	var (
		out  []block
		open bool
		cur  block
		body []string
	)
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !open {
			if !strings.HasPrefix(trimmed, "```") {
				continue
			}
			rest := strings.TrimPrefix(trimmed, "```")
			if i := strings.Index(rest, "```"); i >= 0 {
				// single-line fence: ```code```
				out = append(out, block{body: strings.TrimSpace(rest[:i])})
				continue
			}
			open = true
			cur = block{}
			body = body[:0]
			if f := strings.Fields(rest); len(f) > 0 {
				cur.tag = f[0]
			}
			continue
		}
		if strings.HasSuffix(trimmed, "```") {
			if last := strings.TrimSuffix(trimmed, "```"); last != "" {
				body = append(body, strings.TrimSuffix(strings.TrimRight(line, " \t"), "```"))
			}
			cur.body = strings.TrimSpace(strings.Join(body, "\n"))
			out = append(out, cur)
			open = false
			continue
		}
		body = append(body, line)
	}
	return out
}
