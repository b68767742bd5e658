// Package security flags chunk text that looks like it carries credentials.
// Findings are reported, never redacted: chunk text must stay a verbatim
// copy of the source.
package security

import (
	"regexp"
	"strings"
)

// Finding is a suspected secret inside a text.
type Finding struct {
	Kind   string `json:"kind"`
	Line   int    `json:"line"`
	Offset int    `json:"offset"` // byte offset in the scanned text
	Length int    `json:"length"`
}

// Detector matches text against known credential shapes.
type Detector struct {
	patterns     []pattern
	placeholders []string
}

type pattern struct {
	kind  string
	regex *regexp.Regexp
}

// NewDetector creates a detector with the default patterns. MeTTa string
// literals only use double quotes, but single quotes are matched too for
// embedded config snippets.
func NewDetector() *Detector {
	return &Detector{
		patterns: []pattern{
			{"api_key", regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?secret)[\s=:)"']*["']([a-zA-Z0-9_\-]{20,})["']`)},
			{"aws_access_key", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
			{"password", regexp.MustCompile(`(?i)(password|passwd|pwd|secret)[\s=:)"']*["']([^\s"']{8,})["']`)},
			{"connection_string", regexp.MustCompile(`(?i)(mongodb|postgres|mysql|redis|amqp)://[^\s"':]+:[^\s"'@]+@[^\s"')]+`)},
			{"private_key", regexp.MustCompile(`-----BEGIN (RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`)},
			{"jwt_token", regexp.MustCompile(`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`)},
		},
		placeholders: []string{
			"your-", "example", "placeholder", "xxx", "changeme", "<", "${", "{{",
		},
	}
}

// Scan returns every finding in text, in order of appearance.
func (d *Detector) Scan(text string) []Finding {
	var findings []Finding

	offset := 0
	for lineNum, line := range strings.Split(text, "\n") {
		for _, p := range d.patterns {
			for _, m := range p.regex.FindAllStringIndex(line, -1) {
				if d.isPlaceholder(line[m[0]:m[1]]) {
					continue
				}
				findings = append(findings, Finding{
					Kind:   p.kind,
					Line:   lineNum + 1,
					Offset: offset + m[0],
					Length: m[1] - m[0],
				})
			}
		}
		offset += len(line) + 1
	}

	return findings
}

// Kinds returns the distinct finding kinds in first-seen order.
func Kinds(findings []Finding) []string {
	var kinds []string
	seen := make(map[string]bool)
	for _, f := range findings {
		if !seen[f.Kind] {
			seen[f.Kind] = true
			kinds = append(kinds, f.Kind)
		}
	}
	return kinds
}

func (d *Detector) isPlaceholder(match string) bool {
	lower := strings.ToLower(match)
	for _, p := range d.placeholders {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
