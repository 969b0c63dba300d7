// -----------------------------------------------------------------------
// Progress parser - extracts (current, total) signals from process output
// -----------------------------------------------------------------------

package progress

import (
	"fmt"
	"regexp"
	"strconv"
)

// Update is a structured progress observation parsed from raw output
type Update struct {
	Current int
	Total   int
	Message string
}

// Parser scans text chunks against an ordered pattern list. The first
// pattern that matches wins; later patterns are not consulted. Matching is
// case-insensitive. The parser holds no state between calls - buffering
// across chunk boundaries is the caller's responsibility.
type Parser struct {
	patterns []*regexp.Regexp
}

// defaultPatterns is the mini-protocol spoken by the wrapped CLI tools,
// most specific first. Each pattern captures (current, total).
var defaultPatterns = []string{
	`progress[:\s]+(\d+)\s*/\s*(\d+)`,
	`\[(\d+)/(\d+)\]`,
	`(\d+)\s+of\s+(\d+)`,
	`(\d+)\s*/\s*(\d+)\s+(?:pages|documents|files|entries)`,
}

// NewParser compiles an ordered pattern list. Every pattern must capture
// exactly two number groups: current and total.
func NewParser(patterns ...string) (*Parser, error) {
	if len(patterns) == 0 {
		patterns = defaultPatterns
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			return nil, fmt.Errorf("invalid progress pattern %q: %w", p, err)
		}
		if re.NumSubexp() < 2 {
			return nil, fmt.Errorf("progress pattern %q must capture current and total", p)
		}
		compiled = append(compiled, re)
	}

	return &Parser{patterns: compiled}, nil
}

// MustParser is NewParser that panics on a malformed pattern table.
// Use only with compiled-in patterns.
func MustParser(patterns ...string) *Parser {
	p, err := NewParser(patterns...)
	if err != nil {
		panic(err)
	}
	return p
}

// Parse scans one chunk of output. Returns the update from the first
// matching pattern with a canonical message, or false when no pattern
// matches - the caller decides whether silence is meaningful.
func (p *Parser) Parse(chunk string) (Update, bool) {
	for _, re := range p.patterns {
		match := re.FindStringSubmatch(chunk)
		if match == nil {
			continue
		}

		current, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		total, err := strconv.Atoi(match[2])
		if err != nil {
			continue
		}

		return Update{
			Current: current,
			Total:   total,
			Message: fmt.Sprintf("Processing %d of %d", current, total),
		}, true
	}

	return Update{}, false
}
