// Package pattern compiles the body expectations used by response evaluation.
//
// A pattern is either a literal, matched as an unanchored case-sensitive
// substring, or a raw regular expression written as r"<regex>" (the closing
// quote is optional).
package pattern

import (
	"errors"
	"regexp"
	"strings"
)

// RawPrefix marks a pattern whose remainder is used as a regular expression as-is.
const RawPrefix = `r"`

var ErrEmpty = errors.New("empty body pattern")

// Compile turns a configured body pattern into a regular expression.
func Compile(input string) (*regexp.Regexp, error) {
	p := strings.TrimSpace(input)
	if p == "" {
		return nil, ErrEmpty
	}
	if strings.HasPrefix(p, RawPrefix) {
		raw := strings.TrimPrefix(p, RawPrefix)
		raw = strings.TrimSuffix(raw, `"`)
		return regexp.Compile(raw)
	}
	return regexp.Compile(".*" + regexp.QuoteMeta(p) + ".*")
}
