package compare

import (
	"regexp"
	"strings"
)

var (
	timestampPattern = regexp.MustCompile(`(?:\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:?\d{2})?|\b\d{2}:\d{2}:\d{2}(?:\.\d+)?\b)[ \t]*`)
	blankRun         = regexp.MustCompile(`[ \t]+`)
)

// Normalizer removes the output differences that carry no behavioural
// meaning. It is safe for concurrent use.
type Normalizer struct {
	sentinel        string
	stripTimestamps bool
	benign          []*regexp.Regexp
}

// Normalize returns the canonical form of one output stream.
func (n *Normalizer) Normalize(raw []byte) string {
	s := strings.ReplaceAll(string(raw), "\r\n", "\n")
	if n.sentinel != "" {
		if i := strings.Index(s, n.sentinel); i >= 0 {
			end := i + len(n.sentinel)
			if nl := strings.IndexByte(s[end:], '\n'); nl >= 0 {
				end += nl
			} else {
				end = len(s)
			}
			s = s[:end]
		}
	}
	if n.stripTimestamps {
		s = timestampPattern.ReplaceAllString(s, "")
	}
	for _, re := range n.benign {
		s = re.ReplaceAllString(s, "")
	}

	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimRight(blankRun.ReplaceAllString(line, " "), " \t\r")
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	if len(out) == 0 {
		return ""
	}
	return strings.Join(out, "\n") + "\n"
}
