package transcoder

import "strings"

// defaultTailLines is how many stderr lines are kept for failure messages.
const defaultTailLines = 20

// lineTail keeps the last max lines written to it.
type lineTail struct {
	max   int
	lines []string
}

func newLineTail(max int) *lineTail {
	if max <= 0 {
		max = defaultTailLines
	}
	return &lineTail{max: max}
}

func (t *lineTail) Add(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if len(t.lines) == t.max {
		copy(t.lines, t.lines[1:])
		t.lines = t.lines[:t.max-1]
	}
	t.lines = append(t.lines, line)
}

func (t *lineTail) String() string {
	return strings.Join(t.lines, "\n")
}
