package prompt

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedOutput is returned when the model's reply does not contain
// the three labeled sections the generation prompt demanded.
var ErrMalformedOutput = errors.New("malformed model output")

// MaxShortFormLen is the hard cap on the short-form variant.
const MaxShortFormLen = 280

// Variants is the parsed three-section generation reply.
type Variants struct {
	ShortForm string
	LongForm  string
	CTA       string
}

var sectionLabels = []string{"SHORT_FORM:", "LONG_FORM:", "CTA:"}

// ParseVariants splits the reply on its section labels. Labels are
// matched at line start, case-sensitive, in any order; each section must
// be present exactly once and non-empty. Oversized short-form output is
// a parse failure, not something to silently truncate.
func ParseVariants(output string) (*Variants, error) {
	type section struct {
		label string
		start int // index just past the label
		pos   int // index of the label itself
	}

	var found []section
	for _, label := range sectionLabels {
		pos := indexAtLineStart(output, label)
		if pos < 0 {
			return nil, fmt.Errorf("%w: missing %s section", ErrMalformedOutput, strings.TrimSuffix(label, ":"))
		}
		if indexAtLineStart(output[pos+len(label):], label) >= 0 {
			return nil, fmt.Errorf("%w: duplicate %s section", ErrMalformedOutput, strings.TrimSuffix(label, ":"))
		}
		found = append(found, section{label: label, start: pos + len(label), pos: pos})
	}

	// Each section runs until the next label or end of output
	content := make(map[string]string, len(found))
	for _, s := range found {
		end := len(output)
		for _, other := range found {
			if other.pos > s.pos && other.pos < end {
				end = other.pos
			}
		}
		content[s.label] = strings.TrimSpace(output[s.start:end])
	}

	v := &Variants{
		ShortForm: content["SHORT_FORM:"],
		LongForm:  content["LONG_FORM:"],
		CTA:       content["CTA:"],
	}
	if v.ShortForm == "" || v.LongForm == "" || v.CTA == "" {
		return nil, fmt.Errorf("%w: empty section", ErrMalformedOutput)
	}
	if len([]rune(v.ShortForm)) > MaxShortFormLen {
		return nil, fmt.Errorf("%w: short form exceeds %d characters", ErrMalformedOutput, MaxShortFormLen)
	}
	return v, nil
}

func indexAtLineStart(s, label string) int {
	if strings.HasPrefix(s, label) {
		return 0
	}
	idx := strings.Index(s, "\n"+label)
	if idx < 0 {
		return -1
	}
	return idx + 1
}
