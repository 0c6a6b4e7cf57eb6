package pipeline

import (
	"strings"
)

const (
	SectionOverview        = "overview"
	SectionThemes          = "themes"
	SectionSymptomPatterns = "symptom_patterns"
	SectionObservations    = "observations"
	SectionSafetyFlags     = "safety_flags"
)

// SectionKeys lists the summary sections in the order they are requested.
var SectionKeys = []string{
	SectionOverview,
	SectionThemes,
	SectionSymptomPatterns,
	SectionObservations,
	SectionSafetyFlags,
}

// headings maps accepted heading text, longest first within a key, to section keys.
var headings = []struct {
	text string
	key  string
}{
	{"intake summary", SectionOverview},
	{"overview", SectionOverview},
	{"key observed themes", SectionThemes},
	{"observed themes", SectionThemes},
	{"themes", SectionThemes},
	{"symptom patterns", SectionSymptomPatterns},
	{"clinical observations", SectionObservations},
	{"observations", SectionObservations},
	{"safety flags", SectionSafetyFlags},
}

// ParseSections splits a markdown summary into the five named sections.
// Every key is present in the result; a missing section maps to "".
// Text before the first heading is ignored.
func ParseSections(text string) map[string]string {
	bodies := make(map[string]*strings.Builder, len(SectionKeys))
	for _, key := range SectionKeys {
		bodies[key] = &strings.Builder{}
	}

	var current *strings.Builder
	for _, line := range strings.Split(text, "\n") {
		if key, rest, ok := matchHeading(line); ok {
			current = bodies[key]
			if current.Len() > 0 {
				current.WriteString("\n")
			}
			current.WriteString(rest)
			continue
		}
		if current == nil {
			continue
		}
		current.WriteString("\n")
		current.WriteString(line)
	}

	sections := make(map[string]string, len(SectionKeys))
	for key, body := range bodies {
		sections[key] = strings.TrimSpace(body.String())
	}
	return sections
}

// matchHeading recognises "## 1. **Symptom Patterns**: text" and its looser variants.
func matchHeading(line string) (key, rest string, ok bool) {
	trimmed := strings.TrimLeft(strings.TrimSpace(line), "#>-* ")
	trimmed = strings.TrimLeft(trimmed, "0123456789")
	trimmed = strings.TrimLeft(trimmed, ".) ")
	trimmed = strings.TrimLeft(trimmed, "* ")

	for _, h := range headings {
		if len(trimmed) < len(h.text) || !strings.EqualFold(trimmed[:len(h.text)], h.text) {
			continue
		}
		tail := trimmed[len(h.text):]
		if tail != "" && tail[0] != ':' && tail[0] != '*' {
			continue
		}
		return h.key, strings.TrimSpace(strings.TrimLeft(tail, "*: ")), true
	}
	return "", "", false
}
