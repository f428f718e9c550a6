package splitters

import "strings"

// Markdown splits on ATX headings, keeping each heading attached to
// the section body beneath it. Sections larger than the chunk size
// are further broken down recursively.
type Markdown struct {
	fallback *Recursive
}

// NewMarkdown returns a Markdown splitter whose oversized sections are
// re-split with the given chunk size and overlap.
func NewMarkdown(chunkSize, chunkOverlap int) *Markdown {
	return &Markdown{fallback: NewRecursive(chunkSize, chunkOverlap, nil)}
}

// Split breaks markdown text into heading-led sections.
func (m *Markdown) Split(text string) []string {
	lines := strings.Split(text, "\n")

	var sections []string
	var buf strings.Builder
	inFence := false

	flush := func() {
		section := buf.String()
		buf.Reset()
		if strings.TrimSpace(section) == "" {
			return
		}
		if len(section) > m.fallback.chunkSize {
			sections = append(sections, m.fallback.Split(section)...)
			return
		}
		sections = append(sections, section)
	}

	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
		}
		if !inFence && isHeading(line) && buf.Len() > 0 {
			flush()
		}
		buf.WriteString(line)
		buf.WriteString("\n")
	}
	flush()

	return sections
}

func isHeading(line string) bool {
	trimmed := strings.TrimLeft(line, "#")
	hashes := len(line) - len(trimmed)
	return hashes >= 1 && hashes <= 6 && strings.HasPrefix(trimmed, " ")
}
