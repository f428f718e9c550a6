// Package splitters provides the text splitting strategies used
// during chunking. Splitter instances carry no mutable state after
// construction and are safe for concurrent use.
package splitters

import "strings"

var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Recursive splits text by trying a ranked list of separators,
// recursing into oversized fragments with progressively finer
// separators, then merging adjacent fragments back up to the chunk
// size with overlap carried between chunks.
type Recursive struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// NewRecursive returns a Recursive splitter. Non-positive chunkSize
// defaults to 1000 characters; overlap defaults to 200 when negative.
func NewRecursive(chunkSize, chunkOverlap int, separators []string) *Recursive {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 {
		chunkOverlap = 200
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 2
	}
	if len(separators) == 0 {
		separators = defaultSeparators
	}
	return &Recursive{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   separators,
	}
}

// Split breaks text into chunks of at most the configured size.
// Whitespace-only fragments are dropped.
func (r *Recursive) Split(text string) []string {
	return r.split(text, r.separators)
}

func (r *Recursive) split(text string, separators []string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if len(text) <= r.chunkSize {
		return []string{text}
	}

	sep, rest := pickSeparator(text, separators)

	var parts []string
	if sep == "" {
		parts = hardSplit(text, r.chunkSize)
	} else {
		parts = splitKeepSeparator(text, sep)
	}

	var pieces []string
	for _, part := range parts {
		if len(part) <= r.chunkSize {
			pieces = append(pieces, part)
			continue
		}
		pieces = append(pieces, r.split(part, rest)...)
	}

	return r.merge(pieces)
}

// merge greedily joins adjacent pieces up to chunkSize, seeding each
// new chunk with the overlap tail of the previous one.
func (r *Recursive) merge(pieces []string) []string {
	var chunks []string
	var buf strings.Builder

	flush := func() {
		chunk := buf.String()
		if strings.TrimSpace(chunk) != "" {
			chunks = append(chunks, chunk)
		}
		buf.Reset()
		if r.chunkOverlap > 0 && len(chunk) > r.chunkOverlap {
			buf.WriteString(chunk[len(chunk)-r.chunkOverlap:])
		}
	}

	for _, piece := range pieces {
		if buf.Len() > 0 && buf.Len()+len(piece) > r.chunkSize {
			flush()
		}
		buf.WriteString(piece)
	}
	if strings.TrimSpace(buf.String()) != "" {
		chunks = append(chunks, buf.String())
	}

	return chunks
}

// pickSeparator returns the first separator present in text and the
// separators ranked after it. The empty separator always matches.
func pickSeparator(text string, separators []string) (string, []string) {
	for i, sep := range separators {
		if sep == "" {
			return "", nil
		}
		if strings.Contains(text, sep) {
			return sep, separators[i+1:]
		}
	}
	return "", nil
}

// splitKeepSeparator splits text on sep, keeping the separator
// attached to the end of each fragment so merged chunks rejoin to the
// original text.
func splitKeepSeparator(text, sep string) []string {
	raw := strings.Split(text, sep)
	parts := make([]string, 0, len(raw))
	for i, part := range raw {
		if i < len(raw)-1 {
			part += sep
		}
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

// hardSplit cuts text into fixed-size windows with no separator
// awareness. Last resort for separator-free content.
func hardSplit(text string, size int) []string {
	var parts []string
	for len(text) > size {
		parts = append(parts, text[:size])
		text = text[size:]
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}
