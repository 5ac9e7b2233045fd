package normalisers

import (
	"strings"
	"unicode"
)

// PlaintextNormaliser handles plain text content.
type PlaintextNormaliser struct{}

func (n *PlaintextNormaliser) Normalise(content string, mimeType string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	return strings.TrimSpace(content)
}

func (n *PlaintextNormaliser) SupportedTypes() []string {
	return []string{"text/plain", "*/*"} // Fallback for any type
}

func (n *PlaintextNormaliser) Priority() int {
	return 1
}

// PDFNormaliser cleans text extracted from a PDF page: it rejoins words
// hyphenated across line breaks, drops soft hyphens and control
// characters, and collapses layout whitespace while keeping paragraph
// breaks for the chunker.
type PDFNormaliser struct{}

func (n *PDFNormaliser) Normalise(content string, mimeType string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	content = strings.ReplaceAll(content, "\u00ad", "")
	content = joinHyphenatedLines(content)

	content = strings.Map(func(r rune) rune {
		switch {
		case r == '\n':
			return r
		case r == '\uFFFD' || unicode.IsControl(r) || unicode.IsSpace(r):
			return ' '
		}
		return r
	}, content)

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	content = strings.Join(lines, "\n")

	for strings.Contains(content, "\n\n\n") {
		content = strings.ReplaceAll(content, "\n\n\n", "\n\n")
	}

	return strings.TrimSpace(content)
}

func (n *PDFNormaliser) SupportedTypes() []string {
	return []string{"application/pdf"}
}

func (n *PDFNormaliser) Priority() int {
	return 50 // Format-specific
}

// joinHyphenatedLines turns "drib-\nbling" into "dribbling".
func joinHyphenatedLines(content string) string {
	var b strings.Builder
	b.Grow(len(content))

	runes := []rune(content)
	for i := 0; i < len(runes); i++ {
		if runes[i] == '-' && i+1 < len(runes) && runes[i+1] == '\n' &&
			i > 0 && unicode.IsLetter(runes[i-1]) &&
			i+2 < len(runes) && unicode.IsLower(runes[i+2]) {
			i++ // skip the hyphen and the newline
			continue
		}
		b.WriteRune(runes[i])
	}
	return b.String()
}
