package render

import "strings"

// bodyWidthFraction is the share of card width the message body may occupy.
const bodyWidthFraction = 0.8

// maxBodyLines caps how many wrapped lines fit in the body area.
const maxBodyLines = 12

// wrapWords packs words greedily into lines up to maxWidth pixels, measured
// with the supplied function. A line is closed once the next word would
// exceed the limit. The result is order-preserving and deterministic for a
// given measure function and text.
func wrapWords(text string, maxWidth float64, measure func(string) float64) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var (
		lines   []string
		current []string
		width   float64
	)
	for _, word := range words {
		wordWidth := measure(word + " ")
		if width+wordWidth > maxWidth && len(current) > 0 {
			lines = append(lines, strings.Join(current, " "))
			current = []string{word}
			width = wordWidth
			continue
		}
		current = append(current, word)
		width += wordWidth
	}
	if len(current) > 0 {
		lines = append(lines, strings.Join(current, " "))
	}
	return lines
}
