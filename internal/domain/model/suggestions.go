package model

import "strings"

// Suggestions are follow up questions offered after an answer.
type Suggestions struct {
	Suggestions []string `json:"suggestions"`
}

// ParseSuggestions takes one suggestion per line, dropping list markers,
// surrounding tags and blank lines.
func ParseSuggestions(text string) []string {
	lines := strings.Split(text, "\n")
	suggestions := make([]string, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "<") && strings.HasSuffix(line, ">") {
			continue
		}

		line = strings.TrimLeft(line, "-*• ")
		line = strings.TrimSpace(line)

		if line != "" {
			suggestions = append(suggestions, line)
		}
	}

	return suggestions
}
