package loader

import "strings"

// Normalize trims every line and drops blank lines and lines made only of
// '-' and '_' characters. Survivors are joined with "\n".
func Normalize(raw string) string {
	lines := strings.Split(raw, "\n")

	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if len(line) == 0 || isSeparator(line) {
			continue
		}
		kept = append(kept, line)
	}

	return strings.Join(kept, "\n")
}

func isSeparator(line string) bool {
	return len(strings.Trim(line, "-_")) == 0
}
