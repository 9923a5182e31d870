package parser

// extractDate returns the first "DD.MM.YY HH:MM" substring in lines, scanning
// first to last, or Unknown.
func extractDate(lines []string) string {
	for _, line := range lines {
		if m := datePattern.FindString(line); m != "" {
			return m
		}
	}
	return Unknown
}
