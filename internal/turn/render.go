package turn

import "strings"

// Transcript renders turns as role-prefixed text joined in order, the
// same shape the turns take when sent for generation. Token counting
// uses this exact rendering so the budget lines up with the external
// service's own accounting.
func Transcript(turns []Turn) string {
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("[")
		b.WriteString(strings.ToUpper(string(t.Role)))
		b.WriteString("] ")
		b.WriteString(t.Content)
	}
	return b.String()
}
