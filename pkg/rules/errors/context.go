package errors

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"ceeval-hq/verdict/pkg/rules"
)

// SourceContext renders the lines around loc with a caret under the column.
// It returns "" when the file cannot be read.
func SourceContext(loc rules.Location, around int) string {
	if !loc.IsValid() || loc.File == "" {
		return ""
	}
	f, err := os.Open(loc.File)
	if err != nil {
		return ""
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if sc.Err() != nil || loc.Line > len(lines) {
		return ""
	}

	target := loc.Line - 1
	start := max(target-around, 0)
	end := min(target+around, len(lines)-1)
	width := len(fmt.Sprint(end + 1))

	var sb strings.Builder
	for i := start; i <= end; i++ {
		marker := "  "
		if i == target {
			marker = "->"
		}
		fmt.Fprintf(&sb, "%s %*d | %s\n", marker, width, i+1, lines[i])
		if i == target && loc.Column > 0 {
			fmt.Fprintf(&sb, "   %s | %s^\n", strings.Repeat(" ", width), strings.Repeat(" ", loc.Column-1))
		}
	}
	return sb.String()
}

// AttachContext fills Context for every located diagnostic in l.
func AttachContext(l *List, around int) {
	for _, e := range l.Items {
		if e.Context == "" {
			e.Context = SourceContext(e.Location, around)
		}
	}
}
