// Package intake manages the prior onboarding answers that drive interview
// mode selection: a small set of free-text fields plus an explicit
// onboarding-completed marker, collected before any interview starts.
package intake

import (
	"fmt"
	"sort"
	"strings"

	"github.com/venturekit/interviewd/internal/storage"
)

// fieldOrder lists the known signal fields in presentation order. Unknown
// fields are kept but rendered after these.
var fieldOrder = []string{"venture", "problem", "solution", "customer", "team", "distribution"}

var fieldLabels = map[string]string{
	"venture":      "Venture",
	"problem":      "Problem",
	"solution":     "Solution",
	"customer":     "Customer",
	"team":         "Team",
	"distribution": "Distribution",
}

// HasSignal reports whether the intake carries at least one non-empty field.
func HasSignal(in *storage.Intake) bool {
	if in == nil {
		return false
	}
	for _, v := range in.Fields {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

// Summary renders the intake fields as a compact labelled block suitable for
// embedding in the guided-mode system instructions.
func Summary(in *storage.Intake) string {
	if in == nil {
		return ""
	}

	var parts []string
	seen := make(map[string]bool)
	for _, key := range fieldOrder {
		if v := strings.TrimSpace(in.Fields[key]); v != "" {
			parts = append(parts, fmt.Sprintf("%s: %s", fieldLabels[key], v))
		}
		seen[key] = true
	}

	// Extra fields, sorted for deterministic output.
	var extras []string
	for key := range in.Fields {
		if !seen[key] {
			extras = append(extras, key)
		}
	}
	sort.Strings(extras)
	for _, key := range extras {
		if v := strings.TrimSpace(in.Fields[key]); v != "" {
			parts = append(parts, fmt.Sprintf("%s: %s", capitalize(key), v))
		}
	}

	return strings.Join(parts, "\n")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ParseFields extracts known labelled fields from free text, accepting lines
// shaped like "Label: value". Lines without a known label continue the
// previous field's value. Used by the PDF import path.
func ParseFields(text string) map[string]string {
	byLabel := make(map[string]string, len(fieldLabels))
	for key, label := range fieldLabels {
		byLabel[strings.ToLower(label)] = key
	}

	fields := make(map[string]string)
	current := ""
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			current = ""
			continue
		}

		if label, value, ok := strings.Cut(line, ":"); ok {
			key, known := byLabel[strings.ToLower(strings.TrimSpace(label))]
			if known {
				fields[key] = strings.TrimSpace(value)
				current = key
			} else {
				// Labelled line we don't recognize; don't fold it into the
				// previous field.
				current = ""
			}
			continue
		}

		if current != "" {
			fields[current] = strings.TrimSpace(fields[current] + " " + line)
		}
	}
	return fields
}
