package summary

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseError reports where the backend's summary output violated the schema.
// It carries enough detail for tests and operators; the raw output is never
// persisted on failure.
type ParseError struct {
	Field string
	Want  string
	Got   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("summary field %s: want %s, got %s", e.Field, e.Want, e.Got)
}

// requiredKeys is the fixed top-level key set; all must be present even if
// their values are empty collections.
var requiredKeys = []string{
	"venture_name",
	"problem",
	"solution",
	"target_customer",
	"distribution_channels",
	"team",
	"traction",
	"risks",
	"next_steps",
}

// Parse strips code-fence markup, parses the raw backend output, and
// validates it against the fixed schema. On any violation it returns a
// *ParseError and no document.
func Parse(raw string) (*Document, error) {
	cleaned := StripFences(raw)
	if strings.TrimSpace(cleaned) == "" {
		return nil, &ParseError{Field: "$", Want: "JSON object", Got: "empty output"}
	}

	var root map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &root); err != nil {
		return nil, &ParseError{Field: "$", Want: "JSON object", Got: snippet(cleaned)}
	}

	for _, key := range requiredKeys {
		if _, ok := root[key]; !ok {
			return nil, &ParseError{Field: key, Want: "present", Got: "missing"}
		}
	}

	doc := &Document{}

	var perr *ParseError
	doc.VentureName, perr = decodeString(root, "venture_name")
	if perr != nil {
		return nil, perr
	}
	doc.Problem, perr = decodeString(root, "problem")
	if perr != nil {
		return nil, perr
	}
	doc.Solution, perr = decodeString(root, "solution")
	if perr != nil {
		return nil, perr
	}
	doc.TargetCustomer, perr = decodeString(root, "target_customer")
	if perr != nil {
		return nil, perr
	}
	doc.DistributionChannels, perr = decodeStrings(root, "distribution_channels")
	if perr != nil {
		return nil, perr
	}
	doc.Team, perr = decodeStrings(root, "team")
	if perr != nil {
		return nil, perr
	}
	doc.Risks, perr = decodeStrings(root, "risks")
	if perr != nil {
		return nil, perr
	}
	doc.NextSteps, perr = decodeStrings(root, "next_steps")
	if perr != nil {
		return nil, perr
	}
	doc.Traction, perr = decodeTraction(root["traction"])
	if perr != nil {
		return nil, perr
	}

	return doc, nil
}

func decodeString(root map[string]json.RawMessage, key string) (string, *ParseError) {
	raw := root[key]
	if string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", &ParseError{Field: key, Want: "string", Got: snippet(string(raw))}
	}
	return s, nil
}

// decodeStrings normalizes a null array to an empty one — the single
// documented leniency of the validator.
func decodeStrings(root map[string]json.RawMessage, key string) ([]string, *ParseError) {
	raw := root[key]
	if string(raw) == "null" {
		return []string{}, nil
	}
	var items []string
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &ParseError{Field: key, Want: "array of strings", Got: snippet(string(raw))}
	}
	if items == nil {
		items = []string{}
	}
	return items, nil
}

func decodeTraction(raw json.RawMessage) (Traction, *ParseError) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Traction{}, &ParseError{Field: "traction", Want: "object", Got: snippet(string(raw))}
	}

	var tr Traction
	if stage, ok := fields["stage"]; ok && string(stage) != "null" {
		if err := json.Unmarshal(stage, &tr.Stage); err != nil {
			return Traction{}, &ParseError{Field: "traction.stage", Want: "string", Got: snippet(string(stage))}
		}
	}
	var perr *ParseError
	tr.MonthlyRevenue, perr = decodeMetric(fields, "monthly_revenue")
	if perr != nil {
		return Traction{}, perr
	}
	tr.Users, perr = decodeMetric(fields, "users")
	if perr != nil {
		return Traction{}, perr
	}
	return tr, nil
}

// decodeMetric treats a missing or null metric as the sentinel; anything
// present must be a number or the sentinel string.
func decodeMetric(fields map[string]json.RawMessage, key string) (Metric, *ParseError) {
	raw, ok := fields[key]
	if !ok || string(raw) == "null" {
		return Metric{}, nil
	}
	var m Metric
	if err := m.UnmarshalJSON(raw); err != nil {
		return Metric{}, &ParseError{
			Field: "traction." + key,
			Want:  fmt.Sprintf("number or %q", Sentinel),
			Got:   snippet(string(raw)),
		}
	}
	return m, nil
}

// StripFences removes a surrounding markdown code fence, with or without a
// language tag, leaving other content untouched.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop a language tag like "json" on the opening fence line.
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		first := strings.TrimSpace(s[:idx])
		if first == "" || !strings.ContainsAny(first, "{[") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}
