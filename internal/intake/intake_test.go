package intake

import (
	"strings"
	"testing"

	"github.com/venturekit/interviewd/internal/storage"
)

func TestHasSignal(t *testing.T) {
	cases := []struct {
		name string
		in   *storage.Intake
		want bool
	}{
		{"nil intake", nil, false},
		{"no fields", &storage.Intake{}, false},
		{"blank fields", &storage.Intake{Fields: map[string]string{"venture": "   "}}, false},
		{"one field", &storage.Intake{Fields: map[string]string{"problem": "slow invoicing"}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := HasSignal(tc.in); got != tc.want {
				t.Errorf("HasSignal = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSummaryOrdersKnownFields(t *testing.T) {
	in := &storage.Intake{Fields: map[string]string{
		"problem": "manual invoicing",
		"venture": "Acme",
		"notes":   "met at demo day",
	}}
	got := Summary(in)

	ventureIdx := strings.Index(got, "Venture: Acme")
	problemIdx := strings.Index(got, "Problem: manual invoicing")
	if ventureIdx < 0 || problemIdx < 0 {
		t.Fatalf("Summary = %q, missing known fields", got)
	}
	if ventureIdx > problemIdx {
		t.Errorf("Summary = %q, venture should come before problem", got)
	}
	if !strings.Contains(got, "Notes: met at demo day") {
		t.Errorf("Summary = %q, extra field dropped", got)
	}
}

func TestSummaryNilIntake(t *testing.T) {
	if got := Summary(nil); got != "" {
		t.Errorf("Summary(nil) = %q, want empty", got)
	}
}

func TestParseFields(t *testing.T) {
	text := `Founder Onboarding

Venture: Acme Robotics
Problem: warehouse picking is slow
and error-prone
Customer: mid-size 3PLs
Budget: not a known label
Distribution: trade shows`

	got := ParseFields(text)

	if got["venture"] != "Acme Robotics" {
		t.Errorf("venture = %q", got["venture"])
	}
	if got["problem"] != "warehouse picking is slow and error-prone" {
		t.Errorf("problem = %q, continuation line not merged", got["problem"])
	}
	if got["customer"] != "mid-size 3PLs" {
		t.Errorf("customer = %q", got["customer"])
	}
	if got["distribution"] != "trade shows" {
		t.Errorf("distribution = %q", got["distribution"])
	}
	if _, ok := got["budget"]; ok {
		t.Error("unknown label should not become a field")
	}
}

func TestParseFieldsEmptyText(t *testing.T) {
	if got := ParseFields(""); len(got) != 0 {
		t.Errorf("ParseFields(\"\") = %v, want empty", got)
	}
}
