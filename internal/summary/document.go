// Package summary defines the structured document distilled from a finished
// interview and the validation applied to the narrative backend's raw output
// before anything is persisted.
package summary

import (
	"encoding/json"
	"fmt"
)

// Sentinel is the literal accepted in place of a number when the
// conversation gave no usable figure.
const Sentinel = "unknown"

// Document is the fixed-schema profile consumed by downstream generators.
// Every top-level key must be present in the backend's output; arrays may
// come back null and are normalized to empty.
type Document struct {
	VentureName          string   `json:"venture_name"`
	Problem              string   `json:"problem"`
	Solution             string   `json:"solution"`
	TargetCustomer       string   `json:"target_customer"`
	DistributionChannels []string `json:"distribution_channels"`
	Team                 []string `json:"team"`
	Traction             Traction `json:"traction"`
	Risks                []string `json:"risks"`
	NextSteps            []string `json:"next_steps"`
}

// Traction captures the venture's measurable progress. Numeric fields accept
// either a number or the "unknown" sentinel, nothing else.
type Traction struct {
	Stage          string `json:"stage"`
	MonthlyRevenue Metric `json:"monthly_revenue"`
	Users          Metric `json:"users"`
}

// Metric is a number-or-sentinel value. The zero value is the sentinel.
type Metric struct {
	Known bool
	Value float64
}

// MarshalJSON emits the number when known, otherwise the sentinel string.
func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.Known {
		return json.Marshal(Sentinel)
	}
	return json.Marshal(m.Value)
}

// UnmarshalJSON accepts a JSON number or the literal sentinel string.
func (m *Metric) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		m.Known = true
		m.Value = num
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil && s == Sentinel {
		*m = Metric{}
		return nil
	}
	return fmt.Errorf("want number or %q, got %s", Sentinel, string(data))
}
