// Package protocol defines the ActionPlan and ActionPlanResult wire types
// shared by the llm-osd daemon and the llmosh client.
//
// Every object is decoded with unknown fields rejected at every level, the
// same defense the original llm-os-common crate applied via
// #[serde(deny_unknown_fields)]: a producer that hallucinates an extra field
// must fail loudly instead of having it silently ignored.
package protocol

import "fmt"

// Mode selects whether a plan is executed or merely previewed.
type Mode string

const (
	ModePlanOnly Mode = "plan_only"
	ModeExecute  Mode = "execute"
)

// Valid reports whether m is one of the two recognized modes.
func (m Mode) Valid() bool {
	return m == ModePlanOnly || m == ModeExecute
}

func (m Mode) String() string {
	return string(m)
}

// ErrUnknownMode is the error validator reports when a plan's mode is
// neither plan_only nor execute.
var ErrUnknownMode = fmt.Errorf("mode must be %q or %q", ModePlanOnly, ModeExecute)
