// Package client implements llmsh's pre-flight checks: parsing and
// validating a plan locally before it is ever sent to the daemon, and the
// one client-side refusal rule (non-execute plans are never sent) that has
// no daemon-side equivalent.
//
// Grounded on the original llmsh crate's parse_and_validate_for_send.
package client

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"net"
	"time"

	"github.com/llm-osd/llm-osd/internal/protocol"
	"github.com/llm-osd/llm-osd/internal/validator"
)

// Overrides carries the CLI flags that take precedence over whatever a
// request_id/session_id the input document itself specified.
type Overrides struct {
	RequestID *string
	SessionID *string
}

// ApplyOverrides mutates plan in place, applied before validation so the
// overridden values are what get checked and what get sent.
func ApplyOverrides(plan *protocol.ActionPlan, o Overrides) {
	if o.RequestID != nil {
		plan.RequestID = *o.RequestID
	}
	if o.SessionID != nil {
		plan.SessionID = o.SessionID
	}
}

// ParseAndValidate parses and validates input without the execute-mode
// restriction, used by `llmsh validate`.
func ParseAndValidate(input []byte) (*protocol.ActionPlan, error) {
	plan, err := protocol.Parse(input)
	if err != nil {
		return nil, err
	}
	if verr := validator.Validate(plan); verr != nil {
		return nil, verr
	}
	return plan, nil
}

// Verdict is the outcome `llmsh validate` reports.
type Verdict struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// ValidateVerdict runs ParseAndValidate and converts the result into a
// Verdict suitable for both human-readable and --json-output output.
func ValidateVerdict(input []byte) Verdict {
	if _, err := ParseAndValidate(input); err != nil {
		return Verdict{Valid: false, Error: err.Error()}
	}
	return Verdict{Valid: true}
}

// ParseAndValidateForSend parses, applies overrides, validates, and
// refuses to return a plan whose mode is not execute: llmsh never sends a
// plan_only request to the daemon. A plan that fails validation is
// reported as such even when its mode is also not execute.
func ParseAndValidateForSend(input []byte, overrides Overrides) (*protocol.ActionPlan, error) {
	plan, err := protocol.Parse(input)
	if err != nil {
		return nil, err
	}
	ApplyOverrides(plan, overrides)

	if verr := validator.Validate(plan); verr != nil {
		return nil, verr
	}
	if plan.Mode != protocol.ModeExecute {
		return nil, errors.New("client refuses non-execute mode")
	}
	return plan, nil
}

// Send dials socketPath, writes plan, half-closes the connection, and
// decodes the daemon's ActionPlanResult from whatever comes back.
func Send(socketPath string, plan *protocol.ActionPlan, timeout time.Duration) (*protocol.ActionPlanResult, error) {
	conn, err := net.DialTimeout("unix", socketPath, timeout)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	body, err := json.Marshal(plan)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(body); err != nil {
		return nil, err
	}
	if uc, ok := conn.(*net.UnixConn); ok {
		_ = uc.CloseWrite()
	}

	var buf bytes.Buffer
	reader := bufio.NewReader(conn)
	if _, err := buf.ReadFrom(reader); err != nil {
		return nil, err
	}

	var result protocol.ActionPlanResult
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}
