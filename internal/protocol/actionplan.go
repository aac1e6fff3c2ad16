package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Confirmation carries the token a producer must attach before the daemon
// will run an action that is flagged dangerous or gated by policy.
type Confirmation struct {
	Token string `json:"token"`
}

// ActionPlan is the top-level document a producer sends to llm-osd.
type ActionPlan struct {
	RequestID    string        `json:"request_id"`
	SessionID    *string       `json:"session_id,omitempty"`
	Version      string        `json:"version"`
	Mode         Mode          `json:"mode"`
	Actions      []Action      `json:"actions"`
	Confirmation *Confirmation `json:"confirmation,omitempty"`
}

// rawActionPlan mirrors ActionPlan's field set without its UnmarshalJSON
// method, so decoding into it does not recurse.
type rawActionPlan ActionPlan

func (p *ActionPlan) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var raw rawActionPlan
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*p = ActionPlan(raw)
	return nil
}

// Parse decodes a UTF-8 sanitized request body into an ActionPlan. Invalid
// UTF-8 bytes are replaced with U+FFFD before decoding, matching the
// sanitize-then-parse behavior the connection server applies to every
// inbound request.
func Parse(data []byte) (*ActionPlan, error) {
	clean := sanitizeUTF8(data)
	var plan ActionPlan
	if err := json.Unmarshal(clean, &plan); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return &plan, nil
}

func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}
	return []byte(strings.ToValidUTF8(string(data), "�"))
}
