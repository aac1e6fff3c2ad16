package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseRoundTripExec(t *testing.T) {
	input := `{
		"request_id": "req-1",
		"version": "0.1",
		"mode": "execute",
		"actions": [
			{"type":"exec","reason":"say hi","argv":["echo","hi"],"timeout_sec":5,"as_root":false}
		]
	}`
	plan, err := Parse([]byte(input))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if plan.RequestID != "req-1" || plan.Mode != ModeExecute {
		t.Fatalf("unexpected plan: %+v", plan)
	}
	if len(plan.Actions) != 1 || plan.Actions[0].Type != ActionExec {
		t.Fatalf("unexpected actions: %+v", plan.Actions)
	}
	if plan.Actions[0].Exec.Argv[0] != "echo" {
		t.Fatalf("unexpected argv: %+v", plan.Actions[0].Exec.Argv)
	}

	out, err := json.Marshal(plan)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	plan2, err := Parse(out)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if plan2.Actions[0].Exec.Reason != "say hi" {
		t.Fatalf("round trip lost reason: %+v", plan2.Actions[0].Exec)
	}
}

func TestParseRejectsUnknownTopLevelField(t *testing.T) {
	input := `{"request_id":"r","version":"0.1","mode":"execute","actions":[],"bogus":true}`
	if _, err := Parse([]byte(input)); err == nil {
		t.Fatalf("expected unknown field rejection")
	}
}

func TestParseRejectsUnknownFieldInAction(t *testing.T) {
	input := `{"request_id":"r","version":"0.1","mode":"execute","actions":[
		{"type":"exec","reason":"x","argv":["echo"],"timeout_sec":1,"as_root":false,"extra":1}
	]}`
	if _, err := Parse([]byte(input)); err == nil {
		t.Fatalf("expected unknown field rejection inside action")
	}
}

func TestParseRejectsUnknownActionType(t *testing.T) {
	input := `{"request_id":"r","version":"0.1","mode":"execute","actions":[{"type":"launch_missiles","reason":"x"}]}`
	if _, err := Parse([]byte(input)); err == nil {
		t.Fatalf("expected unknown type rejection")
	}
}

func TestParseSanitizesInvalidUTF8(t *testing.T) {
	bad := append([]byte(`{"request_id":"`), 0xff, 0xfe)
	bad = append(bad, []byte(`","version":"0.1","mode":"execute","actions":[]}`)...)
	plan, err := Parse(bad)
	if err != nil {
		t.Fatalf("expected invalid bytes to be replaced with U+FFFD and parse to succeed, got: %v", err)
	}
	if !strings.Contains(plan.RequestID, "�") {
		t.Fatalf("expected replacement character in request_id, got %q", plan.RequestID)
	}
}

func TestActionResultMarshalFlattensType(t *testing.T) {
	r := ActionResult{Type: ActionPing, Ping: &PingResult{Type: ActionPing, OK: true}}
	out, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(out), `"type":"ping"`) {
		t.Fatalf("expected flat type field, got %s", out)
	}
}

func TestActionPlanResultErrorOmittedWhenNil(t *testing.T) {
	res := ActionPlanResult{RequestID: "r", Executed: true, Results: []ActionResult{}}
	out, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(out), `"error"`) {
		t.Fatalf("expected no error field, got %s", out)
	}
}
