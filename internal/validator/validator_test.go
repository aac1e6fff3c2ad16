package validator

import (
	"testing"

	"github.com/llm-osd/llm-osd/internal/protocol"
)

func mustParse(t *testing.T, input string) *protocol.ActionPlan {
	t.Helper()
	plan, err := protocol.Parse([]byte(input))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return plan
}

func TestValidateAcceptsWellFormedPlan(t *testing.T) {
	plan := mustParse(t, `{
		"request_id":"req-1","version":"0.1","mode":"execute",
		"actions":[{"type":"exec","reason":"say hi","argv":["echo","hi"],"timeout_sec":5,"as_root":false}]
	}`)
	if err := Validate(plan); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateRejectsEmptyArgv(t *testing.T) {
	plan := mustParse(t, `{
		"request_id":"req-1","version":"0.1","mode":"execute",
		"actions":[{"type":"exec","reason":"x","argv":[],"timeout_sec":5,"as_root":false}]
	}`)
	err := Validate(plan)
	if err == nil || err.Message != "exec.argv must contain between 1 and 64 entries" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsAsRoot(t *testing.T) {
	plan := mustParse(t, `{
		"request_id":"req-1","version":"0.1","mode":"execute",
		"actions":[{"type":"exec","reason":"x","argv":["echo"],"timeout_sec":5,"as_root":true}]
	}`)
	err := Validate(plan)
	if err == nil || err.Message != "exec.as_root is not supported" {
		t.Fatalf("expected exact as_root message, got %v", err)
	}
}

func TestValidateRejectsInvalidWriteFileMode(t *testing.T) {
	plan := mustParse(t, `{
		"request_id":"req-1","version":"0.1","mode":"execute",
		"actions":[{"type":"write_file","reason":"x","path":"/tmp/a","content":"hi","mode":"abc"}]
	}`)
	err := Validate(plan)
	if err == nil || err.Message != "write_file.mode is invalid" {
		t.Fatalf("expected exact mode message, got %v", err)
	}
}

func TestValidateAcceptsOctalPrefixMode(t *testing.T) {
	plan := mustParse(t, `{
		"request_id":"req-1","version":"0.1","mode":"execute",
		"actions":[{"type":"write_file","reason":"x","path":"/tmp/a","content":"hi","mode":"0o644"}]
	}`)
	if err := Validate(plan); err != nil {
		t.Fatalf("expected 0o644 to be valid, got %v", err)
	}
}

func TestValidateRequiresConfirmationWhenDangerDeclared(t *testing.T) {
	plan := mustParse(t, `{
		"request_id":"req-1","version":"0.1","mode":"execute",
		"actions":[{"type":"exec","reason":"x","danger":"could wipe data","argv":["rm","-rf","/tmp/x"],"timeout_sec":5,"as_root":false}]
	}`)
	err := Validate(plan)
	if err == nil || err.Message != "confirmation.token is required because exec declares danger" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateDeterministicOrderPicksFirstFailure(t *testing.T) {
	plan := mustParse(t, `{
		"request_id":"","version":"","mode":"bogus","actions":[]
	}`)
	err := Validate(plan)
	if err == nil || err.Message != "request_id must be non-empty and at most 128 bytes" {
		t.Fatalf("expected request_id failure first, got %v", err)
	}
}

func TestValidateRejectsCgroupApplyWithBothTargets(t *testing.T) {
	plan := mustParse(t, `{
		"request_id":"req-1","version":"0.1","mode":"plan_only",
		"actions":[{"type":"cgroup_apply","reason":"x","pid":123,"unit":"foo.service","cpu_weight":50}]
	}`)
	err := Validate(plan)
	if err == nil || err.Message != "cgroup_apply must target exactly one of pid or unit" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsFirmwareOpMissingVarName(t *testing.T) {
	plan := mustParse(t, `{
		"request_id":"req-1","version":"0.1","mode":"plan_only",
		"actions":[{"type":"firmware_op","reason":"x","op":"uefi_var_read"}]
	}`)
	err := Validate(plan)
	if err == nil || err.Message != "firmware_op.uefi_var_name must be non-blank when op is uefi_var_read" {
		t.Fatalf("unexpected error: %v", err)
	}
}
