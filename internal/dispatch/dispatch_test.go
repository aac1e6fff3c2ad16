package dispatch

import (
	"context"
	"testing"

	"github.com/llm-osd/llm-osd/internal/protocol"
)

func parsePlan(t *testing.T, input string) *protocol.ActionPlan {
	t.Helper()
	plan, err := protocol.Parse([]byte(input))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return plan
}

func TestRunDeniesExecOnDenyList(t *testing.T) {
	plan := parsePlan(t, `{
		"request_id":"r1","version":"0.1","mode":"execute",
		"actions":[{"type":"exec","reason":"x","argv":["dd","if=/dev/zero"],"timeout_sec":1,"as_root":false}]
	}`)
	res := Run(context.Background(), Config{ConfirmationToken: "tok"}, plan)
	if res.Results[0].Exec.OK || res.Results[0].Exec.Error.Code != protocol.ErrPolicyDenied {
		t.Fatalf("expected policy_denied, got %+v", res.Results[0].Exec)
	}
}

func TestRunRequiresConfirmationForRm(t *testing.T) {
	plan := parsePlan(t, `{
		"request_id":"r1","version":"0.1","mode":"execute",
		"actions":[{"type":"exec","reason":"x","argv":["rm","/tmp/a"],"timeout_sec":1,"as_root":false}]
	}`)
	res := Run(context.Background(), Config{ConfirmationToken: "tok"}, plan)
	if res.Results[0].Exec.OK || res.Results[0].Exec.Error.Code != protocol.ErrConfirmationRequired {
		t.Fatalf("expected confirmation_required, got %+v", res.Results[0].Exec)
	}
}

func TestRunAllowsEchoWithoutConfirmation(t *testing.T) {
	plan := parsePlan(t, `{
		"request_id":"r1","version":"0.1","mode":"execute",
		"actions":[{"type":"exec","reason":"x","argv":["/bin/echo","hi"],"timeout_sec":5,"as_root":false}]
	}`)
	res := Run(context.Background(), Config{ConfirmationToken: "tok"}, plan)
	if !res.Results[0].Exec.OK {
		t.Fatalf("expected echo to run, got %+v", res.Results[0].Exec)
	}
}

func TestRunPreviewOnlyDeniedInExecuteMode(t *testing.T) {
	plan := parsePlan(t, `{
		"request_id":"r1","version":"0.1","mode":"execute",
		"actions":[{"type":"service_control","reason":"x","action":"restart","unit":"nginx.service"}]
	}`)
	res := Run(context.Background(), Config{ConfirmationToken: "tok"}, plan)
	sc := res.Results[0].ServiceControl
	if sc.OK || sc.Error.Code != protocol.ErrPolicyDenied {
		t.Fatalf("expected policy_denied in execute mode, got %+v", sc)
	}
}

func TestRunPreviewOnlySynthesizesArgvInPlanOnly(t *testing.T) {
	plan := parsePlan(t, `{
		"request_id":"r1","version":"0.1","mode":"plan_only",
		"actions":[{"type":"service_control","reason":"x","action":"restart","unit":"nginx.service"}]
	}`)
	res := Run(context.Background(), Config{ConfirmationToken: "tok"}, plan)
	sc := res.Results[0].ServiceControl
	if !sc.OK || len(sc.Argv) == 0 {
		t.Fatalf("expected synthesized argv, got %+v", sc)
	}
}

func TestRunExecuteSetsExecutedFlag(t *testing.T) {
	plan := parsePlan(t, `{"request_id":"r1","version":"0.1","mode":"execute","actions":[{"type":"ping","reason":"x"}]}`)
	res := Run(context.Background(), Config{}, plan)
	if !res.Executed {
		t.Fatalf("expected executed=true")
	}
}

func TestRunPlanOnlySetsExecutedFalse(t *testing.T) {
	plan := parsePlan(t, `{"request_id":"r1","version":"0.1","mode":"plan_only","actions":[{"type":"ping","reason":"x"}]}`)
	res := Run(context.Background(), Config{}, plan)
	if res.Executed {
		t.Fatalf("expected executed=false")
	}
}
