// Package dispatch wires the validator, policy engine, and action handlers
// together: given an already-validated ActionPlan, it produces the
// ActionPlanResult a connection returns to its client. Kept separate from
// internal/server so dispatch logic is testable without a socket, mirroring
// the execute_action loop of the original llm-osd server module.
package dispatch

import (
	"context"
	"fmt"

	"github.com/llm-osd/llm-osd/internal/actions"
	"github.com/llm-osd/llm-osd/internal/policy"
	"github.com/llm-osd/llm-osd/internal/protocol"
)

// Config carries the daemon's confirmation secret, the only piece of
// configuration dispatch itself needs.
type Config struct {
	ConfirmationToken string
}

// Run dispatches every action in plan in order and returns the assembled
// result. plan must already have passed validator.Validate; Run does not
// re-check bounds, only policy.
func Run(ctx context.Context, cfg Config, plan *protocol.ActionPlan) *protocol.ActionPlanResult {
	var token *string
	if plan.Confirmation != nil {
		token = &plan.Confirmation.Token
	}

	results := make([]protocol.ActionResult, len(plan.Actions))
	for i := range plan.Actions {
		results[i] = dispatchOne(ctx, plan.Mode, &plan.Actions[i], token, cfg.ConfirmationToken)
	}
	return &protocol.ActionPlanResult{
		RequestID: plan.RequestID,
		Executed:  plan.Mode == protocol.ModeExecute,
		Results:   results,
	}
}

func dispatchOne(ctx context.Context, mode protocol.Mode, a *protocol.Action, token *string, expected string) protocol.ActionResult {
	switch a.Type {
	case protocol.ActionExec:
		return protocol.ActionResult{Type: a.Type, Exec: dispatchExec(ctx, mode, a.Exec, token, expected)}
	case protocol.ActionReadFile:
		return protocol.ActionResult{Type: a.Type, ReadFile: dispatchReadFile(mode, a.ReadFile, token, expected)}
	case protocol.ActionWriteFile:
		return protocol.ActionResult{Type: a.Type, WriteFile: dispatchWriteFile(mode, a.WriteFile, token, expected)}
	case protocol.ActionServiceControl:
		return protocol.ActionResult{Type: a.Type, ServiceControl: dispatchServiceControl(mode, a.ServiceControl)}
	case protocol.ActionInstallPackages:
		return protocol.ActionResult{Type: a.Type, InstallPackages: dispatchInstallPackages(mode, a.InstallPackages)}
	case protocol.ActionRemovePackages:
		return protocol.ActionResult{Type: a.Type, RemovePackages: dispatchRemovePackages(mode, a.RemovePackages)}
	case protocol.ActionUpdateSystem:
		return protocol.ActionResult{Type: a.Type, UpdateSystem: dispatchUpdateSystem(mode, a.UpdateSystem)}
	case protocol.ActionObserve:
		return protocol.ActionResult{Type: a.Type, Observe: dispatchObserve(mode, a.Observe)}
	case protocol.ActionCgroupApply:
		return protocol.ActionResult{Type: a.Type, CgroupApply: dispatchCgroupApply(mode, a.CgroupApply)}
	case protocol.ActionFirmwareOp:
		return protocol.ActionResult{Type: a.Type, FirmwareOp: dispatchFirmwareOp(mode, a.FirmwareOp)}
	case protocol.ActionPing:
		return protocol.ActionResult{Type: a.Type, Ping: actions.Ping()}
	default:
		return protocol.ActionResult{Type: a.Type}
	}
}

func previewDeniedMessage(actionType protocol.ActionType) string {
	return fmt.Sprintf("%s is not supported in execute mode", actionType)
}

func dispatchExec(ctx context.Context, mode protocol.Mode, e *protocol.ExecAction, token *string, expected string) *protocol.ExecResult {
	argv0 := ""
	if len(e.Argv) > 0 {
		argv0 = e.Argv[0]
	}
	if policy.IsExecDenied(argv0) {
		return &protocol.ExecResult{Type: protocol.ActionExec, OK: false,
			Error: protocol.NewError(protocol.ErrPolicyDenied, "exec denied by policy")}
	}
	if policy.ExecRequiresConfirmation(argv0) && !policy.ConfirmationIsValid(token, expected) {
		return &protocol.ExecResult{Type: protocol.ActionExec, OK: false,
			Error: protocol.NewError(protocol.ErrConfirmationRequired, "confirmation required")}
	}
	if mode == protocol.ModePlanOnly {
		return &protocol.ExecResult{Type: protocol.ActionExec, OK: true}
	}
	return actions.RunExec(ctx, e)
}

func dispatchReadFile(mode protocol.Mode, r *protocol.ReadFileAction, token *string, expected string) *protocol.ReadFileResult {
	if policy.PathRequiresConfirmation(r.Path) && !policy.ConfirmationIsValid(token, expected) {
		return &protocol.ReadFileResult{Type: protocol.ActionReadFile, OK: false,
			Error: protocol.NewError(protocol.ErrConfirmationRequired, "confirmation required")}
	}
	if mode == protocol.ModePlanOnly {
		return &protocol.ReadFileResult{Type: protocol.ActionReadFile, OK: true}
	}
	return actions.ReadFile(r)
}

func dispatchWriteFile(mode protocol.Mode, w *protocol.WriteFileAction, token *string, expected string) *protocol.WriteFileResult {
	if policy.PathRequiresConfirmation(w.Path) && !policy.ConfirmationIsValid(token, expected) {
		return &protocol.WriteFileResult{Type: protocol.ActionWriteFile, OK: false,
			Error: protocol.NewError(protocol.ErrConfirmationRequired, "confirmation required")}
	}
	if mode == protocol.ModePlanOnly {
		return &protocol.WriteFileResult{Type: protocol.ActionWriteFile, OK: true, Artifacts: []string{}}
	}
	return actions.WriteFile(w)
}

func dispatchServiceControl(mode protocol.Mode, a *protocol.ServiceControlAction) *protocol.ServiceControlResult {
	if mode == protocol.ModeExecute {
		return &protocol.ServiceControlResult{Type: protocol.ActionServiceControl, OK: false,
			Error: protocol.NewError(protocol.ErrPolicyDenied, previewDeniedMessage(protocol.ActionServiceControl))}
	}
	return actions.PreviewServiceControl(a)
}

func dispatchInstallPackages(mode protocol.Mode, a *protocol.InstallPackagesAction) *protocol.InstallPackagesResult {
	if mode == protocol.ModeExecute {
		return &protocol.InstallPackagesResult{Type: protocol.ActionInstallPackages, OK: false,
			Error: protocol.NewError(protocol.ErrPolicyDenied, previewDeniedMessage(protocol.ActionInstallPackages))}
	}
	return actions.PreviewInstallPackages(a)
}

func dispatchRemovePackages(mode protocol.Mode, a *protocol.RemovePackagesAction) *protocol.RemovePackagesResult {
	if mode == protocol.ModeExecute {
		return &protocol.RemovePackagesResult{Type: protocol.ActionRemovePackages, OK: false,
			Error: protocol.NewError(protocol.ErrPolicyDenied, previewDeniedMessage(protocol.ActionRemovePackages))}
	}
	return actions.PreviewRemovePackages(a)
}

func dispatchUpdateSystem(mode protocol.Mode, a *protocol.UpdateSystemAction) *protocol.UpdateSystemResult {
	if mode == protocol.ModeExecute {
		return &protocol.UpdateSystemResult{Type: protocol.ActionUpdateSystem, OK: false,
			Error: protocol.NewError(protocol.ErrPolicyDenied, previewDeniedMessage(protocol.ActionUpdateSystem))}
	}
	return actions.PreviewUpdateSystem(a)
}

func dispatchObserve(mode protocol.Mode, a *protocol.ObserveAction) *protocol.ObserveResult {
	if mode == protocol.ModeExecute {
		return &protocol.ObserveResult{Type: protocol.ActionObserve, OK: false,
			Error: protocol.NewError(protocol.ErrPolicyDenied, previewDeniedMessage(protocol.ActionObserve))}
	}
	return actions.PreviewObserve(a)
}

func dispatchCgroupApply(mode protocol.Mode, a *protocol.CgroupApplyAction) *protocol.CgroupApplyResult {
	if mode == protocol.ModeExecute {
		return &protocol.CgroupApplyResult{Type: protocol.ActionCgroupApply, OK: false,
			Error: protocol.NewError(protocol.ErrPolicyDenied, previewDeniedMessage(protocol.ActionCgroupApply))}
	}
	return actions.PreviewCgroupApply(a)
}

func dispatchFirmwareOp(mode protocol.Mode, a *protocol.FirmwareOpAction) *protocol.FirmwareOpResult {
	if mode == protocol.ModeExecute {
		return &protocol.FirmwareOpResult{Type: protocol.ActionFirmwareOp, OK: false,
			Error: protocol.NewError(protocol.ErrPolicyDenied, previewDeniedMessage(protocol.ActionFirmwareOp))}
	}
	return actions.PreviewFirmwareOp(a)
}
