// Package validator enforces the bounds and invariants every ActionPlan
// must satisfy before it reaches the policy engine. Validate returns the
// first failure in a deterministic order: plan fields top-down, then each
// action in index order, fields top-down within a variant.
package validator

import (
	"fmt"
	"strings"

	"github.com/llm-osd/llm-osd/internal/protocol"
)

// Error is a stable, short English message describing the first rule an
// ActionPlan violated. Several exact strings are part of the wire contract
// and must not be reworded.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

func fail(format string, args ...interface{}) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

const (
	maxShortField   = 128
	maxReasonBytes  = 2048
	maxDangerBytes  = 2048
	maxRecoverBytes = 2048
	maxActions      = 64
	maxTokenBytes   = 1024
)

// Validate checks plan against every bound and invariant in the data model.
// It returns nil when the plan is well-formed.
func Validate(plan *protocol.ActionPlan) *Error {
	if err := validatePlanFields(plan); err != nil {
		return err
	}
	for i := range plan.Actions {
		if err := validateAction(plan, i); err != nil {
			return err
		}
	}
	return nil
}

func validatePlanFields(plan *protocol.ActionPlan) *Error {
	if blank(plan.RequestID) || len(plan.RequestID) > maxShortField {
		return fail("request_id must be non-empty and at most %d bytes", maxShortField)
	}
	if plan.SessionID != nil && (blank(*plan.SessionID) || len(*plan.SessionID) > maxShortField) {
		return fail("session_id must be non-empty and at most %d bytes when present", maxShortField)
	}
	if blank(plan.Version) || len(plan.Version) > maxShortField {
		return fail("version must be non-empty and at most %d bytes", maxShortField)
	}
	if !plan.Mode.Valid() {
		return &Error{Message: protocol.ErrUnknownMode.Error()}
	}
	if len(plan.Actions) > maxActions {
		return fail("actions must contain at most %d entries", maxActions)
	}
	if plan.Confirmation != nil {
		if blank(plan.Confirmation.Token) || len(plan.Confirmation.Token) > maxTokenBytes {
			return fail("confirmation.token must be non-empty and at most %d bytes", maxTokenBytes)
		}
	}
	return nil
}

func validateAction(plan *protocol.ActionPlan, idx int) *Error {
	a := &plan.Actions[idx]
	c := a.Common()
	t := string(a.Type)

	if blank(c.Reason) || len(c.Reason) > maxReasonBytes {
		return fail("%s.reason must be non-empty and at most %d bytes", t, maxReasonBytes)
	}
	if c.Danger != nil && len(*c.Danger) > maxDangerBytes {
		return fail("%s.danger must be at most %d bytes", t, maxDangerBytes)
	}
	if c.Recovery != nil && len(*c.Recovery) > maxRecoverBytes {
		return fail("%s.recovery must be at most %d bytes", t, maxRecoverBytes)
	}

	var err *Error
	switch a.Type {
	case protocol.ActionExec:
		err = validateExec(a.Exec)
	case protocol.ActionReadFile:
		err = validateReadFile(a.ReadFile)
	case protocol.ActionWriteFile:
		err = validateWriteFile(a.WriteFile)
	case protocol.ActionServiceControl:
		err = validateServiceControl(a.ServiceControl)
	case protocol.ActionInstallPackages:
		err = validatePackages("install_packages", a.InstallPackages.Manager, a.InstallPackages.Packages)
	case protocol.ActionRemovePackages:
		err = validatePackages("remove_packages", a.RemovePackages.Manager, a.RemovePackages.Packages)
	case protocol.ActionUpdateSystem:
		err = validateManager("update_system", a.UpdateSystem.Manager)
	case protocol.ActionObserve:
		err = validateObserve(a.Observe)
	case protocol.ActionCgroupApply:
		err = validateCgroupApply(a.CgroupApply)
	case protocol.ActionFirmwareOp:
		err = validateFirmwareOp(a.FirmwareOp)
	case protocol.ActionPing:
		// no payload beyond the common fields already checked.
	}
	if err != nil {
		return err
	}

	if requiresConfirmationOnDanger(a.Type) && c.Danger != nil && !blank(*c.Danger) {
		if plan.Confirmation == nil || blank(plan.Confirmation.Token) {
			return fail("confirmation.token is required because %s declares danger", t)
		}
	}
	return nil
}

func requiresConfirmationOnDanger(t protocol.ActionType) bool {
	return t == protocol.ActionExec || t == protocol.ActionReadFile || t == protocol.ActionWriteFile
}

func validateExec(e *protocol.ExecAction) *Error {
	if len(e.Argv) == 0 || len(e.Argv) > maxActions {
		return fail("exec.argv must contain between 1 and %d entries", maxActions)
	}
	for _, arg := range e.Argv {
		if len(arg) > maxReasonBytes {
			return fail("exec.argv entries must be at most %d bytes", maxReasonBytes)
		}
	}
	if e.Cwd != nil && blank(*e.Cwd) {
		return fail("exec.cwd must be non-blank when present")
	}
	if e.Env != nil {
		if len(e.Env) > 32 {
			return fail("exec.env must contain at most 32 entries")
		}
		for k, v := range e.Env {
			if len(k) > maxShortField {
				return fail("exec.env keys must be at most %d bytes", maxShortField)
			}
			if len(v) > maxReasonBytes {
				return fail("exec.env values must be at most %d bytes", maxReasonBytes)
			}
		}
	}
	if e.TimeoutSec < 1 || e.TimeoutSec > 60 {
		return fail("exec.timeout_sec must be between 1 and 60")
	}
	if e.AsRoot {
		return fail("exec.as_root is not supported")
	}
	return nil
}

func validateReadFile(r *protocol.ReadFileAction) *Error {
	if blank(r.Path) || len(r.Path) > 4096 {
		return fail("read_file.path must be non-blank and at most 4096 bytes")
	}
	if r.MaxBytes < 1 || r.MaxBytes > 65536 {
		return fail("read_file.max_bytes must be between 1 and 65536")
	}
	return nil
}

func validateWriteFile(w *protocol.WriteFileAction) *Error {
	if blank(w.Path) || len(w.Path) > 4096 {
		return fail("write_file.path must be non-blank and at most 4096 bytes")
	}
	if len(w.Content) > 65536 {
		return fail("write_file.content must be at most 65536 bytes")
	}
	if !validMode(w.Mode) {
		return fail("write_file.mode is invalid")
	}
	return nil
}

func validMode(mode string) bool {
	m := strings.TrimPrefix(mode, "0o")
	if len(m) < 3 || len(m) > 4 {
		return false
	}
	for _, r := range m {
		if r < '0' || r > '7' {
			return false
		}
	}
	return true
}

var serviceControlActions = map[string]bool{
	"start": true, "stop": true, "restart": true,
	"enable": true, "disable": true, "status": true,
}

func validateServiceControl(s *protocol.ServiceControlAction) *Error {
	if !serviceControlActions[s.Action] {
		return fail("service_control.action must be one of start, stop, restart, enable, disable, status")
	}
	if blank(s.Unit) || len(s.Unit) > 256 {
		return fail("service_control.unit must be non-blank and at most 256 bytes")
	}
	return nil
}

var packageManagers = map[string]bool{
	"apt": true, "dnf": true, "pacman": true, "zypper": true, "brew": true, "other": true,
}

func validateManager(action, manager string) *Error {
	if !packageManagers[manager] {
		return fail("%s.manager must be one of apt, dnf, pacman, zypper, brew, other", action)
	}
	return nil
}

func validatePackages(action, manager string, packages []string) *Error {
	if err := validateManager(action, manager); err != nil {
		return err
	}
	if len(packages) == 0 || len(packages) > 128 {
		return fail("%s.packages must contain between 1 and 128 entries", action)
	}
	for _, p := range packages {
		if blank(p) || len(p) > maxShortField {
			return fail("%s.packages entries must be non-blank and at most %d bytes", action, maxShortField)
		}
	}
	return nil
}

var observeTools = map[string]bool{
	"ps": true, "top": true, "journalctl": true, "perf": true, "bpftrace": true, "other": true,
}

func validateObserve(o *protocol.ObserveAction) *Error {
	if !observeTools[o.Tool] {
		return fail("observe.tool must be one of ps, top, journalctl, perf, bpftrace, other")
	}
	if len(o.Args) > maxActions {
		return fail("observe.args must contain at most %d entries", maxActions)
	}
	for _, a := range o.Args {
		if blank(a) || len(a) > maxReasonBytes {
			return fail("observe.args entries must be non-blank and at most %d bytes", maxReasonBytes)
		}
	}
	return nil
}

func validateCgroupApply(c *protocol.CgroupApplyAction) *Error {
	targets := 0
	if c.PID != nil {
		targets++
	}
	if c.Unit != nil {
		targets++
	}
	if targets != 1 {
		return fail("cgroup_apply must target exactly one of pid or unit")
	}
	if c.Unit != nil && len(*c.Unit) > 256 {
		return fail("cgroup_apply.unit must be at most 256 bytes")
	}
	if c.CPUWeight == nil && c.MemMaxBytes == nil {
		return fail("cgroup_apply must set at least one of cpu_weight or mem_max_bytes")
	}
	return nil
}

var firmwareOps = map[string]bool{
	"inventory": true, "fwupd_update": true, "uefi_var_read": true,
}

func validateFirmwareOp(f *protocol.FirmwareOpAction) *Error {
	if !firmwareOps[f.Op] {
		return fail("firmware_op.op must be one of inventory, fwupd_update, uefi_var_read")
	}
	if f.Op == "uefi_var_read" && (f.UEFIVarName == nil || blank(*f.UEFIVarName)) {
		return fail("firmware_op.uefi_var_name must be non-blank when op is uefi_var_read")
	}
	return nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
