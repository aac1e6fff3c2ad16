package actions

import (
	"fmt"
	"strconv"

	"github.com/llm-osd/llm-osd/internal/protocol"
)

// Ping always succeeds; it carries no payload and no policy gate.
func Ping() *protocol.PingResult {
	return &protocol.PingResult{Type: protocol.ActionPing, OK: true}
}

// The seven functions below synthesize the argv the daemon would have run,
// without running it. They are called only in plan_only mode; execute mode
// never reaches these, since the dispatcher denies them before handler
// dispatch. A synthesizer can still deny its own preview: an unsupported
// package manager or observe tool is policy_denied even in plan_only mode,
// matching the deny-list's "no amount of confirmation changes this" posture.

func PreviewServiceControl(a *protocol.ServiceControlAction) *protocol.ServiceControlResult {
	return &protocol.ServiceControlResult{
		Type: protocol.ActionServiceControl,
		OK:   true,
		Argv: []string{"systemctl", a.Action, a.Unit},
	}
}

func PreviewInstallPackages(a *protocol.InstallPackagesAction) *protocol.InstallPackagesResult {
	argv, err := packageManagerArgv(a.Manager, "install", a.Packages)
	if err != nil {
		return &protocol.InstallPackagesResult{
			Type: protocol.ActionInstallPackages, OK: false,
			Error: protocol.NewError(protocol.ErrPolicyDenied, err.Error()),
		}
	}
	return &protocol.InstallPackagesResult{Type: protocol.ActionInstallPackages, OK: true, Argv: argv}
}

func PreviewRemovePackages(a *protocol.RemovePackagesAction) *protocol.RemovePackagesResult {
	argv, err := packageManagerArgv(a.Manager, "remove", a.Packages)
	if err != nil {
		return &protocol.RemovePackagesResult{
			Type: protocol.ActionRemovePackages, OK: false,
			Error: protocol.NewError(protocol.ErrPolicyDenied, err.Error()),
		}
	}
	return &protocol.RemovePackagesResult{Type: protocol.ActionRemovePackages, OK: true, Argv: argv}
}

func packageManagerArgv(manager, verb string, packages []string) ([]string, error) {
	var base []string
	switch manager {
	case "apt":
		base = []string{"apt-get", verb, "-y"}
	case "dnf":
		base = []string{"dnf", verb, "-y"}
	case "pacman":
		if verb == "install" {
			base = []string{"pacman", "-S", "--noconfirm"}
		} else {
			base = []string{"pacman", "-R", "--noconfirm"}
		}
	case "zypper":
		base = []string{"zypper", verb, "-y"}
	case "brew":
		if verb == "remove" {
			base = []string{"brew", "uninstall"}
		} else {
			base = []string{"brew", verb}
		}
	default:
		return nil, fmt.Errorf("install_packages/remove_packages is not supported for manager %q", manager)
	}
	return append(base, packages...), nil
}

func PreviewUpdateSystem(a *protocol.UpdateSystemAction) *protocol.UpdateSystemResult {
	switch a.Manager {
	case "apt":
		return &protocol.UpdateSystemResult{
			Type: protocol.ActionUpdateSystem, OK: true,
			Argv: []string{"apt-get", "update", "&&", "apt-get", "-y", "upgrade"},
		}
	default:
		return &protocol.UpdateSystemResult{
			Type: protocol.ActionUpdateSystem, OK: false,
			Error: protocol.NewError(protocol.ErrPolicyDenied,
				fmt.Sprintf("update_system is not supported for manager %q", a.Manager)),
		}
	}
}

func PreviewObserve(a *protocol.ObserveAction) *protocol.ObserveResult {
	if a.Tool == "other" {
		return &protocol.ObserveResult{
			Type: protocol.ActionObserve, OK: false,
			Error: protocol.NewError(protocol.ErrPolicyDenied, `observe is not supported for tool "other"`),
		}
	}
	argv := append([]string{a.Tool}, a.Args...)
	return &protocol.ObserveResult{Type: protocol.ActionObserve, OK: true, Argv: argv}
}

func PreviewCgroupApply(a *protocol.CgroupApplyAction) *protocol.CgroupApplyResult {
	argv := []string{"systemd-run", "--scope"}
	if a.CPUWeight != nil {
		argv = append(argv, "-p", fmt.Sprintf("CPUWeight=%d", *a.CPUWeight))
	}
	if a.MemMaxBytes != nil {
		argv = append(argv, "-p", fmt.Sprintf("MemoryMax=%d", *a.MemMaxBytes))
	}
	if a.PID != nil {
		argv = append(argv, "--pid="+strconv.FormatUint(uint64(*a.PID), 10))
	} else {
		argv = append(argv, "--unit="+*a.Unit)
	}
	return &protocol.CgroupApplyResult{Type: protocol.ActionCgroupApply, OK: true, Argv: argv}
}

func PreviewFirmwareOp(a *protocol.FirmwareOpAction) *protocol.FirmwareOpResult {
	var argv []string
	switch a.Op {
	case "inventory":
		argv = []string{"dmidecode"}
	case "fwupd_update":
		argv = []string{"fwupdmgr", "update"}
	case "uefi_var_read":
		argv = []string{"cat", "/sys/firmware/efi/efivars/" + *a.UEFIVarName}
	}
	return &protocol.FirmwareOpResult{Type: protocol.ActionFirmwareOp, OK: true, Argv: argv}
}
