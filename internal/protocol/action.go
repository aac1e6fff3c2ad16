package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ActionType is the discriminator carried in the wire-format "type" field.
type ActionType string

const (
	ActionExec            ActionType = "exec"
	ActionReadFile        ActionType = "read_file"
	ActionWriteFile       ActionType = "write_file"
	ActionServiceControl  ActionType = "service_control"
	ActionInstallPackages ActionType = "install_packages"
	ActionRemovePackages  ActionType = "remove_packages"
	ActionUpdateSystem    ActionType = "update_system"
	ActionObserve         ActionType = "observe"
	ActionCgroupApply     ActionType = "cgroup_apply"
	ActionFirmwareOp      ActionType = "firmware_op"
	ActionPing            ActionType = "ping"
)

// actionCommon holds the fields every action variant carries alongside its
// own payload. Type is included here, not on the Action wrapper, so a
// strict per-variant decode sees the full flat object the wire format uses.
type actionCommon struct {
	Type     ActionType `json:"type"`
	Reason   string     `json:"reason"`
	Danger   *string    `json:"danger,omitempty"`
	Recovery *string    `json:"recovery,omitempty"`
}

type ExecAction struct {
	actionCommon
	Argv       []string          `json:"argv"`
	Cwd        *string           `json:"cwd,omitempty"`
	Env        map[string]string `json:"env,omitempty"`
	TimeoutSec int               `json:"timeout_sec"`
	AsRoot     bool              `json:"as_root"`
}

type ReadFileAction struct {
	actionCommon
	Path     string `json:"path"`
	MaxBytes int    `json:"max_bytes"`
}

type WriteFileAction struct {
	actionCommon
	Path    string `json:"path"`
	Content string `json:"content"`
	Mode    string `json:"mode"`
}

type ServiceControlAction struct {
	actionCommon
	Action string `json:"action"`
	Unit   string `json:"unit"`
}

type InstallPackagesAction struct {
	actionCommon
	Manager  string   `json:"manager"`
	Packages []string `json:"packages"`
}

type RemovePackagesAction struct {
	actionCommon
	Manager  string   `json:"manager"`
	Packages []string `json:"packages"`
}

type UpdateSystemAction struct {
	actionCommon
	Manager string `json:"manager"`
}

type ObserveAction struct {
	actionCommon
	Tool string   `json:"tool"`
	Args []string `json:"args,omitempty"`
}

type CgroupApplyAction struct {
	actionCommon
	PID         *uint32 `json:"pid,omitempty"`
	Unit        *string `json:"unit,omitempty"`
	CPUWeight   *int    `json:"cpu_weight,omitempty"`
	MemMaxBytes *int64  `json:"mem_max_bytes,omitempty"`
}

type FirmwareOpAction struct {
	actionCommon
	Op          string  `json:"op"`
	UEFIVarName *string `json:"uefi_var_name,omitempty"`
}

type PingAction struct {
	actionCommon
}

// Action is the closed sum type over the eleven action variants. Exactly one
// of the pointer fields is non-nil, matching Type.
type Action struct {
	Type ActionType

	Exec            *ExecAction
	ReadFile        *ReadFileAction
	WriteFile       *WriteFileAction
	ServiceControl  *ServiceControlAction
	InstallPackages *InstallPackagesAction
	RemovePackages  *RemovePackagesAction
	UpdateSystem    *UpdateSystemAction
	Observe         *ObserveAction
	CgroupApply     *CgroupApplyAction
	FirmwareOp      *FirmwareOpAction
	Ping            *PingAction
}

// Common returns the fields shared by every variant.
func (a *Action) Common() actionCommon {
	switch a.Type {
	case ActionExec:
		return a.Exec.actionCommon
	case ActionReadFile:
		return a.ReadFile.actionCommon
	case ActionWriteFile:
		return a.WriteFile.actionCommon
	case ActionServiceControl:
		return a.ServiceControl.actionCommon
	case ActionInstallPackages:
		return a.InstallPackages.actionCommon
	case ActionRemovePackages:
		return a.RemovePackages.actionCommon
	case ActionUpdateSystem:
		return a.UpdateSystem.actionCommon
	case ActionObserve:
		return a.Observe.actionCommon
	case ActionCgroupApply:
		return a.CgroupApply.actionCommon
	case ActionFirmwareOp:
		return a.FirmwareOp.actionCommon
	case ActionPing:
		return a.Ping.actionCommon
	default:
		return actionCommon{}
	}
}

func (a Action) MarshalJSON() ([]byte, error) {
	switch a.Type {
	case ActionExec:
		a.Exec.Type = a.Type
		return json.Marshal(a.Exec)
	case ActionReadFile:
		a.ReadFile.Type = a.Type
		return json.Marshal(a.ReadFile)
	case ActionWriteFile:
		a.WriteFile.Type = a.Type
		return json.Marshal(a.WriteFile)
	case ActionServiceControl:
		a.ServiceControl.Type = a.Type
		return json.Marshal(a.ServiceControl)
	case ActionInstallPackages:
		a.InstallPackages.Type = a.Type
		return json.Marshal(a.InstallPackages)
	case ActionRemovePackages:
		a.RemovePackages.Type = a.Type
		return json.Marshal(a.RemovePackages)
	case ActionUpdateSystem:
		a.UpdateSystem.Type = a.Type
		return json.Marshal(a.UpdateSystem)
	case ActionObserve:
		a.Observe.Type = a.Type
		return json.Marshal(a.Observe)
	case ActionCgroupApply:
		a.CgroupApply.Type = a.Type
		return json.Marshal(a.CgroupApply)
	case ActionFirmwareOp:
		a.FirmwareOp.Type = a.Type
		return json.Marshal(a.FirmwareOp)
	case ActionPing:
		a.Ping.Type = a.Type
		return json.Marshal(a.Ping)
	default:
		return nil, fmt.Errorf("protocol: unknown action type %q", a.Type)
	}
}

type typeProbe struct {
	Type ActionType `json:"type"`
}

func (a *Action) UnmarshalJSON(data []byte) error {
	var probe typeProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("action: %w", err)
	}

	decodeStrict := func(v interface{}) error {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		return dec.Decode(v)
	}

	a.Type = probe.Type
	switch probe.Type {
	case ActionExec:
		v := new(ExecAction)
		if err := decodeStrict(v); err != nil {
			return fmt.Errorf("exec: %w", err)
		}
		a.Exec = v
	case ActionReadFile:
		v := new(ReadFileAction)
		if err := decodeStrict(v); err != nil {
			return fmt.Errorf("read_file: %w", err)
		}
		a.ReadFile = v
	case ActionWriteFile:
		v := new(WriteFileAction)
		if err := decodeStrict(v); err != nil {
			return fmt.Errorf("write_file: %w", err)
		}
		a.WriteFile = v
	case ActionServiceControl:
		v := new(ServiceControlAction)
		if err := decodeStrict(v); err != nil {
			return fmt.Errorf("service_control: %w", err)
		}
		a.ServiceControl = v
	case ActionInstallPackages:
		v := new(InstallPackagesAction)
		if err := decodeStrict(v); err != nil {
			return fmt.Errorf("install_packages: %w", err)
		}
		a.InstallPackages = v
	case ActionRemovePackages:
		v := new(RemovePackagesAction)
		if err := decodeStrict(v); err != nil {
			return fmt.Errorf("remove_packages: %w", err)
		}
		a.RemovePackages = v
	case ActionUpdateSystem:
		v := new(UpdateSystemAction)
		if err := decodeStrict(v); err != nil {
			return fmt.Errorf("update_system: %w", err)
		}
		a.UpdateSystem = v
	case ActionObserve:
		v := new(ObserveAction)
		if err := decodeStrict(v); err != nil {
			return fmt.Errorf("observe: %w", err)
		}
		a.Observe = v
	case ActionCgroupApply:
		v := new(CgroupApplyAction)
		if err := decodeStrict(v); err != nil {
			return fmt.Errorf("cgroup_apply: %w", err)
		}
		a.CgroupApply = v
	case ActionFirmwareOp:
		v := new(FirmwareOpAction)
		if err := decodeStrict(v); err != nil {
			return fmt.Errorf("firmware_op: %w", err)
		}
		a.FirmwareOp = v
	case ActionPing:
		v := new(PingAction)
		if err := decodeStrict(v); err != nil {
			return fmt.Errorf("ping: %w", err)
		}
		a.Ping = v
	default:
		return fmt.Errorf("action: unknown type %q", probe.Type)
	}
	return nil
}
