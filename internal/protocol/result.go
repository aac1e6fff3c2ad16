package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ErrorInfo is the {code, message} shape carried at both the plan level
// (ActionPlanResult.Error) and the per-action level (each result's Error).
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewError(code, message string) *ErrorInfo {
	return &ErrorInfo{Code: code, Message: message}
}

// Top-level error codes, assigned before any action is dispatched.
const (
	ErrParseFailed      = "parse_failed"
	ErrValidationFailed = "validation_failed"
	ErrInvalidMode      = "invalid_mode"
	ErrRequestTooLarge  = "request_too_large"
)

// Action-level error codes, assigned during dispatch of a single action.
const (
	ErrPolicyDenied         = "policy_denied"
	ErrConfirmationRequired = "confirmation_required"
	ErrExecFailed           = "exec_failed"
	ErrExecTimedOut         = "exec_timed_out"
	ErrReadFailed           = "read_failed"
	ErrWriteFailed          = "write_failed"
	ErrInvalidModeString    = "invalid_mode_string"
)

// Each result variant repeats Type, OK, and Error directly rather than
// embedding a shared struct: every handler package outside protocol builds
// these by field assignment, and an embedded field from an unexported
// struct cannot be set through a composite literal from another package.

type ExecResult struct {
	Type            ActionType `json:"type"`
	OK              bool       `json:"ok"`
	Error           *ErrorInfo `json:"error,omitempty"`
	ExitCode        *int       `json:"exit_code,omitempty"`
	Stdout          string     `json:"stdout"`
	StdoutTruncated bool       `json:"stdout_truncated"`
	Stderr          string     `json:"stderr"`
	StderrTruncated bool       `json:"stderr_truncated"`
}

type ReadFileResult struct {
	Type          ActionType `json:"type"`
	OK            bool       `json:"ok"`
	Error         *ErrorInfo `json:"error,omitempty"`
	ContentBase64 *string    `json:"content_base64,omitempty"`
	Truncated     bool       `json:"truncated"`
}

type WriteFileResult struct {
	Type      ActionType `json:"type"`
	OK        bool       `json:"ok"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Artifacts []string   `json:"artifacts"`
}

// The seven preview variants below share the same shape: ok plus a
// synthesized argv, or an error when policy denies the preview itself
// (e.g. an unsupported package manager). Each keeps its own Go type for
// symmetry with its Action counterpart.

type ServiceControlResult struct {
	Type  ActionType `json:"type"`
	OK    bool       `json:"ok"`
	Error *ErrorInfo `json:"error,omitempty"`
	Argv  []string   `json:"argv,omitempty"`
}

type InstallPackagesResult struct {
	Type  ActionType `json:"type"`
	OK    bool       `json:"ok"`
	Error *ErrorInfo `json:"error,omitempty"`
	Argv  []string   `json:"argv,omitempty"`
}

type RemovePackagesResult struct {
	Type  ActionType `json:"type"`
	OK    bool       `json:"ok"`
	Error *ErrorInfo `json:"error,omitempty"`
	Argv  []string   `json:"argv,omitempty"`
}

type UpdateSystemResult struct {
	Type  ActionType `json:"type"`
	OK    bool       `json:"ok"`
	Error *ErrorInfo `json:"error,omitempty"`
	Argv  []string   `json:"argv,omitempty"`
}

type ObserveResult struct {
	Type  ActionType `json:"type"`
	OK    bool       `json:"ok"`
	Error *ErrorInfo `json:"error,omitempty"`
	Argv  []string   `json:"argv,omitempty"`
}

type CgroupApplyResult struct {
	Type  ActionType `json:"type"`
	OK    bool       `json:"ok"`
	Error *ErrorInfo `json:"error,omitempty"`
	Argv  []string   `json:"argv,omitempty"`
}

type FirmwareOpResult struct {
	Type  ActionType `json:"type"`
	OK    bool       `json:"ok"`
	Error *ErrorInfo `json:"error,omitempty"`
	Argv  []string   `json:"argv,omitempty"`
}

type PingResult struct {
	Type  ActionType `json:"type"`
	OK    bool       `json:"ok"`
	Error *ErrorInfo `json:"error,omitempty"`
}

// ActionResult is the closed sum type over the eleven result variants,
// mirroring Action.
type ActionResult struct {
	Type ActionType

	Exec            *ExecResult
	ReadFile        *ReadFileResult
	WriteFile       *WriteFileResult
	ServiceControl  *ServiceControlResult
	InstallPackages *InstallPackagesResult
	RemovePackages  *RemovePackagesResult
	UpdateSystem    *UpdateSystemResult
	Observe         *ObserveResult
	CgroupApply     *CgroupApplyResult
	FirmwareOp      *FirmwareOpResult
	Ping            *PingResult
}

func (r ActionResult) MarshalJSON() ([]byte, error) {
	switch r.Type {
	case ActionExec:
		r.Exec.Type = r.Type
		return json.Marshal(r.Exec)
	case ActionReadFile:
		r.ReadFile.Type = r.Type
		return json.Marshal(r.ReadFile)
	case ActionWriteFile:
		r.WriteFile.Type = r.Type
		return json.Marshal(r.WriteFile)
	case ActionServiceControl:
		r.ServiceControl.Type = r.Type
		return json.Marshal(r.ServiceControl)
	case ActionInstallPackages:
		r.InstallPackages.Type = r.Type
		return json.Marshal(r.InstallPackages)
	case ActionRemovePackages:
		r.RemovePackages.Type = r.Type
		return json.Marshal(r.RemovePackages)
	case ActionUpdateSystem:
		r.UpdateSystem.Type = r.Type
		return json.Marshal(r.UpdateSystem)
	case ActionObserve:
		r.Observe.Type = r.Type
		return json.Marshal(r.Observe)
	case ActionCgroupApply:
		r.CgroupApply.Type = r.Type
		return json.Marshal(r.CgroupApply)
	case ActionFirmwareOp:
		r.FirmwareOp.Type = r.Type
		return json.Marshal(r.FirmwareOp)
	case ActionPing:
		r.Ping.Type = r.Type
		return json.Marshal(r.Ping)
	default:
		return nil, fmt.Errorf("protocol: unknown result type %q", r.Type)
	}
}

func (r *ActionResult) UnmarshalJSON(data []byte) error {
	var probe typeProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("result: %w", err)
	}
	decode := func(v interface{}) error {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		return dec.Decode(v)
	}
	r.Type = probe.Type
	switch probe.Type {
	case ActionExec:
		v := new(ExecResult)
		if err := decode(v); err != nil {
			return err
		}
		r.Exec = v
	case ActionReadFile:
		v := new(ReadFileResult)
		if err := decode(v); err != nil {
			return err
		}
		r.ReadFile = v
	case ActionWriteFile:
		v := new(WriteFileResult)
		if err := decode(v); err != nil {
			return err
		}
		r.WriteFile = v
	case ActionServiceControl:
		v := new(ServiceControlResult)
		if err := decode(v); err != nil {
			return err
		}
		r.ServiceControl = v
	case ActionInstallPackages:
		v := new(InstallPackagesResult)
		if err := decode(v); err != nil {
			return err
		}
		r.InstallPackages = v
	case ActionRemovePackages:
		v := new(RemovePackagesResult)
		if err := decode(v); err != nil {
			return err
		}
		r.RemovePackages = v
	case ActionUpdateSystem:
		v := new(UpdateSystemResult)
		if err := decode(v); err != nil {
			return err
		}
		r.UpdateSystem = v
	case ActionObserve:
		v := new(ObserveResult)
		if err := decode(v); err != nil {
			return err
		}
		r.Observe = v
	case ActionCgroupApply:
		v := new(CgroupApplyResult)
		if err := decode(v); err != nil {
			return err
		}
		r.CgroupApply = v
	case ActionFirmwareOp:
		v := new(FirmwareOpResult)
		if err := decode(v); err != nil {
			return err
		}
		r.FirmwareOp = v
	case ActionPing:
		v := new(PingResult)
		if err := decode(v); err != nil {
			return err
		}
		r.Ping = v
	default:
		return fmt.Errorf("result: unknown type %q", probe.Type)
	}
	return nil
}

// ActionPlanResult is the top-level response the daemon returns for every
// request, including one rejected before parsing (oversize or read timeout).
type ActionPlanResult struct {
	RequestID string         `json:"request_id"`
	Executed  bool           `json:"executed"`
	Results   []ActionResult `json:"results"`
	Error     *ErrorInfo     `json:"error,omitempty"`
}

// NewFailure builds the top-level-error shape used for parse/validation/
// oversize rejections, before any action is dispatched.
func NewFailure(requestID, code, message string) *ActionPlanResult {
	return &ActionPlanResult{
		RequestID: requestID,
		Executed:  false,
		Results:   []ActionResult{},
		Error:     NewError(code, message),
	}
}
