package actions

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/llm-osd/llm-osd/internal/protocol"
)

func TestRunExecEchoRoundtrip(t *testing.T) {
	res := RunExec(context.Background(), &protocol.ExecAction{
		Argv:       []string{"/bin/echo", "hello"},
		TimeoutSec: 5,
	})
	if !res.OK {
		t.Fatalf("expected success, got %+v", res)
	}
	if strings.TrimSpace(res.Stdout) != "hello" {
		t.Fatalf("unexpected stdout: %q", res.Stdout)
	}
}

func TestRunExecTimesOut(t *testing.T) {
	res := RunExec(context.Background(), &protocol.ExecAction{
		Argv:       []string{"/bin/sleep", "5"},
		TimeoutSec: 1,
	})
	if res.OK || res.Error == nil || res.Error.Code != protocol.ErrExecTimedOut {
		t.Fatalf("expected exec_timed_out, got %+v", res)
	}
}

func TestRunExecSpawnFailure(t *testing.T) {
	res := RunExec(context.Background(), &protocol.ExecAction{
		Argv:       []string{"/no/such/binary"},
		TimeoutSec: 1,
	})
	if res.OK || res.Error == nil || res.Error.Code != protocol.ErrExecFailed {
		t.Fatalf("expected exec_failed, got %+v", res)
	}
}

func TestReadFileTruncates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.txt")
	if err := os.WriteFile(path, []byte(strings.Repeat("a", 100)), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	res := ReadFile(&protocol.ReadFileAction{Path: path, MaxBytes: 10})
	if !res.OK || !res.Truncated {
		t.Fatalf("expected truncated success, got %+v", res)
	}
}

func TestReadFileMissing(t *testing.T) {
	res := ReadFile(&protocol.ReadFileAction{Path: "/no/such/file", MaxBytes: 10})
	if res.OK || res.Error == nil || res.Error.Code != protocol.ErrReadFailed {
		t.Fatalf("expected read_failed, got %+v", res)
	}
}

func TestWriteFileRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	res := WriteFile(&protocol.WriteFileAction{Path: path, Content: "hi", Mode: "0o644"})
	if !res.OK {
		t.Fatalf("expected success, got %+v", res)
	}
	got, err := os.ReadFile(path)
	if err != nil || string(got) != "hi" {
		t.Fatalf("unexpected file contents: %q err=%v", got, err)
	}
}

func TestWriteFileChmodsExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	if err := os.WriteFile(path, []byte("old"), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}

	res := WriteFile(&protocol.WriteFileAction{Path: path, Content: "new", Mode: "0o644"})
	if !res.OK {
		t.Fatalf("expected success, got %+v", res)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o644 {
		t.Fatalf("expected mode 0644 on pre-existing file, got %o", info.Mode().Perm())
	}
}

func TestParseModeAcceptsWithAndWithoutPrefix(t *testing.T) {
	for _, m := range []string{"644", "0o644", "0755"} {
		if _, err := ParseMode(m); err != nil {
			t.Errorf("ParseMode(%q) unexpected error: %v", m, err)
		}
	}
}

func TestParseModeRejectsGarbage(t *testing.T) {
	if _, err := ParseMode("abc"); err == nil {
		t.Fatalf("expected error for invalid mode")
	}
}

func TestPreviewUpdateSystemDeniesNonApt(t *testing.T) {
	res := PreviewUpdateSystem(&protocol.UpdateSystemAction{Manager: "dnf"})
	if res.OK || res.Error == nil || res.Error.Code != protocol.ErrPolicyDenied {
		t.Fatalf("expected policy_denied, got %+v", res)
	}
}

func TestPreviewInstallPackagesZypperArgv(t *testing.T) {
	res := PreviewInstallPackages(&protocol.InstallPackagesAction{Manager: "zypper", Packages: []string{"vim"}})
	if !res.OK {
		t.Fatalf("expected success, got %+v", res)
	}
	want := []string{"zypper", "install", "-y", "vim"}
	if strings.Join(res.Argv, " ") != strings.Join(want, " ") {
		t.Fatalf("unexpected argv: got %v want %v", res.Argv, want)
	}
}

func TestPreviewRemovePackagesBrewArgv(t *testing.T) {
	res := PreviewRemovePackages(&protocol.RemovePackagesAction{Manager: "brew", Packages: []string{"vim"}})
	if !res.OK {
		t.Fatalf("expected success, got %+v", res)
	}
	want := []string{"brew", "uninstall", "vim"}
	if strings.Join(res.Argv, " ") != strings.Join(want, " ") {
		t.Fatalf("unexpected argv: got %v want %v", res.Argv, want)
	}
}

func TestPreviewCgroupApplyByPID(t *testing.T) {
	pid := uint32(42)
	weight := 50
	res := PreviewCgroupApply(&protocol.CgroupApplyAction{PID: &pid, CPUWeight: &weight})
	if !res.OK || len(res.Argv) == 0 {
		t.Fatalf("expected argv, got %+v", res)
	}
	if res.Argv[len(res.Argv)-1] != "--pid=42" {
		t.Fatalf("expected trailing --pid=42, got %v", res.Argv)
	}
}
