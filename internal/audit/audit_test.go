package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/llm-osd/llm-osd/internal/protocol"
)

type fakeIndex struct {
	calls []struct {
		requestID, sessionID string
		offset               int64
		length               int
	}
}

func (f *fakeIndex) Append(requestID, sessionID string, offset int64, length int) error {
	f.calls = append(f.calls, struct {
		requestID, sessionID string
		offset               int64
		length               int
	}{requestID, sessionID, offset, length})
	return nil
}

func TestAppendRedactsSensitiveFields(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(filepath.Join(dir, "audit.jsonl"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer w.Close()

	idx := &fakeIndex{}
	w.SetIndex(idx)

	token := "i-understand"
	content := "super secret file body"
	plan := &protocol.ActionPlan{
		RequestID:    "req-1",
		Version:      "0.1",
		Mode:         protocol.ModeExecute,
		Confirmation: &protocol.Confirmation{Token: token},
		Actions: []protocol.Action{
			{Type: protocol.ActionWriteFile, WriteFile: &protocol.WriteFileAction{Path: "/tmp/a", Content: content, Mode: "0o644"}},
		},
	}
	result := &protocol.ActionPlanResult{
		RequestID: "req-1",
		Executed:  true,
		Results: []protocol.ActionResult{
			{Type: protocol.ActionWriteFile, WriteFile: &protocol.WriteFileResult{Type: protocol.ActionWriteFile, OK: true, Artifacts: []string{"/tmp/a"}}},
		},
	}

	session := "sess-1"
	if err := w.Append(1000, &Peer{PID: 1, UID: 2, GID: 3}, &session, plan, result); err != nil {
		t.Fatalf("append: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "audit.jsonl"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	line := strings.TrimSpace(string(raw))
	if strings.Contains(line, token) {
		t.Fatalf("confirmation token leaked into audit log: %s", line)
	}
	if strings.Contains(line, content) {
		t.Fatalf("write_file content leaked into audit log: %s", line)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	planView := decoded["plan"].(map[string]interface{})
	if planView["confirmation"].(map[string]interface{})["token"] != redactedPlaceholder {
		t.Fatalf("expected redacted token in plan view")
	}

	if len(idx.calls) != 1 || idx.calls[0].requestID != "req-1" || idx.calls[0].sessionID != "sess-1" {
		t.Fatalf("expected one index call for req-1/sess-1, got %+v", idx.calls)
	}
}

func TestAppendOffsetsAreContiguous(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.jsonl")
	w, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer w.Close()
	idx := &fakeIndex{}
	w.SetIndex(idx)

	for i := 0; i < 3; i++ {
		plan := &protocol.ActionPlan{RequestID: "r", Version: "0.1", Mode: protocol.ModePlanOnly}
		result := &protocol.ActionPlanResult{RequestID: "r", Results: []protocol.ActionResult{}}
		if err := w.Append(int64(i), nil, nil, plan, result); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open for read: %v", err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	if len(idx.calls) != 3 {
		t.Fatalf("expected 3 index calls, got %d", len(idx.calls))
	}
	var next int64
	for _, call := range idx.calls {
		if call.offset != next {
			t.Fatalf("expected record at offset %d, got %d", next, call.offset)
		}
		next = call.offset + int64(call.length)
		if _, err := f.Seek(call.offset, 0); err != nil {
			t.Fatalf("seek: %v", err)
		}
		buf := make([]byte, call.length)
		if _, err := f.Read(buf); err != nil {
			t.Fatalf("read at offset: %v", err)
		}
		var decoded map[string]interface{}
		if err := json.Unmarshal(buf[:len(buf)-1], &decoded); err != nil {
			t.Fatalf("decode record at recorded offset: %v", err)
		}
	}
	_ = scanner
}
