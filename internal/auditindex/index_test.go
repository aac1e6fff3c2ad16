package auditindex

import (
	"path/filepath"
	"testing"
)

func TestAppendAndLookupByRequestID(t *testing.T) {
	idx, err := Open(filepath.Join(t.TempDir(), "index.bolt"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer idx.Close()

	if err := idx.Append("req-1", "sess-1", 42, 100); err != nil {
		t.Fatalf("append: %v", err)
	}

	loc, ok, err := idx.LookupByRequestID("req-1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !ok || loc.Offset != 42 || loc.Length != 100 {
		t.Fatalf("unexpected location: %+v ok=%v", loc, ok)
	}

	if _, ok, _ := idx.LookupByRequestID("missing"); ok {
		t.Fatalf("expected no entry for unknown request id")
	}
}

func TestLookupBySessionIDReturnsAllRequests(t *testing.T) {
	idx, err := Open(filepath.Join(t.TempDir(), "index.bolt"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer idx.Close()

	if err := idx.Append("req-1", "sess-1", 0, 10); err != nil {
		t.Fatalf("append 1: %v", err)
	}
	if err := idx.Append("req-2", "sess-1", 10, 20); err != nil {
		t.Fatalf("append 2: %v", err)
	}
	if err := idx.Append("req-3", "sess-2", 30, 10); err != nil {
		t.Fatalf("append 3: %v", err)
	}

	ids, err := idx.LookupBySessionID("sess-1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 requests for sess-1, got %v", ids)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.bolt")
	idx1, err := Open(path)
	if err != nil {
		t.Fatalf("open 1: %v", err)
	}
	if err := idx1.Append("req-1", "", 0, 5); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := idx1.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	idx2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx2.Close()

	loc, ok, err := idx2.LookupByRequestID("req-1")
	if err != nil || !ok || loc.Offset != 0 {
		t.Fatalf("expected entry to survive reopen, got loc=%+v ok=%v err=%v", loc, ok, err)
	}
}
