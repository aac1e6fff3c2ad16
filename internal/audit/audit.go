// Package audit appends one redacted JSON-Lines record per dispatched
// ActionPlan to a durable append-only file, the way the original llm-osd
// audit module does, plus the peer and session fields the root
// specification adds on top of that reference.
package audit

import (
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/llm-osd/llm-osd/internal/protocol"
)

// Peer is the credential of the socket client, captured once at accept
// time by internal/peercred.
type Peer struct {
	PID uint32 `json:"pid"`
	UID uint32 `json:"uid"`
	GID uint32 `json:"gid"`
}

// Indexer receives the byte range of each appended line so
// internal/auditindex can answer lookups without scanning the file.
type Indexer interface {
	Append(requestID, sessionID string, offset int64, length int) error
}

// Writer serializes every Append call onto a single append-only file
// handle, matching the root specification's single-writer-task
// concurrency model for the audit log.
type Writer struct {
	mu     sync.Mutex
	f      *os.File
	offset int64
	index  Indexer
}

// Open opens or creates path for appending and seeks to its current end so
// offsets recorded in the index line up with what's already on disk.
func Open(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	off, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Writer{f: f, offset: off}, nil
}

// SetIndex attaches the secondary index the writer notifies after each
// durable append. It is optional: a nil index means lookups fall back to a
// full scan of the JSONL file.
func (w *Writer) SetIndex(idx Indexer) {
	w.index = idx
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}

// Append writes one redacted record and, on success, notifies the
// secondary index with the exact byte range just written. Index failures
// are never propagated to the caller: the JSONL file is the durable source
// of truth, the index is a convenience.
func (w *Writer) Append(tsUnixMS int64, peer *Peer, sessionID *string, plan *protocol.ActionPlan, result *protocol.ActionPlanResult) error {
	planJSON, err := json.Marshal(plan)
	if err != nil {
		return err
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return err
	}

	record := struct {
		TSUnixMS  int64           `json:"ts_unix_ms"`
		Peer      *Peer           `json:"peer,omitempty"`
		SessionID *string         `json:"session_id,omitempty"`
		Plan      json.RawMessage `json:"plan"`
		Result    json.RawMessage `json:"result"`
	}{
		TSUnixMS:  tsUnixMS,
		Peer:      peer,
		SessionID: sessionID,
		Plan:      redactPlanJSON(planJSON),
		Result:    redactResultJSON(resultJSON),
	}

	line, err := json.Marshal(record)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.f.Write(line)
	if err != nil {
		return err
	}
	if err := w.f.Sync(); err != nil {
		return err
	}

	offset := w.offset
	w.offset += int64(n)

	if w.index != nil {
		sid := ""
		if sessionID != nil {
			sid = *sessionID
		}
		_ = w.index.Append(result.RequestID, sid, offset, n)
	}
	return nil
}
