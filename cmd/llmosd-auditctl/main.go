// Package main — cmd/llmosd-auditctl/main.go
//
// llmosd-auditctl looks up audit records by request_id or session_id
// using the BoltDB secondary index, then reads the matching line(s)
// straight out of the JSONL file at the recorded offset. It never
// modifies either file. When the index can't be opened, a lookup
// fails, or it simply has no entry for the requested id, it falls back
// to a full scan of the JSONL file so a stale or missing index never
// makes a record unreachable.
//
// Usage:
//
//	llmosd-auditctl by-request <audit_path> <index_path> <request_id>
//	llmosd-auditctl by-session <audit_path> <index_path> <session_id>
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/llm-osd/llm-osd/internal/auditindex"
)

const maxScanLineBytes = 16 << 20 // 16MiB, generous for a single audit record

func main() {
	if len(os.Args) < 5 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "by-request":
		runByRequest(os.Args[2], os.Args[3], os.Args[4])
	case "by-session":
		runBySession(os.Args[2], os.Args[3], os.Args[4])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: llmosd-auditctl <by-request|by-session> <audit_path> <index_path> <id>")
}

func runByRequest(auditPath, indexPath, requestID string) {
	lines, err := lookupByRequestViaIndex(auditPath, indexPath, requestID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "index lookup failed (%v), falling back to full scan\n", err)
		lines = nil
	}
	if len(lines) == 0 {
		lines = scanByRequestID(auditPath, requestID)
	}
	if len(lines) == 0 {
		fmt.Fprintf(os.Stderr, "no audit record for request_id %q\n", requestID)
		os.Exit(1)
	}
	printLines(lines)
}

func runBySession(auditPath, indexPath, sessionID string) {
	lines, err := lookupBySessionViaIndex(auditPath, indexPath, sessionID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "index lookup failed (%v), falling back to full scan\n", err)
		lines = nil
	}
	if len(lines) == 0 {
		lines = scanBySessionID(auditPath, sessionID)
	}
	if len(lines) == 0 {
		fmt.Fprintf(os.Stderr, "no audit records for session_id %q\n", sessionID)
		os.Exit(1)
	}
	printLines(lines)
}

func lookupByRequestViaIndex(auditPath, indexPath, requestID string) ([][]byte, error) {
	idx, err := auditindex.Open(indexPath)
	if err != nil {
		return nil, err
	}
	defer idx.Close()

	loc, ok, err := idx.LookupByRequestID(requestID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	line, err := readAt(auditPath, loc.Offset, loc.Length)
	if err != nil {
		return nil, err
	}
	return [][]byte{line}, nil
}

func lookupBySessionViaIndex(auditPath, indexPath, sessionID string) ([][]byte, error) {
	idx, err := auditindex.Open(indexPath)
	if err != nil {
		return nil, err
	}
	defer idx.Close()

	requestIDs, err := idx.LookupBySessionID(sessionID)
	if err != nil {
		return nil, err
	}

	var lines [][]byte
	for _, requestID := range requestIDs {
		loc, ok, err := idx.LookupByRequestID(requestID)
		if err != nil || !ok {
			continue
		}
		line, err := readAt(auditPath, loc.Offset, loc.Length)
		if err != nil {
			continue
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// auditRecord is the subset of fields cmd/llmosd-auditctl needs from each
// JSONL line to match a scan against a request_id or session_id; it
// mirrors the shape internal/audit.Writer.Append encodes.
type auditRecord struct {
	SessionID *string `json:"session_id"`
	Plan      struct {
		RequestID string `json:"request_id"`
	} `json:"plan"`
}

func scanByRequestID(auditPath, requestID string) [][]byte {
	var matches [][]byte
	scanLines(auditPath, func(line []byte, rec auditRecord) bool {
		if rec.Plan.RequestID == requestID {
			matches = append(matches, append([]byte(nil), line...))
			return false
		}
		return true
	})
	return matches
}

func scanBySessionID(auditPath, sessionID string) [][]byte {
	var matches [][]byte
	scanLines(auditPath, func(line []byte, rec auditRecord) bool {
		if rec.SessionID != nil && *rec.SessionID == sessionID {
			matches = append(matches, append([]byte(nil), line...))
		}
		return true
	})
	return matches
}

// scanLines reads auditPath line by line, decoding each as an auditRecord
// and calling visit(line, rec); visit returns false to stop scanning early.
func scanLines(auditPath string, visit func(line []byte, rec auditRecord) bool) {
	f, err := os.Open(auditPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scan audit log: %v\n", err)
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxScanLineBytes)
	for scanner.Scan() {
		line := scanner.Bytes()
		var rec auditRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		if !visit(line, rec) {
			return
		}
	}
}

func printLines(lines [][]byte) {
	for _, line := range lines {
		os.Stdout.Write(line)
		fmt.Println()
	}
}

func readAt(path string, offset int64, length int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, length)
	if _, err := f.ReadAt(buf, offset); err != nil {
		return nil, err
	}
	return buf, nil
}
