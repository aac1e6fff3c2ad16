package actions

import (
	"encoding/base64"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/llm-osd/llm-osd/internal/protocol"
)

// ReadFile reads up to max_bytes+1 bytes from path and reports whether the
// file was truncated. Unlike the original reference implementation, this
// never allocates proportional to the file's total size: it reads in a
// single bounded call sized to the action's own limit, not the file's
// length, so a producer requesting max_bytes=64 against a multi-gigabyte
// file still only ever touches 65 bytes of it.
func ReadFile(r *protocol.ReadFileAction) *protocol.ReadFileResult {
	f, err := os.Open(r.Path)
	if err != nil {
		return readFailure(err)
	}
	defer f.Close()

	buf := make([]byte, r.MaxBytes+1)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return readFailure(err)
	}

	truncated := n > r.MaxBytes
	if truncated {
		n = r.MaxBytes
	}
	encoded := base64.StdEncoding.EncodeToString(buf[:n])
	return &protocol.ReadFileResult{
		Type:          protocol.ActionReadFile,
		OK:            true,
		ContentBase64: &encoded,
		Truncated:     truncated,
	}
}

func readFailure(err error) *protocol.ReadFileResult {
	return &protocol.ReadFileResult{
		Type:  protocol.ActionReadFile,
		OK:    false,
		Error: protocol.NewError(protocol.ErrReadFailed, err.Error()),
	}
}

// WriteFile writes content to path with the permissions parsed from mode.
// The validator has already rejected a malformed mode string by the time
// this runs, using its own check of the 3-4 octal digit grammar; ParseMode
// only converts the digits and reports invalid_mode_string if that fails.
func WriteFile(w *protocol.WriteFileAction) *protocol.WriteFileResult {
	perm, err := ParseMode(w.Mode)
	if err != nil {
		return &protocol.WriteFileResult{
			Type:  protocol.ActionWriteFile,
			OK:    false,
			Error: protocol.NewError(protocol.ErrInvalidModeString, err.Error()),
		}
	}
	if err := os.WriteFile(w.Path, []byte(w.Content), perm); err != nil {
		return &protocol.WriteFileResult{
			Type:  protocol.ActionWriteFile,
			OK:    false,
			Error: protocol.NewError(protocol.ErrWriteFailed, err.Error()),
		}
	}
	// os.WriteFile only applies perm when creating a new file; if w.Path
	// already existed, its old mode survives the write untouched. Chmod
	// unconditionally so the requested mode always wins.
	if err := os.Chmod(w.Path, perm); err != nil {
		return &protocol.WriteFileResult{
			Type:  protocol.ActionWriteFile,
			OK:    false,
			Error: protocol.NewError(protocol.ErrWriteFailed, err.Error()),
		}
	}
	return &protocol.WriteFileResult{
		Type:      protocol.ActionWriteFile,
		OK:        true,
		Artifacts: []string{w.Path},
	}
}

// ParseMode parses a write_file.mode string ("644" or "0o644") into a
// os.FileMode permission value.
func ParseMode(mode string) (os.FileMode, error) {
	digits := strings.TrimPrefix(mode, "0o")
	v, err := strconv.ParseUint(digits, 8, 32)
	if err != nil {
		return 0, errors.New("write_file.mode is invalid")
	}
	return os.FileMode(v), nil
}
