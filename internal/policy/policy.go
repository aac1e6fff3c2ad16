// Package policy implements the two-tier gate every exec, read_file, and
// write_file action passes through after validation: a fatal deny-list with
// no override, and a confirmation-required predicate that a producer
// satisfies by attaching a token, not by proving identity.
//
// Grounded directly on the original llm-osd policy module: the deny-list
// and confirmation predicates below match its program-name and path rules.
package policy

import (
	"strings"
)

var deniedExec = map[string]bool{
	"/bin/dd":         true,
	"dd":              true,
	"/sbin/mkfs":      true,
	"/sbin/mkfs.ext4": true,
	"mkfs":            true,
	"mkfs.ext4":       true,
	"/sbin/shutdown":  true,
	"shutdown":        true,
	"/sbin/reboot":    true,
	"reboot":          true,
}

var execAllowedWithoutConfirmation = map[string]bool{
	"/bin/echo": true,
	"echo":      true,
}

var execAlwaysRequiresConfirmation = map[string]bool{
	"/bin/rm": true,
	"rm":      true,
}

// IsExecDenied reports whether argv0 names a program on the fatal
// deny-list. A denied exec is never run, even with a valid confirmation.
func IsExecDenied(argv0 string) bool {
	return deniedExec[argv0]
}

// ExecRequiresConfirmation reports whether running argv0 requires a valid
// confirmation token. Programs not on the always-confirm or
// allowed-without-confirmation lists default to requiring confirmation.
func ExecRequiresConfirmation(argv0 string) bool {
	if execAlwaysRequiresConfirmation[argv0] {
		return true
	}
	return !execAllowedWithoutConfirmation[argv0]
}

// PathRequiresConfirmation reports whether a read_file or write_file target
// requires a valid confirmation token: any absolute path outside /tmp/, or
// any path containing a ".." component, whether or not it resolves outside
// /tmp. A relative path without ".." needs no confirmation.
func PathRequiresConfirmation(p string) bool {
	if containsParentDir(p) {
		return true
	}
	if strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "/tmp/") {
		return true
	}
	return false
}

func containsParentDir(p string) bool {
	for _, part := range strings.Split(p, "/") {
		if part == ".." {
			return true
		}
	}
	return false
}

// ConfirmationIsValid reports whether provided, once trimmed, equals
// expected. A missing token is never valid.
func ConfirmationIsValid(provided *string, expected string) bool {
	if provided == nil {
		return false
	}
	return strings.TrimSpace(*provided) == expected
}

// ConfirmationTokenHint is returned to help a producer understand what
// confirmation.token must equal; it is never written to the audit log in
// place of the real token.
func ConfirmationTokenHint(expected string) string {
	return "attach confirmation.token equal to the daemon's configured token: " + expected
}
