// Package peercred captures SO_PEERCRED from a Unix domain socket
// connection, the PID/UID/GID of whatever process is on the other end.
//
// Grounded on the ConnContext peer-credential pattern used for privileged
// Unix-socket helpers in this corpus, adapted here for a raw net.Conn
// rather than an HTTP server's connection-context callback, since the
// daemon speaks a bare framed protocol over the socket.
package peercred

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// Cred is the credential of the peer at the far end of a Unix socket.
type Cred struct {
	PID uint32
	UID uint32
	GID uint32
}

// FromConn extracts the peer credential of conn. It returns an error for
// any connection that is not a *net.UnixConn, or if the SO_PEERCRED
// getsockopt call itself fails.
func FromConn(conn net.Conn) (*Cred, error) {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return nil, fmt.Errorf("peercred: connection is not a unix socket (%T)", conn)
	}

	raw, err := unixConn.SyscallConn()
	if err != nil {
		return nil, fmt.Errorf("peercred: syscall conn: %w", err)
	}

	var ucred *unix.Ucred
	var sockoptErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		ucred, sockoptErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if ctrlErr != nil {
		return nil, fmt.Errorf("peercred: control: %w", ctrlErr)
	}
	if sockoptErr != nil {
		return nil, fmt.Errorf("peercred: getsockopt SO_PEERCRED: %w", sockoptErr)
	}

	return &Cred{
		PID: uint32(ucred.Pid),
		UID: ucred.Uid,
		GID: ucred.Gid,
	}, nil
}
