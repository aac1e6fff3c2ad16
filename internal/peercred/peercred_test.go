package peercred

import (
	"net"
	"os"
	"path/filepath"
	"testing"
)

func TestFromConnRejectsNonUnixConn(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	if _, err := FromConn(server); err == nil {
		t.Fatalf("expected error for non-unix connection")
	}
}

func TestFromConnReturnsOwnCredentialOverLoopbackSocket(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "test.sock")

	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		accepted <- conn
	}()

	client, err := net.Dial("unix", sockPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	server := <-accepted
	defer server.Close()

	cred, err := FromConn(server)
	if err != nil {
		t.Fatalf("FromConn: %v", err)
	}
	if cred.UID != uint32(os.Getuid()) {
		t.Fatalf("expected uid %d, got %d", os.Getuid(), cred.UID)
	}
	if cred.PID == 0 {
		t.Fatalf("expected non-zero pid")
	}
}
