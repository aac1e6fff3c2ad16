// Package server implements the Unix domain socket connection server: it
// accepts one connection per request, frames the request with a growable
// bounded read, parses and validates it, dispatches it, and writes back
// the ActionPlanResult before appending an audit record.
//
// The accept-loop shape is adapted from the teacher's
// internal/operator/server.go: a listener accepting connections in a loop,
// each handled in its own goroutine, shut down on context cancellation.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/llm-osd/llm-osd/internal/audit"
	"github.com/llm-osd/llm-osd/internal/dispatch"
	"github.com/llm-osd/llm-osd/internal/observability"
	"github.com/llm-osd/llm-osd/internal/peercred"
	"github.com/llm-osd/llm-osd/internal/protocol"
	"github.com/llm-osd/llm-osd/internal/validator"
)

// Config is the subset of the daemon's configuration the connection server
// needs directly.
type Config struct {
	SocketPath        string
	MaxRequestBytes   int
	ReadIdleTimeout   time.Duration
	ConfirmationToken string
}

// Server owns the listening socket and the shared, process-wide audit
// writer every connection appends to.
type Server struct {
	cfg     Config
	metrics *observability.Metrics
	auditor *audit.Writer
	logger  *zap.Logger

	listener *net.UnixListener
}

func New(cfg Config, metrics *observability.Metrics, auditor *audit.Writer, logger *zap.Logger) *Server {
	return &Server{cfg: cfg, metrics: metrics, auditor: auditor, logger: logger}
}

// ListenAndServe binds the Unix socket and serves connections until ctx is
// canceled. A stale socket file from a previous, uncleanly terminated run
// is removed first.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := removeStaleSocket(s.cfg.SocketPath); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	addr, err := net.ResolveUnixAddr("unix", s.cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("server: resolve socket path: %w", err)
	}
	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	s.listener = ln

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.AcceptUnix()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn("accept failed", zap.Error(err))
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

func removeStaleSocket(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return os.Remove(path)
}

type terminalCondition int

const (
	terminalParseable terminalCondition = iota
	terminalOversize
	terminalIdleEmpty
)

func (s *Server) handleConn(ctx context.Context, conn *net.UnixConn) {
	defer conn.Close()

	s.metrics.ConnectionsInFlight.Inc()
	defer s.metrics.ConnectionsInFlight.Dec()
	s.metrics.RequestsTotal.Inc()

	cred, err := peercred.FromConn(conn)
	if err != nil {
		s.logger.Debug("peer credential capture failed", zap.Error(err))
	}

	data, terminal := readRequest(conn, s.cfg.MaxRequestBytes, s.cfg.ReadIdleTimeout)

	var plan *protocol.ActionPlan
	var result *protocol.ActionPlanResult

	switch terminal {
	case terminalOversize:
		result = protocol.NewFailure("unknown", protocol.ErrRequestTooLarge, "request exceeds maximum size")
		s.metrics.RequestsByErrorTotal.WithLabelValues(protocol.ErrRequestTooLarge).Inc()
	case terminalIdleEmpty:
		result = protocol.NewFailure("unknown", protocol.ErrParseFailed, "read timed out")
		s.metrics.RequestsByErrorTotal.WithLabelValues(protocol.ErrParseFailed).Inc()
	default:
		parsed, err := protocol.Parse(data)
		if err != nil {
			result = protocol.NewFailure("unknown", protocol.ErrParseFailed, err.Error())
			s.metrics.RequestsByErrorTotal.WithLabelValues(protocol.ErrParseFailed).Inc()
			break
		}
		if verr := validator.Validate(parsed); verr != nil {
			result = protocol.NewFailure(parsed.RequestID, protocol.ErrValidationFailed, verr.Message)
			s.metrics.RequestsByErrorTotal.WithLabelValues(protocol.ErrValidationFailed).Inc()
			break
		}
		plan = parsed
		start := time.Now()
		result = dispatch.Run(ctx, dispatch.Config{ConfirmationToken: s.cfg.ConfirmationToken}, plan)
		s.recordActionMetrics(result, time.Since(start))
	}

	writeResponse(conn, result)

	if plan != nil && s.auditor != nil {
		var peer *audit.Peer
		if cred != nil {
			peer = &audit.Peer{PID: cred.PID, UID: cred.UID, GID: cred.GID}
		}
		if err := s.auditor.Append(time.Now().UnixMilli(), peer, plan.SessionID, plan, result); err != nil {
			s.metrics.AuditWriteFailuresTotal.Inc()
			s.logger.Error("audit append failed", zap.Error(err), zap.String("request_id", plan.RequestID))
		}
	}
}

func (s *Server) recordActionMetrics(result *protocol.ActionPlanResult, elapsed time.Duration) {
	for _, r := range result.Results {
		s.metrics.ActionsTotal.WithLabelValues(string(r.Type)).Inc()
		s.metrics.ActionDurationSeconds.WithLabelValues(string(r.Type)).Observe(elapsed.Seconds())
		if errInfo := actionError(r); errInfo != nil {
			switch errInfo.Code {
			case protocol.ErrPolicyDenied, protocol.ErrConfirmationRequired:
				s.metrics.ActionsDeniedTotal.WithLabelValues(errInfo.Code).Inc()
			}
		}
	}
}

func actionError(r protocol.ActionResult) *protocol.ErrorInfo {
	switch r.Type {
	case protocol.ActionExec:
		return r.Exec.Error
	case protocol.ActionReadFile:
		return r.ReadFile.Error
	case protocol.ActionWriteFile:
		return r.WriteFile.Error
	case protocol.ActionServiceControl:
		return r.ServiceControl.Error
	case protocol.ActionInstallPackages:
		return r.InstallPackages.Error
	case protocol.ActionRemovePackages:
		return r.RemovePackages.Error
	case protocol.ActionUpdateSystem:
		return r.UpdateSystem.Error
	case protocol.ActionObserve:
		return r.Observe.Error
	case protocol.ActionCgroupApply:
		return r.CgroupApply.Error
	case protocol.ActionFirmwareOp:
		return r.FirmwareOp.Error
	case protocol.ActionPing:
		return r.Ping.Error
	default:
		return nil
	}
}

func writeResponse(conn *net.UnixConn, result *protocol.ActionPlanResult) {
	body, err := json.Marshal(result)
	if err != nil {
		body, _ = json.Marshal(protocol.NewFailure("unknown", protocol.ErrParseFailed, "internal encoding error"))
	}
	_, _ = conn.Write(body)
	_ = conn.CloseWrite()
}

// readRequest reads conn in growable 4KiB chunks until a terminal
// condition is reached, with priority oversize > idle-empty >
// idle-nonempty-attempt-parse > EOF-attempt-parse. Once the accumulated
// size exceeds maxBytes, further bytes are read and discarded rather than
// appended, so a producer that keeps writing past the ceiling cannot grow
// the daemon's memory usage.
func readRequest(conn net.Conn, maxBytes int, idleTimeout time.Duration) ([]byte, terminalCondition) {
	var buf bytes.Buffer
	chunk := make([]byte, 4096)
	oversize := false

	for {
		_ = conn.SetReadDeadline(time.Now().Add(idleTimeout))
		n, err := conn.Read(chunk)
		if n > 0 && !oversize {
			buf.Write(chunk[:n])
			if buf.Len() > maxBytes {
				oversize = true
			}
		}
		if err == nil {
			continue
		}

		if errors.Is(err, os.ErrDeadlineExceeded) {
			if oversize {
				return nil, terminalOversize
			}
			if buf.Len() == 0 {
				return nil, terminalIdleEmpty
			}
			return buf.Bytes(), terminalParseable
		}
		if errors.Is(err, io.EOF) {
			if oversize {
				return nil, terminalOversize
			}
			return buf.Bytes(), terminalParseable
		}
		// Any other read error: treat like EOF with what we have so far.
		if oversize {
			return nil, terminalOversize
		}
		return buf.Bytes(), terminalParseable
	}
}
