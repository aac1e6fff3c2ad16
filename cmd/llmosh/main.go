// Package main — cmd/llmosh/main.go
//
// llmsh is the companion CLI: it reads an ActionPlan document from stdin,
// a file, or a literal --json argument, validates it locally, and for
// `send` forwards it to a running llm-osd over its Unix domain socket.
//
// Subcommands:
//
//	llmosh validate [--file PATH | --json DOC]
//	llmosh send     [--file PATH | --json DOC] --socket-path PATH
//	llmosh ping     --socket-path PATH
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/llm-osd/llm-osd/internal/client"
	"github.com/llm-osd/llm-osd/internal/protocol"
)

const defaultSocketPath = "/tmp/llm-osd.sock"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "validate":
		runValidate(os.Args[2:])
	case "send":
		runSend(os.Args[2:])
	case "ping":
		runPing(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: llmosh <validate|send|ping> [flags]")
}

// readInput resolves the input document with the precedence: --json literal
// wins over --file, --file wins over stdin.
func readInput(fileFlag, jsonFlag string) ([]byte, error) {
	if jsonFlag != "" {
		return []byte(jsonFlag), nil
	}
	if fileFlag != "" {
		return os.ReadFile(fileFlag)
	}
	return io.ReadAll(os.Stdin)
}

func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	file := fs.String("file", "", "Path to an ActionPlan JSON document")
	jsonDoc := fs.String("json", "", "ActionPlan JSON document as a literal argument")
	asJSON := fs.Bool("json-output", false, "Print the verdict as JSON")
	fs.Parse(args)

	input, err := readInput(*file, *jsonDoc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read input: %v\n", err)
		os.Exit(1)
	}

	verdict := client.ValidateVerdict(input)
	if *asJSON {
		_ = json.NewEncoder(os.Stdout).Encode(verdict)
	} else if verdict.Valid {
		fmt.Println("valid")
	} else {
		fmt.Printf("invalid: %s\n", verdict.Error)
	}

	if !verdict.Valid {
		os.Exit(1)
	}
}

func runSend(args []string) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	file := fs.String("file", "", "Path to an ActionPlan JSON document")
	jsonDoc := fs.String("json", "", "ActionPlan JSON document as a literal argument")
	socketPath := fs.String("socket-path", defaultSocketPath, "Path to the daemon's Unix socket")
	requestID := fs.String("request-id", "", "Override the request_id before sending")
	sessionID := fs.String("session-id", "", "Override the session_id before sending")
	timeout := fs.Duration("timeout", 10*time.Second, "Connect and response timeout")
	fs.Parse(args)

	input, err := readInput(*file, *jsonDoc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read input: %v\n", err)
		os.Exit(1)
	}

	overrides := client.Overrides{}
	if *requestID != "" {
		overrides.RequestID = requestID
	}
	if *sessionID != "" {
		overrides.SessionID = sessionID
	}

	plan, err := client.ParseAndValidateForSend(input, overrides)
	if err != nil {
		fmt.Fprintf(os.Stderr, "refused to send: %v\n", err)
		os.Exit(1)
	}

	result, err := client.Send(*socketPath, plan, *timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "send failed: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)

	if result.Error != nil {
		os.Exit(1)
	}
}

func runPing(args []string) {
	fs := flag.NewFlagSet("ping", flag.ExitOnError)
	socketPath := fs.String("socket-path", defaultSocketPath, "Path to the daemon's Unix socket")
	timeout := fs.Duration("timeout", 5*time.Second, "Connect and response timeout")
	fs.Parse(args)

	plan := &protocol.ActionPlan{
		RequestID: "llmosh-ping",
		Version:   "0.1",
		Mode:      protocol.ModeExecute,
		Actions: []protocol.Action{
			{Type: protocol.ActionPing, Ping: &protocol.PingAction{}},
		},
	}

	result, err := client.Send(*socketPath, plan, *timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ping failed: %v\n", err)
		os.Exit(1)
	}
	if result.Error != nil || len(result.Results) != 1 || result.Results[0].Ping == nil || !result.Results[0].Ping.OK {
		fmt.Fprintf(os.Stderr, "daemon did not respond with pong: %+v\n", result)
		os.Exit(1)
	}
	fmt.Println("pong")
}
