package supervisor

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"streambridge/internal/config"
)

// StdinMonitor reads control commands from stdin (debug mode).
type StdinMonitor struct {
	config  *config.SupervisorConfig
	handler Handler

	ctx    context.Context
	cancel context.CancelFunc
}

// NewStdinMonitor creates a stdin-based control monitor.
func NewStdinMonitor(parentCtx context.Context, cfg *config.SupervisorConfig, handler Handler) *StdinMonitor {
	ctx, cancel := context.WithCancel(parentCtx)
	return &StdinMonitor{config: cfg, handler: handler, ctx: ctx, cancel: cancel}
}

// Start begins reading commands from stdin.
func (sm *StdinMonitor) Start() error {
	go sm.monitorLoop()
	return nil
}

// Stop stops reading from stdin.
func (sm *StdinMonitor) Stop() error {
	sm.cancel()
	return nil
}

func (sm *StdinMonitor) monitorLoop() {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("\n=== Control Console ===")
	fmt.Println("  abort - abort both sides of the ring")
	fmt.Println("  reset - reset the ring, dropping unread bytes")
	fmt.Println("  wake  - unblock a stuck reader")
	fmt.Println("  drain - drain to the current write offset")
	fmt.Println("  quit  - exit program")
	fmt.Println("========================")

	for {
		select {
		case <-sm.ctx.Done():
			return
		default:
			fmt.Print("> ")
			input, err := reader.ReadString('\n')
			if err != nil {
				log.Printf("supervisor: failed to read input: %v", err)
				continue
			}
			input = strings.ToLower(strings.TrimSpace(input))
			if input == "" {
				continue
			}
			sm.processCommand(input)
		}
	}
}

func (sm *StdinMonitor) processCommand(input string) {
	var cmd Command
	switch input {
	case "abort":
		cmd = CmdAbort
	case "reset":
		cmd = CmdReset
	case "wake":
		cmd = CmdWakeup
	case "drain":
		cmd = CmdDrain
	case "quit", "q", "exit":
		cmd = CmdQuit
	default:
		fmt.Printf("unknown command: %s\n", input)
		return
	}
	sm.handler.HandleCommand(cmd)
}
