package responder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

const processStopGrace = 3 * time.Second

// Process talks to an external chatbot program over stdin and stdout: one
// line in, one line out. "quit" asks the program to exit.
//
// Parameters: command (required), args (space separated), ready (a line
// the program prints once it is ready), name, level.
type Process struct {
	info    Info
	command string
	args    []string
	ready   string

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Scanner
}

func (p *Process) Info() Info { return p.info }

func (p *Process) Init(ic InitContext) error {
	p.command = strings.TrimSpace(ic.Params["command"])
	if p.command == "" {
		return errors.New("process responder needs a command parameter")
	}
	p.args = strings.Fields(ic.Params["args"])
	p.ready = ic.Params["ready"]
	p.info = Info{Name: ic.Params["name"], IntelligenceLevel: 50}
	if p.info.Name == "" {
		p.info.Name = p.command
	}
	if lvl := ic.Params["level"]; lvl != "" {
		n, err := strconv.Atoi(lvl)
		if err != nil {
			return fmt.Errorf("invalid level %q: %w", lvl, err)
		}
		p.info.IntelligenceLevel = n
	}
	return nil
}

func (p *Process) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	cmd := exec.Command(p.command, p.args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", p.command, err)
	}
	p.cmd = cmd
	p.stdin = stdin
	p.stdout = bufio.NewScanner(stdout)

	if p.ready == "" {
		return nil
	}
	for {
		line, err := p.readLine(ctx)
		if err != nil {
			p.killLocked()
			go func() { _ = cmd.Wait() }()
			return fmt.Errorf("waiting for %q: %w", p.ready, err)
		}
		if strings.TrimSpace(line) == p.ready {
			return nil
		}
	}
}

// Converse sends text and waits for one reply line. Calls are serialised.
func (p *Process) Converse(ctx context.Context, text, _ string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil {
		return "", errors.New("process not running")
	}
	line := strings.ReplaceAll(text, "\n", " ")
	if _, err := io.WriteString(p.stdin, line+"\n"); err != nil {
		return "", fmt.Errorf("write: %w", err)
	}
	reply, err := p.readLine(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

// readLine must be called with mu held. On cancellation the scanner
// goroutine is left to finish when the process exits.
func (p *Process) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		if p.stdout.Scan() {
			ch <- result{line: p.stdout.Text()}
			return
		}
		err := p.stdout.Err()
		if err == nil {
			err = io.EOF
		}
		ch <- result{err: err}
	}()
	select {
	case r := <-ch:
		return r.line, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (p *Process) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil {
		return nil
	}
	_, _ = io.WriteString(p.stdin, "quit\n")
	_ = p.stdin.Close()

	done := make(chan error, 1)
	go func() { done <- p.cmd.Wait() }()
	select {
	case err := <-done:
		p.cmd = nil
		if err != nil {
			slog.Debug("Responder process exited", "command", p.command, "error", err)
		}
		return nil
	case <-time.After(processStopGrace):
		p.killLocked()
		return fmt.Errorf("%s did not exit after quit", p.command)
	}
}

func (p *Process) killLocked() {
	if p.cmd != nil && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	p.cmd = nil
}
