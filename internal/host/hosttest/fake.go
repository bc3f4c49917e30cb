// Package hosttest provides a scripted host.Runner for tests.
package hosttest

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/Vampire/setup-wsl-sub000/internal/host"
)

// Call records one command the fake received.
type Call struct {
	Name  string
	Args  []string
	Env   []string
	Stdin string
}

// Line joins name and args with single spaces.
func (c Call) Line() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Response is what the fake answers for a matching command.
type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

// Rule matches a command line by prefix. Times limits how often it matches; zero means always.
type Rule struct {
	Prefix   string
	Response Response
	Times    int
	used     int
}

// Runner answers commands from its rules in order; unmatched commands succeed with empty output.
type Runner struct {
	mu    sync.Mutex
	rules []*Rule
	calls []Call
}

// On registers a response for command lines starting with prefix.
func (r *Runner) On(prefix string, resp Response) *Runner {
	return r.OnTimes(prefix, 0, resp)
}

// OnTimes registers a response used at most times times.
func (r *Runner) OnTimes(prefix string, times int, resp Response) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, &Rule{Prefix: prefix, Response: resp, Times: times})
	return r
}

// Calls returns a copy of the recorded calls.
func (r *Runner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Lines returns the recorded calls as command lines.
func (r *Runner) Lines() []string {
	calls := r.Calls()
	lines := make([]string, 0, len(calls))
	for _, c := range calls {
		lines = append(lines, c.Line())
	}
	return lines
}

// Count returns how many recorded command lines contain substr.
func (r *Runner) Count(substr string) int {
	n := 0
	for _, line := range r.Lines() {
		if strings.Contains(line, substr) {
			n++
		}
	}
	return n
}

func (r *Runner) Run(ctx context.Context, cmd host.Command) (host.Result, error) {
	call := Call{Name: cmd.Name, Args: append([]string(nil), cmd.Args...), Env: append([]string(nil), cmd.Env...)}
	if cmd.Stdin != nil {
		data, _ := io.ReadAll(cmd.Stdin)
		call.Stdin = string(data)
	}

	r.mu.Lock()
	r.calls = append(r.calls, call)
	var resp Response
	line := call.Line()
	for _, rule := range r.rules {
		if !strings.HasPrefix(line, rule.Prefix) {
			continue
		}
		if rule.Times > 0 && rule.used >= rule.Times {
			continue
		}
		rule.used++
		resp = rule.Response
		break
	}
	r.mu.Unlock()

	result := host.Result{ExitCode: resp.ExitCode, Stdout: resp.Stdout, Stderr: resp.Stderr}
	if resp.Err != nil {
		return result, resp.Err
	}
	if resp.ExitCode != 0 {
		return result, &host.ExitError{Command: line, Code: resp.ExitCode, Stderr: resp.Stderr}
	}
	return result, nil
}
