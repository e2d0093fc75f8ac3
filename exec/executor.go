// Package exec provides an abstraction over short-lived command execution for
// testability. Encoder probes, display queries and "open with" launches go
// through a CommandExecutor so tests can inject a MockExecutor that returns
// pre-recorded responses.
//
// The long-running encoder process itself is not run through this package;
// the process supervisor owns it directly.
package exec

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"slices"
	"sync"
)

// ErrNotFound is returned by MockExecutor.LookPath for binaries marked missing.
var ErrNotFound = exec.ErrNotFound

// CommandExecutor abstracts command execution for testability.
type CommandExecutor interface {
	// Run executes a command and returns stdout, stderr, and any error.
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

	// Output executes a command and returns stdout.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)

	// CombinedOutput executes a command and returns combined stdout+stderr.
	CombinedOutput(ctx context.Context, name string, args ...string) ([]byte, error)

	// LookPath resolves a binary name the way os/exec does.
	LookPath(name string) (string, error)
}

// RealExecutor executes commands using os/exec.
type RealExecutor struct{}

// NewRealExecutor returns a new RealExecutor.
func NewRealExecutor() *RealExecutor {
	return &RealExecutor{}
}

// Run executes a command and returns stdout, stderr, and any error.
func (e *RealExecutor) Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err = cmd.Run()
	return stdoutBuf.Bytes(), stderrBuf.Bytes(), err
}

// Output executes a command and returns stdout.
func (e *RealExecutor) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// CombinedOutput executes a command and returns combined stdout+stderr.
func (e *RealExecutor) CombinedOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// LookPath searches PATH for name.
func (e *RealExecutor) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// MockResponse defines the response for a mocked command.
type MockResponse struct {
	Stdout []byte
	Stderr []byte
	Err    error
}

// CommandMatcher is a function that determines if a command matches.
type CommandMatcher func(name string, args []string) bool

// MockRule defines a matching rule and its response.
type MockRule struct {
	Match    CommandMatcher
	Response MockResponse
}

// MockCall records a command invocation for verification.
type MockCall struct {
	Name string
	Args []string
}

// MockExecutor returns pre-recorded responses for commands.
// Commands are matched in order of rule registration. Unmatched commands
// succeed with empty output. LookPath succeeds with "/usr/bin/<name>" unless
// the binary was registered with SetMissing.
type MockExecutor struct {
	mu      sync.RWMutex
	rules   []MockRule
	calls   []MockCall
	missing map[string]bool
}

// NewMockExecutor creates a new MockExecutor.
func NewMockExecutor() *MockExecutor {
	return &MockExecutor{missing: make(map[string]bool)}
}

// AddRule adds a matching rule with its response.
func (e *MockExecutor) AddRule(match CommandMatcher, response MockResponse) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, MockRule{Match: match, Response: response})
}

// AddExactMatch adds a rule that matches a specific command exactly.
func (e *MockExecutor) AddExactMatch(name string, args []string, response MockResponse) {
	e.AddRule(func(n string, a []string) bool {
		return n == name && slices.Equal(a, args)
	}, response)
}

// AddPrefixMatch adds a rule that matches commands starting with specific args.
func (e *MockExecutor) AddPrefixMatch(name string, prefixArgs []string, response MockResponse) {
	e.AddRule(func(n string, a []string) bool {
		return n == name && len(a) >= len(prefixArgs) && slices.Equal(a[:len(prefixArgs)], prefixArgs)
	}, response)
}

// SetMissing marks a binary as absent from PATH.
func (e *MockExecutor) SetMissing(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.missing[name] = true
}

// GetCalls returns all recorded command invocations.
func (e *MockExecutor) GetCalls() []MockCall {
	e.mu.RLock()
	defer e.mu.RUnlock()
	calls := make([]MockCall, len(e.calls))
	copy(calls, e.calls)
	return calls
}

// ClearCalls clears the recorded command invocations.
func (e *MockExecutor) ClearCalls() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = nil
}

func (e *MockExecutor) respond(name string, args []string) MockResponse {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls = append(e.calls, MockCall{Name: name, Args: args})
	if e.missing[name] {
		return MockResponse{Err: &exec.Error{Name: name, Err: ErrNotFound}}
	}
	for _, rule := range e.rules {
		if rule.Match(name, args) {
			return rule.Response
		}
	}
	return MockResponse{}
}

// Run executes a mocked command.
func (e *MockExecutor) Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error) {
	resp := e.respond(name, args)
	return resp.Stdout, resp.Stderr, resp.Err
}

// Output executes a mocked command.
func (e *MockExecutor) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	resp := e.respond(name, args)
	return resp.Stdout, resp.Err
}

// CombinedOutput executes a mocked command.
func (e *MockExecutor) CombinedOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	resp := e.respond(name, args)
	combined := append(slices.Clone(resp.Stdout), resp.Stderr...)
	return combined, resp.Err
}

// LookPath resolves name unless it was marked missing.
func (e *MockExecutor) LookPath(name string) (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.missing[name] {
		return "", &exec.Error{Name: name, Err: ErrNotFound}
	}
	return "/usr/bin/" + name, nil
}

// IsNotFound reports whether err means the binary could not be located.
func IsNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound)
}

// Ensure implementations satisfy the interface.
var _ CommandExecutor = (*RealExecutor)(nil)
var _ CommandExecutor = (*MockExecutor)(nil)

// defaultExecutorMu protects defaultExecutor for concurrent access.
var defaultExecutorMu sync.RWMutex

// defaultExecutor is the global default executor (can be swapped for testing).
var defaultExecutor CommandExecutor = NewRealExecutor()

// GetDefaultExecutor returns the global default executor.
func GetDefaultExecutor() CommandExecutor {
	defaultExecutorMu.RLock()
	defer defaultExecutorMu.RUnlock()
	return defaultExecutor
}

// SetDefaultExecutor sets the global default executor.
func SetDefaultExecutor(e CommandExecutor) {
	defaultExecutorMu.Lock()
	defer defaultExecutorMu.Unlock()
	defaultExecutor = e
}
