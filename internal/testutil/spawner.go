package testutil

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/HyphaGroup/claudexec/internal/process"
)

// ErrStdinClosed is returned by MockSpawner children whose stdin fails
var ErrStdinClosed = errors.New("mock stdin closed")

// MockSpawner is a test double for process.Spawner.
// It records calls and allows configuring responses for testing.
type MockSpawner struct {
	mu sync.Mutex

	// Configurable responses, keyed by the spawned command
	SpawnError func(command string) error
	StdinError func(command string) bool

	// Output of every child
	Stdout   string
	Stderr   string
	ExitCode int

	// Block keeps children running, with stdout open, until killed
	Block bool

	// Call tracking
	SpawnCalls []process.Spec
	Prompts    []string
	Kills      int
}

var _ process.Spawner = (*MockSpawner)(nil)

// NewMockSpawner creates a spawner whose children exit 0 with no output.
func NewMockSpawner(t *testing.T) *MockSpawner {
	t.Helper()
	return &MockSpawner{}
}

// Spawn implements process.Spawner.
func (m *MockSpawner) Spawn(ctx context.Context, spec process.Spec) (*process.Child, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SpawnCalls = append(m.SpawnCalls, spec)
	if m.SpawnError != nil {
		if err := m.SpawnError(spec.Command); err != nil {
			return nil, err
		}
	}

	failStdin := m.StdinError != nil && m.StdinError(spec.Command)
	return m.newChild(failStdin), nil
}

func (m *MockSpawner) newChild(failStdin bool) *process.Child {
	killed := make(chan struct{})
	var killOnce sync.Once
	kill := func() error {
		killOnce.Do(func() {
			m.mu.Lock()
			m.Kills++
			m.mu.Unlock()
			close(killed)
		})
		return nil
	}

	stdoutR, stdoutW := io.Pipe()
	block := m.Block
	stdout := m.Stdout
	go func() {
		_, _ = io.WriteString(stdoutW, stdout)
		if block {
			<-killed
		}
		_ = stdoutW.Close()
	}()

	exitCode := m.ExitCode
	wait := func() (int, error) {
		if block {
			<-killed
			return -1, nil
		}
		return exitCode, nil
	}

	stdin := &promptRecorder{failed: failStdin, record: m.recordPrompt}
	stderr := io.NopCloser(strings.NewReader(m.Stderr))

	return process.NewChild(4242, stdin, stdoutR, stderr, wait, kill)
}

func (m *MockSpawner) recordPrompt(prompt string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Prompts = append(m.Prompts, prompt)
}

// Commands returns the commands spawned so far, in order.
func (m *MockSpawner) Commands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	commands := make([]string, 0, len(m.SpawnCalls))
	for _, spec := range m.SpawnCalls {
		commands = append(commands, spec.Command)
	}
	return commands
}

// KillCount returns how many children have been killed.
func (m *MockSpawner) KillCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Kills
}

// Reset clears all recorded calls.
func (m *MockSpawner) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SpawnCalls = nil
	m.Prompts = nil
	m.Kills = 0
}

// AssertSpawnCalled asserts a command containing substr was spawned.
func (m *MockSpawner) AssertSpawnCalled(t *testing.T, substr string) {
	t.Helper()
	for _, command := range m.Commands() {
		if strings.Contains(command, substr) {
			return
		}
	}
	t.Errorf("Spawn not called with command containing %q, calls: %v", substr, m.Commands())
}

// promptRecorder collects what is written to a child's stdin and records
// it on Close
type promptRecorder struct {
	buf    strings.Builder
	failed bool
	closed bool
	record func(string)
}

func (p *promptRecorder) Write(b []byte) (int, error) {
	if p.failed || p.closed {
		return 0, ErrStdinClosed
	}
	return p.buf.Write(b)
}

func (p *promptRecorder) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	if !p.failed {
		p.record(p.buf.String())
	}
	return nil
}
