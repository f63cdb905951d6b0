package orchestrator

import (
	"fmt"
	"sync"

	"github.com/filibuster-io/filibuster-go/internal/testexecution"
)

// ServerState is the per-execution bookkeeping the control-plane mutates
// while a single test execution is in flight. It is reset at the start of
// every execution and discarded at the end.
type ServerState struct {
	mu                sync.Mutex
	log               []testexecution.LogEntry
	seenFirstFrom     map[string]bool
	generatedIDCursor int
}

// NewServerState returns a freshly reset ServerState.
func NewServerState() *ServerState {
	return &ServerState{seenFirstFrom: map[string]bool{}, generatedIDCursor: -1}
}

// AppendLogEntry assigns entry the next dense generated id, appends it to
// the log, and returns the assigned id.
func (s *ServerState) AppendLogEntry(entry testexecution.LogEntry) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generatedIDCursor++
	entry.GeneratedID = s.generatedIDCursor
	s.log = append(s.log, entry)
	return entry.GeneratedID
}

// ErrUnknownGeneratedID is returned by UpdateLogEntry for an id outside the
// current execution's log. The control-plane handler translates this into
// a 4xx response, rather than silently succeeding.
var ErrUnknownGeneratedID = fmt.Errorf("orchestrator: unknown generated_id")

// UpdateLogEntry merges a partial outcome (return value, exception,
// resolved target service, …) into the log entry identified by
// generatedID.
func (s *ServerState) UpdateLogEntry(generatedID int, patch func(*testexecution.LogEntry)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generatedID < 0 || generatedID >= len(s.log) {
		return ErrUnknownGeneratedID
	}
	patch(&s.log[generatedID])
	return nil
}

// Entry returns a copy of the log entry at generatedID.
func (s *ServerState) Entry(generatedID int) (testexecution.LogEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generatedID < 0 || generatedID >= len(s.log) {
		return testexecution.LogEntry{}, false
	}
	return s.log[generatedID], true
}

// Log returns a snapshot of the request log recorded so far.
func (s *ServerState) Log() []testexecution.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]testexecution.LogEntry, len(s.log))
	copy(out, s.log)
	return out
}

// Deepest returns the most recently appended log entry, i.e. the frontier
// the schedule generator is allowed to branch faults from.
func (s *ServerState) Deepest() (testexecution.LogEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.log) == 0 {
		return testexecution.LogEntry{}, false
	}
	return s.log[len(s.log)-1], true
}

// MarkSeenFirstRequestFrom reports whether this is the first request this
// execution has seen from service, registering it if so.
func (s *ServerState) MarkSeenFirstRequestFrom(service string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seenFirstFrom[service] {
		return false
	}
	s.seenFirstFrom[service] = true
	return true
}

// Stack is a simple LIFO queue of pending test executions.
type Stack struct {
	mu    sync.Mutex
	items []*testexecution.TestExecution
}

// NewStack returns an empty stack.
func NewStack() *Stack { return &Stack{} }

// Push adds te to the top of the stack.
func (s *Stack) Push(te *testexecution.TestExecution) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, te)
}

// Pop removes and returns the top of the stack, or nil if empty.
func (s *Stack) Pop() *testexecution.TestExecution {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.items) == 0 {
		return nil
	}
	top := s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]
	return top
}

// Len returns the current depth of the stack.
func (s *Stack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Contains reports whether an execution equal to te is already queued.
func (s *Stack) Contains(te *testexecution.TestExecution) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range s.items {
		if testexecution.Equal(item, te) {
			return true
		}
	}
	return false
}
