package agentloop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shreedharv16/accesslint/llm"
)

// SessionStatus represents the current lifecycle state of a session.
type SessionStatus string

const (
	StatusCreated   SessionStatus = "created"
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
	StatusError     SessionStatus = "error"
	StatusTimeout   SessionStatus = "timeout"
	StatusCancelled SessionStatus = "cancelled"
)

// terminal reports whether a status admits no further transitions.
func (s SessionStatus) terminal() bool {
	switch s {
	case StatusCompleted, StatusError, StatusTimeout, StatusCancelled:
		return true
	}
	return false
}

// Policy holds the runtime limits for a session.
type Policy struct {
	Provider            string        `json:"provider"`
	Model               string        `json:"model"`
	MaxIterations       int           `json:"max_iterations"`
	Timeout             time.Duration `json:"timeout"`
	MaxTokens           int           `json:"max_tokens"`
	ContextBudgetChars  int           `json:"context_budget_chars"` // 0 = unlimited
	EnableLoopDetection bool          `json:"enable_loop_detection"`
	LoopWindow          time.Duration `json:"loop_window"`
	SameToolThreshold   int           `json:"same_tool_threshold"`
	IdenticalThreshold  int           `json:"identical_threshold"`
}

// DefaultPolicy returns the default session limits.
func DefaultPolicy() Policy {
	return Policy{
		MaxIterations:       50,
		Timeout:             10 * time.Minute,
		MaxTokens:           4096,
		EnableLoopDetection: true,
		LoopWindow:          10 * time.Minute,
		SameToolThreshold:   15,
		IdenticalThreshold:  4,
	}
}

// Completer is the model dependency of a session. *llm.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// Session drives one goal through the agent loop: it sends the conversation
// to the model, parses tool calls out of the reply, dispatches them against
// the workspace, and repeats until the model calls complete or a limit hits.
//
// All mutation happens under mu. The generation counter increments on every
// externally forced transition (Cancel, watchdog timeout); the loop captures
// it before each blocking call and discards the result if it moved.
type Session struct {
	id        string
	goal      string
	completer Completer
	registry  *ToolRegistry
	ws        *Workspace
	policy    Policy
	emitter   *EventEmitter
	detector  *LoopDetector

	mu                sync.Mutex
	status            SessionStatus
	generation        uint64
	iterationCount    int
	terminationReason string
	messages          []Message
	transcript        []IterationRecord
	usage             llm.Usage
	startTime         time.Time
	endTime           time.Time
}

// NewSession creates a session over a workspace snapshot. A nil policy
// means DefaultPolicy.
func NewSession(completer Completer, registry *ToolRegistry, ws *Workspace, policy *Policy) *Session {
	p := DefaultPolicy()
	if policy != nil {
		p = *policy
	}

	sessionID := uuid.New().String()
	s := &Session{
		id:        sessionID,
		completer: completer,
		registry:  registry,
		ws:        ws,
		policy:    p,
		emitter:   NewEventEmitter(sessionID, 256),
		status:    StatusCreated,
	}
	if p.EnableLoopDetection {
		s.detector = NewLoopDetector(p.LoopWindow, p.SameToolThreshold, p.IdenticalThreshold, nil)
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Goal returns the goal the session was started with.
func (s *Session) Goal() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.goal
}

// Status returns the current lifecycle status.
func (s *Session) Status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// IterationCount returns the number of iterations consumed so far.
func (s *Session) IterationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.iterationCount
}

// TerminationReason returns the human-readable reason the session ended,
// or "" while it is still running.
func (s *Session) TerminationReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminationReason
}

// Messages returns a copy of the conversation history.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Transcript returns a copy of the per-iteration records.
func (s *Session) Transcript() []IterationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]IterationRecord, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Usage returns accumulated token usage across model calls.
func (s *Session) Usage() llm.Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}

// Changes returns the workspace change log in application order.
func (s *Session) Changes() []FileChange { return s.ws.Changes() }

// Workspace returns the session's workspace snapshot.
func (s *Session) Workspace() *Workspace { return s.ws }

// Events returns the event channel for the host application.
func (s *Session) Events() <-chan SessionEvent { return s.emitter.Events() }

// StartTime returns when Start was called, or the zero time before that.
func (s *Session) StartTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startTime
}

// EndTime returns when the session reached a terminal status.
func (s *Session) EndTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endTime
}

// Cancel moves an active session to Cancelled. In-flight work observes the
// generation bump and discards its result without further writes. Calling
// Cancel on a non-active session is a no-op.
func (s *Session) Cancel() {
	s.mu.Lock()
	if s.status != StatusActive {
		s.mu.Unlock()
		return
	}
	s.generation++
	s.transitionLocked(StatusCancelled, "cancelled by host")
	s.mu.Unlock()
}

// Start runs the session to a terminal status. It blocks until the model
// calls complete, a limit is reached, the context ends, or Cancel is called.
// It may be called once per session.
func (s *Session) Start(ctx context.Context, goal string) error {
	s.mu.Lock()
	if s.status != StatusCreated {
		s.mu.Unlock()
		return fmt.Errorf("session already started (status %s)", s.status)
	}
	s.goal = goal
	s.startTime = time.Now()
	s.status = StatusActive
	s.messages = []Message{
		{Role: RoleSystem, Content: BuildSystemPrompt(s.registry), Ordinal: 0},
		{Role: RoleUser, Content: goal, Ordinal: 1},
	}
	s.mu.Unlock()

	s.emitter.Emit(EventSessionStart, map[string]interface{}{
		"goal": goal,
	})
	s.emitter.Emit(EventStatusTransition, map[string]interface{}{
		"from": string(StatusCreated),
		"to":   string(StatusActive),
	})

	stopWatchdog := make(chan struct{})
	defer close(stopWatchdog)
	go s.watchdog(stopWatchdog)

	s.run(ctx)

	s.mu.Lock()
	status := s.status
	reason := s.terminationReason
	s.mu.Unlock()

	s.emitter.Emit(EventSessionEnd, map[string]interface{}{
		"status": string(status),
		"reason": reason,
	})
	s.emitter.Close()

	switch status {
	case StatusError, StatusTimeout:
		return errors.New(reason)
	default:
		return nil
	}
}

// watchdog enforces the wall-clock timeout independently of the loop, so a
// session stuck awaiting the model still times out.
func (s *Session) watchdog(stop <-chan struct{}) {
	if s.policy.Timeout <= 0 {
		return
	}
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.status == StatusActive && time.Since(s.startTime) > s.policy.Timeout {
				s.generation++
				s.transitionLocked(StatusTimeout, fmt.Sprintf("session exceeded %s timeout", s.policy.Timeout))
			}
			done := s.status.terminal()
			s.mu.Unlock()
			if done {
				return
			}
		}
	}
}

// transitionLocked records a terminal transition. The caller holds mu.
// The first terminal transition wins; later ones are ignored.
func (s *Session) transitionLocked(to SessionStatus, reason string) {
	if s.status.terminal() {
		return
	}
	from := s.status
	s.status = to
	s.terminationReason = reason
	s.endTime = time.Now()
	s.emitter.Emit(EventStatusTransition, map[string]interface{}{
		"from":   string(from),
		"to":     string(to),
		"reason": reason,
	})
}

// liveLocked reports whether the loop may keep acting on behalf of the
// generation it captured before its last blocking call.
func (s *Session) liveLocked(gen uint64) bool {
	return s.status == StatusActive && s.generation == gen
}

// run is the core loop. It returns when the session reaches a terminal
// status; if another goroutine forced the transition, run returns without
// touching session state again.
func (s *Session) run(ctx context.Context) {
	builder := &ContextBuilder{BudgetChars: s.policy.ContextBudgetChars}

	for {
		s.mu.Lock()
		if s.status != StatusActive {
			s.mu.Unlock()
			return
		}
		if time.Since(s.startTime) > s.policy.Timeout && s.policy.Timeout > 0 {
			s.generation++
			s.transitionLocked(StatusTimeout, fmt.Sprintf("session exceeded %s timeout", s.policy.Timeout))
			s.mu.Unlock()
			return
		}
		if s.iterationCount >= s.policy.MaxIterations {
			s.transitionLocked(StatusError, "max iterations reached")
			s.mu.Unlock()
			return
		}
		s.iterationCount++
		iteration := s.iterationCount
		gen := s.generation
		window := builder.Build(s.messages)
		request := ToLLM(window)
		s.mu.Unlock()

		s.emitter.Emit(EventIterationStart, map[string]interface{}{
			"iteration":      iteration,
			"max_iterations": s.policy.MaxIterations,
			"elapsed":        time.Since(s.startTime).Round(time.Millisecond).String(),
		})

		response, err := s.completer.Complete(ctx, llm.Request{
			Provider:  s.policy.Provider,
			Model:     s.policy.Model,
			Messages:  request,
			MaxTokens: s.policy.MaxTokens,
		})

		s.mu.Lock()
		if !s.liveLocked(gen) {
			// Cancelled or timed out while awaiting the model. The late
			// result is discarded; whoever forced the transition already
			// recorded the terminal state.
			s.mu.Unlock()
			return
		}
		if err != nil {
			switch {
			case errors.Is(err, context.Canceled):
				s.generation++
				s.transitionLocked(StatusCancelled, "context cancelled")
			case errors.Is(err, context.DeadlineExceeded):
				s.generation++
				s.transitionLocked(StatusTimeout, "context deadline exceeded")
			default:
				s.transitionLocked(StatusError, fmt.Sprintf("model call failed: %v", err))
				s.emitter.Emit(EventError, map[string]interface{}{
					"error": err.Error(),
				})
			}
			s.mu.Unlock()
			return
		}
		s.usage = s.usage.Add(response.Usage)
		vocabulary := s.registry.Names()
		s.mu.Unlock()

		parsed := ParseToolCalls(response.Text, vocabulary)
		for _, diag := range parsed.Diagnostics {
			s.emitter.Emit(EventWarning, map[string]interface{}{
				"message": diag,
			})
		}

		// No tool calls: the reply is commentary. Record it and remind the
		// model of the protocol.
		if len(parsed.Calls) == 0 {
			s.mu.Lock()
			if !s.liveLocked(gen) {
				s.mu.Unlock()
				return
			}
			s.appendMessageLocked(RoleAssistant, response.Text)
			s.appendMessageLocked(RoleUser,
				"No tool calls were found in your reply. Use the tool call format "+
					"described in the system prompt, or call complete if the goal is satisfied.")
			s.transcript = append(s.transcript, IterationRecord{
				Iteration: iteration,
				Request:   request,
				RawReply:  response.Text,
			})
			s.mu.Unlock()
			continue
		}

		// Detector check precedes dispatch: on a trigger the offending calls
		// are withheld for this iteration, not executed.
		if s.detector != nil {
			triggered, reason := s.detector.Observe(parsed.Calls, iteration)
			if triggered {
				s.mu.Lock()
				if !s.liveLocked(gen) {
					s.mu.Unlock()
					return
				}
				s.appendMessageLocked(RoleAssistant, response.Text)
				s.appendMessageLocked(RoleUser, interventionMessage(reason))
				s.transcript = append(s.transcript, IterationRecord{
					Iteration: iteration,
					Request:   request,
					RawReply:  response.Text,
					ToolCalls: parsed.Calls,
				})
				s.mu.Unlock()
				s.emitter.Emit(EventIntervention, map[string]interface{}{
					"reason": reason,
				})
				continue
			}
		}

		results, completed := s.dispatchCalls(gen, iteration, response.Text, request, parsed.Calls)
		if completed {
			return
		}
		if results == nil {
			// A forced transition interrupted dispatch.
			return
		}
	}
}

// dispatchCalls runs the parsed calls in source order, re-validating liveness
// before each one. It returns (nil, false) if a forced transition interrupted
// dispatch, and (results, true) if a complete call ended the session.
func (s *Session) dispatchCalls(gen uint64, iteration int, rawReply string, request []llm.Message, calls []ToolCallRequest) ([]ToolResult, bool) {
	dispatcher := NewDispatcher(s.registry)
	var results []ToolResult

	for i, call := range calls {
		s.mu.Lock()
		live := s.liveLocked(gen)
		s.mu.Unlock()
		if !live {
			return nil, false
		}

		s.emitter.Emit(EventToolCallStart, map[string]interface{}{
			"tool_name": call.ToolName,
			"iteration": iteration,
		})

		result := dispatcher.Dispatch(call, s.ws)
		result.Output = TruncateToolOutput(result.Output, call.ToolName)
		results = append(results, result)

		s.emitter.Emit(EventToolCallEnd, map[string]interface{}{
			"tool_name": call.ToolName,
			"success":   result.Success,
		})

		if call.ToolName == CompleteToolName && result.Success {
			// Completion short-circuit: remaining calls in the reply are
			// superseded, not executed.
			for _, late := range calls[i+1:] {
				s.emitter.Emit(EventToolCallSuperseded, map[string]interface{}{
					"tool_name": late.ToolName,
				})
			}
			s.mu.Lock()
			if !s.liveLocked(gen) {
				s.mu.Unlock()
				return nil, false
			}
			s.recordIterationLocked(iteration, rawReply, request, calls, results)
			s.transitionLocked(StatusCompleted, result.Output)
			s.mu.Unlock()
			return results, true
		}
	}

	s.mu.Lock()
	if !s.liveLocked(gen) {
		s.mu.Unlock()
		return nil, false
	}
	s.recordIterationLocked(iteration, rawReply, request, calls, results)
	s.mu.Unlock()
	return results, false
}

// recordIterationLocked appends the assistant reply, the rendered tool
// results, and the transcript record. The caller holds mu.
func (s *Session) recordIterationLocked(iteration int, rawReply string, request []llm.Message, calls []ToolCallRequest, results []ToolResult) {
	s.appendMessageLocked(RoleAssistant, rawReply)
	for _, r := range results {
		s.appendMessageLocked(RoleUser, formatResultMessage(r))
	}
	s.transcript = append(s.transcript, IterationRecord{
		Iteration: iteration,
		Request:   request,
		RawReply:  rawReply,
		ToolCalls: calls,
		Results:   results,
	})
}

func (s *Session) appendMessageLocked(role MessageRole, content string) {
	s.messages = append(s.messages, Message{
		Role:    role,
		Content: content,
		Ordinal: len(s.messages),
	})
}
