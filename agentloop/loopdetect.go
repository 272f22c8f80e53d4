package agentloop

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// ToolCallHistoryEntry is one attempted tool call inside the detector's
// sliding window. Entries expire out of the window, so detector memory is
// bounded regardless of session length.
type ToolCallHistoryEntry struct {
	ToolName        string
	ArgsFingerprint string
	Timestamp       time.Time
	Iteration       int
}

// LoopDetector flags unproductive repetition in the stream of attempted
// tool calls. Two triggers, either sufficient: too many calls to the same
// tool within the window, or the same (tool, arguments) pair repeating.
type LoopDetector struct {
	window             time.Duration
	sameToolThreshold  int
	identicalThreshold int
	now                func() time.Time

	mu      sync.Mutex
	entries []ToolCallHistoryEntry
}

// NewLoopDetector creates a detector. A nil clock uses time.Now.
func NewLoopDetector(window time.Duration, sameToolThreshold, identicalThreshold int, clock func() time.Time) *LoopDetector {
	if clock == nil {
		clock = time.Now
	}
	return &LoopDetector{
		window:             window,
		sameToolThreshold:  sameToolThreshold,
		identicalThreshold: identicalThreshold,
		now:                clock,
	}
}

// ArgsFingerprint computes a stable hash of a tool call's arguments.
// Go's json.Marshal emits map keys in sorted order, so semantically equal
// argument objects hash identically.
func ArgsFingerprint(args map[string]interface{}) string {
	raw, err := json.Marshal(args)
	if err != nil {
		raw = []byte(fmt.Sprintf("%v", args))
	}
	h := sha256.Sum256(raw)
	return fmt.Sprintf("%x", h[:8])
}

// Observe records the iteration's attempted calls, purges expired entries,
// and reports whether either trigger fired. On a trigger the window is
// cleared so one stall episode produces one intervention.
func (d *LoopDetector) Observe(calls []ToolCallRequest, iteration int) (bool, string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ts := d.now()
	d.purgeLocked(ts)

	for _, call := range calls {
		d.entries = append(d.entries, ToolCallHistoryEntry{
			ToolName:        call.ToolName,
			ArgsFingerprint: ArgsFingerprint(call.Arguments),
			Timestamp:       ts,
			Iteration:       iteration,
		})
	}

	byTool := make(map[string]int)
	byCall := make(map[string]int)
	for _, e := range d.entries {
		byTool[e.ToolName]++
		byCall[e.ToolName+":"+e.ArgsFingerprint]++
	}

	for _, e := range d.entries {
		if byTool[e.ToolName] > d.sameToolThreshold {
			count := byTool[e.ToolName]
			d.entries = nil
			return true, fmt.Sprintf("tool %s called %d times within %s", e.ToolName, count, d.window)
		}
		if byCall[e.ToolName+":"+e.ArgsFingerprint] >= d.identicalThreshold {
			count := byCall[e.ToolName+":"+e.ArgsFingerprint]
			d.entries = nil
			return true, fmt.Sprintf("identical %s call repeated %d times within %s", e.ToolName, count, d.window)
		}
	}
	return false, ""
}

// Size returns the current number of retained entries.
func (d *LoopDetector) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// purgeLocked drops entries older than the window. Caller holds d.mu.
func (d *LoopDetector) purgeLocked(now time.Time) {
	cutoff := now.Add(-d.window)
	kept := d.entries[:0]
	for _, e := range d.entries {
		if e.Timestamp.After(cutoff) {
			kept = append(kept, e)
		}
	}
	d.entries = kept
}

// interventionMessage is the corrective message appended when the detector
// fires. It redirects the model toward the terminal action instead of more
// exploration.
func interventionMessage(reason string) string {
	return fmt.Sprintf(
		"Repetition detected: %s. Stop exploring. Use the information you already have "+
			"to finish the task, then call the complete tool with a summary of what was done.",
		reason)
}
