// Package agentloop runs a goal-directed agent session over a workspace
// snapshot.
//
// A Session pairs a language model with a registry of snapshot tools. Each
// iteration it sends the conversation to the model, extracts tool calls
// written as <toolName>{...}</toolName> blocks from the reply, dispatches
// them against the in-memory workspace, and feeds the results back, until
// the model calls the complete tool or a limit ends the session.
//
// # Architecture
//
// The package is organized around these core concepts:
//
//   - Session: the orchestrator holding conversation state, enforcing
//     iteration and wall-clock limits, and driving terminal transitions.
//   - ToolRegistry and Dispatcher: registration, validation, and execution
//     of tool definitions.
//   - Workspace: an in-memory file snapshot; tools never touch the real
//     filesystem, and every mutation is recorded as a FileChange.
//   - LoopDetector: a sliding window over attempted calls that injects a
//     corrective message when the model stalls in repetition.
//   - EventEmitter: typed event stream for host application integration.
//
// # Quick Start
//
//	reg := agentloop.NewToolRegistry()
//	agentloop.RegisterCoreTools(reg)
//	ws := agentloop.NewWorkspace(files)
//	session := agentloop.NewSession(client, reg, ws, nil)
//
//	if err := session.Start(ctx, "Add alt text to every image in index.html"); err != nil {
//	    log.Fatal(err)
//	}
//	for _, change := range session.Changes() {
//	    fmt.Printf("%s %s\n", change.Kind, change.Path)
//	}
package agentloop
