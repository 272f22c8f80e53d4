// Package llm is a small provider-agnostic completion client. It routes
// requests to named provider adapters, classifies provider failures into a
// typed error hierarchy with retryability, and applies bounded exponential
// backoff to transient errors.
//
// The agent loop consumes this package through its Completer interface; it
// sends an ordered message list and receives the model's raw text reply.
// Tool-call extraction happens above this layer, so adapters only deal in
// plain text.
package llm
