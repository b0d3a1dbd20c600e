// Package modeladapter connects the agent to a language model.
//
// It contains:
//   - [Completer] interface, the seam the agent loop calls once per round
//   - [Local], a Completer that renders a chat template, runs a [generate.Driver] and parses the reply
//   - [ModelAdapter], an embeddable base with HTTP helpers, auth, and custom headers for networked runtimes
//   - [github.com/germanamz/llamagent/pkg/modeladapter/usage], a thread-safe token usage tracker
//
// Runtime-specific code lives in separate packages, such as
// [github.com/germanamz/llamagent/pkg/inference/llamaserver].
package modeladapter
