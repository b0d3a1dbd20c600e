// Package chats provides the conversation data model used by the agent loop.
//
// It is organized into sub-packages:
//   - [github.com/germanamz/llamagent/pkg/chats/role]: message roles (system, user, assistant, tool)
//   - [github.com/germanamz/llamagent/pkg/chats/content]: content parts (text, tool call, tool result)
//   - [github.com/germanamz/llamagent/pkg/chats/message]: messages composed of a role, sender and parts
//   - [github.com/germanamz/llamagent/pkg/chats/chat]: the append-only conversation
//
// No model or transport code lives here; templates and adapters build on it.
package chats
