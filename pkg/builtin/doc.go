// Package builtin groups the tools llamagent serves in-process.
//
//   - [shell] runs allow-listed, read-only shell commands after a safety check.
//   - [calculator] evaluates a single binary arithmetic expression.
package builtin
