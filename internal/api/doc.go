// Package api contains API surface implementations.
//
// This package organizes handlers by transport and concern:
//
// # MCP Tools
//
// The mcp subpackage exposes the engine's mutating operations as Model
// Context Protocol tools over stdio. Agent hosts drive campaigns through
// these tools: creating and joining campaigns, loading sessions, submitting
// player and combat actions, and ending sessions.
//
// # HTTP Streaming
//
// The stream subpackage is a read-only surface for UIs: campaign state
// snapshots, paginated event history, and a websocket feed of full-state
// keyframes. All mutations go through MCP tools; the streaming surface
// never writes.
package api
