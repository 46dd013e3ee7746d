// Package mcpbridge owns the client side of the tool protocol: a
// single in-process MCP session shared by all chat turns. Calls while
// disconnected fail fast with ErrNotConnected.
package mcpbridge
