// Package mcp exposes the payment commands as MCP (Model Context Protocol) tools.
//
// Tools take the caller's transport identity as arguments, since MCP sessions
// carry no platform user:
//
//	server := mcp.NewServer(orchestrator, &mcpsdk.Implementation{Name: "fisher", Version: "1.0.0"})
//	handler := server.SSEHandler()
//
// Tools:
//
//	request_payment  {initiator_id, initiator_handle, recipient, amount}
//	confirm_payment  {initiator_id, initiator_handle, idempotency_key}
//	cancel_payment   {initiator_id, initiator_handle}
//	check_handle     {handle}
//
// Results are JSON text content. IsError is set for rejected requests and
// for any confirm outcome other than settled.
package mcp
