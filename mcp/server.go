package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	fisher "github.com/socialpay/fisher"
	"github.com/socialpay/fisher/extensions/idempotency"
)

// Tool names
const (
	ToolRequestPayment = "request_payment"
	ToolConfirmPayment = "confirm_payment"
	ToolCancelPayment  = "cancel_payment"
	ToolCheckHandle    = "check_handle"
	ToolSetWallet      = "set_wallet"
)

var (
	initiatorSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"initiator_id": {"type": "string", "description": "Platform user id of the sender"},
			"initiator_handle": {"type": "string", "description": "Public username of the sender"}
		},
		"required": ["initiator_id"]
	}`)

	confirmPaymentSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"initiator_id": {"type": "string", "description": "Platform user id of the sender"},
			"initiator_handle": {"type": "string", "description": "Public username of the sender"},
			"idempotency_key": {"type": "string", "description": "Reuse on retries to get the original outcome back"}
		},
		"required": ["initiator_id"]
	}`)

	requestPaymentSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"initiator_id": {"type": "string", "description": "Platform user id of the sender"},
			"initiator_handle": {"type": "string", "description": "Public username of the sender"},
			"recipient": {"type": "string", "description": "Recipient handle, with or without @"},
			"amount": {"type": "string", "description": "Amount in USDC, e.g. \"12.5\""}
		},
		"required": ["initiator_id", "recipient", "amount"]
	}`)

	setWalletSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"initiator_id": {"type": "string", "description": "Platform user id of the sender"},
			"address": {"type": "string", "description": "Hex wallet address payments are sent from, e.g. \"0x742d...\""}
		},
		"required": ["initiator_id", "address"]
	}`)

	checkHandleSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"handle": {"type": "string", "description": "Handle to look up, with or without @"}
		},
		"required": ["handle"]
	}`)
)

type initiatorArgs struct {
	InitiatorID     string `json:"initiator_id"`
	InitiatorHandle string `json:"initiator_handle"`
}

func (a initiatorArgs) initiator() fisher.Initiator {
	return fisher.Initiator{Identity: a.InitiatorID, Handle: a.InitiatorHandle}
}

type requestPaymentArgs struct {
	initiatorArgs
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

type confirmPaymentArgs struct {
	initiatorArgs
	IdempotencyKey string `json:"idempotency_key"`
}

type setWalletArgs struct {
	initiatorArgs
	Address string `json:"address"`
}

type checkHandleArgs struct {
	Handle string `json:"handle"`
}

// Server registers the payment tools on an MCP server
type Server struct {
	service fisher.PaymentService
	server  *mcpsdk.Server
	logger  *zap.Logger
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates an MCP server exposing service's commands as tools
func NewServer(service fisher.PaymentService, impl *mcpsdk.Implementation, opts ...Option) *Server {
	s := &Server{
		service: service,
		server:  mcpsdk.NewServer(impl, nil),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.server.AddTool(&mcpsdk.Tool{
		Name:        ToolSetWallet,
		Description: "Register the wallet the sender pays from. Required before request_payment.",
		InputSchema: setWalletSchema,
	}, s.setWallet)

	s.server.AddTool(&mcpsdk.Tool{
		Name:        ToolRequestPayment,
		Description: "Propose a USDC payment to a social handle. The payment is executed only after confirm_payment.",
		InputSchema: requestPaymentSchema,
	}, s.requestPayment)

	s.server.AddTool(&mcpsdk.Tool{
		Name:        ToolConfirmPayment,
		Description: "Confirm and execute the sender's pending payment.",
		InputSchema: confirmPaymentSchema,
	}, s.confirmPayment)

	s.server.AddTool(&mcpsdk.Tool{
		Name:        ToolCancelPayment,
		Description: "Cancel the sender's pending payment.",
		InputSchema: initiatorSchema,
	}, s.cancelPayment)

	s.server.AddTool(&mcpsdk.Tool{
		Name:        ToolCheckHandle,
		Description: "Check whether a handle has claimed its wallet and how much is waiting for it.",
		InputSchema: checkHandleSchema,
	}, s.checkHandle)

	return s
}

// MCPServer returns the underlying SDK server
func (s *Server) MCPServer() *mcpsdk.Server {
	return s.server
}

// SSEHandler serves the tools over the SSE transport
func (s *Server) SSEHandler() http.Handler {
	return mcpsdk.NewSSEHandler(func(*http.Request) *mcpsdk.Server {
		return s.server
	}, &mcpsdk.SSEOptions{})
}

// RunStdio serves the tools over stdin/stdout until ctx is done or the client disconnects
func (s *Server) RunStdio(ctx context.Context) error {
	return s.server.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) setWallet(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args setWalletArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}

	registration, err := s.service.SetWallet(ctx, args.initiator(), args.Address)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(registration, false), nil
}

func (s *Server) requestPayment(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args requestPaymentArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}

	result, err := s.service.RequestPayment(ctx, args.initiator(), args.Recipient, args.Amount)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(result, false), nil
}

func (s *Server) confirmPayment(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args confirmPaymentArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}

	outcome := s.service.ConfirmPayment(idempotency.ContextWithKey(ctx, args.IdempotencyKey), args.initiator())
	s.logger.Debug("mcp confirm", zap.String("status", string(outcome.Status)), zap.String("tx_hash", outcome.TxHash))
	return jsonResult(outcome, outcome.Status != fisher.ConfirmSettled), nil
}

func (s *Server) cancelPayment(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args initiatorArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}

	result := s.service.CancelPayment(ctx, args.initiator())
	return jsonResult(result, result.Status != fisher.CancelCancelled), nil
}

func (s *Server) checkHandle(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args checkHandleArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}

	info, err := s.service.CheckHandle(ctx, args.Handle)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(info, false), nil
}

func decodeArgs(req *mcpsdk.CallToolRequest, v interface{}) error {
	if len(req.Params.Arguments) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Params.Arguments, v); err != nil {
		return fmt.Errorf("failed to unmarshal arguments: %w", err)
	}
	return nil
}

func jsonResult(v interface{}, isError bool) *mcpsdk.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return errorResult(err)
	}
	return &mcpsdk.CallToolResult{
		IsError: isError,
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}
}

// errorResult renders PaymentErrors as JSON so clients can branch on the code
func errorResult(err error) *mcpsdk.CallToolResult {
	text := err.Error()
	var paymentErr *fisher.PaymentError
	if errors.As(err, &paymentErr) {
		if data, marshalErr := json.Marshal(paymentErr); marshalErr == nil {
			text = string(data)
		}
	}
	return &mcpsdk.CallToolResult{
		IsError: true,
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: text},
		},
	}
}
