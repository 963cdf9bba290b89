// Package http exposes the payment commands over a JSON HTTP API.
//
// The caller's transport identity is taken from request headers set by a
// trusted front (for example the chat bot gateway):
//
//	X-Initiator-Id:     opaque user id on the platform
//	X-Initiator-Handle: the user's public username, if they have one
//
// Confirm also honours an Idempotency-Key header when the service is wrapped
// with the idempotency extension.
package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	fisher "github.com/socialpay/fisher"
)

const (
	HeaderInitiatorID     = "X-Initiator-Id"
	HeaderInitiatorHandle = "X-Initiator-Handle"
	HeaderIdempotencyKey  = "Idempotency-Key"

	// ErrCodeRateLimited is returned with 429 responses
	ErrCodeRateLimited = "rate_limited"
	// ErrCodeInvalidRequest is returned when a body fails schema validation
	ErrCodeInvalidRequest = "invalid_request"

	initiatorKey = "initiator"
)

// Server routes HTTP requests to a payment service
type Server struct {
	service fisher.PaymentService
	limiter *IdentityLimiter
	mcp     http.Handler
	logger  *zap.Logger
	engine  *gin.Engine
}

// Option configures a Server
type Option func(*Server)

// WithRateLimit limits each identity to rps requests per second with the given burst
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps > 0 {
			s.limiter = NewIdentityLimiter(rps, burst)
		}
	}
}

// WithMCPHandler mounts an MCP transport handler at /mcp, outside the rate limiter
func WithMCPHandler(h http.Handler) Option {
	return func(s *Server) {
		s.mcp = h
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a server for service
func NewServer(service fisher.PaymentService, opts ...Option) *Server {
	s := &Server{
		service: service,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLogger())
	if s.mcp != nil {
		engine.Any("/mcp", gin.WrapH(s.mcp))
	}
	if s.limiter != nil {
		engine.Use(s.limiter.Middleware())
	}

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := engine.Group("/v1")
	v1.GET("/handles/:handle", s.checkHandle)

	payments := v1.Group("", requireInitiator())
	payments.PUT("/wallet", s.setWallet)
	payments.POST("/payments", s.requestPayment)
	payments.POST("/payments/confirm", s.confirmPayment)
	payments.POST("/payments/cancel", s.cancelPayment)
	payments.GET("/payments/pending", s.pendingPayment)
	payments.GET("/balance", s.balance)

	s.engine = engine
	return s
}

// Handler returns the server's http.Handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// requireInitiator rejects requests without a transport identity
func requireInitiator() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := c.GetHeader(HeaderInitiatorID)
		if identity == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": fisher.NewPaymentError(fisher.ErrCodeMissingHandle, "missing "+HeaderInitiatorID+" header", nil),
			})
			return
		}
		c.Set(initiatorKey, fisher.Initiator{
			Identity: identity,
			Handle:   c.GetHeader(HeaderInitiatorHandle),
		})
		c.Next()
	}
}

func initiatorFrom(c *gin.Context) fisher.Initiator {
	initiator, _ := c.MustGet(initiatorKey).(fisher.Initiator)
	return initiator
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
