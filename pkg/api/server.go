package api

import (
	"context"
	"net/http"
	"time"

	"github.com/Narasimha1997/ratelimiter"
	"github.com/go-faster/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/iota-community/workshops/pkg/pusher/sources"
	"github.com/iota-community/workshops/pkg/pusher/sse"
	"github.com/iota-community/workshops/pkg/pusher/websocket"
)

type Server struct {
	logger     *zap.Logger
	handler    *Handler
	httpServer *http.Server
	limiter    *ratelimiter.DefaultLimiter
}

type ServerOptions struct {
	httpMiddleware []httpMiddleware
	postSource     sources.PostSource
}

type ServerOption func(options *ServerOptions)

func WithHttpMiddleware(m ...httpMiddleware) ServerOption {
	return func(options *ServerOptions) {
		options.httpMiddleware = m
	}
}

func WithPostSource(postSource sources.PostSource) ServerOption {
	return func(options *ServerOptions) {
		options.postSource = postSource
	}
}

func NewServer(log *zap.Logger, handler *Handler, address string, opts ...ServerOption) (*Server, error) {
	options := &ServerOptions{}
	for _, o := range opts {
		o(options)
	}
	if options.postSource == nil {
		return nil, errors.New("post source is required")
	}
	serv := Server{
		logger:  log,
		handler: handler,
	}
	middleware := []httpMiddleware{loggingMiddleware(log)}
	if rps := handler.limits.RequestsPerSecond; rps > 0 {
		serv.limiter = ratelimiter.NewDefaultLimiter(rps, time.Second)
		middleware = append(middleware, rateLimitMiddleware(serv.limiter))
	}
	middleware = append(middleware, options.httpMiddleware...)

	mux := http.NewServeMux()
	route := func(pattern, operation string, h http.HandlerFunc) {
		mws := append([]httpMiddleware{metricsMiddleware(operation)}, middleware...)
		mux.Handle(pattern, applyMiddlewares(h, mws...))
	}
	route("POST /v1/posts", "SubmitPost", handler.SubmitPost)
	route("GET /v1/posts", "GetPosts", handler.GetPosts)
	route("GET /v1/posts/{txid}", "GetPost", handler.GetPost)
	route("GET /v1/signatures/{id}", "GetSignatureRequest", handler.GetSignatureRequest)
	route("POST /v1/signatures/{id}", "ApproveSignature", handler.ApproveSignature)
	route("DELETE /v1/signatures/{id}", "RejectSignature", handler.RejectSignature)
	route("GET /v1/accounts/{address}/effects", "GetLastEffects", handler.GetLastEffects)
	route("GET /v1/objects/{id}", "GetObjectRef", handler.GetObjectRef)
	route("GET /v1/sponsor/config", "GetSponsorConfig", handler.GetSponsorConfig)

	sseHandler := sse.NewHandler(options.postSource)
	mux.Handle("GET /v1/sse/posts", applyMiddlewares(sse.Stream(log, sseHandler.SubscribeToPosts), middleware...))
	mux.Handle("GET /v1/ws/posts", applyMiddlewares(websocket.Handler(log, options.postSource), middleware...))

	serv.httpServer = &http.Server{
		Addr:    address,
		Handler: mux,
	}
	return &serv, nil
}

// Run serves http until Shutdown is called.
func (s *Server) Run() {
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		s.logger.Info("workshops api quit")
		return
	}
	s.logger.Fatal("ListenAndServe() failed", zap.Error(err))
}

// Shutdown stops accepting requests, aborts pending signature requests
// and waits for background submissions until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	err = multierr.Append(err, s.handler.Stop(ctx))
	if s.limiter != nil {
		s.limiter.Kill()
	}
	return err
}

// Handler exposes the routes, tests use it with httptest.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
