package service

import (
	"context"
	"net/http"
	"sync"
)

// httpServer owns the lifecycle of one listener. Shutdown may be called from
// a different goroutine than Start, and before it. A server shut down before
// it started never listens.
type httpServer struct {
	mu     sync.Mutex
	ctx    context.Context
	server *http.Server
	closed bool
}

func (h *httpServer) listenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return http.ErrServerClosed
	}
	srv := &http.Server{
		Handler: handler,
		Addr:    addr,
	}
	h.server = srv
	h.ctx = ctx
	h.mu.Unlock()

	return srv.ListenAndServe()
}

func (h *httpServer) shutdown() error {
	h.mu.Lock()
	h.closed = true
	srv, ctx := h.server, h.ctx
	h.mu.Unlock()

	if srv == nil {
		return nil
	}
	if ctx == nil || ctx.Err() != nil {
		ctx = context.Background()
	}
	return srv.Shutdown(ctx)
}
