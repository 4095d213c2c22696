package web

import (
	"github.com/kozaktomas/face-vector/internal/web/handlers"
)

func (s *Server) setupRoutes(invoker handlers.Invoker) {
	invokeHandler := handlers.NewInvokeHandler(invoker)

	// Health check
	s.router.Get("/health", handlers.HealthCheck)

	// Runs one invocation per request
	s.router.Post("/invoke", invokeHandler.Invoke)
}
