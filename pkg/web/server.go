// Package web serves the optional status dashboard: a JSON API plus
// websocket feeds carrying state updates and preview frames.
package web

import (
	"context"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/tempscope/tempscope/internal/log"
	"github.com/tempscope/tempscope/pkg/alert"
	"github.com/tempscope/tempscope/pkg/monitor"
)

// Ring of recent temperature log lines served at /api/logs.
const maxLogLines = 500

// Server is the dashboard HTTP and websocket server.
type Server struct {
	app  *fiber.App
	addr string

	stateFn  func() monitor.State
	eventsFn func() []alert.Event

	logsMu sync.RWMutex
	logs   []string

	statusHub *hub
	frameHub  *hub
}

// New creates a dashboard server. stateFn and eventsFn supply the
// data behind the status and event endpoints.
func New(addr string, stateFn func() monitor.State, eventsFn func() []alert.Event) *Server {
	s := &Server{
		addr:      addr,
		stateFn:   stateFn,
		eventsFn:  eventsFn,
		logs:      make([]string, 0, maxLogLines),
		statusHub: newHub("status"),
		frameHub:  newHub("frames"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "tempscope dashboard",
		DisableStartupMessage: true,
	})

	// CORS for local use
	app.Use(cors.New())

	app.Get("/", s.handleIndex)

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/events", s.handleEvents)
	api.Get("/logs", s.handleLogs)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/frames", websocket.New(s.handleFramesWS))

	s.app = app
	return s
}

// Run serves until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go s.statusHub.run()
	go s.frameHub.run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listen(s.addr)
	}()
	log.Info("dashboard listening", "addr", s.addr)

	select {
	case <-ctx.Done():
		return s.app.Shutdown()
	case err := <-errCh:
		return err
	}
}

// PushState broadcasts a state update to status subscribers.
func (s *Server) PushState(st monitor.State) {
	s.statusHub.pushJSON(st)
}

// PushFrame broadcasts an annotated JPEG to frame subscribers.
func (s *Server) PushFrame(jpeg []byte) {
	s.frameHub.pushBinary(jpeg)
}

// AddLogLine records a temperature log line for /api/logs.
func (s *Server) AddLogLine(line string) {
	s.logsMu.Lock()
	defer s.logsMu.Unlock()
	s.logs = append(s.logs, line)
	if len(s.logs) > maxLogLines {
		s.logs = s.logs[1:]
	}
}
