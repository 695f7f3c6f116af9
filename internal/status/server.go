package status

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Bendaman/EvtFilter/internal/pool"
	"github.com/Bendaman/EvtFilter/internal/report"
)

// Server exposes live run progress over HTTP: a stats snapshot for
// polling and a websocket stream of reporter diagnostics. Long runs
// over large evidence trees are otherwise a black box.
type Server struct {
	engine *gin.Engine
	rep    *report.Reporter
	stats  func() pool.Stats
	addr   string
}

// New creates the status server. stats is polled on every request, so
// it must be safe to call while the pool runs.
func New(rep *report.Reporter, stats func() pool.Stats, addr string) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine: engine,
		rep:    rep,
		stats:  stats,
		addr:   addr,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		st := s.stats()
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"done":   st.Done,
			"total":  st.Total,
		})
	})

	s.engine.GET("/api/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.stats())
	})

	s.engine.GET("/ws", s.handleWebSocket)
}

// Start runs the server. Blocks; callers run it on its own goroutine
// and let process exit tear it down.
func (s *Server) Start() error {
	return s.engine.Run(s.addr)
}
