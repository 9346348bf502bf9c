// Package httpserver implements the `cortex serve` read-only introspection
// surface: /healthz, /board, /tasks, /worktrees, /events (a tail of the
// worktree event log .worktrees/events.jsonl) and a live /ws/events stream
// of the same log, per SPEC_FULL.md's DOMAIN STACK. Grounded on the
// teacher's gin-based ops surface where one exists, enriched with
// websocket streaming and prometheus metrics per the pack's other repos.
package httpserver

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cortexlane/cortex/internal/board"
	"github.com/cortexlane/cortex/internal/taskstore"
	"github.com/cortexlane/cortex/internal/worktree"
)

// Metrics are the counters/gauges exposed on /metrics, per SPEC_FULL.md
// "prometheus/client_golang | Observability".
type Metrics struct {
	ToolCalls        prometheus.Counter
	BackgroundJobs    prometheus.Counter
	CompactionRuns   prometheus.Counter
	BoardClaims      prometheus.Counter
}

// NewMetrics registers the runtime's counters against the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		ToolCalls:       promauto.NewCounter(prometheus.CounterOpts{Name: "cortex_tool_calls_total"}),
		BackgroundJobs:  promauto.NewCounter(prometheus.CounterOpts{Name: "cortex_background_jobs_total"}),
		CompactionRuns:  promauto.NewCounter(prometheus.CounterOpts{Name: "cortex_compaction_runs_total"}),
		BoardClaims:     promauto.NewCounter(prometheus.CounterOpts{Name: "cortex_board_claims_total"}),
	}
}

// WorktreeLister lists every lane under management, per
// worktree.Manager.ListAll's rendered text format.
type WorktreeLister interface {
	ListAll() (string, error)
}

// Server wires the read-only ops surface.
type Server struct {
	engine    *gin.Engine
	tasks     *taskstore.Store
	board     *board.Board
	events    *worktree.EventLog
	worktrees WorktreeLister
	metrics   *Metrics
	upgrade   websocket.Upgrader
}

// New builds the gin engine with CORS enabled for a browser dashboard
// client, per SPEC_FULL.md. worktrees may be nil when no worktree manager
// applies to the session (e.g. outside a git repository).
func New(tasks *taskstore.Store, b *board.Board, events *worktree.EventLog, worktrees WorktreeLister, metrics *Metrics) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET"},
	}))

	s := &Server{
		engine: engine, tasks: tasks, board: b, events: events, worktrees: worktrees, metrics: metrics,
		upgrade: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.handleHealthz)
	s.engine.GET("/tasks", s.handleTasks)
	s.engine.GET("/board", s.handleBoard)
	s.engine.GET("/worktrees", s.handleWorktrees)
	s.engine.GET("/events", s.handleEvents)
	s.engine.GET("/ws/events", s.handleEventsWS)
	if s.metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}

func (s *Server) handleTasks(c *gin.Context) {
	listing, err := s.tasks.ListAll()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": listing})
}

func (s *Server) handleBoard(c *gin.Context) {
	unclaimed, err := s.board.ScanUnclaimed()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unclaimed": unclaimed})
}

func (s *Server) handleWorktrees(c *gin.Context) {
	if s.worktrees == nil {
		c.JSON(http.StatusOK, gin.H{"worktrees": "no worktree manager for this session"})
		return
	}
	listing, err := s.worktrees.ListAll()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"worktrees": listing})
}

func (s *Server) handleEvents(c *gin.Context) {
	if s.events == nil {
		c.JSON(http.StatusOK, gin.H{"events": []any{}})
		return
	}
	events, err := s.events.ListRecent(200)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if events == nil {
		events = []map[string]any{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// handleEventsWS streams the worktree event log to a connected client,
// polling the log for new lines, per SPEC_FULL.md's "/ws/events mirroring
// spec §6(b)'s streamed protocol at the ops layer."
func (s *Server) handleEventsWS(c *gin.Context) {
	conn, err := s.upgrade.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	sent := 0
	for range ticker.C {
		if s.events == nil {
			continue
		}
		events, err := s.events.ListRecent(0)
		if err != nil {
			return
		}
		if len(events) <= sent {
			continue
		}
		for _, e := range events[sent:] {
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		}
		sent = len(events)
	}
}

// Run starts the HTTP server on addr, blocking until it errors or the
// process is terminated.
func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}
