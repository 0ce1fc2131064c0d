package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/tdm/pkg/config"
	"github.com/tdm/pkg/metrics"
)

// DefaultDeliverTimeout bounds how long a run waits on a slow client for the
// final report and status.
const DefaultDeliverTimeout = 10 * time.Second

// Server runs one session at a time and broadcasts it to every client.
// Frames go out best-effort; the report and final status are delivered.
type Server struct {
	Hub            *Hub
	Config         config.Config
	Seed           uint64
	FrameInterval  time.Duration
	DeliverTimeout time.Duration

	ctx     context.Context
	log     *logrus.Entry
	metrics *metrics.Metrics

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

// NewServer binds sessions to ctx; cancelling it stops a run in progress.
func NewServer(ctx context.Context, cfg config.Config, seed uint64, log *logrus.Entry, m *metrics.Metrics) *Server {
	return &Server{
		Hub:     NewHub(log, m),
		Config:  cfg,
		Seed:    seed,
		ctx:     ctx,
		log:     log,
		metrics: m,
	}
}

// Routes mounts /ws, /api/status and, when metrics are enabled, /metrics.
func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.handleWS)
	r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
	return r
}

// Wait blocks until a run in progress has finished.
func (s *Server) Wait() { s.wg.Wait() }

func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 65536,
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	client := s.Hub.register(conn)
	defer s.Hub.unregister(client)

	// Handle incoming control messages from client (read pump)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req RunRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			s.log.WithError(err).Debug("ignoring malformed control message")
			continue
		}
		if req.Type == TypeRun {
			s.start(req)
		}
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"running":  s.Running(),
		"clients":  s.Hub.Len(),
		"channels": s.Config.Channels,
		"samples":  s.Config.Samples,
	})
}

// start launches a session unless one is already running.
func (s *Server) start(req RunRequest) {
	cfg := s.Config
	seed := s.Seed
	if req.Seed != nil {
		seed = *req.Seed
	}
	if req.Channels > 0 {
		cfg.Channels = req.Channels
	}
	if req.Samples > 0 {
		cfg.Samples = req.Samples
	}
	if err := cfg.Validate(); err != nil {
		s.Hub.Broadcast(&StatusMsg{Type: TypeStatus, Error: err.Error()})
		return
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.Hub.Broadcast(&StatusMsg{Type: TypeStatus, Running: true, Error: "run already in progress"})
		return
	}
	s.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	sess := NewSession(cfg, seed, s.FrameInterval)
	go s.run(sess)
}

func (s *Server) run(sess Session) {
	defer s.wg.Done()
	runID := sess.RunID.String()
	log := s.log.WithFields(logrus.Fields{"run_id": runID, "seed": sess.Params.Seed})
	log.WithFields(logrus.Fields{"channels": sess.Params.Channels, "samples": sess.Params.Samples}).Info("run started")
	s.Hub.Broadcast(&StatusMsg{Type: TypeStatus, RunID: runID, Running: true, Channels: sess.Params.Channels, Samples: sess.Params.Samples})

	start := time.Now()
	rep, err := sess.Run(s.ctx, func(msg interface{}) {
		s.Hub.Broadcast(msg)
		if s.metrics != nil {
			s.metrics.FramesSent.Inc()
		}
	})

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	if err != nil {
		log.WithError(err).Error("run failed")
		s.deliver(&StatusMsg{Type: TypeStatus, RunID: runID, Error: err.Error()})
		return
	}
	s.metrics.ObserveReport(rep)
	s.metrics.ObserveRecords("input", sess.Params.Channels*sess.Params.Samples)
	s.metrics.ObserveRecords("output", sess.Params.Channels*sess.Params.Samples)
	s.metrics.ObserveRecords("calibration", sess.Params.Channels)
	log.WithFields(logrus.Fields{
		"episodes":      len(rep.Episodes),
		"long_episodes": len(rep.Long),
		"elapsed":       time.Since(start),
	}).Info("run finished")
	s.deliver(&ReportMsg{Type: TypeReport, RunID: runID, Report: rep})
	s.deliver(&StatusMsg{Type: TypeStatus, RunID: runID})
}

func (s *Server) deliver(msg interface{}) {
	timeout := s.DeliverTimeout
	if timeout <= 0 {
		timeout = DefaultDeliverTimeout
	}
	s.Hub.Deliver(msg, timeout)
}
