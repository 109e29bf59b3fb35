package status

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/eitchpi/narrartive-backend/internal/fulfill"
	"github.com/eitchpi/narrartive-backend/internal/tracker"
	"github.com/eitchpi/narrartive-backend/pkg/logger"
)

// Server 只读状态端点
//
// Tracker 与运行统计的投影，不承载任何处理逻辑。
type Server struct {
	orch         *fulfill.Orchestrator
	trackerStore *tracker.Store
	log          logger.Logger
	httpServer   *http.Server
}

// NewServer 创建状态端点
func NewServer(orch *fulfill.Orchestrator, trackerStore *tracker.Store, log logger.Logger) *Server {
	return &Server{
		orch:         orch,
		trackerStore: trackerStore,
		log:          log,
	}
}

// Response /status 响应体
type Response struct {
	TrackedFiles    int           `json:"tracked_files"`
	TrackedOrders   int           `json:"tracked_orders"`
	LastTrackedFile string        `json:"last_tracked_file,omitempty"`
	PendingFailures int           `json:"pending_failures"`
	Stats           fulfill.Stats `json:"stats"`
}

// Start 启动 HTTP 服务（非阻塞）
func (s *Server) Start(addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		s.log.Infof(context.Background(), "[Status] Listening on %s", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Errorf(context.Background(), "[Status] Server error: %v", err)
		}
	}()
}

// Shutdown 停止 HTTP 服务
func (s *Server) Shutdown(ctx context.Context) {
	if s.httpServer == nil {
		return
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.log.Warnf(ctx, "[Status] Shutdown error: %v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp := Response{
		Stats: s.orch.GetStats(),
	}

	processed, err := s.trackerStore.LoadProcessed(ctx)
	if err != nil {
		http.Error(w, "tracker unavailable", http.StatusServiceUnavailable)
		return
	}
	resp.TrackedFiles = processed.FileCount()
	resp.TrackedOrders = processed.OrderCount()
	resp.LastTrackedFile = processed.LastFile

	failed, err := s.trackerStore.LoadFailed(ctx)
	if err == nil {
		resp.PendingFailures = failed.Len()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
