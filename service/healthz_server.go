package service

import (
	"context"
	"net/http"

	"github.com/ethereum/go-ethereum/log"
	"github.com/rs/cors"

	"github.com/nexus-skeleton/libcheck/registry"
	"github.com/nexus-skeleton/libcheck/types"
)

// HealthzServer answers liveness requests with the registry's current state
type HealthzServer struct {
	httpServer

	registry *registry.Registry
	runID    func() string
}

type healthzResponse struct {
	Status   string            `json:"status"`
	RunID    string            `json:"runId,omitempty"`
	PassRate int               `json:"passRate"`
	Summary  types.TestSummary `json:"summary"`
}

// NewHealthzServer reports the state of reg. runID may be nil.
func NewHealthzServer(reg *registry.Registry, runID func() string) *HealthzServer {
	if runID == nil {
		runID = func() string { return "" }
	}
	return &HealthzServer{registry: reg, runID: runID}
}

func (h *HealthzServer) Start(ctx context.Context, addr string) error {
	hdlr := http.NewServeMux()
	hdlr.HandleFunc("/healthz", h.Handle)
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
	})
	return h.listenAndServe(ctx, addr, c.Handler(hdlr))
}

func (h *HealthzServer) Shutdown() error {
	return h.shutdown()
}

// Handle always answers 200 while the process is up. The status field is
// "failing" once the latest run recorded a failure, "running" while checks
// are in flight and "ok" otherwise.
func (h *HealthzServer) Handle(w http.ResponseWriter, r *http.Request) {
	log.Trace("Received health check request", "path", r.URL.Path)
	resp := healthzResponse{Status: "ok", RunID: h.runID()}
	if h.registry != nil {
		resp.Summary = h.registry.Summary()
		resp.PassRate = resp.Summary.PassRate()
		switch {
		case resp.Summary.Failed > 0:
			resp.Status = "failing"
		case resp.Summary.Running > 0:
			resp.Status = "running"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
