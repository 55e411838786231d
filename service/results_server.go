package service

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/nexus-skeleton/libcheck/metrics"
	"github.com/nexus-skeleton/libcheck/registry"
	"github.com/nexus-skeleton/libcheck/types"
)

// ResultsServer exposes the registry over HTTP
type ResultsServer struct {
	registry *registry.Registry
	info     types.AppInfo
	runID    func() string

	httpServer
}

type errorResponse struct {
	Error string `json:"error"`
}

type summaryResponse struct {
	Summary  types.TestSummary `json:"summary"`
	PassRate int               `json:"passRate"`
}

// NewResultsServer creates a server for reg. runID reports the id of the most recent run and may be nil.
func NewResultsServer(reg *registry.Registry, info types.AppInfo, runID func() string) *ResultsServer {
	if runID == nil {
		runID = func() string { return "" }
	}
	return &ResultsServer{
		registry: reg,
		info:     info,
		runID:    runID,
	}
}

// Router returns the API routes
func (s *ResultsServer) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/results", s.handleResults).Methods(http.MethodGet)
	r.HandleFunc("/results/{id}", s.handleResult).Methods(http.MethodGet)
	r.HandleFunc("/categories/{category}", s.handleCategory).Methods(http.MethodGet)
	r.HandleFunc("/summary", s.handleSummary).Methods(http.MethodGet)
	r.HandleFunc("/export", s.handleExport).Methods(http.MethodGet)
	r.HandleFunc("/reset", s.handleReset).Methods(http.MethodPost)
	r.HandleFunc("/stream", s.handleStream).Methods(http.MethodGet)
	return r
}

// Handler returns the router wrapped in CORS handling
func (s *ResultsServer) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	})
	return c.Handler(s.Router())
}

func (s *ResultsServer) Start(ctx context.Context, addr string) error {
	return s.listenAndServe(ctx, addr, s.Handler())
}

func (s *ResultsServer) Shutdown() error {
	return s.shutdown()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Error("failed to marshal response", "error", err)
		metrics.RecordErrorDetails("results api", err)
		status = http.StatusInternalServerError
		data = []byte(`{"error":"internal server error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		log.Error("failed to write response", "error", err)
	}
}

func (s *ResultsServer) handleResults(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Results())
}

func (s *ResultsServer) handleResult(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec, ok := s.registry.Result(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "test not found: " + id})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *ResultsServer) handleCategory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.ResultsByCategory(mux.Vars(r)["category"]))
}

func (s *ResultsServer) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary := s.registry.Summary()
	writeJSON(w, http.StatusOK, summaryResponse{Summary: summary, PassRate: summary.PassRate()})
}

func (s *ResultsServer) handleExport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Export(s.info, s.runID()))
}

func (s *ResultsServer) handleReset(w http.ResponseWriter, r *http.Request) {
	s.registry.Reset()
	log.Info("Registry reset via API", "remote", r.RemoteAddr)
	w.WriteHeader(http.StatusNoContent)
}
