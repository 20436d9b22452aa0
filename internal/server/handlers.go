package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nao1215/webcrawl/internal/crawler"
	"github.com/nao1215/webcrawl/internal/model"
)

// statusResponse is the body of GET /status.
type statusResponse struct {
	// Status is always "ok"; any answer at all means the server is alive.
	Status  string `json:"status"`
	Version string `json:"version"`
}

// errorResponse is the body of every non-2xx answer.
type errorResponse struct {
	Error string `json:"error"`
}

// handleCrawl runs one crawl synchronously and answers with its pages.
//
// An invalid start URL or limit is the client's fault (400). Any other
// error from Run, including a client that disconnected mid-crawl, is
// logged and answered with 500. Per-URL fetch failures are not errors here;
// they only shrink the page list.
func (s *Server) handleCrawl(w http.ResponseWriter, r *http.Request) {
	var req model.CrawlRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	cfg := s.crawlConfig(&req)
	result, err := s.runner.Run(r.Context(), cfg)
	if err != nil {
		var cfgErr *crawler.ConfigError
		if errors.As(err, &cfgErr) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("crawl failed", "start_url", req.StartURL, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, model.NewPageResponses(result.Pages))
}

// crawlConfig applies the request on top of the server defaults. Fields the
// request omits keep the configured value.
func (s *Server) crawlConfig(req *model.CrawlRequest) crawler.Config {
	cfg := s.cfg.CrawlConfig(req.StartURL)
	if req.DepthLimit != nil {
		cfg.DepthLimit = *req.DepthLimit
	}
	if req.MaxPages != nil {
		cfg.MaxPages = *req.MaxPages
	}
	if req.SameDomain != nil {
		cfg.SameDomain = *req.SameDomain
	}
	if req.DomainMatch != "" {
		cfg.DomainMatch = crawler.DomainMatch(req.DomainMatch)
	}
	return cfg
}

// handleStatus answers GET /status.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok", Version: s.version})
}

// handleListRuns answers GET /runs with up to runsLimit runs, newest first.
// Without a run store the route exists but answers 404.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusNotFound, "run history is not enabled")
		return
	}

	runs, err := s.runs.ListRuns(r.Context(), runsLimit)
	if err != nil {
		s.logger.Error("failed to list runs", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []model.RunSummary{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// handleListPages answers GET /runs/{id}/pages. An unknown ID is a 404,
// while a known run without pages is an empty list.
func (s *Server) handleListPages(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusNotFound, "run history is not enabled")
		return
	}

	id := r.PathValue("id")
	run, err := s.runs.GetRun(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to get run", "run_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	pages, err := s.runs.ListPages(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to list pages", "run_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list pages")
		return
	}
	writeJSON(w, http.StatusOK, pages)
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
