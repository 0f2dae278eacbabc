package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	"github.com/gorilla/mux"
	"github.com/rxtech-lab/lean-toolbox/internal/types"
	"github.com/rxtech-lab/lean-toolbox/pkg/errors"
	"github.com/rxtech-lab/lean-toolbox/pkg/lean"
	"github.com/rxtech-lab/lean-toolbox/pkg/marketdata"
	"go.uber.org/zap"
)

// maxSnapshotDays bounds the snapshot window, since the loader checks one file per day.
const maxSnapshotDays = 3660

type errorResponse struct {
	Error string           `json:"error"`
	Code  errors.ErrorCode `json:"code,omitempty"`
}

// snapshotResponse is one page of a snapshot as served over HTTP.
type snapshotResponse struct {
	ID           string            `json:"id"`
	Symbol       string            `json:"symbol"`
	Resolution   string            `json:"resolution"`
	StartDate    civil.Date        `json:"startDate"`
	EndDate      civil.Date        `json:"endDate"`
	SourceFiles  []string          `json:"sourceFiles"`
	LoadedAt     time.Time         `json:"loadedAt"`
	PageNumber   int               `json:"pageNumber"`
	PageSize     int               `json:"pageSize"`
	TotalRecords int               `json:"totalRecords"`
	TotalPages   int               `json:"totalPages"`
	Records      []types.BarRecord `json:"records"`
}

// handleCreateJob handles POST /api/jobs
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req lean.DownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error(), Code: errors.ErrCodeInvalidParameter})

		return
	}

	job, err := s.downloads.StartDownload(r.Context(), req)
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusAccepted, job)
}

// handleListJobs handles GET /api/jobs
func (s *Server) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	jobs := s.downloads.Jobs()
	if jobs == nil {
		jobs = []types.JobInfo{}
	}

	writeJSON(w, http.StatusOK, jobs)
}

// handleGetJob handles GET /api/jobs/{id}
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]

	job, err := s.downloads.Manager().Get(jobID).Take()
	if err != nil {
		s.writeError(w, errors.Newf(errors.ErrCodeJobNotFound, "job %s not found", jobID))

		return
	}

	writeJSON(w, http.StatusOK, job)
}

// handleStopJob handles DELETE /api/jobs/{id}
func (s *Server) handleStopJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]

	if s.downloads.Manager().Get(jobID).IsNone() {
		s.writeError(w, errors.Newf(errors.ErrCodeJobNotFound, "job %s not found", jobID))

		return
	}

	stopped := s.downloads.StopDownload(r.Context(), jobID)
	job := s.downloads.Manager().Get(jobID).Unwrap()

	if !stopped {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "job " + jobID + " is already " + string(job.Status)})

		return
	}

	writeJSON(w, http.StatusOK, job)
}

// handleSnapshot handles GET /api/snapshots
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	req, err := s.snapshotRequest(r)
	if err != nil {
		s.writeError(w, err)

		return
	}

	page, err := s.snapshots.Load(r.Context(), req)
	if err != nil {
		s.writeError(w, err)

		return
	}

	snapshot := page.Snapshot

	writeJSON(w, http.StatusOK, snapshotResponse{
		ID:           snapshot.ID.String(),
		Symbol:       snapshot.Symbol,
		Resolution:   snapshot.Resolution,
		StartDate:    snapshot.StartDate,
		EndDate:      snapshot.EndDate,
		SourceFiles:  snapshot.SourceFiles,
		LoadedAt:     snapshot.LoadedAt,
		PageNumber:   page.PageNumber,
		PageSize:     page.PageSize,
		TotalRecords: page.TotalRecords,
		TotalPages:   page.TotalPages(),
		Records:      snapshot.Records(),
	})
}

// handleProviders handles GET /api/providers
func (s *Server) handleProviders(w http.ResponseWriter, _ *http.Request) {
	names := marketdata.GetSupportedProviders()
	providers := make([]marketdata.ProviderInfo, 0, len(names))

	for _, name := range names {
		info, err := marketdata.GetProviderInfo(name)
		if err != nil {
			s.writeError(w, err)

			return
		}

		providers = append(providers, info)
	}

	writeJSON(w, http.StatusOK, providers)
}

// snapshotRequest reads the query string over the default request for today.
func (s *Server) snapshotRequest(r *http.Request) (lean.SnapshotRequest, error) {
	query := r.URL.Query()
	req := lean.DefaultSnapshotRequest(civil.DateOf(s.now()))

	if value := query.Get("symbol"); value != "" {
		req.Symbol = value
	}

	if value := query.Get("resolution"); value != "" {
		req.Resolution = value
	}

	if value := query.Get("securityType"); value != "" {
		req.SecurityType = value
	}

	if value := query.Get("dataDir"); value != "" {
		req.DataDirectory = value
	}

	var problems []string

	dates := []struct {
		name   string
		target *civil.Date
	}{{"start", &req.StartDate}, {"end", &req.EndDate}}

	for _, date := range dates {
		value := query.Get(date.name)
		if value == "" {
			continue
		}

		parsed, err := civil.ParseDate(value)
		if err != nil {
			problems = append(problems, date.name+" must be a date formatted as YYYY-MM-DD.")

			continue
		}

		*date.target = parsed
	}

	numbers := []struct {
		name   string
		target *int
	}{{"page", &req.PageNumber}, {"pageSize", &req.PageSize}}

	for _, number := range numbers {
		value := query.Get(number.name)
		if value == "" {
			continue
		}

		parsed, err := strconv.Atoi(value)
		if err != nil {
			problems = append(problems, number.name+" must be an integer.")

			continue
		}

		*number.target = parsed
	}

	if days := req.EndDate.DaysSince(req.StartDate); days >= maxSnapshotDays {
		problems = append(problems, fmt.Sprintf("The date window spans %d days; at most %d are allowed.", days+1, maxSnapshotDays))
	}

	if len(problems) > 0 {
		return req, errors.NewValidationError(problems)
	}

	return req, nil
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.Error(err))
	}

	code := errors.GetCode(err)
	if errors.IsValidationError(err) {
		code = errors.ErrCodeValidationFailed
	}

	writeJSON(w, status, errorResponse{Error: err.Error(), Code: code})
}

func statusFor(err error) int {
	if errors.IsValidationError(err) {
		return http.StatusBadRequest
	}

	code := errors.GetCode(err)

	switch {
	case code == errors.ErrCodeJobNotFound || code == errors.ErrCodeDataNotFound:
		return http.StatusNotFound
	case code >= 100 && code < 200:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // the status line is already written
	json.NewEncoder(w).Encode(body)
}
