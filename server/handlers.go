package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/petal-labs/integrald"
	"github.com/petal-labs/integrald/expr"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000

	missingFieldsMessage = "expression, lower_limit and upper_limit are required."
)

// IntegrateRequest is the body of POST /integrate.
type IntegrateRequest struct {
	Expression *string  `json:"expression"`
	LowerLimit *float64 `json:"lower_limit"`
	UpperLimit *float64 `json:"upper_limit"`
}

// IntegrateResponse always carries exactly one non-null field.
type IntegrateResponse struct {
	Area  *float64 `json:"area"`
	Error *string  `json:"error"`
}

// BatchRequest is the body of POST /api/integrate/batch.
type BatchRequest struct {
	Items []IntegrateRequest `json:"items"`
}

// BatchResponse holds one result per request item, in request order.
type BatchResponse struct {
	Results []IntegrateResponse `json:"results"`
}

// SampleRequest is the body of POST /api/sample. Points defaults to
// expr.DefaultSamples.
type SampleRequest struct {
	Expression *string  `json:"expression"`
	LowerLimit *float64 `json:"lower_limit"`
	UpperLimit *float64 `json:"upper_limit"`
	Points     int      `json:"points"`
}

// SampleResponse carries either the sampled points or an error. A point
// whose y is null has no finite value.
type SampleResponse struct {
	Points []expr.Point `json:"points"`
	Error  *string      `json:"error"`
}

func errorResponse(message string) IntegrateResponse {
	return IntegrateResponse{Error: &message}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleIntegrate answers domain failures with 200 and a populated error
// field; only unreadable requests get a non-2xx status.
func (s *Server) handleIntegrate(w http.ResponseWriter, r *http.Request) {
	var req IntegrateRequest
	if status, msg := decodeBody(r, &req); status != 0 {
		writeJSON(w, status, errorResponse(msg))
		return
	}
	writeJSON(w, http.StatusOK, s.integrate(r.Context(), req))
}

func (s *Server) handleIntegrateBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if status, msg := decodeBody(r, &req); status != 0 {
		writeError(w, status, "invalid_request", msg)
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "items must not be empty")
		return
	}
	if len(req.Items) > s.batchLimit {
		writeError(w, http.StatusBadRequest, "batch_too_large",
			fmt.Sprintf("at most %d items per batch", s.batchLimit))
		return
	}

	results := make([]IntegrateResponse, len(req.Items))
	var g errgroup.Group
	g.SetLimit(min(s.batchLimit, runtime.GOMAXPROCS(0)))
	for i, item := range req.Items {
		g.Go(func() error {
			results[i] = s.integrate(r.Context(), item)
			return nil
		})
	}
	_ = g.Wait()

	writeJSON(w, http.StatusOK, BatchResponse{Results: results})
}

func (s *Server) integrate(ctx context.Context, req IntegrateRequest) IntegrateResponse {
	if req.Expression == nil || req.LowerLimit == nil || req.UpperLimit == nil {
		return errorResponse(missingFieldsMessage)
	}
	expression, lower, upper := *req.Expression, *req.LowerLimit, *req.UpperLimit

	calc, err := s.solver.SolveContext(ctx, expression, lower, upper)
	category := integrald.Categorize(err)
	s.logger.Info("integration",
		"expression", expression,
		"lower", lower,
		"upper", upper,
		"category", string(category),
		"duration", calc.Duration,
	)
	if category == integrald.CategoryInternal {
		s.logger.Error("integration failed unexpectedly", "expression", expression, "error", errors.Unwrap(err))
	}

	var resp IntegrateResponse
	if err != nil {
		resp = errorResponse(integrald.Message(err))
	} else {
		area := calc.Area
		resp = IntegrateResponse{Area: &area}
	}

	s.record(ctx, expression, lower, upper, calc, resp, category)
	return resp
}

func (s *Server) record(ctx context.Context, expression string, lower, upper float64, calc integrald.Calculation, resp IntegrateResponse, category integrald.Category) {
	if s.history == nil {
		return
	}
	rec := HistoryRecord{
		ID:            newRecordID(),
		Expression:    expression,
		Lower:         lower,
		Upper:         upper,
		Area:          resp.Area,
		Category:      string(category),
		ErrorEstimate: calc.ErrorEstimate,
		Evaluations:   calc.Evaluations,
		DurationMS:    float64(calc.Duration) / float64(time.Millisecond),
		CreatedAt:     s.now(),
	}
	if resp.Error != nil {
		rec.Error = *resp.Error
	}
	// History is best effort; the caller already has its answer.
	if err := s.history.Append(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Warn("recording history failed", "error", err)
	}
}

// handleSample uses the same status rules as handleIntegrate.
func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	var req SampleRequest
	if status, msg := decodeBody(r, &req); status != 0 {
		writeJSON(w, status, SampleResponse{Error: &msg})
		return
	}
	if req.Expression == nil || req.LowerLimit == nil || req.UpperLimit == nil {
		msg := missingFieldsMessage
		writeJSON(w, http.StatusOK, SampleResponse{Error: &msg})
		return
	}

	points, err := s.solver.Sample(*req.Expression, *req.LowerLimit, *req.UpperLimit, req.Points)
	s.logger.Debug("sample",
		"expression", *req.Expression,
		"points", len(points),
		"category", string(integrald.Categorize(err)),
	)
	if err != nil {
		msg := integrald.Message(err)
		writeJSON(w, http.StatusOK, SampleResponse{Error: &msg})
		return
	}
	writeJSON(w, http.StatusOK, SampleResponse{Points: points})
}

func (s *Server) handleFunctions(w http.ResponseWriter, _ *http.Request) {
	type function struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Arity       int    `json:"arity"`
	}
	type constant struct {
		Name        string  `json:"name"`
		Description string  `json:"description"`
		Value       float64 `json:"value"`
	}
	body := struct {
		Variable  string     `json:"variable"`
		Functions []function `json:"functions"`
		Constants []constant `json:"constants"`
		Operators []string   `json:"operators"`
	}{
		Variable:  expr.Variable,
		Operators: []string{"+", "-", "*", "/", "^", "**"},
	}
	for _, b := range expr.Builtins() {
		if b.Constant {
			body.Constants = append(body.Constants, constant{Name: b.Name, Description: b.Description, Value: b.Value})
			continue
		}
		body.Functions = append(body.Functions, function{Name: b.Name, Description: b.Description, Arity: b.Arity})
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "history_disabled", "history is not enabled")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	records, err := s.history.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("list history", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list history")
		return
	}
	if records == nil {
		records = []HistoryRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "history_disabled", "history is not enabled")
		return
	}

	id := r.PathValue("id")
	rec, ok, err := s.history.Get(r.Context(), id)
	if err != nil {
		s.logger.Error("get history", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load history record")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", ErrRecordNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// decodeBody returns a non-zero status and message when the body cannot be
// decoded into v.
func decodeBody(r *http.Request, v any) (int, string) {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return 0, ""
	}
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge, "request body too large"
	case errors.Is(err, io.EOF):
		return http.StatusBadRequest, "request body is empty"
	default:
		return http.StatusBadRequest, "invalid JSON: " + err.Error()
	}
}
