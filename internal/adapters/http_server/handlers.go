// internal/adapters/http_server/handlers.go
package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"house_price/internal/app"
	"house_price/internal/display"
	"house_price/internal/domain"
	"house_price/internal/form"
	"house_price/internal/pricing"
)

const (
	apiName    = "House Price Prediction API"
	apiVersion = "1.0.0"
	maxBody    = 1 << 20
)

// ModelInfo describes the active predictor for /model-info.
type ModelInfo struct {
	ModelType string           `json:"model_type"`
	Source    domain.Source    `json:"source"`
	Endpoint  string           `json:"endpoint,omitempty"`
	Tables    *pricing.Summary `json:"tables,omitempty"`
}

type Handlers struct {
	P    *app.PredictionService
	S    *app.SessionService // nil disables /v1/sessions
	Info ModelInfo
	// Ready, when set, backs /health with dependency checks.
	Ready func(ctx context.Context) error
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// detailError is the {"detail": ...} body the prediction contract uses.
type detailError struct {
	Detail string              `json:"detail"`
	Errors []domain.FieldError `json:"errors,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/", h.root)
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/health", h.health)
	s.mux.Get("/model-info", h.modelInfo)
	s.mux.Post("/predict", h.predict)
	s.mux.Post("/predict/batch", h.predictBatch)

	s.mux.Route("/v1", func(r chi.Router) {
		r.Get("/options", h.options)
		r.Get("/predictions", h.listPredictions)
		r.Get("/predictions/{id}", h.getPrediction)
		if h.S != nil {
			r.Post("/sessions", h.createSession)
			r.Get("/sessions/{id}", h.getSession)
			r.Patch("/sessions/{id}", h.changeSession)
			r.Post("/sessions/{id}/submit", h.submitSession)
			r.Post("/sessions/{id}/reset", h.resetSession)
		}
	})
}

// writeJSON marshals before writing the status line, so an unencodable value
// becomes a 500 instead of a truncated success.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("marshal JSON response failed")
		status = http.StatusInternalServerError
		body = []byte(`{"detail":"failed to encode response"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// writePredictError maps predictor failures onto the {"detail"} contract.
func writePredictError(w http.ResponseWriter, err error) {
	if errors.Is(err, pricing.ErrPriceOutOfRange) {
		writeDetail(w, http.StatusUnprocessableEntity, "inputs produce a price out of range")
		return
	}
	writeDetail(w, http.StatusInternalServerError, err.Error())
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, detailError{Detail: detail})
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func writeWithETag(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	// If client already has this version, short-circuit.
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write body")
	}
}

// ---- service info ----

func (h *Handlers) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"name": apiName, "version": apiVersion, "docs": "/v1/options"})
}

func (h *Handlers) health(w http.ResponseWriter, r *http.Request) {
	if h.Ready != nil {
		if err := h.Ready(r.Context()); err != nil {
			log.Warn().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, domain.HealthStatus{Status: "unhealthy"})
			return
		}
	}
	writeJSON(w, http.StatusOK, domain.HealthStatus{Status: "healthy"})
}

func (h *Handlers) modelInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Info)
}

func (h *Handlers) options(w http.ResponseWriter, r *http.Request) {
	localities := make(map[domain.City][]string, len(domain.Cities))
	for _, c := range domain.Cities {
		localities[c] = domain.Localities(c)
	}
	writeWithETag(w, r, map[string]any{
		"cities":         domain.Cities,
		"property_types": domain.PropertyTypes,
		"furnishing":     domain.FurnishingOptions,
		"localities":     localities,
		"fields":         form.Fields(),
		"defaults":       domain.DefaultInput(),
	})
}

// ---- predictions ----

func (h *Handlers) predict(w http.ResponseWriter, r *http.Request) {
	var in domain.PropertyInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&in); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := in.Validate(); err != nil {
		writeValidation(w, err)
		return
	}

	res, err := h.P.Predict(r.Context(), in)
	if err != nil {
		log.Error().Err(err).Msg("prediction failed")
		writePredictError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) predictBatch(w http.ResponseWriter, r *http.Request) {
	var ins []domain.PropertyInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&ins); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if len(ins) == 0 {
		writeDetail(w, http.StatusBadRequest, app.ErrEmptyBatch.Error())
		return
	}
	for i, in := range ins {
		if err := in.Validate(); err != nil {
			var ve *domain.ValidationError
			if errors.As(err, &ve) {
				for j := range ve.Fields {
					ve.Fields[j].Field = fmt.Sprintf("[%d].%s", i, ve.Fields[j].Field)
				}
			}
			writeValidation(w, err)
			return
		}
	}

	out, err := h.P.PredictBatch(r.Context(), ins)
	if err != nil {
		log.Error().Err(err).Int("items", len(ins)).Msg("batch prediction failed")
		writePredictError(w, err)
		return
	}
	prices := make([]float64, len(out))
	for i, res := range out {
		prices[i] = res.PredictedPrice
	}
	writeJSON(w, http.StatusOK, map[string][]float64{"predictions": prices})
}

func writeValidation(w http.ResponseWriter, err error) {
	body := detailError{Detail: err.Error()}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		body.Errors = ve.Fields
	}
	writeJSON(w, http.StatusUnprocessableEntity, body)
}

func (h *Handlers) listPredictions(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > 200 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 200")
			return
		}
		limit = l
	}
	items, err := h.P.Recent(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("list predictions failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "could not list predictions")
		return
	}
	if items == nil {
		items = []domain.PredictionRecord{}
	}
	writeWithETag(w, r, map[string]any{"items": items})
}

func (h *Handlers) getPrediction(w http.ResponseWriter, r *http.Request) {
	rec, err := h.P.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, domain.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Not Found", "prediction not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("get prediction failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "could not load prediction")
		return
	}
	writeWithETag(w, r, rec)
}

// ---- form sessions ----

type sessionResponse struct {
	ID string `json:"id"`
	form.State
	View *display.View `json:"view,omitempty"`
}

func newSessionResponse(id string, st form.State) sessionResponse {
	resp := sessionResponse{ID: id, State: st}
	if st.Result != nil {
		v := display.NewView(*st.Result)
		resp.View = &v
	}
	return resp
}

func (h *Handlers) createSession(w http.ResponseWriter, r *http.Request) {
	id, st, err := h.S.Create(r.Context())
	if err != nil {
		h.sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSessionResponse(id, st))
}

func (h *Handlers) getSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, err := h.S.Get(r.Context(), id)
	if err != nil {
		h.sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(id, st))
}

type changeRequest struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

// rawValue turns a JSON string or number into the text a form control holds.
func rawValue(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	if string(v) == "null" {
		return ""
	}
	return string(v)
}

func (h *Handlers) changeSession(w http.ResponseWriter, r *http.Request) {
	var req changeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req); err != nil || req.Field == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid body", `expected {"field": "...", "value": ...}`)
		return
	}
	id := chi.URLParam(r, "id")
	st, err := h.S.Change(r.Context(), id, req.Field, rawValue(req.Value))
	if err != nil {
		h.sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(id, st))
}

func (h *Handlers) submitSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, err := h.S.Submit(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, newSessionResponse(id, st))
	case st.Error != "":
		// the estimate failed; the session carries the user-facing message
		writeJSON(w, http.StatusBadGateway, newSessionResponse(id, st))
	default:
		h.sessionError(w, err)
	}
}

func (h *Handlers) resetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, err := h.S.Reset(r.Context(), id)
	if err != nil {
		h.sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(id, st))
}

func (h *Handlers) sessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrSessionNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", "session not found")
	case errors.Is(err, form.ErrBusy):
		writeProblem(w, http.StatusConflict, "Busy", "a prediction is already in progress")
	case errors.Is(err, form.ErrUnknownField):
		writeProblem(w, http.StatusBadRequest, "Unknown field", err.Error())
	default:
		log.Error().Err(err).Msg("session operation failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "session operation failed")
	}
}
