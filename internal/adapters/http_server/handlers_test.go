package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	server "house_price/internal/adapters/http_server"
	redisad "house_price/internal/adapters/redis"
	"house_price/internal/app"
	"house_price/internal/domain"
	"house_price/internal/form"
	"house_price/internal/pricing"
)

type failingPredictor struct{}

func (failingPredictor) Predict(ctx context.Context, in domain.PropertyInput) (domain.PredictionResult, error) {
	return domain.PredictionResult{}, errors.New("model offline")
}
func (failingPredictor) Source() domain.Source { return domain.SourceRemote }

func newTestServer(t *testing.T, p domain.Predictor) *httptest.Server {
	t.Helper()
	mr := miniredis.RunT(t)
	store := redisad.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = store.Close() })

	preds := app.NewPredictionService(p)
	sessions := app.NewSessionService(store, preds.Predict, time.Minute, time.Second)

	srv := server.New("http://localhost:3000")
	sum := pricing.DefaultTables().Summary()
	srv.MountHandlers(&server.Handlers{
		P:    preds,
		S:    sessions,
		Info: server.ModelInfo{ModelType: "formula", Source: p.Source(), Tables: &sum},
	})
	ts := httptest.NewServer(srv.Mux())
	t.Cleanup(ts.Close)
	return ts
}

func localPredictor() domain.Predictor {
	return pricing.NewEstimator(pricing.DefaultTables(), pricing.FixedJitter(1))
}

func referenceInput() domain.PropertyInput {
	in := domain.DefaultInput()
	in.Locality = "Hebbal"
	return in
}

func do(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { _ = res.Body.Close() })
	return res
}

func decode(t *testing.T, res *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(res.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestPredict_ReferenceScenario(t *testing.T) {
	ts := newTestServer(t, localPredictor())

	res := do(t, http.MethodPost, ts.URL+"/predict", referenceInput())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d", res.StatusCode)
	}
	var got domain.PredictionResult
	decode(t, res, &got)
	if got.PredictedPrice != 6979800 {
		t.Fatalf("price: got %v", got.PredictedPrice)
	}
	if got.ConfidenceInterval == nil || got.ConfidenceInterval.LowerBound != 5932830 || got.ConfidenceInterval.UpperBound != 8026770 {
		t.Fatalf("band: got %+v", got.ConfidenceInterval)
	}
}

func TestPredict_ValidationAndMalformed(t *testing.T) {
	ts := newTestServer(t, localPredictor())

	bad := referenceInput()
	bad.AreaSqft = 0
	res := do(t, http.MethodPost, ts.URL+"/predict", bad)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status %d", res.StatusCode)
	}
	var body struct {
		Detail string              `json:"detail"`
		Errors []domain.FieldError `json:"errors"`
	}
	decode(t, res, &body)
	if len(body.Errors) != 1 || body.Errors[0].Field != "area_sqft" {
		t.Fatalf("unexpected errors: %+v", body)
	}

	res = do(t, http.MethodPost, ts.URL+"/predict", `{"area_sqft":`)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed: status %d", res.StatusCode)
	}
}

func TestPredict_HugeAreaIsRejectedWithDetail(t *testing.T) {
	ts := newTestServer(t, localPredictor())

	in := referenceInput()
	in.AreaSqft = 1e308
	in.City, in.Locality, in.PropertyType = domain.Mumbai, "Worli", domain.Penthouse
	res := do(t, http.MethodPost, ts.URL+"/predict", in)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status %d", res.StatusCode)
	}
	var body struct {
		Detail string `json:"detail"`
	}
	decode(t, res, &body)
	if body.Detail == "" {
		t.Fatalf("missing detail")
	}

	res = do(t, http.MethodPost, ts.URL+"/predict/batch", []domain.PropertyInput{referenceInput(), in})
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("batch: status %d", res.StatusCode)
	}
}

func TestPredict_PredictorFailure(t *testing.T) {
	ts := newTestServer(t, failingPredictor{})

	res := do(t, http.MethodPost, ts.URL+"/predict", referenceInput())
	if res.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status %d", res.StatusCode)
	}
	var body struct {
		Detail string `json:"detail"`
	}
	decode(t, res, &body)
	if !strings.Contains(body.Detail, "model offline") {
		t.Fatalf("detail: %q", body.Detail)
	}
}

func TestPredictBatch(t *testing.T) {
	ts := newTestServer(t, localPredictor())

	second := referenceInput()
	second.City = domain.Mumbai
	second.Locality = "Andheri"
	res := do(t, http.MethodPost, ts.URL+"/predict/batch", []domain.PropertyInput{referenceInput(), second})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d", res.StatusCode)
	}
	var body struct {
		Predictions []float64 `json:"predictions"`
	}
	decode(t, res, &body)
	if len(body.Predictions) != 2 || body.Predictions[0] != 6979800 || body.Predictions[1] <= body.Predictions[0] {
		t.Fatalf("unexpected predictions: %v", body.Predictions)
	}

	res = do(t, http.MethodPost, ts.URL+"/predict/batch", `[]`)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty batch: status %d", res.StatusCode)
	}
}

func TestServiceInfoEndpoints(t *testing.T) {
	ts := newTestServer(t, localPredictor())

	res := do(t, http.MethodGet, ts.URL+"/health", nil)
	var hs domain.HealthStatus
	decode(t, res, &hs)
	if hs.Status != "healthy" {
		t.Fatalf("health: %+v", hs)
	}

	res = do(t, http.MethodGet, ts.URL+"/model-info", nil)
	var info server.ModelInfo
	decode(t, res, &info)
	if info.ModelType != "formula" || info.Tables == nil || info.Tables.BasePricePerSqft["Mumbai"] != 15000 {
		t.Fatalf("model-info: %+v", info)
	}

	res = do(t, http.MethodGet, ts.URL+"/v1/options", nil)
	etag := res.Header.Get("ETag")
	if res.StatusCode != http.StatusOK || etag == "" {
		t.Fatalf("options: status %d etag %q", res.StatusCode, etag)
	}
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/v1/options", nil)
	req.Header.Set("If-None-Match", etag)
	res2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("conditional GET: %v", err)
	}
	defer res2.Body.Close()
	if res2.StatusCode != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", res2.StatusCode)
	}

	res = do(t, http.MethodGet, ts.URL+"/v1/predictions?limit=0", nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("limit=0: status %d", res.StatusCode)
	}
	res = do(t, http.MethodGet, ts.URL+"/v1/predictions", nil)
	var list struct {
		Items []domain.PredictionRecord `json:"items"`
	}
	decode(t, res, &list)
	if list.Items == nil || len(list.Items) != 0 {
		t.Fatalf("expected empty items without history: %+v", list)
	}
}

func TestCORS_AllowsConfiguredOrigin(t *testing.T) {
	ts := newTestServer(t, localPredictor())

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/predict", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	defer res.Body.Close()
	if got := res.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("allow-origin: %q", got)
	}

	req, _ = http.NewRequest(http.MethodOptions, ts.URL+"/predict", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	res, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	defer res.Body.Close()
	if got := res.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow-origin %q", got)
	}
}

type sessionBody struct {
	ID string `json:"id"`
	form.State
	View *struct {
		Price      string `json:"price"`
		HasBand    bool   `json:"has_band"`
		LowerBound string `json:"lower_bound"`
		UpperBound string `json:"upper_bound"`
	} `json:"view"`
}

func TestSessions_FormFlow(t *testing.T) {
	ts := newTestServer(t, localPredictor())

	res := do(t, http.MethodPost, ts.URL+"/v1/sessions", nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create: status %d", res.StatusCode)
	}
	var s sessionBody
	decode(t, res, &s)
	if s.ID == "" || s.Input.City != domain.Bengaluru || len(s.AvailableLocalities) == 0 {
		t.Fatalf("create: %+v", s)
	}
	base := ts.URL + "/v1/sessions/" + s.ID

	res = do(t, http.MethodPatch, base, map[string]any{"field": "locality", "value": "Hebbal"})
	decode(t, res, &s)
	if s.Input.Locality != "Hebbal" {
		t.Fatalf("locality: %+v", s.Input)
	}

	// numbers arrive either as JSON numbers or as text
	res = do(t, http.MethodPatch, base, map[string]any{"field": "area_sqft", "value": 1000})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("numeric patch: status %d", res.StatusCode)
	}
	res = do(t, http.MethodPatch, base, map[string]any{"field": "bathrooms", "value": "2"})
	decode(t, res, &s)
	if s.Input != referenceInput() {
		t.Fatalf("input drifted: %+v", s.Input)
	}

	res = do(t, http.MethodPost, base+"/submit", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("submit: status %d", res.StatusCode)
	}
	s = sessionBody{}
	decode(t, res, &s)
	if s.Busy || s.Result == nil || s.Result.PredictedPrice != 6979800 {
		t.Fatalf("submit: %+v", s.State)
	}
	if s.View == nil || s.View.Price != "₹69,79,800" || !s.View.HasBand || s.View.LowerBound != "₹59,32,830" || s.View.UpperBound != "₹80,26,770" {
		t.Fatalf("view: %+v", s.View)
	}

	res = do(t, http.MethodPost, base+"/reset", nil)
	s = sessionBody{}
	decode(t, res, &s)
	if s.Result != nil || s.View != nil || s.Input.Locality != "Hebbal" {
		t.Fatalf("reset: %+v", s)
	}

	// non-finite text coerces to 0 instead of breaking the stored session
	for _, raw := range []string{"Infinity", "NaN"} {
		res = do(t, http.MethodPatch, base, map[string]any{"field": "area_sqft", "value": raw})
		if res.StatusCode != http.StatusOK {
			t.Fatalf("patch %s: status %d", raw, res.StatusCode)
		}
		s = sessionBody{}
		decode(t, res, &s)
		if s.Input.AreaSqft != 0 {
			t.Fatalf("patch %s: area %v", raw, s.Input.AreaSqft)
		}
	}

	res = do(t, http.MethodPatch, base, map[string]any{"field": "pool", "value": "yes"})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown field: status %d", res.StatusCode)
	}
	res = do(t, http.MethodGet, ts.URL+"/v1/sessions/missing", nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("missing session: status %d", res.StatusCode)
	}
}

func TestSessions_SubmitFailureKeepsFormEditable(t *testing.T) {
	ts := newTestServer(t, failingPredictor{})

	res := do(t, http.MethodPost, ts.URL+"/v1/sessions", nil)
	var s sessionBody
	decode(t, res, &s)
	base := ts.URL + "/v1/sessions/" + s.ID

	res = do(t, http.MethodPost, base+"/submit", nil)
	if res.StatusCode != http.StatusBadGateway {
		t.Fatalf("submit: status %d", res.StatusCode)
	}
	s = sessionBody{}
	decode(t, res, &s)
	if s.Error != form.FailureMessage || s.Busy || s.Result != nil {
		t.Fatalf("failure state: %+v", s.State)
	}

	res = do(t, http.MethodPatch, base, map[string]any{"field": "floor", "value": 3})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("edit after failure: status %d", res.StatusCode)
	}
}

func TestHealth_ReportsFailingDependency(t *testing.T) {
	preds := app.NewPredictionService(localPredictor())
	srv := server.New()
	srv.MountHandlers(&server.Handlers{
		P:     preds,
		Ready: func(ctx context.Context) error { return errors.New("db down") },
	})
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	res := do(t, http.MethodGet, ts.URL+"/health", nil)
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status %d", res.StatusCode)
	}
	var hs domain.HealthStatus
	decode(t, res, &hs)
	if hs.Status != "unhealthy" {
		t.Fatalf("health: %+v", hs)
	}
}
