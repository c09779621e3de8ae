package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-writer-ai-api/internal/application/generation"
	"z-writer-ai-api/internal/application/generation/brief"
	"z-writer-ai-api/internal/domain/entity"
	"z-writer-ai-api/internal/domain/repository"
	"z-writer-ai-api/internal/interfaces/http/middleware"
	"z-writer-ai-api/internal/workflow/port"
	apperrors "z-writer-ai-api/pkg/errors"
)

type fakeService struct {
	lastBrief    brief.RawBrief
	lastRevision generation.RevisionInput
	lastStatus   entity.JobStatus
	err          error
	// normalize 为 true 时按真实规范化规则校验需求
	normalize bool
}

func (f *fakeService) result(rid string) *entity.GenerationResult {
	return &entity.GenerationResult{
		RequestID:       rid,
		Text:            "hello world",
		WordCount:       2,
		TargetWordCount: 2,
		IterationCount:  1,
		Report: entity.ConstraintReport{
			entity.ConstraintWordCount: {Passed: true, Hard: true},
			entity.ConstraintSections:  {Passed: true, Hard: true},
		},
	}
}

func (f *fakeService) Generate(_ context.Context, raw brief.RawBrief) (*entity.GenerationResult, error) {
	f.lastBrief = raw
	if f.err != nil {
		return nil, f.err
	}
	if f.normalize {
		if _, err := brief.NewNormalizer(brief.DefaultConfig()).Normalize(raw); err != nil {
			return nil, err
		}
	}
	return f.result(raw.RequestID), nil
}

func (f *fakeService) Get(_ context.Context, userID, requestID string) (*entity.GenerationResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if userID != "u-1" {
		return nil, apperrors.ErrResultNotFound
	}
	return f.result(requestID), nil
}

func (f *fakeService) Revise(_ context.Context, _, requestID string, in generation.RevisionInput) (*entity.GenerationResult, error) {
	f.lastRevision = in
	if f.err != nil {
		return nil, f.err
	}
	return f.result(requestID + "-rev1"), nil
}

func (f *fakeService) SubmitJob(_ context.Context, raw brief.RawBrief) (*entity.GenerationJob, error) {
	f.lastBrief = raw
	if f.err != nil {
		return nil, f.err
	}
	return &entity.GenerationJob{ID: "job-1", RequestID: raw.RequestID, UserID: raw.UserID, Status: entity.JobStatusPending}, nil
}

func (f *fakeService) GetJob(_ context.Context, userID, jobID string) (*entity.GenerationJob, error) {
	if f.err != nil {
		return nil, f.err
	}
	res, _ := json.Marshal(f.result("req-1"))
	return &entity.GenerationJob{ID: jobID, UserID: userID, Status: entity.JobStatusCompleted, Result: res}, nil
}

func (f *fakeService) CancelJob(_ context.Context, userID, jobID string) (*entity.GenerationJob, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &entity.GenerationJob{ID: jobID, UserID: userID, Status: entity.JobStatusCancelled}, nil
}

func (f *fakeService) ListJobs(_ context.Context, userID string, status entity.JobStatus, page repository.Pagination) (*repository.PagedResult[*entity.GenerationJob], error) {
	f.lastStatus = status
	items := []*entity.GenerationJob{{ID: "job-1", UserID: userID, Status: entity.JobStatusPending}}
	return repository.NewPagedResult(items, 1, page), nil
}

func newTestEngine(svc *fakeService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextKeyUserID, "u-1")
		c.Next()
	})
	gh := NewGenerationHandler(svc)
	jh := NewJobHandler(svc)
	r.POST("/v1/generations", gh.Generate)
	r.POST("/v1/generations/async", gh.SubmitAsync)
	r.GET("/v1/generations/:rid", gh.Get)
	r.POST("/v1/generations/:rid/revisions", gh.Revise)
	r.GET("/v1/jobs", jh.ListJobs)
	r.GET("/v1/jobs/:jid", jh.GetJob)
	r.DELETE("/v1/jobs/:jid", jh.CancelJob)
	return r
}

func do(r http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		ErrorCode string `json:"error_code"`
		Details   string `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

var validBody = map[string]any{
	"contentType":     "blog_post",
	"prompt":          "write about tea",
	"targetWordCount": 500,
	"requiredKeywords": []map[string]any{
		{"keyword": "oolong", "minOccurrences": 2},
	},
}

func TestGenerateUsesIdempotencyKey(t *testing.T) {
	svc := &fakeService{}
	r := newTestEngine(svc)

	rec := do(r, http.MethodPost, "/v1/generations", validBody, map[string]string{
		IdempotencyKeyHeader:       "idem-1",
		middleware.RequestIDHeader: "rid-header",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "idem-1", svc.lastBrief.RequestID)
	assert.Equal(t, "u-1", svc.lastBrief.UserID)
	assert.Equal(t, "blog_post", svc.lastBrief.ContentType)
	require.Len(t, svc.lastBrief.RequiredKeywords, 1)
	assert.Equal(t, 2, svc.lastBrief.RequiredKeywords[0].MinOccurrences)

	var data struct {
		RequestID   string `json:"request_id"`
		Constraints []struct {
			Name string `json:"name"`
		} `json:"constraints"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &data))
	assert.Equal(t, "idem-1", data.RequestID)
	require.Len(t, data.Constraints, 2)
	assert.Equal(t, entity.ConstraintSections, data.Constraints[0].Name)
}

func TestGenerateFallsBackToRequestIDHeader(t *testing.T) {
	svc := &fakeService{}
	r := newTestEngine(svc)

	rec := do(r, http.MethodPost, "/v1/generations", validBody, map[string]string{
		middleware.RequestIDHeader: "rid-header",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "rid-header", svc.lastBrief.RequestID)
}

func TestGenerateBadBody(t *testing.T) {
	svc := &fakeService{}
	r := newTestEngine(svc)
	rec := do(r, http.MethodPost, "/v1/generations", map[string]any{"prompt": "x", "targetWordCount": "many"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decode(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, string(apperrors.CodeValidationFailed), env.Error.ErrorCode)
	assert.Empty(t, svc.lastBrief.Prompt)
}

func TestGenerateMissingFieldNamesField(t *testing.T) {
	cases := map[string]map[string]any{
		"contentType":     {"prompt": "write about tea", "targetWordCount": 500},
		"prompt":          {"contentType": "blog_post", "targetWordCount": 500},
		"targetWordCount": {"contentType": "blog_post", "prompt": "write about tea"},
	}
	for field, body := range cases {
		t.Run(field, func(t *testing.T) {
			r := newTestEngine(&fakeService{normalize: true})
			rec := do(r, http.MethodPost, "/v1/generations", body, nil)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			env := decode(t, rec)
			require.NotNil(t, env.Error)
			assert.Equal(t, string(apperrors.CodeValidationFailed), env.Error.ErrorCode)
			assert.Contains(t, env.Error.Details, field+":")
		})
	}
}

func TestGenerateAcceptsLabelOnlySource(t *testing.T) {
	svc := &fakeService{normalize: true}
	r := newTestEngine(svc)

	body := map[string]any{
		"contentType":      "blog_post",
		"prompt":           "write about tea",
		"targetWordCount":  500,
		"includeCitations": true,
		"requiredSources":  []map[string]any{{"label": "Tea Board annual report"}},
	}
	rec := do(r, http.MethodPost, "/v1/generations", body, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, svc.lastBrief.RequiredSources, 1)
	assert.Equal(t, "Tea Board annual report", svc.lastBrief.RequiredSources[0].Label)
	assert.Empty(t, svc.lastBrief.RequiredSources[0].URL)
}

func TestGenerateErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   apperrors.ErrorCode
	}{
		{"validation", &brief.ValidationError{Field: "targetWordCount", Reason: "too small"}, http.StatusBadRequest, apperrors.CodeValidationFailed},
		{"in flight", repository.ErrInFlight, http.StatusConflict, apperrors.CodeGenerationInProgress},
		{"rejected", port.Rejected(errors.New("policy")), http.StatusUnprocessableEntity, apperrors.CodeEngineRejected},
		{"unavailable", port.Unavailable(errors.New("down")), http.StatusServiceUnavailable, apperrors.CodeEngineUnavailable},
		{"quota", apperrors.ErrQuotaExceeded, http.StatusTooManyRequests, apperrors.CodeTooManyRequests},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestEngine(&fakeService{err: tc.err})
			rec := do(r, http.MethodPost, "/v1/generations", validBody, nil)
			assert.Equal(t, tc.status, rec.Code)
			env := decode(t, rec)
			require.NotNil(t, env.Error)
			assert.Equal(t, string(tc.code), env.Error.ErrorCode)
		})
	}
}

func TestSubmitAsync(t *testing.T) {
	svc := &fakeService{}
	r := newTestEngine(svc)

	rec := do(r, http.MethodPost, "/v1/generations/async", validBody, map[string]string{IdempotencyKeyHeader: "idem-2"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var data struct {
		ID        string `json:"id"`
		RequestID string `json:"request_id"`
		Status    string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &data))
	assert.Equal(t, "job-1", data.ID)
	assert.Equal(t, "idem-2", data.RequestID)
	assert.Equal(t, "pending", data.Status)
}

func TestGetGeneration(t *testing.T) {
	r := newTestEngine(&fakeService{})
	rec := do(r, http.MethodGet, "/v1/generations/req-9", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	r = newTestEngine(&fakeService{err: apperrors.ErrResultNotFound})
	rec = do(r, http.MethodGet, "/v1/generations/req-9", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRevise(t *testing.T) {
	svc := &fakeService{}
	r := newTestEngine(svc)

	rec := do(r, http.MethodPost, "/v1/generations/req-1/revisions", map[string]any{"comment": "shorter intro"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "shorter intro", svc.lastRevision.Comment)
	assert.Empty(t, svc.lastRevision.RequestID)

	rec = do(r, http.MethodPost, "/v1/generations/req-1/revisions", map[string]any{"comment": "again"}, map[string]string{IdempotencyKeyHeader: "rev-key"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "rev-key", svc.lastRevision.RequestID)

	rec = do(r, http.MethodPost, "/v1/generations/req-1/revisions", map[string]any{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	r = newTestEngine(&fakeService{err: apperrors.ErrRevisionLimitReached.WithDetail("2 rounds used")})
	rec = do(r, http.MethodPost, "/v1/generations/req-1/revisions", map[string]any{"comment": "x"}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	env := decode(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "2 rounds used", env.Error.Details)
}

func TestJobs(t *testing.T) {
	svc := &fakeService{}
	r := newTestEngine(svc)

	rec := do(r, http.MethodGet, "/v1/jobs/job-7", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var job struct {
		ID     string `json:"id"`
		Result *struct {
			Text string `json:"text"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &job))
	assert.Equal(t, "job-7", job.ID)
	require.NotNil(t, job.Result)
	assert.Equal(t, "hello world", job.Result.Text)

	rec = do(r, http.MethodDelete, "/v1/jobs/job-7", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(r, http.MethodGet, "/v1/jobs?status=pending&page=1&page_size=5", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, entity.JobStatusPending, svc.lastStatus)

	rec = do(r, http.MethodGet, "/v1/jobs?status=bogus", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	r = newTestEngine(&fakeService{err: apperrors.ErrJobFinished})
	rec = do(r, http.MethodDelete, "/v1/jobs/job-7", nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

type stubChecker struct{ err error }

func (s stubChecker) HealthCheck(context.Context) error { return s.err }

func TestReady(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := newHealthHandler("v1", map[string]HealthChecker{
		"postgres": stubChecker{},
		"redis":    stubChecker{},
	})
	r := gin.New()
	r.GET("/ready", h.Ready)
	r.GET("/health", h.Health)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/ready", nil, nil).Code)
	assert.Contains(t, do(r, http.MethodGet, "/health", nil, nil).Body.String(), `"version":"v1"`)

	h = newHealthHandler("v1", map[string]HealthChecker{
		"postgres": stubChecker{},
		"redis":    stubChecker{err: errors.New("connection refused")},
	})
	r = gin.New()
	r.GET("/ready", h.Ready)
	rec := do(r, http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")

	h = newHealthHandler("v1", map[string]HealthChecker{"postgres": stubChecker{}})
	r = gin.New()
	r.GET("/ready", h.Ready)
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/ready", nil, nil).Code)
}
