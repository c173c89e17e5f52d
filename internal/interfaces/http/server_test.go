package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/expense-drafts/internal/application/service"
	"github.com/garyjia/expense-drafts/internal/domain/entity"
	"github.com/garyjia/expense-drafts/internal/domain/payload"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

type fakeReceipts struct {
	got service.UploadInput
}

func (f *fakeReceipts) Upload(_ context.Context, in service.UploadInput) (*entity.ReceiptAsset, error) {
	f.got = in
	return &entity.ReceiptAsset{ID: "rcpt-1", Filename: in.Filename, Mime: in.Mime, SizeBytes: int64(len(in.Content))}, nil
}

type fakeDrafts struct {
	drafts    map[string]*entity.ExpenseDraft
	err       error
	lastLimit int
	lastEdit  service.DraftEdit
}

func newFakeDrafts() *fakeDrafts {
	merchant := "McDonald's"
	return &fakeDrafts{drafts: map[string]*entity.ExpenseDraft{
		"draft-1": {
			ID:        "draft-1",
			ReceiptID: "rcpt-1",
			Status:    entity.DraftStatusNeedsInfo,
			Extraction: entity.ExtractedData{
				Merchant:    &merchant,
				AmountTotal: decimal.NewNullDecimal(decimal.RequireFromString("18.40")),
				Currency:    "USD",
			},
		},
	}}
}

func (f *fakeDrafts) find(id string) (*entity.ExpenseDraft, error) {
	if f.err != nil {
		return nil, f.err
	}
	d, ok := f.drafts[id]
	if !ok {
		return nil, fmt.Errorf("%w: draft %s", service.ErrNotFound, id)
	}
	return d, nil
}

func (f *fakeDrafts) ExtractReceipt(_ context.Context, receiptID string) (*entity.ExpenseDraft, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.drafts["draft-1"], nil
}

func (f *fakeDrafts) EvaluatePolicy(_ context.Context, id string) (*entity.ExpenseDraft, error) {
	return f.find(id)
}

func (f *fakeDrafts) UpdateDraft(_ context.Context, id string, edit service.DraftEdit) (*entity.ExpenseDraft, error) {
	f.lastEdit = edit
	d, err := f.find(id)
	if err != nil {
		return nil, err
	}
	d.Extraction = *edit.Extraction
	d.EmployeeID = edit.EmployeeID
	return d, nil
}

func (f *fakeDrafts) Categorize(_ context.Context, id string) (*service.CategorizeResult, error) {
	d, err := f.find(id)
	if err != nil {
		return nil, err
	}
	return &service.CategorizeResult{
		Draft:      d,
		Suggestion: map[string]any{"glAccount": "Meals"},
		Dropped:    []payload.FieldIssue{{Field: "confidence", Reason: "expected finite number, got string"}},
	}, nil
}

func (f *fakeDrafts) Submit(_ context.Context, id string) (*entity.ExpenseDraft, error) {
	d, err := f.find(id)
	if err != nil {
		return nil, err
	}
	d.Status = entity.DraftStatusSubmitted
	return d, nil
}

func (f *fakeDrafts) GetDraft(_ context.Context, id string) (*entity.ExpenseDraft, error) {
	return f.find(id)
}

func (f *fakeDrafts) ListDrafts(_ context.Context, limit int) ([]*entity.ExpenseDraft, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return []*entity.ExpenseDraft{f.drafts["draft-1"]}, nil
}

type fakeReferences struct {
	employees []entity.Employee
}

func (f *fakeReferences) Employees(context.Context) ([]entity.Employee, error) {
	return f.employees, nil
}

func (f *fakeReferences) ActiveTeams(context.Context) ([]entity.FunctionalTeam, error) {
	return nil, nil
}

func (f *fakeReferences) ActiveTrips(context.Context) ([]entity.Trip, error) {
	return nil, fmt.Errorf("%w: list trips: disk I/O error", service.ErrStoreFailed)
}

func (f *fakeReferences) CreateEmployee(_ context.Context, in service.NewEmployee) (*entity.Employee, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: missing name", service.ErrInvalidInput)
	}
	e := entity.Employee{ID: "emp-1", Name: in.Name, Email: in.Email}
	f.employees = append(f.employees, e)
	return &e, nil
}

func (f *fakeReferences) CreateTeam(_ context.Context, in service.NewTeam) (*entity.FunctionalTeam, error) {
	if in.Code == "" || in.Name == "" {
		return nil, fmt.Errorf("%w: missing code or name", service.ErrInvalidInput)
	}
	return &entity.FunctionalTeam{Code: in.Code, Name: in.Name, Active: true}, nil
}

func (f *fakeReferences) CreateTrip(_ context.Context, in service.NewTrip) (*entity.Trip, error) {
	return &entity.Trip{ID: "trip-1", Name: in.Name, City: in.City, Active: true}, nil
}

type fakeExport struct{}

func (fakeExport) DraftsWorkbook(context.Context, int) ([]byte, error) {
	return []byte("PK\x03\x04"), nil
}

type testEnv struct {
	server   *Server
	receipts *fakeReceipts
	drafts   *fakeDrafts
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{receipts: &fakeReceipts{}, drafts: newFakeDrafts()}

	cfg := DefaultServerConfig()
	cfg.Mode = gin.TestMode
	cfg.MaxUploadBytes = 1024
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "expense_extractions_total 0\n")
	})

	env.server = NewServer(cfg, Services{
		Receipts:   env.receipts,
		Drafts:     env.drafts,
		References: &fakeReferences{},
		Export:     fakeExport{},
	}, metrics, nopLogger{})
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.server.Router().ServeHTTP(w, req)
	return w
}

func (e *testEnv) doJSON(method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	return e.do(req)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func multipartUpload(t *testing.T, filename, mime string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	h.Set("Content-Type", mime)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("employeeId", "emp-7"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealthAndRequestID(t *testing.T) {
	env := newTestEnv(t)

	w := env.doJSON(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode(t, w).Success)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-abc")
	w = env.do(req)
	assert.Equal(t, "req-abc", w.Header().Get(RequestIDHeader))
}

func TestMetricsRoute(t *testing.T) {
	env := newTestEnv(t)

	w := env.doJSON(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "expense_extractions_total")
}

func TestUploadReceipt(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(multipartUpload(t, "lunch.png", "image/png", []byte("\x89PNG fake")))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var data UploadResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &data))
	assert.Equal(t, "rcpt-1", data.ReceiptID)

	assert.Equal(t, "lunch.png", env.receipts.got.Filename)
	assert.Equal(t, "image/png", env.receipts.got.Mime)
	require.NotNil(t, env.receipts.got.EmployeeID)
	assert.Equal(t, "emp-7", *env.receipts.got.EmployeeID)
}

func TestUploadReceipt_Rejected(t *testing.T) {
	env := newTestEnv(t)

	w := env.doJSON(http.MethodPost, "/api/upload", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "missing_file", decode(t, w).Error)

	w = env.do(multipartUpload(t, "big.pdf", "application/pdf", bytes.Repeat([]byte("x"), 4096)))
	assert.Contains(t, []int{http.StatusBadRequest, http.StatusRequestEntityTooLarge}, w.Code)
	assert.False(t, decode(t, w).Success)
}

func TestExtractReceipt(t *testing.T) {
	env := newTestEnv(t)

	w := env.doJSON(http.MethodPost, "/api/ocr/rcpt-1", "")
	require.Equal(t, http.StatusOK, w.Code)

	var data ExtractResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &data))
	assert.Equal(t, "draft-1", data.DraftID)
	assert.Equal(t, "18.4", data.Extraction.AmountTotal.Decimal.String())
}

func TestServiceErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: receipt x", service.ErrNotFound), http.StatusNotFound, "not_found"},
		{fmt.Errorf("%w: vision: timeout", service.ErrExtractionFailed), http.StatusBadGateway, "extraction_failed"},
		{fmt.Errorf("%w: locked", service.ErrStoreFailed), http.StatusInternalServerError, "store_failed"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			env := newTestEnv(t)
			env.drafts.err = tt.err

			w := env.doJSON(http.MethodPost, "/api/ocr/rcpt-1", "")
			assert.Equal(t, tt.status, w.Code)
			body := decode(t, w)
			assert.False(t, body.Success)
			assert.Equal(t, tt.code, body.Error)
		})
	}
}

func TestDraftRoutes(t *testing.T) {
	env := newTestEnv(t)

	w := env.doJSON(http.MethodGet, "/api/drafts?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, env.drafts.lastLimit)
	var list []entity.ExpenseDraft
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &list))
	assert.Len(t, list, 1)

	w = env.doJSON(http.MethodGet, "/api/drafts?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.doJSON(http.MethodGet, "/api/drafts/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.doJSON(http.MethodPost, "/api/drafts/draft-1/policy", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.doJSON(http.MethodPost, "/api/drafts/draft-1/categorize", "")
	require.Equal(t, http.StatusOK, w.Code)
	var cat CategorizeResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &cat))
	assert.Equal(t, "Meals", cat.Suggestion["glAccount"])
	require.Len(t, cat.Dropped, 1)
	assert.Equal(t, "confidence", cat.Dropped[0].Field)

	w = env.doJSON(http.MethodPost, "/api/drafts/draft-1/submit", "")
	require.Equal(t, http.StatusOK, w.Code)
	var submitted entity.ExpenseDraft
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &submitted))
	assert.Equal(t, entity.DraftStatusSubmitted, submitted.Status)
}

func TestUpdateDraft(t *testing.T) {
	env := newTestEnv(t)

	w := env.doJSON(http.MethodPatch, "/api/drafts/draft-1",
		`{"extraction":{"merchant":"Cafe","amountTotal":"9.50","currency":"EUR","items":[]},"employeeId":"emp-2","aiLabels":["team-lunch"]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, env.drafts.lastEdit.Extraction)
	assert.Equal(t, "EUR", env.drafts.lastEdit.Extraction.Currency)
	assert.Equal(t, []string{"team-lunch"}, env.drafts.lastEdit.AILabels)
	require.NotNil(t, env.drafts.lastEdit.EmployeeID)
	assert.Equal(t, "emp-2", *env.drafts.lastEdit.EmployeeID)

	w = env.doJSON(http.MethodPatch, "/api/drafts/draft-1", `{"employeeId":"emp-2"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "missing_extraction", decode(t, w).Error)

	w = env.doJSON(http.MethodPatch, "/api/drafts/draft-1", `{"extraction":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_body", decode(t, w).Error)
}

func TestExportDrafts(t *testing.T) {
	env := newTestEnv(t)

	w := env.doJSON(http.MethodGet, "/api/export/drafts.xlsx", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "drafts.xlsx")
	assert.Equal(t, "PK\x03\x04", w.Body.String())
}

func TestReferenceRoutes(t *testing.T) {
	env := newTestEnv(t)

	w := env.doJSON(http.MethodPost, "/api/employees", `{"name":"Ada","email":"ada@example.com"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.doJSON(http.MethodGet, "/api/employees", "")
	require.Equal(t, http.StatusOK, w.Code)
	var employees []entity.Employee
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &employees))
	require.Len(t, employees, 1)
	assert.Equal(t, "Ada", employees[0].Name)

	w = env.doJSON(http.MethodPost, "/api/employees", `{"email":"x@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "missing_name", decode(t, w).Error)

	w = env.doJSON(http.MethodPost, "/api/teams", `{"name":"Sales"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "missing_code_or_name", decode(t, w).Error)

	w = env.doJSON(http.MethodPost, "/api/teams", `{"code":"SLS","name":"Sales"}`)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = env.doJSON(http.MethodGet, "/api/teams", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", string(decode(t, w).Data))

	w = env.doJSON(http.MethodPost, "/api/trips", `{"name":"Offsite","city":"Lisbon"}`)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = env.doJSON(http.MethodGet, "/api/trips", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "store_failed", decode(t, w).Error)
}

func TestStartStop(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.Mode = gin.TestMode
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	s := NewServer(cfg, Services{}, nil, nopLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	w := env.doJSON(http.MethodOptions, "/api/drafts/draft-1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}
