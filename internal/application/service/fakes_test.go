package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/garyjia/expense-drafts/internal/application/port"
	"github.com/garyjia/expense-drafts/internal/domain/entity"
	"github.com/garyjia/expense-drafts/internal/domain/event"
	"github.com/garyjia/expense-drafts/internal/domain/extraction"
	"github.com/garyjia/expense-drafts/internal/domain/normalize"
	"github.com/garyjia/expense-drafts/internal/domain/workflow"
)

var testNow = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

type fakeDraftRepo struct {
	mu      sync.Mutex
	drafts  map[string]entity.ExpenseDraft
	seq     int
	getErr  error
	saveErr error
}

func newFakeDraftRepo() *fakeDraftRepo {
	return &fakeDraftRepo{drafts: map[string]entity.ExpenseDraft{}}
}

func (r *fakeDraftRepo) Create(ctx context.Context, d *entity.ExpenseDraft) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.seq++
	d.ID = fmt.Sprintf("draft-%d", r.seq)
	d.CreatedAt = testNow.Add(time.Duration(r.seq) * time.Minute)
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = d.CreatedAt
	}
	d.Version = 1
	r.drafts[d.ID] = d.Clone()
	return nil
}

func (r *fakeDraftRepo) GetByID(ctx context.Context, id string) (*entity.ExpenseDraft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	d, ok := r.drafts[id]
	if !ok {
		return nil, nil
	}
	out := d.Clone()
	return &out, nil
}

func (r *fakeDraftRepo) Update(ctx context.Context, d *entity.ExpenseDraft) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	stored, ok := r.drafts[d.ID]
	if !ok || stored.Version != d.Version {
		return port.ErrVersionConflict
	}
	d.Version++
	r.drafts[d.ID] = d.Clone()
	return nil
}

func (r *fakeDraftRepo) List(ctx context.Context, limit int) ([]*entity.ExpenseDraft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.ExpenseDraft, 0, len(r.drafts))
	for _, d := range r.drafts {
		c := d.Clone()
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeDraftRepo) stored(id string) entity.ExpenseDraft {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.drafts[id].Clone()
}

type fakeReceiptRepo struct {
	receipts  map[string]*entity.ReceiptAsset
	seq       int
	createErr error
}

func newFakeReceiptRepo() *fakeReceiptRepo {
	return &fakeReceiptRepo{receipts: map[string]*entity.ReceiptAsset{}}
}

func (r *fakeReceiptRepo) Create(ctx context.Context, rc *entity.ReceiptAsset) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.seq++
	rc.ID = fmt.Sprintf("receipt-%d", r.seq)
	rc.CreatedAt = testNow
	c := *rc
	r.receipts[rc.ID] = &c
	return nil
}

func (r *fakeReceiptRepo) GetByID(ctx context.Context, id string) (*entity.ReceiptAsset, error) {
	rc, ok := r.receipts[id]
	if !ok {
		return nil, nil
	}
	c := *rc
	return &c, nil
}

func (r *fakeReceiptRepo) SetStorageKey(ctx context.Context, id, key string) error {
	rc, ok := r.receipts[id]
	if !ok {
		return errors.New("no receipt")
	}
	rc.StorageKey = key
	return nil
}

func (r *fakeReceiptRepo) UpdateOCRStatus(ctx context.Context, id string, status string, model *string) error {
	rc, ok := r.receipts[id]
	if !ok {
		return errors.New("no receipt")
	}
	rc.OCRStatus = status
	rc.OCRModel = model
	return nil
}

type fakeRuleRepo struct {
	rules []entity.PolicyRule
	err   error
}

func (r *fakeRuleRepo) List(ctx context.Context) ([]entity.PolicyRule, error) {
	return r.rules, r.err
}

func (r *fakeRuleRepo) Upsert(ctx context.Context, code string, position int, doc map[string]any) error {
	return r.err
}

type fakeReferenceRepo struct {
	employees []entity.Employee
	teams     []entity.FunctionalTeam
	trips     []entity.Trip
	err       error
}

func (r *fakeReferenceRepo) ListEmployees(ctx context.Context) ([]entity.Employee, error) {
	return r.employees, r.err
}

func (r *fakeReferenceRepo) ListActiveTeams(ctx context.Context) ([]entity.FunctionalTeam, error) {
	return r.teams, r.err
}

func (r *fakeReferenceRepo) ListActiveTrips(ctx context.Context) ([]entity.Trip, error) {
	return r.trips, r.err
}

func (r *fakeReferenceRepo) CreateEmployee(ctx context.Context, e *entity.Employee) error {
	if r.err != nil {
		return r.err
	}
	e.ID = fmt.Sprintf("emp-%d", len(r.employees)+1)
	e.CreatedAt = testNow
	r.employees = append(r.employees, *e)
	return nil
}

func (r *fakeReferenceRepo) CreateTeam(ctx context.Context, t *entity.FunctionalTeam) error {
	if r.err != nil {
		return r.err
	}
	t.CreatedAt = testNow
	r.teams = append(r.teams, *t)
	return nil
}

func (r *fakeReferenceRepo) CreateTrip(ctx context.Context, t *entity.Trip) error {
	if r.err != nil {
		return r.err
	}
	t.ID = fmt.Sprintf("trip-%d", len(r.trips)+1)
	t.CreatedAt = testNow
	r.trips = append(r.trips, *t)
	return nil
}

type fakeStorage struct {
	files   map[string][]byte
	saveErr error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{files: map[string][]byte{}}
}

func (s *fakeStorage) Save(ctx context.Context, key string, content []byte) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.files[key] = append([]byte{}, content...)
	return nil
}

func (s *fakeStorage) Read(ctx context.Context, key string) ([]byte, error) {
	b, ok := s.files[key]
	if !ok {
		return nil, errors.New("file not found")
	}
	return b, nil
}

func (s *fakeStorage) Exists(ctx context.Context, key string) bool {
	_, ok := s.files[key]
	return ok
}

func (s *fakeStorage) Delete(ctx context.Context, key string) error {
	delete(s.files, key)
	return nil
}

type fakeExtractor struct {
	result map[string]any
	err    error
	calls  int
}

func (e *fakeExtractor) Extract(ctx context.Context, image []byte, mime string) (map[string]any, error) {
	e.calls++
	return e.result, e.err
}

func (e *fakeExtractor) Name() string { return "openai:gpt-4o-mini" }

type fakeCategorizer struct {
	result map[string]any
	err    error
	req    port.CategorizeRequest
}

func (c *fakeCategorizer) Suggest(ctx context.Context, req port.CategorizeRequest) (map[string]any, error) {
	c.req = req
	return c.result, c.err
}

type fakeTxManager struct{}

func (fakeTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, evt *event.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) types() []event.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]event.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type recordingRecorder struct {
	outcomes []string
	findings int
	dropped  map[string]int
}

func (r *recordingRecorder) ExtractionObserved(provider, outcome string, elapsed time.Duration) {
	r.outcomes = append(r.outcomes, outcome)
}

func (r *recordingRecorder) FindingsRecorded(findings []entity.PolicyFinding) {
	r.findings += len(findings)
}

func (r *recordingRecorder) FieldsDropped(payload string, count int) {
	if r.dropped == nil {
		r.dropped = map[string]int{}
	}
	r.dropped[payload] += count
}

// draftFixture wires a draft service over in-memory fakes
type draftFixture struct {
	drafts      *fakeDraftRepo
	receipts    *fakeReceiptRepo
	rules       *fakeRuleRepo
	refs        *fakeReferenceRepo
	storage     *fakeStorage
	extractor   *fakeExtractor
	categorizer *fakeCategorizer
	events      *recordingPublisher
	metrics     *recordingRecorder
	service     DraftService
}

func newDraftFixture() *draftFixture {
	f := &draftFixture{
		drafts:      newFakeDraftRepo(),
		receipts:    newFakeReceiptRepo(),
		rules:       &fakeRuleRepo{},
		refs:        &fakeReferenceRepo{},
		storage:     newFakeStorage(),
		extractor:   &fakeExtractor{},
		categorizer: &fakeCategorizer{},
		events:      &recordingPublisher{},
		metrics:     &recordingRecorder{},
	}
	f.service = NewDraftService(DraftServiceDeps{
		Drafts:      f.drafts,
		Receipts:    f.receipts,
		Rules:       f.rules,
		References:  f.refs,
		Storage:     f.storage,
		Extractor:   f.extractor,
		Categorizer: f.categorizer,
		TxManager:   fakeTxManager{},
		Events:      f.events,
		Metrics:     f.metrics,
		Reconciler: extraction.NewReconciler(
			normalize.NewNormalizer(normalize.DefaultAliases()),
			normalize.NewClassifier(normalize.DefaultCategories()),
		),
		Lifecycle: workflow.NewLifecycle(func() time.Time { return testNow }),
		Logger:    &mockLogger{},
	})
	return f
}

// seedReceipt stores a receipt and its bytes, returning the receipt id
func (f *draftFixture) seedReceipt() string {
	rc := &entity.ReceiptAsset{Mime: "image/png", Filename: "lunch.png", OCRStatus: entity.OCRStatusPending}
	_ = f.receipts.Create(context.Background(), rc)
	key := rc.ID + "/lunch.png"
	_ = f.receipts.SetStorageKey(context.Background(), rc.ID, key)
	f.storage.files[key] = []byte("png-bytes")
	return rc.ID
}

// seedDraft stores a draft with the given status and returns its id
func (f *draftFixture) seedDraft(status entity.DraftStatus, extraction entity.ExtractedData) string {
	d := &entity.ExpenseDraft{
		ReceiptID:  "receipt-x",
		Extraction: extraction,
		Validation: []entity.PolicyFinding{},
		Status:     status,
		UpdatedAt:  testNow.Add(-time.Hour),
	}
	_ = f.drafts.Create(context.Background(), d)
	return d.ID
}
