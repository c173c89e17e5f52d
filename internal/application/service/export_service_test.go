package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/expense-drafts/internal/domain/entity"
)

type fakeWorkbookWriter struct {
	got []*entity.ExpenseDraft
	err error
}

func (w *fakeWorkbookWriter) Write(drafts []*entity.ExpenseDraft) ([]byte, error) {
	w.got = drafts
	if w.err != nil {
		return nil, w.err
	}
	return []byte("xlsx"), nil
}

func TestExportService_DraftsWorkbook(t *testing.T) {
	f := newDraftFixture()
	f.seedDraft(entity.DraftStatusValid, mealsExtraction("1"))
	f.seedDraft(entity.DraftStatusProposed, mealsExtraction("2"))

	writer := &fakeWorkbookWriter{}
	svc := NewExportService(f.service, writer, &mockLogger{})

	data, err := svc.DraftsWorkbook(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, []byte("xlsx"), data)
	assert.Len(t, writer.got, 2)

	writer.err = errors.New("bad sheet")
	_, err = svc.DraftsWorkbook(context.Background(), 10)
	assert.Error(t, err)
}

func TestReferenceService(t *testing.T) {
	repo := &fakeReferenceRepo{
		employees: []entity.Employee{{ID: "e1", Name: "Sam"}},
		trips:     []entity.Trip{{ID: "t1", Name: "Offsite", Active: true}},
	}
	svc := NewReferenceService(repo, &mockLogger{})

	employees, err := svc.Employees(context.Background())
	require.NoError(t, err)
	assert.Len(t, employees, 1)

	trips, err := svc.ActiveTrips(context.Background())
	require.NoError(t, err)
	assert.Len(t, trips, 1)

	repo.err = errors.New("closed")
	_, err = svc.ActiveTeams(context.Background())
	assert.ErrorIs(t, err, ErrStoreFailed)
}

func TestReferenceService_Create(t *testing.T) {
	repo := &fakeReferenceRepo{}
	svc := NewReferenceService(repo, &mockLogger{})

	_, err := svc.CreateEmployee(context.Background(), NewEmployee{Name: "  "})
	assert.ErrorIs(t, err, ErrInvalidInput)

	emp, err := svc.CreateEmployee(context.Background(), NewEmployee{Name: " Riley ", TeamCode: strPtr("ENG")})
	require.NoError(t, err)
	assert.Equal(t, "Riley", emp.Name)
	assert.NotEmpty(t, emp.ID)

	_, err = svc.CreateTeam(context.Background(), NewTeam{Code: "OPS"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	team, err := svc.CreateTeam(context.Background(), NewTeam{Code: "OPS", Name: "Operations"})
	require.NoError(t, err)
	assert.True(t, team.Active)

	trip, err := svc.CreateTrip(context.Background(), NewTrip{Name: "Berlin summit", City: strPtr("Berlin")})
	require.NoError(t, err)
	assert.True(t, trip.Active)
	assert.Equal(t, "Berlin", *trip.City)

	repo.err = errors.New("constraint failed")
	_, err = svc.CreateTrip(context.Background(), NewTrip{Name: "x"})
	assert.ErrorIs(t, err, ErrStoreFailed)
}
