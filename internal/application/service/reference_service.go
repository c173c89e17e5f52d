package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/expense-drafts/internal/application/port"
	"github.com/garyjia/expense-drafts/internal/domain/entity"
)

// NewEmployee is the input for creating an employee
type NewEmployee struct {
	Name     string
	Email    *string
	TeamCode *string
}

// NewTeam is the input for creating a functional team
type NewTeam struct {
	Code        string
	Name        string
	Description *string
}

// NewTrip is the input for creating a trip
type NewTrip struct {
	Name      string
	StartDate *string
	EndDate   *string
	City      *string
	Country   *string
}

// ReferenceService manages the data drafts can be assigned to
type ReferenceService interface {
	Employees(ctx context.Context) ([]entity.Employee, error)
	ActiveTeams(ctx context.Context) ([]entity.FunctionalTeam, error)
	ActiveTrips(ctx context.Context) ([]entity.Trip, error)

	CreateEmployee(ctx context.Context, in NewEmployee) (*entity.Employee, error)
	CreateTeam(ctx context.Context, in NewTeam) (*entity.FunctionalTeam, error)
	CreateTrip(ctx context.Context, in NewTrip) (*entity.Trip, error)
}

type referenceServiceImpl struct {
	repo   port.ReferenceRepository
	logger Logger
}

// NewReferenceService creates a new ReferenceService
func NewReferenceService(repo port.ReferenceRepository, logger Logger) ReferenceService {
	return &referenceServiceImpl{repo: repo, logger: logger}
}

func (s *referenceServiceImpl) Employees(ctx context.Context) ([]entity.Employee, error) {
	employees, err := s.repo.ListEmployees(ctx)
	if err != nil {
		s.logger.Error("Failed to list employees", "error", err)
		return nil, fmt.Errorf("%w: list employees: %w", ErrStoreFailed, err)
	}
	return employees, nil
}

func (s *referenceServiceImpl) ActiveTeams(ctx context.Context) ([]entity.FunctionalTeam, error) {
	teams, err := s.repo.ListActiveTeams(ctx)
	if err != nil {
		s.logger.Error("Failed to list teams", "error", err)
		return nil, fmt.Errorf("%w: list teams: %w", ErrStoreFailed, err)
	}
	return teams, nil
}

func (s *referenceServiceImpl) ActiveTrips(ctx context.Context) ([]entity.Trip, error) {
	trips, err := s.repo.ListActiveTrips(ctx)
	if err != nil {
		s.logger.Error("Failed to list trips", "error", err)
		return nil, fmt.Errorf("%w: list trips: %w", ErrStoreFailed, err)
	}
	return trips, nil
}

// CreateEmployee requires a name
func (s *referenceServiceImpl) CreateEmployee(ctx context.Context, in NewEmployee) (*entity.Employee, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: missing name", ErrInvalidInput)
	}

	employee := &entity.Employee{Name: name, Email: in.Email, TeamCode: in.TeamCode}
	if err := s.repo.CreateEmployee(ctx, employee); err != nil {
		s.logger.Error("Failed to create employee", "error", err)
		return nil, fmt.Errorf("%w: create employee: %w", ErrStoreFailed, err)
	}
	s.logger.Info("Employee created", "employee_id", employee.ID)
	return employee, nil
}

// CreateTeam requires both code and name. New teams are active.
func (s *referenceServiceImpl) CreateTeam(ctx context.Context, in NewTeam) (*entity.FunctionalTeam, error) {
	code, name := strings.TrimSpace(in.Code), strings.TrimSpace(in.Name)
	if code == "" || name == "" {
		return nil, fmt.Errorf("%w: missing code or name", ErrInvalidInput)
	}

	team := &entity.FunctionalTeam{Code: code, Name: name, Description: in.Description, Active: true}
	if err := s.repo.CreateTeam(ctx, team); err != nil {
		s.logger.Error("Failed to create team", "error", err, "team_code", code)
		return nil, fmt.Errorf("%w: create team: %w", ErrStoreFailed, err)
	}
	s.logger.Info("Team created", "team_code", code)
	return team, nil
}

// CreateTrip requires a name. New trips are active.
func (s *referenceServiceImpl) CreateTrip(ctx context.Context, in NewTrip) (*entity.Trip, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: missing name", ErrInvalidInput)
	}

	trip := &entity.Trip{
		Name:      name,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		City:      in.City,
		Country:   in.Country,
		Active:    true,
	}
	if err := s.repo.CreateTrip(ctx, trip); err != nil {
		s.logger.Error("Failed to create trip", "error", err)
		return nil, fmt.Errorf("%w: create trip: %w", ErrStoreFailed, err)
	}
	s.logger.Info("Trip created", "trip_id", trip.ID)
	return trip, nil
}
