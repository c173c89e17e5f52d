package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/expense-drafts/internal/application/port"
	"github.com/garyjia/expense-drafts/internal/domain/entity"
	"github.com/garyjia/expense-drafts/internal/infrastructure/persistence/sqlite"
)

// ReferenceRepository implements port.ReferenceRepository
type ReferenceRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewReferenceRepository creates a new reference data repository
func NewReferenceRepository(db *sqlite.DB, logger *zap.Logger) port.ReferenceRepository {
	return &ReferenceRepository{
		db:     db,
		logger: logger,
	}
}

// ListEmployees returns employees in the order they were added
func (r *ReferenceRepository) ListEmployees(ctx context.Context) ([]entity.Employee, error) {
	query := `SELECT id, name, email, team_code, created_at FROM employees ORDER BY created_at, id`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list employees", zap.Error(err))
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	employees := make([]entity.Employee, 0)
	for rows.Next() {
		var e entity.Employee
		var email, teamCode sql.NullString
		if err := rows.Scan(&e.ID, &e.Name, &email, &teamCode, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		e.Email = stringPtr(email)
		e.TeamCode = stringPtr(teamCode)
		e.CreatedAt = e.CreatedAt.UTC()
		employees = append(employees, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate employees: %w", err)
	}
	return employees, nil
}

// ListActiveTeams returns active teams by name
func (r *ReferenceRepository) ListActiveTeams(ctx context.Context) ([]entity.FunctionalTeam, error) {
	query := `SELECT code, name, description, active, created_at FROM functional_teams
		WHERE active = 1 ORDER BY name, code`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list teams", zap.Error(err))
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	teams := make([]entity.FunctionalTeam, 0)
	for rows.Next() {
		var t entity.FunctionalTeam
		var description sql.NullString
		if err := rows.Scan(&t.Code, &t.Name, &description, &t.Active, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		t.Description = stringPtr(description)
		t.CreatedAt = t.CreatedAt.UTC()
		teams = append(teams, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate teams: %w", err)
	}
	return teams, nil
}

// ListActiveTrips returns active trips, latest start date first
func (r *ReferenceRepository) ListActiveTrips(ctx context.Context) ([]entity.Trip, error) {
	query := `SELECT id, name, start_date, end_date, city, country, active, created_at FROM trips
		WHERE active = 1 ORDER BY start_date DESC, id`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list trips", zap.Error(err))
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}
	defer rows.Close()

	trips := make([]entity.Trip, 0)
	for rows.Next() {
		var t entity.Trip
		var startDate, endDate, city, country sql.NullString
		if err := rows.Scan(&t.ID, &t.Name, &startDate, &endDate, &city, &country, &t.Active, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trip: %w", err)
		}
		t.StartDate = stringPtr(startDate)
		t.EndDate = stringPtr(endDate)
		t.City = stringPtr(city)
		t.Country = stringPtr(country)
		t.CreatedAt = t.CreatedAt.UTC()
		trips = append(trips, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trips: %w", err)
	}
	return trips, nil
}

// CreateEmployee creates a new employee
func (r *ReferenceRepository) CreateEmployee(ctx context.Context, employee *entity.Employee) error {
	employee.ID = uuid.NewString()
	employee.CreatedAt = time.Now().UTC()

	query := `INSERT INTO employees (id, name, email, team_code, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		employee.ID,
		employee.Name,
		nullString(employee.Email),
		nullString(employee.TeamCode),
		employee.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create employee", zap.Error(err))
		return fmt.Errorf("failed to create employee: %w", err)
	}
	return nil
}

// CreateTeam creates a new functional team. Codes are unique.
func (r *ReferenceRepository) CreateTeam(ctx context.Context, team *entity.FunctionalTeam) error {
	team.CreatedAt = time.Now().UTC()

	query := `INSERT INTO functional_teams (code, name, description, active, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		team.Code,
		team.Name,
		nullString(team.Description),
		team.Active,
		team.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create team", zap.String("code", team.Code), zap.Error(err))
		return fmt.Errorf("failed to create team: %w", err)
	}
	return nil
}

// CreateTrip creates a new trip
func (r *ReferenceRepository) CreateTrip(ctx context.Context, trip *entity.Trip) error {
	trip.ID = uuid.NewString()
	trip.CreatedAt = time.Now().UTC()

	query := `INSERT INTO trips (id, name, start_date, end_date, city, country, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		trip.ID,
		trip.Name,
		nullString(trip.StartDate),
		nullString(trip.EndDate),
		nullString(trip.City),
		nullString(trip.Country),
		trip.Active,
		trip.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create trip", zap.Error(err))
		return fmt.Errorf("failed to create trip: %w", err)
	}
	return nil
}
