package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/expense-drafts/internal/application/service"
	"github.com/garyjia/expense-drafts/internal/domain/entity"
)

// CreateEmployeeRequest is the body of POST /api/employees
type CreateEmployeeRequest struct {
	Name     string  `json:"name"`
	Email    *string `json:"email"`
	TeamCode *string `json:"teamCode"`
}

// CreateTeamRequest is the body of POST /api/teams
type CreateTeamRequest struct {
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

// CreateTripRequest is the body of POST /api/trips
type CreateTripRequest struct {
	Name      string  `json:"name"`
	StartDate *string `json:"startDate"`
	EndDate   *string `json:"endDate"`
	City      *string `json:"city"`
	Country   *string `json:"country"`
}

// ListEmployees handles GET /api/employees
func (h *Handlers) ListEmployees(c *gin.Context) {
	employees, err := h.references.Employees(c.Request.Context())
	if err != nil {
		h.serviceError(c, err)
		return
	}
	if employees == nil {
		employees = []entity.Employee{}
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: employees})
}

// CreateEmployee handles POST /api/employees
func (h *Handlers) CreateEmployee(c *gin.Context) {
	var req CreateEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	employee, err := h.references.CreateEmployee(c.Request.Context(), service.NewEmployee{
		Name:     req.Name,
		Email:    req.Email,
		TeamCode: req.TeamCode,
	})
	if err != nil {
		h.createError(c, err, "missing_name")
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: employee})
}

// ListTeams handles GET /api/teams
func (h *Handlers) ListTeams(c *gin.Context) {
	teams, err := h.references.ActiveTeams(c.Request.Context())
	if err != nil {
		h.serviceError(c, err)
		return
	}
	if teams == nil {
		teams = []entity.FunctionalTeam{}
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: teams})
}

// CreateTeam handles POST /api/teams
func (h *Handlers) CreateTeam(c *gin.Context) {
	var req CreateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	team, err := h.references.CreateTeam(c.Request.Context(), service.NewTeam{
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		h.createError(c, err, "missing_code_or_name")
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: team})
}

// ListTrips handles GET /api/trips
func (h *Handlers) ListTrips(c *gin.Context) {
	trips, err := h.references.ActiveTrips(c.Request.Context())
	if err != nil {
		h.serviceError(c, err)
		return
	}
	if trips == nil {
		trips = []entity.Trip{}
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: trips})
}

// CreateTrip handles POST /api/trips
func (h *Handlers) CreateTrip(c *gin.Context) {
	var req CreateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	trip, err := h.references.CreateTrip(c.Request.Context(), service.NewTrip{
		Name:      req.Name,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		City:      req.City,
		Country:   req.Country,
	})
	if err != nil {
		h.createError(c, err, "missing_name")
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: trip})
}

// createError reports validation failures with the endpoint's own code
func (h *Handlers) createError(c *gin.Context, err error, invalidCode string) {
	if errors.Is(err, service.ErrInvalidInput) {
		h.fail(c, http.StatusBadRequest, invalidCode, err)
		return
	}
	h.serviceError(c, err)
}
