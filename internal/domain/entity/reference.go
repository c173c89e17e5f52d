package entity

import "time"

// Employee is a person expenses can be assigned to
type Employee struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     *string   `json:"email"`
	TeamCode  *string   `json:"teamCode"`
	CreatedAt time.Time `json:"createdAt"`
}

// FunctionalTeam is a cost center expenses can be charged to
type FunctionalTeam struct {
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Trip groups expenses incurred during business travel
type Trip struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartDate *string   `json:"startDate"`
	EndDate   *string   `json:"endDate"`
	City      *string   `json:"city"`
	Country   *string   `json:"country"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}
