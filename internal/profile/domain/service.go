package domain

import "context"

type RefreshReport struct {
	Customers int `json:"customers"`
	Cases     int `json:"cases"`
}

type Service interface {
	Refresh(ctx context.Context) (RefreshReport, error)
	// Resolve finds a profile by name or creates a synthetic one.
	Resolve(ctx context.Context, name string) (Profile, error)
	GetByID(ctx context.Context, id string) (Profile, error)
	// LatePaymentRatio is 0 for unknown customers.
	LatePaymentRatio(ctx context.Context, customerID string) (float64, error)
}
