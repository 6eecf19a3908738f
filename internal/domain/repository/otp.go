package repository

import (
	"context"
	"time"
)

// OTP es un código de 6 dígitos. Hay a lo sumo uno por email.
type OTP struct {
	Email     string
	Code      string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

type OTPRepository interface {
	Get(ctx context.Context, email string) (*OTP, error)
	// Upsert inserta o reemplaza código y expiración para el email.
	Upsert(ctx context.Context, o *OTP) error
	Delete(ctx context.Context, email string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
