package scheduler

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrGuardUnconfigured means production is running without a cron
	// secret at all. The run must abort before touching any data.
	ErrGuardUnconfigured = errors.New("cron secret not configured for production")
	ErrUnauthorized      = errors.New("invalid cron secret")
)

// Guard gates reminder runs behind a pre-shared operational secret. The
// config holds a bcrypt hash, never the plain secret. Outside
// production the guard is a no-op.
type Guard struct {
	env        string
	secretHash string
}

func NewGuard(env, secretHash string) *Guard {
	return &Guard{env: env, secretHash: secretHash}
}

func (g *Guard) Authorize(provided string) error {
	if g.env != "production" {
		return nil
	}
	if g.secretHash == "" {
		return ErrGuardUnconfigured
	}
	if err := bcrypt.CompareHashAndPassword([]byte(g.secretHash), []byte(provided)); err != nil {
		return ErrUnauthorized
	}
	return nil
}
