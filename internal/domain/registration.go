package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Registration is the persisted record of one whitelisted address.
// Address is stored lowercase-normalized and acts as the natural unique key.
// IPAddress and UserAgent are captured at creation for audit purposes and
// are never returned by read operations.
type Registration struct {
	Address      string
	RegisteredAt time.Time
	IPAddress    string
	UserAgent    string
}

// Stats holds aggregate registration counts.
// Today counts from UTC midnight; LastWeek is a rolling 7-day window.
type Stats struct {
	Total    int64
	Today    int64
	LastWeek int64
}

// Store-level sentinel errors. The store reports mechanical outcomes;
// the service layer translates them into domain errors with codes.
var (
	// ErrDuplicateAddress is returned by Insert when the unique constraint
	// on address rejects the row.
	ErrDuplicateAddress = errors.New("address already registered")

	// ErrRegistrationNotFound is returned by GetByAddress when no row matches.
	ErrRegistrationNotFound = errors.New("registration not found")
)

// RegistrationStore persists registrations keyed uniquely on the normalized
// address. Implementations must enforce uniqueness at insert time; callers
// never pre-check existence before writing.
type RegistrationStore interface {
	// Insert persists a new registration. Returns ErrDuplicateAddress if a
	// row with the same address already exists.
	Insert(ctx context.Context, reg *Registration) error

	// GetByAddress returns the registration for an exact normalized address,
	// or ErrRegistrationNotFound.
	GetByAddress(ctx context.Context, addr string) (*Registration, error)

	// List returns up to limit registrations starting at offset, ordered by
	// registered_at descending with address ascending as tiebreak.
	List(ctx context.Context, limit, offset int64) ([]Registration, error)

	// Count returns the total number of registrations.
	Count(ctx context.Context) (int64, error)

	// CountSince returns the number of registrations with
	// registered_at >= since.
	CountSince(ctx context.Context, since time.Time) (int64, error)

	// Delete removes the registration for an exact normalized address and
	// reports whether a row was deleted.
	Delete(ctx context.Context, addr string) (bool, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}

// AlreadyRegisteredError carries the pre-existing registration when a
// register attempt hits the unique constraint, so callers can surface the
// original address and timestamp without a second round trip.
type AlreadyRegisteredError struct {
	Existing *Registration
}

func (e *AlreadyRegisteredError) Error() string {
	if e.Existing != nil {
		return fmt.Sprintf("address %s already registered at %s",
			e.Existing.Address, e.Existing.RegisteredAt.Format(time.RFC3339))
	}
	return "address already registered"
}

// ExistingRegistration extracts the prior registration from an
// AlreadyRegisteredError anywhere in err's chain. Returns nil if absent.
func ExistingRegistration(err error) *Registration {
	var are *AlreadyRegisteredError
	if errors.As(err, &are) {
		return are.Existing
	}
	return nil
}
