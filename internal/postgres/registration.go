package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mintgate/whitelist/internal/domain"
)

// uniqueViolation is the SQLSTATE for a unique constraint violation.
const uniqueViolation = "23505"

// RegistrationStore implements domain.RegistrationStore using PostgreSQL.
// Uniqueness is enforced by the primary key on address; Insert never
// pre-checks existence.
type RegistrationStore struct {
	db *pgxpool.Pool
}

// Compile-time check to ensure RegistrationStore implements domain.RegistrationStore.
var _ domain.RegistrationStore = (*RegistrationStore)(nil)

// NewRegistrationStore creates a new RegistrationStore instance.
func NewRegistrationStore(db *pgxpool.Pool) *RegistrationStore {
	return &RegistrationStore{db: db}
}

// Insert persists a new registration. A unique violation on address maps to
// domain.ErrDuplicateAddress; the insert itself is the existence check.
func (s *RegistrationStore) Insert(ctx context.Context, reg *domain.Registration) error {
	query := `
		INSERT INTO registrations (address, registered_at, ip_address, user_agent)
		VALUES ($1, $2, $3, $4)
	`

	ip := pgtype.Text{String: reg.IPAddress, Valid: reg.IPAddress != ""}
	ua := pgtype.Text{String: reg.UserAgent, Valid: reg.UserAgent != ""}

	_, err := s.db.Exec(ctx, query, reg.Address, reg.RegisteredAt, ip, ua)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrDuplicateAddress
		}
		return fmt.Errorf("failed to insert registration: %w", err)
	}

	return nil
}

// GetByAddress returns the registration for an exact normalized address.
func (s *RegistrationStore) GetByAddress(ctx context.Context, addr string) (*domain.Registration, error) {
	query := `
		SELECT address, registered_at, ip_address, user_agent
		FROM registrations
		WHERE address = $1
	`

	reg, err := scanRegistration(s.db.QueryRow(ctx, query, addr))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to get registration: %w", err)
	}

	return reg, nil
}

// List returns a page of registrations ordered by registered_at descending.
// Ties on registered_at are broken by address ascending so pagination is
// deterministic.
func (s *RegistrationStore) List(ctx context.Context, limit, offset int64) ([]domain.Registration, error) {
	query := `
		SELECT address, registered_at, ip_address, user_agent
		FROM registrations
		ORDER BY registered_at DESC, address ASC
		LIMIT $1 OFFSET $2
	`

	rows, err := s.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	defer rows.Close()

	var regs []domain.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan registration: %w", err)
		}
		regs = append(regs, *reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read registrations: %w", err)
	}

	return regs, nil
}

// Count returns the total number of registrations.
func (s *RegistrationStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM registrations`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count registrations: %w", err)
	}
	return count, nil
}

// CountSince returns the number of registrations created at or after since.
func (s *RegistrationStore) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	query := `SELECT count(*) FROM registrations WHERE registered_at >= $1`
	if err := s.db.QueryRow(ctx, query, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count registrations since %s: %w", since.Format(time.RFC3339), err)
	}
	return count, nil
}

// Delete removes the registration for an exact normalized address.
func (s *RegistrationStore) Delete(ctx context.Context, addr string) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM registrations WHERE address = $1`, addr)
	if err != nil {
		return false, fmt.Errorf("failed to delete registration: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Ping verifies database connectivity.
func (s *RegistrationStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// scanRegistration reads one registrations row into a domain.Registration.
func scanRegistration(row pgx.Row) (*domain.Registration, error) {
	var (
		reg          domain.Registration
		registeredAt pgtype.Timestamptz
		ip, ua       pgtype.Text
	)

	if err := row.Scan(&reg.Address, &registeredAt, &ip, &ua); err != nil {
		return nil, err
	}

	reg.RegisteredAt = registeredAt.Time.UTC()
	reg.IPAddress = ip.String
	reg.UserAgent = ua.String

	return &reg, nil
}
