package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mintgate/whitelist/internal/address"
	"github.com/mintgate/whitelist/internal/domain"
)

// Pagination defaults. Non-numeric or absent page/limit values fall back to
// these rather than failing, matching the lenient query contract.
const (
	DefaultPage  = 1
	DefaultLimit = 50
)

// WhitelistService exposes the registration operations against an injected
// store. All coordination is delegated to the store's uniqueness guarantees;
// the service holds no mutable state.
type WhitelistService struct {
	store domain.RegistrationStore

	// now is injectable for deterministic tests.
	now func() time.Time
}

// NewWhitelistService creates a new WhitelistService instance.
func NewWhitelistService(store domain.RegistrationStore) *WhitelistService {
	return &WhitelistService{
		store: store,
		now:   time.Now,
	}
}

// Register validates, normalizes, and persists a new registration.
// Duplicate detection relies solely on the store's unique constraint: the
// insert is attempted directly and a constraint violation is translated to
// ECONFLICT carrying the pre-existing entry.
func (s *WhitelistService) Register(ctx context.Context, rawAddress, clientIP, userAgent string) (*domain.Registration, error) {
	const op = "whitelist.register"

	if rawAddress == "" {
		return nil, domain.Invalid(op, "address is required")
	}
	if !address.IsValid(rawAddress) {
		return nil, domain.Invalid(op, "invalid address format: must be 0x followed by 40 hex characters")
	}

	reg := &domain.Registration{
		Address:      address.Normalize(rawAddress),
		RegisteredAt: s.now().UTC(),
		IPAddress:    clientIP,
		UserAgent:    userAgent,
	}

	err := s.store.Insert(ctx, reg)
	if err == nil {
		return reg, nil
	}
	if !errors.Is(err, domain.ErrDuplicateAddress) {
		return nil, domain.Internal(err, op, "failed to save registration")
	}

	// Lost the race or the address was already present. Fetch the original
	// entry so the caller sees its address and timestamp.
	existing, lookupErr := s.store.GetByAddress(ctx, reg.Address)
	if lookupErr != nil {
		// The winning row vanished between insert and lookup (concurrent
		// remove). Still a conflict from this caller's perspective.
		existing = nil
	}

	return nil, &domain.Error{
		Code:    domain.ECONFLICT,
		Op:      op,
		Message: "address is already registered",
		Err:     &domain.AlreadyRegisteredError{Existing: existing},
	}
}

// Check reports whether a normalized address is registered. Read-only.
func (s *WhitelistService) Check(ctx context.Context, rawAddress string) (*domain.Registration, bool, error) {
	const op = "whitelist.check"

	if rawAddress == "" {
		return nil, false, domain.Invalid(op, "address is required")
	}
	if !address.IsValid(rawAddress) {
		return nil, false, domain.Invalid(op, "invalid address format: must be 0x followed by 40 hex characters")
	}

	reg, err := s.store.GetByAddress(ctx, address.Normalize(rawAddress))
	if err != nil {
		if errors.Is(err, domain.ErrRegistrationNotFound) {
			return nil, false, nil
		}
		return nil, false, domain.Internal(err, op, "failed to look up registration")
	}

	return reg, true, nil
}

// RegistrationPage is one page of the registration listing.
type RegistrationPage struct {
	Registrations []domain.Registration
	Total         int64
	Page          int64
	TotalPages    int64
}

// List returns a page of registrations, most recent first. Page and limit
// arrive as raw query values: absent or non-numeric input falls back to the
// defaults, while explicit non-positive values are rejected (a zero limit
// would divide by zero computing totalPages, and a page below one would
// produce a negative offset).
func (s *WhitelistService) List(ctx context.Context, pageParam, limitParam string) (*RegistrationPage, error) {
	const op = "whitelist.list"

	page := coerceInt(pageParam, DefaultPage)
	limit := coerceInt(limitParam, DefaultLimit)

	if limit < 1 {
		return nil, domain.Invalid(op, fmt.Sprintf("limit must be a positive integer, got %d", limit))
	}
	if page < 1 {
		return nil, domain.Invalid(op, fmt.Sprintf("page must be a positive integer, got %d", page))
	}

	offset := (page - 1) * limit

	regs, err := s.store.List(ctx, limit, offset)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list registrations")
	}

	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to count registrations")
	}

	return &RegistrationPage{
		Registrations: regs,
		Total:         total,
		Page:          page,
		TotalPages:    (total + limit - 1) / limit,
	}, nil
}

// Stats returns aggregate counts: all-time total, registrations since UTC
// midnight, and registrations in a rolling 7-day window. The calendar-day /
// rolling-window asymmetry is deliberate.
func (s *WhitelistService) Stats(ctx context.Context) (*domain.Stats, error) {
	const op = "whitelist.stats"

	now := s.now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekAgo := now.Add(-7 * 24 * time.Hour)

	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to count registrations")
	}

	today, err := s.store.CountSince(ctx, startOfDay)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to count today's registrations")
	}

	lastWeek, err := s.store.CountSince(ctx, weekAgo)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to count last week's registrations")
	}

	return &domain.Stats{
		Total:    total,
		Today:    today,
		LastWeek: lastWeek,
	}, nil
}

// Remove deletes a registration. Malformed addresses are rejected before
// touching the store; they can never match a stored row.
func (s *WhitelistService) Remove(ctx context.Context, rawAddress string) error {
	const op = "whitelist.remove"

	if rawAddress == "" {
		return domain.Invalid(op, "address is required")
	}
	if !address.IsValid(rawAddress) {
		return domain.Invalid(op, "invalid address format: must be 0x followed by 40 hex characters")
	}

	addr := address.Normalize(rawAddress)

	deleted, err := s.store.Delete(ctx, addr)
	if err != nil {
		return domain.Internal(err, op, "failed to delete registration")
	}
	if !deleted {
		return domain.NotFound(op, "registration", addr)
	}

	return nil
}

// coerceInt parses a query value, falling back to def on absent or
// non-numeric input. Explicit negative or zero values parse successfully and
// are returned as-is for the caller to reject.
func coerceInt(v string, def int64) int64 {
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}
