package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/mintgate/whitelist/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore is an in-memory RegistrationStore for tests. It mirrors the
// Postgres semantics: uniqueness enforced on insert, listing ordered by
// registered_at descending with address ascending as tiebreak.
type memoryStore struct {
	mu   sync.Mutex
	regs map[string]domain.Registration
}

func newMemoryStore() *memoryStore {
	return &memoryStore{regs: make(map[string]domain.Registration)}
}

func (m *memoryStore) Insert(ctx context.Context, reg *domain.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.regs[reg.Address]; ok {
		return domain.ErrDuplicateAddress
	}
	m.regs[reg.Address] = *reg
	return nil
}

func (m *memoryStore) GetByAddress(ctx context.Context, addr string) (*domain.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	reg, ok := m.regs[addr]
	if !ok {
		return nil, domain.ErrRegistrationNotFound
	}
	return &reg, nil
}

func (m *memoryStore) List(ctx context.Context, limit, offset int64) ([]domain.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]domain.Registration, 0, len(m.regs))
	for _, reg := range m.regs {
		all = append(all, reg)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].RegisteredAt.Equal(all[j].RegisteredAt) {
			return all[i].RegisteredAt.After(all[j].RegisteredAt)
		}
		return all[i].Address < all[j].Address
	})

	if offset >= int64(len(all)) {
		return nil, nil
	}
	all = all[offset:]
	if limit < int64(len(all)) {
		all = all[:limit]
	}
	return all, nil
}

func (m *memoryStore) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.regs)), nil
}

func (m *memoryStore) CountSince(ctx context.Context, since time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for _, reg := range m.regs {
		if !reg.RegisteredAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *memoryStore) Delete(ctx context.Context, addr string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.regs[addr]; !ok {
		return false, nil
	}
	delete(m.regs, addr)
	return true, nil
}

func (m *memoryStore) Ping(ctx context.Context) error { return nil }

const (
	validUpper = "0xABCDEF0123456789ABCDEF0123456789ABCDEF01"
	validLower = "0xabcdef0123456789abcdef0123456789abcdef01"
)

func newTestService() (*WhitelistService, *memoryStore) {
	store := newMemoryStore()
	return NewWhitelistService(store), store
}

func TestRegister_NormalizesAndPersists(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	reg, err := svc.Register(ctx, validUpper, "203.0.113.7", "curl/8.0")
	require.NoError(t, err)

	assert.Equal(t, validLower, reg.Address)
	assert.False(t, reg.RegisteredAt.IsZero())
	assert.Equal(t, time.UTC, reg.RegisteredAt.Location())

	stored, err := store.GetByAddress(ctx, validLower)
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.7", stored.IPAddress)
	assert.Equal(t, "curl/8.0", stored.UserAgent)
}

func TestRegister_InvalidInput(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "", "", "")
	assert.True(t, domain.IsCode(err, domain.EINVALID))

	tests := []string{
		"not-an-address",
		"0x123",
		"0xabcdef0123456789abcdef0123456789abcdefgh", // non-hex
		" " + validLower,
		validLower + " ",
	}
	for _, input := range tests {
		_, err := svc.Register(ctx, input, "", "")
		assert.True(t, domain.IsCode(err, domain.EINVALID), "input %q should be rejected", input)
	}
}

func TestRegister_DuplicateKeepsOriginal(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	first, err := svc.Register(ctx, validLower, "", "")
	require.NoError(t, err)

	// Same address in a different letter case must still conflict.
	_, err = svc.Register(ctx, validUpper, "", "")
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ECONFLICT))

	existing := domain.ExistingRegistration(err)
	require.NotNil(t, existing)
	assert.Equal(t, validLower, existing.Address)
	assert.True(t, existing.RegisteredAt.Equal(first.RegisteredAt),
		"second register must surface the original registeredAt")

	// Exactly one row persisted.
	total, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestCheck_Transitions(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, found, err := svc.Check(ctx, validUpper)
	require.NoError(t, err)
	assert.False(t, found)

	_, err = svc.Register(ctx, validUpper, "", "")
	require.NoError(t, err)

	// Registered: repeated checks stay true and never flip back.
	for i := 0; i < 3; i++ {
		reg, found, err := svc.Check(ctx, validLower)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, validLower, reg.Address)
	}
}

func TestCheck_InvalidFormat(t *testing.T) {
	svc, _ := newTestService()

	_, _, err := svc.Check(context.Background(), "0xnope")
	assert.True(t, domain.IsCode(err, domain.EINVALID))

	_, _, err = svc.Check(context.Background(), "")
	assert.True(t, domain.IsCode(err, domain.EINVALID))
}

// seedN inserts n registrations with distinct timestamps, newest last.
func seedN(t *testing.T, store *memoryStore, n int) {
	t.Helper()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		reg := domain.Registration{
			Address:      fmt.Sprintf("0x%040x", i),
			RegisteredAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.Insert(context.Background(), &reg))
	}
}

func TestList_Pagination(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	seedN(t, store, 25)

	var all []domain.Registration
	page1, err := svc.List(ctx, "1", "10")
	require.NoError(t, err)
	assert.Equal(t, int64(25), page1.Total)
	assert.Equal(t, int64(3), page1.TotalPages)
	assert.Len(t, page1.Registrations, 10)

	// Concatenating all pages yields every registration exactly once,
	// ordered newest first.
	for p := int64(1); p <= page1.TotalPages; p++ {
		page, err := svc.List(ctx, string(rune('0'+p)), "10")
		require.NoError(t, err)
		assert.Equal(t, int64(25), page.Total)
		all = append(all, page.Registrations...)
	}

	require.Len(t, all, 25)
	seen := make(map[string]bool)
	for i, reg := range all {
		assert.False(t, seen[reg.Address], "duplicate address %s", reg.Address)
		seen[reg.Address] = true
		if i > 0 {
			assert.False(t, all[i-1].RegisteredAt.Before(reg.RegisteredAt),
				"registrations must be ordered newest first")
		}
	}
}

func TestList_TiebreakDeterministic(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	ts := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	addrs := []string{
		"0xcccccccccccccccccccccccccccccccccccccccc",
		"0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		"0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
	}
	for _, a := range addrs {
		require.NoError(t, store.Insert(ctx, &domain.Registration{Address: a, RegisteredAt: ts}))
	}

	page, err := svc.List(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, page.Registrations, 3)

	// Equal timestamps fall back to address ascending.
	assert.Equal(t, addrs[1], page.Registrations[0].Address)
	assert.Equal(t, addrs[2], page.Registrations[1].Address)
	assert.Equal(t, addrs[0], page.Registrations[2].Address)
}

func TestList_LenientCoercion(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	seedN(t, store, 3)

	// Absent and non-numeric values fall back to defaults.
	for _, params := range [][2]string{{"", ""}, {"abc", "xyz"}, {"1.5", "ten"}} {
		page, err := svc.List(ctx, params[0], params[1])
		require.NoError(t, err, "page=%q limit=%q", params[0], params[1])
		assert.Equal(t, int64(1), page.Page)
		assert.Equal(t, int64(3), page.Total)
		assert.Len(t, page.Registrations, 3)
		assert.Equal(t, int64(1), page.TotalPages)
	}
}

func TestList_RejectsNonPositiveBounds(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	for _, params := range [][2]string{{"1", "0"}, {"1", "-5"}, {"0", "10"}, {"-1", "10"}} {
		_, err := svc.List(ctx, params[0], params[1])
		assert.True(t, domain.IsCode(err, domain.EINVALID), "page=%q limit=%q", params[0], params[1])
	}
}

func TestList_EmptyStore(t *testing.T) {
	svc, _ := newTestService()

	page, err := svc.List(context.Background(), "", "")
	require.NoError(t, err)
	assert.Empty(t, page.Registrations)
	assert.Equal(t, int64(0), page.Total)
	assert.Equal(t, int64(0), page.TotalPages)
}

func TestStats_WindowsAndOrdering(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	// Fix the clock mid-day so window boundaries are unambiguous.
	now := time.Date(2026, 5, 10, 15, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	seed := []struct {
		addr string
		at   time.Time
	}{
		{"0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", now.Add(-time.Hour)},            // today + week
		{"0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", now.Add(-20 * time.Hour)},       // yesterday, within week
		{"0xcccccccccccccccccccccccccccccccccccccccc", now.Add(-6 * 24 * time.Hour)},   // within week
		{"0xdddddddddddddddddddddddddddddddddddddddd", now.Add(-8 * 24 * time.Hour)},   // outside week
		{"0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee", now.Add(-365 * 24 * time.Hour)}, // ancient
	}
	for _, s := range seed {
		require.NoError(t, store.Insert(ctx, &domain.Registration{Address: s.addr, RegisteredAt: s.at}))
	}

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(5), stats.Total)
	assert.Equal(t, int64(1), stats.Today)
	assert.Equal(t, int64(3), stats.LastWeek)
	assert.GreaterOrEqual(t, stats.Total, stats.LastWeek)
	assert.GreaterOrEqual(t, stats.LastWeek, stats.Today)
	assert.GreaterOrEqual(t, stats.Today, int64(0))
}

func TestStats_TodayIsCalendarDayNotRollingWindow(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	// 01:00 UTC: a registration 2 hours ago belongs to yesterday even though
	// it is well inside any rolling 24h window.
	now := time.Date(2026, 5, 10, 1, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	require.NoError(t, store.Insert(ctx, &domain.Registration{
		Address:      validLower,
		RegisteredAt: now.Add(-2 * time.Hour),
	}))

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Today)
	assert.Equal(t, int64(1), stats.LastWeek)
}

func TestRemove(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, validUpper, "", "")
	require.NoError(t, err)

	// Any letter case removes the same row.
	require.NoError(t, svc.Remove(ctx, validUpper))

	_, found, err := svc.Check(ctx, validLower)
	require.NoError(t, err)
	assert.False(t, found, "check after remove must report unregistered")

	err = svc.Remove(ctx, validLower)
	assert.True(t, domain.IsCode(err, domain.ENOTFOUND))
}

func TestRemove_MalformedAddress(t *testing.T) {
	svc, _ := newTestService()

	err := svc.Remove(context.Background(), "0xnot-valid")
	assert.True(t, domain.IsCode(err, domain.EINVALID))

	err = svc.Remove(context.Background(), "")
	assert.True(t, domain.IsCode(err, domain.EINVALID))
}
