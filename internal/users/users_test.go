package users

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-cake-orders/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memStore struct {
	mu    sync.Mutex
	users map[string]User
}

func (m *memStore) Register(_ context.Context, u User, maxAdmins int) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	admins := 0
	for _, existing := range m.users {
		if existing.UID == u.UID || existing.Email == u.Email {
			return User{}, ErrDuplicate
		}
		if existing.IsAdmin {
			admins++
		}
	}
	if u.IsAdmin && admins >= maxAdmins {
		return User{}, ErrAdminLimit
	}
	u.CreatedAt = time.Now()
	m.users[u.UID] = u
	return u, nil
}

func (m *memStore) CountAdmins(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, u := range m.users {
		if u.IsAdmin {
			n++
		}
	}
	return n, nil
}

func (m *memStore) Get(_ context.Context, uid string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[uid]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func newSvc() *Service {
	return NewService(&memStore{users: map[string]User{}}, zap.NewNop())
}

func TestAdminCapUnderConcurrency(t *testing.T) {
	svc := newSvc()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted, refused := 0, 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Register(ctx, RegisterInput{
				UID:         fmt.Sprintf("uid-%d", i),
				Email:       fmt.Sprintf("admin%d@cakes.co.ke", i),
				DisplayName: "Admin",
				IsAdmin:     true,
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				admitted++
			} else if apperr.Is(err, apperr.KindConflict) {
				refused++
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, MaxAdmins, admitted)
	assert.Equal(t, 10-MaxAdmins, refused)

	av, err := svc.AdminAvailability(ctx)
	require.NoError(t, err)
	assert.Equal(t, Availability{CanRegisterAsAdmin: false, AdminCount: 3, MaxAdmins: 3}, av)

	_, err = svc.Register(ctx, RegisterInput{UID: "cust", Email: "c@example.com", DisplayName: "Customer"})
	assert.NoError(t, err, "customers are not capped")
}

func TestRegisterValidationAndDuplicates(t *testing.T) {
	svc := newSvc()
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{UID: "u1", Email: "not-an-email", DisplayName: "Jo"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.Register(ctx, RegisterInput{UID: "u1", Email: "jo@example.com", DisplayName: "J"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	u, err := svc.Register(ctx, RegisterInput{UID: "u1", Email: " Jo@Example.com ", DisplayName: "Jo"})
	require.NoError(t, err)
	assert.Equal(t, "jo@example.com", u.Email)

	_, err = svc.Register(ctx, RegisterInput{UID: "u2", Email: "jo@example.com", DisplayName: "Jo"})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestGetAccess(t *testing.T) {
	svc := newSvc()
	ctx := context.Background()
	_, err := svc.Register(ctx, RegisterInput{UID: "u1", Email: "jo@example.com", DisplayName: "Jo"})
	require.NoError(t, err)

	u, err := svc.Get(ctx, "u1", false, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Jo", u.DisplayName)

	_, err = svc.Get(ctx, "u2", false, "u1")
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = svc.Get(ctx, "admin", true, "u1")
	assert.NoError(t, err)

	_, err = svc.Get(ctx, "admin", true, "ghost")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestStoredAdmin(t *testing.T) {
	svc := newSvc()
	ctx := context.Background()
	_, err := svc.Register(ctx, RegisterInput{UID: "boss", Email: "boss@cakes.co.ke", DisplayName: "Boss", IsAdmin: true})
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterInput{UID: "cust", Email: "cust@example.com", DisplayName: "Cust"})
	require.NoError(t, err)

	for uid, want := range map[string]bool{"boss": true, "cust": false, "ghost": false} {
		got, err := svc.StoredAdmin(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, want, got, uid)
	}
}
