package contacts

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-cake-orders/internal/apperr"
	"github.com/ariefcatur/go-cake-orders/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memStore struct {
	mu    sync.Mutex
	clock time.Time
	rows  map[string]Contact
}

func (m *memStore) Insert(_ context.Context, c Contact) (Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = m.clock.Add(time.Second)
	c.CreatedAt, c.UpdatedAt = m.clock, m.clock
	m.rows[c.ID] = c
	return c, nil
}

func (m *memStore) List(_ context.Context, status string, limit, offset int) ([]Contact, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []Contact
	for _, c := range m.rows {
		if status == "" || c.Status == status {
			all = append(all, c)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *memStore) UpdateStatus(_ context.Context, id, status string) (Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[id]
	if !ok {
		return Contact{}, ErrNotFound
	}
	c.Status = status
	m.rows[id] = c
	return c, nil
}

type recNotifier struct {
	mu     sync.Mutex
	events []string
	last   any
}

func (r *recNotifier) Dispatch(_ context.Context, eventType, _ string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
	r.last = payload
}

func valid() SubmitInput {
	return SubmitInput{
		Name:     "Wanjiru",
		Email:    "Wanjiru@Example.com",
		Phone:    "0712345678",
		Subject:  "Wedding cake",
		Category: "order",
		Message:  "Do you deliver to Thika on weekends?",
	}
}

func newSvc() (*Service, *recNotifier) {
	n := &recNotifier{}
	return NewService(&memStore{rows: map[string]Contact{}, clock: time.Unix(1700000000, 0)}, n, zap.NewNop()), n
}

func TestSubmit(t *testing.T) {
	svc, n := newSvc()
	c, err := svc.Submit(context.Background(), valid())
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, StatusNew, c.Status)
	assert.Equal(t, "wanjiru@example.com", c.Email)
	assert.Equal(t, []string{notify.EventContactReceived}, n.events)
	p, ok := n.last.(notify.ContactReceivedPayload)
	require.True(t, ok)
	assert.Equal(t, c.ID, p.ContactID)
}

func TestSubmitValidation(t *testing.T) {
	svc, n := newSvc()
	cases := map[string]func(*SubmitInput){
		"short message": func(in *SubmitInput) { in.Message = "hi" },
		"bad category":  func(in *SubmitInput) { in.Category = "spam" },
		"bad phone":     func(in *SubmitInput) { in.Phone = "12345" },
		"short subject": func(in *SubmitInput) { in.Subject = "Hey" },
	}
	for name, mut := range cases {
		t.Run(name, func(t *testing.T) {
			in := valid()
			mut(&in)
			_, err := svc.Submit(context.Background(), in)
			assert.True(t, apperr.Is(err, apperr.KindValidation))
		})
	}
	assert.Empty(t, n.events)
}

func TestListAndUpdateStatus(t *testing.T) {
	svc, _ := newSvc()
	ctx := context.Background()
	var ids []string
	for i := 0; i < 3; i++ {
		c, err := svc.Submit(ctx, valid())
		require.NoError(t, err)
		ids = append(ids, c.ID)
	}

	_, err := svc.UpdateStatus(ctx, ids[0], StatusRead)
	require.NoError(t, err)

	page, err := svc.List(ctx, ListFilter{Status: "all", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Data, 2)
	assert.Equal(t, Pagination{Total: 3, Page: 1, Limit: 2, Pages: 2}, page.Pagination)
	assert.Equal(t, ids[2], page.Data[0].ID, "newest first")

	page, err = svc.List(ctx, ListFilter{Status: StatusRead})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, ids[0], page.Data[0].ID)

	_, err = svc.List(ctx, ListFilter{Status: "archived"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.UpdateStatus(ctx, ids[1], "archived")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.UpdateStatus(ctx, "missing", StatusResponded)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
