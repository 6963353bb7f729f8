package catalog

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-cake-orders/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memStore is an in-memory Store.
type memStore struct {
	mu      sync.Mutex
	cakes   map[string]Cake
	flavors map[string]Flavor
	clock   time.Time
}

func newMemStore() *memStore {
	return &memStore{cakes: map[string]Cake{}, flavors: map[string]Flavor{}, clock: time.Unix(1_700_000_000, 0).UTC()}
}

func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memStore) InsertCake(_ context.Context, c Cake) (Cake, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cakes[c.ID]; ok {
		return Cake{}, ErrDuplicate
	}
	c.CreatedAt = m.tick()
	c.UpdatedAt = c.CreatedAt
	m.cakes[c.ID] = c
	return c, nil
}

func (m *memStore) GetCake(_ context.Context, id string) (Cake, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cakes[id]
	if !ok {
		return Cake{}, ErrNotFound
	}
	return c, nil
}

func (m *memStore) ListCakes(_ context.Context, f CakeFilter) ([]Cake, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Cake
	for _, c := range m.cakes {
		if f.Bestseller != nil && c.Bestseller != *f.Bestseller {
			continue
		}
		if f.Category != "" && !contains(c.Category, f.Category) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func (m *memStore) UpdateCake(_ context.Context, id string, p CakePatch) (Cake, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cakes[id]
	if !ok {
		return Cake{}, ErrNotFound
	}
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Price != nil {
		c.Price = *p.Price
	}
	if p.Bestseller != nil {
		c.Bestseller = *p.Bestseller
	}
	if p.Sizes != nil {
		c.Sizes = *p.Sizes
	}
	c.UpdatedAt = m.tick()
	m.cakes[id] = c
	return c, nil
}

func (m *memStore) DeleteCake(_ context.Context, id string) (Cake, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cakes[id]
	if !ok {
		return Cake{}, ErrNotFound
	}
	delete(m.cakes, id)
	return c, nil
}

func (m *memStore) InsertFlavor(_ context.Context, f Flavor) (Flavor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.flavors {
		if existing.Slug == f.Slug {
			return Flavor{}, ErrDuplicate
		}
	}
	f.CreatedAt = m.tick()
	f.UpdatedAt = f.CreatedAt
	m.flavors[f.ID] = f
	return f, nil
}

func (m *memStore) GetFlavorBySlug(_ context.Context, slug string) (Flavor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.flavors {
		if f.Slug == slug {
			return f, nil
		}
	}
	return Flavor{}, ErrNotFound
}

func (m *memStore) ListFlavors(_ context.Context, activeOnly bool) ([]Flavor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Flavor
	for _, f := range m.flavors {
		if !activeOnly || f.IsActive {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *memStore) UpdateFlavor(_ context.Context, id string, in FlavorInput) (Flavor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.flavors[id]
	if !ok {
		return Flavor{}, ErrNotFound
	}
	f.Name, f.Description, f.Images, f.IsActive = in.Name, in.Description, in.Images, in.active()
	m.flavors[id] = f
	return f, nil
}

func (m *memStore) DeleteFlavor(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.flavors[id]; !ok {
		return ErrNotFound
	}
	delete(m.flavors, id)
	return nil
}

func blackForest() CakeInput {
	return CakeInput{
		ID:          "black-forest",
		Name:        "Black Forest",
		Description: "Chocolate sponge with cherries and cream",
		Price:       2500,
		Image:       "https://cdn.cakes.co.ke/black-forest.jpg",
		Category:    []string{"chocolate", "birthday"},
		Flavors:     []string{"chocolate"},
		Toppings:    []string{"cherries"},
		Sizes:       []string{"1kg", "2kg"},
		Rating:      4.5,
		Reviews:     12,
		Bestseller:  true,
	}
}

func TestCakeRoundTrip(t *testing.T) {
	svc := NewService(newMemStore(), zap.NewNop())
	ctx := context.Background()

	in := blackForest()
	_, err := svc.CreateCake(ctx, in)
	require.NoError(t, err)

	got, err := svc.GetCake(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, in.ID, got.ID)
	assert.Equal(t, in.Name, got.Name)
	assert.Equal(t, in.Description, got.Description)
	assert.Equal(t, in.Price, got.Price)
	assert.Equal(t, in.Image, got.Image)
	assert.Equal(t, in.Category, got.Category)
	assert.Equal(t, in.Flavors, got.Flavors)
	assert.Equal(t, in.Toppings, got.Toppings)
	assert.Equal(t, in.Sizes, got.Sizes)
	assert.Equal(t, in.Rating, got.Rating)
	assert.Equal(t, in.Reviews, got.Reviews)
	assert.Equal(t, in.Bestseller, got.Bestseller)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = svc.CreateCake(ctx, in)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestCakeValidation(t *testing.T) {
	svc := NewService(newMemStore(), zap.NewNop())
	cases := map[string]func(*CakeInput){
		"short description": func(c *CakeInput) { c.Description = "tasty" },
		"zero price":        func(c *CakeInput) { c.Price = 0 },
		"bad image":         func(c *CakeInput) { c.Image = "not a url" },
		"no sizes":          func(c *CakeInput) { c.Sizes = nil },
		"blank topping":     func(c *CakeInput) { c.Toppings = []string{""} },
		"rating above 5":    func(c *CakeInput) { c.Rating = 5.5 },
		"negative reviews":  func(c *CakeInput) { c.Reviews = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := blackForest()
			mutate(&in)
			_, err := svc.CreateCake(context.Background(), in)
			assert.True(t, apperr.Is(err, apperr.KindValidation))
		})
	}
}

func TestCakeUpdateAndDelete(t *testing.T) {
	svc := NewService(newMemStore(), zap.NewNop())
	ctx := context.Background()
	_, err := svc.CreateCake(ctx, blackForest())
	require.NoError(t, err)

	price := 2800.0
	c, err := svc.UpdateCake(ctx, "black-forest", CakePatch{Price: &price})
	require.NoError(t, err)
	assert.Equal(t, 2800.0, c.Price)
	assert.Equal(t, "Black Forest", c.Name)

	zero := 0.0
	_, err = svc.UpdateCake(ctx, "black-forest", CakePatch{Price: &zero})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	empty := []string{}
	_, err = svc.UpdateCake(ctx, "black-forest", CakePatch{Sizes: &empty})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.UpdateCake(ctx, "missing", CakePatch{Price: &price})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = svc.DeleteCake(ctx, "black-forest")
	require.NoError(t, err)
	_, err = svc.GetCake(ctx, "black-forest")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = svc.DeleteCake(ctx, "black-forest")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestListCakesFilters(t *testing.T) {
	svc := NewService(newMemStore(), zap.NewNop())
	ctx := context.Background()
	_, err := svc.CreateCake(ctx, blackForest())
	require.NoError(t, err)
	vanilla := blackForest()
	vanilla.ID, vanilla.Name, vanilla.Category, vanilla.Bestseller = "vanilla", "Vanilla Dream", []string{"wedding"}, false
	_, err = svc.CreateCake(ctx, vanilla)
	require.NoError(t, err)

	all, err := svc.ListCakes(ctx, CakeFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "vanilla", all[0].ID, "newest first")

	yes := true
	best, err := svc.ListCakes(ctx, CakeFilter{Bestseller: &yes})
	require.NoError(t, err)
	require.Len(t, best, 1)
	assert.Equal(t, "black-forest", best[0].ID)

	wedding, err := svc.ListCakes(ctx, CakeFilter{Category: "wedding"})
	require.NoError(t, err)
	require.Len(t, wedding, 1)

	none, err := svc.ListCakes(ctx, CakeFilter{Category: "vegan"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "red-velvet-cream", Slugify("  Red Velvet & Cream "))
	assert.Equal(t, "lemon-drizzle", Slugify("Lemon -- Drizzle"))
	assert.Equal(t, "", Slugify("!!!"))
}

func TestFlavors(t *testing.T) {
	svc := NewService(newMemStore(), zap.NewNop())
	ctx := context.Background()
	in := FlavorInput{Name: "Red Velvet", Description: "Cocoa sponge with cream cheese", Images: []string{"rv.jpg"}}

	f, err := svc.CreateFlavor(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "red-velvet", f.Slug)
	assert.True(t, f.IsActive)
	assert.NotEmpty(t, f.ID)

	_, err = svc.CreateFlavor(ctx, FlavorInput{Name: "red velvet", Description: in.Description, Images: in.Images})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = svc.CreateFlavor(ctx, FlavorInput{Name: "!!", Description: in.Description, Images: in.Images})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	got, err := svc.GetFlavor(ctx, "red-velvet")
	require.NoError(t, err)
	assert.Equal(t, f.ID, got.ID)

	off := false
	in.IsActive = &off
	updated, err := svc.UpdateFlavor(ctx, f.ID, in)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, "red-velvet", updated.Slug)

	list, err := svc.ListFlavors(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, svc.DeleteFlavor(ctx, f.ID))
	assert.True(t, apperr.Is(svc.DeleteFlavor(ctx, f.ID), apperr.KindNotFound))
	_, err = svc.GetFlavor(ctx, "red-velvet")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
