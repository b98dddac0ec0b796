package repository

import (
	"context"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/internal/person"
)

// MemoryRepo is an in-memory Repository used for tests, local runs and as a
// fallback when MongoDB is unreachable. Iteration follows insertion order,
// which stands in for the store's natural order.
type MemoryRepo struct {
	mu    sync.RWMutex
	store map[string]*person.Person
	order []string

	// beforeSave runs between the read and the write of
	// AddFavoriteFoodAndSave. Tests use it to interleave a writer.
	beforeSave func()
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{store: make(map[string]*person.Person)}
}

func (m *MemoryRepo) insertLocked(p *person.Person) *person.Person {
	p.ID = primitive.NewObjectID().Hex()
	m.store[p.ID] = p
	m.order = append(m.order, p.ID)
	return p.Clone()
}

func (m *MemoryRepo) Create(ctx context.Context, in person.Input) (*person.Person, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(in.Person()), nil
}

func (m *MemoryRepo) CreateMany(ctx context.Context, in []person.Input) ([]*person.Person, error) {
	if err := validateAll(in); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*person.Person, 0, len(in))
	for _, p := range in {
		out = append(out, m.insertLocked(p.Person()))
	}
	return out, nil
}

// each walks people in insertion order until fn returns false. Caller holds a lock.
func (m *MemoryRepo) each(fn func(p *person.Person) bool) {
	for _, id := range m.order {
		p, ok := m.store[id]
		if !ok {
			continue
		}
		if !fn(p) {
			return
		}
	}
}

func (m *MemoryRepo) FindByName(ctx context.Context, name string) ([]*person.Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*person.Person{}
	m.each(func(p *person.Person) bool {
		if p.Name == name {
			out = append(out, p.Clone())
		}
		return true
	})
	return out, nil
}

func (m *MemoryRepo) FindOneByFood(ctx context.Context, food string) (*person.Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var found *person.Person
	m.each(func(p *person.Person) bool {
		if p.HasFood(food) {
			found = p.Clone()
			return false
		}
		return true
	})
	return found, nil
}

func (m *MemoryRepo) FindByID(ctx context.Context, id string) (*person.Person, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	// keys are canonical lowercase hex, ids are accepted in any case
	if p, ok := m.store[oid.Hex()]; ok {
		return p.Clone(), nil
	}
	return nil, nil
}

func (m *MemoryRepo) AddFavoriteFoodAndSave(ctx context.Context, id, food string) (*person.Person, error) {
	p, err := m.FindByID(ctx, id)
	if err != nil || p == nil {
		return nil, err
	}
	p.FavoriteFoods = append(p.FavoriteFoods, food)
	if m.beforeSave != nil {
		m.beforeSave()
	}
	return m.save(p), nil
}

// save replaces the whole stored record. A record deleted since it was read
// is not resurrected.
func (m *MemoryRepo) save(p *person.Person) *person.Person {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[p.ID]; !ok {
		return nil
	}
	m.store[p.ID] = p.Clone()
	return p
}

func (m *MemoryRepo) SetAgeByName(ctx context.Context, name string, age int) (*person.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var updated *person.Person
	m.each(func(p *person.Person) bool {
		if p.Name == name {
			p.Age = person.IntPtr(age)
			updated = p.Clone()
			return false
		}
		return true
	})
	return updated, nil
}

func (m *MemoryRepo) DeleteByID(ctx context.Context, id string) (*person.Person, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	key := oid.Hex()
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[key]
	if !ok {
		return nil, nil
	}
	delete(m.store, key)
	m.compactLocked()
	return p, nil
}

func (m *MemoryRepo) DeleteManyByName(ctx context.Context, name string) (DeleteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, p := range m.store {
		if p.Name == name {
			delete(m.store, id)
			n++
		}
	}
	if n > 0 {
		m.compactLocked()
	}
	return DeleteResult{DeletedCount: n}, nil
}

func (m *MemoryRepo) compactLocked() {
	kept := m.order[:0]
	for _, id := range m.order {
		if _, ok := m.store[id]; ok {
			kept = append(kept, id)
		}
	}
	m.order = kept
}

func (m *MemoryRepo) QueryByFoodSortedLimited(ctx context.Context, food string) ([]*person.Person, error) {
	m.mu.RLock()
	matches := []*person.Person{}
	m.each(func(p *person.Person) bool {
		if p.HasFood(food) {
			matches = append(matches, p.Clone())
		}
		return true
	})
	m.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Name < matches[j].Name })
	if len(matches) > QueryLimit {
		matches = matches[:QueryLimit]
	}
	for _, p := range matches {
		p.Age = nil
	}
	return matches, nil
}

func (m *MemoryRepo) List(ctx context.Context) ([]*person.Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*person.Person, 0, len(m.store))
	m.each(func(p *person.Person) bool {
		out = append(out, p.Clone())
		return true
	})
	return out, nil
}
