package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/internal/cache"
	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/internal/person"
	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/internal/person/repository"
	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/pkg/logger"
	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/pkg/metrics"
)

const (
	outcomeOK       = "ok"
	outcomeNotFound = "not_found"
	outcomeInvalid  = "invalid"
	outcomeError    = "error"

	cacheKeyPrefix  = "person:"
	defaultCacheTTL = time.Minute
)

// Service defines the person operations used by the handler layer and the CLI.
type Service interface {
	Create(ctx context.Context, in person.Input) (*person.Person, error)
	CreateMany(ctx context.Context, in []person.Input) ([]*person.Person, error)
	FindByName(ctx context.Context, name string) ([]*person.Person, error)
	FindOneByFood(ctx context.Context, food string) (*person.Person, error)
	FindByID(ctx context.Context, id string) (*person.Person, error)
	AddFavoriteFoodAndSave(ctx context.Context, id, food string) (*person.Person, error)
	SetAgeByName(ctx context.Context, name string, age int) (*person.Person, error)
	DeleteByID(ctx context.Context, id string) (*person.Person, error)
	DeleteManyByName(ctx context.Context, name string) (repository.DeleteResult, error)
	QueryByFoodSortedLimited(ctx context.Context, food string) ([]*person.Person, error)
	List(ctx context.Context) ([]*person.Person, error)
}

// Options tunes the service. The zero value disables caching.
type Options struct {
	Cache    cache.Cache
	CacheTTL time.Duration
}

// NewService wraps repo with logging, metrics and the optional lookup cache.
func NewService(repo repository.Repository, opts Options) Service {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &personService{repo: repo, cache: opts.Cache, ttl: ttl}
}

type personService struct {
	repo  repository.Repository
	cache cache.Cache
	ttl   time.Duration

	// fillMu orders read-through fills against writes: a fill is dropped
	// when a write landed after the fill's store read started.
	fillMu sync.Mutex
	epoch  uint64
}

func outcome(found bool, err error) string {
	switch {
	case err == nil && found:
		return outcomeOK
	case err == nil:
		return outcomeNotFound
	case errors.Is(err, person.ErrNameRequired), errors.Is(err, repository.ErrInvalidID):
		return outcomeInvalid
	}
	return outcomeError
}

// observe records metrics and a log line for one repository call.
func observe(op string, start time.Time, found bool, err error) {
	oc := outcome(found, err)
	metrics.StoreOperations.WithLabelValues(op, oc).Inc()
	metrics.StoreOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	switch oc {
	case outcomeError:
		logger.Warnf("person: %s failed: %v", op, err)
	case outcomeInvalid:
		logger.Debugf("person: %s rejected: %v", op, err)
	default:
		logger.Debugf("person: %s %s in %s", op, oc, time.Since(start))
	}
}

// ids are hex and case-insensitive
func cacheKey(id string) string { return cacheKeyPrefix + strings.ToLower(id) }

func (s *personService) currentEpoch() uint64 {
	s.fillMu.Lock()
	defer s.fillMu.Unlock()
	return s.epoch
}

// fill stores p unless a write happened since since was taken.
func (s *personService) fill(ctx context.Context, since uint64, p *person.Person) {
	if s.cache == nil || p == nil {
		return
	}
	s.fillMu.Lock()
	defer s.fillMu.Unlock()
	if s.epoch != since {
		return
	}
	s.cachePut(ctx, p)
}

// written runs a cache update for a completed write and invalidates in-flight fills.
func (s *personService) written(update func()) {
	if s.cache == nil {
		return
	}
	s.fillMu.Lock()
	defer s.fillMu.Unlock()
	s.epoch++
	update()
}

func (s *personService) cacheGet(ctx context.Context, id string) *person.Person {
	if s.cache == nil {
		return nil
	}
	b, err := s.cache.Get(ctx, cacheKey(id))
	if errors.Is(err, cache.ErrMiss) {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil
	}
	if err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		logger.Warnf("person cache: get %s: %v", id, err)
		return nil
	}
	var p person.Person
	if err := json.Unmarshal(b, &p); err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		logger.Warnf("person cache: decode %s: %v", id, err)
		return nil
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return &p
}

func (s *personService) cachePut(ctx context.Context, p *person.Person) {
	if s.cache == nil || p == nil {
		return
	}
	b, err := json.Marshal(p)
	if err != nil {
		logger.Warnf("person cache: encode %s: %v", p.ID, err)
		return
	}
	if err := s.cache.Set(ctx, cacheKey(p.ID), b, s.ttl); err != nil {
		logger.Warnf("person cache: set %s: %v", p.ID, err)
	}
}

func (s *personService) cacheEvict(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cacheKey(id)); err != nil {
		logger.Warnf("person cache: delete %s: %v", id, err)
	}
}

func (s *personService) cacheFlush(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Flush(ctx); err != nil {
		logger.Warnf("person cache: flush: %v", err)
	}
}

func (s *personService) Create(ctx context.Context, in person.Input) (*person.Person, error) {
	start := time.Now()
	p, err := s.repo.Create(ctx, in)
	observe(repository.OpCreate, start, p != nil, err)
	if err != nil {
		return nil, err
	}
	s.written(func() { s.cachePut(ctx, p) })
	return p, nil
}

func (s *personService) CreateMany(ctx context.Context, in []person.Input) ([]*person.Person, error) {
	start := time.Now()
	out, err := s.repo.CreateMany(ctx, in)
	observe(repository.OpCreateMany, start, true, err)
	if err != nil {
		return nil, err
	}
	s.written(func() {
		for _, p := range out {
			s.cachePut(ctx, p)
		}
	})
	return out, nil
}

func (s *personService) FindByName(ctx context.Context, name string) ([]*person.Person, error) {
	start := time.Now()
	out, err := s.repo.FindByName(ctx, name)
	observe(repository.OpFindByName, start, true, err)
	return out, err
}

func (s *personService) FindOneByFood(ctx context.Context, food string) (*person.Person, error) {
	start := time.Now()
	p, err := s.repo.FindOneByFood(ctx, food)
	observe(repository.OpFindOneByFood, start, p != nil, err)
	return p, err
}

func (s *personService) FindByID(ctx context.Context, id string) (*person.Person, error) {
	if p := s.cacheGet(ctx, id); p != nil {
		return p, nil
	}
	since := s.currentEpoch()
	start := time.Now()
	p, err := s.repo.FindByID(ctx, id)
	observe(repository.OpFindByID, start, p != nil, err)
	if err != nil {
		return nil, err
	}
	s.fill(ctx, since, p)
	return p, nil
}

func (s *personService) AddFavoriteFoodAndSave(ctx context.Context, id, food string) (*person.Person, error) {
	start := time.Now()
	p, err := s.repo.AddFavoriteFoodAndSave(ctx, id, food)
	observe(repository.OpAddFood, start, p != nil, err)
	if err != nil {
		return nil, err
	}
	if p == nil {
		s.written(func() { s.cacheEvict(ctx, id) })
		return nil, nil
	}
	s.written(func() { s.cachePut(ctx, p) })
	return p, nil
}

func (s *personService) SetAgeByName(ctx context.Context, name string, age int) (*person.Person, error) {
	start := time.Now()
	p, err := s.repo.SetAgeByName(ctx, name, age)
	observe(repository.OpSetAgeByName, start, p != nil, err)
	if err != nil {
		return nil, err
	}
	s.written(func() { s.cachePut(ctx, p) })
	return p, nil
}

func (s *personService) DeleteByID(ctx context.Context, id string) (*person.Person, error) {
	start := time.Now()
	p, err := s.repo.DeleteByID(ctx, id)
	observe(repository.OpDeleteByID, start, p != nil, err)
	if err != nil {
		return nil, err
	}
	s.written(func() { s.cacheEvict(ctx, id) })
	return p, nil
}

func (s *personService) DeleteManyByName(ctx context.Context, name string) (repository.DeleteResult, error) {
	start := time.Now()
	res, err := s.repo.DeleteManyByName(ctx, name)
	observe(repository.OpDeleteManyByName, start, true, err)
	if err != nil {
		// some documents may be gone already
		s.written(func() { s.cacheFlush(ctx) })
		return repository.DeleteResult{}, err
	}
	if res.DeletedCount > 0 {
		s.written(func() { s.cacheFlush(ctx) })
	}
	return res, nil
}

func (s *personService) QueryByFoodSortedLimited(ctx context.Context, food string) ([]*person.Person, error) {
	start := time.Now()
	out, err := s.repo.QueryByFoodSortedLimited(ctx, food)
	observe(repository.OpQueryChain, start, true, err)
	return out, err
}

func (s *personService) List(ctx context.Context) ([]*person.Person, error) {
	start := time.Now()
	out, err := s.repo.List(ctx)
	observe(repository.OpList, start, true, err)
	return out, err
}
