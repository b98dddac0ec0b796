package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/internal/person"
)

// Values used by the classic exercise flows (CLI defaults, docs).
const (
	DefaultFoodToAdd    = "hamburger"
	DefaultAgeToSet     = 20
	DefaultNameToRemove = "Mary"
	DefaultFoodToSearch = "burrito"

	// QueryLimit caps QueryByFoodSortedLimited.
	QueryLimit = 2
)

// Operation names, shared by errors, logs and metrics.
const (
	OpCreate           = "createPerson"
	OpCreateMany       = "createManyPeople"
	OpFindByName       = "findByName"
	OpFindOneByFood    = "findOneByFavoriteFood"
	OpFindByID         = "findById"
	OpAddFood          = "addFavoriteFoodAndSave"
	OpSetAgeByName     = "setAgeByName"
	OpDeleteByID       = "deleteById"
	OpDeleteManyByName = "deleteManyByName"
	OpQueryChain       = "queryFavoriteFoodSortedLimited"
	OpList             = "list"
)

var (
	// ErrInvalidID is returned for ids that are not 24-char hex ObjectIDs.
	ErrInvalidID = errors.New("invalid person id")
)

// StoreError reports a failure of the underlying document store.
// The store's own error is kept as-is and reachable through Unwrap.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("person store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// IsStoreError reports whether err came from the document store.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}

// DeleteResult summarises a bulk delete.
type DeleteResult struct {
	DeletedCount int64 `json:"deletedCount"`
}

// Repository is the data-access contract for people.
// Single-record lookups, updates and deletes return (nil, nil) when nothing
// matched; that is a valid result, not an error.
type Repository interface {
	Create(ctx context.Context, in person.Input) (*person.Person, error)
	CreateMany(ctx context.Context, in []person.Input) ([]*person.Person, error)
	FindByName(ctx context.Context, name string) ([]*person.Person, error)
	FindOneByFood(ctx context.Context, food string) (*person.Person, error)
	FindByID(ctx context.Context, id string) (*person.Person, error)
	// AddFavoriteFoodAndSave reads the record, appends food and writes the
	// whole record back. It is not atomic: a concurrent write between the
	// read and the save is lost. Use SetAgeByName-style updates when that matters.
	AddFavoriteFoodAndSave(ctx context.Context, id, food string) (*person.Person, error)
	// SetAgeByName atomically updates the first person named name and
	// returns the record after the update.
	SetAgeByName(ctx context.Context, name string, age int) (*person.Person, error)
	DeleteByID(ctx context.Context, id string) (*person.Person, error)
	DeleteManyByName(ctx context.Context, name string) (DeleteResult, error)
	// QueryByFoodSortedLimited returns at most QueryLimit people who like
	// food, sorted by name ascending, with age projected out.
	QueryByFoodSortedLimited(ctx context.Context, food string) ([]*person.Person, error)
	List(ctx context.Context) ([]*person.Person, error)
}

func validateAll(in []person.Input) error {
	for i, p := range in {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return nil
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return oid, nil
}
