package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/internal/person"
)

func TestMongoRepoContract(t *testing.T) {
	runRepositoryContract(t, func(t *testing.T) Repository {
		r, err := newMongoRepo(context.Background(), newFakeCollection())
		require.NoError(t, err)
		return r
	})
}

func TestNewMongoRepoEnsuresIndexes(t *testing.T) {
	col := newFakeCollection()
	_, err := newMongoRepo(context.Background(), col)
	require.NoError(t, err)
	require.Equal(t, 2, col.indexCreated)

	_, err = newMongoRepo(context.Background(), nil)
	require.Error(t, err)
}

func TestMongoRepoQueryChainOptions(t *testing.T) {
	col := newFakeCollection()
	r, err := newMongoRepo(context.Background(), col)
	require.NoError(t, err)

	_, err = r.QueryByFoodSortedLimited(context.Background(), "burrito")
	require.NoError(t, err)
	require.NotNil(t, col.lastFind)
	require.Equal(t, bson.D{{Key: "name", Value: 1}}, col.lastFind.Sort)
	require.EqualValues(t, 2, *col.lastFind.Limit)
	require.Equal(t, bson.D{{Key: "age", Value: 0}}, col.lastFind.Projection)
}

func TestMongoRepoSetAgeReturnsAfter(t *testing.T) {
	col := newFakeCollection()
	r, err := newMongoRepo(context.Background(), col)
	require.NoError(t, err)
	_, err = r.Create(context.Background(), person.Input{Name: "Joe", Age: person.IntPtr(15)})
	require.NoError(t, err)

	_, err = r.SetAgeByName(context.Background(), "Joe", 20)
	require.NoError(t, err)
	require.NotNil(t, col.lastFindOneAndUpdate)
	require.Equal(t, options.After, *col.lastFindOneAndUpdate.ReturnDocument)
}

func TestMongoRepoWrapsStoreErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection reset")
	col := newFakeCollection()
	r, err := newMongoRepo(ctx, col)
	require.NoError(t, err)
	col.err = boom

	id := primitive.NewObjectID().Hex()
	calls := map[string]func() error{
		OpCreate: func() error { _, err := r.Create(ctx, person.Input{Name: "x"}); return err },
		OpCreateMany: func() error {
			_, err := r.CreateMany(ctx, []person.Input{{Name: "x"}})
			return err
		},
		OpFindByName:       func() error { _, err := r.FindByName(ctx, "x"); return err },
		OpFindOneByFood:    func() error { _, err := r.FindOneByFood(ctx, "x"); return err },
		OpFindByID:         func() error { _, err := r.FindByID(ctx, id); return err },
		OpAddFood:          func() error { _, err := r.AddFavoriteFoodAndSave(ctx, id, "x"); return err },
		OpSetAgeByName:     func() error { _, err := r.SetAgeByName(ctx, "x", 1); return err },
		OpDeleteByID:       func() error { _, err := r.DeleteByID(ctx, id); return err },
		OpDeleteManyByName: func() error { _, err := r.DeleteManyByName(ctx, "x"); return err },
		OpQueryChain:       func() error { _, err := r.QueryByFoodSortedLimited(ctx, "x"); return err },
		OpList:             func() error { _, err := r.List(ctx); return err },
	}
	for op, call := range calls {
		err := call()
		require.ErrorIs(t, err, boom, op)
		var se *StoreError
		require.ErrorAs(t, err, &se, op)
		require.Equal(t, op, se.Op)
		require.True(t, IsStoreError(err))
	}
}

func TestMongoRepoValidationSkipsStore(t *testing.T) {
	ctx := context.Background()
	col := newFakeCollection()
	r, err := newMongoRepo(ctx, col)
	require.NoError(t, err)
	col.err = errors.New("must not be reached")

	_, err = r.Create(ctx, person.Input{})
	require.ErrorIs(t, err, person.ErrNameRequired)
	require.False(t, IsStoreError(err))

	_, err = r.DeleteByID(ctx, "zzz")
	require.ErrorIs(t, err, ErrInvalidID)

	out, err := r.CreateMany(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, out)
}

// fakeCollection is an in-memory stand-in for a Mongo collection that
// understands the handful of filters, updates and options the repository sends.
type fakeCollection struct {
	mu           sync.Mutex
	docs         []personDocument
	err          error
	indexCreated int

	lastFind             *options.FindOptions
	lastFindOneAndUpdate *options.FindOneAndUpdateOptions
}

func newFakeCollection() *fakeCollection {
	return &fakeCollection{}
}

func copyDoc(d personDocument) personDocument {
	out := d
	out.FavoriteFoods = append([]string{}, d.FavoriteFoods...)
	if d.Age != nil {
		age := *d.Age
		out.Age = &age
	}
	return out
}

func matcher(filter any) func(personDocument) bool {
	f, _ := filter.(bson.M)
	return func(d personDocument) bool {
		for k, v := range f {
			switch k {
			case "_id":
				if d.ID != v.(primitive.ObjectID) {
					return false
				}
			case "name":
				if d.Name != v.(string) {
					return false
				}
			case "favoriteFoods":
				found := false
				for _, food := range d.FavoriteFoods {
					if food == v.(string) {
						found = true
					}
				}
				if !found {
					return false
				}
			default:
				return false
			}
		}
		return true
	}
}

func (c *fakeCollection) firstIndex(filter any) int {
	match := matcher(filter)
	for i, d := range c.docs {
		if match(d) {
			return i
		}
	}
	return -1
}

func (c *fakeCollection) InsertOne(ctx context.Context, doc any, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	d := copyDoc(doc.(personDocument))
	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}
	c.docs = append(c.docs, d)
	return &mongo.InsertOneResult{InsertedID: d.ID}, nil
}

func (c *fakeCollection) InsertMany(ctx context.Context, docs []any, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	ids := make([]any, 0, len(docs))
	for _, doc := range docs {
		d := copyDoc(doc.(personDocument))
		c.docs = append(c.docs, d)
		ids = append(ids, d.ID)
	}
	return &mongo.InsertManyResult{InsertedIDs: ids}, nil
}

func (c *fakeCollection) Find(ctx context.Context, filter any, opts ...*options.FindOptions) (cursor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	match := matcher(filter)
	out := []personDocument{}
	for _, d := range c.docs {
		if match(d) {
			out = append(out, copyDoc(d))
		}
	}
	if len(opts) > 0 && opts[0] != nil {
		o := opts[0]
		c.lastFind = o
		if o.Sort != nil {
			sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		}
		if o.Limit != nil && int64(len(out)) > *o.Limit {
			out = out[:*o.Limit]
		}
		if o.Projection != nil {
			for i := range out {
				out[i].Age = nil
			}
		}
	}
	return &fakeCursor{docs: out, idx: -1}, nil
}

func (c *fakeCollection) FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) singleResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return fakeSingleResult{err: c.err}
	}
	i := c.firstIndex(filter)
	if i < 0 {
		return fakeSingleResult{err: mongo.ErrNoDocuments}
	}
	return fakeSingleResult{doc: copyDoc(c.docs[i])}
}

func (c *fakeCollection) ReplaceOne(ctx context.Context, filter any, replacement any,
	opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	i := c.firstIndex(filter)
	if i < 0 {
		return &mongo.UpdateResult{}, nil
	}
	c.docs[i] = copyDoc(replacement.(personDocument))
	return &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

func (c *fakeCollection) FindOneAndUpdate(ctx context.Context, filter any, update any,
	opts ...*options.FindOneAndUpdateOptions) singleResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(opts) > 0 {
		c.lastFindOneAndUpdate = opts[0]
	}
	if c.err != nil {
		return fakeSingleResult{err: c.err}
	}
	i := c.firstIndex(filter)
	if i < 0 {
		return fakeSingleResult{err: mongo.ErrNoDocuments}
	}
	before := copyDoc(c.docs[i])
	set := update.(bson.M)["$set"].(bson.M)
	if age, ok := set["age"].(int); ok {
		c.docs[i].Age = &age
	}
	if len(opts) > 0 && opts[0].ReturnDocument != nil && *opts[0].ReturnDocument == options.After {
		return fakeSingleResult{doc: copyDoc(c.docs[i])}
	}
	return fakeSingleResult{doc: before}
}

func (c *fakeCollection) FindOneAndDelete(ctx context.Context, filter any, opts ...*options.FindOneAndDeleteOptions) singleResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return fakeSingleResult{err: c.err}
	}
	i := c.firstIndex(filter)
	if i < 0 {
		return fakeSingleResult{err: mongo.ErrNoDocuments}
	}
	d := c.docs[i]
	c.docs = append(c.docs[:i], c.docs[i+1:]...)
	return fakeSingleResult{doc: d}
}

func (c *fakeCollection) DeleteMany(ctx context.Context, filter any, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	match := matcher(filter)
	kept := c.docs[:0]
	var n int64
	for _, d := range c.docs {
		if match(d) {
			n++
			continue
		}
		kept = append(kept, d)
	}
	c.docs = kept
	return &mongo.DeleteResult{DeletedCount: n}, nil
}

func (c *fakeCollection) Indexes() indexView {
	return fakeIndexView{parent: c}
}

type fakeIndexView struct {
	parent *fakeCollection
}

func (v fakeIndexView) CreateMany(ctx context.Context, models []mongo.IndexModel,
	opts ...*options.CreateIndexesOptions) ([]string, error) {
	names := make([]string, 0, len(models))
	for _, m := range models {
		keys := m.Keys.(bson.D)
		if len(keys) == 0 {
			return nil, errors.New("missing keys")
		}
		v.parent.indexCreated++
		names = append(names, keys[0].Key+"_1")
	}
	return names, nil
}

type fakeSingleResult struct {
	doc personDocument
	err error
}

func (r fakeSingleResult) Decode(val any) error {
	if r.err != nil {
		return r.err
	}
	typed, ok := val.(*personDocument)
	if !ok {
		return errors.New("unsupported target")
	}
	*typed = r.doc
	return nil
}

type fakeCursor struct {
	docs []personDocument
	idx  int
}

func (c *fakeCursor) Close(ctx context.Context) error { return nil }
func (c *fakeCursor) Err() error                      { return nil }

func (c *fakeCursor) Next(ctx context.Context) bool {
	c.idx++
	return c.idx < len(c.docs)
}

func (c *fakeCursor) Decode(val any) error {
	typed, ok := val.(*personDocument)
	if !ok {
		return errors.New("unsupported target")
	}
	*typed = c.docs[c.idx]
	return nil
}
