package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/internal/person"
)

// DefaultCollection is the pluralised model name used for people.
const DefaultCollection = "people"

// MongoRepo implements Repository on a MongoDB collection. Ids are stored as
// ObjectIDs under _id and exposed as hex strings.
type MongoRepo struct {
	col collection
}

// personDocument is the stored shape of a Person.
type personDocument struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	Name          string             `bson:"name"`
	Age           *int               `bson:"age,omitempty"`
	FavoriteFoods []string           `bson:"favoriteFoods"`
}

func fromPerson(p *person.Person) (personDocument, error) {
	doc := personDocument{Name: p.Name, Age: p.Age, FavoriteFoods: p.FavoriteFoods}
	if doc.FavoriteFoods == nil {
		doc.FavoriteFoods = []string{}
	}
	if p.ID != "" {
		oid, err := parseID(p.ID)
		if err != nil {
			return personDocument{}, err
		}
		doc.ID = oid
	}
	return doc, nil
}

func (d personDocument) toPerson() *person.Person {
	foods := d.FavoriteFoods
	if foods == nil {
		foods = []string{}
	}
	return &person.Person{ID: d.ID.Hex(), Name: d.Name, Age: d.Age, FavoriteFoods: foods}
}

// NewMongoRepo wraps col and makes sure the lookup indexes exist.
func NewMongoRepo(ctx context.Context, col *mongo.Collection) (*MongoRepo, error) {
	return newMongoRepo(ctx, mongoCollection{coll: col})
}

func newMongoRepo(ctx context.Context, col collection) (*MongoRepo, error) {
	if col == nil {
		return nil, errors.New("collection is required")
	}
	if err := ensureIndexes(ctx, col); err != nil {
		return nil, storeErr("ensureIndexes", err)
	}
	return &MongoRepo{col: col}, nil
}

func ensureIndexes(ctx context.Context, col collection) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}}},
		{Keys: bson.D{{Key: "favoriteFoods", Value: 1}}},
	}
	_, err := col.Indexes().CreateMany(ctx, models)
	return err
}

func (m *MongoRepo) Create(ctx context.Context, in person.Input) (*person.Person, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	doc, _ := fromPerson(in.Person())
	res, err := m.col.InsertOne(ctx, doc)
	if err != nil {
		return nil, storeErr(OpCreate, err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		doc.ID = oid
	}
	return doc.toPerson(), nil
}

func (m *MongoRepo) CreateMany(ctx context.Context, in []person.Input) ([]*person.Person, error) {
	if err := validateAll(in); err != nil {
		return nil, err
	}
	if len(in) == 0 {
		return []*person.Person{}, nil
	}
	docs := make([]personDocument, len(in))
	payload := make([]any, len(in))
	for i, p := range in {
		// ids are assigned here so the result can be built without a read back.
		docs[i], _ = fromPerson(p.Person())
		docs[i].ID = primitive.NewObjectID()
		payload[i] = docs[i]
	}
	if _, err := m.col.InsertMany(ctx, payload); err != nil {
		return nil, storeErr(OpCreateMany, err)
	}
	out := make([]*person.Person, len(docs))
	for i, d := range docs {
		out[i] = d.toPerson()
	}
	return out, nil
}

func (m *MongoRepo) findMany(ctx context.Context, op string, filter any, opts ...*options.FindOptions) ([]*person.Person, error) {
	cur, err := m.col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, storeErr(op, err)
	}
	defer cur.Close(ctx)
	out := []*person.Person{}
	for cur.Next(ctx) {
		var d personDocument
		if err := cur.Decode(&d); err != nil {
			return nil, storeErr(op, err)
		}
		out = append(out, d.toPerson())
	}
	if err := cur.Err(); err != nil {
		return nil, storeErr(op, err)
	}
	return out, nil
}

// decodeOne turns a single result into a Person; no document is (nil, nil).
func decodeOne(op string, res singleResult) (*person.Person, error) {
	var d personDocument
	if err := res.Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, storeErr(op, err)
	}
	return d.toPerson(), nil
}

func (m *MongoRepo) FindByName(ctx context.Context, name string) ([]*person.Person, error) {
	return m.findMany(ctx, OpFindByName, bson.M{"name": name})
}

func (m *MongoRepo) FindOneByFood(ctx context.Context, food string) (*person.Person, error) {
	return decodeOne(OpFindOneByFood, m.col.FindOne(ctx, bson.M{"favoriteFoods": food}))
}

func (m *MongoRepo) FindByID(ctx context.Context, id string) (*person.Person, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return decodeOne(OpFindByID, m.col.FindOne(ctx, bson.M{"_id": oid}))
}

func (m *MongoRepo) AddFavoriteFoodAndSave(ctx context.Context, id, food string) (*person.Person, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	p, err := decodeOne(OpAddFood, m.col.FindOne(ctx, bson.M{"_id": oid}))
	if err != nil || p == nil {
		return nil, err
	}
	p.FavoriteFoods = append(p.FavoriteFoods, food)
	doc, err := fromPerson(p)
	if err != nil {
		return nil, err
	}
	res, err := m.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc)
	if err != nil {
		return nil, storeErr(OpAddFood, err)
	}
	if res.MatchedCount == 0 {
		// removed between the read and the save
		return nil, nil
	}
	return p, nil
}

func (m *MongoRepo) SetAgeByName(ctx context.Context, name string, age int) (*person.Person, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{"$set": bson.M{"age": age}}
	return decodeOne(OpSetAgeByName, m.col.FindOneAndUpdate(ctx, bson.M{"name": name}, update, opts))
}

func (m *MongoRepo) DeleteByID(ctx context.Context, id string) (*person.Person, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return decodeOne(OpDeleteByID, m.col.FindOneAndDelete(ctx, bson.M{"_id": oid}))
}

func (m *MongoRepo) DeleteManyByName(ctx context.Context, name string) (DeleteResult, error) {
	res, err := m.col.DeleteMany(ctx, bson.M{"name": name})
	if err != nil {
		return DeleteResult{}, storeErr(OpDeleteManyByName, err)
	}
	return DeleteResult{DeletedCount: res.DeletedCount}, nil
}

func (m *MongoRepo) QueryByFoodSortedLimited(ctx context.Context, food string) ([]*person.Person, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}}).
		SetLimit(QueryLimit).
		SetProjection(bson.D{{Key: "age", Value: 0}})
	return m.findMany(ctx, OpQueryChain, bson.M{"favoriteFoods": food}, opts)
}

func (m *MongoRepo) List(ctx context.Context) ([]*person.Person, error) {
	return m.findMany(ctx, OpList, bson.M{})
}
