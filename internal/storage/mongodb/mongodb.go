// Package mongodb provides a MongoDB-backed implementation of the
// storage.Storage interface.
//
// Each student is one document in a single collection. Selective updates
// are sent as a single findAndModify with $set over dotted paths, so the
// server applies each write atomically per document.
package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/aanand-mishra/scholarship-api/internal/config"
	"github.com/aanand-mishra/scholarship-api/internal/schema"
	"github.com/aanand-mishra/scholarship-api/internal/storage"
	"github.com/aanand-mishra/scholarship-api/internal/types"
	"github.com/aanand-mishra/scholarship-api/internal/update"
	"github.com/aanand-mishra/scholarship-api/internal/utils/apperr"
)

// MongoDB is the MongoDB implementation of storage.Storage.
type MongoDB struct {
	client     *mongo.Client
	collection *mongo.Collection
}

var _ storage.Storage = (*MongoDB)(nil)

// document is the stored shape of a Student.
type document struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Name        string             `bson:"name"`
	Age         float64            `bson:"age"`
	Major       string             `bson:"major"`
	Scholarship scholarship        `bson:"scholarship"`
}

type scholarship struct {
	Merit float64 `bson:"merit"`
	Other float64 `bson:"other"`
}

// New connects to MongoDB, checks the connection and returns a store
// bound to the configured collection.
func New(ctx context.Context, cfg config.Mongo) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongodb.New: connect: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb.New: ping: %w", err)
	}

	return &MongoDB{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

// NewWithCollection returns a store over an existing collection.
// The caller owns the client.
func NewWithCollection(collection *mongo.Collection) *MongoDB {
	return &MongoDB{collection: collection}
}

// Close disconnects the client created by New.
func (m *MongoDB) Close(ctx context.Context) error {
	if m.client == nil {
		return nil
	}
	return m.client.Disconnect(ctx)
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, apperr.InvalidID(id, err)
	}
	return oid, nil
}

func toDocument(s types.Student) document {
	return document{
		Name:  s.Name,
		Age:   float64(s.Age),
		Major: s.Major,
		Scholarship: scholarship{
			Merit: float64(s.Scholarship.Merit),
			Other: float64(s.Scholarship.Other),
		},
	}
}

func (d document) student() types.Student {
	return types.Student{
		ID:    d.ID.Hex(),
		Name:  d.Name,
		Age:   types.Amount(d.Age),
		Major: d.Major,
		Scholarship: types.Scholarship{
			Merit: types.Amount(d.Scholarship.Merit),
			Other: types.Amount(d.Scholarship.Other),
		},
	}
}

// setDocument converts a sanitized update spec into a $set document.
func setDocument(spec update.Spec) bson.D {
	set := make(bson.D, 0, len(spec))
	for _, p := range spec.Paths() {
		v := spec[p]
		switch val := v.(type) {
		case types.Amount:
			v = float64(val)
		case types.Scholarship:
			v = scholarship{Merit: float64(val.Merit), Other: float64(val.Other)}
		}
		set = append(set, bson.E{Key: p, Value: v})
	}
	return set
}

func returnDocument(opts storage.UpdateOptions) options.ReturnDocument {
	if opts.ReturnUpdated {
		return options.After
	}
	return options.Before
}

// FindAll returns every document in natural order.
func (m *MongoDB) FindAll(ctx context.Context) ([]types.Student, error) {
	cursor, err := m.collection.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("FindAll: find: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("FindAll: decode: %w", err)
	}

	students := make([]types.Student, 0, len(docs))
	for _, d := range docs {
		students = append(students, d.student())
	}
	return students, nil
}

// FindByID returns nil when no document has the id.
func (m *MongoDB) FindByID(ctx context.Context, id string) (*types.Student, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, fmt.Errorf("FindByID: %w", err)
	}

	var d document
	err = m.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindByID: %w", err)
	}

	s := d.student()
	return &s, nil
}

// Insert validates the student and stores it under a new ObjectID.
func (m *MongoDB) Insert(ctx context.Context, student types.Student) (types.Student, error) {
	if err := schema.Validate(student); err != nil {
		return types.Student{}, fmt.Errorf("Insert: %w", err)
	}

	d := toDocument(student)
	d.ID = primitive.NewObjectID()
	if _, err := m.collection.InsertOne(ctx, d); err != nil {
		return types.Student{}, fmt.Errorf("Insert: %w", err)
	}

	return d.student(), nil
}

// ReplaceByID overwrites the whole document in one findAndModify.
func (m *MongoDB) ReplaceByID(ctx context.Context, id string, student types.Student, opts storage.UpdateOptions) (types.Student, error) {
	oid, err := objectID(id)
	if err != nil {
		return types.Student{}, fmt.Errorf("ReplaceByID: %w", err)
	}

	if opts.Validate {
		if err := schema.Validate(student); err != nil {
			return types.Student{}, fmt.Errorf("ReplaceByID: %w", err)
		}
	}

	var d document
	err = m.collection.FindOneAndReplace(ctx,
		bson.M{"_id": oid},
		toDocument(student),
		options.FindOneAndReplace().SetReturnDocument(returnDocument(opts)),
	).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return types.Student{}, fmt.Errorf("ReplaceByID: %w", apperr.ErrNotFound)
	}
	if err != nil {
		return types.Student{}, fmt.Errorf("ReplaceByID: %w", err)
	}

	return d.student(), nil
}

// UpdateByID sets only the paths named by spec.
func (m *MongoDB) UpdateByID(ctx context.Context, id string, spec update.Spec, opts storage.UpdateOptions) (types.Student, error) {
	oid, err := objectID(id)
	if err != nil {
		return types.Student{}, fmt.Errorf("UpdateByID: %w", err)
	}

	spec, err = schema.Sanitize(spec, opts.Validate)
	if err != nil {
		return types.Student{}, fmt.Errorf("UpdateByID: %w", err)
	}

	// An empty $set is rejected by the server; nothing to write, so read.
	if len(spec) == 0 {
		current, err := m.FindByID(ctx, id)
		if err != nil {
			return types.Student{}, fmt.Errorf("UpdateByID: %w", err)
		}
		if current == nil {
			return types.Student{}, fmt.Errorf("UpdateByID: %w", apperr.ErrNotFound)
		}
		return *current, nil
	}

	var d document
	err = m.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.D{{Key: "$set", Value: setDocument(spec)}},
		options.FindOneAndUpdate().SetReturnDocument(returnDocument(opts)),
	).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return types.Student{}, fmt.Errorf("UpdateByID: %w", apperr.ErrNotFound)
	}
	if err != nil {
		return types.Student{}, fmt.Errorf("UpdateByID: %w", err)
	}

	return d.student(), nil
}

// DeleteByID removes one document. A missing id deletes nothing.
func (m *MongoDB) DeleteByID(ctx context.Context, id string) (types.DeleteResult, error) {
	oid, err := objectID(id)
	if err != nil {
		return types.DeleteResult{}, fmt.Errorf("DeleteByID: %w", err)
	}

	res, err := m.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return types.DeleteResult{}, fmt.Errorf("DeleteByID: %w", err)
	}

	return types.DeleteResult{Acknowledged: true, DeletedCount: res.DeletedCount}, nil
}
