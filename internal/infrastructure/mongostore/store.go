// Package mongostore implements the user and listing repositories on MongoDB.
// Users keep their invalidated tokens as an embedded array; every mutation of
// that array and of the role list is a single conditional update.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	colUsers    = "users"
	colListings = "listings"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewStore connects, pings and creates the indexes. The unique email index is
// what enforces one account per address, so a failure here is fatal.
func NewStore(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	s := &Store{client: client, db: client.Database(dbName)}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) Users() *UserRepository { return &UserRepository{col: s.col(colUsers)} }

func (s *Store) Listings() *ListingRepository { return &ListingRepository{col: s.col(colListings)} }

func (s *Store) col(name string) *mongo.Collection {
	return s.db.Collection(name)
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	type idx struct {
		col    string
		keys   bson.D
		unique bool
	}

	indexes := []idx{
		// users
		{colUsers, bson.D{{Key: "email", Value: 1}}, true},
		{colUsers, bson.D{{Key: "invalidated_tokens.expires_at", Value: 1}}, false},

		// listings
		{colListings, bson.D{{Key: "seller_id", Value: 1}, {Key: "created_at", Value: -1}}, false},
		{colListings, bson.D{{Key: "is_active", Value: 1}, {Key: "created_at", Value: -1}}, false},
		{colListings, bson.D{{Key: "category", Value: 1}}, false},
		{colListings, bson.D{{Key: "price", Value: 1}}, false},
	}

	for _, i := range indexes {
		model := mongo.IndexModel{Keys: i.keys}
		if i.unique {
			model.Options = options.Index().SetUnique(true)
		}
		if _, err := s.col(i.col).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("create index on %s: %w", i.col, err)
		}
	}
	return nil
}

// findOne decodes one document; mongo.ErrNoDocuments is returned as notFound.
func findOne[T any](ctx context.Context, col *mongo.Collection, filter any, notFound error) (*T, error) {
	var result T
	if err := col.FindOne(ctx, filter).Decode(&result); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound
		}
		return nil, err
	}
	return &result, nil
}

func findMany[T any](ctx context.Context, col *mongo.Collection, filter any, opts ...options.Lister[options.FindOptions]) ([]*T, error) {
	cursor, err := col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	results := []*T{}
	for cursor.Next(ctx) {
		var item T
		if err := cursor.Decode(&item); err != nil {
			return nil, err
		}
		results = append(results, &item)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// findOneAndUpdate applies update and decodes the document as it is afterwards.
func findOneAndUpdate[T any](ctx context.Context, col *mongo.Collection, filter, update any, notFound error) (*T, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var result T
	if err := col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&result); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound
		}
		return nil, err
	}
	return &result, nil
}

func deleteByID(ctx context.Context, col *mongo.Collection, id string, notFound error) error {
	res, err := col.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return notFound
	}
	return nil
}
