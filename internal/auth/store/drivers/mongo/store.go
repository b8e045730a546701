// Package mongo is the MongoDB credential store. Users embed their devices
// and role ids so every auth mutation is a single-document update.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/bartab-accounts/internal/auth/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const (
	usersCollection = "users"
	rolesCollection = "roles"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewStore connects to uri and uses the named database.
func NewStore(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	return &Store{client: client, db: client.Database(database)}, nil
}

// ApplyMigrations creates the unique indexes that back ErrAlreadyExists.
func (s *Store) ApplyMigrations(ctx context.Context) error {
	unique := options.Index().SetUnique(true)

	if _, err := s.users().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: unique,
	}); err != nil {
		return fmt.Errorf("users.email index: %w", err)
	}

	if _, err := s.users().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "roles", Value: 1}},
	}); err != nil {
		return fmt.Errorf("users.roles index: %w", err)
	}

	if _, err := s.roles().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: unique,
	}); err != nil {
		return fmt.Errorf("roles.name index: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Ping verifies the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Users() store.Users { return &usersRepo{c: s.users()} }
func (s *Store) Roles() store.Roles { return &rolesRepo{c: s.roles(), users: s.users()} }

func (s *Store) users() *mongo.Collection { return s.db.Collection(usersCollection) }
func (s *Store) roles() *mongo.Collection { return s.db.Collection(rolesCollection) }

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return store.ErrAlreadyExists
	}
	return err
}

func requireMatch(res *mongo.UpdateResult, err error) error {
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}
