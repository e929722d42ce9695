// internal/app/store/usermeta/store.go
package usermetastore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/ninjaprotocol/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrEmptyKey is returned when an attribute key is blank.
var ErrEmptyKey = errors.New("usermeta: key is required")

// Store persists per-user key/value attributes.
// There is no delete: attributes outlive whatever wrote them.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("user_meta")}
}

// Get returns the value stored under key for userID and whether it exists.
func (s *Store) Get(ctx context.Context, userID int64, key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}
	var m models.UserMeta
	err := s.c.FindOne(ctx, bson.M{"user_id": userID, "meta_key": key}).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return m.Value, true, nil
}

// Set upserts value under key for userID. changed is true when a document
// was created or the stored value differs from before.
func (s *Store) Set(ctx context.Context, userID int64, key, value string) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	res, err := s.c.UpdateOne(ctx,
		bson.M{"user_id": userID, "meta_key": key},
		bson.M{
			"$set":         bson.M{"meta_value": value},
			"$setOnInsert": bson.M{"created_at": time.Now().UTC()},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0 || res.UpsertedCount > 0, nil
}

// CountByValue returns how many of userIDs store value under key.
// Attributes left behind by users not in userIDs are not counted.
func (s *Store) CountByValue(ctx context.Context, key, value string, userIDs []int64) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	return s.c.CountDocuments(ctx, bson.M{
		"meta_key":   key,
		"meta_value": value,
		"user_id":    bson.M{"$in": userIDs},
	})
}
