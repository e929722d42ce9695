// internal/app/store/installs/store.go
package installstore

import (
	"context"
	"time"

	"github.com/dalemusser/ninjaprotocol/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Store records which components have been installed on this site.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("installs")}
}

// MarkInstalled records name as installed. first is true only for the call
// that created the record; concurrent or later calls report false.
func (s *Store) MarkInstalled(ctx context.Context, name string) (bool, error) {
	doc := models.Install{
		Name:        name,
		InstallID:   uuid.NewString(),
		InstalledAt: time.Now().UTC(),
	}
	if _, err := s.c.InsertOne(ctx, doc); err != nil {
		if wafflemongo.IsDup(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// IsInstalled reports whether name has been installed.
func (s *Store) IsInstalled(ctx context.Context, name string) (bool, error) {
	_, err := s.Get(ctx, name)
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	return err == nil, err
}

// Get returns the install record for name. Returns mongo.ErrNoDocuments if absent.
func (s *Store) Get(ctx context.Context, name string) (*models.Install, error) {
	var in models.Install
	if err := s.c.FindOne(ctx, bson.M{"_id": name}).Decode(&in); err != nil {
		return nil, err
	}
	return &in, nil
}
