package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserMeta is one key/value attribute attached to a user.
// (user_id, meta_key) is unique.
type UserMeta struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    int64              `bson:"user_id" json:"user_id"`
	Key       string             `bson:"meta_key" json:"meta_key"`
	Value     string             `bson:"meta_value" json:"meta_value"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// Install records that a component was installed on this site.
type Install struct {
	Name        string    `bson:"_id" json:"name"`
	InstallID   string    `bson:"install_id" json:"install_id"`
	InstalledAt time.Time `bson:"installed_at" json:"installed_at"`
}
