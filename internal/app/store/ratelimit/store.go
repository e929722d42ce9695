// internal/app/store/ratelimit/store.go
package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/ninjaprotocol/internal/app/system/normalize"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection holds one throttle record per folded login ID.
const Collection = "login_attempts"

// Policy bounds failed sign-ins for a single login ID.
type Policy struct {
	MaxAttempts int           // failures allowed inside Window before lockout
	Window      time.Duration // counting window, measured from the first failure
	Lockout     time.Duration // how long sign-in stays refused once tripped
}

// DefaultPolicy is used when configuration leaves a field at zero.
var DefaultPolicy = Policy{
	MaxAttempts: 5,
	Window:      15 * time.Minute,
	Lockout:     15 * time.Minute,
}

// Attempt is the stored throttle state for a login ID.
type Attempt struct {
	Key         string     `bson:"_id"`
	Failures    int        `bson:"failures"`
	WindowStart time.Time  `bson:"window_start"`
	LockedUntil *time.Time `bson:"locked_until,omitempty"`
	LastAttempt time.Time  `bson:"last_attempt"` // TTL index anchor
}

// Decision is the outcome of Check or RecordFailure.
type Decision struct {
	Allowed     bool
	Remaining   int
	LockedUntil *time.Time
}

// Store tracks failed sign-ins per login ID.
type Store struct {
	c      *mongo.Collection
	policy Policy
	now    func() time.Time
}

// New returns a Store enforcing p. Zero fields in p fall back to DefaultPolicy.
func New(db *mongo.Database, p Policy) *Store {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultPolicy.MaxAttempts
	}
	if p.Window <= 0 {
		p.Window = DefaultPolicy.Window
	}
	if p.Lockout <= 0 {
		p.Lockout = DefaultPolicy.Lockout
	}
	return &Store{
		c:      db.Collection(Collection),
		policy: p,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Policy returns the effective policy.
func (s *Store) Policy() Policy { return s.policy }

func key(loginID string) string {
	return text.Fold(normalize.LoginID(loginID))
}

func (s *Store) load(ctx context.Context, k string) (*Attempt, error) {
	var a Attempt
	err := s.c.FindOne(ctx, bson.M{"_id": k}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) decide(a *Attempt, now time.Time) Decision {
	if a == nil {
		return Decision{Allowed: true, Remaining: s.policy.MaxAttempts}
	}
	if a.LockedUntil != nil && now.Before(*a.LockedUntil) {
		until := *a.LockedUntil
		return Decision{Allowed: false, LockedUntil: &until}
	}
	if a.LockedUntil != nil || !now.Before(a.WindowStart.Add(s.policy.Window)) {
		// Lockout served or window elapsed; the next failure starts over.
		return Decision{Allowed: true, Remaining: s.policy.MaxAttempts}
	}
	remaining := s.policy.MaxAttempts - a.Failures
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: remaining > 0, Remaining: remaining}
}

// Check reports whether loginID may attempt a sign-in now.
// Storage errors are returned alongside an allowing Decision so callers can fail open.
func (s *Store) Check(ctx context.Context, loginID string) (Decision, error) {
	a, err := s.load(ctx, key(loginID))
	if err != nil {
		return Decision{Allowed: true, Remaining: s.policy.MaxAttempts}, err
	}
	return s.decide(a, s.now()), nil
}

// RecordFailure counts a failed sign-in and locks the login ID once the
// policy's attempt budget is spent inside the window.
func (s *Store) RecordFailure(ctx context.Context, loginID string) (Decision, error) {
	k := key(loginID)
	now := s.now()

	a, err := s.load(ctx, k)
	if err != nil {
		return Decision{Allowed: true, Remaining: s.policy.MaxAttempts}, err
	}

	fresh := a == nil ||
		a.LockedUntil != nil && !now.Before(*a.LockedUntil) ||
		a.LockedUntil == nil && !now.Before(a.WindowStart.Add(s.policy.Window))

	var next Attempt
	if fresh {
		next = Attempt{Key: k, Failures: 1, WindowStart: now, LastAttempt: now}
		opts := options.Replace().SetUpsert(true)
		if _, err := s.c.ReplaceOne(ctx, bson.M{"_id": k}, next, opts); err != nil {
			return Decision{Allowed: true, Remaining: s.policy.MaxAttempts}, err
		}
	} else {
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		err := s.c.FindOneAndUpdate(ctx,
			bson.M{"_id": k},
			bson.M{
				"$inc": bson.M{"failures": 1},
				"$set": bson.M{"last_attempt": now},
			},
			opts,
		).Decode(&next)
		if err != nil {
			return Decision{Allowed: true, Remaining: s.policy.MaxAttempts}, err
		}
	}

	if next.Failures >= s.policy.MaxAttempts && next.LockedUntil == nil {
		until := now.Add(s.policy.Lockout)
		if _, err := s.c.UpdateOne(ctx,
			bson.M{"_id": k},
			bson.M{"$set": bson.M{"locked_until": until}},
		); err != nil {
			return Decision{Allowed: true, Remaining: 0}, err
		}
		next.LockedUntil = &until
	}
	return s.decide(&next, now), nil
}

// Clear forgets loginID's failures after a successful sign-in.
func (s *Store) Clear(ctx context.Context, loginID string) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": key(loginID)})
	return err
}

// Get returns the stored record for loginID, or nil when none exists.
func (s *Store) Get(ctx context.Context, loginID string) (*Attempt, error) {
	return s.load(ctx, key(loginID))
}
