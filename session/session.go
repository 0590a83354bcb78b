// Package session keeps in-progress room assignments in Redis while an
// admin edits them. Each edit stores a whole new snapshot.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"tourrooms/solver"
)

var ErrNotFound = errors.New("session not found")

const keyPrefix = "rooms:session:"

type Assignment = solver.Assignment[string, string]

type Session struct {
	ID         string
	TourID     string
	Assignment *Assignment
}

type payload struct {
	TourID string                       `json:"tour_id"`
	State  solver.State[string, string] `json:"state"`
}

type Store struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func New(rdb redis.Cmdable, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func key(id string) string {
	return keyPrefix + id
}

func (s *Store) Create(ctx context.Context, tourID string, a *Assignment) (Session, error) {
	sess := Session{ID: uuid.NewString(), TourID: tourID, Assignment: a}
	if err := s.Put(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Put replaces the stored snapshot and refreshes its expiry.
func (s *Store) Put(ctx context.Context, sess Session) error {
	b, err := json.Marshal(payload{TourID: sess.TourID, State: sess.Assignment.State()})
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.rdb.Set(ctx, key(sess.ID), b, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session %s: %w", sess.ID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (Session, error) {
	b, err := s.rdb.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	var p payload
	if err := json.Unmarshal(b, &p); err != nil {
		return Session{}, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	a, err := solver.Restore(p.State)
	if err != nil {
		return Session{}, fmt.Errorf("session %s: %w", id, err)
	}
	return Session{ID: id, TourID: p.TourID, Assignment: a}, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, key(id)).Err()
}
