// Package store reads tour cohorts from Postgres and records saved room
// assignments.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"tourrooms/solver"
)

//go:embed schema.sql
var schema string

var ErrNotFound = errors.New("not found")

// UnknownGender is used for travelers whose gender column is empty.
const UnknownGender = "unknown"

type (
	Traveler = solver.RawTraveler[string, string]
	Room     = solver.Room[string, string]
)

type Tour struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type SavedRoom struct {
	Number    int      `json:"number"`
	Capacity  int      `json:"capacity"`
	Travelers []string `json:"traveler_ids"`
}

type Store struct {
	db  *sql.DB
	log *zap.Logger
}

func New(db *sql.DB, log *zap.Logger) *Store {
	return &Store{db: db, log: log}
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func NormalizeGender(g string) string {
	g = strings.ToLower(strings.TrimSpace(g))
	if g == "" {
		return UnknownGender
	}
	return g
}

func (s *Store) GetTour(ctx context.Context, tourID string) (Tour, error) {
	t := Tour{ID: tourID}
	err := s.db.QueryRowContext(ctx, "SELECT name FROM tours WHERE id = $1", tourID).Scan(&t.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return Tour{}, fmt.Errorf("tour %s: %w", tourID, ErrNotFound)
	}
	if err != nil {
		return Tour{}, fmt.Errorf("failed to load tour %s: %w", tourID, err)
	}
	return t, nil
}

// ListTravelers returns the named travelers booked on a tour, ordered by ID.
// Each stated preference is offered to the resolver as an ID first and as
// a display name second.
func (s *Store) ListTravelers(ctx context.Context, tourID string) ([]Traveler, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, student_name, student_gender, room_preference_1, room_preference_2, room_preference_3
		FROM booked_travelers
		WHERE tour_id = $1 AND student_name IS NOT NULL
		ORDER BY id`, tourID)
	if err != nil {
		return nil, fmt.Errorf("failed to query travelers: %w", err)
	}
	defer rows.Close()

	var travelers []Traveler
	for rows.Next() {
		var (
			t      Traveler
			gender sql.NullString
			prefs  [solver.MaxPreferences]sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.Name, &gender, &prefs[0], &prefs[1], &prefs[2]); err != nil {
			return nil, fmt.Errorf("failed to scan traveler: %w", err)
		}
		t.Gender = NormalizeGender(gender.String)
		for _, p := range prefs {
			if v := strings.TrimSpace(p.String); p.Valid && v != "" {
				t.Slots = append(t.Slots, solver.Slot[string]{ID: v, HasID: true, Name: v})
			}
		}
		travelers = append(travelers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read travelers: %w", err)
	}
	s.log.Debug("loaded travelers", zap.String("tour_id", tourID), zap.Int("count", len(travelers)))
	return travelers, nil
}

func (s *Store) RoomConfigs(ctx context.Context, tourID string) (map[string][]solver.RoomConfig, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT gender, capacity, count FROM room_configs WHERE tour_id = $1 ORDER BY gender, capacity DESC", tourID)
	if err != nil {
		return nil, fmt.Errorf("failed to query room configs: %w", err)
	}
	defer rows.Close()

	configs := map[string][]solver.RoomConfig{}
	for rows.Next() {
		var g string
		var c solver.RoomConfig
		if err := rows.Scan(&g, &c.Capacity, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan room config: %w", err)
		}
		configs[g] = append(configs[g], c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read room configs: %w", err)
	}
	return configs, nil
}

// SaveRoomConfigs replaces the room counts configured for one gender.
func (s *Store) SaveRoomConfigs(ctx context.Context, tourID, gender string, configs []solver.RoomConfig) error {
	for _, c := range configs {
		if c.Capacity < 1 || c.Count < 0 {
			return fmt.Errorf("invalid room config %+v", c)
		}
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM room_configs WHERE tour_id = $1 AND gender = $2", tourID, gender); err != nil {
			return fmt.Errorf("failed to clear room configs: %w", err)
		}
		for _, c := range configs {
			if c.Count == 0 {
				continue
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO room_configs (tour_id, gender, capacity, count) VALUES ($1, $2, $3, $4)
				ON CONFLICT (tour_id, gender, capacity) DO UPDATE SET count = room_configs.count + EXCLUDED.count`,
				tourID, gender, c.Capacity, c.Count); err != nil {
				return fmt.Errorf("failed to insert room config: %w", err)
			}
		}
		return nil
	})
}

// SaveAssignment replaces the stored rooms of one gender. Empty rooms are
// not written.
func (s *Store) SaveAssignment(ctx context.Context, tourID, gender string, rooms []Room) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM room_assignments WHERE tour_id = $1 AND gender = $2", tourID, gender); err != nil {
			return fmt.Errorf("failed to clear assignment: %w", err)
		}
		for _, r := range rooms {
			if len(r.Occupants) == 0 {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO room_assignments (tour_id, gender, room_number, capacity, traveler_ids) VALUES ($1, $2, $3, $4, $5)",
				tourID, gender, r.ID, r.Capacity, pq.Array(r.Occupants)); err != nil {
				return fmt.Errorf("failed to insert room %d: %w", r.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("saved assignment", zap.String("tour_id", tourID), zap.String("gender", gender), zap.Int("rooms", len(rooms)))
	return nil
}

func (s *Store) Assignment(ctx context.Context, tourID, gender string) ([]SavedRoom, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT room_number, capacity, traveler_ids
		FROM room_assignments
		WHERE tour_id = $1 AND gender = $2
		ORDER BY room_number`, tourID, gender)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignment: %w", err)
	}
	defer rows.Close()

	var out []SavedRoom
	for rows.Next() {
		var r SavedRoom
		if err := rows.Scan(&r.Number, &r.Capacity, pq.Array(&r.Travelers)); err != nil {
			return nil, fmt.Errorf("failed to scan saved room: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read assignment: %w", err)
	}
	return out, nil
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}
