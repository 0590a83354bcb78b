package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"slices"

	"go.uber.org/zap"

	"tourrooms/export"
	"tourrooms/session"
	"tourrooms/solver"
	"tourrooms/store"
)

type occupantView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Satisfied   int    `json:"satisfied"`
	Preferences int    `json:"preferences"`
}

type roomView struct {
	ID        int            `json:"id"`
	Capacity  int            `json:"capacity"`
	Cohesion  int            `json:"cohesion"`
	Occupants []occupantView `json:"occupants"`
}

type sessionView struct {
	ID                         string         `json:"id"`
	TourID                     string         `json:"tour_id"`
	Gender                     string         `json:"gender"`
	Version                    int            `json:"version"`
	TotalTravelers             int            `json:"total_travelers"`
	TotalRooms                 int            `json:"total_rooms"`
	UnderfilledRooms           int            `json:"underfilled_rooms"`
	UnassignedTravelers        int            `json:"unassigned_travelers"`
	PreferencesSatisfied       int            `json:"preferences_satisfied"`
	MutualPreferencesSatisfied int            `json:"mutual_preferences_satisfied"`
	Rooms                      []roomView     `json:"rooms"`
	Unassigned                 []occupantView `json:"unassigned"`
}

func viewSession(sess session.Session) sessionView {
	a := sess.Assignment
	m := a.Metrics()
	occupant := func(id string) occupantView {
		t, _ := a.Traveler(id)
		return occupantView{ID: id, Name: t.Name, Satisfied: m.Satisfied[id], Preferences: m.Attainable[id]}
	}
	v := sessionView{
		ID:                         sess.ID,
		TourID:                     sess.TourID,
		Gender:                     a.Gender(),
		Version:                    a.Version(),
		TotalTravelers:             m.TotalTravelers,
		TotalRooms:                 m.TotalRooms,
		UnderfilledRooms:           m.UnderfilledRooms,
		UnassignedTravelers:        m.Unassigned,
		PreferencesSatisfied:       m.PreferencesSatisfied,
		MutualPreferencesSatisfied: m.MutualPreferencesSatisfied,
		Rooms:                      []roomView{},
		Unassigned:                 []occupantView{},
	}
	for _, r := range m.Rooms {
		rv := roomView{ID: r.ID, Capacity: r.Capacity, Cohesion: r.Cohesion, Occupants: []occupantView{}}
		for _, id := range r.Occupants {
			rv.Occupants = append(rv.Occupants, occupant(id))
		}
		v.Rooms = append(v.Rooms, rv)
	}
	for _, id := range m.UnassignedIDs {
		v.Unassigned = append(v.Unassigned, occupant(id))
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps package errors to status codes. Anything unrecognized is
// logged and reported as a 500.
func (s *server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, session.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, solver.ErrUnknownTraveler),
		errors.Is(err, solver.ErrUnknownRoom),
		errors.Is(err, solver.ErrNotInRoom),
		errors.Is(err, solver.ErrAlreadyInRoom),
		errors.Is(err, solver.ErrRoomFull),
		errors.Is(err, solver.ErrInvalidState):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		s.log.Error("request failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// loadCohort reads a tour's travelers and resolves their preferences.
// Preferences that match nobody are logged and dropped.
func (s *server) loadCohort(r *http.Request, tourID string) ([]solver.Traveler[string, string], []solver.Unresolved[string], []store.Traveler, error) {
	raw, err := s.store.ListTravelers(r.Context(), tourID)
	if err != nil {
		return nil, nil, nil, err
	}
	travelers, unresolved := solver.BuildPreferences(raw)
	for _, u := range unresolved {
		s.log.Warn("unresolved room preference",
			zap.String("tour_id", tourID),
			zap.String("traveler_id", u.Traveler),
			zap.String("value", u.Slot.Name))
	}
	return travelers, unresolved, raw, nil
}

func (s *server) handleListTravelers(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	tourID := r.PathValue("tourID")
	travelers, unresolved, raw, err := s.loadCohort(r, tourID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	type unresolvedView struct {
		TravelerID string `json:"traveler_id"`
		Value      string `json:"value"`
	}
	out := struct {
		Travelers      []solver.Traveler[string, string] `json:"travelers"`
		Unresolved     []unresolvedView                  `json:"unresolved"`
		NameCollisions []string                          `json:"name_collisions"`
	}{
		Travelers:      travelers,
		Unresolved:     []unresolvedView{},
		NameCollisions: solver.NameCollisions(raw),
	}
	if out.Travelers == nil {
		out.Travelers = []solver.Traveler[string, string]{}
	}
	if out.NameCollisions == nil {
		out.NameCollisions = []string{}
	}
	for _, u := range unresolved {
		out.Unresolved = append(out.Unresolved, unresolvedView{TravelerID: u.Traveler, Value: u.Slot.Name})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleGetRoomConfigs(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	configs, err := s.store.RoomConfigs(r.Context(), r.PathValue("tourID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, configs)
}

func (s *server) handlePutRoomConfigs(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	var body struct {
		Gender  string              `json:"gender"`
		Configs []solver.RoomConfig `json:"configs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	for _, c := range body.Configs {
		if c.Capacity < 1 || c.Count < 0 {
			http.Error(w, "capacity must be at least 1 and count must not be negative", http.StatusBadRequest)
			return
		}
	}
	tourID := r.PathValue("tourID")
	gender := store.NormalizeGender(body.Gender)
	if err := s.store.SaveRoomConfigs(r.Context(), tourID, gender, body.Configs); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCreateAssignments computes a fresh assignment for every gender on
// the tour and opens one editing session per gender. Room counts come from
// the request body when given, otherwise from the stored configuration.
func (s *server) handleCreateAssignments(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	tourID := r.PathValue("tourID")

	var body struct {
		Configs map[string][]solver.RoomConfig `json:"configs"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}
	configs := map[string][]solver.RoomConfig{}
	for g, c := range body.Configs {
		configs[store.NormalizeGender(g)] = append(configs[store.NormalizeGender(g)], c...)
	}
	if body.Configs == nil {
		stored, err := s.store.RoomConfigs(r.Context(), tourID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		configs = stored
	}

	travelers, _, _, err := s.loadCohort(r, tourID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	all := solver.ComputeAll(travelers, configs)
	genders := make([]string, 0, len(all))
	for g := range all {
		genders = append(genders, g)
	}
	slices.Sort(genders)

	views := []sessionView{}
	for _, g := range genders {
		a := all[g]
		if spots := solver.TotalSpots(configs[g]); spots < len(a.Travelers()) {
			s.log.Info("not enough beds",
				zap.String("tour_id", tourID),
				zap.String("gender", g),
				zap.Int("travelers", len(a.Travelers())),
				zap.Int("spots", spots))
		}
		sess, err := s.sessions.Create(r.Context(), tourID, a)
		if err != nil {
			s.writeError(w, err)
			return
		}
		views = append(views, viewSession(sess))
	}
	s.log.Info("computed assignments", zap.String("tour_id", tourID), zap.Int("sessions", len(views)))
	writeJSON(w, http.StatusCreated, map[string]any{"sessions": views})
}

// handleSavedAssignment reopens the rooms last saved for one gender as a
// new editing session, against the tour's current cohort.
func (s *server) handleSavedAssignment(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	tourID := r.PathValue("tourID")
	gender := store.NormalizeGender(r.PathValue("gender"))

	saved, err := s.store.Assignment(r.Context(), tourID, gender)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if len(saved) == 0 {
		http.Error(w, "no saved assignment", http.StatusNotFound)
		return
	}
	travelers, _, _, err := s.loadCohort(r, tourID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	state := solver.State[string, string]{
		Gender:    gender,
		Version:   1,
		Travelers: solver.Partition(travelers, gender),
	}
	for _, sr := range saved {
		state.Rooms = append(state.Rooms, solver.Room[string, string]{
			ID:        sr.Number,
			Capacity:  sr.Capacity,
			Occupants: sr.Travelers,
			Gender:    gender,
		})
	}
	a, err := solver.Restore(state)
	if err != nil {
		s.writeError(w, fmt.Errorf("saved assignment no longer matches the tour: %w", err))
		return
	}
	sess, err := s.sessions.Create(r.Context(), tourID, a)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewSession(sess))
}

func (s *server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	sess, err := s.sessions.Get(r.Context(), r.PathValue("sessionID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewSession(sess))
}

// edit applies fn to the session's current snapshot and stores the result.
// A rejected edit leaves the stored session untouched.
func (s *server) edit(w http.ResponseWriter, r *http.Request, fn func(*session.Assignment) (*session.Assignment, error)) {
	sess, err := s.sessions.Get(r.Context(), r.PathValue("sessionID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	next, err := fn(sess.Assignment)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sess.Assignment = next
	if err := s.sessions.Put(r.Context(), sess); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewSession(sess))
}

func (s *server) handleMove(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	var body struct {
		TravelerID string `json:"traveler_id"`
		FromRoom   *int   `json:"from_room"`
		ToRoom     *int   `json:"to_room"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.TravelerID == "" {
		http.Error(w, "traveler_id is required", http.StatusBadRequest)
		return
	}
	s.edit(w, r, func(a *session.Assignment) (*session.Assignment, error) {
		return a.Move(body.TravelerID, body.FromRoom, body.ToRoom)
	})
}

func (s *server) handleRemove(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	var body struct {
		TravelerID string `json:"traveler_id"`
		RoomID     int    `json:"room_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.TravelerID == "" {
		http.Error(w, "traveler_id and room_id are required", http.StatusBadRequest)
		return
	}
	s.edit(w, r, func(a *session.Assignment) (*session.Assignment, error) {
		return a.Remove(body.TravelerID, body.RoomID)
	})
}

func (s *server) handleSave(w http.ResponseWriter, r *http.Request) {
	email, ok := s.requireAdmin(w, r)
	if !ok {
		return
	}
	sess, err := s.sessions.Get(r.Context(), r.PathValue("sessionID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	a := sess.Assignment
	if err := s.store.SaveAssignment(r.Context(), sess.TourID, a.Gender(), a.Rooms()); err != nil {
		s.writeError(w, err)
		return
	}
	s.log.Info("assignment saved",
		zap.String("session_id", sess.ID),
		zap.String("by", email),
		zap.Int("version", a.Version()))
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteSession discards an editing session. Saved rooms are kept.
func (s *server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	id := r.PathValue("sessionID")
	if _, err := s.sessions.Get(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.sessions.Delete(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleExport(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	sess, err := s.sessions.Get(r.Context(), r.PathValue("sessionID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	tour, err := s.store.GetTour(r.Context(), sess.TourID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	b, err := export.RoomingList(tour.Name, []export.Section{export.FromAssignment(sess.Assignment)})
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": fmt.Sprintf("rooms-%s-%s.xlsx", sess.TourID, sess.Assignment.Gender()),
	}))
	w.Write(b)
}
