package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"google.golang.org/api/idtoken"

	"tourrooms/config"
	"tourrooms/session"
	"tourrooms/solver"
	"tourrooms/store"
)

const admin = "admin@example.com"

func setupServer(t *testing.T) (*server, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	s := &server{
		cfg: config.Config{
			ClientID:     "client-id",
			ClientSecret: "secret",
			Admins:       admin + ", other@example.com",
			SessionTTL:   time.Hour,
		},
		store:    store.New(db, zap.NewNop()),
		sessions: session.New(rdb, time.Hour),
		log:      zap.NewNop(),
		validate: func(ctx context.Context, token, audience string) (*idtoken.Payload, error) {
			if token != "good" || audience != "client-id" {
				return nil, errors.New("bad token")
			}
			return &idtoken.Payload{Claims: map[string]any{"email": admin, "name": "Admin"}}, nil
		},
	}
	return s, mock
}

func do(s *server, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.routes().ServeHTTP(w, req)
	return w
}

func expectCohort(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(`SELECT id, student_name`).WithArgs("tour-1").WillReturnRows(
		sqlmock.NewRows([]string{
			"id", "student_name", "student_gender", "room_preference_1", "room_preference_2", "room_preference_3",
		}).
			AddRow("1", "Ana", "Female", "2", nil, nil).
			AddRow("2", "Bea", "female", "Ana", nil, nil).
			AddRow("3", "Cleo", "female", "4", nil, nil).
			AddRow("4", "Dan", "male", "Ghost", nil, nil))
}

func createSessions(t *testing.T, s *server, mock sqlmock.Sqlmock) []sessionView {
	expectCohort(mock)
	w := do(s, "POST", "/api/tours/tour-1/assignments", s.signEmail(admin), map[string]any{
		"configs": map[string]any{"Female": []map[string]int{{"capacity": 2, "count": 1}}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var out struct {
		Sessions []sessionView `json:"sessions"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	return out.Sessions
}

func TestHealthz(t *testing.T) {
	s, _ := setupServer(t)
	w := do(s, "GET", "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGoogleCallback(t *testing.T) {
	s, _ := setupServer(t)

	req := httptest.NewRequest("POST", "/auth/google/callback", strings.NewReader(url.Values{"credential": {"good"}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.routes().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var profile map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&profile))
	assert.Equal(t, admin, profile["email"])
	token, _ := profile["token"].(string)

	w = do(s, "GET", "/api/admin/check", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"admin":true}`, w.Body.String())
}

func TestGoogleCallbackRejectsBadToken(t *testing.T) {
	s, _ := setupServer(t)

	req := httptest.NewRequest("POST", "/auth/google/callback", strings.NewReader("credential=bad"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.routes().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(s, "POST", "/auth/google/callback", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminGate(t *testing.T) {
	s, mock := setupServer(t)

	assert.Equal(t, http.StatusUnauthorized, do(s, "GET", "/api/tours/tour-1/travelers", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(s, "GET", "/api/tours/tour-1/travelers", "forged.token", nil).Code)
	assert.Equal(t, http.StatusForbidden, do(s, "GET", "/api/tours/tour-1/travelers", s.signEmail("guest@example.com"), nil).Code)

	w := do(s, "GET", "/api/admin/check", s.signEmail("guest@example.com"), nil)
	assert.JSONEq(t, `{"admin":false}`, w.Body.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListTravelers(t *testing.T) {
	s, mock := setupServer(t)
	expectCohort(mock)

	w := do(s, "GET", "/api/tours/tour-1/travelers", s.signEmail(admin), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var out struct {
		Travelers []struct {
			ID          string   `json:"id"`
			Preferences []string `json:"preferences"`
		} `json:"travelers"`
		Unresolved []struct {
			TravelerID string `json:"traveler_id"`
			Value      string `json:"value"`
		} `json:"unresolved"`
		NameCollisions []string `json:"name_collisions"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	require.Len(t, out.Travelers, 4)
	assert.Equal(t, []string{"2"}, out.Travelers[0].Preferences)
	assert.Equal(t, []string{"1"}, out.Travelers[1].Preferences)
	require.Len(t, out.Unresolved, 1)
	assert.Equal(t, "4", out.Unresolved[0].TravelerID)
	assert.Equal(t, "Ghost", out.Unresolved[0].Value)
	assert.Empty(t, out.NameCollisions)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPutRoomConfigs(t *testing.T) {
	s, mock := setupServer(t)
	token := s.signEmail(admin)

	w := do(s, "PUT", "/api/tours/tour-1/room-configs", token, map[string]any{
		"gender":  "female",
		"configs": []map[string]int{{"capacity": 0, "count": 1}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM room_configs`).WithArgs("tour-1", "female").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO room_configs`).WithArgs("tour-1", "female", 2, 3).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	w = do(s, "PUT", "/api/tours/tour-1/room-configs", token, map[string]any{
		"gender":  " Female ",
		"configs": []map[string]int{{"capacity": 2, "count": 3}},
	})
	assert.Equal(t, http.StatusNoContent, w.Code)

	mock.ExpectQuery(`SELECT gender, capacity, count FROM room_configs`).WithArgs("tour-1").
		WillReturnRows(sqlmock.NewRows([]string{"gender", "capacity", "count"}).AddRow("female", 2, 3))
	w = do(s, "GET", "/api/tours/tour-1/room-configs", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"female":[{"capacity":2,"count":3}]}`, w.Body.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAssignments(t *testing.T) {
	s, mock := setupServer(t)
	sessions := createSessions(t, s, mock)
	require.Len(t, sessions, 2)

	female, male := sessions[0], sessions[1]
	assert.Equal(t, "female", female.Gender)
	assert.Equal(t, 1, female.Version)
	require.Len(t, female.Rooms, 1)
	assert.Equal(t, 2, female.Rooms[0].Cohesion)
	assert.Equal(t, "1", female.Rooms[0].Occupants[0].ID)
	assert.Equal(t, "2", female.Rooms[0].Occupants[1].ID)
	assert.Equal(t, 2, female.PreferencesSatisfied)
	assert.Equal(t, 1, female.MutualPreferencesSatisfied)
	require.Len(t, female.Unassigned, 1)
	assert.Equal(t, "Cleo", female.Unassigned[0].Name)
	assert.Equal(t, 0, female.Unassigned[0].Preferences, "cross-gender preference cannot be met")
	assert.Equal(t, 1, female.Rooms[0].Occupants[0].Preferences)

	assert.Equal(t, "male", male.Gender)
	assert.Empty(t, male.Rooms)
	assert.Equal(t, 1, male.UnassignedTravelers)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAssignmentsUsesStoredConfigs(t *testing.T) {
	s, mock := setupServer(t)
	mock.ExpectQuery(`SELECT gender, capacity, count FROM room_configs`).WithArgs("tour-1").
		WillReturnRows(sqlmock.NewRows([]string{"gender", "capacity", "count"}).AddRow("female", 3, 1))
	expectCohort(mock)

	w := do(s, "POST", "/api/tours/tour-1/assignments", s.signEmail(admin), nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var out struct {
		Sessions []sessionView `json:"sessions"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	require.Len(t, out.Sessions, 2)
	require.Len(t, out.Sessions[0].Rooms, 1)
	assert.Len(t, out.Sessions[0].Rooms[0].Occupants, 3)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMoveAndRemove(t *testing.T) {
	s, mock := setupServer(t)
	female := createSessions(t, s, mock)[0]
	token := s.signEmail(admin)
	base := "/api/sessions/" + female.ID

	w := do(s, "POST", base+"/move", token, map[string]any{"traveler_id": "3", "to_room": 1})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(s, "POST", base+"/move", token, map[string]any{"traveler_id": "2", "from_room": 1})
	require.Equal(t, http.StatusOK, w.Code)
	var v sessionView
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	assert.Equal(t, 2, v.Version)
	assert.Equal(t, 1, v.UnderfilledRooms)
	assert.Equal(t, 0, v.PreferencesSatisfied)
	assert.Len(t, v.Unassigned, 2)

	w = do(s, "POST", base+"/move", token, map[string]any{"traveler_id": "3", "to_room": 1})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(s, "POST", base+"/remove", token, map[string]any{"traveler_id": "1", "room_id": 1})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(s, "GET", base, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	v = sessionView{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	assert.Equal(t, 4, v.Version)
	require.Len(t, v.Rooms, 1)
	require.Len(t, v.Rooms[0].Occupants, 1)
	assert.Equal(t, "3", v.Rooms[0].Occupants[0].ID)

	w = do(s, "POST", base+"/remove", token, map[string]any{"traveler_id": "1", "room_id": 1})
	assert.Equal(t, http.StatusConflict, w.Code)
	w = do(s, "POST", base+"/move", token, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionNotFound(t *testing.T) {
	s, _ := setupServer(t)
	w := do(s, "GET", "/api/sessions/missing", s.signEmail(admin), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteSession(t *testing.T) {
	s, mock := setupServer(t)
	female := createSessions(t, s, mock)[0]
	token := s.signEmail(admin)

	w := do(s, "DELETE", "/api/sessions/"+female.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, http.StatusNotFound, do(s, "GET", "/api/sessions/"+female.ID, token, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(s, "DELETE", "/api/sessions/"+female.ID, token, nil).Code)
	assert.Equal(t, http.StatusForbidden, do(s, "DELETE", "/api/sessions/"+female.ID, s.signEmail("guest@example.com"), nil).Code)
}

func TestSaveAndReopen(t *testing.T) {
	s, mock := setupServer(t)
	female := createSessions(t, s, mock)[0]
	token := s.signEmail(admin)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM room_assignments`).WithArgs("tour-1", "female").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO room_assignments`).
		WithArgs("tour-1", "female", 1, 2, pq.Array([]string{"1", "2"})).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	w := do(s, "POST", "/api/sessions/"+female.ID+"/save", token, nil)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	mock.ExpectQuery(`SELECT room_number, capacity, traveler_ids`).WithArgs("tour-1", "female").
		WillReturnRows(sqlmock.NewRows([]string{"room_number", "capacity", "traveler_ids"}).AddRow(1, 2, "{1,2}"))
	expectCohort(mock)

	w = do(s, "GET", "/api/tours/tour-1/assignments/female", token, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var v sessionView
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	assert.NotEqual(t, female.ID, v.ID)
	require.Len(t, v.Rooms, 1)
	assert.Equal(t, 2, v.Rooms[0].Cohesion)
	assert.Equal(t, female.PreferencesSatisfied, v.PreferencesSatisfied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReopenRejectsStaleAssignment(t *testing.T) {
	s, mock := setupServer(t)
	mock.ExpectQuery(`SELECT room_number, capacity, traveler_ids`).WithArgs("tour-1", "female").
		WillReturnRows(sqlmock.NewRows([]string{"room_number", "capacity", "traveler_ids"}).AddRow(1, 2, "{1,99}"))
	expectCohort(mock)

	w := do(s, "GET", "/api/tours/tour-1/assignments/female", s.signEmail(admin), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExport(t *testing.T) {
	s, mock := setupServer(t)
	female := createSessions(t, s, mock)[0]

	mock.ExpectQuery(`SELECT name FROM tours`).WithArgs("tour-1").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Italy 2026"))

	w := do(s, "GET", "/api/sessions/"+female.ID+"/export", s.signEmail(admin), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "rooms-tour-1-female.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Female"}, f.GetSheetList())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExportEscapesFilename(t *testing.T) {
	s, mock := setupServer(t)
	a := solver.ComputeAssignment([]solver.Traveler[string, string]{
		{ID: "1", Name: "Ana", Gender: "élan"},
	}, nil, "élan")
	sess, err := s.sessions.Create(context.Background(), `t"1;x`, a)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT name FROM tours`).WithArgs(`t"1;x`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Odd"))

	w := do(s, "GET", "/api/sessions/"+sess.ID+"/export", s.signEmail(admin), nil)
	require.Equal(t, http.StatusOK, w.Code)

	disposition, params, err := mime.ParseMediaType(w.Header().Get("Content-Disposition"))
	require.NoError(t, err)
	assert.Equal(t, "attachment", disposition)
	assert.Equal(t, `rooms-t"1;x-élan.xlsx`, params["filename"])
	require.NoError(t, mock.ExpectationsWereMet())
}
