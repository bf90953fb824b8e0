package routers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"courseportal/config"
	"courseportal/database/dbtest"
	"courseportal/lock"
	"courseportal/models"
	"courseportal/services/admission"
	"courseportal/services/courses"
	"courseportal/services/enrollments"
	"courseportal/services/users"
	"courseportal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type server struct {
	t   *testing.T
	app *fiber.App
}

func newServer(t *testing.T) *server {
	t.Helper()
	db := dbtest.Open(t)
	userStore := users.NewStore(db, users.Policy{BcryptCost: bcrypt.MinCost})
	courseStore := courses.NewStore(db, utils.NewContentSanitizer())
	enrollmentStore := enrollments.NewStore(db)

	ctx := context.Background()
	for _, u := range []users.NewUser{
		{Email: "manager@example.com", Password: "manager123", Role: models.RoleManager, FirstName: "Mia"},
		{Email: "instructor@example.com", Password: "instructor123", Role: models.RoleInstructor, FirstName: "Ivan"},
		{Email: "s1@example.com", Password: "student123", Role: models.RoleStudent, FirstName: "Sam"},
		{Email: "s2@example.com", Password: "student123", Role: models.RoleStudent, FirstName: "Sol"},
	} {
		_, err := userStore.Create(ctx, u)
		require.NoError(t, err)
	}

	cfg := &config.Config{
		CORSOrigins: []string{"*"},
		JWT: config.JWTConfig{
			AccessSecret:  "access",
			RefreshSecret: "refresh",
			AccessTTL:     time.Minute,
			RefreshTTL:    time.Hour,
		},
	}
	opts := admission.Options{TTL: 5 * time.Second, Retry: lock.RetryPolicy{Attempts: 100, Delay: 5 * time.Millisecond}}
	app := NewApp(cfg, Services{
		Users:       userStore,
		Courses:     courseStore,
		Catalog:     courses.NewCatalog(courseStore, enrollmentStore),
		Coordinator: admission.NewCoordinator(lock.NewMemoryLocker(), courseStore, enrollmentStore, userStore, nil, opts),
	})
	return &server{t: t, app: app}
}

func (s *server) do(method, path, token string, body any) (int, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(s.t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func (s *server) login(email, password string) string {
	s.t.Helper()
	status, env := s.do("POST", "/auth/login", "", fiber.Map{"email": email, "password": password})
	require.Equal(s.t, fiber.StatusOK, status, env.Message)
	var out struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &out))
	return out.AccessToken
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

type idVersion struct {
	ID      string `json:"id"`
	Version int    `json:"version"`
	Status  string `json:"status"`
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	resp, err := s.app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestCourseAuthoringAndVersioning(t *testing.T) {
	s := newServer(t)
	instructor := s.login("instructor@example.com", "instructor123")
	student := s.login("s1@example.com", "student123")

	status, _ := s.do("POST", "/courses", student, fiber.Map{"title": "x"})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, env := s.do("POST", "/courses", instructor, fiber.Map{
		"title": "Compilers", "summary": "Front to back", "content": "<p>intro</p><script>x()</script>",
		"startDate": "2026-09-01", "endDate": "2026-08-01", "capacity": 10,
	})
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Contains(t, string(env.Data), "endDate")

	status, env = s.do("POST", "/courses", instructor, fiber.Map{
		"title": "Compilers", "summary": "Front to back", "content": "<p>intro</p><script>x()</script>",
		"startDate": "2026-09-01", "endDate": "2026-12-01", "capacity": 10,
	})
	require.Equal(t, fiber.StatusCreated, status, env.Message)
	created := decode[idVersion](t, env.Data)
	assert.Equal(t, 1, created.Version)
	assert.NotContains(t, string(env.Data), "script")

	path := "/courses/" + created.ID
	status, env = s.do("PATCH", path, instructor, fiber.Map{"capacity": 20, "version": 1})
	require.Equal(t, fiber.StatusOK, status, env.Message)
	assert.Equal(t, 2, decode[idVersion](t, env.Data).Version)

	status, env = s.do("PATCH", path, instructor, fiber.Map{"capacity": 30, "version": 1})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "COURSE.VERSION_CONFLICT", env.Message)

	status, _ = s.do("PATCH", path, instructor, fiber.Map{"capacity": 30})
	assert.Equal(t, fiber.StatusUnprocessableEntity, status, "version is required")

	status, env = s.do("GET", path+"/versions", instructor, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, decode[[]json.RawMessage](t, env.Data), 1)

	status, env = s.do("GET", "/courses?search=compil", student, nil)
	require.Equal(t, fiber.StatusOK, status)
	list := decode[utils.PageResult[json.RawMessage]](t, env.Data)
	assert.EqualValues(t, 1, list.Total)

	status, _ = s.do("GET", "/courses/not-a-uuid", student, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = s.do("DELETE", path, instructor, nil)
	assert.Equal(t, fiber.StatusOK, status)
	status, env = s.do("GET", path, student, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "COURSE.NOT_FOUND", env.Message)
}

func TestEnrollmentLifecycle(t *testing.T) {
	s := newServer(t)
	instructor := s.login("instructor@example.com", "instructor123")
	manager := s.login("manager@example.com", "manager123")
	s1 := s.login("s1@example.com", "student123")
	s2 := s.login("s2@example.com", "student123")

	status, env := s.do("POST", "/courses", instructor, fiber.Map{
		"title": "Distributed Systems", "content": "<p>consensus</p>",
		"startDate": "2026-09-01", "endDate": "2026-12-01", "capacity": 1,
	})
	require.Equal(t, fiber.StatusCreated, status, env.Message)
	courseID := decode[idVersion](t, env.Data).ID

	status, env = s.do("POST", "/enrollments", s1, fiber.Map{"courseId": courseID})
	require.Equal(t, fiber.StatusCreated, status, env.Message)
	first := decode[idVersion](t, env.Data)
	assert.Equal(t, "PENDING", first.Status)

	status, env = s.do("POST", "/enrollments", s1, fiber.Map{"courseId": courseID})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "ENROLLMENT.ALREADY_ENROLLED", env.Message)

	status, env = s.do("POST", "/enrollments", s2, fiber.Map{"courseId": courseID})
	require.Equal(t, fiber.StatusCreated, status, env.Message)
	second := decode[idVersion](t, env.Data)

	status, _ = s.do("PATCH", "/enrollments/"+first.ID+"/process", s1, fiber.Map{"decision": "APPROVED"})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = s.do("PATCH", "/enrollments/"+first.ID+"/process", manager, fiber.Map{"decision": "CANCELLED"})
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)

	status, env = s.do("PATCH", "/enrollments/"+first.ID+"/process", manager, fiber.Map{"decision": "APPROVED"})
	require.Equal(t, fiber.StatusOK, status, env.Message)
	assert.Equal(t, "APPROVED", decode[idVersion](t, env.Data).Status)

	status, env = s.do("PATCH", "/enrollments/"+second.ID+"/process", manager, fiber.Map{"decision": "APPROVED"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "ENROLLMENT.MAX_ENROLLMENTS_REACHED", env.Message)

	status, env = s.do("DELETE", "/enrollments/"+first.ID, s1, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "ENROLLMENT.CANNOT_CANCEL_APPROVED", env.Message)

	// s1 cannot see or cancel s2's request
	status, _ = s.do("GET", "/enrollments/"+second.ID, s1, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	status, _ = s.do("DELETE", "/enrollments/"+second.ID, s1, nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, env = s.do("DELETE", "/enrollments/"+second.ID, s2, nil)
	require.Equal(t, fiber.StatusOK, status, env.Message)
	assert.Equal(t, "CANCELLED", decode[idVersion](t, env.Data).Status)

	status, env = s.do("GET", fmt.Sprintf("/enrollments?courseId=%s", courseID), manager, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 2, decode[utils.PageResult[json.RawMessage]](t, env.Data).Total)

	status, env = s.do("GET", "/enrollments", s2, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 1, decode[utils.PageResult[json.RawMessage]](t, env.Data).Total)

	status, env = s.do("GET", "/courses/"+courseID, s1, nil)
	require.Equal(t, fiber.StatusOK, status)
	view := decode[struct {
		EnrolledCount int64 `json:"enrolledCount"`
		IsEnrolled    bool  `json:"isEnrolled"`
	}](t, env.Data)
	assert.EqualValues(t, 1, view.EnrolledCount)
	assert.True(t, view.IsEnrolled)
}

func TestAuthFlow(t *testing.T) {
	s := newServer(t)

	status, _ := s.do("POST", "/auth/signup", "", fiber.Map{"email": "new@example.com", "password": "longenough", "firstName": "Nia"})
	require.Equal(t, fiber.StatusCreated, status)
	status, env := s.do("POST", "/auth/signup", "", fiber.Map{"email": "new@example.com", "password": "longenough", "firstName": "Nia"})
	assert.Equal(t, fiber.StatusConflict, status, env.Message)

	status, _ = s.do("POST", "/auth/login", "", fiber.Map{"email": "new@example.com", "password": "wrongpass"})
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, env = s.do("POST", "/auth/login", "", fiber.Map{"email": "new@example.com", "password": "longenough"})
	require.Equal(t, fiber.StatusOK, status)
	tokens := decode[struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
		User         struct {
			Role string `json:"role"`
		} `json:"user"`
	}](t, env.Data)
	assert.Equal(t, models.RoleStudent, tokens.User.Role)

	status, env = s.do("GET", "/auth/me", tokens.AccessToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(env.Data), "new@example.com")
	assert.NotContains(t, string(env.Data), "password")

	status, env = s.do("GET", "/auth/login/history", tokens.AccessToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 1, decode[utils.PageResult[json.RawMessage]](t, env.Data).Total)

	status, env = s.do("POST", "/auth/refresh-token", "", fiber.Map{"refreshToken": tokens.RefreshToken})
	require.Equal(t, fiber.StatusOK, status, env.Message)
	status, _ = s.do("POST", "/auth/refresh-token", "", fiber.Map{"refreshToken": tokens.RefreshToken})
	assert.Equal(t, fiber.StatusUnauthorized, status, "refresh tokens are single use")

	status, _ = s.do("POST", "/auth/logout", tokens.AccessToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	status, _ = s.do("GET", "/auth/me", tokens.AccessToken, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}
