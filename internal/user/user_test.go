package user

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dustin/showfinder/config"
	"github.com/dustin/showfinder/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	byID map[uuid.UUID]*User
	err  error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{byID: map[uuid.UUID]*User{}}
}

func (r *memoryRepo) Create(u *User) error {
	if r.err != nil {
		return r.err
	}
	r.byID[u.ID] = u
	return nil
}

func (r *memoryRepo) FindByEmail(email string) (*User, error) {
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryRepo) FindByID(id uuid.UUID) (*User, error) {
	if u, ok := r.byID[id]; ok {
		return u, nil
	}
	return nil, ErrNotFound
}

func (r *memoryRepo) Update(u *User) error {
	if r.err != nil {
		return r.err
	}
	if _, ok := r.byID[u.ID]; !ok {
		return ErrNotFound
	}
	r.byID[u.ID] = u
	return nil
}

func newService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(&config.JWTConfig{Secret: "test-secret", Expiration: "1h"}, repo, logger.Nop())
	require.NoError(t, err)
	return svc
}

func TestUser_ToResponse(t *testing.T) {
	user := User{
		ID:           uuid.New(),
		Email:        "test@example.com",
		PasswordHash: "secret_hash",
		DisplayName:  "Tess",
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	response := user.ToResponse()

	assert.Equal(t, user.ID, response.ID)
	assert.Equal(t, user.Email, response.Email)
	assert.Equal(t, "Tess", response.DisplayName)

	body, err := json.Marshal(user)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "secret_hash")
	assert.Equal(t, "users", User{}.TableName())
}

func TestNewService(t *testing.T) {
	_, err := NewService(&config.JWTConfig{Expiration: "soon"}, newMemoryRepo(), logger.Nop())
	assert.Error(t, err)

	svc, err := NewService(nil, newMemoryRepo(), logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, svc.(*service).jwtExpiry)
}

func TestService_SignUpAndLogin(t *testing.T) {
	repo := newMemoryRepo()
	svc := newService(t, repo)

	user, err := svc.SignUp(CreateUserRequest{Email: " Viewer@Example.com ", Password: "hunter22", DisplayName: "Viewer"})
	require.NoError(t, err)
	assert.Equal(t, "viewer@example.com", user.Email)
	assert.NotEqual(t, "hunter22", user.PasswordHash)

	t.Run("duplicate email", func(t *testing.T) {
		_, err := svc.SignUp(CreateUserRequest{Email: "viewer@example.com", Password: "another1"})
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("login issues a token that validates", func(t *testing.T) {
		token, err := svc.Login("VIEWER@example.com", "hunter22")
		require.NoError(t, err)

		got, err := svc.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login("viewer@example.com", "nope")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := svc.Login("nobody@example.com", "hunter22")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("repository failure is not masked", func(t *testing.T) {
		broken := newMemoryRepo()
		broken.err = errors.New("db down")
		_, err := newService(t, broken).Login("viewer@example.com", "hunter22")
		assert.EqualError(t, err, "db down")
	})
}

func TestService_UpdateProfile(t *testing.T) {
	repo := newMemoryRepo()
	svc := newService(t, repo)

	user, err := svc.SignUp(CreateUserRequest{Email: "viewer@example.com", Password: "hunter22", DisplayName: "Old"})
	require.NoError(t, err)

	t.Run("nil field is left alone", func(t *testing.T) {
		got, err := svc.UpdateProfile(user.ID, UpdateProfileRequest{})
		require.NoError(t, err)
		assert.Equal(t, "Old", got.DisplayName)
	})

	t.Run("display name is trimmed", func(t *testing.T) {
		name := "  New Name "
		got, err := svc.UpdateProfile(user.ID, UpdateProfileRequest{DisplayName: &name})
		require.NoError(t, err)
		assert.Equal(t, "New Name", got.DisplayName)
		assert.Equal(t, "New Name", repo.byID[user.ID].DisplayName)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.UpdateProfile(uuid.New(), UpdateProfileRequest{})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestService_ValidateToken(t *testing.T) {
	svc := newService(t, newMemoryRepo())

	t.Run("foreign issuer", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
			UserID:           uuid.New().String(),
			RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else"},
		})
		signed, err := token.SignedString([]byte("test-secret"))
		require.NoError(t, err)

		_, err = svc.ValidateToken(signed)
		assert.Error(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
			UserID:           uuid.New().String(),
			RegisteredClaims: jwt.RegisteredClaims{Issuer: tokenIssuer},
		})
		signed, err := token.SignedString([]byte("other"))
		require.NoError(t, err)

		_, err = svc.ValidateToken(signed)
		assert.Error(t, err)
	})
}

func TestHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := newService(t, newMemoryRepo())
	h := NewHandler(svc)
	router := gin.New()
	h.RegisterRoutes(router.Group("/api/v1"), h.AuthMiddleware())

	post := func(path string, body any) *httptest.ResponseRecorder {
		payload, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w := post("/api/v1/signup", gin.H{"email": "a@example.com", "password": "password1"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = post("/api/v1/signup", gin.H{"email": "a@example.com", "password": "password1"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = post("/api/v1/signup", gin.H{"email": "b@example.com", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post("/api/v1/login", gin.H{"email": "a@example.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = post("/api/v1/login", gin.H{"email": "a@example.com", "password": "password1"})
	require.Equal(t, http.StatusOK, w.Code)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var me UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "a@example.com", me.Email)

	req = httptest.NewRequest(http.MethodPatch, "/api/v1/users/me", bytes.NewReader([]byte(`{"display_name":"Binge Watcher"}`)))
	req.Header.Set("Authorization", "Bearer "+login.Token)
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "Binge Watcher", me.DisplayName)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
