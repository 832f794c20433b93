package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gamestore/internal/auth"
	"gamestore/internal/domain"
	"gamestore/internal/repository"
	"gamestore/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeUserService struct {
	users     map[string]*domain.User
	passwords map[string]string
	revoked   []string
	update    service.UserUpdate
	deleted   uuid.UUID
	err       error
}

func newFakeUserService() *fakeUserService {
	return &fakeUserService{users: map[string]*domain.User{}, passwords: map[string]string{}}
}

func (f *fakeUserService) add(email, password string, roles ...string) *domain.User {
	user := &domain.User{ID: uuid.New(), Email: email, FirstName: "Ada", LastName: "Byron", Roles: roles}
	f.users[email] = user
	f.passwords[email] = password
	return user
}

func (f *fakeUserService) Register(ctx context.Context, email, password, firstName, lastName string) (*domain.User, error) {
	if _, ok := f.users[email]; ok {
		return nil, repository.ErrUserAlreadyExists
	}
	user := f.add(email, password, domain.RoleCustomer)
	user.FirstName, user.LastName = firstName, lastName
	return user, nil
}

func (f *fakeUserService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	user, ok := f.users[email]
	if !ok || f.passwords[email] != password {
		return nil, service.ErrInvalidCredentials
	}
	return user, nil
}

func (f *fakeUserService) LoginJWT(ctx context.Context, email, password string) (*service.TokenPair, *domain.User, error) {
	user, err := f.Authenticate(ctx, email, password)
	if err != nil {
		return nil, nil, err
	}
	access, err := testTokens.IssueAccessToken(user)
	if err != nil {
		return nil, nil, err
	}
	return &service.TokenPair{AccessToken: access, RefreshToken: "refresh-" + user.ID.String(), TokenType: "Bearer", ExpiresIn: 900}, user, nil
}

func (f *fakeUserService) Refresh(ctx context.Context, refreshToken string) (*service.TokenPair, error) {
	if !strings.HasPrefix(refreshToken, "refresh-") {
		return nil, service.ErrInvalidToken
	}
	return &service.TokenPair{AccessToken: "new-access", RefreshToken: "refresh-next", TokenType: "Bearer", ExpiresIn: 900}, nil
}

func (f *fakeUserService) Logout(ctx context.Context, refreshToken string) error {
	f.revoked = append(f.revoked, refreshToken)
	return nil
}

func (f *fakeUserService) ValidateToken(tokenString string) (*auth.Claims, error) {
	return testTokens.Parse(tokenString)
}

func (f *fakeUserService) GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	for _, user := range f.users {
		if user.ID == userID {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (f *fakeUserService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	var users []*domain.User
	for _, user := range f.users {
		users = append(users, user)
	}
	return users, f.err
}

func (f *fakeUserService) UpdateUser(ctx context.Context, userID uuid.UUID, update service.UserUpdate) (*domain.User, error) {
	f.update = update
	user, err := f.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.FirstName, user.LastName, user.Roles = update.FirstName, update.LastName, update.Roles
	return user, nil
}

func (f *fakeUserService) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	if _, err := f.GetUserByID(ctx, userID); err != nil {
		return err
	}
	f.deleted = userID
	return nil
}

func (f *fakeUserService) EnsureAdmin(ctx context.Context, email, password string) error {
	return nil
}

type authFixture struct {
	users    *fakeUserService
	sessions service.SessionService
	router   http.Handler
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	users := newFakeUserService()
	sessions := service.NewSessionService(repository.NewSessionRepository(client), time.Hour)
	handler := NewAuthHandler(users, sessions, SessionCookie{Name: testCookieName, TTL: time.Hour}, zap.NewNop())
	return &authFixture{
		users:    users,
		sessions: sessions,
		router:   newTestRouter(sessions, handler),
	}
}

func jsonBody(t *testing.T, v interface{}) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(body)
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == testCookieName {
			return c
		}
	}
	return nil
}

// Feature: game-store, Property 13: Invalid registration data is rejected
func TestProperty_InvalidRegistrationDataIsRejected(t *testing.T) {
	properties := gopter.NewProperties(nil)
	fixture := newAuthFixture(t)

	properties.Property("registration with invalid data returns validation errors", prop.ForAll(
		func(invalidCase int) bool {

			reqBody := RegisterRequest{Email: "test@example.com", Password: "ValidPass123", FirstName: "John", LastName: "Doe"}
			switch invalidCase % 4 {
			case 0:
				reqBody.Email = ""
			case 1:
				reqBody.Email = "not-an-email"
			case 2:
				reqBody.Password = "short"
			case 3:
				reqBody.FirstName, reqBody.LastName = "", ""
			}

			req := httptest.NewRequest(http.MethodPost, "/api/auth/register", jsonBody(t, reqBody))
			w := serve(fixture.router, req)

			return w.Code == http.StatusBadRequest &&
				strings.Contains(w.Body.String(), "validation_errors") &&
				len(fixture.users.users) == 0
		},
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestAuthHandler_Register(t *testing.T) {
	fixture := newAuthFixture(t)
	body := RegisterRequest{Email: "new@example.com", Password: "ValidPass123", FirstName: "New", LastName: "Player"}

	w := serve(fixture.router, httptest.NewRequest(http.MethodPost, "/api/auth/register", jsonBody(t, body)))
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Data UserProfile `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "new@example.com", resp.Data.Email)
	assert.Equal(t, []string{domain.RoleCustomer}, resp.Data.Roles)

	w = serve(fixture.router, httptest.NewRequest(http.MethodPost, "/api/auth/register", jsonBody(t, body)))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAuthHandler_CookieLoginFlow(t *testing.T) {
	fixture := newAuthFixture(t)
	user := fixture.users.add("shopper@example.com", "Secret123!", domain.RoleCustomer)

	w := serve(fixture.router, httptest.NewRequest(http.MethodPost, "/api/auth/login",
		jsonBody(t, LoginRequest{Email: "shopper@example.com", Password: "Secret123!"})))
	require.Equal(t, http.StatusOK, w.Code)

	cookie := sessionCookie(w)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/", cookie.Path)
	assert.NotEmpty(t, cookie.Value)

	me := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	me.AddCookie(cookie)
	w = serve(fixture.router, me)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), user.ID.String())

	logout := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	logout.AddCookie(cookie)
	w = serve(fixture.router, logout)
	require.Equal(t, http.StatusOK, w.Code)
	cleared := sessionCookie(w)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Empty(t, fixture.users.revoked)

	me = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	me.AddCookie(cookie)
	assert.Equal(t, http.StatusUnauthorized, serve(fixture.router, me).Code)
}

func TestAuthHandler_LoginFailuresAreUniform(t *testing.T) {
	fixture := newAuthFixture(t)
	fixture.users.add("shopper@example.com", "Secret123!", domain.RoleCustomer)

	for _, creds := range []LoginRequest{
		{Email: "shopper@example.com", Password: "wrong-password"},
		{Email: "nobody@example.com", Password: "Secret123!"},
	} {
		for _, path := range []string{"/api/auth/login", "/api/auth/loginJwt"} {
			w := serve(fixture.router, httptest.NewRequest(http.MethodPost, path, jsonBody(t, creds)))
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), "invalid email or password")
			assert.Nil(t, sessionCookie(w))
		}
	}
}

func TestAuthHandler_JWTFlow(t *testing.T) {
	fixture := newAuthFixture(t)
	user := fixture.users.add("admin@example.com", "Secret123!", domain.RoleAdmin)

	w := serve(fixture.router, httptest.NewRequest(http.MethodPost, "/api/auth/loginJwt",
		jsonBody(t, LoginRequest{Email: "admin@example.com", Password: "Secret123!"})))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, sessionCookie(w))

	var resp struct {
		Data struct {
			AccessToken  string      `json:"access_token"`
			RefreshToken string      `json:"refresh_token"`
			TokenType    string      `json:"token_type"`
			User         UserProfile `json:"user"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.NotEmpty(t, resp.Data.AccessToken)
	assert.Equal(t, "Bearer", resp.Data.TokenType)
	assert.Equal(t, user.ID.String(), resp.Data.User.ID)

	me := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	me.Header.Set("Authorization", "Bearer "+resp.Data.AccessToken)
	assert.Equal(t, http.StatusOK, serve(fixture.router, me).Code)

	w = serve(fixture.router, httptest.NewRequest(http.MethodPost, "/api/auth/refresh",
		jsonBody(t, RefreshRequest{RefreshToken: resp.Data.RefreshToken})))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "new-access")

	w = serve(fixture.router, httptest.NewRequest(http.MethodPost, "/api/auth/refresh",
		jsonBody(t, RefreshRequest{RefreshToken: "forged"})))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(fixture.router, httptest.NewRequest(http.MethodPost, "/api/auth/logout",
		jsonBody(t, RefreshRequest{RefreshToken: resp.Data.RefreshToken})))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{resp.Data.RefreshToken}, fixture.users.revoked)
}

func TestAuthHandler_MeRequiresAuthentication(t *testing.T) {
	fixture := newAuthFixture(t)
	assert.Equal(t, http.StatusUnauthorized, serve(fixture.router, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)).Code)
}

func TestUserHandler_AdminCRUD(t *testing.T) {
	users := newFakeUserService()
	target := users.add("player@example.com", "Secret123!", domain.RoleCustomer)
	router := newTestRouter(sessionTable{}, NewUserHandler(users, zap.NewNop()))
	adminID, admin := bearerFor(t, domain.RoleAdmin)
	_, customer := bearerFor(t, domain.RoleCustomer)

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("Authorization", customer)
	assert.Equal(t, http.StatusForbidden, serve(router, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("Authorization", admin)
	w := serve(router, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "player@example.com")
	assert.NotContains(t, w.Body.String(), "password")

	req = httptest.NewRequest(http.MethodPut, "/api/users/"+target.ID.String(),
		strings.NewReader(`{"first_name":"Pro","last_name":"Player","roles":["Customer","Admin"]}`))
	req.Header.Set("Authorization", admin)
	require.Equal(t, http.StatusOK, serve(router, req).Code)
	assert.Equal(t, []string{domain.RoleCustomer, domain.RoleAdmin}, users.update.Roles)

	req = httptest.NewRequest(http.MethodPut, "/api/users/"+target.ID.String(),
		strings.NewReader(`{"first_name":"Pro","last_name":"Player","roles":["Overlord"]}`))
	req.Header.Set("Authorization", admin)
	assert.Equal(t, http.StatusBadRequest, serve(router, req).Code)

	req = httptest.NewRequest(http.MethodDelete, "/api/users/"+adminID.String(), nil)
	req.Header.Set("Authorization", admin)
	assert.Equal(t, http.StatusBadRequest, serve(router, req).Code)

	req = httptest.NewRequest(http.MethodDelete, "/api/users/"+target.ID.String(), nil)
	req.Header.Set("Authorization", admin)
	assert.Equal(t, http.StatusNoContent, serve(router, req).Code)
	assert.Equal(t, target.ID, users.deleted)

	req = httptest.NewRequest(http.MethodGet, "/api/users/"+uuid.NewString(), nil)
	req.Header.Set("Authorization", admin)
	assert.Equal(t, http.StatusNotFound, serve(router, req).Code)
}
