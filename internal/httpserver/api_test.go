package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/eardogger/internal/config"
	"github.com/Skotchmaster/eardogger/internal/models"
	"github.com/Skotchmaster/eardogger/internal/repo"
)

const testOrigin = "https://eardogger.example.com"

type server struct {
	e    *echo.Echo
	repo *repo.Repo
}

func newServer(t *testing.T) *server {
	t.Helper()

	r, err := repo.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, r.Migrate())
	t.Cleanup(func() {
		require.NoError(t, r.Close())
	})

	e := echo.New()
	Register(e, &Deps{
		Repo: r,
		Cfg: config.Config{
			OwnOrigin:    testOrigin,
			CookieSecret: []byte("test-cookie-secret"),
		},
		Log: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return &server{e: e, repo: r}
}

type apiUser struct {
	user        *models.User
	session     *models.Session
	writeToken  string
	manageToken string
}

func (s *server) seedUser(t *testing.T, name string) *apiUser {
	t.Helper()
	ctx := context.Background()

	user, err := s.repo.CreateUser(ctx, name, "aoeuhtns", "")
	require.NoError(t, err)
	session, err := s.repo.CreateSession(ctx, user.ID)
	require.NoError(t, err)
	_, writeToken, err := s.repo.CreateToken(ctx, user.ID, models.ScopeWriteDogears, "")
	require.NoError(t, err)
	_, manageToken, err := s.repo.CreateToken(ctx, user.ID, models.ScopeManageDogears, "")
	require.NoError(t, err)

	return &apiUser{user: user, session: session, writeToken: writeToken, manageToken: manageToken}
}

func (s *server) request(method, path, token string, body any, mutate func(*http.Request)) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		encoded, _ := json.Marshal(body)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func TestStatusEndpoint(t *testing.T) {
	s := newServer(t)
	rec := s.request(http.MethodGet, "/status", "", nil, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAPIRequiresAuth(t *testing.T) {
	s := newServer(t)

	rec := s.request(http.MethodGet, "/api/v1/list", "", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "aren't logged in")

	// A write token can't hit the manage-scoped routes, and the message
	// makes clear it's a permissions problem, not a login problem.
	u := s.seedUser(t, "scopecheck")
	rec = s.request(http.MethodGet, "/api/v1/list", u.writeToken, nil, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "permissions")

	rec = s.request(http.MethodGet, "/api/v1/list", u.manageToken, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAPICreate(t *testing.T) {
	s := newServer(t)
	u := s.seedUser(t, "creator")

	rec := s.request(http.MethodPost, "/api/v1/create", u.writeToken, map[string]string{
		"prefix":       "https://www.example.com/comic/",
		"current":      "https://www.example.com/comic/24",
		"display_name": "Example Comic",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var dogear models.Dogear
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dogear))
	require.Equal(t, "example.com/comic/", dogear.Prefix)

	// Same prefix again is a conflict, not a server error.
	rec = s.request(http.MethodPost, "/api/v1/create", u.writeToken, map[string]string{
		"prefix": "http://m.example.com/comic/",
	}, nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = s.request(http.MethodPost, "/api/v1/create", u.writeToken, map[string]string{}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIUpdate(t *testing.T) {
	s := newServer(t)
	u := s.seedUser(t, "updater")

	_, err := s.repo.CreateDogear(context.Background(), u.user.ID, "example.com/comic", "https://example.com/comic/1", "")
	require.NoError(t, err)

	rec := s.request(http.MethodPost, "/api/v1/update", u.writeToken, map[string]string{
		"current": "https://example.com/comic/99",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var dogears []models.Dogear
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dogears))
	require.Len(t, dogears, 1)
	require.Equal(t, "https://example.com/comic/99", dogears[0].Current)

	// No dogear for that page: 404 so the bookmarklet can offer create.
	rec = s.request(http.MethodPost, "/api/v1/update", u.writeToken, map[string]string{
		"current": "https://elsewhere.example.net/",
	}, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPIDelete(t *testing.T) {
	s := newServer(t)
	u := s.seedUser(t, "deleter")
	stranger := s.seedUser(t, "stranger")

	dogear, err := s.repo.CreateDogear(context.Background(), u.user.ID, "example.com/comic", "https://example.com/comic/1", "")
	require.NoError(t, err)
	path := "/api/v1/dogear/" + itoa(dogear.ID)

	// Deleting needs the manage scope.
	rec := s.request(http.MethodDelete, path, u.writeToken, nil, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// Someone else's dogear reads as absent.
	rec = s.request(http.MethodDelete, path, stranger.manageToken, nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.request(http.MethodDelete, path, u.manageToken, nil, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.request(http.MethodDelete, path, u.manageToken, nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPIListPagination(t *testing.T) {
	s := newServer(t)
	u := s.seedUser(t, "pager")
	ctx := context.Background()

	_, err := s.repo.CreateDogear(ctx, u.user.ID, "example.com/comic", "https://example.com/comic/1", "")
	require.NoError(t, err)
	_, err = s.repo.CreateDogear(ctx, u.user.ID, "example.com/serial", "https://example.com/serial/1", "")
	require.NoError(t, err)

	rec := s.request(http.MethodGet, "/api/v1/list?page=2&size=1", u.manageToken, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []models.Dogear `json:"data"`
		Meta struct {
			Pagination struct {
				CurrentPage int   `json:"current_page"`
				PageSize    *int  `json:"page_size"`
				PrevPage    *int  `json:"prev_page"`
				NextPage    *int  `json:"next_page"`
				TotalPages  int   `json:"total_pages"`
				TotalCount  int64 `json:"total_count"`
			} `json:"pagination"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	require.Equal(t, 2, resp.Meta.Pagination.CurrentPage)
	require.Equal(t, 2, resp.Meta.Pagination.TotalPages)
	require.EqualValues(t, 2, resp.Meta.Pagination.TotalCount)
	require.NotNil(t, resp.Meta.Pagination.PrevPage)
	require.Equal(t, 1, *resp.Meta.Pagination.PrevPage)
	require.Nil(t, resp.Meta.Pagination.NextPage)

	// Asking for more than the cap is the caller's mistake.
	rec = s.request(http.MethodGet, "/api/v1/list?size=100000", u.manageToken, nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateCORS(t *testing.T) {
	s := newServer(t)
	u := s.seedUser(t, "corscheck")

	// Preflight from our own origin gets approval for POST only.
	rec := s.request(http.MethodOptions, "/api/v1/update", "", nil, func(req *http.Request) {
		req.Header.Set(echo.HeaderOrigin, testOrigin)
	})
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, testOrigin, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	require.Equal(t, http.MethodPost, rec.Header().Get(echo.HeaderAccessControlAllowMethods))

	// Any other origin gets stonewalled.
	rec = s.request(http.MethodOptions, "/api/v1/update", "", nil, func(req *http.Request) {
		req.Header.Set(echo.HeaderOrigin, "https://evil.example.net")
	})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.request(http.MethodPost, "/api/v1/update", u.writeToken, map[string]string{
		"current": "https://example.com/comic/5",
	}, func(req *http.Request) {
		req.Header.Set(echo.HeaderOrigin, "https://evil.example.net")
	})
	require.Equal(t, http.StatusNotFound, rec.Code)

	// The rest of the API never grants approval, even to our own origin.
	rec = s.request(http.MethodGet, "/api/v1/list", u.manageToken, nil, func(req *http.Request) {
		req.Header.Set(echo.HeaderOrigin, testOrigin)
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
