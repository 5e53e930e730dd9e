package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/eardogger/internal/middleware/auth"
	"github.com/Skotchmaster/eardogger/internal/models"
	"github.com/Skotchmaster/eardogger/internal/repo"
)

type APIHandler struct {
	Repo *repo.Repo
}

func (h *APIHandler) Register(e *echo.Echo, ownOrigin string) {
	api := e.Group("/api/v1", auth.RequireAuth)

	api.GET("/list", h.List, auth.AllowedScopes(models.ScopeManageDogears))
	api.POST("/create", h.Create, auth.AllowedScopes(models.ScopeWriteDogears, models.ScopeManageDogears))
	api.DELETE("/dogear/:id", h.Delete, auth.AllowedScopes(models.ScopeManageDogears))

	// The update endpoint is the one piece of the API the bookmarklet calls
	// from other people's pages, so it alone gets CORS approval, and only
	// for our own origin. Preflights are anonymous, so the OPTIONS route
	// sits outside the auth chain.
	cors := ownOriginCORS(ownOrigin)
	e.OPTIONS("/api/v1/update", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	}, cors)
	e.POST("/api/v1/update", h.Update, cors, auth.RequireAuth,
		auth.AllowedScopes(models.ScopeWriteDogears, models.ScopeManageDogears))
}

func (h *APIHandler) List(c echo.Context) error {
	id := auth.FromContext(c)
	page, size := pageQuery(c)

	dogears, meta, err := h.Repo.ListDogears(c.Request().Context(), id.User.ID, page, size)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"data": dogears,
		"meta": map[string]any{"pagination": meta.Pagination()},
	})
}

func (h *APIHandler) Create(c echo.Context) error {
	id := auth.FromContext(c)

	var req struct {
		Prefix      string `json:"prefix"`
		Current     string `json:"current"`
		DisplayName string `json:"display_name"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "couldn't make sense of that request body")
	}
	if req.Prefix == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "the prefix field is required")
	}

	dogear, err := h.Repo.CreateDogear(c.Request().Context(), id.User.ID, req.Prefix, req.Current, req.DisplayName)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, dogear)
}

func (h *APIHandler) Update(c echo.Context) error {
	id := auth.FromContext(c)

	var req struct {
		Current string `json:"current"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "couldn't make sense of that request body")
	}
	if req.Current == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "the current field is required")
	}

	dogears, err := h.Repo.UpdateDogears(c.Request().Context(), id.User.ID, req.Current)
	if err != nil {
		return mapError(err)
	}
	if len(dogears) == 0 {
		// Nothing matched; the bookmarklet uses this to fall back to its
		// create flow.
		return echo.NewHTTPError(http.StatusNotFound, "You don't have a dogear for that page.")
	}
	return c.JSON(http.StatusOK, dogears)
}

func (h *APIHandler) Delete(c echo.Context) error {
	id := auth.FromContext(c)

	dogearID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "That dogear doesn't exist.")
	}
	found, err := h.Repo.DestroyDogear(c.Request().Context(), dogearID, id.User.ID)
	if err != nil {
		return mapError(err)
	}
	if !found {
		return echo.NewHTTPError(http.StatusNotFound, "That dogear doesn't exist.")
	}
	return c.NoContent(http.StatusNoContent)
}

// ownOriginCORS grants cross-origin approval to exactly one origin: ours.
// Requests claiming any other origin get a 404, and requests without an
// Origin header pass through untouched.
func ownOriginCORS(ownOrigin string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			origin := c.Request().Header.Get(echo.HeaderOrigin)
			if origin == "" {
				return next(c)
			}
			res := c.Response().Header()
			res.Add(echo.HeaderVary, echo.HeaderOrigin)
			if origin != ownOrigin {
				return echo.NewHTTPError(http.StatusNotFound, "Not found.")
			}

			res.Set(echo.HeaderAccessControlAllowOrigin, ownOrigin)
			res.Set(echo.HeaderAccessControlAllowCredentials, "true")
			if c.Request().Method == http.MethodOptions {
				res.Set(echo.HeaderAccessControlAllowMethods, http.MethodPost)
				res.Set(echo.HeaderAccessControlAllowHeaders, "Authorization, Content-Type")
				return c.NoContent(http.StatusNoContent)
			}
			return next(c)
		}
	}
}
