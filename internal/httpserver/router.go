package httpserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	ecM "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Skotchmaster/eardogger/internal/config"
	"github.com/Skotchmaster/eardogger/internal/middleware/auth"
	"github.com/Skotchmaster/eardogger/internal/middleware/csrf"
	"github.com/Skotchmaster/eardogger/internal/repo"
	"github.com/Skotchmaster/eardogger/internal/urlmatch"
	"github.com/Skotchmaster/eardogger/internal/util"
)

type Deps struct {
	Repo *repo.Repo
	Cfg  config.Config
	Log  *slog.Logger
}

func Register(e *echo.Echo, d *Deps) {
	e.HTTPErrorHandler = errorHandler(d.Log, d.Cfg.Dev)
	e.Use(ecM.Recover())
	e.Use(ecM.RequestID())
	e.Use(requestLogger(d.Log))
	e.Use(ecM.Secure())

	resolver := &auth.Resolver{Repo: d.Repo, Secure: !d.Cfg.Dev}
	e.Use(resolver.Resolve)

	e.GET("/status", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := &APIHandler{Repo: d.Repo}
	api.Register(e, d.Cfg.OwnOrigin)

	web := &WebHandler{
		Repo:      d.Repo,
		Guard:     &csrf.Guard{Secret: d.Cfg.CookieSecret, Secure: !d.Cfg.Dev},
		OwnOrigin: d.Cfg.OwnOrigin,
		Secure:    !d.Cfg.Dev,
	}
	web.Register(e)
}

// errorHandler renders every failure as a small JSON object. Internal errors
// keep their detail out of the response unless we're in dev mode.
func errorHandler(log *slog.Logger, dev bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		msg := "Something went wrong on our end. Sorry about that."

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if m, ok := he.Message.(string); ok {
				msg = m
			} else {
				msg = http.StatusText(code)
			}
		}
		if code >= 500 {
			log.Error("request failed", "error", err, "path", c.Request().URL.Path)
			if dev {
				msg = err.Error()
			}
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, map[string]string{"error": msg})
	}
}

func requestLogger(log *slog.Logger) echo.MiddlewareFunc {
	return ecM.RequestLoggerWithConfig(ecM.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v ecM.RequestLoggerValues) error {
			log.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency.Round(time.Microsecond),
			)
			return nil
		},
	})
}

// mapError turns repo-layer errors into HTTP ones. Anything unrecognized
// passes through and lands as a 500.
func mapError(err error) error {
	var (
		pageErr     *util.PageError
		dupPrefix   *repo.DuplicatePrefixError
		mismatch    *repo.PrefixMismatchError
		badURL      *urlmatch.InvalidURLError
		badUsername *repo.BadUsernameError
		dupUsername *repo.DuplicateUsernameError
		pwErr       *repo.PasswordError
	)
	switch {
	case errors.As(err, &pageErr):
		return echo.NewHTTPError(http.StatusBadRequest, pageErr.Error())
	case errors.As(err, &dupPrefix):
		return echo.NewHTTPError(http.StatusConflict, dupPrefix.Error())
	case errors.As(err, &mismatch):
		return echo.NewHTTPError(http.StatusBadRequest, mismatch.Error())
	case errors.As(err, &badURL):
		return echo.NewHTTPError(http.StatusBadRequest, badURL.Error())
	case errors.As(err, &badUsername):
		return echo.NewHTTPError(http.StatusBadRequest, badUsername.Error())
	case errors.As(err, &dupUsername):
		return echo.NewHTTPError(http.StatusConflict, dupUsername.Error())
	case errors.As(err, &pwErr):
		return echo.NewHTTPError(http.StatusBadRequest, pwErr.Error())
	}
	return err
}

// pageQuery reads the page/size query params, defaulting rather than
// erroring on absent or unparseable values. Out-of-range values are left for
// the repo layer to reject.
func pageQuery(c echo.Context) (page, size int) {
	page = intQueryDefault(c, "page", 1)
	size = intQueryDefault(c, "size", util.PageDefaultSize)
	return page, size
}

func intQueryDefault(c echo.Context, name string, def int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
