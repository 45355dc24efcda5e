package server

import (
	"net/http"
	"time"

	"github.com/cybergolem/bessbid/internal/core/domain"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/status", s.StatusHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

func (s *Server) StatusHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.StatusRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "status: FAIL")
	}
	if response, ok := res.(domain.StatusResponse); ok {
		return c.JSON(http.StatusOK, map[string]any{
			"soc":                    response.SOC,
			"equivalent_full_cycles": response.EquivalentFullCycles,
			"dispatch_state":         response.DispatchState,
			"last_dispatch_unix":     response.LastDispatchUnix,
			"forecast_age_seconds":   response.ForecastAgeSeconds,
			"sunrise_hour":           response.SunriseHour,
			"sunset_hour":            response.SunsetHour,
		})
	}
	return c.String(http.StatusServiceUnavailable, "status: FAIL")
}
