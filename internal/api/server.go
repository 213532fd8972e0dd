package api

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/duffymelancholic/diabetes-management-app/internal/credential"
	"github.com/duffymelancholic/diabetes-management-app/internal/metrics"
	"github.com/duffymelancholic/diabetes-management-app/internal/service"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

const serviceName = "diabetes-service"

type Services struct {
	Users       *service.UserService
	Readings    *service.ReadingService
	Medications *service.MedicationService
	Meals       *service.MealService
}

// Options tunes the per-client rate limiter. A zero RateLimit disables it.
type Options struct {
	RateLimit float64
	RateBurst int
}

// NewServer wires every route. Only signup, login and the operational
// endpoints are reachable without a bearer token.
func NewServer(svc Services, creds *credential.Service, opts Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler
	// RealIP is the socket peer; X-Forwarded-For and X-Real-IP are client controlled.
	e.IPExtractor = echo.ExtractIPDirect()

	// metrics is outermost so the request logger below still receives handler errors.
	e.Use(metrics.Middleware())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(requestLogger())
	e.Use(middleware.Recover())
	if opts.RateLimit > 0 {
		e.Use(middleware.RateLimiterWithConfig(rateLimiter(opts)))
	}

	auth := authMiddleware(creds)

	authHandler := NewAuthHandler(svc.Users)
	profileHandler := NewProfileHandler(svc.Users)
	readingHandler := NewReadingHandler(svc.Readings)
	medicationHandler := NewMedicationHandler(svc.Medications)
	mealHandler := NewMealHandler(svc.Meals)

	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"message": "Diabetes Management API"})
	})
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":  "ok",
			"service": serviceName,
			"time":    time.Now().Format(time.RFC3339),
		})
	})
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	e.POST("/signup", authHandler.Signup)
	e.POST("/login", authHandler.Login)
	e.GET("/check_session", authHandler.CheckSession, auth)

	e.GET("/readings", readingHandler.List, auth)
	e.POST("/readings", readingHandler.Create, auth)
	e.GET("/readings/:id", readingHandler.Get, auth)
	e.PATCH("/readings/:id", readingHandler.Update, auth)
	e.DELETE("/readings/:id", readingHandler.Delete, auth)
	e.POST("/readings/:id/meals", readingHandler.LinkMeal, auth)
	e.DELETE("/readings/:id/meals", readingHandler.UnlinkMeal, auth)

	e.PATCH("/me", profileHandler.Update, auth)
	e.GET("/me/bmi", profileHandler.BMI, auth)

	e.GET("/medications", medicationHandler.List, auth)
	e.POST("/medications", medicationHandler.Create, auth)
	e.PATCH("/medications/:id", medicationHandler.Update, auth)

	e.GET("/meals", mealHandler.List, auth)
	e.POST("/meals", mealHandler.Create, auth)

	return e
}

// authMiddleware resolves the bearer token through the credential service and
// stores the user id under the "user" context key.
func authMiddleware(creds *credential.Service) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ParseTokenFunc: func(c echo.Context, auth string) (interface{}, error) {
			return creds.ResolveToken(auth)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			msg := "Invalid or expired token"
			if c.Request().Header.Get(echo.HeaderAuthorization) == "" {
				msg = "Missing authorization token"
			}
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": msg})
		},
	})
}

func rateLimiter(opts Options) middleware.RateLimiterConfig {
	return middleware.RateLimiterConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/health" || c.Path() == "/metrics"
		},
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(opts.RateLimit),
				Burst:     opts.RateBurst,
				ExpiresIn: 3 * time.Minute,
			}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil // socket address, see e.IPExtractor
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
		},
	}
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := logger.Info()
			if v.Error != nil {
				ev = logger.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}

// errorHandler renders router and middleware errors with the same
// {"error": ...} body the handlers use.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = fmt.Sprint(he.Message)
		}
	} else {
		logger.Error().Err(err).Msg("Unhandled error")
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, map[string]string{"error": msg})
	}
	if err != nil {
		logger.Error().Err(err).Msg("Error writing error response")
	}
}
