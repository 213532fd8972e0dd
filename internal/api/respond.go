package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/duffymelancholic/diabetes-management-app/internal/service"
)

const msgInvalidPayload = "Invalid request payload"

func statusFor(kind service.Kind) int {
	switch kind {
	case service.KindUnauthenticated:
		return http.StatusUnauthorized
	case service.KindNotFound:
		return http.StatusNotFound
	}
	// Conflicts and storage failures are reported as 400 as well.
	return http.StatusBadRequest
}

func fail(c echo.Context, code int, msg string) error {
	return c.JSON(code, map[string]string{"error": msg})
}

// respondError renders a service error. Anything else is still a 400 carrying
// the underlying message; no handler answers 500.
func respondError(c echo.Context, err error) error {
	var se *service.Error
	if errors.As(err, &se) {
		return fail(c, statusFor(se.Kind), se.Message)
	}
	logger.Error().Err(err).Str("path", c.Path()).Msg("Unclassified error")
	return fail(c, http.StatusBadRequest, err.Error())
}

// currentUser is the id stored by the auth middleware.
func currentUser(c echo.Context) int64 {
	id, _ := c.Get("user").(int64)
	return id
}

// pathID parses :id. A malformed id cannot name an existing row, so callers
// answer it with their not-found message.
func pathID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
