package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/studylink/backend/internal/models"
	"github.com/studylink/backend/pkg/apperrors"
)

// getUserIDFromContext extracts the authenticated user id placed in the
// context by the JWT middleware; 0 when the request is unauthenticated.
func getUserIDFromContext(c echo.Context) uint {
	claims, ok := c.Get("user").(*models.JwtCustomClaims)
	if !ok || claims == nil {
		return 0
	}
	return claims.UserID
}

// httpError maps a typed core failure onto a transport response.
func httpError(err error) *echo.HTTPError {
	switch apperrors.CodeOf(err) {
	case apperrors.CodeInvalidArgument:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case apperrors.CodeNotFound:
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case apperrors.CodeAlreadyExists:
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case apperrors.CodePermissionDenied:
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case apperrors.CodeUnauthenticated:
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case apperrors.CodeStorageFailure:
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
