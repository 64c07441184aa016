package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/panelhub/paneltrack/internal/repositories"
)

// renderError maps domain errors onto HTTP responses. A no-data result
// echoes the query key alongside the message, so clients can tell which
// identifier produced the empty result.
func renderError(c echo.Context, err error) error {
	var nf *repositories.NotFoundError
	if errors.As(err, &nf) {
		return c.JSON(http.StatusNotFound, map[string]string{
			"Key":     nf.Key,
			"Message": nf.Message,
		})
	}

	switch {
	case errors.Is(err, repositories.ErrNotImplemented):
		return c.JSON(http.StatusNotImplemented, map[string]string{"Message": err.Error()})
	case errors.Is(err, repositories.ErrPanelIDRequired),
		errors.Is(err, repositories.ErrRcodeRequired),
		errors.Is(err, repositories.ErrGeneIDsRequired),
		errors.Is(err, repositories.ErrNoRegistryRecords):
		return c.JSON(http.StatusBadRequest, map[string]string{"Message": err.Error()})
	}
	return err
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"Message": message})
}
