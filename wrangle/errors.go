package wrangle

import (
	"errors"
	"net/http"

	"github.com/tidytable/tidytable/clean"
	"github.com/tidytable/tidytable/dataset"
	"github.com/tidytable/tidytable/history"
	"github.com/tidytable/tidytable/ingest"
	"github.com/tidytable/tidytable/session"
	"github.com/tidytable/tidytable/transform"
)

// HTTPStatus maps an operation error to a response code. Missing data
// and unknown history entries are 404; malformed requests are 400;
// anything unrecognized is a 500.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, dataset.ErrNoTable), errors.Is(err, history.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, clean.ErrBadMethod),
		errors.Is(err, clean.ErrUnknownColumn),
		errors.Is(err, transform.ErrBadRequest),
		errors.Is(err, transform.ErrUnknownColumn),
		errors.Is(err, ingest.ErrBadChunk),
		errors.Is(err, ingest.ErrIncomplete),
		errors.Is(err, ingest.ErrUnsupported),
		errors.Is(err, session.ErrBadDocument),
		errors.Is(err, session.ErrVersion),
		errors.Is(err, ErrBadFormat):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
