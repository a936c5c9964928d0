package httpx

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/mbolis/quick-survey-forms/errs"
	"github.com/mbolis/quick-survey-forms/log"
)

// ErrorBody is the JSON body of every non-internal error response.
type ErrorBody struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// Will log an error, and send an HTTP response with status 500 and default text
func LogInternalError(w http.ResponseWriter, code string, err error) {
	log.Errorf("%s: %+v", code, err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// Will log an error code at the given level, and send
// an HTTP response with status and default text
func LogStatus(w http.ResponseWriter, status int, level log.Level, code string) {
	log.Log(level, code)
	http.Error(w, http.StatusText(status), status)
}

// Status maps an error kind to the HTTP status reporting it.
func Status(kind errs.Kind) int {
	switch kind {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindConflict:
		return http.StatusConflict
	case errs.KindPreconditionFailed:
		return http.StatusPreconditionFailed
	case errs.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Body renders err for a client, reporting false for internal errors whose
// message must not leak.
func Body(err error) (ErrorBody, bool) {
	e, ok := errs.As(err)
	if !ok {
		return ErrorBody{}, false
	}
	return ErrorBody{Kind: e.Kind.String(), Detail: e.Msg}, true
}

// Will log an error returned by a service and send the matching HTTP response:
// expected failures at DEBUG level with their message as JSON body, anything
// else as an internal error
func LogError(w http.ResponseWriter, r *http.Request, code string, err error) {
	body, ok := Body(err)
	if !ok {
		LogInternalError(w, code, err)
		return
	}

	e, _ := errs.As(err)
	log.Debugf("%s: %s (%s)", code, e.Msg, e.Code)
	render.Status(r, Status(e.Kind))
	render.JSON(w, r, body)
}
