package routes

import (
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/mbolis/quick-survey-forms/app"
	"github.com/mbolis/quick-survey-forms/httpx"
	"github.com/mbolis/quick-survey-forms/log"
)

var reRefreshAuth = regexp.MustCompile(`(?i)^refresh\s+(\S+)$`)

// Login exchanges basic auth credentials for a bearer token.
func Login(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok {
			httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "login.basic_auth")
			return
		}

		body := url.Values{
			"grant_type": {"password"},
			"username":   {user},
			"password":   {pass},
		}.Encode()
		r.Body = io.NopCloser(strings.NewReader(body))
		r.ContentLength = int64(len(body))
		r.Header.Set("content-type", "application/x-www-form-urlencoded")
		r.Header.Set("content-length", strconv.Itoa(len(body)))
		r.Form = nil
		r.PostForm = nil
		app.UserCredentials(w, r)
	}
}

// Refresh exchanges a refresh token, sent as "Authorization: Refresh <token>",
// for a new token pair.
func Refresh(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		match := reRefreshAuth.FindStringSubmatch(r.Header.Get("authorization"))
		if len(match) == 0 {
			httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "refresh.token")
			return
		}

		body := url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {match[1]},
		}.Encode()

		req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, "/", strings.NewReader(body))
		if err != nil {
			httpx.LogInternalError(w, "refresh.new_request", err)
			return
		}
		req.Header.Set("content-type", "application/x-www-form-urlencoded")
		req.Header.Set("content-length", strconv.Itoa(len(body)))

		resp := httpx.NewResponseBuffer()
		app.UserCredentials(resp, req)

		if status := resp.Status(); status != http.StatusOK {
			if status == http.StatusInternalServerError {
				status = http.StatusUnauthorized
			}
			httpx.LogStatus(w, status, log.DebugLevel, "refresh.grant")
			return
		}

		if err = resp.Flush(w); err != nil {
			log.Debugf("refresh.flush: %s", err)
		}
	}
}
