package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbolis/quick-survey-forms/app"
	"github.com/mbolis/quick-survey-forms/config"
	"github.com/mbolis/quick-survey-forms/database"
	"github.com/mbolis/quick-survey-forms/errs"
	"github.com/mbolis/quick-survey-forms/forms"
	"github.com/mbolis/quick-survey-forms/httpx"
	"github.com/mbolis/quick-survey-forms/model"
	"github.com/mbolis/quick-survey-forms/store"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type server struct {
	t       *testing.T
	handler http.Handler
	app     app.App
}

func newServer(t *testing.T) *server {
	t.Helper()
	cfg := config.Config{
		DBUrl:       filepath.Join(t.TempDir(), "test.sqlite"),
		TokenSecret: testSecret,
		TokenTTL:    time.Minute,
	}
	db, err := database.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.EnsureAdmin(context.Background(), db, "admin", "pa55"))

	a := app.New(db, httpx.NewBearerServer(db, cfg), cfg)
	return &server{t, Wire(a), a}
}

func (s *server) do(method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader *bytes.Reader
	if raw, ok := body.(string); ok {
		reader = bytes.NewReader([]byte(raw))
	} else if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("content-type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

// seed stores an active survey with one TEXT and one CHOICE question.
func (s *server) seed() (model.Survey, model.Question, model.Question) {
	s.t.Helper()
	ctx := context.Background()
	now := time.Now()

	survey := model.Survey{Title: "lunch", StartDate: now.Add(-time.Hour), EndDate: now.Add(time.Hour)}
	require.NoError(s.t, store.InsertSurvey(ctx, s.app.DB, &survey))

	text := model.Question{SurveyID: survey.ID, Type: model.Text, Text: "comments"}
	choice := model.Question{SurveyID: survey.ID, Type: model.Choice, Text: "main course",
		Answers: []model.AnswerOption{{Text: "pasta"}, {Text: "fish"}}}
	require.NoError(s.t, store.InsertQuestion(ctx, s.app.DB, &text))
	require.NoError(s.t, store.InsertQuestion(ctx, s.app.DB, &choice))
	return survey, text, choice
}

func TestPublicFormFlow(t *testing.T) {
	s := newServer(t)
	survey, text, choice := s.seed()

	rec := s.do("GET", "/api/surveys/active", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var active []model.Survey
	decode(t, rec, &active)
	require.Len(t, active, 1)
	assert.Equal(t, survey.ID, active[0].ID)

	rec = s.do("POST", fmt.Sprintf("/api/surveys/%d/start", survey.ID), nil, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var form model.Form
	decode(t, rec, &form)
	require.NotEmpty(t, form.Token)
	base := "/api/forms/" + form.Token

	rec = s.do("GET", base+"/survey/questions", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var questions []model.Question
	decode(t, rec, &questions)
	assert.Len(t, questions, 2)

	rec = s.do("PUT", base+"/respondent", map[string]any{"first_name": "Ada", "last_name": "L", "age": 36}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do("PATCH", base+"/respondent", map[string]any{"age": 37}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var respondent model.Respondent
	decode(t, rec, &respondent)
	assert.Equal(t, "Ada", respondent.FirstName)
	assert.Equal(t, 37, respondent.Age)

	rec = s.do("POST", base+"/answers", map[string]any{"question": text.ID, "text": "good"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do("PATCH", base+"/submit", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body httpx.ErrorBody
	decode(t, rec, &body)
	assert.Equal(t, "form is incomplete: 1 left", body.Detail)

	rec = s.do("POST", base+"/answers", map[string]any{"question": choice.ID, "choice": choice.Answers[1].ID}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var answer map[string]any
	decode(t, rec, &answer)
	assert.Equal(t, float64(choice.Answers[1].ID), answer["choice"])

	rec = s.do("PATCH", base+"/submit", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &form)
	assert.True(t, form.Submitted)
	assert.NotNil(t, form.SubmittedDate)

	rec = s.do("PATCH", base+"/submit", nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do("PATCH", fmt.Sprintf("/api/forms/answers/%d", int64(answer["pk"].(float64))), map[string]any{"choice": choice.Answers[0].ID}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateFormAnswersBatch(t *testing.T) {
	s := newServer(t)
	survey, text, choice := s.seed()

	rec := s.do("POST", fmt.Sprintf("/api/surveys/%d/start", survey.ID), nil, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var form model.Form
	decode(t, rec, &form)

	rec = s.do("POST", "/api/forms/"+form.Token+"/answers", []map[string]any{
		{"question": text.ID, "text": "fine"},
		{"question": choice.ID, "choice": 9999},
	}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Answers []map[string]any `json:"answers"`
		Errors  []struct {
			Index  int    `json:"index"`
			Kind   string `json:"kind"`
			Detail string `json:"detail"`
		} `json:"errors"`
	}
	decode(t, rec, &body)
	assert.Len(t, body.Answers, 1)
	require.Len(t, body.Errors, 1)
	assert.Equal(t, 1, body.Errors[0].Index)
	assert.Equal(t, "`choice` should be in question choices", body.Errors[0].Detail)

	// the first item was kept
	rec = s.do("GET", "/api/forms/"+form.Token+"/answers", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var answers []map[string]any
	decode(t, rec, &answers)
	assert.Len(t, answers, 1)
}

func TestPublicErrorStatuses(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()

	future := model.Survey{Title: "later", StartDate: time.Now().Add(time.Hour), EndDate: time.Now().Add(2 * time.Hour)}
	require.NoError(t, store.InsertSurvey(ctx, s.app.DB, &future))

	for _, tt := range []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"survey not found", "POST", "/api/surveys/4242/start", nil, http.StatusNotFound},
		{"survey not active", "POST", fmt.Sprintf("/api/surveys/%d/start", future.ID), nil, http.StatusPreconditionFailed},
		{"form not found", "GET", "/api/forms/nope", nil, http.StatusNotFound},
		{"no respondent", "GET", "/api/forms/nope/respondent", nil, http.StatusNotFound},
		{"bad body", "POST", "/api/forms/nope/answers", "{", http.StatusBadRequest},
		{"answer not found", "DELETE", "/api/forms/answers/4242", nil, http.StatusNotFound},
	} {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(tt.method, tt.path, tt.body, nil)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestAdminRequiresToken(t *testing.T) {
	s := newServer(t)

	rec := s.do("GET", "/api/admin/surveys", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do("POST", "/api/login", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do("POST", "/api/refresh", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func login(t *testing.T, s *server) http.Header {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/login", nil)
	req.SetBasicAuth("admin", "pa55")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var token struct {
		AccessToken string `json:"access_token"`
	}
	decode(t, rec, &token)
	require.NotEmpty(t, token.AccessToken)
	return http.Header{"Authorization": {"Bearer " + token.AccessToken}}
}

func TestAdminSurveyCrud(t *testing.T) {
	s := newServer(t)
	auth := login(t, s)
	now := time.Now().UTC().Truncate(time.Second)

	rec := s.do("POST", "/api/admin/surveys", map[string]any{
		"title":      "team",
		"start_date": now.Add(-time.Hour),
		"end_date":   now.Add(time.Hour),
	}, auth)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var survey model.Survey
	decode(t, rec, &survey)

	rec = s.do("POST", fmt.Sprintf("/api/admin/surveys/%d/questions", survey.ID), map[string]any{
		"type":    model.Choice,
		"text":    "favourite day",
		"answers": []map[string]any{{"text": "mon"}, {"text": "fri"}},
	}, auth)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var question model.Question
	decode(t, rec, &question)
	require.Len(t, question.Answers, 2)

	rec = s.do("PATCH", fmt.Sprintf("/api/admin/surveys/%d", survey.ID), map[string]any{"start_date": now}, auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do("PATCH", fmt.Sprintf("/api/admin/surveys/%d", survey.ID), map[string]any{"title": "whole team"}, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &survey)
	assert.Equal(t, "whole team", survey.Title)

	rec = s.do("POST", fmt.Sprintf("/api/admin/questions/%d/answers", question.ID), map[string]any{"text": "wed"}, auth)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do("GET", fmt.Sprintf("/api/admin/questions/%d/answers", question.ID), nil, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	var options []model.AnswerOption
	decode(t, rec, &options)
	assert.Len(t, options, 3)

	rec = s.do("GET", "/api/admin/forms", nil, auth)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do("DELETE", fmt.Sprintf("/api/admin/surveys/%d", survey.ID), nil, auth)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do("GET", fmt.Sprintf("/api/admin/questions/%d", question.ID), nil, auth)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetFormAnswer(t *testing.T) {
	s := newServer(t)
	survey, text, _ := s.seed()

	rec := s.do("POST", fmt.Sprintf("/api/surveys/%d/start", survey.ID), nil, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var form model.Form
	decode(t, rec, &form)

	rec = s.do("POST", "/api/forms/"+form.Token+"/answers", map[string]any{"question": text.ID, "text": "tasty"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created map[string]any
	decode(t, rec, &created)

	rec = s.do("GET", fmt.Sprintf("/api/forms/answers/%d", int64(created["pk"].(float64))), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var answer map[string]any
	decode(t, rec, &answer)
	assert.Equal(t, "tasty", answer["text"])
	assert.Equal(t, form.Token, answer["form"])

	rec = s.do("GET", "/api/forms/answers/4242", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do("GET", "/api/admin/forms/answers", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do("GET", "/api/admin/forms/answers", nil, login(t, s))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var all []map[string]any
	decode(t, rec, &all)
	require.Len(t, all, 1)
	assert.Equal(t, created["pk"], all[0]["pk"])
}

func TestBatchFailures(t *testing.T) {
	merr := multierror.Append(nil,
		&forms.BatchError{Index: 1, Err: errs.Validation("form_answer.text.required", "`text` is required")},
		&forms.BatchError{Index: 3, Err: errors.Wrap(errors.New("disk I/O error"), "db.insert_form_answer")},
	)

	status, failures := batchFailures(merr)
	assert.Equal(t, http.StatusBadRequest, status)
	require.Len(t, failures, 2)
	assert.Equal(t, 1, failures[0].Index)
	assert.Equal(t, "`text` is required", failures[0].Detail)
	assert.Equal(t, 3, failures[1].Index)
	assert.Equal(t, "internal", failures[1].Kind)
	assert.Equal(t, http.StatusText(http.StatusInternalServerError), failures[1].Detail)

	status, failures = batchFailures(multierror.Append(nil,
		&forms.BatchError{Index: 0, Err: errors.New("database is locked")},
	))
	assert.Equal(t, http.StatusInternalServerError, status)
	require.Len(t, failures, 1)
	assert.NotContains(t, failures[0].Detail, "locked")
}
