package surveys

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbolis/quick-survey-forms/config"
	"github.com/mbolis/quick-survey-forms/database"
	"github.com/mbolis/quick-survey-forms/errs"
	"github.com/mbolis/quick-survey-forms/model"
	"github.com/mbolis/quick-survey-forms/store"
)

var now = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T) *Service {
	t.Helper()
	db, err := database.Open(config.Config{DBUrl: filepath.Join(t.TempDir(), "test.sqlite")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := NewService(db)
	svc.Now = func() time.Time { return now }
	return svc
}

func createSurvey(t *testing.T, svc *Service, title string, start, end time.Time) model.Survey {
	t.Helper()
	s, err := svc.Create(context.Background(), model.Survey{Title: title, StartDate: start, EndDate: end})
	require.NoError(t, err)
	return s
}

func TestCreateSurvey(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	s := createSurvey(t, svc, "feedback", now, now.Add(time.Hour))
	assert.NotZero(t, s.ID)

	stored, err := svc.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "feedback", stored.Title)
	assert.True(t, now.Equal(stored.StartDate))

	_, err = svc.Create(ctx, model.Survey{StartDate: now, EndDate: now})
	assert.EqualError(t, err, "`title` is required")
	_, err = svc.Create(ctx, model.Survey{Title: "t", StartDate: now, EndDate: now.Add(-time.Second)})
	assert.True(t, errs.Is(err, errs.KindValidation))
}

func TestListActive(t *testing.T) {
	svc := newService(t)

	running := createSurvey(t, svc, "running", now.Add(-time.Hour), now.Add(time.Hour))
	createSurvey(t, svc, "future", now.Add(time.Hour), now.Add(2*time.Hour))
	createSurvey(t, svc, "starting", now, now.Add(time.Hour))
	createSurvey(t, svc, "past", now.Add(-2*time.Hour), now.Add(-time.Hour))
	also := createSurvey(t, svc, "also running", now.Add(-time.Minute), now.Add(time.Minute))

	active, err := svc.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, running.ID, active[0].ID)
	assert.Equal(t, also.ID, active[1].ID)
}

func TestUpdateSurvey(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	s := createSurvey(t, svc, "feedback", now, now.Add(time.Hour))

	title := "renamed"
	end := now.Add(48 * time.Hour)
	updated, err := svc.Update(ctx, s.ID, SurveyPatch{Title: &title, EndDate: &end})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Title)
	assert.True(t, end.Equal(updated.EndDate))

	start := now.Add(time.Minute)
	_, err = svc.Update(ctx, s.ID, SurveyPatch{StartDate: &start})
	assert.EqualError(t, err, "changing `start_date` is not allowed")

	early := now.Add(-time.Hour)
	_, err = svc.Update(ctx, s.ID, SurveyPatch{EndDate: &early})
	assert.True(t, errs.Is(err, errs.KindValidation))

	_, err = svc.Update(ctx, 999, SurveyPatch{Title: &title})
	assert.True(t, errs.Is(err, errs.KindNotFound))
}

func TestQuestions(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	s := createSurvey(t, svc, "feedback", now, now.Add(time.Hour))

	_, err := svc.CreateQuestion(ctx, s.ID, model.Question{Type: model.Choice, Text: "pick"})
	assert.EqualError(t, err, "`answers` is required for Choice questions")
	_, err = svc.CreateQuestion(ctx, s.ID, model.Question{Type: 5, Text: "odd"})
	assert.True(t, errs.Is(err, errs.KindValidation))
	_, err = svc.CreateQuestion(ctx, 999, model.Question{Type: model.Text, Text: "orphan"})
	assert.True(t, errs.Is(err, errs.KindNotFound))

	text, err := svc.CreateQuestion(ctx, s.ID, model.Question{Type: model.Text, Text: "why?"})
	require.NoError(t, err)
	assert.Empty(t, text.Answers)

	choice, err := svc.CreateQuestion(ctx, s.ID, model.Question{Type: model.Choice, Text: "pick", Answers: []model.AnswerOption{{Text: "A"}, {Text: "B"}}})
	require.NoError(t, err)
	require.Len(t, choice.Answers, 2)
	assert.Equal(t, choice.ID, choice.Answers[0].QuestionID)

	questions, err := svc.ListQuestions(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.Question{text, choice}, questions)

	other := createSurvey(t, svc, "other", now, now.Add(time.Hour))
	_, err = svc.UpdateQuestion(ctx, text.ID, QuestionPatch{Survey: &other.ID})
	assert.EqualError(t, err, "changing `survey` is not allowed")

	checkbox := model.Checkbox
	_, err = svc.UpdateQuestion(ctx, text.ID, QuestionPatch{Type: &checkbox})
	assert.True(t, errs.Is(err, errs.KindValidation), "a question without options cannot become a checkbox")

	updated, err := svc.UpdateQuestion(ctx, choice.ID, QuestionPatch{Type: &checkbox})
	require.NoError(t, err)
	assert.Equal(t, model.Checkbox, updated.Type)

	all, err := svc.ListAllQuestions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, svc.DeleteQuestion(ctx, text.ID))
	_, err = svc.GetQuestion(ctx, text.ID)
	assert.True(t, errs.Is(err, errs.KindNotFound))
}

func TestOptions(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	s := createSurvey(t, svc, "feedback", now, now.Add(time.Hour))
	q, err := svc.CreateQuestion(ctx, s.ID, model.Question{Type: model.Choice, Text: "pick", Answers: []model.AnswerOption{{Text: "A"}}})
	require.NoError(t, err)

	b, err := svc.CreateOption(ctx, q.ID, "B")
	require.NoError(t, err)
	_, err = svc.CreateOption(ctx, 999, "C")
	assert.True(t, errs.Is(err, errs.KindNotFound))

	renamed, err := svc.UpdateOption(ctx, b.ID, "Bee")
	require.NoError(t, err)
	assert.Equal(t, "Bee", renamed.Text)

	options, err := svc.ListOptions(ctx, q.ID)
	require.NoError(t, err)
	require.Len(t, options, 2)
	assert.Equal(t, "Bee", options[1].Text)

	require.NoError(t, svc.DeleteOption(ctx, b.ID))
	err = svc.DeleteOption(ctx, q.Answers[0].ID)
	assert.True(t, errs.Is(err, errs.KindValidation), "the last option of a choice question is kept")

	_, err = svc.GetOption(ctx, b.ID)
	assert.True(t, errs.Is(err, errs.KindNotFound))
}

func TestDeleteSurveyCascades(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	s := createSurvey(t, svc, "feedback", now, now.Add(time.Hour))
	q, err := svc.CreateQuestion(ctx, s.ID, model.Question{Type: model.Choice, Text: "pick", Answers: []model.AnswerOption{{Text: "A"}}})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, s.ID))

	_, err = svc.GetQuestion(ctx, q.ID)
	assert.True(t, errs.Is(err, errs.KindNotFound))
	_, err = svc.GetOption(ctx, q.Answers[0].ID)
	assert.True(t, errs.Is(err, errs.KindNotFound))
	assert.True(t, errs.Is(svc.Delete(ctx, s.ID), errs.KindNotFound))
}

// answer stores a form for the survey holding one answer with the given
// payload, optionally submitted.
func answer(t *testing.T, svc *Service, token string, q model.Question, payload model.AnswerPayload, submitted bool) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.InsertForm(ctx, svc.db, model.Form{Token: token, SurveyID: q.SurveyID}, now))
	a := model.FormAnswer{FormToken: token, QuestionID: q.ID, AnswerPayload: payload}
	require.NoError(t, store.InsertAnswer(ctx, svc.db, &a))
	if submitted {
		ok, err := store.SubmitForm(ctx, svc.db, token, now)
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func TestUpdateQuestionTypeOnceAnswered(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	s := createSurvey(t, svc, "feedback", now, now.Add(time.Hour))
	q, err := svc.CreateQuestion(ctx, s.ID, model.Question{Type: model.Choice, Text: "pick",
		Answers: []model.AnswerOption{{Text: "A"}, {Text: "B"}}})
	require.NoError(t, err)

	checkbox := model.Checkbox
	updated, err := svc.UpdateQuestion(ctx, q.ID, QuestionPatch{Type: &checkbox})
	require.NoError(t, err, "no answers yet")
	assert.Equal(t, model.Checkbox, updated.Type)

	choice := model.Choice
	_, err = svc.UpdateQuestion(ctx, q.ID, QuestionPatch{Type: &choice})
	require.NoError(t, err)

	answer(t, svc, "f1", q, model.AnswerPayload{Choice: &q.Answers[0].ID}, false)

	_, err = svc.UpdateQuestion(ctx, q.ID, QuestionPatch{Type: &checkbox})
	assert.True(t, errs.Is(err, errs.KindConflict))
	assert.EqualError(t, err, "changing `type` is not allowed: question already answered")

	text := "pick one"
	updated, err = svc.UpdateQuestion(ctx, q.ID, QuestionPatch{Type: &choice, Text: &text})
	require.NoError(t, err, "same type with a new text is fine")
	assert.Equal(t, "pick one", updated.Text)

	stored, err := svc.GetQuestion(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Choice, stored.Type)
}

func TestDeleteSelectedOption(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	s := createSurvey(t, svc, "feedback", now, now.Add(time.Hour))
	choice, err := svc.CreateQuestion(ctx, s.ID, model.Question{Type: model.Choice, Text: "pick",
		Answers: []model.AnswerOption{{Text: "A"}, {Text: "B"}}})
	require.NoError(t, err)
	checkbox, err := svc.CreateQuestion(ctx, s.ID, model.Question{Type: model.Checkbox, Text: "pick many",
		Answers: []model.AnswerOption{{Text: "X"}, {Text: "Y"}, {Text: "Z"}}})
	require.NoError(t, err)

	answer(t, svc, "submitted", checkbox, model.AnswerPayload{Choices: []int64{checkbox.Answers[0].ID}}, true)
	answer(t, svc, "open", choice, model.AnswerPayload{Choice: &choice.Answers[0].ID}, false)

	err = svc.DeleteOption(ctx, checkbox.Answers[0].ID)
	assert.True(t, errs.Is(err, errs.KindConflict))
	err = svc.DeleteOption(ctx, choice.Answers[0].ID)
	assert.True(t, errs.Is(err, errs.KindConflict))

	require.NoError(t, svc.DeleteOption(ctx, checkbox.Answers[1].ID))
	require.NoError(t, svc.DeleteOption(ctx, choice.Answers[1].ID))

	answers, err := store.ListAnswers(ctx, svc.db, "submitted")
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Equal(t, []int64{checkbox.Answers[0].ID}, answers[0].Choices)
}
