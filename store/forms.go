package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/mbolis/quick-survey-forms/errs"
	"github.com/mbolis/quick-survey-forms/model"
)

func formNotFound(token string) error {
	return errs.NotFound("form.not_found", "form %s not found", token)
}

func respondentNotFound(id int64) error {
	return errs.NotFound("respondent.not_found", "respondent %d not found", id)
}

func InsertForm(ctx context.Context, q Querier, f model.Form, created time.Time) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO form (token, survey_id, respondent_id, submitted, created)
		VALUES (?, ?, ?, ?, ?)`,
		f.Token,
		f.SurveyID,
		nullInt64(f.RespondentID),
		f.Submitted,
		created.UTC(),
	)
	if isForeignKeyViolation(err) {
		return surveyNotFound(f.SurveyID)
	}
	return errors.Wrap(err, "db.insert_form")
}

const selectForms = `
	SELECT token, survey_id, respondent_id, submitted, submitted_date
	FROM form`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanForm(row rowScanner) (f model.Form, err error) {
	var respondentID sql.NullInt64
	var submittedDate sql.NullTime
	err = row.Scan(&f.Token, &f.SurveyID, &respondentID, &f.Submitted, &submittedDate)
	if err != nil {
		return
	}

	f.RespondentID = int64Ptr(respondentID)
	if submittedDate.Valid {
		t := submittedDate.Time
		f.SubmittedDate = &t
	}
	return
}

func GetForm(ctx context.Context, q Querier, token string) (model.Form, error) {
	f, err := scanForm(q.QueryRowContext(ctx, selectForms+`
		WHERE token = ?`,
		token,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return f, formNotFound(token)
	}
	return f, errors.Wrap(err, "db.get_form")
}

func ListForms(ctx context.Context, q Querier) ([]model.Form, error) {
	rows, err := q.QueryContext(ctx, selectForms+`
		ORDER BY created, token`)
	if err != nil {
		return nil, errors.Wrap(err, "db.get_forms")
	}
	defer rows.Close()

	forms := []model.Form{}
	for rows.Next() {
		f, err := scanForm(rows)
		if err != nil {
			return nil, errors.Wrap(err, "db.get_forms.scan")
		}
		forms = append(forms, f)
	}
	return forms, errors.Wrap(rows.Err(), "db.get_forms.next")
}

func SetFormRespondent(ctx context.Context, q Querier, token string, respondentID int64) error {
	res, err := q.ExecContext(ctx, `
		UPDATE form SET respondent_id = ? WHERE token = ?`,
		respondentID,
		token,
	)
	if err != nil {
		return errors.Wrap(err, "db.update_form.respondent")
	}
	return checkAffected(res, "db.update_form.respondent", formNotFound(token))
}

// SubmitForm flips an open form to submitted. It reports false when the form
// was already submitted.
func SubmitForm(ctx context.Context, q Querier, token string, at time.Time) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE form
		SET
			submitted = 1,
			submitted_date = ?
		WHERE token = ?
			AND submitted = 0`,
		at.UTC(),
		token,
	)
	if err != nil {
		return false, errors.Wrap(err, "db.submit_form")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "db.submit_form.verify")
	}
	return n == 1, nil
}

// CountUnanswered counts the questions of the form's survey that have no
// answer in the form.
func CountUnanswered(ctx context.Context, q Querier, f model.Form) (n int, err error) {
	err = q.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM question q
		WHERE q.survey_id = ?
			AND NOT EXISTS (
				SELECT 1 FROM form_answer a
				WHERE a.form_token = ?
					AND a.question_id = q.id
			)`,
		f.SurveyID,
		f.Token,
	).Scan(&n)
	return n, errors.Wrap(err, "db.count_unanswered")
}

func InsertRespondent(ctx context.Context, q Querier, r *model.Respondent) error {
	err := q.QueryRowContext(ctx, `
		INSERT INTO respondent (first_name, last_name, age) VALUES (?, ?, ?)
		RETURNING id`,
		r.FirstName,
		r.LastName,
		r.Age,
	).Scan(&r.ID)
	return errors.Wrap(err, "db.insert_respondent")
}

func UpdateRespondent(ctx context.Context, q Querier, r *model.Respondent) error {
	res, err := q.ExecContext(ctx, `
		UPDATE respondent
		SET
			first_name = ?,
			last_name = ?,
			age = ?
		WHERE id = ?`,
		r.FirstName,
		r.LastName,
		r.Age,
		r.ID,
	)
	if err != nil {
		return errors.Wrap(err, "db.update_respondent")
	}
	return checkAffected(res, "db.update_respondent", respondentNotFound(r.ID))
}

func GetRespondent(ctx context.Context, q Querier, id int64) (r model.Respondent, err error) {
	err = q.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, age
		FROM respondent
		WHERE id = ?`,
		id,
	).Scan(&r.ID, &r.FirstName, &r.LastName, &r.Age)
	if errors.Is(err, sql.ErrNoRows) {
		return r, respondentNotFound(id)
	}
	return r, errors.Wrap(err, "db.get_respondent")
}
