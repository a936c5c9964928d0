package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/mbolis/quick-survey-forms/errs"
	"github.com/mbolis/quick-survey-forms/model"
)

func answerNotFound(id int64) error {
	return errs.NotFound("form_answer.not_found", "form answer %d not found", id)
}

// InsertAnswer stores a, failing with a Conflict when the form already holds
// an answer to the same question.
func InsertAnswer(ctx context.Context, q Querier, a *model.FormAnswer) error {
	err := q.QueryRowContext(ctx, `
		INSERT INTO form_answer (form_token, question_id, text, choice_id)
		VALUES (?, ?, ?, ?)
		RETURNING id`,
		a.FormToken,
		a.QuestionID,
		a.Text,
		nullInt64(a.Choice),
	).Scan(&a.ID)
	if isUniqueViolation(err) {
		return errs.Conflict("form_answer.duplicate",
			"question %d already answered in this form", a.QuestionID)
	}
	if err != nil {
		return errors.Wrap(err, "db.insert_form_answer")
	}

	return insertChoices(ctx, q, a.ID, a.Choices)
}

func insertChoices(ctx context.Context, q Querier, answerID int64, choices []int64) error {
	for _, optionID := range choices {
		_, err := q.ExecContext(ctx, `
			INSERT INTO form_answer_choice (form_answer_id, option_id) VALUES (?, ?)`,
			answerID,
			optionID,
		)
		if err != nil {
			return errors.Wrap(err, "db.insert_form_answer.choices")
		}
	}
	return nil
}

// UpdateAnswer replaces the payload of the stored answer a.ID.
func UpdateAnswer(ctx context.Context, q Querier, a *model.FormAnswer) error {
	res, err := q.ExecContext(ctx, `
		UPDATE form_answer
		SET
			text = ?,
			choice_id = ?
		WHERE id = ?`,
		a.Text,
		nullInt64(a.Choice),
		a.ID,
	)
	if err != nil {
		return errors.Wrap(err, "db.update_form_answer")
	}
	if err = checkAffected(res, "db.update_form_answer", answerNotFound(a.ID)); err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, `
		DELETE FROM form_answer_choice WHERE form_answer_id = ?`,
		a.ID,
	)
	if err != nil {
		return errors.Wrap(err, "db.update_form_answer.delete_choices")
	}
	return insertChoices(ctx, q, a.ID, a.Choices)
}

func DeleteAnswer(ctx context.Context, q Querier, id int64) error {
	res, err := q.ExecContext(ctx, `DELETE FROM form_answer WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "db.delete_form_answer")
	}
	return checkAffected(res, "db.delete_form_answer", answerNotFound(id))
}

const selectAnswers = `
	SELECT
		a.id, a.form_token, a.question_id, a.text, a.choice_id,
		c.option_id
	FROM form_answer a
	LEFT OUTER JOIN form_answer_choice c ON (a.id = c.form_answer_id)`

func GetAnswer(ctx context.Context, q Querier, id int64) (model.FormAnswer, error) {
	rows, err := q.QueryContext(ctx, selectAnswers+`
		WHERE a.id = ?
		ORDER BY c.option_id`,
		id,
	)
	if err != nil {
		return model.FormAnswer{}, errors.Wrap(err, "db.get_form_answer")
	}

	answers, err := scanAnswers(rows)
	if err != nil {
		return model.FormAnswer{}, err
	}
	if len(answers) == 0 {
		return model.FormAnswer{}, answerNotFound(id)
	}
	return answers[0], nil
}

// ListAnswers returns the answers of the form, ordered by question.
func ListAnswers(ctx context.Context, q Querier, token string) ([]model.FormAnswer, error) {
	rows, err := q.QueryContext(ctx, selectAnswers+`
		WHERE a.form_token = ?
		ORDER BY a.question_id, c.option_id`,
		token,
	)
	if err != nil {
		return nil, errors.Wrap(err, "db.get_form_answers")
	}
	return scanAnswers(rows)
}

func scanAnswers(rows *sql.Rows) ([]model.FormAnswer, error) {
	defer rows.Close()

	answers := []model.FormAnswer{}
	for rows.Next() {
		a := model.FormAnswer{}
		var choiceID, optionID sql.NullInt64
		err := rows.Scan(&a.ID, &a.FormToken, &a.QuestionID, &a.Text, &choiceID, &optionID)
		if err != nil {
			return nil, errors.Wrap(err, "db.get_form_answers.scan")
		}

		last := len(answers) - 1
		if last < 0 || answers[last].ID != a.ID {
			a.Choice = int64Ptr(choiceID)
			answers = append(answers, a)
			last++
		}
		if optionID.Valid {
			answers[last].Choices = append(answers[last].Choices, optionID.Int64)
		}
	}
	return answers, errors.Wrap(rows.Err(), "db.get_form_answers.next")
}

// ListAllAnswers returns the answers of every form, ordered by id.
func ListAllAnswers(ctx context.Context, q Querier) ([]model.FormAnswer, error) {
	rows, err := q.QueryContext(ctx, selectAnswers+`
		ORDER BY a.id, c.option_id`)
	if err != nil {
		return nil, errors.Wrap(err, "db.list_form_answers")
	}
	return scanAnswers(rows)
}

// CountQuestionAnswers counts the form answers given to the question.
func CountQuestionAnswers(ctx context.Context, q Querier, questionID int64) (n int, err error) {
	err = q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM form_answer WHERE question_id = ?`,
		questionID,
	).Scan(&n)
	return n, errors.Wrap(err, "db.count_question_answers")
}

// CountOptionAnswers counts the form answers selecting the option, either as
// their choice or among their choices.
func CountOptionAnswers(ctx context.Context, q Querier, optionID int64) (n int, err error) {
	err = q.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM form_answer WHERE choice_id = ?) +
			(SELECT COUNT(*) FROM form_answer_choice WHERE option_id = ?)`,
		optionID,
		optionID,
	).Scan(&n)
	return n, errors.Wrap(err, "db.count_option_answers")
}
