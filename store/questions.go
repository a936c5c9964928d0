package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/mbolis/quick-survey-forms/errs"
	"github.com/mbolis/quick-survey-forms/model"
)

func questionNotFound(id int64) error {
	return errs.NotFound("question.not_found", "question %d not found", id)
}

func optionNotFound(id int64) error {
	return errs.NotFound("answer_option.not_found", "answer option %d not found", id)
}

// InsertQuestion inserts q along with its answer options.
func InsertQuestion(ctx context.Context, tx Querier, q *model.Question) error {
	err := tx.QueryRowContext(ctx, `
		INSERT INTO question (survey_id, type, text) VALUES (?, ?, ?)
		RETURNING id`,
		q.SurveyID,
		q.Type,
		q.Text,
	).Scan(&q.ID)
	if isForeignKeyViolation(err) {
		return surveyNotFound(q.SurveyID)
	}
	if err != nil {
		return errors.Wrap(err, "db.insert_question")
	}

	for i := range q.Answers {
		q.Answers[i].QuestionID = q.ID
		err = InsertOption(ctx, tx, &q.Answers[i])
		if err != nil {
			return err
		}
	}
	return nil
}

const selectQuestions = `
	SELECT
		q.id, q.survey_id, q.type, q.text,
		o.id, o.text
	FROM question q
	LEFT OUTER JOIN answer_option o ON (q.id = o.question_id)`

func GetQuestion(ctx context.Context, tx Querier, id int64) (model.Question, error) {
	rows, err := tx.QueryContext(ctx, selectQuestions+`
		WHERE q.id = ?
		ORDER BY o.id`,
		id,
	)
	if err != nil {
		return model.Question{}, errors.Wrap(err, "db.get_question")
	}

	questions, err := scanQuestions(rows)
	if err != nil {
		return model.Question{}, err
	}
	if len(questions) == 0 {
		return model.Question{}, questionNotFound(id)
	}
	return questions[0], nil
}

func ListQuestions(ctx context.Context, tx Querier, surveyID int64) ([]model.Question, error) {
	rows, err := tx.QueryContext(ctx, selectQuestions+`
		WHERE q.survey_id = ?
		ORDER BY q.id, o.id`,
		surveyID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "db.get_questions")
	}
	return scanQuestions(rows)
}

func ListAllQuestions(ctx context.Context, tx Querier) ([]model.Question, error) {
	rows, err := tx.QueryContext(ctx, selectQuestions+`
		ORDER BY q.id, o.id`)
	if err != nil {
		return nil, errors.Wrap(err, "db.get_questions")
	}
	return scanQuestions(rows)
}

// scanQuestions folds the question/option join rows, ordered by question,
// into questions.
func scanQuestions(rows *sql.Rows) ([]model.Question, error) {
	defer rows.Close()

	questions := []model.Question{}
	for rows.Next() {
		q := model.Question{}
		var optionID sql.NullInt64
		var optionText sql.NullString
		err := rows.Scan(&q.ID, &q.SurveyID, &q.Type, &q.Text, &optionID, &optionText)
		if err != nil {
			return nil, errors.Wrap(err, "db.get_questions.scan")
		}

		last := len(questions) - 1
		if last < 0 || questions[last].ID != q.ID {
			q.Answers = []model.AnswerOption{}
			questions = append(questions, q)
			last++
		}
		if optionID.Valid {
			questions[last].Answers = append(questions[last].Answers, model.AnswerOption{
				ID:         optionID.Int64,
				QuestionID: q.ID,
				Text:       optionText.String,
			})
		}
	}
	return questions, errors.Wrap(rows.Err(), "db.get_questions.next")
}

// UpdateQuestion writes text and type of q: the survey reference is left
// untouched.
func UpdateQuestion(ctx context.Context, tx Querier, q *model.Question) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE question
		SET
			type = ?,
			text = ?
		WHERE id = ?`,
		q.Type,
		q.Text,
		q.ID,
	)
	if err != nil {
		return errors.Wrap(err, "db.update_question")
	}
	return checkAffected(res, "db.update_question", questionNotFound(q.ID))
}

func DeleteQuestion(ctx context.Context, tx Querier, id int64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM question WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "db.delete_question")
	}
	return checkAffected(res, "db.delete_question", questionNotFound(id))
}

func InsertOption(ctx context.Context, tx Querier, o *model.AnswerOption) error {
	err := tx.QueryRowContext(ctx, `
		INSERT INTO answer_option (question_id, text) VALUES (?, ?)
		RETURNING id`,
		o.QuestionID,
		o.Text,
	).Scan(&o.ID)
	if isForeignKeyViolation(err) {
		return questionNotFound(o.QuestionID)
	}
	return errors.Wrap(err, "db.insert_answer_option")
}

func GetOption(ctx context.Context, tx Querier, id int64) (o model.AnswerOption, err error) {
	err = tx.QueryRowContext(ctx, `
		SELECT id, question_id, text
		FROM answer_option
		WHERE id = ?`,
		id,
	).Scan(&o.ID, &o.QuestionID, &o.Text)
	if errors.Is(err, sql.ErrNoRows) {
		return o, optionNotFound(id)
	}
	return o, errors.Wrap(err, "db.get_answer_option")
}

func ListOptions(ctx context.Context, tx Querier, questionID int64) ([]model.AnswerOption, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, question_id, text
		FROM answer_option
		WHERE question_id = ?
		ORDER BY id`,
		questionID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "db.get_answer_options")
	}
	defer rows.Close()

	options := []model.AnswerOption{}
	for rows.Next() {
		o := model.AnswerOption{}
		if err = rows.Scan(&o.ID, &o.QuestionID, &o.Text); err != nil {
			return nil, errors.Wrap(err, "db.get_answer_options.scan")
		}
		options = append(options, o)
	}
	return options, errors.Wrap(rows.Err(), "db.get_answer_options.next")
}

func UpdateOption(ctx context.Context, tx Querier, o *model.AnswerOption) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE answer_option SET text = ? WHERE id = ?`,
		o.Text,
		o.ID,
	)
	if err != nil {
		return errors.Wrap(err, "db.update_answer_option")
	}
	return checkAffected(res, "db.update_answer_option", optionNotFound(o.ID))
}

func DeleteOption(ctx context.Context, tx Querier, id int64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM answer_option WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "db.delete_answer_option")
	}
	return checkAffected(res, "db.delete_answer_option", optionNotFound(id))
}
