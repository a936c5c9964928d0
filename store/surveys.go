package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/mbolis/quick-survey-forms/errs"
	"github.com/mbolis/quick-survey-forms/model"
)

func surveyNotFound(id int64) error {
	return errs.NotFound("survey.not_found", "survey %d not found", id)
}

func InsertSurvey(ctx context.Context, q Querier, s *model.Survey) error {
	s.StartDate = s.StartDate.UTC()
	s.EndDate = s.EndDate.UTC()

	err := q.QueryRowContext(ctx, `
		INSERT INTO survey (title, start_date, end_date) VALUES (?, ?, ?)
		RETURNING id`,
		s.Title,
		s.StartDate,
		s.EndDate,
	).Scan(&s.ID)
	return errors.Wrap(err, "db.insert_survey")
}

func GetSurvey(ctx context.Context, q Querier, id int64) (s model.Survey, err error) {
	err = q.QueryRowContext(ctx, `
		SELECT id, title, start_date, end_date
		FROM survey
		WHERE id = ?`,
		id,
	).Scan(&s.ID, &s.Title, &s.StartDate, &s.EndDate)
	if errors.Is(err, sql.ErrNoRows) {
		return s, surveyNotFound(id)
	}
	return s, errors.Wrap(err, "db.get_survey")
}

func ListSurveys(ctx context.Context, q Querier) ([]model.Survey, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, title, start_date, end_date
		FROM survey
		ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "db.get_surveys")
	}
	return scanSurveys(rows)
}

// ListActiveSurveys returns the surveys whose period strictly contains now.
func ListActiveSurveys(ctx context.Context, q Querier, now time.Time) ([]model.Survey, error) {
	now = now.UTC()
	rows, err := q.QueryContext(ctx, `
		SELECT id, title, start_date, end_date
		FROM survey
		WHERE start_date < ?
			AND end_date > ?
		ORDER BY id`,
		now,
		now,
	)
	if err != nil {
		return nil, errors.Wrap(err, "db.get_active_surveys")
	}
	return scanSurveys(rows)
}

func scanSurveys(rows *sql.Rows) ([]model.Survey, error) {
	defer rows.Close()

	surveys := []model.Survey{}
	for rows.Next() {
		s := model.Survey{}
		err := rows.Scan(&s.ID, &s.Title, &s.StartDate, &s.EndDate)
		if err != nil {
			return nil, errors.Wrap(err, "db.get_surveys.scan")
		}
		surveys = append(surveys, s)
	}
	return surveys, errors.Wrap(rows.Err(), "db.get_surveys.next")
}

// UpdateSurvey writes the mutable fields of s: start_date is left untouched.
func UpdateSurvey(ctx context.Context, q Querier, s *model.Survey) error {
	s.EndDate = s.EndDate.UTC()

	res, err := q.ExecContext(ctx, `
		UPDATE survey
		SET
			title = ?,
			end_date = ?
		WHERE id = ?`,
		s.Title,
		s.EndDate,
		s.ID,
	)
	if err != nil {
		return errors.Wrap(err, "db.update_survey")
	}
	return checkAffected(res, "db.update_survey", surveyNotFound(s.ID))
}

func DeleteSurvey(ctx context.Context, q Querier, id int64) error {
	res, err := q.ExecContext(ctx, `DELETE FROM survey WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "db.delete_survey")
	}
	return checkAffected(res, "db.delete_survey", surveyNotFound(id))
}
