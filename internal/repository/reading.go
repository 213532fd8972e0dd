package repository

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/duffymelancholic/diabetes-management-app/internal/entity"
)

var readingColumns = []string{"id", "value", "date", "time", "notes", "context", "created_at", "user_id"}

type ReadingRepository struct {
	db *sqlx.DB
	tm *TxManager
}

func NewReadingRepository(db *sqlx.DB) *ReadingRepository {
	return &ReadingRepository{db: db, tm: NewTxManager(db)}
}

// ListByUser returns the user's readings in chronological order.
func (r *ReadingRepository) ListByUser(ctx context.Context, userID int64) ([]entity.Reading, error) {
	readings := []entity.Reading{}
	err := selectAll(ctx, r.db, &readings, builder.Select(readingColumns...).
		From("readings").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("date", "time", "id"))
	if err != nil {
		return nil, err
	}
	return readings, nil
}

func (r *ReadingRepository) Create(ctx context.Context, reading *entity.Reading) error {
	return r.tm.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		createdAt := time.Now().UTC()
		res, err := exec(ctx, tx, builder.Insert("readings").
			Columns("user_id", "value", "date", "time", "notes", "context", "created_at").
			Values(reading.UserID, reading.Value, reading.Date, reading.Time, reading.Notes, reading.Context, createdAt))
		if err != nil {
			return err
		}

		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		reading.ID = id
		reading.CreatedAt = createdAt
		return nil
	})
}

// FindByIDForUser only matches readings owned by userID; anything else is ErrNotFound.
func (r *ReadingRepository) FindByIDForUser(ctx context.Context, id, userID int64) (*entity.Reading, error) {
	var reading entity.Reading
	err := getOne(ctx, r.db, &reading, builder.Select(readingColumns...).
		From("readings").
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"user_id": userID}))
	if err != nil {
		return nil, err
	}
	return &reading, nil
}

func (r *ReadingRepository) Update(ctx context.Context, reading *entity.Reading) error {
	return r.tm.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		_, err := exec(ctx, tx, builder.Update("readings").
			Set("value", reading.Value).
			Set("date", reading.Date).
			Set("time", reading.Time).
			Set("notes", reading.Notes).
			Set("context", reading.Context).
			Where(sq.Eq{"id": reading.ID}).
			Where(sq.Eq{"user_id": reading.UserID}))
		return err
	})
}

func (r *ReadingRepository) Delete(ctx context.Context, id, userID int64) error {
	return r.tm.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		// Links go first; the ownership check below rolls them back for foreign readings.
		if _, err := exec(ctx, tx, builder.Delete("reading_meals").Where(sq.Eq{"reading_id": id})); err != nil {
			return err
		}

		res, err := exec(ctx, tx, builder.Delete("readings").
			Where(sq.Eq{"id": id}).
			Where(sq.Eq{"user_id": userID}))
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// LinkMeal attaches a meal to a reading. A missing meal is ErrNotFound and an
// existing link for the same pair is ErrDuplicate.
func (r *ReadingRepository) LinkMeal(ctx context.Context, link *entity.ReadingMeal) error {
	return r.tm.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		found, err := exists(ctx, tx, "meals", sq.Eq{"id": link.MealID})
		if err != nil {
			return err
		}
		if !found {
			return ErrNotFound
		}

		createdAt := time.Now().UTC()
		if _, err := exec(ctx, tx, builder.Insert("reading_meals").
			Columns("reading_id", "meal_id", "carbs_amount", "created_at").
			Values(link.ReadingID, link.MealID, link.CarbsAmount, createdAt)); err != nil {
			return err
		}
		link.CreatedAt = createdAt
		return nil
	})
}

// UnlinkMeal is a no-op when the pair was never linked.
func (r *ReadingRepository) UnlinkMeal(ctx context.Context, readingID, mealID int64) error {
	return r.tm.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		_, err := exec(ctx, tx, builder.Delete("reading_meals").
			Where(sq.Eq{"reading_id": readingID}).
			Where(sq.Eq{"meal_id": mealID}))
		return err
	})
}
