package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/duffymelancholic/diabetes-management-app/internal/entity"
)

var mealColumns = []string{"id", "name", "meal_type", "description", "created_at"}

type MealRepository struct {
	db *sqlx.DB
	tm *TxManager
}

func NewMealRepository(db *sqlx.DB) *MealRepository {
	return &MealRepository{db: db, tm: NewTxManager(db)}
}

// List returns every meal, newest first.
func (r *MealRepository) List(ctx context.Context) ([]entity.Meal, error) {
	meals := []entity.Meal{}
	err := selectAll(ctx, r.db, &meals, builder.Select(mealColumns...).
		From("meals").
		OrderBy("created_at DESC", "id DESC"))
	if err != nil {
		return nil, err
	}
	return meals, nil
}

func (r *MealRepository) Create(ctx context.Context, meal *entity.Meal) error {
	return r.tm.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		createdAt := time.Now().UTC()
		res, err := exec(ctx, tx, builder.Insert("meals").
			Columns("name", "meal_type", "description", "created_at").
			Values(meal.Name, meal.MealType, meal.Description, createdAt))
		if err != nil {
			return err
		}

		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		meal.ID = id
		meal.CreatedAt = createdAt
		return nil
	})
}
