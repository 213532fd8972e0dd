package service

import (
	"context"

	"github.com/duffymelancholic/diabetes-management-app/internal/entity"
)

// The store interfaces are implemented by the repository package. Lookups
// return repository.ErrNotFound when nothing matches and writes return
// repository.ErrDuplicate on a unique key collision.

type UserStore interface {
	Create(ctx context.Context, user *entity.User) error
	FindByID(ctx context.Context, id int64) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	Update(ctx context.Context, user *entity.User) error
	Delete(ctx context.Context, id int64) error
}

type ReadingStore interface {
	ListByUser(ctx context.Context, userID int64) ([]entity.Reading, error)
	Create(ctx context.Context, reading *entity.Reading) error
	FindByIDForUser(ctx context.Context, id, userID int64) (*entity.Reading, error)
	Update(ctx context.Context, reading *entity.Reading) error
	Delete(ctx context.Context, id, userID int64) error
	LinkMeal(ctx context.Context, link *entity.ReadingMeal) error
	UnlinkMeal(ctx context.Context, readingID, mealID int64) error
}

type MedicationStore interface {
	ListByUser(ctx context.Context, userID int64) ([]entity.Medication, error)
	Create(ctx context.Context, med *entity.Medication) error
	FindByIDForUser(ctx context.Context, id, userID int64) (*entity.Medication, error)
	Update(ctx context.Context, med *entity.Medication) error
}

type MealStore interface {
	List(ctx context.Context) ([]entity.Meal, error)
	Create(ctx context.Context, meal *entity.Meal) error
}

// MealCache holds the global meal list. A miss is (nil, false, nil).
type MealCache interface {
	Get(ctx context.Context) ([]entity.Meal, bool, error)
	Set(ctx context.Context, meals []entity.Meal) error
	Invalidate(ctx context.Context) error
}
