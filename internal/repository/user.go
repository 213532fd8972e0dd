package repository

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/duffymelancholic/diabetes-management-app/internal/entity"
)

var userColumns = []string{"id", "name", "email", "password_hash", "diabetes_type", "height_cm", "weight_kg", "created_at"}

type userRow struct {
	ID           int64     `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	DiabetesType *string   `db:"diabetes_type"`
	HeightCm     *float64  `db:"height_cm"`
	WeightKg     *float64  `db:"weight_kg"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r userRow) toEntity() *entity.User {
	u := &entity.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		DiabetesType: r.DiabetesType,
		HeightCm:     r.HeightCm,
		WeightKg:     r.WeightKg,
		CreatedAt:    r.CreatedAt,
	}
	u.SetPasswordDigest(r.PasswordHash)
	return u
}

type UserRepository struct {
	db *sqlx.DB
	tm *TxManager
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db, tm: NewTxManager(db)}
}

// Create inserts the user after checking the email is free, so a taken email
// surfaces as ErrDuplicate rather than a driver error.
func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	return r.tm.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		taken, err := exists(ctx, tx, "users", sq.Eq{"email": user.Email})
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicate
		}

		createdAt := time.Now().UTC()
		res, err := exec(ctx, tx, builder.Insert("users").
			Columns("name", "email", "password_hash", "diabetes_type", "height_cm", "weight_kg", "created_at").
			Values(user.Name, user.Email, user.PasswordDigest(), user.DiabetesType, user.HeightCm, user.WeightKg, createdAt))
		if err != nil {
			return err
		}

		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		user.ID = id
		user.CreatedAt = createdAt
		return nil
	})
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*entity.User, error) {
	return r.findOne(ctx, sq.Eq{"id": id})
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.findOne(ctx, sq.Eq{"email": email})
}

func (r *UserRepository) findOne(ctx context.Context, where sq.Eq) (*entity.User, error) {
	var row userRow
	if err := getOne(ctx, r.db, &row, builder.Select(userColumns...).From("users").Where(where)); err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

// Update writes the mutable profile fields. Email, digest and created_at are left alone.
func (r *UserRepository) Update(ctx context.Context, user *entity.User) error {
	return r.tm.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		_, err := exec(ctx, tx, builder.Update("users").
			Set("name", user.Name).
			Set("diabetes_type", user.DiabetesType).
			Set("height_cm", user.HeightCm).
			Set("weight_kg", user.WeightKg).
			Where(sq.Eq{"id": user.ID}))
		return err
	})
}

// Delete removes the user together with every reading, meal link and medication it owns.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	return r.tm.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		owned := builder.Select("id").From("readings").Where(sq.Eq{"user_id": id})
		ownedSQL, ownedArgs, err := owned.ToSql()
		if err != nil {
			return err
		}

		if _, err := exec(ctx, tx, builder.Delete("reading_meals").
			Where("reading_id IN ("+ownedSQL+")", ownedArgs...)); err != nil {
			return err
		}
		if _, err := exec(ctx, tx, builder.Delete("readings").Where(sq.Eq{"user_id": id})); err != nil {
			return err
		}
		if _, err := exec(ctx, tx, builder.Delete("medications").Where(sq.Eq{"user_id": id})); err != nil {
			return err
		}

		res, err := exec(ctx, tx, builder.Delete("users").Where(sq.Eq{"id": id}))
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}
