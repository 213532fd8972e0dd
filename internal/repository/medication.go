package repository

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/duffymelancholic/diabetes-management-app/internal/entity"
)

var medicationColumns = []string{"id", "name", "dose", "time", "status", "created_at", "user_id"}

type MedicationRepository struct {
	db *sqlx.DB
	tm *TxManager
}

func NewMedicationRepository(db *sqlx.DB) *MedicationRepository {
	return &MedicationRepository{db: db, tm: NewTxManager(db)}
}

func (r *MedicationRepository) ListByUser(ctx context.Context, userID int64) ([]entity.Medication, error) {
	meds := []entity.Medication{}
	err := selectAll(ctx, r.db, &meds, builder.Select(medicationColumns...).
		From("medications").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("time", "id"))
	if err != nil {
		return nil, err
	}
	return meds, nil
}

func (r *MedicationRepository) Create(ctx context.Context, med *entity.Medication) error {
	return r.tm.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		createdAt := time.Now().UTC()
		res, err := exec(ctx, tx, builder.Insert("medications").
			Columns("user_id", "name", "dose", "time", "status", "created_at").
			Values(med.UserID, med.Name, med.Dose, med.Time, med.Status, createdAt))
		if err != nil {
			return err
		}

		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		med.ID = id
		med.CreatedAt = createdAt
		return nil
	})
}

func (r *MedicationRepository) FindByIDForUser(ctx context.Context, id, userID int64) (*entity.Medication, error) {
	var med entity.Medication
	err := getOne(ctx, r.db, &med, builder.Select(medicationColumns...).
		From("medications").
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"user_id": userID}))
	if err != nil {
		return nil, err
	}
	return &med, nil
}

func (r *MedicationRepository) Update(ctx context.Context, med *entity.Medication) error {
	return r.tm.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		_, err := exec(ctx, tx, builder.Update("medications").
			Set("name", med.Name).
			Set("dose", med.Dose).
			Set("time", med.Time).
			Set("status", med.Status).
			Where(sq.Eq{"id": med.ID}).
			Where(sq.Eq{"user_id": med.UserID}))
		return err
	})
}
