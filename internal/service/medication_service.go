package service

import (
	"context"
	"errors"
	"strings"

	"github.com/duffymelancholic/diabetes-management-app/internal/entity"
	"github.com/duffymelancholic/diabetes-management-app/internal/events"
	"github.com/duffymelancholic/diabetes-management-app/internal/repository"
)

const (
	msgMedicationNotFound = "Medication not found"
	msgMedicationRequired = "name, dose, and time (HH:MM) are required"
	msgMedicationStatus   = "status must be 'pending', 'taken', or 'missed'"
)

type MedicationService struct {
	meds      MedicationStore
	publisher events.Publisher
}

func NewMedicationService(meds MedicationStore, publisher events.Publisher) *MedicationService {
	return &MedicationService{meds: meds, publisher: publisher}
}

// List returns the user's medications ordered by time of day.
func (s *MedicationService) List(ctx context.Context, userID int64) ([]entity.Medication, error) {
	meds, err := s.meds.ListByUser(ctx, userID)
	if err != nil {
		logger.Error().Err(err).Msgf("Error listing medications for user %d", userID)
		return nil, storage(err)
	}
	return meds, nil
}

func (s *MedicationService) Create(ctx context.Context, userID int64, in MedicationInput) (*entity.Medication, error) {
	name := strings.TrimSpace(in.Name.Value)
	dose := strings.TrimSpace(in.Dose.Value)
	clock := strings.TrimSpace(in.Time.Value)
	if name == "" || dose == "" || clock == "" {
		return nil, invalid(msgMedicationRequired)
	}

	t, err := entity.ParseClockTime(clock)
	if err != nil {
		return nil, invalid(msgTimeFormat)
	}

	status := entity.MedicationPending
	if in.Status.Set() && in.Status.Value != "" {
		if !entity.ValidMedicationStatus(in.Status.Value) {
			return nil, invalid(msgMedicationStatus)
		}
		status = in.Status.Value
	}

	med := &entity.Medication{UserID: userID, Name: name, Dose: dose, Time: t, Status: status}
	if err := s.meds.Create(ctx, med); err != nil {
		logger.Error().Err(err).Msgf("Error creating medication for user %d", userID)
		return nil, storage(err)
	}

	s.publisher.Publish(ctx, "medication", "created", med.ID, med)
	return med, nil
}

// Update changes status, time, name or dose, whichever are present and non-empty.
func (s *MedicationService) Update(ctx context.Context, userID, id int64, in MedicationInput) (*entity.Medication, error) {
	med, err := s.meds.FindByIDForUser(ctx, id, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound(msgMedicationNotFound)
		}
		logger.Error().Err(err).Msgf("Error getting medication %d", id)
		return nil, storage(err)
	}

	if in.Status.Present {
		if in.Status.Null || !entity.ValidMedicationStatus(in.Status.Value) {
			return nil, invalid(msgMedicationStatus)
		}
		med.Status = in.Status.Value
	}
	if in.Time.Present {
		t, err := entity.ParseClockTime(strings.TrimSpace(in.Time.Value))
		if in.Time.Null || err != nil {
			return nil, invalid(msgTimeFormat)
		}
		med.Time = t
	}
	// Empty name or dose leaves the stored value, as for the profile name.
	if name := strings.TrimSpace(in.Name.Value); in.Name.Present && name != "" {
		med.Name = name
	}
	if dose := strings.TrimSpace(in.Dose.Value); in.Dose.Present && dose != "" {
		med.Dose = dose
	}

	if err := s.meds.Update(ctx, med); err != nil {
		logger.Error().Err(err).Msgf("Error updating medication %d", id)
		return nil, storage(err)
	}

	s.publisher.Publish(ctx, "medication", "updated", med.ID, med)
	return med, nil
}
