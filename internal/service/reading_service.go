package service

import (
	"context"
	"errors"
	"strings"

	"github.com/duffymelancholic/diabetes-management-app/internal/entity"
	"github.com/duffymelancholic/diabetes-management-app/internal/events"
	"github.com/duffymelancholic/diabetes-management-app/internal/repository"
	"github.com/duffymelancholic/diabetes-management-app/internal/rules"
)

const (
	msgReadingNotFound = "Reading not found"
	msgMealNotFound    = "Meal not found"
	msgReadingRequired = "value, date (YYYY-MM-DD), and time (HH:MM) are required"
	msgReadingValue    = "value must be a number between 40 and 500"
	msgReadingContext  = "context must be 'pre_meal' or 'post_meal'"
	msgDateFormat      = "date must be YYYY-MM-DD"
	msgTimeFormat      = "time must be HH:MM"
	msgMealIDRequired  = "meal_id is required"
	msgMealIDParam     = "meal_id query param is required"
)

// ReadingView is a reading plus its evaluation when a meal context is set.
type ReadingView struct {
	entity.Reading
	Evaluation *rules.Evaluation `json:"evaluation,omitempty"`
}

func viewOf(r *entity.Reading) *ReadingView {
	v := &ReadingView{Reading: *r}
	if r.Context != nil {
		ev := rules.EvaluateGlucose(r.Value, *r.Context)
		v.Evaluation = &ev
	}
	return v
}

type ReadingService struct {
	readings  ReadingStore
	publisher events.Publisher
}

func NewReadingService(readings ReadingStore, publisher events.Publisher) *ReadingService {
	return &ReadingService{readings: readings, publisher: publisher}
}

// List returns the user's readings ordered by date then time, without evaluations.
func (s *ReadingService) List(ctx context.Context, userID int64) ([]entity.Reading, error) {
	readings, err := s.readings.ListByUser(ctx, userID)
	if err != nil {
		logger.Error().Err(err).Msgf("Error listing readings for user %d", userID)
		return nil, storage(err)
	}
	return readings, nil
}

func (s *ReadingService) Create(ctx context.Context, userID int64, in ReadingInput) (*ReadingView, error) {
	if !in.Value.Set() || !in.Date.Set() || !in.Time.Set() {
		return nil, invalid(msgReadingRequired)
	}

	reading := &entity.Reading{UserID: userID}
	if err := applyReading(reading, in); err != nil {
		return nil, err
	}

	if err := s.readings.Create(ctx, reading); err != nil {
		logger.Error().Err(err).Msgf("Error creating reading for user %d", userID)
		return nil, storage(err)
	}

	s.publisher.Publish(ctx, "reading", "created", reading.ID, reading)
	return viewOf(reading), nil
}

func (s *ReadingService) Get(ctx context.Context, userID, id int64) (*ReadingView, error) {
	reading, err := s.find(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return viewOf(reading), nil
}

// Update validates every present field before writing any of them.
func (s *ReadingService) Update(ctx context.Context, userID, id int64, in ReadingInput) (*ReadingView, error) {
	reading, err := s.find(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if err := applyReading(reading, in); err != nil {
		return nil, err
	}

	if err := s.readings.Update(ctx, reading); err != nil {
		logger.Error().Err(err).Msgf("Error updating reading %d", id)
		return nil, storage(err)
	}

	s.publisher.Publish(ctx, "reading", "updated", reading.ID, reading)
	return viewOf(reading), nil
}

func (s *ReadingService) Delete(ctx context.Context, userID, id int64) error {
	if err := s.readings.Delete(ctx, id, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(msgReadingNotFound)
		}
		logger.Error().Err(err).Msgf("Error deleting reading %d", id)
		return storage(err)
	}

	s.publisher.Publish(ctx, "reading", "deleted", id, map[string]int64{"id": id, "user_id": userID})
	return nil
}

// LinkMeal attaches a global meal to one of the caller's readings.
func (s *ReadingService) LinkMeal(ctx context.Context, userID, readingID int64, in LinkInput) (*entity.ReadingMeal, error) {
	if _, err := s.find(ctx, userID, readingID); err != nil {
		return nil, err
	}

	if !in.MealID.Set() {
		return nil, invalid(msgMealIDRequired)
	}
	mealID, ok := in.MealID.Value.Int()
	if !ok {
		return nil, invalid("meal_id must be a number")
	}
	if mealID <= 0 {
		return nil, invalid(msgMealIDRequired)
	}

	link := &entity.ReadingMeal{ReadingID: readingID, MealID: mealID}
	if in.CarbsAmount.Set() {
		carbs, ok := in.CarbsAmount.Value.Float()
		if !ok {
			return nil, invalid("carbs_amount must be a number")
		}
		if carbs < 0 {
			return nil, invalid("carbs_amount must not be negative")
		}
		link.CarbsAmount = &carbs
	}

	if err := s.readings.LinkMeal(ctx, link); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, notFound(msgMealNotFound)
		case errors.Is(err, repository.ErrDuplicate):
			return nil, conflict("Meal is already linked to this reading", err)
		}
		logger.Error().Err(err).Msgf("Error linking meal %d to reading %d", mealID, readingID)
		return nil, storage(err)
	}

	s.publisher.Publish(ctx, "reading-meal", "linked", readingID, link)
	return link, nil
}

// UnlinkMeal succeeds whether or not the pair was linked. A mealID of zero
// means the caller did not supply one.
func (s *ReadingService) UnlinkMeal(ctx context.Context, userID, readingID, mealID int64) error {
	if _, err := s.find(ctx, userID, readingID); err != nil {
		return err
	}
	if mealID <= 0 {
		return invalid(msgMealIDParam)
	}

	if err := s.readings.UnlinkMeal(ctx, readingID, mealID); err != nil {
		logger.Error().Err(err).Msgf("Error unlinking meal %d from reading %d", mealID, readingID)
		return storage(err)
	}

	s.publisher.Publish(ctx, "reading-meal", "unlinked", readingID, map[string]int64{"reading_id": readingID, "meal_id": mealID})
	return nil
}

func (s *ReadingService) find(ctx context.Context, userID, id int64) (*entity.Reading, error) {
	reading, err := s.readings.FindByIDForUser(ctx, id, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound(msgReadingNotFound)
		}
		logger.Error().Err(err).Msgf("Error getting reading %d", id)
		return nil, storage(err)
	}
	return reading, nil
}

// applyReading copies the present fields of in onto r. r is untouched when
// any field is invalid.
func applyReading(r *entity.Reading, in ReadingInput) error {
	next := *r

	if in.Value.Present {
		v, ok := in.Value.Value.Float()
		if in.Value.Null || !ok || v < entity.MinGlucose || v > entity.MaxGlucose {
			return invalid(msgReadingValue)
		}
		next.Value = v
	}
	if in.Date.Present {
		d, err := entity.ParseDate(strings.TrimSpace(in.Date.Value))
		if in.Date.Null || err != nil {
			return invalid(msgDateFormat)
		}
		next.Date = d
	}
	if in.Time.Present {
		t, err := entity.ParseClockTime(strings.TrimSpace(in.Time.Value))
		if in.Time.Null || err != nil {
			return invalid(msgTimeFormat)
		}
		next.Time = t
	}
	if in.Notes.Present {
		next.Notes = nil
		if in.Notes.Set() {
			notes := in.Notes.Value
			next.Notes = &notes
		}
	}
	if in.Context.Present {
		next.Context = nil
		if in.Context.Set() && in.Context.Value != "" {
			if !entity.ValidContext(in.Context.Value) {
				return invalid(msgReadingContext)
			}
			c := in.Context.Value
			next.Context = &c
		}
	}

	*r = next
	return nil
}
