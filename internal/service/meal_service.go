package service

import (
	"context"
	"strings"

	"github.com/duffymelancholic/diabetes-management-app/internal/entity"
	"github.com/duffymelancholic/diabetes-management-app/internal/events"
)

type MealService struct {
	meals     MealStore
	cache     MealCache
	publisher events.Publisher
}

// NewMealService accepts a nil cache, in which case every list hits storage.
func NewMealService(meals MealStore, cache MealCache, publisher events.Publisher) *MealService {
	return &MealService{meals: meals, cache: cache, publisher: publisher}
}

// List returns every meal, newest first, reading through the cache.
func (s *MealService) List(ctx context.Context) ([]entity.Meal, error) {
	if s.cache != nil {
		meals, ok, err := s.cache.Get(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("Error reading meal cache")
		} else if ok {
			return meals, nil
		}
	}

	meals, err := s.meals.List(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Error listing meals")
		return nil, storage(err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, meals); err != nil {
			logger.Warn().Err(err).Msg("Error filling meal cache")
		}
	}
	return meals, nil
}

func (s *MealService) Create(ctx context.Context, in MealInput) (*entity.Meal, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("name is required")
	}

	meal := &entity.Meal{Name: name, MealType: in.MealType, Description: in.Description}
	if err := s.meals.Create(ctx, meal); err != nil {
		logger.Error().Err(err).Msg("Error creating meal")
		return nil, storage(err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			logger.Warn().Err(err).Msg("Error invalidating meal cache")
		}
	}

	s.publisher.Publish(ctx, "meal", "created", meal.ID, meal)
	return meal, nil
}
