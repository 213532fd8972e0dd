// Package testutil provides in-memory stand-ins for the MySQL repositories,
// the meal cache and the event publisher.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/duffymelancholic/diabetes-management-app/internal/entity"
	"github.com/duffymelancholic/diabetes-management-app/internal/repository"
)

type linkKey struct {
	readingID int64
	mealID    int64
}

// Memory holds every table. Deleting a user or reading cascades the same way
// the MySQL foreign keys do.
type Memory struct {
	mu       sync.Mutex
	nextID   int64
	users    map[int64]entity.User
	readings map[int64]entity.Reading
	meds     map[int64]entity.Medication
	meals    map[int64]entity.Meal
	links    map[linkKey]entity.ReadingMeal
	now      func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		users:    map[int64]entity.User{},
		readings: map[int64]entity.Reading{},
		meds:     map[int64]entity.Medication{},
		meals:    map[int64]entity.Meal{},
		links:    map[linkKey]entity.ReadingMeal{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *Memory) Users() *Users             { return &Users{m} }
func (m *Memory) Readings() *Readings       { return &Readings{m} }
func (m *Memory) Medications() *Medications { return &Medications{m} }
func (m *Memory) Meals() *Meals             { return &Meals{m} }

// Links returns the meal links of a reading ordered by meal id.
func (m *Memory) Links(readingID int64) []entity.ReadingMeal {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []entity.ReadingMeal{}
	for k, l := range m.links {
		if k.readingID == readingID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MealID < out[j].MealID })
	return out
}

type Users struct{ m *Memory }

func (s *Users) Create(_ context.Context, user *entity.User) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, u := range s.m.users {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	user.ID = s.m.id()
	user.CreatedAt = s.m.now()
	s.m.users[user.ID] = *user
	return nil
}

func (s *Users) FindByID(_ context.Context, id int64) (*entity.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (s *Users) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, u := range s.m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Users) Update(_ context.Context, user *entity.User) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	stored, ok := s.m.users[user.ID]
	if !ok {
		return nil
	}
	stored.Name = user.Name
	stored.DiabetesType = user.DiabetesType
	stored.HeightCm = user.HeightCm
	stored.WeightKg = user.WeightKg
	s.m.users[user.ID] = stored
	return nil
}

func (s *Users) Delete(_ context.Context, id int64) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.users[id]; !ok {
		return repository.ErrNotFound
	}
	for rid, r := range s.m.readings {
		if r.UserID == id {
			s.m.dropLinks(rid)
			delete(s.m.readings, rid)
		}
	}
	for mid, med := range s.m.meds {
		if med.UserID == id {
			delete(s.m.meds, mid)
		}
	}
	delete(s.m.users, id)
	return nil
}

func (m *Memory) dropLinks(readingID int64) {
	for k := range m.links {
		if k.readingID == readingID {
			delete(m.links, k)
		}
	}
}

type Readings struct{ m *Memory }

func (s *Readings) ListByUser(_ context.Context, userID int64) ([]entity.Reading, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := []entity.Reading{}
	for _, r := range s.m.readings {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date.Time) {
			return a.Date.Before(b.Date.Time)
		}
		if a.Time != b.Time {
			return a.Time.Before(b.Time)
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (s *Readings) Create(_ context.Context, reading *entity.Reading) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	reading.ID = s.m.id()
	reading.CreatedAt = s.m.now()
	s.m.readings[reading.ID] = *reading
	return nil
}

func (s *Readings) FindByIDForUser(_ context.Context, id, userID int64) (*entity.Reading, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	r, ok := s.m.readings[id]
	if !ok || r.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (s *Readings) Update(_ context.Context, reading *entity.Reading) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if r, ok := s.m.readings[reading.ID]; ok && r.UserID == reading.UserID {
		s.m.readings[reading.ID] = *reading
	}
	return nil
}

func (s *Readings) Delete(_ context.Context, id, userID int64) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	r, ok := s.m.readings[id]
	if !ok || r.UserID != userID {
		return repository.ErrNotFound
	}
	s.m.dropLinks(id)
	delete(s.m.readings, id)
	return nil
}

func (s *Readings) LinkMeal(_ context.Context, link *entity.ReadingMeal) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.meals[link.MealID]; !ok {
		return repository.ErrNotFound
	}
	key := linkKey{link.ReadingID, link.MealID}
	if _, ok := s.m.links[key]; ok {
		return repository.ErrDuplicate
	}
	link.CreatedAt = s.m.now()
	s.m.links[key] = *link
	return nil
}

func (s *Readings) UnlinkMeal(_ context.Context, readingID, mealID int64) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	delete(s.m.links, linkKey{readingID, mealID})
	return nil
}

type Medications struct{ m *Memory }

func (s *Medications) ListByUser(_ context.Context, userID int64) ([]entity.Medication, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := []entity.Medication{}
	for _, med := range s.m.meds {
		if med.UserID == userID {
			out = append(out, med)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Time != out[j].Time {
			return out[i].Time.Before(out[j].Time)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Medications) Create(_ context.Context, med *entity.Medication) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	med.ID = s.m.id()
	med.CreatedAt = s.m.now()
	s.m.meds[med.ID] = *med
	return nil
}

func (s *Medications) FindByIDForUser(_ context.Context, id, userID int64) (*entity.Medication, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	med, ok := s.m.meds[id]
	if !ok || med.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return &med, nil
}

func (s *Medications) Update(_ context.Context, med *entity.Medication) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if stored, ok := s.m.meds[med.ID]; ok && stored.UserID == med.UserID {
		s.m.meds[med.ID] = *med
	}
	return nil
}

type Meals struct{ m *Memory }

func (s *Meals) List(_ context.Context) ([]entity.Meal, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := make([]entity.Meal, 0, len(s.m.meals))
	for _, meal := range s.m.meals {
		out = append(out, meal)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Meals) Create(_ context.Context, meal *entity.Meal) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	meal.ID = s.m.id()
	meal.CreatedAt = s.m.now()
	s.m.meals[meal.ID] = *meal
	return nil
}
