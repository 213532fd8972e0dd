package service

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/duffymelancholic/diabetes-management-app/internal/credential"
	"github.com/duffymelancholic/diabetes-management-app/internal/entity"
	"github.com/duffymelancholic/diabetes-management-app/internal/events"
	"github.com/duffymelancholic/diabetes-management-app/internal/repository"
	"github.com/duffymelancholic/diabetes-management-app/internal/rules"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

const (
	msgUserNotFound    = "User not found"
	msgEmailTaken      = "User with this email already exists"
	msgBadCredentials  = "Invalid email or password"
	msgMissingBodyMeas = "height_cm and weight_kg must be set on profile"
)

// Session is returned by signup and login.
type Session struct {
	User        *entity.User `json:"user"`
	AccessToken string       `json:"access_token"`
	Education   []string     `json:"education"`
}

// Profile is the user projection with education content merged in.
type Profile struct {
	*entity.User
	Education []string `json:"education"`
}

type UserService struct {
	users     UserStore
	creds     *credential.Service
	publisher events.Publisher
}

func NewUserService(users UserStore, creds *credential.Service, publisher events.Publisher) *UserService {
	return &UserService{users: users, creds: creds, publisher: publisher}
}

// Signup creates an account and signs the caller in.
func (s *UserService) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)
	if name == "" || email == "" || in.Password == "" {
		return nil, invalid("Name, email, and password are required")
	}

	// Checked up front so a taken email is a clear conflict, not a driver error.
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, conflict(msgEmailTaken, repository.ErrDuplicate)
	} else if !errors.Is(err, repository.ErrNotFound) {
		logger.Error().Err(err).Msgf("Error looking up user by email %s", email)
		return nil, storage(err)
	}

	digest, err := s.creds.Hash(in.Password)
	if err != nil {
		return nil, storage(err)
	}

	user := &entity.User{Name: name, Email: email}
	if in.DiabetesType != nil && *in.DiabetesType != "" {
		dt := *in.DiabetesType
		user.DiabetesType = &dt
	}
	user.SetPasswordDigest(digest)

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, conflict(msgEmailTaken, err)
		}
		logger.Error().Err(err).Msg("Error creating user")
		return nil, storage(err)
	}

	session, err := s.session(user)
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, "user", "created", user.ID, user)
	return session, nil
}

func (s *UserService) Login(ctx context.Context, in LoginInput) (*Session, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" || in.Password == "" {
		return nil, invalid("Email and password are required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, unauthenticated(msgBadCredentials)
		}
		logger.Error().Err(err).Msgf("Error looking up user by email %s", email)
		return nil, storage(err)
	}

	if !s.creds.Verify(user.PasswordDigest(), in.Password) {
		logger.Warn().Int64("user_id", user.ID).Msg("Failed login attempt")
		return nil, unauthenticated(msgBadCredentials)
	}

	return s.session(user)
}

func (s *UserService) session(user *entity.User) (*Session, error) {
	token, err := s.creds.IssueToken(user.ID)
	if err != nil {
		logger.Error().Err(err).Msgf("Error issuing token for user %d", user.ID)
		return nil, storage(err)
	}
	return &Session{
		User:        user,
		AccessToken: token,
		Education:   rules.EducationFor(user.DiabetesType),
	}, nil
}

// Profile backs check_session.
func (s *UserService) Profile(ctx context.Context, userID int64) (*Profile, error) {
	user, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Profile{User: user, Education: rules.EducationFor(user.DiabetesType)}, nil
}

// UpdateProfile applies the fields present in the patch. An empty name is
// ignored; null height, weight or diabetes type clears the stored value.
func (s *UserService) UpdateProfile(ctx context.Context, userID int64, in ProfileInput) (*entity.User, error) {
	user, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.Name.Set() {
		if name := strings.TrimSpace(in.Name.Value); name != "" {
			user.Name = name
		}
	}
	if in.DiabetesType.Present {
		user.DiabetesType = nil
		if in.DiabetesType.Set() && in.DiabetesType.Value != "" {
			dt := in.DiabetesType.Value
			user.DiabetesType = &dt
		}
	}
	if user.HeightCm, err = measurement("height_cm", in.HeightCm, user.HeightCm); err != nil {
		return nil, err
	}
	if user.WeightKg, err = measurement("weight_kg", in.WeightKg, user.WeightKg); err != nil {
		return nil, err
	}

	if err := s.users.Update(ctx, user); err != nil {
		logger.Error().Err(err).Msgf("Error updating user %d", userID)
		return nil, storage(err)
	}
	return user, nil
}

func measurement(field string, f Field[Number], current *float64) (*float64, error) {
	if !f.Present {
		return current, nil
	}
	if f.Null {
		return nil, nil
	}
	v, ok := f.Value.Float()
	if !ok {
		return nil, invalid(field + " must be a number")
	}
	if v <= 0 {
		return nil, invalid(field + " must be positive")
	}
	return &v, nil
}

func (s *UserService) BMI(ctx context.Context, userID int64) (*rules.BMI, error) {
	user, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.HeightCm == nil || user.WeightKg == nil {
		return nil, invalid(msgMissingBodyMeas)
	}

	bmi, err := rules.ComputeBMI(*user.HeightCm, *user.WeightKg)
	if err != nil {
		return nil, invalid(msgMissingBodyMeas)
	}
	return &bmi, nil
}

// Delete removes the user and everything the user owns.
func (s *UserService) Delete(ctx context.Context, userID int64) error {
	if err := s.users.Delete(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(msgUserNotFound)
		}
		logger.Error().Err(err).Msgf("Error deleting user %d", userID)
		return storage(err)
	}

	s.publisher.Publish(ctx, "user", "deleted", userID, map[string]int64{"id": userID})
	return nil
}

func (s *UserService) find(ctx context.Context, userID int64) (*entity.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound(msgUserNotFound)
		}
		logger.Error().Err(err).Msgf("Error getting user by ID %d", userID)
		return nil, storage(err)
	}
	return user, nil
}
