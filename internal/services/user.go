package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/pulsegram/apiserver/internal/auth"
	"github.com/pulsegram/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	GetByUsernameOrEmail(ctx context.Context, login string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
}

// TokenIssuer issues access tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID int, username string) (string, error)
}

// AccountService encapsulates signup, login and profile use-cases.
type AccountService struct {
	repo   UserRepository
	tokens TokenIssuer
	hasher auth.PasswordHasher
	now    func() time.Time
}

func NewAccountService(repo UserRepository, tokens TokenIssuer, hasher auth.PasswordHasher) *AccountService {
	return &AccountService{
		repo:   repo,
		tokens: tokens,
		hasher: hasher,
		now:    time.Now,
	}
}

// Register creates an account and returns it with a fresh access token.
func (s *AccountService) Register(ctx context.Context, draft types.UserDraft) (types.User, string, error) {
	draft.Email = strings.TrimSpace(draft.Email)
	draft.Username = strings.TrimSpace(draft.Username)
	draft.Name = strings.TrimSpace(draft.Name)

	if draft.Email == "" || draft.Username == "" || draft.Name == "" || draft.Password == "" {
		return types.User{}, "", fmt.Errorf("%w: email, username, name and password are required", types.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(draft.Email); err != nil {
		return types.User{}, "", fmt.Errorf("%w: email is malformed", types.ErrInvalidInput)
	}
	if strings.ContainsAny(draft.Username, " \t/@") {
		return types.User{}, "", fmt.Errorf("%w: username must not contain spaces, '/' or '@'", types.ErrInvalidInput)
	}
	if err := s.validateProfile(draft.DateOfBirth, draft.Gender); err != nil {
		return types.User{}, "", err
	}

	if err := s.ensureAvailable(ctx, draft.Username, draft.Email); err != nil {
		return types.User{}, "", err
	}

	hash, err := s.hasher.Hash(draft.Password)
	if err != nil {
		return types.User{}, "", fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, types.User{
		Email:        draft.Email,
		Username:     draft.Username,
		Name:         draft.Name,
		PasswordHash: hash,
		DateOfBirth:  draft.DateOfBirth,
		Gender:       draft.Gender,
		Bio:          draft.Bio,
		Location:     draft.Location,
		ProfilePic:   draft.ProfilePic,
	})
	if err != nil {
		return types.User{}, "", fmt.Errorf("create user: %w", err)
	}

	token, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return types.User{}, "", fmt.Errorf("issue token: %w", err)
	}
	return user, token, nil
}

// Login verifies credentials given a username or an email.
func (s *AccountService) Login(ctx context.Context, login, password string) (types.User, string, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return types.User{}, "", types.ErrUnauthenticated
	}

	user, err := s.repo.GetByUsernameOrEmail(ctx, login)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return types.User{}, "", types.ErrUnauthenticated
		}
		return types.User{}, "", fmt.Errorf("get user: %w", err)
	}

	ok, err := s.hasher.Compare(user.PasswordHash, password)
	if err != nil {
		return types.User{}, "", fmt.Errorf("compare password: %w", err)
	}
	if !ok {
		return types.User{}, "", types.ErrUnauthenticated
	}

	token, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return types.User{}, "", fmt.Errorf("issue token: %w", err)
	}
	return user, token, nil
}

func (s *AccountService) Profile(ctx context.Context, userID int) (types.User, error) {
	return s.repo.GetByID(ctx, userID)
}

func (s *AccountService) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return s.repo.GetByUsername(ctx, username)
}

// UpdateProfile applies the non-nil fields of patch to the account named
// username. Only the account owner may update it.
func (s *AccountService) UpdateProfile(ctx context.Context, actorID int, username string, patch types.UserPatch) (types.User, error) {
	user, err := s.repo.GetByID(ctx, actorID)
	if err != nil {
		return types.User{}, err
	}
	if user.Username != username {
		return types.User{}, fmt.Errorf("%w: cannot update another user's profile", types.ErrForbidden)
	}

	if patch.Username != nil {
		name := strings.TrimSpace(*patch.Username)
		if name == "" || strings.ContainsAny(name, " \t/@") {
			return types.User{}, fmt.Errorf("%w: username is invalid", types.ErrInvalidInput)
		}
		if name != user.Username {
			if _, err := s.repo.GetByUsername(ctx, name); err == nil {
				return types.User{}, fmt.Errorf("%w: username already taken", types.ErrConflict)
			} else if !errors.Is(err, types.ErrNotFound) {
				return types.User{}, err
			}
		}
		user.Username = name
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return types.User{}, fmt.Errorf("%w: name must not be empty", types.ErrInvalidInput)
		}
		user.Name = name
	}
	if patch.DateOfBirth != nil {
		user.DateOfBirth = patch.DateOfBirth
	}
	if patch.Gender != nil {
		user.Gender = *patch.Gender
	}
	if patch.Bio != nil {
		user.Bio = *patch.Bio
	}
	if patch.Location != nil {
		user.Location = *patch.Location
	}
	if patch.ProfilePic != nil {
		user.ProfilePic = *patch.ProfilePic
	}

	if err := s.validateProfile(user.DateOfBirth, user.Gender); err != nil {
		return types.User{}, err
	}

	return s.repo.Update(ctx, user)
}

func (s *AccountService) validateProfile(dob *time.Time, gender types.Gender) error {
	if !gender.Valid() {
		return fmt.Errorf("%w: gender must be one of male, female, other", types.ErrInvalidInput)
	}
	if dob != nil {
		now := s.now().UTC()
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		d := dob.UTC()
		born := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
		if !born.Before(today) {
			return fmt.Errorf("%w: date of birth must be in the past", types.ErrInvalidInput)
		}
	}
	return nil
}

func (s *AccountService) ensureAvailable(ctx context.Context, username, email string) error {
	if _, err := s.repo.GetByUsername(ctx, username); err == nil {
		return fmt.Errorf("%w: username already taken", types.ErrConflict)
	} else if !errors.Is(err, types.ErrNotFound) {
		return err
	}

	if _, err := s.repo.GetByUsernameOrEmail(ctx, email); err == nil {
		return fmt.Errorf("%w: email already registered", types.ErrConflict)
	} else if !errors.Is(err, types.ErrNotFound) {
		return err
	}
	return nil
}
