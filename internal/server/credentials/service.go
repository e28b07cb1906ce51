// Package credentials реализует регистрацию пользователей и проверку паролей.
package credentials

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/questline/internal/apperr"
	"github.com/iudanet/questline/internal/crypto"
	"github.com/iudanet/questline/internal/models"
	"github.com/iudanet/questline/internal/server/storage"
	"github.com/iudanet/questline/internal/validation"
)

// Store описывает хранилище, необходимое сервису учетных данных
type Store interface {
	storage.UserStorage
	AssignRole(ctx context.Context, userID, role, assignedBy string) error
}

// Service регистрирует и аутентифицирует пользователей
type Service struct {
	logger     *slog.Logger
	store      Store
	hasher     *crypto.Hasher
	now        func() time.Time
	ownerLogin string
}

// Option настраивает Service
type Option func(*Service)

// WithClock подменяет time.Now, используется в тестах
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithOwnerLogin выдает роль OWNER пользователю, регистрирующемуся с этим логином
func WithOwnerLogin(login string) Option {
	return func(s *Service) { s.ownerLogin = login }
}

// New создает сервис учетных данных
func New(logger *slog.Logger, store Store, hasher *crypto.Hasher, opts ...Option) *Service {
	s := &Service{
		logger: logger,
		store:  store,
		hasher: hasher,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register создает пользователя с ролью USER и возвращает его публичное представление.
// Login и email не должны быть заняты.
func (s *Service) Register(ctx context.Context, login, email, password string) (models.UserPublic, error) {
	if err := validation.ValidateLogin(login); err != nil {
		return models.UserPublic{}, apperr.Validation("%s", err.Error())
	}
	if err := validation.ValidateEmail(email); err != nil {
		return models.UserPublic{}, apperr.Validation("%s", err.Error())
	}
	if err := validation.ValidatePassword(password); err != nil {
		return models.UserPublic{}, apperr.Validation("%s", err.Error())
	}

	if err := s.ensureUnique(ctx, login, email); err != nil {
		return models.UserPublic{}, err
	}

	hash, err := s.hasher.HashPassword(password)
	if err != nil {
		return models.UserPublic{}, apperr.Internal("failed to hash password", err)
	}

	now := s.now()
	user := &models.User{
		ID:           uuid.New().String(),
		Login:        login,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		s.logger.WarnContext(ctx, "Failed to create user", slog.String("login", login), slog.Any("error", err))
		// Повторно выясняем причину: гонка за login/email или сбой хранилища
		if uerr := s.ensureUnique(ctx, login, email); uerr != nil {
			return models.UserPublic{}, uerr
		}
		return models.UserPublic{}, apperr.Unavailable("couldn't create user", err)
	}

	roles := []string{models.RoleUser}
	if s.ownerLogin != "" && login == s.ownerLogin {
		roles = append(roles, models.RoleOwner)
	}
	for _, role := range roles {
		if err := s.store.AssignRole(ctx, user.ID, role, ""); err != nil {
			s.logger.ErrorContext(ctx, "Failed to assign role on signup",
				slog.String("user_id", user.ID),
				slog.String("role", role),
				slog.Any("error", err),
			)
			// Пользователь без ролей бесполезен, откатываем регистрацию
			if derr := s.store.DeleteUser(ctx, user.ID); derr != nil {
				s.logger.ErrorContext(ctx, "Failed to roll back user", slog.String("user_id", user.ID), slog.Any("error", derr))
			}
			return models.UserPublic{}, apperr.Unavailable("couldn't create user", err)
		}
	}

	s.logger.InfoContext(ctx, "User registered",
		slog.String("user_id", user.ID),
		slog.String("login", login),
		slog.Any("roles", roles),
	)

	return user.Public(), nil
}

func (s *Service) ensureUnique(ctx context.Context, login, email string) error {
	_, err := s.store.GetUserByLogin(ctx, login)
	switch {
	case err == nil:
		return apperr.Conflict("user with this login already exists")
	case !errors.Is(err, storage.ErrUserNotFound):
		return apperr.Unavailable("couldn't check login", err)
	}

	_, err = s.store.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return apperr.Conflict("user with this email already exists")
	case !errors.Is(err, storage.ErrUserNotFound):
		return apperr.Unavailable("couldn't check email", err)
	}

	return nil
}

// Verify проверяет логин и пароль и возвращает публичное представление пользователя.
// Неизвестный логин и неверный пароль для вызывающего неотличимы.
func (s *Service) Verify(ctx context.Context, login, password string) (models.UserPublic, error) {
	user, err := s.store.GetUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			s.logger.WarnContext(ctx, "Login failed: user not found", slog.String("login", login))
			return models.UserPublic{}, apperr.Unauthorized("invalid credentials")
		}
		return models.UserPublic{}, apperr.Unavailable("couldn't verify credentials", err)
	}

	if err := s.hasher.VerifyPassword(password, user.PasswordHash); err != nil {
		if errors.Is(err, crypto.ErrMismatch) {
			s.logger.WarnContext(ctx, "Login failed: invalid password", slog.String("login", login))
			return models.UserPublic{}, apperr.Unauthorized("invalid credentials")
		}
		return models.UserPublic{}, apperr.Internal("couldn't verify credentials", err)
	}

	return user.Public(), nil
}

// Get возвращает публичное представление пользователя
func (s *Service) Get(ctx context.Context, userID string) (models.UserPublic, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.UserPublic{}, apperr.NotFound("user with id %q doesn't exist", userID)
		}
		return models.UserPublic{}, apperr.Unavailable("couldn't get user", err)
	}
	return user.Public(), nil
}

// List возвращает всех пользователей
func (s *Service) List(ctx context.Context) ([]models.UserPublic, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, apperr.Unavailable("couldn't list users", err)
	}

	out := make([]models.UserPublic, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out, nil
}

// Delete удаляет пользователя вместе с его сессиями, задачами и квестами.
func (s *Service) Delete(ctx context.Context, userID string) error {
	err := s.store.DeleteUser(ctx, userID)
	if err == nil {
		s.logger.InfoContext(ctx, "User deleted", slog.String("user_id", userID))
		return nil
	}

	if errors.Is(err, storage.ErrUserNotFound) {
		return apperr.Validation("user with id %q doesn't exist", userID)
	}

	s.logger.WarnContext(ctx, "Failed to delete user", slog.String("user_id", userID), slog.Any("error", err))
	if _, gerr := s.store.GetUserByID(ctx, userID); errors.Is(gerr, storage.ErrUserNotFound) {
		return apperr.Validation("user with id %q doesn't exist", userID)
	}
	return apperr.Unavailable("couldn't delete user", err)
}
