package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Shivanand-hulikatti/event-booking/internal/clock"
	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/Shivanand-hulikatti/event-booking/internal/repository"
)

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u model.User) error
	GetUser(ctx context.Context, id string) (model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	ToggleUserActive(ctx context.Context, id string) (model.User, error)
	SoftDeleteUser(ctx context.Context, id string, at time.Time) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// RolePolicy assigns roles from an explicit admin allow-list.
type RolePolicy struct {
	admins map[string]struct{}
}

func NewRolePolicy(adminEmails []string) RolePolicy {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, email := range adminEmails {
		email = normalizeEmail(email)
		if email != "" {
			admins[email] = struct{}{}
		}
	}
	return RolePolicy{admins: admins}
}

// RoleFor returns the role an account with this email receives.
func (p RolePolicy) RoleFor(email string) model.Role {
	if _, ok := p.admins[normalizeEmail(email)]; ok {
		return model.RoleAdmin
	}
	return model.RoleUser
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserService manages accounts.
type UserService struct {
	users  UserStore
	roles  RolePolicy
	clock  clock.Clock
	logger *slog.Logger
	cost   int
}

func NewUserService(users UserStore, roles RolePolicy, clk clock.Clock, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{users: users, roles: roles, clock: clk, logger: logger, cost: bcrypt.DefaultCost}
}

type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"max=32"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// Register creates an account. The role comes from the RolePolicy, never
// from the request.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (model.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	if err := validateStruct(in); err != nil {
		return model.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := model.User{
		ID:           uuid.New().String(),
		Name:         in.Name,
		Email:        in.Email,
		Phone:        in.Phone,
		PasswordHash: string(hash),
		Role:         s.roles.RoleFor(in.Email),
		IsActive:     true,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return model.User{}, model.NewValidationError("email", "is already registered")
		}
		return model.User{}, translate("register user", "user", user.ID, err)
	}

	s.logger.Info("user registered", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// Resolve loads the account behind a verified identity. A token issued after
// the last recorded login counts as a new login.
func (s *UserService) Resolve(ctx context.Context, userID string, issuedAt time.Time) (model.User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return model.User{}, translate("resolve user", "user", userID, err)
	}
	if !issuedAt.IsZero() && (user.LastLoginAt == nil || issuedAt.After(*user.LastLoginAt)) {
		if err := s.users.TouchLastLogin(ctx, userID, issuedAt); err != nil {
			s.logger.Warn("record last login", "user_id", userID, "error", err)
		} else {
			user.LastLoginAt = &issuedAt
		}
	}
	return user, nil
}
