// Package service holds the business logic between the HTTP handlers and the
// repository:
//
//	Handler (HTTP) → Service (business rules) → UserRepository (DB)
//
// Services take their collaborators through constructors and never touch
// http.Request or cookies.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/excuse-me/internal/apperror"
	"github.com/sakif/excuse-me/internal/auth"
	"github.com/sakif/excuse-me/internal/model"
	"github.com/sakif/excuse-me/internal/repository"
)

// Credentials is an email/password pair submitted to signup or login.
type Credentials struct {
	Email    string `json:"email"    validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// AuthService handles signup, login and session tokens.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users      repository.UserRepository  → read/write accounts
//   - tokens     *auth.TokenService         → generate/validate JWTs
//   - passwords  *auth.PasswordService      → bcrypt hashing
//   - logger     *slog.Logger               → structured logging
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	validate  *validator.Validate
	logger    *slog.Logger
	now       func() time.Time
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	v := validator.New()
	// Report json names ("email") rather than Go field names ("Email").
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		validate:  v,
		logger:    logger,
		now:       time.Now,
	}
}

// AuthResult bundles the account and the issued JWT so the handler can set
// the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Signup creates an email/password account and starts a session.
// An email that is already registered is apperror.ErrConflict.
func (s *AuthService) Signup(ctx context.Context, creds Credentials) (*AuthResult, error) {
	if err := s.validateCredentials(creds); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(creds.Password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", "password must be 72 bytes or fewer")
	}

	user := model.NewUser(s.now())
	user.Email = creds.Email
	user.PasswordHash = hash

	created, err := s.users.CreateIfAbsent(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("service/auth: creating account: %w", err)
	}
	if !created {
		return nil, &apperror.AppError{
			Err:     apperror.ErrConflict,
			Message: "an account with this email already exists",
			Field:   "email",
		}
	}

	s.logger.Info("account created", slog.String("userID", user.ID))
	return s.issue(user)
}

// Login verifies email/password and starts a session.
//
// Unknown email and wrong password produce the same error so the response
// doesn't reveal which accounts exist.
func (s *AuthService) Login(ctx context.Context, creds Credentials) (*AuthResult, error) {
	if err := s.validateCredentials(creds); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByEmail(ctx, creds.Email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthenticated("invalid email or password")
		}
		return nil, fmt.Errorf("service/auth: fetching account: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, creds.Password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			return nil, apperror.Unauthenticated("invalid email or password")
		}
		return nil, fmt.Errorf("service/auth: verifying password: %w", err)
	}

	// Every successful authentication ensures the account exists.
	if _, err := s.users.CreateIfAbsent(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: ensuring account: %w", err)
	}

	return s.issue(user)
}

// LoginOrRegisterGitHub handles the GitHub OAuth callback.
//
//  1. Upsert the account (create on first login, refresh profile afterwards)
//  2. Generate a JWT for the account
//  3. Return both so the handler can set the cookie and redirect
//
// Plan and usage are never changed by a login.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	user := &model.User{
		GitHubID:  ghUser.ID,
		Login:     ghUser.Login,
		Email:     ghUser.Email,
		AvatarURL: ghUser.AvatarURL,
	}

	if err := s.users.UpsertGitHub(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting user (githubID=%d): %w", ghUser.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("login", user.Login),
	)

	return s.issue(user)
}

// GetUserByID returns the account for the given internal ID. Used by /api/me.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.Unauthenticated("no session")
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}

	return user, nil
}

// ValidateToken validates a JWT string and returns the userID it encodes.
func (s *AuthService) ValidateToken(tokenStr string) (string, error) {
	userID, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return "", fmt.Errorf("service/auth: %w", err)
	}
	return userID, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

// validateCredentials returns the first rule violation as a ValidationError.
func (s *AuthService) validateCredentials(creds Credentials) error {
	err := s.validate.Struct(creds)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperror.ValidationFailed("", err.Error())
	}

	fe := fieldErrs[0]
	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("%s is required", fe.Field())
	case "email":
		msg = "email must be a valid email address"
	case "min":
		msg = fmt.Sprintf("%s must be at least %s characters long", fe.Field(), fe.Param())
	case "max":
		msg = fmt.Sprintf("%s must be at most %s characters long", fe.Field(), fe.Param())
	default:
		msg = fmt.Sprintf("%s is invalid", fe.Field())
	}
	return apperror.ValidationFailed(fe.Field(), msg)
}
