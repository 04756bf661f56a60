package application

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/atvirokodosprendimai/intellitest/internal/domain"
)

const (
	minPasswordLen = 8
	maxPasswordLen = 50
)

type AuthService struct {
	*core
	creds *Credentials
}

type RegisterInput struct {
	Email    string          `json:"email"`
	FullName string          `json:"full_name"`
	Password string          `json:"password"`
	Role     domain.UserRole `json:"role"`
}

type LoginResult struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   int64       `json:"expires_in"`
	User        domain.User `json:"user"`
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.User{}, domain.Invalid("a valid email is required")
	}
	if n := utf8.RuneCountInString(in.Password); n < minPasswordLen || n > maxPasswordLen {
		return domain.User{}, domain.Invalid("password must be %d to %d characters", minPasswordLen, maxPasswordLen)
	}
	role := in.Role
	if role == "" {
		role = domain.RoleTester
	}
	if !role.Valid() {
		return domain.User{}, domain.Invalid("unknown role %q", role)
	}
	if role == domain.RoleAdmin {
		return domain.User{}, domain.Invalid("the admin role cannot be self-assigned")
	}
	fullName := strings.TrimSpace(in.FullName)
	if fullName == "" {
		return domain.User{}, domain.Invalid("full_name is required")
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return domain.User{}, err
	}

	var user domain.User
	var entry domain.ActivityLog
	err = s.repo.InTx(ctx, func(tx domain.Repository) error {
		var err error
		user, err = tx.CreateUser(ctx, domain.User{
			Email:        email,
			FullName:     fullName,
			PasswordHash: hash,
			Role:         role,
			IsActive:     true,
		})
		if errors.Is(err, domain.ErrConflict) {
			return domain.Conflict("email already registered")
		}
		if err != nil {
			return err
		}
		entry, err = s.record(ctx, tx, user, activity{action: "registered", targetType: "user", targetID: user.ID, targetName: user.Email})
		return err
	})
	if err != nil {
		return domain.User{}, err
	}

	s.logger.Info("user registered", "user_id", user.ID, "role", user.Role)
	s.emitActivity(ctx, entry)
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return LoginResult{}, domain.Unauthenticated(errors.New("incorrect email or password"))
	}
	if err != nil {
		return LoginResult{}, err
	}
	if !VerifyPassword(password, user.PasswordHash) {
		return LoginResult{}, domain.Unauthenticated(errors.New("incorrect email or password"))
	}
	if !user.IsActive {
		return LoginResult{}, domain.Unauthenticated(errors.New("inactive user"))
	}

	token, err := s.creds.IssueToken(domain.Claims{Subject: user.ID, Email: user.Email, Role: user.Role}, 0)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.creds.TTL().Seconds()),
		User:        user,
	}, nil
}

// Authenticate resolves a bearer token to an active user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (domain.User, error) {
	if strings.TrimSpace(token) == "" {
		return domain.User{}, domain.Unauthenticated(errors.New("missing token"))
	}
	claims, err := s.creds.VerifyToken(token)
	if err != nil {
		return domain.User{}, err
	}
	user, err := s.repo.GetUserByID(ctx, claims.Subject)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, domain.Unauthenticated(errors.New("unknown user"))
	}
	if err != nil {
		return domain.User{}, err
	}
	if !user.IsActive {
		return domain.User{}, domain.Unauthenticated(errors.New("inactive user"))
	}
	return user, nil
}

// Me re-reads the acting user so role or name changes are visible.
func (s *AuthService) Me(ctx context.Context, actor domain.User) (domain.User, error) {
	return s.repo.GetUserByID(ctx, actor.ID)
}

// BootstrapAdmin creates the first account as admin when no user exists.
func (s *AuthService) BootstrapAdmin(ctx context.Context, email, password string) error {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(password) == "" {
		return errors.New("bootstrap admin email and password are required")
	}

	count, err := s.repo.CountUsers(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}

	return s.repo.InTx(ctx, func(tx domain.Repository) error {
		u, err := tx.CreateUser(ctx, domain.User{
			Email:        strings.ToLower(strings.TrimSpace(email)),
			FullName:     "Administrator",
			PasswordHash: hash,
			Role:         domain.RoleAdmin,
			IsActive:     true,
		})
		if err != nil {
			return err
		}
		s.logger.Info("bootstrap admin created", "user_id", u.ID)
		_, err = s.record(ctx, tx, u, activity{action: "bootstrap_admin", targetType: "user", targetID: u.ID, targetName: u.Email})
		return err
	})
}
