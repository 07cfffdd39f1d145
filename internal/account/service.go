// Package account registers users, checks credentials and issues tokens.
package account

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"campus-bus-backend/config"
	"campus-bus-backend/internal/domain"
	"campus-bus-backend/internal/logger"
	"campus-bus-backend/internal/model"
	"campus-bus-backend/internal/store"
)

// RegisterInput is a sign-up request.
type RegisterInput struct {
	Name            string
	Email           string
	Phone           string
	Password        string
	ConfirmPassword string
	Role            model.Role
	Passcode        string
}

// Session is an authenticated user with an access token.
type Session struct {
	User  *model.User
	Token string
}

// Service handles registration and login.
type Service struct {
	store  store.Store
	tokens *TokenIssuer
	policy config.AuthConfig
	log    logger.Logger
	cost   int
}

// NewService creates an account service.
func NewService(s store.Store, tokens *TokenIssuer, policy config.AuthConfig, log logger.Logger) *Service {
	return &Service{store: s, tokens: tokens, policy: policy, log: log, cost: bcrypt.DefaultCost}
}

// Register creates an account. Conductors must present the staff passcode and
// register by phone; everyone else registers with an institutional email. The
// configured admin email is registered as an admin.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	if strings.TrimSpace(in.Name) == "" || in.Password == "" || in.ConfirmPassword == "" {
		return nil, domain.NewValidationError("", "please fill in name and password fields")
	}
	if in.Password != in.ConfirmPassword {
		return nil, domain.NewValidationError("confirmPassword", "passwords do not match")
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	phone := strings.TrimSpace(in.Phone)
	if email != "" {
		if _, err := s.store.FindUserByEmail(ctx, email); err == nil {
			return nil, domain.NewConflictError("user with this email already exists")
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, domain.NewInternalError("failed to check email", err)
		}
	}
	if phone != "" {
		if _, err := s.store.FindUserByPhone(ctx, phone); err == nil {
			return nil, domain.NewConflictError("user with this phone number already exists")
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, domain.NewInternalError("failed to check phone", err)
		}
	}

	var (
		user *model.User
		err  error
	)
	switch in.Role {
	case model.RoleConductor:
		if s.policy.ConductorPasscode == "" || in.Passcode != s.policy.ConductorPasscode {
			return nil, domain.NewUnauthorizedError("invalid conductor passcode, registration failed")
		}
		user, err = model.NewConductor(in.Name, phone)
	case model.RoleStudent, "":
		if s.policy.AdminEmail != "" && email == strings.ToLower(s.policy.AdminEmail) {
			user, err = model.NewAdmin(in.Name, email, s.policy.EmailDomain)
		} else {
			user, err = model.NewStudent(in.Name, email, s.policy.EmailDomain)
		}
	default:
		return nil, domain.NewValidationError("role", "must be student or conductor")
	}
	if err != nil {
		return nil, domain.NewValidationError("", err.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, domain.NewInternalError("failed to hash password", err)
	}
	user.PasswordHash = string(hash)

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, domain.NewConflictError("user already exists")
		}
		return nil, domain.NewInternalError("failed to create user", err)
	}
	s.log.Info("user registered", "user_id", user.ID, "role", user.Role)
	return s.session(user)
}

// Login authenticates by email when loginID contains "@", otherwise by phone.
func (s *Service) Login(ctx context.Context, loginID, password string) (*Session, error) {
	loginID = strings.TrimSpace(loginID)
	if loginID == "" || password == "" {
		return nil, domain.NewValidationError("", "please provide your login ID and password")
	}

	var (
		user *model.User
		err  error
	)
	if strings.Contains(loginID, "@") {
		user, err = s.store.FindUserByEmail(ctx, strings.ToLower(loginID))
	} else {
		user, err = s.store.FindUserByPhone(ctx, loginID)
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, domain.NewInternalError("failed to load user", err)
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, domain.NewUnauthorizedError("invalid credentials")
	}
	return s.session(user)
}

func (s *Service) session(user *model.User) (*Session, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, domain.NewInternalError("failed to issue token", err)
	}
	return &Session{User: user, Token: token}, nil
}
