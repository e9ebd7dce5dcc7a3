package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/forgecraft/storefront/internal/domain"
	"github.com/forgecraft/storefront/internal/ports"
)

// Register creates a customer account. Emails are stored lowercased.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (RegisterResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return RegisterResponse{}, fmt.Errorf("%w: invalid email", domain.ErrInvalidInput)
	}
	if err := domain.ValidatePassword(req.Password); err != nil {
		return RegisterResponse{}, err
	}

	hash, err := s.deps.Hasher.Hash(req.Password)
	if err != nil {
		return RegisterResponse{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.deps.Users.Create(ctx, ports.CreateUserParams{
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleCustomer,
		CreatedAt:    s.nowFn().UTC(),
	})
	if err != nil {
		return RegisterResponse{}, err
	}
	return RegisterResponse{UserID: user.UserID}, nil
}

// Login verifies credentials and issues a session token. Attempts are
// throttled per source IP and the outcome is audited.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	ipHash := s.deps.IPHasher.Hash(req.IPAddress)
	if err := s.throttleHit(ctx, "login:"+ipHash, s.cfg.LoginThrottleMax, s.cfg.LoginThrottleWin); err != nil {
		return LoginResponse{}, err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := s.deps.Users.GetByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return LoginResponse{}, domain.ErrInvalidCredentials
		}
		return LoginResponse{}, err
	}
	if err := s.deps.Hasher.Compare(user.PasswordHash, req.Password); err != nil {
		return LoginResponse{}, domain.ErrInvalidCredentials
	}

	now := s.nowFn().UTC()
	claims := ports.AuthClaims{
		UserID:    user.UserID,
		Email:     user.Email,
		Role:      user.Role,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.SessionTTL),
	}
	token, err := s.deps.Sessions.Sign(claims)
	if err != nil {
		return LoginResponse{}, fmt.Errorf("sign session: %w", err)
	}

	s.audit(ctx, s.auditFor(
		Actor{UserID: user.UserID, IPAddress: req.IPAddress, UserAgent: req.UserAgent},
		domain.AuditLoginSucceeded, "user", user.UserID.String(), nil,
	))

	return LoginResponse{
		Token:     token,
		ExpiresIn: int64(s.cfg.SessionTTL / time.Second),
		UserID:    user.UserID,
		Role:      user.Role,
	}, nil
}

// StepUp re-verifies an admin's password and issues a short-lived elevation
// token required by destructive admin operations.
func (s *Service) StepUp(ctx context.Context, actor Actor, req StepUpRequest) (StepUpResponse, error) {
	if actor.Role != domain.RoleAdmin {
		return StepUpResponse{}, domain.ErrForbidden
	}

	user, err := s.deps.Users.GetByID(ctx, actor.UserID)
	if err != nil {
		if isNotFound(err) {
			return StepUpResponse{}, domain.ErrUnauthorized
		}
		return StepUpResponse{}, err
	}
	if err := s.deps.Hasher.Compare(user.PasswordHash, req.Password); err != nil {
		return StepUpResponse{}, domain.ErrInvalidCredentials
	}

	expiresAt := s.nowFn().UTC().Add(s.cfg.StepUpTTL)
	token, err := s.deps.StepUpCodec.Mint(actor.UserID, expiresAt)
	if err != nil {
		return StepUpResponse{}, fmt.Errorf("mint step-up token: %w", err)
	}

	s.audit(ctx, s.auditFor(actor, domain.AuditStepUpIssued, "user", actor.UserID.String(), nil))

	return StepUpResponse{Token: token, ExpiresAt: expiresAt}, nil
}

// requireStepUp checks that the elevation token is valid and belongs to the
// acting admin.
func (s *Service) requireStepUp(actor Actor, token string) error {
	userID, ok := s.deps.StepUpCodec.Verify(token)
	if !ok || userID != actor.UserID {
		return domain.ErrStepUpRequired
	}
	return nil
}
