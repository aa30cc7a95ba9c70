package service

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/iliyamo/study-room-booking/internal/apperror"
	"github.com/iliyamo/study-room-booking/internal/booking"
	"github.com/iliyamo/study-room-booking/internal/clock"
	"github.com/iliyamo/study-room-booking/internal/model"
	"github.com/iliyamo/study-room-booking/internal/queue"
	"github.com/iliyamo/study-room-booking/internal/utils"
)

// AuthConfig holds token lifetimes and the bcrypt cost.
type AuthConfig struct {
	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	BcryptCost int
}

// Tokens is the pair issued on login and refresh.
type Tokens struct {
	AccessToken  string    `json:"access_token"`
	AccessExp    time.Time `json:"access_expires_at"`
	RefreshToken string    `json:"refresh_token"`
	RefreshExp   time.Time `json:"refresh_expires_at"`
}

// AccountService handles signup, login and admin account decisions.
// New students start pending; only approved accounts get tokens.
type AccountService struct {
	users  UserStore
	tokens TokenStore
	events queue.Publisher
	clock  clock.Clock
	logger *slog.Logger
	cfg    AuthConfig
}

func NewAccountService(users UserStore, tokens TokenStore, events queue.Publisher, clk clock.Clock, logger *slog.Logger, cfg AuthConfig) *AccountService {
	return &AccountService{
		users:  users,
		tokens: tokens,
		events: events,
		clock:  clk,
		logger: logger.With(slog.String("component", "accounts")),
		cfg:    cfg,
	}
}

var errBadCredentials = apperror.Authentication("invalid email or password")

// Register creates a pending student account.
func (s *AccountService) Register(ctx context.Context, email, password string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return model.User{}, apperror.Validation("invalid email")
	}
	if len(password) < 6 {
		return model.User{}, apperror.Validation("password must be at least 6 characters")
	}
	if len(password) > 72 {
		return model.User{}, apperror.Validation("password must be at most 72 bytes")
	}
	id, err := s.users.Create(ctx, email, password, model.RoleStudent, model.AccountPending, s.cfg.BcryptCost)
	if err != nil {
		return model.User{}, err
	}
	s.logger.Info("account registered", slog.Uint64("user_id", id))
	return s.users.GetByID(ctx, id)
}

// Login checks credentials and issues tokens to approved accounts.
func (s *AccountService) Login(ctx context.Context, email, password string) (Tokens, model.User, error) {
	u, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, apperror.ErrNotFound) {
		return Tokens{}, model.User{}, errBadCredentials
	}
	if err != nil {
		return Tokens{}, model.User{}, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return Tokens{}, model.User{}, errBadCredentials
	}
	if err := approved(u); err != nil {
		return Tokens{}, model.User{}, err
	}
	t, err := s.issue(ctx, u)
	return t, u, err
}

func approved(u model.User) error {
	switch u.Status {
	case model.AccountApproved:
		return nil
	case model.AccountRejected:
		return apperror.Forbidden("account was rejected")
	default:
		return apperror.Forbidden("account is awaiting approval")
	}
}

func (s *AccountService) issue(ctx context.Context, u model.User) (Tokens, error) {
	now := s.clock.Now()
	access, err := utils.NewAccessToken(s.cfg.JWTSecret, u.ID, string(u.Role), string(u.Status), s.cfg.AccessTTL, now)
	if err != nil {
		return Tokens{}, err
	}
	refresh, err := utils.NewRefreshToken(s.cfg.RefreshTTL, now)
	if err != nil {
		return Tokens{}, err
	}
	if err := s.tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return Tokens{}, err
	}
	return Tokens{
		AccessToken:  access.Token,
		AccessExp:    access.Exp,
		RefreshToken: refresh.Raw,
		RefreshExp:   refresh.Exp,
	}, nil
}

// Refresh rotates a refresh token.  The old token is revoked.
func (s *AccountService) Refresh(ctx context.Context, raw string) (Tokens, error) {
	if raw == "" {
		return Tokens{}, apperror.Validation("refresh token is required")
	}
	hash := utils.HashRefreshRaw(raw)
	uid, err := s.tokens.ValidateRefresh(ctx, hash, s.clock.Now())
	if errors.Is(err, apperror.ErrNotFound) {
		return Tokens{}, apperror.Authentication("invalid refresh token")
	}
	if err != nil {
		return Tokens{}, err
	}
	u, err := s.users.GetByID(ctx, uid)
	if err != nil {
		return Tokens{}, err
	}
	if err := approved(u); err != nil {
		return Tokens{}, err
	}
	if err := s.tokens.RevokeByHash(ctx, hash); err != nil {
		return Tokens{}, err
	}
	return s.issue(ctx, u)
}

// Logout revokes a refresh token.  Unknown tokens are ignored.
func (s *AccountService) Logout(ctx context.Context, raw string) error {
	if raw == "" {
		return apperror.Validation("refresh token is required")
	}
	return s.tokens.RevokeByHash(ctx, utils.HashRefreshRaw(raw))
}

func (s *AccountService) Get(ctx context.Context, id uint64) (model.User, error) {
	return s.users.GetByID(ctx, id)
}

// List returns accounts in status (all when empty).
func (s *AccountService) List(ctx context.Context, status model.AccountStatus) ([]model.User, error) {
	return s.users.Query(ctx, model.UserFilter{Status: status})
}

// ListPending returns students waiting for approval, oldest first.
func (s *AccountService) ListPending(ctx context.Context) ([]model.User, error) {
	return s.users.Query(ctx, model.UserFilter{Role: model.RoleStudent, Status: model.AccountPending})
}

// Approve is the admin approval of a pending account.
func (s *AccountService) Approve(ctx context.Context, id uint64) (model.User, error) {
	return s.decide(ctx, id, booking.ApproveAccount, queue.AccountApproved)
}

// Reject is the admin rejection of a pending account.  Outstanding
// refresh tokens are revoked.
func (s *AccountService) Reject(ctx context.Context, id uint64) (model.User, error) {
	u, err := s.decide(ctx, id, booking.RejectAccount, queue.AccountRejected)
	if err != nil || u.Status != model.AccountRejected {
		return u, err
	}
	return u, s.tokens.RevokeAllForUser(ctx, id)
}

func (s *AccountService) decide(ctx context.Context, id uint64, fn func(model.User, time.Time) (model.UserPatch, bool), event string) (model.User, error) {
	now := s.clock.Now()
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	patch, ok := fn(u, now)
	if !ok {
		return u, nil
	}
	if err := s.users.BatchUpdate(ctx, []model.UserPatch{patch}); err != nil {
		return model.User{}, err
	}
	u = patch.Apply(u)
	s.logger.Info("account "+string(u.Status), slog.Uint64("user_id", u.ID))
	_ = s.events.Publish(context.WithoutCancel(ctx), queue.AccountEvent(event, u, now))
	return u, nil
}
