package local

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/crypto/bcrypt"

	"credara/internal/identity"
	"credara/internal/jwttoken"
	id "credara/pkg/domain"
	dErrors "credara/pkg/domain-errors"
	"credara/pkg/platform/sentinel"
	"credara/pkg/requestcontext"
)

const (
	minPasswordLength = 8
	defaultSessionTTL = 24 * time.Hour
	authCodeLength    = 32
	authCodeTTL       = 15 * time.Minute
)

// ResetSender delivers the password-reset link. Email delivery is a
// deployment concern; when no sender is configured the provider only logs
// that a link was issued.
type ResetSender interface {
	SendPasswordReset(ctx context.Context, email, link string) error
}

// Provider implements identity.Provider with local credentials. Wrong-login
// and wrong-password failures are indistinguishable to callers so the sign-in
// endpoint cannot be used to enumerate accounts.
type Provider struct {
	accounts   AccountStore
	sessions   SessionStore
	jwt        *jwttoken.JWTService
	sessionTTL time.Duration
	bcryptCost int
	logger     *slog.Logger
	reset      ResetSender

	// Authorization codes are process-local. A multi-instance deployment
	// should swap in a hosted provider instead.
	codeMu sync.Mutex
	codes  map[string]authCode
}

type authCode struct {
	userID    id.ProfileID
	expiresAt time.Time
}

type Option func(*Provider)

func WithSessionTTL(ttl time.Duration) Option {
	return func(p *Provider) {
		if ttl > 0 {
			p.sessionTTL = ttl
		}
	}
}

func WithBcryptCost(cost int) Option {
	return func(p *Provider) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			p.bcryptCost = cost
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithResetSender(sender ResetSender) Option {
	return func(p *Provider) {
		p.reset = sender
	}
}

func New(accounts AccountStore, sessions SessionStore, jwt *jwttoken.JWTService, opts ...Option) *Provider {
	p := &Provider{
		accounts:   accounts,
		sessions:   sessions,
		jwt:        jwt,
		sessionTTL: defaultSessionTTL,
		bcryptCost: bcrypt.DefaultCost,
		logger:     slog.Default(),
		codes:      make(map[string]authCode),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

func (p *Provider) SignUp(ctx context.Context, phone string, email *string, password string) (*identity.Identity, error) {
	fields := map[string]string{}
	phone = strings.TrimSpace(phone)
	if phone == "" {
		fields["phone"] = "phone is required"
	}
	if len(password) < minPasswordLength {
		fields["password"] = "password must be at least 8 characters"
	}
	if len(fields) > 0 {
		return nil, dErrors.NewValidation(fields)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.bcryptCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}

	now := requestcontext.Now(ctx)
	account := &Account{
		ID:           id.ProfileID(uuid.New()),
		Phone:        phone,
		Email:        normalizeEmail(email),
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := p.accounts.Insert(ctx, account); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "an account with this phone or email already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create account")
	}

	p.logger.InfoContext(ctx, "account created", "user_id", account.ID.String())
	return &identity.Identity{UserID: account.ID, Phone: account.Phone, Email: account.Email}, nil
}

func (p *Provider) SignIn(ctx context.Context, login, password string) (*identity.Identity, *identity.Tokens, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}

	account, err := p.accounts.FindByLogin(ctx, login)
	if errors.Is(err, sentinel.ErrNotFound) {
		// Burn a comparison anyway so missing accounts cost the same as
		// wrong passwords.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up account")
	}
	if err := bcrypt.CompareHashAndPassword(account.PasswordHash, []byte(password)); err != nil {
		return nil, nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}

	return p.openSession(ctx, account)
}

// ExchangeAuthorizationCode redeems a one-time code minted by ResetPassword
// for a full session. The code is consumed whether or not the exchange
// succeeds past the lookup.
func (p *Provider) ExchangeAuthorizationCode(ctx context.Context, code string) (*identity.Identity, *identity.Tokens, error) {
	now := requestcontext.Now(ctx)

	p.codeMu.Lock()
	grant, ok := p.codes[code]
	delete(p.codes, code)
	p.codeMu.Unlock()
	if code == "" || !ok || now.After(grant.expiresAt) {
		return nil, nil, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired authorization code")
	}

	account, err := p.accounts.FindByID(ctx, grant.userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil, dErrors.New(dErrors.CodeUnauthorized, "account no longer exists")
	}
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up account")
	}
	return p.openSession(ctx, account)
}

// ResetPassword mints a one-time authorization code and hands the reset link
// to the configured sender. An unknown email succeeds silently so the
// endpoint cannot be used to enumerate accounts.
func (p *Provider) ResetPassword(ctx context.Context, email, redirectURL string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return dErrors.NewValidation(map[string]string{"email": "email is required"})
	}
	base, err := url.Parse(redirectURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return dErrors.NewValidation(map[string]string{"redirect_url": "redirect url must be absolute"})
	}

	account, err := p.accounts.FindByLogin(ctx, email)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up account")
	}

	code, err := gonanoid.New(authCodeLength)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate authorization code")
	}
	now := requestcontext.Now(ctx)
	p.codeMu.Lock()
	p.codes[code] = authCode{userID: account.ID, expiresAt: now.Add(authCodeTTL)}
	p.codeMu.Unlock()

	query := base.Query()
	query.Set("code", code)
	base.RawQuery = query.Encode()

	if p.reset == nil {
		p.logger.InfoContext(ctx, "password reset link issued", "user_id", account.ID.String())
		return nil
	}
	if err := p.reset.SendPasswordReset(ctx, email, base.String()); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to send reset link")
	}
	return nil
}

func (p *Provider) openSession(ctx context.Context, account *Account) (*identity.Identity, *identity.Tokens, error) {
	now := requestcontext.Now(ctx)
	session := &Session{
		ID:        id.NewSessionID(),
		UserID:    account.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(p.sessionTTL),
	}
	if err := p.sessions.Create(ctx, session); err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create session")
	}

	token, err := p.jwt.GenerateAccessToken(uuid.UUID(account.ID), uuid.UUID(session.ID), "", p.sessionTTL)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}

	p.logger.InfoContext(ctx, "session created",
		"user_id", account.ID.String(), "session_id", session.ID.String())
	ident := &identity.Identity{UserID: account.ID, Phone: account.Phone, Email: account.Email}
	return ident, &identity.Tokens{AccessToken: token, SessionID: session.ID, ExpiresAt: session.ExpiresAt}, nil
}

func (p *Provider) Authenticate(ctx context.Context, accessToken string) (*identity.Identity, error) {
	session, err := p.resolveSession(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	account, err := p.accounts.FindByID(ctx, session.UserID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "account no longer exists")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up account")
	}
	return &identity.Identity{UserID: account.ID, Phone: account.Phone, Email: account.Email}, nil
}

func (p *Provider) SignOut(ctx context.Context, accessToken string) error {
	session, err := p.resolveSession(ctx, accessToken)
	if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
		// Dead token, dead session: nothing to revoke.
		return nil
	}
	if err != nil {
		return err
	}
	if err := p.sessions.Revoke(ctx, session.ID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke session")
	}
	return nil
}

func (p *Provider) UpdatePassword(ctx context.Context, userID id.ProfileID, currentPassword, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return dErrors.NewValidation(map[string]string{
			"new_password": "password must be at least 8 characters",
		})
	}

	account, err := p.accounts.FindByID(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeUnauthorized, "account no longer exists")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up account")
	}
	if err := bcrypt.CompareHashAndPassword(account.PasswordHash, []byte(currentPassword)); err != nil {
		return dErrors.New(dErrors.CodeUnauthorized, "current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), p.bcryptCost)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}
	now := requestcontext.Now(ctx)
	if err := p.accounts.UpdatePasswordHash(ctx, userID, hash, now); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update password")
	}
	if err := p.sessions.RevokeAllForUser(ctx, userID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke sessions")
	}
	p.logger.InfoContext(ctx, "password updated", "user_id", userID.String())
	return nil
}

func (p *Provider) resolveSession(ctx context.Context, accessToken string) (*Session, error) {
	if accessToken == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing access token")
	}
	claims, err := p.jwt.ValidateToken(accessToken)
	if err != nil {
		return nil, err
	}
	sessionUUID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	session, err := p.sessions.Find(ctx, id.SessionID(sessionUUID))
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "session expired or revoked")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up session")
	}
	return session, nil
}

func normalizeEmail(email *string) *string {
	if email == nil {
		return nil
	}
	trimmed := strings.ToLower(strings.TrimSpace(*email))
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// dummyHash keeps sign-in timing uniform for unknown logins.
var dummyHash = func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte("credara-dummy-password"), bcrypt.MinCost)
	return h
}()
