package local

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"credara/internal/jwttoken"
	dErrors "credara/pkg/domain-errors"
)

type ProviderSuite struct {
	suite.Suite
	ctx      context.Context
	provider *Provider
	sessions *InMemorySessions
}

func TestProviderSuite(t *testing.T) {
	suite.Run(t, new(ProviderSuite))
}

func (s *ProviderSuite) SetupTest() {
	s.ctx = context.Background()
	s.sessions = NewInMemorySessions()
	jwt := jwttoken.NewJWTService("test-signing-key", "credara-test", "credara-test")
	s.provider = New(NewInMemoryAccounts(), s.sessions, jwt,
		WithBcryptCost(bcrypt.MinCost),
	)
}

func strP(v string) *string { return &v }

func (s *ProviderSuite) signUp(phone, email string) string {
	e := email
	ident, err := s.provider.SignUp(s.ctx, phone, &e, "correct-horse-battery")
	s.Require().NoError(err)
	s.Require().NotNil(ident)
	return ident.UserID.String()
}

func (s *ProviderSuite) TestSignUp() {
	s.Run("creates an account", func() {
		e := "Ada@Example.COM "
		ident, err := s.provider.SignUp(s.ctx, "+2348012345678", &e, "correct-horse-battery")
		s.Require().NoError(err)
		s.Require().NotNil(ident.Email)
		s.Equal("ada@example.com", *ident.Email)
	})

	s.Run("rejects short passwords and missing phone", func() {
		_, err := s.provider.SignUp(s.ctx, "", nil, "short")
		s.Require().True(dErrors.HasCode(err, dErrors.CodeValidation))
		fields := dErrors.FieldsOf(err)
		s.Contains(fields, "phone")
		s.Contains(fields, "password")
	})

	s.Run("duplicate phone conflicts", func() {
		s.signUp("+2348011111111", "a@example.com")
		_, err := s.provider.SignUp(s.ctx, "+2348011111111", nil, "correct-horse-battery")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("duplicate email conflicts", func() {
		s.signUp("+2348022222222", "dup@example.com")
		e := "DUP@example.com"
		_, err := s.provider.SignUp(s.ctx, "+2348033333333", &e, "correct-horse-battery")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *ProviderSuite) TestSignIn() {
	s.signUp("+2348012345678", "ada@example.com")

	s.Run("by phone", func() {
		ident, tokens, err := s.provider.SignIn(s.ctx, "+2348012345678", "correct-horse-battery")
		s.Require().NoError(err)
		s.NotEmpty(tokens.AccessToken)
		s.False(tokens.SessionID.IsNil())
		s.Require().NotNil(ident.Email)
	})

	s.Run("by email, case insensitive", func() {
		_, tokens, err := s.provider.SignIn(s.ctx, "ADA@example.com", "correct-horse-battery")
		s.Require().NoError(err)
		s.NotEmpty(tokens.AccessToken)
	})

	s.Run("wrong password and unknown login look identical", func() {
		_, _, errWrong := s.provider.SignIn(s.ctx, "+2348012345678", "not-the-password")
		_, _, errUnknown := s.provider.SignIn(s.ctx, "+2348099999999", "not-the-password")
		s.Require().True(dErrors.HasCode(errWrong, dErrors.CodeUnauthorized))
		s.Require().True(dErrors.HasCode(errUnknown, dErrors.CodeUnauthorized))
		s.Equal(dErrors.Message(errWrong), dErrors.Message(errUnknown))
	})
}

func (s *ProviderSuite) TestAuthenticate() {
	userID := s.signUp("+2348012345678", "ada@example.com")
	_, tokens, err := s.provider.SignIn(s.ctx, "+2348012345678", "correct-horse-battery")
	s.Require().NoError(err)

	s.Run("valid token resolves the identity", func() {
		ident, err := s.provider.Authenticate(s.ctx, tokens.AccessToken)
		s.Require().NoError(err)
		s.Equal(userID, ident.UserID.String())
	})

	s.Run("garbage token is unauthorized", func() {
		_, err := s.provider.Authenticate(s.ctx, "not.a.jwt")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("revoked session is unauthorized", func() {
		s.Require().NoError(s.sessions.Revoke(s.ctx, tokens.SessionID))
		_, err := s.provider.Authenticate(s.ctx, tokens.AccessToken)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *ProviderSuite) TestSignOut() {
	s.signUp("+2348012345678", "ada@example.com")
	_, tokens, err := s.provider.SignIn(s.ctx, "+2348012345678", "correct-horse-battery")
	s.Require().NoError(err)

	s.Require().NoError(s.provider.SignOut(s.ctx, tokens.AccessToken))

	_, err = s.provider.Authenticate(s.ctx, tokens.AccessToken)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	// Signing out twice, or with a dead token, is a no-op.
	s.NoError(s.provider.SignOut(s.ctx, tokens.AccessToken))
	s.NoError(s.provider.SignOut(s.ctx, "garbage"))
}

func (s *ProviderSuite) TestUpdatePassword() {
	s.signUp("+2348012345678", "ada@example.com")
	ident, tokens, err := s.provider.SignIn(s.ctx, "+2348012345678", "correct-horse-battery")
	s.Require().NoError(err)

	s.Run("wrong current password is unauthorized", func() {
		err := s.provider.UpdatePassword(s.ctx, ident.UserID, "wrong", "a-brand-new-password")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("short new password is rejected", func() {
		err := s.provider.UpdatePassword(s.ctx, ident.UserID, "correct-horse-battery", "short")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("success revokes every session", func() {
		s.Require().NoError(s.provider.UpdatePassword(s.ctx, ident.UserID, "correct-horse-battery", "a-brand-new-password"))

		_, err := s.provider.Authenticate(s.ctx, tokens.AccessToken)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

		_, _, err = s.provider.SignIn(s.ctx, "+2348012345678", "correct-horse-battery")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

		_, _, err = s.provider.SignIn(s.ctx, "+2348012345678", "a-brand-new-password")
		s.NoError(err)
	})
}

type captureSender struct {
	email string
	link  string
}

func (c *captureSender) SendPasswordReset(_ context.Context, email, link string) error {
	c.email = email
	c.link = link
	return nil
}

func (s *ProviderSuite) TestAuthorizationCodeFlow() {
	sender := &captureSender{}
	provider := New(NewInMemoryAccounts(), NewInMemorySessions(),
		jwttoken.NewJWTService("test-signing-key", "credara-test", "credara-test"),
		WithBcryptCost(bcrypt.MinCost),
		WithResetSender(sender),
	)
	ident, err := provider.SignUp(s.ctx, "+2348012345678", strP("ada@example.com"), "correct-horse-battery")
	s.Require().NoError(err)

	s.Run("unknown email is silently accepted", func() {
		s.NoError(provider.ResetPassword(s.ctx, "nobody@example.com", "https://app.example.com/reset"))
		s.Empty(sender.link)
	})

	s.Run("relative redirect url is rejected", func() {
		err := provider.ResetPassword(s.ctx, "ada@example.com", "/reset")
		s.Require().True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Contains(dErrors.FieldsOf(err), "redirect_url")
	})

	s.Run("reset link carries a redeemable code", func() {
		s.Require().NoError(provider.ResetPassword(s.ctx, "Ada@example.com", "https://app.example.com/reset"))
		s.Equal("ada@example.com", sender.email)

		link, err := url.Parse(sender.link)
		s.Require().NoError(err)
		code := link.Query().Get("code")
		s.Require().NotEmpty(code)

		exchanged, tokens, err := provider.ExchangeAuthorizationCode(s.ctx, code)
		s.Require().NoError(err)
		s.Equal(ident.UserID, exchanged.UserID)

		resolved, err := provider.Authenticate(s.ctx, tokens.AccessToken)
		s.Require().NoError(err)
		s.Equal(ident.UserID, resolved.UserID)

		// Codes are single use.
		_, _, err = provider.ExchangeAuthorizationCode(s.ctx, code)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("garbage code is unauthorized", func() {
		_, _, err := provider.ExchangeAuthorizationCode(s.ctx, "not-a-code")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

		_, _, err = provider.ExchangeAuthorizationCode(s.ctx, "")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *ProviderSuite) TestSessionExpiry() {
	short := New(NewInMemoryAccounts(), s.sessions,
		jwttoken.NewJWTService("test-signing-key", "credara-test", "credara-test"),
		WithBcryptCost(bcrypt.MinCost),
		WithSessionTTL(time.Millisecond),
	)
	_, err := short.SignUp(s.ctx, "+2348044444444", nil, "correct-horse-battery")
	s.Require().NoError(err)
	_, tokens, err := short.SignIn(s.ctx, "+2348044444444", "correct-horse-battery")
	s.Require().NoError(err)

	time.Sleep(5 * time.Millisecond)
	_, err = short.Authenticate(s.ctx, tokens.AccessToken)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
