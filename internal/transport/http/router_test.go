package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"credara/internal/adminops"
	auditstore "credara/internal/audit/store"
	"credara/internal/guard"
	"credara/internal/identity/local"
	"credara/internal/jwttoken"
	"credara/internal/onboarding"
	"credara/internal/profile/models"
	profilestore "credara/internal/profile/store"
	"credara/internal/unlock"
	unlockstore "credara/internal/unlock/store"
	id "credara/pkg/domain"
	"credara/pkg/platform/tx"
	"credara/pkg/testutil"
)

type RouterSuite struct {
	suite.Suite
	router     http.Handler
	handler    *Handler
	profiles   *profilestore.InMemory
	provider   *local.Provider
	resetLinks *linkSender
	seq        int
}

type linkSender struct{ link string }

func (l *linkSender) SendPasswordReset(_ context.Context, _, link string) error {
	l.link = link
	return nil
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.profiles = profilestore.NewInMemory()
	ledger := unlockstore.NewInMemory()
	auditLog := auditstore.NewInMemory()
	runner := tx.NewMemoryRunner()
	logger := testutil.DiscardLogger()

	jwt := jwttoken.NewJWTService("test-signing-key", "credara-test", "credara-test")
	s.resetLinks = &linkSender{}
	s.provider = local.New(local.NewInMemoryAccounts(), local.NewInMemorySessions(), jwt,
		local.WithBcryptCost(bcrypt.MinCost),
		local.WithResetSender(s.resetLinks),
	)
	guards := guard.New(s.provider, s.profiles)
	onboardingSvc := onboarding.NewService(s.profiles, onboarding.WithLogger(logger))
	adminSvc := adminops.New(s.profiles, auditLog, runner, adminops.WithLogger(logger))
	unlockSvc := unlock.NewService(s.profiles, ledger, runner, unlock.WithLogger(logger))

	s.handler = NewHandler(s.provider, guards, onboardingSvc, adminSvc, unlockSvc, logger)
	s.router = NewRouter(s.handler)
	s.seq = 0
}

func (s *RouterSuite) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *RouterSuite) decode(rec *httptest.ResponseRecorder, dst any) {
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), dst))
}

func (s *RouterSuite) nextPhone() string {
	s.seq++
	return fmt.Sprintf("+23480123456%02d", s.seq)
}

// signedUpUser creates an account through the API and returns a live token.
func (s *RouterSuite) signedUpUser() (phone, token string) {
	phone = s.nextPhone()
	rec := s.do(http.MethodPost, "/auth/signup", "", map[string]any{
		"phone":    phone,
		"password": "correct-horse-battery",
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/auth/signin", "", map[string]any{
		"login":    phone,
		"password": "correct-horse-battery",
	})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var signin struct {
		Tokens struct {
			AccessToken string `json:"access_token"`
		} `json:"tokens"`
	}
	s.decode(rec, &signin)
	s.Require().NotEmpty(signin.Tokens.AccessToken)
	return phone, signin.Tokens.AccessToken
}

// onboardedUser signs up and completes onboarding with the given user type.
func (s *RouterSuite) onboardedUser(userType string) (id.ProfileID, string) {
	phone, token := s.signedUpUser()
	body := map[string]any{"user_type": userType, "phone": phone}
	if userType != "individual" {
		body["business_name"] = "Test Business"
	}
	rec := s.do(http.MethodPost, "/onboarding", token, body)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var profile struct {
		ID string `json:"id"`
	}
	s.decode(rec, &profile)
	profileID, err := id.ParseProfileID(profile.ID)
	s.Require().NoError(err)
	return profileID, token
}

// adminUser creates an admin directly; admin profiles are never self-service.
func (s *RouterSuite) adminUser() string {
	phone, token := s.signedUpUser()
	ident, err := s.provider.Authenticate(context.Background(), token)
	s.Require().NoError(err)

	credaraID, err := id.NewCredaraID()
	s.Require().NoError(err)
	p, err := models.NewProfile(ident.UserID, models.RoleAdmin, credaraID, phone, nil, nil, nil, time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NoError(s.profiles.Insert(context.Background(), p))
	return token
}

func (s *RouterSuite) TestAuthFlow() {
	phone, token := s.signedUpUser()

	s.Run("duplicate signup conflicts", func() {
		rec := s.do(http.MethodPost, "/auth/signup", "", map[string]any{
			"phone":    phone,
			"password": "correct-horse-battery",
		})
		s.Equal(http.StatusConflict, rec.Code)
	})

	s.Run("me without a profile is forbidden", func() {
		rec := s.do(http.MethodGet, "/me", token, nil)
		s.Require().Equal(http.StatusForbidden, rec.Code)

		var body struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		s.decode(rec, &body)
		s.Equal("forbidden", body.Error)
		s.Equal("onboarding not completed", body.Message)
	})

	s.Run("me without a token is unauthorized", func() {
		rec := s.do(http.MethodGet, "/me", "", nil)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("onboarding then me", func() {
		rec := s.do(http.MethodPost, "/onboarding", token, map[string]any{
			"user_type": "individual",
			"phone":     phone,
		})
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

		rec = s.do(http.MethodGet, "/me", token, nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var me struct {
			Role               string  `json:"role"`
			CredaraID          string  `json:"credara_id"`
			VerificationStatus string  `json:"verification_status"`
			RiskLevel          *string `json:"risk_level"`
		}
		s.decode(rec, &me)
		s.Equal("INDIVIDUAL", me.Role)
		s.NotEmpty(me.CredaraID)
		s.Equal("NOT_STARTED", me.VerificationStatus)
		s.Nil(me.RiskLevel)
	})

	s.Run("signout kills the session", func() {
		rec := s.do(http.MethodPost, "/auth/signout", token, nil)
		s.Require().Equal(http.StatusNoContent, rec.Code)

		rec = s.do(http.MethodGet, "/me", token, nil)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})
}

func (s *RouterSuite) TestValidationErrors() {
	_, token := s.signedUpUser()

	rec := s.do(http.MethodPost, "/onboarding", token, map[string]any{
		"user_type": "bank",
		"phone":     "nope",
	})
	s.Require().Equal(http.StatusBadRequest, rec.Code)

	var body struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	s.decode(rec, &body)
	s.Equal("validation", body.Error)
	s.Contains(body.Fields, "user_type")
	s.Contains(body.Fields, "phone")
}

func (s *RouterSuite) TestInstitutionFlow() {
	adminToken := s.adminUser()
	targetID, _ := s.onboardedUser("individual")
	landlordID, landlordToken := s.onboardedUser("landlord")

	s.Run("individuals cannot reach institution endpoints", func() {
		_, individualToken := s.onboardedUser("individual")
		rec := s.do(http.MethodGet, "/institution/search?q=test", individualToken, nil)
		s.Equal(http.StatusForbidden, rec.Code)
	})

	s.Run("unlock without credits is payment required", func() {
		rec := s.do(http.MethodPost, "/institution/unlocks", landlordToken, map[string]any{
			"target_profile_id": targetID.String(),
		})
		s.Require().Equal(http.StatusPaymentRequired, rec.Code)

		var body struct {
			Error string `json:"error"`
		}
		s.decode(rec, &body)
		s.Equal("insufficient_resource", body.Error)
	})

	s.Run("report before unlock is not found", func() {
		rec := s.do(http.MethodGet, "/institution/reports/"+targetID.String(), landlordToken, nil)
		s.Equal(http.StatusNotFound, rec.Code)
	})

	s.Run("admin tops up, unlock succeeds once", func() {
		rec := s.do(http.MethodPost, "/admin/users/"+landlordID.String()+"/credits", adminToken, map[string]any{
			"amount": 2,
		})
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

		rec = s.do(http.MethodPost, "/institution/unlocks", landlordToken, map[string]any{
			"target_profile_id": targetID.String(),
		})
		s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

		// Repeat is 200, not 201, and charges nothing.
		rec = s.do(http.MethodPost, "/institution/unlocks", landlordToken, map[string]any{
			"target_profile_id": targetID.String(),
		})
		s.Require().Equal(http.StatusOK, rec.Code)

		var result struct {
			Repeat bool `json:"repeat"`
		}
		s.decode(rec, &result)
		s.True(result.Repeat)
	})

	s.Run("unlocked report and history", func() {
		rec := s.do(http.MethodGet, "/institution/reports/"+targetID.String(), landlordToken, nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		rec = s.do(http.MethodGet, "/institution/unlocks", landlordToken, nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var page struct {
			Total int `json:"total"`
		}
		s.decode(rec, &page)
		s.Equal(1, page.Total)
	})

	s.Run("search annotates unlock state", func() {
		rec := s.do(http.MethodGet, "/institution/search?q=crd-", landlordToken, nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var body struct {
			Results []struct {
				ID          string `json:"id"`
				HasUnlocked bool   `json:"has_unlocked"`
			} `json:"results"`
		}
		s.decode(rec, &body)
		s.Require().NotEmpty(body.Results)
		for _, r := range body.Results {
			s.Equal(r.ID == targetID.String(), r.HasUnlocked)
		}
	})
}

func (s *RouterSuite) TestAdminFlow() {
	adminToken := s.adminUser()
	targetID, targetToken := s.onboardedUser("individual")

	s.Run("non-admins are forbidden", func() {
		rec := s.do(http.MethodGet, "/admin/stats", targetToken, nil)
		s.Equal(http.StatusForbidden, rec.Code)
	})

	s.Run("score override clamps and exposes the risk level", func() {
		rec := s.do(http.MethodPost, "/admin/users/"+targetID.String()+"/score", adminToken, map[string]any{
			"trust_score": 150,
		})
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

		var user struct {
			TrustScore int    `json:"trust_score"`
			RiskLevel  string `json:"risk_level"`
		}
		s.decode(rec, &user)
		s.Equal(100, user.TrustScore)
		s.Equal("LOW", user.RiskLevel)
	})

	s.Run("notes are visible to admins but not in self view", func() {
		rec := s.do(http.MethodPut, "/admin/users/"+targetID.String()+"/notes", adminToken, map[string]any{
			"notes": "watch this one",
		})
		s.Require().Equal(http.StatusOK, rec.Code)

		var adminView struct {
			InternalNotes string `json:"internal_notes"`
		}
		s.decode(rec, &adminView)
		s.Equal("watch this one", adminView.InternalNotes)

		rec = s.do(http.MethodGet, "/me", targetToken, nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		s.NotContains(rec.Body.String(), "watch this one")
	})

	s.Run("verification decision lands in the audit trail", func() {
		rec := s.do(http.MethodPost, "/admin/users/"+targetID.String()+"/verification", adminToken, map[string]any{
			"status": "VERIFIED",
		})
		s.Require().Equal(http.StatusOK, rec.Code)

		rec = s.do(http.MethodGet, "/admin/audit-logs?action=VERIFICATION_APPROVE", adminToken, nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var page struct {
			Total   int `json:"total"`
			Entries []struct {
				TargetUserID string `json:"target_user_id"`
			} `json:"entries"`
		}
		s.decode(rec, &page)
		s.Require().Equal(1, page.Total)
		s.Equal(targetID.String(), page.Entries[0].TargetUserID)
	})

	s.Run("stats exclude admin accounts", func() {
		rec := s.do(http.MethodGet, "/admin/stats", adminToken, nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var stats struct {
			TotalUsers  int `json:"total_users"`
			Individuals int `json:"individuals"`
		}
		s.decode(rec, &stats)
		s.Equal(1, stats.TotalUsers)
		s.Equal(1, stats.Individuals)
	})

	s.Run("mutating a missing user is not found", func() {
		rec := s.do(http.MethodPost, "/admin/users/"+id.NewProfileID().String()+"/score", adminToken, map[string]any{
			"trust_score": 50,
		})
		s.Equal(http.StatusNotFound, rec.Code)
	})

	s.Run("malformed user id is a validation error", func() {
		rec := s.do(http.MethodGet, "/admin/users/not-a-uuid", adminToken, nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *RouterSuite) TestPasswordResetFlow() {
	phone := s.nextPhone()
	rec := s.do(http.MethodPost, "/auth/signup", "", map[string]any{
		"phone":    phone,
		"email":    "reset@example.com",
		"password": "correct-horse-battery",
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/auth/reset-password", "", map[string]any{
		"email":        "reset@example.com",
		"redirect_url": "https://app.example.com/reset",
	})
	s.Require().Equal(http.StatusAccepted, rec.Code, rec.Body.String())
	s.Require().NotEmpty(s.resetLinks.link)

	link, err := url.Parse(s.resetLinks.link)
	s.Require().NoError(err)
	code := link.Query().Get("code")
	s.Require().NotEmpty(code)

	rec = s.do(http.MethodPost, "/auth/callback", "", map[string]any{"code": code})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var exchanged struct {
		Tokens struct {
			AccessToken string `json:"access_token"`
		} `json:"tokens"`
	}
	s.decode(rec, &exchanged)
	s.Require().NotEmpty(exchanged.Tokens.AccessToken)

	// The exchanged session is live: /me fails on the missing profile, not on
	// authentication.
	rec = s.do(http.MethodGet, "/me", exchanged.Tokens.AccessToken, nil)
	s.Equal(http.StatusForbidden, rec.Code)

	// Codes are single use.
	rec = s.do(http.MethodPost, "/auth/callback", "", map[string]any{"code": code})
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *RouterSuite) TestSeedEndpoint() {
	s.Run("absent unless enabled", func() {
		rec := s.do(http.MethodPost, "/admin/seed", "", nil)
		s.Equal(http.StatusNotFound, rec.Code)
	})

	s.Run("routes the hook when enabled", func() {
		called := false
		s.handler.EnableSeedEndpoint(func(context.Context) error {
			called = true
			return nil
		})
		router := NewRouter(s.handler)

		req := httptest.NewRequest(http.MethodPost, "/admin/seed", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		s.Equal(http.StatusOK, rec.Code)
		s.True(called)
	})
}

func (s *RouterSuite) TestHealthz() {
	rec := s.do(http.MethodGet, "/healthz", "", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"status":"ok"}`, rec.Body.String())
}
