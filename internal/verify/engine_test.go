package verify

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospectkeeper/internal/gateway"
	"github.com/sells-group/prospectkeeper/internal/model"
)

type stubEmail struct {
	res   gateway.EmailValidationResult
	err   error
	calls int
}

func (s *stubEmail) Validate(_ context.Context, _ string) (gateway.EmailValidationResult, error) {
	s.calls++
	return s.res, s.err
}

type stubWebsite struct {
	res   gateway.WebsiteResult
	err   error
	calls int
}

func (s *stubWebsite) FindOnSite(_ context.Context, _, _, _ string) (gateway.WebsiteResult, error) {
	s.calls++
	return s.res, s.err
}

type stubProfile struct {
	res   gateway.ProfileResult
	err   error
	calls int
}

func (s *stubProfile) VerifyEmployment(_ context.Context, _, _, _ string) (gateway.ProfileResult, error) {
	s.calls++
	return s.res, s.err
}

type stubResearch struct {
	res     gateway.ResearchResult
	err     error
	calls   int
	lastReq gateway.ResearchRequest
}

func (s *stubResearch) Research(_ context.Context, req gateway.ResearchRequest) (gateway.ResearchResult, error) {
	s.calls++
	s.lastReq = req
	return s.res, s.err
}

type stubConfirm struct {
	res   gateway.SendResult
	err   error
	calls int
}

func (s *stubConfirm) SendConfirmation(_ context.Context, c model.Contact) (gateway.SendResult, error) {
	s.calls++
	return s.res, s.err
}

type stubs struct {
	email    *stubEmail
	website  *stubWebsite
	profile  *stubProfile
	research *stubResearch
	confirm  *stubConfirm
}

func newStubs() *stubs {
	return &stubs{
		email:    &stubEmail{res: gateway.EmailValidationResult{Status: gateway.EmailValid, Valid: true, CostUSD: 0.004}},
		website:  &stubWebsite{},
		profile:  &stubProfile{},
		research: &stubResearch{},
		confirm:  &stubConfirm{res: gateway.SendResult{Success: true, Email: "jane@acme.test"}},
	}
}

func (s *stubs) set() gateway.Set {
	return gateway.Set{
		Email:    s.email,
		Website:  s.website,
		Profile:  s.profile,
		Research: s.research,
		Confirm:  s.confirm,
	}
}

func testContact() model.Contact {
	c := model.NewContact("Jane Doe", "jane@acme.test", "VP Engineering", "Acme Corp")
	c.OrgWebsite = "https://acme.test"
	return c
}

func TestEngine_DefinitiveBounceShortCircuits(t *testing.T) {
	for _, status := range []gateway.EmailStatus{
		gateway.EmailInvalid,
		gateway.EmailSpamtrap,
		gateway.EmailAbuse,
		gateway.EmailDoNotMail,
	} {
		t.Run(string(status), func(t *testing.T) {
			s := newStubs()
			s.email.res = gateway.EmailValidationResult{
				Status: status, SubStatus: "mailbox_not_found", Valid: false, CostUSD: 0.004,
			}

			v, err := NewEngine(s.set()).Verify(context.Background(), testContact(), ModeResearch)
			require.NoError(t, err)

			assert.Equal(t, model.StatusInactive, v.Status)
			assert.True(t, v.Ledger.Verified)
			assert.False(t, v.Ledger.ReplacementFound)
			assert.Equal(t, 1, v.Ledger.HighestTier)
			assert.Equal(t, 0.004, v.Ledger.TotalCostUSD())
			assert.Contains(t, v.Notes, string(status))

			// No other gateway may be consulted after a hard bounce.
			assert.Zero(t, s.website.calls)
			assert.Zero(t, s.profile.calls)
			assert.Zero(t, s.research.calls)
			assert.Zero(t, s.confirm.calls)
		})
	}
}

func TestEngine_AmbiguousEmailEscalates(t *testing.T) {
	for _, status := range []gateway.EmailStatus{gateway.EmailCatchAll, gateway.EmailUnknown} {
		t.Run(string(status), func(t *testing.T) {
			s := newStubs()
			s.email.res = gateway.EmailValidationResult{Status: status, Valid: false, CostUSD: 0.004}
			s.website.res = gateway.WebsiteResult{Success: true, PersonFound: true, EvidenceURL: "https://acme.test/team"}

			v, err := NewEngine(s.set()).Verify(context.Background(), testContact(), ModeResearch)
			require.NoError(t, err)

			assert.Equal(t, 1, s.website.calls)
			assert.Equal(t, model.StatusActive, v.Status)
		})
	}
}

func TestEngine_WebsiteHitStopsEscalation(t *testing.T) {
	s := newStubs()
	s.website.res = gateway.WebsiteResult{
		Success: true, PersonFound: true,
		EvidenceURL: "https://acme.test/team", RawText: "Jane Doe, VP Engineering",
	}

	v, err := NewEngine(s.set()).Verify(context.Background(), testContact(), ModeResearch)
	require.NoError(t, err)

	assert.Equal(t, model.StatusActive, v.Status)
	assert.True(t, v.Ledger.Verified)
	assert.Equal(t, 2, v.Ledger.HighestTier)
	assert.Equal(t, []string{"https://acme.test/team"}, v.EvidenceURLs)
	assert.Zero(t, s.profile.calls)
	assert.Zero(t, s.research.calls)
	// Only the email gate costs money on this path.
	assert.Equal(t, 0.004, v.Ledger.TotalCostUSD())
}

func TestEngine_ProfileConfirmsEmployment(t *testing.T) {
	s := newStubs()
	s.website.res = gateway.WebsiteResult{Success: true, PersonFound: false}
	s.profile.res = gateway.ProfileResult{
		Success: true, StillEmployed: gateway.Confirmed,
		ProfileURL: "https://profiles.test/janedoe",
	}

	v, err := NewEngine(s.set()).Verify(context.Background(), testContact(), ModeResearch)
	require.NoError(t, err)

	assert.Equal(t, model.StatusActive, v.Status)
	assert.True(t, v.Ledger.Verified)
	assert.Equal(t, 2, v.Ledger.HighestTier)
	assert.Contains(t, v.EvidenceURLs, "https://profiles.test/janedoe")
	assert.Zero(t, s.research.calls)
}

func TestEngine_ProfileDenialEscalatesToResearch(t *testing.T) {
	s := newStubs()
	s.profile.res = gateway.ProfileResult{Success: true, StillEmployed: gateway.Denied}
	s.research.res = gateway.ResearchResult{
		Success: true, StillActive: gateway.Denied,
		ReplacementName: "John Smith", ReplacementEmail: "john@acme.test", ReplacementTitle: "VP Engineering",
		TokensInput: 1200, TokensOutput: 400, CostUSD: 0.05,
		EvidenceURLs: []string{"https://news.test/acme-hire"},
	}

	v, err := NewEngine(s.set()).Verify(context.Background(), testContact(), ModeResearch)
	require.NoError(t, err)

	assert.Equal(t, 1, s.research.calls)
	assert.Equal(t, model.StatusInactive, v.Status)
	assert.True(t, v.Ledger.ReplacementFound)
	assert.Equal(t, 3, v.Ledger.HighestTier)
	assert.Equal(t, 1600, v.Ledger.TokensUsed)
	assert.InDelta(t, 0.054, v.Ledger.TotalCostUSD(), 1e-9)
	assert.True(t, v.HasReplacement())
	assert.Equal(t, "John Smith", v.ReplacementName)
}

func TestEngine_WebsiteContextForwardedToResearch(t *testing.T) {
	s := newStubs()
	s.website.res = gateway.WebsiteResult{Success: true, PersonFound: false, RawText: "team page text"}
	s.research.res = gateway.ResearchResult{Success: true, StillActive: gateway.Confirmed, CostUSD: 0.03}

	v, err := NewEngine(s.set()).Verify(context.Background(), testContact(), ModeResearch)
	require.NoError(t, err)

	assert.Equal(t, "team page text", s.research.lastReq.ContextText)
	assert.Equal(t, model.StatusActive, v.Status)
	assert.True(t, v.Ledger.Verified)
}

func TestEngine_ResearchDeniedWithoutReplacement(t *testing.T) {
	s := newStubs()
	s.research.res = gateway.ResearchResult{Success: true, StillActive: gateway.Denied, CostUSD: 0.04}

	v, err := NewEngine(s.set()).Verify(context.Background(), testContact(), ModeResearch)
	require.NoError(t, err)

	assert.Equal(t, model.StatusInactive, v.Status)
	assert.False(t, v.Ledger.ReplacementFound)
	assert.False(t, v.HasReplacement())
	assert.Contains(t, v.Notes, "no replacement")
}

func TestEngine_ExhaustionFlagsForReview(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*stubs)
	}{
		{"research inconclusive", func(s *stubs) {
			s.research.res = gateway.ResearchResult{Success: true, StillActive: gateway.Inconclusive, CostUSD: 0.02}
		}},
		{"research unsuccessful", func(s *stubs) {
			s.research.res = gateway.ResearchResult{Success: false, CostUSD: 0.01}
		}},
		{"research transport error", func(s *stubs) {
			s.research.err = eris.New("api unavailable")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStubs()
			tt.setup(s)

			v, err := NewEngine(s.set()).Verify(context.Background(), testContact(), ModeResearch)
			require.NoError(t, err)

			assert.Equal(t, model.StatusUnknown, v.Status)
			assert.True(t, v.LowConfidence)
			assert.True(t, v.Ledger.FlaggedForReview)
			assert.False(t, v.Ledger.Verified)
			assert.Equal(t, 3, v.Ledger.HighestTier)
			assert.True(t, v.NeedsHumanReview())
		})
	}
}

func TestEngine_ResearchBilledEvenWhenInconclusive(t *testing.T) {
	s := newStubs()
	s.research.res = gateway.ResearchResult{
		Success: true, StillActive: gateway.Inconclusive,
		TokensInput: 900, TokensOutput: 300, CostUSD: 0.02,
	}

	v, err := NewEngine(s.set()).Verify(context.Background(), testContact(), ModeResearch)
	require.NoError(t, err)

	assert.InDelta(t, 0.024, v.Ledger.TotalCostUSD(), 1e-9)
	assert.Equal(t, 1200, v.Ledger.TokensUsed)
}

func TestEngine_ResearchErrorNotBilled(t *testing.T) {
	s := newStubs()
	s.research.err = eris.New("timeout")

	v, err := NewEngine(s.set()).Verify(context.Background(), testContact(), ModeResearch)
	require.NoError(t, err)

	assert.Equal(t, 0.004, v.Ledger.TotalCostUSD())
	assert.Zero(t, v.Ledger.TokensUsed)
}

func TestEngine_EmailValidatorErrorEscalates(t *testing.T) {
	s := newStubs()
	s.email.err = eris.New("credits exhausted")
	s.website.res = gateway.WebsiteResult{Success: true, PersonFound: true}

	v, err := NewEngine(s.set()).Verify(context.Background(), testContact(), ModeResearch)
	require.NoError(t, err)

	assert.Equal(t, model.StatusActive, v.Status)
	assert.Zero(t, v.Ledger.TotalCostUSD())
}

func TestEngine_ConfirmationMode(t *testing.T) {
	t.Run("sent", func(t *testing.T) {
		s := newStubs()

		v, err := NewEngine(s.set()).Verify(context.Background(), testContact(), ModeConfirmation)
		require.NoError(t, err)

		assert.Equal(t, model.StatusPendingConfirmation, v.Status)
		assert.Equal(t, 1, s.confirm.calls)
		assert.Zero(t, s.website.calls)
		assert.Zero(t, s.research.calls)
		assert.Contains(t, v.Notes, "jane@acme.test")
	})

	t.Run("send failed", func(t *testing.T) {
		s := newStubs()
		s.confirm.err = eris.New("smtp rejected")

		v, err := NewEngine(s.set()).Verify(context.Background(), testContact(), ModeConfirmation)
		require.NoError(t, err)

		assert.Equal(t, model.StatusUnknown, v.Status)
		assert.True(t, v.LowConfidence)
		assert.True(t, v.Ledger.FlaggedForReview)
	})

	t.Run("hard bounce still wins", func(t *testing.T) {
		s := newStubs()
		s.email.res = gateway.EmailValidationResult{Status: gateway.EmailInvalid, Valid: false, CostUSD: 0.004}

		v, err := NewEngine(s.set()).Verify(context.Background(), testContact(), ModeConfirmation)
		require.NoError(t, err)

		assert.Equal(t, model.StatusInactive, v.Status)
		assert.Zero(t, s.confirm.calls)
	})
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("research")
	require.NoError(t, err)
	assert.Equal(t, ModeResearch, m)

	m, err = ParseMode("confirm")
	require.NoError(t, err)
	assert.Equal(t, ModeConfirmation, m)

	_, err = ParseMode("yolo")
	require.Error(t, err)
}
