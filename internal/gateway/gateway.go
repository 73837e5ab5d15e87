// Package gateway defines the capability interfaces for the external signal
// sources the decision engine consults, ordered by unit cost: email validity,
// the organization's public website, the contact's social profile, and paid
// deep research. Concrete adapters live alongside; the engine depends only on
// the interfaces.
package gateway

import (
	"context"

	"github.com/sells-group/prospectkeeper/internal/model"
)

// Determination is a three-valued employment signal. Anything short of an
// explicit confirmation or denial must escalate, so the zero value is
// Inconclusive.
type Determination int

const (
	Inconclusive Determination = iota
	Confirmed
	Denied
)

func (d Determination) String() string {
	switch d {
	case Confirmed:
		return "confirmed"
	case Denied:
		return "denied"
	default:
		return "inconclusive"
	}
}

// EmailStatus is the validator's category for an address.
type EmailStatus string

const (
	EmailValid     EmailStatus = "valid"
	EmailInvalid   EmailStatus = "invalid"
	EmailCatchAll  EmailStatus = "catch-all"
	EmailUnknown   EmailStatus = "unknown"
	EmailSpamtrap  EmailStatus = "spamtrap"
	EmailAbuse     EmailStatus = "abuse"
	EmailDoNotMail EmailStatus = "do-not-mail"
)

// EmailValidationResult is the outcome of a deliverability check.
type EmailValidationResult struct {
	Email     string
	Status    EmailStatus
	SubStatus string
	Valid     bool
	CostUSD   float64
}

// DefinitiveNegative reports whether the status conclusively proves the
// address is unsendable. Catch-all and unknown are ambiguous, not negative.
func (r EmailValidationResult) DefinitiveNegative() bool {
	return !r.Valid && r.Status != EmailCatchAll && r.Status != EmailUnknown
}

// WebsiteResult is the outcome of probing the organization's public site.
type WebsiteResult struct {
	Success      bool
	PersonFound  bool
	CurrentTitle string
	EvidenceURL  string
	// RawText is page context captured for reuse by the research tier.
	RawText string
}

// ProfileResult is the outcome of a social-profile employment check.
type ProfileResult struct {
	Success             bool
	Blocked             bool
	StillEmployed       Determination
	CurrentTitle        string
	CurrentOrganization string
	ProfileURL          string
}

// ResearchRequest carries the contact identity plus any context text gathered
// by cheaper tiers.
type ResearchRequest struct {
	Name         string
	Organization string
	Title        string
	ContextText  string
}

// ResearchResult is the outcome of the paid deep-research tier. Cost and
// tokens are billed regardless of how conclusive the result is.
type ResearchResult struct {
	Success             bool
	StillActive         Determination
	CurrentTitle        string
	CurrentOrganization string

	ReplacementName  string
	ReplacementTitle string
	ReplacementEmail string

	TokensInput  int
	TokensOutput int
	CostUSD      float64
	EvidenceURLs []string
}

// TotalTokens is the combined input and output token count.
func (r ResearchResult) TotalTokens() int {
	return r.TokensInput + r.TokensOutput
}

// SendResult is the outcome of dispatching a confirmation email.
type SendResult struct {
	Success bool
	Email   string
}

// EmailValidator checks address deliverability (tier 1, metered).
type EmailValidator interface {
	Validate(ctx context.Context, email string) (EmailValidationResult, error)
}

// WebsitePresence probes the organization's own public site (free).
type WebsitePresence interface {
	FindOnSite(ctx context.Context, name, organization, website string) (WebsiteResult, error)
}

// ProfileVerifier checks current employment on the contact's social profile
// (free, local compute).
type ProfileVerifier interface {
	VerifyEmployment(ctx context.Context, name, organization, profileURL string) (ProfileResult, error)
}

// Researcher performs paid AI research on the contact (final tier).
type Researcher interface {
	Research(ctx context.Context, req ResearchRequest) (ResearchResult, error)
}

// ConfirmationSender sends an "are you still reachable" email to the contact.
type ConfirmationSender interface {
	SendConfirmation(ctx context.Context, contact model.Contact) (SendResult, error)
}

// Set bundles one implementation of each gateway for injection into the
// decision engine.
type Set struct {
	Email    EmailValidator
	Website  WebsitePresence
	Profile  ProfileVerifier
	Research Researcher
	Confirm  ConfirmationSender
}
