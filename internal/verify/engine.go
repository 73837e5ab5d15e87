// Package verify implements the tiered verification decision engine, the
// batch orchestrator that runs it with bounded concurrency, and the receipt
// aggregator that turns a batch's ledger entries into an economic receipt.
package verify

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospectkeeper/internal/gateway"
	"github.com/sells-group/prospectkeeper/internal/model"
)

// Mode selects the verification ladder for a run.
type Mode string

const (
	// ModeConfirmation is the cheapest path: email gate, then a confirmation
	// email to the contact. No paid signals.
	ModeConfirmation Mode = "confirm"
	// ModeResearch escalates through website, profile, and paid research.
	ModeResearch Mode = "research"
)

// ParseMode validates a mode string from config or flags.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeConfirmation, ModeResearch:
		return Mode(s), nil
	default:
		return "", eris.Errorf("verify: unknown mode %q (want %q or %q)", s, ModeConfirmation, ModeResearch)
	}
}

// Tier numbers recorded in the ledger. Ordered strictly by unit cost.
const (
	tierEmailGate = 1 // deliverability check + confirmation email
	tierBrowse    = 2 // website and profile probes, free
	tierResearch  = 3 // paid AI research
)

// Engine runs the tier-escalation ladder for a single contact. Every gateway
// failure is treated as inconclusive; the engine always returns a verdict.
type Engine struct {
	gw gateway.Set
}

// NewEngine creates a decision engine over the given gateways.
func NewEngine(gw gateway.Set) *Engine {
	return &Engine{gw: gw}
}

// Verify decides whether the contact still holds their recorded role. The
// returned error is always nil from this implementation; the signature admits
// failure so callers can isolate broken Verifier implementations.
func (e *Engine) Verify(ctx context.Context, contact model.Contact, mode Mode) (*model.Verdict, error) {
	log := zap.L().With(
		zap.String("contact", contact.Name),
		zap.String("organization", contact.Organization),
		zap.String("mode", string(mode)),
	)
	log.Info("verify: starting verification")

	entry := model.LedgerEntry{ContactID: contact.ID}
	var evidence []string
	var contextText string

	// Tier 1: email-validity gate. A hard-bounce address is conclusive on its
	// own; it cannot be contradicted by a browsing signal.
	entry.HighestTier = tierEmailGate
	ev, err := e.gw.Email.Validate(ctx, contact.Email)
	if err != nil {
		log.Warn("verify: email validation unavailable", zap.Error(err))
	} else {
		entry.EmailValidationCostUSD += ev.CostUSD
		if ev.DefinitiveNegative() {
			log.Info("verify: email definitively undeliverable",
				zap.String("status", string(ev.Status)))
			entry.Verified = true
			return &model.Verdict{
				ContactID: contact.ID,
				Status:    model.StatusInactive,
				Ledger:    entry,
				Notes:     fmt.Sprintf("Email %s: %s", ev.Status, ev.SubStatus),
			}, nil
		}
	}

	if mode == ModeConfirmation {
		return e.confirmationBranch(ctx, log, contact, entry), nil
	}

	// Tier 2a: the organization's own public site is authoritative for a
	// positive signal.
	entry.HighestTier = tierBrowse
	ws, err := e.gw.Website.FindOnSite(ctx, contact.Name, contact.Organization, contact.OrgWebsite)
	if err != nil {
		log.Warn("verify: website probe failed", zap.Error(err))
	} else if ws.Success {
		if ws.EvidenceURL != "" {
			evidence = append(evidence, ws.EvidenceURL)
		}
		contextText = ws.RawText
		if ws.PersonFound {
			log.Info("verify: confirmed active via public website")
			entry.Verified = true
			return &model.Verdict{
				ContactID:    contact.ID,
				Status:       model.StatusActive,
				Ledger:       entry,
				EvidenceURLs: evidence,
				Notes:        "Confirmed via public website",
			}, nil
		}
	}

	// Tier 2b: social profile. A denial means departure and escalates to
	// research so a replacement can be looked for; it never concludes alone.
	departedPerProfile := false
	pr, err := e.gw.Profile.VerifyEmployment(ctx, contact.Name, contact.Organization, contact.ProfileURL)
	switch {
	case err != nil:
		log.Warn("verify: profile probe failed", zap.Error(err))
	case !pr.Success || pr.Blocked:
		log.Info("verify: profile probe inconclusive", zap.Bool("blocked", pr.Blocked))
	case pr.StillEmployed == gateway.Confirmed:
		log.Info("verify: confirmed active via profile")
		if pr.ProfileURL != "" {
			evidence = append(evidence, pr.ProfileURL)
		}
		entry.Verified = true
		return &model.Verdict{
			ContactID:    contact.ID,
			Status:       model.StatusActive,
			Ledger:       entry,
			EvidenceURLs: evidence,
			Notes:        "Confirmed current employment via profile",
		}, nil
	case pr.StillEmployed == gateway.Denied:
		log.Info("verify: profile indicates departure, escalating for replacement search")
		departedPerProfile = true
	}

	// Tier 3: paid research. Cost and tokens are billed whatever the outcome.
	log.Info("verify: escalating to research")
	entry.HighestTier = tierResearch
	rr, err := e.gw.Research.Research(ctx, gateway.ResearchRequest{
		Name:         contact.Name,
		Organization: contact.Organization,
		Title:        contact.Title,
		ContextText:  contextText,
	})
	if err != nil {
		log.Warn("verify: research call failed", zap.Error(err))
	} else {
		entry.ResearchCostUSD += rr.CostUSD
		entry.TokensUsed += rr.TotalTokens()
		evidence = append(evidence, rr.EvidenceURLs...)

		if rr.Success {
			switch rr.StillActive {
			case gateway.Confirmed:
				log.Info("verify: confirmed active via research")
				entry.Verified = true
				return &model.Verdict{
					ContactID:           contact.ID,
					Status:              model.StatusActive,
					Ledger:              entry,
					CurrentOrganization: rr.CurrentOrganization,
					EvidenceURLs:        evidence,
					Notes:               "Confirmed active via AI research",
				}, nil
			case gateway.Denied:
				entry.ReplacementFound = rr.ReplacementName != ""
				notes := "Departed, no replacement found"
				if entry.ReplacementFound {
					notes = "Departed, replacement identified via AI research"
				}
				log.Info("verify: departure confirmed via research",
					zap.Bool("replacement_found", entry.ReplacementFound))
				return &model.Verdict{
					ContactID:        contact.ID,
					Status:           model.StatusInactive,
					Ledger:           entry,
					ReplacementName:  rr.ReplacementName,
					ReplacementEmail: rr.ReplacementEmail,
					ReplacementTitle: rr.ReplacementTitle,
					EvidenceURLs:     evidence,
					Notes:            notes,
				}, nil
			}
			// Explicitly unresolved: fall through to exhaustion.
		}
	}

	log.Warn("verify: all signals exhausted, flagging for review",
		zap.Bool("profile_reported_departure", departedPerProfile))
	entry.FlaggedForReview = true
	return &model.Verdict{
		ContactID:     contact.ID,
		Status:        model.StatusUnknown,
		Ledger:        entry,
		LowConfidence: true,
		EvidenceURLs:  evidence,
		Notes:         "All verification signals exhausted, requires human review",
	}, nil
}

// confirmationBranch is the cheapest possible path: ask the contact directly
// and wait for the inbound pipeline to process the reply.
func (e *Engine) confirmationBranch(ctx context.Context, log *zap.Logger, contact model.Contact, entry model.LedgerEntry) *model.Verdict {
	sr, err := e.gw.Confirm.SendConfirmation(ctx, contact)
	if err != nil || !sr.Success {
		if err != nil {
			log.Warn("verify: confirmation email failed", zap.Error(err))
		}
		entry.FlaggedForReview = true
		return &model.Verdict{
			ContactID:     contact.ID,
			Status:        model.StatusUnknown,
			Ledger:        entry,
			LowConfidence: true,
			Notes:         "Failed to send confirmation email",
		}
	}

	log.Info("verify: confirmation email sent", zap.String("email", sr.Email))
	return &model.Verdict{
		ContactID: contact.ID,
		Status:    model.StatusPendingConfirmation,
		Ledger:    entry,
		Notes:     fmt.Sprintf("Confirmation email sent: 'Are you still reachable at %s?'", contact.Email),
	}
}
