package model

import (
	"fmt"
	"math"
	"time"
)

// Pricing constants for the economics ledger. Labor figures approximate what
// an SDR would spend doing the same verification by hand; billed rates drive
// the simulated outcome-based invoice.
const (
	HumanHourlyRateUSD           = 30.0
	MinutesPerVerification       = 5.0
	MinutesPerReplacementSearch  = 15.0
	BilledRatePerVerificationUSD = 0.10
	BilledRatePerReplacementUSD  = 2.50
)

// roiSentinel is reported when the total cost rounds below a micro-dollar:
// the free tier was sufficient and a division would only report float noise.
const roiSentinel = 999999.0

// LedgerEntry tracks the monetary and token cost of verifying one contact,
// plus what the verification accomplished. Immutable once the decision engine
// returns it.
type LedgerEntry struct {
	ContactID string `json:"contact_id"`

	EmailValidationCostUSD float64 `json:"email_validation_cost_usd"`
	ResearchCostUSD        float64 `json:"research_cost_usd"`
	TokensUsed             int     `json:"tokens_used"`

	Verified         bool `json:"verified"`
	ReplacementFound bool `json:"replacement_found"`
	FlaggedForReview bool `json:"flagged_for_review"`

	HighestTier int `json:"highest_tier"`
}

// TotalCostUSD sums the per-signal costs, rounded to 6 decimal places.
func (e LedgerEntry) TotalCostUSD() float64 {
	return roundTo(e.EmailValidationCostUSD+e.ResearchCostUSD, 6)
}

// LaborHoursSaved is the human-equivalent time this verification replaced.
func (e LedgerEntry) LaborHoursSaved() float64 {
	minutes := MinutesPerVerification
	if e.ReplacementFound {
		minutes += MinutesPerReplacementSearch
	}
	return roundTo(minutes/60.0, 4)
}

// ValueGeneratedUSD converts saved hours into dollars at the SDR rate.
func (e LedgerEntry) ValueGeneratedUSD() float64 {
	return roundTo(e.LaborHoursSaved()*HumanHourlyRateUSD, 4)
}

// NetROIPercent is ((value - cost) / cost) * 100, or the 999999 sentinel when
// the cost rounds below 1e-6.
func (e LedgerEntry) NetROIPercent() float64 {
	cost := e.TotalCostUSD()
	if cost < 0.000001 {
		return roiSentinel
	}
	return roundTo((e.ValueGeneratedUSD()-cost)/cost*100, 2)
}

// Receipt aggregates the ledger entries of a completed batch run into a
// single auditable economic record.
type Receipt struct {
	BatchID string    `json:"batch_id"`
	RunAt   time.Time `json:"run_at"`

	ContactsProcessed      int `json:"contacts_processed"`
	ContactsVerifiedActive int `json:"contacts_verified_active"`
	ContactsMarkedInactive int `json:"contacts_marked_inactive"`
	ReplacementsFound      int `json:"replacements_found"`
	FlaggedForReview       int `json:"flagged_for_review"`

	TotalCostUSD           float64 `json:"total_cost_usd"`
	TotalTokensUsed        int     `json:"total_tokens_used"`
	TotalLaborHoursSaved   float64 `json:"total_labor_hours_saved"`
	TotalValueGeneratedUSD float64 `json:"total_value_generated_usd"`

	SimulatedInvoiceUSD float64 `json:"simulated_invoice_usd"`
}

// NetROIPercent applies the same sentinel rule as LedgerEntry.
func (r Receipt) NetROIPercent() float64 {
	if r.TotalCostUSD < 0.000001 {
		return roiSentinel
	}
	return roundTo((r.TotalValueGeneratedUSD-r.TotalCostUSD)/r.TotalCostUSD*100, 2)
}

// CostPerContactUSD returns 0 when no contacts were processed.
func (r Receipt) CostPerContactUSD() float64 {
	if r.ContactsProcessed == 0 {
		return 0
	}
	return roundTo(r.TotalCostUSD/float64(r.ContactsProcessed), 6)
}

// CostPerReplacementUSD returns 0 when no replacements were found.
func (r Receipt) CostPerReplacementUSD() float64 {
	if r.ReplacementsFound == 0 {
		return 0
	}
	return roundTo(r.TotalCostUSD/float64(r.ReplacementsFound), 6)
}

// Summary renders the one-line receipt shown after each batch run.
func (r Receipt) Summary() string {
	return fmt.Sprintf(
		"Batch Complete: %d Contacts Processed. %d Replacements Found. "+
			"Total API Cost: $%.4f. SDR Time Saved: %.1f hours. "+
			"Estimated Value Generated: $%.2f. Net ROI for this run: +%.0f%%.",
		r.ContactsProcessed, r.ReplacementsFound, r.TotalCostUSD,
		r.TotalLaborHoursSaved, r.TotalValueGeneratedUSD, r.NetROIPercent(),
	)
}

func roundTo(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
