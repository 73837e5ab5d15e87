package verify

import (
	"math"
	"time"

	"github.com/sells-group/prospectkeeper/internal/model"
)

// BuildReceipt folds a batch's verdicts into an economic receipt. Pure: no
// I/O, no clock beyond the stamped run time, deterministic for a given input.
func BuildReceipt(batchID string, verdicts []model.Verdict) model.Receipt {
	r := model.Receipt{
		BatchID: batchID,
		RunAt:   time.Now().UTC(),
	}

	var cost, hours, value float64
	for _, v := range verdicts {
		e := v.Ledger
		r.ContactsProcessed++
		cost += e.TotalCostUSD()
		r.TotalTokensUsed += e.TokensUsed
		hours += e.LaborHoursSaved()
		value += e.ValueGeneratedUSD()

		if e.FlaggedForReview {
			r.FlaggedForReview++
		}
		switch {
		case e.ReplacementFound:
			r.ReplacementsFound++
			// Counted only on the replacement branch; hard-bounce retirements
			// report through the verified counter.
			r.ContactsMarkedInactive++
		case e.Verified:
			r.ContactsVerifiedActive++
		}
	}

	r.TotalCostUSD = roundTo(cost, 6)
	r.TotalLaborHoursSaved = roundTo(hours, 2)
	r.TotalValueGeneratedUSD = roundTo(value, 2)
	r.SimulatedInvoiceUSD = roundTo(
		float64(r.ContactsProcessed)*model.BilledRatePerVerificationUSD+
			float64(r.ReplacementsFound)*model.BilledRatePerReplacementUSD, 2)
	return r
}

func roundTo(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
