package verify

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/prospectkeeper/internal/model"
	"github.com/sells-group/prospectkeeper/internal/store"
)

// Bounds for worker concurrency. Runs are clamped, never rejected.
const (
	MinConcurrency     = 1
	MaxConcurrency     = 20
	DefaultConcurrency = 5
)

// Verifier produces a verdict for one contact. Satisfied by *Engine.
type Verifier interface {
	Verify(ctx context.Context, contact model.Contact, mode Mode) (*model.Verdict, error)
}

// Result is the outcome of one batch run. Errors holds per-contact failures
// that were isolated from the rest of the run.
type Result struct {
	Receipt  model.Receipt
	Verdicts []model.Verdict
	Errors   []string
}

// Orchestrator fans a set of contacts out over a bounded worker pool, applies
// each verdict to the store, and settles the batch into a receipt. One contact
// failing never aborts the run.
type Orchestrator struct {
	store       store.Store
	verifier    Verifier
	sink        Sink // optional
	concurrency int
}

// NewOrchestrator wires a batch runner. A nil sink disables progress events;
// concurrency is clamped to [1, 20].
func NewOrchestrator(st store.Store, v Verifier, sink Sink, concurrency int) *Orchestrator {
	if concurrency < MinConcurrency {
		concurrency = MinConcurrency
	}
	if concurrency > MaxConcurrency {
		concurrency = MaxConcurrency
	}
	return &Orchestrator{store: st, verifier: v, sink: sink, concurrency: concurrency}
}

// Run verifies the given contacts and persists the outcome. The returned
// error covers orchestration only; per-contact failures land in Result.Errors
// formatted as "{contact_id} ({name}): {error}".
func (o *Orchestrator) Run(ctx context.Context, contacts []model.Contact, mode Mode) (*Result, error) {
	batchID := uuid.NewString()
	log := zap.L().With(zap.String("batch_id", batchID))
	log.Info("batch: starting run",
		zap.Int("contacts", len(contacts)),
		zap.Int("concurrency", o.concurrency),
		zap.String("mode", string(mode)))

	o.publish(Event{Type: EventBatchStart, BatchID: batchID, Total: len(contacts)})

	var (
		mu       sync.Mutex
		verdicts []model.Verdict
		errs     []string
		done     int
	)
	fail := func(c model.Contact, err error) {
		mu.Lock()
		done++
		idx := done
		errs = append(errs, fmt.Sprintf("%s (%s): %v", c.ID, c.Name, err))
		mu.Unlock()
		log.Warn("batch: contact failed", zap.String("contact_id", c.ID), zap.Error(err))
		o.publish(Event{
			Type: EventContactError, BatchID: batchID, Index: idx, Total: len(contacts),
			ContactName: c.Name, Organization: c.Organization, Err: err.Error(),
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for _, contact := range contacts {
		g.Go(func() error {
			o.publish(Event{
				Type: EventContactStart, BatchID: batchID, Total: len(contacts),
				ContactName: contact.Name, Organization: contact.Organization,
			})

			v, err := o.verifier.Verify(gctx, contact, mode)
			if err != nil {
				fail(contact, err)
				return nil
			}
			if err := o.applyVerdict(gctx, contact, v); err != nil {
				fail(contact, err)
				return nil
			}

			mu.Lock()
			done++
			idx := done
			verdicts = append(verdicts, *v)
			mu.Unlock()
			o.publish(Event{
				Type: EventContactDone, BatchID: batchID, Index: idx, Total: len(contacts),
				ContactName: contact.Name, Organization: contact.Organization,
				Status: v.Status, CostUSD: v.Ledger.TotalCostUSD(),
				HasReplacement: v.HasReplacement(), Flagged: v.Ledger.FlaggedForReview,
			})
			return nil
		})
	}
	// Workers never return errors; Wait only observes context cancellation.
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "batch: run aborted")
	}

	receipt := BuildReceipt(batchID, verdicts)
	if err := o.store.SaveReceipt(ctx, &receipt); err != nil {
		log.Error("batch: failed to save receipt", zap.Error(err))
	}

	o.publish(Event{Type: EventBatchComplete, BatchID: batchID, Total: len(contacts), Receipt: &receipt})
	log.Info("batch: run complete",
		zap.Int("processed", receipt.ContactsProcessed),
		zap.Int("replacements", receipt.ReplacementsFound),
		zap.Int("errors", len(errs)),
		zap.Float64("total_cost_usd", receipt.TotalCostUSD))

	return &Result{Receipt: receipt, Verdicts: verdicts, Errors: errs}, nil
}

// applyVerdict mutates the contact row per the verdict and records the audit
// trail. Any step failing voids the contact from the receipt.
func (o *Orchestrator) applyVerdict(ctx context.Context, contact model.Contact, v *model.Verdict) error {
	switch v.Status {
	case model.StatusActive:
		contact.MarkActive()
	case model.StatusInactive:
		contact.MarkInactive()
	case model.StatusPendingConfirmation:
		contact.MarkPendingConfirmation()
	}
	if v.NeedsHumanReview() {
		contact.FlagForReview(v.Notes)
	}
	if err := o.store.SaveContact(ctx, &contact); err != nil {
		return eris.Wrap(err, "save contact")
	}

	if v.HasReplacement() {
		repl := model.NewContact(v.ReplacementName, v.ReplacementEmail, v.ReplacementTitle, contact.Organization)
		repl.OrgWebsite = contact.OrgWebsite
		if err := o.store.InsertContact(ctx, &repl); err != nil {
			return eris.Wrap(err, "insert replacement contact")
		}
	}

	if err := o.store.SaveVerdict(ctx, v); err != nil {
		return eris.Wrap(err, "save verdict")
	}
	return nil
}

// publish delivers an event to the sink, dropping any error. Progress
// reporting must never affect a run.
func (o *Orchestrator) publish(ev Event) {
	if o.sink == nil {
		return
	}
	if err := o.sink.Publish(ev); err != nil {
		zap.L().Debug("batch: event sink error", zap.Error(err))
	}
}
