// Package inbound classifies replies to confirmation emails and applies the
// outcome to the contact record.
package inbound

import (
	"context"
	"encoding/json"
	"fmt"
	"net/mail"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospectkeeper/internal/model"
	"github.com/sells-group/prospectkeeper/internal/store"
	"github.com/sells-group/prospectkeeper/pkg/anthropic"
)

// Intent is the classified meaning of a confirmation reply.
type Intent string

const (
	IntentStillActive Intent = "still_active"
	IntentDeparted    Intent = "departed"
	IntentOptOut      Intent = "opt_out"
	IntentUnclear     Intent = "unclear"
)

const classifySystemPrompt = `You classify replies to an email that asked a B2B contact "are you still
reachable at this address?".

Respond with a single JSON object and nothing else:
{
  "intent": "still_active" | "departed" | "opt_out" | "unclear",
  "new_email": ""
}

Rules:
- "still_active" when the sender confirms they are reachable or still in the
  role. If they give a better address, put it in new_email.
- "departed" when the reply says the person has left the organization or the
  role, including replies written by someone else on their behalf.
- "opt_out" when the sender asks to stop receiving email.
- "unclear" for auto-replies, empty messages, and anything else.`

// optOutPhrases short-circuit the classifier. Suppression requests are
// honored deterministically, never left to model judgment.
var optOutPhrases = []string{
	"unsubscribe",
	"remove me",
	"stop emailing",
	"stop contacting",
	"opt out",
	"do not contact",
}

// Reply is an inbound email delivered by the webhook.
type Reply struct {
	From    string `json:"from"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// Outcome reports what a processed reply did to the contact.
type Outcome struct {
	ContactID string              `json:"contact_id"`
	Intent    Intent              `json:"intent"`
	NewEmail  string              `json:"new_email,omitempty"`
	Status    model.ContactStatus `json:"status"`
}

// Processor applies confirmation replies to contact records.
type Processor struct {
	store store.Store
	llm   anthropic.Client
	model string
}

// NewProcessor creates a reply processor. Classification runs on the cheap
// model; replies are short.
func NewProcessor(st store.Store, llm anthropic.Client, model string) *Processor {
	return &Processor{store: st, llm: llm, model: model}
}

// Process matches the reply to a contact, classifies it, and updates the
// record.
func (p *Processor) Process(ctx context.Context, reply Reply) (*Outcome, error) {
	sender := senderAddress(reply.From)
	if sender == "" {
		return nil, eris.Errorf("inbound: unparseable sender %q", reply.From)
	}

	contact, err := p.store.GetContactByEmail(ctx, sender)
	if err != nil {
		return nil, eris.Wrapf(err, "inbound: no contact for %s", sender)
	}

	intent, newEmail, err := p.classify(ctx, reply)
	if err != nil {
		return nil, err
	}

	switch intent {
	case IntentStillActive:
		if newEmail != "" {
			contact.UpdateEmail(newEmail)
		}
		contact.MarkActive()
		contact.ClearReviewFlag()
	case IntentDeparted:
		contact.MarkInactive()
		contact.FlagForReview("reply says the contact has left; successor unknown")
	case IntentOptOut:
		contact.OptOut()
	default:
		contact.FlagForReview("confirmation reply could not be classified")
	}

	if err := p.store.SaveContact(ctx, contact); err != nil {
		return nil, eris.Wrapf(err, "inbound: save contact %s", contact.ID)
	}

	zap.L().Info("inbound reply processed",
		zap.String("contact_id", contact.ID),
		zap.String("intent", string(intent)),
		zap.String("status", string(contact.Status)),
	)

	return &Outcome{
		ContactID: contact.ID,
		Intent:    intent,
		NewEmail:  newEmail,
		Status:    contact.Status,
	}, nil
}

func (p *Processor) classify(ctx context.Context, reply Reply) (Intent, string, error) {
	if isOptOut(reply.Text) {
		return IntentOptOut, "", nil
	}
	if strings.TrimSpace(reply.Text) == "" {
		return IntentUnclear, "", nil
	}

	msg, err := p.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     p.model,
		MaxTokens: 256,
		System:    anthropic.BuildCachedSystemBlocks(classifySystemPrompt),
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: fmt.Sprintf("Subject: %s\n\n%s", reply.Subject, reply.Text),
		}},
	})
	if err != nil {
		return IntentUnclear, "", eris.Wrap(err, "inbound: classify reply")
	}
	msg.Usage.LogUsage(p.model, "inbound_classify")

	return parseClassification(msg.Text())
}

// parseClassification decodes the model's JSON verdict. Anything malformed
// degrades to unclear rather than failing the webhook.
func parseClassification(text string) (Intent, string, error) {
	var verdict struct {
		Intent   string `json:"intent"`
		NewEmail string `json:"new_email"`
	}
	if err := json.Unmarshal([]byte(trimCodeFence(text)), &verdict); err != nil {
		zap.L().Warn("inbound: classification unparseable", zap.Error(err))
		return IntentUnclear, "", nil
	}

	switch Intent(verdict.Intent) {
	case IntentStillActive, IntentDeparted, IntentOptOut:
		return Intent(verdict.Intent), strings.TrimSpace(verdict.NewEmail), nil
	default:
		return IntentUnclear, "", nil
	}
}

func isOptOut(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range optOutPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func senderAddress(from string) string {
	if addr, err := mail.ParseAddress(from); err == nil {
		return addr.Address
	}
	from = strings.TrimSpace(from)
	if strings.Contains(from, "@") {
		return from
	}
	return ""
}

func trimCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
