package gateway

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospectkeeper/internal/cost"
	"github.com/sells-group/prospectkeeper/internal/model"
	"github.com/sells-group/prospectkeeper/pkg/resend"
	"github.com/sells-group/prospectkeeper/pkg/zerobounce"
)

// ZeroBounceValidator implements EmailValidator backed by the ZeroBounce API.
type ZeroBounceValidator struct {
	client zerobounce.Client
	calc   *cost.Calculator
}

// NewZeroBounceValidator wires the validator with the metered cost calculator.
func NewZeroBounceValidator(client zerobounce.Client, calc *cost.Calculator) *ZeroBounceValidator {
	return &ZeroBounceValidator{client: client, calc: calc}
}

// Validate checks deliverability of one address. Every successful API call
// consumes a credit, so the flat per-check cost is attached to the result.
func (v *ZeroBounceValidator) Validate(ctx context.Context, email string) (EmailValidationResult, error) {
	resp, err := v.client.Validate(ctx, email)
	if err != nil {
		return EmailValidationResult{}, eris.Wrap(err, "gateway: email validation")
	}

	status := EmailStatus(resp.Status)
	return EmailValidationResult{
		Email:     resp.Address,
		Status:    status,
		SubStatus: resp.SubStatus,
		Valid:     status == EmailValid,
		CostUSD:   v.calc.EmailCheck(),
	}, nil
}

// ResendConfirmer implements ConfirmationSender over the Resend API.
type ResendConfirmer struct {
	client  resend.Client
	from    string
	replyTo string
}

// NewResendConfirmer wires the sender. replyTo must be the inbound pipeline's
// address or replies go nowhere.
func NewResendConfirmer(client resend.Client, from, replyTo string) *ResendConfirmer {
	return &ResendConfirmer{client: client, from: from, replyTo: replyTo}
}

func (s *ResendConfirmer) SendConfirmation(ctx context.Context, contact model.Contact) (SendResult, error) {
	firstName := contact.Name
	for i, r := range contact.Name {
		if r == ' ' {
			firstName = contact.Name[:i]
			break
		}
	}

	_, err := s.client.Send(ctx, resend.SendRequest{
		From:    s.from,
		To:      []string{contact.Email},
		ReplyTo: s.replyTo,
		Subject: fmt.Sprintf("Quick check: still at %s?", contact.Organization),
		Text: fmt.Sprintf(
			"Hi %s,\n\nWe have you on file as %s at %s. "+
				"Are you still reachable at this address? "+
				"A one-line reply is all we need.\n\nThanks!\n",
			firstName, contact.Title, contact.Organization),
	})
	if err != nil {
		return SendResult{}, eris.Wrap(err, "gateway: send confirmation")
	}
	return SendResult{Success: true, Email: contact.Email}, nil
}
