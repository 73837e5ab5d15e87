package gateway

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospectkeeper/internal/cost"
	"github.com/sells-group/prospectkeeper/internal/model"
	"github.com/sells-group/prospectkeeper/pkg/resend"
	"github.com/sells-group/prospectkeeper/pkg/zerobounce"
)

type fakeZeroBounce struct {
	resp *zerobounce.ValidateResponse
	err  error
}

func (f *fakeZeroBounce) Validate(_ context.Context, _ string) (*zerobounce.ValidateResponse, error) {
	return f.resp, f.err
}

func (f *fakeZeroBounce) Credits(_ context.Context) (int, error) {
	return 100, nil
}

func TestZeroBounceValidator_Valid(t *testing.T) {
	zb := &fakeZeroBounce{resp: &zerobounce.ValidateResponse{
		Address: "jane@acme.com",
		Status:  "valid",
	}}
	v := NewZeroBounceValidator(zb, cost.NewCalculator(cost.DefaultRates()))

	result, err := v.Validate(context.Background(), "jane@acme.com")
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, EmailValid, result.Status)
	assert.False(t, result.DefinitiveNegative())
	assert.InDelta(t, 0.004, result.CostUSD, 1e-9)
}

func TestZeroBounceValidator_HardBounce(t *testing.T) {
	zb := &fakeZeroBounce{resp: &zerobounce.ValidateResponse{
		Address:   "gone@acme.com",
		Status:    "invalid",
		SubStatus: "mailbox_not_found",
	}}
	v := NewZeroBounceValidator(zb, cost.NewCalculator(cost.DefaultRates()))

	result, err := v.Validate(context.Background(), "gone@acme.com")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, EmailInvalid, result.Status)
	assert.Equal(t, "mailbox_not_found", result.SubStatus)
	assert.True(t, result.DefinitiveNegative())
}

func TestZeroBounceValidator_CatchAllNotDefinitive(t *testing.T) {
	zb := &fakeZeroBounce{resp: &zerobounce.ValidateResponse{
		Address: "maybe@acme.com",
		Status:  "catch-all",
	}}
	v := NewZeroBounceValidator(zb, cost.NewCalculator(cost.DefaultRates()))

	result, err := v.Validate(context.Background(), "maybe@acme.com")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.False(t, result.DefinitiveNegative())
}

func TestZeroBounceValidator_APIError(t *testing.T) {
	zb := &fakeZeroBounce{err: eris.New("boom")}
	v := NewZeroBounceValidator(zb, cost.NewCalculator(cost.DefaultRates()))

	_, err := v.Validate(context.Background(), "jane@acme.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email validation")
}

type fakeResend struct {
	sent []resend.SendRequest
	err  error
}

func (f *fakeResend) Send(_ context.Context, req resend.SendRequest) (*resend.SendResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, req)
	return &resend.SendResponse{ID: "email_1"}, nil
}

func TestResendConfirmer_Send(t *testing.T) {
	rc := &fakeResend{}
	s := NewResendConfirmer(rc, "verify@prospectkeeper.io", "replies@prospectkeeper.io")

	contact := model.Contact{
		Name:         "Jane Doe",
		Email:        "jane@acme.com",
		Title:        "VP Engineering",
		Organization: "Acme Corp",
	}
	result, err := s.SendConfirmation(context.Background(), contact)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "jane@acme.com", result.Email)

	require.Len(t, rc.sent, 1)
	sent := rc.sent[0]
	assert.Equal(t, "verify@prospectkeeper.io", sent.From)
	assert.Equal(t, []string{"jane@acme.com"}, sent.To)
	assert.Equal(t, "replies@prospectkeeper.io", sent.ReplyTo)
	assert.Equal(t, "Quick check: still at Acme Corp?", sent.Subject)
	assert.Contains(t, sent.Text, "Hi Jane,")
	assert.Contains(t, sent.Text, "VP Engineering at Acme Corp")
}

func TestResendConfirmer_SendError(t *testing.T) {
	rc := &fakeResend{err: eris.New("rate limited")}
	s := NewResendConfirmer(rc, "verify@prospectkeeper.io", "replies@prospectkeeper.io")

	result, err := s.SendConfirmation(context.Background(), model.Contact{Email: "jane@acme.com"})
	require.Error(t, err)
	assert.False(t, result.Success)
}
