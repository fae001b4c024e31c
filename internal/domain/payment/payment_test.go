package payment

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/fulfillment/internal/domain/validation"
)

func TestNewPending(t *testing.T) {
	p, err := NewPending(uuid.New(), uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, StatusPending, p.Status)
	assert.Empty(t, p.Method)
	assert.Empty(t, p.Gateway)

	_, err = NewPending(uuid.New(), uuid.New(), uuid.Nil)
	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("order_id"))
}

func TestExecute(t *testing.T) {
	tests := []struct {
		name    string
		method  Method
		gateway Gateway
		bad     string
	}{
		{name: "card with gateway", method: MethodCard, gateway: GatewayVisa},
		{name: "cash", method: MethodCash},
		{name: "wallet with paypal", method: MethodWallet, gateway: GatewayPaypal},
		{name: "card without gateway", method: MethodCard, bad: "payment_card_gateway"},
		{name: "unknown gateway", method: MethodCard, gateway: "DINERS", bad: "payment_card_gateway"},
		{name: "missing method", bad: "payment_method"},
		{name: "unknown method", method: "CHEQUE", bad: "payment_method"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pending, err := NewPending(uuid.New(), uuid.New(), uuid.New())
			require.NoError(t, err)

			paid, err := pending.Execute(tt.method, tt.gateway)
			if tt.bad == "" {
				require.NoError(t, err)
				assert.Equal(t, StatusPaid, paid.Status)
				assert.Equal(t, pending.ID, paid.ID)
				assert.Equal(t, tt.method, paid.Method)
				assert.Equal(t, StatusPending, pending.Status, "original must be untouched")
				return
			}
			var verr *validation.Error
			require.ErrorAs(t, err, &verr)
			assert.True(t, verr.Has(tt.bad), verr.Error())
		})
	}
}
