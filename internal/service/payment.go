package service

import (
	"context"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

// PaymentDetails is what the client submits alongside a booking. Which
// fields are required depends on Method.
type PaymentDetails struct {
	Method        model.PaymentMethod `json:"payment_method" validate:"required,oneof=card bkash"`
	Phone         string              `json:"phone" validate:"required_if=Method bkash"`
	TransactionID string              `json:"transaction_id" validate:"required_if=Method bkash"`
	CardNumber    string              `json:"card_number" validate:"required_if=Method card"`
	Expiry        string              `json:"expiry" validate:"required_if=Method card"`
	CVV           string              `json:"cvv" validate:"required_if=Method card"`
}

// reference is the part of the submitted details kept on the booking: the
// bKash transaction id, or the last four card digits. The CVV is never kept.
func (p PaymentDetails) reference() string {
	if p.Method == model.PaymentBkash {
		return p.TransactionID
	}
	digits := make([]byte, 0, len(p.CardNumber))
	for i := 0; i < len(p.CardNumber); i++ {
		if c := p.CardNumber[i]; c >= '0' && c <= '9' {
			digits = append(digits, c)
		}
	}
	if len(digits) > 4 {
		digits = digits[len(digits)-4:]
	}
	return string(digits)
}

type Charge struct {
	UserID  string
	EventID string
	Amount  int64
	Details PaymentDetails
}

type Receipt struct {
	Status    string
	Reference string
}

// PaymentGateway settles the price of a booking.
type PaymentGateway interface {
	Charge(ctx context.Context, c Charge) (Receipt, error)
}

// MockGateway accepts every charge without contacting anyone.
type MockGateway struct{}

func (MockGateway) Charge(_ context.Context, c Charge) (Receipt, error) {
	return Receipt{Status: "paid", Reference: c.Details.reference()}, nil
}
