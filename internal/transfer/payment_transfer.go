package transfer

import "time"

// PaymentEvent is the body posted by the payment provider once a token
// package has been paid for.
type PaymentEvent struct {
	ID        string `json:"id"`
	EventType string `json:"eventType"`
	CreatedAt int64  `json:"created_at"`
	Object    struct {
		ID       string `json:"id"`
		Status   string `json:"status"`
		Quantity int64  `json:"quantity"`
		Product  struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Price    int    `json:"price"`
			Currency string `json:"currency"`
		} `json:"product"`
		Metadata struct {
			InternalCustomerID string `json:"internal_customer_id"`
		} `json:"metadata"`
		CreatedAt time.Time `json:"created_at"`
	} `json:"object"`
}
