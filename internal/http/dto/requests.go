package dto

type CreateNegotiationRequest struct {
	ProviderID string  `json:"provider_id"`
	ListingID  *string `json:"listing_id,omitempty"`
	OpenCallID *string `json:"open_call_id,omitempty"`
	IntroNote  string  `json:"intro_note,omitempty"`
}

// ActRequest drives every workflow action. Only the fields relevant to the
// action need to be set.
type ActRequest struct {
	Action       string   `json:"action"`
	AmountPaise  int64    `json:"amount_paise,omitempty"`
	Note         string   `json:"note,omitempty"`
	Deliverables []string `json:"deliverables,omitempty"`
	Reason       string   `json:"reason,omitempty"`
}

// PaymentCallbackRequest is the gateway confirmation posted by the client
// after checkout, using the gateway's field names.
type PaymentCallbackRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

type UpdateDeviceTokenRequest struct {
	DeviceToken string `json:"device_token"`
}
