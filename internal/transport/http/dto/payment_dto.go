package dto

// PaymentCallbackRequest is the gateway push. Amount arrives either as a
// JSON number or a string depending on the gateway build.
type PaymentCallbackRequest struct {
	CheckoutRequestID string `json:"checkout_request_id"`
	Status            string `json:"status"`
	TransactionCode   string `json:"transaction_code"`
	Reference         string `json:"reference"`
	Amount            any    `json:"amount"`
	Phone             string `json:"phone"`
}

type PaymentCallbackResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
