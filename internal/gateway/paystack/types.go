package paystack

type envelope struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
}

type InitializeRequest struct {
	Email       string `json:"email"`
	Amount      int64  `json:"amount"` // minor units
	Reference   string `json:"reference"`
	CallbackURL string `json:"callback_url,omitempty"`
	Currency    string `json:"currency,omitempty"`
}

type InitializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type VerifyData struct {
	Status          string `json:"status"` // "success", "failed", "abandoned"
	Reference       string `json:"reference"`
	Amount          int64  `json:"amount"` // minor units
	PaidAt          string `json:"paid_at"`
	Channel         string `json:"channel"`
	Currency        string `json:"currency"`
	GatewayResponse string `json:"gateway_response"`
}

type RecipientRequest struct {
	Type          string `json:"type"` // "nuban" | "mobile_money"
	Name          string `json:"name"`
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
	Currency      string `json:"currency"`
}

type RecipientData struct {
	RecipientCode string `json:"recipient_code"`
	Active        bool   `json:"active"`
}

type TransferRequest struct {
	Source    string `json:"source"` // "balance"
	Amount    int64  `json:"amount"` // minor units
	Recipient string `json:"recipient"`
	Reason    string `json:"reason,omitempty"`
	Reference string `json:"reference,omitempty"`
}

type TransferData struct {
	TransferCode string `json:"transfer_code"`
	Reference    string `json:"reference"`
	Status       string `json:"status"` // "pending", "success", "failed", "reversed"
	Amount       int64  `json:"amount"`
}

// WebhookEvent is the envelope Paystack signs and POSTs.
type WebhookEvent struct {
	Event string      `json:"event"` // transfer.success, transfer.failed, transfer.reversed, charge.success
	Data  WebhookData `json:"data"`
}

type WebhookData struct {
	Reference    string `json:"reference"`
	TransferCode string `json:"transfer_code"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Reason       string `json:"reason"`
}
