package domain

type PaymentMethod string

const (
	MethodCard      PaymentMethod = "cc"
	MethodBankDebit PaymentMethod = "ach"
)

type Card struct {
	Number         string `json:"cardNumber"`
	ExpirationDate string `json:"expirationDate"`
	CVV            string `json:"cvv"`
}

type BankDebit struct {
	AccountType   string `json:"accountType"`
	RoutingNumber string `json:"routingNumber"`
	AccountNumber string `json:"accountNumber"`
	NameOnAccount string `json:"nameOnAccount"`
}

type ChargeOutcome string

const (
	OutcomeApproved    ChargeOutcome = "approved"
	OutcomeDeclined    ChargeOutcome = "declined"
	OutcomeHeld        ChargeOutcome = "held"
	OutcomeConfigError ChargeOutcome = "config_error"
	OutcomeUnknown     ChargeOutcome = "unknown"
)

// ChargeResult is the normalized outcome of a gateway charge attempt.
// Message is always safe to show to the customer. RawDiagnostic carries the
// gateway's own error text for configuration failures; it is logged for
// operators and never sent to the customer.
type ChargeResult struct {
	Outcome       ChargeOutcome
	TransactionID string
	AuthCode      string
	Message       string
	RawDiagnostic string
}

func (r ChargeResult) Approved() bool {
	return r.Outcome == OutcomeApproved
}
