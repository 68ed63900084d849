package gateway

import (
	"encoding/json"
	"regexp"
	"strconv"

	"github.com/casteele/payportal/internal/domain"
)

const (
	msgApproved    = "Payment approved."
	msgDeclined    = "Payment declined. Please check your payment details and try again."
	msgHeld        = "Payment is being held for review. Please contact support."
	msgConfigError = "Payment service is temporarily unavailable. Please try again later."
	msgNoResponse  = "No response from payment gateway."
)

// Signatures of failures caused by the merchant's own credentials or setup
// rather than the customer's payment details. Matching text is replaced with
// a fixed customer-safe message; the raw text goes to RawDiagnostic.
var configErrorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)AnetApiSchema\.xsd`),
	regexp.MustCompile(`(?i)transactionKey`),
	regexp.MustCompile(`(?i)merchantAuthentication`),
	regexp.MustCompile(`(?i)API Login ID`),
	regexp.MustCompile(`(?i)Invalid credentials`),
}

func isConfigError(message string) bool {
	if message == "" {
		return false
	}
	for _, p := range configErrorPatterns {
		if p.MatchString(message) {
			return true
		}
	}
	return false
}

type transactionError struct {
	ErrorCode string `json:"errorCode"`
	ErrorText string `json:"errorText"`
}

type transactionMessage struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type transactionResponse struct {
	ResponseCode string               `json:"responseCode"`
	TransID      string               `json:"transId"`
	AuthCode     string               `json:"authCode"`
	Errors       []transactionError   `json:"errors"`
	Messages     []transactionMessage `json:"messages"`
}

type resultMessage struct {
	Code string `json:"code"`
	Text string `json:"text"`
}

type resultMessages struct {
	ResultCode string          `json:"resultCode"`
	Message    []resultMessage `json:"message"`
}

type gatewayResponse struct {
	TransactionResponse *transactionResponse `json:"transactionResponse"`
	Messages            *resultMessages      `json:"messages"`
}

// Classify normalizes a raw gateway response body into a ChargeResult. It is
// a pure function: no I/O, no side effects, total over any input including
// bodies that fail to parse.
func Classify(body []byte) domain.ChargeResult {
	var resp gatewayResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.ChargeResult{
			Outcome: domain.OutcomeUnknown,
			Message: msgNoResponse,
		}
	}

	tx := resp.TransactionResponse
	if tx == nil || tx.ResponseCode == "" {
		raw := msgNoResponse
		if resp.Messages != nil && len(resp.Messages.Message) > 0 && resp.Messages.Message[0].Text != "" {
			raw = resp.Messages.Message[0].Text
		}
		if isConfigError(raw) {
			return domain.ChargeResult{
				Outcome:       domain.OutcomeConfigError,
				Message:       msgConfigError,
				RawDiagnostic: raw,
			}
		}
		return domain.ChargeResult{
			Outcome: domain.OutcomeUnknown,
			Message: raw,
		}
	}

	code, err := strconv.Atoi(tx.ResponseCode)
	if err != nil {
		code = -1
	}

	if code == 1 {
		return domain.ChargeResult{
			Outcome:       domain.OutcomeApproved,
			TransactionID: tx.TransID,
			AuthCode:      tx.AuthCode,
			Message:       msgApproved,
		}
	}

	var raw string
	if len(tx.Errors) > 0 {
		raw = tx.Errors[0].ErrorText
	} else if len(tx.Messages) > 0 {
		raw = tx.Messages[0].Description
	}

	// Credential or schema failures override whatever code came back.
	if isConfigError(raw) {
		return domain.ChargeResult{
			Outcome:       domain.OutcomeConfigError,
			TransactionID: tx.TransID,
			AuthCode:      tx.AuthCode,
			Message:       msgConfigError,
			RawDiagnostic: raw,
		}
	}

	result := domain.ChargeResult{
		TransactionID: tx.TransID,
		AuthCode:      tx.AuthCode,
	}

	switch code {
	case 2:
		result.Outcome = domain.OutcomeDeclined
		result.Message = msgDeclined
	case 4:
		result.Outcome = domain.OutcomeHeld
		result.Message = msgHeld
	default:
		result.Outcome = domain.OutcomeUnknown
		result.Message = raw
		if result.Message == "" {
			result.Message = "Payment was not approved."
		}
	}

	return result
}
