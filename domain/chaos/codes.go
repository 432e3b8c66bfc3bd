package chaos

import "fmt"

// Decline codes mirror the upstream processor's card decline reasons.
// The set is fixed and enumerable; requesting a code outside it is a
// configuration error, never silently substituted.
const (
	DeclineCardDeclined         = "card_declined"
	DeclineInsufficientFunds    = "insufficient_funds"
	DeclineExpiredCard          = "expired_card"
	DeclineIncorrectCVC         = "incorrect_cvc"
	DeclineProcessingError      = "processing_error"
	DeclineIncorrectNumber      = "incorrect_number"
	DeclineGenericDecline       = "generic_decline"
	DeclineFraudulent           = "fraudulent"
	DeclineLostCard             = "lost_card"
	DeclineStolenCard           = "stolen_card"
	DeclineDoNotHonor           = "do_not_honor"
	DeclineCallIssuer           = "call_issuer"
	DeclinePickupCard           = "pickup_card"
	DeclineRestrictedCard       = "restricted_card"
	DeclineSecurityViolation    = "security_violation"
	DeclineCardNotSupported     = "card_not_supported"
	DeclineCurrencyNotSupported = "currency_not_supported"
	DeclineDuplicateTransaction = "duplicate_transaction"
	DeclineInvalidAccount       = "invalid_account"
	DeclineInvalidAmount        = "invalid_amount"
	DeclineIssuerNotAvailable   = "issuer_not_available"
	DeclineNotPermitted         = "not_permitted"
	DeclineTryAgainLater        = "try_again_later"
	DeclineVelocityExceeded     = "card_velocity_exceeded"
)

var declineMessages = map[string]string{
	DeclineCardDeclined:         "Your card was declined.",
	DeclineInsufficientFunds:    "Your card has insufficient funds.",
	DeclineExpiredCard:          "Your card has expired.",
	DeclineIncorrectCVC:         "Your card's security code is incorrect.",
	DeclineProcessingError:      "An error occurred while processing your card.",
	DeclineIncorrectNumber:      "Your card number is incorrect.",
	DeclineGenericDecline:       "Your card was declined.",
	DeclineFraudulent:           "Your card was declined.",
	DeclineLostCard:             "Your card was declined.",
	DeclineStolenCard:           "Your card was declined.",
	DeclineDoNotHonor:           "Your card was declined.",
	DeclineCallIssuer:           "Your card was declined. Please contact your card issuer.",
	DeclinePickupCard:           "Your card cannot be used for this payment.",
	DeclineRestrictedCard:       "Your card cannot be used for this payment.",
	DeclineSecurityViolation:    "Your card was declined.",
	DeclineCardNotSupported:     "Your card does not support this type of purchase.",
	DeclineCurrencyNotSupported: "Your card does not support the specified currency.",
	DeclineDuplicateTransaction: "A transaction with identical details was recently submitted.",
	DeclineInvalidAccount:       "The card, or account the card is connected to, is invalid.",
	DeclineInvalidAmount:        "The payment amount is invalid.",
	DeclineIssuerNotAvailable:   "The card issuer could not be reached.",
	DeclineNotPermitted:         "The payment is not permitted.",
	DeclineTryAgainLater:        "Your card was declined. Please try again later.",
	DeclineVelocityExceeded:     "Your card was declined for making repeated attempts too frequently.",
}

// DefaultDeclineCodes returns the codes used when none are configured.
func DefaultDeclineCodes() []string {
	return []string{
		DeclineCardDeclined,
		DeclineInsufficientFunds,
		DeclineExpiredCard,
		DeclineIncorrectCVC,
	}
}

// AllDeclineCodes returns every selectable decline code, sorted by constant
// declaration order above.
func AllDeclineCodes() []string {
	return []string{
		DeclineCardDeclined,
		DeclineInsufficientFunds,
		DeclineExpiredCard,
		DeclineIncorrectCVC,
		DeclineProcessingError,
		DeclineIncorrectNumber,
		DeclineGenericDecline,
		DeclineFraudulent,
		DeclineLostCard,
		DeclineStolenCard,
		DeclineDoNotHonor,
		DeclineCallIssuer,
		DeclinePickupCard,
		DeclineRestrictedCard,
		DeclineSecurityViolation,
		DeclineCardNotSupported,
		DeclineCurrencyNotSupported,
		DeclineDuplicateTransaction,
		DeclineInvalidAccount,
		DeclineInvalidAmount,
		DeclineIssuerNotAvailable,
		DeclineNotPermitted,
		DeclineTryAgainLater,
		DeclineVelocityExceeded,
	}
}

// ValidDeclineCode reports whether code is a known decline code.
func ValidDeclineCode(code string) bool {
	_, ok := declineMessages[code]
	return ok
}

// DeclineMessage returns the human-readable message for a decline code.
func DeclineMessage(code string) string {
	if msg, ok := declineMessages[code]; ok {
		return msg
	}
	return "Your card was declined."
}

// UnknownDeclineCodeError is returned when a simulation or configuration
// references a decline code outside the fixed set.
type UnknownDeclineCodeError struct {
	Code string
}

func (e UnknownDeclineCodeError) Error() string {
	return fmt.Sprintf("chaos: unknown decline code %q", e.Code)
}
