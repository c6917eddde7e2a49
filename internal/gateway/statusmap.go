package gateway

import "strings"

// Known provider vocabulary, matched exactly after trimming and uppercasing.
// Providers grow new tokens over time; anything unrecognised stays PENDING so
// an evolving vocabulary never silently fails or captures a payment.
var (
	successTokens = map[string]struct{}{
		"SUCCESS": {}, "PAYMENT_SUCCESS": {}, "COMPLETED": {}, "CAPTURED": {},
		"SETTLED": {}, "PAID": {},
	}
	failureTokens = map[string]struct{}{
		"FAILED": {}, "FAILURE": {}, "PAYMENT_ERROR": {}, "PAYMENT_DECLINED": {},
		"DECLINED": {}, "CANCELLED": {}, "CANCELED": {}, "EXPIRED": {}, "TIMED_OUT": {},
	}
)

// NormalizeState maps a raw provider state and response code onto the
// three-value verdict. A success token in either field wins outright; failure
// tokens win over pending; everything else is PENDING.
func NormalizeState(rawState, responseCode string) State {
	state := canonToken(rawState)
	code := canonToken(responseCode)
	if isSuccess(state) || isSuccess(code) {
		return StateSuccess
	}
	if isFailure(state) || isFailure(code) {
		return StateFailed
	}
	return StatePending
}

func canonToken(v string) string {
	return strings.ToUpper(strings.TrimSpace(v))
}

func isSuccess(token string) bool {
	_, ok := successTokens[token]
	return ok
}

func isFailure(token string) bool {
	_, ok := failureTokens[token]
	return ok
}
