package gateway

import "testing"

func TestNormalizeState(t *testing.T) {
	cases := []struct {
		state string
		code  string
		want  State
	}{
		{"COMPLETED", "SUCCESS", StateSuccess},
		{"completed", "", StateSuccess},
		{"", "PAYMENT_SUCCESS", StateSuccess},
		{"FAILED", "PAYMENT_ERROR", StateFailed},
		{"", "PAYMENT_DECLINED", StateFailed},
		{"EXPIRED", "", StateFailed},
		{"PENDING", "PAYMENT_PENDING", StatePending},
		{"", "", StatePending},
		// Success in one field beats pending or failure in the other.
		{"PENDING", "SUCCESS", StateSuccess},
		{"FAILED", "SUCCESS", StateSuccess},
		// Unknown vocabulary never resolves terminally.
		{"SOME_NEW_STATE", "WEIRD_CODE", StatePending},
		// Exact matching: a token merely containing ERROR is not a failure.
		{"NOT_AN_ERROR_REALLY", "", StatePending},
	}
	for _, tc := range cases {
		if got := NormalizeState(tc.state, tc.code); got != tc.want {
			t.Errorf("NormalizeState(%q, %q) = %s, want %s", tc.state, tc.code, got, tc.want)
		}
	}
}

func TestIsMockReference(t *testing.T) {
	if !IsMockReference("mock_order_1234abcd") {
		t.Fatal("expected mock prefix to match")
	}
	if IsMockReference("REG123") || IsMockReference(FreeReference) || IsMockReference("") {
		t.Fatal("unexpected mock reference match")
	}
}
