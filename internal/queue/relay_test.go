package queue

import "testing"

func TestParseOrderEvent(t *testing.T) {
	msg, err := parseOrderEvent(map[string]interface{}{
		"order_id":   "900001",
		"user_id":    "100",
		"voucher_id": "7",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if msg.OrderID != 900001 || msg.UserID != 100 || msg.VoucherID != 7 {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestParseOrderEvent_MissingField(t *testing.T) {
	_, err := parseOrderEvent(map[string]interface{}{
		"order_id": "900001",
		"user_id":  "100",
	})
	if err == nil {
		t.Fatal("expected error for missing voucher_id")
	}
}

func TestParseOrderEvent_BadNumber(t *testing.T) {
	_, err := parseOrderEvent(map[string]interface{}{
		"order_id":   "not-a-number",
		"user_id":    "100",
		"voucher_id": "7",
	})
	if err == nil {
		t.Fatal("expected error for malformed order_id")
	}
}

func TestParseOrderEvent_RejectsNonPositiveIDs(t *testing.T) {
	_, err := parseOrderEvent(map[string]interface{}{
		"order_id":   "0",
		"user_id":    "100",
		"voucher_id": "7",
	})
	if err == nil {
		t.Fatal("expected validation error for zero order_id")
	}
}

func TestOrderMessageValidate(t *testing.T) {
	cases := []struct {
		name string
		msg  OrderMessage
		ok   bool
	}{
		{"valid", OrderMessage{OrderID: 1, UserID: 2, VoucherID: 3}, true},
		{"zero order", OrderMessage{UserID: 2, VoucherID: 3}, false},
		{"zero user", OrderMessage{OrderID: 1, VoucherID: 3}, false},
		{"zero voucher", OrderMessage{OrderID: 1, UserID: 2}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.msg.Validate()
			if tc.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
