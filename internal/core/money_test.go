package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"12.34", 1234, true},
		{"12,34", 1234, true},
		{"12", 1200, true},
		{"0.5", 50, true},
		{"12.345", 1235, true},
		{"12.346", 1235, true},
		{"12.344", 1234, true},
		{"1.005", 101, true},
		{"", 0, false},
		{"-5", 0, false},
		{"+5", 0, false},
		{"0", 0, false},
		{"0.00", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("%q: want %d, got %d err=%v", tc.in, tc.want, got, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%q: expected error", tc.in)
		}
	}
}

func TestMoneyFormat(t *testing.T) {
	if got := (Money{Cents: 8000}).Format("$"); got != "$80.00" {
		t.Fatalf("want $80.00, got %s", got)
	}
	if got := (Money{Cents: 8005}).Format("₹"); got != "₹80.05" {
		t.Fatalf("want ₹80.05, got %s", got)
	}
	if got := (Money{Cents: -150}).Format("$"); got != "-$1.50" {
		t.Fatalf("want -$1.50, got %s", got)
	}
	if got := (Money{Cents: 8000}).TwoDecimals(); got != "80.00" {
		t.Fatalf("want 80.00, got %s", got)
	}
}
