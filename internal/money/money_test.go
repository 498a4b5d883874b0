package money_test

import (
	"encoding/json"
	"testing"

	"github.com/scrapline/auction-engine/internal/money"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "integer", in: "100", want: "100.00"},
		{name: "two decimals", in: "1250.50", want: "1250.50"},
		{name: "rounds extra precision", in: "99.999", want: "100.00"},
		{name: "zero", in: "0", want: "0.00"},
		{name: "negative rejected", in: "-5", wantErr: true},
		{name: "garbage rejected", in: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := money.Parse(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err == nil && got.String() != tt.want {
				t.Errorf("Parse(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestArithmetic(t *testing.T) {
	a := money.MustParse("100.50")
	b := money.MustParse("50.25")

	if got := a.Add(b).String(); got != "150.75" {
		t.Errorf("Add = %s, want 150.75", got)
	}
	if got := a.Sub(b).String(); got != "50.25" {
		t.Errorf("Sub = %s, want 50.25", got)
	}
	// Subtraction floors at zero rather than going negative.
	if got := b.Sub(a); !got.IsZero() {
		t.Errorf("Sub below zero = %s, want 0.00", got)
	}
	if got := b.MulInt(3).String(); got != "150.75" {
		t.Errorf("MulInt = %s, want 150.75", got)
	}
}

func TestComparisons(t *testing.T) {
	lo := money.FromInt(100)
	hi := money.FromInt(500)

	if !lo.LessThan(hi) || hi.LessThan(lo) {
		t.Error("LessThan ordering wrong")
	}
	if !hi.GreaterThanOrEqual(lo) || !hi.GreaterThanOrEqual(hi) {
		t.Error("GreaterThanOrEqual wrong")
	}
	if got := money.Min(lo, hi); !got.Equal(lo) {
		t.Errorf("Min = %s, want %s", got, lo)
	}
	if got := money.Max(lo, hi); !got.Equal(hi) {
		t.Errorf("Max = %s, want %s", got, hi)
	}
	if !money.MustParse("100.00").Equal(money.FromInt(100)) {
		t.Error("Equal across representations wrong")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	in := money.MustParse("349.99")

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `"349.99"` {
		t.Errorf("Marshal = %s, want \"349.99\"", data)
	}

	var out money.Amount
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !out.Equal(in) {
		t.Errorf("round trip = %s, want %s", out, in)
	}
}

func TestScan(t *testing.T) {
	var a money.Amount
	if err := a.Scan([]byte("42.50")); err != nil {
		t.Fatalf("Scan bytes: %v", err)
	}
	if a.String() != "42.50" {
		t.Errorf("Scan bytes = %s, want 42.50", a)
	}

	if err := a.Scan("17"); err != nil {
		t.Fatalf("Scan string: %v", err)
	}
	if a.String() != "17.00" {
		t.Errorf("Scan string = %s, want 17.00", a)
	}

	if err := a.Scan(struct{}{}); err == nil {
		t.Error("Scan of unsupported type should fail")
	}
}
