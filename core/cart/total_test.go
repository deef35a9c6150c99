package cart

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

func TestTotal(t *testing.T) {
	price := decimal.RequireFromString

	tests := []struct {
		name  string
		lines []Line
		want  string
	}{
		{
			name:  "empty cart totals zero",
			lines: nil,
			want:  "0.00",
		},
		{
			name: "single line",
			lines: []Line{
				{ProductID: "p1", Quantity: 2, Price: price("10.00")},
			},
			want: "20.00",
		},
		{
			name: "multiple lines",
			lines: []Line{
				{ProductID: "p1", Quantity: 1, Price: price("10.00")},
				{ProductID: "p2", Quantity: 3, Price: price("5.00")},
			},
			want: "25.00",
		},
		{
			name: "rounds half away from zero",
			lines: []Line{
				{ProductID: "p1", Quantity: 3, Price: price("0.335")},
			},
			want: "1.01",
		},
		{
			name: "keeps cents exact",
			lines: []Line{
				{ProductID: "p1", Quantity: 3, Price: price("0.10")},
			},
			want: "0.30",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Total(tt.lines)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got.StringFixed(2)); diff != "" {
				t.Fatalf("total mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTotalInvariants(t *testing.T) {
	price := decimal.RequireFromString

	tests := []struct {
		name  string
		lines []Line
	}{
		{
			name: "zero quantity",
			lines: []Line{
				{ProductID: "p1", Quantity: 0, Price: price("10.00")},
			},
		},
		{
			name: "negative quantity",
			lines: []Line{
				{ProductID: "p1", Quantity: -2, Price: price("10.00")},
			},
		},
		{
			name: "negative price",
			lines: []Line{
				{ProductID: "p1", Quantity: 1, Price: price("-0.01")},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Total(tt.lines); !errors.Is(err, ErrInvariant) {
				t.Fatalf("expected ErrInvariant, got %v", err)
			}
		})
	}
}
