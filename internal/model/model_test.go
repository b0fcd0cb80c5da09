package model

import (
	"errors"
	"testing"
)

func TestParsePizzaSize(t *testing.T) {
	tests := []struct {
		in      string
		want    PizzaSize
		wantErr bool
	}{
		{in: "SMALL", want: PizzaSizeSmall},
		{in: "large", want: PizzaSizeLarge},
		{in: " Extra-Large ", want: PizzaSizeExtraLarge},
		{in: "huge", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePizzaSize(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownChoice) {
					t.Fatalf("ParsePizzaSize(%q) error = %v, want ErrUnknownChoice", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePizzaSize(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Fatalf("ParsePizzaSize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseFlavour(t *testing.T) {
	if got, err := ParseFlavour("four-cheese"); err != nil || got != FlavourFourCheese {
		t.Fatalf("ParseFlavour = %q, %v", got, err)
	}
	if _, err := ParseFlavour("anchovy"); !errors.Is(err, ErrUnknownChoice) {
		t.Fatalf("expected ErrUnknownChoice, got %v", err)
	}
}

func TestParseOrderStatus(t *testing.T) {
	if got, err := ParseOrderStatus("in-transit"); err != nil || got != OrderStatusInTransit {
		t.Fatalf("ParseOrderStatus = %q, %v", got, err)
	}
	if _, err := ParseOrderStatus("CANCELLED"); !errors.Is(err, ErrUnknownChoice) {
		t.Fatalf("expected ErrUnknownChoice, got %v", err)
	}
}
