package convert

import (
	"errors"
	"math"
	"testing"

	"metaltracker/internal/model"
)

func TestPrice_OunceToGram(t *testing.T) {
	got, err := Price(1, model.TroyOunce, model.Gram)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 1 oz priced at 1 means ~0.0321507 per gram... inverse check:
	// a per-oz price of 1 spread over 31.1034768 grams.
	want := 0.0321507466
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Price(1, oz, g) = %v, want %v", got, want)
	}

	// The inverse direction recovers the grams-per-ounce constant: a price
	// of 1 per gram is ~31.1034768 per troy ounce.
	perOunce, err := Price(1, model.Gram, model.TroyOunce)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(perOunce-31.1034768) > 1e-4 {
		t.Errorf("Price(1, g, oz) = %v, want ~31.1034768", perOunce)
	}
}

func TestPrice_Roundtrip(t *testing.T) {
	units := []model.WeightUnit{model.TroyOunce, model.Gram, model.Kilogram, model.Tola}
	const price = 2345.67

	for _, from := range units {
		for _, to := range units {
			mid, err := Price(price, from, to)
			if err != nil {
				t.Fatalf("Price(%v, %s, %s): %v", price, from, to, err)
			}
			back, err := Price(mid, to, from)
			if err != nil {
				t.Fatalf("Price(%v, %s, %s): %v", mid, to, from, err)
			}
			if math.Abs(back-price) > 1e-6 {
				t.Errorf("roundtrip %s->%s->%s: got %v, want %v", from, to, from, back, price)
			}
		}
	}
}

func TestPrice_Identity(t *testing.T) {
	for _, u := range model.WeightUnits {
		got, err := Price(100, u, u)
		if err != nil {
			t.Fatalf("Price(100, %s, %s): %v", u, u, err)
		}
		if math.Abs(got-100) > 1e-9 {
			t.Errorf("Price(100, %s, %s) = %v, want 100", u, u, got)
		}
	}
}

func TestPrice_Tola(t *testing.T) {
	// A per-oz price scaled to tola: tola = 0.375 oz.
	got, err := Price(1000, model.TroyOunce, model.Tola)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got-375) > 1e-9 {
		t.Errorf("Price(1000, oz, tola) = %v, want 375", got)
	}
}

func TestPrice_InvalidUnit(t *testing.T) {
	if _, err := Price(100, "lb", model.Gram); !errors.Is(err, ErrInvalidUnit) {
		t.Errorf("from=lb: got %v, want ErrInvalidUnit", err)
	}
	if _, err := Price(100, model.Gram, "stone"); !errors.Is(err, ErrInvalidUnit) {
		t.Errorf("to=stone: got %v, want ErrInvalidUnit", err)
	}
}
