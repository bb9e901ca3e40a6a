package pricing_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/opinex/market-engine/internal/pricing"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

var base = decimal.NewFromInt(10)

func TestPrice_BaseAtOrigin(t *testing.T) {
	got := pricing.Price(0, 0, base)
	if !got.Equal(d(10.00)) {
		t.Errorf("price(0,0,10) = %s, want 10", got)
	}
}

func TestPrice_ConcreteCurve(t *testing.T) {
	// After 1 buy: 10 * 1.001 = 10.01
	if got := pricing.Price(1, 0, base); !got.Equal(d(10.01)) {
		t.Errorf("price(1,0) = %s, want 10.01", got)
	}
	// After 10 buys: 10 * 1.001^10 ≈ 10.1004 → 10.10
	if got := pricing.Price(10, 0, base); !got.Equal(d(10.10)) {
		t.Errorf("price(10,0) = %s, want 10.10", got)
	}
}

func TestSellPrice_FlatSpread(t *testing.T) {
	// round(10.10 * 0.95, 2) = round(9.595, 2) = 9.60
	if got := pricing.SellPrice(d(10.10)); !got.Equal(d(9.60)) {
		t.Errorf("sellPrice(10.10) = %s, want 9.60", got)
	}
	if got := pricing.SellPrice(d(10.00)); !got.Equal(d(9.50)) {
		t.Errorf("sellPrice(10.00) = %s, want 9.50", got)
	}
}

func TestPrice_Deterministic(t *testing.T) {
	for i := 0; i < 100; i++ {
		a := pricing.Price(137, 42, base)
		b := pricing.Price(137, 42, base)
		if !a.Equal(b) {
			t.Fatalf("repeated calls differ: %s vs %s", a, b)
		}
	}
}

func TestPrice_MonotoneInPurchases(t *testing.T) {
	for p := uint64(0); p < 200; p++ {
		lo := pricing.Price(p, 50, base)
		hi := pricing.Price(p+1, 50, base)
		if hi.LessThan(lo) {
			t.Fatalf("price decreased after extra buy: p=%d %s -> %s", p, lo, hi)
		}
	}
}

func TestPrice_MonotoneInSales(t *testing.T) {
	for s := uint64(0); s < 200; s++ {
		hi := pricing.Price(50, s, base)
		lo := pricing.Price(50, s+1, base)
		if lo.GreaterThan(hi) {
			t.Fatalf("price increased after extra sell: s=%d %s -> %s", s, hi, lo)
		}
	}
}

func TestPrice_FloorInvariant(t *testing.T) {
	floor := base.Mul(d(0.5))
	cases := []struct{ p, s uint64 }{
		{0, 1000}, {0, 10000}, {5, 500}, {100, 100000}, {0, 1},
	}
	for _, c := range cases {
		got := pricing.Price(c.p, c.s, base)
		if got.LessThan(floor) {
			t.Errorf("price(%d,%d) = %s below floor %s", c.p, c.s, got, floor)
		}
	}
}

func TestPrice_SellMultiplierFloored(t *testing.T) {
	// With enough net sells the 0.1 multiplier floor applies before the
	// 0.5 price floor, so the final price is still base*0.5.
	got := pricing.Price(0, 100000, base)
	if !got.Equal(d(5.00)) {
		t.Errorf("deeply sold price = %s, want 5.00", got)
	}
}

func TestDrifted(t *testing.T) {
	if pricing.Drifted(d(10.00), d(10.01)) {
		t.Error("0.01 difference is within tolerance, should not be drifted")
	}
	if !pricing.Drifted(d(10.00), d(10.02)) {
		t.Error("0.02 difference should be drifted")
	}
}
