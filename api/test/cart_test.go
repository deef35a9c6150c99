package test

import (
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
)

type cartTest struct {
	*TestEnv
}

type cartView struct {
	Lines []struct {
		ProductID string          `json:"productId"`
		Quantity  int             `json:"quantity"`
		Name      string          `json:"name"`
		Price     decimal.Decimal `json:"price"`
	} `json:"lines"`
	Total decimal.Decimal `json:"total"`
}

func TestCart(t *testing.T) {
	env, err := NewTestEnv(t, "cart_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	rt := &cartTest{env}
	pt := &productTest{env}

	if err := env.Login(env.AdminEmail, env.AdminPass); err != nil {
		t.Fatal(err)
	}
	p1 := pt.createProductOK(t, "Terracotta Planter", "10.00")
	p2 := pt.createProductOK(t, "Watering Can", "5.00")
	if err := env.Logout(); err != nil {
		t.Fatal(err)
	}

	if err := env.Login(env.UserEmail, env.UserPass); err != nil {
		t.Fatal(err)
	}

	// A fresh cart is empty and totals to zero.
	crt := rt.showOK(t)
	rt.wantLines(t, crt)
	rt.wantTotal(t, crt, "0.00")

	// Adding two units creates the line with the delta as quantity.
	crt = rt.applyDeltaOK(t, p1.ID, 2)
	rt.wantLines(t, crt, lineOf(p1.ID, 2))
	rt.wantTotal(t, crt, "20.00")

	// A second positive delta increments in place, no duplicate line.
	crt = rt.applyDeltaOK(t, p1.ID, 1)
	rt.wantLines(t, crt, lineOf(p1.ID, 3))
	rt.wantTotal(t, crt, "30.00")

	// A zero delta reads the cart back unchanged.
	crt = rt.applyDeltaOK(t, p1.ID, 0)
	rt.wantLines(t, crt, lineOf(p1.ID, 3))

	// A delta exhausting the quantity deletes the line outright.
	crt = rt.applyDeltaOK(t, p1.ID, -5)
	rt.wantLines(t, crt)
	rt.wantTotal(t, crt, "0.00")

	// Decreasing a line that does not exist is a client error.
	rt.applyDeltaStatus(t, p1.ID, -1, http.StatusNotFound)

	// So is removing one.
	rt.removeLineStatus(t, p1.ID, http.StatusNotFound)

	// An unknown product cannot enter the cart.
	rt.applyDeltaStatus(t, "6f2fca10-6a95-44a5-a2a4-56db3e78e1d7", 1, http.StatusNotFound)

	// Checkout demands at least one line.
	rt.checkoutStatus(t, http.StatusUnprocessableEntity)

	// Partial decrease keeps the line with the reduced quantity.
	crt = rt.applyDeltaOK(t, p1.ID, 4)
	crt = rt.applyDeltaOK(t, p1.ID, -3)
	rt.wantLines(t, crt, lineOf(p1.ID, 1))
	rt.wantTotal(t, crt, "10.00")

	// Unconditional removal empties it again.
	crt = rt.removeLineOK(t, p1.ID)
	rt.wantLines(t, crt)

	// Checkout returns the total of the moment and clears the lines.
	rt.applyDeltaOK(t, p1.ID, 1)
	crt = rt.applyDeltaOK(t, p2.ID, 3)
	rt.wantTotal(t, crt, "25.00")

	total := rt.checkoutOK(t)
	if want := decimal.RequireFromString("25.00"); !total.Equal(want) {
		t.Fatalf("checkout total: expected %s, got %s", want, total)
	}

	crt = rt.showOK(t)
	rt.wantLines(t, crt)
	rt.wantTotal(t, crt, "0.00")

	// All of the traffic above resolved the same single cart row.
	var carts int
	if err := env.DB.Get(&carts, `SELECT COUNT(*) FROM carts`); err != nil {
		t.Fatalf("counting carts: %v", err)
	}
	if carts != 1 {
		t.Fatalf("expected exactly 1 cart row, got %d", carts)
	}
}

type lineWant struct {
	productID string
	quantity  int
}

func lineOf(productID string, quantity int) lineWant {
	return lineWant{productID: productID, quantity: quantity}
}

func (rt *cartTest) wantLines(t *testing.T, crt cartView, want ...lineWant) {
	t.Helper()

	if len(crt.Lines) != len(want) {
		t.Fatalf("expected %d lines, got %d", len(want), len(crt.Lines))
	}
	for i, w := range want {
		if crt.Lines[i].ProductID != w.productID {
			t.Fatalf("line %d: expected product %s, got %s", i, w.productID, crt.Lines[i].ProductID)
		}
		if crt.Lines[i].Quantity != w.quantity {
			t.Fatalf("line %d: expected quantity %d, got %d", i, w.quantity, crt.Lines[i].Quantity)
		}
	}
}

func (rt *cartTest) wantTotal(t *testing.T, crt cartView, want string) {
	t.Helper()

	if exp := decimal.RequireFromString(want); !crt.Total.Equal(exp) {
		t.Fatalf("expected total %s, got %s", exp, crt.Total)
	}
}

func (rt *cartTest) showOK(t *testing.T) cartView {
	t.Helper()

	var crt cartView
	code, err := rt.do(http.MethodGet, "/cart", nil, &crt)
	if err != nil {
		t.Fatal(err)
	}
	if code != http.StatusOK {
		t.Fatalf("can't fetch cart: status code %d", code)
	}
	return crt
}

func (rt *cartTest) applyDeltaOK(t *testing.T, productID string, delta int) cartView {
	t.Helper()

	body := map[string]any{"productId": productID, "delta": delta}

	var crt cartView
	code, err := rt.do(http.MethodPut, "/cart/lines", body, &crt)
	if err != nil {
		t.Fatal(err)
	}
	if code != http.StatusOK {
		t.Fatalf("can't apply delta %d on product %s: status code %d", delta, productID, code)
	}
	return crt
}

func (rt *cartTest) applyDeltaStatus(t *testing.T, productID string, delta int, want int) {
	t.Helper()

	body := map[string]any{"productId": productID, "delta": delta}

	code, err := rt.do(http.MethodPut, "/cart/lines", body, nil)
	if err != nil {
		t.Fatal(err)
	}
	if code != want {
		t.Fatalf("delta %d on product %s: expected status %d, got %d", delta, productID, want, code)
	}
}

func (rt *cartTest) removeLineOK(t *testing.T, productID string) cartView {
	t.Helper()

	var crt cartView
	code, err := rt.do(http.MethodDelete, "/cart/lines/"+productID, nil, &crt)
	if err != nil {
		t.Fatal(err)
	}
	if code != http.StatusOK {
		t.Fatalf("can't remove line of product %s: status code %d", productID, code)
	}
	return crt
}

func (rt *cartTest) removeLineStatus(t *testing.T, productID string, want int) {
	t.Helper()

	code, err := rt.do(http.MethodDelete, "/cart/lines/"+productID, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if code != want {
		t.Fatalf("remove line of product %s: expected status %d, got %d", productID, want, code)
	}
}

func (rt *cartTest) checkoutOK(t *testing.T) decimal.Decimal {
	t.Helper()

	var out struct {
		Total decimal.Decimal `json:"total"`
	}
	code, err := rt.do(http.MethodPost, "/cart/checkout", nil, &out)
	if err != nil {
		t.Fatal(err)
	}
	if code != http.StatusOK {
		t.Fatalf("can't checkout: status code %d", code)
	}
	return out.Total
}

func (rt *cartTest) checkoutStatus(t *testing.T, want int) {
	t.Helper()

	code, err := rt.do(http.MethodPost, "/cart/checkout", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if code != want {
		t.Fatalf("checkout: expected status %d, got %d", want, code)
	}
}
