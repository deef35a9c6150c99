package test

import (
	"net/http"
	"testing"

	"github.com/ecomoro/storefront/core/product"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

type productTest struct {
	*TestEnv
}

func TestProducts(t *testing.T) {
	env, err := NewTestEnv(t, "product_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	pt := &productTest{env}

	// Catalog maintenance is for admins only.
	pt.createProductStatus(t, "Nope", "1.00", http.StatusUnauthorized)

	if err := env.Login(env.UserEmail, env.UserPass); err != nil {
		t.Fatal(err)
	}
	pt.createProductStatus(t, "Still nope", "1.00", http.StatusUnauthorized)
	if err := env.Logout(); err != nil {
		t.Fatal(err)
	}

	if err := env.Login(env.AdminEmail, env.AdminPass); err != nil {
		t.Fatal(err)
	}
	bench := pt.createProductOK(t, "Oak Bench", "120.00")
	pt.createProductOK(t, "Cedar Birdhouse", "25.50")
	pt.createProductOK(t, "Cedar Planter", "18.00")

	// The catalog is publicly readable.
	if err := env.Logout(); err != nil {
		t.Fatal(err)
	}

	all := pt.listOK(t, "")
	if len(all) != 3 {
		t.Fatalf("expected 3 products, got %d", len(all))
	}

	cedar := pt.listOK(t, "?search=cedar")
	names := make([]string, 0, len(cedar))
	for _, p := range cedar {
		names = append(names, p.Name)
	}
	if diff := cmp.Diff([]string{"Cedar Birdhouse", "Cedar Planter"}, names); diff != "" {
		t.Fatalf("search mismatch (-want +got):\n%s", diff)
	}

	// Listing is ordered by name, so paging one by one walks that order.
	second := pt.listOK(t, "?page=2&per_page=1")
	if len(second) != 1 || second[0].Name != "Cedar Planter" {
		t.Fatalf("unexpected second page: %+v", second)
	}

	pt.listStatus(t, "?page=0", http.StatusBadRequest)
	pt.listStatus(t, "?per_page=1000", http.StatusBadRequest)

	got := pt.showOK(t, bench.ID)
	if got.Name != bench.Name || !got.Price.Equal(bench.Price) {
		t.Fatalf("expected %+v, got %+v", bench, got)
	}

	pt.showStatus(t, "not-a-uuid", http.StatusBadRequest)
	pt.showStatus(t, "87a7bbd8-8c57-4da5-9e4c-e0ec4f4fc1a8", http.StatusNotFound)

	// Price updates land and negative prices are rejected.
	if err := env.Login(env.AdminEmail, env.AdminPass); err != nil {
		t.Fatal(err)
	}

	newPrice := decimal.RequireFromString("99.99")
	upd := pt.updateOK(t, bench.ID, map[string]any{"price": newPrice})
	if !upd.Price.Equal(newPrice) {
		t.Fatalf("expected updated price %s, got %s", newPrice, upd.Price)
	}

	pt.updateStatus(t, bench.ID, map[string]any{"price": "-1.00"}, http.StatusUnprocessableEntity)
}

func (pt *productTest) createProductOK(t *testing.T, name string, price string) product.Product {
	t.Helper()

	body := map[string]any{
		"name":        name,
		"description": "A " + name + " for the garden.",
		"imageUrl":    "https://img.example.com/" + name,
		"price":       price,
	}

	var prd product.Product
	code, err := pt.do(http.MethodPost, "/products", body, &prd)
	if err != nil {
		t.Fatal(err)
	}
	if code != http.StatusCreated {
		t.Fatalf("can't create product %q: status code %d", name, code)
	}
	return prd
}

func (pt *productTest) createProductStatus(t *testing.T, name string, price string, want int) {
	t.Helper()

	body := map[string]any{
		"name":        name,
		"description": "desc",
		"imageUrl":    "https://img.example.com/x",
		"price":       price,
	}

	code, err := pt.do(http.MethodPost, "/products", body, nil)
	if err != nil {
		t.Fatal(err)
	}
	if code != want {
		t.Fatalf("create product: expected status %d, got %d", want, code)
	}
}

func (pt *productTest) listOK(t *testing.T, query string) []product.Product {
	t.Helper()

	var products []product.Product
	code, err := pt.do(http.MethodGet, "/products"+query, nil, &products)
	if err != nil {
		t.Fatal(err)
	}
	if code != http.StatusOK {
		t.Fatalf("can't list products%s: status code %d", query, code)
	}
	return products
}

func (pt *productTest) listStatus(t *testing.T, query string, want int) {
	t.Helper()

	code, err := pt.do(http.MethodGet, "/products"+query, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if code != want {
		t.Fatalf("list products%s: expected status %d, got %d", query, want, code)
	}
}

func (pt *productTest) showOK(t *testing.T, id string) product.Product {
	t.Helper()

	var prd product.Product
	code, err := pt.do(http.MethodGet, "/products/"+id, nil, &prd)
	if err != nil {
		t.Fatal(err)
	}
	if code != http.StatusOK {
		t.Fatalf("can't show product %s: status code %d", id, code)
	}
	return prd
}

func (pt *productTest) showStatus(t *testing.T, id string, want int) {
	t.Helper()

	code, err := pt.do(http.MethodGet, "/products/"+id, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if code != want {
		t.Fatalf("show product %s: expected status %d, got %d", id, want, code)
	}
}

func (pt *productTest) updateOK(t *testing.T, id string, body map[string]any) product.Product {
	t.Helper()

	var prd product.Product
	code, err := pt.do(http.MethodPut, "/products/"+id, body, &prd)
	if err != nil {
		t.Fatal(err)
	}
	if code != http.StatusOK {
		t.Fatalf("can't update product %s: status code %d", id, code)
	}
	return prd
}

func (pt *productTest) updateStatus(t *testing.T, id string, body map[string]any, want int) {
	t.Helper()

	code, err := pt.do(http.MethodPut, "/products/"+id, body, nil)
	if err != nil {
		t.Fatal(err)
	}
	if code != want {
		t.Fatalf("update product %s: expected status %d, got %d", id, want, code)
	}
}
