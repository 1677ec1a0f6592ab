// Package handler exposes the storefront and back-office HTTP API.
package handler

import (
	"hash/fnv"
	"net/http"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/xenking/medcart/internal/domain/cart"
	"github.com/xenking/medcart/internal/domain/catalog"
	"github.com/xenking/medcart/internal/domain/checkout"
	"github.com/xenking/medcart/internal/domain/invoice"
	"github.com/xenking/medcart/internal/domain/order"
)

// Config holds non-dependency settings of the Handler.
type Config struct {
	// CurrencySymbol prefixes the display amounts in cart responses.
	CurrencySymbol string
}

// Deps are the domain collaborators of the Handler. Invoices may be nil.
type Deps struct {
	Catalog  catalog.Repository
	Carts    cart.Repository
	Checkout *checkout.Service
	Orders   *order.Service
	Invoices invoice.Renderer
	Auth     *Authenticator
}

// Handler serves the JSON API.
type Handler struct {
	catalog  catalog.Repository
	carts    cart.Repository
	checkout *checkout.Service
	orders   *order.Service
	invoices invoice.Renderer
	auth     *Authenticator
	validate *validator.Validate
	symbol   string
	locks    userLocks
}

// New constructs a Handler.
func New(cfg Config, deps Deps) *Handler {
	if cfg.CurrencySymbol == "" {
		cfg.CurrencySymbol = "₹"
	}
	return &Handler{
		catalog:  deps.Catalog,
		carts:    deps.Carts,
		checkout: deps.Checkout,
		orders:   deps.Orders,
		invoices: deps.Invoices,
		auth:     deps.Auth,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		symbol:   cfg.CurrencySymbol,
	}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/medicines", h.ListMedicines)
	mux.HandleFunc("GET /api/medicines/{id}", h.GetMedicine)

	mux.Handle("GET /api/cart", h.user(h.GetCart))
	mux.Handle("POST /api/cart/items", h.user(h.AddCartItem))
	mux.Handle("PUT /api/cart/items/{ref}", h.user(h.SetCartQuantity))
	mux.Handle("DELETE /api/cart/items/{ref}", h.user(h.RemoveCartItem))
	mux.Handle("POST /api/cart/coupon", h.user(h.PreviewCoupon))

	mux.Handle("POST /api/checkout", h.user(h.Checkout))

	mux.Handle("GET /api/orders", h.user(h.ListMyOrders))
	mux.Handle("GET /api/orders/{id}", h.user(h.GetOrder))
	mux.Handle("GET /api/orders/{id}/invoice", h.user(h.GetInvoice))

	mux.Handle("GET /api/admin/orders", h.admin(h.AdminListOrders))
	mux.Handle("POST /api/admin/orders/{id}/status", h.admin(h.AdminSetStatus))
	mux.Handle("POST /api/admin/orders/{id}/payment-status", h.admin(h.AdminSetPaymentStatus))
}

// userLocks serializes cart read-modify-write cycles per user.
type userLocks struct {
	stripes [64]sync.Mutex
}

func (l *userLocks) lock(userID string) func() {
	f := fnv.New32a()
	_, _ = f.Write([]byte(userID))
	mu := &l.stripes[f.Sum32()%uint32(len(l.stripes))]
	mu.Lock()
	return mu.Unlock
}
