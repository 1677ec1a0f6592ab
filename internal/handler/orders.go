package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/medcart/internal/domain/invoice"
	"github.com/xenking/medcart/internal/domain/order"
)

var errNoInvoices = errors.New("invoice renderer not configured")

func encodeOrderLine(e *jx.Encoder, l order.Line) {
	e.ObjStart()
	e.FieldStart("productRef")
	e.Str(l.ProductRef)
	e.FieldStart("name")
	e.Str(l.Name)
	encodeMoney(e, "unitPrice", l.UnitPrice)
	encodeMoney(e, "mrp", l.MRP)
	e.FieldStart("quantity")
	e.Int(l.Quantity)
	encodeMoney(e, "lineTotal", l.Total())
	e.ObjEnd()
}

func encodeTracking(e *jx.Encoder, t order.Tracking) {
	e.ObjStart()
	e.FieldStart("cancelled")
	e.Bool(t.Cancelled)
	e.FieldStart("steps")
	e.ArrStart()
	for _, s := range t.Steps {
		e.ObjStart()
		e.FieldStart("status")
		e.Str(string(s.Status))
		e.FieldStart("state")
		e.Str(string(s.State))
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("userId")
	e.Str(o.UserID)
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("paymentStatus")
	e.Str(string(o.PaymentStatus))
	e.FieldStart("paymentMethod")
	e.Str(string(o.PaymentMethod))
	e.FieldStart("lines")
	e.ArrStart()
	for _, l := range o.Lines {
		encodeOrderLine(e, l)
	}
	e.ArrEnd()
	encodeMoney(e, "subtotal", o.Subtotal)
	encodeMoney(e, "mrpTotal", o.MRPTotal)
	encodeMoney(e, "mrpDiscount", o.MRPDiscount)
	e.FieldStart("couponCode")
	e.Str(o.CouponCode)
	encodeMoney(e, "couponDiscount", o.CouponDiscount)
	encodeMoney(e, "deliveryFee", o.DeliveryFee)
	encodeMoney(e, "total", o.Total)
	e.FieldStart("delivery")
	e.ObjStart()
	e.FieldStart("address")
	e.Str(o.DeliveryAddress)
	e.FieldStart("phone")
	e.Str(o.DeliveryPhone)
	e.FieldStart("notes")
	e.Str(o.DeliveryNotes)
	e.ObjEnd()
	e.FieldStart("trackingNumber")
	e.Str(o.TrackingNumber)
	e.FieldStart("version")
	e.Int(o.Version)
	e.FieldStart("createdAt")
	e.Str(o.CreatedAt.UTC().Format(time.RFC3339))
	e.FieldStart("updatedAt")
	e.Str(o.UpdatedAt.UTC().Format(time.RFC3339))
	e.FieldStart("expectedDelivery")
	e.Str(o.ExpectedDelivery.Format(time.DateOnly))
	e.FieldStart("tracking")
	encodeTracking(e, order.Track(o.Status))
	e.ObjEnd()
}

func writeOrders(w http.ResponseWriter, orders []order.Order) {
	var e jx.Encoder
	e.ArrStart()
	for i := range orders {
		encodeOrder(&e, &orders[i])
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, &e)
}

// visibleOrder loads an order the caller owns. Other users' orders look
// missing unless the caller is an admin.
func (h *Handler) visibleOrder(r *http.Request) (*order.Order, error) {
	o, err := h.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		return nil, err
	}
	if p := principal(r); o.UserID != p.UserID && !p.IsAdmin() {
		return nil, order.ErrNotFound
	}
	return o, nil
}

// ListMyOrders handles GET /api/orders.
func (h *Handler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListByUser(r.Context(), principal(r).UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOrders(w, orders)
}

// GetOrder handles GET /api/orders/{id}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.visibleOrder(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var e jx.Encoder
	encodeOrder(&e, o)
	writeJSON(w, http.StatusOK, &e)
}

// GetInvoice handles GET /api/orders/{id}/invoice.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	if h.invoices == nil {
		h.fail(w, r, errNoInvoices)
		return
	}
	o, err := h.visibleOrder(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	html, err := h.invoices.Render(r.Context(), invoice.TypeOrder, o.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))
}
