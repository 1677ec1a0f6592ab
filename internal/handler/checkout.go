package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/medcart/internal/domain/checkout"
	"github.com/xenking/medcart/internal/domain/order"
)

// IdempotencyKeyHeader names the header that makes checkout replay-safe.
const IdempotencyKeyHeader = "Idempotency-Key"

// Checkout handles POST /api/checkout.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	in := checkout.Input{
		UserID:         p.UserID,
		IdempotencyKey: strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader)),
	}
	var method string
	err := decodeBody(w, r, func(d *jx.Decoder) error {
		return decodeFields(d, map[string]func(*jx.Decoder) error{
			"couponCode":      readStr(&in.CouponCode),
			"deliveryAddress": readStr(&in.DeliveryAddress),
			"deliveryPhone":   readStr(&in.DeliveryPhone),
			"deliveryNotes":   readStr(&in.DeliveryNotes),
			"paymentMethod":   readStr(&method),
			"email":           readStr(&in.Email),
		})
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	in.PaymentMethod = order.PaymentMethod(method)
	if in.Email == "" {
		in.Email = p.Email
	}
	if in.DeliveryPhone == "" {
		in.DeliveryPhone = p.Phone
	}

	unlock := h.locks.lock(p.UserID)
	defer unlock()

	c, err := h.carts.Load(r.Context(), p.UserID)
	if err != nil {
		h.fail(w, r, errors.Wrap(err, "load cart"))
		return
	}
	in.Cart = c

	res, err := h.checkout.Checkout(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("order")
	encodeOrder(&e, res.Order)
	e.FieldStart("quote")
	h.encodeQuote(&e, res.Quote)
	if res.CouponRejected != nil {
		e.FieldStart("couponRejected")
		e.Str(res.CouponRejected.Error())
	}
	if res.PaymentURL != "" {
		e.FieldStart("paymentUrl")
		e.Str(res.PaymentURL)
	}
	e.ObjEnd()
	writeJSON(w, http.StatusCreated, &e)
}
