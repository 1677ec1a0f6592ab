package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/jx"

	"github.com/xenking/medcart/internal/domain/order"
)

type statusRequest struct {
	Status          string `validate:"required"`
	ExpectedVersion int    `validate:"min=0"`
	TrackingNumber  string `validate:"max=64"`
}

type paymentStatusRequest struct {
	PaymentStatus   string `validate:"required"`
	ExpectedVersion int    `validate:"min=0"`
}

// AdminListOrders handles GET /api/admin/orders.
func (h *Handler) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	q := r.URL.Query()
	orders, err := h.orders.List(r.Context(), order.ListFilter{
		Status:        order.Status(strings.TrimSpace(q.Get("status"))),
		PaymentStatus: order.PaymentStatus(strings.TrimSpace(q.Get("paymentStatus"))),
		UserID:        strings.TrimSpace(q.Get("userId")),
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOrders(w, orders)
}

// AdminSetStatus handles POST /api/admin/orders/{id}/status.
func (h *Handler) AdminSetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	err := decodeBody(w, r, func(d *jx.Decoder) error {
		return decodeFields(d, map[string]func(*jx.Decoder) error{
			"status":          readStr(&req.Status),
			"expectedVersion": readInt(&req.ExpectedVersion),
			"trackingNumber":  readStr(&req.TrackingNumber),
		})
	})
	if err == nil {
		err = h.validateStruct(req)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	o, err := h.orders.Transition(r.Context(), order.TransitionRequest{
		OrderID:         r.PathValue("id"),
		To:              order.Status(req.Status),
		ExpectedVersion: req.ExpectedVersion,
		Actor:           order.ActorAdmin,
		TrackingNumber:  strings.TrimSpace(req.TrackingNumber),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var e jx.Encoder
	encodeOrder(&e, o)
	writeJSON(w, http.StatusOK, &e)
}

// AdminSetPaymentStatus handles POST /api/admin/orders/{id}/payment-status.
func (h *Handler) AdminSetPaymentStatus(w http.ResponseWriter, r *http.Request) {
	var req paymentStatusRequest
	err := decodeBody(w, r, func(d *jx.Decoder) error {
		return decodeFields(d, map[string]func(*jx.Decoder) error{
			"paymentStatus":   readStr(&req.PaymentStatus),
			"expectedVersion": readInt(&req.ExpectedVersion),
		})
	})
	if err == nil {
		err = h.validateStruct(req)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	o, err := h.orders.SetPaymentStatus(r.Context(), order.PaymentStatusRequest{
		OrderID:         r.PathValue("id"),
		To:              order.PaymentStatus(req.PaymentStatus),
		ExpectedVersion: req.ExpectedVersion,
		Actor:           order.ActorAdmin,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var e jx.Encoder
	encodeOrder(&e, o)
	writeJSON(w, http.StatusOK, &e)
}
