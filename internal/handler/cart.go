package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/medcart/internal/domain/cart"
	"github.com/xenking/medcart/internal/domain/checkout"
	"github.com/xenking/medcart/internal/domain/coupon"
	"github.com/xenking/medcart/internal/domain/money"
)

var errOutOfStock = errors.New("medicine is out of stock")

type addItemRequest struct {
	ProductRef string `validate:"required,max=128"`
	Quantity   int    `validate:"max=999"`
}

type setQuantityRequest struct {
	Quantity int `validate:"max=999"`
}

type couponRequest struct {
	Code string `validate:"required,max=64"`
}

func encodeCartLine(e *jx.Encoder, l cart.Line) {
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
	e.FieldStart("requiresPrescription")
	e.Bool(l.RequiresPrescription)
	e.ObjEnd()
}

func encodeCouponResult(e *jx.Encoder, res *coupon.Result) {
	e.FieldStart("coupon")
	if res == nil {
		e.Null()
		return
	}
	e.ObjStart()
	e.FieldStart("code")
	e.Str(res.Code)
	e.FieldStart("valid")
	e.Bool(res.Valid)
	e.FieldStart("rate")
	e.Str(res.Rate.String())
	encodeMoney(e, "discountAmount", res.DiscountAmount)
	e.FieldStart("description")
	e.Str(res.Description)
	if res.Reason != nil {
		e.FieldStart("reason")
		e.Str(res.Reason.Error())
	}
	e.ObjEnd()
}

func (h *Handler) encodeQuote(e *jx.Encoder, q checkout.Quote) {
	e.ObjStart()
	e.FieldStart("itemCount")
	e.Int(q.ItemCount)
	encodeMoney(e, "subtotal", q.Subtotal)
	encodeMoney(e, "mrpTotal", q.MRPTotal)
	encodeMoney(e, "mrpDiscount", q.MRPDiscount)
	encodeCouponResult(e, q.Coupon)
	encodeMoney(e, "couponDiscount", q.CouponDiscount)
	encodeMoney(e, "deliveryFee", q.DeliveryFee)
	encodeMoney(e, "freeDeliveryRemaining", q.FreeDeliveryRemaining)
	encodeMoney(e, "total", q.Total)
	e.FieldStart("totalDisplay")
	e.Str(money.Format(q.Total, h.symbol))
	e.ObjEnd()
}

func (h *Handler) writeCart(w http.ResponseWriter, r *http.Request, c *cart.Cart, couponCode string) {
	q, err := h.checkout.Quote(r.Context(), c, couponCode)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("lines")
	e.ArrStart()
	for _, l := range c.Lines() {
		encodeCartLine(&e, l)
	}
	e.ArrEnd()
	encodeMoney(&e, "savings", c.Savings())
	e.FieldStart("requiresPrescription")
	e.Bool(c.RequiresPrescription())
	e.FieldStart("quote")
	h.encodeQuote(&e, q)
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

// mutateCart loads the caller's cart, applies fn and stores the result while
// holding the caller's cart lock.
func (h *Handler) mutateCart(ctx context.Context, userID string, fn func(c *cart.Cart) error) (*cart.Cart, error) {
	unlock := h.locks.lock(userID)
	defer unlock()

	c, err := h.carts.Load(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	if err := h.carts.Save(ctx, userID, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// GetCart handles GET /api/cart.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.Load(r.Context(), principal(r).UserID)
	if err != nil {
		h.fail(w, r, errors.Wrap(err, "load cart"))
		return
	}
	h.writeCart(w, r, c, r.URL.Query().Get("coupon"))
}

// AddCartItem handles POST /api/cart/items.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	err := decodeBody(w, r, func(d *jx.Decoder) error {
		return decodeFields(d, map[string]func(*jx.Decoder) error{
			"productRef": readStr(&req.ProductRef),
			"quantity":   readInt(&req.Quantity),
		})
	})
	if err == nil {
		err = h.validateStruct(req)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	m, err := h.catalog.GetByID(r.Context(), req.ProductRef)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !m.InStock {
		h.fail(w, r, errOutOfStock)
		return
	}

	c, err := h.mutateCart(r.Context(), principal(r).UserID, func(c *cart.Cart) error {
		return c.AddItem(m.CartItem(), req.Quantity)
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeCart(w, r, c, "")
}

// SetCartQuantity handles PUT /api/cart/items/{ref}. A quantity below one
// removes the line.
func (h *Handler) SetCartQuantity(w http.ResponseWriter, r *http.Request) {
	var req setQuantityRequest
	err := decodeBody(w, r, func(d *jx.Decoder) error {
		return decodeFields(d, map[string]func(*jx.Decoder) error{
			"quantity": readInt(&req.Quantity),
		})
	})
	if err == nil {
		err = h.validateStruct(req)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ref := r.PathValue("ref")
	c, err := h.mutateCart(r.Context(), principal(r).UserID, func(c *cart.Cart) error {
		return c.SetQuantity(ref, req.Quantity)
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeCart(w, r, c, "")
}

// RemoveCartItem handles DELETE /api/cart/items/{ref}.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	ref := r.PathValue("ref")
	c, err := h.mutateCart(r.Context(), principal(r).UserID, func(c *cart.Cart) error {
		return c.RemoveLine(ref)
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeCart(w, r, c, "")
}

// PreviewCoupon handles POST /api/cart/coupon. An inapplicable code is not an
// error; the quote carries the reason.
func (h *Handler) PreviewCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponRequest
	err := decodeBody(w, r, func(d *jx.Decoder) error {
		return decodeFields(d, map[string]func(*jx.Decoder) error{
			"code": readStr(&req.Code),
		})
	})
	if err == nil {
		err = h.validateStruct(req)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	c, err := h.carts.Load(r.Context(), principal(r).UserID)
	if err != nil {
		h.fail(w, r, errors.Wrap(err, "load cart"))
		return
	}
	h.writeCart(w, r, c, req.Code)
}
