package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/medcart/internal/domain/cart"
	"github.com/xenking/medcart/internal/domain/catalog"
	"github.com/xenking/medcart/internal/domain/checkout"
	"github.com/xenking/medcart/internal/domain/invoice"
	"github.com/xenking/medcart/internal/domain/order"
)

const maxBodyBytes = 1 << 20

// badRequestError is a malformed or invalid request body.
type badRequestError struct {
	msg    string
	fields []checkout.FieldError
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &badRequestError{msg: msg}
}

// decodeBody reads the request body and feeds it to decode.
func decodeBody(w http.ResponseWriter, r *http.Request, decode func(d *jx.Decoder) error) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return badRequest("request body too large")
	}
	if len(data) == 0 {
		return badRequest("request body required")
	}
	if err := decode(jx.DecodeBytes(data)); err != nil {
		return badRequest("malformed JSON body")
	}
	return nil
}

// decodeFields walks a JSON object, handing each known key to its reader.
func decodeFields(d *jx.Decoder, fields map[string]func(d *jx.Decoder) error) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		if read, ok := fields[key]; ok {
			return read(d)
		}
		return d.Skip()
	})
}

func readStr(dst *string) func(d *jx.Decoder) error {
	return func(d *jx.Decoder) error {
		if d.Next() == jx.Null {
			return d.Null()
		}
		v, err := d.Str()
		*dst = v
		return err
	}
}

func readInt(dst *int) func(d *jx.Decoder) error {
	return func(d *jx.Decoder) error {
		if d.Next() == jx.Null {
			return d.Null()
		}
		v, err := d.Int()
		*dst = v
		return err
	}
}

// validateStruct runs validator tags on v and converts failures into a 400.
func (h *Handler) validateStruct(v any) error {
	err := h.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return badRequest("invalid request")
	}
	out := &badRequestError{msg: "invalid request"}
	for _, fe := range verrs {
		out.fields = append(out.fields, checkout.FieldError{
			Field:  lowerFirst(fe.Field()),
			Reason: fe.Tag() + fieldParam(fe.Param()),
		})
	}
	return out
}

func fieldParam(p string) string {
	if p == "" {
		return ""
	}
	return "=" + p
}

func lowerFirst(s string) string {
	if s == "" || s[0] < 'A' || s[0] > 'Z' {
		return s
	}
	return string(s[0]+('a'-'A')) + s[1:]
}

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func encodeError(e *jx.Encoder, code int, msg string, extra func(e *jx.Encoder)) {
	e.ObjStart()
	e.FieldStart("code")
	e.Int(code)
	e.FieldStart("message")
	e.Str(msg)
	if extra != nil {
		extra(e)
	}
	e.ObjEnd()
}

func encodeFieldErrors(fields []checkout.FieldError) func(e *jx.Encoder) {
	return func(e *jx.Encoder) {
		e.FieldStart("fields")
		e.ArrStart()
		for _, f := range fields {
			e.ObjStart()
			e.FieldStart("field")
			e.Str(f.Field)
			e.FieldStart("reason")
			e.Str(f.Reason)
			e.ObjEnd()
		}
		e.ArrEnd()
	}
}

// fail maps err to a status code and writes the API error body. Server-side
// failures are logged and answered with a generic message.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		e        jx.Encoder
		status   int
		msg      string
		extra    func(e *jx.Encoder)
		badReq   *badRequestError
		valErr   *checkout.ValidationError
		payErr   *checkout.PaymentSessionError
		transErr *order.TransitionError
	)

	switch {
	case errors.As(err, &badReq):
		status, msg = http.StatusBadRequest, badReq.msg
		if len(badReq.fields) > 0 {
			extra = encodeFieldErrors(badReq.fields)
		}
	case errors.As(err, &valErr):
		status, msg = http.StatusBadRequest, "validation failed"
		extra = encodeFieldErrors(valErr.Fields)
	case errors.Is(err, errUnauthorized):
		status, msg = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, errForbidden), errors.Is(err, order.ErrForbidden):
		status, msg = http.StatusForbidden, "forbidden"
	case errors.Is(err, checkout.ErrDuplicateSubmission):
		status, msg = http.StatusConflict, "order already placed for this idempotency key"
	case errors.Is(err, order.ErrVersionConflict):
		status, msg = http.StatusConflict, "order was modified, reload and retry"
	case errors.As(err, &transErr):
		status, msg = http.StatusUnprocessableEntity, transErr.Error()
	case errors.Is(err, order.ErrUnknownStatus):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, order.ErrNotFound):
		status, msg = http.StatusNotFound, "order not found"
	case errors.Is(err, catalog.ErrNotFound):
		status, msg = http.StatusNotFound, "medicine not found"
	case errors.Is(err, cart.ErrLineNotFound):
		status, msg = http.StatusNotFound, "cart line not found"
	case errors.Is(err, invoice.ErrNotFound):
		status, msg = http.StatusNotFound, "invoice not found"
	case errors.Is(err, errOutOfStock):
		status, msg = http.StatusUnprocessableEntity, errOutOfStock.Error()
	case errors.Is(err, cart.ErrMRPBelowPrice), errors.Is(err, cart.ErrNegativePrice):
		status, msg = http.StatusUnprocessableEntity, "medicine cannot be added to the cart"
	case errors.Is(err, errNoInvoices):
		status, msg = http.StatusNotImplemented, "invoices are not available"
	case errors.As(err, &payErr):
		status, msg = http.StatusBadGateway, "payment provider unavailable, the order was saved and awaits payment"
		if payErr.Cancelled {
			msg = "payment provider unavailable, the order was cancelled and the cart restored"
		}
		orderID, cancelled := payErr.OrderID, payErr.Cancelled
		extra = func(e *jx.Encoder) {
			e.FieldStart("orderId")
			e.Str(orderID)
			e.FieldStart("orderCancelled")
			e.Bool(cancelled)
		}
	default:
		status, msg = http.StatusInternalServerError, "internal error"
	}

	if status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	}

	encodeError(&e, status, msg, extra)
	writeJSON(w, status, &e)
}

func encodeMoney(e *jx.Encoder, field string, d decimal.Decimal) {
	e.FieldStart(field)
	e.Str(d.StringFixed(2))
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequest("query parameter " + key + " must be an integer")
	}
	return n, nil
}
