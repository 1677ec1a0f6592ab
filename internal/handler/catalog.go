package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/jx"

	"github.com/xenking/medcart/internal/domain/catalog"
)

func encodeMedicine(e *jx.Encoder, m catalog.Medicine) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(m.ID)
	e.FieldStart("name")
	e.Str(m.Name)
	encodeMoney(e, "price", m.Price)
	e.FieldStart("mrp")
	if m.MRP.Valid {
		e.Str(m.MRP.Decimal.StringFixed(2))
	} else {
		e.Null()
	}
	e.FieldStart("discountPercent")
	e.Int(m.DiscountPercent())
	e.FieldStart("category")
	e.Str(m.Category)
	e.FieldStart("manufacturer")
	e.Str(m.Manufacturer)
	e.FieldStart("requiresPrescription")
	e.Bool(m.RequiresPrescription)
	e.FieldStart("imageUrl")
	e.Str(m.ImageURL)
	e.FieldStart("inStock")
	e.Bool(m.InStock)
	e.ObjEnd()
}

// ListMedicines handles GET /api/medicines?category=&search=.
func (h *Handler) ListMedicines(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.catalog.List(r.Context(), catalog.Filter{
		Category: strings.TrimSpace(q.Get("category")),
		Search:   strings.TrimSpace(q.Get("search")),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var e jx.Encoder
	e.ArrStart()
	for _, m := range list {
		encodeMedicine(&e, m)
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, &e)
}

// GetMedicine handles GET /api/medicines/{id}.
func (h *Handler) GetMedicine(w http.ResponseWriter, r *http.Request) {
	m, err := h.catalog.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var e jx.Encoder
	encodeMedicine(&e, *m)
	writeJSON(w, http.StatusOK, &e)
}
