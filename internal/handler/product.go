package handler

import (
	"net/http"

	"github.com/go-faster/jx"
)

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.products.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeProducts(e, ps) })
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeProduct(e, *p) })
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	ps, err := h.products.LowStock(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeProducts(e, ps) })
}

// saveProduct creates a product when the body has no id and updates its
// catalog fields otherwise. The stock of an existing product is changed
// through adjustStock only.
func (h *Handler) saveProduct(w http.ResponseWriter, r *http.Request) {
	in, err := decodeProduct(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if in.ID == "" {
		status = http.StatusCreated
	}
	p, err := h.products.Save(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, func(e *jx.Encoder) { encodeProduct(e, *p) })
}

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	delta, err := decodeStockDelta(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.stock.Adjust(r.Context(), r.PathValue("id"), delta)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeProduct(e, *p) })
}
