package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/posledger/internal/domain/sale"
)

func (h *Handler) recentSales(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r, h.recentLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := h.sales.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, s := range rows {
				encodeSale(e, s)
			}
		})
	})
}

func (h *Handler) getSale(w http.ResponseWriter, r *http.Request) {
	id, err := sale.ParseID(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.sales.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeSale(e, *s) })
}

// refundable lists every line of the sale's invoice with what can still be
// returned.
func (h *Handler) refundable(w http.ResponseWriter, r *http.Request) {
	id, err := sale.ParseID(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	lines, err := h.refunds.Refundable(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeRefundLines(e, lines) })
}

func (h *Handler) refund(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := decodeRefund(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ret, err := h.refunds.Refund(ctx, req)
	if err != nil {
		h.metrics.Failure(ctx, "refund", err)
		writeError(w, r, err)
		return
	}
	h.metrics.Refund(ctx)
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeReturn(e, ret) })
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	s, err := h.sales.Summary(r.Context(), h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeSummary(e, s) })
}
