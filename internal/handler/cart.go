package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/posledger/internal/domain/cart"
	"github.com/xenking/posledger/internal/domain/failure"
	"github.com/xenking/posledger/internal/domain/pricing"
)

func (h *Handler) openCart(w http.ResponseWriter, r *http.Request) {
	id, err := h.sessions.Create(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		encodeCart(e, id, cart.New(pricing.Policy{}))
	})
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	c, err := h.sessions.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, id, c) })
}

func (h *Handler) discardCart(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// addLine looks up the current product row and stages it in the cart. The
// stock check here is advisory; checkout re-verifies against locked rows.
func (h *Handler) addLine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	req, err := decodeAddLine(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req.ProductID = strings.TrimSpace(req.ProductID)
	if req.ProductID == "" {
		writeError(w, r, failure.Invalid("product_id", "required"))
		return
	}
	p, err := h.products.Get(ctx, req.ProductID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	c, err := h.sessions.Update(ctx, id, func(c *cart.Cart) error {
		_, err := c.Add(*p, req.Quantity, req.Discount)
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, id, c) })
}

func (h *Handler) removeOne(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	productID := r.PathValue("productId")
	c, err := h.sessions.Update(r.Context(), id, func(c *cart.Cart) error {
		return c.RemoveOne(productID)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, id, c) })
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	c, err := h.sessions.Update(r.Context(), id, clearCart)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, id, c) })
}

// checkout claims the session cart, commits it and then empties it. The claim
// rejects a second checkout of the same cart while the first is running; a
// rejected checkout releases the cart unchanged so it can be corrected.
func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	req, err := decodeCheckout(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.sessions.Claim(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// The claim must end even when the client goes away.
	endCtx := context.WithoutCancel(ctx)
	inv, err := h.checkouts.Checkout(ctx, c, req)
	if err != nil {
		if relErr := h.sessions.Release(endCtx, id); relErr != nil {
			zctx.From(ctx).Warn("Release cart after failed checkout",
				zap.String("session", id),
				zap.Error(relErr),
			)
		}
		h.metrics.Failure(ctx, "checkout", err)
		writeError(w, r, err)
		return
	}
	h.metrics.Checkout(ctx, len(inv.Lines), inv.GrandTotal.InexactFloat64())

	if err := h.sessions.Complete(endCtx, id); err != nil {
		zctx.From(ctx).Warn("Clear cart after checkout",
			zap.String("session", id),
			zap.String("invoice", inv.Number),
			zap.Error(err),
		)
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeInvoice(e, inv) })
}

func clearCart(c *cart.Cart) error {
	c.Clear()
	return nil
}
