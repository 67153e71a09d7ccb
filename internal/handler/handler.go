// Package handler exposes the POS operations over JSON/HTTP.
package handler

import (
	"net/http"
	"time"

	"github.com/xenking/posledger/internal/domain/checkout"
	"github.com/xenking/posledger/internal/domain/product"
	"github.com/xenking/posledger/internal/domain/refund"
	"github.com/xenking/posledger/internal/domain/sale"
	"github.com/xenking/posledger/internal/domain/stock"
	"github.com/xenking/posledger/internal/session"
	"github.com/xenking/posledger/internal/telemetry"
)

// maxBodySize bounds request bodies.
const maxBodySize = 1 << 20

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// RecentLimit is the default page size of the sales history.
	RecentLimit int
}

// Handler serves the catalog, cart, checkout, refund and reporting routes.
type Handler struct {
	products  *product.Service
	stock     *stock.Service
	sales     sale.Repository
	sessions  session.Store
	checkouts *checkout.Service
	refunds   *refund.Service
	metrics   *telemetry.Recorder

	recentLimit int
	now         func() time.Time
}

// NewHandler constructs a Handler with the required domain dependencies.
// metrics may be nil.
func NewHandler(
	cfg Config,
	products *product.Service,
	stockSvc *stock.Service,
	sales sale.Repository,
	sessions session.Store,
	checkouts *checkout.Service,
	refunds *refund.Service,
	metrics *telemetry.Recorder,
) *Handler {
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = sale.DefaultRecentLimit
	}
	return &Handler{
		products:    products,
		stock:       stockSvc,
		sales:       sales,
		sessions:    sessions,
		checkouts:   checkouts,
		refunds:     refunds,
		metrics:     metrics,
		recentLimit: cfg.RecentLimit,
		now:         time.Now,
	}
}

// Register mounts every API route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/product", h.listProducts)
	mux.HandleFunc("POST /api/product", h.saveProduct)
	mux.HandleFunc("GET /api/product/low-stock", h.lowStock)
	mux.HandleFunc("GET /api/product/{id}", h.getProduct)
	mux.HandleFunc("POST /api/product/{id}/stock", h.adjustStock)

	mux.HandleFunc("POST /api/cart", h.openCart)
	mux.HandleFunc("GET /api/cart/{id}", h.getCart)
	mux.HandleFunc("DELETE /api/cart/{id}", h.discardCart)
	mux.HandleFunc("POST /api/cart/{id}/lines", h.addLine)
	mux.HandleFunc("DELETE /api/cart/{id}/lines", h.clearCart)
	mux.HandleFunc("DELETE /api/cart/{id}/lines/{productId}", h.removeOne)
	mux.HandleFunc("POST /api/cart/{id}/checkout", h.checkout)

	mux.HandleFunc("GET /api/sale", h.recentSales)
	mux.HandleFunc("GET /api/sale/{id}", h.getSale)
	mux.HandleFunc("GET /api/sale/{id}/refundable", h.refundable)
	mux.HandleFunc("POST /api/refund", h.refund)

	mux.HandleFunc("GET /api/summary", h.summary)
}
