package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/posledger/internal/domain/failure"
)

// statusOf maps a failure kind to its HTTP status.
func statusOf(k failure.Kind) int {
	switch k {
	case failure.Validation:
		return http.StatusBadRequest
	case failure.NotFound:
		return http.StatusNotFound
	case failure.InsufficientStock, failure.OverRefund, failure.Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"code","kind","message"}. Errors outside the
// failure taxonomy are logged and hidden behind a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := failure.KindOf(err)
	status := statusOf(kind)
	msg := err.Error()
	if kind == "" {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		kind = "internal"
		msg = http.StatusText(status)
	}

	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(status) })
			e.Field("kind", func(e *jx.Encoder) { e.Str(string(kind)) })
			e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
		})
	})
}
