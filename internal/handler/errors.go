package handler

import (
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/fulfillment/internal/domain/apperr"
	"github.com/xenking/fulfillment/internal/domain/validation"
)

// badRequestError marks input that could not be decoded or parsed.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &badRequestError{msg: fmt.Sprintf(format, args...)}
}

type classified interface {
	error
	Kind() apperr.Kind
}

// writeError maps err to a status and a {"code","message"} body. Client
// errors carry the message of the domain error; server errors are logged and
// answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var br *badRequestError
	if errors.As(err, &br) {
		writeStatus(w, http.StatusBadRequest, "bad_request", br.msg)
		return
	}

	kind := apperr.KindOf(err)
	if !kind.ClientFacing() {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("kind", kind.String()),
			zap.Error(err),
		)
		writeStatus(w, http.StatusInternalServerError, kind.String(), "internal server error")
		return
	}

	msg := err.Error()
	var c classified
	if errors.As(err, &c) {
		msg = c.Error()
	}

	var verr *validation.Error
	if errors.As(err, &verr) {
		writeJSON(w, statusOf(kind), func(e *jx.Encoder) {
			encodeErrorFields(e, kind.String(), msg)
			e.Field("fields", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, f := range verr.Fields {
						e.Obj(func(e *jx.Encoder) {
							e.Field("field", func(e *jx.Encoder) { e.Str(f.Field) })
							e.Field("rule", func(e *jx.Encoder) { e.Str(f.Rule) })
							if f.Param != "" {
								e.Field("param", func(e *jx.Encoder) { e.Str(f.Param) })
							}
						})
					}
				})
			})
		})
		return
	}
	writeStatus(w, statusOf(kind), kind.String(), msg)
}

func statusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Conflict:
		return http.StatusConflict
	case apperr.Validation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeStatus(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		encodeErrorFields(e, code, msg)
	})
}

func encodeErrorFields(e *jx.Encoder, code, msg string) {
	e.Field("code", func(e *jx.Encoder) { e.Str(code) })
	e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
}

// writeJSON writes a single JSON object produced by fields.
func writeJSON(w http.ResponseWriter, status int, fields func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	e.Obj(fields)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
