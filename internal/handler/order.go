package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/fulfillment/internal/domain/payment"
)

// CreateOrder serves POST /api/orders.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := decodeCreateOrder(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.CreateOrder(r.Context(), uid, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		encodeOrderFields(e, o)
	})
}

// ExecutePayment serves POST /api/orders/{orderID}/payment.
func (h *Handler) ExecutePayment(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	orderID, err := pathID(r, "orderID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := decodeExecutePayment(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.payments.ExecutePayment(r.Context(), orderID, uid, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePayment(w, p)
}

// GetPayment serves GET /api/orders/{orderID}/payment.
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	orderID, err := pathID(r, "orderID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.payments.GetPayment(r.Context(), orderID, uid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePayment(w, p)
}

func writePayment(w http.ResponseWriter, p *payment.Payment) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodePaymentFields(e, p)
	})
}
