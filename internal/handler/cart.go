package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	cartsvc "github.com/xenking/fulfillment/internal/service/cart"
)

// CreateCart serves POST /api/carts.
func (h *Handler) CreateCart(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := decodeItems(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	c, err := h.carts.CreateCart(r.Context(), uid, items)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCart(w, http.StatusCreated, c)
}

// GetCart serves GET /api/carts/{cartID}.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cartID, err := pathID(r, "cartID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	c, err := h.carts.GetCart(r.Context(), uid, cartID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCart(w, http.StatusOK, c)
}

// UpdateCart serves PUT /api/carts/{cartID}. A cart left without items is
// deleted and answered with 204.
func (h *Handler) UpdateCart(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cartID, err := pathID(r, "cartID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := decodeItems(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.carts.UpdateCart(r.Context(), uid, cartID, items)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if res.Removed {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeCart(w, http.StatusOK, res.Cart)
}

func writeCart(w http.ResponseWriter, status int, c *cartsvc.Snapshot) {
	writeJSON(w, status, func(e *jx.Encoder) {
		encodeCartFields(e, c)
	})
}
