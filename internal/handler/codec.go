package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/fulfillment/internal/domain/cart"
	"github.com/xenking/fulfillment/internal/domain/order"
	"github.com/xenking/fulfillment/internal/domain/payment"
	"github.com/xenking/fulfillment/internal/domain/product"
	cartsvc "github.com/xenking/fulfillment/internal/service/cart"
	ordersvc "github.com/xenking/fulfillment/internal/service/order"
	paymentsvc "github.com/xenking/fulfillment/internal/service/payment"
)

const maxBodySize = 1 << 20

// decodeBody reads a single JSON object from the request, calling field for
// every key. Unknown keys must be skipped by field.
func decodeBody(w http.ResponseWriter, r *http.Request, field func(d *jx.Decoder, key string) error) error {
	d := jx.Decode(http.MaxBytesReader(w, r.Body, maxBodySize), 4096)
	if err := d.Obj(field); err != nil {
		return badRequest("malformed request body: %v", err)
	}
	return nil
}

// {"items":[{"product_id":1,"quantity":2}]}
func decodeItems(w http.ResponseWriter, r *http.Request) ([]cartsvc.RequestedItem, error) {
	var items []cartsvc.RequestedItem
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		if key != "items" {
			return d.Skip()
		}
		return d.Arr(func(d *jx.Decoder) error {
			var it cartsvc.RequestedItem
			err := d.Obj(func(d *jx.Decoder, key string) error {
				var err error
				switch key {
				case "product_id":
					it.ProductID, err = d.Int64()
				case "quantity":
					it.Quantity, err = d.Int()
				default:
					err = d.Skip()
				}
				return err
			})
			items = append(items, it)
			return err
		})
	})
	return items, err
}

// {"type":"DELIVERY","cart_id":"…","offer_id":1}
func decodeCreateOrder(w http.ResponseWriter, r *http.Request) (ordersvc.CreateOrderRequest, error) {
	var req ordersvc.CreateOrderRequest
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		switch key {
		case "type":
			s, err := d.Str()
			req.Type = order.Type(s)
			return err
		case "cart_id":
			s, err := d.Str()
			if err != nil {
				return err
			}
			req.CartID, err = uuid.Parse(s)
			return errors.Wrap(err, "cart_id")
		case "offer_id":
			if d.Next() == jx.Null {
				return d.Null()
			}
			id, err := d.Int64()
			req.OfferID = &id
			return err
		default:
			return d.Skip()
		}
	})
	return req, err
}

// {"payment_method":"CARD","payment_card_gateway":"VISA"}
func decodeExecutePayment(w http.ResponseWriter, r *http.Request) (paymentsvc.ExecuteRequest, error) {
	var req paymentsvc.ExecuteRequest
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		switch key {
		case "payment_method":
			s, err := d.Str()
			req.Method = payment.Method(s)
			return err
		case "payment_card_gateway":
			if d.Next() == jx.Null {
				return d.Null()
			}
			s, err := d.Str()
			req.Gateway = payment.Gateway(s)
			return err
		default:
			return d.Skip()
		}
	})
	return req, err
}

// Money is rendered as a string with two decimals so no float rounding
// reaches the client.
func encodeMoney(e *jx.Encoder, d decimal.Decimal) {
	e.Str(d.StringFixed(2))
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339Nano))
}

func encodeOptStr[T ~string](e *jx.Encoder, v T) {
	if v == "" {
		e.Null()
		return
	}
	e.Str(string(v))
}

func encodeProduct(e *jx.Encoder, p product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("price", func(e *jx.Encoder) { encodeMoney(e, p.Price) })
		e.Field("category", func(e *jx.Encoder) { e.Str(string(p.Category)) })
	})
}

func encodeCartFields(e *jx.Encoder, c *cartsvc.Snapshot) {
	e.Field("id", func(e *jx.Encoder) { e.Str(c.ID.String()) })
	e.Field("user_id", func(e *jx.Encoder) { e.Str(c.UserID.String()) })
	e.Field("total_price", func(e *jx.Encoder) { encodeMoney(e, c.TotalPrice) })
	e.Field("items", func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, it := range c.Items {
				encodeCartItem(e, it)
			}
		})
	})
}

func encodeCartItem(e *jx.Encoder, it cart.Item) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(it.ID.String()) })
		e.Field("product_id", func(e *jx.Encoder) { e.Int64(it.ProductID) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
	})
}

func encodeOrderFields(e *jx.Encoder, o *order.Order) {
	e.Field("id", func(e *jx.Encoder) { e.Str(o.ID.String()) })
	e.Field("user_id", func(e *jx.Encoder) { e.Str(o.UserID.String()) })
	e.Field("cart_id", func(e *jx.Encoder) { e.Str(o.CartID.String()) })
	e.Field("offer_id", func(e *jx.Encoder) {
		if o.OfferID == nil {
			e.Null()
			return
		}
		e.Int64(*o.OfferID)
	})
	e.Field("type", func(e *jx.Encoder) { e.Str(string(o.Type)) })
	e.Field("total_price", func(e *jx.Encoder) { encodeMoney(e, o.TotalPrice) })
	e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
	e.Field("created_at", func(e *jx.Encoder) { encodeTime(e, o.CreatedAt) })
	e.Field("updated_at", func(e *jx.Encoder) { encodeTime(e, o.UpdatedAt) })
}

func encodePaymentFields(e *jx.Encoder, p *payment.Payment) {
	e.Field("id", func(e *jx.Encoder) { e.Str(p.ID.String()) })
	e.Field("user_id", func(e *jx.Encoder) { e.Str(p.UserID.String()) })
	e.Field("order_id", func(e *jx.Encoder) { e.Str(p.OrderID.String()) })
	e.Field("payment_method", func(e *jx.Encoder) { encodeOptStr(e, p.Method) })
	e.Field("payment_card_gateway", func(e *jx.Encoder) { encodeOptStr(e, p.Gateway) })
	e.Field("status", func(e *jx.Encoder) { e.Str(string(p.Status)) })
}
