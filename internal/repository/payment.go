package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/fulfillment/internal/domain/payment"
	"github.com/xenking/fulfillment/internal/txretry"
)

const (
	paymentColumns = `id, user_id, order_id, payment_method, payment_card_gateway, status`

	findPaymentByOrderSQL = `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1`

	insertPaymentSQL = `INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + paymentColumns

	executePaymentSQL = `UPDATE payments
		SET payment_method = $2, payment_card_gateway = $3, status = $4, updated_at = now()
		WHERE id = $1
		RETURNING ` + paymentColumns

	setLockTimeoutSQL = `SELECT set_config('lock_timeout', $1, true)`

	paymentsOrderIDKey = "payments_order_id_key"

	opCreatePayment  = "create_payment"
	opExecutePayment = "execute_payment"
)

var _ payment.Repository = (*PaymentRepository)(nil)

// PaymentOptions configures PaymentRepository.
type PaymentOptions struct {
	// Retry is applied to CreatePayment and ExecutePayment.
	Retry txretry.Policy
	// LockTimeout bounds how long a write waits for a row lock before failing
	// with a retryable lock_not_available error. Zero keeps the server default.
	LockTimeout time.Duration
	// MeterProvider receives the retry counter. Nil disables it.
	MeterProvider metric.MeterProvider
}

// PaymentRepository implements payment.Repository backed by PostgreSQL. Each
// write runs in its own transaction, or in a savepoint when the context
// already carries one, and is retried on lock conflicts.
type PaymentRepository struct {
	pool        *pgxpool.Pool
	policy      txretry.Policy
	lockTimeout time.Duration
	retries     metric.Int64Counter
}

// NewPaymentRepository returns a PaymentRepository that uses the given pool.
func NewPaymentRepository(pool *pgxpool.Pool, opts PaymentOptions) (*PaymentRepository, error) {
	r := &PaymentRepository{
		pool:        pool,
		policy:      opts.Retry,
		lockTimeout: opts.LockTimeout,
	}
	if opts.MeterProvider != nil {
		counter, err := opts.MeterProvider.
			Meter("github.com/xenking/fulfillment/internal/repository").
			Int64Counter("payment.write.retries",
				metric.WithDescription("Payment writes retried after a lock conflict"),
				metric.WithUnit("{retry}"),
			)
		if err != nil {
			return nil, errors.Wrap(err, "create retry counter")
		}
		r.retries = counter
	}
	r.policy.OnRetry = r.onRetry
	return r, nil
}

// CreatePayment inserts p and returns the stored row. A second payment for
// the same order fails with payment.ErrAlreadyExists.
func (r *PaymentRepository) CreatePayment(ctx context.Context, p *payment.Payment) (*payment.Payment, error) {
	return txretry.Run(ctx, opCreatePayment, r.policy, func(ctx context.Context, _ int) (*payment.Payment, error) {
		created, err := r.write(ctx, insertPaymentSQL,
			p.ID, p.UserID, p.OrderID, nullable(p.Method), nullable(p.Gateway), string(p.Status),
		)
		if err != nil {
			if isUniqueViolation(err, paymentsOrderIDKey) {
				return nil, payment.ErrAlreadyExists
			}
			return nil, fmt.Errorf("inserting payment %s: %w", p.ID, err)
		}
		return created, nil
	})
}

// ExecutePayment stores the method, gateway, and status of p and returns
// the stored row.
func (r *PaymentRepository) ExecutePayment(ctx context.Context, p *payment.Payment) (*payment.Payment, error) {
	return txretry.Run(ctx, opExecutePayment, r.policy, func(ctx context.Context, _ int) (*payment.Payment, error) {
		updated, err := r.write(ctx, executePaymentSQL,
			p.ID, nullable(p.Method), nullable(p.Gateway), string(p.Status),
		)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, payment.ErrNotFound
			}
			return nil, fmt.Errorf("executing payment %s: %w", p.ID, err)
		}
		return updated, nil
	})
}

// FindPaymentByOrderID returns the payment attached to orderID.
func (r *PaymentRepository) FindPaymentByOrderID(ctx context.Context, orderID uuid.UUID) (*payment.Payment, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, findPaymentByOrderSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("finding payment of order %s: %w", orderID, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanPayment)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrNotFound
		}
		return nil, fmt.Errorf("finding payment of order %s: %w", orderID, err)
	}
	return &p, nil
}

// write runs one attempt: a statement returning a payment row, inside its
// own transaction or savepoint. Any error rolls the attempt back.
func (r *PaymentRepository) write(ctx context.Context, query string, args ...any) (*payment.Payment, error) {
	var out payment.Payment
	err := pgx.BeginFunc(ctx, conn(ctx, r.pool), func(tx pgx.Tx) error {
		if r.lockTimeout > 0 {
			if _, err := tx.Exec(ctx, setLockTimeoutSQL, fmt.Sprintf("%dms", r.lockTimeout.Milliseconds())); err != nil {
				return err
			}
		}
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		out, err = pgx.CollectExactlyOneRow(rows, scanPayment)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *PaymentRepository) onRetry(ctx context.Context, op string, attempt int, err error) {
	zctx.From(ctx).Warn("Payment write conflict",
		zap.String("op", op),
		zap.Int("attempt", attempt),
		zap.Error(err),
	)
	if r.retries != nil {
		r.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
	}
}

// nullable maps an unset enum to SQL NULL.
func nullable[T ~string](v T) *string {
	if v == "" {
		return nil
	}
	s := string(v)
	return &s
}

func scanPayment(row pgx.CollectableRow) (payment.Payment, error) {
	var (
		p       payment.Payment
		method  *string
		gateway *string
		status  string
	)
	err := row.Scan(&p.ID, &p.UserID, &p.OrderID, &method, &gateway, &status)
	if method != nil {
		p.Method = payment.Method(*method)
	}
	if gateway != nil {
		p.Gateway = payment.Gateway(*gateway)
	}
	p.Status = payment.Status(status)
	return p, err
}
