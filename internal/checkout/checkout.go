// Package checkout turns a user's cart into an immutable order.
//
// A checkout runs as one database transaction. The cart row is locked, then
// its item and product rows in product-id order. Stock is validated, payment
// is authorized, the order is written, stock is decremented and the cart
// cleared. Any failure rolls all of it back. Serialization failures, deadlocks and lost
// connections re-run the whole transaction with exponential backoff.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/storefront/internal/coupon"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/pricing"
	"github.com/joao-fontenele/storefront/internal/storage"
)

var tracer = otel.Tracer("storefront/checkout")

var ErrInvalidRequest = errors.New("invalid checkout request")

const PaymentWallet = "wallet"

type State string

const (
	StateStarted           State = "started"
	StateStockValidated    State = "stock_validated"
	StatePaymentAuthorized State = "payment_authorized"
	StateOrderCreated      State = "order_created"
	StateStockDecremented  State = "stock_decremented"
	StateCartCleared       State = "cart_cleared"
	StateCompleted         State = "completed"
)

type Request struct {
	UserID         string
	Shipping       domain.ShippingDetails
	PaymentMethod  string
	CouponCode     string
	IdempotencyKey string
}

func (r Request) validate() error {
	required := []struct{ name, value string }{
		{"user_id", r.UserID},
		{"first_name", r.Shipping.FirstName},
		{"last_name", r.Shipping.LastName},
		{"address", r.Shipping.Address},
		{"city", r.Shipping.City},
		{"country", r.Shipping.Country},
		{"zipcode", r.Shipping.Zipcode},
		{"mobile", r.Shipping.Mobile},
		{"email", r.Shipping.Email},
		{"payment_method", r.PaymentMethod},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidRequest, f.name)
		}
	}
	if !strings.Contains(r.Shipping.Email, "@") {
		return fmt.Errorf("%w: email is malformed", ErrInvalidRequest)
	}
	return nil
}

type Result struct {
	OrderID string
	Order   *domain.Order
	State   State
	// Replayed is set when the idempotency key matched an earlier
	// checkout; Order is nil in that case.
	Replayed bool
}

type CouponSession interface {
	Current(ctx context.Context, userID string) (string, error)
	Clear(ctx context.Context, userID string) error
}

// Notifier is told about committed orders. It runs outside the transaction
// and its failures never affect the checkout outcome.
type Notifier interface {
	OrderPlaced(ctx context.Context, order domain.Order) error
}

type Config struct {
	MaxRetries    uint64
	RetryInterval time.Duration
	NotifyTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:    3,
		RetryInterval: 50 * time.Millisecond,
		NotifyTimeout: 10 * time.Second,
	}
}

type Service struct {
	store    Store
	sessions CouponSession
	notifier Notifier
	cfg      Config
	metrics  *metrics
	logger   *slog.Logger
	now      func() time.Time
	wg       sync.WaitGroup
}

// NewService wires the orchestrator. sessions and notifier may be nil.
func NewService(store Store, sessions CouponSession, notifier Notifier, cfg Config, logger *slog.Logger) (*Service, error) {
	m, err := newMetrics()
	if err != nil {
		return nil, fmt.Errorf("create checkout metrics: %w", err)
	}

	return &Service{
		store:    store,
		sessions: sessions,
		notifier: notifier,
		cfg:      cfg,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}, nil
}

func (s *Service) Checkout(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "checkout",
		trace.WithAttributes(
			attribute.String("user.id", req.UserID),
			attribute.String("checkout.payment_method", req.PaymentMethod),
		),
	)
	defer span.End()

	result, err := s.checkout(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.record(ctx, time.Since(start).Seconds(), failureReason(err))
		return nil, err
	}

	span.SetAttributes(
		attribute.String("order.id", result.OrderID),
		attribute.Bool("checkout.replayed", result.Replayed),
	)
	s.metrics.record(ctx, time.Since(start).Seconds(), "")
	return result, nil
}

func (s *Service) checkout(ctx context.Context, req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	code := coupon.Normalize(req.CouponCode)
	fromSession := false
	if code == "" && s.sessions != nil {
		current, err := s.sessions.Current(ctx, req.UserID)
		if err != nil {
			return nil, fmt.Errorf("read session coupon: %w", err)
		}
		code = coupon.Normalize(current)
		fromSession = code != ""
	}

	var result *Result
	attempt := 0
	operation := func() error {
		attempt++
		err := s.store.InTx(ctx, func(tx Tx) error {
			r, err := s.run(ctx, tx, req, code, fromSession)
			result = r
			return err
		})
		if err == nil {
			return nil
		}
		// A unique violation means a duplicate request recorded the same
		// idempotency key first; the re-run replays its order.
		if storage.IsRetryable(err) || storage.IsUniqueViolation(err) {
			s.metrics.retries.Add(ctx, 1)
			s.logger.Warn("checkout transaction failed, retrying", "error", err, "user_id", req.UserID, "attempt", attempt)
			return err
		}
		return backoff.Permanent(err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.RetryInterval
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, s.cfg.MaxRetries), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		s.logger.Info("checkout rolled back", "error", err, "user_id", req.UserID, "attempts", attempt)
		return nil, err
	}

	if result.Replayed {
		s.logger.Info("checkout replayed", "user_id", req.UserID, "order_id", result.OrderID)
		return result, nil
	}

	if s.sessions != nil {
		if err := s.sessions.Clear(ctx, req.UserID); err != nil {
			s.logger.Warn("failed to clear session coupon", "error", err, "user_id", req.UserID)
		}
	}
	s.notify(ctx, *result.Order)

	result.State = s.transition(ctx, req.UserID, StateCompleted)
	s.logger.Info("checkout completed",
		"user_id", req.UserID,
		"order_id", result.OrderID,
		"total", result.Order.Total.StringFixed(2),
		"attempts", attempt,
	)
	return result, nil
}

func (s *Service) run(ctx context.Context, tx Tx, req Request, code string, fromSession bool) (*Result, error) {
	if replay, err := s.replay(ctx, tx, req); err != nil || replay != nil {
		return replay, err
	}

	s.transition(ctx, req.UserID, StateStarted)

	lines, err := tx.CartLines(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if len(lines) == 0 {
		// A concurrent request with the same key may have committed while
		// this one waited on the cart lock.
		if replay, err := s.replay(ctx, tx, req); err != nil || replay != nil {
			return replay, err
		}
		return nil, domain.ErrEmptyCart
	}

	var applied *domain.Coupon
	if code != "" {
		applied, err = tx.ActiveCoupon(ctx, code)
		switch {
		case errors.Is(err, domain.ErrInvalidCoupon) && fromSession:
			s.logger.Warn("ignoring stale session coupon", "user_id", req.UserID, "code", code)
			applied = nil
		case err != nil:
			return nil, err
		}
	}
	quote := pricing.Price(lines, applied)

	for _, l := range lines {
		if l.Quantity > l.Product.Stock {
			return nil, &domain.OutOfStockError{
				ProductID:   l.Product.ID,
				ProductName: l.Product.Name,
				Requested:   l.Quantity,
				Available:   l.Product.Stock,
			}
		}
	}
	s.transition(ctx, req.UserID, StateStockValidated)

	if strings.EqualFold(strings.TrimSpace(req.PaymentMethod), PaymentWallet) && quote.Total.IsPositive() {
		if _, err := tx.DebitWallet(ctx, req.UserID, quote.Total); err != nil {
			return nil, fmt.Errorf("debit wallet: %w", err)
		}
	}
	s.transition(ctx, req.UserID, StatePaymentAuthorized)

	order := &domain.Order{
		ID:              uuid.NewString(),
		UserID:          req.UserID,
		Shipping:        req.Shipping,
		PaymentMethod:   strings.ToLower(strings.TrimSpace(req.PaymentMethod)),
		CouponCode:      quote.CouponCode,
		DiscountPercent: quote.DiscountPercent,
		Subtotal:        quote.Subtotal,
		Total:           quote.Total,
		Status:          domain.OrderStatusPending,
		Items:           make([]domain.OrderItem, 0, len(lines)),
		CreatedAt:       s.now().UTC(),
	}
	for _, l := range lines {
		order.Items = append(order.Items, domain.OrderItem{
			ProductID:   l.Product.ID,
			ProductName: l.Product.Name,
			Quantity:    l.Quantity,
			Price:       l.Product.Price,
		})
	}
	if err := tx.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	s.transition(ctx, req.UserID, StateOrderCreated)

	for _, l := range lines {
		if err := tx.DecrementStock(ctx, l.Product.ID, l.Quantity); err != nil {
			var oos *domain.OutOfStockError
			if errors.As(err, &oos) && oos.ProductName == "" {
				oos.ProductName = l.Product.Name
			}
			return nil, fmt.Errorf("decrement stock: %w", err)
		}
	}
	s.transition(ctx, req.UserID, StateStockDecremented)

	if err := tx.ClearCart(ctx, req.UserID); err != nil {
		return nil, fmt.Errorf("clear cart: %w", err)
	}
	s.transition(ctx, req.UserID, StateCartCleared)

	if req.IdempotencyKey != "" {
		if err := tx.RecordAttempt(ctx, req.UserID, req.IdempotencyKey, order.ID); err != nil {
			return nil, err
		}
	}

	return &Result{OrderID: order.ID, Order: order, State: StateCartCleared}, nil
}

func (s *Service) replay(ctx context.Context, tx Tx, req Request) (*Result, error) {
	if req.IdempotencyKey == "" {
		return nil, nil
	}
	orderID, err := tx.FindAttempt(ctx, req.UserID, req.IdempotencyKey)
	if err != nil || orderID == "" {
		return nil, err
	}
	return &Result{OrderID: orderID, State: StateCompleted, Replayed: true}, nil
}

func (s *Service) transition(ctx context.Context, userID string, state State) State {
	trace.SpanFromContext(ctx).AddEvent(string(state))
	s.logger.Debug("checkout state", "user_id", userID, "state", state)
	return state
}

// notify hands the order to the notifier on a background goroutine with a
// context detached from the request.
func (s *Service) notify(ctx context.Context, order domain.Order) {
	if s.notifier == nil {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.NotifyTimeout)
		defer cancel()

		if err := s.notifier.OrderPlaced(nctx, order); err != nil {
			s.logger.Error("failed to publish order notification", "error", err, "order_id", order.ID)
		}
	}()
}

// Wait blocks until in-flight notifications finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, domain.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, domain.ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domain.ErrInvalidCoupon):
		return "invalid_coupon"
	case storage.IsRetryable(err):
		return "retries_exhausted"
	default:
		return "error"
	}
}
