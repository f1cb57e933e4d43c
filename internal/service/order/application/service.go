// internal/service/order/application/service.go
package application

import (
	"context"
	"errors"
	"fmt"
	"fulfillment/internal/pkg/logger"
	"fulfillment/internal/service/order/application/saga"
	"fulfillment/internal/service/order/domain"
	"fulfillment/internal/service/order/domain/port"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// ErrAsyncProcessingDisabled 表示没有配置消息队列，无法异步投递
var ErrAsyncProcessingDisabled = errors.New("async processing is not configured")

// FulfillmentService 只关注业务流程编排：加载客户和待处理订单，
// 然后对每个订单独立执行履约链。
type FulfillmentService struct {
	customerRepo domain.CustomerRepository
	orderRepo    domain.OrderRepository
	productRepo  domain.ProductRepository
	inventory    port.InventoryService
	auditLog     port.AuditLogSink
	checker      *saga.AvailabilityChecker
	tracer       trace.Tracer

	producer          port.ProcessingRequestProducer
	locker            port.CustomerLocker
	metrics           *Metrics
	clock             func() time.Time
	workers           int
	atomicStock       bool
	processingTimeout time.Duration
}

// Option 配置 FulfillmentService 的可选依赖
type Option func(*FulfillmentService)

// WithClock 替换服务时钟
func WithClock(clock func() time.Time) Option {
	return func(s *FulfillmentService) { s.clock = clock }
}

// WithWorkers 设置同时处理的订单数上限
func WithWorkers(n int) Option {
	return func(s *FulfillmentService) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithAtomicStock 选择库存扣减方式：true 为原子“检查并扣减”加补偿，false 为无条件扣减
func WithAtomicStock(atomic bool) Option {
	return func(s *FulfillmentService) { s.atomicStock = atomic }
}

// WithProcessingTimeout 为每次运行设置超时，0 表示不设置
func WithProcessingTimeout(d time.Duration) Option {
	return func(s *FulfillmentService) { s.processingTimeout = d }
}

func WithLocker(locker port.CustomerLocker) Option {
	return func(s *FulfillmentService) { s.locker = locker }
}

func WithProducer(producer port.ProcessingRequestProducer) Option {
	return func(s *FulfillmentService) { s.producer = producer }
}

func WithMetrics(m *Metrics) Option {
	return func(s *FulfillmentService) { s.metrics = m }
}

func NewFulfillmentService(customerRepo domain.CustomerRepository, orderRepo domain.OrderRepository, productRepo domain.ProductRepository, inventory port.InventoryService, auditLog port.AuditLogSink, tracer trace.Tracer, opts ...Option) *FulfillmentService {
	s := &FulfillmentService{
		customerRepo: customerRepo, orderRepo: orderRepo, productRepo: productRepo,
		inventory: inventory, auditLog: auditLog, tracer: tracer,
		checker:     saga.NewAvailabilityChecker(inventory, tracer),
		locker:      noopLocker{},
		clock:       time.Now,
		workers:     1,
		atomicStock: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessCustomerOrders 处理一个客户的全部待处理订单。
// 只有参数校验、客户查询和待处理订单查询的失败会让整个调用失败；
// 单个订单的失败记录在 Outcomes 中，不影响其他订单。
func (s *FulfillmentService) ProcessCustomerOrders(ctx context.Context, req *ProcessCustomerOrdersRequest) (*ProcessCustomerOrdersResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.ProcessCustomerOrders")
	defer span.End()

	// 1. 参数校验，不访问任何存储
	if req == nil || req.CustomerID <= 0 {
		span.SetStatus(codes.Error, "Invalid customer id")
		return nil, domain.ErrInvalidCustomerID
	}

	started := s.clock()
	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = started
	}
	runID := uuid.New().String()
	span.SetAttributes(
		attribute.Int64("customer.id", req.CustomerID),
		attribute.String("fulfillment.run_id", runID),
	)
	log := logger.Ctx(ctx).With().Str("run_id", runID).Int64("customer_id", req.CustomerID).Logger()

	if s.processingTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.processingTimeout)
		defer cancel()
	}

	unlock, err := s.locker.Lock(ctx, req.CustomerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to acquire customer lock")
		return nil, fmt.Errorf("acquire lock for customer %d: %w", req.CustomerID, err)
	}
	defer unlock()

	// 2. 加载客户，失败则整个调用失败
	customer, err := s.customerRepo.FindByID(ctx, req.CustomerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to load customer")
		return nil, fmt.Errorf("load customer %d: %w", req.CustomerID, err)
	}

	// 3. 加载待处理订单。没有待处理订单是一个合法的空结果。
	pending, err := s.orderRepo.FindPending(ctx, req.CustomerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to load pending orders")
		return nil, fmt.Errorf("load pending orders of customer %d: %w", req.CustomerID, err)
	}
	log.Info().Int("pending_orders", len(pending)).Msg("Starting fulfillment run.")

	// 4. 每个订单独立处理，订单之间只通过库存存储共享状态
	outcomes := make([]OrderOutcome, len(pending))
	snapshots := make([]*domain.Order, len(pending))

	g := new(errgroup.Group)
	g.SetLimit(s.workers)
	for i, order := range pending {
		i, order := i, order
		g.Go(func() error {
			snapshots[i], outcomes[i] = s.processOrder(ctx, customer, order, asOf)
			return nil
		})
	}
	_ = g.Wait()

	// 5. 汇总结果，保持待处理订单的原始顺序
	resp := &ProcessCustomerOrdersResponse{
		RunID:      runID,
		CustomerID: req.CustomerID,
		Orders:     make([]*domain.Order, 0, len(pending)),
		Outcomes:   outcomes,
	}
	var failed int
	for i, outcome := range outcomes {
		s.metrics.observeOutcome(outcome.Outcome, snapshots[i].DiscountPercent)
		if outcome.Outcome == OutcomeFailed {
			failed++
			continue
		}
		resp.Orders = append(resp.Orders, snapshots[i])
	}
	s.metrics.observeRun(s.clock().Sub(started).Seconds())

	span.SetAttributes(
		attribute.Int("fulfillment.processed", len(resp.Orders)),
		attribute.Int("fulfillment.failed", failed),
	)
	log.Info().Int("processed", len(resp.Orders)).Int("failed", failed).Msg("Fulfillment run finished.")
	return resp, nil
}

// processOrder 对单个订单执行履约链，返回最终快照和结果
func (s *FulfillmentService) processOrder(ctx context.Context, customer *domain.Customer, order *domain.Order, asOf time.Time) (*domain.Order, OrderOutcome) {
	ctx, span := s.tracer.Start(ctx, "app.ProcessOrder")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", order.ID))

	orderCtx := &saga.OrderContext{
		Ctx:         ctx,
		Order:       order,
		Customer:    customer,
		AsOf:        asOf,
		Clock:       s.clock,
		Tracer:      s.tracer,
		Orders:      s.orderRepo,
		Products:    s.productRepo,
		Inventory:   s.inventory,
		AuditLog:    s.auditLog,
		Checker:     s.checker,
		AtomicStock: s.atomicStock,
	}

	if err := saga.BuildChain().Handle(orderCtx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Order processing failed in chain")
		logger.Ctx(ctx).Error().Err(err).Int64("order_id", order.ID).Msg("Order processing failed.")
		return orderCtx.Order, OrderOutcome{
			OrderID:  order.ID,
			Outcome:  OutcomeFailed,
			State:    orderCtx.Order.State,
			Reason:   err.Error(),
			Warnings: orderCtx.Warnings,
		}
	}

	outcome := OutcomeReady
	if orderCtx.Order.State == domain.StateOnHold {
		outcome = OutcomeOnHold
	}
	logger.Ctx(ctx).Info().
		Int64("order_id", order.ID).
		Str("state", string(orderCtx.Order.State)).
		Int("discount_percent", orderCtx.Order.DiscountPercent).
		Msg(orderCtx.AuditMessage)

	return orderCtx.Order, OrderOutcome{
		OrderID:  order.ID,
		Outcome:  outcome,
		State:    orderCtx.Order.State,
		Warnings: orderCtx.Warnings,
	}
}

// RequestProcessing 把处理请求投递到 Kafka，由消费者异步执行 ProcessCustomerOrders
func (s *FulfillmentService) RequestProcessing(ctx context.Context, customerID int64, asOf time.Time) (*RequestProcessingResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.RequestProcessing")
	defer span.End()

	if customerID <= 0 {
		return nil, domain.ErrInvalidCustomerID
	}
	if s.producer == nil {
		return nil, ErrAsyncProcessingDisabled
	}

	event := &domain.CustomerOrdersProcessingRequested{
		EventID:    uuid.New().String(),
		TraceID:    span.SpanContext().TraceID().String(),
		CustomerID: customerID,
		AsOf:       asOf,
	}
	if err := s.producer.Produce(ctx, event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to enqueue processing request")
		return nil, fmt.Errorf("enqueue processing request: %w", err)
	}

	span.AddEvent("Processing request sent to Kafka queue.")
	logger.Ctx(ctx).Info().Int64("customer_id", customerID).Str("event_id", event.EventID).Msg("Enqueued customer order processing request.")
	return &RequestProcessingResponse{
		EventID:    event.EventID,
		CustomerID: customerID,
		Message:    "Customer orders are being processed.",
	}, nil
}

type noopLocker struct{}

func (noopLocker) Lock(context.Context, int64) (func(), error) { return func() {}, nil }
