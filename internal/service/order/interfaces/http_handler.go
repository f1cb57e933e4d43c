package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"fulfillment/internal/pkg/logger"
	"fulfillment/internal/service/order/application"
	"fulfillment/internal/service/order/domain"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
)

const serviceName = "order-service"

// FulfillmentService 是 HTTP 和 Kafka 入口依赖的应用服务
type FulfillmentService interface {
	ProcessCustomerOrders(ctx context.Context, req *application.ProcessCustomerOrdersRequest) (*application.ProcessCustomerOrdersResponse, error)
	RequestProcessing(ctx context.Context, customerID int64, asOf time.Time) (*application.RequestProcessingResponse, error)
}

// OrderHandler 封装了 order 服务的 HTTP 处理器
type OrderHandler struct {
	service FulfillmentService
}

func NewOrderHandler(service FulfillmentService) *OrderHandler {
	return &OrderHandler{service: service}
}

// processResponse 是同步处理接口的 JSON 输出
type processResponse struct {
	RunID      string                     `json:"runId"`
	CustomerID int64                      `json:"customerId"`
	Orders     []application.OrderView    `json:"orders"`
	Outcomes   []application.OrderOutcome `json:"outcomes"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Routes 返回注册了所有路由的 chi 路由器
func (h *OrderHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/customers/{customerID}/orders/process", h.processCustomerOrders)
	r.Post("/customers/{customerID}/orders/process-async", h.requestProcessing)
	return r
}

func (h *OrderHandler) processCustomerOrders(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := otel.Tracer(serviceName).Start(ctx, "http.ProcessCustomerOrders")
	defer span.End()

	customerID, asOf, ok := parseRequest(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Bad request")
		return
	}
	span.SetAttributes(attribute.Int64("customer.id", customerID))

	resp, err := h.service.ProcessCustomerOrders(ctx, &application.ProcessCustomerOrdersRequest{CustomerID: customerID, AsOf: asOf})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Ctx(ctx).Error().Err(err).Int64("customer_id", customerID).Msg("Customer order processing failed")
		writeServiceError(w, err)
		return
	}

	out := processResponse{
		RunID:      resp.RunID,
		CustomerID: resp.CustomerID,
		Orders:     make([]application.OrderView, 0, len(resp.Orders)),
		Outcomes:   resp.Outcomes,
	}
	for _, order := range resp.Orders {
		out.Orders = append(out.Orders, application.ToOrderView(order))
	}
	if out.Outcomes == nil {
		out.Outcomes = []application.OrderOutcome{}
	}
	writeJSON(w, http.StatusOK, out)
}

// requestProcessing 只投递请求，由 Kafka 消费者异步处理
func (h *OrderHandler) requestProcessing(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := otel.Tracer(serviceName).Start(ctx, "http.RequestProcessing")
	defer span.End()

	customerID, asOf, ok := parseRequest(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Bad request")
		return
	}
	span.SetAttributes(
		attribute.Int64("customer.id", customerID),
		attribute.String("messaging.system", "kafka"),
	)

	resp, err := h.service.RequestProcessing(ctx, customerID, asOf)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		writeServiceError(w, err)
		return
	}
	// 202 Accepted 是一个非常适合此场景的状态码
	writeJSON(w, http.StatusAccepted, resp)
}

// parseRequest 解析路径中的客户 ID 和可选的 asOf 查询参数 (RFC3339)
func parseRequest(w http.ResponseWriter, r *http.Request) (int64, time.Time, bool) {
	customerID, err := strconv.ParseInt(chi.URLParam(r, "customerID"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_customer_id", Message: err.Error()})
		return 0, time.Time{}, false
	}

	var asOf time.Time
	if raw := r.URL.Query().Get("asOf"); raw != "" {
		asOf, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_as_of", Message: err.Error()})
			return 0, time.Time{}, false
		}
	}
	return customerID, asOf, true
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidCustomerID):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_customer_id", Message: err.Error()})
	case errors.Is(err, domain.ErrCustomerNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "customer_not_found", Message: err.Error()})
	case errors.Is(err, application.ErrAsyncProcessingDisabled):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "async_disabled", Message: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal_error", Message: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
