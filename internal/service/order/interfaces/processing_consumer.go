package interfaces

import (
	"context"
	"encoding/json"
	"fmt"
	"fulfillment/internal/pkg/logger"
	"fulfillment/internal/pkg/mq"
	"fulfillment/internal/service/order/application"
	"fulfillment/internal/service/order/domain"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
)

// ProcessingConsumerAdapter 是一个驱动适配器，它监听“处理客户订单”请求并驱动应用服务。
type ProcessingConsumerAdapter struct {
	reader  mq.MessageReader
	topic   string
	appSvc  FulfillmentService
	wg      sync.WaitGroup
	stopped atomic.Bool

	failureHandler *mq.FailureHandler // 为 nil 时失败消息只记日志
	retryBackoff   time.Duration
}

// fetchRetryBackoff 是拉取消息失败后的等待时间，避免快速失败循环
const fetchRetryBackoff = time.Second

// sleepCtx 等待 d，ctx 结束时提前返回
func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func NewProcessingConsumerAdapter(reader mq.MessageReader, topic string, appSvc FulfillmentService, failureHandler *mq.FailureHandler) *ProcessingConsumerAdapter {
	return &ProcessingConsumerAdapter{
		reader:         reader,
		topic:          topic,
		appSvc:         appSvc,
		failureHandler: failureHandler,
		retryBackoff:   fetchRetryBackoff,
	}
}

// Start 开始监听Kafka主题。这是一个长期运行的方法。
func (a *ProcessingConsumerAdapter) Start(ctx context.Context) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		logger.Ctx(ctx).Info().Str("topic", a.topic).Msg("✅ Processing Consumer Adapter started.")
		for {
			if a.stopped.Load() {
				return
			}
			// 我们使用FetchMessage而不是ReadMessage，以便更好地控制退出逻辑
			msg, err := a.reader.FetchMessage(ctx)
			if err != nil {
				// 如果是上下文取消导致的错误，则正常退出
				if ctx.Err() != nil || a.stopped.Load() {
					logger.Ctx(ctx).Info().Msg("🛑 Processing Consumer Adapter shutting down.")
					return
				}
				logger.Ctx(ctx).Error().Err(err).Msg("Could not read message. Retrying...")
				sleepCtx(ctx, a.retryBackoff)
				continue
			}

			a.handle(mq.ExtractContext(ctx, msg), msg)

			// 无论成功或失败（已移交死信队列），都提交Offset
			if err := a.reader.CommitMessages(ctx, msg); err != nil {
				logger.Ctx(ctx).Error().Err(err).Msg("Failed to commit messages")
			}
		}
	}()
	return nil
}

// Stop 优雅地停止消费者。
func (a *ProcessingConsumerAdapter) Stop(ctx context.Context) {
	a.stopped.Store(true)
	_ = a.reader.Close()
	a.wg.Wait()
	logger.Ctx(ctx).Info().Str("topic", a.topic).Msg("✅ Processing Consumer Adapter stopped.")
}

func (a *ProcessingConsumerAdapter) handle(ctx context.Context, msg kafka.Message) {
	if err := a.processMessage(ctx, msg); err != nil {
		if a.failureHandler != nil {
			a.failureHandler.Handle(ctx, msg, err)
			return
		}
		logger.Ctx(ctx).Error().Err(err).Int64("offset", msg.Offset).Msg("Failed to process customer order request")
	}
}

// processMessage 反序列化消息并调用应用服务。
// 单个订单的失败已经体现在结果里，只有整个运行失败才返回错误。
func (a *ProcessingConsumerAdapter) processMessage(ctx context.Context, msg kafka.Message) error {
	var event domain.CustomerOrdersProcessingRequested
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal processing request: %w", err)
	}

	resp, err := a.appSvc.ProcessCustomerOrders(ctx, &application.ProcessCustomerOrdersRequest{
		CustomerID: event.CustomerID,
		AsOf:       event.AsOf,
	})
	if err != nil {
		return err
	}

	logger.Ctx(ctx).Info().
		Str("event_id", event.EventID).
		Str("run_id", resp.RunID).
		Int("orders", len(resp.Orders)).
		Msg("Processed customer order request from Kafka.")
	return nil
}
