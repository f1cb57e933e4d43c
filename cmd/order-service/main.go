// cmd/order-service/main.go
package main

import (
	"context"
	"fulfillment/internal/pkg/bootstrap"
	"fulfillment/internal/pkg/config"
	"fulfillment/internal/pkg/logger"
	"fulfillment/internal/pkg/mq"
	"fulfillment/internal/pkg/redis"
	"fulfillment/internal/service/order/application"
	"fulfillment/internal/service/order/domain/port"
	"fulfillment/internal/service/order/infrastructure"
	"fulfillment/internal/service/order/infrastructure/adapter"
	"fulfillment/internal/service/order/interfaces"
	"fulfillment/internal/zookeeper"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
)

const dltConsumerGroupSuffix = "-dlt"

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	cfg, err := config.Load(getEnv("CONFIG_FILE", "configs/order-service.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(cfg.Service.Name, cfg.Log.Level, cfg.Log.Pretty)

	var closers []func() error

	// 1. 存储
	db, err := infrastructure.OpenMySQL(cfg.MySQL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open mysql")
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to get sql.DB")
	}
	closers = append(closers, sqlDB.Close)

	customerRepo := infrastructure.NewGormCustomerRepository(db)
	orderRepo := infrastructure.NewGormOrderRepository(db)
	productRepo := infrastructure.NewGormProductRepository(db)

	var inventory port.InventoryService = infrastructure.NewGormInventoryStore(db)
	if cfg.Inventory.Backend == config.InventoryBackendRedis {
		redisClient, err := redis.NewClient(context.Background(), cfg.Redis.Addrs, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize redis client")
		}
		closers = append(closers, redisClient.Close)
		redisInventory, err := adapter.NewInventoryRedisAdapter(redisClient)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load inventory scripts")
		}
		inventory = redisInventory
	}

	// 2. Kafka：审计、处理请求和死信
	auditWriter := mq.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
	processingWriter := mq.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.ProcessingTopic)
	dltWriter := mq.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.DeadLetterTopic)
	closers = append(closers, auditWriter.Close, processingWriter.Close, dltWriter.Close)

	auditLog := adapter.NewFanoutAuditLog(
		infrastructure.NewGormAuditLogSink(db),
		adapter.NewAuditKafkaAdapter(auditWriter),
	)

	opts := []application.Option{
		application.WithWorkers(cfg.Processing.Workers),
		application.WithAtomicStock(cfg.Processing.AtomicStock),
		application.WithProcessingTimeout(cfg.Processing.Timeout),
		application.WithProducer(adapter.NewProcessingRequestKafkaAdapter(processingWriter)),
		application.WithMetrics(application.NewMetrics(prometheus.DefaultRegisterer)),
	}

	// 3. 多实例部署时用 ZooKeeper 串行化同一客户的运行
	if len(cfg.Zookeeper.Servers) > 0 {
		zkConn, err := zookeeper.Connect(cfg.Zookeeper.Servers, cfg.Zookeeper.SessionTimeout)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to zookeeper")
		}
		closers = append(closers, func() error { zkConn.Close(); return nil })
		opts = append(opts, application.WithLocker(adapter.NewZkCustomerLocker(zkConn)))
	}

	// 4. 应用服务
	appService := application.NewFulfillmentService(
		customerRepo, orderRepo, productRepo, inventory, auditLog,
		otel.Tracer(cfg.Service.Name), opts...,
	)

	// 5. 驱动适配器
	processingReader := mq.NewKafkaReader(cfg.Kafka.Brokers, cfg.Kafka.ProcessingTopic, cfg.Kafka.ConsumerGroup)
	dltReader := mq.NewKafkaReader(cfg.Kafka.Brokers, cfg.Kafka.DeadLetterTopic, cfg.Kafka.ConsumerGroup+dltConsumerGroupSuffix)

	processingConsumer := interfaces.NewProcessingConsumerAdapter(
		processingReader, cfg.Kafka.ProcessingTopic, appService,
		mq.NewFailureHandler(dltWriter, log.Logger),
	)
	dltConsumer := interfaces.NewDltConsumerAdapter(dltReader, cfg.Kafka.DeadLetterTopic)

	if err := bootstrap.StartService(bootstrap.AppInfo{
		Config:     cfg,
		Handler:    interfaces.NewOrderHandler(appService).Routes(),
		Components: []bootstrap.Component{dltConsumer, processingConsumer},
		Closers:    closers,
	}); err != nil {
		log.Fatal().Err(err).Msg("order-service exited with error")
	}
}
