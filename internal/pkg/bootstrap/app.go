// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"fulfillment/internal/pkg/config"
	"fulfillment/internal/pkg/nacos"
	"fulfillment/internal/pkg/utils"
	"fulfillment/internal/tracing"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rs/zerolog/log"
)

// Component 是随服务一起启动和停止的后台组件（例如 Kafka 消费者）
type Component interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context)
}

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	Config     *config.Config
	Handler    http.Handler
	Components []Component
	// Closers 在关停的最后阶段按相反顺序执行，用来关闭连接
	Closers []func() error
}

// StartService 封装了微服务的通用启动和优雅关停逻辑，阻塞直到收到退出信号。
func StartService(info AppInfo) error {
	cfg := info.Config

	// 1. Tracer
	tp, err := tracing.InitTracerProvider(cfg.Service.Name, cfg.Jaeger.Endpoint)
	if err != nil {
		return fmt.Errorf("failed to initialize tracer provider: %w", err)
	}

	// 2. 服务注册（可选）
	registration, err := register(cfg)
	if err != nil {
		return err
	}

	// 3. 后台组件
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for _, c := range info.Components {
		if err := c.Start(ctx); err != nil {
			return fmt.Errorf("failed to start component: %w", err)
		}
	}

	// 4. 创建并启动 HTTP Server
	server := &http.Server{Addr: ":" + strconv.Itoa(cfg.Service.HTTPPort), Handler: info.Handler}
	serverErr := make(chan error, 1)
	go func() {
		log.Info().Msgf("%s listening on :%d", cfg.Service.Name, cfg.Service.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// 5. 优雅关停
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-quit:
	case runErr = <-serverErr:
		log.Error().Err(runErr).Msg("HTTP server failed")
	}
	log.Info().Msgf("Shutting down service %s...", cfg.Service.Name)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Service.ShutdownTimeout)
	defer shutdownCancel()

	// a. 从 Nacos 注销服务，不再接收新流量
	if registration != nil {
		registration.deregister()
	}

	// b. 关闭 HTTP 服务器
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error shutting down http server")
	} else {
		log.Info().Msg("HTTP server shut down.")
	}

	// c. 停止后台组件 (后进先出)
	cancel()
	for i := len(info.Components) - 1; i >= 0; i-- {
		info.Components[i].Stop(shutdownCtx)
	}

	// d. 关闭 Tracer Provider，确保所有缓冲的 trace 都被发送出去
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error shutting down tracer provider")
	} else {
		log.Info().Msg("Tracer provider shut down.")
	}

	for i := len(info.Closers) - 1; i >= 0; i-- {
		if err := info.Closers[i](); err != nil {
			log.Warn().Err(err).Msg("Error closing resource")
		}
	}

	log.Info().Msgf("Service %s gracefully shut down.", cfg.Service.Name)
	return runErr
}

type nacosRegistration struct {
	client      *nacos.Client
	serviceName string
	ip          string
	port        int
}

func register(cfg *config.Config) (*nacosRegistration, error) {
	if !cfg.Nacos.Enabled {
		return nil, nil
	}

	client, err := nacos.NewNacosClient(cfg.Nacos.ServerAddrs, cfg.Nacos.Namespace, cfg.Nacos.Group)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize nacos client: %w", err)
	}

	// 获取本机 IP 用于注册
	ip, err := utils.GetOutboundIP()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to get outbound IP address: %w", err)
	}

	if err := client.RegisterServiceInstance(cfg.Service.Name, ip, cfg.Service.HTTPPort); err != nil {
		client.Close()
		return nil, err
	}
	return &nacosRegistration{client: client, serviceName: cfg.Service.Name, ip: ip, port: cfg.Service.HTTPPort}, nil
}

func (r *nacosRegistration) deregister() {
	if err := r.client.DeregisterServiceInstance(r.serviceName, r.ip, r.port); err != nil {
		log.Error().Err(err).Msg("Error deregistering from Nacos")
	}
	r.client.Close()
}
