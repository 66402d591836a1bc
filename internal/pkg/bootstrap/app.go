// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"orderflow/internal/pkg/config"
	"orderflow/internal/pkg/logger"
	"orderflow/internal/pkg/registry"
	"orderflow/internal/pkg/tracing"
)

// Task 是一个由服务拥有的后台任务（消费循环、DLQ 监控等）。
// Start 启动后立即返回，Stop 发出停止信号并等待任务退出。
type Task interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context)
}

type AppCtx struct {
	Mux    *http.ServeMux
	Config config.Config
}

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	ServiceName string
	Port        int

	// RegisterHandlers 允许每个服务注册自己独特的 HTTP 路由，
	// 并在这里完成组件组装、返回需要托管生命周期的后台任务。
	RegisterHandlers func(appCtx AppCtx) ([]Task, error)
}

// StartService 封装了所有微服务的通用启动和优雅关停逻辑。
func StartService(info AppInfo) {
	logger.Init(info.ServiceName)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Ctx(ctx).Fatal().Err(err).Msg("Failed to load config")
	}

	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Jaeger.Endpoint)
	if err != nil {
		logger.Ctx(ctx).Fatal().Err(err).Msg("Failed to initialize tracer provider")
	}

	// 服务注册是可选的：本地开发可以没有 Nacos
	var reg *registry.Client
	var ip string
	if cfg.Nacos.Enabled {
		reg, err = registry.NewClient(cfg.Nacos.ServerAddrs, cfg.Nacos.Namespace, cfg.Nacos.Group)
		if err != nil {
			logger.Ctx(ctx).Fatal().Err(err).Msg("Failed to initialize nacos client")
		}
		ip, err = registry.OutboundIP()
		if err != nil {
			logger.Ctx(ctx).Fatal().Err(err).Msg("Failed to get outbound IP address")
		}
		if err := reg.Register(info.ServiceName, ip, info.Port); err != nil {
			logger.Ctx(ctx).Fatal().Err(err).Msg("Failed to register service with nacos")
		}
		logger.Ctx(ctx).Info().Str("ip", ip).Int("port", info.Port).Msg("✅ Service registered to Nacos")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	var tasks []Task
	if info.RegisterHandlers != nil {
		tasks, err = info.RegisterHandlers(AppCtx{Mux: mux, Config: cfg})
		if err != nil {
			logger.Ctx(ctx).Fatal().Err(err).Msg("Failed to assemble service")
		}
	}

	for _, task := range tasks {
		if err := task.Start(ctx); err != nil {
			logger.Ctx(ctx).Fatal().Err(err).Msg("Failed to start background task")
		}
	}

	server := &http.Server{Addr: ":" + strconv.Itoa(info.Port), Handler: mux}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Ctx(gctx).Info().Msgf("%s listening on :%d", info.ServiceName, info.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	// 阻塞直到收到退出信号或 HTTP 服务器异常退出
	<-gctx.Done()
	logger.Ctx(context.Background()).Info().Msgf("Shutting down service %s...", info.ServiceName)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 关停顺序与启动相反 (后进先出)
	if reg != nil {
		if err := reg.Deregister(info.ServiceName, ip, info.Port); err != nil {
			logger.Ctx(shutdownCtx).Error().Err(err).Msg("Error deregistering from Nacos")
		}
	}

	for _, task := range tasks {
		task.Stop(shutdownCtx)
	}

	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.Ctx(shutdownCtx).Error().Err(err).Msg("Error shutting down tracer provider")
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Ctx(shutdownCtx).Error().Err(err).Msg("Error shutting down http server")
	}
	if err := g.Wait(); err != nil {
		logger.Ctx(shutdownCtx).Error().Err(err).Msg("HTTP server exited with error")
	}

	logger.Ctx(shutdownCtx).Info().Msgf("Service %s gracefully shut down.", info.ServiceName)
}
