/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/mautops/maintenance-gin/internal/api"
	"github.com/mautops/maintenance-gin/internal/config"
	"github.com/mautops/maintenance-gin/internal/container"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the API server",
	Long: `Start the Maintenance Gin API server.
The server will listen on the configured host and port,
and provide REST API interfaces for maintenance record management.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. 加载配置
		cfg, configPath, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		applyServerFlags(cmd, cfg)

		logger, err := api.NewLoggerFromConfig(&cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if config.IsProduction(cfg) {
			gin.SetMode(gin.ReleaseMode)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// 2. 初始化容器
		ctr, err := container.NewContainer(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize container: %w", err)
		}
		defer ctr.Close()
		ctr.Collector().Start()

		// 3. 配置热更新,只有日志级别即时生效
		if configPath != "" {
			watcher := config.NewConfigWatcher(cfg, configPath)
			watcher.OnConfigChange(func(newCfg *config.Config) {
				api.ApplyLogLevel(logger, newCfg.Log.Level)
				logger.WithField("level", newCfg.Log.Level).Info("log level reloaded")
			})
			watcher.OnError(func(err error) {
				logger.WithError(err).Warn("config reload failed")
			})
			if err := watcher.Start(); err != nil {
				logger.WithError(err).Warn("config watcher disabled")
			}
			defer watcher.Stop()
		}

		// 4. 设置路由
		router := api.SetupRoutes(api.RouterDeps{
			Config:    cfg,
			Logger:    logger,
			DB:        ctr.DB(),
			Redis:     ctr.Redis(),
			Validator: ctr.KeycloakValidator(),
			Records:   api.NewRecordController(ctr.RecordService(), ctr.StepService()),
			Steps:     api.NewStepController(ctr.StepService()),
			Queries:   api.NewQueryController(ctr.QueryService(), ctr.StatisticsService(), ctr.AuditLogService()),
		})

		// 5. 启动服务器
		srv := &http.Server{
			Addr:         cfg.Server.Addr(),
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}

		serveErr := make(chan error, 1)
		go func() {
			logger.WithField("addr", srv.Addr).Info("server starting")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
			close(serveErr)
		}()

		// 等待中断信号或启动失败
		select {
		case err := <-serveErr:
			if err != nil {
				return fmt.Errorf("failed to start server: %w", err)
			}
		case <-ctx.Done():
		}

		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		logger.WithFields(logrus.Fields{"addr": srv.Addr}).Info("server exited")
		return nil
	},
}

// applyServerFlags 命令行显式指定的 host/port 覆盖配置
func applyServerFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().String("host", "0.0.0.0", "Server host")
	serverCmd.Flags().Int("port", 8080, "Server port")
}
