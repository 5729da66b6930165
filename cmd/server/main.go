package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"relay-system/config"
	"relay-system/internal/handler"
	"relay-system/internal/model"
	"relay-system/internal/repository"
	"relay-system/internal/service"
	"relay-system/internal/worker"
	dbPkg "relay-system/pkg/db"
	"relay-system/pkg/jwt"
	"relay-system/pkg/logger"
	redisPkg "relay-system/pkg/redis"
	"relay-system/pkg/refine"
	"relay-system/pkg/response"
	"relay-system/pkg/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	cfg := config.LoadConfig()

	// 2. 初始化日志系统
	log := logger.InitLogger(cfg.Log)
	defer log.Sync()

	log.Info("=== 传话系统启动 ===")
	log.Info("服务器配置信息",
		zap.String("port", cfg.Server.Port),
		zap.String("database_host", cfg.Database.Host),
		zap.Int("database_port", cfg.Database.Port),
		zap.String("database_name", cfg.Database.Database),
		zap.String("refine_base_url", cfg.Refine.BaseURL),
		zap.Int("refine_workers", cfg.Worker.Workers),
		zap.String("log_level", cfg.Log.Level),
	)

	// 3. 初始化数据库连接
	if _, err := dbPkg.InitDB(cfg.Database); err != nil {
		log.Fatal("数据库连接失败", zap.Error(err))
	}
	defer func() {
		if err := dbPkg.CloseDB(); err != nil {
			log.Error("关闭数据库连接失败", zap.Error(err))
		}
	}()
	log.Info("数据库连接成功")

	// 3.1 自动迁移表结构
	if err := dbPkg.AutoMigrate(&model.User{}, &model.Pairing{}, &model.RelayMessage{}); err != nil {
		log.Fatal("自动迁移失败", zap.Error(err))
	}
	log.Info("自动迁移完成")

	// 3.2 初始化Redis（发送者锁用）
	if err := redisPkg.InitRedis(cfg.Redis); err != nil {
		log.Fatal("Redis连接失败", zap.Error(err))
	}
	defer func() {
		if err := redisPkg.Close(); err != nil {
			log.Error("关闭Redis连接失败", zap.Error(err))
		}
	}()
	log.Info("Redis连接成功")

	// 3.3 组装业务服务
	jwtSvc := jwt.NewJWTService(cfg.JWT)
	userRepo := repository.NewUserRepository(dbPkg.GetDB())
	pairingRepo := repository.NewPairingRepository(dbPkg.GetDB())
	relayRepo := repository.NewRelayMessageRepository(dbPkg.GetDB())

	userSvc := service.NewUserService(userRepo, jwtSvc)
	pairingSvc := service.NewPairingService(pairingRepo, userRepo)

	clock := service.NewSystemClock()
	senderLock := redisPkg.NewSenderLock()
	passAlongSvc := service.NewRelayService(
		service.RulesFromConfig(model.VariantPassAlong, cfg.Relay.PassAlong),
		relayRepo, pairingRepo, userRepo, senderLock, clock,
	)
	feedbackSvc := service.NewRelayService(
		service.RulesFromConfig(model.VariantFeedback, cfg.Relay.Feedback),
		relayRepo, pairingRepo, userRepo, senderLock, clock,
	)

	// 3.4 后台润色：处理器 + 调度器 + 补偿扫描
	refineClient := refine.NewClient(cfg.Refine)
	processor := service.NewRefineProcessor(
		relayRepo, userRepo, refineClient, websocket.GetManager(), clock, cfg.Refine.Timeout,
	)
	dispatcher := worker.NewDispatcher(cfg.Worker.Workers, cfg.Worker.QueueSize, processor.Process)
	dispatcher.Start()
	passAlongSvc.SetDispatcher(dispatcher)
	feedbackSvc.SetDispatcher(dispatcher)

	sweeper := worker.NewSweeper(relayRepo, dispatcher, clock, cfg.Worker.SweepInterval, cfg.Worker.PendingSLA)
	sweeper.Start()

	userHandler := handler.NewUserHandler(userSvc)
	pairingHandler := handler.NewPairingHandler(pairingSvc)
	passAlongHandler := handler.NewRelayHandler(passAlongSvc)
	feedbackHandler := handler.NewRelayHandler(feedbackSvc)

	// 4. 设置Gin模式
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 5. 创建Gin路由
	router := gin.New()

	// 注入jwt_config到Gin context，供WebSocket使用
	router.Use(func(c *gin.Context) {
		c.Set("jwt_config", cfg.JWT)
		c.Next()
	})

	// 使用中间件
	router.Use(logger.LoggerMiddleware())      // 自定义日志中间件
	router.Use(logger.ErrorLoggerMiddleware()) // 错误日志中间件

	// 6. 设置基础路由
	setupBasicRoutes(router)

	// 6.1 业务路由
	v1 := router.Group("/api/v1")
	{
		users := v1.Group("/users")
		{
			// 公开接口（无需认证）
			users.POST("/register", userHandler.Register)
			users.POST("/login", userHandler.Login)

			// 需要认证的接口
			authUsers := users.Group("")
			authUsers.Use(jwtSvc.AuthMiddleware())
			{
				authUsers.GET("/profile", userHandler.GetProfile)
			}
		}

		// 配对路由（需要认证）
		pairings := v1.Group("/pairings")
		pairings.Use(jwtSvc.AuthMiddleware())
		{
			pairings.POST("", pairingHandler.Create)          // 建立配对
			pairings.GET("/me", pairingHandler.GetMine)       // 查询当前配对
			pairings.DELETE("/me", pairingHandler.Disconnect) // 解除配对
		}

		// 代为传话路由（需要认证）
		relay := v1.Group("/relay")
		relay.Use(jwtSvc.AuthMiddleware())
		{
			relay.POST("/messages", passAlongHandler.Create)                    // 发送传话
			relay.GET("/messages/popup", passAlongHandler.Popup)                // 当前待展示的消息
			relay.PUT("/messages/:id/delivered", passAlongHandler.AckDelivered) // 弹窗展示确认
			relay.PUT("/messages/:id/read", passAlongHandler.AckRead)           // 已读确认
			relay.GET("/usage", passAlongHandler.Usage)                         // 发送额度
			relay.GET("/history", passAlongHandler.History)                     // 消息历史
			relay.GET("/unread", passAlongHandler.Unread)                       // 未读列表
		}

		// 每周心里话路由（需要认证）
		feedback := v1.Group("/feedback")
		feedback.Use(jwtSvc.AuthMiddleware())
		{
			feedback.POST("", feedbackHandler.Create)
			feedback.GET("/availability", feedbackHandler.Availability) // 提交窗口可用性
			feedback.GET("/popup", feedbackHandler.Popup)
			feedback.PUT("/:id/delivered", feedbackHandler.AckDelivered)
			feedback.PUT("/:id/read", feedbackHandler.AckRead)
			feedback.GET("/usage", feedbackHandler.Usage)
			feedback.GET("/history", feedbackHandler.History)
			feedback.GET("/unread", feedbackHandler.Unread)
		}
	}

	// WebSocket路由
	router.GET("/ws", websocket.WsHandler)

	// 7. 创建HTTP服务器
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// 8. 启动HTTP服务器
	go func() {
		log.Info("HTTP服务器启动", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP服务器启动失败", zap.Error(err))
		}
	}()

	// 9. 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("正在关闭服务器...")

	// 设置关闭超时
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 先停HTTP，再停后台：补偿扫描先停（不再入队），调度器排空剩余任务
	if err := server.Shutdown(ctx); err != nil {
		log.Error("HTTP服务器关闭失败", zap.Error(err))
	}
	sweeper.Stop()
	if err := dispatcher.Stop(ctx); err != nil {
		log.Warn("润色任务未全部排空，剩余消息由下次启动的补偿扫描处理", zap.Error(err))
	}

	log.Info("服务器已安全关闭")
}

// setupBasicRoutes 设置基础路由
func setupBasicRoutes(router *gin.Engine) {
	// 健康检查
	// 完整url为：http://localhost:8080/health
	router.GET("/health", func(c *gin.Context) {
		status := "ok"
		if err := dbPkg.HealthCheck(); err != nil {
			status = "db-down"
		} else if err := redisPkg.HealthCheck(); err != nil {
			status = "redis-down"
		}
		response.Success(c, gin.H{
			"status":  status,
			"message": "传话系统运行状态",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	// 根路径
	// 完整url为：http://localhost:8080/
	router.GET("/", func(c *gin.Context) {
		response.Success(c, gin.H{
			"message": "欢迎使用传话系统",
			"version": "1.0.0",
		})
	})
}
