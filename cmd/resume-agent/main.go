package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	"github.com/spf13/pflag"

	"resume-agent-go/internal/agent"
	"resume-agent-go/internal/api/handler"
	"resume-agent-go/internal/api/router"
	"resume-agent-go/internal/cache"
	"resume-agent-go/internal/config"
	"resume-agent-go/internal/dispatch"
	"resume-agent-go/internal/eventbus"
	"resume-agent-go/internal/generator"
	"resume-agent-go/internal/logger"
	"resume-agent-go/internal/parser"
	"resume-agent-go/internal/provider"
	"resume-agent-go/internal/scorer"
	"resume-agent-go/internal/storage"
)

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "", "配置文件路径")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("加载配置失败")
	}

	initLogger(cfg)
	logger.Info().Msg("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	storageManager, err := storage.NewStorage(ctx, cfg, logger.Logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化存储失败")
	}
	defer storageManager.Close()

	// 文档渲染器，文本始终可用，docx需要模板
	renderers := []generator.DocumentRenderer{generator.NewTextRenderer()}
	if cfg.Documents.DocxTemplatePath != "" {
		docxRenderer, err := generator.NewDocxRenderer(cfg.Documents.DocxTemplatePath)
		if err != nil {
			logger.Warn().Err(err).Str("template", cfg.Documents.DocxTemplatePath).Msg("初始化docx渲染器失败，仅提供文本格式")
		} else {
			renderers = append(renderers, docxRenderer)
		}
	}

	// 活动事件发布
	var publisher eventbus.EventPublisher = eventbus.NopPublisher{}
	if cfg.RabbitMQ.Enabled {
		rabbitPublisher, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.RoutingKey, logger.Logger)
		if err != nil {
			logger.Warn().Err(err).Msg("初始化RabbitMQ发布器失败，活动事件将被丢弃")
		} else {
			publisher = rabbitPublisher
			defer rabbitPublisher.Close()
		}
	}

	// 对话模型，未配置API密钥时对话接口不可用，操作接口不受影响
	chatModel, err := buildChatModel(cfg)
	if err != nil {
		logger.Warn().Err(err).Msg("初始化对话模型失败，仅提供操作接口")
	}

	genOptions := []generator.Option{
		generator.WithPublisher(publisher),
		generator.WithLogger(logger.Logger),
	}
	if cfg.LLM.OptimizeDocuments && chatModel != nil {
		optimizer, err := generator.NewLLMOptimizer(chatModel)
		if err != nil {
			logger.Warn().Err(err).Msg("初始化文档润色器失败，使用原始草稿")
		} else {
			genOptions = append(genOptions, generator.WithOptimizer(optimizer))
		}
	}

	gen, err := generator.New(storageManager.Objects, renderers, genOptions...)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化文档生成器失败")
	}

	pdfExtractor, err := parser.NewPDFTextExtractor(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("初始化PDF提取器失败，将只支持纯文本简历")
		pdfExtractor = nil
	}
	resumeParser := parser.NewResumeParser(pdfExtractor, parser.WithLogger(logger.Logger))

	artifacts := cache.New()
	matcher := scorer.New(artifacts, scorer.WithLogger(logger.Logger))

	dispatchOptions := []dispatch.Option{dispatch.WithLogger(logger.Logger)}
	if cfg.Adzuna.AppID != "" && cfg.Adzuna.AppKey != "" {
		searcher, err := provider.NewAdzunaClient(cfg.Adzuna.AppID, cfg.Adzuna.AppKey,
			provider.WithCountry(cfg.Adzuna.Country),
			provider.WithBaseURL(cfg.Adzuna.BaseURL),
			provider.WithLogger(logger.Logger),
		)
		if err != nil {
			logger.Warn().Err(err).Msg("初始化岗位搜索客户端失败，搜索操作不可用")
		} else {
			dispatchOptions = append(dispatchOptions, dispatch.WithSearcher(searcher))
		}
	} else {
		logger.Info().Msg("未配置岗位搜索凭据，搜索操作不可用")
	}

	dispatcher, err := dispatch.New(artifacts, resumeParser, matcher, gen, dispatchOptions...)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化调度器失败")
	}

	handlerOptions := []handler.SessionHandlerOption{
		handler.WithMaxSteps(cfg.LLM.MaxSteps),
		handler.WithHandlerLogger(logger.Logger),
		handler.WithObjectStore(storageManager.Objects),
		handler.WithPresignExpiry(cfg.MinIO.PresignExpiry()),
	}
	if chatModel != nil {
		handlerOptions = append(handlerOptions, handler.WithChatModel(chatModel))
	}
	if storageManager.Redis != nil {
		memory, err := agent.NewRedisChatMemory(storageManager.Redis, "", cfg.Redis.HistoryTTL())
		if err != nil {
			logger.Warn().Err(err).Msg("初始化Redis对话历史失败，历史将只保存在内存")
		} else {
			handlerOptions = append(handlerOptions, handler.WithChatMemory(memory))
		}
	}

	sessionHandler, err := handler.NewSessionHandler(dispatcher, handlerOptions...)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化会话处理器失败")
	}

	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
	)
	h.Use(func(c context.Context, ctx *app.RequestContext) {
		glog.CtxInfof(c, "Request: %s %s", string(ctx.Method()), string(ctx.Path()))
		ctx.Next(c)
		glog.CtxInfof(c, "Response: status %d", ctx.Response.StatusCode())
	})

	router.RegisterRoutes(h, sessionHandler)
	logger.Info().Str("address", cfg.Server.Address).Msg("HTTP服务器启动中")

	go func() {
		if err := h.Run(); err != nil {
			logger.Fatal().Err(err).Msg("启动HTTP服务器失败")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("接收到终止信号，正在优雅退出...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("服务器关闭失败")
	}
	logger.Info().Msg("优雅退出完成")
}

func buildChatModel(cfg *config.Config) (*agent.OpenAIChatModel, error) {
	if cfg.LLM.APIKey == "" {
		return nil, nil
	}
	return agent.NewOpenAIChatModel(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.APIURL,
		agent.WithModelLogger(logger.Logger))
}

func initLogger(cfg *config.Config) {
	logger.Init(logger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})
	logger.Logger = logger.Logger.With().
		Str("app", "resume-agent").
		Logger()

	// Hertz的框架日志也走zerolog
	glog.SetLogger(hertzadapter.From(logger.Logger))
}
