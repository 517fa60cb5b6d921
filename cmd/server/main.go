package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rodrigofdzr/TARdesk/internal/attachments"
	"github.com/rodrigofdzr/TARdesk/internal/config"
	"github.com/rodrigofdzr/TARdesk/internal/database"
	"github.com/rodrigofdzr/TARdesk/internal/ingest"
	"github.com/rodrigofdzr/TARdesk/internal/metrics"
	"github.com/rodrigofdzr/TARdesk/internal/notifications"
	"github.com/rodrigofdzr/TARdesk/internal/repository"
	"github.com/rodrigofdzr/TARdesk/internal/storage"
	"github.com/rodrigofdzr/TARdesk/internal/ticketnumber"
	"github.com/rodrigofdzr/TARdesk/internal/webhook"
	"github.com/rodrigofdzr/TARdesk/internal/zoho"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	cfg, err := config.Load(os.Getenv("TARDESK_CONFIG"))
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatalf("connect database: %v", err)
	}
	defer db.Close()
	if err := db.EnsureSchema(); err != nil {
		logger.Fatalf("ensure schema: %v", err)
	}

	ticketRepo := repository.NewTicketRepository(db)
	replyRepo := repository.NewTicketReplyRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	userRepo := repository.NewUserRepository(db)

	// Email-sourced tickets are recorded against a real agent account; fail
	// fast when it is missing rather than on the first webhook.
	startupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	systemUser, err := userRepo.GetByID(startupCtx, cfg.Ingestion.SystemUserID)
	cancel()
	if err != nil {
		logger.Fatalf("system user lookup: %v", err)
	}
	if systemUser == nil {
		logger.Fatalf("system user %d does not exist", cfg.Ingestion.SystemUserID)
	}

	store, err := storage.NewAttachmentStore(cfg.Storage.AttachmentPath, cfg.Storage.PublicBaseURL)
	if err != nil {
		logger.Fatalf("attachment store: %v", err)
	}

	ingestionMetrics := metrics.NewIngestion()

	fetcherOpts := []attachments.FetcherOption{
		attachments.WithFetcherLogger(logger),
		attachments.WithFetcherMetrics(ingestionMetrics),
	}
	if cfg.Zoho.ClientID != "" {
		zohoClient := zoho.NewClient(zoho.Config{
			ClientID:       cfg.Zoho.ClientID,
			ClientSecret:   cfg.Zoho.ClientSecret,
			RefreshToken:   cfg.Zoho.RefreshToken,
			AccountID:      cfg.Zoho.AccountID,
			AccountsURL:    cfg.Zoho.AccountsURL,
			MailAPIURL:     cfg.Zoho.MailAPIURL,
			ConnectTimeout: cfg.Zoho.ConnectTimeout,
			RequestTimeout: cfg.Zoho.RequestTimeout,
		}, logger)
		fetcherOpts = append(fetcherOpts, attachments.WithFetcherRemote(zohoClient))
	} else {
		logger.Printf("zoho credentials not configured, remote attachment fetch disabled")
	}
	fetcher := attachments.NewFetcher(store, fetcherOpts...)

	numbers := ticketnumber.NewYearSeq(ticketnumber.NewDBStore(db), nil)

	mailer := notifications.NewMailer(
		cfg.SMTP,
		notifications.NewHeaderBuilder(cfg.App.URL),
		notifications.WithMailerLogger(logger),
	)

	processor := ingest.NewProcessor(ticketRepo, replyRepo, customerRepo, userRepo, numbers,
		ingest.WithProcessorLogger(logger),
		ingest.WithProcessorSystemUser(cfg.Ingestion.SystemUserID),
		ingest.WithProcessorAttachments(fetcher),
		ingest.WithProcessorNotifier(mailer),
		ingest.WithProcessorIgnoreList(cfg.Ingestion.IgnoredSenders, cfg.Ingestion.IgnoredSubjects),
		ingest.WithProcessorAutoReplyMarker(cfg.Ingestion.AutoReplyMarker),
	)

	handler := webhook.NewHandler(
		webhook.NewVerifier(cfg.Webhook.Secret, logger),
		webhook.NewNormalizer(logger),
		processor,
		webhook.WithHandlerLogger(logger),
		webhook.WithHandlerMetrics(ingestionMetrics),
	)

	router := newRouter(db, store, handler)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Printf("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Printf("shutdown: %v", err)
	}
}

func newRouter(db *database.DB, store *storage.AttachmentStore, handler *webhook.Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	handler.Register(router)
	router.GET("/healthz", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/attachments/*path", func(c *gin.Context) {
		data, err := store.Read(strings.TrimPrefix(c.Param("path"), "/"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.Data(http.StatusOK, "application/octet-stream", data)
	})
	return router
}
