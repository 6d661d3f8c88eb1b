package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dashmart/promotions/internal/clients"
	"github.com/dashmart/promotions/internal/di"
	"github.com/dashmart/promotions/internal/handlers"
	"github.com/dashmart/promotions/internal/platform/auth"
	"github.com/dashmart/promotions/internal/platform/config"
	"github.com/dashmart/promotions/internal/platform/events"
	pfirestore "github.com/dashmart/promotions/internal/platform/firestore"
	"github.com/dashmart/promotions/internal/platform/observability"
	"github.com/dashmart/promotions/internal/platform/secrets"
	platformstorage "github.com/dashmart/promotions/internal/platform/storage"
	"github.com/dashmart/promotions/internal/repositories"
	firestoreRepo "github.com/dashmart/promotions/internal/repositories/firestore"
	"github.com/dashmart/promotions/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("promotions")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	requiredSecrets := requiredSecretNames(envValues)
	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(requiredSecrets...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(envValues, cfg, startedAt)

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	if _, err := firestoreProvider.Client(ctx); err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	healthRepo, err := newHealthRepository(ctx, firestoreProvider, fetcher)
	if err != nil {
		logger.Fatal("failed to initialise health checks", zap.Error(err))
	}

	registry, err := firestoreRepo.NewRegistry(firestoreProvider, healthRepo)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}

	httpClient := &http.Client{Timeout: cfg.Clients.Timeout}
	warehouseClient, err := clients.NewWarehouseClient(clients.WarehouseClientDeps{
		BaseURL:    cfg.Clients.WarehouseBaseURL,
		AuthToken:  cfg.Clients.AuthToken,
		HTTPClient: httpClient,
		CacheTTL:   cfg.Cache.WarehousesTTL,
		Logger:     logger.Named("warehouses"),
	})
	if err != nil {
		logger.Fatal("failed to initialise warehouse client", zap.Error(err))
	}
	pricingClient, err := clients.NewPricingClient(clients.PricingClientDeps{
		BaseURL:    cfg.Clients.PricingBaseURL,
		AuthToken:  cfg.Clients.AuthToken,
		HTTPClient: httpClient,
		CacheTTL:   cfg.Cache.PurchasePricesTTL,
		Logger:     logger.Named("pricing"),
	})
	if err != nil {
		logger.Fatal("failed to initialise pricing client", zap.Error(err))
	}

	imageSigner := newImageSigner(logger, envValues, cfg)

	container, err := di.NewContainer(di.Deps{
		Config:     cfg,
		Registry:   registry,
		Warehouses: warehouseClient,
		Prices:     pricingClient,
		Images:     imageSigner,
		Build:      buildInfo,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal("failed to wire services", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("container close error", zap.Error(err))
		}
	}()

	couponHandlers := handlers.NewCouponHandlers(container.Services.Coupons)
	conditionsHandlers := handlers.NewConditionsHandlers(container.Services.Conditions)
	giftHandlers := handlers.NewGiftHandlers(container.Services.Gifts)
	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthSystemService(container.Services.System),
	)

	projectID := strings.TrimSpace(cfg.Firestore.ProjectID)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
	}

	opts := []handlers.Option{
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithInternalRoutes(func(r chi.Router) {
			couponHandlers.Routes(r)
			conditionsHandlers.Routes(r)
			giftHandlers.Routes(r)
		}),
	}
	if internalMiddlewares := buildInternalMiddlewares(logger.Named("auth"), cfg); len(internalMiddlewares) > 0 {
		opts = append(opts, handlers.WithInternalMiddlewares(internalMiddlewares...))
	}

	router := handlers.NewRouter(opts...)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	subscriberCtx, subscriberCancel := context.WithCancel(ctx)
	defer subscriberCancel()
	subscriberDone := startOrderEventSubscriber(subscriberCtx, logger, cfg, container.Services.Coupons)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("promotions api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	subscriberCancel()
	if subscriberDone != nil {
		select {
		case <-subscriberDone:
		case <-time.After(10 * time.Second):
			logger.Warn("order event subscriber did not stop in time")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// startOrderEventSubscriber consumes order paid/cancelled events so coupon
// usages track real order lifecycles. Returns nil when Pub/Sub is not
// configured, which keeps local runs and tests self-contained.
func startOrderEventSubscriber(ctx context.Context, logger *zap.Logger, cfg config.Config, processor events.OrderEventProcessor) <-chan struct{} {
	projectID := strings.TrimSpace(cfg.PubSub.ProjectID)
	if projectID == "" {
		logger.Warn("pubsub project not configured; order events disabled")
		return nil
	}

	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		logger.Fatal("failed to initialise pubsub client", zap.Error(err))
	}

	subscriber, err := events.NewSubscriber(events.SubscriberDeps{
		Logger:       logger.Named("events"),
		Processor:    processor,
		PaidSub:      client.Subscription(cfg.PubSub.OrderPaidSubscription),
		CancelledSub: client.Subscription(cfg.PubSub.OrderCancelledSubscription),
	})
	if err != nil {
		logger.Fatal("failed to initialise order event subscriber", zap.Error(err))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
		if err := subscriber.Run(ctx); err != nil {
			logger.Error("order event subscriber stopped", zap.Error(err))
		}
	}()
	return done
}

// newImageSigner builds the signed URL client for banner images when a signer
// key file is supplied. Banners degrade to raw object paths without one.
func newImageSigner(logger *zap.Logger, env map[string]string, cfg config.Config) services.ImageSigner {
	bucket := strings.TrimSpace(cfg.Storage.BannersBucket)
	if bucket == "" {
		logger.Warn("banners bucket not configured; banner images served unsigned")
		return nil
	}
	keyFile := strings.TrimSpace(env["PROMO_STORAGE_SIGNER_KEY_FILE"])
	if keyFile == "" {
		logger.Warn("storage signer key not configured; banner images served unsigned")
		return nil
	}
	signer, err := platformstorage.NewServiceAccountSignerFromFile(keyFile)
	if err != nil {
		logger.Fatal("failed to load storage signer key", zap.Error(err))
	}
	client, err := platformstorage.NewClient(signer, bucket,
		platformstorage.WithExpiry(cfg.Storage.SignedURLTTL),
	)
	if err != nil {
		logger.Fatal("failed to initialise signed url client", zap.Error(err))
	}
	return client
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(env["PROMO_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["PROMO_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(cfg.Security.Environment)
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

func newHealthRepository(ctx context.Context, provider *pfirestore.Provider, fetcher *secrets.Fetcher) (repositories.HealthRepository, error) {
	checks := make([]repositories.DependencyCheck, 0, 2)
	if provider != nil {
		client, err := provider.Client(ctx)
		if err != nil {
			return nil, err
		}
		checks = append(checks, repositories.DependencyCheck{
			Name:    "firestore",
			Timeout: 1500 * time.Millisecond,
			Check: func(ctx context.Context) error {
				iter := client.Collections(ctx)
				_, err := iter.Next()
				if errors.Is(err, iterator.Done) {
					return nil
				}
				return err
			},
		})
	}
	if fetcher != nil {
		const secretHealthReference = "secret://system/healthz?version=latest"
		checks = append(checks, repositories.DependencyCheck{
			Name:    "secretManager",
			Timeout: time.Second,
			Check: func(ctx context.Context) error {
				_, err := fetcher.Resolve(ctx, secretHealthReference)
				if err == nil {
					return nil
				}
				if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
					return nil
				}
				return err
			},
		})
	}
	if len(checks) == 0 {
		return nil, errors.New("health: no dependency checks configured")
	}
	return repositories.NewDependencyHealthRepository(checks)
}

// buildInternalMiddlewares guards /api/v1/internal with OIDC and/or HMAC
// depending on what is configured. Running with neither is allowed for local
// development but logged loudly.
func buildInternalMiddlewares(logger *zap.Logger, cfg config.Config) []func(http.Handler) http.Handler {
	var middlewares []func(http.Handler) http.Handler
	if mw := buildOIDCMiddleware(logger, cfg); mw != nil {
		middlewares = append(middlewares, mw)
	}
	if mw := buildHMACMiddleware(logger, cfg); mw != nil {
		middlewares = append(middlewares, mw)
	}
	if len(middlewares) == 0 {
		logger.Warn("auth: no OIDC audience or HMAC secrets configured; internal routes are unauthenticated")
	}
	return middlewares
}

func buildOIDCMiddleware(logger *zap.Logger, cfg config.Config) func(http.Handler) http.Handler {
	audience := strings.TrimSpace(cfg.Security.OIDC.Audience)
	if audience == "" || strings.TrimSpace(cfg.Security.OIDC.JWKSURL) == "" {
		return nil
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	adapter := observability.NewPrintfAdapter(logger)
	jwks := auth.NewJWKSCache(cfg.Security.OIDC.JWKSURL, auth.WithJWKSLogger(adapter))
	validator := auth.NewOIDCValidator(jwks, auth.WithOIDCLogger(adapter))

	issuers := cfg.Security.OIDC.Issuers
	if len(issuers) == 0 {
		logger.Warn("auth: OIDC issuers not configured; internal routes will reject requests")
	}

	return validator.RequireOIDC(audience, issuers)
}

func buildHMACMiddleware(logger *zap.Logger, cfg config.Config) func(http.Handler) http.Handler {
	hmacSecrets := make(map[string]string)
	for key, value := range cfg.Security.HMAC.Secrets {
		if strings.TrimSpace(value) == "" {
			continue
		}
		hmacSecrets[strings.ToLower(strings.TrimSpace(key))] = value
	}
	if len(hmacSecrets) == 0 {
		return nil
	}

	provider := auth.SecretProviderFunc(func(_ context.Context, name string) (string, error) {
		key := strings.ToLower(strings.TrimSpace(name))
		if secret, ok := hmacSecrets[key]; ok && secret != "" {
			return secret, nil
		}
		return "", errors.New("auth: secret not found")
	})
	nonces := auth.NewInMemoryNonceStore()
	adapter := observability.NewPrintfAdapter(logger)
	validator := auth.NewHMACValidator(provider, nonces,
		auth.WithHMACLogger(adapter),
		auth.WithHMACHeaders(cfg.Security.HMAC.SignatureHeader, cfg.Security.HMAC.TimestampHeader, cfg.Security.HMAC.NonceHeader),
		auth.WithHMACClockSkew(cfg.Security.HMAC.ClockSkew),
		auth.WithHMACNonceTTL(cfg.Security.HMAC.NonceTTL),
	)

	return validator.RequireHMAC(internalSecretName(hmacSecrets))
}

// internalSecretName picks the HMAC secret used for internal callers:
// "internal" when present, otherwise "default", otherwise the first key in
// sorted order so the choice is deterministic.
func internalSecretName(hmacSecrets map[string]string) string {
	for _, candidate := range []string{"internal", "default"} {
		if _, ok := hmacSecrets[candidate]; ok {
			return candidate
		}
	}
	keys := make([]string, 0, len(hmacSecrets))
	for key := range hmacSecrets {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys[0]
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		if env == nil {
			return ""
		}
		if value, ok := env[key]; ok {
			return strings.TrimSpace(value)
		}
		return ""
	}

	envLabel := strings.ToLower(lookup("PROMO_SECURITY_ENVIRONMENT"))
	if envLabel == "" {
		envLabel = "local"
	}
	projectMap := parseKeyValueList(lookup("PROMO_SECRET_PROJECT_IDS"))
	defaultProject := lookup("PROMO_SECRET_DEFAULT_PROJECT_ID")
	if defaultProject == "" {
		defaultProject = lookup("PROMO_FIRESTORE_PROJECT_ID")
	}
	fallbackPath := lookup("PROMO_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}
	credentialsFile := lookup("PROMO_SECRET_CREDENTIALS_FILE")

	opts := []secrets.Option{
		secrets.WithEnvironment(envLabel),
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if len(projectMap) > 0 {
		normalized := make(map[string]string, len(projectMap))
		for label, project := range projectMap {
			normalized[strings.ToLower(label)] = project
		}
		opts = append(opts, secrets.WithProjectMap(normalized))
	}
	if defaultProject != "" {
		opts = append(opts, secrets.WithDefaultProject(defaultProject))
	}
	if credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}

	return secrets.NewFetcher(ctx, opts...)
}

// requiredSecretNames lists the secret-backed config fields that must resolve
// before the service starts. HMAC entries are derived from the environment so
// a partially resolved secret map fails fast instead of rejecting traffic.
func requiredSecretNames(env map[string]string) []string {
	var required []string

	raw := ""
	if env != nil {
		if strings.TrimSpace(env["PROMO_CLIENT_AUTH_TOKEN"]) != "" {
			required = append(required, "Clients.AuthToken")
		}
		raw = strings.TrimSpace(env["PROMO_SECURITY_HMAC_SECRETS"])
	}
	for key := range parseKeyValueList(raw) {
		required = append(required, fmt.Sprintf("Security.HMAC.Secrets[%s]", key))
	}

	sort.Strings(required)
	return required
}

func parseKeyValueList(raw string) map[string]string {
	result := make(map[string]string)
	if strings.TrimSpace(raw) == "" {
		return result
	}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" || value == "" {
			continue
		}
		result[key] = value
	}
	return result
}
