package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gogotex/todo-api/handlers"
	"github.com/gogotex/todo-api/internal/auth"
	"github.com/gogotex/todo-api/internal/config"
	"github.com/gogotex/todo-api/internal/credentials"
	"github.com/gogotex/todo-api/internal/database"
	"github.com/gogotex/todo-api/internal/oidc"
	"github.com/gogotex/todo-api/internal/sessions"
	"github.com/gogotex/todo-api/internal/storage"
	"github.com/gogotex/todo-api/internal/todos"
	"github.com/gogotex/todo-api/internal/tokens"
	"github.com/gogotex/todo-api/internal/users"
	"github.com/gogotex/todo-api/pkg/logger"
	"github.com/gogotex/todo-api/pkg/metrics"
	"github.com/gogotex/todo-api/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

func main() {
	// LOG_LEVEL debug|info|warn|error|fatal, LOG_FORMAT text|json
	logger.Init(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	logger.Infof("config loaded: provider=%s mongo=%v redis=%v minio=%v",
		cfg.Auth.Provider, cfg.MongoDB.URI != "", cfg.Redis.Addr() != "", cfg.MinIO.Endpoint != "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
}

// app holds the long-lived clients that need closing on shutdown.
type app struct {
	store  database.Store
	mongo  *mongo.Client
	redis  *redis.Client
	checks map[string]handlers.Check
}

func (a *app) close() {
	if a.mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.mongo.Disconnect(ctx); err != nil {
			logger.Warnf("mongo disconnect: %v", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Warnf("redis close: %v", err)
		}
	}
}

func connect(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{checks: map[string]handlers.Check{}}

	if cfg.MongoDB.URI != "" {
		client, err := database.ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, cfg.MongoDB.Attempts)
		if err != nil {
			return nil, err
		}
		a.mongo = client
		a.store = database.NewMongoStore(client.Database(cfg.MongoDB.Database))
		logger.Infof("using MongoDB database %q", cfg.MongoDB.Database)
	} else {
		a.store = database.NewMemoryStore()
		logger.Warnf("MONGODB_URI not set: using the in-memory store, data is lost on restart")
	}
	a.checks["store"] = a.store.Ping

	if addr := cfg.Redis.Addr(); addr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			logger.Warnf("redis %s not reachable yet: %v", addr, err)
		} else {
			logger.Infof("connected to Redis at %s", addr)
		}
		a.checks["redis"] = func(ctx context.Context) error { return a.redis.Ping(ctx).Err() }
	}
	return a, nil
}

// authStack is the provider-specific part of the wiring.
type authStack struct {
	creds    credentials.Service
	authn    auth.Authenticator
	verifier middleware.Verifier
}

func buildLocalAuth(ctx context.Context, cfg *config.Config, a *app) (*authStack, error) {
	creds := credentials.NewLocal(a.store)
	if err := creds.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("credential indexes: %w", err)
	}
	issuer := tokens.NewIssuer(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessTokenTTL)
	verifier := tokens.NewVerifier(cfg.JWT.Secret, cfg.JWT.Issuer, tokens.WithRevocationCheck(creds.TokensValidAfter))

	var repo sessions.Repository
	if a.redis != nil {
		repo = sessions.NewRedisRepository(a.redis, "session:")
		logger.Infof("refresh sessions stored in Redis")
	} else {
		repo = sessions.NewDocumentRepository(a.store)
		logger.Infof("refresh sessions stored in the %q collection", sessions.Collection)
	}
	authn := auth.NewLocal(creds, issuer, sessions.NewService(repo), cfg.JWT.AccessTokenTTL, cfg.JWT.RefreshTokenTTL)
	return &authStack{creds: creds, authn: authn, verifier: verifier}, nil
}

func buildKeycloakAuth(ctx context.Context, cfg *config.Config) (*authStack, error) {
	kc := credentials.NewKeycloak(credentials.KeycloakConfig{
		URL:               cfg.Keycloak.URL,
		Realm:             cfg.Keycloak.Realm,
		ClientID:          cfg.Keycloak.ClientID,
		ClientSecret:      cfg.Keycloak.ClientSecret,
		AdminClientID:     cfg.Keycloak.AdminClientID,
		AdminClientSecret: cfg.Keycloak.AdminClientSecret,
	}, nil)

	var verifier middleware.Verifier
	ver, err := oidc.NewVerifier(ctx, kc.Issuer(), "")
	switch {
	case err == nil:
		verifier = ver
	case cfg.Auth.AllowInsecureToken:
		logger.Warnf("OIDC discovery failed (%v): accepting unsigned tokens, integration mode only", err)
		verifier = oidc.NewInsecureVerifier()
	default:
		return nil, fmt.Errorf("oidc verifier: %w", err)
	}
	return &authStack{creds: kc, authn: auth.NewKeycloak(kc), verifier: verifier}, nil
}

func newRouter(cfg *config.Config, a *app) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization", middleware.RequestIDHeader)
	corsCfg.ExposeHeaders = []string{"Content-Length", "Retry-After", middleware.RequestIDHeader}
	if len(cfg.CORS.AllowedOrigins) == 0 || (len(cfg.CORS.AllowedOrigins) == 1 && cfg.CORS.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORS.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))
	r.Use(middleware.RequestID(), middleware.RequestLogger())
	r.Use(middleware.CatchAll(), middleware.ErrorTranslator())

	if cfg.RateLimit.Enabled {
		if a.redis != nil {
			r.Use(middleware.RedisRateLimitMiddleware(a.redis, cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.Window))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}
	return r
}

func run(ctx context.Context, cfg *config.Config) error {
	a, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	var stack *authStack
	if cfg.Auth.Provider == config.ProviderLocal {
		stack, err = buildLocalAuth(ctx, cfg, a)
	} else {
		stack, err = buildKeycloakAuth(ctx, cfg)
	}
	if err != nil {
		return err
	}

	var todoOpts []todos.Option
	if cfg.MinIO.Endpoint != "" {
		exports, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
		if err != nil {
			return err
		}
		todoOpts = append(todoOpts, todos.WithExports(exports, cfg.MinIO.URLExpiry))
		a.checks["minio"] = exports.Ping
		logger.Infof("list exports go to bucket %q", exports.Bucket())
	}

	// without Redis, signed-out access tokens stay valid until they expire
	blacklist := sessions.NewBlacklist(a.redis)
	authMW := middleware.AuthMiddleware(stack.verifier, blacklist)

	r := newRouter(cfg, a)
	root := r.Group("/")
	handlers.NewUserHandler(users.NewService(users.NewRepository(a.store), stack.creds)).Register(root, authMW)
	handlers.NewAuthHandler(stack.authn, blacklist).Register(root, authMW)
	todoSvc := todos.NewService(todos.NewRepository(a.store), todoOpts...)
	if !todoSvc.ExportEnabled() {
		logger.Infof("MINIO_ENDPOINT not set: list exports are disabled")
	}
	handlers.NewTodoHandler(todoSvc).Register(root, authMW)
	handlers.NewHealthHandler(a.checks).Register(r)
	handlers.RegisterSwagger(r)

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("starting to-do API on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
