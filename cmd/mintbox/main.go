package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/layer-3/mintbox/adapters/chain"
	"github.com/layer-3/mintbox/adapters/events"
	"github.com/layer-3/mintbox/adapters/ipfs"
	"github.com/layer-3/mintbox/adapters/store"
	"github.com/layer-3/mintbox/adapters/tokenizer"
	"github.com/layer-3/mintbox/internal/config"
	"github.com/layer-3/mintbox/internal/eth"
	"github.com/layer-3/mintbox/internal/log"
	"github.com/layer-3/mintbox/ports"
	"github.com/layer-3/mintbox/service"
	httptransport "github.com/layer-3/mintbox/transport/http"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.New("main")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := log.Configure(cfg.Logging.Format, cfg.Logging.Level); err != nil {
		logger.Fatal().Err(err).Msg("failed to configure logging")
	}
	logger = log.New("main")

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse redis url")
	}
	redisClient := redis.NewClient(opts)
	defer redisClient.Close()

	db, err := store.OpenSQLite(cfg.Database.DSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	identities, err := store.NewBunIdentityStore(ctx, db)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare identity store")
	}
	nfts, err := store.NewBunNFTStore(ctx, db)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare nft store")
	}
	sessions := store.NewRedisSessionStore(redisClient)

	eventPub, err := newEventPublisher(cfg, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create event publisher")
	}

	tk, err := tokenizer.NewJWTTokenizer(cfg.Auth.AccessTokenSecret, cfg.Auth.RefreshTokenSecret)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create tokenizer")
	}

	minter, err := newMinter(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to chain")
	}

	authService := service.NewAuthService(identities, sessions, eth.NewVerifier(), tk, eventPub, log.New("auth"))
	userService := service.NewUserService(identities, log.New("users"))
	nftService := service.NewNFTService(nfts, newPinner(cfg), minter, eventPub, log.New("nfts"))

	metrics, err := httptransport.NewMetrics()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create metrics")
	}

	router := httptransport.SetupRouter(httptransport.RouterConfig{
		Auth:    authService,
		Users:   userService,
		NFTs:    nftService,
		Cookies: httptransport.CookieConfig{Secure: cfg.Server.SecureCookies},
		Metrics: metrics,
		Logger:  log.New("http"),
	})

	handler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	}).Handler(router)

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: handler,
	}

	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func newEventPublisher(cfg *config.Config, client redis.UniversalClient) (ports.EventPublisher, error) {
	if cfg.Events.Driver == "none" {
		return events.NopPublisher{}, nil
	}

	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{
			Client: client,
		},
		log.NewWatermillAdapter(log.New("events")),
	)
	if err != nil {
		return nil, err
	}
	return events.NewWatermillPublisher(publisher), nil
}

func newPinner(cfg *config.Config) ports.Pinner {
	if cfg.IPFS.Driver == "memory" {
		return ipfs.NewMemoryPinner()
	}
	return ipfs.NewPinataClient(cfg.IPFS.PinataURL, cfg.IPFS.GatewayURL, cfg.IPFS.PinataJWT)
}

func newMinter(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (ports.Minter, error) {
	if !cfg.MintingEnabled() {
		logger.Warn().Msg("chain not configured, NFTs are stored off-chain")
		return chain.DisabledMinter{}, nil
	}

	minter, err := chain.Dial(ctx, cfg.Chain.RPCURL, cfg.Chain.PrivateKey, cfg.Chain.ContractAddress, cfg.Chain.ChainID)
	if err != nil {
		return nil, err
	}
	return minter, nil
}
