package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/iota-community/workshops/internal/config"
	"github.com/iota-community/workshops/pkg/api"
	"github.com/iota-community/workshops/pkg/app"
	"github.com/iota-community/workshops/pkg/blockchain"
	"github.com/iota-community/workshops/pkg/core"
	"github.com/iota-community/workshops/pkg/feed"
	"github.com/iota-community/workshops/pkg/gasstation"
	"github.com/iota-community/workshops/pkg/pusher/sources"
	"github.com/iota-community/workshops/pkg/sentry"
	"github.com/iota-community/workshops/pkg/sponsor"
	"github.com/iota-community/workshops/pkg/txbuilder"
	"github.com/iota-community/workshops/pkg/wallet"
)

func main() {
	cfg := config.Load()
	log := app.Logger(cfg.App.LogLevel)
	defer sentry.Flush(2 * time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	station, err := gasstation.NewClient(cfg.GasStation.URL,
		gasstation.WithAuthToken(cfg.GasStation.Auth),
		gasstation.WithTimeout(cfg.GasStation.Timeout))
	if err != nil {
		log.Fatal("failed to create gas station client", zap.Error(err))
	}
	node := blockchain.NewNodeClient(log, cfg.Node.URL)
	builder := txbuilder.NewBuilder(node)

	hub := sources.NewPostHub(log)
	newPosts := hub.Run(ctx)
	posts := feed.New(
		feed.WithLimit(cfg.App.FeedLimit),
		feed.WithListener(func(post core.Post) {
			select {
			case newPosts <- post:
			default:
				log.Warn("post hub is full, dropping post", zap.String("txid", post.TransactionID))
			}
		}))

	submitter, err := sponsor.NewSubmitter(log, cfg.SponsorConfig(), station, builder, posts)
	if err != nil {
		log.Fatal("failed to create submitter", zap.Error(err))
	}

	handlerOpts := []api.HandlerOption{
		api.WithRelay(wallet.NewRelay(log)),
		api.WithObjectSource(node),
		api.WithLimits(api.Limits{
			BulkLimits:        cfg.API.BulkLimits,
			RequestsPerSecond: cfg.API.RateLimitPerSecond,
		}),
	}
	if cfg.App.ServiceSecretKey != "" {
		seed, err := wallet.ParseSecretKey(cfg.App.ServiceSecretKey)
		if err != nil {
			log.Fatal("invalid SERVICE_SECRET_KEY", zap.Error(err))
		}
		service, err := wallet.NewKeypair(log, seed)
		if err != nil {
			log.Fatal("failed to create service keypair", zap.Error(err))
		}
		log.Info("service account enabled", zap.Stringer("address", service.Address()))
		handlerOpts = append(handlerOpts, api.WithServiceKeypair(service))
	}
	h := api.NewHandler(log, submitter, posts, handlerOpts...)

	server, err := api.NewServer(log, h, fmt.Sprintf(":%v", cfg.API.Port), api.WithPostSource(hub))
	if err != nil {
		log.Fatal("failed to create api server", zap.Error(err))
	}
	log.Info("starting workshops api",
		zap.Int("port", cfg.API.Port),
		zap.Stringer("target", cfg.MoveTarget()),
		zap.Uint64("gas_budget", cfg.Sponsor.GasBudget),
		zap.Duration("reservation_lifetime", cfg.Sponsor.ReservationLifetime))
	app.Run(ctx, log, server, app.NewMetricsServer(log, cfg.App.MetricsPort))
}
