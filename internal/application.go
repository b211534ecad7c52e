package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/rocketscienceinc/tickeyhellman/internal/bot"
	"github.com/rocketscienceinc/tickeyhellman/internal/client"
	"github.com/rocketscienceinc/tickeyhellman/internal/config"
	"github.com/rocketscienceinc/tickeyhellman/internal/dhke"
	"github.com/rocketscienceinc/tickeyhellman/internal/entity"
	"github.com/rocketscienceinc/tickeyhellman/internal/repository"
	"github.com/rocketscienceinc/tickeyhellman/internal/repository/storage"
	"github.com/rocketscienceinc/tickeyhellman/internal/service"
	"github.com/rocketscienceinc/tickeyhellman/internal/usecase"
	"github.com/rocketscienceinc/tickeyhellman/transport/rest"
)

const botPasswordLength = 64

var ErrAddrNotFound = errors.New("redis address string is empty")

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	params, err := dhke.GenerateParameters(nil, conf.DHKE.PrimeBits)
	if err != nil {
		return fmt.Errorf("could not generate domain parameters: %w", err)
	}

	secrets, journal, closeStorage, err := initStorage(ctx, conf)
	if err != nil {
		return err
	}
	defer closeStorage()

	botPassword, err := service.GeneratePassword(botPasswordLength)
	if err != nil {
		return fmt.Errorf("could not generate bot password: %w", err)
	}

	players := repository.NewPlayerRepository(
		&entity.Player{Username: conf.Players.PlayerUsername, Password: conf.Players.PlayerPassword, Mark: entity.PlayerX},
		&entity.Player{Username: conf.Players.BotUsername, Password: botPassword, Mark: entity.PlayerO, Bot: true},
	)

	botPlayer, err := players.GetByMark(entity.PlayerO)
	if err != nil {
		return fmt.Errorf("could not find bot credentials: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	gameManager := usecase.NewGameManager(
		logger,
		dhke.NewExchange(params, secrets),
		players,
		journal,
		usecase.WithFlagPath(conf.FlagPath),
		usecase.WithMetrics(usecase.NewMetrics(registry)),
	)

	log.Info("TickeyHellman server starting",
		"port", conf.HTTPPort,
		"p", params.P.String(),
		"g", params.G.String(),
		"player", conf.Players.PlayerUsername,
		"bot", conf.Players.BotUsername,
		"storage", conf.Storage.Driver,
	)

	// run HTTP server
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		if httpErr := rest.New(logger, gameManager, registry).Start(ctx, conf.HTTPPort); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	// run bot player; a stuck bot stops playing but the server keeps serving
	if !conf.Bot.Disabled {
		go func() {
			player := bot.New(logger, client.New(conf.Bot.ServerURL, nil), bot.Config{
				Username:     botPlayer.Username,
				Password:     botPlayer.Password,
				StartupDelay: conf.Bot.StartupDelay,
				PollInterval: conf.Bot.PollInterval,
				ThinkDelay:   conf.Bot.ThinkDelay,
				HandicapMove: conf.Bot.HandicapMove,
			})
			if botErr := player.Run(ctx); botErr != nil {
				log.Error("Bot stopped", "error", botErr)
			}
		}()
	}

	select {
	case err = <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		return nil
	}
}

func initStorage(ctx context.Context, conf *config.Config) (repository.SecretRepository, repository.JournalRepository, func(), error) {
	if conf.Storage.Driver != config.StorageRedis {
		return repository.NewMemorySecretRepository(), repository.NewMemoryJournalRepository(), func() {}, nil
	}

	redisAddrString := conf.Redis.GetRedisAddr()
	if redisAddrString == "" {
		return nil, nil, nil, ErrAddrNotFound
	}

	redisStorage, err := storage.NewRedisStorage(ctx, redisAddrString)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("could not connect to redis storage: %w", err)
	}

	bootID, err := service.NewBootID()
	if err != nil {
		_ = redisStorage.Close()
		return nil, nil, nil, err
	}

	closeFn := func() {
		_ = redisStorage.Close()
	}

	return repository.NewRedisSecretRepository(redisStorage, bootID, conf.Storage.SecretTTL),
		repository.NewRedisJournalRepository(redisStorage, bootID),
		closeFn,
		nil
}
