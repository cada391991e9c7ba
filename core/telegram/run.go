package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/hackbot/core/config"
	"github.com/m3rciful/hackbot/core/logger"
	tgsender "github.com/m3rciful/hackbot/core/telegram/sender"
)

// Middleware describes a global bot middleware to be registered via bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route declares a single bot handler bound to an arbitrary endpoint.
// Endpoint values are passed directly to tele.Bot.Handle.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls the behaviour of RunTelegram.
type RunOptions struct {
	Config *coreconfig.Config

	DispatcherOptions tgsender.Options
	Dispatcher        *tgsender.Dispatcher

	Middlewares []Middleware
	// Routes is called once the bot exists so handlers can send through it.
	Routes   func(rt Runtime) ([]Route, error)
	Commands []tele.Command

	DisableWebhookSetup bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime exposes runtime components to lifecycle hooks and route builders.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
}

// RunTelegram composes and runs a Telegram bot until the provided context is
// done. In webhook mode the update receiver is served next to the bot loop.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Config == nil {
		return fmt.Errorf("telegram: nil config provided")
	}
	cfg := opts.Config

	poller, receiver := BuildPoller(cfg)
	client := BuildHTTPClient(HTTPClientOptions{
		ResponseHeaderTimeout: longPollTimeout(cfg) + 10*time.Second,
		Timeout:               longPollTimeout(cfg) + 20*time.Second,
	})

	buildStart := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: poller,
		Client: client,
		OnError: func(err error, c tele.Context) {
			logger.Error(ctx, "tg", "handler.error",
				slog.String("status", "error"),
				slog.String("err", err.Error()),
			)
		},
	})
	if err != nil {
		return fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	buildTook := time.Since(buildStart)

	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = tgsender.NewDispatcher(opts.DispatcherOptions)
	}
	defer dispatcher.Close()
	rt := Runtime{Bot: bot, Dispatcher: dispatcher}

	if !opts.DisableWebhookSetup {
		if err := configureWebhook(ctx, cfg, client); err != nil {
			return err
		}
	}
	logMode(ctx, cfg, buildTook)

	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	if opts.Routes != nil {
		routes, err := opts.Routes(rt)
		if err != nil {
			return fmt.Errorf("telegram: routes: %w", err)
		}
		for _, route := range routes {
			if route.Endpoint == nil || route.Handler == nil {
				continue
			}
			bot.Handle(route.Endpoint, route.Handler)
		}
	}
	if len(opts.Commands) > 0 {
		if err := bot.SetCommands(opts.Commands); err != nil {
			logger.Warn(ctx, "tg.wire", "register.commands.set_failed",
				slog.String("err", err.Error()),
			)
		}
	}

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		bot.Start()
		return nil
	})

	var srv *http.Server
	if receiver != nil {
		mux := http.NewServeMux()
		mux.Handle(cfg.Webhook.Path, receiver)
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		srv = &http.Server{
			Addr:              net.JoinHostPort(cfg.Webhook.Listen, strconv.Itoa(cfg.Webhook.Port)),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("telegram: webhook server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		if srv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn(ctx, "tg.webhook", "server.shutdown",
					slog.String("status", "error"),
					slog.String("err", err.Error()),
				)
			}
		}
		bot.Stop()
		return nil
	})

	runErr := g.Wait()

	if opts.OnStop != nil {
		if err := opts.OnStop(context.WithoutCancel(ctx), rt); err != nil {
			return err
		}
	}
	return runErr
}

func configureWebhook(ctx context.Context, cfg *coreconfig.Config, client *http.Client) error {
	api := NewBotAPI(cfg.Telegram.Token, "", client)
	defer func() { _ = api.Close() }()

	callCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if cfg.Telegram.RunMode == coreconfig.RunModeWebhook {
		if err := api.SetWebhook(callCtx, cfg.Webhook.URL, cfg.Webhook.Secret, false); err != nil {
			return fmt.Errorf("telegram: register webhook: %w", err)
		}
		logger.Info(ctx, "tg", "set_webhook", slog.String("status", "ok"))
		return nil
	}
	if err := api.DeleteWebhook(callCtx, false); err != nil {
		logger.Warn(ctx, "tg", "delete_webhook",
			slog.String("status", "error"),
			slog.String("mode", "polling"),
			slog.String("err", err.Error()),
		)
		return nil
	}
	logger.Info(ctx, "tg", "delete_webhook",
		slog.String("status", "ok"),
		slog.String("mode", "polling"),
	)
	return nil
}

func logMode(ctx context.Context, cfg *coreconfig.Config, took time.Duration) {
	if cfg.Telegram.RunMode == coreconfig.RunModeWebhook {
		logger.Info(ctx, "tg", "mode",
			slog.String("mode", "webhook"),
			slog.String("listen", net.JoinHostPort(cfg.Webhook.Listen, strconv.Itoa(cfg.Webhook.Port))),
			slog.String("path", cfg.Webhook.Path),
			slog.String("public_url", cfg.Webhook.URL),
			slog.Duration("duration", logger.RoundMS(took)),
		)
		return
	}
	logger.Info(ctx, "tg", "mode",
		slog.String("mode", "polling"),
		slog.Int("timeout_seconds", int(longPollTimeout(cfg)/time.Second)),
		slog.Duration("duration", logger.RoundMS(took)),
	)
}
