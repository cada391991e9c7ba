package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/hackbot/core/bootstrap"
	coreconfig "github.com/m3rciful/hackbot/core/config"
	"github.com/m3rciful/hackbot/core/database"
	"github.com/m3rciful/hackbot/core/dialog"
	"github.com/m3rciful/hackbot/core/generator"
	"github.com/m3rciful/hackbot/core/infosource"
	"github.com/m3rciful/hackbot/core/logger"
	"github.com/m3rciful/hackbot/core/scenario"
	coretelegram "github.com/m3rciful/hackbot/core/telegram"
	"github.com/m3rciful/hackbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/hackbot/core/telegram/helpers"
	"github.com/m3rciful/hackbot/core/telegram/router"
	tgsender "github.com/m3rciful/hackbot/core/telegram/sender"
)

// RateLimitedText answers updates dropped by the rate limiter.
const RateLimitedText = "Please wait a moment before trying again."

// App holds the wired hackbot components.
type App struct {
	cfg        *coreconfig.Config
	infra      *bootstrap.Result
	engine     *dialog.Engine
	packer     *callbacks.Packer
	dispatcher *tgsender.Dispatcher
	// flushJournal waits for background journal writes; nil without a DB.
	flushJournal func()
}

// New wires generator, info source, scenario pipeline and dialog engine on
// top of the infrastructure opened by bootstrap.Run. infra may carry a nil DB.
func New(ctx context.Context, cfg *coreconfig.Config, infra *bootstrap.Result) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	if infra == nil {
		infra = &bootstrap.Result{}
	}

	callTimeout := time.Duration(cfg.Dialog.CallTimeoutMS) * time.Millisecond
	// Generator and info source calls pass or fail once; the pipeline
	// substitutes fallbacks instead of retrying.
	upstream := coretelegram.BuildHTTPClient(coretelegram.HTTPClientOptions{
		Timeout:               callTimeout,
		ResponseHeaderTimeout: callTimeout,
		NoRetry:               true,
	})

	gen, err := generator.New(ctx, cfg.Generator, upstream)
	if err != nil {
		return nil, fmt.Errorf("app: generator: %w", err)
	}
	if infra.DB != nil {
		gen = generator.WithJournal(gen, database.NewGenerationJournal(infra.DB), cfg.Generator.Provider, cfg.Generator.Model)
	}
	var flushJournal func()
	if w, ok := gen.(interface{ Wait() }); ok {
		flushJournal = w.Wait
	}

	pipeline, err := scenario.New(scenario.Options{
		Generator:   gen,
		Info:        infosource.New(cfg.InfoSource, upstream),
		CallTimeout: callTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("app: pipeline: %w", err)
	}

	engine, err := dialog.NewEngine(dialog.Options{
		Pipeline:     pipeline,
		StartKeyword: cfg.Dialog.StartKeyword,
	})
	if err != nil {
		return nil, fmt.Errorf("app: engine: %w", err)
	}

	logger.Info(ctx, "app", "wired",
		slog.String("provider", cfg.Generator.Provider),
		slog.String("model", cfg.Generator.Model),
		slog.String("info_base_url", cfg.InfoSource.BaseURL),
		slog.Bool("journal", infra.DB != nil),
		slog.Bool("stash", infra.Stash != nil),
	)

	return &App{
		cfg:        cfg,
		infra:      infra,
		engine:     engine,
		packer:     callbacks.NewPacker(infra.Stash),
		dispatcher: tgsender.NewDispatcher(tgsender.Options{MaxRetries: 2}),

		flushJournal: flushJournal,
	}, nil
}

// TelegramRunOptions builds the Telegram runtime configuration for the app.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	onLimited := func(c tele.Context) error {
		return tghelpers.SendText(c, a.dispatcher, RateLimitedText)
	}

	return coretelegram.RunOptions{
		Config:      a.cfg,
		Dispatcher:  a.dispatcher,
		Middlewares: coretelegram.DefaultMiddlewares(a.cfg, onLimited),
		Routes: func(rt coretelegram.Runtime) ([]coretelegram.Route, error) {
			return router.DialogRoutes(router.DialogOptions{
				Engine:    a.engine,
				Deliverer: coretelegram.NewDeliverer(rt.Bot, rt.Dispatcher, a.packer.Pack),
				Unpacker:  a.packer,
			})
		},
		Commands: startCommands(a.engine.StartKeyword()),
	}, nil
}

// Close releases the dispatcher, lets journal writes finish and closes the
// bootstrap infrastructure.
func (a *App) Close() error {
	a.dispatcher.Close()
	if a.flushJournal != nil {
		a.flushJournal()
	}
	return a.infra.Close()
}

// startCommands lists the start keyword in the bot menu when it is a slash command.
func startCommands(keyword string) []tele.Command {
	name, ok := strings.CutPrefix(keyword, "/")
	if !ok || name == "" || strings.ContainsAny(name, " \t") {
		return nil
	}
	return []tele.Command{{Text: name, Description: "Choose a situation"}}
}
