package main

import (
	"fmt"
	"strconv"

	"github.com/zulandar/seatplan/internal/config"
	"github.com/zulandar/seatplan/internal/db"
	"github.com/zulandar/seatplan/internal/emergency"
	"github.com/zulandar/seatplan/internal/notify"
	"github.com/zulandar/seatplan/internal/notify/discord"
	"github.com/zulandar/seatplan/internal/notify/slack"
	"github.com/zulandar/seatplan/internal/part"
	"github.com/zulandar/seatplan/internal/recommend"
	"github.com/zulandar/seatplan/internal/service"
	"github.com/zulandar/seatplan/internal/store"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultConfigPath = "seatplan.yaml"

// app bundles what every command needs after loading the config.
type app struct {
	cfg    *config.Config
	db     *gorm.DB
	store  *store.Store
	svc    *service.Service
	remote *recommend.Remote
	log    *zap.Logger
}

func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s: %w", cfg.Database.Name, err)
	}

	return cfg, gormDB, nil
}

// newLogger returns a production zap logger, or a no-op one when quiet.
func newLogger(quiet bool) *zap.Logger {
	if quiet {
		return zap.NewNop()
	}
	zcfg := zap.NewProductionConfig()
	zcfg.OutputPaths = []string{"stderr"}
	log, err := zcfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

// openApp loads the config, connects to the database and wires the service.
func openApp(configPath string, quiet bool) (*app, error) {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return nil, err
	}
	log := newLogger(quiet)

	mode, err := emergency.ParseMode(cfg.Emergency.UnavailableMode)
	if err != nil {
		return nil, err
	}
	opts := emergency.DefaultOptions()
	opts.Mode = mode
	opts.CrossRowEnabled = cfg.Emergency.CrossRow()
	opts.CrossRowThreshold = cfg.Emergency.CrossRowThreshold

	local := recommend.NewLocal(part.DefaultTable())
	var remote *recommend.Remote
	var rec recommend.Recommender = recommend.NewService(nil, local, log)
	if cfg.Recommender.URL != "" {
		remote = recommend.NewRemote(cfg.Recommender.URL, cfg.Recommender.Timeout, cfg.Recommender.HealthTimeout)
		rec = recommend.NewService(remote, local, log)
	}

	notifier, err := buildNotifier(cfg.Notify, log)
	if err != nil {
		return nil, err
	}

	st := store.New(gormDB)
	svc := service.New(service.Opts{
		Store:       st,
		Recommender: rec,
		Emergency:   opts,
		Notifier:    notifier,
		Log:         log,
	})
	return &app{cfg: cfg, db: gormDB, store: st, svc: svc, remote: remote, log: log}, nil
}

// buildNotifier wires the configured chat channels. With none configured it
// returns notify.Nop.
func buildNotifier(cfg config.NotifyConfig, log *zap.Logger) (notify.Notifier, error) {
	var ns []notify.Notifier
	if cfg.SlackWebhook != "" {
		n, err := slack.New(slack.Opts{WebhookURL: cfg.SlackWebhook, Log: log})
		if err != nil {
			return nil, err
		}
		ns = append(ns, n)
	}
	if cfg.DiscordToken != "" {
		n, err := discord.New(discord.Opts{BotToken: cfg.DiscordToken, ChannelID: cfg.DiscordChannelID, Log: log})
		if err != nil {
			return nil, err
		}
		ns = append(ns, n)
	}
	if len(ns) == 0 {
		return notify.Nop{}, nil
	}
	return notify.NewMulti(log, ns...), nil
}

func parseID(s string) (uint, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid arrangement id %q", s)
	}
	return uint(n), nil
}
