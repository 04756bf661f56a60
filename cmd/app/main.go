package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/atvirokodosprendimai/intellitest/internal/adapters/cache"
	sqliteadapter "github.com/atvirokodosprendimai/intellitest/internal/adapters/db/sqlite"
	httpadapter "github.com/atvirokodosprendimai/intellitest/internal/adapters/http"
	"github.com/atvirokodosprendimai/intellitest/internal/adapters/llm"
	"github.com/atvirokodosprendimai/intellitest/internal/adapters/natsbus"
	"github.com/atvirokodosprendimai/intellitest/internal/adapters/notify"
	rpcadapter "github.com/atvirokodosprendimai/intellitest/internal/adapters/rpcjson"
	"github.com/atvirokodosprendimai/intellitest/internal/adapters/storage"
	"github.com/atvirokodosprendimai/intellitest/internal/adapters/ws"
	"github.com/atvirokodosprendimai/intellitest/internal/application"
	"github.com/atvirokodosprendimai/intellitest/internal/config"
	"github.com/atvirokodosprendimai/intellitest/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v3"
	"gorm.io/gorm"
)

func main() {
	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}

	root := &cli.Command{
		Name:  "intellitest",
		Usage: "Test management server and operator CLI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "YAML config file (defaults to ./intellitest.yaml when present)"},
		},
		Commands: []*cli.Command{
			serverCommand(),
			migrateCommand(),
			authCommand(),
			projectsCommand(),
			dashboardCommand(),
		},
	}

	if err := root.Run(context.Background(), args); err != nil {
		log.Fatal(err)
	}
}

// serverConfig loads the file/env configuration and applies flag overrides.
func serverConfig(c *cli.Command) (config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return config.Config{}, err
	}
	if c.IsSet("addr") {
		cfg.Server.Addr = c.String("addr")
	}
	if c.IsSet("rpc-socket") {
		cfg.Server.RPCSocket = c.String("rpc-socket")
	}
	if c.IsSet("db-path") {
		cfg.Database.Path = c.String("db-path")
	}
	return cfg, nil
}

func serverCommand() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Run the HTTP API and the JSON-RPC socket",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "HTTP listen address"},
			&cli.StringFlag{Name: "rpc-socket", Usage: "JSON-RPC unix socket path"},
			&cli.StringFlag{Name: "db-path", Usage: "SQLite database path"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := serverConfig(c)
			if err != nil {
				return err
			}
			return runServer(ctx, cfg)
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply database migrations and exit",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "db-path", Usage: "SQLite database path"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := serverConfig(c)
			if err != nil {
				return err
			}
			db, err := openDatabase(ctx, cfg.Database.Path)
			if err != nil {
				return err
			}
			closeDatabase(db)
			fmt.Printf("migrations applied to %s\n", cfg.Database.Path)
			return nil
		},
	}
}

func openDatabase(ctx context.Context, path string) (*gorm.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sqliteadapter.Open(path)
	if err != nil {
		return nil, err
	}
	if err := sqliteadapter.RunMigrations(ctx, db); err != nil {
		closeDatabase(db)
		return nil, err
	}
	return db, nil
}

func closeDatabase(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func runServer(ctx context.Context, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	db, err := openDatabase(ctx, cfg.Database.Path)
	if err != nil {
		return err
	}
	defer closeDatabase(db)
	repo := sqliteadapter.NewRepository(db)

	creds, err := application.NewCredentials(cfg.Auth.JWTSecret, cfg.Auth.JWTAlgorithm, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	var projectCache domain.Cache
	if cfg.Cache.RedisAddr != "" {
		rc, err := cache.NewRedis(ctx, cache.RedisOptions{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			return err
		}
		defer func() { _ = rc.Close() }()
		projectCache = rc
		logger.Info("project cache on redis", "addr", cfg.Cache.RedisAddr)
	} else {
		projectCache = cache.NewMemory()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	hub := ws.NewHub(logger)
	defer hub.Close()
	targets := []domain.Notifier{hub}
	if cfg.NATS.URL != "" {
		pub, err := natsbus.Connect(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logger)
		if err != nil {
			return err
		}
		defer pub.Close()
		targets = append(targets, pub)
		logger.Info("publishing notifications to nats", "url", cfg.NATS.URL)
	}
	notifier := notify.NewFanout(registry, targets...)

	var generator domain.TextGenerator
	retry := llm.DefaultRetryConfig()
	retry.MaxAttempts = cfg.AI.MaxAttempts
	if client := llm.New(cfg.AI.APIKey,
		llm.WithModel(cfg.AI.Model),
		llm.WithBaseURL(cfg.AI.BaseURL),
		llm.WithRetryConfig(retry),
		llm.WithLogger(logger),
		llm.WithHTTPClient(&http.Client{Timeout: cfg.AI.Timeout}),
	); client != nil {
		generator = client
	} else {
		logger.Warn("ai.api_key is not set; AI assistance returns fallback answers")
	}

	files, err := storage.NewDisk(cfg.Storage.UploadDir)
	if err != nil {
		return err
	}

	services := application.New(application.Deps{
		Repo:           repo,
		Credentials:    creds,
		Cache:          projectCache,
		Notifier:       notifier,
		Generator:      generator,
		Files:          files,
		Logger:         logger,
		ProjectTTL:     cfg.Cache.ProjectTTL,
		MaxListLimit:   cfg.List.MaxLimit,
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
	})
	hub.SetAccess(services.Projects.CanRead)
	if cfg.Bootstrap.AdminEmail != "" {
		if err := services.Auth.BootstrapAdmin(ctx, cfg.Bootstrap.AdminEmail, cfg.Bootstrap.AdminPassword); err != nil {
			return err
		}
	}

	router := httpadapter.NewRouter(httpadapter.Options{
		Services: services,
		Realtime: hub,
		Store:    repo,
		Logger:   logger,
		Registry: registry,
	})
	srv := &http.Server{Addr: cfg.Server.Addr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	rpcSrv, err := rpcadapter.Start(cfg.Server.RPCSocket, services, logger)
	if err != nil {
		return err
	}
	defer func() { _ = rpcSrv.Close() }()
	logger.Info("json-rpc listening", "socket", cfg.Server.RPCSocket)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authentication commands",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Login and store the access token",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "transport", Value: "uds", Usage: "uds or http"},
					&cli.StringFlag{Name: "server", Value: defaultServer},
					&cli.StringFlag{Name: "socket", Value: defaultSocket},
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					sess := session{Transport: c.String("transport"), Server: c.String("server"), Socket: c.String("socket")}.withDefaults()
					var out application.LoginResult
					if err := doLogin(ctx, sess, c.String("email"), c.String("password"), &out); err != nil {
						return err
					}
					ttl := time.Duration(out.ExpiresIn) * time.Second
					if err := saveSession(sess.loggedIn(out.User.Email, out.AccessToken, ttl, time.Now())); err != nil {
						return err
					}
					fmt.Printf("logged in as %s (token valid for %s)\n", out.User.Email, ttl)
					return nil
				},
			},
			{
				Name:  "whoami",
				Usage: "Show the authenticated user",
				Flags: []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
				Action: func(ctx context.Context, c *cli.Command) error {
					sess, err := loadSession()
					if err != nil {
						return err
					}
					var out domain.User
					if err := doWhoAmI(ctx, sess, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printUser(out)
					return nil
				},
			},
			{
				Name:  "logout",
				Usage: "Forget the stored access token",
				Action: func(ctx context.Context, c *cli.Command) error {
					sess, err := loadSession()
					if err != nil {
						return err
					}
					if err := saveSession(sess.loggedOut()); err != nil {
						return err
					}
					fmt.Println("logged out")
					return nil
				},
			},
		},
	}
}

func projectsCommand() *cli.Command {
	return &cli.Command{
		Name:  "projects",
		Usage: "Project commands",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List projects you can access",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "skip"},
					&cli.IntFlag{Name: "limit", Value: 100},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					sess, err := loadSession()
					if err != nil {
						return err
					}
					var out []domain.Project
					if err := doProjectsList(ctx, sess, int(c.Int("skip")), int(c.Int("limit")), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printProjects(out)
					return nil
				},
			},
			{
				Name:      "get",
				Usage:     "Show one project",
				ArgsUsage: "<project-id>",
				Flags:     []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
				Action: func(ctx context.Context, c *cli.Command) error {
					id := c.Args().First()
					if id == "" {
						return errors.New("project id is required")
					}
					sess, err := loadSession()
					if err != nil {
						return err
					}
					var out domain.Project
					if err := doProjectsGet(ctx, sess, id, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printProject(out)
					return nil
				},
			},
			{
				Name:  "create",
				Usage: "Create a project",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "description"},
					&cli.StringFlag{Name: "team-id"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					sess, err := loadSession()
					if err != nil {
						return err
					}
					in := application.CreateProjectInput{Name: c.String("name"), Description: c.String("description")}
					if team := c.String("team-id"); team != "" {
						in.TeamID = &team
					}
					var out domain.Project
					if err := doProjectsCreate(ctx, sess, in, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printProject(out)
					return nil
				},
			},
		},
	}
}

func dashboardCommand() *cli.Command {
	return &cli.Command{
		Name:  "dashboard",
		Usage: "Dashboard commands",
		Commands: []*cli.Command{
			{
				Name:  "stats",
				Usage: "Show execution statistics for your projects",
				Flags: []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
				Action: func(ctx context.Context, c *cli.Command) error {
					sess, err := loadSession()
					if err != nil {
						return err
					}
					var out domain.DashboardStats
					if err := doDashboardStats(ctx, sess, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printStats(out)
					return nil
				},
			},
		},
	}
}
