package cli

import (
	"context"
	"database/sql"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/goliatone/go-router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/urfave/cli/v2"

	auth "github.com/goliatone/go-jwtauth"
	"github.com/goliatone/go-jwtauth/activitymap"
	"github.com/goliatone/go-jwtauth/httpauth"
	"github.com/goliatone/go-jwtauth/internal/userstore"
	"github.com/goliatone/go-jwtauth/metrics"
	"github.com/goliatone/go-jwtauth/middleware/jwtware"
	"github.com/goliatone/go-jwtauth/stores/bunstore"
	"github.com/goliatone/go-jwtauth/stores/redisstore"
)

// ServeCommand starts an HTTP server exposing the auth endpoints.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the auth endpoints over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "listen address",
				Value: ":8080",
			},
			&cli.StringFlag{
				Name:  "prefix",
				Usage: "route prefix",
				Value: "/auth",
			},
			&cli.StringFlag{
				Name:     "users",
				Usage:    "file of username:password lines",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "redis",
				Usage:   "redis address for refresh tokens",
				EnvVars: []string{"JWTAUTH_REDIS_ADDR"},
			},
			&cli.StringFlag{
				Name:    "sqlite",
				Usage:   "sqlite DSN for refresh tokens, e.g. file:tokens.db",
				EnvVars: []string{"JWTAUTH_SQLITE_DSN"},
			},
			&cli.StringSliceFlag{
				Name:    "jwks-url",
				Usage:   "JWK set URL of an external issuer whose access tokens are also accepted",
				EnvVars: []string{"JWTAUTH_JWKS_URL"},
			},
			&cli.StringFlag{
				Name:  "jwks-issuer",
				Usage: "expected iss of tokens verified against --jwks-url",
			},
			&cli.StringFlag{
				Name:  "jwks-audience",
				Usage: "expected aud of tokens verified against --jwks-url",
			},
		},
		Action: func(c *cli.Context) error {
			srv, err := NewServer(c)
			if err != nil {
				return err
			}
			return srv.Serve(c.String("addr"))
		},
	}
}

// NewServer builds the server run by the serve command. Refresh tokens are
// kept in redis or sqlite when configured, in memory otherwise.
func NewServer(c *cli.Context) (router.Server[*fiber.App], error) {
	logger := newLogger(c)

	if c.String("redis") != "" && c.String("sqlite") != "" {
		return nil, cli.Exit("--redis and --sqlite are mutually exclusive", 2)
	}

	opts, err := loadOptions(c, nil)
	if err != nil {
		return nil, exitError(err)
	}

	users := userstore.New(0)
	if err := users.LoadFile(c.String("users")); err != nil {
		return nil, cli.Exit(err.Error(), 1)
	}

	reg := prometheus.NewRegistry()
	recorder, err := metrics.NewRecorder(reg)
	if err != nil {
		return nil, err
	}

	auther, err := auth.NewAuther(auth.NewAuthenticator(users).WithLogger(logger), opts)
	if err != nil {
		return nil, exitError(err)
	}
	auther.WithLogger(logger).
		WithMetrics(recorder).
		WithIdentityRetriever(users).
		WithActivitySink(activitymap.Sink(func(_ context.Context, n activitymap.Normalized) error {
			logger.Info("activity", "verb", n.Verb, "actor", n.ActorID, "object", n.ObjectID, "metadata", n.Metadata)
			return nil
		}))

	store, err := refreshStore(c)
	if err != nil {
		return nil, err
	}
	if store != nil {
		auther.WithRefreshStore(store)
	}

	controllerOpts := []httpauth.ControllerOption{httpauth.WithLogger(logger)}
	if urls := c.StringSlice("jwks-url"); len(urls) > 0 {
		validator, err := jwksValidator(c, *opts, urls, logger)
		if err != nil {
			return nil, err
		}
		controllerOpts = append(controllerOpts,
			httpauth.WithTokenValidator(auth.NewMultiTokenValidator(auther, validator)))
	}

	srv := router.NewFiberAdapter(func(*fiber.App) *fiber.App {
		app := fiber.New(fiber.Config{DisableStartupMessage: true})
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
		return app
	})

	controller := httpauth.NewController(auther, controllerOpts...)
	httpauth.Register(srv.Router().Group(c.String("prefix")), controller)

	return srv, nil
}

func refreshStore(c *cli.Context) (auth.RefreshStore, error) {
	if addr := c.String("redis"); addr != "" {
		return redisstore.New(redis.NewClient(&redis.Options{Addr: addr}), ""), nil
	}

	dsn := c.String("sqlite")
	if dsn == "" {
		return nil, nil
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, cli.Exit(err.Error(), 1)
	}
	db := bun.NewDB(sqldb, sqlitedialect.New())
	if err := bunstore.Migrate(background(c), db); err != nil {
		return nil, cli.Exit("refresh token migration failed: "+err.Error(), 1)
	}
	return bunstore.New(db), nil
}

// jwksValidator checks external tokens with the local claim rules, except
// for iss and aud which come from the jwks flags.
func jwksValidator(c *cli.Context, opts auth.Options, urls []string, logger auth.Logger) (*jwtware.JWKSValidator, error) {
	opts.Issuer = c.String("jwks-issuer")
	opts.Audience = c.String("jwks-audience")

	cfg, err := auth.NewConfig(opts)
	if err != nil {
		return nil, exitError(err)
	}

	validator, err := jwtware.NewJWKSValidator(auth.NewClaimsValidator(cfg), urls, jwtware.WithJWKSLogger(logger))
	if err != nil {
		return nil, cli.Exit(err.Error(), 1)
	}
	return validator, nil
}
