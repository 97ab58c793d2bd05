// Package cli holds the jwtauth command definitions.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	auth "github.com/goliatone/go-jwtauth"
	"github.com/goliatone/go-jwtauth/config"
)

// Build information, set via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "jwtauth",
		Usage:   "Issue, verify and serve signed session tokens",
		Version: fmt.Sprintf("%s (commit: %s)", Version, Commit),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			SignCommand(),
			VerifyCommand(),
			InspectCommand(),
			ServeCommand(),
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML configuration file",
			EnvVars: []string{"JWTAUTH_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "secret",
			Usage: "signing secret, overrides the configuration",
		},
		&cli.StringFlag{
			Name:  "algorithm",
			Usage: "signing algorithm, overrides the configuration",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Enable debug logging",
		},
	}
}

// loadOptions merges the configuration file, the environment and the global
// flags. extra is applied last.
func loadOptions(c *cli.Context, extra map[string]any) (*auth.Options, error) {
	overrides := map[string]any{}
	if c.IsSet("secret") {
		overrides["secret"] = c.String("secret")
	}
	if c.IsSet("algorithm") {
		overrides["algorithm"] = c.String("algorithm")
	}
	for k, v := range extra {
		overrides[k] = v
	}

	return config.Load(
		config.WithConfigFile(c.String("config")),
		config.WithOverrides(overrides),
	)
}

func newLogger(c *cli.Context) auth.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	if c.App.ErrWriter != nil {
		l.SetOutput(c.App.ErrWriter)
	}
	if c.Bool("verbose") {
		l.SetLevel(logrus.DebugLevel)
	}
	return auth.NewLogrusLogger(l)
}

func writer(c *cli.Context) io.Writer {
	if c.App.Writer != nil {
		return c.App.Writer
	}
	return os.Stdout
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(writer(c))
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// tokenArg reads the token from the first argument, or stdin when the
// argument is "-" or missing.
func tokenArg(c *cli.Context) (string, error) {
	raw := c.Args().First()
	if raw == "" || raw == "-" {
		in := c.App.Reader
		if in == nil {
			in = os.Stdin
		}
		b, err := io.ReadAll(in)
		if err != nil {
			return "", err
		}
		raw = string(b)
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", cli.Exit("a token is required", 2)
	}
	return raw, nil
}

// exitError turns a pipeline error into a non zero exit with the kind.
func exitError(err error) error {
	return cli.Exit(fmt.Sprintf("%s: %s", auth.KindOf(err), auth.AsError(err).Message), 1)
}

func background(c *cli.Context) context.Context {
	if c.Context != nil {
		return c.Context
	}
	return context.Background()
}
