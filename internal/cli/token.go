package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/urfave/cli/v2"

	auth "github.com/goliatone/go-jwtauth"
)

// SignCommand issues an access token for a subject without credentials.
func SignCommand() *cli.Command {
	return &cli.Command{
		Name:  "sign",
		Usage: "Sign an access token",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "sub",
				Usage: "subject claim",
			},
			&cli.StringSliceFlag{
				Name:  "claim",
				Usage: "extra claim as key=value, repeatable; numbers and booleans are typed",
			},
			&cli.IntFlag{
				Name:  "ttl",
				Usage: "lifetime in seconds, overrides expiration_delta",
			},
		},
		Action: signAction,
	}
}

func signAction(c *cli.Context) error {
	extra := map[string]any{"refresh_token_enabled": false}
	if c.IsSet("ttl") {
		extra["expiration_delta"] = c.Int("ttl")
	}

	opts, err := loadOptions(c, extra)
	if err != nil {
		return exitError(err)
	}

	custom, err := parseClaims(c.StringSlice("claim"))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	if sub := c.String("sub"); sub != "" {
		custom[auth.ClaimSubject] = sub
	}

	auther, err := auth.NewAuther(nil, opts)
	if err != nil {
		return exitError(err)
	}
	auther.WithLogger(newLogger(c)).WithPayloadExtender(auth.PayloadOnly(
		func(_ context.Context, claims auth.Claims) (auth.Claims, error) {
			for k, v := range custom {
				claims[k] = v
			}
			return claims, nil
		}))

	pair, err := auther.IssueForIdentity(background(c), auth.MapIdentity{})
	if err != nil {
		return exitError(err)
	}

	_, err = fmt.Fprintln(writer(c), pair.AccessToken)
	return err
}

func parseClaims(pairs []string) (auth.Claims, error) {
	claims := auth.Claims{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid claim %q, expected key=value", pair)
		}
		claims[key] = typedValue(value)
	}
	return claims, nil
}

func typedValue(v string) any {
	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return i
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return v
}

// VerifyCommand validates a token and prints its claims.
func VerifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "verify",
		Usage:     "Verify a token and print its claims",
		ArgsUsage: "[token|-]",
		Action: func(c *cli.Context) error {
			raw, err := tokenArg(c)
			if err != nil {
				return err
			}

			opts, err := loadOptions(c, nil)
			if err != nil {
				return exitError(err)
			}

			auther, err := auth.NewAuther(nil, opts)
			if err != nil {
				return exitError(err)
			}
			auther.WithLogger(newLogger(c))

			claims, err := auther.Verify(background(c), raw)
			if err != nil {
				return exitError(err)
			}
			return printJSON(c, claims)
		},
	}
}

// InspectCommand prints the header and claims without checking anything.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Print a token header and claims without verifying it",
		ArgsUsage: "[token|-]",
		Action: func(c *cli.Context) error {
			raw, err := tokenArg(c)
			if err != nil {
				return err
			}

			claims := jwt.MapClaims{}
			token, _, err := jwt.NewParser(jwt.WithJSONNumber()).ParseUnverified(raw, claims)
			if err != nil {
				return exitError(auth.WrapError(auth.KindMalformedToken, err, "token is malformed"))
			}

			return printJSON(c, map[string]any{
				"header": token.Header,
				"claims": auth.NormalizeClaims(claims),
			})
		},
	}
}
