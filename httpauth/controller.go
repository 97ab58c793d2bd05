package httpauth

import (
	"encoding/json"
	"strings"

	"github.com/goliatone/go-router"

	auth "github.com/goliatone/go-jwtauth"
	"github.com/goliatone/go-jwtauth/middleware/jwtware"
)

// Routes holds the paths, relative to the router the controller is
// registered on.
type Routes struct {
	Authenticate string
	Verify       string
	Refresh      string
	Logout       string
	Me           string
}

// Controller exposes an Auther over HTTP.
type Controller struct {
	Auther *auth.Auther
	// Validator checks access tokens on protected routes and on verify.
	// Defaults to Auther.
	Validator    auth.TokenValidator
	Logger       auth.Logger
	Routes       *Routes
	TokenLookup  string
	AuthScheme   string
	ContextKey   string
	ErrorHandler router.ErrorHandler
}

type ControllerOption func(*Controller) *Controller

// WithLogger sets the controller logger.
func WithLogger(logger auth.Logger) ControllerOption {
	return func(c *Controller) *Controller {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// WithRoutes overrides the default route paths. Empty fields keep their
// default value.
func WithRoutes(routes Routes) ControllerOption {
	return func(c *Controller) *Controller {
		if routes.Authenticate != "" {
			c.Routes.Authenticate = routes.Authenticate
		}
		if routes.Verify != "" {
			c.Routes.Verify = routes.Verify
		}
		if routes.Refresh != "" {
			c.Routes.Refresh = routes.Refresh
		}
		if routes.Logout != "" {
			c.Routes.Logout = routes.Logout
		}
		if routes.Me != "" {
			c.Routes.Me = routes.Me
		}
		return c
	}
}

// WithTokenLookup sets where protected routes look for the access token,
// e.g. "header:Authorization,cookie:access_token".
func WithTokenLookup(lookup string) ControllerOption {
	return func(c *Controller) *Controller {
		if lookup != "" {
			c.TokenLookup = lookup
		}
		return c
	}
}

// WithTokenValidator replaces the validator used by protected routes and
// verify, for example with an auth.MultiTokenValidator accepting tokens of
// an external issuer next to the local ones.
func WithTokenValidator(validator auth.TokenValidator) ControllerOption {
	return func(c *Controller) *Controller {
		if validator != nil {
			c.Validator = validator
		}
		return c
	}
}

// WithErrorHandler replaces the JSON error writer.
func WithErrorHandler(handler router.ErrorHandler) ControllerOption {
	return func(c *Controller) *Controller {
		if handler != nil {
			c.ErrorHandler = handler
		}
		return c
	}
}

// NewController returns a controller serving auther.
func NewController(auther *auth.Auther, opts ...ControllerOption) *Controller {
	if auther == nil {
		panic("Missing Auther in auth controller...")
	}

	c := &Controller{
		Auther:       auther,
		Validator:    auther,
		Logger:       auth.NoopLogger(),
		ErrorHandler: WriteError,
		AuthScheme:   "Bearer",
		ContextKey:   "user",
		Routes: &Routes{
			Authenticate: "/",
			Verify:       "/verify",
			Refresh:      "/refresh",
			Logout:       "/logout",
			Me:           "/me",
		},
	}

	c.TokenLookup = "header:" + router.HeaderAuthorization +
		",cookie:" + auther.Config().GetAccessTokenName() +
		",query:" + auther.Config().GetAccessTokenName()

	for _, opt := range opts {
		c = opt(c)
	}

	return c
}

// Register mounts the controller routes on app. Refresh and logout are only
// mounted when refresh tokens are enabled.
func Register[T any](app router.Router[T], controller *Controller) {
	app.Post(controller.Routes.Authenticate, controller.Authenticate).SetName("auth.post")
	app.Get(controller.Routes.Verify, controller.Verify).SetName("auth.verify")
	app.Get(controller.Routes.Me, controller.Me, controller.Protected()).SetName("auth.me")

	if controller.Auther.Config().GetRefreshTokenEnabled() {
		app.Post(controller.Routes.Refresh, controller.Refresh).SetName("auth.refresh")
		app.Post(controller.Routes.Logout, controller.Logout).SetName("auth.logout")
	}
}

// Protected returns middleware rejecting requests without a valid access
// token. The claims are stored in locals and in the request context.
func (a *Controller) Protected() router.MiddlewareFunc {
	return jwtware.New(jwtware.Config{
		TokenValidator: a.Validator,
		TokenLookup:    a.TokenLookup,
		AuthScheme:     a.AuthScheme,
		ContextKey:     a.ContextKey,
		ErrorHandler:   a.ErrorHandler,
	})
}

// Authenticate handles POST requests carrying credentials.
func (a *Controller) Authenticate(ctx router.Context) error {
	creds, err := readCredentials(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	pair, err := a.Auther.Issue(ctx.Context(), creds)
	if err != nil {
		a.Logger.Info("authenticate request failed", "kind", auth.KindOf(err), "ip", ctx.IP())
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, pair)
}

// Verify reports whether the presented access token is valid.
func (a *Controller) Verify(ctx router.Context) error {
	raw, err := jwtware.ExtractRawTokenFromContext(ctx, jwtware.GetExtractors(a.TokenLookup, a.AuthScheme))
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if _, err := a.Validator.Validate(ctx.Context(), raw); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{"valid": true})
}

// Refresh exchanges the refresh token in the body for a new access token.
func (a *Controller) Refresh(ctx router.Context) error {
	raw, err := a.refreshToken(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	pair, err := a.Auther.Refresh(ctx.Context(), raw)
	if err != nil {
		a.Logger.Info("refresh request failed", "kind", auth.KindOf(err), "ip", ctx.IP())
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, pair)
}

// Logout revokes the refresh token in the body.
func (a *Controller) Logout(ctx router.Context) error {
	raw, err := a.refreshToken(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := a.Auther.Revoke(ctx.Context(), raw); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{"revoked": true})
}

// Me returns the claims of the current access token.
func (a *Controller) Me(ctx router.Context) error {
	claims, ok := jwtware.ClaimsFromLocals(ctx, a.ContextKey)
	if !ok {
		return a.ErrorHandler(ctx, auth.AuthenticationFailed("no claims on request"))
	}
	return ctx.JSON(router.StatusOK, map[string]any{"me": claims})
}

func (a *Controller) refreshToken(ctx router.Context) (string, error) {
	creds, err := readCredentials(ctx)
	if err != nil {
		return "", err
	}
	name := a.Auther.Config().GetRefreshTokenName()
	raw := creds.String(name)
	if raw == "" {
		return "", auth.NewError(auth.KindInvalidCredentialsPayload, "missing "+name)
	}
	return raw, nil
}

// readCredentials decodes a JSON object body. An empty body yields empty
// credentials so the authenticator reports the missing fields.
func readCredentials(ctx router.Context) (auth.Credentials, error) {
	body := ctx.Body()
	creds := auth.Credentials{}
	if len(strings.TrimSpace(string(body))) == 0 {
		return creds, nil
	}
	if err := json.Unmarshal(body, &creds); err != nil {
		return nil, auth.WrapError(auth.KindInvalidCredentialsPayload, err, "request body must be a JSON object")
	}
	return creds, nil
}
