package httpauth

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"

	auth "github.com/goliatone/go-jwtauth"
	"github.com/goliatone/go-jwtauth/middleware/jwtware"
)

// ErrorResponse is the JSON body written for failed requests.
type ErrorResponse struct {
	Exception string `json:"exception"`
	Reasons   string `json:"reasons"`
}

// WriteError maps err to its status code and writes an ErrorResponse.
// Internal and external failures hide their cause behind the kind name.
func WriteError(ctx router.Context, err error) error {
	richErr := toError(err)
	kind := auth.Kind(richErr.TextCode)

	reasons := richErr.Message
	switch richErr.Category {
	case goerrors.CategoryAuth, goerrors.CategoryBadInput, goerrors.CategoryNotFound, goerrors.CategoryOperation:
	default:
		if kind != auth.KindMissingRegisteredClaim {
			reasons = string(kind)
		}
	}

	return ctx.JSON(auth.StatusOf(richErr), ErrorResponse{
		Exception: string(kind),
		Reasons:   reasons,
	})
}

func toError(err error) *auth.Error {
	if errors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
		return auth.WrapError(auth.KindMalformedToken, err, err.Error())
	}

	return auth.AsError(err)
}
