package auth

import "context"

// PayloadExtender may add, overwrite or delete any claim before a token is
// signed, registered claims included. Deleting a required claim is accepted
// here and reported as MissingRegisteredClaim by validation.
type PayloadExtender interface {
	ExtendPayload(ctx context.Context, claims Claims, identity Identity) (Claims, error)
}

// PayloadOnlyFunc extends the payload without looking at the identity.
type PayloadOnlyFunc func(ctx context.Context, claims Claims) (Claims, error)

// PayloadAndIdentityFunc extends the payload using the authenticated identity.
type PayloadAndIdentityFunc func(ctx context.Context, claims Claims, identity Identity) (Claims, error)

type extenderShape int

const (
	shapePayloadOnly extenderShape = iota + 1
	shapePayloadAndIdentity
)

// ExtenderStrategy is a PayloadExtender whose call shape is fixed when it is
// built, with PayloadOnly or PayloadAndIdentity.
type ExtenderStrategy struct {
	shape              extenderShape
	payloadOnly        PayloadOnlyFunc
	payloadAndIdentity PayloadAndIdentityFunc
}

// PayloadOnly wraps an extender that only needs the claims.
func PayloadOnly(fn PayloadOnlyFunc) ExtenderStrategy {
	return ExtenderStrategy{shape: shapePayloadOnly, payloadOnly: fn}
}

// PayloadAndIdentity wraps an extender that also receives the identity.
func PayloadAndIdentity(fn PayloadAndIdentityFunc) ExtenderStrategy {
	return ExtenderStrategy{shape: shapePayloadAndIdentity, payloadAndIdentity: fn}
}

// ExtendPayload satisfies the PayloadExtender interface.
func (s ExtenderStrategy) ExtendPayload(ctx context.Context, claims Claims, identity Identity) (Claims, error) {
	switch s.shape {
	case shapePayloadOnly:
		if s.payloadOnly == nil {
			return claims, nil
		}
		return s.payloadOnly(ctx, claims)
	case shapePayloadAndIdentity:
		if s.payloadAndIdentity == nil {
			return claims, nil
		}
		return s.payloadAndIdentity(ctx, claims, identity)
	default:
		return claims, nil
	}
}

type noopPayloadExtender struct{}

func (noopPayloadExtender) ExtendPayload(_ context.Context, claims Claims, _ Identity) (Claims, error) {
	return claims, nil
}

func normalizePayloadExtender(e PayloadExtender) PayloadExtender {
	if e == nil {
		return noopPayloadExtender{}
	}
	return e
}

// ChainExtenders runs extenders in order, feeding each the previous result.
func ChainExtenders(extenders ...PayloadExtender) PayloadExtender {
	return extenderChain(extenders)
}

type extenderChain []PayloadExtender

func (c extenderChain) ExtendPayload(ctx context.Context, claims Claims, identity Identity) (Claims, error) {
	for _, e := range c {
		if e == nil {
			continue
		}
		next, err := e.ExtendPayload(ctx, claims, identity)
		if err != nil {
			return nil, err
		}
		if next != nil {
			claims = next
		}
	}
	return claims, nil
}
