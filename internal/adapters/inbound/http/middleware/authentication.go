package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"slices"
	"strings"

	"github.com/RG-Partners/soraai-chat/internal/config"
	"github.com/RG-Partners/soraai-chat/internal/domain/model"
	"github.com/RG-Partners/soraai-chat/pkg/logger"
	"github.com/golang-jwt/jwt/v5"
)

const (
	claimsKey   contextKey = "claims"
	identityKey contextKey = "identity"

	guestIdentityPrefix = "guest:"
)

var (
	errMissingAuthorization = errors.New("missing authorization header")
	errMalformedAuthHeader  = errors.New("invalid authorization header format")
	errUnknownIssuer        = errors.New("token issuer is not accepted")
	errMissingSubject       = errors.New("token has no subject")
)

// Authentication verifies HMAC signed bearer tokens and stores the caller
// identity in the request context. The settings are read on every request
// so a rotated secret applies without a restart. With authentication
// disabled every caller is identified by its address.
func Authentication(cfg *config.Auth, log logger.Logger) func(http.Handler) http.Handler {
	log = log.Component("authentication")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || slices.Contains(cfg.SkipPaths, r.URL.Path) {
				identity := model.Identity{UserID: guestIdentityPrefix + clientIP(r)}
				next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity, nil)))

				return
			}

			claims, err := parseBearer(r.Header.Get("Authorization"), cfg)
			if err != nil {
				reqLogger := log.WithContext(r.Context())
				reqLogger.Debug().Err(err).Str("path", r.URL.Path).Msg("rejected bearer token")

				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")

				return
			}

			identity := model.Identity{UserID: claims.Subject, Guest: claims.IsGuest()}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity, claims)))
		})
	}
}

func parseBearer(header string, cfg *config.Auth) (*model.Claims, error) {
	if header == "" {
		return nil, errMissingAuthorization
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return nil, errMalformedAuthHeader
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}

	if cfg.Audience != "" {
		options = append(options, jwt.WithAudience(cfg.Audience))
	}

	secret := []byte(cfg.SecretKey)
	claims := &model.Claims{}

	_, err := jwt.NewParser(options...).ParseWithClaims(strings.TrimSpace(token), claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	if len(cfg.ValidIssuers) > 0 && !slices.Contains(cfg.ValidIssuers, claims.Issuer) {
		return nil, errUnknownIssuer
	}

	if claims.Subject == "" {
		return nil, errMissingSubject
	}

	return claims, nil
}

func withIdentity(ctx context.Context, identity model.Identity, claims *model.Claims) context.Context {
	ctx = context.WithValue(ctx, identityKey, identity)
	ctx = logger.ContextWithUserID(ctx, identity.UserID)

	if claims != nil {
		ctx = context.WithValue(ctx, claimsKey, claims)
	}

	return ctx
}

// GetIdentity returns the caller stored by Authentication, or the zero
// identity for requests it did not see.
func GetIdentity(ctx context.Context) model.Identity {
	identity, _ := ctx.Value(identityKey).(model.Identity)

	return identity
}

func GetClaims(ctx context.Context) *model.Claims {
	claims, _ := ctx.Value(claimsKey).(*model.Claims)

	return claims
}

// WithIdentity is used by tests and internal callers that bypass token checks.
func WithIdentity(ctx context.Context, identity model.Identity) context.Context {
	return withIdentity(ctx, identity, nil)
}

// clientIP expects chi's RealIP middleware to have rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
