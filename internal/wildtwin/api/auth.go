package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/wildwatch/apicheck/internal/wildtwin/store"
	"github.com/wildwatch/apicheck/pkg/twincore"
	"golang.org/x/crypto/bcrypt"
)

// Token subject types.
const (
	TokenUser   = "user"
	TokenDevice = "device"
)

// TokenLifetime is how long issued tokens stay valid, in simulated time.
const TokenLifetime = 7 * 24 * time.Hour

// Claims are the JWT claims issued by the API.
type Claims struct {
	Type string `json:"_type"`
	ID   int    `json:"id"`
	jwt.RegisteredClaims
}

// Auth issues and verifies HS256 tokens against the simulated clock.
type Auth struct {
	secret []byte
	now    func() time.Time
}

// NewAuth creates an Auth. An empty secret generates a random one.
func NewAuth(secret string, now func() time.Time) (*Auth, error) {
	key := []byte(secret)
	if len(key) == 0 {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("generating jwt secret: %w", err)
		}
		key = []byte(hex.EncodeToString(buf))
	}
	if now == nil {
		now = time.Now
	}
	return &Auth{secret: key, now: now}, nil
}

// Issue signs a token for the given subject.
func (a *Auth) Issue(typ string, id int) (string, error) {
	now := a.now()
	claims := Claims{
		Type: typ,
		ID:   id,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenLifetime)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token.
func (a *Auth) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if claims.Type != TokenUser && claims.Type != TokenDevice {
		return nil, fmt.Errorf("unknown token type %q", claims.Type)
	}
	return claims, nil
}

// hashPassword hashes a user or device password.
func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// principal is the authenticated caller.
type principal struct {
	user   *store.User
	device *store.Device
}

type principalKey struct{}

func principalFrom(r *http.Request) principal {
	p, ok := r.Context().Value(principalKey{}).(principal)
	if !ok {
		panic("principal not found in context - authenticate middleware not applied")
	}
	return p
}

var errNoToken = errors.New("no authorization token provided")

// bearer extracts the token from "Authorization: Bearer <t>" or "JWT <t>".
func bearer(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errNoToken
	}
	for _, scheme := range []string{"Bearer ", "JWT "} {
		if tok, ok := strings.CutPrefix(header, scheme); ok && tok != "" {
			return tok, nil
		}
	}
	return "", errors.New("authorization header must use the Bearer scheme")
}

// authenticate resolves the caller from its token. With usersOnly, device
// tokens are rejected.
func (h *Handler) authenticate(usersOnly bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, err := bearer(r)
			if err != nil {
				twincore.Error(w, http.StatusUnauthorized, err.Error())
				return
			}
			claims, err := h.auth.Verify(tok)
			if err != nil {
				twincore.Error(w, http.StatusUnauthorized, "invalid token: "+err.Error())
				return
			}

			var p principal
			switch claims.Type {
			case TokenUser:
				u, ok := h.store.Users.Get(claims.ID)
				if !ok {
					twincore.Error(w, http.StatusUnauthorized, "token user no longer exists")
					return
				}
				p.user = &u
			case TokenDevice:
				if usersOnly {
					twincore.Error(w, http.StatusForbidden, "this endpoint requires a user token")
					return
				}
				d, ok := h.store.Devices.Get(claims.ID)
				if !ok {
					twincore.Error(w, http.StatusUnauthorized, "token device no longer exists")
					return
				}
				p.device = &d
			}
			ctx := context.WithValue(r.Context(), principalKey{}, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
