package pix

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTOwner extrai a identidade do owner de um bearer token HS256 (claim "sub").
//
// O núcleo nunca autentica ninguém: ele só recebe um owner opaco. Quem emite
// o token é o serviço de sessão; Sign existe para desenvolvimento e testes.
type JWTOwner struct {
	secret []byte
}

func NewJWTOwner(secret string) (*JWTOwner, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &JWTOwner{secret: []byte(secret)}, nil
}

// Owner valida o token e devolve o subject.
func (a *JWTOwner) Owner(tokenStr string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("token validation failed: %w", err)
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return "", errors.New("token has no subject")
	}
	return sub, nil
}

// Sign emite um token para o owner. ttl <= 0 emite sem expiração.
func (a *JWTOwner) Sign(owner string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:  owner,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

type ownerKey struct{}

// OwnerFrom devolve o owner colocado no contexto por RequireOwner.
func OwnerFrom(ctx context.Context) (string, bool) {
	owner, ok := ctx.Value(ownerKey{}).(string)
	return owner, ok && owner != ""
}

func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

// OwnerResolver é o contrato do colaborador de autenticação.
type OwnerResolver interface {
	Owner(token string) (string, error)
}

// RequireOwner responde 401 quando não há bearer token válido.
// Com resolver nil todas as requisições são rejeitadas (fail closed).
func RequireOwner(resolver OwnerResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" || resolver == nil {
				writeError(w, http.StatusUnauthorized, "Unauthenticated.")
				return
			}
			owner, err := resolver.Owner(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Unauthenticated.")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), owner)))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}
