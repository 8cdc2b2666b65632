package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/fieldlabs/profile-service/internal/platform/log"
	"github.com/fieldlabs/profile-service/pkg/respond"
)

type OIDCConfig struct {
	Issuer        string
	Audiences     []string
	RequiredScope string
	Logger        *log.Logger
}

// OIDC gates write routes behind bearer tokens. A token is accepted when any
// configured audience verifies it and, if RequiredScope is set, the scope is
// present in the claims.
type OIDC struct {
	verifiers     []*oidc.IDTokenVerifier
	requiredScope string
	log           *log.Logger
}

func NewOIDC(ctx context.Context, cfg OIDCConfig) (*OIDC, error) {
	if cfg.Issuer == "" || len(cfg.Audiences) == 0 {
		return nil, errors.New("missing issuer/audience")
	}
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, err
	}
	var verifiers []*oidc.IDTokenVerifier
	for _, aud := range cfg.Audiences {
		verifiers = append(verifiers, provider.Verifier(&oidc.Config{ClientID: aud}))
	}

	return &OIDC{verifiers: verifiers, requiredScope: cfg.RequiredScope, log: cfg.Logger}, nil
}

func (m *OIDC) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearer(r.Header.Get("Authorization"))
		if raw == "" {
			respond.Error(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		ok := false
		claims := map[string]any{}
		for _, v := range m.verifiers {
			idt, err := v.Verify(r.Context(), raw)
			if err != nil {
				continue
			}
			if err := idt.Claims(&claims); err != nil {
				m.log.Warn("failed to parse claims", log.Err(err))
				respond.Error(w, http.StatusUnauthorized, "invalid token")
				return
			}
			ok = true
			break
		}
		if !ok {
			respond.Error(w, http.StatusUnauthorized, "invalid token")
			return
		}
		if m.requiredScope != "" && !hasScope(claims, m.requiredScope) {
			respond.Error(w, http.StatusForbidden, "insufficient scope")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearer(h string) string {
	if !strings.HasPrefix(strings.ToLower(h), "bearer ") {
		return ""
	}

	return strings.TrimSpace(h[7:])
}

// hasScope accepts both the space-separated "scope" claim and the "scp"
// array some providers emit.
func hasScope(claims map[string]any, want string) bool {
	if v, ok := claims["scope"].(string); ok {
		for _, s := range strings.Split(v, " ") {
			if s == want {
				return true
			}
		}
	}
	if arr, ok := claims["scp"].([]any); ok {
		for _, s := range arr {
			if str, ok := s.(string); ok && str == want {
				return true
			}
		}
	}

	return false
}
