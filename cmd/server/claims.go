package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"

	"github.com/lychee-technology/foundry"
)

// extractClaims reads the bearer token from the request. With a
// configured secret the signature is verified; without one the token is
// decoded unverified, for deployments where a gateway already checked
// it. Anonymous requests yield nil claims.
func (s *Server) extractClaims(r *http.Request) (*foundry.Claims, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, nil
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, fmt.Errorf("authorization header is not a bearer token")
	}

	mapClaims := jwt.MapClaims{}
	if len(s.jwtSecret) > 0 {
		parsed, err := jwt.ParseWithClaims(token, mapClaims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return s.jwtSecret, nil
		})
		if err != nil {
			return nil, fmt.Errorf("invalid token: %w", err)
		}
		if !parsed.Valid {
			return nil, fmt.Errorf("invalid token")
		}
	} else {
		if _, _, err := jwt.NewParser().ParseUnverified(token, mapClaims); err != nil {
			return nil, fmt.Errorf("malformed token: %w", err)
		}
	}

	return claimsFromMap(mapClaims), nil
}

func claimsFromMap(mapClaims jwt.MapClaims) *foundry.Claims {
	claims := &foundry.Claims{Extra: make(map[string]any)}
	for key, value := range mapClaims {
		switch key {
		case "sub":
			if s, ok := value.(string); ok {
				claims.Subject = s
			}
		case "scope":
			if s, ok := value.(string); ok {
				claims.Scope = s
			}
		case "roles":
			claims.Roles = stringList(value)
		default:
			claims.Extra[key] = value
		}
	}
	return claims
}

// stringList accepts both JSON arrays and space-separated strings
func stringList(value any) []string {
	switch v := value.(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return v
	case string:
		return strings.Fields(v)
	}
	return nil
}
