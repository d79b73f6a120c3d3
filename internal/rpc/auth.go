package rpc

import (
	"encoding/base64"
	"maps"
	"net/http"
	"strings"

	"github.com/fystack/contract-bridge/pkg/common/config"
)

// AuthConfig holds authentication configuration
type AuthConfig struct {
	Type     string            `json:"type"` // "bearer", "api_key", "basic", "custom"
	Token    string            `json:"token"`
	Username string            `json:"username"`
	Password string            `json:"password"`
	Headers  map[string]string `json:"headers"`
}

// NodeToAuthConfig derives request authentication from a finalized node.
// Explicit headers win over an api key; nodes with neither get nil.
func NodeToAuthConfig(node config.Node) *AuthConfig {
	if len(node.Headers) > 0 {
		auth := &AuthConfig{Type: "custom", Headers: make(map[string]string, len(node.Headers))}
		maps.Copy(auth.Headers, node.Headers)
		return auth
	}

	// A key already spliced into the URL needs no header.
	if node.ApiKey != "" && !strings.Contains(node.URL, node.ApiKey) {
		token := node.ApiKey
		if strings.HasPrefix(strings.ToLower(token), "bearer ") {
			token = token[len("bearer "):]
		}
		return &AuthConfig{Type: "bearer", Token: token}
	}
	return nil
}

// Apply writes the auth headers into h.
func (a *AuthConfig) Apply(h http.Header) {
	if a == nil {
		return
	}
	switch a.Type {
	case "bearer":
		h.Set("Authorization", "Bearer "+a.Token)
	case "api_key":
		h.Set("X-API-Key", a.Token)
	case "basic":
		cred := base64.StdEncoding.EncodeToString([]byte(a.Username + ":" + a.Password))
		h.Set("Authorization", "Basic "+cred)
	case "custom":
		for k, v := range a.Headers {
			h.Set(k, v)
		}
	}
}
