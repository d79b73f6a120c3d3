package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

type Node struct {
	URL       string            `yaml:"url"  validate:"required,url"`
	Type      string            `yaml:"type" validate:"omitempty,oneof=http ws"`
	ApiKey    string            `yaml:"api_key"`
	ApiKeyEnv string            `yaml:"api_key_env"`
	Headers   map[string]string `yaml:"headers,omitempty"`
	Query     map[string]string `yaml:"query,omitempty"`
	Timeout   time.Duration     `yaml:"timeout"`
	Throttle  Throttle          `yaml:"throttle"`
}

// finalize fills the api key, substitutes ${VAR} placeholders and infers the
// transport from the URL scheme.
func (n *Node) finalize(name string) error {
	if n.Headers == nil {
		n.Headers = map[string]string{}
	}

	key := n.ApiKey
	if key == "" && n.ApiKeyEnv != "" {
		key = os.Getenv(n.ApiKeyEnv)
	}
	n.ApiKey = key

	n.URL = substituteEnvVars(substituteKey(n.URL, key))
	for k, v := range n.Headers {
		n.Headers[k] = substituteEnvVars(substituteKey(v, key))
	}

	u, err := url.Parse(n.URL)
	if err != nil || u.Scheme == "" {
		return fmt.Errorf("%s: invalid node url: %q", name, n.URL)
	}
	if n.Type == "" {
		n.Type = InferTransport(n.URL)
	}

	if len(n.Query) > 0 {
		q := u.Query()
		for k, v := range n.Query {
			q.Set(k, substituteEnvVars(substituteKey(v, key)))
		}
		u.RawQuery = q.Encode()
		n.URL = u.String()
	}
	return nil
}

// InferTransport maps ws:// and wss:// to "ws" and everything else to "http".
func InferTransport(rawURL string) string {
	switch {
	case strings.HasPrefix(rawURL, "ws://"), strings.HasPrefix(rawURL, "wss://"):
		return "ws"
	default:
		return "http"
	}
}

func substituteKey(s, key string) string {
	if s == "" || key == "" {
		return s
	}
	return strings.ReplaceAll(s, "${API_KEY}", key)
}

func substituteEnvVars(s string) string {
	for {
		start := strings.Index(s, "${")
		if start == -1 {
			return s
		}
		end := strings.Index(s[start:], "}")
		if end == -1 {
			return s
		}
		end += start
		name := s[start+2 : end]
		s = strings.ReplaceAll(s, "${"+name+"}", os.Getenv(name))
	}
}
