package pipeline

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jllopis/a2apipe/pkg/a2a"
	"github.com/jllopis/a2apipe/pkg/agents"
)

// DefaultOutputDir is where charts land when Config.OutputDir is empty.
const DefaultOutputDir = "artifacts"

// ProgressFunc is called synchronously after each stage with its reply.
// A non-nil error aborts the run.
type ProgressFunc func(stage agents.Role, resp *a2a.Message) error

// Config tunes one pipeline run.
type Config struct {
	// Endpoints are agent base URLs per role. Missing roles use
	// http://localhost:<default port>.
	Endpoints map[agents.Role]string
	// Models override the per-role default model.
	Models    map[agents.Role]string
	OutputDir string
	Progress  ProgressFunc
}

// DefaultEndpoints returns the local base URL of every role.
func DefaultEndpoints() map[agents.Role]string {
	out := make(map[agents.Role]string, len(agents.Roles))
	for _, role := range agents.Roles {
		out[role] = fmt.Sprintf("http://localhost:%d", role.DefaultPort())
	}
	return out
}

// NormalizeEndpoint keeps only scheme, host and port. The RPC path always
// comes from the remote card. Values that do not parse as absolute URLs are
// returned unchanged.
func NormalizeEndpoint(raw string) string {
	trimmed := strings.TrimSpace(raw)
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return trimmed
	}
	return (&url.URL{Scheme: parsed.Scheme, Host: parsed.Host}).String()
}

func (c Config) endpoints() map[agents.Role]string {
	out := DefaultEndpoints()
	for role, endpoint := range c.Endpoints {
		if strings.TrimSpace(endpoint) != "" {
			out[role] = endpoint
		}
	}
	for role, endpoint := range out {
		out[role] = NormalizeEndpoint(endpoint)
	}
	return out
}

func (c Config) models() map[agents.Role]string {
	out := make(map[agents.Role]string, len(agents.Roles))
	for _, role := range agents.Roles {
		out[role] = role.DefaultModel()
	}
	for role, model := range c.Models {
		if strings.TrimSpace(model) != "" {
			out[role] = model
		}
	}
	return out
}

func (c Config) outputDir() string {
	if strings.TrimSpace(c.OutputDir) == "" {
		return DefaultOutputDir
	}
	return c.OutputDir
}
