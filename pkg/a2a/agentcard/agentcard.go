package agentcard

import (
	"strings"

	"github.com/jllopis/a2apipe/pkg/a2a"
)

// Defaults applied by Build when the config leaves a field empty.
const (
	DefaultVersion = "1.0.0"
	DefaultRPCPath = "/a2a"
)

// DefaultSkillTags are attached to skills that declare no tags.
var DefaultSkillTags = []string{"sales", "marketing", "analytics"}

// Config describes AgentCard fields that can be derived from runtime settings.
type Config struct {
	Name        string
	Description string
	Version     string
	// BaseURL is the public scheme://host:port the agent is reachable at.
	BaseURL string
	// RPCPath is the path the JSON-RPC endpoint is bound to.
	RPCPath string
	Skills  []a2a.AgentSkill
}

// Build assembles an AgentCard from the provided config. The card URL is the
// public base URL joined with the RPC path, so it always names the bound endpoint.
func Build(cfg Config) *a2a.AgentCard {
	version := cfg.Version
	if version == "" {
		version = DefaultVersion
	}
	skills := make([]a2a.AgentSkill, 0, len(cfg.Skills))
	for _, skill := range cfg.Skills {
		if len(skill.Tags) == 0 {
			skill.Tags = append([]string(nil), DefaultSkillTags...)
		}
		skills = append(skills, skill)
	}

	return &a2a.AgentCard{
		Name:               cfg.Name,
		Description:        cfg.Description,
		Version:            version,
		URL:                EndpointURL(cfg.BaseURL, cfg.RPCPath),
		PreferredTransport: a2a.TransportJSONRPC,
		DefaultInputModes:  []string{"text/plain"},
		DefaultOutputModes: []string{"text/plain", "application/json"},
		Capabilities: a2a.AgentCapabilities{
			Streaming:         false,
			PushNotifications: false,
		},
		Skills:                            skills,
		SupportsAuthenticatedExtendedCard: false,
	}
}

// EndpointURL joins a base URL and an RPC path.
func EndpointURL(baseURL, rpcPath string) string {
	return strings.TrimRight(baseURL, "/") + NormalizePath(rpcPath)
}

// NormalizePath returns rpcPath with a single leading slash, or the default path.
func NormalizePath(rpcPath string) string {
	rpcPath = strings.TrimSpace(rpcPath)
	if rpcPath == "" || rpcPath == "/" {
		return DefaultRPCPath
	}
	return "/" + strings.TrimLeft(rpcPath, "/")
}
