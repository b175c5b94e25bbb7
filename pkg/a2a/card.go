package a2a

// TransportJSONRPC is the only transport the agents publish.
const TransportJSONRPC = "JSONRPC"

// AgentCapabilities declares the optional protocol features an agent supports.
type AgentCapabilities struct {
	Streaming         bool `json:"streaming"`
	PushNotifications bool `json:"pushNotifications"`
}

// AgentSkill describes one capability offered by an agent.
type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
}

// AgentCard is the static descriptor published at the well-known path.
type AgentCard struct {
	Name                              string            `json:"name"`
	Description                       string            `json:"description"`
	Version                           string            `json:"version"`
	URL                               string            `json:"url"`
	PreferredTransport                string            `json:"preferredTransport"`
	DefaultInputModes                 []string          `json:"defaultInputModes"`
	DefaultOutputModes                []string          `json:"defaultOutputModes"`
	Capabilities                      AgentCapabilities `json:"capabilities"`
	Skills                            []AgentSkill      `json:"skills"`
	SupportsAuthenticatedExtendedCard bool              `json:"supportsAuthenticatedExtendedCard"`
}
