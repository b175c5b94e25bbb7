package jsonrpc

import (
	"net/http"

	"github.com/jllopis/a2apipe/pkg/a2a"
	"github.com/jllopis/a2apipe/pkg/a2a/agentcard"
)

// MuxConfig describes the routes of one agent process.
type MuxConfig struct {
	// RPCPath is where the JSON-RPC endpoint is bound. Empty means /a2a.
	RPCPath string
	// Card is published at the well-known discovery path.
	Card *a2a.AgentCard
	// Metrics, when set, is served at /metrics.
	Metrics http.Handler
}

// NewAgentMux binds the RPC endpoint, the card, a health probe and
// optionally the metrics endpoint.
func NewAgentMux(rpc *Server, cfg MuxConfig) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(agentcard.NormalizePath(cfg.RPCPath), rpc)
	mux.Handle(agentcard.WellKnownPath, agentcard.PublishHandler(cfg.Card))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if cfg.Metrics != nil {
		mux.Handle("/metrics", cfg.Metrics)
	}
	return mux
}
