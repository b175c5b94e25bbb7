// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package agents implements the three pipeline roles: Reader, Analyst and
// Visualizer. Each role is a server.MessageHandler bound through a registry
// built once at startup.
package agents

import (
	"fmt"
	"strings"

	"github.com/jllopis/a2apipe/pkg/a2a"
	"github.com/jllopis/a2apipe/pkg/a2a/agentcard"
)

// Role names one pipeline stage.
type Role string

const (
	RoleReader     Role = "reader"
	RoleAnalyst    Role = "analyst"
	RoleVisualizer Role = "visualizer"
)

// Roles lists the stages in pipeline order.
var Roles = []Role{RoleReader, RoleAnalyst, RoleVisualizer}

// ParseRole resolves a role name, ignoring case and surrounding space.
func ParseRole(value string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range Roles {
		if role == known {
			return role, nil
		}
	}
	return "", fmt.Errorf("unknown agent role %q (expected reader, analyst or visualizer)", value)
}

func (r Role) String() string { return string(r) }

// Profile is the static identity a role publishes on its card.
type Profile struct {
	Name             string
	Description      string
	SkillID          string
	SkillName        string
	SkillDescription string
	DefaultPort      int
	DefaultModel     string
}

var profiles = map[Role]Profile{
	RoleReader: {
		Name:             "Sales Reader",
		Description:      "Reads sales datasets and produces structured summaries.",
		SkillID:          "sales_csv_ingest",
		SkillName:        "Sales Document Ingestion",
		SkillDescription: "Summarizes sales and marketing CSV content for downstream agents.",
		DefaultPort:      8001,
		DefaultModel:     "gpt-4o-mini",
	},
	RoleAnalyst: {
		Name:             "Revenue Analyst",
		Description:      "Transforms reader output into strategic recommendations.",
		SkillID:          "sales_revops_analysis",
		SkillName:        "Revenue Analysis",
		SkillDescription: "Produces markdown briefings and structured analytics for leadership decisions.",
		DefaultPort:      8002,
		DefaultModel:     "gpt-4o-mini",
	},
	RoleVisualizer: {
		Name:             "Sales Visualizer",
		Description:      "Generates charts and fine analytics from analyst output.",
		SkillID:          "sales_visual_story",
		SkillName:        "Visualization & Fine Analytics",
		SkillDescription: "Creates charts and executive-ready visual narratives.",
		DefaultPort:      8003,
		DefaultModel:     "gpt-4o",
	},
}

// Profile returns the role's static identity.
func (r Role) Profile() Profile {
	return profiles[r]
}

// DefaultPort is the port the role listens on when none is given.
func (r Role) DefaultPort() int { return profiles[r].DefaultPort }

// DefaultModel is the model the role uses when the request names none.
func (r Role) DefaultModel() string { return profiles[r].DefaultModel }

// Card builds the role's capability card for the given public base URL.
func (r Role) Card(baseURL, rpcPath string) *a2a.AgentCard {
	p := r.Profile()
	return agentcard.Build(agentcard.Config{
		Name:        p.Name,
		Description: p.Description,
		BaseURL:     baseURL,
		RPCPath:     rpcPath,
		Skills: []a2a.AgentSkill{{
			ID:          p.SkillID,
			Name:        p.SkillName,
			Description: p.SkillDescription,
		}},
	})
}
