package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/jllopis/a2apipe/pkg/a2a"
	"github.com/jllopis/a2apipe/pkg/a2a/agentcard"
	"github.com/jllopis/a2apipe/pkg/a2a/client"
	"github.com/jllopis/a2apipe/pkg/errors"
	"github.com/jllopis/a2apipe/pkg/pipeline"
)

// CardCmd prints the card published by a running agent.
type CardCmd struct {
	URL    string `required:"" help:"Agent base URL, e.g. http://localhost:8001."`
	Format string `help:"Output format (json, yaml)." enum:"json,yaml" default:"json"`
}

func (c *CardCmd) Run(g *Globals) error {
	ctx, cancel := context.WithTimeout(g.Ctx, client.DefaultTimeouts.Request)
	defer cancel()
	card, err := agentcard.Fetch(ctx, http.DefaultClient, pipeline.NormalizeEndpoint(c.URL))
	if err != nil {
		return errors.Connectivity(c.URL, err)
	}
	return renderValue(c.Format, card)
}

// ProbeCmd sends a single text message to an agent.
type ProbeCmd struct {
	URL    string            `required:"" help:"Agent base URL."`
	Text   string            `help:"Message text." default:"ping"`
	Data   map[string]string `help:"Data part entries, e.g. --data csv_text=...,model=gpt-4o-mini." mapsep:","`
	Format string            `help:"Output format (json, yaml)." enum:"json,yaml" default:"json"`
}

func (c *ProbeCmd) Run(g *Globals) error {
	var data map[string]any
	if len(c.Data) > 0 {
		data = make(map[string]any, len(c.Data))
		for key, value := range c.Data {
			data[key] = value
		}
	}
	msg, err := a2a.NewMessage(a2a.RoleUser, c.Text, data)
	if err != nil {
		return errors.New(errors.CodeBadRequest, "probe message cannot be encoded", err)
	}
	connector := client.New(client.WithLogger(g.Logger))
	reply, card, err := connector.Send(g.Ctx, pipeline.NormalizeEndpoint(c.URL), msg)
	if err != nil {
		return err
	}
	agent := ""
	if card != nil {
		agent = card.Name
	}
	return renderValue(c.Format, map[string]any{
		"agent": agent,
		"text":  reply.Text(),
		"data":  reply.Data(),
	})
}

func renderValue(format string, value any) error {
	if format == "yaml" {
		return renderYAML(os.Stdout, value)
	}
	out, err := jsonIndent(value)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}
