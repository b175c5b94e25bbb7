package agents

import (
	"fmt"
	"strings"

	"github.com/jllopis/a2apipe/pkg/a2a"
	"github.com/jllopis/a2apipe/pkg/dataset"
	"github.com/jllopis/a2apipe/pkg/errors"
)

// payload is the structured part of an incoming envelope. A message without a
// data part reads as an empty mapping.
type payload struct {
	part a2a.Part
	data map[string]any
}

func payloadOf(msg *a2a.Message) payload {
	part, ok := msg.DataPart()
	if !ok || part.Data == nil {
		return payload{part: a2a.Part{Type: a2a.PartTypeData}, data: map[string]any{}}
	}
	return payload{part: part, data: part.Data}
}

// has reports whether key is present and not null.
func (p payload) has(key string) bool {
	value, ok := p.data[key]
	return ok && value != nil
}

func (p payload) str(key string) string {
	value, _ := p.data[key].(string)
	return value
}

// model returns the requested model override, or fallback.
func (p payload) model(fallback string) string {
	if model := strings.TrimSpace(p.str("model")); model != "" {
		return model
	}
	return fallback
}

// recordList checks that records, when present, is a list and reports its length.
func (p payload) recordList(agent string) (int, error) {
	if !p.has("records") {
		return 0, nil
	}
	list, ok := p.data["records"].([]any)
	if !ok {
		return 0, errors.BadRequest(fmt.Sprintf("%s agent expected 'records' to be a list of dictionaries.", agent)).
			WithContext("key", "records")
	}
	return len(list), nil
}

// records decodes the records list into a table, keeping field order as sent.
func (p payload) records() (*dataset.Table, error) {
	raw, ok := p.part.Field("records")
	if !ok {
		return nil, errors.BadRequest("records are required", "records")
	}
	table, err := dataset.FromRecordsJSON(raw)
	if err != nil {
		return nil, errors.BadRequest(err.Error()).WithContext("key", "records")
	}
	return table, nil
}

// reply builds the agent response. A payload that cannot be encoded is a
// bad request rather than an empty reply.
func reply(text string, data map[string]any) (*a2a.Message, error) {
	msg, err := a2a.NewAgentMessage(text, data)
	if err != nil {
		return nil, errors.New(errors.CodeBadRequest, "reply payload cannot be encoded", err)
	}
	return msg, nil
}
