package agents

import (
	"encoding/json"
	"testing"

	"github.com/jllopis/a2apipe/pkg/a2a"
	"github.com/jllopis/a2apipe/pkg/errors"
)

const salesCSV = `Region,Product,Sales,Marketing_Spend,Qualified_Leads,New_Customers
North,Atlas CRM,1000,200,50,10
South,Beacon Analytics,500,100,40,5
East,Atlas CRM,1500,300,60,12
West,Cobalt Suite,700,150,30,6
North,Cobalt Suite,300,50,20,2
`

// wire sends msg through JSON so data parts carry their raw encoding, as
// they do when received over the network.
func wire(t *testing.T, msg *a2a.Message) *a2a.Message {
	t.Helper()
	encoded, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded a2a.Message
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return &decoded
}

func request(t *testing.T, data map[string]any) *a2a.Message {
	t.Helper()
	msg, err := a2a.NewMessage(a2a.RoleUser, "do the work", data)
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	return wire(t, msg)
}

func sampleRecords() []any {
	return []any{
		map[string]any{"Region": "North", "Product": "Atlas CRM", "Sales": 1000},
		map[string]any{"Region": "South", "Product": "Beacon Analytics", "Sales": 500},
		map[string]any{"Region": "East", "Product": "Atlas CRM", "Sales": 1500},
		map[string]any{"Region": "West", "Product": "Cobalt Suite", "Sales": 700},
		map[string]any{"Region": "North", "Product": "Cobalt Suite", "Sales": 300},
	}
}

func assertCode(t *testing.T, err error, code errors.ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if got := errors.CodeOf(err); got != code {
		t.Fatalf("expected code %s, got %s (%v)", code, got, err)
	}
}
