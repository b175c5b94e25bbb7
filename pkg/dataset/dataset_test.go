package dataset

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

const fixture = "testdata/sales_marketing.csv"

func TestLoadFileCSV(t *testing.T) {
	table, err := LoadFile(fixture)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	want := []string{"Region", "Product", "Sales", "Marketing_Spend", "Qualified_Leads", "New_Customers"}
	if !reflect.DeepEqual(table.Columns, want) {
		t.Errorf("columns = %v, want %v", table.Columns, want)
	}
	if table.Len() != 20 {
		t.Errorf("expected 20 rows, got %d", table.Len())
	}
	if v, ok := table.Value(0, "Sales").(float64); !ok || v != 41150 {
		t.Errorf("expected numeric Sales cell, got %#v", table.Value(0, "Sales"))
	}
	if table.Value(0, "Region") != "North" {
		t.Errorf("expected text Region cell, got %#v", table.Value(0, "Region"))
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadFileSpreadsheet(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	rows := [][]any{
		{"Region", "Product", "Sales"},
		{"North", "Atlas CRM", 100},
		{"South", "Atlas CRM", 250.5},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	path := filepath.Join(t.TempDir(), "sales.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}

	table, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if !reflect.DeepEqual(table.Columns, []string{"Region", "Product", "Sales"}) {
		t.Errorf("unexpected columns %v", table.Columns)
	}
	if got := Sum(table, "Sales"); got != 350.5 {
		t.Errorf("expected sales 350.5, got %v", got)
	}
}

func TestCSVRoundTrip(t *testing.T) {
	text := "\ufeffRegion,Sales,Note\nNorth,100,\"a, b\"\n\nSouth,2.5,\n"
	table, err := ParseCSVString(text)
	if err != nil {
		t.Fatalf("ParseCSVString: %v", err)
	}
	if table.Columns[0] != "Region" {
		t.Errorf("expected BOM stripped, got %q", table.Columns[0])
	}
	if table.Len() != 2 {
		t.Fatalf("expected blank row skipped, got %d rows", table.Len())
	}
	if table.Value(1, "Note") != nil {
		t.Errorf("expected nil for blank cell, got %#v", table.Value(1, "Note"))
	}

	again, err := ParseCSVString(table.CSV())
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if !reflect.DeepEqual(again, table) {
		t.Errorf("round trip mismatch:\n%#v\n%#v", again, table)
	}
	if !strings.Contains(table.CSV(), "North,100,\"a, b\"") {
		t.Errorf("unexpected csv rendering:\n%s", table.CSV())
	}
}

func TestFromRecordsJSONKeepsFirstSeenOrder(t *testing.T) {
	raw := []byte(`[{"Zone":"A","Sales":10,"Alpha":1},{"Sales":5,"Beta":true,"Zone":"B"}]`)
	table, err := FromRecordsJSON(raw)
	if err != nil {
		t.Fatalf("FromRecordsJSON: %v", err)
	}
	want := []string{"Zone", "Sales", "Alpha", "Beta"}
	if !reflect.DeepEqual(table.Columns, want) {
		t.Errorf("columns = %v, want %v", table.Columns, want)
	}
	if table.Value(1, "Alpha") != nil || table.Value(1, "Beta") != true {
		t.Errorf("unexpected second row %v", table.Rows[1])
	}
}

func TestFromRecordsJSONRejectsNonList(t *testing.T) {
	for _, raw := range []string{`{"a":1}`, `"text"`, ``} {
		if _, err := FromRecordsJSON([]byte(raw)); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
}

func TestRecordsKeepColumnOrder(t *testing.T) {
	table := &Table{Columns: []string{"b", "a"}, Rows: [][]any{{"x", 1.0}, {"y"}}}
	encoded, err := json.Marshal(table.Records())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `[{"b":"x","a":1},{"b":"y","a":null}]`
	if string(encoded) != want {
		t.Errorf("Records() = %s, want %s", encoded, want)
	}
}

func TestParseCSVRejectsInvalidUTF8(t *testing.T) {
	latin1 := "Region,Sales\nM\xe1laga,100\n"
	_, err := ParseCSVString(latin1)
	if err == nil || !strings.Contains(err.Error(), "UTF-8") {
		t.Fatalf("expected UTF-8 error, got %v", err)
	}
	if !strings.Contains(err.Error(), "row 2") {
		t.Errorf("expected the offending row in %q", err)
	}

	path := filepath.Join(t.TempDir(), "latin1.csv")
	if err := os.WriteFile(path, []byte(latin1), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil || !strings.Contains(err.Error(), "UTF-8") {
		t.Fatalf("expected UTF-8 error from LoadFile, got %v", err)
	}
}

func TestComputeMetrics(t *testing.T) {
	table, err := LoadFile(fixture)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	m := ComputeMetrics(table)

	if m.Totals != (Totals{Sales: 644550, MarketingSpend: 126000, QualifiedLeads: 4441, NewCustomers: 571}) {
		t.Errorf("unexpected totals %+v", m.Totals)
	}
	if m.Efficiency.LeadToCustomerRate != 0.1286 {
		t.Errorf("lead_to_customer_rate = %v", m.Efficiency.LeadToCustomerRate)
	}
	if m.Efficiency.RevenuePerCustomer != 1128.81 {
		t.Errorf("revenue_per_customer = %v", m.Efficiency.RevenuePerCustomer)
	}
	if m.Efficiency.RevenuePerDollar == nil || *m.Efficiency.RevenuePerDollar != 5.12 {
		t.Errorf("revenue_per_dollar = %v", m.Efficiency.RevenuePerDollar)
	}
	wantRegions := []Ranking{{"East", 202000}, {"North", 158600}, {"West", 145200}, {"South", 138750}}
	if !reflect.DeepEqual(m.RegionsRanked, wantRegions) {
		t.Errorf("regions_ranked = %v", m.RegionsRanked)
	}
	if len(m.ProductsRanked) != 5 || m.ProductsRanked[0].Name != "Atlas CRM" {
		t.Errorf("products_ranked = %v", m.ProductsRanked)
	}
	if m.ChannelsRanked != nil {
		t.Errorf("expected no channel ranking without a Channel column")
	}
	if m.RowCount != 20 {
		t.Errorf("row_count = %d", m.RowCount)
	}
}

func TestComputeMetricsMissingColumns(t *testing.T) {
	table, err := ParseCSVString("Name,Score\nx,1\n")
	if err != nil {
		t.Fatalf("ParseCSVString: %v", err)
	}
	m := ComputeMetrics(table)
	if m.Totals != (Totals{}) {
		t.Errorf("expected zero totals, got %+v", m.Totals)
	}
	if m.Efficiency.RevenuePerDollar != nil {
		t.Errorf("expected null revenue_per_dollar without spend")
	}

	encoded, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	eff := decoded["efficiency"].(map[string]any)
	if v, ok := eff["revenue_per_dollar"]; !ok || v != nil {
		t.Errorf("expected explicit null, got %v", eff)
	}
	if _, ok := decoded["regions_ranked"]; ok {
		t.Errorf("expected regions_ranked omitted")
	}
}

func TestComputeMetricsDeterministic(t *testing.T) {
	data, err := os.ReadFile(fixture)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	first, _ := ParseCSVString(string(data))
	second, _ := ParseCSVString(string(data))
	if !reflect.DeepEqual(ComputeMetrics(first), ComputeMetrics(second)) {
		t.Error("metrics differ between identical inputs")
	}
}
