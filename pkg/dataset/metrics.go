package dataset

import (
	"math"
	"sort"
)

// Column names the metrics read.
const (
	ColumnSales          = "Sales"
	ColumnMarketingSpend = "Marketing_Spend"
	ColumnQualifiedLeads = "Qualified_Leads"
	ColumnNewCustomers   = "New_Customers"
	ColumnRegion         = "Region"
	ColumnProduct        = "Product"
	ColumnChannel        = "Channel"
)

// Metrics summarizes a sales dataset.
type Metrics struct {
	Totals         Totals     `json:"totals"`
	Efficiency     Efficiency `json:"efficiency"`
	RegionsRanked  []Ranking  `json:"regions_ranked,omitempty"`
	ProductsRanked []Ranking  `json:"products_ranked,omitempty"`
	ChannelsRanked []Ranking  `json:"channels_ranked,omitempty"`
	RowCount       int        `json:"row_count"`
}

// Totals are column sums. Missing columns sum to zero.
type Totals struct {
	Sales          float64 `json:"sales"`
	MarketingSpend float64 `json:"marketing_spend"`
	QualifiedLeads float64 `json:"qualified_leads"`
	NewCustomers   float64 `json:"new_customers"`
}

// Efficiency ratios. RevenuePerDollar is nil when there was no spend.
type Efficiency struct {
	LeadToCustomerRate float64  `json:"lead_to_customer_rate"`
	RevenuePerCustomer float64  `json:"revenue_per_customer"`
	RevenuePerDollar   *float64 `json:"revenue_per_dollar"`
}

// Ranking is the sales total of one group.
type Ranking struct {
	Name  string  `json:"name"`
	Sales float64 `json:"sales"`
}

// ComputeMetrics aggregates the table. It never fails on missing columns.
func ComputeMetrics(t *Table) Metrics {
	totals := Totals{
		Sales:          Sum(t, ColumnSales),
		MarketingSpend: Sum(t, ColumnMarketingSpend),
		QualifiedLeads: Sum(t, ColumnQualifiedLeads),
		NewCustomers:   Sum(t, ColumnNewCustomers),
	}

	var efficiency Efficiency
	if totals.QualifiedLeads != 0 {
		efficiency.LeadToCustomerRate = round(totals.NewCustomers/totals.QualifiedLeads, 4)
	}
	if totals.NewCustomers != 0 {
		efficiency.RevenuePerCustomer = round(totals.Sales/totals.NewCustomers, 2)
	}
	if totals.MarketingSpend != 0 {
		perDollar := round(totals.Sales/totals.MarketingSpend, 2)
		efficiency.RevenuePerDollar = &perDollar
	}

	return Metrics{
		Totals:         totals,
		Efficiency:     efficiency,
		RegionsRanked:  Rank(t, ColumnRegion, ColumnSales),
		ProductsRanked: Rank(t, ColumnProduct, ColumnSales),
		ChannelsRanked: Rank(t, ColumnChannel, ColumnSales),
		RowCount:       t.Len(),
	}
}

// Sum adds the numeric cells of a column.
func Sum(t *Table, column string) float64 {
	if !t.HasColumn(column) {
		return 0
	}
	var total float64
	for row := range t.Rows {
		if v, ok := t.Float(row, column); ok {
			total += v
		}
	}
	return total
}

// Rank returns the sales ranking of groupBy, or nil when the column is missing.
func Rank(t *Table, groupBy, metric string) []Ranking {
	groups := Aggregate(t, groupBy, metric)
	if groups == nil {
		return nil
	}
	out := make([]Ranking, 0, len(groups))
	for _, g := range groups {
		out = append(out, Ranking{Name: g.Label, Sales: g.Value})
	}
	return out
}

// Group is one aggregated bucket.
type Group struct {
	Label string
	Value float64
}

// Aggregate sums metric per distinct value of groupBy, sorted descending.
// Ties keep first-seen order. Returns nil when groupBy does not exist.
func Aggregate(t *Table, groupBy, metric string) []Group {
	if !t.HasColumn(groupBy) {
		return nil
	}
	order := []string{}
	sums := map[string]float64{}
	for row := range t.Rows {
		label := t.Label(row, groupBy)
		if _, ok := sums[label]; !ok {
			order = append(order, label)
			sums[label] = 0
		}
		if v, ok := t.Float(row, metric); ok {
			sums[label] += v
		}
	}
	out := make([]Group, 0, len(order))
	for _, label := range order {
		out = append(out, Group{Label: label, Value: sums[label]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	return out
}

func round(value float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(value*scale) / scale
}
