package notion

import "testing"

func boolPtr(b bool) *bool { return &b }

func TestDisplayStringKinds(t *testing.T) {
	tests := []struct {
		name   string
		prop   Property
		want   string
		wantOK bool
	}{
		{
			"rich text joins spans",
			Property{Type: "rich_text", RichText: []RichText{
				{PlainText: "a "}, {PlainText: "b"},
			}},
			"a b", true,
		},
		{
			"select",
			Property{Type: "select", Select: &SelectOption{Name: "High"}},
			"High", true,
		},
		{
			"empty select",
			Property{Type: "select"},
			"", false,
		},
		{
			"number drops trailing zeros",
			Property{Type: "number", Number: numPtr(2.50)},
			"2.5", true,
		},
		{
			"integer number",
			Property{Type: "number", Number: numPtr(8)},
			"8", true,
		},
		{
			"checkbox",
			Property{Type: "checkbox", Checkbox: boolPtr(true)},
			"true", true,
		},
		{
			"date range",
			Property{Type: "date", Date: &DateRange{Start: "2026-08-01", End: "2026-08-05"}},
			"2026-08-01 - 2026-08-05", true,
		},
		{
			"open date",
			Property{Type: "date", Date: &DateRange{Start: "2026-08-01"}},
			"2026-08-01", true,
		},
		{
			"formula string",
			Property{Type: "formula", Formula: &Formula{Type: "string", String: strPtr("ok")}},
			"ok", true,
		},
		{
			"formula number",
			Property{Type: "formula", Formula: &Formula{Type: "number", Number: numPtr(7)}},
			"7", true,
		},
		{
			"rollup count",
			Property{Type: "rollup", Rollup: &Rollup{Type: "number", Number: numPtr(4)}},
			"4", true,
		},
		{
			"rollup array is not extractable",
			Property{Type: "rollup", Rollup: &Rollup{Type: "array"}},
			"", false,
		},
		{
			"relation renders a count",
			Property{Type: "relation", Relation: []Relation{{ID: "x"}, {ID: "y"}}},
			"2 linked", true,
		},
		{
			"people prefer email",
			Property{Type: "people", People: []User{{
				Name: "Bob",
				Person: &struct {
					Email string `json:"email"`
				}{Email: "bob@example.com"},
			}}},
			"bob@example.com", true,
		},
		{
			"bot user falls back to name",
			Property{Type: "people", People: []User{{Name: "Deploy Bot"}}},
			"Deploy Bot", true,
		},
		{
			"unknown kind degrades to no value",
			Property{Type: "files"},
			"", false,
		},
		{
			"empty type degrades to no value",
			Property{},
			"", false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := displayString(tt.prop)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("displayString = %q, %v; want %q, %v",
					got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
