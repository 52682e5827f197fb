package notion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nhle/syncbridge/internal/model"
)

func testBindings() model.FieldBindings {
	return model.FieldBindings{
		Status:      "Status",
		Assignee:    "Assignee",
		Description: "Summary",
		BackLink:    "Work Item",
		Subtasks:    "Subtasks",
	}
}

func strPtr(s string) *string { return &s }
func numPtr(n float64) *float64 { return &n }

// testClient returns a client pointed at a local test server.
func testClient(srv *httptest.Server) *Client {
	c := NewClient("test-token")
	c.baseURL = srv.URL
	return c
}

func testPage() Page {
	return Page{
		ID:             "page-1",
		LastEditedTime: "2026-08-20T10:00:00.000Z",
		Properties: map[string]Property{
			"Name": {
				Type:  "title",
				Title: []RichText{{PlainText: "Ship the importer"}},
			},
			"Status": {
				Type:   "status",
				Status: &SelectOption{Name: "In progress"},
			},
			"Summary": {
				Type:     "rich_text",
				RichText: []RichText{{PlainText: "Move data across."}},
			},
			"Assignee": {
				Type: "people",
				People: []User{{
					ID:     "u-1",
					Name:   "Alice",
					Person: &struct {
						Email string `json:"email"`
					}{Email: "alice@example.com"},
				}},
			},
			"Work Item": {
				Type: "url",
				URL:  strPtr("https://dev.azure.com/acme/tools/_workitems/edit/482"),
			},
			"Subtasks": {
				Type:     "relation",
				Relation: []Relation{{ID: "child-1"}, {ID: "child-2"}},
			},
			"Estimate": {
				Type:   "number",
				Number: numPtr(3),
			},
			"Tags": {
				Type: "multi_select",
				MultiSelect: []SelectOption{
					{Name: "backend"}, {Name: "q3"},
				},
			},
		},
	}
}

func TestPageToItem(t *testing.T) {
	a := &Adapter{bindings: testBindings()}

	item, ok := a.pageToItem(testPage())
	if !ok {
		t.Fatal("pageToItem returned not ok for a titled page")
	}

	if item.Title != "Ship the importer" {
		t.Errorf("Title = %q", item.Title)
	}
	if item.Status != "In progress" {
		t.Errorf("Status = %q", item.Status)
	}
	if item.Description != "Move data across." {
		t.Errorf("Description = %q", item.Description)
	}
	if item.AssigneeEmail != "alice@example.com" {
		t.Errorf("AssigneeEmail = %q", item.AssigneeEmail)
	}
	if item.TargetID != 482 {
		t.Errorf("TargetID = %d, want 482", item.TargetID)
	}
	if len(item.ChildIDs) != 2 || item.ChildIDs[0] != "child-1" {
		t.Errorf("ChildIDs = %v", item.ChildIDs)
	}
	if item.LastEditedAt.IsZero() {
		t.Error("LastEditedAt not parsed")
	}
}

func TestPageToItemDropsUntitled(t *testing.T) {
	a := &Adapter{bindings: testBindings()}

	page := testPage()
	page.Properties["Name"] = Property{Type: "title"}

	if _, ok := a.pageToItem(page); ok {
		t.Error("pageToItem accepted a page with an empty title")
	}
}

func TestExtraFieldsSortedAndUnbound(t *testing.T) {
	a := &Adapter{bindings: testBindings()}

	item, ok := a.pageToItem(testPage())
	if !ok {
		t.Fatal("pageToItem returned not ok")
	}

	// Only the unbound properties appear, sorted by name.
	want := []model.ExtraField{
		{Name: "Estimate", Value: "3"},
		{Name: "Tags", Value: "backend, q3"},
	}
	if len(item.Extra) != len(want) {
		t.Fatalf("Extra = %v, want %v", item.Extra, want)
	}
	for i := range want {
		if item.Extra[i] != want[i] {
			t.Errorf("Extra[%d] = %v, want %v", i, item.Extra[i], want[i])
		}
	}
}

func TestParseWorkItemID(t *testing.T) {
	tests := []struct {
		url    string
		wantID int
		wantOK bool
	}{
		{"https://dev.azure.com/acme/tools/_workitems/edit/482", 482, true},
		{"https://dev.azure.com/acme/_apis/wit/workItems/17", 17, true},
		{"https://dev.azure.com/acme/tools/_Workitems/edit/9?fullScreen=true", 9, true},
		{"https://example.com/wiki/page-123", 0, false},
		{"https://example.com/board/482", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		id, ok := ParseWorkItemID(tt.url)
		if id != tt.wantID || ok != tt.wantOK {
			t.Errorf("ParseWorkItemID(%q) = %d, %v; want %d, %v",
				tt.url, id, ok, tt.wantID, tt.wantOK)
		}
	}
}

func TestTitlePropertyName(t *testing.T) {
	name, ok := titlePropertyName(testPage())
	if !ok || name != "Name" {
		t.Errorf("titlePropertyName = %q, %v; want \"Name\", true", name, ok)
	}

	page := testPage()
	delete(page.Properties, "Name")
	if name, ok := titlePropertyName(page); ok {
		t.Errorf("titlePropertyName = %q for a page without a title property", name)
	}
}

func TestApplyTargetUpdateTitle(t *testing.T) {
	var patched map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				_ = json.NewEncoder(w).Encode(testPage())
			case http.MethodPatch:
				var body struct {
					Properties map[string]interface{} `json:"properties"`
				}
				if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
					t.Errorf("decoding patch body: %v", err)
				}
				patched = body.Properties
				_, _ = w.Write([]byte("{}"))
			default:
				t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			}
		}))
	defer srv.Close()

	a := &Adapter{client: testClient(srv), bindings: testBindings()}

	warnings, err := a.ApplyTargetUpdate(
		context.Background(), "page-1",
		model.SourceFieldUpdate{Title: strPtr("Renamed")},
	)
	if err != nil {
		t.Fatalf("ApplyTargetUpdate: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v", warnings)
	}
	if len(patched) != 1 {
		t.Fatalf("patched properties = %v, want title only", patched)
	}

	// The patch must address the schema's title property by name.
	got, _ := json.Marshal(patched["Name"])
	want := `{"title":[{"text":{"content":"Renamed"}}]}`
	if string(got) != want {
		t.Errorf("title patch = %s, want %s", got, want)
	}
}

func TestApplyTargetUpdateTitleWithoutTitleProperty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
				return
			}
			page := testPage()
			delete(page.Properties, "Name")
			_ = json.NewEncoder(w).Encode(page)
		}))
	defer srv.Close()

	a := &Adapter{client: testClient(srv), bindings: testBindings()}

	_, err := a.ApplyTargetUpdate(
		context.Background(), "page-1",
		model.SourceFieldUpdate{Title: strPtr("Renamed")},
	)
	if err == nil || !strings.Contains(err.Error(), "no title property") {
		t.Errorf("err = %v, want no-title-property error", err)
	}
}

func TestManuallyLinked(t *testing.T) {
	a := &Adapter{bindings: testBindings()}

	page := testPage()
	page.Properties["Work Item"] = Property{
		Type: "url",
		URL:  strPtr("https://wiki.example.com/tracking/item-9"),
	}

	item, ok := a.pageToItem(page)
	if !ok {
		t.Fatal("pageToItem returned not ok")
	}
	if item.Linked() {
		t.Error("item with a foreign URL should not be linked")
	}
	if !item.ManuallyLinked() {
		t.Error("item with a foreign URL should be manually linked")
	}
}
