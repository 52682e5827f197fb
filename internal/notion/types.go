package notion

// queryRequest is the body for POST /v1/databases/{id}/query.
type queryRequest struct {
	StartCursor string `json:"start_cursor,omitempty"`
	PageSize    int    `json:"page_size,omitempty"`
}

// QueryResponse is a page of database query results.
type QueryResponse struct {
	Results    []Page `json:"results"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor"`
}

// Page is a Notion page object with its property values.
type Page struct {
	ID             string              `json:"id"`
	URL            string              `json:"url"`
	Archived       bool                `json:"archived"`
	LastEditedTime string              `json:"last_edited_time"`
	Properties     map[string]Property `json:"properties"`
}

// Property is one page property value. Exactly one of the typed fields
// is populated, selected by Type. Types outside this closed set are
// not extractable and degrade to no value.
type Property struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	Title          []RichText     `json:"title,omitempty"`
	RichText       []RichText     `json:"rich_text,omitempty"`
	Select         *SelectOption  `json:"select,omitempty"`
	Status         *SelectOption  `json:"status,omitempty"`
	MultiSelect    []SelectOption `json:"multi_select,omitempty"`
	Number         *float64       `json:"number,omitempty"`
	Checkbox       *bool          `json:"checkbox,omitempty"`
	URL            *string        `json:"url,omitempty"`
	Email          *string        `json:"email,omitempty"`
	PhoneNumber    *string        `json:"phone_number,omitempty"`
	People         []User         `json:"people,omitempty"`
	Date           *DateRange     `json:"date,omitempty"`
	Formula        *Formula       `json:"formula,omitempty"`
	Rollup         *Rollup        `json:"rollup,omitempty"`
	Relation       []Relation     `json:"relation,omitempty"`
	CreatedTime    string         `json:"created_time,omitempty"`
	LastEditedTime string         `json:"last_edited_time,omitempty"`
}

// RichText is one span of rich text content.
type RichText struct {
	PlainText string `json:"plain_text"`
	Text      *struct {
		Content string `json:"content"`
	} `json:"text,omitempty"`
}

// SelectOption is a select, multi-select, or status option.
type SelectOption struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// User is a Notion user reference. Person is only present for human
// users (not bots).
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Person *struct {
		Email string `json:"email"`
	} `json:"person,omitempty"`
}

// DateRange is a date property value with an optional end.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end,omitempty"`
}

// Formula is a computed property result.
type Formula struct {
	Type    string     `json:"type"`
	String  *string    `json:"string,omitempty"`
	Number  *float64   `json:"number,omitempty"`
	Boolean *bool      `json:"boolean,omitempty"`
	Date    *DateRange `json:"date,omitempty"`
}

// Rollup is an aggregated property result (e.g. a relation count).
type Rollup struct {
	Type   string     `json:"type"`
	Number *float64   `json:"number,omitempty"`
	Date   *DateRange `json:"date,omitempty"`
}

// Relation is a reference to another page.
type Relation struct {
	ID string `json:"id"`
}

// UserListResponse is a page of GET /v1/users results.
type UserListResponse struct {
	Results    []User `json:"results"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor"`
}

// ErrorResponse is the error body returned by the Notion API.
type ErrorResponse struct {
	Object  string `json:"object"`
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// propertyPatch is the body for PATCH /v1/pages/{id}.
type propertyPatch struct {
	Properties map[string]interface{} `json:"properties"`
}
