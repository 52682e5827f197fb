package azdo

// Work item field reference names used by the adapter.
const (
	fieldTitle       = "System.Title"
	fieldDescription = "System.Description"
	fieldState       = "System.State"
	fieldAssignedTo  = "System.AssignedTo"
	fieldChangedDate = "System.ChangedDate"
	fieldTags        = "System.Tags"
	fieldAreaPath    = "System.AreaPath"
)

// patchOp is one JSON-patch operation in a work item mutation.
type patchOp struct {
	Op    string      `json:"op"`
	Path  string      `json:"path"`
	Value interface{} `json:"value"`
}

// Identity is an Azure DevOps identity reference.
type Identity struct {
	DisplayName string `json:"displayName"`
	UniqueName  string `json:"uniqueName"`
}

// WorkItemFields holds the subset of work item fields the engine reads.
type WorkItemFields struct {
	Title       string    `json:"System.Title"`
	Description string    `json:"System.Description"`
	State       string    `json:"System.State"`
	AssignedTo  *Identity `json:"System.AssignedTo"`
	ChangedDate string    `json:"System.ChangedDate"`
	Tags        string    `json:"System.Tags"`
}

// WorkItem is an Azure DevOps work item.
type WorkItem struct {
	ID     int            `json:"id"`
	Rev    int            `json:"rev"`
	Fields WorkItemFields `json:"fields"`
	URL    string         `json:"url"`
}

// workItemRef is the id-only shape returned by WIQL queries.
type workItemRef struct {
	ID int `json:"id"`
}

// wiqlRequest is the body for POST _apis/wit/wiql.
type wiqlRequest struct {
	Query string `json:"query"`
}

// wiqlResponse holds WIQL query results.
type wiqlResponse struct {
	WorkItems []workItemRef `json:"workItems"`
}

// workItemBatch is the response of a multi-id work item fetch.
type workItemBatch struct {
	Count int        `json:"count"`
	Value []WorkItem `json:"value"`
}

// relationLink adds a work item relation (used for parent links).
type relationLink struct {
	Rel string `json:"rel"`
	URL string `json:"url"`
}

// ErrorResponse is the error body returned by the Azure DevOps API.
type ErrorResponse struct {
	Message  string `json:"message"`
	TypeName string `json:"typeName,omitempty"`
}
