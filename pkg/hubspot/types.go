package hubspot

import (
	"encoding/json"
	"time"
)

// Operator is a CRM search filter operator.
type Operator string

const (
	OpEQ  Operator = "EQ"
	OpNEQ Operator = "NEQ"
	OpIN  Operator = "IN"
	OpGTE Operator = "GTE"
	OpLTE Operator = "LTE"
)

// Sort directions.
const (
	SortAscending  = "ASCENDING"
	SortDescending = "DESCENDING"
)

// MaxSearchLimit is the largest page size the search endpoint accepts.
const MaxSearchLimit = 100

// Filter is a single predicate on a named property. IN uses Values, every
// other operator uses Value.
type Filter struct {
	PropertyName string   `json:"propertyName"`
	Operator     Operator `json:"operator"`
	Value        string   `json:"value,omitempty"`
	Values       []string `json:"values,omitempty"`
}

// FilterGroup AND-combines its filters. Multiple groups are OR-combined.
type FilterGroup struct {
	Filters []Filter `json:"filters"`
}

// Sort orders search results by a property.
type Sort struct {
	PropertyName string `json:"propertyName"`
	Direction    string `json:"direction"`
}

// SearchRequest is the body of a CRM object search.
type SearchRequest struct {
	FilterGroups []FilterGroup `json:"filterGroups"`
	Sorts        []Sort        `json:"sorts,omitempty"`
	Properties   []string      `json:"properties,omitempty"`
	Limit        int           `json:"limit"`
	After        string        `json:"after,omitempty"`
}

// SearchResponse is one page of search results.
type SearchResponse struct {
	Total   int     `json:"total"`
	Results []Deal  `json:"results"`
	Paging  *Paging `json:"paging,omitempty"`
}

// NextCursor returns the continuation cursor, or "" on the last page.
func (r *SearchResponse) NextCursor() string {
	if r == nil || r.Paging == nil || r.Paging.Next == nil {
		return ""
	}
	return r.Paging.Next.After
}

// Paging holds the continuation pointer of a paginated response.
type Paging struct {
	Next *NextPage `json:"next,omitempty"`
}

// NextPage is the opaque cursor for the following page.
type NextPage struct {
	After string `json:"after"`
	Link  string `json:"link,omitempty"`
}

// Properties is a CRM property bag. The API sends null for unset values;
// those are dropped on decode.
type Properties map[string]string

// UnmarshalJSON decodes a property object, skipping null values.
func (p *Properties) UnmarshalJSON(b []byte) error {
	var raw map[string]*string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(Properties, len(raw))
	for k, v := range raw {
		if v != nil {
			out[k] = *v
		}
	}
	*p = out
	return nil
}

// Deal is a deal object as returned by search and read endpoints.
type Deal struct {
	ID           string                     `json:"id"`
	Properties   Properties                 `json:"properties"`
	CreatedAt    time.Time                  `json:"createdAt"`
	UpdatedAt    time.Time                  `json:"updatedAt"`
	Archived     bool                       `json:"archived"`
	Associations map[string]AssociationList `json:"associations,omitempty"`
}

// AssociatedIDs returns the IDs of associated objects of the given type
// (e.g. "companies", "line_items"), in API order.
func (d Deal) AssociatedIDs(objectType string) []string {
	list, ok := d.Associations[objectType]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(list.Results))
	for _, a := range list.Results {
		if a.ID != "" {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

// AssociationList is the association block of a single object type.
type AssociationList struct {
	Results []Association `json:"results"`
}

// Association points at one associated object.
type Association struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Stage is a pipeline stage.
type Stage struct {
	ID           string            `json:"id"`
	Label        string            `json:"label"`
	DisplayOrder int               `json:"displayOrder"`
	Archived     bool              `json:"archived"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Pipeline is a deal pipeline with its stages.
type Pipeline struct {
	ID           string  `json:"id"`
	Label        string  `json:"label"`
	DisplayOrder int     `json:"displayOrder"`
	Stages       []Stage `json:"stages"`
}

// Company is a company object.
type Company struct {
	ID         string     `json:"id"`
	Properties Properties `json:"properties"`
}

// Name returns the company's name property.
func (c *Company) Name() string {
	if c == nil {
		return ""
	}
	return c.Properties["name"]
}

// LineItem is a line item object.
type LineItem struct {
	ID         string     `json:"id"`
	Properties Properties `json:"properties"`
}

type batchReadInput struct {
	ID string `json:"id"`
}

type batchReadRequest struct {
	Inputs     []batchReadInput `json:"inputs"`
	Properties []string         `json:"properties"`
}

type batchReadResponse struct {
	Status  string     `json:"status"`
	Results []LineItem `json:"results"`
}
