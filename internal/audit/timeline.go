package audit

import (
	"time"

	"github.com/google/uuid"
)

// Entry is one recorded authorization decision. Only denials and privileged
// bypasses are recorded; plain allows stay out of the trail.
type Entry struct {
	ID          int64     `json:"id"`
	At          time.Time `json:"at"`
	PrincipalID int64     `json:"principal_id"`
	TenantID    uuid.UUID `json:"tenant_id"`
	Action      string    `json:"action"`
	ResourceID  uuid.UUID `json:"resource_id,omitempty"`
	Decision    string    `json:"decision"`
	Reason      string    `json:"reason,omitempty"`
}

// TimelineFilters narrows the decision timeline.
type TimelineFilters struct {
	From        time.Time
	To          time.Time
	TenantID    uuid.UUID
	PrincipalID int64
	Decision    string
	Reason      string
	Page        int
	PageSize    int
}

// PagingInfo carries simple pagination metadata.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result bundles timeline rows with paging information.
type Result struct {
	Rows   []Entry    `json:"rows"`
	Paging PagingInfo `json:"paging"`
}
