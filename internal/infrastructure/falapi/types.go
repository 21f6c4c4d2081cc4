// Package falapi provides the HTTP client for the Fal.ai platform, queue,
// and run APIs.
package falapi

// ModelsPage is a single page of the platform catalog listing.
//
// The platform has shipped both "models" and the older "items" key for the
// page payload; Records returns whichever is present.
type ModelsPage struct {
	Models     []RawModel `json:"models"`
	Items      []RawModel `json:"items"`
	NextCursor string     `json:"next_cursor"`
	HasMore    bool       `json:"has_more"`
}

// Records returns the page's model list regardless of which payload key the
// platform used.
func (p *ModelsPage) Records() []RawModel {
	if len(p.Models) > 0 {
		return p.Models
	}
	return p.Items
}

// RawModel is a catalog item as returned by the platform API.
type RawModel struct {
	EndpointID  string         `json:"endpoint_id"`
	ID          string         `json:"id"` // legacy key, pre-dates endpoint_id
	Metadata    *ModelMetadata `json:"metadata"`
	Group       *ModelGroup    `json:"group"`
	Highlighted bool           `json:"highlighted"`
	Status      string         `json:"status"`
}

// Identifier returns the canonical endpoint id, falling back to the legacy
// id key. Empty when the item carries neither.
func (m *RawModel) Identifier() string {
	if m.EndpointID != "" {
		return m.EndpointID
	}
	return m.ID
}

// ModelMetadata is the nested display sub-object of a catalog item.
type ModelMetadata struct {
	DisplayName  string   `json:"display_name"`
	Description  string   `json:"description"`
	Category     string   `json:"category"`
	ThumbnailURL string   `json:"thumbnail_url"`
	Tags         []string `json:"tags"`
}

// ModelGroup identifies the model family a catalog item belongs to.
type ModelGroup struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// PricingResponse is the payload of GET /models/pricing.
type PricingResponse struct {
	Prices []Price `json:"prices"`
}

// Price is the unit price for one endpoint.
type Price struct {
	EndpointID string  `json:"endpoint_id"`
	UnitPrice  float64 `json:"unit_price"`
	Unit       string  `json:"unit"`
	Currency   string  `json:"currency"`
}

// UsageResponse is the payload of GET /models/usage.
type UsageResponse struct {
	TotalCost float64     `json:"total_cost"`
	Currency  string      `json:"currency"`
	Breakdown []UsageItem `json:"breakdown"`
}

// UsageItem is the per-endpoint slice of a usage report.
type UsageItem struct {
	EndpointID string  `json:"endpoint_id"`
	Quantity   int     `json:"quantity"`
	Cost       float64 `json:"cost"`
}

// QueueJob is the native handle returned by the queue API on submit. It is
// consumed exactly once by the strategy that submitted it.
type QueueJob struct {
	RequestID   string `json:"request_id"`
	ModelID     string `json:"-"`
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
	CancelURL   string `json:"cancel_url"`
}

// QueueStatus is the payload of a queue status read.
type QueueStatus struct {
	Status        string `json:"status"`
	QueuePosition int    `json:"queue_position"`
	ResponseURL   string `json:"response_url"`
	Error         string `json:"error"`
}

// UploadInitiateResponse is the payload of the storage upload initiation.
type UploadInitiateResponse struct {
	UploadURL string `json:"upload_url"`
	FileURL   string `json:"file_url"`
}
