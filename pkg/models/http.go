package models

// ErrorResponse is the JSON error envelope for all endpoints
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// MessageResponse is a simple acknowledgement payload
type MessageResponse struct {
	Message string `json:"message"`
}

// Pagination carries list paging metadata
type Pagination struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// LeadListResponse is a page of leads
type LeadListResponse struct {
	Leads      []Lead     `json:"leads"`
	Pagination Pagination `json:"pagination"`
}
