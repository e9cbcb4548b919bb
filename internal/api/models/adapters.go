package models

// AdapterList is the body of GET /v1/adapters.
type AdapterList struct {
	Items []string `json:"items"`
}
