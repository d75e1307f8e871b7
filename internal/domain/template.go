package domain

// Template is a named subject/body pair with {{placeholder}} markers.
type Template struct {
	Key     string `json:"key"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}
