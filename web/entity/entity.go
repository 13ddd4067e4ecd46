// Package entity defines the JSON envelopes the panel answers with.
package entity

// Msg is the response body of every JSON endpoint.
type Msg struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
	Obj     any    `json:"obj"`
	// Field names the rejected input of a validation failure.
	Field string `json:"field,omitempty"`
}
