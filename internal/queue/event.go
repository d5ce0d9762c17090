// Package queue defines message payloads exchanged over the message broker.
package queue

// EmailQueueName is the durable queue carrying outbound email requests.
const EmailQueueName = "email.outbound"

// EmailRequestedEvent is published whenever a lifecycle flow wants an email
// sent (confirmation, password reset, email change, invitation). It carries
// everything a delivery worker needs without querying the primary database.
// The token link is the only secret in the payload; the event never includes
// password material.
type EmailRequestedEvent struct {
	To          string            `json:"to"`
	Subject     string            `json:"subject"`
	Template    string            `json:"template"`
	Context     map[string]string `json:"context,omitempty"`
	RequestedAt string            `json:"requested_at"`
}
