// Package hub defines the message shapes exchanged with the Hub event bus:
// envelopes, the closed set of operation kinds and their topics.
package hub

import (
	"errors"
	"strings"
)

// Status marks the outcome carried by an outgoing envelope.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

var (
	ErrMissingTopic         = errors.New("envelope topic is required")
	ErrMissingCorrelationID = errors.New("envelope correlation id is required")
	ErrMissingSource        = errors.New("envelope source is required")
)

// Envelope is the unit exchanged with the Hub. Envelopes are values: a
// handler that needs a variation builds a new one.
type Envelope struct {
	Topic         string         `json:"topic"`
	Data          map[string]any `json:"data"`
	CorrelationID string         `json:"correlationId"`
	Source        string         `json:"source"`
	Target        string         `json:"target,omitempty"`
	Status        Status         `json:"status,omitempty"`
}

// Validate checks the routing metadata every inbound envelope must carry.
func (e Envelope) Validate() error {
	var errs []error
	if strings.TrimSpace(e.Topic) == "" {
		errs = append(errs, ErrMissingTopic)
	}
	if strings.TrimSpace(e.CorrelationID) == "" {
		errs = append(errs, ErrMissingCorrelationID)
	}
	if strings.TrimSpace(e.Source) == "" {
		errs = append(errs, ErrMissingSource)
	}
	return errors.Join(errs...)
}

// Reply builds the outgoing envelope answering e. The correlation id is
// echoed and the original source becomes the target.
func (e Envelope) Reply(topic, source string, status Status, data map[string]any) Envelope {
	return Envelope{
		Topic:         topic,
		Data:          data,
		CorrelationID: e.CorrelationID,
		Source:        source,
		Target:        e.Source,
		Status:        status,
	}
}
