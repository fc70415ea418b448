package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Envelope is the wire shape of every PhotoFlow API response.
type Envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Message   string          `json:"message,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
}

// HasData reports whether data is present and not JSON null.
func (e Envelope) HasData() bool {
	trimmed := bytes.TrimSpace(e.Data)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// Validate enforces that success and the data/error fields agree.
func (e Envelope) Validate() error {
	if e.Success {
		if !e.HasData() {
			return fmt.Errorf("%w: success without data", ErrInvalidEnvelope)
		}
		if e.Error != "" {
			return fmt.Errorf("%w: success with error", ErrInvalidEnvelope)
		}
		return nil
	}

	if e.Error == "" && e.Message == "" {
		return fmt.Errorf("%w: failure without error or message", ErrInvalidEnvelope)
	}
	if e.HasData() {
		return fmt.Errorf("%w: failure with data", ErrInvalidEnvelope)
	}

	return nil
}

// DetailsText flattens details to a string for logs and banners.
func (e Envelope) DetailsText() string {
	trimmed := bytes.TrimSpace(e.Details)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}

	var text string
	if err := json.Unmarshal(trimmed, &text); err == nil {
		return text
	}

	return string(trimmed)
}

// HealthStatus is served on /health.
type HealthStatus struct {
	Status      string    `json:"status"`
	Timestamp   string    `json:"timestamp"`
	Service     string    `json:"service"`
	Version     string    `json:"version"`
	Uptime      float64   `json:"uptime"`
	Environment string    `json:"environment"`
	API         HealthAPI `json:"api"`
	Storage     string    `json:"storage,omitempty"`
}

type HealthAPI struct {
	Configured bool   `json:"configured"`
	URL        string `json:"url"`
}
