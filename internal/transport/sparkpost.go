// Package transport implements the outbound delivery contract. Warmup
// traffic goes through SparkPost in production; the simulated sender stands
// in when no API key is configured.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/warmup-engine/internal/warmup"
)

// SparkPostSender sends warmup emails via the SparkPost Transmissions API.
type SparkPostSender struct {
	apiKey    string
	baseURL   string
	fromEmail string
	fromName  string
	client    *http.Client
}

// NewSparkPostSender creates a sender targeting the SparkPost v1 API.
func NewSparkPostSender(apiKey, fromEmail, fromName string) *SparkPostSender {
	return &SparkPostSender{
		apiKey:    apiKey,
		baseURL:   "https://api.sparkpost.com/api/v1",
		fromEmail: fromEmail,
		fromName:  fromName,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Send delivers a single warmup email through SparkPost.
func (s *SparkPostSender) Send(ctx context.Context, req warmup.SendRequest) (warmup.SendResult, error) {
	if s.apiKey == "" {
		return warmup.SendResult{}, fmt.Errorf("SparkPost API key not configured")
	}

	transmission := map[string]interface{}{
		"recipients": []map[string]interface{}{
			{"address": map[string]string{"email": req.To}},
		},
		"content": map[string]interface{}{
			"from":    map[string]string{"email": s.fromEmail, "name": s.fromName},
			"subject": req.Subject,
			"html":    req.Content,
		},
		"options": map[string]interface{}{
			"open_tracking":  req.TrackingEnabled,
			"click_tracking": req.TrackingEnabled,
		},
		"metadata": map[string]interface{}{
			"warmup": req.WarmupMode,
		},
	}

	jsonData, err := json.Marshal(transmission)
	if err != nil {
		return warmup.SendResult{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/transmissions", bytes.NewBuffer(jsonData))
	if err != nil {
		return warmup.SendResult{}, err
	}
	httpReq.Header.Set("Authorization", s.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return warmup.SendResult{}, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 400 {
		return warmup.SendResult{
			Success: false,
			Error:   fmt.Sprintf("SparkPost error %d: %s", resp.StatusCode, string(body)),
		}, nil
	}

	var result struct {
		Results struct {
			ID string `json:"id"`
		} `json:"results"`
	}
	json.Unmarshal(body, &result)

	return warmup.SendResult{
		Success:    true,
		TrackingID: result.Results.ID,
	}, nil
}

var _ warmup.Sender = (*SparkPostSender)(nil)

// SimulatedSender accepts every message without touching the network. Used
// in development and demos, where real deliveries would burn reputation on
// a domain that isn't warmed yet.
type SimulatedSender struct{}

// NewSimulatedSender creates a no-op sender.
func NewSimulatedSender() *SimulatedSender { return &SimulatedSender{} }

func (s *SimulatedSender) Send(_ context.Context, req warmup.SendRequest) (warmup.SendResult, error) {
	log.Printf("[SimulatedSender] Would send %q to %s", req.Subject, req.To)
	return warmup.SendResult{
		Success:    true,
		TrackingID: "sim-" + uuid.New().String(),
	}, nil
}

var _ warmup.Sender = (*SimulatedSender)(nil)
