// Package llm is the optional advisor step of the veto chain
// in the veto chain: a 3-second-budget HTTP call to an external model
// service that may veto an entry candidate, or answer an operator's
// free-form "talk" command. A timeout or any transport error is
// treated as non-veto: the advisor can only narrow the book, never
// block it by being unreachable.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/twequity/trading-engine/pkg/types"
)

// EvaluateTimeout is the fixed advisor call budget.
const EvaluateTimeout = 3 * time.Second

// Config points the advisor at the external model service.
type Config struct {
	URL     string
	Model   string
	Timeout time.Duration
}

// Advisor calls an external LLM endpoint for veto-chain candidate
// review and operator talk/insight pass-through.
type Advisor struct {
	logger *zap.Logger
	config Config
	http   *http.Client
}

// New builds an Advisor. A zero Config.Timeout defaults to
// EvaluateTimeout.
func New(logger *zap.Logger, config Config) *Advisor {
	if config.Timeout == 0 {
		config.Timeout = EvaluateTimeout
	}
	return &Advisor{
		logger: logger.Named("llm"),
		config: config,
		http:   &http.Client{Timeout: config.Timeout},
	}
}

type evaluateRequest struct {
	Model     string `json:"model"`
	Symbol    string `json:"symbol"`
	Direction string `json:"direction"`
	Strategy  string `json:"strategyName"`
}

type evaluateResponse struct {
	Veto   bool   `json:"veto"`
	Reason string `json:"reason"`
}

// Evaluate implements engine.Advisor: veto is false on any transport
// failure or timeout is treated as a non-veto.
func (a *Advisor) Evaluate(ctx context.Context, candidate types.TradeSignal) (veto bool, reason string, err error) {
	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	req := evaluateRequest{
		Model:     a.config.Model,
		Symbol:    candidate.Symbol,
		Direction: string(candidate.Direction),
		Strategy:  candidate.StrategyName,
	}
	var out evaluateResponse
	if callErr := a.post(ctx, "/evaluate", req, &out); callErr != nil {
		a.logger.Warn("advisor evaluate call failed, treating as non-veto", zap.Error(callErr))
		return false, "", nil
	}
	return out.Veto, out.Reason, nil
}

type askRequest struct {
	Model   string `json:"model"`
	Message string `json:"message"`
}

type askResponse struct {
	Reply string `json:"reply"`
}

// Ask implements controlplane.Advisor, routing the "talk" command
// through to the model service with no veto semantics.
func (a *Advisor) Ask(ctx context.Context, message string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	var out askResponse
	if err := a.post(ctx, "/ask", askRequest{Model: a.config.Model, Message: message}, &out); err != nil {
		return "", fmt.Errorf("llm: ask: %w", err)
	}
	return out.Reply, nil
}

func (a *Advisor) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.URL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("llm: %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
