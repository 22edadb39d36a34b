package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"equity-factor-lab/internal/domain"
)

// ValidateRun checks the arguments every RunStore.Save receives.
func ValidateRun(runID string, result *domain.BacktestResult) error {
	if strings.TrimSpace(runID) == "" || result == nil {
		return ErrInvalidInput
	}
	return nil
}

// EncodeRun serialises config and result for document columns.
// The stored result always carries runID and cfg.
func EncodeRun(runID string, cfg domain.BacktestConfig, result *domain.BacktestResult) (cfgJSON, resultJSON []byte, err error) {
	stored := *result
	stored.RunID = runID
	stored.Config = cfg

	cfgJSON, err = json.Marshal(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal config: %w", err)
	}
	resultJSON, err = json.Marshal(&stored)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal result: %w", err)
	}
	return cfgJSON, resultJSON, nil
}

// DecodeResult parses a stored result document.
func DecodeResult(data []byte) (*domain.BacktestResult, error) {
	var r domain.BacktestResult
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return &r, nil
}

// SortSummaries orders summaries newest first, run_id ASC on ties.
func SortSummaries(s []domain.RunSummary) {
	sort.Slice(s, func(i, j int) bool {
		if !s[i].CreatedAt.Equal(s[j].CreatedAt) {
			return s[i].CreatedAt.After(s[j].CreatedAt)
		}
		return s[i].RunID < s[j].RunID
	})
}
