package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// Run is a single deployment run reported by a backend server.
type Run struct {
	ID        string
	AppName   string
	Status    string
	Source    string
	CreatedAt time.Time
	Steps     []RunStep
}

// RunStep is one named step of a deployment run.
type RunStep struct {
	Name   string
	Status string
	Log    string
}

// UnmarshalJSON normalizes the field-name variants used by different
// server versions (id/run_id, app/app_name).
func (r *Run) UnmarshalJSON(data []byte) error {
	var obj struct {
		ID        string    `json:"id"`
		RunID     string    `json:"run_id"`
		App       string    `json:"app"`
		AppName   string    `json:"app_name"`
		Status    string    `json:"status"`
		State     string    `json:"state"`
		Source    string    `json:"source"`
		CreatedAt time.Time `json:"created_at"`
		Steps     []RunStep `json:"steps"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	r.ID = firstNonEmpty(obj.ID, obj.RunID)
	r.AppName = firstNonEmpty(obj.AppName, obj.App)
	r.Status = firstNonEmpty(obj.Status, obj.State)
	r.Source = obj.Source
	r.CreatedAt = obj.CreatedAt
	r.Steps = obj.Steps
	if r.ID == "" {
		return fmt.Errorf("deployment run has no id field")
	}
	return nil
}

// UnmarshalJSON normalizes the field-name variants for steps
// (name/step/title, status/state, log/logs/output).
func (s *RunStep) UnmarshalJSON(data []byte) error {
	var obj struct {
		Name   string `json:"name"`
		Step   string `json:"step"`
		Title  string `json:"title"`
		Status string `json:"status"`
		State  string `json:"state"`
		Log    string `json:"log"`
		Logs   string `json:"logs"`
		Output string `json:"output"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	s.Name = firstNonEmpty(obj.Name, obj.Step, obj.Title)
	s.Status = firstNonEmpty(obj.Status, obj.State)
	s.Log = firstNonEmpty(obj.Log, obj.Logs, obj.Output)
	return nil
}

// ParseRun decodes a single deployment run payload.
func ParseRun(data []byte) (*Run, error) {
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to decode deployment run: %w", err)
	}
	return &run, nil
}

// ParseRuns decodes a list of deployment runs.
func ParseRuns(data []byte) ([]Run, error) {
	var runs []Run
	if err := json.Unmarshal(data, &runs); err != nil {
		return nil, fmt.Errorf("failed to decode deployment runs: %w", err)
	}
	return runs, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
