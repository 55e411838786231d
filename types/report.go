package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// AppInfo identifies the application producing a report. It is supplied by the caller.
type AppInfo struct {
	AppVersion string
	Platform   string
}

// ExportMetadata describes when and by what a report was produced
type ExportMetadata struct {
	ExportedAt time.Time
	AppVersion string
	Platform   string
	RunID      string
}

type metadataJSON struct {
	ExportedAt string `json:"exportedAt"`
	AppVersion string `json:"appVersion"`
	Platform   string `json:"platform"`
	RunID      string `json:"runId,omitempty"`
}

func (m ExportMetadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(metadataJSON{
		ExportedAt: FormatISOTime(m.ExportedAt),
		AppVersion: m.AppVersion,
		Platform:   m.Platform,
		RunID:      m.RunID,
	})
}

func (m *ExportMetadata) UnmarshalJSON(data []byte) error {
	var in metadataJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	ts, err := ParseISOTime(in.ExportedAt)
	if err != nil {
		return fmt.Errorf("invalid exportedAt: %w", err)
	}
	*m = ExportMetadata{
		ExportedAt: ts,
		AppVersion: in.AppVersion,
		Platform:   in.Platform,
		RunID:      in.RunID,
	}
	return nil
}

// Report is the exported document: summary, every record and export metadata
type Report struct {
	Summary  TestSummary    `json:"summary"`
	Results  []TestRecord   `json:"results"`
	Metadata ExportMetadata `json:"metadata"`
}

// ParseReport decodes a report previously produced by an export
func ParseReport(data []byte) (*Report, error) {
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	if report.Results == nil {
		report.Results = []TestRecord{}
	}
	return &report, nil
}
