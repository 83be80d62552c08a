package reporter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"api-testgen/internal/types"
)

// Report represents the test execution report
type Report struct {
	Timestamp   time.Time    `json:"timestamp"`
	TotalTests  int          `json:"totalTests"`
	PassedTests int          `json:"passedTests"`
	FailedTests int          `json:"failedTests"`
	DurationMs  int64        `json:"durationMs"`
	Results     []CaseResult `json:"results"`
}

// CaseResult is one execution joined with its test case
type CaseResult struct {
	TestCaseID string              `json:"testCaseId"`
	Name       string              `json:"name"`
	Type       types.TestCaseType  `json:"type"`
	Endpoint   string              `json:"endpoint"`
	Status     types.CaseStatus    `json:"status"`
	StatusCode int                 `json:"statusCode,omitempty"`
	DurationMs int64               `json:"durationMs"`
	ErrorKind  types.ErrorKind     `json:"errorKind,omitempty"`
	Error      string              `json:"error,omitempty"`
	Steps      []types.TestRequest `json:"steps,omitempty"`
}

// Reporter handles the generation of test reports
type Reporter struct {
	config ReportingConfig
	now    func() time.Time
}

// ReportingConfig holds the configuration for reporting
type ReportingConfig struct {
	Format    []string
	OutputDir string
	Detailed  bool
}

// NewReporter creates a new instance of Reporter
func NewReporter(config ReportingConfig) *Reporter {
	return &Reporter{
		config: config,
		now:    time.Now,
	}
}

// BuildReport joins results with their test cases. Results whose case is
// unknown are reported under their id alone.
func (r *Reporter) BuildReport(results []types.ExecutionResult, cases []types.TestCase) Report {
	byID := make(map[string]types.TestCase, len(cases))
	for _, tc := range cases {
		byID[tc.ID] = tc
	}

	report := Report{
		Timestamp:  r.now(),
		TotalTests: len(results),
		Results:    make([]CaseResult, 0, len(results)),
	}

	for _, result := range results {
		if result.Status == types.StatusPassed {
			report.PassedTests++
		} else {
			report.FailedTests++
		}
		report.DurationMs += result.DurationMs

		entry := CaseResult{
			TestCaseID: result.TestCaseID,
			Status:     result.Status,
			StatusCode: result.StatusCode,
			DurationMs: result.DurationMs,
			ErrorKind:  result.ErrorKind,
			Error:      result.Error,
		}
		if tc, ok := byID[result.TestCaseID]; ok {
			entry.Name = tc.Name
			entry.Type = tc.Type
			entry.Endpoint = tc.Endpoint.Key()
			if r.config.Detailed {
				entry.Steps = tc.Steps
			}
		}
		report.Results = append(report.Results, entry)
	}

	return report
}

// GenerateReport writes the report in every configured format and returns the written paths
func (r *Reporter) GenerateReport(results []types.ExecutionResult, cases []types.TestCase) ([]string, error) {
	report := r.BuildReport(results, cases)

	// Create output directory if it doesn't exist
	if err := os.MkdirAll(r.config.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	var paths []string
	for _, format := range r.config.Format {
		var (
			path string
			err  error
		)
		switch format {
		case "json":
			path, err = r.generateJSONReport(report)
		case "sarif":
			path, err = r.generateSARIFReport(report)
		default:
			return paths, fmt.Errorf("unsupported report format: %s", format)
		}
		if err != nil {
			return paths, fmt.Errorf("failed to generate %s report: %w", format, err)
		}
		paths = append(paths, path)
	}

	return paths, nil
}

func (r *Reporter) reportPath(report Report, ext string) string {
	return filepath.Join(r.config.OutputDir, fmt.Sprintf("report_%s.%s", report.Timestamp.Format("20060102_150405"), ext))
}

// generateJSONReport generates a JSON format report
func (r *Reporter) generateJSONReport(report Report) (string, error) {
	reportPath := r.reportPath(report, "json")

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", err
	}

	return reportPath, os.WriteFile(reportPath, data, 0644)
}
