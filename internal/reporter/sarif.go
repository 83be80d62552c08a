package reporter

import (
	"fmt"
	"os"

	"api-testgen/internal/types"

	"github.com/owenrumney/go-sarif/v2/sarif"
)

const toolName = "api-testgen"

var ruleDescriptions = map[types.TestCaseType]string{
	types.CaseBasic:     "Happy path request did not return a 2xx response",
	types.CaseBoundary:  "Request with boundary values was not handled",
	types.CaseException: "Invalid request was not rejected with a client error",
	types.CaseScenario:  "Multi-step scenario did not complete",
}

// generateSARIFReport writes one result per failed case, with one rule per test case type
func (r *Reporter) generateSARIFReport(report Report) (string, error) {
	reportSarif, err := sarif.New(sarif.Version210)
	if err != nil {
		return "", fmt.Errorf("failed to create SARIF report: %w", err)
	}

	run := sarif.NewRunWithInformationURI(toolName, "https://spec.openapis.org/oas/v3.0.3")
	for _, entry := range report.Results {
		if entry.Status == types.StatusPassed {
			continue
		}

		kind := entry.Type
		if kind == "" {
			kind = types.CaseBasic
		}
		rule := run.AddRule(string(kind)).
			WithDescription(ruleDescriptions[kind]).
			WithDefaultConfiguration(&sarif.ReportingConfiguration{
				Level: levelOf(entry.ErrorKind),
			})

		message := entry.Error
		if message == "" {
			message = fmt.Sprintf("%s finished with status %s", entry.TestCaseID, entry.Status)
		}
		location := sarif.NewLocation().WithPhysicalLocation(
			sarif.NewPhysicalLocation().
				WithArtifactLocation(sarif.NewArtifactLocation().WithUri(entry.Endpoint)),
		)

		result := sarif.NewRuleResult(rule.ID).
			WithMessage(sarif.NewTextMessage(fmt.Sprintf("%s: %s", entry.TestCaseID, message))).
			WithLevel(levelOf(entry.ErrorKind)).
			WithLocations([]*sarif.Location{location})
		run.AddResult(result)
	}
	reportSarif.AddRun(run)

	outputFilePath := r.reportPath(report, "sarif")
	file, err := os.OpenFile(outputFilePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return "", fmt.Errorf("error writing SARIF report: %w", err)
	}
	defer func() { _ = file.Close() }()

	if err := reportSarif.PrettyWrite(file); err != nil {
		return "", err
	}
	return outputFilePath, nil
}

// network failures are reported as warnings
func levelOf(kind types.ErrorKind) string {
	if kind == types.ErrorKindNetwork {
		return "warning"
	}
	return "error"
}
