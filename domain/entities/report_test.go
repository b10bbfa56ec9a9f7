package entities

import "testing"

func TestNewIssueReport(t *testing.T) {
	summary := IssueSummary{
		Text:              "Issue: Door stuck",
		SuggestedPriority: "High",
		EstimatedTime:     "Unknown",
		Confidence:        0.87,
	}

	report := NewIssueReport("user-1", "Door stuck", summary)

	if report.ReporterID != "user-1" {
		t.Errorf("ReporterID = %q, want user-1", report.ReporterID)
	}
	if report.Status != ReportStatusOpen {
		t.Errorf("Status = %q, want open", report.Status)
	}
	if report.CreatedAt.IsZero() || report.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}
	if report.Summary.SuggestedPriority != "High" {
		t.Errorf("SuggestedPriority = %q, want High", report.Summary.SuggestedPriority)
	}
}

func TestIssueReportResolve(t *testing.T) {
	report := NewIssueReport("user-1", "Leak", IssueSummary{})
	createdUpdatedAt := report.UpdatedAt

	report.Resolve()

	if report.Status != ReportStatusResolved {
		t.Errorf("Status = %q, want resolved", report.Status)
	}
	if !report.UpdatedAt.After(createdUpdatedAt) && !report.UpdatedAt.Equal(createdUpdatedAt) {
		t.Error("UpdatedAt went backwards")
	}
}

func TestIssueReportValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*IssueReport)
		wantErr bool
	}{
		{
			name:    "valid",
			mutate:  func(r *IssueReport) {},
			wantErr: false,
		},
		{
			name:    "missing reporter",
			mutate:  func(r *IssueReport) { r.ReporterID = "" },
			wantErr: true,
		},
		{
			name:    "missing title",
			mutate:  func(r *IssueReport) { r.Title = "" },
			wantErr: true,
		},
		{
			name:    "bogus status",
			mutate:  func(r *IssueReport) { r.Status = "archived" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := NewIssueReport("user-1", "Door stuck", IssueSummary{})
			tt.mutate(report)
			err := report.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCapturePhaseTerminal(t *testing.T) {
	terminal := []CapturePhase{CapturePhaseCompleted, CapturePhaseFailed}
	for _, phase := range terminal {
		if !phase.Terminal() {
			t.Errorf("%s.Terminal() = false, want true", phase)
		}
	}

	live := []CapturePhase{CapturePhaseIdle, CapturePhaseAuthorizing, CapturePhaseCapturing, CapturePhaseFinalizing}
	for _, phase := range live {
		if phase.Terminal() {
			t.Errorf("%s.Terminal() = true, want false", phase)
		}
	}
}
