package projectdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsProjectRelated(t *testing.T) {
	tests := []struct {
		message string
		want    bool
	}{
		{"What's the progress on the billing project?", true},
		{"List my open tasks", true},
		{"When does the sprint end?", true},
		{"Any blocking issues?", true},
		{"프로젝트 진행 현황 알려줘", true},
		{"이번 스프린트 일정은?", true},
		{"Hello there", false},
		{"Tell me a joke", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.want, IsProjectRelated(tt.message))
		})
	}
}

func TestExtractProjectID(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
		found   bool
	}{
		{"uuid", "status of 3F2504E0-4F89-11D3-9A0C-0305E82C3301 please", "3f2504e0-4f89-11d3-9a0c-0305e82c3301", true},
		{"prj code", "how is prj-042 doing", "PRJ-042", true},
		{"proj code", "PROJ-2026-01 progress", "PROJ-2026-01", true},
		{"uuid wins", "PRJ-1 vs 3f2504e0-4f89-11d3-9a0c-0305e82c3301", "3f2504e0-4f89-11d3-9a0c-0305e82c3301", true},
		{"none", "how are all projects doing", "", false},
		{"embedded word", "myPRJ-1", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractProjectID(tt.message)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatProjectSummary(t *testing.T) {
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
	sprintEnd := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	got := formatProjectSummary(
		projectRow{ID: "PRJ-001", Name: "Claims Portal", Status: "IN_PROGRESS", Progress: 45, StartDate: &start, EndDate: &end},
		&sprintRow{Name: "Sprint 5", Goal: "Payment integration", EndDate: &sprintEnd},
		[]statusCount{{"DONE", 12}, {"IN_PROGRESS", 4}, {"TODO", 9}},
	)

	want := "Project: Claims Portal (PRJ-001)\n" +
		"Status: IN_PROGRESS\n" +
		"Progress: 45%\n" +
		"Schedule: 2026-01-05 ~ 2026-06-30\n" +
		"Current sprint: Sprint 5 (ends 2026-03-14)\n" +
		"Sprint goal: Payment integration\n" +
		"Tasks: 25 total (DONE 12, IN_PROGRESS 4, TODO 9)"
	assert.Equal(t, want, got)
}

func TestFormatProjectSummary_Minimal(t *testing.T) {
	got := formatProjectSummary(projectRow{ID: "p1", Name: "Intranet", Status: "PLANNING"}, nil, nil)
	assert.Equal(t, "Project: Intranet (p1)\nStatus: PLANNING\nProgress: 0%", got)
}

func TestFormatAllProjects(t *testing.T) {
	assert.Equal(t, "No projects found.", formatAllProjects(nil))

	got := formatAllProjects([]projectRow{
		{ID: "PRJ-002", Name: "Mobile App", Status: "IN_PROGRESS", Progress: 70},
		{ID: "PRJ-001", Name: "Claims Portal", Status: "PLANNING", Progress: 5},
	})
	assert.Equal(t, "Projects (2):\n- Mobile App (PRJ-002): IN_PROGRESS, 70% complete\n- Claims Portal (PRJ-001): PLANNING, 5% complete", got)
}
