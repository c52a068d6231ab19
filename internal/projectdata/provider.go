// Package projectdata supplies project, sprint and task summaries that ground
// chat replies about project status.
package projectdata

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const maxProjectsInSummary = 20

var (
	englishKeywords = []string{"project", "progress", "sprint", "task", "schedule", "issue", "milestone", "deadline", "backlog"}
	koreanKeywords  = []string{"프로젝트", "진행", "스프린트", "태스크", "일정", "이슈", "마일스톤", "현황"}

	uuidPattern = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`)
	codePattern = regexp.MustCompile(`(?i)\b(?:PRJ|PROJ)-[A-Z0-9]+(?:-[A-Z0-9]+)*\b`)
)

// IsProjectRelated reports whether message asks about project data.
func IsProjectRelated(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range koreanKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}

	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		for _, kw := range englishKeywords {
			// Prefix match covers plurals such as "tasks" and "sprints".
			if strings.HasPrefix(w, kw) {
				return true
			}
		}
	}
	return false
}

// ExtractProjectID finds a project UUID or PRJ-/PROJ- code in message.
func ExtractProjectID(message string) (string, bool) {
	if id := uuidPattern.FindString(message); id != "" {
		return strings.ToLower(id), true
	}
	if code := codePattern.FindString(message); code != "" {
		return strings.ToUpper(code), true
	}
	return "", false
}

// PostgresProvider reads project data from the PMS database.
type PostgresProvider struct {
	pool *pgxpool.Pool
}

func NewPostgresProvider(pool *pgxpool.Pool) *PostgresProvider {
	return &PostgresProvider{pool: pool}
}

// ProjectContext returns a summary for project-related messages: the named
// project when one is mentioned and exists, otherwise every project.
func (p *PostgresProvider) ProjectContext(ctx context.Context, message string) (string, error) {
	if !IsProjectRelated(message) {
		return "", nil
	}

	logger := zerolog.Ctx(ctx)
	if id, ok := ExtractProjectID(message); ok {
		summary, err := p.ProjectSummary(ctx, id)
		if err == nil {
			logger.Info().Str("project_id", id).Msg("loaded project data")
			return summary, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return "", err
		}
		logger.Debug().Str("project_id", id).Msg("mentioned project not found, summarizing all projects")
	}

	summary, err := p.AllProjectsSummary(ctx)
	if err != nil {
		return "", err
	}
	logger.Info().Msg("loaded all projects data")
	return summary, nil
}

type projectRow struct {
	ID        string
	Name      string
	Status    string
	Progress  int
	StartDate *time.Time
	EndDate   *time.Time
}

type sprintRow struct {
	Name    string
	Goal    string
	EndDate *time.Time
}

type statusCount struct {
	Status string
	Count  int
}

// ProjectSummary describes one project. It returns pgx.ErrNoRows when the
// project does not exist.
func (p *PostgresProvider) ProjectSummary(ctx context.Context, projectID string) (string, error) {
	var proj projectRow
	err := p.pool.QueryRow(ctx,
		`SELECT id, name, status, progress, start_date, end_date FROM projects WHERE lower(id) = lower($1)`,
		projectID,
	).Scan(&proj.ID, &proj.Name, &proj.Status, &proj.Progress, &proj.StartDate, &proj.EndDate)
	if err != nil {
		return "", err
	}

	var sprint *sprintRow
	var s sprintRow
	err = p.pool.QueryRow(ctx,
		`SELECT name, goal, end_date FROM sprints
		WHERE project_id = $1 AND status = 'ACTIVE'
		ORDER BY start_date DESC NULLS LAST LIMIT 1`,
		proj.ID,
	).Scan(&s.Name, &s.Goal, &s.EndDate)
	switch {
	case err == nil:
		sprint = &s
	case !errors.Is(err, pgx.ErrNoRows):
		return "", fmt.Errorf("failed to load active sprint: %w", err)
	}

	rows, err := p.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM tasks WHERE project_id = $1 GROUP BY status ORDER BY status`, proj.ID)
	if err != nil {
		return "", fmt.Errorf("failed to count tasks: %w", err)
	}
	defer rows.Close()

	var counts []statusCount
	for rows.Next() {
		var c statusCount
		if err := rows.Scan(&c.Status, &c.Count); err != nil {
			return "", err
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	return formatProjectSummary(proj, sprint, counts), nil
}

// AllProjectsSummary lists the most recent projects, one line each.
func (p *PostgresProvider) AllProjectsSummary(ctx context.Context) (string, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, name, status, progress, start_date, end_date FROM projects
		ORDER BY created_at DESC LIMIT $1`, maxProjectsInSummary)
	if err != nil {
		return "", fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []projectRow
	for rows.Next() {
		var proj projectRow
		if err := rows.Scan(&proj.ID, &proj.Name, &proj.Status, &proj.Progress, &proj.StartDate, &proj.EndDate); err != nil {
			return "", err
		}
		projects = append(projects, proj)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	return formatAllProjects(projects), nil
}

func formatProjectSummary(proj projectRow, sprint *sprintRow, counts []statusCount) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s (%s)\n", proj.Name, proj.ID)
	fmt.Fprintf(&b, "Status: %s\n", proj.Status)
	fmt.Fprintf(&b, "Progress: %d%%\n", proj.Progress)
	if proj.StartDate != nil || proj.EndDate != nil {
		fmt.Fprintf(&b, "Schedule: %s ~ %s\n", formatDate(proj.StartDate), formatDate(proj.EndDate))
	}

	if sprint != nil {
		fmt.Fprintf(&b, "Current sprint: %s", sprint.Name)
		if sprint.EndDate != nil {
			fmt.Fprintf(&b, " (ends %s)", formatDate(sprint.EndDate))
		}
		b.WriteString("\n")
		if sprint.Goal != "" {
			fmt.Fprintf(&b, "Sprint goal: %s\n", sprint.Goal)
		}
	}

	if len(counts) > 0 {
		total := 0
		parts := make([]string, len(counts))
		for i, c := range counts {
			total += c.Count
			parts[i] = fmt.Sprintf("%s %d", c.Status, c.Count)
		}
		fmt.Fprintf(&b, "Tasks: %d total (%s)\n", total, strings.Join(parts, ", "))
	}

	return strings.TrimRight(b.String(), "\n")
}

func formatAllProjects(projects []projectRow) string {
	if len(projects) == 0 {
		return "No projects found."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Projects (%d):\n", len(projects))
	for _, proj := range projects {
		fmt.Fprintf(&b, "- %s (%s): %s, %d%% complete\n", proj.Name, proj.ID, proj.Status, proj.Progress)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "?"
	}
	return t.Format("2006-01-02")
}
