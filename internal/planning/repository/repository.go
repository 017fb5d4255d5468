// Package repository persists projects, tasks, time logs and budget
// lines in sqlite. Money columns are stored as text and parsed into
// decimals; sums are computed in Go so amounts never go through
// floating point or lossy SQL aggregation.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fernandoirangph/pms-i/internal/budget"
	"github.com/fernandoirangph/pms-i/internal/planning"
	"github.com/fernandoirangph/pms-i/internal/status"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// Repository is the sqlite store behind both the planning service and
// the budget ledger. It satisfies planning.Repository and budget.Store.
type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(migrationsPath string) error {
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"sqlite",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

const projectColumns = `id, name, description, status, start_date, end_date, budget_ceiling, created_by, created_at, updated_at`

func scanProject(row interface{ Scan(...any) error }) (*planning.Project, error) {
	p := &planning.Project{}
	var start, end sql.NullTime
	var ceiling sql.NullString
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.ManualStatus,
		&start, &end, &ceiling, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if start.Valid {
		t := start.Time
		p.StartDate = &t
	}
	if end.Valid {
		t := end.Time
		p.EndDate = &t
	}
	if ceiling.Valid {
		p.BudgetCeiling, err = decimal.NewFromString(ceiling.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse budget ceiling for project %d: %w", p.ID, err)
		}
	}
	return p, nil
}

func (r *Repository) CreateProject(ctx context.Context, p *planning.Project) (int64, error) {
	var ceiling any
	if p.BudgetCeiling.IsPositive() {
		ceiling = p.BudgetCeiling.StringFixed(2)
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO projects (name, description, status, start_date, end_date, budget_ceiling, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.Name, p.Description, p.ManualStatus, p.StartDate, p.EndDate, ceiling, p.CreatedBy)
	if err != nil {
		return 0, fmt.Errorf("failed to insert project: %w", err)
	}
	return res.LastInsertId()
}

func (r *Repository) GetProject(ctx context.Context, id int64) (*planning.Project, error) {
	query := fmt.Sprintf(`SELECT %s FROM projects WHERE id = ?`, projectColumns)

	p, err := scanProject(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, planning.ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query project: %w", err)
	}
	return p, nil
}

func (r *Repository) Projects(ctx context.Context) ([]*planning.Project, error) {
	query := fmt.Sprintf(`SELECT %s FROM projects ORDER BY id`, projectColumns)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []*planning.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return projects, nil
}

func (r *Repository) SetProjectStatus(ctx context.Context, projectID int64, st status.Status) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE projects SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, st, projectID)
	if err != nil {
		return fmt.Errorf("failed to update project status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return planning.ErrProjectNotFound
	}
	return nil
}

const taskColumns = `id, project_id, title, description, status, priority, assigned_user_id, created_by, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (*planning.Task, error) {
	t := &planning.Task{}
	var assigned sql.NullInt64
	err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.ManualStatus,
		&t.Priority, &assigned, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if assigned.Valid {
		v := assigned.Int64
		t.AssignedUserID = &v
	}
	return t, nil
}

func (r *Repository) CreateTask(ctx context.Context, t *planning.Task) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO tasks (project_id, title, description, status, priority, assigned_user_id, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, t.ProjectID, t.Title, t.Description, t.ManualStatus, t.Priority, t.AssignedUserID, t.CreatedBy)
	if err != nil {
		return 0, fmt.Errorf("failed to insert task: %w", err)
	}
	return res.LastInsertId()
}

func (r *Repository) GetTask(ctx context.Context, id int64) (*planning.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE id = ?`, taskColumns)

	t, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, planning.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query task: %w", err)
	}
	return t, nil
}

func (r *Repository) SetTaskStatus(ctx context.Context, taskID int64, st status.Status) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, st, taskID)
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return planning.ErrTaskNotFound
	}
	return nil
}

const timeLogColumns = `id, task_id, user_id, start_time, end_time, description, created_at, updated_at`

func scanTimeLog(row interface{ Scan(...any) error }) (*planning.TimeLog, error) {
	l := &planning.TimeLog{}
	var start, end sql.NullTime
	err := row.Scan(&l.ID, &l.TaskID, &l.UserID, &start, &end, &l.Description, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if start.Valid {
		t := start.Time
		l.Start = &t
	}
	if end.Valid {
		t := end.Time
		l.End = &t
	}
	return l, nil
}

func (r *Repository) TimeLogForTask(ctx context.Context, taskID int64) (*planning.TimeLog, error) {
	query := fmt.Sprintf(`SELECT %s FROM time_logs WHERE task_id = ?`, timeLogColumns)

	l, err := scanTimeLog(r.db.QueryRowContext(ctx, query, taskID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, planning.ErrTimeLogNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query time log: %w", err)
	}
	return l, nil
}

// UpsertTimeLog writes the task's single time log. The unique index on
// task_id makes re-logging an update rather than a second row.
func (r *Repository) UpsertTimeLog(ctx context.Context, log *planning.TimeLog) (int64, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO time_logs (task_id, user_id, start_time, end_time, description)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			user_id = excluded.user_id,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			description = excluded.description,
			updated_at = CURRENT_TIMESTAMP
	`, log.TaskID, log.UserID, log.Start, log.End, log.Description)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert time log: %w", err)
	}

	var id int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT id FROM time_logs WHERE task_id = ?`, log.TaskID).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to read time log id: %w", err)
	}
	return id, nil
}

func (r *Repository) DeleteTimeLogForTask(ctx context.Context, taskID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM time_logs WHERE task_id = ?`, taskID)
	if err != nil {
		return fmt.Errorf("failed to delete time log: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return planning.ErrTimeLogNotFound
	}
	return nil
}

func (r *Repository) TasksWithLogs(ctx context.Context) ([]planning.TaskWithLog, error) {
	query := `
		SELECT t.id, t.project_id, t.title, t.description, t.status, t.priority,
		       t.assigned_user_id, t.created_by, t.created_at, t.updated_at,
		       l.id, l.user_id, l.start_time, l.end_time, l.description, l.created_at, l.updated_at
		FROM tasks t
		LEFT JOIN time_logs l ON l.task_id = t.id
		ORDER BY t.id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var out []planning.TaskWithLog
	for rows.Next() {
		t := &planning.Task{}
		var assigned sql.NullInt64
		var logID, logUserID sql.NullInt64
		var logStart, logEnd, logCreated, logUpdated sql.NullTime
		var logDesc sql.NullString

		err := rows.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.ManualStatus,
			&t.Priority, &assigned, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt,
			&logID, &logUserID, &logStart, &logEnd, &logDesc, &logCreated, &logUpdated)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		if assigned.Valid {
			v := assigned.Int64
			t.AssignedUserID = &v
		}

		pair := planning.TaskWithLog{Task: t}
		if logID.Valid {
			l := &planning.TimeLog{
				ID:          logID.Int64,
				TaskID:      t.ID,
				UserID:      logUserID.Int64,
				Description: logDesc.String,
				CreatedAt:   logCreated.Time,
				UpdatedAt:   logUpdated.Time,
			}
			if logStart.Valid {
				st := logStart.Time
				l.Start = &st
			}
			if logEnd.Valid {
				et := logEnd.Time
				l.End = &et
			}
			pair.Log = l
		}
		out = append(out, pair)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return out, nil
}

// ProjectCeiling reports the project's budget ceiling. A NULL or
// non-positive ceiling means no budget is allocated.
func (r *Repository) ProjectCeiling(ctx context.Context, projectID int64) (decimal.Decimal, bool, error) {
	var ceiling sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT budget_ceiling FROM projects WHERE id = ?`, projectID).Scan(&ceiling)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, false, budget.ErrProjectNotFound
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to query budget ceiling: %w", err)
	}

	if !ceiling.Valid {
		return decimal.Zero, false, nil
	}
	d, err := decimal.NewFromString(ceiling.String)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to parse budget ceiling for project %d: %w", projectID, err)
	}
	if !d.IsPositive() {
		return decimal.Zero, false, nil
	}
	return d, true, nil
}

// SumLines totals the project's line amounts in Go. The amounts are
// text in the database, so a SQL SUM would coerce them to floats.
func (r *Repository) SumLines(ctx context.Context, projectID, excludeLineID int64) (decimal.Decimal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT amount FROM budget_lines WHERE project_id = ? AND id != ?`, projectID, excludeLineID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query budget lines: %w", err)
	}
	defer rows.Close()

	sum := decimal.Zero
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan amount: %w", err)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to parse amount: %w", err)
		}
		sum = sum.Add(d)
	}

	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("row iteration error: %w", err)
	}

	return sum, nil
}

const lineColumns = `id, project_id, amount, description, created_at, updated_at`

func scanLine(row interface{ Scan(...any) error }) (*budget.Line, error) {
	l := &budget.Line{}
	var amount string
	err := row.Scan(&l.ID, &l.ProjectID, &amount, &l.Description, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	l.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount for line %d: %w", l.ID, err)
	}
	return l, nil
}

func (r *Repository) GetLine(ctx context.Context, lineID int64) (*budget.Line, error) {
	query := fmt.Sprintf(`SELECT %s FROM budget_lines WHERE id = ?`, lineColumns)

	l, err := scanLine(r.db.QueryRowContext(ctx, query, lineID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, budget.ErrLineNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query budget line: %w", err)
	}
	return l, nil
}

func (r *Repository) InsertLine(ctx context.Context, line *budget.Line) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO budget_lines (project_id, amount, description)
		VALUES (?, ?, ?)
	`, line.ProjectID, line.Amount.StringFixed(2), line.Description)
	if err != nil {
		return 0, fmt.Errorf("failed to insert budget line: %w", err)
	}
	return res.LastInsertId()
}

func (r *Repository) UpdateLine(ctx context.Context, line *budget.Line) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE budget_lines
		SET amount = ?, description = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, line.Amount.StringFixed(2), line.Description, line.ID)
	if err != nil {
		return fmt.Errorf("failed to update budget line: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return budget.ErrLineNotFound
	}
	return nil
}

func (r *Repository) DeleteLine(ctx context.Context, lineID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budget_lines WHERE id = ?`, lineID)
	if err != nil {
		return fmt.Errorf("failed to delete budget line: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return budget.ErrLineNotFound
	}
	return nil
}

func (r *Repository) ListLines(ctx context.Context, projectID int64) ([]*budget.Line, error) {
	query := fmt.Sprintf(`SELECT %s FROM budget_lines WHERE project_id = ? ORDER BY id`, lineColumns)

	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query budget lines: %w", err)
	}
	defer rows.Close()

	var lines []*budget.Line
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan budget line: %w", err)
		}
		lines = append(lines, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return lines, nil
}
