package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"praxis/internal/database"
	"praxis/internal/models"
)

// SQL implements all store interfaces on top of database.DB (MySQL or SQLite).
// Timestamps are stored as unix microseconds so ordering and equality are
// identical across both backends.
type SQL struct {
	db *database.DB
}

// NewSQL creates a SQL-backed store
func NewSQL(db *database.DB) *SQL {
	return &SQL{db: db}
}

func toMicros(t time.Time) int64 {
	return t.UTC().UnixMicro()
}

func fromMicros(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}

// execer is satisfied by both database.DB and sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Append implements LedgerStore
func (s *SQL) Append(ctx context.Context, ev *models.UsageEvent) error {
	return s.insertEvent(ctx, s.db, ev)
}

func (s *SQL) insertEvent(ctx context.Context, e execer, ev *models.UsageEvent) error {
	_, err := e.ExecContext(ctx, `
		INSERT INTO usage_events (
			id, task_id, solution_id, user_id, user_role, ts,
			before_output, before_cost, before_synergy,
			after_output, after_cost, after_synergy,
			duration_minutes, effectiveness_score, value_growth
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.TaskID, ev.SolutionID, ev.UserID, ev.UserRole, toMicros(ev.Timestamp),
		ev.Before.Output, ev.Before.Cost, ev.Before.Synergy,
		ev.After.Output, ev.After.Cost, ev.After.Synergy,
		ev.DurationMinutes, ev.EffectivenessScore, ev.ValueGrowth,
	)
	if err != nil {
		return fmt.Errorf("failed to append usage event: %w", err)
	}
	return nil
}

const eventColumns = `id, task_id, solution_id, user_id, user_role, ts,
	before_output, before_cost, before_synergy,
	after_output, after_cost, after_synergy,
	duration_minutes, effectiveness_score, value_growth`

func scanEvents(rows *sql.Rows) ([]models.UsageEvent, error) {
	var out []models.UsageEvent
	for rows.Next() {
		var ev models.UsageEvent
		var ts int64
		if err := rows.Scan(
			&ev.ID, &ev.TaskID, &ev.SolutionID, &ev.UserID, &ev.UserRole, &ts,
			&ev.Before.Output, &ev.Before.Cost, &ev.Before.Synergy,
			&ev.After.Output, &ev.After.Cost, &ev.After.Synergy,
			&ev.DurationMinutes, &ev.EffectivenessScore, &ev.ValueGrowth,
		); err != nil {
			return nil, fmt.Errorf("failed to scan usage event: %w", err)
		}
		ev.Timestamp = fromMicros(ts)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Window implements LedgerStore
func (s *SQL) Window(ctx context.Context, start, end time.Time) ([]models.UsageEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM usage_events
		WHERE ts >= ? AND ts <= ?
		ORDER BY ts, id`,
		toMicros(start), toMicros(end),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ByUser implements LedgerStore
func (s *SQL) ByUser(ctx context.Context, userID string) ([]models.UsageEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM usage_events
		WHERE user_id = ?
		ORDER BY ts, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// Count implements LedgerStore
func (s *SQL) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM usage_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count usage events: %w", err)
	}
	return n, nil
}

// Get implements StatsStore
func (s *SQL) Get(ctx context.Context, solutionID string) (*models.SolutionStats, error) {
	var st models.SolutionStats
	var first, last int64
	err := s.db.QueryRowContext(ctx, `
		SELECT solution_id, task_id, usage_count, cumulative_score, cumulative_value_growth, first_used_at, last_used_at
		FROM solution_stats
		WHERE solution_id = ?`,
		solutionID,
	).Scan(&st.SolutionID, &st.TaskID, &st.UsageCount, &st.CumulativeScore, &st.CumulativeValueGrowth, &first, &last)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query solution stats: %w", err)
	}
	st.FirstUsedAt = fromMicros(first)
	st.LastUsedAt = fromMicros(last)
	s.deriveAverages(&st)

	if err := s.loadContributors(ctx, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *SQL) deriveAverages(st *models.SolutionStats) {
	if st.UsageCount > 0 {
		st.AverageScore = st.CumulativeScore / float64(st.UsageCount)
		st.AverageValueGrowth = st.CumulativeValueGrowth / float64(st.UsageCount)
	}
}

func (s *SQL) loadContributors(ctx context.Context, st *models.SolutionStats) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM solution_contributors WHERE solution_id = ?`, st.SolutionID)
	if err != nil {
		return fmt.Errorf("failed to query contributors: %w", err)
	}
	defer rows.Close()

	st.Contributors = make(map[string]bool)
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return fmt.Errorf("failed to scan contributor: %w", err)
		}
		st.Contributors[userID] = true
	}
	return rows.Err()
}

// Put implements StatsStore
func (s *SQL) Put(ctx context.Context, st *models.SolutionStats) error {
	return s.upsertStats(ctx, s.db, st)
}

func (s *SQL) upsertStats(ctx context.Context, e execer, st *models.SolutionStats) error {
	// REPLACE INTO is supported by both MySQL and SQLite
	_, err := e.ExecContext(ctx, `
		REPLACE INTO solution_stats (
			solution_id, task_id, usage_count, cumulative_score, cumulative_value_growth, first_used_at, last_used_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		st.SolutionID, st.TaskID, st.UsageCount, st.CumulativeScore, st.CumulativeValueGrowth,
		toMicros(st.FirstUsedAt), toMicros(st.LastUsedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert solution stats: %w", err)
	}

	for userID := range st.Contributors {
		if err := s.addContributor(ctx, e, st.SolutionID, userID); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQL) addContributor(ctx context.Context, e execer, solutionID, userID string) error {
	stmt := `INSERT IGNORE INTO solution_contributors (solution_id, user_id) VALUES (?, ?)`
	if s.db.Dialect == database.DialectSQLite {
		stmt = `INSERT OR IGNORE INTO solution_contributors (solution_id, user_id) VALUES (?, ?)`
	}
	if _, err := e.ExecContext(ctx, stmt, solutionID, userID); err != nil {
		return fmt.Errorf("failed to upsert contributor: %w", err)
	}
	return nil
}

// Record implements Recorder: the event append and the stats fold commit or
// roll back together, so the ledger and solution_stats cannot diverge.
func (s *SQL) Record(ctx context.Context, ev *models.UsageEvent, st *models.SolutionStats) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.insertEvent(ctx, tx, ev); err != nil {
		return err
	}
	if err := s.upsertStats(ctx, tx, st); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQL) queryStats(ctx context.Context, where string, args ...interface{}) ([]models.SolutionStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT solution_id, task_id, usage_count, cumulative_score, cumulative_value_growth, first_used_at, last_used_at
		FROM solution_stats `+where+` ORDER BY solution_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query solution stats: %w", err)
	}
	defer rows.Close()

	var out []models.SolutionStats
	for rows.Next() {
		var st models.SolutionStats
		var first, last int64
		if err := rows.Scan(&st.SolutionID, &st.TaskID, &st.UsageCount, &st.CumulativeScore, &st.CumulativeValueGrowth, &first, &last); err != nil {
			return nil, fmt.Errorf("failed to scan solution stats: %w", err)
		}
		st.FirstUsedAt = fromMicros(first)
		st.LastUsedAt = fromMicros(last)
		s.deriveAverages(&st)
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if err := s.loadContributors(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ByTask implements StatsStore
func (s *SQL) ByTask(ctx context.Context, taskID string) ([]models.SolutionStats, error) {
	return s.queryStats(ctx, "WHERE task_id = ?", taskID)
}

// All implements StatsStore
func (s *SQL) All(ctx context.Context) ([]models.SolutionStats, error) {
	return s.queryStats(ctx, "")
}

// MaxUsageCount implements StatsStore
func (s *SQL) MaxUsageCount(ctx context.Context) (int64, error) {
	var max sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(usage_count) FROM solution_stats`).Scan(&max); err != nil {
		return 0, fmt.Errorf("failed to query max usage count: %w", err)
	}
	return max.Int64, nil
}

// sqlStandardStore implements StandardStore
type sqlStandardStore struct{ s *SQL }

// Standards returns the SQL store viewed as a StandardStore
func (s *SQL) Standards() StandardStore {
	return sqlStandardStore{s}
}

func (ss sqlStandardStore) Get(ctx context.Context, taskID string) (*models.StandardRecord, error) {
	var rec models.StandardRecord
	var at int64
	err := ss.s.db.QueryRowContext(ctx, `
		SELECT task_id, solution_id, standardized_at,
			snap_usage_count, snap_average_score, snap_average_value_growth, snap_distinct_contributors
		FROM standard_records WHERE task_id = ?`, taskID,
	).Scan(&rec.TaskID, &rec.SolutionID, &at,
		&rec.Snapshot.UsageCount, &rec.Snapshot.AverageScore, &rec.Snapshot.AverageValueGrowth, &rec.Snapshot.DistinctContributors)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query standard record: %w", err)
	}
	rec.StandardizedAt = fromMicros(at)
	return &rec, nil
}

func (ss sqlStandardStore) Put(ctx context.Context, rec *models.StandardRecord) error {
	_, err := ss.s.db.ExecContext(ctx, `
		REPLACE INTO standard_records (
			task_id, solution_id, standardized_at,
			snap_usage_count, snap_average_score, snap_average_value_growth, snap_distinct_contributors
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.TaskID, rec.SolutionID, toMicros(rec.StandardizedAt),
		rec.Snapshot.UsageCount, rec.Snapshot.AverageScore, rec.Snapshot.AverageValueGrowth, rec.Snapshot.DistinctContributors,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert standard record: %w", err)
	}
	return nil
}

func (ss sqlStandardStore) All(ctx context.Context) ([]models.StandardRecord, error) {
	rows, err := ss.s.db.QueryContext(ctx, `
		SELECT task_id, solution_id, standardized_at,
			snap_usage_count, snap_average_score, snap_average_value_growth, snap_distinct_contributors
		FROM standard_records ORDER BY task_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query standard records: %w", err)
	}
	defer rows.Close()

	var out []models.StandardRecord
	for rows.Next() {
		var rec models.StandardRecord
		var at int64
		if err := rows.Scan(&rec.TaskID, &rec.SolutionID, &at,
			&rec.Snapshot.UsageCount, &rec.Snapshot.AverageScore, &rec.Snapshot.AverageValueGrowth, &rec.Snapshot.DistinctContributors); err != nil {
			return nil, fmt.Errorf("failed to scan standard record: %w", err)
		}
		rec.StandardizedAt = fromMicros(at)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (ss sqlStandardStore) AppendTransition(ctx context.Context, tr *models.StandardTransition) error {
	_, err := ss.s.db.ExecContext(ctx, `
		INSERT INTO standard_history (
			id, task_id, from_solution_id, to_solution_id, occurred_at, affected_users,
			snap_usage_count, snap_average_score, snap_average_value_growth, snap_distinct_contributors
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tr.ID, tr.TaskID, tr.FromSolutionID, tr.ToSolutionID, toMicros(tr.OccurredAt), tr.AffectedUsers,
		tr.Snapshot.UsageCount, tr.Snapshot.AverageScore, tr.Snapshot.AverageValueGrowth, tr.Snapshot.DistinctContributors,
	)
	if err != nil {
		return fmt.Errorf("failed to append standard transition: %w", err)
	}
	return nil
}

func (ss sqlStandardStore) History(ctx context.Context, taskID string) ([]models.StandardTransition, error) {
	rows, err := ss.s.db.QueryContext(ctx, `
		SELECT id, task_id, from_solution_id, to_solution_id, occurred_at, affected_users,
			snap_usage_count, snap_average_score, snap_average_value_growth, snap_distinct_contributors
		FROM standard_history WHERE task_id = ? ORDER BY occurred_at, id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query standard history: %w", err)
	}
	defer rows.Close()

	var out []models.StandardTransition
	for rows.Next() {
		var tr models.StandardTransition
		var at int64
		if err := rows.Scan(&tr.ID, &tr.TaskID, &tr.FromSolutionID, &tr.ToSolutionID, &at, &tr.AffectedUsers,
			&tr.Snapshot.UsageCount, &tr.Snapshot.AverageScore, &tr.Snapshot.AverageValueGrowth, &tr.Snapshot.DistinctContributors); err != nil {
			return nil, fmt.Errorf("failed to scan standard transition: %w", err)
		}
		tr.OccurredAt = fromMicros(at)
		out = append(out, tr)
	}
	return out, rows.Err()
}

// sqlDistributionStore implements DistributionStore
type sqlDistributionStore struct{ s *SQL }

// Distributions returns the SQL store viewed as a DistributionStore
func (s *SQL) Distributions() DistributionStore {
	return sqlDistributionStore{s}
}

func (ds sqlDistributionStore) Save(ctx context.Context, d *models.Distribution) error {
	db := ds.s.db
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO distributions (
			id, total_reward_pool, window_start, window_end, ran_at, event_count, total_weighted_score, rounding_loss
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.TotalRewardPool, toMicros(d.WindowStart), toMicros(d.WindowEnd), toMicros(d.RanAt),
		d.EventCount, d.TotalWeightedScore, d.RoundingLoss,
	); err != nil {
		return fmt.Errorf("failed to insert distribution: %w", err)
	}

	for i, sh := range d.Shares {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO distribution_shares (
				distribution_id, position, user_id, user_role, log_count, total_score,
				standard_contributions, weighted_score, contribution_percent, reward
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID, i, sh.UserID, sh.UserRole, sh.LogCount, sh.TotalScore,
			sh.StandardContributions, sh.WeightedScore, sh.ContributionPercent, sh.Reward,
		); err != nil {
			return fmt.Errorf("failed to insert distribution share: %w", err)
		}
	}

	return tx.Commit()
}

func (ds sqlDistributionStore) Get(ctx context.Context, id string) (*models.Distribution, error) {
	var d models.Distribution
	var start, end, ranAt int64
	err := ds.s.db.QueryRowContext(ctx, `
		SELECT id, total_reward_pool, window_start, window_end, ran_at, event_count, total_weighted_score, rounding_loss
		FROM distributions WHERE id = ?`, id,
	).Scan(&d.ID, &d.TotalRewardPool, &start, &end, &ranAt, &d.EventCount, &d.TotalWeightedScore, &d.RoundingLoss)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query distribution: %w", err)
	}
	d.WindowStart = fromMicros(start)
	d.WindowEnd = fromMicros(end)
	d.RanAt = fromMicros(ranAt)

	rows, err := ds.s.db.QueryContext(ctx, `
		SELECT user_id, user_role, log_count, total_score, standard_contributions, weighted_score, contribution_percent, reward
		FROM distribution_shares WHERE distribution_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query distribution shares: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sh models.ContributorShare
		if err := rows.Scan(&sh.UserID, &sh.UserRole, &sh.LogCount, &sh.TotalScore,
			&sh.StandardContributions, &sh.WeightedScore, &sh.ContributionPercent, &sh.Reward); err != nil {
			return nil, fmt.Errorf("failed to scan distribution share: %w", err)
		}
		d.Shares = append(d.Shares, sh)
	}
	return &d, rows.Err()
}
