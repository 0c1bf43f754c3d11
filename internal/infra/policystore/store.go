// Package policystore persists per-tenant policy overrides in PostgreSQL.
// Rows hold nullable columns: NULL means the tenant defers to the global
// config for that field, mirroring the override chain in core/policy.
package policystore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Use pgx via database/sql
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/surecall-ai/surecall/internal/core/policy"
)

// Config holds PostgreSQL connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// Store wraps the PostgreSQL connection.
type Store struct {
	db  *sqlx.DB
	log *slog.Logger
}

// New creates a new database connection.
func New(ctx context.Context, cfg Config) (*Store, error) {
	db, err := sqlx.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	} else {
		db.SetMaxOpenConns(10)
	}
	if cfg.MinConns > 0 {
		db.SetMaxIdleConns(cfg.MinConns)
	} else {
		db.SetMaxIdleConns(2)
	}
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		db:  db,
		log: slog.Default().With("component", "policystore"),
	}, nil
}

// Migrate applies pending goose migrations from dir.
func (s *Store) Migrate(dir string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.Up(s.db.DB, dir); err != nil {
		return fmt.Errorf("failed to migrate db: %w", err)
	}
	return nil
}

// Health checks if the database is healthy.
func (s *Store) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// tenantPolicyRow mirrors the tenant_policies table. Durations are stored as
// integer milliseconds or seconds so rows stay readable in psql.
type tenantPolicyRow struct {
	TenantID            string          `db:"tenant_id"`
	FallbackModels      pq.StringArray  `db:"fallback_models"`
	MaxRetries          sql.NullInt64   `db:"max_retries"`
	BackoffStrategy     sql.NullString  `db:"backoff_strategy"`
	BackoffBaseMs       sql.NullInt64   `db:"backoff_base_ms"`
	BackoffMaxMs        sql.NullInt64   `db:"backoff_max_ms"`
	RetryablePatterns   pq.StringArray  `db:"retryable_patterns"`
	BreakerThreshold    sql.NullInt64   `db:"breaker_threshold"`
	BreakerWindowSecs   sql.NullInt64   `db:"breaker_window_secs"`
	BreakerCooldownSecs sql.NullInt64   `db:"breaker_cooldown_secs"`
	BudgetEnforcement   sql.NullString  `db:"budget_enforcement"`
	GlobalDailyUSD      sql.NullFloat64 `db:"global_daily_usd"`
	GlobalMonthlyUSD    sql.NullFloat64 `db:"global_monthly_usd"`
	CallerDailyUSD      sql.NullFloat64 `db:"caller_daily_usd"`
	CallerMonthlyUSD    sql.NullFloat64 `db:"caller_monthly_usd"`
	GlobalDailyTokens   sql.NullInt64   `db:"global_daily_tokens"`
	GlobalMonthlyTokens sql.NullInt64   `db:"global_monthly_tokens"`
	TotalTimeoutMs      sql.NullInt64   `db:"total_timeout_ms"`
	UpdatedAt           time.Time       `db:"updated_at"`
}

const policyColumns = `tenant_id, fallback_models, max_retries, backoff_strategy,
	backoff_base_ms, backoff_max_ms, retryable_patterns,
	breaker_threshold, breaker_window_secs, breaker_cooldown_secs,
	budget_enforcement, global_daily_usd, global_monthly_usd,
	caller_daily_usd, caller_monthly_usd, global_daily_tokens,
	global_monthly_tokens, total_timeout_ms, updated_at`

// LoadAll retrieves every tenant's overrides, keyed by tenant ID.
func (s *Store) LoadAll(ctx context.Context) (map[string]policy.Overrides, error) {
	var rows []tenantPolicyRow
	query := fmt.Sprintf(`SELECT %s FROM tenant_policies`, policyColumns)
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to load tenant policies: %w", err)
	}

	out := make(map[string]policy.Overrides, len(rows))
	for _, r := range rows {
		out[r.TenantID] = r.overrides()
	}
	s.log.Info("loaded tenant policies", "count", len(out))
	return out, nil
}

// Get retrieves one tenant's overrides, or nil when the tenant has none.
func (s *Store) Get(ctx context.Context, tenantID string) (*policy.Overrides, error) {
	var row tenantPolicyRow
	query := fmt.Sprintf(`SELECT %s FROM tenant_policies WHERE tenant_id = $1`, policyColumns)
	err := s.db.GetContext(ctx, &row, query, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant policy: %w", err)
	}
	o := row.overrides()
	return &o, nil
}

// Upsert writes a tenant's overrides, replacing any existing row.
func (s *Store) Upsert(ctx context.Context, tenantID string, o policy.Overrides) error {
	row := rowFrom(tenantID, o)
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO tenant_policies (
			tenant_id, fallback_models, max_retries, backoff_strategy,
			backoff_base_ms, backoff_max_ms, retryable_patterns,
			breaker_threshold, breaker_window_secs, breaker_cooldown_secs,
			budget_enforcement, global_daily_usd, global_monthly_usd,
			caller_daily_usd, caller_monthly_usd, global_daily_tokens,
			global_monthly_tokens, total_timeout_ms, updated_at
		) VALUES (
			:tenant_id, :fallback_models, :max_retries, :backoff_strategy,
			:backoff_base_ms, :backoff_max_ms, :retryable_patterns,
			:breaker_threshold, :breaker_window_secs, :breaker_cooldown_secs,
			:budget_enforcement, :global_daily_usd, :global_monthly_usd,
			:caller_daily_usd, :caller_monthly_usd, :global_daily_tokens,
			:global_monthly_tokens, :total_timeout_ms, now()
		)
		ON CONFLICT (tenant_id) DO UPDATE SET
			fallback_models       = EXCLUDED.fallback_models,
			max_retries           = EXCLUDED.max_retries,
			backoff_strategy      = EXCLUDED.backoff_strategy,
			backoff_base_ms       = EXCLUDED.backoff_base_ms,
			backoff_max_ms        = EXCLUDED.backoff_max_ms,
			retryable_patterns    = EXCLUDED.retryable_patterns,
			breaker_threshold     = EXCLUDED.breaker_threshold,
			breaker_window_secs   = EXCLUDED.breaker_window_secs,
			breaker_cooldown_secs = EXCLUDED.breaker_cooldown_secs,
			budget_enforcement    = EXCLUDED.budget_enforcement,
			global_daily_usd      = EXCLUDED.global_daily_usd,
			global_monthly_usd    = EXCLUDED.global_monthly_usd,
			caller_daily_usd      = EXCLUDED.caller_daily_usd,
			caller_monthly_usd    = EXCLUDED.caller_monthly_usd,
			global_daily_tokens   = EXCLUDED.global_daily_tokens,
			global_monthly_tokens = EXCLUDED.global_monthly_tokens,
			total_timeout_ms      = EXCLUDED.total_timeout_ms,
			updated_at            = now()
	`, row)
	if err != nil {
		return fmt.Errorf("failed to upsert tenant policy: %w", err)
	}
	return nil
}

// Delete removes a tenant's overrides, reverting it to the global policy.
func (s *Store) Delete(ctx context.Context, tenantID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tenant_policies WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete tenant policy: %w", err)
	}
	return nil
}

// overrides maps a row onto the override chain. A sub-block is only present
// when at least one of its columns is set, since block presence is what
// enables the breaker and budget components downstream.
func (r tenantPolicyRow) overrides() policy.Overrides {
	var o policy.Overrides
	if len(r.FallbackModels) > 0 {
		o.Fallbacks = []string(r.FallbackModels)
	}
	o.TotalTimeout = millisPtr(r.TotalTimeoutMs)

	retry := policy.RetryOverrides{
		MaxRetries: intPtr(r.MaxRetries),
		Strategy:   stringPtr(r.BackoffStrategy),
		Base:       millisPtr(r.BackoffBaseMs),
		MaxDelay:   millisPtr(r.BackoffMaxMs),
	}
	if len(r.RetryablePatterns) > 0 {
		retry.RetryablePatterns = []string(r.RetryablePatterns)
	}
	if retry.MaxRetries != nil || retry.Strategy != nil || retry.Base != nil ||
		retry.MaxDelay != nil || retry.RetryablePatterns != nil {
		o.Retry = &retry
	}

	breaker := policy.BreakerOverrides{
		Threshold: intPtr(r.BreakerThreshold),
		Within:    secsPtr(r.BreakerWindowSecs),
		Cooldown:  secsPtr(r.BreakerCooldownSecs),
	}
	if breaker != (policy.BreakerOverrides{}) {
		o.Breaker = &breaker
	}

	budget := policy.BudgetOverrides{
		Enforcement:         stringPtr(r.BudgetEnforcement),
		GlobalDailyUSD:      floatPtr(r.GlobalDailyUSD),
		GlobalMonthlyUSD:    floatPtr(r.GlobalMonthlyUSD),
		CallerDailyUSD:      floatPtr(r.CallerDailyUSD),
		CallerMonthlyUSD:    floatPtr(r.CallerMonthlyUSD),
		GlobalDailyTokens:   int64Ptr(r.GlobalDailyTokens),
		GlobalMonthlyTokens: int64Ptr(r.GlobalMonthlyTokens),
	}
	if budget != (policy.BudgetOverrides{}) {
		o.Budget = &budget
	}
	return o
}

func rowFrom(tenantID string, o policy.Overrides) tenantPolicyRow {
	r := tenantPolicyRow{
		TenantID:       tenantID,
		FallbackModels: pq.StringArray(o.Fallbacks),
		TotalTimeoutMs: nullMillis(o.TotalTimeout),
	}
	if o.Retry != nil {
		r.MaxRetries = nullInt(o.Retry.MaxRetries)
		r.BackoffStrategy = nullString(o.Retry.Strategy)
		r.BackoffBaseMs = nullMillis(o.Retry.Base)
		r.BackoffMaxMs = nullMillis(o.Retry.MaxDelay)
		r.RetryablePatterns = pq.StringArray(o.Retry.RetryablePatterns)
	}
	if o.Breaker != nil {
		r.BreakerThreshold = nullInt(o.Breaker.Threshold)
		r.BreakerWindowSecs = nullSecs(o.Breaker.Within)
		r.BreakerCooldownSecs = nullSecs(o.Breaker.Cooldown)
	}
	if o.Budget != nil {
		r.BudgetEnforcement = nullString(o.Budget.Enforcement)
		r.GlobalDailyUSD = nullFloat(o.Budget.GlobalDailyUSD)
		r.GlobalMonthlyUSD = nullFloat(o.Budget.GlobalMonthlyUSD)
		r.CallerDailyUSD = nullFloat(o.Budget.CallerDailyUSD)
		r.CallerMonthlyUSD = nullFloat(o.Budget.CallerMonthlyUSD)
		r.GlobalDailyTokens = nullInt64(o.Budget.GlobalDailyTokens)
		r.GlobalMonthlyTokens = nullInt64(o.Budget.GlobalMonthlyTokens)
	}
	return r
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func stringPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}

func millisPtr(n sql.NullInt64) *time.Duration {
	if !n.Valid {
		return nil
	}
	d := time.Duration(n.Int64) * time.Millisecond
	return &d
}

func secsPtr(n sql.NullInt64) *time.Duration {
	if !n.Valid {
		return nil
	}
	d := time.Duration(n.Int64) * time.Second
	return &d
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func nullMillis(p *time.Duration) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: p.Milliseconds(), Valid: true}
}

func nullSecs(p *time.Duration) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(p.Seconds()), Valid: true}
}
