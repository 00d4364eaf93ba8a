package ledger

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository encapsulates DB operations for journal lines.
type Repository interface {
	EntriesForSource(ctx context.Context, key GroupKey) ([]JournalLine, error)
	EntriesForAccount(ctx context.Context, accountID int64, from, to time.Time) ([]JournalLine, error)
	AccountTotals(ctx context.Context, accountID int64, asOf time.Time) (debit, credit decimal.Decimal, err error)
	TrialBalance(ctx context.Context, asOf time.Time) ([]TrialBalanceRow, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes group writes available within a transaction.
type TxRepository interface {
	LiveLines(ctx context.Context, key GroupKey) ([]JournalLine, error)
	InsertLines(ctx context.Context, key GroupKey, lines []LineDraft) error
	SoftDeleteGroup(ctx context.Context, key GroupKey) (int64, error)
	RestoreGroup(ctx context.Context, key GroupKey) (int64, error)
	PurgeGroup(ctx context.Context, key GroupKey) (int64, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const lineColumns = `id, account_id, date, reference, description, debit, credit, journal_type, source_type, source_id, branch_id, department_id, project_id, deleted_at, created_at, updated_at`

func scanLines(rows pgx.Rows) ([]JournalLine, error) {
	defer rows.Close()
	var lines []JournalLine
	for rows.Next() {
		var l JournalLine
		err := rows.Scan(&l.ID, &l.AccountID, &l.Date, &l.Reference, &l.Description, &l.Debit, &l.Credit, &l.JournalType, &l.SourceType, &l.SourceID, &l.BranchID, &l.DepartmentID, &l.ProjectID, &l.DeletedAt, &l.CreatedAt, &l.UpdatedAt)
		if err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *repository) EntriesForSource(ctx context.Context, key GroupKey) ([]JournalLine, error) {
	rows, err := r.db.Query(ctx, `SELECT `+lineColumns+` FROM journal_lines
WHERE source_type=$1 AND source_id=$2 AND journal_type=$3 AND deleted_at IS NULL ORDER BY id ASC`, key.SourceType, key.SourceID, key.JournalType)
	if err != nil {
		return nil, err
	}
	return scanLines(rows)
}

func (r *repository) EntriesForAccount(ctx context.Context, accountID int64, from, to time.Time) ([]JournalLine, error) {
	rows, err := r.db.Query(ctx, `SELECT `+lineColumns+` FROM journal_lines
WHERE account_id=$1 AND date >= $2 AND date <= $3 AND deleted_at IS NULL ORDER BY date ASC, id ASC`, accountID, from, to)
	if err != nil {
		return nil, err
	}
	return scanLines(rows)
}

func (r *repository) AccountTotals(ctx context.Context, accountID int64, asOf time.Time) (decimal.Decimal, decimal.Decimal, error) {
	var debit, credit decimal.Decimal
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(debit), 0), COALESCE(SUM(credit), 0) FROM journal_lines
WHERE account_id=$1 AND date <= $2 AND deleted_at IS NULL`, accountID, asOf).Scan(&debit, &credit)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return debit, credit, nil
}

func (r *repository) TrialBalance(ctx context.Context, asOf time.Time) ([]TrialBalanceRow, error) {
	rows, err := r.db.Query(ctx, `SELECT a.id, a.code, a.name, COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
FROM accounts a
JOIN journal_lines l ON l.account_id = a.id AND l.deleted_at IS NULL AND l.date <= $1
GROUP BY a.id, a.code, a.name
ORDER BY a.code`, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TrialBalanceRow
	for rows.Next() {
		var row TrialBalanceRow
		if err := rows.Scan(&row.AccountID, &row.Code, &row.Name, &row.Debit, &row.Credit); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// NewTxRepository wraps an existing transaction so callers that own a wider
// unit of work can issue group writes on it.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) LiveLines(ctx context.Context, key GroupKey) ([]JournalLine, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+lineColumns+` FROM journal_lines
WHERE source_type=$1 AND source_id=$2 AND journal_type=$3 AND deleted_at IS NULL ORDER BY id ASC FOR UPDATE`, key.SourceType, key.SourceID, key.JournalType)
	if err != nil {
		return nil, err
	}
	return scanLines(rows)
}

func (r *txRepository) InsertLines(ctx context.Context, key GroupKey, lines []LineDraft) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO journal_lines (account_id, date, reference, description, debit, credit, journal_type, source_type, source_id, branch_id, department_id, project_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			line.AccountID, line.Date, line.Reference, line.Description, line.Debit, line.Credit,
			key.JournalType, key.SourceType, key.SourceID,
			nullIntPtr(line.BranchID), nullIntPtr(line.DepartmentID), nullIntPtr(line.ProjectID)); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) SoftDeleteGroup(ctx context.Context, key GroupKey) (int64, error) {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_lines SET deleted_at=NOW(), updated_at=NOW()
WHERE source_type=$1 AND source_id=$2 AND journal_type=$3 AND deleted_at IS NULL`, key.SourceType, key.SourceID, key.JournalType)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *txRepository) RestoreGroup(ctx context.Context, key GroupKey) (int64, error) {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_lines SET deleted_at=NULL, updated_at=NOW()
WHERE source_type=$1 AND source_id=$2 AND journal_type=$3 AND deleted_at IS NOT NULL`, key.SourceType, key.SourceID, key.JournalType)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *txRepository) PurgeGroup(ctx context.Context, key GroupKey) (int64, error) {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM journal_lines
WHERE source_type=$1 AND source_id=$2 AND journal_type=$3`, key.SourceType, key.SourceID, key.JournalType)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func nullIntPtr(val *int64) any {
	if val == nil {
		return nil
	}
	if *val == 0 {
		return nil
	}
	return *val
}
