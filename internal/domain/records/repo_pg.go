package records

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicops/backoffice/internal/platform/db"
)

type recordRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &recordRepoPG{pool: pool} }

func (r *recordRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const recordCols = `id, clinic_id, patient_id, visit_id, kind, payload,
	unique_id, parent_id, verified, editable, created_at_epoch`

func scanRecord(row pgx.Row) (*PatientRecord, error) {
	var rec PatientRecord
	var payload []byte
	err := row.Scan(&rec.ID, &rec.ClinicID, &rec.PatientID, &rec.VisitID, &rec.Kind, &payload,
		&rec.UniqueID, &rec.ParentID, &rec.Verified, &rec.Editable, &rec.CreatedAtEpoch)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.Payload = payload
	return &rec, nil
}

func (r *recordRepoPG) GetByID(ctx context.Context, id int64) (*PatientRecord, error) {
	rec, err := scanRecord(r.conn(ctx).QueryRow(ctx,
		`SELECT `+recordCols+` FROM patient_records WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("record %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get record %d: %w", id, err)
	}
	return rec, nil
}

// findVerifiedSQL compares the stored unique id trimmed, matching
// PatientRecord.UniqueIDValue on the caller's side.
const findVerifiedSQL = `SELECT ` + recordCols + ` FROM patient_records
		WHERE clinic_id = $1 AND kind = $2 AND btrim(unique_id) = $3 AND id <> $4
			AND verified = TRUE AND editable = TRUE
		ORDER BY id LIMIT 1`

func (r *recordRepoPG) FindVerifiedByUniqueID(ctx context.Context, clinicID int64, kind Kind, uniqueID string, excludeID int64) (*PatientRecord, error) {
	rec, err := scanRecord(r.conn(ctx).QueryRow(ctx, findVerifiedSQL,
		clinicID, kind, strings.TrimSpace(uniqueID), excludeID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find verified %s %q: %w", kind, uniqueID, err)
	}
	return rec, nil
}

func (r *recordRepoPG) MarkVerified(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE patient_records SET verified = TRUE, editable = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark record %d verified: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark record %d verified: %w", id, ErrNotFound)
	}
	return nil
}

func (r *recordRepoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*PatientRecord, int, error) {
	var where []string
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if len(f.ClinicIDs) > 0 {
		add("clinic_id = ANY($%d)", f.ClinicIDs)
	}
	if f.PatientID > 0 {
		add("patient_id = $%d", f.PatientID)
	}
	if f.VisitID > 0 {
		add("visit_id = $%d", f.VisitID)
	}
	if f.Kind != "" {
		add("kind = $%d", f.Kind)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient_records`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count records: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT %s FROM patient_records%s ORDER BY created_at_epoch DESC, id DESC LIMIT $%d OFFSET $%d`,
			recordCols, clause, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var items []*PatientRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan record: %w", err)
		}
		items = append(items, rec)
	}
	return items, total, rows.Err()
}

type txPG struct{ pool *pgxpool.Pool }

// NewTransactorPG returns a Transactor that opens pgx transactions on pool.
func NewTransactorPG(pool *pgxpool.Pool) Transactor { return &txPG{pool: pool} }

func (t *txPG) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.RunInTx(ctx, t.pool, fn)
}
