package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Criteria selects rows. Zero fields are ignored. Soft-deleted rows are
// excluded unless IncludeDeleted is set, which only diagnostics should do.
type Criteria struct {
	ID       int64
	ParentID int64
	// ParentIDs matches rows under any of the given parents.
	ParentIDs      []int64
	IncludeDeleted bool
}

// Insert writes a new row and returns its id. CreateDate and UpdateDate are
// set to the current time and copied back into rec along with the id.
func Insert[T Entity](ctx context.Context, w *Writer, rec *T) (int64, error) {
	t := tableFor[T]()
	fail := func(err error) (int64, error) {
		return 0, &StorageError{Op: "insert", Table: t.name, Err: err}
	}
	if err := w.db.validate.StructCtx(ctx, rec); err != nil {
		return fail(validationErr(err))
	}
	fields := t.fields(rec)
	if t.parentCol != "" {
		parentID := reflect.ValueOf(fields[0]).Elem().Int()
		if err := w.requireLive(ctx, t.parent, parentID); err != nil {
			return fail(err)
		}
	}

	r := t.record(rec)
	now := w.db.now()
	cols := append([]string{"isDeleted", "createDate", "updateDate"}, t.columns...)
	args := append([]any{false, now.UnixMilli(), now.UnixMilli()}, deref(fields)...)
	q := fmt.Sprintf(`INSERT INTO %s(%s) VALUES(%s)`, t.name, strings.Join(cols, ", "), placeholders(len(cols)))
	res, err := w.q.ExecContext(ctx, q, args...)
	if err != nil {
		return fail(classify(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fail(err)
	}
	r.ID = id
	r.IsDeleted = false
	r.CreateDate = now.Truncate(time.Millisecond)
	r.UpdateDate = r.CreateDate
	return id, nil
}

// Update rewrites every column of the row with rec's id. It fails with
// ErrNotFound when the row is missing or soft-deleted. CreateDate is never
// written; UpdateDate is refreshed and copied back into rec.
func Update[T Entity](ctx context.Context, w *Writer, rec *T) error {
	t := tableFor[T]()
	r := t.record(rec)
	fail := func(err error) error {
		return &StorageError{Op: "update", Table: t.name, ID: r.ID, Err: err}
	}
	if err := w.db.validate.StructCtx(ctx, rec); err != nil {
		return fail(validationErr(err))
	}
	now := w.db.now()
	sets := make([]string, 0, len(t.columns)+1)
	sets = append(sets, "updateDate = ?")
	for _, c := range t.columns {
		sets = append(sets, c+" = ?")
	}
	args := append([]any{now.UnixMilli()}, deref(t.fields(rec))...)
	args = append(args, r.ID)
	q := fmt.Sprintf(`UPDATE %s SET %s WHERE id = ? AND isDeleted = 0`, t.name, strings.Join(sets, ", "))
	res, err := w.q.ExecContext(ctx, q, args...)
	if err != nil {
		return fail(classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fail(err)
	}
	if n == 0 {
		return fail(ErrNotFound)
	}
	r.UpdateDate = now.Truncate(time.Millisecond)
	return nil
}

// SoftDelete marks the row deleted. Deleting an already-deleted row succeeds
// without touching it; an id that never existed is ErrNotFound.
func SoftDelete[T Entity](ctx context.Context, w *Writer, id int64) error {
	t := tableFor[T]()
	fail := func(err error) error {
		return &StorageError{Op: "delete", Table: t.name, ID: id, Err: err}
	}
	q := fmt.Sprintf(`UPDATE %s SET isDeleted = 1, updateDate = ? WHERE id = ? AND isDeleted = 0`, t.name)
	res, err := w.q.ExecContext(ctx, q, w.db.now().UnixMilli(), id)
	if err != nil {
		return fail(classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fail(err)
	}
	if n > 0 {
		return nil
	}
	var exists int
	err = w.q.QueryRowContext(ctx, fmt.Sprintf(`SELECT 1 FROM %s WHERE id = ?`, t.name), id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fail(ErrNotFound)
	}
	if err != nil {
		return fail(err)
	}
	return nil
}

// FetchOne returns the first row matching c, or ErrNotFound.
func FetchOne[T Entity](ctx context.Context, r *Reader, c Criteria) (T, error) {
	var zero T
	xs, err := fetch[T](ctx, r, c, 1)
	if err != nil {
		return zero, err
	}
	if len(xs) == 0 {
		return zero, &StorageError{Op: "fetch", Table: tableFor[T]().name, ID: c.ID, Err: ErrNotFound}
	}
	return xs[0], nil
}

// FetchAll returns every row matching c in the table's natural order.
func FetchAll[T Entity](ctx context.Context, r *Reader, c Criteria) ([]T, error) {
	return fetch[T](ctx, r, c, 0)
}

func fetch[T Entity](ctx context.Context, r *Reader, c Criteria, limit int) ([]T, error) {
	t := tableFor[T]()
	var where []string
	var args []any
	if c.ID != 0 {
		where = append(where, "id = ?")
		args = append(args, c.ID)
	}
	if c.ParentID != 0 {
		if t.parentCol == "" {
			return nil, &StorageError{Op: "fetch", Table: t.name, Err: fmt.Errorf("%s has no parent column", t.name)}
		}
		where = append(where, t.parentCol+" = ?")
		args = append(args, c.ParentID)
	}
	if len(c.ParentIDs) > 0 {
		if t.parentCol == "" {
			return nil, &StorageError{Op: "fetch", Table: t.name, Err: fmt.Errorf("%s has no parent column", t.name)}
		}
		where = append(where, t.parentCol+" IN ("+placeholders(len(c.ParentIDs))+")")
		for _, id := range c.ParentIDs {
			args = append(args, id)
		}
	}
	if !c.IncludeDeleted {
		where = append(where, "isDeleted = 0")
	}
	q := fmt.Sprintf(`SELECT %s FROM %s`, t.selectColumns(), t.name)
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY " + t.orderBy
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, &StorageError{Op: "fetch", Table: t.name, Err: err}
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		var v T
		if err := rows.Scan(t.scanTargets(&v)...); err != nil {
			return nil, &StorageError{Op: "fetch", Table: t.name, Err: err}
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "fetch", Table: t.name, Err: err}
	}
	return out, nil
}

func (r *Reader) requireLive(ctx context.Context, tableName string, id int64) error {
	var deleted bool
	err := r.q.QueryRowContext(ctx, fmt.Sprintf(`SELECT isDeleted FROM %s WHERE id = ?`, tableName), id).Scan(&deleted)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && deleted) {
		return fmt.Errorf("%w: %s %d", ErrParentNotFound, tableName, id)
	}
	return err
}

func validationErr(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		names := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			names = append(names, fe.Field())
		}
		return fmt.Errorf("%w: %s", ErrMissingField, strings.Join(names, ", "))
	}
	return err
}

// classify maps sqlite constraint failures onto the package sentinels.
func classify(err error) error {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return err
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return fmt.Errorf("%w: %v", ErrUniqueViolation, err)
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return fmt.Errorf("%w: %v", ErrParentNotFound, err)
	case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
		return fmt.Errorf("%w: %v", ErrMissingField, err)
	}
	return err
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// deref turns field pointers into driver-friendly values.
func deref(ptrs []any) []any {
	out := make([]any, 0, len(ptrs))
	for _, p := range ptrs {
		v := reflect.ValueOf(p).Elem()
		switch v.Kind() {
		case reflect.Int, reflect.Int32, reflect.Int64:
			out = append(out, v.Int())
		default:
			out = append(out, v.Interface())
		}
	}
	return out
}
