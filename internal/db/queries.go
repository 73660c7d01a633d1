package db

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/hpungsan/nosh/internal/errors"
	"github.com/hpungsan/nosh/internal/nutrition"
)

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const userColumns = `id, phone, timezone, target_calories, target_protein, target_carbs, target_fat, created_at, updated_at`

const entryColumns = `id, user_id, title, calories, protein, carbs, fat, confidence,
	meal_type, notes, logged_at, source_message_id, created_at`

// GetOrCreateUser returns the user with candidate.Phone, inserting candidate if
// no such user exists. The insert and lookup cannot create duplicates under
// concurrent first contact because phone is UNIQUE and conflicts are ignored.
// created reports whether candidate was the row inserted.
func GetOrCreateUser(ctx context.Context, q Querier, candidate *nutrition.User) (user *nutrition.User, created bool, err error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO users (id, phone, timezone, target_calories, target_protein, target_carbs, target_fat, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(phone) DO NOTHING
	`,
		candidate.ID, candidate.Phone, candidate.Timezone,
		toNullFloat(candidate.Targets.Calories), toNullFloat(candidate.Targets.Protein),
		toNullFloat(candidate.Targets.Carbs), toNullFloat(candidate.Targets.Fat),
		candidate.CreatedAt, candidate.UpdatedAt,
	)
	if err != nil {
		return nil, false, errors.NewPersistenceFailure("create user", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		created = true
	}

	user, err = GetUserByPhone(ctx, q, candidate.Phone)
	if err != nil {
		return nil, false, err
	}
	return user, created, nil
}

// GetUserByPhone retrieves a user by normalized phone number.
func GetUserByPhone(ctx context.Context, q Querier, phone string) (*nutrition.User, error) {
	row := q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE phone = ?`, phone)
	u, err := scanUser(row)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFound("user", phone)
		}
		return nil, errors.NewPersistenceFailure("get user", err)
	}
	return u, nil
}

// UpdateUserTargets replaces all four daily targets. Nil clears a target.
func UpdateUserTargets(ctx context.Context, q Querier, userID string, targets nutrition.Macros, now int64) error {
	res, err := q.ExecContext(ctx, `
		UPDATE users
		SET target_calories = ?, target_protein = ?, target_carbs = ?, target_fat = ?, updated_at = ?
		WHERE id = ?
	`,
		toNullFloat(targets.Calories), toNullFloat(targets.Protein),
		toNullFloat(targets.Carbs), toNullFloat(targets.Fat),
		now, userID,
	)
	if err != nil {
		return errors.NewPersistenceFailure("update targets", err)
	}
	return requireOneRow(res, "user", userID)
}

// UpdateUserTimezone sets the user's IANA time zone.
func UpdateUserTimezone(ctx context.Context, q Querier, userID, timezone string, now int64) error {
	res, err := q.ExecContext(ctx, `UPDATE users SET timezone = ?, updated_at = ? WHERE id = ?`, timezone, now, userID)
	if err != nil {
		return errors.NewPersistenceFailure("update timezone", err)
	}
	return requireOneRow(res, "user", userID)
}

// InsertMessage records a raw inbound message for audit.
func InsertMessage(ctx context.Context, q Querier, id, userID, body string, receivedAt int64) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO inbound_messages (id, user_id, body, classification, received_at)
		VALUES (?, ?, ?, NULL, ?)
	`, id, userID, body, receivedAt)
	if err != nil {
		return errors.NewPersistenceFailure("record message", err)
	}
	return nil
}

// SetMessageClassification stores how a recorded message was classified.
func SetMessageClassification(ctx context.Context, q Querier, id, classification string) error {
	res, err := q.ExecContext(ctx, `UPDATE inbound_messages SET classification = ? WHERE id = ?`, classification, id)
	if err != nil {
		return errors.NewPersistenceFailure("classify message", err)
	}
	return requireOneRow(res, "message", id)
}

// InsertFoodLogEntries stores entries in a single transaction.
// Either every entry is stored or none is.
func InsertFoodLogEntries(ctx context.Context, db *sql.DB, entries []nutrition.FoodLogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewPersistenceFailure("begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO food_log_entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.NewPersistenceFailure("prepare entry insert", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		_, err := stmt.ExecContext(ctx,
			e.ID, e.UserID, e.Title,
			toNullFloat(e.Macros.Calories), toNullFloat(e.Macros.Protein),
			toNullFloat(e.Macros.Carbs), toNullFloat(e.Macros.Fat),
			e.Confidence, toNullString(string(e.MealType)), toNullString(e.Notes),
			e.LoggedAt, e.SourceMessageID, e.CreatedAt,
		)
		if err != nil {
			return errors.NewPersistenceFailure("insert entry", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewPersistenceFailure("commit entries", err)
	}
	return nil
}

// QueryEntriesForRange returns a user's entries with start <= logged_at < end,
// oldest first.
func QueryEntriesForRange(ctx context.Context, q Querier, userID string, start, end int64) ([]nutrition.FoodLogEntry, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+entryColumns+`
		FROM food_log_entries
		WHERE user_id = ? AND logged_at >= ? AND logged_at < ?
		ORDER BY logged_at ASC, id ASC
	`, userID, start, end)
	if err != nil {
		return nil, errors.NewPersistenceFailure("query entries", err)
	}
	return collectEntries(rows)
}

// ListEntries returns a user's entries, most recent first.
func ListEntries(ctx context.Context, q Querier, userID string, limit, offset int) ([]nutrition.FoodLogEntry, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+entryColumns+`
		FROM food_log_entries
		WHERE user_id = ?
		ORDER BY logged_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, userID, limit, offset)
	if err != nil {
		return nil, errors.NewPersistenceFailure("list entries", err)
	}
	return collectEntries(rows)
}

// CountEntries returns how many entries a user has.
func CountEntries(ctx context.Context, q Querier, userID string) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM food_log_entries WHERE user_id = ?`, userID).Scan(&n); err != nil {
		return 0, errors.NewPersistenceFailure("count entries", err)
	}
	return n, nil
}

// DeleteEntry removes one of the user's entries.
// Entries owned by other users are reported as not found.
func DeleteEntry(ctx context.Context, q Querier, userID, entryID string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM food_log_entries WHERE id = ? AND user_id = ?`, entryID, userID)
	if err != nil {
		return errors.NewPersistenceFailure("delete entry", err)
	}
	return requireOneRow(res, "entry", entryID)
}

func requireOneRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.NewPersistenceFailure("rows affected", err)
	}
	if n == 0 {
		return errors.NewNotFound(kind, id)
	}
	return nil
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*nutrition.User, error) {
	var (
		u                        nutrition.User
		calories, protein, carbs sql.NullFloat64
		fat                      sql.NullFloat64
	)
	err := row.Scan(&u.ID, &u.Phone, &u.Timezone, &calories, &protein, &carbs, &fat, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Targets = nutrition.Macros{
		Calories: fromNullFloat(calories),
		Protein:  fromNullFloat(protein),
		Carbs:    fromNullFloat(carbs),
		Fat:      fromNullFloat(fat),
	}
	return &u, nil
}

func scanEntry(row rowScanner) (nutrition.FoodLogEntry, error) {
	var (
		e                        nutrition.FoodLogEntry
		calories, protein, carbs sql.NullFloat64
		fat                      sql.NullFloat64
		mealType, notes          sql.NullString
	)
	err := row.Scan(
		&e.ID, &e.UserID, &e.Title,
		&calories, &protein, &carbs, &fat,
		&e.Confidence, &mealType, &notes,
		&e.LoggedAt, &e.SourceMessageID, &e.CreatedAt,
	)
	if err != nil {
		return e, err
	}
	e.Macros = nutrition.Macros{
		Calories: fromNullFloat(calories),
		Protein:  fromNullFloat(protein),
		Carbs:    fromNullFloat(carbs),
		Fat:      fromNullFloat(fat),
	}
	e.MealType = nutrition.MealType(mealType.String)
	e.Notes = notes.String
	return e, nil
}

func collectEntries(rows *sql.Rows) ([]nutrition.FoodLogEntry, error) {
	defer rows.Close()

	entries := []nutrition.FoodLogEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, errors.NewPersistenceFailure("scan entry", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewPersistenceFailure("iterate entries", err)
	}
	return entries, nil
}

func toNullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func fromNullFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

// toNullString maps "" to NULL.
func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
