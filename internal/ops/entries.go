package ops

import (
	"context"
	"database/sql"
	"strings"

	"github.com/hpungsan/nosh/internal/db"
	"github.com/hpungsan/nosh/internal/errors"
	"github.com/hpungsan/nosh/internal/nutrition"
)

// ListEntriesInput contains parameters for the ListEntries operation.
type ListEntriesInput struct {
	Phone  string
	Limit  int // default: 20, max: 100
	Offset int
}

// ListEntriesOutput contains the result of the ListEntries operation.
type ListEntriesOutput struct {
	Items      []nutrition.FoodLogEntry `json:"items"`
	Pagination Pagination               `json:"pagination"`
}

// ListEntries returns a user's entries, most recent first.
func ListEntries(ctx context.Context, database *sql.DB, input ListEntriesInput) (*ListEntriesOutput, error) {
	user, err := FindUser(ctx, database, input.Phone)
	if err != nil {
		return nil, err
	}
	limit, offset := normalizePagination(input.Limit, input.Offset)

	items, err := db.ListEntries(ctx, database, user.ID, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := db.CountEntries(ctx, database, user.ID)
	if err != nil {
		return nil, err
	}

	return &ListEntriesOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
	}, nil
}

// DeleteEntryInput contains parameters for the DeleteEntry operation.
type DeleteEntryInput struct {
	Phone string
	ID    string
}

// DeleteEntryOutput contains the result of the DeleteEntry operation.
type DeleteEntryOutput struct {
	Deleted bool   `json:"deleted"`
	ID      string `json:"id"`
}

// DeleteEntry removes one of the user's entries.
func DeleteEntry(ctx context.Context, database *sql.DB, input DeleteEntryInput) (*DeleteEntryOutput, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidInput("entry id is required")
	}
	user, err := FindUser(ctx, database, input.Phone)
	if err != nil {
		return nil, err
	}
	if err := db.DeleteEntry(ctx, database, user.ID, id); err != nil {
		return nil, err
	}
	return &DeleteEntryOutput{Deleted: true, ID: id}, nil
}
