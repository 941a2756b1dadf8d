package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"spotd/internal/services"
)

// ErrInvalidTransition indicates a status write the state machine forbids.
var ErrInvalidTransition = errors.New("invalid status transition")

// Text length bounds enforced at the intake boundary.
const (
	MinTextLength = 10
	MaxTextLength = 2000
)

const messageColumns = "id, text, status, submitter_token, moderation_note, media_id, error_reason, created_at, updated_at, posted_at"

// Add inserts a new pending message. Text is NFC-normalized so later layout
// measurements are stable across submission encodings.
func (s *Store) Add(ctx context.Context, text, submitterToken string) (*Message, error) {
	text = norm.NFC.String(text)
	if count := utf8.RuneCountInString(text); count < MinTextLength || count > MaxTextLength {
		return nil, services.Wrap(services.ErrValidation, "queue", "add",
			fmt.Sprintf("message text must be %d-%d characters, got %d", MinTextLength, MaxTextLength, count), nil)
	}

	timestamp := formatTimestamp(time.Now())
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO messages (text, status, submitter_token, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)`,
		text,
		StatusPending,
		nullableString(submitterToken),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a message by identifier. Returns (nil, nil) when absent.
func (s *Store) GetByID(ctx context.Context, id int64) (*Message, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return msg, nil
}

// UpdateStatus moves a message to the target status in a single guarded
// UPDATE; the transition only lands when the message currently holds a status
// the state machine allows for the target. Posting requires a media
// identifier and posted timestamp, and a non-posted status clears both, so
// the posted invariants hold at the database level.
func (s *Store) UpdateStatus(ctx context.Context, id int64, status Status, update StatusUpdate) error {
	if _, ok := statusSet[status]; !ok {
		return fmt.Errorf("unknown status %q", status)
	}
	if status == StatusPosted {
		if update.MediaID == "" {
			return fmt.Errorf("%w: posted status requires a media id", ErrInvalidTransition)
		}
		if update.PostedAt == nil {
			now := time.Now().UTC()
			update.PostedAt = &now
		}
	} else {
		update.MediaID = ""
		update.PostedAt = nil
	}
	froms := allowedFrom[status]
	if len(froms) == 0 {
		return fmt.Errorf("%w: no transition enters %s", ErrInvalidTransition, status)
	}

	placeholders := makePlaceholders(len(froms))
	args := make([]any, 0, len(froms)+7)
	args = append(args,
		status,
		nullableString(update.MediaID),
		nullableString(update.ErrorReason),
		nullableString(update.ModerationNote),
		nullableTime(update.PostedAt),
		formatTimestamp(time.Now()),
		id,
	)
	for _, from := range froms {
		args = append(args, from)
	}

	res, err := s.execWithRetry(
		ctx,
		`UPDATE messages
         SET status = ?, media_id = ?, error_reason = ?,
             moderation_note = COALESCE(?, moderation_note),
             posted_at = ?, updated_at = ?
         WHERE id = ? AND status IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		current, getErr := s.GetByID(ctx, id)
		if getErr != nil {
			return getErr
		}
		if current == nil {
			return services.Wrap(services.ErrNotFound, "queue", "update status", fmt.Sprintf("message %d", id), nil)
		}
		return fmt.Errorf("%w: %s -> %s for message %d", ErrInvalidTransition, current.Status, status, id)
	}
	return nil
}

// SetModerationNote records the moderation rationale without a status change.
func (s *Store) SetModerationNote(ctx context.Context, id int64, note string) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE messages SET moderation_note = ?, updated_at = ? WHERE id = ?`,
		nullableString(note),
		formatTimestamp(time.Now()),
		id,
	)
	if err != nil {
		return fmt.Errorf("set moderation note: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("message %d not found", id)
	}
	return nil
}

// ListByStatus returns messages matching a status ordered by creation time.
func (s *Store) ListByStatus(ctx context.Context, statuses ...Status) ([]*Message, error) {
	baseQuery := `SELECT ` + messageColumns + ` FROM messages`
	orderClause := ` ORDER BY created_at`

	var (
		rows *sql.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	return collectMessages(rows)
}

// ApprovedBetween returns approved messages created inside the window,
// oldest first, capped at limit when limit is positive.
func (s *Store) ApprovedBetween(ctx context.Context, start, end time.Time, limit int) ([]*Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages
        WHERE status = ? AND created_at >= ? AND created_at < ?
        ORDER BY created_at`
	args := []any{
		StatusApproved,
		formatTimestamp(start),
		formatTimestamp(end),
	}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("approved in window: %w", err)
	}
	defer rows.Close()

	return collectMessages(rows)
}

// NextApproved returns the oldest approved message, or nil when none waits.
func (s *Store) NextApproved(ctx context.Context) (*Message, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+messageColumns+` FROM messages WHERE status = ? ORDER BY created_at LIMIT 1`,
		StatusApproved,
	)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next approved: %w", err)
	}
	return msg, nil
}

// Stats returns the number of messages per status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM messages GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[Status(status)] = count
	}
	return stats, rows.Err()
}

// RetryFailed resets failed messages back to approved for republishing.
// With no ids, every failed message is reset.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	timestamp := formatTimestamp(time.Now())
	if len(ids) == 0 {
		res, err := s.execWithRetry(
			ctx,
			`UPDATE messages SET status = ?, error_reason = NULL, updated_at = ? WHERE status = ?`,
			StatusApproved, timestamp, StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed messages: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+3)
	args = append(args, StatusApproved, timestamp, StatusFailed)
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE messages SET status = ?, error_reason = NULL, updated_at = ?
         WHERE status = ? AND id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("retry selected messages: %w", err)
	}
	return res.RowsAffected()
}

func collectMessages(rows *sql.Rows) ([]*Message, error) {
	var messages []*Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
