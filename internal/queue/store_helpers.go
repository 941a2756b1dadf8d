package queue

import (
	"database/sql"
	"errors"
	"time"
)

func scanMessage(scanner interface{ Scan(dest ...any) error }) (*Message, error) {
	var (
		id             int64
		text           string
		statusStr      string
		submitterToken sql.NullString
		moderationNote sql.NullString
		mediaID        sql.NullString
		errorReason    sql.NullString
		createdRaw     sql.NullString
		updatedRaw     sql.NullString
		postedRaw      sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&text,
		&statusStr,
		&submitterToken,
		&moderationNote,
		&mediaID,
		&errorReason,
		&createdRaw,
		&updatedRaw,
		&postedRaw,
	); err != nil {
		return nil, err
	}

	msg := &Message{
		ID:             id,
		Text:           text,
		Status:         Status(statusStr),
		SubmitterToken: submitterToken.String,
		ModerationNote: moderationNote.String,
		MediaID:        mediaID.String,
		ErrorReason:    errorReason.String,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		msg.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		msg.UpdatedAt = updated
	}
	if postedRaw.Valid {
		if posted, err := parseTimeString(postedRaw.String); err == nil {
			msg.PostedAt = &posted
		}
	}
	return msg, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// timestampFormat keeps a fixed-width fraction so the lexicographic order of
// stored strings matches time order; RFC3339Nano trims trailing zeros and
// breaks range comparisons within a second.
const timestampFormat = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(value time.Time) string {
	return value.UTC().Format(timestampFormat)
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTimestamp(*value)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
