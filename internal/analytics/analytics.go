// Package analytics records board events to a relational event log. It is
// optional at runtime: with no database handle every call is a no-op, so the
// core flow never depends on it.
package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

type CtxKey string

const ctxUserIDKey CtxKey = "analytics_user_id"

// Envelope is what we store with every event.
type Envelope struct {
	UserID       string
	SessionID    string
	Platform     string
	AppVersion   string
	DeviceLocale string
}

// FromRequest extracts envelope fields from request headers.
// Backend-trustable fields only.
func FromRequest(r *http.Request) Envelope {
	platform := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Platform")))
	switch platform {
	case "ios", "android", "web":
	default:
		platform = "unknown"
	}

	locale := strings.TrimSpace(r.Header.Get("Accept-Language"))
	if locale == "" {
		locale = strings.TrimSpace(r.Header.Get("X-Device-Locale"))
	}

	return Envelope{
		SessionID:    strings.TrimSpace(r.Header.Get("X-Session-Id")),
		Platform:     platform,
		AppVersion:   strings.TrimSpace(r.Header.Get("X-App-Version")),
		DeviceLocale: locale,
	}
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxUserIDKey, userID)
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(ctxUserIDKey)
	if v == nil {
		return "", false
	}
	uid, ok := v.(string)
	return uid, ok
}

// SourceEventKeyFromRequest returns the client-provided idempotency key, if
// any. A duplicate key makes the insert a no-op.
func SourceEventKeyFromRequest(r *http.Request) string {
	if k := strings.TrimSpace(r.Header.Get("Idempotency-Key")); k != "" {
		return k
	}
	return strings.TrimSpace(r.Header.Get("X-Source-Event-Key"))
}

// Log inserts one event. Never logs raw user text; callers pass sanitized
// props (ids, lengths, counts). Failures never break the core flow.
func Log(ctx context.Context, db *sql.DB, env Envelope, eventName string, props any, sourceEventKey string) error {
	if db == nil || eventName == "" {
		return nil
	}

	userID := env.UserID
	if userID == "" {
		if uid, ok := UserIDFromContext(ctx); ok {
			userID = uid
		}
	}

	b, err := json.Marshal(props)
	if err != nil {
		// unmarshalable props must not break the caller
		return nil
	}

	if sourceEventKey != "" {
		_, _ = db.ExecContext(ctx, `
			INSERT INTO analytics_events (
				event_name, event_time,
				user_id, session_id,
				platform, app_version, device_locale,
				source_event_key,
				properties
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb)
			ON CONFLICT (source_event_key) DO NOTHING
		`, eventName, time.Now().UTC(),
			nullIfEmpty(userID), nullIfEmpty(env.SessionID),
			env.Platform, env.AppVersion, nullIfEmpty(env.DeviceLocale),
			sourceEventKey,
			string(b),
		)
		return nil
	}

	_, _ = db.ExecContext(ctx, `
		INSERT INTO analytics_events (
			event_name, event_time,
			user_id, session_id,
			platform, app_version, device_locale,
			properties
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb)
	`, eventName, time.Now().UTC(),
		nullIfEmpty(userID), nullIfEmpty(env.SessionID),
		env.Platform, env.AppVersion, nullIfEmpty(env.DeviceLocale),
		string(b),
	)

	return nil
}

func nullIfEmpty(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
