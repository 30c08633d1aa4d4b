package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/cartoncaps-assistant/pkg/logging"
)

const (
	defaultProductLimit  = 5
	defaultHistoryLimit  = 20
	defaultPurchaseLimit = 5

	// timestampLayout has a fixed-width fraction so stored values sort lexically.
	timestampLayout = "2006-01-02T15:04:05.000000Z07:00"
)

// Layouts accepted when reading timestamps written by other tools.
var timestampReadLayouts = []string{
	timestampLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
}

// Repository issues single-statement queries against the relational store.
// A Repository built with a nil *sql.DB is "unavailable": every method returns
// ErrUnavailable without touching the network or disk.
type Repository struct {
	db     *sql.DB
	tracer trace.Tracer
	logger *logging.Logger

	// Conversation_History only has session_id once migration 000002 ran.
	schemaMu      sync.Mutex
	schemaChecked bool
	hasSessionID  bool
}

const (
	sqliteSessionColumnQuery = `SELECT COUNT(*) FROM pragma_table_info('Conversation_History') WHERE name = 'session_id'`
	pgSessionColumnQuery     = `SELECT COUNT(*) FROM information_schema.columns
		WHERE lower(table_name) = 'conversation_history' AND column_name = 'session_id'`
)

// NewRepository wraps an open database.
func NewRepository(db *sql.DB, logger *logging.Logger) *Repository {
	if logger == nil {
		logger = logging.Default()
	}
	return &Repository{
		db:     db,
		tracer: otel.Tracer("cartoncaps.internal.datastore"),
		logger: logger,
	}
}

// Available reports whether the repository has a database behind it.
func (r *Repository) Available() bool {
	return r != nil && r.db != nil
}

// UserDetails fetches a user and their associated school.
func (r *Repository) UserDetails(ctx context.Context, userID string) (UserDetails, error) {
	if !r.Available() {
		return UserDetails{}, ErrUnavailable
	}
	ctx, span := r.tracer.Start(ctx, "datastore.user_details")
	defer span.End()

	var (
		details       UserDetails
		email         sql.NullString
		schoolID      sql.NullInt64
		schoolName    sql.NullString
		schoolAddress sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT u.id, u.name, u.email, s.id, s.name, s.address
		FROM Users u
		LEFT JOIN Schools s ON u.school_id = s.id
		WHERE CAST(u.id AS TEXT) = $1`,
		strings.TrimSpace(userID),
	).Scan(&details.UserID, &details.UserName, &email, &schoolID, &schoolName, &schoolAddress)
	if errors.Is(err, sql.ErrNoRows) {
		return UserDetails{}, fmt.Errorf("datastore: user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		span.RecordError(err)
		return UserDetails{}, fmt.Errorf("datastore: query user details: %w", err)
	}

	details.UserEmail = email.String
	if schoolID.Valid {
		details.School = &School{
			ID:      schoolID.Int64,
			Name:    schoolName.String,
			Address: schoolAddress.String,
		}
	}
	return details, nil
}

// SearchProducts returns products whose name or description contains keyword,
// compared case-insensitively.
func (r *Repository) SearchProducts(ctx context.Context, keyword string, limit int) ([]Product, error) {
	if !r.Available() {
		return nil, ErrUnavailable
	}
	if limit <= 0 {
		limit = defaultProductLimit
	}
	ctx, span := r.tracer.Start(ctx, "datastore.search_products")
	defer span.End()

	pattern := "%" + strings.ToLower(strings.TrimSpace(keyword)) + "%"
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, price
		FROM Products
		WHERE LOWER(name) LIKE $1 OR LOWER(description) LIKE $1
		LIMIT $2`,
		pattern, limit,
	)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("datastore: search products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var (
			p    Product
			desc sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Name, &desc, &p.Price); err != nil {
			return nil, fmt.Errorf("datastore: scan product: %w", err)
		}
		p.Description = desc.String
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("datastore: iterate products: %w", err)
	}
	return products, nil
}

// PurchaseHistory returns a user's most recent purchases, newest first.
func (r *Repository) PurchaseHistory(ctx context.Context, userID string, limit int) ([]PurchaseRecord, error) {
	if !r.Available() {
		return nil, ErrUnavailable
	}
	if limit <= 0 {
		limit = defaultPurchaseLimit
	}
	ctx, span := r.tracer.Start(ctx, "datastore.purchase_history")
	defer span.End()

	rows, err := r.db.QueryContext(ctx, `
		SELECT ph.id, ph.product_id, p.name, ph.quantity, ph.purchased_at
		FROM Purchase_History ph
		JOIN Products p ON ph.product_id = p.id
		WHERE CAST(ph.user_id AS TEXT) = $1
		ORDER BY ph.purchased_at DESC
		LIMIT $2`,
		strings.TrimSpace(userID), limit,
	)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("datastore: query purchase history: %w", err)
	}
	defer rows.Close()

	var history []PurchaseRecord
	for rows.Next() {
		var rec PurchaseRecord
		if err := rows.Scan(&rec.ID, &rec.ProductID, &rec.ProductName, &rec.Quantity, &rec.PurchasedAt); err != nil {
			return nil, fmt.Errorf("datastore: scan purchase: %w", err)
		}
		history = append(history, rec)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("datastore: iterate purchases: %w", err)
	}
	return history, nil
}

// SaveMessage appends one conversation turn and returns its row id.
func (r *Repository) SaveMessage(ctx context.Context, sessionID, userID, sender, content string, ts time.Time) (int64, error) {
	if !r.Available() {
		return 0, ErrUnavailable
	}
	if sender != SenderUser && sender != SenderBot {
		return 0, fmt.Errorf("datastore: sender %q: %w", sender, ErrInvalidSender)
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	ctx, span := r.tracer.Start(ctx, "datastore.save_message")
	defer span.End()

	withSession, err := r.sessionColumn(ctx)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	stamp := ts.UTC().Format(timestampLayout)
	var id int64
	if withSession {
		err = r.db.QueryRowContext(ctx, `
			INSERT INTO Conversation_History (user_id, session_id, message, sender, timestamp)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			userID, sessionID, content, sender, stamp,
		).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, `
			INSERT INTO Conversation_History (user_id, message, sender, timestamp)
			VALUES ($1, $2, $3, $4)
			RETURNING id`,
			userID, content, sender, stamp,
		).Scan(&id)
	}
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("datastore: save message for session %s: %w", sessionID, err)
	}
	return id, nil
}

// ConversationHistory returns the newest limit turns for a user in
// chronological order.
func (r *Repository) ConversationHistory(ctx context.Context, userID string, limit int) ([]ConversationLogEntry, error) {
	if !r.Available() {
		return nil, ErrUnavailable
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	ctx, span := r.tracer.Start(ctx, "datastore.conversation_history")
	defer span.End()

	withSession, err := r.sessionColumn(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	sessionExpr := "''"
	if withSession {
		sessionExpr = "COALESCE(session_id, '')"
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, `+sessionExpr+`, message, sender, timestamp
		FROM Conversation_History
		WHERE user_id = $1
		ORDER BY timestamp DESC, id DESC
		LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("datastore: query conversation history: %w", err)
	}
	defer rows.Close()

	var newestFirst []ConversationLogEntry
	for rows.Next() {
		var (
			entry ConversationLogEntry
			raw   string
		)
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.SessionID, &entry.Message, &entry.Sender, &raw); err != nil {
			return nil, fmt.Errorf("datastore: scan conversation row: %w", err)
		}
		ts, ok := parseTimestamp(raw)
		if ok {
			entry.Timestamp = ts
		} else {
			r.logger.Warn("could not parse conversation timestamp",
				"message_id", entry.ID,
				"timestamp", raw,
			)
			entry.RawTimestamp = raw
		}
		newestFirst = append(newestFirst, entry)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("datastore: iterate conversation history: %w", err)
	}

	history := make([]ConversationLogEntry, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		history = append(history, newestFirst[i])
	}
	return history, nil
}

// sessionColumn reports whether Conversation_History has a session_id column.
// Stores not created by cmd/migrate carry only id, user_id, message, sender and
// timestamp. A successful answer is cached; lookup errors are retried next call.
func (r *Repository) sessionColumn(ctx context.Context) (bool, error) {
	r.schemaMu.Lock()
	defer r.schemaMu.Unlock()
	if r.schemaChecked {
		return r.hasSessionID, nil
	}

	var n int
	if err := r.db.QueryRowContext(ctx, sqliteSessionColumnQuery).Scan(&n); err != nil {
		if pgErr := r.db.QueryRowContext(ctx, pgSessionColumnQuery).Scan(&n); pgErr != nil {
			return false, fmt.Errorf("datastore: inspect Conversation_History columns: %w", errors.Join(err, pgErr))
		}
	}
	r.schemaChecked = true
	r.hasSessionID = n > 0
	if !r.hasSessionID {
		r.logger.Info("Conversation_History has no session_id column; session ids will not be stored")
	}
	return r.hasSessionID, nil
}

func parseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampReadLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
