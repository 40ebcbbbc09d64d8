package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/dumu-tech/restaurant-orders/internal/core"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AuditCollection is the collection status changes are written to
const AuditCollection = "order_status_changes"

// AuditLog implements core.AuditLog over a Mongo collection
type AuditLog struct {
	collection *mongo.Collection
}

// statusChangeDocument is the stored form of a core.StatusChange
type statusChangeDocument struct {
	ID        string    `bson:"_id,omitempty"`
	OrderID   string    `bson:"order_id"`
	From      string    `bson:"from"`
	To        string    `bson:"to"`
	Date      string    `bson:"date"`
	Total     string    `bson:"total"`
	Counted   string    `bson:"counted"`
	ChangedAt time.Time `bson:"changed_at"`
}

// NewAuditLog creates an audit log on db
func NewAuditLog(db *mongo.Database) *AuditLog {
	return &AuditLog{collection: db.Collection(AuditCollection)}
}

// EnsureIndexes creates the lookup index used by History
func (a *AuditLog) EnsureIndexes(ctx context.Context) error {
	_, err := a.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "order_id", Value: 1}, {Key: "changed_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create audit index: %w", err)
	}
	return nil
}

// RecordStatusChange appends one transition
func (a *AuditLog) RecordStatusChange(ctx context.Context, change *core.StatusChange) error {
	changedAt := change.ChangedAt
	if changedAt.IsZero() {
		changedAt = time.Now()
	}

	doc := &statusChangeDocument{
		OrderID:   change.OrderID,
		From:      string(change.From),
		To:        string(change.To),
		Date:      change.Date,
		Total:     change.Total.StringFixed(2),
		Counted:   string(change.Counted),
		ChangedAt: changedAt.UTC(),
	}
	if _, err := a.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to record status change: %w", err)
	}
	return nil
}

// History returns the transitions of an order, newest first
func (a *AuditLog) History(ctx context.Context, orderID string, limit int64) ([]*core.StatusChange, error) {
	if limit <= 0 {
		limit = 50
	}

	filter := bson.M{"order_id": orderID}
	opts := options.Find().SetSort(bson.D{{Key: "changed_at", Value: -1}}).SetLimit(limit)

	cursor, err := a.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query status history: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []*statusChangeDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode status history: %w", err)
	}

	changes := make([]*core.StatusChange, 0, len(docs))
	for _, doc := range docs {
		total, err := decimal.NewFromString(doc.Total)
		if err != nil {
			total = decimal.Zero
		}
		changes = append(changes, &core.StatusChange{
			OrderID:   doc.OrderID,
			From:      core.OrderStatus(doc.From),
			To:        core.OrderStatus(doc.To),
			Date:      doc.Date,
			Total:     total,
			Counted:   core.Transition(doc.Counted),
			ChangedAt: doc.ChangedAt,
		})
	}
	return changes, nil
}
