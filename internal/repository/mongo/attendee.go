// Package mongo implements the attendee repository on a MongoDB collection.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/ignite/eventpass/internal/domain"
)

// AttendeeRepo stores one document per attendee, keyed by attendee_id.
type AttendeeRepo struct {
	coll   *mongo.Collection
	client *mongo.Client
	now    func() time.Time
}

// NewAttendeeRepo wraps an existing collection.
func NewAttendeeRepo(coll *mongo.Collection) *AttendeeRepo {
	return &AttendeeRepo{coll: coll, now: time.Now}
}

// Open connects to uri, pings the primary, and returns a repository over
// database.collection. Close releases the connection.
func Open(ctx context.Context, uri, database, collection string) (*AttendeeRepo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	r := NewAttendeeRepo(client.Database(database).Collection(collection))
	r.client = client
	return r, nil
}

// EnsureIndexes creates the identity and attendee_id indexes.
func (r *AttendeeRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "attendee_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}, {Key: "name", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

// Close disconnects a repository created by Open.
func (r *AttendeeRepo) Close(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	return r.client.Disconnect(ctx)
}

func (r *AttendeeRepo) FindByIdentity(ctx context.Context, email, name string) (*domain.Attendee, error) {
	var a domain.Attendee
	err := r.coll.FindOne(ctx, bson.M{"email": email, "name": name}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find attendee: %w", err)
	}
	if a.Fields == nil {
		a.Fields = map[string]string{}
	}
	return &a, nil
}

func (r *AttendeeRepo) Insert(ctx context.Context, a *domain.Attendee) error {
	doc := *a
	if doc.Fields == nil {
		doc.Fields = map[string]string{}
	}
	if _, err := r.coll.InsertOne(ctx, &doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("insert attendee %s: %w", a.ID, domain.ErrDuplicateAttendee)
		}
		return fmt.Errorf("insert attendee: %w", err)
	}
	return nil
}

// UpdateField sets a status field, or fields.<field> for any other name.
func (r *AttendeeRepo) UpdateField(ctx context.Context, attendeeID, field, value string) error {
	path := "fields." + field
	if field == domain.FieldTicketStatus || field == domain.FieldEmailStatus {
		path = field
	}
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"attendee_id": attendeeID},
		bson.M{"$set": bson.M{path: value, "updated_at": r.now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("update attendee %s: %w", field, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("update attendee %s: %w", attendeeID, domain.ErrAttendeeNotFound)
	}
	return nil
}

// List returns every attendee, oldest first.
func (r *AttendeeRepo) List(ctx context.Context) ([]domain.Attendee, error) {
	return r.find(ctx, bson.M{})
}

// ListEmailNotSent returns attendees whose email_status is not Sent.
func (r *AttendeeRepo) ListEmailNotSent(ctx context.Context) ([]domain.Attendee, error) {
	return r.find(ctx, bson.M{"email_status": bson.M{"$ne": string(domain.EmailSent)}})
}

func (r *AttendeeRepo) find(ctx context.Context, filter bson.M) ([]domain.Attendee, error) {
	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	out := []domain.Attendee{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode attendees: %w", err)
	}
	return out, nil
}
