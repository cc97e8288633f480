package store

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PratikDhanave/identity-sync-service/internal/models"
)

// FirestoreStore keeps one document per user, the email being the document id.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreStore stores users in collection. The store owns client and closes it.
func NewFirestoreStore(client *firestore.Client, collection string) *FirestoreStore {
	return &FirestoreStore{client: client, collection: collection}
}

func (s *FirestoreStore) users() *firestore.CollectionRef {
	return s.client.Collection(s.collection)
}

// GetUser maps a missing document to ErrNotFound.
func (s *FirestoreStore) GetUser(ctx context.Context, email string) (models.UserRecord, error) {
	doc, err := s.users().Doc(email).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return models.UserRecord{}, ErrNotFound
	}
	if err != nil {
		return models.UserRecord{}, err
	}

	var rec models.UserRecord
	if err := doc.DataTo(&rec); err != nil {
		return models.UserRecord{}, fmt.Errorf("decode user %s: %w", email, err)
	}
	rec.Email = email
	return rec, nil
}

// PutUser overwrites the whole document.
func (s *FirestoreStore) PutUser(ctx context.Context, rec models.UserRecord) error {
	if rec.Email == "" {
		return errors.New("email required")
	}
	if rec.UserEvents == nil {
		rec.UserEvents = []models.UserEvent{}
	}
	_, err := s.users().Doc(rec.Email).Set(ctx, rec)
	return err
}

// ScanUsers returns matching documents in document id (email) order.
func (s *FirestoreStore) ScanUsers(ctx context.Context, filter ScanFilter) ([]models.UserRecord, error) {
	query := s.users().Query
	if filter.AdminOnly {
		query = query.Where("admin", "==", true)
	}
	iter := query.Documents(ctx)
	defer iter.Stop()

	var out []models.UserRecord
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		var rec models.UserRecord
		if err := doc.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("decode user %s: %w", doc.Ref.ID, err)
		}
		rec.Email = doc.Ref.ID
		out = append(out, rec)
	}
	return out, nil
}

// Ping reads at most one document to confirm the backend answers.
func (s *FirestoreStore) Ping(ctx context.Context) error {
	iter := s.users().Limit(1).Documents(ctx)
	defer iter.Stop()

	if _, err := iter.Next(); err != nil && err != iterator.Done {
		return err
	}
	return nil
}

// Close releases the Firestore client.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}
