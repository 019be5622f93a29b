// Package mongo implements store.Store on a MongoDB document store.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rollcall/internal/store"
)

const (
	colAdmins   = "admins"
	colTeachers = "teachers"
	colStudents = "students"
	colSessions = "class_sessions"
)

// Store wraps one mongo database holding all platform collections.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ store.Store = (*Store)(nil)

// Connect dials the server, pings it, and prepares the collection indexes.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	s := &Store{client: client, db: client.Database(database)}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		colAdmins: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "organization", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		colTeachers: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "organization", Value: 1}, {Key: "trn", Value: 1}}},
			{Keys: bson.D{{Key: "classes._id", Value: 1}}},
		},
		colStudents: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "university", Value: 1}, {Key: "srn", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		colSessions: {
			{Keys: bson.D{{Key: "classId", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "classId", Value: 1}, {Key: "openedAt", Value: 1}}},
		},
	}
	for col, models := range specs {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", col, err)
		}
	}
	return nil
}

// Disconnect releases the underlying client.
func (s *Store) Disconnect(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) Admins() store.AdminStore     { return &adminStore{col: s.db.Collection(colAdmins)} }
func (s *Store) Teachers() store.TeacherStore { return &teacherStore{col: s.db.Collection(colTeachers)} }
func (s *Store) Students() store.StudentStore { return &studentStore{col: s.db.Collection(colStudents)} }
func (s *Store) Sessions() store.SessionStore { return &sessionStore{col: s.db.Collection(colSessions)} }

// mapErr normalizes driver errors to the store sentinel errors.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case err == mongo.ErrNoDocuments:
		return store.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return store.ErrDuplicate
	default:
		return err
	}
}
