package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rollcall/pkg/types"
)

type sessionStore struct {
	col *mongo.Collection
}

func (s *sessionStore) Create(ctx context.Context, session *types.ClassSession) error {
	_, err := s.col.InsertOne(ctx, session)
	return mapErr(err)
}

func (s *sessionStore) GetByID(ctx context.Context, id string) (*types.ClassSession, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *sessionStore) GetOpenByClass(ctx context.Context, classID string) (*types.ClassSession, error) {
	return s.findOne(ctx, bson.M{"classId": classID, "status": types.SessionStatusOpen})
}

func (s *sessionStore) ListOpen(ctx context.Context) ([]*types.ClassSession, error) {
	cur, err := s.col.Find(ctx, bson.M{"status": types.SessionStatusOpen})
	if err != nil {
		return nil, mapErr(err)
	}
	var sessions []*types.ClassSession
	if err := cur.All(ctx, &sessions); err != nil {
		return nil, mapErr(err)
	}
	return sessions, nil
}

func (s *sessionStore) ListByClass(ctx context.Context, classID string) ([]*types.ClassSession, error) {
	cur, err := s.col.Find(ctx, bson.M{"classId": classID},
		options.Find().SetSort(bson.D{{Key: "openedAt", Value: 1}}))
	if err != nil {
		return nil, mapErr(err)
	}
	var sessions []*types.ClassSession
	if err := cur.All(ctx, &sessions); err != nil {
		return nil, mapErr(err)
	}
	return sessions, nil
}

func (s *sessionStore) AppendToken(ctx context.Context, sessionID string, token types.ActiveToken) error {
	// Appending to a closed session is a tolerated no-op (late timer tick).
	_, err := s.col.UpdateOne(ctx,
		bson.M{"_id": sessionID, "status": types.SessionStatusOpen},
		bson.M{"$push": bson.M{"activeTokens": token}},
	)
	return mapErr(err)
}

func (s *sessionStore) AppendCheckIn(ctx context.Context, sessionID string, checkIn types.CheckIn) error {
	// The studentId guard keeps replays from the journal reconciler idempotent.
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": sessionID, "checkedIn.studentId": bson.M{"$ne": checkIn.StudentID}},
		bson.M{"$push": bson.M{"checkedIn": checkIn}},
	)
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		if _, err := s.GetByID(ctx, sessionID); err != nil {
			return err
		}
	}
	return nil
}

func (s *sessionStore) RemoveCheckIn(ctx context.Context, sessionID, studentID string) error {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": sessionID},
		bson.M{"$pull": bson.M{"checkedIn": bson.M{"studentId": studentID}}},
	)
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return mapErr(mongo.ErrNoDocuments)
	}
	return nil
}

func (s *sessionStore) Close(ctx context.Context, sessionID string, closedAt time.Time) error {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": sessionID},
		bson.M{"$set": bson.M{
			"status":       types.SessionStatusClosed,
			"closedAt":     closedAt,
			"activeTokens": []types.ActiveToken{},
		}},
	)
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return mapErr(mongo.ErrNoDocuments)
	}
	return nil
}

func (s *sessionStore) findOne(ctx context.Context, filter bson.M) (*types.ClassSession, error) {
	var session types.ClassSession
	if err := s.col.FindOne(ctx, filter).Decode(&session); err != nil {
		return nil, mapErr(err)
	}
	return &session, nil
}
