package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"rollcall/pkg/types"
)

type adminStore struct {
	col *mongo.Collection
}

func (s *adminStore) Create(ctx context.Context, admin *types.Admin) error {
	_, err := s.col.InsertOne(ctx, admin)
	return mapErr(err)
}

func (s *adminStore) GetByID(ctx context.Context, id string) (*types.Admin, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *adminStore) GetByEmail(ctx context.Context, email string) (*types.Admin, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *adminStore) GetByEmailToken(ctx context.Context, token string) (*types.Admin, error) {
	if token == "" {
		return nil, mapErr(mongo.ErrNoDocuments)
	}
	return s.findOne(ctx, bson.M{"emailToken": token})
}

func (s *adminStore) GetByOrganization(ctx context.Context, org string) (*types.Admin, error) {
	return s.findOne(ctx, bson.M{"organization": org})
}

func (s *adminStore) ListOrganizations(ctx context.Context) ([]string, error) {
	raw, err := s.col.Distinct(ctx, "organization", bson.M{"verified": true})
	if err != nil {
		return nil, mapErr(err)
	}
	orgs := make([]string, 0, len(raw))
	for _, v := range raw {
		if org, ok := v.(string); ok {
			orgs = append(orgs, org)
		}
	}
	return orgs, nil
}

func (s *adminStore) Update(ctx context.Context, admin *types.Admin) error {
	res, err := s.col.ReplaceOne(ctx, bson.M{"_id": admin.ID}, admin)
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return mapErr(mongo.ErrNoDocuments)
	}
	return nil
}

func (s *adminStore) findOne(ctx context.Context, filter bson.M) (*types.Admin, error) {
	var admin types.Admin
	if err := s.col.FindOne(ctx, filter).Decode(&admin); err != nil {
		return nil, mapErr(err)
	}
	return &admin, nil
}

type teacherStore struct {
	col *mongo.Collection
}

func (s *teacherStore) Create(ctx context.Context, teacher *types.Teacher) error {
	_, err := s.col.InsertOne(ctx, teacher)
	return mapErr(err)
}

func (s *teacherStore) GetByID(ctx context.Context, id string) (*types.Teacher, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *teacherStore) GetByEmail(ctx context.Context, email string) (*types.Teacher, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *teacherStore) GetByEmailToken(ctx context.Context, token string) (*types.Teacher, error) {
	if token == "" {
		return nil, mapErr(mongo.ErrNoDocuments)
	}
	return s.findOne(ctx, bson.M{"emailToken": token})
}

func (s *teacherStore) GetByTRN(ctx context.Context, org, trn string) (*types.Teacher, error) {
	return s.findOne(ctx, bson.M{"organization": org, "trn": trn})
}

func (s *teacherStore) GetByClassID(ctx context.Context, classID string) (*types.Teacher, error) {
	return s.findOne(ctx, bson.M{"classes._id": classID})
}

func (s *teacherStore) ListByOrganization(ctx context.Context, org string) ([]*types.Teacher, error) {
	cur, err := s.col.Find(ctx, bson.M{"organization": org})
	if err != nil {
		return nil, mapErr(err)
	}
	var teachers []*types.Teacher
	if err := cur.All(ctx, &teachers); err != nil {
		return nil, mapErr(err)
	}
	return teachers, nil
}

func (s *teacherStore) Update(ctx context.Context, teacher *types.Teacher) error {
	res, err := s.col.ReplaceOne(ctx, bson.M{"_id": teacher.ID}, teacher)
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return mapErr(mongo.ErrNoDocuments)
	}
	return nil
}

func (s *teacherStore) Delete(ctx context.Context, id string) error {
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return mapErr(err)
	}
	if res.DeletedCount == 0 {
		return mapErr(mongo.ErrNoDocuments)
	}
	return nil
}

func (s *teacherStore) findOne(ctx context.Context, filter bson.M) (*types.Teacher, error) {
	var teacher types.Teacher
	if err := s.col.FindOne(ctx, filter).Decode(&teacher); err != nil {
		return nil, mapErr(err)
	}
	return &teacher, nil
}

type studentStore struct {
	col *mongo.Collection
}

func (s *studentStore) Create(ctx context.Context, student *types.Student) error {
	_, err := s.col.InsertOne(ctx, student)
	return mapErr(err)
}

func (s *studentStore) GetByID(ctx context.Context, id string) (*types.Student, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *studentStore) GetByEmail(ctx context.Context, email string) (*types.Student, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *studentStore) GetByEmailToken(ctx context.Context, token string) (*types.Student, error) {
	if token == "" {
		return nil, mapErr(mongo.ErrNoDocuments)
	}
	return s.findOne(ctx, bson.M{"emailToken": token})
}

func (s *studentStore) GetBySRN(ctx context.Context, org, srn string) (*types.Student, error) {
	return s.findOne(ctx, bson.M{"university": org, "srn": srn})
}

func (s *studentStore) ListByOrganization(ctx context.Context, org string) ([]*types.Student, error) {
	cur, err := s.col.Find(ctx, bson.M{"university": org})
	if err != nil {
		return nil, mapErr(err)
	}
	var students []*types.Student
	if err := cur.All(ctx, &students); err != nil {
		return nil, mapErr(err)
	}
	return students, nil
}

func (s *studentStore) Update(ctx context.Context, student *types.Student) error {
	res, err := s.col.ReplaceOne(ctx, bson.M{"_id": student.ID}, student)
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return mapErr(mongo.ErrNoDocuments)
	}
	return nil
}

func (s *studentStore) AppendAttendance(ctx context.Context, studentID string, entry types.AttendanceEntry) error {
	// The sessionId guard keeps replays from the journal reconciler idempotent.
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": studentID, "attendance.sessionId": bson.M{"$ne": entry.SessionID}},
		bson.M{"$push": bson.M{"attendance": entry}},
	)
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		// Either the student does not exist or the entry is already applied.
		if _, err := s.GetByID(ctx, studentID); err != nil {
			return err
		}
	}
	return nil
}

func (s *studentStore) RemoveAttendance(ctx context.Context, studentID, sessionID string) error {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": studentID},
		bson.M{"$pull": bson.M{"attendance": bson.M{"sessionId": sessionID}}},
	)
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return mapErr(mongo.ErrNoDocuments)
	}
	return nil
}

func (s *studentStore) findOne(ctx context.Context, filter bson.M) (*types.Student, error) {
	var student types.Student
	if err := s.col.FindOne(ctx, filter).Decode(&student); err != nil {
		return nil, mapErr(err)
	}
	return &student, nil
}
