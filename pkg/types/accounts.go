package types

import "time"

// Admin is an organization-owner account. The org-wide check-in policy
// lives on the admin document, mirroring the one-admin-per-organization
// deployment model.
type Admin struct {
	ID           string             `json:"id" bson:"_id"`
	Username     string             `json:"username" bson:"username"`
	Email        string             `json:"email" bson:"email"`
	PasswordHash string             `json:"-" bson:"passwordHash"`
	Organization string             `json:"organization" bson:"organization"`
	Role         string             `json:"role" bson:"role"`
	EmailToken   string             `json:"-" bson:"emailToken,omitempty"`
	Verified     bool               `json:"verified" bson:"verified"`
	Policy       OrganizationPolicy `json:"policy" bson:"policy"`
	CreatedAt    time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// Teacher is a teacher account, created by its organization admin. Classes
// are embedded, the way the source data model keeps them.
type Teacher struct {
	ID           string    `json:"id" bson:"_id"`
	Name         string    `json:"name" bson:"name"`
	Email        string    `json:"email" bson:"email"`
	PasswordHash string    `json:"-" bson:"passwordHash"`
	Phone        string    `json:"phone" bson:"phone"`
	TRN          string    `json:"trn" bson:"trn"`
	Organization string    `json:"organization" bson:"organization"`
	Department   string    `json:"department" bson:"department"`
	Role         string    `json:"role" bson:"role"`
	EmailToken   string    `json:"-" bson:"emailToken,omitempty"`
	Verified     bool      `json:"verified" bson:"verified"`
	Classes      []Class   `json:"classes" bson:"classes"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updatedAt"`
}

// ClassByID returns the embedded class with the given ID, if any.
func (t *Teacher) ClassByID(classID string) (*Class, bool) {
	for i := range t.Classes {
		if t.Classes[i].ID == classID {
			return &t.Classes[i], true
		}
	}
	return nil, false
}

// ClassRef is a student's view of one class they are enrolled in.
type ClassRef struct {
	ClassID   string    `json:"classId" bson:"classId"`
	ClassName string    `json:"className" bson:"className"`
	TeacherID string    `json:"teacherId" bson:"teacherId"`
	AddedAt   time.Time `json:"addedAt" bson:"addedAt"`
}

// Student is a self-registered student account. Attendance is the student's
// append-only check-in history, kept consistent with ClassSession.CheckedIn.
type Student struct {
	ID           string            `json:"id" bson:"_id"`
	Name         string            `json:"name" bson:"name"`
	Email        string            `json:"email" bson:"email"`
	PasswordHash string            `json:"-" bson:"passwordHash"`
	Phone        string            `json:"phone" bson:"phone"`
	University   string            `json:"university" bson:"university"`
	Department   string            `json:"department" bson:"department"`
	SRN          string            `json:"srn" bson:"srn"`
	Role         string            `json:"role" bson:"role"`
	EmailToken   string            `json:"-" bson:"emailToken,omitempty"`
	Verified     bool              `json:"verified" bson:"verified"`
	Classes      []ClassRef        `json:"classes" bson:"classes"`
	Attendance   []AttendanceEntry `json:"attendance" bson:"attendance"`
	CreatedAt    time.Time         `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt" bson:"updatedAt"`
}

// EnrolledIn reports whether the student holds a reference to classID.
func (s *Student) EnrolledIn(classID string) bool {
	for _, c := range s.Classes {
		if c.ClassID == classID {
			return true
		}
	}
	return false
}
