package types

import (
	"time"
)

// Session lifecycle states.
const (
	SessionStatusOpen   = "open"
	SessionStatusClosed = "closed"
)

// Roles carried in authenticated requests.
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Lat  float64 `json:"lat" bson:"lat"`
	Long float64 `json:"long" bson:"long"`
}

// GeoFence is a bounding rectangle derived from a center point and a radius.
// TopLeft is north-west of BottomRight.
type GeoFence struct {
	TopLeft     GeoPoint `json:"topLeft" bson:"topLeft"`
	BottomRight GeoPoint `json:"bottomRight" bson:"bottomRight"`
}

// OrganizationPolicy is the org-wide check-in policy, owned by the
// organization admin and read-only from the session engine's side.
type OrganizationPolicy struct {
	IPVerification       bool      `json:"ipVerification" bson:"ipVerification"`
	AllowedIP            string    `json:"allowedIp,omitempty" bson:"allowedIp,omitempty"`
	LocationVerification bool      `json:"locationVerification" bson:"locationVerification"`
	Center               *GeoPoint `json:"center,omitempty" bson:"center,omitempty"`
	Fence                *GeoFence `json:"fence,omitempty" bson:"fence,omitempty"`
}

// ActiveToken is one minted proof-of-presence token with its mint time.
// Tokens are opaque and not bound to a particular student.
type ActiveToken struct {
	Token    string    `json:"token" bson:"token"`
	MintedAt time.Time `json:"mintedAt" bson:"mintedAt"`
}

// CheckIn records one student's accepted check-in within a session.
type CheckIn struct {
	StudentID   string    `json:"studentId" bson:"studentId"`
	SRN         string    `json:"srn" bson:"srn"`
	Name        string    `json:"name" bson:"name"`
	CheckedInAt time.Time `json:"checkedInAt" bson:"checkedInAt"`
}

// ClassSession is one attendance-taking window for a class. At most one
// session per class is open at a time; closed sessions are retained as the
// historical attendance record with ActiveTokens cleared.
type ClassSession struct {
	ID           string        `json:"id" bson:"_id"`
	ClassID      string        `json:"classId" bson:"classId"`
	ClassName    string        `json:"className" bson:"className"`
	TeacherID    string        `json:"teacherId" bson:"teacherId"`
	Organization string        `json:"organization" bson:"organization"`
	OpenedAt     time.Time     `json:"openedAt" bson:"openedAt"`
	ClosedAt     *time.Time    `json:"closedAt,omitempty" bson:"closedAt,omitempty"`
	Status       string        `json:"status" bson:"status"`
	ActiveTokens []ActiveToken `json:"activeTokens" bson:"activeTokens"`
	CheckedIn    []CheckIn     `json:"checkedIn" bson:"checkedIn"`
}

// HasCheckedIn reports whether the student already appears in this session.
func (s *ClassSession) HasCheckedIn(studentID string) bool {
	for _, c := range s.CheckedIn {
		if c.StudentID == studentID {
			return true
		}
	}
	return false
}

// AttendanceEntry is one row of a student's append-only attendance history.
// An entry exists for (studentID, sessionID) exactly when that student
// appears in the corresponding ClassSession.CheckedIn.
type AttendanceEntry struct {
	SessionID  string    `json:"sessionId" bson:"sessionId"`
	ClassID    string    `json:"classId" bson:"classId"`
	ClassName  string    `json:"className" bson:"className"`
	RecordedAt time.Time `json:"recordedAt" bson:"recordedAt"`
}

// Class is a teacher-owned roster. Stored embedded in the teacher document.
type Class struct {
	ID         string   `json:"id" bson:"_id"`
	Name       string   `json:"name" bson:"name"`
	StudentIDs []string `json:"studentIds" bson:"studentIds"`
}

// HasStudent reports roster membership.
func (c *Class) HasStudent(studentID string) bool {
	for _, id := range c.StudentIDs {
		if id == studentID {
			return true
		}
	}
	return false
}

// PresenceUpdate is pushed to monitor subscribers whenever the checked-in
// roster of the open session changes.
type PresenceUpdate struct {
	SessionID string    `json:"sessionId"`
	ClassID   string    `json:"classId"`
	CheckedIn []CheckIn `json:"checkedIn"`
}

// Scan is one student scan submission: the batch of tokens observed over a
// short period plus optional network and location evidence.
type Scan struct {
	StudentID string
	ClassID   string
	Tokens    []string
	SourceIP  string
	Location  *GeoPoint
}
