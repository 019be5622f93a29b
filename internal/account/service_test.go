package account

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	intmail "rollcall/internal/mail"
	"rollcall/internal/store/inmem"
	"rollcall/pkg/types"
)

// captureMail records outbound messages so tests can pull tokens out of the
// links.
type captureMail struct {
	messages []*intmail.Message
}

func (c *captureMail) Send(messages ...*intmail.Message) {
	c.messages = append(c.messages, messages...)
}

func (c *captureMail) lastToken(t *testing.T) string {
	t.Helper()
	if len(c.messages) == 0 {
		t.Fatal("no email was sent")
	}
	body := c.messages[len(c.messages)-1].Text
	i := strings.Index(body, "token=")
	if i < 0 {
		t.Fatalf("no token link in email body: %q", body)
	}
	return strings.TrimSpace(body[i+len("token="):])
}

func newTestService(t *testing.T) (*Service, *captureMail) {
	t.Helper()
	mailer := &captureMail{}
	svc := New(Config{
		Store:   inmem.New(),
		Mail:    mailer,
		Secret:  "test-secret",
		BaseURL: "http://localhost:3000",
	})
	return svc, mailer
}

func signupVerifiedAdmin(t *testing.T, svc *Service, mailer *captureMail) *types.Admin {
	t.Helper()
	admin, err := svc.SignupAdmin(context.Background(), AdminSignup{
		Username:     "dean",
		Email:        "Dean@University.edu",
		Password:     "correct-horse",
		Organization: "State University",
	})
	if err != nil {
		t.Fatalf("SignupAdmin failed: %v", err)
	}
	if err := svc.VerifyAdminEmail(context.Background(), mailer.lastToken(t)); err != nil {
		t.Fatalf("VerifyAdminEmail failed: %v", err)
	}
	return admin
}

func TestAdminSignupLoginFlow(t *testing.T) {
	svc, mailer := newTestService(t)
	ctx := context.Background()

	admin, err := svc.SignupAdmin(ctx, AdminSignup{
		Username:     "dean",
		Email:        "Dean@University.edu",
		Password:     "correct-horse",
		Organization: "State University",
	})
	if err != nil {
		t.Fatalf("SignupAdmin failed: %v", err)
	}
	if admin.Email != "dean@university.edu" {
		t.Errorf("email = %q, want lowercased", admin.Email)
	}
	if admin.PasswordHash == "correct-horse" {
		t.Error("password stored unhashed")
	}

	// Unverified accounts cannot log in.
	if _, _, err := svc.LoginAdmin(ctx, admin.Email, "correct-horse"); !errors.Is(err, ErrEmailNotVerified) {
		t.Fatalf("login before verification = %v, want ErrEmailNotVerified", err)
	}

	if err := svc.VerifyAdminEmail(ctx, mailer.lastToken(t)); err != nil {
		t.Fatalf("VerifyAdminEmail failed: %v", err)
	}

	got, jwt, err := svc.LoginAdmin(ctx, "DEAN@university.edu", "correct-horse")
	if err != nil {
		t.Fatalf("login after verification failed: %v", err)
	}
	if got.ID != admin.ID {
		t.Errorf("login returned account %s, want %s", got.ID, admin.ID)
	}

	claims, err := svc.VerifyAuthToken(jwt)
	if err != nil {
		t.Fatalf("VerifyAuthToken failed: %v", err)
	}
	if claims.Subject != admin.ID || claims.Role != types.RoleAdmin || claims.Organization != "State University" {
		t.Errorf("claims = %+v, want admin identity", claims)
	}

	if _, _, err := svc.LoginAdmin(ctx, admin.Email, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password = %v, want ErrInvalidCredentials", err)
	}
}

func TestAdminSignupDuplicateOrganization(t *testing.T) {
	svc, mailer := newTestService(t)
	signupVerifiedAdmin(t, svc, mailer)

	_, err := svc.SignupAdmin(context.Background(), AdminSignup{
		Username:     "rival",
		Email:        "rival@other.edu",
		Password:     "password123",
		Organization: "State University",
	})
	if !errors.Is(err, ErrDuplicateAccount) {
		t.Fatalf("duplicate organization signup = %v, want ErrDuplicateAccount", err)
	}
}

func TestVerifyEmailBadToken(t *testing.T) {
	svc, _ := newTestService(t)
	if err := svc.VerifyAdminEmail(context.Background(), "nope"); !errors.Is(err, ErrInvalidEmailToken) {
		t.Fatalf("bad token = %v, want ErrInvalidEmailToken", err)
	}
	if err := svc.VerifyAdminEmail(context.Background(), ""); !errors.Is(err, ErrInvalidEmailToken) {
		t.Fatalf("empty token = %v, want ErrInvalidEmailToken", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	svc, mailer := newTestService(t)
	ctx := context.Background()
	admin := signupVerifiedAdmin(t, svc, mailer)

	if err := svc.ForgotAdminPassword(ctx, admin.Email); err != nil {
		t.Fatalf("ForgotAdminPassword failed: %v", err)
	}
	token := mailer.lastToken(t)

	if err := svc.ResetAdminPassword(ctx, token, "new-password-1"); err != nil {
		t.Fatalf("ResetAdminPassword failed: %v", err)
	}
	if _, _, err := svc.LoginAdmin(ctx, admin.Email, "new-password-1"); err != nil {
		t.Fatalf("login with new password failed: %v", err)
	}
	if _, _, err := svc.LoginAdmin(ctx, admin.Email, "correct-horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("old password still works after reset")
	}

	// The token was signed against the old hash; it is spent.
	if err := svc.ResetAdminPassword(ctx, token, "another-one"); !errors.Is(err, ErrInvalidResetToken) {
		t.Fatalf("token reuse = %v, want ErrInvalidResetToken", err)
	}
}

func TestPasswordResetTokenExpires(t *testing.T) {
	mailer := &captureMail{}
	past := time.Now().Add(-10 * time.Minute)
	svc := New(Config{
		Store:   inmem.New(),
		Mail:    mailer,
		Secret:  "test-secret",
		BaseURL: "http://localhost:3000",
		Now:     func() time.Time { return past },
	})
	ctx := context.Background()

	if _, err := svc.SignupAdmin(ctx, AdminSignup{
		Username: "dean", Email: "dean@u.edu", Password: "correct-horse", Organization: "U",
	}); err != nil {
		t.Fatalf("SignupAdmin failed: %v", err)
	}
	if err := svc.ForgotAdminPassword(ctx, "dean@u.edu"); err != nil {
		t.Fatalf("ForgotAdminPassword failed: %v", err)
	}

	// Issued 10 minutes ago against a 5-minute window.
	if err := svc.ResetAdminPassword(ctx, mailer.lastToken(t), "new-password"); !errors.Is(err, ErrInvalidResetToken) {
		t.Fatalf("expired token = %v, want ErrInvalidResetToken", err)
	}
}

func TestForgotPasswordUnknownAddressIsSilent(t *testing.T) {
	svc, mailer := newTestService(t)
	if err := svc.ForgotAdminPassword(context.Background(), "ghost@nowhere.edu"); err != nil {
		t.Fatalf("unknown address returned an error: %v", err)
	}
	if len(mailer.messages) != 0 {
		t.Error("email was sent for an unknown address")
	}
}

func TestCreateTeacherInheritsOrganization(t *testing.T) {
	svc, mailer := newTestService(t)
	ctx := context.Background()
	admin := signupVerifiedAdmin(t, svc, mailer)

	teacher, err := svc.CreateTeacher(ctx, admin.ID, TeacherInput{
		Name:     "Grace Hopper",
		Email:    "Grace@University.edu",
		Password: "password123",
		TRN:      "trn-42",
	})
	if err != nil {
		t.Fatalf("CreateTeacher failed: %v", err)
	}
	if teacher.Organization != admin.Organization {
		t.Errorf("teacher org = %q, want %q", teacher.Organization, admin.Organization)
	}
	if teacher.TRN != "TRN-42" {
		t.Errorf("TRN = %q, want uppercased", teacher.TRN)
	}

	if err := svc.VerifyTeacherEmail(ctx, mailer.lastToken(t)); err != nil {
		t.Fatalf("VerifyTeacherEmail failed: %v", err)
	}
	if _, _, err := svc.LoginTeacher(ctx, "grace@university.edu", "password123"); err != nil {
		t.Fatalf("teacher login failed: %v", err)
	}

	found, err := svc.GetTeacherByTRN(ctx, admin.Organization, "trn-42")
	if err != nil {
		t.Fatalf("GetTeacherByTRN failed: %v", err)
	}
	if found.ID != teacher.ID {
		t.Errorf("TRN lookup returned %s, want %s", found.ID, teacher.ID)
	}
}

func TestStudentSignupRequiresKnownOrganization(t *testing.T) {
	svc, mailer := newTestService(t)
	ctx := context.Background()

	_, err := svc.SignupStudent(ctx, StudentSignup{
		Name: "Ada", Email: "ada@u.edu", Password: "password123",
		University: "Nowhere Tech", SRN: "srn001",
	})
	if !errors.Is(err, ErrUnknownOrganization) {
		t.Fatalf("unknown university = %v, want ErrUnknownOrganization", err)
	}

	signupVerifiedAdmin(t, svc, mailer)
	student, err := svc.SignupStudent(ctx, StudentSignup{
		Name: "Ada", Email: "Ada@U.edu", Password: "password123",
		University: "State University", SRN: "srn001",
	})
	if err != nil {
		t.Fatalf("SignupStudent failed: %v", err)
	}
	if student.SRN != "SRN001" {
		t.Errorf("SRN = %q, want uppercased", student.SRN)
	}
	if student.Email != "ada@u.edu" {
		t.Errorf("email = %q, want lowercased", student.Email)
	}

	// Same SRN in the same organization is taken.
	_, err = svc.SignupStudent(ctx, StudentSignup{
		Name: "Imposter", Email: "other@u.edu", Password: "password123",
		University: "State University", SRN: "SRN001",
	})
	if !errors.Is(err, ErrDuplicateAccount) {
		t.Fatalf("duplicate SRN = %v, want ErrDuplicateAccount", err)
	}
}

func TestIPPolicyToggle(t *testing.T) {
	svc, mailer := newTestService(t)
	ctx := context.Background()
	admin := signupVerifiedAdmin(t, svc, mailer)

	// Enabling without an address fails.
	if _, err := svc.ToggleIPPolicy(ctx, admin.ID); !errors.Is(err, ErrPolicyAllowedIPUnset) {
		t.Fatalf("toggle without address = %v, want ErrPolicyAllowedIPUnset", err)
	}

	policy, err := svc.SetIPPolicy(ctx, admin.ID, "198.51.100.7")
	if err != nil {
		t.Fatalf("SetIPPolicy failed: %v", err)
	}
	if !policy.IPVerification || policy.AllowedIP != "198.51.100.7" {
		t.Errorf("policy = %+v, want IP verification on", policy)
	}

	// Disabling clears the stored address.
	policy, err = svc.ToggleIPPolicy(ctx, admin.ID)
	if err != nil {
		t.Fatalf("ToggleIPPolicy failed: %v", err)
	}
	if policy.IPVerification || policy.AllowedIP != "" {
		t.Errorf("policy after disable = %+v, want cleared", policy)
	}
}

func TestLocationPolicy(t *testing.T) {
	svc, mailer := newTestService(t)
	ctx := context.Background()
	admin := signupVerifiedAdmin(t, svc, mailer)

	center := types.GeoPoint{Lat: 12.9716, Long: 77.5946}
	policy, err := svc.SetLocationPolicy(ctx, admin.ID, center, 100)
	if err != nil {
		t.Fatalf("SetLocationPolicy failed: %v", err)
	}
	if !policy.LocationVerification || policy.Fence == nil || policy.Center == nil {
		t.Fatalf("policy = %+v, want location verification with a fence", policy)
	}
	if policy.Fence.TopLeft.Lat <= center.Lat || policy.Fence.BottomRight.Lat >= center.Lat {
		t.Errorf("fence %+v does not bracket the center latitude", policy.Fence)
	}

	resolved, err := svc.PolicyForOrganization(ctx, admin.Organization)
	if err != nil {
		t.Fatalf("PolicyForOrganization failed: %v", err)
	}
	if !resolved.LocationVerification {
		t.Error("resolved policy lost location verification")
	}

	policy, err = svc.ToggleLocationPolicy(ctx, admin.ID)
	if err != nil {
		t.Fatalf("ToggleLocationPolicy failed: %v", err)
	}
	if policy.LocationVerification || policy.Fence != nil || policy.Center != nil {
		t.Errorf("policy after disable = %+v, want cleared", policy)
	}
}

func TestStudentProfileUpdate(t *testing.T) {
	svc, mailer := newTestService(t)
	ctx := context.Background()
	signupVerifiedAdmin(t, svc, mailer)

	student, err := svc.SignupStudent(ctx, StudentSignup{
		Name: "Ada", Email: "ada@u.edu", Password: "password123",
		University: "State University", SRN: "SRN001", Phone: "111",
	})
	if err != nil {
		t.Fatalf("SignupStudent failed: %v", err)
	}

	updated, err := svc.UpdateStudent(ctx, student.ID, StudentUpdate{Name: "Ada Lovelace"})
	if err != nil {
		t.Fatalf("UpdateStudent failed: %v", err)
	}
	if updated.Name != "Ada Lovelace" {
		t.Errorf("name = %q, want updated", updated.Name)
	}
	if updated.Phone != "111" {
		t.Errorf("phone = %q, empty update overwrote it", updated.Phone)
	}
}

func TestUpdateTeacherScopedToOrganization(t *testing.T) {
	svc, mailer := newTestService(t)
	ctx := context.Background()
	admin := signupVerifiedAdmin(t, svc, mailer)

	teacher, err := svc.CreateTeacher(ctx, admin.ID, TeacherInput{
		Name: "Grace Hopper", Email: "grace@university.edu",
		Password: "password123", TRN: "TRN-42",
	})
	if err != nil {
		t.Fatalf("CreateTeacher failed: %v", err)
	}

	updated, err := svc.UpdateTeacher(ctx, admin.ID, teacher.ID, TeacherUpdate{
		Department: "Computer Science",
	})
	if err != nil {
		t.Fatalf("UpdateTeacher failed: %v", err)
	}
	if updated.Department != "Computer Science" {
		t.Errorf("department = %q, want Computer Science", updated.Department)
	}
	if updated.Name != "Grace Hopper" {
		t.Errorf("name = %q, empty update fields must stay untouched", updated.Name)
	}

	rival, err := svc.SignupAdmin(ctx, AdminSignup{
		Username: "rival", Email: "rival@other.edu",
		Password: "password123", Organization: "Other University",
	})
	if err != nil {
		t.Fatalf("SignupAdmin failed: %v", err)
	}
	if _, err := svc.UpdateTeacher(ctx, rival.ID, teacher.ID, TeacherUpdate{Name: "X"}); !errors.Is(err, ErrWrongOrganization) {
		t.Fatalf("cross-org UpdateTeacher error = %v, want ErrWrongOrganization", err)
	}
}
