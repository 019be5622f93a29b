package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/account"
	"rollcall/internal/broadcast"
	"rollcall/internal/classroom"
	"rollcall/internal/journal"
	"rollcall/internal/mail"
	"rollcall/internal/mint"
	"rollcall/internal/session"
	"rollcall/internal/store/inmem"
)

type testAPI struct {
	server   *Server
	store    *inmem.Store
	accounts *account.Service
	rooms    *classroom.Service
	ctrl     *session.Controller
	mailer   *captureMail
}

type captureMail struct {
	messages []*mail.Message
}

func (c *captureMail) Send(messages ...*mail.Message) {
	c.messages = append(c.messages, messages...)
}

func (c *captureMail) lastToken(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, c.messages, "no email was sent")
	body := c.messages[len(c.messages)-1].Text
	i := strings.Index(body, "token=")
	require.GreaterOrEqual(t, i, 0, "no token link in email body")
	return strings.TrimSpace(body[i+len("token="):])
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	st := inmem.New()
	mailer := &captureMail{}
	accounts := account.New(account.Config{
		Store:   st,
		Mail:    mailer,
		Secret:  "test-secret",
		BaseURL: "http://localhost:3000",
	})
	rooms := classroom.New(st, nil)

	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	b := broadcast.New(0)
	ctrl := session.NewController(session.ControllerConfig{
		Registry:       session.NewRegistry(st.Sessions(), session.DefaultTokenWindow, nil),
		Mint:           mint.New(),
		Broadcaster:    b,
		Journal:        j,
		Students:       st.Students(),
		Sessions:       st.Sessions(),
		Roster:         rooms,
		RotateInterval: 10 * time.Millisecond,
	})
	t.Cleanup(func() { ctrl.Shutdown(context.Background()) })

	server := NewServer(&Options{
		Addr:           ":0",
		Accounts:       accounts,
		Classrooms:     rooms,
		Controller:     ctrl,
		Broadcaster:    b,
		DisableReqLogs: true,
	})
	return &testAPI{server: server, store: st, accounts: accounts, rooms: rooms, ctrl: ctrl, mailer: mailer}
}

func (a *testAPI) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(echoHeaderContentType, "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.server.ServeHTTP(rec, req)
	return rec
}

const echoHeaderContentType = "Content-Type"

// seedVerifiedStudent creates an org, a teacher with a class, and an
// enrolled, verified student. Returns the student's JWT and the class ID.
func (a *testAPI) seedVerifiedStudent(t *testing.T) (string, string, string) {
	t.Helper()
	ctx := context.Background()

	admin, err := a.accounts.SignupAdmin(ctx, account.AdminSignup{
		Username: "dean", Email: "dean@u.edu", Password: "password123",
		Organization: "State University",
	})
	require.NoError(t, err)
	require.NoError(t, a.accounts.VerifyAdminEmail(ctx, a.mailer.lastToken(t)))

	teacher, err := a.accounts.CreateTeacher(ctx, admin.ID, account.TeacherInput{
		Name: "Grace", Email: "grace@u.edu", Password: "password123", TRN: "TRN1",
	})
	require.NoError(t, err)
	require.NoError(t, a.accounts.VerifyTeacherEmail(ctx, a.mailer.lastToken(t)))

	class, err := a.rooms.CreateClass(ctx, teacher.ID, "Algorithms")
	require.NoError(t, err)

	student, err := a.accounts.SignupStudent(ctx, account.StudentSignup{
		Name: "Ada", Email: "ada@u.edu", Password: "password123",
		University: "State University", SRN: "SRN001",
	})
	require.NoError(t, err)
	require.NoError(t, a.accounts.VerifyStudentEmail(ctx, a.mailer.lastToken(t)))

	_, err = a.rooms.AddStudent(ctx, teacher.ID, class.ID, "SRN001")
	require.NoError(t, err)

	_, token, err := a.accounts.LoginStudent(ctx, "ada@u.edu", "password123")
	require.NoError(t, err)
	return token, student.ID, class.ID
}

func TestServerAppliesReadTimeout(t *testing.T) {
	s := NewServer(&Options{Addr: ":0", ReadTimeout: 7 * time.Second, DisableReqLogs: true})
	assert.Equal(t, 7*time.Second, s.app.Server.ReadTimeout)
	assert.Zero(t, s.app.Server.WriteTimeout, "a write timeout would sever the live streams")
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t)
	rec := a.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestAdminSignupAndLoginOverHTTP(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/v1/admin", "",
		`{"username":"dean","email":"dean@u.edu","password":"password123","organization":"State University"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Duplicate organization conflicts.
	rec = a.do(t, http.MethodPost, "/v1/admin", "",
		`{"username":"rival","email":"rival@u.edu","password":"password123","organization":"State University"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Login is rejected until the email is verified.
	rec = a.do(t, http.MethodPost, "/v1/admin/login", "",
		`{"email":"dean@u.edu","password":"password123"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, http.MethodGet, "/v1/admin/verify-email?token="+a.mailer.lastToken(t), "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodPost, "/v1/admin/login", "",
		`{"email":"dean@u.edu","password":"password123"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"token"`)
}

func TestSignupValidation(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/v1/admin", "",
		`{"username":"dean","email":"not-an-email","password":"short","organization":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	a := newTestAPI(t)
	token, studentID, _ := a.seedVerifiedStudent(t)

	rec := a.do(t, http.MethodGet, "/v1/students/"+studentID, "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodGet, "/v1/students/"+studentID, "garbage-token", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodGet, "/v1/students/"+studentID, token, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	// A student token does not open another student's profile.
	rec = a.do(t, http.MethodGet, "/v1/students/someone-else", token, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Nor teacher routes.
	rec = a.do(t, http.MethodGet, "/v1/teachers/whoever", token, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestScanEndpointRejections(t *testing.T) {
	a := newTestAPI(t)
	token, studentID, classID := a.seedVerifiedStudent(t)

	// No open session.
	rec := a.do(t, http.MethodPost, "/v1/students/"+studentID+"/scan", token,
		`{"classId":"`+classID+`","tokens":["whatever"]}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"accepted":false`)

	// Open a session and mint a token.
	ctx := context.Background()
	sess, sub, err := a.ctrl.OpenDisplay(ctx, classID)
	require.NoError(t, err)
	defer a.ctrl.CloseDisplay(ctx, sess.ID, sub)

	var minted string
	select {
	case tok := <-sub.C:
		minted = tok.Token
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a minted token")
	}

	// A fabricated token rejects the batch.
	rec = a.do(t, http.MethodPost, "/v1/students/"+studentID+"/scan", token,
		`{"classId":"`+classID+`","tokens":["fabricated"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"accepted":false`)

	// The real token is accepted.
	rec = a.do(t, http.MethodPost, "/v1/students/"+studentID+"/scan", token,
		`{"classId":"`+classID+`","tokens":["`+minted+`"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"accepted":true`)

	// Resubmission conflicts.
	rec = a.do(t, http.MethodPost, "/v1/students/"+studentID+"/scan", token,
		`{"classId":"`+classID+`","tokens":["`+minted+`"]}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// The attendance history shows the check-in.
	rec = a.do(t, http.MethodGet, "/v1/students/"+studentID+"/attendance", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), sess.ID)
}

func TestTeacherClassCRUDOverHTTP(t *testing.T) {
	a := newTestAPI(t)
	ctx := context.Background()

	admin, err := a.accounts.SignupAdmin(ctx, account.AdminSignup{
		Username: "dean", Email: "dean@u.edu", Password: "password123",
		Organization: "State University",
	})
	require.NoError(t, err)
	require.NoError(t, a.accounts.VerifyAdminEmail(ctx, a.mailer.lastToken(t)))

	teacher, err := a.accounts.CreateTeacher(ctx, admin.ID, account.TeacherInput{
		Name: "Grace", Email: "grace@u.edu", Password: "password123", TRN: "TRN1",
	})
	require.NoError(t, err)
	require.NoError(t, a.accounts.VerifyTeacherEmail(ctx, a.mailer.lastToken(t)))
	_, token, err := a.accounts.LoginTeacher(ctx, "grace@u.edu", "password123")
	require.NoError(t, err)

	rec := a.do(t, http.MethodPost, "/v1/teachers/"+teacher.ID+"/classes", token,
		`{"name":"Algorithms"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodPost, "/v1/teachers/"+teacher.ID+"/classes", token,
		`{"name":"Algorithms"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAdminTeacherUpdateAndTRNLookup(t *testing.T) {
	a := newTestAPI(t)
	ctx := context.Background()

	admin, err := a.accounts.SignupAdmin(ctx, account.AdminSignup{
		Username: "dean", Email: "dean@u.edu", Password: "password123",
		Organization: "State University",
	})
	require.NoError(t, err)
	require.NoError(t, a.accounts.VerifyAdminEmail(ctx, a.mailer.lastToken(t)))
	_, token, err := a.accounts.LoginAdmin(ctx, "dean@u.edu", "password123")
	require.NoError(t, err)

	teacher, err := a.accounts.CreateTeacher(ctx, admin.ID, account.TeacherInput{
		Name: "Grace", Email: "grace@u.edu", Password: "password123", TRN: "TRN1",
	})
	require.NoError(t, err)

	rec := a.do(t, http.MethodPut, "/v1/admin/"+admin.ID+"/teachers/"+teacher.ID, token,
		`{"phone":"555-0100","department":"Computer Science"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Computer Science")

	updated, err := a.accounts.GetTeacher(ctx, teacher.ID)
	require.NoError(t, err)
	assert.Equal(t, "555-0100", updated.Phone)
	assert.Equal(t, "Grace", updated.Name, "empty fields stay untouched")

	// Lookup by registration number, case-insensitive.
	rec = a.do(t, http.MethodGet, "/v1/admin/"+admin.ID+"/teachers?trn=trn1", token, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "grace@u.edu")

	rec = a.do(t, http.MethodGet, "/v1/admin/"+admin.ID+"/teachers?trn=TRN9", token, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPolicyEndpoints(t *testing.T) {
	a := newTestAPI(t)
	ctx := context.Background()

	admin, err := a.accounts.SignupAdmin(ctx, account.AdminSignup{
		Username: "dean", Email: "dean@u.edu", Password: "password123",
		Organization: "State University",
	})
	require.NoError(t, err)
	require.NoError(t, a.accounts.VerifyAdminEmail(ctx, a.mailer.lastToken(t)))
	_, token, err := a.accounts.LoginAdmin(ctx, "dean@u.edu", "password123")
	require.NoError(t, err)

	rec := a.do(t, http.MethodPut, "/v1/admin/"+admin.ID+"/ip", token,
		`{"allowedIp":"198.51.100.7"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"ipVerification":true`)

	rec = a.do(t, http.MethodPut, "/v1/admin/"+admin.ID+"/ip", token,
		`{"allowedIp":"not-an-ip"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPut, "/v1/admin/"+admin.ID+"/location", token,
		`{"lat":12.9716,"long":77.5946,"radiusMeters":100}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"locationVerification":true`)

	policy, err := a.accounts.PolicyForOrganization(ctx, "State University")
	require.NoError(t, err)
	assert.NotNil(t, policy.Fence)
}
