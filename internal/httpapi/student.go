package httpapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"rollcall/internal/account"
	"rollcall/internal/session"
	"rollcall/pkg/types"
)

func (s *Server) registerStudentRoutes(g *echo.Group, auth echo.MiddlewareFunc) {
	students := g.Group("/students")

	students.POST("", s.studentSignup, s.creds)
	students.POST("/login", s.studentLogin, s.creds)
	students.GET("/verify-email", s.studentVerifyEmail)
	students.POST("/forgot-password", s.studentForgotPassword, s.creds)
	students.POST("/reset-password", s.studentResetPassword, s.creds)

	owner := students.Group("/:id", auth, roleRequired(types.RoleStudent), selfOnly)
	owner.GET("", s.studentProfile)
	owner.PUT("", s.studentUpdate)
	owner.GET("/classes", s.studentClasses)
	owner.POST("/scan", s.studentScan)
	owner.GET("/attendance", s.studentAttendance)
	owner.GET("/attendance/:cid", s.studentAttendanceByClass)
	owner.GET("/attendance-stats", s.studentAttendanceStats)
}

func (s *Server) studentSignup(c echo.Context) error {
	var in account.StudentSignup
	if err := c.Bind(&in); err != nil {
		return err
	}
	if err := c.Validate(&in); err != nil {
		return err
	}
	student, err := s.opts.Accounts.SignupStudent(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, student)
}

func (s *Server) studentLogin(c echo.Context) error {
	var in loginRequest
	if err := c.Bind(&in); err != nil {
		return err
	}
	if err := c.Validate(&in); err != nil {
		return err
	}
	student, token, err := s.opts.Accounts.LoginStudent(c.Request().Context(), in.Email, in.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"token": token, "account": student})
}

func (s *Server) studentVerifyEmail(c echo.Context) error {
	if err := s.opts.Accounts.VerifyStudentEmail(c.Request().Context(), c.QueryParam("token")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"verified": true})
}

func (s *Server) studentForgotPassword(c echo.Context) error {
	var in forgotPasswordRequest
	if err := c.Bind(&in); err != nil {
		return err
	}
	if err := c.Validate(&in); err != nil {
		return err
	}
	if err := s.opts.Accounts.ForgotStudentPassword(c.Request().Context(), in.Email); err != nil {
		return err
	}
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) studentResetPassword(c echo.Context) error {
	var in resetPasswordRequest
	if err := c.Bind(&in); err != nil {
		return err
	}
	if err := c.Validate(&in); err != nil {
		return err
	}
	if err := s.opts.Accounts.ResetStudentPassword(c.Request().Context(), c.QueryParam("token"), in.Password); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"reset": true})
}

func (s *Server) studentProfile(c echo.Context) error {
	student, err := s.opts.Accounts.GetStudent(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, student)
}

func (s *Server) studentUpdate(c echo.Context) error {
	var in account.StudentUpdate
	if err := c.Bind(&in); err != nil {
		return err
	}
	student, err := s.opts.Accounts.UpdateStudent(c.Request().Context(), c.Param("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, student)
}

func (s *Server) studentClasses(c echo.Context) error {
	classes, err := s.opts.Classrooms.StudentClasses(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, classes)
}

type scanRequest struct {
	ClassID string   `json:"classId" validate:"required"`
	Tokens  []string `json:"tokens"`
	Lat     *float64 `json:"lat"`
	Long    *float64 `json:"long"`
}

// studentScan submits the batch of observed tokens. The source IP comes from
// the connection, never the body.
func (s *Server) studentScan(c echo.Context) error {
	var in scanRequest
	if err := c.Bind(&in); err != nil {
		return err
	}
	if err := c.Validate(&in); err != nil {
		return err
	}

	scan := types.Scan{
		StudentID: c.Param("id"),
		ClassID:   in.ClassID,
		Tokens:    in.Tokens,
		SourceIP:  c.RealIP(),
	}
	if in.Lat != nil && in.Long != nil {
		scan.Location = &types.GeoPoint{Lat: *in.Lat, Long: *in.Long}
	}

	checkIn, err := s.opts.Controller.SubmitScan(c.Request().Context(), scan)
	if err != nil {
		if session.IsRejection(err) {
			code, _ := statusOf(err)
			return c.JSON(code, echo.Map{"accepted": false, "reason": err.Error()})
		}
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"accepted": true, "checkIn": checkIn})
}

func (s *Server) studentAttendance(c echo.Context) error {
	ctx := c.Request().Context()
	if day := c.QueryParam("date"); day != "" {
		at, err := time.Parse("2006-01-02", day)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
		}
		entries, err := s.opts.Classrooms.AttendanceByDate(ctx, c.Param("id"), at)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, entries)
	}
	entries, err := s.opts.Classrooms.Attendance(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entries)
}

func (s *Server) studentAttendanceByClass(c echo.Context) error {
	entries, err := s.opts.Classrooms.AttendanceByClass(c.Request().Context(), c.Param("id"), c.Param("cid"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entries)
}

func (s *Server) studentAttendanceStats(c echo.Context) error {
	stats, err := s.opts.Classrooms.Stats(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}
