package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"rollcall/internal/account"
	"rollcall/pkg/types"
)

func (s *Server) registerAdminRoutes(g *echo.Group, auth echo.MiddlewareFunc) {
	admin := g.Group("/admin")

	admin.POST("", s.adminSignup, s.creds)
	admin.POST("/login", s.adminLogin, s.creds)
	admin.GET("/verify-email", s.adminVerifyEmail)
	admin.POST("/forgot-password", s.adminForgotPassword, s.creds)
	admin.POST("/reset-password", s.adminResetPassword, s.creds)

	owner := admin.Group("/:id", auth, roleRequired(types.RoleAdmin), selfOnly)
	owner.GET("", s.adminProfile)
	owner.POST("/teachers", s.adminCreateTeacher)
	owner.GET("/teachers", s.adminListTeachers)
	owner.PUT("/teachers/:tid", s.adminUpdateTeacher)
	owner.DELETE("/teachers/:tid", s.adminDeleteTeacher)
	owner.GET("/students", s.adminListStudents)
	owner.PUT("/ip", s.adminSetIP)
	owner.POST("/ip/toggle", s.adminToggleIP)
	owner.PUT("/location", s.adminSetLocation)
	owner.POST("/location/toggle", s.adminToggleLocation)
}

func (s *Server) adminSignup(c echo.Context) error {
	var in account.AdminSignup
	if err := c.Bind(&in); err != nil {
		return err
	}
	if err := c.Validate(&in); err != nil {
		return err
	}
	admin, err := s.opts.Accounts.SignupAdmin(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, admin)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) adminLogin(c echo.Context) error {
	var in loginRequest
	if err := c.Bind(&in); err != nil {
		return err
	}
	if err := c.Validate(&in); err != nil {
		return err
	}
	admin, token, err := s.opts.Accounts.LoginAdmin(c.Request().Context(), in.Email, in.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"token": token, "account": admin})
}

func (s *Server) adminVerifyEmail(c echo.Context) error {
	if err := s.opts.Accounts.VerifyAdminEmail(c.Request().Context(), c.QueryParam("token")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"verified": true})
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (s *Server) adminForgotPassword(c echo.Context) error {
	var in forgotPasswordRequest
	if err := c.Bind(&in); err != nil {
		return err
	}
	if err := c.Validate(&in); err != nil {
		return err
	}
	if err := s.opts.Accounts.ForgotAdminPassword(c.Request().Context(), in.Email); err != nil {
		return err
	}
	return c.NoContent(http.StatusAccepted)
}

type resetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=8"`
}

func (s *Server) adminResetPassword(c echo.Context) error {
	var in resetPasswordRequest
	if err := c.Bind(&in); err != nil {
		return err
	}
	if err := c.Validate(&in); err != nil {
		return err
	}
	if err := s.opts.Accounts.ResetAdminPassword(c.Request().Context(), c.QueryParam("token"), in.Password); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"reset": true})
}

func (s *Server) adminProfile(c echo.Context) error {
	admin, err := s.opts.Accounts.GetAdmin(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, admin)
}

func (s *Server) adminCreateTeacher(c echo.Context) error {
	var in account.TeacherInput
	if err := c.Bind(&in); err != nil {
		return err
	}
	if err := c.Validate(&in); err != nil {
		return err
	}
	teacher, err := s.opts.Accounts.CreateTeacher(c.Request().Context(), c.Param("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, teacher)
}

// adminListTeachers lists the organization's teachers, or resolves a single
// one when a ?trn= registration number is given.
func (s *Server) adminListTeachers(c echo.Context) error {
	ctx := c.Request().Context()
	if trn := c.QueryParam("trn"); trn != "" {
		teacher, err := s.opts.Accounts.GetTeacherByTRN(ctx, claimsOf(c).Organization, trn)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, teacher)
	}
	teachers, err := s.opts.Accounts.ListTeachers(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, teachers)
}

func (s *Server) adminUpdateTeacher(c echo.Context) error {
	var in account.TeacherUpdate
	if err := c.Bind(&in); err != nil {
		return err
	}
	teacher, err := s.opts.Accounts.UpdateTeacher(c.Request().Context(), c.Param("id"), c.Param("tid"), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, teacher)
}

func (s *Server) adminDeleteTeacher(c echo.Context) error {
	if err := s.opts.Accounts.DeleteTeacher(c.Request().Context(), c.Param("id"), c.Param("tid")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) adminListStudents(c echo.Context) error {
	students, err := s.opts.Accounts.ListStudents(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, students)
}

type setIPRequest struct {
	AllowedIP string `json:"allowedIp" validate:"required,ip"`
}

func (s *Server) adminSetIP(c echo.Context) error {
	var in setIPRequest
	if err := c.Bind(&in); err != nil {
		return err
	}
	if err := c.Validate(&in); err != nil {
		return err
	}
	policy, err := s.opts.Accounts.SetIPPolicy(c.Request().Context(), c.Param("id"), in.AllowedIP)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, policy)
}

func (s *Server) adminToggleIP(c echo.Context) error {
	policy, err := s.opts.Accounts.ToggleIPPolicy(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, policy)
}

type setLocationRequest struct {
	Lat          float64 `json:"lat" validate:"min=-90,max=90"`
	Long         float64 `json:"long" validate:"min=-180,max=180"`
	RadiusMeters float64 `json:"radiusMeters" validate:"min=0"`
}

func (s *Server) adminSetLocation(c echo.Context) error {
	var in setLocationRequest
	if err := c.Bind(&in); err != nil {
		return err
	}
	if err := c.Validate(&in); err != nil {
		return err
	}
	policy, err := s.opts.Accounts.SetLocationPolicy(c.Request().Context(), c.Param("id"),
		types.GeoPoint{Lat: in.Lat, Long: in.Long}, in.RadiusMeters)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, policy)
}

func (s *Server) adminToggleLocation(c echo.Context) error {
	policy, err := s.opts.Accounts.ToggleLocationPolicy(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, policy)
}
