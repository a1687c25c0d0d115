package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"accpanel/internal/middleware"
	"accpanel/internal/service"
)

// UserHandler bundles the account-management endpoints.
type UserHandler struct {
	svc service.UserService
}

// NewUserHandler creates a handler layer.
func NewUserHandler(svc service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// CreateUserRequest carries a new account draft. Roles are selected either by
// name or by id; names win when both are given. Field-level validation happens
// in the directory so the response reports every violation together.
type CreateUserRequest struct {
	Username  string   `json:"username"`
	Email     string   `json:"email"`
	Password  string   `json:"password"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Age       int      `json:"age"`
	Roles     []string `json:"roles"`
	RoleIDs   []uint   `json:"role_ids"`
}

// UpdateUserRequest patches an account. Absent fields keep stored values; an
// empty password keeps the stored hash. Absent role selectors keep the
// account's roles.
type UpdateUserRequest struct {
	Username  *string  `json:"username"`
	Email     *string  `json:"email"`
	Password  string   `json:"password"`
	FirstName *string  `json:"first_name"`
	LastName  *string  `json:"last_name"`
	Age       *int     `json:"age"`
	Roles     []string `json:"roles"`
	RoleIDs   []uint   `json:"role_ids"`
}

func roleSelector(names []string, ids []uint) (service.RoleSelector, bool) {
	switch {
	case len(names) > 0:
		return service.RolesByName(names...), true
	case len(ids) > 0:
		return service.RolesByID(ids...), true
	default:
		return service.RoleSelector{}, false
	}
}

// Create godoc
// @Summary Create an account
// @Tags admin
// @Accept json
// @Produce json
// @Param request body CreateUserRequest true "Account draft"
// @Success 201 {object} model.User
// @Failure 400 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /admin/users [post]
func (h *UserHandler) Create(c echo.Context) error {
	var req CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	selector, _ := roleSelector(req.Roles, req.RoleIDs)
	user, err := h.svc.Create(c.Request().Context(), service.CreateUserInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Age:       req.Age,
	}, selector)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, user)
}

// Update godoc
// @Summary Update an account
// @Tags admin
// @Accept json
// @Produce json
// @Param id path int true "Account ID"
// @Param request body UpdateUserRequest true "Account patch"
// @Success 200 {object} model.User
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /admin/users/{id} [put]
func (h *UserHandler) Update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	var selector *service.RoleSelector
	if sel, ok := roleSelector(req.Roles, req.RoleIDs); ok {
		selector = &sel
	}

	user, err := h.svc.Update(c.Request().Context(), id, service.UpdateUserInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Age:       req.Age,
	}, selector)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// Delete godoc
// @Summary Delete an account
// @Tags admin
// @Produce json
// @Param id path int true "Account ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} errors.ErrorResponse
// @Router /admin/users/{id} [delete]
func (h *UserHandler) Delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "account deleted"})
}

// Get godoc
// @Summary Get an account by id
// @Tags admin
// @Produce json
// @Param id path int true "Account ID"
// @Success 200 {object} model.User
// @Failure 404 {object} errors.ErrorResponse
// @Router /admin/users/{id} [get]
func (h *UserHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	user, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// List godoc
// @Summary List accounts
// @Tags admin
// @Produce json
// @Success 200 {array} model.User
// @Router /admin/users [get]
func (h *UserHandler) List(c echo.Context) error {
	users, err := h.svc.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}

// ListRoles godoc
// @Summary List roles
// @Tags admin
// @Produce json
// @Success 200 {array} model.Role
// @Router /admin/roles [get]
func (h *UserHandler) ListRoles(c echo.Context) error {
	roles, err := h.svc.ListRoles(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, roles)
}

// Me godoc
// @Summary Get the authenticated account
// @Tags user
// @Produce json
// @Success 200 {object} model.User
// @Failure 401 {object} errors.ErrorResponse
// @Router /user/me [get]
func (h *UserHandler) Me(c echo.Context) error {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	user, err := h.svc.Get(c.Request().Context(), claims.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

func pathID(c echo.Context) (uint, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return uint(id), nil
}
