package admin

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"edutest-system/internal/models"
)

// Failure categories carried in the response envelope. Clients branch on
// the code, never on the message.
const (
	CodeUnauthenticated  = "unauthenticated"
	CodePermissionDenied = "permission-denied"
	CodeInvalidArgument  = "invalid-argument"
	CodeInternal         = "internal"
)

// Error is a categorized failure surfaced through the envelope.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func internalErr(err error) *Error {
	return &Error{Code: CodeInternal, Message: err.Error()}
}

// Store is the user persistence needed by the staff operations.
type Store interface {
	CreateUser(user *models.User) error
	GetUserByID(userID uint) (*models.User, error)
	UpdateUser(userID uint, fields map[string]interface{}) error
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

type CreateStaffRequest struct {
	Username string      `json:"username"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

func staffRole(role models.Role) bool {
	return role == models.RoleTeacher || role == models.RoleAdmin
}

// CreateStaff provisions a teacher or admin account: credentials first,
// then the profile row carrying role and aggregates.
func (s *Service) CreateStaff(req CreateStaffRequest) (*models.User, *Error) {
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return nil, &Error{Code: CodeInvalidArgument, Message: "username, email and password are required"}
	}
	if !staffRole(req.Role) {
		return nil, &Error{Code: CodeInvalidArgument, Message: "role must be teacher or admin"}
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, internalErr(err)
	}

	user := &models.User{
		Username: req.Username,
		Email:    req.Email,
		Password: string(hashedPassword),
		Role:     req.Role,
		Active:   true,
	}
	if err := s.store.CreateUser(user); err != nil {
		return nil, internalErr(err)
	}
	return user, nil
}

// UpdateStaffRole moves an existing staff account between teacher and
// admin. Student accounts are not managed through this surface.
func (s *Service) UpdateStaffRole(userID uint, role models.Role) (*models.User, *Error) {
	if !staffRole(role) {
		return nil, &Error{Code: CodeInvalidArgument, Message: "role must be teacher or admin"}
	}

	user, err := s.store.GetUserByID(userID)
	if err != nil {
		return nil, internalErr(err)
	}
	if !staffRole(user.Role) {
		return nil, &Error{Code: CodeInvalidArgument, Message: "target account is not a staff account"}
	}

	if err := s.store.UpdateUser(userID, map[string]interface{}{"role": role}); err != nil {
		return nil, internalErr(err)
	}
	user.Role = role
	return user, nil
}

// ToggleStaffActive flips the active flag. Deactivated accounts fail
// login until toggled back.
func (s *Service) ToggleStaffActive(userID uint) (*models.User, *Error) {
	user, err := s.store.GetUserByID(userID)
	if err != nil {
		return nil, internalErr(err)
	}
	if !staffRole(user.Role) {
		return nil, &Error{Code: CodeInvalidArgument, Message: "target account is not a staff account"}
	}

	newActive := !user.Active
	if err := s.store.UpdateUser(userID, map[string]interface{}{"active": newActive}); err != nil {
		return nil, internalErr(err)
	}
	user.Active = newActive
	return user, nil
}
