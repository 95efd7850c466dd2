package users

import (
	"github.com/google/uuid"

	"github.com/dezko/dezko-backend/pkg/db/models"
	"github.com/dezko/dezko-backend/pkg/enums"
)

// UserDTO is the public view of a user.
type UserDTO struct {
	ID    uuid.UUID  `json:"id"`
	Email string     `json:"email"`
	Name  string     `json:"name"`
	Role  enums.Role `json:"role"`
}

// FromModel maps a persisted user onto its DTO.
func FromModel(m *models.User) *UserDTO {
	if m == nil {
		return nil
	}
	return &UserDTO{ID: m.ID, Email: m.Email, Name: m.Name, Role: m.Role}
}
