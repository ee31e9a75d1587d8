package models

import "github.com/fieldops/fieldsync/internal/errors"

// EmployeeProfile is the signed-in courier's profile, cached so the app can
// identify the user while offline.
type EmployeeProfile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`

	// LastUpdate is the unix timestamp of the local cache write.
	LastUpdate int64 `json:"lastUpdate,omitempty"`
}

// Validate rejects profiles that arrived without their required fields.
func (e *EmployeeProfile) Validate() error {
	if e.ID == "" {
		return errors.New(errors.ErrValidation, "employee profile is missing an id")
	}
	if e.Email == "" {
		return errors.New(errors.ErrValidation, "employee "+e.ID+" is missing an email")
	}
	return nil
}
