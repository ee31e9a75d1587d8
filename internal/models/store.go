// Package models provides data model definitions for fieldsync.
package models

import "github.com/fieldops/fieldsync/internal/errors"

// Store is a retail location mirrored from the remote system.
// Records are replaced wholesale on refresh, never merged field by field.
type Store struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Address        string `json:"address"`
	VisitFrequency string `json:"visitFrequency,omitempty"`
	CourierID      string `json:"courierId,omitempty"`
	CourierName    string `json:"courierName,omitempty"`
	Active         bool   `json:"active"`
	LastVisitDate  string `json:"lastVisitDate,omitempty"`

	// LastUpdate is the unix timestamp of the local cache write, not a
	// remote attribute.
	LastUpdate int64 `json:"lastUpdate,omitempty"`
}

// Validate rejects records that arrived without their required fields.
func (s *Store) Validate() error {
	if s.ID == "" {
		return errors.New(errors.ErrValidation, "store is missing an id")
	}
	if s.Name == "" {
		return errors.New(errors.ErrValidation, "store "+s.ID+" is missing a name")
	}
	return nil
}
