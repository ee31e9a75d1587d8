package models

import "github.com/fieldops/fieldsync/internal/errors"

// Product is a catalog entry mirrored from the remote system.
type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Active      bool   `json:"active"`

	// LastUpdate is the unix timestamp of the local cache write.
	LastUpdate int64 `json:"lastUpdate,omitempty"`
}

// Validate rejects records that arrived without their required fields.
func (p *Product) Validate() error {
	if p.ID == "" {
		return errors.New(errors.ErrValidation, "product is missing an id")
	}
	if p.Name == "" {
		return errors.New(errors.ErrValidation, "product "+p.ID+" is missing a name")
	}
	return nil
}
