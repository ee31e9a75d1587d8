// Package api provides the typed client for the remote field-visit API.
package api

import (
	"bytes"
	"encoding/json"

	"github.com/fieldops/fieldsync/internal/errors"
	"github.com/fieldops/fieldsync/internal/models"
)

// envelope is the JSON wrapper every endpoint returns:
// {"error": bool, "message": "...", "data": ...}.
type envelope struct {
	Error   bool            `json:"error"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// flexID tolerates remote primary keys arriving as either JSON strings or
// numbers, normalizing to a string.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// remoteStore mirrors the wire shape of GET /api/stores/courier.
type remoteStore struct {
	ID             flexID `json:"id"`
	Name           string `json:"name"`
	Address        string `json:"address"`
	VisitFrequency string `json:"visitFrequency"`
	Active         bool   `json:"active"`
	LastVisitDate  string `json:"lastVisitDate"`

	AssignedCourier *struct {
		ID   flexID `json:"id"`
		Name string `json:"name"`
	} `json:"assignedCourier"`
}

func (r *remoteStore) toModel() (models.Store, error) {
	s := models.Store{
		ID:             string(r.ID),
		Name:           r.Name,
		Address:        r.Address,
		VisitFrequency: r.VisitFrequency,
		Active:         r.Active,
		LastVisitDate:  r.LastVisitDate,
	}
	if r.AssignedCourier != nil {
		s.CourierID = string(r.AssignedCourier.ID)
		s.CourierName = r.AssignedCourier.Name
	}
	if err := s.Validate(); err != nil {
		return models.Store{}, errors.Wrap(errors.ErrDecodeFailed, "remote store rejected", err)
	}
	return s, nil
}

// remoteProduct mirrors the wire shape of GET /api/products.
type remoteProduct struct {
	ID          flexID `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Active      bool   `json:"active"`
}

func (r *remoteProduct) toModel() (models.Product, error) {
	p := models.Product{
		ID:          string(r.ID),
		Name:        r.Name,
		Description: r.Description,
		Active:      r.Active,
	}
	if err := p.Validate(); err != nil {
		return models.Product{}, errors.Wrap(errors.ErrDecodeFailed, "remote product rejected", err)
	}
	return p, nil
}

// remoteUser mirrors the wire shape of GET /api/user/{id}.
type remoteUser struct {
	ID    flexID `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (r *remoteUser) toModel() (models.EmployeeProfile, error) {
	e := models.EmployeeProfile{
		ID:    string(r.ID),
		Name:  r.Name,
		Email: r.Email,
		Role:  r.Role,
	}
	if err := e.Validate(); err != nil {
		return models.EmployeeProfile{}, errors.Wrap(errors.ErrDecodeFailed, "remote user rejected", err)
	}
	return e, nil
}

// orderRequest is the POST /api/orders body.
type orderRequest struct {
	CourierID string             `json:"courierId"`
	StoreID   string             `json:"storeId"`
	Items     []models.OrderItem `json:"items"`
	Location  *models.Location   `json:"location,omitempty"`
}

// createdOrder carries the remote-assigned identifier out of the create
// response; everything downstream (photo upload) keys on it.
type createdOrder struct {
	ID flexID `json:"id"`
}

func (c *createdOrder) remoteID() (string, error) {
	if c.ID == "" {
		return "", errors.New(errors.ErrDecodeFailed, "create order response carried no id")
	}
	return string(c.ID), nil
}
