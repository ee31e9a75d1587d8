package models

import "strconv"

// PendingImage is the shelf photo captured for a visit, held locally until
// its parent order has been acknowledged and the upload succeeds.
type PendingImage struct {
	// LocalOrderID matches the parent PendingOrder's LocalID (one-to-one).
	LocalOrderID int64 `json:"localOrderId"`

	// Data is the encoded image. json round-trips it as base64.
	Data []byte `json:"data"`

	// RemoteOrderID is recorded when the parent was acknowledged but this
	// upload failed, so a later drain can retry without resubmitting the
	// parent.
	RemoteOrderID string `json:"remoteOrderId,omitempty"`

	// CreatedAt is the capture time in unix milliseconds.
	CreatedAt int64 `json:"createdAt"`
}

// Key returns the LDS primary key for this image.
func (i *PendingImage) Key() string {
	return strconv.FormatInt(i.LocalOrderID, 10)
}
