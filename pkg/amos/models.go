package amos

import (
	"time"

	"github.com/goccy/go-json"
)

// Camera is one entry of the camera list
type Camera struct {
	ID        int     `json:"id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// CameraRecord is the typed metadata of one camera.
// Optional fields are nil when the upstream omits them or sends an unparsable value.
type CameraRecord struct {
	ID             int
	Latitude       *float64
	Longitude      *float64
	IPLatitude     *float64
	IPLongitude    *float64
	ImagesCaptured *int
	DateAdded      *time.Time
	LastCapture    *time.Time
	Width          *int
	Height         *int
	Tags           []string
	// Extra holds upstream fields without a known type, verbatim
	Extra map[string]string
}

// FirstSeen is the start of the camera's activity window
func (r *CameraRecord) FirstSeen() *time.Time {
	return r.DateAdded
}

// LastSeen is the end of the camera's activity window
func (r *CameraRecord) LastSeen() *time.Time {
	return r.LastCapture
}

// MarshalJSON renders the record as a flat object in the layout of info.json.
// Dates are ISO-8601 and absent values are null.
func (r CameraRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, 11+len(r.Extra))
	for k, v := range r.Extra {
		out[k] = v
	}

	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}

	out["id"] = r.ID
	out["latitude"] = r.Latitude
	out["longitude"] = r.Longitude
	out["ip_latitude"] = r.IPLatitude
	out["ip_longitude"] = r.IPLongitude
	out["images_captured"] = r.ImagesCaptured
	out["date_added"] = isoOrNil(r.DateAdded)
	out["last_capture"] = isoOrNil(r.LastCapture)
	out["width"] = r.Width
	out["height"] = r.Height
	out["tags"] = tags

	return json.Marshal(out)
}

func isoOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}
