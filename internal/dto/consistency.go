package dto

// SweepRequest is the payload of POST /admin/consistency/sweep.
type SweepRequest struct {
	Repair bool `json:"repair"`
}
