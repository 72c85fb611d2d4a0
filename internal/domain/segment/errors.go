package segment

import "errors"

// Sentinel kinds for segmentation errors.
var (
	ErrNoDockingContact = errors.New("no docking contact detected")
	ErrInvalidOverride  = errors.New("invalid phase boundary override")
	ErrSegmentation     = errors.New("phase segmentation failed")
)
