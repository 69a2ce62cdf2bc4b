package sofa

import (
	"errors"
	"fmt"
)

// MissingAnchorError marks a stay that cannot be windowed because its
// admission time is absent. The stay is skipped and reported; the rest
// of the batch continues.
type MissingAnchorError struct {
	StayID int64
}

func (e *MissingAnchorError) Error() string {
	return fmt.Sprintf("stay %d has no admission time, cannot anchor windows", e.StayID)
}

// IsMissingAnchor reports whether err is (or wraps) a
// MissingAnchorError.
func IsMissingAnchor(err error) bool {
	var mae *MissingAnchorError
	return errors.As(err, &mae)
}
