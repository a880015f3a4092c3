package services

import (
	"errors"
	"fmt"
)

// FailureReason classifies why a document was left out of the index.
type FailureReason string

const (
	ReasonUnsupportedType     FailureReason = "UnsupportedType"
	ReasonAcquisitionFailed   FailureReason = "AcquisitionFailed"
	ReasonRasterizationFailed FailureReason = "RasterizationFailed"
	ReasonPersistenceFailed   FailureReason = "PersistenceFailed"
)

// ErrListingFailed aborts a whole run: there is nothing to process.
var ErrListingFailed = errors.New("folder listing failed")

// ErrOutputOutsideRoot rejects an index output path that escapes the working root.
var ErrOutputOutsideRoot = errors.New("output path is outside the working directory")

// ProcessingError is returned by DocumentProcessor.Process for a document that
// produced no record.
type ProcessingError struct {
	Reason   FailureReason
	DocID    string
	FileName string
	Err      error
}

func (e *ProcessingError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: document %s (%s)", e.Reason, e.DocID, e.FileName)
	}
	return fmt.Sprintf("%s: document %s (%s): %v", e.Reason, e.DocID, e.FileName, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// FailureReasonOf extracts the reason from err, or "" when err is not a ProcessingError.
func FailureReasonOf(err error) FailureReason {
	var perr *ProcessingError
	if errors.As(err, &perr) {
		return perr.Reason
	}
	return ""
}
