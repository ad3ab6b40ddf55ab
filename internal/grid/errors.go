package grid

import "errors"

var (
	ErrDisposed         = errors.New("grid controller disposed")
	ErrRecordNotFound   = errors.New("record not found")
	ErrDuplicateRecord  = errors.New("record already present")
	ErrEditInProgress   = errors.New("another edit is in progress")
	ErrRecordBusy       = errors.New("record has a mutation in flight")
	ErrNoActiveEdit     = errors.New("no active edit")
	ErrFieldNotEditable = errors.New("field is not editable")
	ErrCurationRequired = errors.New("job must be curated before editing this field")
	ErrNotCurated       = errors.New("job is not curated")
	ErrNotInCommunity   = errors.New("job is not in community")
	ErrLastCommunity    = errors.New("cannot remove the last community")
	ErrEmptySelection   = errors.New("no jobs selected")
	ErrNoCommunities    = errors.New("no communities given")
	ErrInvalidViewMode  = errors.New("invalid view mode")
)

const (
	msgCurationRequired = "Add this job to the curated set before editing this field"
	msgLastCommunity    = "Can't remove the last community. Use remove from curation to drop the job entirely."
	msgNotCurated       = "Add this job to a community first"
	msgStale            = "This job is no longer on the page. Reloading."
	priorityReason      = "Marked as priority by user"
)
