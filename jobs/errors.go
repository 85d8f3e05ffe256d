package jobs

import "errors"

var (
	// ErrJobNotFound is returned when no job has the given ID.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobExists is returned when creating a job whose ID is taken.
	ErrJobExists = errors.New("job already exists")

	// ErrInvalidJobID is returned for an empty job ID.
	ErrInvalidJobID = errors.New("job id cannot be empty")

	// ErrJobFinalized is returned when mutating a completed or failed job.
	ErrJobFinalized = errors.New("job is finalized")

	// ErrItemFinalized is returned when mutating an item that already succeeded or failed.
	ErrItemFinalized = errors.New("item is finalized")

	// ErrStageRegression is returned when an update would move an item backwards.
	ErrStageRegression = errors.New("stage cannot move backwards")

	// ErrInvalidIndex is returned for an item index outside the job.
	ErrInvalidIndex = errors.New("item index out of range")

	// ErrInvalidStage is returned for an unknown stage.
	ErrInvalidStage = errors.New("invalid stage")
)
