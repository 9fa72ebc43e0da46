package session

import "errors"

var (
	// ErrInvalidSession indicates a session id or record that cannot be stored
	ErrInvalidSession = errors.New("session.invalid")

	// ErrSessionExpired indicates the session has expired
	ErrSessionExpired = errors.New("session.expired")

	// ErrSessionNotFound indicates no session was found
	ErrSessionNotFound = errors.New("session.not_found")

	// ErrDecodeRecord indicates a stored record is not valid JSON or has a malformed expiry
	ErrDecodeRecord = errors.New("session.decode_failed")

	// ErrMissingIdentity indicates provisioning was requested without a session id or owner
	ErrMissingIdentity = errors.New("session.missing_identity")

	// ErrNoStorage indicates the store was constructed without durable storage
	ErrNoStorage = errors.New("session.no_storage")

	// ErrStoreClosed indicates the store has been closed
	ErrStoreClosed = errors.New("session.store_closed")

	// ErrStoreNotReady indicates Open has not completed yet
	ErrStoreNotReady = errors.New("session.store_not_ready")

	ErrReaperRunning   = errors.New("session.reaper_running")
	ErrReaperStopped   = errors.New("session.reaper_stopped")
	ErrSweepInProgress = errors.New("session.sweep_in_progress")

	// ErrReaperDegraded indicates the last sweep could not list the storage root
	ErrReaperDegraded = errors.New("session.reaper_degraded")

	ErrInvalidMode     = errors.New("session.invalid_mode")
	ErrInvalidSchedule = errors.New("session.invalid_schedule")
)
