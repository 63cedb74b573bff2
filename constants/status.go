package constants

// ProcessingStatus is the canonical status for rows in processing_logs.
type ProcessingStatus string

// Stable values (store these exact strings in DB).
const (
	StatusSuccess    ProcessingStatus = "SUCCESS"     // verified and handled end to end
	StatusFailed     ProcessingStatus = "FAILED"      // extraction or internal failure
	StatusInvalidKTP ProcessingStatus = "INVALID_KTP" // processed, but not a valid card
)
