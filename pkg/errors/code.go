package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 20000-20999: Generation errors
// 21000-21999: Execution errors (runners, display, process engine)
// 22000-22999: Failure store errors
// 23000-23999: Campaign errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Database errors (10100-10199)
	DatabaseError       ErrorCode = 10100
	RecordNotFound      ErrorCode = 10101
	RecordAlreadyExists ErrorCode = 10102

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200

	// Validation errors (10300-10399)
	ValidationFailed ErrorCode = 10300
	InvalidFormat    ErrorCode = 10301
	InvalidValue     ErrorCode = 10302
	ConfigInvalid    ErrorCode = 10304

	// ========== Generation Errors (20000-20999) ==========

	GenerationExhausted ErrorCode = 20000
	InvalidSWF          ErrorCode = 20001
	EncodeFailed        ErrorCode = 20002
	ActionUnsupported   ErrorCode = 20003

	// ========== Execution Errors (21000-21999) ==========

	LaunchFailed     ErrorCode = 21000
	InterceptionMiss ErrorCode = 21001
	DisplayFailed    ErrorCode = 21002
	WorkDirFailed    ErrorCode = 21003

	// ========== Failure Store Errors (22000-22999) ==========

	StorageError      ErrorCode = 22000
	StoreContention   ErrorCode = 22001
	FailureNotFound   ErrorCode = 22002
	PublishFailed     ErrorCode = 22003
	FingerprintFailed ErrorCode = 22004

	// ========== Campaign Errors (23000-23999) ==========

	CampaignHalted  ErrorCode = 23000
	LaneHalted      ErrorCode = 23001
	BudgetExhausted ErrorCode = 23002
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	ServiceUnavailable:  "Service unavailable",
	Timeout:             "Request timeout",

	// Database
	DatabaseError:       "Database operation failed",
	RecordNotFound:      "Record not found",
	RecordAlreadyExists: "Record already exists",

	// Cache
	CacheError: "Cache operation failed",

	// Validation
	ValidationFailed: "Validation failed",
	InvalidFormat:    "Invalid format",
	InvalidValue:     "Invalid value",
	ConfigInvalid:    "Invalid configuration",

	// Generation
	GenerationExhausted: "Generation retries exhausted",
	InvalidSWF:          "SWF document is not well-formed",
	EncodeFailed:        "SWF encoding failed",
	ActionUnsupported:   "AVM1 action not supported",

	// Execution
	LaunchFailed:     "Interpreter launch failed",
	InterceptionMiss: "No output was intercepted",
	DisplayFailed:    "Virtual display unavailable",
	WorkDirFailed:    "Lane work directory unavailable",

	// Store
	StorageError:      "Failure store operation failed",
	StoreContention:   "Failure store contention",
	FailureNotFound:   "Failure record not found",
	PublishFailed:     "Failure event publish failed",
	FingerprintFailed: "Fingerprint computation failed",

	// Campaign
	CampaignHalted:  "Campaign halted",
	LaneHalted:      "Lane halted",
	BudgetExhausted: "Run budget exhausted",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the status code the status API reports for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == InvalidParams, c >= 10300 && c < 10400:
		return 400
	case c == NotFound, c == RecordNotFound, c == FailureNotFound:
		return 404
	case c == Timeout:
		return 504
	case c == ServiceUnavailable:
		return 503
	default:
		return 500
	}
}

// IsInfrastructure reports whether the code describes a harness fault rather than
// an interpreter behaviour. Infrastructure faults halt the lane that hit them.
func (c ErrorCode) IsInfrastructure() bool {
	switch c {
	case DisplayFailed, WorkDirFailed:
		return true
	default:
		return false
	}
}
