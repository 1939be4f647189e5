package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10099: System & Common errors
// 10100-10199: Configuration errors
// 11000-11099: Workspace errors
// 12000-12099: Execution errors
// 13000-13099: Audit errors
// 14000-14099: Guard & Security errors

const (
	// ========== System & Common Errors (10000-10099) ==========

	// Success
	Success ErrorCode = 10000

	InternalError      ErrorCode = 10001
	InvalidParams      ErrorCode = 10002
	NotFound           ErrorCode = 10003
	Timeout            ErrorCode = 10004
	UnsupportedOS      ErrorCode = 10005
	ValidationFailed   ErrorCode = 10006
	RequiredFieldEmpty ErrorCode = 10007

	// ========== Configuration Errors (10100-10199) ==========

	ConfigurationInvalid    ErrorCode = 10100
	ConfigurationLoadFailed ErrorCode = 10101
	LimitValueInvalid       ErrorCode = 10102
	FeatureUnavailable      ErrorCode = 10103

	// ========== Workspace Errors (11000-11099) ==========

	WorkspaceCreateFailed   ErrorCode = 11000
	WorkspacePopulateFailed ErrorCode = 11001
	WorkspaceRootInvalid    ErrorCode = 11002

	// ========== Execution Errors (12000-12099) ==========

	ExecStartFailed     ErrorCode = 12000
	ExecSystemError     ErrorCode = 12001
	TimeoutExceeded     ErrorCode = 12002
	ResourceViolation   ErrorCode = 12003
	ProcessKillFailed   ErrorCode = 12004
	InterpreterNotFound ErrorCode = 12005

	// ========== Audit Errors (13000-13099) ==========

	AuditFailed     ErrorCode = 13000
	AuditRequired   ErrorCode = 13001
	AuditRunError   ErrorCode = 13002
	EngineAborted   ErrorCode = 13003
	OverrideRefused ErrorCode = 13004

	// ========== Guard & Security Errors (14000-14099) ==========

	GuardGenerateFailed ErrorCode = 14000
	GuardInstallFailed  ErrorCode = 14001
	PathOutsideSandbox  ErrorCode = 14002
	CapabilityUnknown   ErrorCode = 14003
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:            "Success",
	InternalError:      "Internal engine error",
	InvalidParams:      "Invalid parameters",
	NotFound:           "Resource not found",
	Timeout:            "Operation timed out",
	UnsupportedOS:      "Operation not supported on this platform",
	ValidationFailed:   "Validation failed",
	RequiredFieldEmpty: "Required field is empty",

	// Configuration
	ConfigurationInvalid:    "Invalid engine configuration",
	ConfigurationLoadFailed: "Failed to load configuration",
	LimitValueInvalid:       "Resource limit value is not in the allowed set",
	FeatureUnavailable:      "Requested platform feature is unavailable",

	// Workspace
	WorkspaceCreateFailed:   "Failed to create sandbox workspace",
	WorkspacePopulateFailed: "Failed to populate sandbox workspace",
	WorkspaceRootInvalid:    "Sandbox workspace root is invalid",

	// Execution
	ExecStartFailed:     "Failed to start sandboxed process",
	ExecSystemError:     "Sandbox execution system error",
	TimeoutExceeded:     "Sandboxed process exceeded its time limit",
	ResourceViolation:   "Sandboxed process exceeded a resource cap",
	ProcessKillFailed:   "Failed to terminate sandboxed process tree",
	InterpreterNotFound: "Submission interpreter not found",

	// Audit
	AuditFailed:     "Security audit failed",
	AuditRequired:   "Security audit has not passed",
	AuditRunError:   "Security audit could not be executed",
	EngineAborted:   "Engine is aborted after a failed audit",
	OverrideRefused: "Operator override rejected",

	// Guard & Security
	GuardGenerateFailed: "Failed to generate guard module",
	GuardInstallFailed:  "Failed to install guard module",
	PathOutsideSandbox:  "Path resolves outside the sandbox root",
	CapabilityUnknown:   "Unknown guarded capability",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// Fatal reports whether the code aborts the whole engine invocation rather
// than a single run.
func (c ErrorCode) Fatal() bool {
	switch c {
	case AuditFailed, EngineAborted, ConfigurationInvalid, ConfigurationLoadFailed, LimitValueInvalid:
		return true
	default:
		return false
	}
}
