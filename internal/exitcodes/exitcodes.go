package exitcodes

// Exit codes for emptyfolder-cleaner
// These codes form the operational contract with scripts and operators
const (
	Success          = 0 // Successful execution
	PartialFailure   = 1 // Some folders could not be deleted
	InvalidConfig    = 2 // Configuration file invalid or missing
	SafetyViolation  = 3 // Safety validator blocked an operation
	RuntimeError     = 4 // Runtime error during execution
	PermissionDenied = 5 // Delete refused by the OS and elevation not used or failed
)
