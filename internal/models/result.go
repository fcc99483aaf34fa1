package models

import "time"

// Run stop reasons
const (
	StopHalted    = "HALTED"     // Program executed HALT
	StopStepLimit = "STEP_LIMIT" // Step budget exhausted
	StopTimeout   = "TIMEOUT"    // Timeout or cancellation
	StopFault     = "FAULT"      // Execution error
)

// RegisterSnapshot is a copy of the register file at the end of a run
type RegisterSnapshot struct {
	IP uint16   `json:"ip"`
	RP uint16   `json:"rp"`
	R  [4]uint8 `json:"r"`
}

// RunResult represents the outcome of executing a program
type RunResult struct {
	ID         string           // Run identifier (UUID)
	Program    *Program         // The program that was executed
	ImageHash  string           // Hex SHA-256 of the loaded image
	Steps      uint64           // Instructions executed
	Halted     bool             // Whether HALT was reached
	StopReason string           // One of the Stop* constants
	Error      error            // Error that stopped the run, if any
	Registers  RegisterSnapshot // Final register file
	StartedAt  time.Time        // Wall-clock start
	Duration   time.Duration    // Time taken to execute
}

// Success reports whether the program halted cleanly
func (r *RunResult) Success() bool {
	return r.Halted && r.Error == nil
}
