// Package guard builds the interpreter-startup interception module that a
// sandboxed child loads before any submitted code runs, and defines the
// closed set of capabilities that module blocks.
package guard

import "fmt"

// Capability names one guarded operation class. The set is closed: the
// auditor probes exactly these, and the generated module blocks exactly
// these.
type Capability string

const (
	CapabilityDynamicCode     Capability = "dynamic_code"
	CapabilityProcessSpawn    Capability = "process_spawn"
	CapabilityDeserialization Capability = "deserialization"
	CapabilityFFI             Capability = "ffi"
	CapabilityFileAccess      Capability = "file_access"
	CapabilityNetwork         Capability = "network"
	CapabilityGuardRemoval    Capability = "guard_removal"
)

// AllCapabilities lists every guarded capability in a stable order.
var AllCapabilities = []Capability{
	CapabilityDynamicCode,
	CapabilityProcessSpawn,
	CapabilityDeserialization,
	CapabilityFFI,
	CapabilityFileAccess,
	CapabilityNetwork,
	CapabilityGuardRemoval,
}

// ErrorMarker is the label every guard trip carries. The auditor and tests
// match on Marker(capability) in the child's stderr.
const ErrorMarker = "SandboxGuardError"

// Marker returns the labeled error prefix raised for a capability.
func Marker(c Capability) string {
	return fmt.Sprintf("%s[%s]", ErrorMarker, c)
}

// Manifest is the process-wide guard configuration. It is fully materialized
// into the child before any submitted code is imported or executed; ordering
// is enforced by installing the module on the interpreter search path before
// the child is spawned.
type Manifest struct {
	// Blocked holds the capabilities the generated module intercepts.
	Blocked []Capability
	// DeniedModules are import names rejected outright: arbitrary-object
	// deserialization, low-level memory/FFI access and raw bytecode
	// marshaling.
	DeniedModules []string
}

// DefaultManifest blocks every capability and denies the standard dangerous
// modules.
func DefaultManifest() Manifest {
	return Manifest{
		Blocked:       append([]Capability(nil), AllCapabilities...),
		DeniedModules: []string{"ctypes", "cffi", "pickle", "marshal"},
	}
}

// Blocks reports whether the manifest blocks the given capability.
func (m Manifest) Blocks(c Capability) bool {
	for _, b := range m.Blocked {
		if b == c {
			return true
		}
	}
	return false
}

// Validate rejects manifests naming unknown capabilities.
func (m Manifest) Validate() error {
	known := make(map[Capability]bool, len(AllCapabilities))
	for _, c := range AllCapabilities {
		known[c] = true
	}
	for _, c := range m.Blocked {
		if !known[c] {
			return errUnknownCapability(c)
		}
	}
	return nil
}
