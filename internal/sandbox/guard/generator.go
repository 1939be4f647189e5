package guard

import (
	"bytes"
	"os"
	"path/filepath"
	"text/template"

	appErr "aibugbench/pkg/errors"
)

// ModuleFilename is the auto-loaded module name. The Python interpreter
// imports sitecustomize at startup when its directory is on the search path,
// which is why the child is never started in isolated mode: that mode would
// suppress this hook.
const ModuleFilename = "sitecustomize.py"

type deniedModule struct {
	Name   string
	Marker string
}

type templateData struct {
	DynamicCode   bool
	ProcessSpawn  bool
	FileAccess    bool
	Network       bool
	GuardRemoval  bool
	DeniedModules []deniedModule

	MDynamicCode  string
	MProcessSpawn string
	MFileAccess   string
	MNetwork      string
	MGuardRemoval string
}

var moduleTemplate = template.Must(template.New(ModuleFilename).Parse(moduleSource))

// Generate renders the guard module source for the given manifest.
func Generate(m Manifest) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	data := templateData{
		DynamicCode:   m.Blocks(CapabilityDynamicCode),
		ProcessSpawn:  m.Blocks(CapabilityProcessSpawn),
		FileAccess:    m.Blocks(CapabilityFileAccess),
		Network:       m.Blocks(CapabilityNetwork),
		GuardRemoval:  m.Blocks(CapabilityGuardRemoval),
		MDynamicCode:  Marker(CapabilityDynamicCode),
		MProcessSpawn: Marker(CapabilityProcessSpawn),
		MFileAccess:   Marker(CapabilityFileAccess),
		MNetwork:      Marker(CapabilityNetwork),
		MGuardRemoval: Marker(CapabilityGuardRemoval),
	}
	if m.Blocks(CapabilityDeserialization) || m.Blocks(CapabilityFFI) {
		for _, name := range m.DeniedModules {
			data.DeniedModules = append(data.DeniedModules, deniedModule{
				Name:   name,
				Marker: moduleMarker(name),
			})
		}
	}
	var buf bytes.Buffer
	if err := moduleTemplate.Execute(&buf, data); err != nil {
		return nil, appErr.Wrapf(err, appErr.GuardGenerateFailed, "render guard module: %v", err)
	}
	return buf.Bytes(), nil
}

// Install writes the generated module into dir and returns its path. The
// caller prepends dir to the child's module search path, so the guard is in
// place before any submitted code is reachable.
func Install(dir string, m Manifest) (string, error) {
	src, err := Generate(m)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, ModuleFilename)
	if err := os.WriteFile(path, src, 0644); err != nil {
		return "", appErr.Wrapf(err, appErr.GuardInstallFailed, "write guard module: %v", err)
	}
	return path, nil
}

// moduleMarker classifies a denied module into the capability whose marker
// its import error carries.
func moduleMarker(name string) string {
	switch name {
	case "pickle", "marshal", "shelve", "dill":
		return Marker(CapabilityDeserialization)
	default:
		return Marker(CapabilityFFI)
	}
}

func errUnknownCapability(c Capability) error {
	return appErr.Newf(appErr.CapabilityUnknown, "unknown guarded capability %q", string(c))
}
