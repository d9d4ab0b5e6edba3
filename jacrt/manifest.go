package jacrt

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/wippyai/jac/errors"
)

// ManifestSection is the custom section name carrying the encoded manifest.
const ManifestSection = "jac.manifest"

// ManifestVersion is the current manifest layout version.
const ManifestVersion = 1

// NoParent marks the root function.
const NoParent = ^uint32(0)

// Mode says how a function is executed.
type Mode string

const (
	ModeCompiled    Mode = "compiled"
	ModeInterpreted Mode = "interpreted"
)

// FuncInfo describes one function of a generated module.
type FuncInfo struct {
	Name        string   `msgpack:"name"`
	Mode        Mode     `msgpack:"mode"`
	Export      string   `msgpack:"export,omitempty"`
	Reason      string   `msgpack:"reason,omitempty"`
	Locals      []string `msgpack:"locals,omitempty"` // arguments then variables
	Slots       []string `msgpack:"slots,omitempty"`  // env slots in layout order
	Index       uint32   `msgpack:"index"`
	Parent      uint32   `msgpack:"parent"`
	ArgCount    uint32   `msgpack:"argc"`
	ClosureVars uint32   `msgpack:"closure_vars"`
	FreshSlots  uint32   `msgpack:"fresh_slots"`
}

// EnvSlots returns the size of the function's activation environment.
func (f *FuncInfo) EnvSlots() uint32 {
	return f.ClosureVars + f.FreshSlots
}

// Manifest describes every function of a generated module, indexed by
// FuncIndex.
type Manifest struct {
	Funcs   []FuncInfo `msgpack:"funcs"`
	Version int        `msgpack:"version"`
	Root    uint32     `msgpack:"root"`
}

// Func returns the entry for function index i.
func (m *Manifest) Func(i uint32) (*FuncInfo, bool) {
	if m == nil || int64(i) >= int64(len(m.Funcs)) {
		return nil, false
	}
	return &m.Funcs[i], true
}

// SlotName returns the variable name bound to env slot of function fn, or
// "" when unknown.
func (m *Manifest) SlotName(fn uint32, slot int) string {
	f, ok := m.Func(fn)
	if !ok || slot < 0 || slot >= len(f.Slots) {
		return ""
	}
	return f.Slots[slot]
}

// LocalName returns the name of local (argument or variable) index of
// function fn, or "" when unknown.
func (m *Manifest) LocalName(fn uint32, local int) string {
	f, ok := m.Func(fn)
	if !ok || local < 0 || local >= len(f.Locals) {
		return ""
	}
	return f.Locals[local]
}

// Marshal encodes the manifest.
func (m *Manifest) Marshal() ([]byte, error) {
	b, err := msgpack.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseCodegen, errors.KindInvalidData, err, "encode manifest")
	}
	return b, nil
}

// UnmarshalManifest decodes a manifest section.
func UnmarshalManifest(b []byte) (*Manifest, error) {
	var m Manifest
	if err := msgpack.Unmarshal(b, &m); err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidData, err, "decode manifest")
	}
	if m.Version != ManifestVersion {
		return nil, errors.New(errors.PhaseLoad, errors.KindUnsupportedVersion).
			Value(m.Version).
			Detail("manifest version %d, want %d", m.Version, ManifestVersion).
			Build()
	}
	return &m, nil
}
