// Package clap describes the raw plugin ABI as seen from the host.
//
// Each C table is modelled as a struct of nullable function values. A
// dynamic loader fills them with trampolines into the shared library, and
// in-process plugins fill them with Go closures. Nothing in this package
// calls into a plugin; the typed host runtime lives in the host, events,
// param, ext and process packages.
package clap

import "fmt"

// Version is the ABI version a table was built against.
type Version struct {
	Major    uint32
	Minor    uint32
	Revision uint32
}

// CurrentVersion is the ABI version implemented by this host.
var CurrentVersion = Version{Major: 1, Minor: 2, Revision: 2}

// Compatible reports whether a table built against v can be used by this host.
// Versions before 1.0 were experimental and are refused.
func (v Version) Compatible() bool {
	return v.Major >= 1 && v.Major == CurrentVersion.Major
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Revision)
}

// Factory ids understood by the host.
const (
	PluginFactoryID = "clap.plugin-factory"
)

// Well-known plugin feature tags.
const (
	FeatureInstrument  = "instrument"
	FeatureAudioEffect = "audio-effect"
	FeatureNoteEffect  = "note-effect"
	FeatureAnalyzer    = "analyzer"
	FeatureSynthesizer = "synthesizer"
	FeatureUtility     = "utility"
	FeatureStereo      = "stereo"
	FeatureMono        = "mono"
)
