// Package refplug implements two small plugins directly against the raw
// tables in package clap: a polyphonic sine synth and a stereo gain. They
// exist so the host runtime can be exercised without loading native code.
package refplug

import (
	"sync/atomic"

	"github.com/justyntemme/claphost/pkg/clap"
)

// Plugin ids.
const (
	SynthID = "com.claphost.simplesynth"
	GainID  = "com.claphost.gain"
)

// Path is the library path the reference entry is registered under.
const Path = "builtin:refplug"

var synthDescriptor = &clap.Descriptor{
	Version:       clap.CurrentVersion,
	ID:            SynthID,
	Name:          "Simple Synth",
	Vendor:        "claphost",
	URL:           "https://github.com/justyntemme/claphost",
	PluginVersion: "1.0.0",
	Description:   "16-voice sine synthesizer with an ADSR envelope",
	Features:      []string{clap.FeatureInstrument, clap.FeatureSynthesizer, clap.FeatureStereo},
}

var gainDescriptor = &clap.Descriptor{
	Version:       clap.CurrentVersion,
	ID:            GainID,
	Name:          "Gain",
	Vendor:        "claphost",
	URL:           "https://github.com/justyntemme/claphost",
	PluginVersion: "1.0.0",
	Description:   "Stereo gain with bypass",
	Features:      []string{clap.FeatureAudioEffect, clap.FeatureUtility, clap.FeatureStereo},
}

var descriptors = []*clap.Descriptor{synthDescriptor, gainDescriptor}

// Entry returns a fresh entry table exposing both plugins. Each call returns
// an independent table with its own init count.
func Entry() *clap.PluginEntry {
	var inits atomic.Int32
	factory := &clap.PluginFactory{
		GetPluginCount: func() uint32 { return uint32(len(descriptors)) },
		GetPluginDescriptor: func(index uint32) *clap.Descriptor {
			if int(index) >= len(descriptors) {
				return nil
			}
			return descriptors[index]
		},
		CreatePlugin: func(host *clap.Host, id string) *clap.Plugin {
			if inits.Load() == 0 {
				return nil
			}
			return New(host, id)
		},
	}
	return &clap.PluginEntry{
		Version: clap.CurrentVersion,
		Init: func(string) bool {
			inits.Add(1)
			return true
		},
		Deinit: func() { inits.Add(-1) },
		GetFactory: func(id string) any {
			if id == clap.PluginFactoryID {
				return factory
			}
			return nil
		},
	}
}

// New creates a plugin table by id, or returns nil for an unknown id.
func New(host *clap.Host, id string) *clap.Plugin {
	switch id {
	case SynthID:
		return newSynth(host)
	case GainID:
		return newGain(host)
	}
	return nil
}
