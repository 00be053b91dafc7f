// Package pluginapi is the stable ABI between the daemon and a collector
// plugin shared object (spec §4.7/§6). A plugin built with
// `go build -buildmode=plugin` exports exactly one symbol, named Symbol, of
// type *Info. Grounded on original_source/include/qmem/plugin.h's
// qmem_plugin_info_t and the QMEM_PLUGIN_DEFINE macro.
package pluginapi

import "github.com/qscuio/qmemd/pkg/collector"

// APIVersion is the daemon's built-in ABI version constant. A plugin whose
// Info.APIVersion does not match this value is rejected (spec §4.7).
const APIVersion uint32 = 1

// Symbol is the fixed exported variable name every plugin must define.
const Symbol = "QmemPlugin"

// Info is the registration record a plugin exports.
type Info struct {
	APIVersion  uint32
	Name        string
	Version     string
	Description string
	// New constructs a fresh Collector instance for this plugin. A factory
	// function rather than a shared instance, since Init/Destroy may be
	// called more than once across a plugin's unload/reload lifecycle.
	New func() collector.Collector
}
