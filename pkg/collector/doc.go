// Package collector's companion file to collector.go: this file only holds
// package-level documentation, kept separate so collector.go stays focused
// on the Collector/Record/HintProvider contract itself.
//
// A collector is any type satisfying the four-operation Collector interface
// (Init, Collect, Snapshot, Destroy). Built-in collectors live in
// pkg/collectors; plugin-provided ones are loaded by pkg/plugin and wrapped
// the same way — the Service Manager (pkg/manager) never distinguishes
// between the two once a Record is registered.
package collector
