package collectors

import "github.com/qscuio/qmemd/pkg/collector"

// Default returns the records of the twelve built-in collectors under the
// Service Manager's stable names (spec §2). The records carry no
// configuration: per-collector tuning from the optional YAML config
// (SPEC_FULL.md §10) is passed as the collector.Config argument of
// Manager.Register, and each collector falls back to the defaults its own
// file documents for any zero field.
//
// Registration order here is the snapshot field order (spec §3), not a
// hint-visibility dependency: Manager.CollectAll promotes a producer's
// published hint to HintProvider.Hint only at the next tick's boundary
// (SPEC_FULL.md §13), so heapmon and memleak always read procmem's and
// slabinfo's prior-tick result regardless of registration order.
func Default() []*collector.Record {
	return []*collector.Record{
		{Name: "meminfo", Description: "system memory and kernel allocation summary", Collector: NewMeminfo(), Enabled: true},
		{Name: "vmstat", Description: "virtual memory and paging activity counters", Collector: NewVmstat(), Enabled: true},
		{Name: "procstat", Description: "process run-state census and blocked-process roster", Collector: NewProcstat(), Enabled: true},
		{Name: "netstat", Description: "per-interface network throughput and error counters", Collector: NewNetstat(), Enabled: true},
		{Name: "sockstat", Description: "socket state and allocation counts by protocol", Collector: NewSockstat(), Enabled: true},
		{Name: "fdmon", Description: "per-process open-file-descriptor growth ranking", Collector: NewFdmon(), Enabled: true},
		{Name: "cpuload", Description: "system and per-process CPU utilization ranking", Collector: NewCpuload(), Enabled: true},
		{Name: "procevent", Description: "process fork/exit activity feed", Collector: NewProcevent(), Enabled: true},
		{Name: "procmem", Description: "per-process RSS growth ranking", Collector: NewProcmem(), Enabled: true},
		{Name: "slabinfo", Description: "kernel slab-cache growth ranking", Collector: NewSlabinfo(), Enabled: true},
		{Name: "heapmon", Description: "per-process heap growth from smaps, targeting procmem's top growers", Collector: NewHeapmon(), Enabled: true},
		{Name: "memleak", Description: "unified kernel and user memory leak triage view", Collector: NewMemleak(), Enabled: true},
	}
}
