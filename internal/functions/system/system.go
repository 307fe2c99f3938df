// Package system provides host inspection tools backed by gopsutil.
package system

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/quillsh/quill/internal/tools"
)

// Register adds the system tools to the registry.
func Register(reg *tools.Registry) {
	reg.MustRegister(&tools.Tool{
		Name:        "get_system_info",
		Description: "Show host name, OS, architecture, CPU count, and memory",
		Func:        systemInfo,
	})

	reg.MustRegister(&tools.Tool{
		Name:        "disk_usage",
		Description: "Show disk usage per mounted filesystem",
		Func:        diskUsage,
	})

	reg.MustRegister(&tools.Tool{
		Name:        "process_list",
		Description: "List the processes using the most memory",
		Params: []tools.Parameter{
			{Name: "limit", Type: "integer", Description: "How many processes to show", Default: float64(10)},
		},
		Func: processList,
	})

	reg.MustRegister(&tools.Tool{
		Name:        "system_load",
		Description: "Show load averages and current CPU utilization",
		Func:        systemLoad,
	})
}

func systemInfo(ctx context.Context, args map[string]any) (string, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("read host info: %w", err)
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("read memory info: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "host: %s\n", info.Hostname)
	fmt.Fprintf(&b, "os: %s %s (%s)\n", info.Platform, info.PlatformVersion, info.OS)
	fmt.Fprintf(&b, "arch: %s\n", runtime.GOARCH)
	fmt.Fprintf(&b, "cpus: %d\n", runtime.NumCPU())
	fmt.Fprintf(&b, "memory: %s total, %s used (%.1f%%)\n",
		formatBytes(vm.Total), formatBytes(vm.Used), vm.UsedPercent)
	fmt.Fprintf(&b, "uptime: %dh%dm", info.Uptime/3600, info.Uptime%3600/60)
	return b.String(), nil
}

func diskUsage(ctx context.Context, args map[string]any) (string, error) {
	partitions, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return "", fmt.Errorf("list partitions: %w", err)
	}

	var b strings.Builder
	for _, p := range partitions {
		usage, err := disk.UsageWithContext(ctx, p.Mountpoint)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "%s (%s): %s / %s used (%.1f%%)\n",
			p.Mountpoint, p.Fstype,
			formatBytes(usage.Used), formatBytes(usage.Total), usage.UsedPercent)
	}
	if b.Len() == 0 {
		return "no mounted filesystems found", nil
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func processList(ctx context.Context, args map[string]any) (string, error) {
	limit := tools.IntArg(args, "limit", 10)

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("list processes: %w", err)
	}

	type entry struct {
		pid  int32
		name string
		rss  uint64
	}

	entries := make([]entry, 0, len(procs))
	for _, p := range procs {
		info, err := p.MemoryInfoWithContext(ctx)
		if err != nil || info == nil {
			continue
		}
		name, err := p.NameWithContext(ctx)
		if err != nil {
			name = "?"
		}
		entries = append(entries, entry{pid: p.Pid, name: name, rss: info.RSS})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].rss > entries[j].rss })
	if len(entries) > limit {
		entries = entries[:limit]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-8s %-10s %s\n", "PID", "RSS", "NAME")
	for _, e := range entries {
		fmt.Fprintf(&b, "%-8d %-10s %s\n", e.pid, formatBytes(e.rss), e.name)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func systemLoad(ctx context.Context, args map[string]any) (string, error) {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("read load averages: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "load averages: %.2f %.2f %.2f\n", avg.Load1, avg.Load5, avg.Load15)

	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err == nil && len(percents) > 0 {
		fmt.Fprintf(&b, "cpu utilization: %.1f%%", percents[0])
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%cB", float64(n)/float64(div), "KMGTPE"[exp])
}
