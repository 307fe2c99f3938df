// Package network provides connectivity diagnostics: ping, DNS lookups,
// and TCP port checks.
package network

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/quillsh/quill/internal/tools"
)

const dialTimeout = 2 * time.Second

// commonPorts is what a port check probes when no list is given.
var commonPorts = []int{22, 80, 443, 3000, 3306, 5432, 6379, 8080, 8443, 27017}

// Register adds the network diagnostic tools to the registry.
func Register(reg *tools.Registry) {
	reg.MustRegister(&tools.Tool{
		Name:        "ping",
		Description: "Ping a host and report latency and packet loss",
		Params: []tools.Parameter{
			{Name: "host", Type: "string", Description: "Hostname or IP address", Required: true},
			{Name: "count", Type: "integer", Description: "Number of packets", Default: float64(3)},
		},
		Func: ping,
	})

	reg.MustRegister(&tools.Tool{
		Name:        "dns_lookup",
		Description: "Resolve DNS records (A, AAAA, CNAME, MX, TXT) for a domain",
		Params: []tools.Parameter{
			{Name: "domain", Type: "string", Description: "Domain name to resolve", Required: true},
			{Name: "type", Type: "string", Description: "Record type", Default: "all",
				Enum: []string{"all", "A", "AAAA", "CNAME", "MX", "TXT"}},
		},
		Func: dnsLookup,
	})

	reg.MustRegister(&tools.Tool{
		Name:        "port_check",
		Description: "Check whether TCP ports are open on a host",
		Params: []tools.Parameter{
			{Name: "host", Type: "string", Description: "Hostname or IP address", Required: true},
			{Name: "ports", Type: "string", Description: "Comma-separated ports, or 'common'", Default: "common"},
		},
		Func: portCheck,
	})
}

func ping(ctx context.Context, args map[string]any) (string, error) {
	host := tools.StringArg(args, "host", "")
	count := strconv.Itoa(tools.IntArg(args, "count", 3))

	countFlag := "-c"
	if runtime.GOOS == "windows" {
		countFlag = "-n"
	}

	output, err := exec.CommandContext(ctx, "ping", countFlag, count, host).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s is unreachable: %v", host, err)
	}
	return summarizePing(string(output)), nil
}

// summarizePing keeps only the statistics lines of ping output, falling
// back to the full text when no known line is found.
func summarizePing(output string) string {
	var kept []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if strings.Contains(line, "packets") ||
			strings.Contains(line, "rtt") ||
			strings.Contains(line, "round-trip") ||
			strings.Contains(line, "loss") {
			kept = append(kept, line)
		}
	}
	if len(kept) == 0 {
		return output
	}
	return strings.Join(kept, "\n")
}

func dnsLookup(ctx context.Context, args map[string]any) (string, error) {
	domain := tools.StringArg(args, "domain", "")
	recordType := strings.ToUpper(tools.StringArg(args, "type", "all"))

	resolver := net.DefaultResolver
	var records []string

	if recordType == "ALL" || recordType == "A" || recordType == "AAAA" {
		ips, err := resolver.LookupIP(ctx, "ip", domain)
		if err == nil {
			for _, ip := range ips {
				kind := "AAAA"
				if ip.To4() != nil {
					kind = "A"
				}
				if recordType == "ALL" || recordType == kind {
					records = append(records, fmt.Sprintf("%s: %s", kind, ip))
				}
			}
		}
	}

	if recordType == "ALL" || recordType == "CNAME" {
		if cname, err := resolver.LookupCNAME(ctx, domain); err == nil && cname != domain+"." {
			records = append(records, "CNAME: "+cname)
		}
	}

	if recordType == "ALL" || recordType == "MX" {
		if mxs, err := resolver.LookupMX(ctx, domain); err == nil {
			for _, mx := range mxs {
				records = append(records, fmt.Sprintf("MX: %s (priority %d)", mx.Host, mx.Pref))
			}
		}
	}

	if recordType == "ALL" || recordType == "TXT" {
		if txts, err := resolver.LookupTXT(ctx, domain); err == nil {
			for _, txt := range txts {
				if len(txt) > 100 {
					txt = txt[:100] + "..."
				}
				records = append(records, "TXT: "+txt)
			}
		}
	}

	if len(records) == 0 {
		return "", fmt.Errorf("no DNS records found for %s", domain)
	}
	return strings.Join(records, "\n"), nil
}

func portCheck(ctx context.Context, args map[string]any) (string, error) {
	host := tools.StringArg(args, "host", "")
	spec := tools.StringArg(args, "ports", "common")

	ports := parsePorts(spec)
	if len(ports) == 0 {
		return "", fmt.Errorf("no valid ports in %q", spec)
	}

	dialer := net.Dialer{Timeout: dialTimeout}
	var lines []string
	open := 0

	for _, port := range ports {
		addr := net.JoinHostPort(host, strconv.Itoa(port))
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			lines = append(lines, fmt.Sprintf("Port %d: CLOSED", port))
			continue
		}
		conn.Close()
		lines = append(lines, fmt.Sprintf("Port %d: OPEN", port))
		open++
	}

	header := fmt.Sprintf("Checked %d ports on %s: %d open, %d closed",
		len(ports), host, open, len(ports)-open)
	return header + "\n\n" + strings.Join(lines, "\n"), nil
}

// parsePorts turns "common" or a comma-separated list into port numbers,
// dropping anything out of range.
func parsePorts(spec string) []int {
	if strings.TrimSpace(spec) == "common" {
		return commonPorts
	}

	var ports []int
	for _, part := range strings.Split(spec, ",") {
		port, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || port < 1 || port > 65535 {
			continue
		}
		ports = append(ports, port)
	}
	return ports
}
