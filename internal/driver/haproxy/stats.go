package haproxy

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"go.infratographer.com/loadbalancer-controlplane/internal/lb"
)

// haproxy csv stats object types
const (
	statsTypeBackend = "1"
	statsTypeServer  = "2"

	// request mask for backend and server objects
	statsRequestTypes = "6"
)

// readStats queries an instance's stats socket and aggregates the csv
// response into a report: backend rows contribute traffic counters, server
// rows contribute per-member health.
func readStats(ctx context.Context, socketPath string) (*lb.StatsReport, error) {
	var d net.Dialer

	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, err
	}

	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := fmt.Fprintf(conn, "show stat -1 %s -1\n", statsRequestTypes); err != nil {
		return nil, err
	}

	return parseStats(bufio.NewScanner(conn))
}

func parseStats(scanner *bufio.Scanner) (*lb.StatsReport, error) {
	report := &lb.StatsReport{Members: map[string]lb.MemberStats{}}

	var fields []string

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "# ") {
			fields = strings.Split(strings.TrimPrefix(line, "# "), ",")
			continue
		}

		if fields == nil {
			return nil, fmt.Errorf("%w: missing header row", ErrStatsParse)
		}

		row := map[string]string{}

		for i, value := range strings.Split(line, ",") {
			if i < len(fields) {
				row[fields[i]] = value
			}
		}

		switch row["type"] {
		case statsTypeBackend:
			report.BytesIn += counter(row["bin"])
			report.BytesOut += counter(row["bout"])
			report.ActiveConnections += counter(row["scur"])
			report.TotalConnections += counter(row["stot"])
		case statsTypeServer:
			status := lb.OperatingOnline
			if strings.HasPrefix(row["status"], "DOWN") {
				status = lb.OperatingOffline
			}

			report.Members[row["svname"]] = lb.MemberStats{
				Status:       status,
				Health:       row["status"],
				FailedChecks: row["chkfail"],
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if fields == nil {
		return nil, fmt.Errorf("%w: empty response", ErrStatsParse)
	}

	return report, nil
}

func counter(s string) uint64 {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}

	return v
}
