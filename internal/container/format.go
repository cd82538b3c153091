package container

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Go templates passed to --format. Columns are tab-separated so both
// engines produce the same shape.
const (
	psFormat      = "{{.ID}}\t{{.Names}}\t{{.Image}}\t{{.Status}}\t{{.Ports}}"
	imagesFormat  = "{{.Repository}}\t{{.Tag}}\t{{.ID}}\t{{.Size}}\t{{.CreatedSince}}"
	statsFormat   = "{{.Name}}\t{{.CPUPerc}}\t{{.MemUsage}}\t{{.MemPerc}}\t{{.NetIO}}\t{{.BlockIO}}\t{{.PIDs}}"
	networkFormat = "{{.ID}}\t{{.Name}}\t{{.Driver}}"
	volumeFormat  = "{{.Name}}\t{{.Driver}}"
)

// parseRows splits tab-separated engine output into rows of exactly width
// columns. Short rows are padded, blank lines skipped.
func parseRows(out string, width int) [][]string {
	var rows [][]string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		row := make([]string, width)
		for i := 0; i < width && i < len(parts); i++ {
			row[i] = strings.TrimSpace(parts[i])
		}
		rows = append(rows, row)
	}
	return rows
}

// Inspect is the subset of `inspect` output the summary shows.
type Inspect struct {
	ID      string `json:"Id"`
	Name    string `json:"Name"`
	Created string `json:"Created"`
	State   struct {
		Status     string `json:"Status"`
		Running    bool   `json:"Running"`
		ExitCode   int    `json:"ExitCode"`
		StartedAt  string `json:"StartedAt"`
		FinishedAt string `json:"FinishedAt"`
		Health     *struct {
			Status string `json:"Status"`
		} `json:"Health"`
	} `json:"State"`
	Config struct {
		Image  string            `json:"Image"`
		Cmd    []string          `json:"Cmd"`
		Env    []string          `json:"Env"`
		Labels map[string]string `json:"Labels"`
	} `json:"Config"`
	HostConfig struct {
		RestartPolicy struct {
			Name string `json:"Name"`
		} `json:"RestartPolicy"`
	} `json:"HostConfig"`
	NetworkSettings struct {
		Ports    map[string][]portBinding `json:"Ports"`
		Networks map[string]struct {
			IPAddress string `json:"IPAddress"`
		} `json:"Networks"`
	} `json:"NetworkSettings"`
	Mounts []struct {
		Source      string `json:"Source"`
		Destination string `json:"Destination"`
		Mode        string `json:"Mode"`
		RW          bool   `json:"RW"`
	} `json:"Mounts"`
}

type portBinding struct {
	HostIP   string `json:"HostIp"`
	HostPort string `json:"HostPort"`
}

// parseInspect decodes the JSON array `inspect` prints.
func parseInspect(out []byte) (*Inspect, error) {
	var items []Inspect
	if err := json.Unmarshal(out, &items); err != nil {
		return nil, fmt.Errorf("parse inspect output: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("inspect returned no objects")
	}
	return &items[0], nil
}

// PortLines renders published ports as "8080/tcp -> 0.0.0.0:80", sorted.
func (i *Inspect) PortLines() []string {
	var lines []string
	for port, bindings := range i.NetworkSettings.Ports {
		if len(bindings) == 0 {
			lines = append(lines, port)
			continue
		}
		for _, b := range bindings {
			host := b.HostIP
			if host == "" {
				host = "0.0.0.0"
			}
			lines = append(lines, fmt.Sprintf("%s -> %s:%s", port, host, b.HostPort))
		}
	}
	sort.Strings(lines)
	return lines
}

// NetworkLines renders attached networks as "name (ip)", sorted.
func (i *Inspect) NetworkLines() []string {
	var lines []string
	for name, n := range i.NetworkSettings.Networks {
		if n.IPAddress != "" {
			lines = append(lines, fmt.Sprintf("%s (%s)", name, n.IPAddress))
		} else {
			lines = append(lines, name)
		}
	}
	sort.Strings(lines)
	return lines
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// tailLines keeps the last n lines of s.
func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= n {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
