package stage

import "strings"

// Health is the readiness of one job kind as reported on the status API.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy reports name as ready.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy reports name as not ready. Empty reasons are dropped and the rest
// are joined into Detail.
func Unhealthy(name string, reasons ...string) Health {
	kept := reasons[:0:0]
	for _, r := range reasons {
		if r = strings.TrimSpace(r); r != "" {
			kept = append(kept, r)
		}
	}
	return Health{Name: name, Detail: strings.Join(kept, "; ")}
}
