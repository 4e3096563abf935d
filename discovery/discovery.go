// Package discovery finds debuggable targets by probing the well-known
// listing endpoint on a set of candidate ports.
package discovery

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/afzaal-28/rn-inspector/metrics"
	"github.com/afzaal-28/rn-inspector/types"
)

const (
	DefaultTimeout = 750 * time.Millisecond
	ListPath       = "/json"

	portOffsets = 10

	// maxListSize caps how much of a listing response is read.
	maxListSize = 4 << 20
)

var DefaultExtraPorts = []int{9222, 9229, 9230}

type Discoverer struct {
	Timeout    time.Duration
	ExtraPorts []int

	host   string
	client *http.Client
	logger logrus.FieldLogger
}

func New(host string, logger logrus.FieldLogger) *Discoverer {
	return &Discoverer{
		Timeout:    DefaultTimeout,
		ExtraPorts: DefaultExtraPorts,
		host:       host,
		client:     &http.Client{},
		logger:     logger.WithField("component", "discovery"),
	}
}

// CandidatePorts returns base, the ten ports above it and extra, without
// duplicates and in that order.
func CandidatePorts(base int, extra []int) []int {
	seen := make(map[int]struct{}, portOffsets+1+len(extra))
	ports := make([]int, 0, portOffsets+1+len(extra))

	add := func(port int) {
		if _, ok := seen[port]; ok {
			return
		}

		seen[port] = struct{}{}
		ports = append(ports, port)
	}

	add(base)

	for offset := 1; offset <= portOffsets; offset++ {
		add(base + offset)
	}

	for _, port := range extra {
		add(port)
	}

	return ports
}

// Discover probes every candidate port around base and returns the deduped
// target list. Ports without a listing are skipped.
func (d *Discoverer) Discover(ctx context.Context, base int) []types.Target {
	ports := CandidatePorts(base, d.ExtraPorts)
	listings := make([][]types.Target, len(ports))

	var wg sync.WaitGroup

	for i, port := range ports {
		wg.Add(1)

		go func(i, port int) {
			defer wg.Done()

			listings[i] = d.Probe(ctx, port)
		}(i, port)
	}

	wg.Wait()

	seenURLs := make(map[string]struct{})
	results := make([]types.Target, 0)

	for _, listing := range listings {
		for _, target := range listing {
			if _, ok := seenURLs[target.WebSocketDebuggerURL]; ok {
				continue
			}

			seenURLs[target.WebSocketDebuggerURL] = struct{}{}
			results = append(results, target)
		}
	}

	deduped := Dedupe(results)

	switch {
	case len(deduped) == 0:
		d.logger.Warn("no devtools targets discovered, continuing with metro logs only")
	case len(deduped) < len(results):
		d.logger.Infof("deduped devtools targets (kept %d of %d)", len(deduped), len(results))
	}

	for i, target := range deduped {
		d.logger.Infof("  [%d] %v (%v)", i, target.WebSocketDebuggerURL, label(target, i))
	}

	return deduped
}

// Probe fetches the target listing on one port. Any failure yields nil.
func (d *Discoverer) Probe(ctx context.Context, port int) []types.Target {
	ctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	endpoint := fmt.Sprintf("http://%v%v", netJoin(d.host, port), ListPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		metrics.DiscoveryProbe("error")
		return nil
	}

	rsp, err := d.client.Do(req)
	if err != nil {
		metrics.DiscoveryProbe("unreachable")
		return nil
	}
	defer rsp.Body.Close()

	if rsp.StatusCode != http.StatusOK {
		metrics.DiscoveryProbe("status")
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(rsp.Body, maxListSize))
	if err != nil || !gjson.ValidBytes(body) {
		metrics.DiscoveryProbe("invalid")
		return nil
	}

	targets := parseListing(gjson.ParseBytes(body), port)
	metrics.DiscoveryProbe("ok")

	d.logger.Debugf("port %d listed %d targets", port, len(targets))

	return targets
}

func parseListing(doc gjson.Result, port int) []types.Target {
	list := doc
	if !list.IsArray() {
		list = doc.Get("targets")
		if !list.IsArray() {
			return nil
		}
	}

	targets := make([]types.Target, 0)

	// Default ids count usable entries only.
	for _, item := range list.Array() {
		endpoint := item.Get("webSocketDebuggerUrl")
		if endpoint.Type != gjson.String {
			continue
		}

		id := item.Get("id")

		target := types.Target{
			ID:                   fmt.Sprintf("%d-%d", port, len(targets)),
			WebSocketDebuggerURL: endpoint.Str,
		}

		if id.Exists() && id.Type != gjson.Null {
			target.ID = id.String()
		}

		if title := item.Get("title"); title.Type == gjson.String {
			target.Title = title.Str
		}

		if description := item.Get("description"); description.Type == gjson.String {
			target.Description = description.Str
		}

		targets = append(targets, target)
	}

	return targets
}

// Dedupe collapses entries describing the same device. The key is the
// device query parameter, else the id, else title, description or URL. Among
// entries sharing a key the one with the lowest page wins, the later one on
// ties. Keys keep the order they were first seen in.
func Dedupe(targets []types.Target) []types.Target {
	order := make([]string, 0, len(targets))
	kept := make(map[string]types.Target, len(targets))

	for _, target := range targets {
		key, page := dedupeKey(target)
		if key == "" {
			continue
		}

		existing, ok := kept[key]
		if !ok {
			order = append(order, key)
			kept[key] = target

			continue
		}

		if _, existingPage := dedupeKey(existing); page <= existingPage {
			kept[key] = target
		}
	}

	out := make([]types.Target, 0, len(order))
	for _, key := range order {
		out = append(out, kept[key])
	}

	return out
}

func dedupeKey(target types.Target) (key string, page float64) {
	key = target.ID

	if u, err := url.Parse(target.WebSocketDebuggerURL); err == nil {
		query := u.Query()

		if device := query.Get("device"); device != "" {
			key = device
		}

		if p := query.Get("page"); p != "" {
			if parsed, err := strconv.ParseFloat(p, 64); err == nil {
				page = parsed
			}
		}
	}

	if key == "" {
		key = firstNonEmpty(target.Title, target.Description, target.WebSocketDebuggerURL)
	}

	return key, page
}

// Devices maps targets to the entries observers see in device lists.
func Devices(targets []types.Target) []types.Device {
	devices := make([]types.Device, 0, len(targets))

	for i, target := range targets {
		id := target.ID
		if id == "" {
			id = fmt.Sprintf("devtools-%d", i)
		}

		devices = append(devices, types.Device{
			ID:    id,
			Label: label(target, i),
			URL:   target.WebSocketDebuggerURL,
		})
	}

	return devices
}

func label(target types.Target, index int) string {
	return firstNonEmpty(target.Title, target.Description, target.ID, fmt.Sprintf("Target %d", index+1))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}

func netJoin(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
