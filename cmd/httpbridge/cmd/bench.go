package cmd

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	vegeta "github.com/tsenart/vegeta/lib"
)

type benchOptions struct {
	target   string
	method   string
	rps      int
	duration time.Duration
	bodySize string
	workers  uint64
	timeout  time.Duration
	headers  []string
}

func newBenchCmd() *cobra.Command {
	opts := benchOptions{}
	c := &cobra.Command{
		Use:   "bench",
		Short: "Load test a running bridge",
		Long: `Send requests at a constant rate to a running httpbridge and report latency,
throughput and status codes. The default target is the echo application, so
request bodies travel through the importer and back out through the exporter.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBench(cmd.OutOrStdout(), opts)
		},
	}

	f := c.Flags()
	f.StringVar(&opts.target, "target", "http://127.0.0.1:8080/bench", "URL to attack")
	f.StringVar(&opts.method, "method", "POST", "request method")
	f.IntVar(&opts.rps, "rps", 100, "requests per second")
	f.DurationVar(&opts.duration, "duration", 10*time.Second, "attack duration")
	f.StringVar(&opts.bodySize, "body-size", "1KiB", "request body size, e.g. 512, 4KiB, 1MB")
	f.Uint64Var(&opts.workers, "workers", uint64(runtime.NumCPU()), "initial number of attack workers")
	f.DurationVar(&opts.timeout, "timeout", 30*time.Second, "per request timeout")
	f.StringArrayVarP(&opts.headers, "header", "H", nil, "extra request header as 'Name: value' (repeatable)")
	return c
}

func (o benchOptions) targets() ([]vegeta.Target, error) {
	u, err := url.Parse(o.target)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid target %q", o.target)
	}
	if o.rps <= 0 {
		return nil, fmt.Errorf("rps must be > 0, got %d", o.rps)
	}
	if o.duration <= 0 {
		return nil, fmt.Errorf("duration must be > 0, got %s", o.duration)
	}
	size, err := humanize.ParseBytes(o.bodySize)
	if err != nil {
		return nil, fmt.Errorf("invalid body size %q: %w", o.bodySize, err)
	}

	header := map[string][]string{}
	for _, h := range o.headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid header %q", h)
		}
		name = strings.TrimSpace(name)
		header[name] = append(header[name], strings.TrimSpace(value))
	}
	if size > 0 && len(header["Content-Type"]) == 0 {
		header["Content-Type"] = []string{"application/octet-stream"}
	}

	return []vegeta.Target{{
		Method: strings.ToUpper(o.method),
		URL:    u.String(),
		Body:   bytes.Repeat([]byte("x"), int(size)),
		Header: header,
	}}, nil
}

func runBench(w io.Writer, o benchOptions) error {
	targets, err := o.targets()
	if err != nil {
		return err
	}
	if o.workers == 0 {
		o.workers = 1
	}

	targeter := vegeta.NewStaticTargeter(targets...)
	rate := vegeta.Rate{Freq: o.rps, Per: time.Second}
	attacker := vegeta.NewAttacker(vegeta.Workers(o.workers), vegeta.Timeout(o.timeout))

	fmt.Fprintf(w, "attacking %s %s at %d rps for %s\n", targets[0].Method, targets[0].URL, o.rps, o.duration)

	var metrics vegeta.Metrics
	for res := range attacker.Attack(targeter, rate, o.duration, "httpbridge") {
		metrics.Add(res)
	}
	metrics.Close()

	printBenchReport(w, &metrics)
	return nil
}

func printBenchReport(w io.Writer, m *vegeta.Metrics) {
	fmt.Fprintf(w, "Requests:    %d (%.1f rps, throughput %.1f/s)\n", m.Requests, m.Rate, m.Throughput)
	fmt.Fprintf(w, "Success:     %.2f%%\n", m.Success*100)
	fmt.Fprintf(w, "Latency:     mean %s, p50 %s, p95 %s, p99 %s, max %s\n",
		m.Latencies.Mean.Round(time.Microsecond),
		m.Latencies.P50.Round(time.Microsecond),
		m.Latencies.P95.Round(time.Microsecond),
		m.Latencies.P99.Round(time.Microsecond),
		m.Latencies.Max.Round(time.Microsecond))
	fmt.Fprintf(w, "Bytes in:    %s\n", humanize.IBytes(m.BytesIn.Total))
	fmt.Fprintf(w, "Bytes out:   %s\n", humanize.IBytes(m.BytesOut.Total))

	codes := make([]string, 0, len(m.StatusCodes))
	for code := range m.StatusCodes {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	fmt.Fprintln(w, "Status codes:")
	for _, code := range codes {
		fmt.Fprintf(w, "  %s: %d\n", code, m.StatusCodes[code])
	}
	if len(m.Errors) > 0 {
		fmt.Fprintln(w, "Errors:")
		for _, e := range m.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
}
