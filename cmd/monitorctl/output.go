package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/taskpulse/internal/app/monitoring/views"
	"github.com/ahrav/taskpulse/internal/domain/monitoring"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"

	clearScreen = "\033[H\033[2J"
)

func parseFormat(s string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(s)); f {
	case formatTable, formatJSON, formatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

// workerRow and queueRow are the display forms of workers and queues.
type workerRow struct {
	Hostname  string `json:"hostname" yaml:"hostname"`
	Status    string `json:"status" yaml:"status"`
	Active    int    `json:"active" yaml:"active"`
	Processed int64  `json:"processed" yaml:"processed"`
	Load      string `json:"load" yaml:"load"`
	Heartbeat string `json:"last_heartbeat" yaml:"last_heartbeat"`
}

type queueRow struct {
	Name      string `json:"name" yaml:"name"`
	Messages  int    `json:"messages" yaml:"messages"`
	Ready     int    `json:"ready" yaml:"ready"`
	Unacked   int    `json:"unacknowledged" yaml:"unacknowledged"`
	Consumers int    `json:"consumers" yaml:"consumers"`
}

func renderTasks(w io.Writer, format string, tasks []monitoring.Task) error {
	rows := views.TaskRows(tasks)
	return render(w, format, rows,
		[]string{"ID", "NAME", "STATE", "QUEUE", "WORKER", "RECEIVED", "RUNTIME", "RETRIES"},
		func(i int) []string {
			r := rows[i]
			return []string{r.ID, r.Name, r.State, r.Queue, r.Worker, r.Received, r.Runtime, fmt.Sprint(r.Retries)}
		}, len(rows))
}

func renderWorkers(w io.Writer, format string, workers []monitoring.Worker) error {
	rows := make([]workerRow, 0, len(workers))
	for _, wk := range workers {
		rows = append(rows, workerRow{
			Hostname:  wk.Hostname,
			Status:    string(wk.Status),
			Active:    wk.Active,
			Processed: wk.Processed,
			Load:      fmt.Sprintf("%.2f %.2f %.2f", wk.LoadAvg[0], wk.LoadAvg[1], wk.LoadAvg[2]),
			Heartbeat: views.FormatTimestamp(wk.LastHeartbeat),
		})
	}
	return render(w, format, rows,
		[]string{"HOSTNAME", "STATUS", "ACTIVE", "PROCESSED", "LOAD", "HEARTBEAT"},
		func(i int) []string {
			r := rows[i]
			return []string{r.Hostname, r.Status, fmt.Sprint(r.Active), fmt.Sprint(r.Processed), r.Load, r.Heartbeat}
		}, len(rows))
}

func renderQueues(w io.Writer, format string, queues []monitoring.Queue) error {
	rows := make([]queueRow, 0, len(queues))
	for _, q := range queues {
		rows = append(rows, queueRow{
			Name:      q.Name,
			Messages:  q.Messages,
			Ready:     q.MessagesReady,
			Unacked:   q.MessagesUnacknowledged,
			Consumers: q.Consumers,
		})
	}
	return render(w, format, rows,
		[]string{"NAME", "MESSAGES", "READY", "UNACKED", "CONSUMERS"},
		func(i int) []string {
			r := rows[i]
			return []string{r.Name, fmt.Sprint(r.Messages), fmt.Sprint(r.Ready), fmt.Sprint(r.Unacked), fmt.Sprint(r.Consumers)}
		}, len(rows))
}

// render writes v as JSON or YAML, or as an aligned table of n rows built
// by row.
func render(w io.Writer, format string, v any, header []string, row func(int) []string, n int) error {
	format, err := parseFormat(format)
	if err != nil {
		return err
	}

	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for i := range n {
		fmt.Fprintln(tw, strings.Join(row(i), "\t"))
	}
	return tw.Flush()
}
