package metrics

import (
	"bufio"
	"encoding/json"
	"os"
	"sort"
	"time"
)

// Analyzer processes metrics logs.
type Analyzer struct {
	logPath string
}

// NewAnalyzer creates a new analyzer.
func NewAnalyzer(logPath string) *Analyzer {
	return &Analyzer{logPath: logPath}
}

// Summary contains aggregated metrics.
type Summary struct {
	Period        string      `json:"period"`
	Runs          int         `json:"runs"`
	FilesIndexed  int         `json:"files_indexed"`
	Symbols       int         `json:"symbols"`
	ParseErrors   int         `json:"parse_errors"`
	ScopesFlushed int         `json:"scopes_flushed"`
	Chunks        int         `json:"chunks"`
	Errors        int         `json:"errors"`
	FailingFiles  []FileCount `json:"failing_files"`
}

// FileCount is a path with the number of times it appeared.
type FileCount struct {
	Path  string `json:"path"`
	Count int    `json:"count"`
}

// Analyze processes logs for a time period.
func (a *Analyzer) Analyze(since time.Duration) (*Summary, error) {
	file, err := os.Open(a.logPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	cutoff := time.Now().Add(-since)
	summary := &Summary{Period: since.String()}
	failing := make(map[string]int)

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var event map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			continue
		}

		tsStr, ok := event["ts"].(string)
		if !ok {
			continue
		}
		ts, err := time.Parse(time.RFC3339, tsStr)
		if err != nil || ts.Before(cutoff) {
			continue
		}

		eventType, _ := event["event"].(string)
		switch eventType {
		case EventFileIndexed:
			summary.FilesIndexed++
			if n, ok := event["symbols"].(float64); ok {
				summary.Symbols += int(n)
			}

		case EventParseError:
			summary.ParseErrors++
			if path, ok := event["path"].(string); ok {
				failing[path]++
			}

		case EventScopeFlushed:
			summary.ScopesFlushed++
			if n, ok := event["chunks"].(float64); ok {
				summary.Chunks += int(n)
			}

		case EventIndexUpdate:
			summary.Runs++

		case EventError:
			summary.Errors++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	for path, n := range failing {
		summary.FailingFiles = append(summary.FailingFiles, FileCount{Path: path, Count: n})
	}
	sort.Slice(summary.FailingFiles, func(i, j int) bool {
		fi, fj := summary.FailingFiles[i], summary.FailingFiles[j]
		if fi.Count != fj.Count {
			return fi.Count > fj.Count
		}
		return fi.Path < fj.Path
	})
	if len(summary.FailingFiles) > 10 {
		summary.FailingFiles = summary.FailingFiles[:10]
	}

	return summary, nil
}
