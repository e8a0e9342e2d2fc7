package profiler

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestGetStats(t *testing.T) {
	p := NewProfiler()
	for _, ms := range []int{4, 1, 3, 2} {
		p.Record("parse", time.Duration(ms)*time.Millisecond)
	}

	stats := p.GetStats("parse")
	if stats.Count != 4 {
		t.Errorf("Count = %d, expected 4", stats.Count)
	}
	if stats.Total != 10*time.Millisecond {
		t.Errorf("Total = %v", stats.Total)
	}
	if stats.Min != time.Millisecond || stats.Max != 4*time.Millisecond {
		t.Errorf("Min/Max = %v/%v", stats.Min, stats.Max)
	}
	if stats.Average != 2500*time.Microsecond {
		t.Errorf("Average = %v", stats.Average)
	}

	if empty := p.GetStats("missing"); empty.Count != 0 {
		t.Errorf("Unknown name should have no data, got %+v", empty)
	}
}

func TestConcurrentRecord(t *testing.T) {
	p := NewProfiler()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Record("SPAM_KEYWORDS", time.Microsecond)
		}()
	}
	wg.Wait()

	if got := p.GetStats("SPAM_KEYWORDS").Count; got != 50 {
		t.Errorf("Count = %d, expected 50", got)
	}
}

func TestWriteReport(t *testing.T) {
	var buf bytes.Buffer
	NewProfiler().WriteReport(&buf)
	if !strings.Contains(buf.String(), "No timing data") {
		t.Errorf("Unexpected empty report: %q", buf.String())
	}

	p := NewProfiler()
	p.Record("fast", time.Microsecond)
	p.Record("slow", 2*time.Second)
	buf.Reset()
	p.WriteReport(&buf)

	report := buf.String()
	if strings.Index(report, "slow") > strings.Index(report, "fast") {
		t.Errorf("Slowest stage should come first:\n%s", report)
	}
	if !strings.Contains(report, "2.000s") {
		t.Errorf("Report should format seconds:\n%s", report)
	}
}
