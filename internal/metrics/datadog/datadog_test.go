package datadog

import (
	"net"
	"reflect"
	"strings"
	"testing"
	"time"

	"dbbench/internal/metrics"
)

func TestTagsSorted(t *testing.T) {
	got := tags(metrics.Labels{"step": "load", "engine": "pg", "status": "success"})
	want := []string{"engine:pg", "status:success", "step:load"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("tags = %v, want %v", got, want)
	}
	if tags(nil) != nil {
		t.Fatalf("nil labels should give nil tags")
	}
}

func TestNewBackendRequiresAddr(t *testing.T) {
	if _, err := NewBackend(Config{}); err == nil {
		t.Fatalf("expected error for empty Addr")
	}
}

func TestBackendSendsDatagrams(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("udp unavailable: %v", err)
	}
	defer pc.Close()

	b, err := NewBackend(Config{Addr: pc.LocalAddr().String(), Namespace: "dbbench.", GlobalTags: []string{"env:test"}})
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	defer b.Close()

	b.IncCounter(metrics.BatchesTotal, 3, metrics.Labels{"engine": "pg"})
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	buf := make([]byte, 8192)
	_ = pc.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got string
	for !strings.Contains(got, metrics.BatchesTotal) {
		n, _, err := pc.ReadFrom(buf)
		if err != nil {
			t.Fatalf("read datagram: %v", err)
		}
		got = string(buf[:n])
	}
	for _, want := range []string{"dbbench." + metrics.BatchesTotal + ":3|c", "engine:pg", "env:test"} {
		if !strings.Contains(got, want) {
			t.Fatalf("datagram %q missing %q", got, want)
		}
	}
}
