package application

import (
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"deskchat/cli/internal/global"
)

func pickFreePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen random port failed: %v", err)
	}
	defer func() { _ = ln.Close() }()
	addr, ok := ln.Addr().(*net.TCPAddr)
	if !ok {
		t.Fatal("unexpected addr type")
	}
	return addr.Port
}

func waitHTTPReady(t *testing.T, url string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("server at %s not ready within %s", url, timeout)
}

func itoa(n int) string { return strconv.Itoa(n) }

func globalConfigForTest(t *testing.T) global.GlobalConfig {
	t.Helper()
	cfg, err := global.NewConfigStore(t.TempDir()).LoadOrInit()
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}
