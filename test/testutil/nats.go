package testutil

import (
	"fmt"
	"net"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	natsReadyTimeout = 8 * time.Second
	natsStopGrace    = 5 * time.Second
)

// StartJetStream runs a throwaway JetStream-enabled nats-server for ledger and events
// integration tests and stops it on test cleanup.
// The test is skipped in -short mode and when nats-server is not installed.
// Params: test handle.
// Returns: client URL of the running server.
func StartJetStream(tb testing.TB) string {
	tb.Helper()

	if testing.Short() {
		tb.Skip("nats integration test skipped in short mode")
	}
	binary, err := exec.LookPath("nats-server")
	if err != nil {
		tb.Skipf("nats-server not found: %v", err)
	}

	port, err := freeLoopbackPort()
	if err != nil {
		tb.Fatalf("reserve port: %v", err)
	}
	server := exec.Command(binary, "-js", "-a", "127.0.0.1", "-p", fmt.Sprint(port), "-sd", tb.TempDir())
	if err := server.Start(); err != nil {
		tb.Skipf("start nats-server: %v", err)
	}
	exited := make(chan struct{})
	go func() {
		_ = server.Wait()
		close(exited)
	}()
	tb.Cleanup(func() {
		_ = server.Process.Signal(syscall.SIGTERM)
		select {
		case <-exited:
		case <-time.After(natsStopGrace):
			_ = server.Process.Kill()
			<-exited
		}
	})

	url := fmt.Sprintf("nats://127.0.0.1:%d", port)
	if err := waitForNATS(url, natsReadyTimeout, exited); err != nil {
		tb.Fatalf("nats-server at %s: %v", url, err)
	}
	return url
}

// freeLoopbackPort asks the kernel for an unused loopback port.
func freeLoopbackPort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port, nil
}

// waitForNATS polls until the server accepts a client connection, exits, or timeout passes.
func waitForNATS(url string, timeout time.Duration, exited <-chan struct{}) error {
	deadline := time.After(timeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		nc, err := nats.Connect(url, nats.Timeout(time.Second))
		if err == nil {
			nc.Close()
			return nil
		}
		select {
		case <-exited:
			return fmt.Errorf("server exited before accepting connections")
		case <-deadline:
			return fmt.Errorf("not ready after %s: %w", timeout, err)
		case <-ticker.C:
		}
	}
}
