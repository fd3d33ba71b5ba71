package testutil

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"testing"
	"time"
)

// ServerConfig carries the values a test needs to start a server backed by
// a private DefraDB container.
type ServerConfig struct {
	Host          string
	Port          string
	DefraDataPath string
	ContainerName string
	DefraPort     string
	Labels        map[string]string
	Logger        *slog.Logger
}

// NewServerConfig picks free ports and a unique container name. It skips
// the test in -short mode or when Docker is unavailable.
func NewServerConfig(t *testing.T) ServerConfig {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping docker test in short mode")
	}
	_ = DockerClient(t)

	httpPort, err := FindFreePort()
	if err != nil {
		t.Fatalf("failed to find free port for HTTP: %v", err)
	}
	defraPort, err := FindFreePort()
	if err != nil {
		t.Fatalf("failed to find free port for DefraDB: %v", err)
	}

	return ServerConfig{
		Host:          "127.0.0.1",
		Port:          httpPort,
		DefraDataPath: t.TempDir(),
		ContainerName: UniqueContainerName(t, "defra"),
		DefraPort:     defraPort,
		Labels:        ContainerLabels(t),
		Logger:        slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})),
	}
}

// URL returns the server's base URL.
func (c ServerConfig) URL() string {
	return fmt.Sprintf("http://%s:%s", c.Host, c.Port)
}

// WaitForServer polls /status until DefraDB reports healthy.
func WaitForServer(url string, timeout time.Duration) error {
	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		resp, err := client.Get(url + "/status")
		if err == nil {
			var status struct {
				Defra struct {
					Health string `json:"health"`
				} `json:"defra"`
			}
			decodeErr := json.NewDecoder(resp.Body).Decode(&status)
			resp.Body.Close()
			if decodeErr == nil && status.Defra.Health == "healthy" {
				return nil
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("server not ready after %v", timeout)
}

// FindFreePort returns an unused TCP port on localhost.
func FindFreePort() (string, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	defer listener.Close()
	return fmt.Sprintf("%d", listener.Addr().(*net.TCPAddr).Port), nil
}
