// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/vaultd/lib/codec"
	"github.com/bureau-foundation/vaultd/lib/testutil"
)

// sendRequest connects to a Unix socket, sends a CBOR request, and
// returns the decoded response envelope.
func sendRequest(t *testing.T, socketPath string, request any) Response {
	t.Helper()

	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		t.Fatalf("connecting to socket: %v", err)
	}
	defer conn.Close()

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		t.Fatalf("writing request: %v", err)
	}
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	var response Response
	if err := codec.NewDecoder(conn).Decode(&response); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return response
}

func decodeData(t *testing.T, response Response, target any) {
	t.Helper()
	if len(response.Data) == 0 {
		t.Fatal("response has no data to decode")
	}
	if err := codec.Unmarshal(response.Data, target); err != nil {
		t.Fatalf("decoding response data: %v", err)
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type kindedError struct {
	kind, message string
}

func (e *kindedError) Error() string     { return e.message }
func (e *kindedError) ErrorKind() string { return e.kind }

// startServer registers handlers, runs Serve in the background, and
// waits for the socket to accept connections. The returned function
// cancels and waits for Serve to return.
func startServer(t *testing.T, register func(*SocketServer)) (string, func() error) {
	t.Helper()
	socketPath := filepath.Join(testutil.SocketDir(t), "control.sock")
	server := NewSocketServer(socketPath, testLogger())
	if register != nil {
		register(server)
	}

	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- server.Serve(ctx)
	}()
	testutil.RequireClosed(t, server.Ready(), 5*time.Second, "socket server ready")

	var once sync.Once
	var serveErr error
	stop := func() error {
		once.Do(func() {
			cancel()
			serveErr = testutil.RequireReceive(t, serveDone, 5*time.Second, "Serve did not return after cancellation")
		})
		return serveErr
	}
	t.Cleanup(func() { stop() })
	return socketPath, stop
}

func TestSocketServerStatus(t *testing.T) {
	socketPath, stop := startServer(t, func(server *SocketServer) {
		server.Handle("status", func(ctx context.Context, raw []byte) (any, error) {
			return map[string]any{"vaults": 3}, nil
		})
	})

	response := sendRequest(t, socketPath, map[string]string{"action": "status"})
	if !response.OK {
		t.Fatalf("expected ok=true, got error %q", response.Error)
	}
	var data map[string]any
	decodeData(t, response, &data)
	if data["vaults"] != uint64(3) {
		t.Errorf("expected vaults=3, got %v (%T)", data["vaults"], data["vaults"])
	}

	if err := stop(); err != nil {
		t.Errorf("Serve returned error: %v", err)
	}
}

func TestSocketServerPermissions(t *testing.T) {
	socketPath, _ := startServer(t, nil)

	info, err := os.Stat(socketPath)
	if err != nil {
		t.Fatalf("stat socket: %v", err)
	}
	if mode := info.Mode().Perm(); mode != 0o600 {
		t.Errorf("socket mode = %o, want 600", mode)
	}
}

func TestSocketServerRequestErrors(t *testing.T) {
	socketPath, _ := startServer(t, func(server *SocketServer) {
		server.Handle("status", func(ctx context.Context, raw []byte) (any, error) {
			return nil, nil
		})
	})

	for _, request := range []any{
		map[string]string{"action": "nonexistent"},
		map[string]string{"foo": "bar"},
		"not a map",
	} {
		response := sendRequest(t, socketPath, request)
		if response.OK {
			t.Errorf("%v: expected ok=false", request)
		}
		if response.Kind != kindInvalidArgument {
			t.Errorf("%v: kind = %q, want %q", request, response.Kind, kindInvalidArgument)
		}
	}
}

func TestSocketServerInvalidCBOR(t *testing.T) {
	socketPath, _ := startServer(t, nil)

	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		t.Fatalf("connecting: %v", err)
	}
	defer conn.Close()

	conn.Write([]byte{0xff, 0xfe, 0xfd, 0xfc, 0xfb})
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	var response Response
	if err := codec.NewDecoder(conn).Decode(&response); err != nil {
		t.Fatalf("decoding error response: %v", err)
	}
	if response.OK {
		t.Errorf("expected ok=false for invalid CBOR, got true")
	}
}

func TestSocketServerHandlerErrorKinds(t *testing.T) {
	socketPath, _ := startServer(t, func(server *SocketServer) {
		server.Handle("plain", func(ctx context.Context, raw []byte) (any, error) {
			return nil, fmt.Errorf("something broke")
		})
		server.Handle("busy", func(ctx context.Context, raw []byte) (any, error) {
			return nil, fmt.Errorf("lock: %w", &kindedError{kind: "busy", message: "vault is unlocking"})
		})
	})

	response := sendRequest(t, socketPath, map[string]string{"action": "plain"})
	if response.OK || response.Error != "something broke" || response.Kind != kindInternal {
		t.Errorf("plain: got %+v", response)
	}

	response = sendRequest(t, socketPath, map[string]string{"action": "busy"})
	if response.OK || response.Kind != "busy" {
		t.Errorf("busy: got %+v", response)
	}
	if response.Error != "lock: vault is unlocking" {
		t.Errorf("busy: error = %q", response.Error)
	}
}

func TestSocketServerNilResult(t *testing.T) {
	socketPath, _ := startServer(t, func(server *SocketServer) {
		server.Handle("noop", func(ctx context.Context, raw []byte) (any, error) {
			return nil, nil
		})
	})

	response := sendRequest(t, socketPath, map[string]string{"action": "noop"})
	if !response.OK {
		t.Errorf("expected ok=true, got false")
	}
	if len(response.Data) != 0 {
		t.Errorf("expected no data in response, got %d bytes", len(response.Data))
	}
}

func TestSocketServerConcurrentRequests(t *testing.T) {
	socketPath, _ := startServer(t, func(server *SocketServer) {
		server.Handle("echo", func(ctx context.Context, raw []byte) (any, error) {
			var request struct {
				Value int `cbor:"value"`
			}
			if err := codec.Unmarshal(raw, &request); err != nil {
				return nil, err
			}
			return map[string]any{"value": request.Value}, nil
		})
	})

	const concurrency = 20
	var clientWg sync.WaitGroup
	for i := range concurrency {
		clientWg.Add(1)
		go func() {
			defer clientWg.Done()
			response := sendRequest(t, socketPath, map[string]any{
				"action": "echo",
				"value":  i,
			})
			if !response.OK {
				t.Errorf("request %d: expected ok=true", i)
				return
			}
			var data map[string]any
			decodeData(t, response, &data)
			if data["value"] != uint64(i) {
				t.Errorf("request %d: expected value=%d, got %v", i, i, data["value"])
			}
		}()
	}
	clientWg.Wait()
}

func TestSocketServerGracefulShutdown(t *testing.T) {
	handlerStarted := make(chan struct{})
	handlerRelease := make(chan struct{})
	socketPath, stop := startServer(t, func(server *SocketServer) {
		server.Handle("slow", func(ctx context.Context, raw []byte) (any, error) {
			close(handlerStarted)
			<-handlerRelease
			return map[string]any{"completed": true}, nil
		})
	})

	responseChan := make(chan Response, 1)
	go func() {
		responseChan <- sendRequest(t, socketPath, map[string]string{"action": "slow"})
	}()

	testutil.RequireClosed(t, handlerStarted, 5*time.Second, "slow handler started")
	close(handlerRelease)
	if err := stop(); err != nil {
		t.Errorf("Serve returned error: %v", err)
	}

	response := testutil.RequireReceive(t, responseChan, 5*time.Second, "in-flight response")
	if !response.OK {
		t.Errorf("expected ok=true for in-flight request, got false")
	}
	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Error("socket file not cleaned up after Serve returned")
	}
}

func TestSocketServerDuplicateHandlerPanics(t *testing.T) {
	server := NewSocketServer("/tmp/unused.sock", testLogger())
	server.Handle("foo", func(ctx context.Context, raw []byte) (any, error) {
		return nil, nil
	})

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic on duplicate handler registration")
		}
	}()
	server.Handle("foo", func(ctx context.Context, raw []byte) (any, error) {
		return nil, nil
	})
}

func TestServiceClientCall(t *testing.T) {
	socketPath, _ := startServer(t, func(server *SocketServer) {
		server.Handle("show", func(ctx context.Context, raw []byte) (any, error) {
			var request struct {
				ID string `cbor:"id"`
			}
			if err := codec.Unmarshal(raw, &request); err != nil {
				return nil, err
			}
			if request.ID != "v1" {
				return nil, &kindedError{kind: "not_found", message: "no vault " + request.ID}
			}
			return map[string]string{"id": request.ID, "name": "work"}, nil
		})
	})
	client := NewServiceClient(socketPath)

	var result struct {
		ID   string `cbor:"id"`
		Name string `cbor:"name"`
	}
	if err := client.Call(context.Background(), "show", map[string]any{"id": "v1"}, &result); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result.Name != "work" {
		t.Errorf("name = %q", result.Name)
	}

	err := client.Call(context.Background(), "show", map[string]any{"id": "nope"}, nil)
	var serviceError *ServiceError
	if !errors.As(err, &serviceError) {
		t.Fatalf("expected *ServiceError, got %T: %v", err, err)
	}
	if serviceError.ErrorKind() != "not_found" || serviceError.Message != "no vault nope" {
		t.Errorf("got %+v", serviceError)
	}
}

func TestServiceClientNoServer(t *testing.T) {
	client := NewServiceClient(filepath.Join(testutil.SocketDir(t), "absent.sock"))
	err := client.Call(context.Background(), "status", nil, nil)
	if err == nil {
		t.Fatal("expected connection error")
	}
	var serviceError *ServiceError
	if errors.As(err, &serviceError) {
		t.Error("connection failures must not be ServiceErrors")
	}
}

func TestParseLevel(t *testing.T) {
	for name, want := range map[string]slog.Level{
		"debug": slog.LevelDebug, "": slog.LevelInfo, "INFO": slog.LevelInfo,
		"warning": slog.LevelWarn, "error": slog.LevelError,
	} {
		got, err := ParseLevel(name)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", name, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("ParseLevel should reject unknown levels")
	}
}
