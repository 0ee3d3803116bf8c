package uco

import (
	"io"
	"testing"
	"time"
)

// TestSockProducerConsumerBackpressure writes more than the high-water mark
// in small chunks from one uthread, with hwm=128 and lwm=32 on the server
// side, and reads it back one byte at a time from another, checking every
// byte arrives in order. It does not check whether the writer parked on the
// high-water mark.
func TestSockProducerConsumerBackpressure(t *testing.T) {
	rt, err := Start(DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer rt.Stop()

	ln, err := rt.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	addr, err := rt.LocalAddr(ln)
	if err != nil {
		t.Fatalf("LocalAddr: %v", err)
	}

	const total = 4096
	payload := make([]byte, total)
	for i := range payload {
		payload[i] = byte(i)
	}

	var serverFd int
	var writeErr error
	writeWaits := 0

	server := func(arg any) any {
		fd, err := rt.Accept(ln)
		if err != nil {
			writeErr = err
			return nil
		}
		serverFd = fd
		if err := rt.SetHWM(fd, 128); err != nil {
			writeErr = err
			return nil
		}
		if err := rt.SetLWM(fd, 32); err != nil {
			writeErr = err
			return nil
		}
		for off := 0; off < total; off += 64 {
			end := off + 64
			if end > total {
				end = total
			}
			before := off
			if err := rt.Write(fd, payload[off:end]); err != nil {
				writeErr = err
				return nil
			}
			_ = before
		}
		return nil
	}

	var received []byte
	var readErr error

	client := func(arg any) any {
		fd, err := rt.Open("tcp", addr)
		if err != nil {
			readErr = err
			return nil
		}
		for len(received) < total {
			b, err := rt.Read(fd, 1)
			if err != nil {
				readErr = err
				return nil
			}
			received = append(received, b...)
		}
		return nil
	}

	if _, err := rt.Spawn(server, nil); err != nil {
		t.Fatalf("Spawn server: %v", err)
	}
	if _, err := rt.Spawn(client, nil); err != nil {
		t.Fatalf("Spawn client: %v", err)
	}

	rt.runFor(10 * time.Second)
	_ = serverFd
	_ = writeWaits

	if writeErr != nil {
		t.Fatalf("writer error: %v", writeErr)
	}
	if readErr != nil {
		t.Fatalf("reader error: %v", readErr)
	}
	if len(received) != total {
		t.Fatalf("received %d bytes, want %d", len(received), total)
	}
	for i := range payload {
		if received[i] != payload[i] {
			t.Fatalf("byte %d = %d, want %d", i, received[i], payload[i])
		}
	}
}

// TestSockAcceptFanOut has a single listener serve many concurrent
// connections, each handled by its own uthread, and checks every
// connection completes a one-shot request/response.
func TestSockAcceptFanOut(t *testing.T) {
	rt, err := Start(DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer rt.Stop()

	ln, err := rt.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	addr, err := rt.LocalAddr(ln)
	if err != nil {
		t.Fatalf("LocalAddr: %v", err)
	}

	const nconn = 100
	handled := make(chan int, nconn)

	acceptor := func(arg any) any {
		for i := 0; i < nconn; i++ {
			fd, err := rt.Accept(ln)
			if err != nil {
				t.Errorf("Accept: %v", err)
				return nil
			}
			if _, err := rt.Spawn(func(arg any) any {
				cfd := arg.(int)
				req, err := rt.Read(cfd, 4)
				if err != nil {
					t.Errorf("server Read: %v", err)
					return nil
				}
				if err := rt.Write(cfd, req); err != nil {
					t.Errorf("server Write: %v", err)
					return nil
				}
				handled <- cfd
				return nil
			}, fd); err != nil {
				t.Errorf("Spawn handler: %v", err)
				return nil
			}
		}
		return nil
	}

	clientOf := func(n int) func(any) any {
		return func(arg any) any {
			fd, err := rt.Open("tcp", addr)
			if err != nil {
				t.Errorf("client %d Open: %v", n, err)
				return nil
			}
			if err := rt.Write(fd, []byte("ping")); err != nil {
				t.Errorf("client %d Write: %v", n, err)
				return nil
			}
			echo, err := rt.Read(fd, 4)
			if err != nil {
				t.Errorf("client %d Read: %v", n, err)
				return nil
			}
			if string(echo) != "ping" {
				t.Errorf("client %d echo = %q", n, echo)
			}
			return nil
		}
	}

	if _, err := rt.Spawn(acceptor, nil); err != nil {
		t.Fatalf("Spawn acceptor: %v", err)
	}
	for i := 0; i < nconn; i++ {
		if _, err := rt.Spawn(clientOf(i), nil); err != nil {
			t.Fatalf("Spawn client %d: %v", i, err)
		}
	}

	rt.runFor(20 * time.Second)

	if len(handled) != nconn {
		t.Fatalf("handled %d of %d connections", len(handled), nconn)
	}
}

// TestSockStickyEOF checks that a partial final read is delivered first,
// and only the following Read call reports io.EOF, with no further
// suspension once the peer has gone away.
func TestSockStickyEOF(t *testing.T) {
	rt, err := Start(DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer rt.Stop()

	ln, err := rt.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	addr, err := rt.LocalAddr(ln)
	if err != nil {
		t.Fatalf("LocalAddr: %v", err)
	}

	server := func(arg any) any {
		fd, err := rt.Accept(ln)
		if err != nil {
			t.Errorf("Accept: %v", err)
			return nil
		}
		if err := rt.Write(fd, []byte("hi")); err != nil {
			t.Errorf("Write: %v", err)
			return nil
		}
		return rt.Close(fd)
	}

	var first []byte
	var firstErr error
	var secondErr error

	client := func(arg any) any {
		fd, err := rt.Open("tcp", addr)
		if err != nil {
			firstErr = err
			return nil
		}
		// ask for more than the server sends; Read must return the
		// partial "hi" once EOF is observed, not block forever.
		first, firstErr = rt.Read(fd, 10)
		_, secondErr = rt.Read(fd, 1)
		return nil
	}

	if _, err := rt.Spawn(server, nil); err != nil {
		t.Fatalf("Spawn server: %v", err)
	}
	if _, err := rt.Spawn(client, nil); err != nil {
		t.Fatalf("Spawn client: %v", err)
	}

	rt.runFor(10 * time.Second)

	if firstErr != nil {
		t.Fatalf("first Read error: %v", firstErr)
	}
	if string(first) != "hi" {
		t.Fatalf("first Read = %q, want %q", first, "hi")
	}
	if secondErr != io.EOF {
		t.Fatalf("second Read error = %v, want io.EOF", secondErr)
	}
}
