package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/codewandler/connbox-go/adapters/nats"
	"github.com/codewandler/connbox-go/adapters/stream"
	"github.com/codewandler/connbox-go/core/actor"
)

// === Config ===

// NOTE: for BACKEND=nats run: docker run --net=host nats:latest

var (
	logLevel    = slog.LevelInfo
	N           = getEnvInt("N", 50_000)
	workers     = getEnvInt("W", 16)
	mailboxSize = getEnvInt("MAILBOX", actor.DefaultMailboxSize)
	backendType = getEnv("BACKEND", "tcp")
	fatal       = getEnvBool("FATAL", false)
)

func getEnvBool(key string, fallback bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	return v == "1" || strings.ToLower(v) == "true"
}

func getEnv(key, fallback string) string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, fmt.Sprintf("%d", fallback)))
	if err != nil {
		return fallback
	}
	return v
}

func main() {
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))

	fmt.Printf("Backend: %s\n", backendType)
	fmt.Printf("Requests: %d, workers: %d, mailbox: %d\n", N, workers, mailboxSize)

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	var res actor.Resource
	switch backendType {
	case "nats":
		res = createNatsResource(ctx, log)
	default:
		res = createTCPResource(ctx, log)
	}

	policy := actor.FailIsolated
	if fatal {
		policy = actor.FailFatal
	}
	root := actor.New(res, actor.Options{
		Context:       ctx,
		Logger:        log,
		MailboxSize:   mailboxSize,
		FailurePolicy: policy,
	})

	// === START ===

	log.Info("==================================")
	log.Info("Starting ...")

	var (
		next     atomic.Int64
		failures atomic.Int64
		wrong    atomic.Int64
		wg       sync.WaitGroup
	)
	startAt := time.Now()

	for w := 0; w < workers; w++ {
		h := root.Clone()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer h.Close()
			for {
				i := next.Add(1)
				if i > int64(N) {
					return
				}
				payload := []byte(gonanoid.Must(1 + int(i%32)))
				v, err := h.Submit(ctx, payload)
				if err != nil {
					failures.Add(1)
					log.Debug("submit failed", slog.Any("error", err))
					continue
				}
				if v != uint64(len(payload)) {
					wrong.Add(1)
				}
				if i%1_000 == 0 {
					print(".")
				}
			}
		}()
	}
	wg.Wait()
	root.Close()
	<-root.Done()

	// === stats ===
	println("")
	println("==========================================")

	took := time.Since(startAt)
	runtime.GC()
	mu := getMemUsage()

	fmt.Printf("total runtime: %.3f seconds\n", took.Seconds())
	fmt.Printf("     failures: %d\n", failures.Load())
	fmt.Printf("wrong replies: %d\n", wrong.Load())
	fmt.Printf("  requests/s : %d\n", int(float64(N)/took.Seconds()))
	fmt.Printf("       memory: %d MiB (sys %d MiB)\n", mu.Alloc/1024/1024, mu.Sys/1024/1024)
	if err := root.Err(); err != nil {
		fmt.Printf("  owner error: %s\n", err)
	}
	if failures.Load() > 0 || wrong.Load() > 0 {
		os.Exit(1)
	}
}

// === stats helpers ===

type MemUsage struct {
	Alloc uint64 // bytes allocated and not yet freed (heap)
	Sys   uint64 // total bytes obtained from OS
}

func getMemUsage() MemUsage {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemUsage{Alloc: m.Alloc, Sys: m.Sys}
}

// === Backends ===

func createTCPResource(ctx context.Context, log *slog.Logger) actor.Resource {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	checkErr(err)
	go func() {
		if err := stream.ServeLengthEcho(ctx, ln, log); err != nil {
			log.Error("echo server failed", slog.Any("error", err))
		}
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	checkErr(err)
	return stream.New(conn)
}

func createNatsResource(ctx context.Context, log *slog.Logger) actor.Resource {
	connect := nats.ReuseConnection(nats.ConnectDefault())

	s, err := nats.Dial(nats.StreamConfig{
		Connect:       connect,
		Log:           log,
		SubjectPrefix: "connbox.loadtest",
	})
	checkErr(err)

	peer, release, err := connect()
	checkErr(err)
	context.AfterFunc(ctx, release)

	_, err = nats.ServeLengthEcho(ctx, peer, s.Subjects())
	checkErr(err)
	return s
}

func checkErr(err error) {
	if err != nil {
		panic(err)
	}
}
