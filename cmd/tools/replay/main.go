package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yanun0323/logs"

	"tob/pkg/uds"
)

func main() {
	input := flag.String("in", "testdata/capture.bin", "Length-prefixed ITCH capture file")
	socket := flag.String("socket", "/tmp/tobd.sock", "tobd Unix socket path")
	rate := flag.Float64("rate", 0, "Messages per second (0=no pacing)")
	maxBytes := flag.Int("max-bytes", 1400, "Max bytes per datagram")
	maxMessages := flag.Int("max-messages", 20, "Max messages per datagram")
	limit := flag.Int("limit", 0, "Stop after this many messages (0=all)")
	dialAttempts := flag.Int("dial-attempts", 50, "Socket dial attempts before giving up (0=until interrupted)")
	dialInterval := flag.Duration("dial-interval", 100*time.Millisecond, "Delay between dial attempts")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	f, err := os.Open(*input)
	if err != nil {
		log.Fatalf("capture open failed: %v", err)
	}
	defer f.Close()

	client, err := uds.NewClient(*socket)
	if err != nil {
		log.Fatalf("uds client init failed: %v", err)
	}
	conn, err := client.DialRetry(ctx, *dialAttempts, *dialInterval)
	if err != nil {
		log.Fatalf("uds dial failed: %v", err)
	}
	defer conn.Close()

	start := time.Now()
	stats, err := replay(ctx, f, conn, replayConfig{
		MaxBytes:    *maxBytes,
		MaxMessages: *maxMessages,
		Rate:        *rate,
		Limit:       *limit,
	}, sleepCtx)
	if err != nil {
		log.Fatalf("replay failed after %d messages: %v", stats.Messages, err)
	}
	elapsed := time.Since(start)
	logs.Infof("replayed %d messages in %d datagrams (%d bytes) in %s, %.0f msg/s",
		stats.Messages, stats.Datagrams, stats.Bytes, elapsed, float64(stats.Messages)/elapsed.Seconds())
}
