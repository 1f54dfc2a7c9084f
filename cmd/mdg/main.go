package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/yanun0323/logs"

	"tob/internal/mdg"
	"tob/internal/symbol"
)

func main() {
	symbolsPath := flag.String("symbols", "testdata/symbols.csv", "Symbol CSV (STOCK,INDEX[,LOCATE])")
	outPath := flag.String("out", "testdata/capture.bin", "Capture file to write")
	count := flag.Int("count", 10000, "Number of messages to generate")
	basePrice := flag.Uint("base-price", 1500000, "Base price (1/10000 dollars)")
	baseSize := flag.Uint("base-size", 100, "Order size")
	spread := flag.Uint("spread", 100, "Half spread around the mid")
	tick := flag.Duration("tick", time.Microsecond, "Timestamp step between messages")
	flag.Parse()

	if *count <= 0 {
		log.Fatalf("count must be > 0")
	}

	entries, err := symbol.LoadFile(*symbolsPath)
	if err != nil {
		log.Fatalf("symbols load failed: %v", err)
	}
	generator, err := mdg.NewGenerator(entries, uint32(*basePrice), uint32(*baseSize), uint32(*spread))
	if err != nil {
		log.Fatalf("generator init failed: %v", err)
	}

	f, err := os.Create(*outPath)
	if err != nil {
		log.Fatalf("capture create failed: %v", err)
	}
	defer f.Close()

	w := mdg.NewCaptureWriter(f)
	now := time.Now().UTC()
	for i := 0; i < *count; i++ {
		if err := w.Write(generator.Next(now)); err != nil {
			log.Fatalf("capture write failed: %v", err)
		}
		now = now.Add(*tick)
	}
	if err := w.Flush(); err != nil {
		log.Fatalf("capture flush failed: %v", err)
	}
	logs.Infof("wrote %d messages for %d symbols to %s", w.Count(), len(entries), *outPath)
}
