package main

import (
	"bufio"
	"flag"
	"io"
	"log"
	"os"

	"github.com/yanun0323/logs"

	"tob/internal/chaos"
	"tob/internal/feed"
)

func main() {
	input := flag.String("in", "testdata/capture.bin", "Input capture file")
	output := flag.String("out", "testdata/capture_chaos.bin", "Output capture file")
	seed := flag.Int64("seed", 0, "RNG seed (0=now)")
	dropRate := flag.Float64("drop-rate", 0, "Drop probability [0-1]")
	dupRate := flag.Float64("dup-rate", 0, "Duplicate probability [0-1]")
	corruptRate := flag.Float64("corrupt-rate", 0, "Truncate probability [0-1]")
	reorderWindow := flag.Int("reorder-window", 1, "Reorder window (>=1)")
	flag.Parse()

	engine, err := chaos.NewEngine(chaos.Config{
		Seed:          *seed,
		DropRate:      *dropRate,
		DuplicateRate: *dupRate,
		ReorderWindow: *reorderWindow,
		CorruptRate:   *corruptRate,
	})
	if err != nil {
		log.Fatalf("chaos config invalid: %v", err)
	}

	in, err := os.Open(*input)
	if err != nil {
		log.Fatalf("input open failed: %v", err)
	}
	defer in.Close()

	out, err := os.Create(*output)
	if err != nil {
		log.Fatalf("output create failed: %v", err)
	}
	defer out.Close()

	if err := transform(engine, in, out); err != nil {
		log.Fatalf("chaos failed: %v", err)
	}
	stats := engine.Stats()
	logs.Infof("chaos: in=%d out=%d dropped=%d duplicated=%d corrupted=%d",
		stats.In, stats.Out, stats.Dropped, stats.Duplicated, stats.Corrupted)
}

func transform(engine *chaos.Engine, src io.Reader, dst io.Writer) error {
	reader := feed.NewReader(src)
	w := bufio.NewWriterSize(dst, 64<<10)
	var buf []byte
	emit := func(frames [][]byte) error {
		for _, f := range frames {
			var err error
			buf, err = feed.AppendFrame(buf[:0], f)
			if err != nil {
				return err
			}
			if _, err := w.Write(buf); err != nil {
				return err
			}
		}
		return nil
	}

	for {
		frame, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if err := emit(engine.Process(frame)); err != nil {
			return err
		}
	}
	if err := emit(engine.Flush()); err != nil {
		return err
	}
	return w.Flush()
}
