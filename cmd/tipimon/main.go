// Command tipimon is an interactive terminal monitor for a TIPI telemetry
// stream. It puts the local terminal into raw mode, reads wire bytes from
// a device file (or stdin), decodes frames and records, and prints each
// field as it arrives.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/ruben1729/tipi-go/tipi"
)

var (
	device  = flag.String("device", "", "path to the device file to read (default: stdin)")
	verbose = flag.Bool("v", false, "log frame and record errors to stderr")
	raw     = flag.Bool("raw", true, "put the controlling terminal into raw mode while monitoring")
	logfile = flag.String("logfile", "", "append protocol trace logging to this file")
)

const versionString = "tipimon version 0.1.0"

func main() {
	flag.Parse()

	source, closeSource, err := openSource(*device)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tipimon: %v\n", err)
		os.Exit(1)
	}
	defer closeSource()

	restore := func() {}
	if *raw && term.IsTerminal(int(os.Stdin.Fd())) {
		oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
		if err != nil {
			fmt.Fprintf(os.Stderr, "tipimon: failed to enter raw mode: %v\n", err)
		} else {
			restore = func() { term.Restore(int(os.Stdin.Fd()), oldState) }
		}
	}
	defer restore()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		restore()
		os.Exit(0)
	}()

	printer := &fieldPrinter{verbose: *verbose, start: time.Now()}

	callbacks := tipi.Callbacks{
		OnField: printer.onField,
		OnRecordError: func(err error) {
			if *verbose {
				fmt.Fprintf(os.Stderr, "\r\nrecord error: %v\r\n", err)
			}
		},
		OnFrameError: func(err error) {
			if *verbose {
				fmt.Fprintf(os.Stderr, "\r\nframe error: %v\r\n", err)
			}
		},
	}

	recvOpts := []tipi.ReceiverOption{tipi.WithCallbacks(callbacks)}
	if *logfile != "" {
		l, err := tipi.NewFileLogger(*logfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "tipimon: %v\n", err)
			os.Exit(1)
		}
		defer l.Close()
		recvOpts = append(recvOpts, tipi.WithReceiverLogger(l))
	}

	receiver := tipi.NewReceiver(recvOpts...)
	decoder := tipi.NewFrameDecoder(receiver)

	buf := make([]byte, 1)
	for {
		n, err := source.Read(buf)
		if n > 0 {
			if feedErr := decoder.Feed(buf[0]); feedErr != nil && *verbose {
				fmt.Fprintf(os.Stderr, "\r\ndecode error: %v\r\n", feedErr)
			}
		}
		if err != nil {
			restore()
			if err != io.EOF {
				fmt.Fprintf(os.Stderr, "tipimon: read error: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}
}

// fieldPrinter renders each decoded field as a single terminal line,
// carriage-return terminated so it behaves under raw mode.
type fieldPrinter struct {
	verbose bool
	start   time.Time
	count   int
}

func (p *fieldPrinter) onField(tag uint32, payload []byte) {
	p.count++
	elapsed := time.Since(p.start)
	fmt.Printf("\r\n[%8.3fs] #%-4d tag=%-4d len=%-3d % x\r\n", elapsed.Seconds(), p.count, tag, len(payload), payload)
}

func openSource(path string) (*os.File, func(), error) {
	if path == "" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, func() { f.Close() }, nil
}
