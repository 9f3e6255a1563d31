// Command tipitunnel bridges a TIPI telemetry stream produced by a remote
// command over SSH into a local decoder, so a device wired to a remote
// host's serial port can be monitored without a direct local connection.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/ruben1729/tipi-go/tipi"
)

var (
	host       = flag.String("host", "", "SSH host (hostname:port)")
	user       = flag.String("user", "", "SSH username")
	password   = flag.String("password", "", "SSH password (or use TIPI_SSH_PASSWORD env var)")
	remoteCmd  = flag.String("cmd", "cat /dev/ttyUSB0", "remote command whose stdout is the TIPI wire stream")
	verbose    = flag.Bool("v", false, "log frame and record errors to stderr")
	logFile    = flag.String("log", "", "protocol trace log file (for debugging)")
	dialTimeout = 10 * time.Second
)

func main() {
	flag.Parse()

	if *host == "" || *user == "" {
		fmt.Fprintln(os.Stderr, "tipitunnel: -host and -user are required")
		os.Exit(1)
	}

	pass := *password
	if pass == "" {
		pass = os.Getenv("TIPI_SSH_PASSWORD")
	}
	if pass == "" {
		fmt.Fprintln(os.Stderr, "tipitunnel: -password or TIPI_SSH_PASSWORD is required")
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	config := &ssh.ClientConfig{
		User: *user,
		Auth: []ssh.AuthMethod{
			ssh.Password(pass),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         dialTimeout,
	}

	fmt.Fprintf(os.Stderr, "tipitunnel: connecting to %s...\n", *host)
	client, err := ssh.Dial("tcp", *host, config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tipitunnel: connect failed: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		fmt.Fprintf(os.Stderr, "tipitunnel: session failed: %v\n", err)
		os.Exit(1)
	}
	defer session.Close()

	stdout, err := session.StdoutPipe()
	if err != nil {
		fmt.Fprintf(os.Stderr, "tipitunnel: stdout pipe: %v\n", err)
		os.Exit(1)
	}
	stderr, err := session.StderrPipe()
	if err != nil {
		fmt.Fprintf(os.Stderr, "tipitunnel: stderr pipe: %v\n", err)
		os.Exit(1)
	}

	recvOpts := []tipi.ReceiverOption{}
	var logger *tipi.FileLogger
	if *logFile != "" {
		logger, err = tipi.NewFileLogger(*logFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "tipitunnel: %v\n", err)
			os.Exit(1)
		}
		defer logger.Close()
		recvOpts = append(recvOpts, tipi.WithReceiverLogger(logger))
		logger.Info("tipitunnel connecting to %s@%s running %q", *user, *host, *remoteCmd)
	}

	count := 0
	callbacks := tipi.Callbacks{
		OnField: func(tag uint32, payload []byte) {
			count++
			fmt.Printf("#%-4d tag=%-4d len=%-3d % x\n", count, tag, len(payload), payload)
		},
		OnRecordError: func(err error) {
			if *verbose {
				fmt.Fprintf(os.Stderr, "record error: %v\n", err)
			}
		},
		OnFrameError: func(err error) {
			if *verbose {
				fmt.Fprintf(os.Stderr, "frame error: %v\n", err)
			}
		},
	}
	recvOpts = append(recvOpts, tipi.WithCallbacks(callbacks))

	receiver := tipi.NewReceiver(recvOpts...)
	decoder := tipi.NewFrameDecoder(receiver)

	if err := session.Start(*remoteCmd); err != nil {
		fmt.Fprintf(os.Stderr, "tipitunnel: failed to start %q: %v\n", *remoteCmd, err)
		os.Exit(1)
	}

	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := stderr.Read(buf)
			if n > 0 {
				os.Stderr.Write(buf[:n])
			}
			if err != nil {
				return
			}
		}
	}()

	done := make(chan error, 1)
	go func() {
		buf := make([]byte, 1)
		for {
			n, err := stdout.Read(buf)
			if n > 0 {
				if feedErr := decoder.Feed(buf[0]); feedErr != nil && *verbose {
					fmt.Fprintf(os.Stderr, "decode error: %v\n", feedErr)
				}
			}
			if err != nil {
				done <- err
				return
			}
		}
	}()

	select {
	case <-sigChan:
		fmt.Fprintln(os.Stderr, "\ntipitunnel: interrupted")
	case err := <-done:
		if err != io.EOF {
			fmt.Fprintf(os.Stderr, "tipitunnel: stream ended: %v\n", err)
		}
	}

	if err := session.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "tipitunnel: remote command exited: %v\n", err)
	}
	fmt.Fprintf(os.Stderr, "tipitunnel: decoded %d fields\n", count)
}
