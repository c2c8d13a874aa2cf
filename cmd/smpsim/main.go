// Copyright (c) The smp-example authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// The smpsim command runs the kernel on simulated Raspberry Pi 3 cores, the
// console mini UART is bridged to the local terminal and an optional SSH
// monitor shell exposes the machine state.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/mattn/go-tty"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/usbarmory/smp-example/cmd/smpsim/cmd"
	"github.com/usbarmory/smp-example/cpu"
	"github.com/usbarmory/smp-example/mem"
	"github.com/usbarmory/smp-example/sim"
	"github.com/usbarmory/smp-example/util"
)

// Ctrl-] detaches the local console
const escapeChr = 0x1d

var errDetach = errors.New("console detached")

type config struct {
	cores   int
	arena   int
	tty     string
	ssh     string
	timeout time.Duration
}

var conf config

func init() {
	log.SetFlags(log.Ltime)
	log.SetOutput(os.Stderr)

	flag.IntVar(&conf.cores, "cores", cpu.Cores, "number of simulated cores")
	flag.IntVar(&conf.arena, "arena", mem.KernelArenaSize, "kernel arena size in bytes")
	flag.StringVar(&conf.tty, "tty", "", "console device (default: controlling terminal)")
	flag.StringVar(&conf.ssh, "ssh", "", "SSH monitor listening address (e.g. 127.0.0.1:2222)")
	flag.DurationVar(&conf.timeout, "timeout", 0, "stop the simulation after this duration")
}

func banner() string {
	return fmt.Sprintf("%s/%s (%s) • smp-example simulator (%d cores)", runtime.GOOS, runtime.GOARCH, runtime.Version(), conf.cores)
}

// openConsole returns the local console input and output, in raw mode when
// connected to a terminal.
func openConsole() (in io.Reader, out io.Writer, restore func(), err error) {
	if len(conf.tty) == 0 && !term.IsTerminal(int(os.Stdin.Fd())) {
		return os.Stdin, os.Stdout, func() {}, nil
	}

	var t *tty.TTY

	if len(conf.tty) > 0 {
		t, err = tty.OpenDevice(conf.tty)
	} else {
		t, err = tty.Open()
	}

	if err != nil {
		return
	}

	reset := t.MustRaw()

	restore = func() {
		_ = reset()
		_ = t.Close()
	}

	return t.Input(), t.Output(), restore, nil
}

// bridge feeds console input to the simulated mini UART until ctx is done,
// the input is closed or the escape character is received.
func bridge(ctx context.Context, in io.Reader, aux *sim.AUX) error {
	buf := make([]byte, 64)

	for ctx.Err() == nil {
		n, err := in.Read(buf)

		for i := 0; i < n; i++ {
			if buf[i] == escapeChr {
				return errDetach
			}
		}

		aux.Feed(buf[:n])

		if err != nil {
			return err
		}
	}

	return ctx.Err()
}

func main() {
	flag.Parse()

	if conf.cores < 1 || conf.cores > cpu.Cores {
		log.Fatalf("sim invalid number of cores %d (1-%d)", conf.cores, cpu.Cores)
	}

	in, out, restore, err := openConsole()

	if err != nil {
		log.Fatalf("sim could not open console, %v", err)
	}

	defer restore()

	mirror := util.NewBufferedLog()

	m := sim.NewMachine(sim.Config{
		Cores:     conf.cores,
		ArenaSize: conf.arena,
		Output:    io.MultiWriter(out, mirror),
	})

	cmd.Machine = m

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if conf.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, conf.timeout)
		defer cancel()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g := new(errgroup.Group)

	if len(conf.ssh) > 0 {
		listener, err := net.Listen("tcp", conf.ssh)

		if err != nil {
			log.Fatalf("sim could not start SSH monitor, %v", err)
		}

		monitor, err := cmd.NewMonitor(banner(), mirror)

		if err != nil {
			log.Fatalf("sim could not start SSH monitor, %v", err)
		}

		log.Printf("sim monitor listening on %s", listener.Addr())

		g.Go(func() error {
			return monitor.Serve(ctx, listener)
		})
	}

	log.Printf("%s", banner())
	log.Printf("sim console attached, Ctrl-] to exit")

	g.Go(func() error {
		defer mirror.Flush()
		return m.Run(ctx)
	})

	go func() {
		// input reads cannot be interrupted, the bridge is abandoned on exit
		switch err := bridge(ctx, in, m.AUX()); {
		case err == errDetach:
			cancel()
		case err == io.EOF:
			log.Printf("sim console input closed")
		case ctx.Err() == nil:
			log.Printf("sim console error, %v", err)
			cancel()
		}
	}()

	if err = g.Wait(); err != nil {
		log.Printf("sim error, %v", err)
	}

	log.Printf("sim says goodbye")
}
