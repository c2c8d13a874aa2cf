// Copyright (c) The smp-example authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package cmd

import (
	"context"
	"net"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/usbarmory/smp-example/sim"
	"github.com/usbarmory/smp-example/util"
)

func TestMonitor(t *testing.T) {
	console := &syncBuffer{}
	mirror := util.NewBufferedLog(console)
	Machine = sim.NewMachine(sim.Config{Cores: 2, ArenaSize: 256, Output: mirror})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})

	go func() {
		_ = Machine.Run(ctx)
		close(done)
	}()

	defer func() {
		cancel()
		<-done
	}()

	waitFor(t, console, "Hello, from cpu 1\n")

	listener, err := net.Listen("tcp", "127.0.0.1:0")

	if err != nil {
		t.Fatal(err)
	}

	monitor, err := NewMonitor("smpsim", mirror)

	if err != nil {
		t.Fatal(err)
	}

	served := make(chan error, 1)

	go func() {
		served <- monitor.Serve(ctx, listener)
	}()

	client, err := ssh.Dial("tcp", listener.Addr().String(), &ssh.ClientConfig{
		User:            "smp",
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         5 * time.Second,
	})

	if err != nil {
		t.Fatal(err)
	}

	defer client.Close()

	session, err := client.NewSession()

	if err != nil {
		t.Fatal(err)
	}

	defer session.Close()

	stdin, err := session.StdinPipe()

	if err != nil {
		t.Fatal(err)
	}

	out := &syncBuffer{}
	session.Stdout = out

	if err = session.Shell(); err != nil {
		t.Fatal(err)
	}

	waitFor(t, out, "smpsim")

	if _, err = stdin.Write([]byte("uart\r")); err != nil {
		t.Fatal(err)
	}

	waitFor(t, out, "configured:true")

	// console output reaches the session once a line is complete
	Machine.AUX().Feed([]byte("mirrored\r"))
	waitFor(t, out, "mirrored")

	if _, err = stdin.Write([]byte("exit\r")); err != nil {
		t.Fatal(err)
	}

	waitFor(t, out, "logout")

	cancel()

	select {
	case err = <-served:
		if err != nil {
			t.Fatalf("unexpected monitor error, %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not stop")
	}

	if _, err = listener.Accept(); err == nil {
		t.Fatal("expected closed listener")
	}
}
