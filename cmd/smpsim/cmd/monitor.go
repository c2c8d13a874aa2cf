// Copyright (c) The smp-example authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package cmd

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log"
	"net"

	"golang.org/x/crypto/ssh"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/usbarmory/smp-example/util"
)

// Monitor represents the SSH monitor shell of the simulated machine, each
// session runs commands on behalf of the monitor core and mirrors the
// machine console.
type Monitor struct {
	// Banner is the session welcome banner
	Banner string
	// Console is the machine console output
	Console *util.BufferedLog

	srv *ssh.ServerConfig
}

// NewMonitor returns a monitor with a freshly generated host key.
func NewMonitor(banner string, console *util.BufferedLog) (m *Monitor, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)

	if err != nil {
		return nil, fmt.Errorf("private key generation error, %v", err)
	}

	signer, err := ssh.NewSignerFromKey(key)

	if err != nil {
		return nil, fmt.Errorf("key conversion error, %v", err)
	}

	m = &Monitor{
		Banner:  banner,
		Console: console,
		srv: &ssh.ServerConfig{
			NoClientAuth: true,
		},
	}

	m.srv.AddHostKey(signer)

	log.Printf("sim monitor host key %s", ssh.FingerprintSHA256(signer.PublicKey()))

	return
}

// shell runs the command loop of a session until the client disconnects or
// exits.
func (m *Monitor) shell(t *term.Terminal) {
	if Machine == nil {
		fmt.Fprintln(t, "no machine")
		return
	}

	t.SetPrompt(fmt.Sprintf("%score %d> %s", t.Escape.Red, Machine.Monitor().ID(), t.Escape.Reset))

	fmt.Fprintf(t, "%s\n", m.Banner)
	fmt.Fprintf(t, "%s\n", Help(t))

	if m.Console != nil {
		detach := m.Console.Attach(&util.TermLog{Term: t, Color: t.Escape.Green})
		defer detach()
	}

	for {
		line, err := t.ReadLine()

		if err != nil {
			return
		}

		switch err = Handle(t, line); {
		case err == io.EOF:
			return
		case err != nil:
			fmt.Fprintf(t, "error: %v\n", err)
		}
	}
}

func (m *Monitor) session(ch ssh.NewChannel) {
	if t := ch.ChannelType(); t != "session" {
		_ = ch.Reject(ssh.UnknownChannelType, fmt.Sprintf("unknown channel type: %s", t))
		return
	}

	conn, reqs, err := ch.Accept()

	if err != nil {
		log.Printf("sim monitor channel error, %v", err)
		return
	}

	go func() {
		for req := range reqs {
			// interactive shell only, no remote commands
			ok := req.Type == "pty-req" || (req.Type == "shell" && len(req.Payload) == 0)

			if req.WantReply {
				_ = req.Reply(ok, nil)
			}
		}
	}()

	defer conn.Close()

	m.shell(term.NewTerminal(conn, ""))
}

func (m *Monitor) handle(conn net.Conn) {
	sc, chans, reqs, err := ssh.NewServerConn(conn, m.srv)

	if err != nil {
		log.Printf("sim monitor handshake error, %v", err)
		return
	}

	defer sc.Close()

	log.Printf("sim monitor session from %s (%s)", sc.RemoteAddr(), sc.ClientVersion())

	go ssh.DiscardRequests(reqs)

	for ch := range chans {
		go m.session(ch)
	}
}

// Serve accepts monitor sessions on listener until ctx is done, the listener
// is closed on return.
func (m *Monitor) Serve(ctx context.Context, listener net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		return listener.Close()
	})

	g.Go(func() error {
		for {
			conn, err := listener.Accept()

			if err != nil {
				return err
			}

			go m.handle(conn)
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}

	return nil
}
