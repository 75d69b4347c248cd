package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const (
	serverReadTimeout = 60 * time.Second
	// uploads of audio and images need a longer write window than reads
	serverWriteTimeout = 2 * time.Minute
	shutdownTimeout    = 30 * time.Second

	// inheritedListenerEnv marks a child started by a SIGUSR2 restart; the
	// listening socket is passed as fd 3.
	inheritedListenerEnv = "SPOTMAP_INHERITED_LISTENER"
	inheritedListenerFD  = 3
)

// gracefulServer serves HTTP until SIGINT/SIGTERM, draining in-flight
// requests, and hands its socket to a new process on SIGUSR2.
type gracefulServer struct {
	srv      *http.Server
	listener net.Listener
	signals  chan os.Signal
	done     chan struct{}
}

// GraceServer runs handler on addr until the process is told to stop.
// onShutdown hooks run when shutdown begins, e.g. to cancel background jobs.
func GraceServer(addr string, handler http.Handler, onShutdown ...func()) error {
	ln, err := listen(addr)
	if err != nil {
		return err
	}
	g := &gracefulServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       serverReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      serverWriteTimeout,
		},
		listener: ln,
		signals:  make(chan os.Signal, 1),
		done:     make(chan struct{}),
	}
	for _, f := range onShutdown {
		g.srv.RegisterOnShutdown(f)
	}

	signal.Notify(g.signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR2)
	defer signal.Stop(g.signals)
	go g.watchSignals()

	err = g.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		<-g.done
		return nil
	}
	return err
}

func listen(addr string) (net.Listener, error) {
	if os.Getenv(inheritedListenerEnv) != "" {
		ln, err := net.FileListener(os.NewFile(inheritedListenerFD, "listener"))
		if err != nil {
			return nil, fmt.Errorf("inherit listener: %w", err)
		}
		Logger.Info("serving on inherited listener", zap.String("addr", ln.Addr().String()))
		return ln, nil
	}
	if addr == "" {
		addr = ":http"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return ln, nil
}

func (g *gracefulServer) watchSignals() {
	for sig := range g.signals {
		if sig == syscall.SIGUSR2 {
			pid, err := g.forkChild()
			if err != nil {
				Logger.Error("restart failed, still serving", zap.Error(err))
				continue
			}
			Logger.Info("restarted into new process", zap.Int("pid", pid))
		} else {
			Logger.Info("shutting down", zap.String("signal", sig.String()))
		}
		g.shutdown()
		return
	}
}

func (g *gracefulServer) shutdown() {
	defer close(g.done)
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := g.srv.Shutdown(ctx); err != nil {
		Logger.Error("http shutdown incomplete", zap.Error(err))
		return
	}
	Logger.Info("http server stopped")
}

// forkChild starts a copy of this binary that inherits the listening socket.
func (g *gracefulServer) forkChild() (int, error) {
	tcp, ok := g.listener.(*net.TCPListener)
	if !ok {
		return 0, fmt.Errorf("listener %T cannot be inherited", g.listener)
	}
	f, err := tcp.File()
	if err != nil {
		return 0, fmt.Errorf("listener file: %w", err)
	}
	defer f.Close()

	env := make([]string, 0, len(os.Environ())+1)
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, inheritedListenerEnv+"=") {
			continue
		}
		env = append(env, kv)
	}
	env = append(env, inheritedListenerEnv+"=1")

	return syscall.ForkExec(os.Args[0], os.Args, &syscall.ProcAttr{
		Env:   env,
		Files: []uintptr{os.Stdin.Fd(), os.Stdout.Fd(), os.Stderr.Fd(), f.Fd()},
	})
}
