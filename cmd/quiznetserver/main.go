// Command quiznetserver is the quiznet server process: it wires the
// account store, question bank, session registry, connection manager,
// discovery responder and admin HTTP surface together and runs them
// until a shutdown signal arrives.
//
// Grounded on the teacher's cmd/api/main.go wiring and signal-handling
// shape (load config, construct dependencies, start listeners in
// goroutines, block on signal.Notify, cancel a shared context), extended
// per SPEC_FULL.md §6 so a second SIGINT/SIGTERM forces an immediate
// exit instead of waiting out the graceful shutdown timeout.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hactazia/quiznet/internal/accounts"
	"github.com/hactazia/quiznet/internal/accounts/migrations"
	"github.com/hactazia/quiznet/internal/admin"
	"github.com/hactazia/quiznet/internal/config"
	"github.com/hactazia/quiznet/internal/connmgr"
	"github.com/hactazia/quiznet/internal/dispatcher"
	"github.com/hactazia/quiznet/internal/discovery"
	"github.com/hactazia/quiznet/internal/questionbank"
	"github.com/hactazia/quiznet/internal/sessionengine"
	"github.com/spf13/pflag"
)

func main() {
	os.Exit(run())
}

func run() int {
	flags := config.RegisterFlags(pflag.CommandLine)
	pflag.Parse()

	cfg, err := config.Load(flags)
	if err != nil {
		log.Printf("[Main] config error: %v", err)
		return 1
	}

	bank := questionbank.New()
	if cfg.Questions.FilePath != "" {
		if err := bank.LoadFile(cfg.Questions.FilePath); err != nil {
			log.Printf("[Main] warning: could not load question bank %q: %v", cfg.Questions.FilePath, err)
		}
	}
	log.Printf("[Main] question bank loaded with %d questions", bank.Size())

	store, err := buildAccountStore(cfg.Accounts)
	if err != nil {
		log.Printf("[Main] account store error: %v", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stats := &serverStats{}

	var mgr *connmgr.Manager
	registry := sessionengine.NewRegistry(cfg.Session.MaxSessions, bank, broadcasterAdapter{&mgr}, sessionengine.Config{
		StartCountdown:       cfg.Session.StartCountdown,
		InterQuestionDelay:   cfg.Session.InterQuestionDelay,
		LastPlayerPenalty:    cfg.Session.LastPlayerPenalty,
		MaxPlayersPerSession: cfg.Session.MaxPlayersPerSession,
	})
	stats.registry = registry
	stats.accounts = store

	disp := dispatcher.New(store, bank, registry)
	mgr = connmgr.New(cfg.Server.MaxConns, cfg.Session.SendQueueSize, disp)
	stats.conns = mgr

	var wg sync.WaitGroup
	errCh := make(chan error, 3)

	tcpAddr := fmt.Sprintf(":%d", cfg.Server.TCPPort)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := mgr.ListenAndServe(ctx, tcpAddr); err != nil {
			errCh <- fmt.Errorf("connmgr: %w", err)
		}
	}()

	udpAddr := fmt.Sprintf(":%d", cfg.Server.UDPPort)
	responder := &discovery.Responder{ServerName: cfg.Server.Name, TCPPort: cfg.Server.TCPPort}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := responder.ListenAndServe(ctx, udpAddr); err != nil {
			errCh <- fmt.Errorf("discovery: %w", err)
		}
	}()

	var adminSrv *admin.Server
	if cfg.Admin.Enabled {
		adminSrv = admin.New(cfg.Admin.Addr, cfg.Server.Name, stats)
		mgr.SetMetrics(connMetricsAdapter{adminSrv.Metrics()})
		registry.SetMetrics(sessionMetricsAdapter{adminSrv.Metrics()})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := adminSrv.ListenAndServe(ctx); err != nil {
				errCh <- fmt.Errorf("admin: %w", err)
			}
		}()
	}

	log.Printf("[Main] quiznet server %q up: tcp=%d udp=%d admin=%s", cfg.Server.Name, cfg.Server.TCPPort, cfg.Server.UDPPort, cfg.Admin.Addr)

	sig := make(chan os.Signal, 2)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sig:
		log.Println("[Main] shutdown signal received, draining connections")
		cancel()
	case err := <-errCh:
		log.Printf("[Main] fatal: %v", err)
		cancel()
		return 1
	}

	// A second signal forces an immediate exit, per SPEC_FULL.md §6.
	go func() {
		<-sig
		log.Println("[Main] second signal received, forcing exit")
		os.Exit(1)
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		registry.Shutdown()
		close(done)
	}()

	select {
	case <-done:
		log.Println("[Main] shutdown complete")
		return 0
	case <-time.After(10 * time.Second):
		log.Println("[Main] shutdown timed out")
		return 1
	}
}

func buildAccountStore(cfg config.AccountsConfig) (*accounts.Store, error) {
	var persister accounts.Persister
	switch cfg.Backend {
	case "postgres":
		if err := migrations.Apply(cfg.PostgresDSN); err != nil {
			return nil, fmt.Errorf("accounts migrations: %w", err)
		}
		pg, err := accounts.NewPostgresPersister(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres persister: %w", err)
		}
		persister = pg
	default:
		persister = accounts.FilePersister{Path: cfg.FilePath}
	}
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = accounts.DefaultCapacity
	}
	return accounts.New(capacity, persister)
}

// broadcasterAdapter defers dereferencing *mgr until Send is actually
// called, breaking the Manager/Registry construction-order cycle:
// connmgr.New needs the dispatcher, which needs the registry, which
// needs a Broadcaster that is, in the end, the same Manager.
type broadcasterAdapter struct {
	mgr **connmgr.Manager
}

func (b broadcasterAdapter) Send(clientID uint64, payload []byte) bool {
	return (*b.mgr).Send(clientID, payload)
}

func (b broadcasterAdapter) ClearSession(clientID uint64) {
	(*b.mgr).ClearSession(clientID)
}

// connMetricsAdapter implements connmgr.Metrics over the admin surface's
// Prometheus collectors.
type connMetricsAdapter struct {
	m *admin.Metrics
}

func (a connMetricsAdapter) ConnectionAccepted() {
	a.m.ConnectionsTotal.Inc()
	a.m.ConnectionsActive.Inc()
}

func (a connMetricsAdapter) ConnectionClosed() {
	a.m.ConnectionsActive.Dec()
}

func (a connMetricsAdapter) BroadcastDropped() {
	a.m.BroadcastDrops.Inc()
}

// sessionMetricsAdapter implements sessionengine.Metrics over the admin
// surface's Prometheus collectors.
type sessionMetricsAdapter struct {
	m *admin.Metrics
}

func (a sessionMetricsAdapter) AnswerProcessed() {
	a.m.AnswersProcessed.Inc()
}

func (a sessionMetricsAdapter) QuestionDispatchDuration(d time.Duration) {
	a.m.QuestionDispatchDur.Observe(d.Seconds())
}

func (a sessionMetricsAdapter) SessionStarted() {
	a.m.SessionsActive.Inc()
}

func (a sessionMetricsAdapter) SessionEnded() {
	a.m.SessionsActive.Dec()
}

type serverStats struct {
	conns    *connmgr.Manager
	registry *sessionengine.Registry
	accounts *accounts.Store
}

func (s *serverStats) ConnectedClients() int   { return s.conns.Count() }
func (s *serverStats) ActiveSessions() int     { return s.registry.ActiveSessions() }
func (s *serverStats) RegisteredAccounts() int { return s.accounts.Size() }
