// Package servicemanager starts a node's services in order, stops them in
// reverse order and aggregates their health.
package servicemanager

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/bsv-blockchain/cfpeer/errors"
	"github.com/bsv-blockchain/cfpeer/ulogger"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/sync/errgroup"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	readyTimeout = 30 * time.Second
	stopTimeout  = 5 * time.Second
)

type serviceWrapper struct {
	name     string
	instance Service
	readyCh  chan struct{}
}

var (
	mu        sync.RWMutex
	listeners []string
)

// ServiceManager runs services in registration order: each one starts once
// the previous one reported ready.
type ServiceManager struct {
	services   []serviceWrapper
	logger     ulogger.Logger
	Ctx        context.Context
	cancelFunc context.CancelFunc
	g          *errgroup.Group
}

// NewServiceManager returns a manager whose context is cancelled by SIGINT
// or SIGTERM.
func NewServiceManager(ctx context.Context, logger ulogger.Logger) *ServiceManager {
	ctx, cancelFunc := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)

	sm := &ServiceManager{
		logger:     logger,
		Ctx:        ctx,
		cancelFunc: cancelFunc,
		g:          g,
	}

	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigs)

		select {
		case <-sigs:
			sm.logger.Infof("[ServiceManager] received shutdown signal, stopping services")
			sm.cancelFunc()
		case <-ctx.Done():
		}
	}()

	return sm
}

// AddListenerInfo records a listening address for the /services endpoint.
func AddListenerInfo(name string) {
	mu.Lock()
	defer mu.Unlock()

	listeners = append(listeners, name)
}

// GetListenerInfos returns the recorded listeners, sorted.
func GetListenerInfos() []string {
	mu.RLock()
	defer mu.RUnlock()

	sorted := make([]string, len(listeners))
	copy(sorted, listeners)
	sort.Strings(sorted)

	return sorted
}

// ServicesHandler serves the recorded listeners as JSON.
func ServicesHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	_ = json.NewEncoder(w).Encode(GetListenerInfos())
}

// AddService initialises service and schedules its start behind the
// services added before it.
func (sm *ServiceManager) AddService(name string, service Service) error {
	var previous chan struct{}
	if len(sm.services) > 0 {
		previous = sm.services[len(sm.services)-1].readyCh
	}

	sw := serviceWrapper{
		name:     name,
		instance: service,
		readyCh:  make(chan struct{}),
	}

	sm.services = append(sm.services, sw)

	sm.logger.Infof("[ServiceManager] initialising %s", name)

	if err := service.Init(sm.Ctx); err != nil {
		return errors.NewServiceError("[ServiceManager] %s failed to initialise", name, err)
	}

	sm.g.Go(func() error {
		if previous != nil {
			if err := sm.waitForReady(previous); err != nil {
				return errors.NewServiceError("[ServiceManager] %s waiting for its predecessor", name, err)
			}
		}

		sm.logger.Infof("[ServiceManager] starting %s", name)

		if err := service.Start(sm.Ctx, sw.readyCh); err != nil {
			sm.logger.Errorf("[ServiceManager] %s stopped with error: %v", name, err)
			return err
		}

		return nil
	})

	return nil
}

func (sm *ServiceManager) waitForReady(readyCh <-chan struct{}) error {
	timer := time.NewTimer(readyTimeout)
	defer timer.Stop()

	select {
	case <-readyCh:
		return nil
	case <-sm.Ctx.Done():
		return sm.Ctx.Err()
	case <-timer.C:
		return errors.NewServiceNotStartedError("timed out after %s", readyTimeout)
	}
}

// WaitForServiceToBeReady blocks until every service reported ready or the
// manager shuts down.
func (sm *ServiceManager) WaitForServiceToBeReady() {
	for _, s := range sm.services {
		select {
		case <-s.readyCh:
			sm.logger.Infof("[ServiceManager] %s is ready", s.name)
		case <-sm.Ctx.Done():
			return
		}
	}
}

// ServicesNotReady lists the services that have not reported ready.
func (sm *ServiceManager) ServicesNotReady() []string {
	var notReady []string

	for _, s := range sm.services {
		select {
		case <-s.readyCh:
		default:
			notReady = append(notReady, s.name)
		}
	}

	return notReady
}

// ForceShutdown cancels every service.
func (sm *ServiceManager) ForceShutdown() {
	sm.cancelFunc()
}

// Wait blocks until the services end, then stops them in reverse order.
// Cancellation is not reported as an error.
func (sm *ServiceManager) Wait() error {
	err := sm.g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		sm.logger.Errorf("[ServiceManager] service failed: %v", err)
	}

	for i := len(sm.services) - 1; i >= 0; i-- {
		s := sm.services[i]

		stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)

		if stopErr := s.instance.Stop(stopCtx); stopErr != nil {
			sm.logger.Warnf("[ServiceManager] %s failed to stop: %v", s.name, stopErr)
		} else {
			sm.logger.Infof("[ServiceManager] %s stopped", s.name)
		}

		stopCancel()
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

// HealthHandler reports 200 when every service is healthy and 503
// otherwise, with the per service details as JSON.
func (sm *ServiceManager) HealthHandler(ctx context.Context, checkLiveness bool) (int, string, error) {
	overallStatus := http.StatusOK
	msgs := make([]string, 0, len(sm.services))

	for _, s := range sm.services {
		status, details, err := s.instance.Health(ctx, checkLiveness)
		if err != nil || status != http.StatusOK {
			overallStatus = http.StatusServiceUnavailable
		}

		detailsJSON, _ := json.Marshal(details)
		msgs = append(msgs, fmt.Sprintf(`{"service": %q, "status": "%d", "details": %s}`, s.name, status, detailsJSON))
	}

	jsonStr := fmt.Sprintf(`{"status": "%d", "services": [%s]}`, overallStatus, strings.Join(msgs, ","))

	var report interface{}
	if err := json.Unmarshal([]byte(jsonStr), &report); err == nil {
		if formatted, err := json.MarshalIndent(report, "", "  "); err == nil {
			jsonStr = string(formatted)
		}
	}

	return overallStatus, jsonStr, nil
}
