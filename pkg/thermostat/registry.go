package thermostat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/andreweacott/radiotherm-coordinator/pkg/coordinator"
	"github.com/andreweacott/radiotherm-coordinator/pkg/logger"
	"github.com/andreweacott/radiotherm-coordinator/pkg/radiotherm"
)

var (
	ErrAlreadyConfigured = errors.New("device already configured")
	ErrNotConfigured     = errors.New("device not configured")
	ErrNotReady          = errors.New("device not ready")
)

// RegistryConfig configures how devices are set up.
type RegistryConfig struct {
	Settings Settings
	// SyncTime writes the local clock to the device during setup.
	SyncTime bool
	Options  []coordinator.Option
	Log      *logger.Logger
	Now      func() time.Time
}

type registryEntry struct {
	record *DeviceRecord
	cancel context.CancelFunc
	done   chan struct{}
}

// Registry owns the live DeviceRecords, at most one per host.
type Registry struct {
	cfg RegistryConfig
	log *logger.Entry

	mu      sync.Mutex
	entries map[string]*registryEntry
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Log == nil {
		cfg.Log = logger.Discard()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Registry{
		cfg:     cfg,
		log:     cfg.Log.WithComponent("registry"),
		entries: make(map[string]*registryEntry),
	}
}

// Setup reads the device's static data, performs the first refresh and
// starts polling. Failures that may clear up on retry wrap ErrNotReady.
func (r *Registry) Setup(ctx context.Context, host string, device radiotherm.DeviceAPI) (*DeviceRecord, error) {
	r.mu.Lock()
	if _, exists := r.entries[host]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyConfigured, host)
	}
	// reserve the host while setup talks to the device
	r.entries[host] = nil
	r.mu.Unlock()

	record, err := r.setup(ctx, host, device)
	if err != nil {
		r.mu.Lock()
		delete(r.entries, host)
		r.mu.Unlock()
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	entry := &registryEntry{record: record, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(entry.done)
		_ = record.Coordinator.Run(runCtx)
	}()

	r.mu.Lock()
	r.entries[host] = entry
	r.mu.Unlock()

	r.log.Info("device set up",
		"device", record.InitData.Name,
		"host", host,
		"model", record.InitData.Model,
		"hold_temp", record.HoldTemp.Load())
	return record, nil
}

func (r *Registry) setup(ctx context.Context, host string, device radiotherm.DeviceAPI) (*DeviceRecord, error) {
	initData, err := radiotherm.GetInitData(ctx, device)
	if err != nil {
		return nil, notReady(host, err)
	}

	uc := NewUpdateCoordinator(host, initData, r.cfg.Settings, r.cfg.Options...)
	if err := uc.Refresh(ctx); err != nil {
		uc.Shutdown()
		return nil, fmt.Errorf("%w: %w", ErrNotReady, err)
	}

	if r.cfg.SyncTime {
		if err := device.SetTime(ctx, r.cfg.Now()); err != nil {
			uc.Shutdown()
			return nil, notReady(host, err)
		}
	}

	data, _ := uc.Data()
	return NewDeviceRecord(uc, initData, data.Tstat.HoldEnabled()), nil
}

func notReady(host string, err error) error {
	switch radiotherm.Classify(err) {
	case radiotherm.KindDeviceBusy:
		return fmt.Errorf("%w: %s was busy (invalid value returned): %s", ErrNotReady, host, radiotherm.Detail(err))
	case radiotherm.KindTimeout:
		return fmt.Errorf("%w: %s timed out waiting for a response: %s", ErrNotReady, host, radiotherm.Detail(err))
	default:
		return fmt.Errorf("%w: %s: %w", ErrNotReady, host, err)
	}
}

// Get returns the record for host.
func (r *Registry) Get(host string) (*DeviceRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := r.entries[host]
	if entry == nil {
		return nil, false
	}
	return entry.record, true
}

// Records returns all live records ordered by host.
func (r *Registry) Records() []*DeviceRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	hosts := make([]string, 0, len(r.entries))
	for host, entry := range r.entries {
		if entry != nil {
			hosts = append(hosts, host)
		}
	}
	sort.Strings(hosts)

	records := make([]*DeviceRecord, 0, len(hosts))
	for _, host := range hosts {
		records = append(records, r.entries[host].record)
	}
	return records
}

// Unload stops polling for host and drops any pending debounced refresh.
func (r *Registry) Unload(host string) error {
	r.mu.Lock()
	entry := r.entries[host]
	if entry == nil {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotConfigured, host)
	}
	delete(r.entries, host)
	r.mu.Unlock()

	entry.cancel()
	<-entry.done
	entry.record.Coordinator.Shutdown()

	r.log.Info("device unloaded", "device", entry.record.InitData.Name, "host", host)
	return nil
}

// Close unloads every device.
func (r *Registry) Close() {
	for _, record := range r.Records() {
		_ = r.Unload(record.Coordinator.Host)
	}
}
