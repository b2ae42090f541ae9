// Package workers owns the lifecycle of the background engines. The engines
// themselves are stateless across instances; the manager only wires them up
// at process start and tears them down cooperatively at shutdown.
package workers

import (
	"context"
	"sync"

	"github.com/gofiber/fiber/v2/log"

	"github.com/StefanHaberl/VoiceFox/app/repository"
	"github.com/StefanHaberl/VoiceFox/internal/pkg/dispatcher"
	"github.com/StefanHaberl/VoiceFox/internal/pkg/health"
	"github.com/StefanHaberl/VoiceFox/internal/pkg/inference"
	"github.com/StefanHaberl/VoiceFox/internal/pkg/secrets"
	"github.com/StefanHaberl/VoiceFox/internal/pkg/webhooks"
)

// Engine names used for health reporting.
const (
	EngineDispatcher      = "dispatcher"
	EngineWebhookDelivery = "webhook_delivery"
)

// Manager manages the background engines
type Manager struct {
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global worker manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		globalManager = &Manager{}
	})
	return globalManager
}

// Start builds both engines from the environment and launches their loops.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	log.Info("[Workers] Starting background engines")

	repos := repository.GetGlobalRepositories()

	secretService, err := secrets.NewService()
	if err != nil {
		return err
	}

	dispatchCfg := dispatcher.ConfigFromEnv()
	webhookCfg := webhooks.ConfigFromEnv()

	notifier := dispatcher.NewNotifier(repos.Subscription, repos.DeliveryLog)

	dispatchReporter := health.NewReporter(EngineDispatcher, 3*dispatchCfg.Interval, 10*dispatchCfg.Interval)
	webhookReporter := health.NewReporter(EngineWebhookDelivery, 3*webhookCfg.Interval, 10*webhookCfg.Interval)

	conversionDispatcher := dispatcher.NewDispatcher(
		repos.Conversion,
		inference.NewHTTPClient(),
		notifier,
		dispatchCfg,
		dispatchReporter,
	)
	deliveryEngine := webhooks.NewEngine(
		repos.DeliveryLog,
		repos.Subscription,
		secretService,
		webhookCfg,
		webhookReporter,
	)

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.running = true

	m.wg.Add(2)
	go func() {
		defer m.wg.Done()
		conversionDispatcher.Run(ctx)
	}()
	go func() {
		defer m.wg.Done()
		deliveryEngine.Run(ctx)
	}()

	log.Info("[Workers] Started successfully")
	return nil
}

// Stop cancels both engines and waits for their loops to exit. A tick in
// flight finishes its current item; anything still claimed is recovered by
// the next eligible worker after its retry window.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[Workers] Stopping background engines...")
	m.cancel()
	m.wg.Wait()
	m.running = false
	log.Info("[Workers] Stopped successfully")
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
