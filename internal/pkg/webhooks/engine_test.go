package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StefanHaberl/VoiceFox/app/models"
	"github.com/StefanHaberl/VoiceFox/internal/pkg/health"
)

type fakeDeliveryRepo struct {
	due       []models.WebhookDeliveryLog
	claims    []map[string]interface{}
	loseClaim bool
}

func (f *fakeDeliveryRepo) Create(log *models.WebhookDeliveryLog) error { return nil }

func (f *fakeDeliveryRepo) GetByUUID(uuid string) (*models.WebhookDeliveryLog, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeDeliveryRepo) ListBySubscriptionID(subscriptionID uint, offset, limit int) ([]models.WebhookDeliveryLog, error) {
	return nil, nil
}

func (f *fakeDeliveryRepo) FindDue(now time.Time, maxAttempts int, limit int) ([]models.WebhookDeliveryLog, error) {
	return f.due, nil
}

func (f *fakeDeliveryRepo) TryClaim(log *models.WebhookDeliveryLog, updates map[string]interface{}) (bool, error) {
	if f.loseClaim {
		return false, nil
	}
	f.claims = append(f.claims, updates)
	log.LockVersion++
	if status, ok := updates["status"].(string); ok {
		log.Status = status
	}
	return true, nil
}

// lastStatus returns the status written by the final claim
func (f *fakeDeliveryRepo) lastStatus(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, f.claims)
	status, ok := f.claims[len(f.claims)-1]["status"].(string)
	require.True(t, ok, "final claim carries no status")
	return status
}

type fakeSubscriptionRepo struct {
	successes   []uint
	failures    []uint
	disableNext bool
}

func (f *fakeSubscriptionRepo) Create(sub *models.WebhookSubscription) error { return nil }

func (f *fakeSubscriptionRepo) GetByID(id uint) (*models.WebhookSubscription, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeSubscriptionRepo) GetByUUID(uuid string) (*models.WebhookSubscription, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeSubscriptionRepo) ListByUserID(userID uint) ([]models.WebhookSubscription, error) {
	return nil, nil
}

func (f *fakeSubscriptionRepo) ListActiveForEvent(userID uint, event string) ([]models.WebhookSubscription, error) {
	return nil, nil
}

func (f *fakeSubscriptionRepo) Update(sub *models.WebhookSubscription) error { return nil }

func (f *fakeSubscriptionRepo) Delete(id uint) error { return nil }

func (f *fakeSubscriptionRepo) RecordSuccess(id uint, at time.Time) error {
	f.successes = append(f.successes, id)
	return nil
}

func (f *fakeSubscriptionRepo) RecordFailure(sub *models.WebhookSubscription, at time.Time) (bool, error) {
	f.failures = append(f.failures, sub.ID)
	sub.ConsecutiveFailures++
	if f.disableNext {
		sub.Active = false
		return true, nil
	}
	return false, nil
}

type plainDecrypter struct {
	err error
}

func (d plainDecrypter) Decrypt(encrypted string) (string, error) {
	if d.err != nil {
		return "", d.err
	}
	return encrypted, nil
}

func testConfig() Config {
	return Config{
		Interval:       time.Second,
		BatchSize:      10,
		MaxAttempts:    3,
		BackoffBase:    time.Minute,
		BackoffCap:     time.Hour,
		RequestTimeout: 2 * time.Second,
	}
}

func testDelivery(targetURL string, attempt int) models.WebhookDeliveryLog {
	return models.WebhookDeliveryLog{
		ID:            1,
		UUID:          "delivery-1",
		EventType:     models.EventConversionCompleted,
		EntityType:    models.EntityTypeConversion,
		EntityID:      "conversion-1",
		Status:        models.DeliveryStatusPending,
		Payload:       `{"id":"delivery-1","event":"conversion.completed"}`,
		AttemptNumber: attempt,
		Subscription: models.WebhookSubscription{
			ID:                     7,
			UUID:                   "subscription-1",
			TargetURL:              targetURL,
			SecretEncrypted:        "signing-secret",
			Events:                 models.StringList{models.EventConversionCompleted},
			Active:                 true,
			AutoDisableOnFailure:   true,
			MaxConsecutiveFailures: 10,
		},
	}
}

func newTestEngine(deliveries *fakeDeliveryRepo, subs *fakeSubscriptionRepo, dec SecretDecrypter) *Engine {
	reporter := health.NewReporter("webhook_delivery_test", time.Minute, 2*time.Minute)
	return NewEngine(deliveries, subs, dec, testConfig(), reporter)
}

func TestProcessOnce_DeliversAndSigns(t *testing.T) {
	var received *http.Request
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = r
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	deliveries := &fakeDeliveryRepo{due: []models.WebhookDeliveryLog{testDelivery(server.URL, 1)}}
	subs := &fakeSubscriptionRepo{}
	engine := newTestEngine(deliveries, subs, plainDecrypter{})

	processed, skipped := engine.ProcessOnce(context.Background())

	assert.Equal(t, 1, processed)
	assert.Equal(t, 0, skipped)
	require.NotNil(t, received)
	assert.Equal(t, "application/json", received.Header.Get("Content-Type"))
	assert.Equal(t, models.EventConversionCompleted, received.Header.Get(EventHeader))
	assert.Equal(t, "delivery-1", received.Header.Get(DeliveryHeader))
	assert.NotEmpty(t, received.Header.Get(TimestampHeader))
	assert.True(t, VerifySignature(body, received.Header.Get(SignatureHeader), "signing-secret"))

	assert.Equal(t, models.DeliveryStatusDelivered, deliveries.lastStatus(t))
	assert.Equal(t, []uint{7}, subs.successes)
	assert.Empty(t, subs.failures)
}

func TestProcessOnce_ClaimSchedulesReadmission(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	deliveries := &fakeDeliveryRepo{due: []models.WebhookDeliveryLog{testDelivery(server.URL, 2)}}
	subs := &fakeSubscriptionRepo{}
	engine := newTestEngine(deliveries, subs, plainDecrypter{})

	engine.ProcessOnce(context.Background())

	// the claim itself pushes next_retry_at one backoff window out, so a
	// worker crash after this point cannot strand the row in processing
	require.GreaterOrEqual(t, len(deliveries.claims), 2)
	first := deliveries.claims[0]
	assert.Equal(t, models.DeliveryStatusProcessing, first["status"])
	fence, ok := first["next_retry_at"].(time.Time)
	require.True(t, ok, "claim must carry a re-admission time")
	assert.WithinDuration(t, time.Now().UTC().Add(2*time.Minute), fence, 5*time.Second)
}

func TestProcessOnce_FailureSchedulesRetry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	deliveries := &fakeDeliveryRepo{due: []models.WebhookDeliveryLog{testDelivery(server.URL, 1)}}
	subs := &fakeSubscriptionRepo{}
	engine := newTestEngine(deliveries, subs, plainDecrypter{})

	engine.ProcessOnce(context.Background())

	assert.Equal(t, models.DeliveryStatusFailed, deliveries.lastStatus(t))
	final := deliveries.claims[len(deliveries.claims)-1]
	assert.Equal(t, 2, final["attempt_number"])
	nextRetry, ok := final["next_retry_at"].(time.Time)
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().UTC().Add(time.Minute), nextRetry, 5*time.Second)
	assert.Equal(t, []uint{7}, subs.failures)
}

func TestProcessOnce_LastAttemptAbandons(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	deliveries := &fakeDeliveryRepo{due: []models.WebhookDeliveryLog{testDelivery(server.URL, 3)}}
	subs := &fakeSubscriptionRepo{}
	engine := newTestEngine(deliveries, subs, plainDecrypter{})

	engine.ProcessOnce(context.Background())

	assert.Equal(t, models.DeliveryStatusAbandoned, deliveries.lastStatus(t))
	assert.Equal(t, []uint{7}, subs.failures)
}

func TestProcessOnce_DisabledSubscriptionAbandonsWithoutFailure(t *testing.T) {
	delivery := testDelivery("http://localhost:0", 1)
	delivery.Subscription.Active = false

	deliveries := &fakeDeliveryRepo{due: []models.WebhookDeliveryLog{delivery}}
	subs := &fakeSubscriptionRepo{}
	engine := newTestEngine(deliveries, subs, plainDecrypter{})

	engine.ProcessOnce(context.Background())

	assert.Equal(t, models.DeliveryStatusAbandoned, deliveries.lastStatus(t))
	assert.Empty(t, subs.failures)
	assert.Empty(t, subs.successes)
}

func TestProcessOnce_DecryptFailureAbandons(t *testing.T) {
	deliveries := &fakeDeliveryRepo{due: []models.WebhookDeliveryLog{testDelivery("http://localhost:0", 1)}}
	subs := &fakeSubscriptionRepo{}
	engine := newTestEngine(deliveries, subs, plainDecrypter{err: errors.New("bad key")})

	engine.ProcessOnce(context.Background())

	assert.Equal(t, models.DeliveryStatusAbandoned, deliveries.lastStatus(t))
	assert.Equal(t, []uint{7}, subs.failures)
}

func TestProcessOnce_LostClaimCountsAsSkipped(t *testing.T) {
	deliveries := &fakeDeliveryRepo{
		due:       []models.WebhookDeliveryLog{testDelivery("http://localhost:0", 1)},
		loseClaim: true,
	}
	subs := &fakeSubscriptionRepo{}
	engine := newTestEngine(deliveries, subs, plainDecrypter{})

	processed, skipped := engine.ProcessOnce(context.Background())

	assert.Equal(t, 0, processed)
	assert.Equal(t, 1, skipped)
	assert.Empty(t, deliveries.claims)
}
