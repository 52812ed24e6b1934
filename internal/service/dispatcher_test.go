package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"promosms/internal/constants"
	"promosms/internal/database"
	"promosms/internal/errors"
	"promosms/internal/models"
	"promosms/pkg/gateway"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockGateway struct {
	mu      sync.Mutex
	calls   []string
	respond func(ctx context.Context, recipient, body string) (*gateway.SubmitResult, error)
}

func (m *mockGateway) Send(ctx context.Context, recipient, body string) (*gateway.SubmitResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, recipient)
	m.mu.Unlock()

	if m.respond != nil {
		return m.respond(ctx, recipient, body)
	}
	return &gateway.SubmitResult{Code: gateway.AcceptedCode, Text: "Success", MessageID: "MSG-1"}, nil
}

func (m *mockGateway) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func setupStore(t *testing.T) *database.Database {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "dispatch-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, db.Close())
	})
	return db
}

func createMessage(t *testing.T, db *database.Database, recipient string, scheduledAt *time.Time) int64 {
	t.Helper()

	key, err := db.CreateMessage(context.Background(), &models.Message{
		Body:        "promo body",
		Recipient:   recipient,
		ScheduledAt: scheduledAt,
	}, constants.DefaultSMSMaxLength)
	require.NoError(t, err)
	return key
}

func testDispatchConfig() models.DispatchConfig {
	return models.DispatchConfig{
		IntervalSec:    60,
		SendTimeoutSec: 5,
		MaxConcurrent:  3,
		BatchSize:      10,
	}
}

func TestDispatcherSendsClaimedMessages(t *testing.T) {
	db := setupStore(t)
	gw := &mockGateway{}
	d := NewDispatcher(db, gw, testDispatchConfig(), testLogger())

	keys := []int64{
		createMessage(t, db, "0911111111", nil),
		createMessage(t, db, "0922222222", nil),
		createMessage(t, db, "0933333333", nil),
	}

	d.RunCycle(context.Background())

	assert.Equal(t, 3, gw.callCount())
	for _, key := range keys {
		msg, err := db.GetMessage(context.Background(), key)
		require.NoError(t, err)
		assert.Equal(t, models.MessageStatusSent, msg.Status)
		require.NotNil(t, msg.GatewayCode)
		assert.Equal(t, gateway.AcceptedCode, *msg.GatewayCode)
		require.NotNil(t, msg.GatewayMsgID)
		assert.NotNil(t, msg.SentAt)
	}
}

func TestDispatcherRecordsGatewayRejection(t *testing.T) {
	db := setupStore(t)
	gw := &mockGateway{
		respond: func(ctx context.Context, recipient, body string) (*gateway.SubmitResult, error) {
			return &gateway.SubmitResult{Code: "10803", Text: "Invalid destination"}, nil
		},
	}
	d := NewDispatcher(db, gw, testDispatchConfig(), testLogger())

	key := createMessage(t, db, "0911111111", nil)
	d.RunCycle(context.Background())

	msg, err := db.GetMessage(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusFailed, msg.Status)
	require.NotNil(t, msg.GatewayCode)
	assert.Equal(t, "10803", *msg.GatewayCode)
}

func TestDispatcherHTTPErrorMarksFailedWithoutRetry(t *testing.T) {
	db := setupStore(t)
	gw := &mockGateway{
		respond: func(ctx context.Context, recipient, body string) (*gateway.SubmitResult, error) {
			return nil, errors.New(errors.ErrCodeGatewayError, "gateway returned status 500").
				WithContext("status", 500)
		},
	}
	d := NewDispatcher(db, gw, testDispatchConfig(), testLogger())

	key := createMessage(t, db, "0911111111", nil)
	d.RunCycle(context.Background())

	msg, err := db.GetMessage(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusFailed, msg.Status)
	require.NotNil(t, msg.GatewayCode)
	assert.Equal(t, constants.CodeHTTPError, *msg.GatewayCode)

	// A failed message stays failed; the next cycle must not touch it.
	d.RunCycle(context.Background())
	assert.Equal(t, 1, gw.callCount())
}

func TestDispatcherNetworkErrorMarksFailed(t *testing.T) {
	db := setupStore(t)
	gw := &mockGateway{
		respond: func(ctx context.Context, recipient, body string) (*gateway.SubmitResult, error) {
			return nil, errors.New(errors.ErrCodeGatewayError, "failed to reach gateway")
		},
	}
	d := NewDispatcher(db, gw, testDispatchConfig(), testLogger())

	key := createMessage(t, db, "0911111111", nil)
	d.RunCycle(context.Background())

	msg, err := db.GetMessage(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusFailed, msg.Status)
	require.NotNil(t, msg.GatewayCode)
	assert.Equal(t, constants.CodeNetworkError, *msg.GatewayCode)
}

func TestDispatcherTimeoutMarksFailed(t *testing.T) {
	db := setupStore(t)
	gw := &mockGateway{
		respond: func(ctx context.Context, recipient, body string) (*gateway.SubmitResult, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	cfg := testDispatchConfig()
	cfg.SendTimeoutSec = 1
	d := NewDispatcher(db, gw, cfg, testLogger())

	key := createMessage(t, db, "0911111111", nil)
	d.RunCycle(context.Background())

	msg, err := db.GetMessage(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusFailed, msg.Status)
	require.NotNil(t, msg.GatewayCode)
	assert.Equal(t, constants.CodeTimeout, *msg.GatewayCode)
}

func TestDispatcherLeavesFutureMessagesAlone(t *testing.T) {
	db := setupStore(t)
	gw := &mockGateway{}
	d := NewDispatcher(db, gw, testDispatchConfig(), testLogger())

	future := time.Now().Add(time.Hour)
	key := createMessage(t, db, "0911111111", &future)

	d.RunCycle(context.Background())

	assert.Zero(t, gw.callCount())
	msg, err := db.GetMessage(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusScheduled, msg.Status)
}

func TestDispatcherStartStop(t *testing.T) {
	db := setupStore(t)
	gw := &mockGateway{}
	cfg := testDispatchConfig()
	cfg.IntervalSec = 1
	d := NewDispatcher(db, gw, cfg, testLogger())

	createMessage(t, db, "0911111111", nil)

	done := make(chan struct{})
	go func() {
		d.Start(context.Background())
		close(done)
	}()

	// The initial cycle runs on start.
	require.Eventually(t, func() bool {
		return gw.callCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	d.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

func TestDispatcherStopWaitsForInFlightSend(t *testing.T) {
	db := setupStore(t)
	release := make(chan struct{})
	gw := &mockGateway{
		respond: func(ctx context.Context, recipient, body string) (*gateway.SubmitResult, error) {
			<-release
			return &gateway.SubmitResult{Code: gateway.AcceptedCode, Text: "Success", MessageID: "MSG-1"}, nil
		},
	}
	d := NewDispatcher(db, gw, testDispatchConfig(), testLogger())

	key := createMessage(t, db, "0911111111", nil)

	done := make(chan struct{})
	go func() {
		d.Start(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool {
		return gw.callCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Stop while the send is still in flight: Start must not return until
	// the outcome has been recorded.
	d.Stop()
	select {
	case <-done:
		t.Fatal("dispatch loop returned with a send in flight")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop after the send completed")
	}

	msg, err := db.GetMessage(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusSent, msg.Status)
}

func TestDispatcherStopIsIdempotent(t *testing.T) {
	db := setupStore(t)
	d := NewDispatcher(db, &mockGateway{}, testDispatchConfig(), testLogger())

	d.Stop()
	d.Stop()
}
