package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "docverify/pkg/platform/audit"
	"docverify/pkg/platform/audit/store/memory"
	"docverify/pkg/requestcontext"
)

type failingSink struct{ calls int }

func (f *failingSink) Append(context.Context, audit.Event) error {
	f.calls++
	return errors.New("broker down")
}

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	err := pub.Emit(context.Background(), audit.Event{
		Subject: "MD12345678",
		Action:  string(audit.EventDoctorApproved),
	})
	require.NoError(t, err)

	events, err := pub.List(context.Background(), "MD12345678")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventDoctorApproved), events[0].Action)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	for range 10 {
		require.NoError(t, pub.Emit(context.Background(), audit.Event{
			Subject: "report-1",
			Action:  string(audit.EventReportStatusChanged),
		}))
	}
	pub.Close()

	events, err := store.ListBySubject(context.Background(), "report-1")
	require.NoError(t, err)
	assert.Len(t, events, 10, "all events should be drained on close")
}

func TestPublisher_BufferFullDoesNotBlock(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))
	defer pub.Close()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pub.Emit(context.Background(), audit.Event{Subject: "MD1", Action: string(audit.EventReportSubmitted)})
		}()
	}
	wg.Wait()
}

func TestPublisher_FillsDefaultsFromContext(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ctx := requestcontext.WithRequestID(requestcontext.WithTime(context.Background(), fixed), "req-42")
	require.NoError(t, pub.Emit(ctx, audit.Event{Subject: "MD1", Action: string(audit.EventReportSubmitted)}))

	events, err := pub.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, fixed, events[0].Timestamp)
	assert.Equal(t, "req-42", events[0].RequestID)
	assert.Equal(t, audit.CategorySecurity, events[0].Category)
}

func TestPublisher_SinkFailureIsNotReturned(t *testing.T) {
	store := memory.NewInMemoryStore()
	sink := &failingSink{}
	pub := NewPublisher(store, WithSink(sink))
	defer pub.Close()

	err := pub.Emit(context.Background(), audit.Event{Subject: "MD1", Action: string(audit.EventLicenseRevoked)})
	require.NoError(t, err)
	assert.Equal(t, 1, sink.calls)

	events, err := pub.List(context.Background(), "MD1")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestPublisher_EmitAfterCloseDeliversInline(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(4))
	pub.Close()
	pub.Close()

	require.NotPanics(t, func() {
		require.NoError(t, pub.Emit(context.Background(), audit.Event{
			Subject: "doctor-1",
			Action:  string(audit.EventReportStatusChanged),
		}))
	})

	events, err := store.ListBySubject(context.Background(), "doctor-1")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestPublisher_EmitRacingCloseDoesNotPanic(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1000))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				_ = pub.Emit(context.Background(), audit.Event{
					Subject: "doctor-2",
					Action:  string(audit.EventReportStatusChanged),
				})
			}
		}()
	}
	pub.Close()
	wg.Wait()

	events, err := store.ListBySubject(context.Background(), "doctor-2")
	require.NoError(t, err)
	assert.Len(t, events, 400)
}
