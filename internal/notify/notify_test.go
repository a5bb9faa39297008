package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/booking-lifecycle/internal/appointment"
	redisclient "github.com/hackgods/booking-lifecycle/internal/redis"
)

type mockDirectory map[uuid.UUID]*appointment.User

func (m mockDirectory) GetUser(_ context.Context, id uuid.UUID) (*appointment.User, error) {
	if u, ok := m[id]; ok {
		return u, nil
	}
	return nil, appointment.ErrUserNotFound
}

type mockMailer struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (m *mockMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *mockMailer) messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}

// memQueue is a FIFO standing in for the redis list.
type memQueue struct {
	ch chan []byte
}

func newMemQueue() *memQueue { return &memQueue{ch: make(chan []byte, 16)} }

func (q *memQueue) Push(_ context.Context, payload []byte) error {
	q.ch <- payload
	return nil
}

func (q *memQueue) Pop(ctx context.Context, timeout time.Duration) ([]byte, error) {
	select {
	case p := <-q.ch:
		return p, nil
	case <-time.After(timeout):
		return nil, redisclient.ErrQueueEmpty
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type world struct {
	client, pro *appointment.User
	users       mockDirectory
	mailer      *mockMailer
	dispatcher  *Dispatcher
}

func newWorld() *world {
	client := &appointment.User{ID: uuid.New(), Name: "Carla", Email: "carla@example.com", Role: appointment.RoleClient}
	pro := &appointment.User{ID: uuid.New(), Name: "Marta", Email: "marta@example.com", Role: appointment.RoleProfessional}
	users := mockDirectory{client.ID: client, pro.ID: pro}
	m := &mockMailer{}
	return &world{
		client:     client,
		pro:        pro,
		users:      users,
		mailer:     m,
		dispatcher: NewDispatcher(users, m, time.UTC),
	}
}

func (w *world) event(typ appointment.EventType, old, next appointment.Status) appointment.Event {
	notes := "<b>short nails</b>"
	return appointment.Event{
		Type: typ,
		Appointment: &appointment.AppointmentDetail{
			Appointment: appointment.Appointment{
				ID:             uuid.New(),
				ClientID:       w.client.ID,
				ProfessionalID: w.pro.ID,
				ScheduledTime:  time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
				Service:        "manicure",
				Notes:          &notes,
				Status:         next,
			},
			Client:       appointment.Party{ID: w.client.ID, Name: w.client.Name},
			Professional: appointment.Party{ID: w.pro.ID, Name: w.pro.Name},
		},
		OldStatus:  old,
		NewStatus:  next,
		OccurredAt: time.Now(),
	}
}

func TestDispatcherNewAppointmentGoesToProfessional(t *testing.T) {
	w := newWorld()
	err := w.dispatcher.Handle(context.Background(), w.event(appointment.EventCreated, "", appointment.StatusPending))
	require.NoError(t, err)

	sent := w.mailer.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, w.pro.Email, sent[0].To)
	assert.Contains(t, sent[0].HTML, "Carla")
	assert.Contains(t, sent[0].HTML, "Sat, 01 Jun 2024 10:00 UTC")
	// notes are escaped
	assert.Contains(t, sent[0].HTML, "&lt;b&gt;short nails&lt;/b&gt;")
}

func TestDispatcherStatusEmailsGoToClient(t *testing.T) {
	for status, verb := range statusVerbs {
		w := newWorld()
		err := w.dispatcher.Handle(context.Background(), w.event(appointment.EventStatusChanged, appointment.StatusPending, status))
		require.NoError(t, err)

		sent := w.mailer.messages()
		require.Len(t, sent, 1, status)
		assert.Equal(t, w.client.Email, sent[0].To)
		assert.Equal(t, "Appointment "+verb, sent[0].Subject)
		assert.Equal(t, status == appointment.StatusCompleted, strings.Contains(sent[0].HTML, "rate your appointment"), status)
	}
}

func TestDispatcherSkipsInProgress(t *testing.T) {
	w := newWorld()
	err := w.dispatcher.Handle(context.Background(), w.event(appointment.EventStatusChanged, appointment.StatusConfirmed, appointment.StatusInProgress))
	require.NoError(t, err)
	assert.Empty(t, w.mailer.messages())
}

func TestDispatcherErrors(t *testing.T) {
	w := newWorld()
	ev := w.event(appointment.EventCreated, "", appointment.StatusPending)
	delete(w.users, w.pro.ID)
	assert.ErrorIs(t, w.dispatcher.Handle(context.Background(), ev), appointment.ErrUserNotFound)

	assert.Error(t, w.dispatcher.Handle(context.Background(), appointment.Event{Type: appointment.EventCreated}))

	w = newWorld()
	w.mailer.err = errors.New("smtp down")
	assert.Error(t, w.dispatcher.Handle(context.Background(), w.event(appointment.EventCreated, "", appointment.StatusPending)))
}

func TestQueueEmitterAndWorker(t *testing.T) {
	w := newWorld()
	q := newMemQueue()
	emitter := NewQueueEmitter(q)

	require.NoError(t, emitter.Emit(context.Background(), w.event(appointment.EventCreated, "", appointment.StatusPending)))
	require.NoError(t, emitter.Emit(context.Background(), w.event(appointment.EventStatusChanged, appointment.StatusPending, appointment.StatusConfirmed)))
	q.ch <- []byte("{not json")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewWorker(q, w.dispatcher).Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(w.mailer.messages()) == 2 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}

	sent := w.mailer.messages()
	assert.Equal(t, w.pro.Email, sent[0].To)
	assert.Equal(t, w.client.Email, sent[1].To)
}

func TestAsyncEmitterDeliversBeforeClose(t *testing.T) {
	w := newWorld()
	e := NewAsyncEmitter(w.dispatcher, 2, 8)

	for i := 0; i < 5; i++ {
		require.NoError(t, e.Emit(context.Background(), w.event(appointment.EventCreated, "", appointment.StatusPending)))
	}
	e.Close()

	assert.Len(t, w.mailer.messages(), 5)
	assert.ErrorIs(t, e.Emit(context.Background(), w.event(appointment.EventCreated, "", appointment.StatusPending)), ErrEmitterClosed)
}

func TestAsyncEmitterRespectsContext(t *testing.T) {
	w := newWorld()
	// no buffer and a blocked mailer keep the channel full
	block := make(chan struct{})
	blocked := &blockingMailer{release: block}
	e := NewAsyncEmitter(NewDispatcher(w.users, blocked, nil), 1, 0)
	defer func() {
		close(block)
		e.Close()
	}()

	require.NoError(t, e.Emit(context.Background(), w.event(appointment.EventCreated, "", appointment.StatusPending)))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := e.Emit(ctx, w.event(appointment.EventCreated, "", appointment.StatusPending))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type blockingMailer struct {
	release chan struct{}
}

func (b *blockingMailer) Send(ctx context.Context, _ Message) error {
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return nil
}
