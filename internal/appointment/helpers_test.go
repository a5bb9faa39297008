package appointment

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/booking-lifecycle/internal/config"
	"github.com/hackgods/booking-lifecycle/internal/db"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (e *recordingEmitter) Emit(_ context.Context, ev Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return e.err
}

func (e *recordingEmitter) snapshot() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Event(nil), e.events...)
}

type fixture struct {
	svc     *Service
	repo    Repository
	emitter *recordingEmitter
	pro     *User
	clients []*User
}

func testConfig() config.Config {
	return config.Config{
		QueryTimeout: 5 * time.Second,
		EmitTimeout:  time.Second,
		Location:     time.UTC,
	}
}

func newSQLiteRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	conn, err := db.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "booking.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewSQLiteRepository(conn)
}

func newFixture(t *testing.T, clients int) *fixture {
	t.Helper()
	return newFixtureWith(t, newSQLiteRepo(t), testConfig(), clients)
}

func newFixtureWith(t *testing.T, repo Repository, cfg config.Config, clients int) *fixture {
	t.Helper()

	em := &recordingEmitter{}
	f := &fixture{
		svc:     NewService(repo, nil, em, cfg),
		repo:    repo,
		emitter: em,
	}
	f.pro = f.createUser(t, "Ana Pro", RoleProfessional)
	for i := 0; i < clients; i++ {
		f.clients = append(f.clients, f.createUser(t, "Client", RoleClient))
	}
	return f
}

func (f *fixture) createUser(t *testing.T, name string, role Role) *User {
	t.Helper()
	u, err := f.svc.CreateUser(context.Background(), User{
		Name:  name,
		Email: uuid.NewString() + "@example.com",
		Role:  role,
	})
	require.NoError(t, err)
	return u
}

func (f *fixture) proReq() Requester {
	return Requester{ID: f.pro.ID, Role: RoleProfessional}
}

func (f *fixture) clientReq(i int) Requester {
	return Requester{ID: f.clients[i].ID, Role: RoleClient}
}

func (f *fixture) book(t *testing.T, client Requester, at time.Time) *AppointmentDetail {
	t.Helper()
	d, err := f.svc.CreateAppointment(context.Background(), client, CreateInput{
		ProfessionalID: f.pro.ID,
		ScheduledTime:  at,
		Service:        "manicure",
	})
	require.NoError(t, err)
	return d
}

// advance walks an appointment through statuses as its professional.
func (f *fixture) advance(t *testing.T, id uuid.UUID, statuses ...Status) *AppointmentDetail {
	t.Helper()
	var d *AppointmentDetail
	for _, st := range statuses {
		var err error
		d, err = f.svc.UpdateStatus(context.Background(), f.proReq(), id, st)
		require.NoError(t, err)
	}
	return d
}

func collect(t *testing.T, seq func(func(*AppointmentDetail, error) bool)) []*AppointmentDetail {
	t.Helper()
	var out []*AppointmentDetail
	for d, err := range seq {
		require.NoError(t, err)
		out = append(out, d)
	}
	return out
}
