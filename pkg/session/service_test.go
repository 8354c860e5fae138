package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/matryer/is"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestService(t *testing.T, store Store, clock *fakeClock) *Service {
	t.Helper()
	svc, err := NewService(ServiceConfig{Store: store, Now: clock.Now})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestNewService_RequiresStore(t *testing.T) {
	_, err := NewService(ServiceConfig{})
	if err == nil {
		t.Fatal("expected error for missing store")
	}
}

func TestCreateSession_RoomNames(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := newTestService(t, NewMemoryStore(), clock)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		cs, err := svc.CreateSession(ctx, SessionCreate{UserID: "u1", AgentID: "maya"})
		is.NoErr(err)

		is.True(strings.HasPrefix(cs.RoomName, "room-")) // room name prefix
		_, err = uuid.Parse(strings.TrimPrefix(cs.RoomName, "room-"))
		is.NoErr(err) // room name suffix is a uuid
		_, err = uuid.Parse(cs.ID)
		is.NoErr(err) // session id is a uuid

		is.True(!seen[cs.RoomName]) // room names are unique
		seen[cs.RoomName] = true

		is.Equal(cs.StartTime, clock.t)
		is.True(cs.EndTime == nil)
		is.True(cs.Duration == nil)
		is.Equal(len(cs.Messages), 0)
		is.True(cs.Metadata != nil) // metadata defaults to empty map
	}
}

func TestAddMessage_PreservesOrder(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := newTestService(t, NewMemoryStore(), clock)

	cs, err := svc.CreateSession(ctx, SessionCreate{UserID: "u1", AgentID: "miles"})
	is.NoErr(err)

	const n = 7
	for i := 0; i < n; i++ {
		clock.Advance(time.Second)
		is.NoErr(svc.AddMessage(ctx, cs.ID, MessageAdd{
			Sender:  "user",
			Content: fmt.Sprintf("message %d", i),
		}))
	}

	got, err := svc.GetSession(ctx, cs.ID)
	is.NoErr(err)
	is.Equal(len(got.Messages), n)
	for i, m := range got.Messages {
		is.Equal(m.Content, fmt.Sprintf("message %d", i))
		is.Equal(m.Type, MessageTypeVoice) // type defaults to voice
		is.True(m.Duration == nil)
	}
}

func TestAddMessage_ExplicitTypeAndDuration(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	clock := &fakeClock{t: time.Now().UTC()}
	svc := newTestService(t, NewMemoryStore(), clock)

	cs, err := svc.CreateSession(ctx, SessionCreate{UserID: "u1", AgentID: "maya"})
	is.NoErr(err)

	d := int64(3)
	is.NoErr(svc.AddMessage(ctx, cs.ID, MessageAdd{Sender: "agent", Content: "hi", Type: "text", Duration: &d}))

	got, err := svc.GetSession(ctx, cs.ID)
	is.NoErr(err)
	is.Equal(got.Messages[0].Type, "text")
	is.Equal(*got.Messages[0].Duration, int64(3))
}

func TestUnknownSession(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Now().UTC()}
	svc := newTestService(t, NewMemoryStore(), clock)

	tests := []struct {
		name string
		call func() error
	}{
		{"add message", func() error {
			return svc.AddMessage(ctx, "missing", MessageAdd{Sender: "user", Content: "x"})
		}},
		{"end", func() error {
			_, err := svc.EndSession(ctx, "missing")
			return err
		}},
		{"get", func() error {
			_, err := svc.GetSession(ctx, "missing")
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			if Classify(err) != OutcomeNotFound {
				t.Fatalf("expected not found outcome, got %s", Classify(err))
			}
		})
	}
}

func TestEndSession_Twice(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := newTestService(t, NewMemoryStore(), clock)

	cs, err := svc.CreateSession(ctx, SessionCreate{UserID: "u1", AgentID: "maya"})
	is.NoErr(err)

	clock.Advance(90*time.Second + 700*time.Millisecond)
	d1, err := svc.EndSession(ctx, cs.ID)
	is.NoErr(err)
	is.Equal(d1, int64(90)) // whole seconds, truncated

	clock.Advance(30 * time.Second)
	d2, err := svc.EndSession(ctx, cs.ID)
	is.NoErr(err)
	is.Equal(d2, int64(120)) // second end recomputes

	got, err := svc.GetSession(ctx, cs.ID)
	is.NoErr(err)
	is.Equal(*got.Duration, int64(120))
	is.Equal(*got.EndTime, clock.t)
}

func TestElapsedSeconds(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		want  int64
	}{
		{"zero start", time.Time{}, base, 0},
		{"same instant", base, base, 0},
		{"fractional", base, base.Add(1999 * time.Millisecond), 1},
		{"clock went backwards", base, base.Add(-time.Minute), 0},
		{"hours", base, base.Add(2 * time.Hour), 7200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := elapsedSeconds(tt.start, tt.end); got != tt.want {
				t.Errorf("elapsedSeconds() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStatusChecks(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	clock := &fakeClock{t: time.Now().UTC()}
	svc := newTestService(t, NewMemoryStore(), clock)

	empty, err := svc.ListStatusChecks(ctx)
	is.NoErr(err)
	is.True(empty != nil) // empty list, not nil
	is.Equal(len(empty), 0)

	for _, name := range []string{"a", "b", "c"} {
		sc, err := svc.CreateStatusCheck(ctx, name)
		is.NoErr(err)
		is.Equal(sc.ClientName, name)
		is.Equal(sc.Timestamp, clock.t)
	}

	checks, err := svc.ListStatusChecks(ctx)
	is.NoErr(err)
	is.Equal(len(checks), 3)
	is.Equal(checks[0].ClientName, "a")
	is.Equal(checks[2].ClientName, "c")
}

func TestListStatusChecks_Limit(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	store := NewMemoryStore()
	for i := 0; i < StatusListLimit+5; i++ {
		is.NoErr(store.InsertStatusCheck(ctx, StatusCheck{ID: fmt.Sprint(i)}))
	}

	svc := newTestService(t, store, &fakeClock{t: time.Now()})
	checks, err := svc.ListStatusChecks(ctx)
	is.NoErr(err)
	is.Equal(len(checks), StatusListLimit)
}

type failingStore struct {
	*MemoryStore
	err error
}

func (f *failingStore) InsertSession(context.Context, ConversationSession) error { return f.err }

func (f *failingStore) FindSession(context.Context, string) (ConversationSession, bool, error) {
	return ConversationSession{}, false, f.err
}

func TestStoreFailuresAreInternal(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection refused")
	svc := newTestService(t, &failingStore{MemoryStore: NewMemoryStore(), err: boom}, &fakeClock{t: time.Now()})

	_, err := svc.CreateSession(ctx, SessionCreate{UserID: "u", AgentID: "a"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	if Classify(err) != OutcomeInternal {
		t.Fatalf("expected internal outcome, got %s", Classify(err))
	}

	_, err = svc.GetSession(ctx, "x")
	if Classify(err) != OutcomeInternal {
		t.Fatalf("expected internal outcome, got %s", Classify(err))
	}
}
