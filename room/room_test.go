package room

import (
	"errors"
	"sync"
	"testing"

	"github.com/chessworld/gameserver/rules"
)

// deliveringBroadcaster mimics the production fan-out: send to every
// subscriber, report the ones that failed.
type deliveringBroadcaster struct{}

func (b *deliveringBroadcaster) Publish(roomID string, subscribers []Subscriber, message string) []Subscriber {
	var failed []Subscriber
	for _, sub := range subscribers {
		if err := sub.Send(message); err != nil {
			failed = append(failed, sub)
		}
	}
	return failed
}

// mockSubscriber is a test double for the Subscriber interface.
type mockSubscriber struct {
	id       string
	received []string
	sendErr  error
	closed   bool
	mutex    sync.Mutex
}

func (m *mockSubscriber) GetID() string { return m.id }

func (m *mockSubscriber) Send(message string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.received = append(m.received, message)
	return nil
}

func (m *mockSubscriber) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.closed = true
	return nil
}

func (m *mockSubscriber) failFromNowOn() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sendErr = errors.New("connection gone")
}

func (m *mockSubscriber) messages() []string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	out := make([]string, len(m.received))
	copy(out, m.received)
	return out
}

func newTestRegistry() *Registry {
	return NewRegistry(rules.NewUCIEngine(), &deliveringBroadcaster{})
}

func TestRegistry_GetOrCreate(t *testing.T) {
	registry := newTestRegistry()

	room := registry.GetOrCreate("abc")
	if room == nil {
		t.Fatal("GetOrCreate should not return nil")
	}
	if room.ID != "abc" {
		t.Errorf("Expected room ID abc, got %s", room.ID)
	}
	if room.FEN() != rules.StartingFEN {
		t.Errorf("Fresh room should start from the standard position, got %s", room.FEN())
	}

	if again := registry.GetOrCreate("abc"); again != room {
		t.Error("GetOrCreate should return the same room instance for the same id")
	}
	if other := registry.GetOrCreate("xyz"); other == room {
		t.Error("Different ids must name different rooms")
	}
	if registry.Count() != 2 {
		t.Errorf("Expected 2 live rooms, got %d", registry.Count())
	}
}

func TestRoom_JoinSendsCurrentPosition(t *testing.T) {
	registry := newTestRegistry()
	room := registry.GetOrCreate("join_test")

	sub := &mockSubscriber{id: "p1"}
	pos, err := room.Join(sub)
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if pos.FEN() != rules.StartingFEN {
		t.Errorf("Join should return the starting position, got %s", pos.FEN())
	}

	msgs := sub.messages()
	if len(msgs) != 1 || msgs[0] != rules.StartingFEN {
		t.Errorf("Joining subscriber should receive the current position, got %v", msgs)
	}
	if room.SubscriberCount() != 1 {
		t.Errorf("Expected subscriber count 1, got %d", room.SubscriberCount())
	}
}

func TestRoom_SubmitMove_LegalBroadcastsToAll(t *testing.T) {
	registry := newTestRegistry()
	room := registry.GetOrCreate("game1")
	otherRoom := registry.GetOrCreate("game2")

	p1 := &mockSubscriber{id: "p1"}
	p2 := &mockSubscriber{id: "p2"}
	bystander := &mockSubscriber{id: "p3"}
	room.Join(p1)
	room.Join(p2)
	otherRoom.Join(bystander)

	pos, err := room.SubmitMove("e2e4")
	if err != nil {
		t.Fatalf("SubmitMove failed: %v", err)
	}
	fen := pos.FEN()
	if fen == rules.StartingFEN {
		t.Fatal("SubmitMove should return the updated position")
	}
	if pos.Status() != rules.StatusOngoing {
		t.Errorf("Opening move should leave the game ongoing, got %q", pos.Status())
	}
	if room.FEN() != fen {
		t.Errorf("Room position should equal the returned FEN")
	}

	for _, sub := range []*mockSubscriber{p1, p2} {
		msgs := sub.messages()
		if len(msgs) != 2 {
			t.Fatalf("Subscriber %s should have 2 messages, got %d", sub.id, len(msgs))
		}
		if msgs[1] != fen {
			t.Errorf("Subscriber %s received %s, want %s", sub.id, msgs[1], fen)
		}
	}

	if msgs := bystander.messages(); len(msgs) != 1 {
		t.Errorf("Unrelated room must not observe the move, got %v", msgs)
	}
	if otherRoom.FEN() != rules.StartingFEN {
		t.Error("Unrelated room's position must be unaffected")
	}
}

func TestRoom_SubmitMove_IllegalLeavesPositionUnchanged(t *testing.T) {
	registry := newTestRegistry()
	room := registry.GetOrCreate("game")

	sub := &mockSubscriber{id: "p1"}
	room.Join(sub)

	_, err := room.SubmitMove("e2e5")
	if !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("Expected ErrIllegalMove, got %v", err)
	}
	if room.FEN() != rules.StartingFEN {
		t.Error("Rejected move must leave the position untouched")
	}
	if msgs := sub.messages(); len(msgs) != 1 {
		t.Errorf("Rejected move must not be broadcast, got %v", msgs)
	}
}

func TestRoom_SubmitMove_MalformedThenRecovers(t *testing.T) {
	registry := newTestRegistry()
	room := registry.GetOrCreate("game")
	room.Join(&mockSubscriber{id: "p1"})

	_, err := room.SubmitMove("zz99")
	if !errors.Is(err, rules.ErrMalformedMove) {
		t.Fatalf("Expected ErrMalformedMove, got %v", err)
	}
	if room.FEN() != rules.StartingFEN {
		t.Error("Malformed input must leave the position untouched")
	}

	if _, err := room.SubmitMove("e2e4"); err != nil {
		t.Errorf("Room should accept a valid move after a malformed one: %v", err)
	}
}

func TestRoom_LastLeaveTearsDownRoom(t *testing.T) {
	registry := newTestRegistry()
	room := registry.GetOrCreate("ephemeral")

	sub := &mockSubscriber{id: "p1"}
	room.Join(sub)
	if _, err := room.SubmitMove("e2e4"); err != nil {
		t.Fatalf("SubmitMove failed: %v", err)
	}

	room.Leave(sub)
	if _, exists := registry.Get("ephemeral"); exists {
		t.Fatal("Room should be retired once its last subscriber leaves")
	}

	// A later connection with the same id gets a fresh game, not residue.
	fresh := registry.GetOrCreate("ephemeral")
	if fresh == room {
		t.Error("Recreated room must be a new instance")
	}
	if fresh.FEN() != rules.StartingFEN {
		t.Errorf("Recreated room must start over, got %s", fresh.FEN())
	}

	// The retired instance rejects stragglers.
	if _, err := room.Join(&mockSubscriber{id: "late"}); !errors.Is(err, ErrRoomClosed) {
		t.Errorf("Expected ErrRoomClosed on a retired room, got %v", err)
	}
}

func TestRegistry_RemoveOnlyWhenEmpty(t *testing.T) {
	registry := newTestRegistry()
	room := registry.GetOrCreate("busy")
	sub := &mockSubscriber{id: "p1"}
	room.Join(sub)

	if registry.Remove("busy") {
		t.Fatal("Remove must refuse while subscribers remain")
	}
	if _, exists := registry.Get("busy"); !exists {
		t.Fatal("Room should still be registered")
	}

	room.Leave(sub)
	if _, exists := registry.Get("busy"); exists {
		t.Fatal("Room should be gone after the last leave")
	}
	if registry.Remove("busy") {
		t.Error("Remove of an unknown id should report false")
	}
}

func TestRoom_FailedDeliveryRemovesSubscriber(t *testing.T) {
	registry := newTestRegistry()
	room := registry.GetOrCreate("flaky")

	mover := &mockSubscriber{id: "mover"}
	dead := &mockSubscriber{id: "dead"}
	room.Join(mover)
	room.Join(dead)
	dead.failFromNowOn()

	pos, err := room.SubmitMove("e2e4")
	if err != nil {
		t.Fatalf("A failed delivery must not surface to the mover: %v", err)
	}
	fen := pos.FEN()

	if room.SubscriberCount() != 1 {
		t.Errorf("Failed subscriber should have been removed, count=%d", room.SubscriberCount())
	}
	if !dead.closed {
		t.Error("Failed subscriber's connection should be closed")
	}
	if msgs := mover.messages(); msgs[len(msgs)-1] != fen {
		t.Errorf("Healthy subscriber should still receive the position, got %v", msgs)
	}
}

func TestRoom_SubscribersObservePositionsInOrder(t *testing.T) {
	registry := newTestRegistry()
	room := registry.GetOrCreate("ordered")
	sub := &mockSubscriber{id: "watcher"}
	room.Join(sub)

	want := []string{rules.StartingFEN}
	for _, raw := range []string{"e2e4", "e7e5", "g1f3"} {
		pos, err := room.SubmitMove(raw)
		if err != nil {
			t.Fatalf("SubmitMove(%s) failed: %v", raw, err)
		}
		want = append(want, pos.FEN())
	}

	msgs := sub.messages()
	if len(msgs) != len(want) {
		t.Fatalf("Expected %d messages, got %d", len(want), len(msgs))
	}
	for i := range want {
		if msgs[i] != want[i] {
			t.Errorf("Message %d: got %s, want %s", i, msgs[i], want[i])
		}
	}
}

func TestRoom_ConcurrentSubmitsLinearize(t *testing.T) {
	registry := newTestRegistry()
	room := registry.GetOrCreate("race")
	room.Join(&mockSubscriber{id: "p1"})

	// e2e4 is legal exactly once: after the first application it is black's
	// turn and the pawn is gone, so every later attempt must be rejected
	// against the post-move position.
	const attempts = 8
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := room.SubmitMove("e2e4")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	applied, rejected := 0, 0
	for err := range results {
		if err == nil {
			applied++
		} else if errors.Is(err, ErrIllegalMove) {
			rejected++
		} else {
			t.Errorf("Unexpected error: %v", err)
		}
	}

	if applied != 1 {
		t.Errorf("Exactly one submission should win, got %d", applied)
	}
	if rejected != attempts-1 {
		t.Errorf("Expected %d rejections, got %d", attempts-1, rejected)
	}
}
