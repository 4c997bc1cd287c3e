/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package challenge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Seednode/wordrace/internal/scoring"
)

type hubFixture struct {
	hub      *Hub
	source   *staticSource
	profiles *memProfiles
	ledger   *outcomes
	peers    map[string]*fakePeer
}

func startHub(t *testing.T, opts Options) *hubFixture {
	t.Helper()

	f := &hubFixture{
		source:   &staticSource{questions: germanWords()},
		profiles: newMemProfiles(),
		ledger:   &outcomes{},
		peers:    make(map[string]*fakePeer),
	}

	f.hub = NewHub(opts, Deps{
		Questions: f.source,
		Profiles:  f.profiles,
		Recorder:  f.ledger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	f.hub.Start(ctx)

	t.Cleanup(func() {
		cancel()
		f.hub.Wait()
	})

	return f
}

func (f *hubFixture) connect(t *testing.T, p Player) *fakePeer {
	t.Helper()

	peer := newFakePeer()
	f.hub.Connect(context.Background(), p.ID, p.Name, peer)
	peer.expect(t, EventConnected)
	f.peers[p.ID] = peer

	return peer
}

func (f *hubFixture) pair(t *testing.T, gt GameType) (string, *fakePeer, *fakePeer) {
	t.Helper()

	a, b := f.connect(t, alice), f.connect(t, bob)
	ctx := context.Background()

	if err := f.hub.Join(ctx, alice.ID, string(gt), "A1"); err != nil {
		t.Fatal(err)
	}
	if err := f.hub.Join(ctx, bob.ID, string(gt), "A1"); err != nil {
		t.Fatal(err)
	}

	start := a.waitFor(t, gt.StartEvent()).(StartMessage)
	b.waitFor(t, gt.StartEvent())

	return start.RoomID, a, b
}

func TestHubWordRaceEndToEnd(t *testing.T) {
	f := startHub(t, DefaultOptions())
	room, a, b := f.pair(t, WordRace)
	ctx := context.Background()

	// Casing differs and a capital eszett is used; all of it is accepted.
	answers := []string{"DER APFEL", "schön", "die STRAẞE", "das Mädchen", "Über"}
	for i, q := range germanWords() {
		if err := f.hub.Submit(ctx, alice.ID, room, q.ID, answers[i], 2*time.Second); err != nil {
			t.Fatalf("alice %s: %v", q.ID, err)
		}
		if err := f.hub.Submit(ctx, bob.ID, room, q.ID, q.Answer, 2*time.Second); err != nil {
			t.Fatalf("bob %s: %v", q.ID, err)
		}
	}

	for _, peer := range []*fakePeer{a, b} {
		res := peer.waitFor(t, EventWordRaceResult).(ResultMessage)
		if res.Reason != ReasonCompleted || res.RoomID != room {
			t.Fatalf("unexpected result: %+v", res)
		}
		for _, u := range res.Users {
			if u.CorrectWords != 5 || u.Score != 500 {
				t.Fatalf("expected a perfect run, got %+v", u)
			}
		}
	}

	eventually(t, func() bool {
		return f.profiles.get(alice.ID) >= scoring.BaseXPForLevel(scoring.A1) &&
			f.profiles.get(bob.ID) >= scoring.BaseXPForLevel(scoring.A1)
	}, "XP was not granted: alice=%d bob=%d", f.profiles.get(alice.ID), f.profiles.get(bob.ID))

	eventually(t, func() bool { return f.ledger.len() == 1 }, "outcome was not recorded")

	if f.hub.Directory().Len() != 0 {
		t.Fatalf("finished session still in the directory")
	}
	if _, ok := f.hub.Registry().Room(alice.ID); ok {
		t.Fatalf("alice still bound after the session ended")
	}

	if err := f.hub.Join(ctx, alice.ID, "quiz", ""); err != nil {
		t.Fatalf("re-join after the session ended: %v", err)
	}
}

func TestHubWaitThenLeave(t *testing.T) {
	f := startHub(t, DefaultOptions())
	a := f.connect(t, alice)
	ctx := context.Background()

	if err := f.hub.Join(ctx, alice.ID, "wordRace", ""); err != nil {
		t.Fatal(err)
	}
	a.expect(t, EventWaiting)

	if err := f.hub.Leave(ctx, alice.ID); err != nil {
		t.Fatal(err)
	}
	a.expect(t, EventLeftChallenge)

	f.connect(t, bob)
	f.connect(t, Player{ID: "carol", Name: "Carol"})
	if err := f.hub.Join(ctx, bob.ID, "wordRace", ""); err != nil {
		t.Fatal(err)
	}
	if err := f.hub.Join(ctx, "carol", "quiz", ""); err != nil {
		t.Fatal(err)
	}

	a.quiet(t, 50*time.Millisecond)

	if f.hub.Stats().Waiting != 2 {
		t.Fatalf("expected 2 waiting, got %+v", f.hub.Stats())
	}
}

func TestHubJoinErrors(t *testing.T) {
	f := startHub(t, DefaultOptions())
	ctx := context.Background()

	if err := f.hub.Join(ctx, "stranger", "quiz", ""); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}

	room, _, _ := f.pair(t, Quiz)

	if err := f.hub.Join(ctx, alice.ID, "quiz", ""); !errors.Is(err, ErrAlreadyInSession) {
		t.Fatalf("expected ErrAlreadyInSession, got %v", err)
	}
	if err := f.hub.Join(ctx, alice.ID, "tennis", ""); Code(err) != "BadRequest" {
		t.Fatalf("expected BadRequest, got %v", err)
	}
	if err := f.hub.Join(ctx, alice.ID, "quiz", "Z9"); Code(err) != "BadRequest" {
		t.Fatalf("expected BadRequest for a bad level, got %v", err)
	}

	if err := f.hub.Submit(ctx, alice.ID, "no-such-room", "q1", "x", 0); !errors.Is(err, ErrUnknownRoom) {
		t.Fatalf("expected ErrUnknownRoom, got %v", err)
	}

	f.connect(t, Player{ID: "carol", Name: "Carol"})
	if err := f.hub.Submit(ctx, "carol", room, "q1", "x", 0); !errors.Is(err, ErrUnknownRoom) {
		t.Fatalf("outsider submit: expected ErrUnknownRoom, got %v", err)
	}
}

func TestHubDisconnectEndsSession(t *testing.T) {
	f := startHub(t, DefaultOptions())
	room, a, b := f.pair(t, WordRace)
	ctx := context.Background()

	f.hub.Disconnect(ctx, bob.ID, b)

	if f.hub.Directory().Has(room) {
		t.Fatalf("session still listed after Disconnect returned")
	}

	left := a.waitFor(t, EventOpponentLeft).(OpponentLeftMessage)
	if left.Reason != DepartureDisconnected || left.WinnerXP != scoring.FullCompletionXP(scoring.A1) {
		t.Fatalf("unexpected opponentLeft: %+v", left)
	}
	a.expect(t, EventWordRaceResult)

	eventually(t, func() bool {
		return f.profiles.get(alice.ID) == scoring.FullCompletionXP(scoring.A1)
	}, "winner XP not granted")

	if f.profiles.get(bob.ID) != 0 {
		t.Fatalf("departed player earned XP")
	}

	if err := f.hub.Submit(ctx, alice.ID, room, "q1", "der Apfel", 0); !errors.Is(err, ErrUnknownRoom) {
		t.Fatalf("expected ErrUnknownRoom after departure, got %v", err)
	}
}

func TestHubSupersededDisconnectKeepsSession(t *testing.T) {
	f := startHub(t, DefaultOptions())
	room, _, oldBob := f.pair(t, WordRace)
	ctx := context.Background()

	newBob := newFakePeer()
	f.hub.Connect(ctx, bob.ID, bob.Name, newBob)
	if !oldBob.isClosed() {
		t.Fatalf("superseded connection was not closed")
	}

	f.hub.Disconnect(ctx, bob.ID, oldBob)

	if !f.hub.Directory().Has(room) {
		t.Fatalf("superseded disconnect ended the session")
	}

	if err := f.hub.Submit(ctx, bob.ID, room, "q1", "der Apfel", 0); err != nil {
		t.Fatalf("submit on the new connection: %v", err)
	}
	newBob.waitFor(t, EventAnswerResult)
}

func TestHubUsesLowerLevelAndReportsContentFailure(t *testing.T) {
	f := startHub(t, DefaultOptions())
	a, b := f.connect(t, alice), f.connect(t, bob)
	ctx := context.Background()

	f.source.mu.Lock()
	f.source.err = ErrNoQuestions
	f.source.mu.Unlock()

	if err := f.hub.Join(ctx, alice.ID, "quiz", "B2"); err != nil {
		t.Fatal(err)
	}
	if err := f.hub.Join(ctx, bob.ID, "quiz", "A2"); err != nil {
		t.Fatal(err)
	}

	if got := f.source.requested(); len(got) != 1 || got[0] != scoring.A2 {
		t.Fatalf("expected one request at A2, got %v", got)
	}

	for _, p := range []*fakePeer{a, b} {
		msg := p.waitFor(t, EventError).(ErrorMessage)
		if msg.Code != "BadRequest" {
			t.Fatalf("unexpected error event: %+v", msg)
		}
	}

	if st := f.hub.Stats(); st.Waiting != 0 || st.Sessions != 0 {
		t.Fatalf("failed match left state behind: %+v", st)
	}
}

func TestHubReapIdleSkipsBusyPlayers(t *testing.T) {
	f := startHub(t, DefaultOptions())
	f.pair(t, Quiz)
	carol := f.connect(t, Player{ID: "carol", Name: "Carol"})
	dave := f.connect(t, Player{ID: "dave", Name: "Dave"})

	if err := f.hub.Join(context.Background(), "dave", "quiz", ""); err != nil {
		t.Fatal(err)
	}

	if n := f.hub.ReapIdle(time.Now().Add(time.Hour)); n != 1 {
		t.Fatalf("expected one reaped connection, got %d", n)
	}
	if !carol.isClosed() || dave.isClosed() || f.peers[alice.ID].isClosed() {
		t.Fatalf("reaped the wrong connections")
	}
}

func TestHubErrorEvent(t *testing.T) {
	h := NewHub(DefaultOptions(), Deps{Questions: &staticSource{}})

	msg := h.ErrorEvent(ErrStaleSubmission)
	if msg.Type != EventError || msg.Code != "StaleSubmission" || msg.Message == "" {
		t.Fatalf("unexpected error event: %+v", msg)
	}
}

type brokenProfiles struct{}

func (brokenProfiles) Ensure(context.Context, string, string) (Player, error) {
	return Player{}, errors.New("redis: connection refused")
}

func (brokenProfiles) AddXP(context.Context, string, int, string) (int, error) {
	return 0, errors.New("redis: connection refused")
}

func TestHubConnectSurvivesProfileFailure(t *testing.T) {
	h := NewHub(DefaultOptions(), Deps{
		Questions: &staticSource{questions: germanWords()},
		Profiles:  brokenProfiles{},
	})

	peer := newFakePeer()
	p := h.Connect(context.Background(), alice.ID, alice.Name, peer)
	if p.ID != alice.ID || p.Name != alice.Name || p.XP != 0 {
		t.Fatalf("unexpected fallback player: %+v", p)
	}

	hello := peer.expect(t, EventConnected).(ConnectedMessage)
	if hello.PlayerID != alice.ID || hello.Username != alice.Name {
		t.Fatalf("unexpected connected event: %+v", hello)
	}
	if _, ok := h.Registry().Player(alice.ID); !ok {
		t.Fatalf("player not registered after a profile failure")
	}
}

func TestHubRoomsListsRunningSessions(t *testing.T) {
	f := startHub(t, DefaultOptions())
	ctx := context.Background()

	rooms, err := f.hub.Rooms(ctx)
	if err != nil || len(rooms) != 0 {
		t.Fatalf("expected no rooms, got %v (%v)", rooms, err)
	}

	room, _, _ := f.pair(t, Quiz)

	if err := f.hub.Submit(ctx, alice.ID, room, "q1", "der Apfel", 0); err != nil {
		t.Fatal(err)
	}

	rooms, err = f.hub.Rooms(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rooms) != 1 || rooms[0].RoomID != room || rooms[0].GameType != Quiz || rooms[0].State != "playing" {
		t.Fatalf("unexpected rooms: %+v", rooms)
	}

	players := rooms[0].Players
	if len(players) != 2 || players[0].Username != "Alice" || players[0].Answered != 1 || players[1].Answered != 0 {
		t.Fatalf("unexpected room players: %+v", players)
	}

	if err := f.hub.Leave(ctx, bob.ID); err != nil {
		t.Fatal(err)
	}

	rooms, err = f.hub.Rooms(ctx)
	if err != nil || len(rooms) != 0 {
		t.Fatalf("finished room still listed: %v (%v)", rooms, err)
	}
}
