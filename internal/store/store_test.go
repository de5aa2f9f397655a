package store_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/toolbridge/toolbridge/internal/store"
)

func TestAppendCreatesConversation(t *testing.T) {
	s := store.New(store.Config{})

	msg, id := s.Append("", store.Message{Role: store.RoleUser, Content: "hello"})
	if id == "" {
		t.Fatal("no conversation id assigned")
	}
	if msg.ID == "" || msg.CreatedAt.IsZero() {
		t.Errorf("message not filled in: %+v", msg)
	}

	c, ok := s.Get(id)
	if !ok {
		t.Fatal("conversation not stored")
	}
	if len(c.Messages) != 1 || c.Messages[0].Content != "hello" {
		t.Errorf("unexpected messages: %+v", c.Messages)
	}
}

func TestAppendTruncatesOldestMessages(t *testing.T) {
	s := store.New(store.Config{MaxMessagesPerConversation: 3})

	var id string
	for i := 0; i < 5; i++ {
		_, id = s.Append(id, store.Message{Role: store.RoleUser, Content: fmt.Sprintf("m%d", i)})
	}

	c, _ := s.Get(id)
	if len(c.Messages) != 3 {
		t.Fatalf("len(messages) = %d, want 3", len(c.Messages))
	}
	if c.Messages[0].Content != "m2" || c.Messages[2].Content != "m4" {
		t.Errorf("wrong messages kept: %+v", c.Messages)
	}
	if got := s.Stats().TruncatedMessages; got != 2 {
		t.Errorf("truncated = %d, want 2", got)
	}
}

func TestCapacityEvictsLeastRecentlyActive(t *testing.T) {
	s := store.New(store.Config{MaxConversations: 2})

	_, a := s.Append("", store.Message{Role: store.RoleUser, Content: "first"})
	time.Sleep(2 * time.Millisecond)
	_, b := s.Append("", store.Message{Role: store.RoleUser, Content: "second"})
	time.Sleep(2 * time.Millisecond)

	// Revisit a so that b becomes the eviction candidate.
	s.GetOrCreate(a)
	time.Sleep(2 * time.Millisecond)

	_, c := s.Append("", store.Message{Role: store.RoleUser, Content: "third"})

	if _, ok := s.Get(b); ok {
		t.Error("least recently active conversation survived eviction")
	}
	for _, id := range []string{a, c} {
		if _, ok := s.Get(id); !ok {
			t.Errorf("conversation %s evicted unexpectedly", id)
		}
	}
	if got := s.Stats().EvictedByCapacity; got != 1 {
		t.Errorf("evicted by capacity = %d, want 1", got)
	}
}

func TestGetOrCreateBumpsActivity(t *testing.T) {
	s := store.New(store.Config{})

	_, id := s.Append("", store.Message{Role: store.RoleUser, Content: "hello"})
	before, _ := s.Get(id)

	time.Sleep(2 * time.Millisecond)
	s.GetOrCreate(id)

	after, _ := s.Get(id)
	if !after.LastActivity.After(before.LastActivity) {
		t.Errorf("LastActivity not bumped: before %v, after %v", before.LastActivity, after.LastActivity)
	}
}

func TestCapabilitySnapshotRecorded(t *testing.T) {
	s := store.New(store.Config{})

	_, id := s.Append("", store.Message{Role: store.RoleUser, Content: "hello"})
	s.SetCapabilitySnapshot(id, []string{"calculator", "get_weather"})

	c, _ := s.Get(id)
	if len(c.CapabilitySnapshot) != 2 || c.CapabilitySnapshot[0] != "calculator" {
		t.Errorf("snapshot = %v, want [calculator get_weather]", c.CapabilitySnapshot)
	}

	// Snapshot on an unknown id must not create a conversation.
	s.SetCapabilitySnapshot("nope", []string{"calculator"})
	if _, ok := s.Get("nope"); ok {
		t.Error("snapshot created a conversation")
	}
}

func TestSweepRemovesAgedConversations(t *testing.T) {
	s := store.New(store.Config{MaxAge: time.Minute})

	_, old := s.Append("", store.Message{Role: store.RoleUser, Content: "stale"})
	_, fresh := s.Append("", store.Message{Role: store.RoleUser, Content: "fresh"})

	removed := s.Sweep(time.Now().Add(2 * time.Minute))
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	if _, ok := s.Get(old); ok {
		t.Error("aged conversation survived sweep")
	}
	if _, ok := s.Get(fresh); ok {
		t.Error("aged conversation survived sweep")
	}
	if got := s.Stats().EvictedByAge; got != 2 {
		t.Errorf("evicted by age = %d, want 2", got)
	}
}

func TestListOrdersByActivity(t *testing.T) {
	s := store.New(store.Config{})

	_, a := s.Append("", store.Message{Role: store.RoleUser, Content: "a"})
	time.Sleep(2 * time.Millisecond)
	_, b := s.Append("", store.Message{Role: store.RoleUser, Content: "b"})
	time.Sleep(2 * time.Millisecond)
	s.Append(a, store.Message{Role: store.RoleAssistant, Content: "reply"})

	list := s.List()
	if len(list) != 2 {
		t.Fatalf("len(list) = %d, want 2", len(list))
	}
	if list[0].ID != a || list[1].ID != b {
		t.Errorf("wrong order: %s, %s (want %s, %s)", list[0].ID, list[1].ID, a, b)
	}
	if list[0].MessageCount != 2 {
		t.Errorf("message count = %d, want 2", list[0].MessageCount)
	}
}

func TestSearchIsCaseInsensitive(t *testing.T) {
	s := store.New(store.Config{})

	_, hit := s.Append("", store.Message{Role: store.RoleUser, Content: "the Weather in Berlin"})
	s.Append("", store.Message{Role: store.RoleUser, Content: "unrelated"})

	got := s.Search("weather")
	if len(got) != 1 || got[0].ID != hit {
		t.Fatalf("search returned %+v, want only %s", got, hit)
	}
	if len(s.Search("nothing-matches")) != 0 {
		t.Error("search matched nothing, expected empty result")
	}
}

func TestDelete(t *testing.T) {
	s := store.New(store.Config{})
	_, id := s.Append("", store.Message{Role: store.RoleUser, Content: "x"})

	if !s.Delete(id) {
		t.Error("Delete returned false for existing conversation")
	}
	if s.Delete(id) {
		t.Error("Delete returned true for missing conversation")
	}
}

func TestProperty_BoundsAlwaysHold(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("store never exceeds its configured bounds",
		prop.ForAll(
			func(contents []string) bool {
				s := store.New(store.Config{
					MaxConversations:           4,
					MaxMessagesPerConversation: 3,
				})

				// Spread messages over a rotating set of conversations.
				ids := make([]string, 0, 8)
				for i, content := range contents {
					var id string
					if len(ids) > 0 && i%2 == 0 {
						id = ids[i%len(ids)]
					}
					_, id = s.Append(id, store.Message{Role: store.RoleUser, Content: content})
					ids = append(ids, id)
				}

				st := s.Stats()
				if st.Conversations > 4 {
					return false
				}
				for _, sum := range s.List() {
					if sum.MessageCount > 3 {
						return false
					}
				}
				return true
			},
			gen.SliceOf(gen.AlphaString()),
		))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
