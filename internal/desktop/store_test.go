package desktop

import (
	"sync"
	"testing"
	"time"
)

func TestStore_DispatchNotifiesSubscribers(t *testing.T) {
	st := NewStore(Reducer{})
	var seen []View
	st.Subscribe(func(s State) { seen = append(seen, s.View) })
	st.Subscribe(nil)

	st.Dispatch(SetView{View: ViewFiles})
	st.Dispatch(ToggleSidebar{})

	if len(seen) != 2 || seen[0] != ViewFiles {
		t.Fatalf("unexpected notifications %v", seen)
	}
	if st.State().SidebarOpen {
		t.Fatal("expected sidebar closed")
	}
}

func TestStore_StartsFromInitialState(t *testing.T) {
	s := NewStore(Reducer{}).State()
	if !s.SidebarOpen || s.View != ViewTerminal || len(s.Terminal.Output) != 1 || s.Terminal.Output[0] != WelcomeLine {
		t.Fatalf("unexpected initial state %+v", s)
	}
}

func TestStore_NotificationsFollowDispatchOrder(t *testing.T) {
	st := NewStore(Reducer{})
	entered := make(chan struct{})
	release := make(chan struct{})

	var mu sync.Mutex
	var seen []uint64
	first := true
	st.Subscribe(func(s State) {
		mu.Lock()
		block := first
		first = false
		mu.Unlock()
		if block {
			close(entered)
			<-release
		}
		mu.Lock()
		seen = append(seen, s.Version)
		mu.Unlock()
	})

	firstDone := make(chan State, 1)
	go func() { firstDone <- st.Dispatch(ToggleSidebar{}) }()
	<-entered

	secondDone := make(chan State, 1)
	go func() { secondDone <- st.Dispatch(SetView{View: ViewFiles}) }()
	select {
	case <-secondDone:
		t.Fatal("second dispatch finished while the first was still notifying")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	if got := (<-firstDone).Version; got != 1 {
		t.Fatalf("first dispatch version = %d", got)
	}
	last := <-secondDone
	if last.Version != 2 || last.View != ViewFiles {
		t.Fatalf("unexpected second state %+v", last)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Fatalf("subscriber saw versions %v, want [1 2]", seen)
	}
	if got := st.State(); got.Version != 2 || got.View != ViewFiles {
		t.Fatalf("unexpected store state %+v", got)
	}
}

func TestStore_ReducerLeavesVersionAlone(t *testing.T) {
	s := Reduce(InitialState(), ToggleSidebar{})
	if s.Version != 0 {
		t.Fatalf("pure reduce changed version to %d", s.Version)
	}
}
