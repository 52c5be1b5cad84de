package watchlist

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"MarketScout/internal/store"
)

type flakyStore struct {
	*store.MemoryStore
	failPut bool
}

func (f *flakyStore) Put(key string, value []byte) error {
	if f.failPut {
		return errors.New("write failed")
	}
	return f.MemoryStore.Put(key, value)
}

func newRegistry(t *testing.T, s store.Store) *Registry {
	t.Helper()
	r, err := NewRegistry(s, nil, nil)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return r
}

func TestValidateTicker(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"AAPL", true},
		{"brk1", true},
		{"A", true},
		{"GOOGL", true},
		{"", false},
		{"TOOLONG", false},
		{"BRK.B", false},
		{"BF B", false},
		{"ÄPL", false},
	}
	for _, tt := range tests {
		if got := ValidateTicker(tt.in); got != tt.want {
			t.Errorf("ValidateTicker(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRegistry_DefaultContainsProtected(t *testing.T) {
	s := store.NewMemoryStore()
	r := newRegistry(t, s)
	if got := r.List(); !reflect.DeepEqual(got, []string{"QQQ", "SPY"}) {
		t.Errorf("unexpected default list %v", got)
	}
	if _, err := s.Get(stateKey); err != nil {
		t.Errorf("default watchlist was not persisted: %v", err)
	}
}

func TestRegistry_AddRemove(t *testing.T) {
	r := newRegistry(t, store.NewMemoryStore())

	if !r.Add("nvda") {
		t.Fatal("expected add to succeed")
	}
	if r.Add("NVDA") {
		t.Error("duplicate add should fail")
	}
	if r.Add("BRK.B") {
		t.Error("malformed add should fail")
	}
	if !r.IsTracked("nvda") {
		t.Error("expected NVDA to be tracked")
	}
	if got := r.Custom(); !reflect.DeepEqual(got, []string{"NVDA"}) {
		t.Errorf("unexpected custom list %v", got)
	}

	if r.Remove("TSLA") {
		t.Error("removing an unknown ticker should fail")
	}
	if !r.Remove("nvda") {
		t.Error("expected remove to succeed")
	}
	if r.IsTracked("NVDA") {
		t.Error("NVDA should no longer be tracked")
	}
}

func TestRegistry_ProtectedNeverRemoved(t *testing.T) {
	r := newRegistry(t, store.NewMemoryStore())
	before := r.List()
	for i := 0; i < 5; i++ {
		if r.Remove("SPY") || r.Remove("qqq") {
			t.Fatal("protected ticker removal must fail")
		}
	}
	if got := r.List(); !reflect.DeepEqual(got, before) {
		t.Errorf("watchlist changed: %v -> %v", before, got)
	}
}

func TestRegistry_RollbackOnSaveFailure(t *testing.T) {
	fs := &flakyStore{MemoryStore: store.NewMemoryStore()}
	r := newRegistry(t, fs)
	r.Add("AMD")

	fs.failPut = true
	if r.Add("INTC") {
		t.Error("add should fail when persistence fails")
	}
	if r.IsTracked("INTC") {
		t.Error("failed add was not rolled back")
	}
	if r.Remove("AMD") {
		t.Error("remove should fail when persistence fails")
	}
	if !r.IsTracked("AMD") {
		t.Error("failed remove was not rolled back")
	}
}

func TestRegistry_LoadReunionsProtected(t *testing.T) {
	s := store.NewMemoryStore()
	data, _ := json.Marshal(state{Watchlist: []string{"aapl", "MSFT", "AAPL", "bad.ticker"}})
	s.Put(stateKey, data)

	r := newRegistry(t, s)
	want := []string{"AAPL", "MSFT", "QQQ", "SPY"}
	if got := r.List(); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	st := r.Status()
	if st.TotalTracked != 4 || st.ProtectedCount != 2 || st.CustomCount != 2 {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestRegistry_PersistsSortedDocument(t *testing.T) {
	s := store.NewMemoryStore()
	r := newRegistry(t, s)
	r.Add("ZM")
	r.Add("AMD")

	st, err := loadState(s)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(st.Watchlist, []string{"AMD", "QQQ", "SPY", "ZM"}) {
		t.Errorf("unexpected persisted list %v", st.Watchlist)
	}
	if !reflect.DeepEqual(st.Protected, []string{"QQQ", "SPY"}) {
		t.Errorf("unexpected persisted protected %v", st.Protected)
	}
	if st.LastUpdated.IsZero() {
		t.Error("last_updated not set")
	}
}

func TestRegistry_CorruptStateRecreated(t *testing.T) {
	s := store.NewMemoryStore()
	s.Put(stateKey, []byte("garbage"))
	r := newRegistry(t, s)
	if got := r.List(); !reflect.DeepEqual(got, []string{"QQQ", "SPY"}) {
		t.Errorf("unexpected list %v", got)
	}
}

func TestNewRegistry_InvalidProtected(t *testing.T) {
	if _, err := NewRegistry(store.NewMemoryStore(), []string{"S&P"}, nil); err == nil {
		t.Error("expected error for malformed protected ticker")
	}
}

func TestRegistry_ReloadSeesEditsFromAnotherRegistry(t *testing.T) {
	fs, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	collector := newRegistry(t, fs)
	cli := newRegistry(t, fs)

	if !cli.Add("NVDA") {
		t.Fatal("add failed")
	}
	if collector.IsTracked("NVDA") {
		t.Fatal("edit visible before reload")
	}
	if err := collector.Reload(); err != nil {
		t.Fatal(err)
	}
	if got, want := collector.List(), []string{"NVDA", "QQQ", "SPY"}; !reflect.DeepEqual(got, want) {
		t.Errorf("after add: got %v, want %v", got, want)
	}

	if !cli.Remove("NVDA") {
		t.Fatal("remove failed")
	}
	if err := collector.Reload(); err != nil {
		t.Fatal(err)
	}
	if got, want := collector.List(), []string{"QQQ", "SPY"}; !reflect.DeepEqual(got, want) {
		t.Errorf("after remove: got %v, want %v", got, want)
	}
}

func TestRegistry_ReloadKeepsProtectedAndLastList(t *testing.T) {
	s := store.NewMemoryStore()
	r := newRegistry(t, s)
	r.Add("AMD")

	doc, _ := json.Marshal(map[string]any{"watchlist": []string{"tsla", "bad-ticker"}})
	s.Put(stateKey, doc)
	if err := r.Reload(); err != nil {
		t.Fatal(err)
	}
	if got, want := r.List(), []string{"QQQ", "SPY", "TSLA"}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	s.Put(stateKey, []byte("{broken"))
	if err := r.Reload(); err == nil {
		t.Error("expected error for corrupt state")
	}
	if got, want := r.List(), []string{"QQQ", "SPY", "TSLA"}; !reflect.DeepEqual(got, want) {
		t.Errorf("corrupt reload changed list: got %v", got)
	}
}

func TestRegistry_TrimsWhitespace(t *testing.T) {
	r := newRegistry(t, store.NewMemoryStore())

	if !r.Add(" amd ") {
		t.Fatal("padded ticker should be accepted")
	}
	if !r.IsTracked("AMD") || !r.IsTracked(" amd") {
		t.Error("expected AMD tracked")
	}
	if r.Add("AMD") {
		t.Error("duplicate after trim should be rejected")
	}
	if !r.Remove(" AMD") {
		t.Error("padded remove should succeed")
	}
}
