package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"case-console/internal/model"
	"case-console/internal/remote"
)

type fakeStore struct {
	mu sync.Mutex

	records []model.CaseRecord

	listErr    error
	createErr  error
	deleteErr  error
	reorderErr error

	// When set, Create and Reorder signal entered and wait for release.
	entered chan struct{}
	release chan struct{}

	listCalls    int
	createCalls  int
	deleteCalls  []string
	reorderCalls [][]string
}

func newFakeStore(ids ...string) *fakeStore {
	s := &fakeStore{}
	for _, id := range ids {
		s.records = append(s.records, model.CaseRecord{ID: id, Title: "case " + id})
	}
	return s
}

func (s *fakeStore) block() {
	s.mu.Lock()
	entered, release := s.entered, s.release
	s.mu.Unlock()
	if entered == nil {
		return
	}
	entered <- struct{}{}
	<-release
}

func (s *fakeStore) List(context.Context) ([]model.CaseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]model.CaseRecord(nil), s.records...), nil
}

func (s *fakeStore) Create(_ context.Context, fields remote.CaseFields, _ remote.ImagePayload) (model.CaseRecord, error) {
	s.block()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	if s.createErr != nil {
		return model.CaseRecord{}, s.createErr
	}
	record := model.CaseRecord{ID: fmt.Sprintf("new-%d", s.createCalls), Title: fields.Title}
	s.records = append(s.records, record)
	return record, nil
}

func (s *fakeStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteCalls = append(s.deleteCalls, id)
	if s.deleteErr != nil {
		return s.deleteErr
	}
	kept := s.records[:0:0]
	for _, r := range s.records {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	s.records = kept
	return nil
}

func (s *fakeStore) Reorder(_ context.Context, ids []string) error {
	s.block()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reorderCalls = append(s.reorderCalls, append([]string(nil), ids...))
	return s.reorderErr
}

type recordingView struct {
	mu      sync.Mutex
	notices []Notice
	resets  int
}

func (v *recordingView) Notify(n Notice) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.notices = append(v.notices, n)
}

func (v *recordingView) ResetForm() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.resets++
}

func (v *recordingView) last() Notice {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.notices) == 0 {
		return Notice{}
	}
	return v.notices[len(v.notices)-1]
}

func ids(records []model.CaseRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func loaded(t *testing.T, store *fakeStore) (*Controller, *recordingView) {
	t.Helper()
	view := &recordingView{}
	c := NewController(store, view)
	require.NoError(t, c.Load(context.Background()))
	return c, view
}

var validImage = remote.ImagePayload{Filename: "site.png", Data: []byte{0x89, 'P', 'N', 'G'}}

func TestLoadReplacesItemsAndClearsDirty(t *testing.T) {
	store := newFakeStore("A", "B", "C")
	c, _ := loaded(t, store)
	assert.Equal(t, []string{"A", "B", "C"}, ids(c.Items()))

	require.True(t, c.Reorder(0, 2))
	require.True(t, c.Dirty())

	store.records = []model.CaseRecord{{ID: "C"}, {ID: "A"}}
	require.NoError(t, c.Load(context.Background()))

	assert.Equal(t, []string{"C", "A"}, ids(c.Items()))
	assert.False(t, c.Dirty())
}

func TestLoadFailureKeepsItems(t *testing.T) {
	store := newFakeStore("A", "B")
	c, view := loaded(t, store)

	store.listErr = &remote.NetworkError{Op: "list cases", Err: errors.New("connection refused")}
	err := c.Load(context.Background())
	require.Error(t, err)

	assert.Equal(t, []string{"A", "B"}, ids(c.Items()))
	assert.Equal(t, LevelError, view.last().Level)
}

func TestReorderSpliceProperty(t *testing.T) {
	for n := 1; n <= 6; n++ {
		base := make([]string, n)
		for i := range base {
			base[i] = fmt.Sprintf("id-%d", i)
		}

		for src := 0; src < n; src++ {
			for dst := 0; dst <= n+1; dst++ {
				store := newFakeStore(base...)
				c, _ := loaded(t, store)

				changed := c.Reorder(src, dst)
				got := ids(c.Items())

				want := dst
				if want > n-1 {
					want = n - 1
				}

				assert.ElementsMatch(t, base, got, "n=%d src=%d dst=%d", n, src, dst)
				assert.Equal(t, base[src], got[want], "n=%d src=%d dst=%d", n, src, dst)

				var others, gotOthers []string
				for _, id := range base {
					if id != base[src] {
						others = append(others, id)
					}
				}
				for _, id := range got {
					if id != base[src] {
						gotOthers = append(gotOthers, id)
					}
				}
				assert.Equal(t, others, gotOthers, "n=%d src=%d dst=%d", n, src, dst)

				assert.Equal(t, want != src, changed)
				assert.Equal(t, want != src, c.Dirty())
			}
		}
	}
}

func TestReorderNoOps(t *testing.T) {
	tests := []struct {
		name string
		src  int
		dst  int
	}{
		{name: "same index", src: 1, dst: 1},
		{name: "no destination", src: 1, dst: -1},
		{name: "source below range", src: -1, dst: 0},
		{name: "source past end", src: 3, dst: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := loaded(t, newFakeStore("A", "B", "C"))

			assert.False(t, c.Reorder(tt.src, tt.dst))
			assert.Equal(t, []string{"A", "B", "C"}, ids(c.Items()))
			assert.False(t, c.Dirty())
		})
	}
}

func TestReorderNeverCallsStore(t *testing.T) {
	store := newFakeStore("A", "B", "C")
	c, _ := loaded(t, store)

	c.Reorder(0, 2)
	c.Move(1, Up)

	assert.Equal(t, 1, store.listCalls)
	assert.Empty(t, store.reorderCalls)
}

func TestMove(t *testing.T) {
	c, _ := loaded(t, newFakeStore("A", "B", "C"))

	assert.False(t, c.Move(0, Up))
	assert.False(t, c.Move(2, Down))
	assert.False(t, c.Dirty())

	assert.True(t, c.Move(0, Down))
	assert.Equal(t, []string{"B", "A", "C"}, ids(c.Items()))

	assert.True(t, c.Move(2, Up))
	assert.Equal(t, []string{"B", "C", "A"}, ids(c.Items()))
	assert.True(t, c.Dirty())
}

func TestMoveOnEmptyList(t *testing.T) {
	c, _ := loaded(t, newFakeStore())

	assert.False(t, c.Move(0, Up))
	assert.False(t, c.Move(0, Down))
}

func TestReorderThenCommitScenario(t *testing.T) {
	store := newFakeStore("A", "B", "C")
	c, view := loaded(t, store)

	require.True(t, c.Reorder(0, 2))
	assert.Equal(t, []string{"B", "C", "A"}, ids(c.Items()))
	assert.True(t, c.Dirty())

	require.NoError(t, c.CommitOrder(context.Background()))

	assert.False(t, c.Dirty())
	assert.Equal(t, []string{"B", "C", "A"}, ids(c.Items()))
	require.Len(t, store.reorderCalls, 1)
	assert.Equal(t, []string{"B", "C", "A"}, store.reorderCalls[0])
	assert.Equal(t, Notice{Level: LevelSuccess, Title: "order saved"}, view.last())
}

func TestCommitOrderWhenCleanIsNoOp(t *testing.T) {
	store := newFakeStore("A", "B")
	c, _ := loaded(t, store)

	require.NoError(t, c.CommitOrder(context.Background()))
	assert.Empty(t, store.reorderCalls)
}

func TestCommitOrderFailureKeepsLocalOrder(t *testing.T) {
	store := newFakeStore("A", "B", "C")
	c, view := loaded(t, store)
	require.True(t, c.Reorder(2, 0))

	store.reorderErr = &remote.ServerError{Op: "reorder cases", Status: http.StatusConflict, Code: "ORDER_CONFLICT", Message: "case list changed on the server"}
	err := c.CommitOrder(context.Background())
	require.Error(t, err)

	var serverErr *remote.ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, http.StatusConflict, serverErr.Status)

	snap := c.Snapshot()
	assert.Equal(t, []string{"C", "A", "B"}, ids(snap.Items))
	assert.True(t, snap.Dirty)
	assert.False(t, snap.Committing)
	assert.Equal(t, LevelError, view.last().Level)
	assert.Equal(t, "case list changed on the server", view.last().Detail)

	store.reorderErr = nil
	require.NoError(t, c.CommitOrder(context.Background()))
	assert.False(t, c.Dirty())
}

func TestCommitOrderRejectsSecondCommitInFlight(t *testing.T) {
	store := newFakeStore("A", "B", "C")
	c, _ := loaded(t, store)
	require.True(t, c.Reorder(0, 2))

	store.entered = make(chan struct{})
	store.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		done <- c.CommitOrder(context.Background())
	}()
	<-store.entered

	assert.True(t, c.Snapshot().Committing)
	assert.ErrorIs(t, c.CommitOrder(context.Background()), ErrCommitInFlight)

	// A local edit during the flight stays unsaved after the commit lands.
	require.True(t, c.Move(0, Down))

	close(store.release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("commit did not finish")
	}

	snap := c.Snapshot()
	assert.False(t, snap.Committing)
	assert.True(t, snap.Dirty)
	assert.Equal(t, []string{"C", "B", "A"}, ids(snap.Items))
	require.Len(t, store.reorderCalls, 1)
	assert.Equal(t, []string{"B", "C", "A"}, store.reorderCalls[0])
}

func TestLoadWaitsForCommitInFlight(t *testing.T) {
	store := newFakeStore("A", "B", "C")
	c, _ := loaded(t, store)
	require.True(t, c.Reorder(0, 2))

	store.entered = make(chan struct{})
	store.release = make(chan struct{})

	committed := make(chan error, 1)
	go func() {
		committed <- c.CommitOrder(context.Background())
	}()
	<-store.entered

	reloaded := make(chan error, 1)
	go func() {
		reloaded <- c.Load(context.Background())
	}()

	listCalls := func() int {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.listCalls
	}
	assert.Never(t, func() bool { return listCalls() > 1 }, 100*time.Millisecond, 10*time.Millisecond,
		"load must not reach the store while a commit is in flight")

	store.mu.Lock()
	store.records = []model.CaseRecord{{ID: "B"}, {ID: "C"}, {ID: "A"}}
	store.mu.Unlock()
	close(store.release)

	for _, ch := range []chan error{committed, reloaded} {
		select {
		case err := <-ch:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("operation did not finish")
		}
	}

	assert.Equal(t, 2, listCalls())
	assert.Equal(t, []string{"B", "C", "A"}, ids(c.Items()))
	assert.False(t, c.Dirty())
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name   string
		fields remote.CaseFields
		image  remote.ImagePayload
		field  string
	}{
		{name: "missing image", fields: remote.CaseFields{Title: "Bridge"}, field: "image"},
		{name: "empty image", fields: remote.CaseFields{Title: "Bridge"}, image: remote.ImagePayload{Filename: "x.png"}, field: "image"},
		{name: "blank title", fields: remote.CaseFields{Title: "   "}, image: validImage, field: "title"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore("A")
			c, view := loaded(t, store)

			_, err := c.Create(context.Background(), tt.fields, tt.image)

			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.field, validationErr.Field)
			assert.Equal(t, 0, store.createCalls)
			assert.Equal(t, 1, store.listCalls)
			assert.Equal(t, LevelWarning, view.last().Level)
			assert.False(t, c.Snapshot().Creating)
		})
	}
}

func TestCreateSuccessResetsFormAndReloads(t *testing.T) {
	store := newFakeStore("A", "B")
	c, view := loaded(t, store)
	require.True(t, c.Reorder(0, 1))

	created, err := c.Create(context.Background(), remote.CaseFields{Title: "Harbor wall", ServiceType: "industrial"}, validImage)
	require.NoError(t, err)
	assert.Equal(t, "Harbor wall", created.Title)

	assert.Equal(t, 1, view.resets)
	assert.Equal(t, 2, store.listCalls)
	assert.Equal(t, []string{"A", "B", "new-1"}, ids(c.Items()))
	assert.False(t, c.Dirty())
	assert.False(t, c.Snapshot().Creating)
	assert.Equal(t, LevelSuccess, view.notices[0].Level)
}

func TestCreateReloadFailureWarns(t *testing.T) {
	store := newFakeStore("A")
	c, view := loaded(t, store)
	store.listErr = &remote.NetworkError{Op: "list cases", Err: errors.New("connection reset")}

	_, err := c.Create(context.Background(), remote.CaseFields{Title: "Harbor wall"}, validImage)
	require.NoError(t, err)

	assert.Equal(t, LevelSuccess, view.notices[0].Level)
	notice := view.last()
	assert.Equal(t, LevelWarning, notice.Level)
	assert.Equal(t, "list may be out of date", notice.Title)
}

func TestCreateServerFailureSurfacesMessage(t *testing.T) {
	store := newFakeStore("A")
	c, view := loaded(t, store)
	store.createErr = &remote.ServerError{Op: "create case", Status: http.StatusUnsupportedMediaType, Code: "UNSUPPORTED_TYPE", Message: "image type is not allowed"}

	_, err := c.Create(context.Background(), remote.CaseFields{Title: "Harbor wall"}, validImage)
	require.Error(t, err)

	assert.Equal(t, 0, view.resets)
	assert.Equal(t, []string{"A"}, ids(c.Items()))
	assert.Equal(t, 1, store.listCalls)
	assert.False(t, c.Snapshot().Creating)

	notice := view.last()
	assert.Equal(t, LevelError, notice.Level)
	assert.Contains(t, notice.Title, "server error")
	assert.Equal(t, "image type is not allowed", notice.Detail)
}

func TestCreateNetworkFailureIsGeneric(t *testing.T) {
	store := newFakeStore("A")
	c, view := loaded(t, store)
	store.createErr = &remote.NetworkError{Op: "create case", Err: errors.New("dial tcp: connection refused")}

	_, err := c.Create(context.Background(), remote.CaseFields{Title: "Harbor wall"}, validImage)
	require.Error(t, err)

	notice := view.last()
	assert.Contains(t, notice.Title, "network error")
	assert.Empty(t, notice.Detail)
	assert.False(t, c.Snapshot().Creating)
}

func TestCreateRejectsConcurrentCreate(t *testing.T) {
	store := newFakeStore()
	c, _ := loaded(t, store)
	store.entered = make(chan struct{})
	store.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := c.Create(context.Background(), remote.CaseFields{Title: "first"}, validImage)
		done <- err
	}()
	<-store.entered

	assert.True(t, c.Snapshot().Creating)
	_, err := c.Create(context.Background(), remote.CaseFields{Title: "second"}, validImage)
	assert.ErrorIs(t, err, ErrBusy)

	close(store.release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("create did not finish")
	}
	assert.False(t, c.Snapshot().Creating)
	assert.Equal(t, 1, store.createCalls)
}

func TestConfirmDeleteReloadsMembership(t *testing.T) {
	store := newFakeStore("A", "B", "C")
	c, view := loaded(t, store)

	require.NoError(t, c.RequestDelete("B"))
	assert.Equal(t, "B", c.Snapshot().PendingDelete)
	assert.Empty(t, store.deleteCalls)

	// Membership comes from the server, not a local splice.
	store.records = append(store.records, model.CaseRecord{ID: "D"})

	require.NoError(t, c.ConfirmDelete(context.Background()))

	assert.Equal(t, []string{"B"}, store.deleteCalls)
	assert.Equal(t, []string{"A", "C", "D"}, ids(c.Items()))
	assert.Empty(t, c.Snapshot().PendingDelete)
	assert.False(t, c.Dirty())
	assert.Equal(t, 2, store.listCalls)
	assert.Equal(t, LevelSuccess, view.notices[0].Level)
}

func TestConfirmDeleteReloadFailureDropsRecordAndWarns(t *testing.T) {
	store := newFakeStore("A", "B", "C")
	c, view := loaded(t, store)
	require.True(t, c.Reorder(0, 2))
	require.NoError(t, c.RequestDelete("B"))
	store.listErr = &remote.NetworkError{Op: "list cases", Err: errors.New("connection reset")}

	require.NoError(t, c.ConfirmDelete(context.Background()))

	snap := c.Snapshot()
	assert.Equal(t, []string{"C", "A"}, ids(snap.Items))
	assert.True(t, snap.Dirty)
	assert.Empty(t, snap.PendingDelete)
	assert.Equal(t, LevelWarning, view.last().Level)

	store.listErr = nil
	require.NoError(t, c.CommitOrder(context.Background()))
	require.Len(t, store.reorderCalls, 1)
	assert.Equal(t, []string{"C", "A"}, store.reorderCalls[0])
}

func TestConfirmDeleteFailureLeavesListAndClearsTarget(t *testing.T) {
	store := newFakeStore("A", "B", "C")
	c, view := loaded(t, store)
	require.True(t, c.Reorder(0, 2))

	store.deleteErr = &remote.ServerError{Op: "delete case", Status: http.StatusNotFound, Code: "NOT_FOUND", Message: "case not found"}
	require.NoError(t, c.RequestDelete("B"))

	err := c.ConfirmDelete(context.Background())
	require.Error(t, err)

	snap := c.Snapshot()
	assert.Equal(t, []string{"B", "C", "A"}, ids(snap.Items))
	assert.True(t, snap.Dirty)
	assert.Empty(t, snap.PendingDelete)
	assert.Equal(t, 1, store.listCalls)
	assert.Equal(t, LevelError, view.last().Level)
}

func TestDeleteConfirmationFlow(t *testing.T) {
	store := newFakeStore("A", "B")
	c, _ := loaded(t, store)

	assert.ErrorIs(t, c.ConfirmDelete(context.Background()), ErrNoPendingDelete)
	assert.ErrorIs(t, c.RequestDelete("missing"), ErrUnknownCase)

	require.NoError(t, c.RequestDelete("A"))
	c.CancelDelete()
	assert.ErrorIs(t, c.ConfirmDelete(context.Background()), ErrNoPendingDelete)
	assert.Empty(t, store.deleteCalls)
}

func TestNilViewIsAllowed(t *testing.T) {
	c := NewController(newFakeStore("A"), nil)
	require.NoError(t, c.Load(context.Background()))
	_, err := c.Create(context.Background(), remote.CaseFields{}, remote.ImagePayload{})
	require.Error(t, err)
}
