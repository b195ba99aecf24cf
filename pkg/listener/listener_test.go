package listener_test

import (
	"context"
	"errors"
	"iter"
	"mwdb/pkg/listener"
	mocklistener "mwdb/pkg/listener/mock"
	"mwdb/pkg/serrors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type obj string

func (o obj) ID() string { return string(o) }

func page(ids ...string) []obj {
	out := make([]obj, 0, len(ids))
	for _, id := range ids {
		out = append(out, obj(id))
	}

	return out
}

// scripted returns its pages in order and keeps repeating the last one.
type scripted struct {
	pages [][]obj
	calls int
}

func (s *scripted) FetchRecent(_ context.Context, _ listener.ObjectType, _ string, _ int) ([]obj, error) {
	i := min(s.calls, len(s.pages)-1)
	s.calls++

	return s.pages[i], nil
}

func collect(seq iter.Seq2[obj, error]) ([]string, error) {
	var ids []string
	for o, err := range seq {
		if err != nil {
			return ids, err
		}
		ids = append(ids, o.ID())
	}

	return ids, nil
}

func nonBlocking() listener.Options {
	opts := listener.DefaultOptions(listener.ObjectTypeFile)
	opts.Blocking = false

	return opts
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestListen_MarkerInPage(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := mocklistener.NewMockFetcher[obj](ctrl)
	f.EXPECT().FetchRecent(gomock.Any(), listener.ObjectTypeFile, "", 0).Return(page("C", "B", "A"), nil).Times(2)

	cur := &listener.Cursor{LastID: "B"}
	ids, err := collect(listener.Listen[obj](context.Background(), f, cur, nonBlocking()))
	require.NoError(t, err)
	require.Equal(t, []string{"C"}, ids)
	require.Equal(t, "C", cur.LastID)
}

func TestListen_NoMarkerStartsFromNewest(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := mocklistener.NewMockFetcher[obj](ctrl)
	f.EXPECT().FetchRecent(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(page("C", "B", "A"), nil).Times(2)

	cur := &listener.Cursor{}
	ids, err := collect(listener.Listen[obj](context.Background(), f, cur, nonBlocking()))
	require.NoError(t, err)
	require.Empty(t, ids)
	require.Equal(t, "C", cur.LastID)
}

func TestListen_MarkerScrolledOffDeliversWholePage(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := mocklistener.NewMockFetcher[obj](ctrl)
	f.EXPECT().FetchRecent(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(page("C", "B", "A"), nil).Times(2)

	cur := &listener.Cursor{LastID: "Z"}
	ids, err := collect(listener.Listen[obj](context.Background(), f, cur, nonBlocking()))
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B", "C"}, ids)
	require.Equal(t, "C", cur.LastID)
}

func TestListen_KthNewestMarker(t *testing.T) {
	p := page("F", "E", "D", "C", "B", "A")

	for k := 1; k <= len(p); k++ {
		cur := &listener.Cursor{LastID: p[k-1].ID()}
		ids, err := collect(listener.Listen[obj](context.Background(), &scripted{pages: [][]obj{p}}, cur, nonBlocking()))
		require.NoError(t, err)

		want := []string{}
		for i := k - 2; i >= 0; i-- {
			want = append(want, p[i].ID())
		}
		require.Len(t, ids, k-1, "marker %s", cur.LastID)
		if k > 1 {
			require.Equal(t, want, ids)
		}
		require.Equal(t, "F", cur.LastID)
	}
}

func TestListen_ForwardsQueryTypeAndPageSize(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := mocklistener.NewMockFetcher[obj](ctrl)
	f.EXPECT().FetchRecent(gomock.Any(), listener.ObjectTypeConfig, "family:emotet", 50).Return(page("A"), nil).Times(2)

	opts := nonBlocking()
	opts.ObjectType = listener.ObjectTypeConfig
	opts.Query = "family:emotet"
	opts.PageSize = 50

	_, err := collect(listener.Listen[obj](context.Background(), f, &listener.Cursor{LastID: "A"}, opts))
	require.NoError(t, err)
}

func TestListen_EmptyTypeDefaultsToAll(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := mocklistener.NewMockFetcher[obj](ctrl)
	f.EXPECT().FetchRecent(gomock.Any(), listener.ObjectTypeAll, "", 0).Return(nil, nil).Times(2)

	_, err := collect(listener.Listen[obj](context.Background(), f, &listener.Cursor{}, listener.Options{}))
	require.NoError(t, err)
}

func TestListen_NonBlockingDrainsUntilEmptyPass(t *testing.T) {
	s := &scripted{pages: [][]obj{
		page("B", "A"),
		page("D", "C", "B", "A"),
		page("E", "D", "C", "B"),
		page("E", "D", "C", "B"),
	}}
	opts := nonBlocking()
	opts.Sleep = func(context.Context, time.Duration) error {
		t.Fatal("non-blocking listener must not sleep")

		return nil
	}

	cur := &listener.Cursor{LastID: "A"}
	ids, err := collect(listener.Listen[obj](context.Background(), s, cur, opts))
	require.NoError(t, err)
	require.Equal(t, []string{"B", "C", "D", "E"}, ids)
	require.Equal(t, "E", cur.LastID)
	require.Equal(t, 4, s.calls)
}

func TestListen_BlockingNeverTerminatesOnItsOwn(t *testing.T) {
	s := &scripted{pages: [][]obj{page("A")}}
	stop := errors.New("stop")
	sleeps := 0

	opts := listener.DefaultOptions(listener.ObjectTypeBlob)
	opts.Sleep = func(_ context.Context, d time.Duration) error {
		require.Equal(t, listener.DefaultInterval, d)
		sleeps++
		if sleeps == 5 {
			return stop
		}

		return nil
	}

	ids, err := collect(listener.Listen[obj](context.Background(), s, &listener.Cursor{LastID: "A"}, opts))
	require.ErrorIs(t, err, stop)
	require.Empty(t, ids)
	require.Equal(t, 5, sleeps)
	require.Equal(t, 5, s.calls)
}

func TestListen_BlockingPicksUpNewObjectsAfterPause(t *testing.T) {
	s := &scripted{pages: [][]obj{
		page("A"),
		page("A"),
		page("B", "A"),
	}}
	sleeps := 0
	opts := listener.DefaultOptions(listener.ObjectTypeFile)
	opts.Sleep = func(context.Context, time.Duration) error {
		sleeps++

		return nil
	}

	cur := &listener.Cursor{}
	var got []string
	for o, err := range listener.Listen[obj](context.Background(), s, cur, opts) {
		require.NoError(t, err)
		got = append(got, o.ID())

		break
	}
	require.Equal(t, []string{"B"}, got)
	require.Equal(t, "B", cur.LastID)
	require.Equal(t, 1, sleeps)
}

func TestListen_ErrorEndsSequenceAndKeepsMarker(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := mocklistener.NewMockFetcher[obj](ctrl)
	rl := serrors.With(serrors.ErrRateLimited, "slow down")
	f.EXPECT().FetchRecent(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, rl)

	cur := &listener.Cursor{LastID: "A"}
	calls := 0
	for o, err := range listener.Listen[obj](context.Background(), f, cur, listener.DefaultOptions(listener.ObjectTypeFile)) {
		calls++
		require.Empty(t, o.ID())
		require.ErrorIs(t, err, serrors.ErrRateLimited)
	}
	require.Equal(t, 1, calls)
	require.Equal(t, "A", cur.LastID)
}

func TestListen_ErrorWhileEstablishingMarker(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := mocklistener.NewMockFetcher[obj](ctrl)
	f.EXPECT().FetchRecent(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, serrors.With(serrors.ErrUnauthorized, "no credentials"))

	cur := &listener.Cursor{}
	_, err := collect(listener.Listen[obj](context.Background(), f, cur, nonBlocking()))
	require.ErrorIs(t, err, serrors.ErrUnauthorized)
	require.Empty(t, cur.LastID)
}

func TestListen_ResumeAfterBreakHasNoDuplicates(t *testing.T) {
	p := page("E", "D", "C", "B", "A")
	cur := &listener.Cursor{LastID: "A"}

	var first []string
	for o, err := range listener.Listen[obj](context.Background(), &scripted{pages: [][]obj{p}}, cur, nonBlocking()) {
		require.NoError(t, err)
		first = append(first, o.ID())
		if len(first) == 2 {
			break
		}
	}
	require.Equal(t, []string{"B", "C"}, first)
	require.Equal(t, "C", cur.LastID)

	rest, err := collect(listener.Listen[obj](context.Background(), &scripted{pages: [][]obj{p}}, cur, nonBlocking()))
	require.NoError(t, err)
	require.Equal(t, []string{"D", "E"}, rest)
}

func TestListen_MarkerIsMonotonic(t *testing.T) {
	order := []string{"A", "B", "C", "D", "E", "F", "G"}
	rank := map[string]int{}
	for i, id := range order {
		rank[id] = i
	}

	s := &scripted{pages: [][]obj{
		page("A"),
		page("C", "B", "A"),
		page("G", "F", "E", "C"),
		page("G", "F", "E", "C"),
	}}
	cur := &listener.Cursor{}
	opts := nonBlocking()
	opts.Sleep = noSleep

	last := -1
	for o, err := range listener.Listen[obj](context.Background(), s, cur, opts) {
		require.NoError(t, err)
		require.Equal(t, o.ID(), cur.LastID)
		require.Greater(t, rank[cur.LastID], last)
		last = rank[cur.LastID]
	}
	require.Equal(t, "G", cur.LastID)
}

func TestListen_EmptyRepositoryDeliversEverythingLater(t *testing.T) {
	s := &scripted{pages: [][]obj{
		nil,
		page("B", "A"),
		page("B", "A"),
	}}
	cur := &listener.Cursor{}

	ids, err := collect(listener.Listen[obj](context.Background(), s, cur, nonBlocking()))
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B"}, ids)
	require.Equal(t, "B", cur.LastID)
}

func TestListen_DefaultSleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := listener.DefaultOptions(listener.ObjectTypeFile)
	opts.Interval = time.Hour

	_, err := collect(listener.Listen[obj](ctx, &scripted{pages: [][]obj{page("A")}}, &listener.Cursor{LastID: "A"}, opts))
	require.ErrorIs(t, err, context.Canceled)
}

func TestListen_FetcherFunc(t *testing.T) {
	f := listener.FetcherFunc[obj](func(context.Context, listener.ObjectType, string, int) ([]obj, error) {
		return page("B", "A"), nil
	})

	ids, err := collect(listener.Listen[obj](context.Background(), f, &listener.Cursor{LastID: "A"}, nonBlocking()))
	require.NoError(t, err)
	require.Equal(t, []string{"B"}, ids)
}

func TestUnseen(t *testing.T) {
	p := page("C", "B", "A")

	require.Equal(t, page("C"), listener.Unseen(p, "B"))
	require.Empty(t, listener.Unseen(p, "C"))
	require.Equal(t, p, listener.Unseen(p, "Z"))
	require.Equal(t, p, listener.Unseen(p, ""))
	require.Empty(t, listener.Unseen[obj](nil, "A"))
}

func TestObjectTypeValid(t *testing.T) {
	for _, ot := range []listener.ObjectType{
		listener.ObjectTypeAll, listener.ObjectTypeFile, listener.ObjectTypeConfig, listener.ObjectTypeBlob,
	} {
		require.True(t, ot.Valid(), ot)
	}
	require.False(t, listener.ObjectType("sample").Valid())
}
