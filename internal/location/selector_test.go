package location

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	level  Level
	parent string
}

// fakeSource records every fetch and returns one option per level named after the parent.
type fakeSource struct {
	calls []call
	fail  map[Level]bool
}

func (f *fakeSource) Options(ctx context.Context, level Level, parentID string) ([]Option, error) {
	f.calls = append(f.calls, call{level, parentID})
	if f.fail[level] {
		return nil, errors.New("upstream down")
	}
	return []Option{
		{ID: level.String() + "-1", Name: level.String() + " one"},
		{ID: level.String() + "-2", Name: level.String() + " two"},
	}, nil
}

func loaded(t *testing.T) (*Selector, *fakeSource) {
	t.Helper()
	src := &fakeSource{}
	s := NewSelector(src, "site-9")
	require.NoError(t, s.Load(context.Background()))
	require.NoError(t, s.Select(context.Background(), Building, "building-1"))
	require.NoError(t, s.Select(context.Background(), Wing, "wing-1"))
	require.NoError(t, s.Select(context.Background(), Area, "area-2"))
	require.NoError(t, s.Select(context.Background(), Floor, "floor-1"))
	require.NoError(t, s.Select(context.Background(), Room, "room-1"))
	src.calls = nil
	return s, src
}

func TestSelect_ParentFetchesExactlyOneChildLevel(t *testing.T) {
	s, src := loaded(t)

	require.NoError(t, s.Select(context.Background(), Wing, "wing-2"))
	require.Equal(t, []call{{Area, "wing-2"}}, src.calls)

	assert.Equal(t, "wing-2", s.Selected(Wing))
	assert.Equal(t, "building-1", s.Selected(Building))
	assert.NotEmpty(t, s.Options(Area))
	for _, l := range []Level{Area, Floor, Room} {
		assert.Empty(t, s.Selected(l), l.String())
	}
	assert.Empty(t, s.Options(Floor), "grandchildren are not prefetched")
	assert.Empty(t, s.Options(Room))
}

func TestSelect_ClearingParentMakesNoCalls(t *testing.T) {
	for l := Building; l < levelCount; l++ {
		s, src := loaded(t)
		require.NoError(t, s.Select(context.Background(), l, ""))
		assert.Empty(t, src.calls, l.String())
		for d := l; d < levelCount; d++ {
			assert.Empty(t, s.Selected(d))
			if d > l {
				assert.Empty(t, s.Options(d))
			}
		}
	}
}

func TestSelect_RoomHasNoChild(t *testing.T) {
	s, src := loaded(t)
	require.NoError(t, s.Select(context.Background(), Room, "room-2"))
	assert.Empty(t, src.calls)
}

func TestSelect_RejectsUnknownOption(t *testing.T) {
	s, src := loaded(t)
	err := s.Select(context.Background(), Wing, "wing-77")
	assert.ErrorIs(t, err, ErrUnknownOption)
	assert.Empty(t, src.calls)
	assert.Equal(t, "wing-1", s.Selected(Wing))
}

func TestSelect_FetchFailureLeavesChildEmpty(t *testing.T) {
	s, src := loaded(t)
	src.fail = map[Level]bool{Floor: true}
	err := s.Select(context.Background(), Area, "area-1")
	require.Error(t, err)
	assert.Equal(t, "area-1", s.Selected(Area))
	assert.Empty(t, s.Options(Floor))
	assert.Empty(t, s.Selected(Room))
}

func TestPrefillByName(t *testing.T) {
	src := &fakeSource{}
	s := NewSelector(src, "")
	err := s.PrefillByName(context.Background(), [5]string{"building two", "wing one", "nowhere", "floor one", ""})
	require.NoError(t, err)
	assert.Equal(t, "building-2", s.Selected(Building))
	assert.Equal(t, "wing-1", s.Selected(Wing))
	assert.Empty(t, s.Selected(Area))
	assert.NotEmpty(t, s.Options(Area))
	assert.Equal(t, call{Building, ""}, src.calls[0])
}

func TestCachedSource(t *testing.T) {
	src := &fakeSource{}
	c := NewCachedSource(src, 16, time.Minute)
	_, err := c.Options(context.Background(), Wing, "b1")
	require.NoError(t, err)
	_, err = c.Options(context.Background(), Wing, "b1")
	require.NoError(t, err)
	_, err = c.Options(context.Background(), Wing, "b2")
	require.NoError(t, err)
	assert.Len(t, src.calls, 2)
}

func TestParseLevelAndOptionJSON(t *testing.T) {
	l, err := ParseLevel("Floors")
	require.NoError(t, err)
	assert.Equal(t, Floor, l)
	_, err = ParseLevel("tower")
	assert.ErrorIs(t, err, ErrUnknownLevel)

	var opts []Option
	require.NoError(t, json.Unmarshal([]byte(`[{"id": 12, "name": "Tower A"}, {"id": "x9", "name": "B"}]`), &opts))
	assert.Equal(t, []Option{{ID: "12", Name: "Tower A"}, {ID: "x9", Name: "B"}}, opts)
}
