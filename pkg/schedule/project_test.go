package schedule

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clock(h, m int) TimeOfDay {
	return NewTimeOfDay(h, m)
}

func assertDay(t *testing.T, slots []TimeSlot) {
	t.Helper()
	require.NotEmpty(t, slots)
	assert.Equal(t, TimeOfDay(0), slots[0].Start)
	assert.Equal(t, TimeOfDay(0), slots[len(slots)-1].End)
	var total time.Duration
	for i, s := range slots {
		if i > 0 {
			assert.Greater(t, s.Start, slots[i-1].Start)
			assert.Equal(t, slots[i-1].End, s.Start)
			assert.NotEqual(t, slots[i-1].Price, s.Price)
		}
		total += s.Duration()
	}
	assert.Equal(t, 24*time.Hour, total)
}

func sampleEntries(t *testing.T) []Entry {
	g := NewGrid(ts(t, "2024-02-20T12:34:00Z"))
	require.NoError(t, g.Write(ts(t, "2024-02-20T05:30:00Z"), ts(t, "2024-02-20T23:30:00Z"), 5))
	require.NoError(t, g.Write(ts(t, "2024-02-20T23:30:00Z"), ts(t, "2024-02-21T05:30:00Z"), 10))
	require.NoError(t, g.Write(ts(t, "2024-02-21T05:30:00Z"), ts(t, "2024-02-21T23:30:00Z"), 15))
	entries, err := g.Final()
	require.NoError(t, err)
	return entries
}

func TestTimeOfDay(t *testing.T) {
	assert.Equal(t, "00:00", TimeOfDay(0).String())
	assert.Equal(t, "23:30", clock(23, 30).String())
	assert.Equal(t, 5, clock(5, 45).Hour())
	assert.Equal(t, 45, clock(5, 45).Minute())

	b, err := json.Marshal(TimeSlot{Start: clock(5, 30), End: clock(23, 30), Price: 1.5})
	require.NoError(t, err)
	assert.JSONEq(t, `{"start":"05:30","end":"23:30","price":1.5}`, string(b))
	var slot TimeSlot
	require.NoError(t, json.Unmarshal(b, &slot))
	assert.Equal(t, TimeSlot{Start: clock(5, 30), End: clock(23, 30), Price: 1.5}, slot)
	assert.Error(t, json.Unmarshal([]byte(`{"start":"25:00"}`), &slot))

	assert.Equal(t, 18*time.Hour, TimeSlot{Start: clock(5, 30), End: clock(23, 30)}.Duration())
	assert.Equal(t, 6*time.Hour, TimeSlot{Start: clock(23, 30), End: clock(5, 30)}.Duration())
	assert.Equal(t, 24*time.Hour, TimeSlot{}.Duration())
}

func TestProject(t *testing.T) {
	t.Run("utc", func(t *testing.T) {
		slots := Project(sampleEntries(t), time.UTC)
		assert.Equal(t, []TimeSlot{
			{clock(0, 0), clock(5, 30), 10},
			{clock(5, 30), clock(12, 30), 15},
			{clock(12, 30), clock(23, 30), 5},
			{clock(23, 30), clock(0, 0), 10},
		}, slots)
		assertDay(t, slots)
	})

	t.Run("nil location uses the entries", func(t *testing.T) {
		assert.Equal(t, Project(sampleEntries(t), time.UTC), Project(sampleEntries(t), nil))
	})

	t.Run("berlin", func(t *testing.T) {
		slots := Project(sampleEntries(t), mustLoad(t, "Europe/Berlin"))
		assert.Equal(t, []TimeSlot{
			{clock(0, 0), clock(0, 30), 5},
			{clock(0, 30), clock(6, 30), 10},
			{clock(6, 30), clock(13, 30), 15},
			{clock(13, 30), clock(0, 0), 5},
		}, slots)
		assertDay(t, slots)
	})

	t.Run("chicago", func(t *testing.T) {
		slots := Project(sampleEntries(t), mustLoad(t, "America/Chicago"))
		assert.Equal(t, []TimeSlot{
			{clock(0, 0), clock(6, 30), 15},
			{clock(6, 30), clock(17, 30), 5},
			{clock(17, 30), clock(23, 30), 10},
			{clock(23, 30), clock(0, 0), 15},
		}, slots)
		assertDay(t, slots)
	})

	t.Run("quarter hour offset", func(t *testing.T) {
		slots := Project(sampleEntries(t), mustLoad(t, "Asia/Kathmandu"))
		assert.Equal(t, []TimeSlot{
			{clock(0, 0), clock(5, 15), 5},
			{clock(5, 15), clock(11, 15), 10},
			{clock(11, 15), clock(18, 15), 15},
			{clock(18, 15), clock(0, 0), 5},
		}, slots)
		assertDay(t, slots)
	})

	t.Run("single price", func(t *testing.T) {
		g := NewGrid(ts(t, "2024-02-20T12:34:00Z"))
		require.NoError(t, g.Write(g.Start(), g.End(), 7))
		entries, err := g.Final()
		require.NoError(t, err)
		slots := Project(entries, mustLoad(t, "America/New_York"))
		assert.Equal(t, []TimeSlot{{clock(0, 0), clock(0, 0), 7}}, slots)
		assertDay(t, slots)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Nil(t, Project(nil, time.UTC))
	})
}

func TestProjectDST(t *testing.T) {
	london := mustLoad(t, "Europe/London")
	chicago := mustLoad(t, "America/Chicago")

	t.Run("spring forward", func(t *testing.T) {
		g := NewGrid(time.Date(2024, 3, 31, 0, 0, 0, 0, london))
		require.NoError(t, g.Write(ts(t, "2024-03-31T00:00:00Z"), ts(t, "2024-03-31T01:00:00Z"), 10))
		require.NoError(t, g.Write(ts(t, "2024-03-31T01:00:00Z"), ts(t, "2024-03-31T02:00:00Z"), 30))
		require.NoError(t, g.Write(ts(t, "2024-03-31T02:00:00Z"), ts(t, "2024-03-31T23:00:00Z"), 40))
		require.NoError(t, g.Write(ts(t, "2024-03-31T23:00:00Z"), ts(t, "2024-04-01T02:00:00Z"), 50))
		entries, err := g.Final()
		require.NoError(t, err)
		require.Len(t, entries, 4)

		slots := Project(entries, london)
		assert.Equal(t, []TimeSlot{
			{clock(0, 0), clock(2, 0), 10},
			{clock(2, 0), clock(3, 0), 30},
			{clock(3, 0), clock(0, 0), 40},
		}, slots)
		assertDay(t, slots)

		slots = Project(entries, chicago)
		assert.Equal(t, []TimeSlot{
			{clock(0, 0), clock(18, 0), 40},
			{clock(18, 0), clock(19, 0), 50},
			{clock(19, 0), clock(20, 0), 10},
			{clock(20, 0), clock(21, 0), 30},
			{clock(21, 0), clock(0, 0), 40},
		}, slots)
		assertDay(t, slots)
	})

	t.Run("fall back", func(t *testing.T) {
		g := NewGrid(time.Date(2024, 10, 27, 0, 0, 0, 0, london))
		require.NoError(t, g.Write(ts(t, "2024-10-26T23:00:00Z"), ts(t, "2024-10-27T00:00:00Z"), 10))
		// 01:00 BST and then 01:00 GMT
		require.NoError(t, g.Write(ts(t, "2024-10-27T00:00:00Z"), ts(t, "2024-10-27T01:00:00Z"), 20))
		require.NoError(t, g.Write(ts(t, "2024-10-27T01:00:00Z"), ts(t, "2024-10-27T02:00:00Z"), 40))
		require.NoError(t, g.Write(ts(t, "2024-10-27T02:00:00Z"), ts(t, "2024-10-27T03:00:00Z"), 50))
		require.NoError(t, g.Write(ts(t, "2024-10-27T03:00:00Z"), ts(t, "2024-10-27T23:00:00Z"), 60))
		entries, err := g.Final()
		require.NoError(t, err)
		require.Len(t, entries, 5)

		slots := Project(entries, london)
		assert.Equal(t, []TimeSlot{
			{clock(0, 0), clock(1, 0), 10},
			{clock(1, 0), clock(2, 0), 40},
			{clock(2, 0), clock(3, 0), 50},
			{clock(3, 0), clock(0, 0), 60},
		}, slots)
		assertDay(t, slots)

		slots = Project(entries, chicago)
		assert.Equal(t, []TimeSlot{
			{clock(0, 0), clock(18, 0), 60},
			{clock(18, 0), clock(19, 0), 10},
			{clock(19, 0), clock(20, 0), 20},
			{clock(20, 0), clock(21, 0), 40},
			{clock(21, 0), clock(22, 0), 50},
			{clock(22, 0), clock(0, 0), 60},
		}, slots)
		assertDay(t, slots)
	})

	t.Run("always a full day", func(t *testing.T) {
		zones := []string{"Europe/London", "America/Chicago", "Australia/Lord_Howe", "Asia/Kathmandu", "UTC"}
		days := []time.Time{
			ts(t, "2024-03-30T18:10:00Z"),
			ts(t, "2024-03-31T00:00:00Z"),
			ts(t, "2024-04-06T14:00:00Z"),
			ts(t, "2024-10-26T23:30:00Z"),
			ts(t, "2024-11-03T04:00:00Z"),
		}
		for _, zone := range zones {
			loc := mustLoad(t, zone)
			for _, now := range days {
				g := NewGrid(now.In(loc))
				for i := 0; i < SlotsPerDay; i++ {
					from := g.Start().Add(time.Duration(i) * SlotDuration)
					require.NoError(t, g.Write(from, from.Add(SlotDuration), float64(i/5)))
				}
				entries, err := g.Final()
				require.NoError(t, err)
				assertDay(t, Project(entries, loc))
			}
		}
	})
}
