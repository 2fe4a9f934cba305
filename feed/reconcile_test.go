package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minuteBar(h, m int, close float64) Bar {
	return Bar{
		Time:        BarTime{Year: 2024, Month: 1, Day: 2, Hour: h, Minute: m},
		Granularity: Minute,
		Open:        close,
		High:        close,
		Low:         close,
		Close:       close,
		Volume:      10,
	}
}

func dailyBar(day int, close float64) Bar {
	return Bar{
		Time:        BarTime{Year: 2024, Month: 1, Day: day},
		Granularity: Daily,
		Open:        close,
		High:        close,
		Low:         close,
		Close:       close,
		Volume:      1000,
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	existing := []Bar{minuteBar(9, 15, 100), minuteBar(9, 16, 101)}
	fetched := []Bar{minuteBar(9, 16, 102), minuteBar(9, 17, 103)}

	once := reconcile(existing, fetched, nil, 100)
	twice := reconcile(once, fetched, nil, 100)

	require.Len(t, once, 3)
	assert.Equal(t, once, twice)
}

func TestReconcileSortsChronologically(t *testing.T) {
	existing := []Bar{minuteBar(9, 20, 105)}
	fetched := []Bar{minuteBar(9, 17, 103), minuteBar(9, 15, 100), minuteBar(9, 16, 101)}

	got := reconcile(existing, fetched, nil, 100)

	require.Len(t, got, 4)
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i-1].Time.Before(got[i].Time),
			"bar %d (%+v) not before bar %d (%+v)", i-1, got[i-1].Time, i, got[i].Time)
	}
}

func TestReconcileGranularityIsolation(t *testing.T) {
	// a daily bar and an intraday bar on the same calendar date must both
	// survive, not be merged into each other
	daily := dailyBar(2, 200)
	intraday := minuteBar(0, 0, 100)
	require.Equal(t, daily.Time.Date(), intraday.Time.Date())

	got := reconcile([]Bar{daily}, []Bar{intraday}, nil, 100)

	require.Len(t, got, 2)
	grans := []Granularity{got[0].Granularity, got[1].Granularity}
	assert.Contains(t, grans, Daily)
	assert.Contains(t, grans, Minute)
}

func TestReconcileServerRecordWinsOverEarlierDuplicate(t *testing.T) {
	// within one fetched batch the later record is the more complete
	// aggregate; callers put locally built bars ahead of server history
	// so the server's copy of an overlapping minute prevails
	local := minuteBar(10, 28, 101)
	local.Volume = 7
	server := minuteBar(10, 28, 100)
	server.Volume = 5000

	got := reconcile(nil, []Bar{local, server}, nil, 100)

	require.Len(t, got, 1)
	assert.Equal(t, 100.0, got[0].Close)
	assert.Equal(t, 5000.0, got[0].Volume)
}

func TestReconcileDailyLeadsMidnightMinute(t *testing.T) {
	midnight := Bar{
		Time:        BarTime{Year: 2024, Month: 1, Day: 2},
		Granularity: Minute,
		Close:       50,
	}
	day := dailyBar(2, 100)

	got := reconcile(nil, []Bar{midnight, day}, nil, 100)

	require.Len(t, got, 2)
	assert.Equal(t, Daily, got[0].Granularity)
	assert.Equal(t, Minute, got[1].Granularity)
}

func TestReconcileLiveBarReplacesSameMinute(t *testing.T) {
	existing := []Bar{minuteBar(9, 15, 100), minuteBar(9, 16, 101)}
	live := minuteBar(9, 16, 102)
	live.High = 110

	got := reconcile(existing, nil, &live, 100)

	require.Len(t, got, 2)
	assert.Equal(t, 110.0, got[1].High)
	assert.Equal(t, 102.0, got[1].Close)
}

func TestReconcileLiveBarAppendsNewMinute(t *testing.T) {
	existing := []Bar{minuteBar(9, 15, 100)}
	live := minuteBar(9, 16, 101)

	got := reconcile(existing, nil, &live, 100)

	require.Len(t, got, 2)
	assert.Equal(t, 16, got[1].Time.Minute)
}

func TestReconcileEnforcesCapacity(t *testing.T) {
	var existing, fetched []Bar
	for i := 0; i < 30; i++ {
		existing = append(existing, minuteBar(9, i, float64(100+i)))
	}
	for i := 30; i < 50; i++ {
		fetched = append(fetched, minuteBar(9, i, float64(100+i)))
	}

	got := reconcile(existing, fetched, nil, 40)

	require.Len(t, got, 40)
	// the oldest bars are the ones dropped
	assert.Equal(t, 10, got[0].Time.Minute)
	assert.Equal(t, 49, got[len(got)-1].Time.Minute)
}

func TestReconcileDropsCorruptTrailingBar(t *testing.T) {
	corrupt := minuteBar(31, 15, 999)
	fetched := []Bar{minuteBar(9, 15, 100), minuteBar(9, 16, 101), corrupt}

	got := reconcile(nil, fetched, nil, 100)

	require.Len(t, got, 2)
	for _, b := range got {
		assert.True(t, b.Time.ValidClock())
	}
}

func TestReconcileKeepsEODMarkerBar(t *testing.T) {
	eod := dailyBar(3, 300)
	eod.Time.Hour, eod.Time.Minute = EODHour, EODMinute

	got := reconcile(nil, []Bar{dailyBar(2, 200), eod}, nil, 100)

	assert.Len(t, got, 2)
}

func TestReconcileDuplicatesKeepLaterRecord(t *testing.T) {
	early := minuteBar(9, 15, 100)
	late := minuteBar(9, 15, 105)
	late.Volume = 50

	got := reconcile(nil, []Bar{early, minuteBar(9, 16, 101), late}, nil, 100)

	require.Len(t, got, 2)
	assert.Equal(t, 105.0, got[0].Close)
	assert.Equal(t, 50.0, got[0].Volume)
}

func TestReconcileUpdatesExistingInPlace(t *testing.T) {
	existing := []Bar{minuteBar(9, 15, 100)}
	update := minuteBar(9, 15, 104)
	update.High = 108
	update.Low = 96
	update.Volume = 500
	update.OpenInterest = 42

	got := reconcile(existing, []Bar{update}, nil, 100)

	require.Len(t, got, 1)
	assert.Equal(t, 104.0, got[0].Close)
	assert.Equal(t, 108.0, got[0].High)
	assert.Equal(t, 96.0, got[0].Low)
	assert.Equal(t, 500.0, got[0].Volume)
	assert.Equal(t, 42.0, got[0].OpenInterest)
	// open stays from the original record
	assert.Equal(t, 100.0, got[0].Open)
}

func TestReconcileEmptyInputs(t *testing.T) {
	assert.Empty(t, reconcile(nil, nil, nil, 100))

	existing := []Bar{minuteBar(9, 15, 100)}
	got := reconcile(existing, nil, nil, 100)
	assert.Equal(t, existing, got)
}
