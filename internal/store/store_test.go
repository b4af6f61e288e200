package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "profiles.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleProfile(hash string) Profile {
	return Profile{
		Hash:     hash,
		Raw:      "vless://u@" + hash + ".example.com:443",
		Remark:   "sample",
		Protocol: "vless",
		Address:  hash + ".example.com",
		Port:     443,
		Country:  "NL",
	}
}

func TestAddDeduplicates(t *testing.T) {
	s := openTestStore(t)

	first := sampleProfile("aaa")
	created, err := s.Add(&first)
	require.NoError(t, err)
	assert.True(t, created)

	dup := sampleProfile("aaa")
	created, err = s.Add(&dup)
	require.NoError(t, err)
	assert.False(t, created)

	n, err := s.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestAddBatch(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Add(&Profile{Hash: "bbb", Raw: "x", Protocol: "vmess"})
	require.NoError(t, err)

	added, err := s.AddBatch([]Profile{
		sampleProfile("aaa"),
		sampleProfile("bbb"),
		sampleProfile("ccc"),
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, added)
}

func TestGetListRemove(t *testing.T) {
	s := openTestStore(t)

	p := sampleProfile("aaa")
	_, err := s.Add(&p)
	require.NoError(t, err)

	got, err := s.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "aaa.example.com", got.Address)

	all, err := s.List()
	require.NoError(t, err)
	require.Len(t, all, 1)

	require.NoError(t, s.Remove(p.ID))
	assert.ErrorIs(t, s.Remove(p.ID), gorm.ErrRecordNotFound)

	_, err = s.Get(p.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRecordResultMovingAverage(t *testing.T) {
	s := openTestStore(t)

	p := sampleProfile("aaa")
	_, err := s.Add(&p)
	require.NoError(t, err)

	require.NoError(t, s.RecordResult(p.ID, 100*time.Millisecond, true))
	got, err := s.Get(p.ID)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, got.LatencyMS, 0.001)
	assert.False(t, got.LastOKAt.IsZero())

	require.NoError(t, s.RecordResult(p.ID, 200*time.Millisecond, true))
	got, err = s.Get(p.ID)
	require.NoError(t, err)
	assert.InDelta(t, 120.0, got.LatencyMS, 0.001)
	assert.Equal(t, 0, got.Failures)
}

func TestRecordResultFailure(t *testing.T) {
	s := openTestStore(t)

	p := sampleProfile("aaa")
	_, err := s.Add(&p)
	require.NoError(t, err)

	require.NoError(t, s.RecordResult(p.ID, 100*time.Millisecond, true))
	require.NoError(t, s.RecordResult(p.ID, 0, false))

	got, err := s.Get(p.ID)
	require.NoError(t, err)
	assert.InDelta(t, 150.0, got.LatencyMS, 0.001)
	assert.Equal(t, 1, got.Failures)

	// A recovery resets the streak.
	require.NoError(t, s.RecordResult(p.ID, 150*time.Millisecond, true))
	got, err = s.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Failures)
}

func TestPrune(t *testing.T) {
	s := openTestStore(t)

	dead := sampleProfile("dead")
	alive := sampleProfile("alive")
	for _, p := range []*Profile{&dead, &alive} {
		_, err := s.Add(p)
		require.NoError(t, err)
	}

	for i := 0; i < 3; i++ {
		require.NoError(t, s.RecordResult(dead.ID, 0, false))
	}
	require.NoError(t, s.RecordResult(alive.ID, 100*time.Millisecond, true))

	_, err := s.Prune(0)
	assert.Error(t, err)

	removed, err := s.Prune(3)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	_, err = s.Get(dead.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	_, err = s.Get(alive.ID)
	assert.NoError(t, err)
}

func TestBest(t *testing.T) {
	s := openTestStore(t)

	fast := sampleProfile("fast")
	slow := sampleProfile("slow")
	never := sampleProfile("never")
	for _, p := range []*Profile{&fast, &slow, &never} {
		_, err := s.Add(p)
		require.NoError(t, err)
	}

	_, err := s.Best()
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	require.NoError(t, s.RecordResult(slow.ID, 900*time.Millisecond, true))
	require.NoError(t, s.RecordResult(fast.ID, 80*time.Millisecond, true))

	best, err := s.Best()
	require.NoError(t, err)
	assert.Equal(t, "fast.example.com", best.Address)
}

func TestCountries(t *testing.T) {
	s := openTestStore(t)

	a := sampleProfile("aaa")
	b := sampleProfile("bbb")
	c := sampleProfile("ccc")
	c.Country = "DE"
	for _, p := range []*Profile{&a, &b, &c} {
		_, err := s.Add(p)
		require.NoError(t, err)
	}

	counts, err := s.Countries()
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, "NL", counts[0].Country)
	assert.EqualValues(t, 2, counts[0].Count)
}

func TestLeaderboard(t *testing.T) {
	board := NewLeaderboard(2)

	assert.False(t, board.Offer(sampleProfile("failed"), 0))
	assert.True(t, board.Offer(sampleProfile("slow"), 900))
	assert.True(t, board.Offer(sampleProfile("fast"), 80))
	assert.True(t, board.Offer(sampleProfile("mid"), 300))
	assert.False(t, board.Offer(sampleProfile("slower"), 1500))

	ranking := board.Ranking()
	require.Len(t, ranking, 2)
	assert.Equal(t, "fast", ranking[0].Profile.Hash)
	assert.Equal(t, "mid", ranking[1].Profile.Hash)
	assert.Equal(t, 2, board.Len())
}
