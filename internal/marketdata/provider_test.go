package marketdata

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/finlens/chartoracle/internal/catalog"
)

func TestFetchSnapshotBounds(t *testing.T) {
	p := NewSeededProvider(0, 0, 42)
	ctx := context.Background()

	const draws = 500

	for _, inst := range catalog.Default().Instruments() {
		for i := 0; i < draws; i++ {
			snap, err := p.FetchSnapshot(ctx, inst)
			if err != nil {
				t.Fatalf("FetchSnapshot(%s) failed: %v", inst.ID, err)
			}

			open := snap.Open()
			if snap.High < math.Max(open, snap.Price) {
				t.Fatalf("%s draw %d: high %v < max(open %v, price %v)", inst.ID, i, snap.High, open, snap.Price)
			}
			if snap.Low > math.Min(open, snap.Price) {
				t.Fatalf("%s draw %d: low %v > min(open %v, price %v)", inst.ID, i, snap.Low, open, snap.Price)
			}
			if snap.Volume < 0 {
				t.Fatalf("%s draw %d: negative volume %v", inst.ID, i, snap.Volume)
			}
			if err := snap.Validate(); err != nil {
				t.Fatalf("%s draw %d: snapshot invalid: %v", inst.ID, i, err)
			}
		}
	}
}

func TestFetchSnapshotBaselineMagnitude(t *testing.T) {
	p := NewSeededProvider(0, 0, 1)
	ctx := context.Background()
	c := catalog.Default()

	btc, _ := c.Lookup("BTCUSD")
	eur, _ := c.Lookup("EURUSD")

	btcSnap, err := p.FetchSnapshot(ctx, btc)
	if err != nil {
		t.Fatalf("FetchSnapshot(BTCUSD) failed: %v", err)
	}
	eurSnap, err := p.FetchSnapshot(ctx, eur)
	if err != nil {
		t.Fatalf("FetchSnapshot(EURUSD) failed: %v", err)
	}

	if btcSnap.Price < 10000 {
		t.Errorf("BTCUSD price %v far below expected baseline", btcSnap.Price)
	}
	if eurSnap.Price < 0.9 || eurSnap.Price > 1.3 {
		t.Errorf("EURUSD price %v outside near-unity range", eurSnap.Price)
	}
}

func TestFetchSnapshotHonorsCancellation(t *testing.T) {
	p := NewSeededProvider(time.Second, 2*time.Second, 7)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.FetchSnapshot(ctx, catalog.Default().First()); err == nil {
		t.Error("FetchSnapshot with canceled context returned nil error")
	}
}

func TestFetchSnapshotDeterministicWithSeed(t *testing.T) {
	a := NewSeededProvider(0, 0, 99)
	b := NewSeededProvider(0, 0, 99)
	ctx := context.Background()
	inst := catalog.Default().First()

	snapA, err := a.FetchSnapshot(ctx, inst)
	if err != nil {
		t.Fatal(err)
	}
	snapB, err := b.FetchSnapshot(ctx, inst)
	if err != nil {
		t.Fatal(err)
	}

	if snapA != snapB {
		t.Errorf("same seed produced different snapshots: %+v vs %+v", snapA, snapB)
	}
}
