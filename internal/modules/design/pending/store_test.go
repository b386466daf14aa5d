package pending

import (
	"errors"
	"reflect"
	"testing"

	"github.com/google/uuid"
)

func TestClearIsIdempotent(t *testing.T) {
	s := NewStore()
	p := uuid.New()
	if err := s.SetWall(p, WallEdit{RegionID: uuid.New(), Color: "#FF0000"}); err != nil {
		t.Fatalf("SetWall: %v", err)
	}
	if err := s.Clear(p); err != nil {
		t.Fatalf("first clear: %v", err)
	}
	before := s.Snapshot(p)
	if err := s.Clear(p); err != nil {
		t.Fatalf("second clear: %v", err)
	}
	after := s.Snapshot(p)
	if !before.Empty() || !reflect.DeepEqual(before, after) {
		t.Fatalf("second clear changed state: before=%+v after=%+v", before, after)
	}
}

func TestSetWallReplacesSameRegion(t *testing.T) {
	s := NewStore()
	p, r := uuid.New(), uuid.New()
	_ = s.SetWall(p, WallEdit{RegionID: r, Color: "#FF0000"})
	_ = s.SetWall(p, WallEdit{RegionID: r, Color: "#00FF00"})
	snap := s.Snapshot(p)
	if len(snap.Walls) != 1 || snap.Walls[0].Color != "#00FF00" {
		t.Fatalf("walls: want one #00FF00 got=%+v", snap.Walls)
	}
}

func TestWallEditTakesColorOrMaterial(t *testing.T) {
	s := NewStore()
	p, r := uuid.New(), uuid.New()
	if err := s.SetWall(p, WallEdit{RegionID: r, Color: "#FF0000", Material: "limewash-sand", MaterialName: "Sand Limewash"}); err == nil {
		t.Fatalf("want error for color plus material")
	}
	if !s.Snapshot(p).Empty() {
		t.Fatalf("rejected edit was stored: %+v", s.Snapshot(p))
	}
	if err := s.SetWall(p, WallEdit{RegionID: r, Material: "limewash-sand", MaterialName: "Sand Limewash"}); err != nil {
		t.Fatalf("material only: %v", err)
	}
}

func TestSingleFloorSlot(t *testing.T) {
	s := NewStore()
	p := uuid.New()
	_ = s.SetFloor(p, FloorEdit{Source: FloorSourceQuickPick, MaterialID: "oak"})
	_ = s.SetFloor(p, FloorEdit{Source: FloorSourceCustomText, Description: "grey slate tiles"})
	snap := s.Snapshot(p)
	if snap.Floor == nil || snap.Floor.Source != FloorSourceCustomText {
		t.Fatalf("floor: got=%+v", snap.Floor)
	}
	if snap.Count() != 1 {
		t.Fatalf("count: want=1 got=%d", snap.Count())
	}
}

func TestFloorEditValidate(t *testing.T) {
	cases := []struct {
		name string
		edit FloorEdit
		ok   bool
	}{
		{"catalog", FloorEdit{Source: FloorSourceQuickPick, MaterialID: "oak"}, true},
		{"catalog missing id", FloorEdit{Source: FloorSourceSponsored}, false},
		{"text", FloorEdit{Source: FloorSourceCustomText, Description: "terrazzo"}, true},
		{"text with image", FloorEdit{Source: FloorSourceCustomText, Description: "x", ReferenceKey: "k"}, false},
		{"image with hint", FloorEdit{Source: FloorSourceCustomImage, ReferenceKey: "k", Description: "matte"}, true},
		{"image missing", FloorEdit{Source: FloorSourceCustomImage}, false},
		{"unknown", FloorEdit{Source: "magic"}, false},
	}
	for _, tc := range cases {
		if err := tc.edit.Validate(); (err == nil) != tc.ok {
			t.Fatalf("%s: ok=%v err=%v", tc.name, tc.ok, err)
		}
	}
}

func placement() PlacementEdit {
	return PlacementEdit{ProductRef: "sofa-1", Strokes: []Stroke{{Points: []float64{1, 1, 50, 50}}}}
}

func TestPlacementsBoundedByPalette(t *testing.T) {
	s := NewStore()
	p := uuid.New()
	seen := map[string]bool{}
	for i := 0; i < len(Palette); i++ {
		got, err := s.AddPlacement(p, placement())
		if err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
		if seen[got.Color.Hex] {
			t.Fatalf("color %s reused", got.Color.Hex)
		}
		seen[got.Color.Hex] = true
	}
	if _, err := s.AddPlacement(p, placement()); !errors.Is(err, ErrPaletteFull) {
		t.Fatalf("overflow: want ErrPaletteFull got=%v", err)
	}

	first := s.Snapshot(p).Placements[0]
	if err := s.RemovePlacement(p, first.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	got, err := s.AddPlacement(p, placement())
	if err != nil {
		t.Fatalf("re-add: %v", err)
	}
	if got.Color != first.Color {
		t.Fatalf("freed color: want=%v got=%v", first.Color, got.Color)
	}
}

func TestLeaseBlocksEditsAndKeepsSetOnRelease(t *testing.T) {
	s := NewStore()
	p, r := uuid.New(), uuid.New()
	_ = s.SetWall(p, WallEdit{RegionID: r, Color: "#FF0000"})

	lease, err := s.Lock(p)
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if _, err := s.Lock(p); !errors.Is(err, ErrAlreadyHeld) {
		t.Fatalf("second lock: want ErrAlreadyHeld got=%v", err)
	}
	if err := s.SetWall(p, WallEdit{RegionID: r, Color: "#0000FF"}); !errors.Is(err, ErrLocked) {
		t.Fatalf("SetWall while locked: want ErrLocked got=%v", err)
	}
	if err := s.Clear(p); !errors.Is(err, ErrLocked) {
		t.Fatalf("Clear while locked: want ErrLocked got=%v", err)
	}
	if err := s.Reset(p); !errors.Is(err, ErrLocked) {
		t.Fatalf("Reset while locked: want ErrLocked got=%v", err)
	}
	if !s.RegionLocked(p, r) || s.RegionLocked(p, uuid.New()) {
		t.Fatalf("RegionLocked mismatch")
	}

	lease.Release()
	lease.Release()
	if s.Locked(p) {
		t.Fatalf("still locked after release")
	}
	if snap := s.Snapshot(p); len(snap.Walls) != 1 || snap.Walls[0].Color != "#FF0000" {
		t.Fatalf("release must not touch the set: %+v", snap)
	}
}

func TestLeaseClearEmptiesSet(t *testing.T) {
	s := NewStore()
	p := uuid.New()
	_ = s.SetWall(p, WallEdit{RegionID: uuid.New(), Color: "#FF0000"})
	lease, _ := s.Lock(p)
	if lease.Snapshot().Count() != 1 {
		t.Fatalf("lease snapshot count: want=1")
	}
	lease.Clear()
	lease.Release()
	if !s.Snapshot(p).Empty() {
		t.Fatalf("set not cleared")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := NewStore()
	p := uuid.New()
	_, _ = s.AddPlacement(p, placement())
	snap := s.Snapshot(p)
	snap.Placements[0].Strokes[0].Points[0] = 999
	if s.Snapshot(p).Placements[0].Strokes[0].Points[0] == 999 {
		t.Fatalf("snapshot aliases store state")
	}
}
