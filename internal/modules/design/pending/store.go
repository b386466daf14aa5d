package pending

import (
	"errors"
	"slices"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrLocked      = errors.New("a render is in progress for this project")
	ErrPaletteFull = errors.New("all placement colors are in use")
	ErrNotFound    = errors.New("pending edit not found")
	ErrAlreadyHeld = errors.New("pending set already locked")
)

// Set is a value snapshot of a project's pending edits.
type Set struct {
	Walls      []WallEdit      `json:"walls"`
	Floor      *FloorEdit      `json:"floor,omitempty"`
	Placements []PlacementEdit `json:"placements"`
}

func (s Set) Empty() bool {
	return len(s.Walls) == 0 && s.Floor == nil && len(s.Placements) == 0
}

func (s Set) Count() int {
	n := len(s.Walls) + len(s.Placements)
	if s.Floor != nil {
		n++
	}
	return n
}

// Edits lists the set as tagged edits in builder order.
func (s Set) Edits() []Edit {
	out := make([]Edit, 0, s.Count())
	for _, w := range s.Walls {
		out = append(out, w)
	}
	if s.Floor != nil {
		out = append(out, *s.Floor)
	}
	for _, p := range s.Placements {
		out = append(out, p)
	}
	return out
}

func (s Set) RegionIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(s.Walls))
	for _, w := range s.Walls {
		ids = append(ids, w.RegionID)
	}
	return ids
}

func (s Set) clone() Set {
	out := Set{
		Walls:      slices.Clone(s.Walls),
		Placements: make([]PlacementEdit, len(s.Placements)),
	}
	if out.Walls == nil {
		out.Walls = []WallEdit{}
	}
	if s.Floor != nil {
		f := *s.Floor
		out.Floor = &f
	}
	for i, p := range s.Placements {
		p.Strokes = slices.Clone(p.Strokes)
		for j := range p.Strokes {
			p.Strokes[j].Points = slices.Clone(p.Strokes[j].Points)
		}
		out.Placements[i] = p
	}
	return out
}

type entry struct {
	set    Set
	lease  *Lease
	region map[uuid.UUID]bool
}

// Store keeps pending sets in memory, keyed by project.
type Store struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*entry
}

func NewStore() *Store {
	return &Store{entries: make(map[uuid.UUID]*entry)}
}

func (s *Store) get(projectID uuid.UUID) *entry {
	e, ok := s.entries[projectID]
	if !ok {
		e = &entry{}
		s.entries[projectID] = e
	}
	return e
}

func (s *Store) mutate(projectID uuid.UUID, fn func(e *entry) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.get(projectID)
	if e.lease != nil {
		return ErrLocked
	}
	return fn(e)
}

// SetWall adds or replaces the edit for one region.
func (s *Store) SetWall(projectID uuid.UUID, edit WallEdit) error {
	if err := edit.Validate(); err != nil {
		return err
	}
	return s.mutate(projectID, func(e *entry) error {
		for i, w := range e.set.Walls {
			if w.RegionID == edit.RegionID {
				e.set.Walls[i] = edit
				return nil
			}
		}
		e.set.Walls = append(e.set.Walls, edit)
		return nil
	})
}

func (s *Store) RemoveWall(projectID, regionID uuid.UUID) error {
	return s.mutate(projectID, func(e *entry) error {
		e.set.Walls = slices.DeleteFunc(e.set.Walls, func(w WallEdit) bool { return w.RegionID == regionID })
		return nil
	})
}

// SetFloor replaces the single floor slot.
func (s *Store) SetFloor(projectID uuid.UUID, edit FloorEdit) error {
	if err := edit.Validate(); err != nil {
		return err
	}
	return s.mutate(projectID, func(e *entry) error {
		e.set.Floor = &edit
		return nil
	})
}

func (s *Store) ClearFloor(projectID uuid.UUID) error {
	return s.mutate(projectID, func(e *entry) error {
		e.set.Floor = nil
		return nil
	})
}

// AddPlacement assigns the first free palette color and returns the stored edit.
func (s *Store) AddPlacement(projectID uuid.UUID, edit PlacementEdit) (PlacementEdit, error) {
	if err := edit.Validate(); err != nil {
		return PlacementEdit{}, err
	}
	err := s.mutate(projectID, func(e *entry) error {
		if len(e.set.Placements) >= len(Palette) {
			return ErrPaletteFull
		}
		used := make(map[string]bool, len(e.set.Placements))
		for _, p := range e.set.Placements {
			used[p.Color.Hex] = true
		}
		for _, c := range Palette {
			if !used[c.Hex] {
				edit.Color = c
				break
			}
		}
		if edit.ID == uuid.Nil {
			edit.ID = uuid.New()
		}
		e.set.Placements = append(e.set.Placements, edit)
		return nil
	})
	return edit, err
}

func (s *Store) RemovePlacement(projectID, placementID uuid.UUID) error {
	return s.mutate(projectID, func(e *entry) error {
		n := len(e.set.Placements)
		e.set.Placements = slices.DeleteFunc(e.set.Placements, func(p PlacementEdit) bool { return p.ID == placementID })
		if len(e.set.Placements) == n {
			return ErrNotFound
		}
		return nil
	})
}

// Clear empties the set. Clearing an empty set is a no-op.
func (s *Store) Clear(projectID uuid.UUID) error {
	return s.mutate(projectID, func(e *entry) error {
		e.set = Set{}
		return nil
	})
}

// Reset drops everything for a project, used when the current version changes.
func (s *Store) Reset(projectID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[projectID]
	if !ok {
		return nil
	}
	if e.lease != nil {
		return ErrLocked
	}
	delete(s.entries, projectID)
	return nil
}

func (s *Store) Snapshot(projectID uuid.UUID) Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[projectID]; ok {
		return e.set.clone()
	}
	return Set{Walls: []WallEdit{}, Placements: []PlacementEdit{}}
}

func (s *Store) Locked(projectID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[projectID]
	return ok && e.lease != nil
}

// RegionLocked reports whether regionID is part of an in-flight render.
func (s *Store) RegionLocked(projectID, regionID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[projectID]
	return ok && e.lease != nil && e.region[regionID]
}

// Lease pins a project's pending set for the duration of one render.
type Lease struct {
	store     *Store
	projectID uuid.UUID
	snapshot  Set
	released  bool
}

// Lock freezes the set and returns the snapshot the render will consume.
func (s *Store) Lock(projectID uuid.UUID) (*Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.get(projectID)
	if e.lease != nil {
		return nil, ErrAlreadyHeld
	}
	l := &Lease{store: s, projectID: projectID, snapshot: e.set.clone()}
	e.lease = l
	e.region = make(map[uuid.UUID]bool, len(e.set.Walls))
	for _, w := range e.set.Walls {
		e.region[w.RegionID] = true
	}
	return l, nil
}

func (l *Lease) Snapshot() Set { return l.snapshot.clone() }

// Clear empties the set under the lease. Safe to call more than once.
func (l *Lease) Clear() {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	if e, ok := l.store.entries[l.projectID]; ok && e.lease == l {
		e.set = Set{}
	}
}

// RemoveWall drops a wall edit while the set is held, for a region that is
// being deleted.
func (l *Lease) RemoveWall(regionID uuid.UUID) {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	if e, ok := l.store.entries[l.projectID]; ok && e.lease == l {
		e.set.Walls = slices.DeleteFunc(e.set.Walls, func(w WallEdit) bool { return w.RegionID == regionID })
	}
}

// Release unlocks the set; the contents are left as they are.
func (l *Lease) Release() {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	if l.released {
		return
	}
	l.released = true
	if e, ok := l.store.entries[l.projectID]; ok && e.lease == l {
		e.lease = nil
		e.region = nil
	}
}
