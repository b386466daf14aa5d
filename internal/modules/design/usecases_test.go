package design

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/roomviz-backend/internal/data/repos"
	"github.com/yungbote/roomviz-backend/internal/data/repos/testutil"
	types "github.com/yungbote/roomviz-backend/internal/domain"
	"github.com/yungbote/roomviz-backend/internal/modules/design/editplan"
	"github.com/yungbote/roomviz-backend/internal/modules/design/geometry"
	"github.com/yungbote/roomviz-backend/internal/modules/design/pending"
	"github.com/yungbote/roomviz-backend/internal/modules/design/render"
	"github.com/yungbote/roomviz-backend/internal/platform/apierr"
	"github.com/yungbote/roomviz-backend/internal/platform/dbctx"
	"github.com/yungbote/roomviz-backend/internal/services"
)

type fakeUploads struct {
	mu   sync.Mutex
	keys []string
}

func (f *fakeUploads) SaveVersion(ctx context.Context, projectID, versionID uuid.UUID, body []byte, mimeType string) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := services.VersionKey(projectID, versionID, mimeType)
	f.keys = append(f.keys, key)
	return key, "https://cdn.test/" + key, nil
}

func (f *fakeUploads) SaveReference(ctx context.Context, projectID uuid.UUID, body []byte, mimeType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := services.ReferenceKey(projectID, uuid.New(), mimeType)
	f.keys = append(f.keys, key)
	return key, nil
}

func (f *fakeUploads) MarkerURL(key string) string { return "https://cdn.test/" + key }

type fakeRenderer struct {
	startErr error
	started  []uuid.UUID
}

func (f *fakeRenderer) Start(ctx context.Context, projectID, ownerUserID uuid.UUID) (render.RunStatus, error) {
	if f.startErr != nil {
		return render.RunStatus{}, f.startErr
	}
	f.started = append(f.started, projectID)
	return render.RunStatus{RunID: uuid.New(), ProjectID: projectID, State: render.StatePreparing}, nil
}

func (f *fakeRenderer) Cancel(projectID uuid.UUID) (render.RunStatus, error) {
	return render.RunStatus{}, render.ErrNotRunning
}

func (f *fakeRenderer) Status(projectID uuid.UUID) render.RunStatus {
	return render.RunStatus{ProjectID: projectID, State: render.StateIdle}
}

type versionEvents struct {
	mu     sync.Mutex
	events []uuid.UUID
}

func (v *versionEvents) VersionChanged(ctx context.Context, projectID, versionID uuid.UUID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.events = append(v.events, versionID)
}

// gatedProjects lets a test pause a version switch after the project is
// looked up and before the new current version is written.
type gatedProjects struct {
	repos.ProjectRepo
	mu   sync.Mutex
	gate func()
}

func (g *gatedProjects) SetCurrentVersion(dbc dbctx.Context, id, versionID uuid.UUID) error {
	g.mu.Lock()
	gate := g.gate
	g.mu.Unlock()
	if gate != nil {
		gate()
	}
	return g.ProjectRepo.SetCurrentVersion(dbc, id, versionID)
}

func (g *gatedProjects) pause(fn func()) {
	g.mu.Lock()
	g.gate = fn
	g.mu.Unlock()
}

type harness struct {
	uc       Usecases
	projects *gatedProjects
	store    *pending.Store
	renders  *fakeRenderer
	versions repos.ImageVersionRepo
	events   *versionEvents
	owner    uuid.UUID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	cat, err := services.LoadCatalog(log, "")
	require.NoError(t, err)
	h := &harness{
		projects: &gatedProjects{ProjectRepo: repos.NewProjectRepo(db, log)},
		store:    pending.NewStore(),
		renders:  &fakeRenderer{},
		versions: repos.NewImageVersionRepo(db, log),
		events:   &versionEvents{},
		owner:    uuid.New(),
	}
	h.uc = New(UsecasesDeps{
		DB:       db,
		Log:      log,
		Projects: h.projects,
		Versions: h.versions,
		Regions:  repos.NewRegionRepo(db, log),
		Pending:  h.store,
		Renders:  h.renders,
		Uploads:  &fakeUploads{},
		Catalog:  cat,
		Notifier: h.events,
	})
	return h
}

func photo(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 190, B: 170, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func status(err error) int {
	if err == nil {
		return 0
	}
	return apierr.From(err).Status
}

func (h *harness) project(t *testing.T) *ProjectDetail {
	t.Helper()
	d, err := h.uc.CreateProject(context.Background(), CreateProjectInput{
		OwnerUserID: h.owner,
		Name:        "Kitchen",
		Image:       photo(t, 400, 300),
	})
	require.NoError(t, err)
	return d
}

var square = []float64{20, 20, 220, 20, 220, 220, 20, 220}

func TestCreateProjectStoresOriginal(t *testing.T) {
	h := newHarness(t)
	d := h.project(t)
	require.NotNil(t, d.Current)
	require.True(t, d.Current.IsOriginal)
	require.Equal(t, 400, d.Current.Width)
	require.Equal(t, 300, d.Current.Height)
	require.Equal(t, "image/png", d.Current.MimeType)
	require.Equal(t, d.Current.ID, *d.Project.CurrentVersionID)
	require.Empty(t, d.Regions)

	_, err := h.uc.CreateProject(context.Background(), CreateProjectInput{OwnerUserID: h.owner, Image: []byte("not an image")})
	require.Equal(t, http.StatusBadRequest, status(err))

	_, err = h.uc.GetProject(context.Background(), uuid.New(), d.Project.ID)
	require.Equal(t, http.StatusNotFound, status(err))
}

func TestCreateRegionFromScreenPoints(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.project(t)

	// Drawn at half zoom: screen 10..110 maps to native 20..220.
	r, err := h.uc.CreateRegion(ctx, h.owner, d.Project.ID, RegionInput{
		Points: []float64{10, 10, 110, 10, 110, 110, 10, 110},
		Space:  SpaceScreen,
		View:   geometry.View{Scale: 0.5},
	})
	require.NoError(t, err)
	require.Equal(t, "Wall 1", r.Label)
	require.Equal(t, types.RegionKindWall, r.Kind)
	require.InDelta(t, 0.05, r.Points[0], 1e-9)
	require.InDelta(t, 20.0/300.0, r.Points[1], 1e-9)
	require.InDelta(t, 0.55, r.Points[2], 1e-9)

	r2, err := h.uc.CreateRegion(ctx, h.owner, d.Project.ID, RegionInput{Points: square, Space: SpaceNative})
	require.NoError(t, err)
	require.Equal(t, "Wall 2", r2.Label)

	op, err := h.uc.CreateRegion(ctx, h.owner, d.Project.ID, RegionInput{Points: square, Kind: types.RegionKindOpening})
	require.NoError(t, err)
	require.Equal(t, "Opening 1", op.Label)

	_, err = h.uc.CreateRegion(ctx, h.owner, d.Project.ID, RegionInput{Label: "  wall   1 ", Points: square})
	require.Equal(t, http.StatusConflict, status(err))
	require.ErrorIs(t, err, ErrLabelTaken)

	_, err = h.uc.CreateRegion(ctx, h.owner, d.Project.ID, RegionInput{Points: []float64{0, 0, 10, 0, 10, 10, 0, 10}})
	require.Equal(t, http.StatusUnprocessableEntity, status(err))
	require.NotEmpty(t, apierr.From(err).Suggestion)

	_, err = h.uc.CreateRegion(ctx, h.owner, d.Project.ID, RegionInput{Points: square, Kind: "ceiling"})
	require.Equal(t, http.StatusBadRequest, status(err))

	list, err := h.uc.ListRegions(ctx, h.owner, d.Project.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
}

func TestRegionMutationsRejectedWhileRendering(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.project(t)
	wall, err := h.uc.CreateRegion(ctx, h.owner, d.Project.ID, RegionInput{Points: square})
	require.NoError(t, err)
	other, err := h.uc.CreateRegion(ctx, h.owner, d.Project.ID, RegionInput{Points: square})
	require.NoError(t, err)

	_, err = h.uc.SetWallEdit(ctx, h.owner, d.Project.ID, WallEditInput{RegionID: wall.ID, Color: "#aabbcc"})
	require.NoError(t, err)

	lease, err := h.store.Lock(d.Project.ID)
	require.NoError(t, err)

	_, err = h.uc.RenameRegion(ctx, h.owner, d.Project.ID, wall.ID, "Feature wall")
	require.Equal(t, http.StatusConflict, status(err))
	require.ErrorIs(t, err, pending.ErrLocked)
	require.Equal(t, http.StatusConflict, status(h.uc.DeleteRegion(ctx, h.owner, d.Project.ID, wall.ID)))

	// Regions outside the in-flight set stay editable.
	renamed, err := h.uc.RenameRegion(ctx, h.owner, d.Project.ID, other.ID, "Back wall")
	require.NoError(t, err)
	require.Equal(t, "Back wall", renamed.Label)

	_, err = h.uc.SetWallEdit(ctx, h.owner, d.Project.ID, WallEditInput{RegionID: other.ID, Color: "#112233"})
	require.Equal(t, http.StatusConflict, status(err))

	lease.Release()
	renamed, err = h.uc.RenameRegion(ctx, h.owner, d.Project.ID, wall.ID, "Feature wall")
	require.NoError(t, err)
	require.Equal(t, "Feature wall", renamed.Label)

	_, err = h.uc.RenameRegion(ctx, h.owner, d.Project.ID, other.ID, "FEATURE WALL")
	require.Equal(t, http.StatusConflict, status(err))

	require.NoError(t, h.uc.DeleteRegion(ctx, h.owner, d.Project.ID, wall.ID))
	set, err := h.uc.GetPending(ctx, h.owner, d.Project.ID)
	require.NoError(t, err)
	require.Empty(t, set.Walls)
}

func TestPendingEdits(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.project(t)
	wall, err := h.uc.CreateRegion(ctx, h.owner, d.Project.ID, RegionInput{Points: square})
	require.NoError(t, err)
	opening, err := h.uc.CreateRegion(ctx, h.owner, d.Project.ID, RegionInput{Points: square, Kind: types.RegionKindOpening})
	require.NoError(t, err)

	_, err = h.uc.SetWallEdit(ctx, h.owner, d.Project.ID, WallEditInput{RegionID: opening.ID, Color: "#FFFFFF"})
	require.Equal(t, http.StatusBadRequest, status(err))
	_, err = h.uc.SetWallEdit(ctx, h.owner, d.Project.ID, WallEditInput{RegionID: wall.ID, Color: "#GGGGGG"})
	require.Equal(t, http.StatusBadRequest, status(err))

	_, err = h.uc.SetWallEdit(ctx, h.owner, d.Project.ID, WallEditInput{RegionID: wall.ID, Color: "#AABBCC", Material: "limewash-sand"})
	require.Equal(t, http.StatusBadRequest, status(err))

	set, err := h.uc.SetWallEdit(ctx, h.owner, d.Project.ID, WallEditInput{RegionID: wall.ID, Material: "limewash-sand"})
	require.NoError(t, err)
	require.Len(t, set.Walls, 1)
	require.Equal(t, "Sand Limewash", set.Walls[0].MaterialName)

	set, err = h.uc.SetFloor(ctx, h.owner, d.Project.ID, FloorInput{MaterialID: "slate-tile"})
	require.NoError(t, err)
	require.Equal(t, pending.FloorSourceSponsored, set.Floor.Source)
	require.Equal(t, "Slate Tile", set.Floor.DisplayName)

	_, err = h.uc.SetFloor(ctx, h.owner, d.Project.ID, FloorInput{MaterialID: "limewash-sand"})
	require.Equal(t, http.StatusBadRequest, status(err))

	set, err = h.uc.UploadFloorReference(ctx, h.owner, d.Project.ID, photo(t, 16, 16), "image/png", "wide planks")
	require.NoError(t, err)
	require.Equal(t, pending.FloorSourceCustomImage, set.Floor.Source)
	require.NotEmpty(t, set.Floor.ReferenceKey)

	p, err := h.uc.AddPlacement(ctx, h.owner, d.Project.ID, PlacementInput{
		ProductRef:      "sofa-1",
		ProductImageURL: "https://shop.test/sofa.png",
		Strokes:         []pending.Stroke{{Points: []float64{10, 10, 50, 50}, Width: 12}},
	})
	require.NoError(t, err)
	require.Equal(t, pending.Palette[0], p.Color)

	_, err = h.uc.RemovePlacement(ctx, h.owner, d.Project.ID, uuid.New())
	require.Equal(t, http.StatusNotFound, status(err))
	set, err = h.uc.RemovePlacement(ctx, h.owner, d.Project.ID, p.ID)
	require.NoError(t, err)
	require.Empty(t, set.Placements)

	require.NoError(t, h.uc.ClearPending(ctx, h.owner, d.Project.ID))
	require.NoError(t, h.uc.ClearPending(ctx, h.owner, d.Project.ID))
	set, err = h.uc.GetPending(ctx, h.owner, d.Project.ID)
	require.NoError(t, err)
	require.True(t, set.Empty())
}

func TestSwitchVersionDropsPendingEdits(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.project(t)
	wall, err := h.uc.CreateRegion(ctx, h.owner, d.Project.ID, RegionInput{Points: square})
	require.NoError(t, err)
	rendered, err := h.versions.Append(dbctx.Context{Ctx: ctx}, &types.ImageVersion{
		ProjectID: d.Project.ID, URL: "https://cdn.test/v2.png", BucketKey: "v2.png", Width: 400, Height: 300,
	})
	require.NoError(t, err)

	_, err = h.uc.SetWallEdit(ctx, h.owner, d.Project.ID, WallEditInput{RegionID: wall.ID, Color: "#336699"})
	require.NoError(t, err)
	lease, err := h.store.Lock(d.Project.ID)
	require.NoError(t, err)
	_, err = h.uc.SwitchVersion(ctx, h.owner, d.Project.ID, rendered.ID)
	require.Equal(t, http.StatusConflict, status(err))
	lease.Release()

	out, err := h.uc.SwitchVersion(ctx, h.owner, d.Project.ID, rendered.ID)
	require.NoError(t, err)
	require.Equal(t, rendered.ID, out.Current.ID)
	require.True(t, out.Pending.Empty())
	require.Equal(t, []uuid.UUID{rendered.ID}, h.events.events)

	_, err = h.uc.SwitchVersion(ctx, h.owner, d.Project.ID, uuid.New())
	require.Equal(t, http.StatusNotFound, status(err))

	versions, err := h.uc.ListVersions(ctx, h.owner, d.Project.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
}

func TestSwitchVersionHoldsPendingSet(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.project(t)
	wall, err := h.uc.CreateRegion(ctx, h.owner, d.Project.ID, RegionInput{Points: square})
	require.NoError(t, err)
	older := d.Current.ID
	rendered, err := h.versions.Append(dbctx.Context{Ctx: ctx}, &types.ImageVersion{
		ProjectID: d.Project.ID, URL: "https://cdn.test/v2.png", BucketKey: "v2.png", Width: 400, Height: 300,
	})
	require.NoError(t, err)
	_, err = h.uc.SwitchVersion(ctx, h.owner, d.Project.ID, rendered.ID)
	require.NoError(t, err)
	_, err = h.uc.SetWallEdit(ctx, h.owner, d.Project.ID, WallEditInput{RegionID: wall.ID, Color: "#336699"})
	require.NoError(t, err)

	entered := make(chan struct{})
	proceed := make(chan struct{})
	h.projects.pause(func() {
		close(entered)
		<-proceed
	})
	done := make(chan error, 1)
	go func() {
		_, err := h.uc.SwitchVersion(ctx, h.owner, d.Project.ID, older)
		done <- err
	}()
	<-entered

	// A render admitted now would draw on the version being replaced.
	_, err = h.store.Lock(d.Project.ID)
	require.ErrorIs(t, err, pending.ErrAlreadyHeld)
	_, err = h.uc.SetWallEdit(ctx, h.owner, d.Project.ID, WallEditInput{RegionID: wall.ID, Color: "#112233"})
	require.Equal(t, http.StatusConflict, status(err))

	close(proceed)
	require.NoError(t, <-done)
	h.projects.pause(nil)

	require.True(t, h.store.Snapshot(d.Project.ID).Empty())
	require.False(t, h.store.Locked(d.Project.ID))
	got, err := h.uc.GetProject(ctx, h.owner, d.Project.ID)
	require.NoError(t, err)
	require.Equal(t, older, got.Current.ID)
}

func TestDeleteRegionDropsQueuedWall(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.project(t)
	wall, err := h.uc.CreateRegion(ctx, h.owner, d.Project.ID, RegionInput{Points: square})
	require.NoError(t, err)
	other, err := h.uc.CreateRegion(ctx, h.owner, d.Project.ID, RegionInput{Points: square})
	require.NoError(t, err)
	_, err = h.uc.SetWallEdit(ctx, h.owner, d.Project.ID, WallEditInput{RegionID: other.ID, Color: "#336699"})
	require.NoError(t, err)

	lease, err := h.store.Lock(d.Project.ID)
	require.NoError(t, err)
	// Not part of the in-flight set, but deleting still waits for the render.
	require.Equal(t, http.StatusConflict, status(h.uc.DeleteRegion(ctx, h.owner, d.Project.ID, wall.ID)))
	lease.Release()

	require.NoError(t, h.uc.DeleteRegion(ctx, h.owner, d.Project.ID, other.ID))
	require.Empty(t, h.store.Snapshot(d.Project.ID).Walls)
	require.False(t, h.store.Locked(d.Project.ID))
}

func TestRenderErrorsMapToStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.project(t)

	st, err := h.uc.SubmitRender(ctx, h.owner, d.Project.ID)
	require.NoError(t, err)
	require.Equal(t, render.StatePreparing, st.State)

	h.renders.startErr = render.ErrRenderInFlight
	_, err = h.uc.SubmitRender(ctx, h.owner, d.Project.ID)
	require.Equal(t, http.StatusConflict, status(err))

	h.renders.startErr = &render.Error{Kind: render.KindValidation, Reason: "nothing to render", Err: editplan.ErrEmpty}
	_, err = h.uc.SubmitRender(ctx, h.owner, d.Project.ID)
	ae := apierr.From(err)
	require.Equal(t, http.StatusUnprocessableEntity, ae.Status)
	require.Equal(t, "render_validation", ae.Code)
	require.Equal(t, render.Suggestion(render.KindValidation), ae.Suggestion)
	require.ErrorIs(t, err, editplan.ErrEmpty)

	_, err = h.uc.CancelRender(ctx, h.owner, d.Project.ID)
	require.Equal(t, http.StatusConflict, status(err))
}

func TestCheckPolygon(t *testing.T) {
	h := newHarness(t)
	res, err := h.uc.CheckPolygon([]float64{0.1, 0.1, 0.5, 0.1, 0.5, 0.5}, SpaceNormalized, geometry.View{}, 1000, 1000)
	require.NoError(t, err)
	require.True(t, res.Valid)
	require.InDelta(t, 80000, res.Area, 1e-6)
	require.Len(t, res.Normalized, 6)

	res, err = h.uc.CheckPolygon([]float64{0, 0, 1, 0}, SpaceNative, geometry.View{}, 100, 100)
	require.NoError(t, err)
	require.False(t, res.Valid)
	require.Equal(t, geometry.ReasonTooFewPoints, res.Reason)
	require.NotEmpty(t, res.Suggestion)

	_, err = h.uc.CheckPolygon(square, SpaceNative, geometry.View{}, 0, 10)
	require.Equal(t, http.StatusBadRequest, status(err))
}
