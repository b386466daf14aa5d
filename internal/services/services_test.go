package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/roomviz-backend/internal/data/repos"
	"github.com/yungbote/roomviz-backend/internal/data/repos/testutil"
	types "github.com/yungbote/roomviz-backend/internal/domain"
	"github.com/yungbote/roomviz-backend/internal/modules/design/editplan"
	"github.com/yungbote/roomviz-backend/internal/modules/design/pending"
	"github.com/yungbote/roomviz-backend/internal/modules/design/render"
	"github.com/yungbote/roomviz-backend/internal/platform/dbctx"
	"github.com/yungbote/roomviz-backend/internal/platform/gcp"
	"github.com/yungbote/roomviz-backend/internal/platform/logger"
	"github.com/yungbote/roomviz-backend/internal/platform/openai"
	"github.com/yungbote/roomviz-backend/internal/realtime"
)

func TestDefaultCatalogLoads(t *testing.T) {
	c, err := LoadCatalog(logger.Nop(), "")
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	m, ok := c.Lookup("herringbone-ash")
	if !ok || !m.Sponsored() || m.Sponsor == "" {
		t.Fatalf("sponsored material: got=%+v ok=%v", m, ok)
	}
	floors := c.List("floor")
	if len(floors) == 0 || !floors[0].Sponsored() {
		t.Fatalf("floors should list sponsored first: got=%+v", floors)
	}
	if name, ok := c.DisplayName("oak-natural"); !ok || name != "Natural Oak Planks" {
		t.Fatalf("DisplayName: want=%q got=%q", "Natural Oak Planks", name)
	}
}

func TestParseCatalogRejectsBadEntries(t *testing.T) {
	cases := map[string]string{
		"missing id":       "materials:\n  - name: X\n",
		"duplicate":        "materials:\n  - id: a\n  - id: a\n",
		"sponsor required": "materials:\n  - id: a\n    category: sponsored\n",
		"bad category":     "materials:\n  - id: a\n    category: bargain\n",
	}
	for name, raw := range cases {
		if _, err := ParseCatalog([]byte(raw)); err == nil {
			t.Fatalf("%s: want error", name)
		}
	}
}

type failingEstimates struct{ repos.CostEstimateRepo }

func (failingEstimates) Upsert(dbctx.Context, *types.CostEstimate) error {
	return errors.New("estimates table locked")
}

func TestBookkeeperWritesEstimateAndUsage(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()
	cat, err := LoadCatalog(log, "")
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	estimates := repos.NewCostEstimateRepo(db, log)
	usage := repos.NewCatalogUsageRepo(db, log)
	logs := repos.NewRenderLogRepo(db, log)
	b := NewBookkeeper(log, cat, estimates, usage, logs, BookkeepingConfig{ReferenceAreaM2: 100, FloorAreaM2: 10})

	regionID := uuid.New()
	rc := render.Receipt{
		ProjectID: uuid.New(),
		Version:   &types.ImageVersion{ID: uuid.New()},
		Set: pending.Set{
			Walls: []pending.WallEdit{{RegionID: regionID, Color: "#FF0000"}},
			Floor: &pending.FloorEdit{MaterialID: "herringbone-ash", Source: pending.FloorSourceSponsored},
		},
		Regions: map[uuid.UUID]*types.Region{
			// 0.2 x 0.2 of the frame.
			regionID: {ID: regionID, Label: "Wall 1", Points: []float64{0.1, 0.1, 0.3, 0.1, 0.3, 0.3, 0.1, 0.3}},
		},
	}
	if err := b.AfterRender(ctx, rc); err != nil {
		t.Fatalf("AfterRender: %v", err)
	}

	est, err := estimates.GetByVersion(dbctx.Context{Ctx: ctx}, rc.Version.ID)
	if err != nil || est == nil {
		t.Fatalf("GetByVersion: est=%v err=%v", est, err)
	}
	// wall: 0.04 * 100 m2 * 4.5 = 18; floor: 10 m2 * 64 = 640.
	if len(est.Lines) != 2 || est.Total != 658 {
		t.Fatalf("estimate: want total=658 lines=2 got total=%v lines=%+v", est.Total, est.Lines)
	}
	n, err := usage.CountByMaterial(dbctx.Context{Ctx: ctx}, "herringbone-ash")
	if err != nil || n != 1 {
		t.Fatalf("usage count: want=1 got=%d err=%v", n, err)
	}

	failing := NewBookkeeper(log, cat, failingEstimates{estimates}, usage, logs, BookkeepingConfig{})
	if err := failing.AfterRender(ctx, rc); err == nil || !strings.Contains(err.Error(), "cost estimate") {
		t.Fatalf("AfterRender with failing estimates: got=%v", err)
	}
	// Usage is still attempted when the estimate write fails.
	if n, _ := usage.CountByMaterial(dbctx.Context{Ctx: ctx}, "herringbone-ash"); n != 2 {
		t.Fatalf("usage count after partial failure: want=2 got=%d", n)
	}
}

func TestBookkeeperLogRender(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	cat, _ := ParseCatalog([]byte("materials: []\n"))
	logs := repos.NewRenderLogRepo(db, log)
	b := NewBookkeeper(log, cat, repos.NewCostEstimateRepo(db, log), repos.NewCatalogUsageRepo(db, log), logs, BookkeepingConfig{})

	projectID := uuid.New()
	err := b.LogRender(context.Background(), render.LogEntry{
		ProjectID: projectID,
		Model:     "gpt-image-1",
		Outcome:   "failed",
		ErrorKind: render.KindTimeout,
		Err:       errors.New("deadline"),
		Duration:  1500 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("LogRender: %v", err)
	}
	rows, err := logs.ListByProject(dbctx.Context{Ctx: context.Background()}, projectID, 10)
	if err != nil || len(rows) != 1 {
		t.Fatalf("ListByProject: rows=%d err=%v", len(rows), err)
	}
	if rows[0].ErrorKind != "timeout" || rows[0].DurationMS != 1500 || rows[0].Error != "deadline" {
		t.Fatalf("row: got=%+v", rows[0])
	}
}

type fakeOpenAI struct {
	got openai.EditRequest
	res openai.EditResult
	err error
}

func (f *fakeOpenAI) EditImage(ctx context.Context, req openai.EditRequest) (openai.EditResult, error) {
	f.got = req
	return f.res, f.err
}

func TestOpenAIEditorMapsRequestAndErrors(t *testing.T) {
	client := &fakeOpenAI{res: openai.EditResult{Bytes: []byte("png"), MimeType: "image/png"}}
	ed := NewOpenAIEditor(logger.Nop(), client, "")
	req := editplan.Request{
		Images: []editplan.Image{
			{Slot: editplan.SlotBase, Name: "base.png", Bytes: []byte("a"), MimeType: "image/png"},
			{Slot: editplan.SlotWallMarkers, Name: "wall_markers.png", Bytes: []byte("b"), MimeType: "image/png"},
		},
		Instruction: "Paint it",
		Params:      editplan.Params{Temperature: 0.2, AspectRatio: 1920.0 / 1080.0},
	}
	out, err := ed.Edit(context.Background(), req)
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if string(out.Bytes) != "png" {
		t.Fatalf("output bytes: got=%q", out.Bytes)
	}
	if len(client.got.Images) != 2 || client.got.Images[1].Name != "wall_markers.png" {
		t.Fatalf("images: got=%+v", client.got.Images)
	}
	if client.got.Size != "1536x1024" || client.got.Fidelity != "high" || client.got.Model != "gpt-image-1" {
		t.Fatalf("params: size=%s fidelity=%s model=%s", client.got.Size, client.got.Fidelity, client.got.Model)
	}

	client.err = &openai.RefusalError{Code: "moderation_blocked", Message: "no"}
	_, err = ed.Edit(context.Background(), req)
	if render.KindOf(err) != render.KindSafety {
		t.Fatalf("refusal kind: want=%s got=%s", render.KindSafety, render.KindOf(err))
	}

	client.err = openai.ErrNoImage
	_, err = ed.Edit(context.Background(), req)
	if !errors.Is(err, render.ErrNoImage) {
		t.Fatalf("no image: got=%v", err)
	}
}

func TestProjectNotifierEvents(t *testing.T) {
	hub := realtime.NewSSEHub(logger.Nop())
	client := hub.NewSSEClient(uuid.New())
	projectID := uuid.New()
	hub.AddChannel(client, realtime.ProjectChannel(projectID))
	n := NewProjectNotifier(realtime.NewEmitter(logger.Nop(), hub, nil))

	states := []render.RunStatus{
		{ProjectID: projectID, State: render.StatePreparing},
		{ProjectID: projectID, State: render.StateAwaiting, Progress: 12},
		{ProjectID: projectID, State: render.StateIdle, Canceled: true},
	}
	want := []realtime.SSEEvent{realtime.SSEEventRenderStarted, realtime.SSEEventRenderProgress, realtime.SSEEventRenderCanceled}
	for i, st := range states {
		n.RenderStatus(context.Background(), st)
		select {
		case msg := <-client.Outbound:
			if msg.Event != want[i] {
				t.Fatalf("event %d: want=%s got=%s", i, want[i], msg.Event)
			}
		case <-time.After(time.Second):
			t.Fatalf("event %d: timed out", i)
		}
	}
}

type memBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memBucket) UploadFile(ctx context.Context, cat gcp.BucketCategory, key string, r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[string(cat)+"/"+key] = b
	return nil
}

func (m *memBucket) DeleteFile(ctx context.Context, cat gcp.BucketCategory, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, string(cat)+"/"+key)
	return nil
}

func (m *memBucket) DownloadFile(ctx context.Context, cat gcp.BucketCategory, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[string(cat)+"/"+key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memBucket) GetPublicURL(cat gcp.BucketCategory, key string) string {
	return "https://cdn.test/" + string(cat) + "/" + key
}

func TestImageStoreRoundTrip(t *testing.T) {
	bucket := &memBucket{objects: map[string][]byte{}}
	s := NewImageStore(logger.Nop(), bucket, nil)
	ctx := context.Background()
	projectID, versionID := uuid.New(), uuid.New()

	key, url, err := s.SaveVersion(ctx, projectID, versionID, []byte("\x89PNG\r\n\x1a\n"), "image/png")
	if err != nil {
		t.Fatalf("SaveVersion: %v", err)
	}
	if !strings.HasSuffix(key, versionID.String()+".png") || !strings.Contains(url, key) {
		t.Fatalf("key/url: key=%s url=%s", key, url)
	}
	blob, err := s.Version(ctx, &types.ImageVersion{BucketKey: key})
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if blob.MimeType != "image/png" || len(blob.Bytes) != 8 {
		t.Fatalf("blob: mime=%s len=%d", blob.MimeType, len(blob.Bytes))
	}

	ref, err := s.SaveReference(ctx, projectID, []byte("jpegbytes"), "image/jpeg")
	if err != nil {
		t.Fatalf("SaveReference: %v", err)
	}
	if _, err := s.Reference(ctx, ref); err != nil {
		t.Fatalf("Reference: %v", err)
	}
	if _, err := s.Reference(ctx, "missing.png"); err == nil {
		t.Fatalf("Reference missing: want error")
	}
	if _, err := s.Product(ctx, "https://example.test/p.png"); err == nil {
		t.Fatalf("Product without fetcher: want error")
	}
}
