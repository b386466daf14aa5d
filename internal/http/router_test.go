package http

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/roomviz-backend/internal/data/repos"
	"github.com/yungbote/roomviz-backend/internal/data/repos/testutil"
	httpH "github.com/yungbote/roomviz-backend/internal/http/handlers"
	httpMW "github.com/yungbote/roomviz-backend/internal/http/middleware"
	"github.com/yungbote/roomviz-backend/internal/modules/design"
	"github.com/yungbote/roomviz-backend/internal/modules/design/pending"
	"github.com/yungbote/roomviz-backend/internal/modules/design/render"
	"github.com/yungbote/roomviz-backend/internal/realtime"
	"github.com/yungbote/roomviz-backend/internal/services"
)

const testSecret = "router-test-secret"

type memUploads struct{}

func (memUploads) SaveVersion(ctx context.Context, projectID, versionID uuid.UUID, body []byte, mimeType string) (string, string, error) {
	key := services.VersionKey(projectID, versionID, mimeType)
	return key, "https://cdn.test/" + key, nil
}

func (memUploads) SaveReference(ctx context.Context, projectID uuid.UUID, body []byte, mimeType string) (string, error) {
	return services.ReferenceKey(projectID, uuid.New(), mimeType), nil
}

func (memUploads) MarkerURL(key string) string { return "https://cdn.test/" + key }

type stubRenderer struct{}

func (stubRenderer) Start(ctx context.Context, projectID, ownerUserID uuid.UUID) (render.RunStatus, error) {
	return render.RunStatus{RunID: uuid.New(), ProjectID: projectID, State: render.StatePreparing, EditCount: 1}, nil
}

func (stubRenderer) Cancel(projectID uuid.UUID) (render.RunStatus, error) {
	return render.RunStatus{}, render.ErrNotRunning
}

func (stubRenderer) Status(projectID uuid.UUID) render.RunStatus {
	return render.RunStatus{ProjectID: projectID, State: render.StateIdle}
}

type testAPI struct {
	engine *gin.Engine
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.DB(t)
	log := testutil.Logger(t)
	cat, err := services.LoadCatalog(log, "")
	require.NoError(t, err)

	uc := design.New(design.UsecasesDeps{
		DB:       db,
		Log:      log,
		Projects: repos.NewProjectRepo(db, log),
		Versions: repos.NewImageVersionRepo(db, log),
		Regions:  repos.NewRegionRepo(db, log),
		Pending:  pending.NewStore(),
		Renders:  stubRenderer{},
		Uploads:  memUploads{},
		Catalog:  cat,
	})
	engine := NewRouter(RouterConfig{
		Log:               log,
		AuthMiddleware:    httpMW.NewAuthMiddleware(log, testSecret, ""),
		RenderRateLimiter: httpMW.NewUserRateLimiter(1, 1),
		HealthHandler:     httpH.NewHealthHandler(nil),
		ProjectHandler:    httpH.NewProjectHandler(log, uc),
		RegionHandler:     httpH.NewRegionHandler(log, uc),
		PendingHandler:    httpH.NewPendingHandler(log, uc),
		RenderHandler:     httpH.NewRenderHandler(log, uc),
		PolygonHandler:    httpH.NewPolygonHandler(log, uc),
		CatalogHandler:    httpH.NewCatalogHandler(cat),
		RealtimeHandler:   httpH.NewRealtimeHandler(log, realtime.NewSSEHub(log), uc),
	})
	return &testAPI{engine: engine}
}

func token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	tok, err := httpMW.SignToken(testSecret, "", userID, time.Hour)
	require.NoError(t, err)
	return tok
}

func (a *testAPI) do(t *testing.T, method, path, tok string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	a.engine.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) upload(t *testing.T, path, tok string, img []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("name", "Living room"))
	fw, err := mw.CreateFormFile("image", "room.png")
	require.NoError(t, err)
	_, err = fw.Write(img)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	a.engine.ServeHTTP(rec, req)
	return rec
}

func roomPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 400, 300))
	for y := 0; y < 300; y++ {
		for x := 0; x < 400; x++ {
			img.Set(x, y, color.RGBA{R: 210, G: 200, B: 180, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type errorBody struct {
	Error struct {
		Code       string `json:"code"`
		Suggestion string `json:"suggestion"`
	} `json:"error"`
}

func TestProjectRegionRenderFlow(t *testing.T) {
	api := newTestAPI(t)
	owner := uuid.New()
	tok := token(t, owner)

	rec := api.upload(t, "/api/projects", tok, roomPNG(t))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[design.ProjectDetail](t, rec)
	require.Equal(t, "Living room", created.Project.Name)
	require.NotNil(t, created.Current)
	require.True(t, created.Current.IsOriginal)
	projectID := created.Project.ID.String()

	rec = api.do(t, http.MethodPost, "/api/projects/"+projectID+"/regions", tok, map[string]any{
		"kind":   "wall",
		"space":  "native",
		"points": []float64{20, 20, 220, 20, 220, 220, 20, 220},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	region := decode[struct {
		ID    uuid.UUID `json:"id"`
		Label string    `json:"label"`
	}](t, rec)
	require.Equal(t, "Wall 1", region.Label)

	rec = api.do(t, http.MethodPut, "/api/projects/"+projectID+"/pending/walls/"+region.ID.String(), tok, map[string]any{
		"color": "#aabbcc",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	set := decode[pending.Set](t, rec)
	require.Len(t, set.Walls, 1)
	require.Equal(t, "#AABBCC", set.Walls[0].Color)

	rec = api.do(t, http.MethodPatch, "/api/projects/"+projectID+"/regions/"+region.ID.String(), tok, map[string]any{
		"label": "Accent wall",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodPost, "/api/projects/"+projectID+"/renders", tok, nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	st := decode[render.RunStatus](t, rec)
	require.Equal(t, render.StatePreparing, st.State)

	rec = api.do(t, http.MethodPost, "/api/projects/"+projectID+"/renders", tok, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = api.do(t, http.MethodDelete, "/api/projects/"+projectID+"/renders/current", tok, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "render_not_running", decode[errorBody](t, rec).Error.Code)
}

func TestProjectsAreScopedToOwner(t *testing.T) {
	api := newTestAPI(t)
	tok := token(t, uuid.New())

	rec := api.upload(t, "/api/projects", tok, roomPNG(t))
	require.Equal(t, http.StatusCreated, rec.Code)
	projectID := decode[design.ProjectDetail](t, rec).Project.ID.String()

	rec = api.do(t, http.MethodGet, "/api/projects/"+projectID, "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/projects/"+projectID, token(t, uuid.New()), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/projects/not-a-uuid", tok, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_id", decode[errorBody](t, rec).Error.Code)
}

func TestCreateRegionRejectsTinyPolygon(t *testing.T) {
	api := newTestAPI(t)
	tok := token(t, uuid.New())
	rec := api.upload(t, "/api/projects", tok, roomPNG(t))
	require.Equal(t, http.StatusCreated, rec.Code)
	projectID := decode[design.ProjectDetail](t, rec).Project.ID.String()

	rec = api.do(t, http.MethodPost, "/api/projects/"+projectID+"/regions", tok, map[string]any{
		"space":  "native",
		"points": []float64{10, 10, 20, 10, 20, 20},
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode[errorBody](t, rec)
	require.Equal(t, "invalid_polygon", body.Error.Code)
	require.NotEmpty(t, body.Error.Suggestion)
}

func TestValidatePolygonEndpoint(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/polygons/validate", "", map[string]any{
		"points": []float64{0, 0, 100, 0, 100, 100, 0, 100},
		"width":  200,
		"height": 200,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ok := decode[design.PolygonCheck](t, rec)
	require.True(t, ok.Valid)
	require.Equal(t, []float64{0, 0, 0.5, 0, 0.5, 0.5, 0, 0.5}, ok.Normalized)

	rec = api.do(t, http.MethodPost, "/api/polygons/validate", "", map[string]any{
		"points": []float64{0, 0, 300, 0, 300, 300},
		"width":  200,
		"height": 200,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	bad := decode[design.PolygonCheck](t, rec)
	require.False(t, bad.Valid)
	require.Equal(t, "outside bounds", bad.Reason)
	require.NotEmpty(t, bad.Suggestion)

	rec = api.do(t, http.MethodPost, "/api/polygons/validate", "", map[string]any{
		"points": []float64{0, 0, 1, 0, 1, 1},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCatalogEndpoint(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/api/catalog?kind=floor", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Materials []services.Material `json:"materials"`
	}](t, rec)
	require.NotEmpty(t, body.Materials)
	for _, m := range body.Materials {
		require.Equal(t, "floor", m.Kind)
	}

	rec = api.do(t, http.MethodGet, "/api/catalog?kind=ceiling", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthcheck(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodGet, "/healthcheck", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = api.do(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
