package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cds-ils/internal/dto"
	"cds-ils/internal/entities"
	"cds-ils/internal/serializers"
	apperrors "cds-ils/pkg/errors"
	"cds-ils/pkg/utils"
)

func TestPing(t *testing.T) {
	e := echo.New()
	e.GET("/ping", Ping)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "OK", rec.Body.String())
		assert.True(t, strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMETextPlain))
	}
}

type fakeSyncService struct {
	err    error
	action string
	dryRun bool
}

func (f *fakeSyncService) Run(ctx context.Context, action string, dryRun bool) (*dto.SyncResultDTO, error) {
	return nil, f.err
}

func (f *fakeSyncService) Start(ctx context.Context, action string, dryRun bool) error {
	f.action, f.dryRun = action, dryRun
	return f.err
}

func (f *fakeSyncService) Wait() {}

func syncServer(svc *fakeSyncService) *echo.Echo {
	e := echo.New()
	e.Validator = utils.NewValidator(validator.New())
	e.POST("/api/sync/ldap", NewSyncController(svc, zap.NewNop()).HandleLDAPSync)
	return e
}

func postSync(e *echo.Echo, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/sync/ldap", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSyncController(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantCode   int
		wantDryRun bool
	}{
		{"update accepted", `{"action":"update"}`, nil, http.StatusAccepted, false},
		{"delete defaults to dry run", `{"action":"delete"}`, nil, http.StatusAccepted, true},
		{"delete for real", `{"action":"delete","dry_run":false}`, nil, http.StatusAccepted, false},
		{"unknown action", `{"action":"purge"}`, nil, http.StatusBadRequest, false},
		{"broken json", `{"action":`, nil, http.StatusBadRequest, false},
		{"already running", `{"action":"update"}`, apperrors.ErrSyncInProgress, http.StatusConflict, false},
		{"delete disabled", `{"action":"delete"}`, apperrors.ErrUserDeletionDisabled, http.StatusForbidden, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeSyncService{err: tt.serviceErr}
			rec := postSync(syncServer(svc), tt.body)

			assert.Equal(t, tt.wantCode, rec.Code)
			var resp utils.HttpResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode == http.StatusAccepted, resp.Status)
			if tt.wantCode == http.StatusAccepted || tt.serviceErr != nil {
				assert.Equal(t, tt.wantDryRun, svc.dryRun)
			}
		})
	}
}

type fakeLiteratureRepo struct {
	records map[string]entities.LiteratureRecord
}

func (f *fakeLiteratureRepo) FindByPID(ctx context.Context, pid string) (*entities.LiteratureRecord, error) {
	rec, ok := f.records[pid]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &rec, nil
}

func (f *fakeLiteratureRepo) Search(ctx context.Context, q string, limit, offset uint64) ([]entities.LiteratureRecord, uint64, error) {
	out := []entities.LiteratureRecord{}
	for _, rec := range f.records {
		out = append(out, rec)
	}
	return out, uint64(len(out)), nil
}

func literatureServer() *echo.Echo {
	repo := &fakeLiteratureRepo{records: map[string]entities.LiteratureRecord{
		"docid-1": {
			PID: "docid-1",
			Metadata: map[string]interface{}{
				"title": "Quantum Field Theory",
				"eitems": map[string]interface{}{"hits": []interface{}{
					map[string]interface{}{"urls": []interface{}{
						map[string]interface{}{"value": "https://cds.cern.ch/a.pdf", "login_required": true},
					}},
				}},
			},
			Created: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			Updated: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
		},
	}}
	serializer := serializers.NewJSONSerializer(
		serializers.NewLiteratureJSONSerializer(serializers.NewILSJSONSerializer(nil), serializers.DefaultEZProxyURL),
	)
	e := echo.New()
	c := NewLiteratureController(repo, serializer, time.Second, zap.NewNop())
	e.GET("/api/literature", c.SearchLiterature)
	e.GET("/api/literature/:pid", c.GetLiterature)
	return e
}

func TestLiteratureController_Get(t *testing.T) {
	e := literatureServer()

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/literature/docid-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"docid-1"`)
	assert.Contains(t, rec.Body.String(), "https://ezproxy.cern.ch/login?url=https://cds.cern.ch/a.pdf")

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/literature/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLiteratureController_Search(t *testing.T) {
	e := literatureServer()

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/literature?q=quantum&size=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Hits struct {
			Hits  []map[string]interface{} `json:"hits"`
			Total int                      `json:"total"`
		} `json:"hits"`
		Links map[string]string `json:"links"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 1, out.Hits.Total)
	require.Len(t, out.Hits.Hits, 1)
	assert.Equal(t, "/api/literature?q=quantum&size=5", out.Links["self"])
}
