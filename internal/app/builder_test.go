package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/mock/gomock"

	storagemocks "github.com/pagepulse/comment-sync/internal/app/storage/mocks"
	"github.com/pagepulse/comment-sync/internal/config"
	"github.com/pagepulse/comment-sync/internal/cursor"
	cursormocks "github.com/pagepulse/comment-sync/internal/cursor/mocks"
	"github.com/pagepulse/comment-sync/internal/sink"
	sinkmocks "github.com/pagepulse/comment-sync/internal/sink/mocks"
	"github.com/pagepulse/comment-sync/internal/sources"
	sourcemocks "github.com/pagepulse/comment-sync/internal/sources/mocks"
	"github.com/pagepulse/comment-sync/internal/status"
	syncmocks "github.com/pagepulse/comment-sync/internal/sync/mocks"
)

// createValidTestConfig creates a minimal valid config for testing
func createValidTestConfig() *config.Config {
	return &config.Config{
		InstanceID: "test-instance",
		Source: config.SourceConfig{
			Facebook: &config.FacebookConfig{PageID: "page"},
		},
		Sync: config.SyncConfig{
			Interval: "30m",
		},
		Cursor: config.CursorConfig{Type: config.CursorTypeMemory},
		Sink:   config.SinkConfig{Type: config.SinkTypeSheets},
	}
}

func memoryStore() cursor.Store {
	return cursor.NewStore(cursor.NewMemoryBackend(nil))
}

// newMockFactory returns a factory handing out the given store and sink.
func newMockFactory(ctrl *gomock.Controller, store cursor.Store, rowSink sink.Sink) *storagemocks.MockFactory {
	factory := storagemocks.NewMockFactory(ctrl)
	factory.EXPECT().CreateCursorStore(gomock.Any()).Return(store, nil).AnyTimes()
	factory.EXPECT().CreateSink(gomock.Any()).Return(rowSink, nil).AnyTimes()
	factory.EXPECT().CreateStatusPersistence().Return(nil).AnyTimes()
	factory.EXPECT().Cleanup().AnyTimes()
	return factory
}

func TestBaseConfigDefaults(t *testing.T) {
	t.Parallel()

	built, err := baseConfig(WithConfig(createValidTestConfig()))
	require.NoError(t, err)
	require.NotNil(t, built)

	assert.Empty(t, built.address, "address is resolved from the config later")
	assert.Equal(t, defaultRequestTimeout, built.requestTimeout)
	assert.Equal(t, defaultReadTimeout, built.readTimeout)
	assert.Equal(t, defaultWriteTimeout, built.writeTimeout)
	assert.Equal(t, defaultIdleTimeout, built.idleTimeout)
}

func TestBaseConfigOptionError(t *testing.T) {
	t.Parallel()

	built, err := baseConfig(
		WithConfig(createValidTestConfig()),
		WithAddress(":"),
	)
	require.Error(t, err)
	require.Nil(t, built)
}

func TestWithAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{name: "port only", addr: ":9090"},
		{name: "localhost", addr: "localhost:8080"},
		{name: "ipv4 host", addr: "127.0.0.1:8081"},
		{name: "empty", addr: "", wantErr: true},
		{name: "missing port", addr: "127.0.0.1", wantErr: true},
		{name: "empty port", addr: "127.0.0.1:", wantErr: true},
		{name: "non numeric port", addr: ":http-alt", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := &commentSyncAppConfig{}
			err := WithAddress(tt.addr)(cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.addr, cfg.address)
		})
	}
}

func TestWithMiddlewares(t *testing.T) {
	t.Parallel()

	mw := func(next http.Handler) http.Handler { return next }
	cfg := &commentSyncAppConfig{}
	require.NoError(t, WithMiddlewares(mw, mw)(cfg))
	assert.Len(t, cfg.middlewares, 2)
}

func TestNewCommentSyncApp_RequiresConfig(t *testing.T) {
	t.Parallel()

	app, err := NewCommentSyncApp(context.Background())
	require.Error(t, err)
	assert.Nil(t, app)
	assert.Contains(t, err.Error(), "config cannot be nil")
}

func TestNewCommentSyncApp_WiresComponents(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	store := memoryStore()
	rowSink := sinkmocks.NewMockSink(ctrl)
	rowSink.EXPECT().Readiness(gomock.Any()).Return(nil).AnyTimes()
	rowSink.EXPECT().Close().Return(nil)

	cfg := createValidTestConfig()
	cfg.Admin = &config.AdminConfig{Address: "127.0.0.1:9191"}

	app, err := NewCommentSyncApp(context.Background(),
		WithConfig(cfg),
		WithStorageFactory(newMockFactory(ctrl, store, rowSink)),
		WithSource(sourcemocks.NewMockSource(ctrl)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Stop(time.Second) })

	components := app.Components()
	assert.Same(t, store, components.CursorStore)
	assert.Equal(t, rowSink, components.Sink)
	require.NotNil(t, components.SyncCoordinator)
	require.NotNil(t, components.StatusTracker)
	assert.Equal(t, status.SyncPhaseIdle, components.SyncCoordinator.Status().Phase)

	server := app.GetHTTPServer()
	require.NotNil(t, server)
	assert.Equal(t, "127.0.0.1:9191", server.Addr)
	assert.Same(t, cfg, app.GetConfig())

	for _, path := range []string{"/health", "/readiness", "/api/cursor/current", "/api/sync/status", "/api/sink/health"} {
		rr := httptest.NewRecorder()
		server.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}
}

func TestNewCommentSyncApp_AddressOptionOverridesConfig(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	rowSink := sinkmocks.NewMockSink(ctrl)
	rowSink.EXPECT().Close().Return(nil)

	cfg := createValidTestConfig()
	cfg.Admin = &config.AdminConfig{Address: ":7000"}

	app, err := NewCommentSyncApp(context.Background(),
		WithConfig(cfg),
		WithAddress(":7001"),
		WithStorageFactory(newMockFactory(ctrl, memoryStore(), rowSink)),
		WithSyncManager(syncmocks.NewMockManager(ctrl)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Stop(time.Second) })

	assert.Equal(t, ":7001", app.GetHTTPServer().Addr)
}

func TestNewCommentSyncApp_AdminDisabled(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	rowSink := sinkmocks.NewMockSink(ctrl)
	rowSink.EXPECT().Close().Return(nil)

	cfg := createValidTestConfig()
	cfg.Admin = &config.AdminConfig{Disabled: true}

	app, err := NewCommentSyncApp(context.Background(),
		WithConfig(cfg),
		WithStorageFactory(newMockFactory(ctrl, memoryStore(), rowSink)),
		WithSyncManager(syncmocks.NewMockManager(ctrl)),
	)
	require.NoError(t, err)
	assert.Nil(t, app.GetHTTPServer())
	require.NoError(t, app.Stop(time.Second))
}

func TestNewCommentSyncApp_ReleasesComponentsOnError(t *testing.T) {
	t.Parallel()

	t.Run("cursor store creation fails", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)

		factory := storagemocks.NewMockFactory(ctrl)
		factory.EXPECT().CreateCursorStore(gomock.Any()).Return(nil, errors.New("redis unreachable"))
		factory.EXPECT().Cleanup()

		_, err := NewCommentSyncApp(context.Background(),
			WithConfig(createValidTestConfig()),
			WithStorageFactory(factory),
		)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create cursor store")
	})

	t.Run("sink creation fails", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)

		store := cursormocks.NewMockStore(ctrl)
		store.EXPECT().Close().Return(nil)

		factory := storagemocks.NewMockFactory(ctrl)
		factory.EXPECT().CreateCursorStore(gomock.Any()).Return(store, nil)
		factory.EXPECT().CreateSink(gomock.Any()).Return(nil, errors.New("no credentials"))
		factory.EXPECT().Cleanup()

		_, err := NewCommentSyncApp(context.Background(),
			WithConfig(createValidTestConfig()),
			WithStorageFactory(factory),
		)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create sink")
	})

	t.Run("unknown strategy", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)

		rowSink := sinkmocks.NewMockSink(ctrl)
		rowSink.EXPECT().Close().Return(nil)

		cfg := createValidTestConfig()
		cfg.Sync.Strategy = "guess"

		_, err := NewCommentSyncApp(context.Background(),
			WithConfig(cfg),
			WithStorageFactory(newMockFactory(ctrl, memoryStore(), rowSink)),
			WithSource(sourcemocks.NewMockSource(ctrl)),
		)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported detection strategy")
	})
}

func TestBuildHTTPServer_Telemetry(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	coord := newTestCoordinator()

	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))

	b := &commentSyncAppConfig{
		config:         createValidTestConfig(),
		address:        ":0",
		requestTimeout: time.Second,
		meterProvider:  provider,
		metricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("comment_sync_passes_total 1\n"))
		}),
	}

	server, err := buildHTTPServer(b, &AppComponents{
		SyncCoordinator: coord,
		CursorStore:     memoryStore(),
		Sink:            sinkmocks.NewMockSink(ctrl),
	})
	require.NoError(t, err)

	// metrics middleware, then the five defaults
	assert.Len(t, b.middlewares, 6)

	rr := httptest.NewRecorder()
	server.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "comment_sync_passes_total")

	rr = httptest.NewRecorder()
	server.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/sync/status", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var st status.SyncStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.Equal(t, status.SyncPhaseIdle, st.Phase)
}

func TestNewCommentSyncApp_RunsPassesAgainstSource(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	src := sourcemocks.NewMockSource(ctrl)
	rowSink := sinkmocks.NewMockSink(ctrl)
	store := memoryStore()

	src.EXPECT().FetchChanges(gomock.Any(), uint64(0)).Return([]sources.Post{{
		ID: "page_p1",
		Comments: []sources.Comment{
			{ID: "c1", Message: "hello", CreatedTime: "2025-08-30T10:00:00+0000"},
		},
	}}, nil)
	src.EXPECT().FetchPostDetail(gomock.Any(), "page_p1").Return(&sources.Post{ID: "page_p1", Message: "post"}, nil)

	appended := make(chan sink.Row, 1)
	rowSink.EXPECT().AppendRow(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, row sink.Row) error {
		appended <- row
		return nil
	})
	rowSink.EXPECT().Close().Return(nil)

	cfg := createValidTestConfig()
	cfg.Admin = &config.AdminConfig{Disabled: true}

	app, err := NewCommentSyncApp(context.Background(),
		WithConfig(cfg),
		WithStorageFactory(newMockFactory(ctrl, store, rowSink)),
		WithSource(src),
	)
	require.NoError(t, err)

	errChan := make(chan error, 1)
	go func() { errChan <- app.Start() }()

	select {
	case row := <-appended:
		assert.Equal(t, "c1", row.CommentID)
		assert.Equal(t, "Unknown", row.AuthorName)
	case <-time.After(5 * time.Second):
		t.Fatal("initial pass did not emit a row")
	}

	require.Eventually(t, func() bool {
		return app.Components().SyncCoordinator.Status().Phase == status.SyncPhaseComplete
	}, 5*time.Second, 10*time.Millisecond)
	assert.Positive(t, store.Get(context.Background()), "the pass committed its start time")

	require.NoError(t, app.Stop(5*time.Second))

	select {
	case startErr := <-errChan:
		require.NoError(t, startErr)
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after Stop()")
	}
}
