package server

import (
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/blockgroup-index/internal/monitoring"
	"github.com/sells-group/blockgroup-index/internal/snapshot"
	"github.com/sells-group/blockgroup-index/internal/viewstate"
)

type sessionBody struct {
	ID     string          `json:"id"`
	State  viewstate.State `json:"state"`
	Result *wireCollection `json:"result"`
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t, fakeSource{values: sampleValues})

	resp := env.do(t, http.MethodPost, "/api/sessions", `{"year":"2013"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[sessionBody](t, resp)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "/api/sessions/"+created.ID, resp.Header.Get("Location"))
	assert.Equal(t, 1, env.sessions.Len())

	resp = env.do(t, http.MethodGet, "/api/sessions/"+created.ID+"?wait=true", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[sessionBody](t, resp)
	assert.Equal(t, viewstate.StatusReady, got.State.Status)
	require.NotNil(t, got.Result)
	require.Len(t, got.Result.Features, 2)
	assert.InDelta(t, 50.0, got.Result.Features[0].Properties["compositeScore"], 1e-9)

	resp = env.do(t, http.MethodPatch, "/api/sessions/"+created.ID, `{"weights":{"idi":0,"ldi":0,"pdi":0,"cdi":0}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	patched := decode[sessionBody](t, resp)
	assert.Greater(t, patched.State.Generation, got.State.Generation)

	resp = env.do(t, http.MethodGet, "/api/sessions/"+created.ID+"?wait=true", "")
	got = decode[sessionBody](t, resp)
	assert.Equal(t, viewstate.StatusNoData, got.State.Status)
	assert.Contains(t, got.State.Err, "total weight is zero")
	assert.Nil(t, got.Result)

	resp = env.do(t, http.MethodDelete, "/api/sessions/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 0, env.sessions.Len())

	resp = env.do(t, http.MethodGet, "/api/sessions/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = env.do(t, http.MethodDelete, "/api/sessions/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessionCompareMode(t *testing.T) {
	env := newTestEnv(t, fakeSource{values: sampleValues})

	resp := env.do(t, http.MethodPost, "/api/sessions", `{"mode":"compare","before_year":"2013","after_year":"2022"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := decode[sessionBody](t, resp).ID

	resp = env.do(t, http.MethodGet, "/api/sessions/"+id+"?wait=true", "")
	got := decode[sessionBody](t, resp)
	require.Equal(t, viewstate.StatusReady, got.State.Status)
	assert.InDelta(t, 50.0, got.Result.Features[0].Properties["percentDiff"], 1e-9)

	resp = env.do(t, http.MethodGet, "/api/sessions/"+id+"/features/131210001002?hovered=true", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fv := decode[featureView](t, resp)
	assert.Equal(t, "131210001002", fv.Tooltip.GEOID)
	assert.Contains(t, fv.Tooltip.Lines, "Change: +50.00%")
	require.NotNil(t, fv.Tooltip.Anchor)
	assert.InDelta(t, 1.5, fv.Tooltip.Anchor.Lon, 1e-9)
	assert.Equal(t, "#2166ac", fv.Style.FillColor)
	assert.Equal(t, 3.0, fv.Style.Weight)

	resp = env.do(t, http.MethodGet, "/api/sessions/"+id+"/features/131210001002", "")
	fv = decode[featureView](t, resp)
	assert.Equal(t, 1.0, fv.Style.Weight)

	resp = env.do(t, http.MethodGet, "/api/sessions/"+id+"/features/999", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessionBadInput(t *testing.T) {
	env := newTestEnv(t, fakeSource{values: sampleValues})

	for _, body := range []string{
		`{"mode":"split"}`,
		`{"city":"paris"}`,
		`{"year":"1990"}`,
		`{"weights":{"xyz":10}}`,
		`{"weights":{"idi":-1}}`,
		`{"colour":"red"}`,
		`not json`,
	} {
		resp := env.do(t, http.MethodPost, "/api/sessions", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
	assert.Equal(t, 0, env.sessions.Len())
}

func TestSessionLimit(t *testing.T) {
	env := newTestEnv(t, fakeSource{values: sampleValues})

	for i := 0; i < 2; i++ {
		resp := env.do(t, http.MethodPost, "/api/sessions", "")
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}
	resp := env.do(t, http.MethodPost, "/api/sessions", "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestSessionPatchIsOneChange(t *testing.T) {
	env := newTestEnv(t, fakeSource{values: sampleValues})

	resp := env.do(t, http.MethodPost, "/api/sessions", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[sessionBody](t, resp)
	assert.Equal(t, uint64(1), created.State.Generation)

	resp = env.do(t, http.MethodGet, "/api/sessions/"+created.ID+"?wait=true", "")
	ready := decode[sessionBody](t, resp)
	require.Equal(t, viewstate.StatusReady, ready.State.Status)

	resp = env.do(t, http.MethodPatch, "/api/sessions/"+created.ID,
		`{"year":"2013","weights":{"idi":40,"ldi":30,"pdi":20,"cdi":10},"refresh":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	patched := decode[sessionBody](t, resp)
	assert.Equal(t, uint64(2), patched.State.Generation)
	assert.Equal(t, viewstate.StatusLoading, patched.State.Status)

	resp = env.do(t, http.MethodGet, "/api/sessions/"+created.ID+"?wait=true", "")
	got := decode[sessionBody](t, resp)
	require.Equal(t, viewstate.StatusReady, got.State.Status)
	assert.Equal(t, uint64(2), got.State.Generation)
	// 2013 values 80/60/40/20 at 40/30/20/10
	assert.InDelta(t, 60.0, got.Result.Features[0].Properties["compositeScore"], 1e-9)

	assert.InDelta(t, 2, testutil.ToFloat64(env.obs.Snapshots.WithLabelValues(snapshot.KindSingle, monitoring.OutcomeSuccess)), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(env.obs.StaleResults), 0)

	resp = env.do(t, http.MethodPatch, "/api/sessions/"+created.ID, `{"year":"2013"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	unchanged := decode[sessionBody](t, resp)
	assert.Equal(t, uint64(2), unchanged.State.Generation, "no input changed")
}
