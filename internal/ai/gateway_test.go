package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowme-cloud/flowme-backend/internal/metrics"
	"github.com/flowme-cloud/flowme-backend/internal/settings"
)

type staticSettings struct {
	s *settings.Settings
}

func (f staticSettings) Current(context.Context) (*settings.Settings, error) { return f.s, nil }

type fakeProvider struct {
	srv      *httptest.Server
	calls    atomic.Int32
	lastBody atomic.Value
}

// newProvider starts a TLS provider fake and returns a gateway wired to it.
func newProvider(t *testing.T, handler http.HandlerFunc) (*fakeProvider, *Gateway) {
	t.Helper()
	p := &fakeProvider{}
	p.srv = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.calls.Add(1)
		b, _ := io.ReadAll(r.Body)
		p.lastBody.Store(b)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "/v1/responses", r.URL.Path)
		handler(w, r)
	}))
	t.Cleanup(p.srv.Close)

	u, err := url.Parse(p.srv.URL)
	require.NoError(t, err)

	s := enabledSettings()
	s.APIBaseURL = p.srv.URL
	s.AllowedAIHosts = settings.HostList{u.Hostname()}

	prompts, err := LoadPrompts()
	require.NoError(t, err)
	return p, NewGateway(staticSettings{s: s}, NewHTTPDispatcher(p.srv.Client()), prompts)
}

func respond(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}
}

func TestGateway_TextToDiagram(t *testing.T) {
	p, g := newProvider(t, respond(`{"output_text":"Sure! `+"```xml\\n<mxfile><diagram/></mxfile>\\n```"+`"}`))

	xml, err := g.TextToDiagram(context.Background(), "login flow", "erd")
	require.NoError(t, err)
	assert.Equal(t, "<mxfile><diagram/></mxfile>", xml)
	assert.EqualValues(t, 1, p.calls.Load())

	var sent responsesRequest
	require.NoError(t, json.Unmarshal(p.lastBody.Load().([]byte), &sent))
	assert.Equal(t, settings.DefaultModel, sent.Model)
	require.Len(t, sent.Input, 2)
	assert.Equal(t, "system", sent.Input[0].Role)
	assert.Contains(t, sent.Input[0].Content[0].Text, "entity-relationship")
	assert.Equal(t, "user", sent.Input[1].Role)
	assert.Equal(t, contentPart{Type: "input_text", Text: "login flow"}, sent.Input[1].Content[0])
}

func TestGateway_ImageToDiagram(t *testing.T) {
	p, g := newProvider(t, respond(`{"output":[{"content":[{"type":"output_text","text":"<mxfile><diagram id=\"1\"/></mxfile>"}]}]}`))

	xml, err := g.ImageToDiagram(context.Background(), "data:image/png;base64,AAAA", "")
	require.NoError(t, err)
	assert.Equal(t, `<mxfile><diagram id="1"/></mxfile>`, xml)

	var sent responsesRequest
	require.NoError(t, json.Unmarshal(p.lastBody.Load().([]byte), &sent))
	assert.Contains(t, sent.Input[0].Content[0].Text, "reconstruction")
	require.Len(t, sent.Input[1].Content, 2)
	assert.Equal(t, contentPart{Type: "input_image", ImageURL: "data:image/png;base64,AAAA"}, sent.Input[1].Content[1])
}

func TestGateway_ImageModeFallsBackToImageTemplate(t *testing.T) {
	prompts, err := LoadPrompts()
	require.NoError(t, err)

	tests := []struct {
		name string
		mode string
		want Mode
	}{
		{name: "empty", mode: "", want: ModeImage},
		{name: "unknown", mode: "sketchy", want: ModeImage},
		{name: "explicit swimlane", mode: "Swimlane", want: ModeSwimlane},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, g := newProvider(t, respond(`{"output_text":"<mxfile><diagram/></mxfile>"}`))
			_, err := g.ImageToDiagram(context.Background(), "data:image/png;base64,AAAA", tt.mode)
			require.NoError(t, err)

			var sent responsesRequest
			require.NoError(t, json.Unmarshal(p.lastBody.Load().([]byte), &sent))
			assert.Equal(t, prompts.For(tt.want), sent.Input[0].Content[0].Text)
		})
	}

	// Text requests keep the workflow fallback.
	p, g := newProvider(t, respond(`{"output_text":"<mxfile><diagram/></mxfile>"}`))
	_, err = g.TextToDiagram(context.Background(), "a then b", "sketchy")
	require.NoError(t, err)
	var sent responsesRequest
	require.NoError(t, json.Unmarshal(p.lastBody.Load().([]byte), &sent))
	assert.Equal(t, prompts.For(ModeWorkflow), sent.Input[0].Content[0].Text)
}

func TestGateway_LimitsCheckedBeforeNetwork(t *testing.T) {
	p, g := newProvider(t, respond(`{}`))
	ctx := context.Background()

	_, err := g.TextToDiagram(ctx, "   ", "")
	assert.ErrorIs(t, err, ErrEmptyText)
	_, err = g.TextToDiagram(ctx, strings.Repeat("é", MaxTextChars+1), "")
	assert.ErrorIs(t, err, ErrTextTooLong)
	_, err = g.ImageToDiagram(ctx, "", "")
	assert.ErrorIs(t, err, ErrEmptyImage)
	_, err = g.ImageToDiagram(ctx, "https://example.com/a.png", "")
	assert.ErrorIs(t, err, ErrImageFormat)
	_, err = g.ImageToDiagram(ctx, "data:image/png;base64,"+strings.Repeat("A", MaxImageChars), "")
	assert.ErrorIs(t, err, ErrImageTooLarge)

	assert.Zero(t, p.calls.Load())

	// Exactly at the limit is accepted.
	_, err = g.TextToDiagram(ctx, strings.Repeat("é", MaxTextChars), "")
	assert.ErrorIs(t, err, ErrNoDiagram)
	assert.EqualValues(t, 1, p.calls.Load())
}

func TestGateway_ConfigCheckedBeforeNetwork(t *testing.T) {
	p, g := newProvider(t, respond(`{}`))
	s := enabledSettings()
	s.Enabled = false
	g.settings = staticSettings{s: s}

	_, err := g.TextToDiagram(context.Background(), "flow", "")
	assert.ErrorIs(t, err, ErrConfigDisabled)
	assert.True(t, IsValidationError(err))
	assert.Zero(t, p.calls.Load())
}

func TestGateway_ProviderErrors(t *testing.T) {
	_, g := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, "slow down")
	})
	_, err := g.TextToDiagram(context.Background(), "flow", "")
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusTooManyRequests, reqErr.Status)
	assert.Equal(t, "AI request failed 429: slow down", reqErr.Error())

	_, g = newProvider(t, respond(`{"output_text":"I can't help with that."}`))
	_, err = g.TextToDiagram(context.Background(), "flow", "")
	assert.ErrorIs(t, err, ErrNoDiagram)
}

func TestDispatch_Timeout(t *testing.T) {
	metrics.ResetMetrics()
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	d := NewHTTPDispatcher(srv.Client())
	_, err := d.Dispatch(context.Background(), &Target{Endpoint: srv.URL + "/v1/responses", APIKey: "k", Timeout: 50 * time.Millisecond}, []byte(`{}`))
	assert.ErrorIs(t, err, ErrTimeout)
	assert.EqualValues(t, 1, metrics.GetMetrics().AITimeouts())
	assert.EqualValues(t, 1, metrics.GetMetrics().AIErrors())
}

func newJobs(t *testing.T, handler http.HandlerFunc) (*Jobs, *miniredis.Miniredis, *fakeProvider) {
	t.Helper()
	p, g := newProvider(t, handler)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewJobs(g, client), mr, p
}

func TestJobs_RunToCompletion(t *testing.T) {
	jobs, mr, _ := newJobs(t, respond(`{"output_text":"<mxfile><diagram/></mxfile>"}`))
	ctx := context.Background()

	job, err := jobs.StartText(ctx, "flow", "swimlane")
	require.NoError(t, err)
	assert.Equal(t, JobPending, job.Status)
	assert.Equal(t, ModeSwimlane, job.Mode)
	assert.True(t, mr.Exists(jobKeyPrefix+job.ID))
	assert.InDelta(t, time.Hour.Seconds(), mr.TTL(jobKeyPrefix+job.ID).Seconds(), 1)

	require.Eventually(t, func() bool {
		got, err := jobs.Status(ctx, job.ID)
		return err == nil && got.Status == JobDone
	}, 5*time.Second, 20*time.Millisecond)

	got, err := jobs.Status(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "<mxfile><diagram/></mxfile>", got.XML)
	assert.Empty(t, got.Error)
}

func TestJobs_FailureIsStored(t *testing.T) {
	jobs, _, _ := newJobs(t, respond(`{"output_text":"nothing"}`))
	ctx := context.Background()

	job, err := jobs.StartImage(ctx, "data:image/png;base64,AAAA", "")
	require.NoError(t, err)
	assert.Equal(t, ModeImage, job.Mode)

	require.Eventually(t, func() bool {
		got, err := jobs.Status(ctx, job.ID)
		return err == nil && got.Status == JobError
	}, 5*time.Second, 20*time.Millisecond)

	got, _ := jobs.Status(ctx, job.ID)
	assert.Equal(t, ErrNoDiagram.Error(), got.Error)
}

func TestJobs_ValidationIsSynchronous(t *testing.T) {
	jobs, mr, p := newJobs(t, respond(`{}`))

	_, err := jobs.StartText(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrEmptyText)
	assert.Empty(t, mr.Keys())
	assert.Zero(t, p.calls.Load())

	_, err = jobs.Status(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestHTTP_Routes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	jobs, _, _ := newJobs(t, respond(`{"output_text":"<mxfile><diagram/></mxfile>"}`))
	r := gin.New()
	Register(r.Group("/api/v1"), jobs.gateway, jobs)

	post := func(path, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		return w
	}

	w := post("/api/v1/ai/text", `{"text":"flow","mode":"smart"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"xml":"<mxfile><diagram/></mxfile>"}`, w.Body.String())

	w = post("/api/v1/ai/image", `{"imageDataUrl":"not-an-image"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"ok":false`)

	w = post("/api/v1/ai/jobs/text", `{"text":"flow"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	var started struct {
		OK    bool   `json:"ok"`
		JobID string `json:"jobId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &started))
	require.NotEmpty(t, started.JobID)

	require.Eventually(t, func() bool {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ai/jobs/"+started.JobID, nil))
		return w.Code == http.StatusOK && strings.Contains(w.Body.String(), `"status":"done"`)
	}, 5*time.Second, 20*time.Millisecond)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ai/jobs/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWriteError_Timeout(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	writeError(c, ErrTimeout)
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.JSONEq(t, `{"ok":false,"error":"AI request timed out"}`, w.Body.String())
}
