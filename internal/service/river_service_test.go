package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"testing"
	"time"

	"go-rivermind/internal/analyzer"
	"go-rivermind/internal/config"
	"go-rivermind/internal/decoder"
	"go-rivermind/internal/emotion"
	apperrors "go-rivermind/internal/errors"
	"go-rivermind/internal/factory"
	"go-rivermind/internal/observer"
	"go-rivermind/internal/overlay"
	"go-rivermind/internal/repository"
	"go-rivermind/internal/session"
	"go-rivermind/internal/storage"
	"go-rivermind/pkg/models"
)

type fakeFetcher struct {
	data []byte
	err  error
	last string
}

func (f *fakeFetcher) FetchFrame(ctx context.Context, location string) ([]byte, error) {
	f.last = location
	return f.data, f.err
}

type fakeStorageFactory struct {
	fetcher *fakeFetcher
}

func (f *fakeStorageFactory) CreateStorage(t factory.StorageType) (storage.FrameFetcher, error) {
	if t == factory.AzureStorage {
		return nil, apperrors.NewUnavailableError("azure storage is not configured", nil)
	}
	return f.fetcher, nil
}

type sliceSource struct {
	frames []*analyzer.Frame
	closed bool
}

func (s *sliceSource) Next() (*analyzer.Frame, error) {
	if len(s.frames) == 0 {
		return nil, io.EOF
	}
	f := s.frames[0]
	s.frames = s.frames[1:]
	return f, nil
}

func (s *sliceSource) Close() error {
	s.closed = true
	return nil
}

type stubRecognizer struct {
	text string
	err  error
}

func (s stubRecognizer) Recognize([]byte) (string, error) { return s.text, s.err }
func (s stubRecognizer) Close() error                     { return nil }

func grayPNG(t *testing.T, w, h int, v uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{v, v, v, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func grayFrame(t *testing.T, w, h int, v uint8) *analyzer.Frame {
	t.Helper()
	f, _, err := decoder.DecodeImage(grayPNG(t, w, h, v))
	if err != nil {
		t.Fatal(err)
	}
	return f
}

type testEnv struct {
	svc     RiverService
	fetcher *fakeFetcher
	metrics *observer.MetricsObserver
	video   *sliceSource
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithVerifier(t, overlay.NewVerifier(stubRecognizer{text: "CAM 01"}))
}

func newTestEnvWithVerifier(t *testing.T, verifier *overlay.Verifier) *testEnv {
	t.Helper()
	a, err := analyzer.NewFrameAnalyzerWithOptions(analyzer.FastOptions().WithMaxWorkers(2))
	if err != nil {
		t.Fatal(err)
	}
	repo, err := repository.NewSQLiteAlertRepository(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	store := session.NewStore(a, time.Minute, 10)
	t.Cleanup(func() {
		store.Stop()
		repo.Close()
		a.Close()
	})

	env := &testEnv{
		fetcher: &fakeFetcher{},
		metrics: observer.NewMetricsObserver(),
		video:   &sliceSource{},
	}
	publisher := observer.NewEventPublisher()
	publisher.Subscribe(env.metrics)

	env.svc = NewRiverService(Dependencies{
		Sessions:  store,
		Analyzer:  a,
		Storage:   &fakeStorageFactory{fetcher: env.fetcher},
		Alerts:    repo,
		Verifier:  verifier,
		Publisher: publisher,
		Metrics:   env.metrics,
		OpenVideo: func(path string) (decoder.FrameSource, error) {
			if path == "missing.mp4" {
				return nil, apperrors.NewInvalidFrameError("Could not open video file", nil)
			}
			return env.video, nil
		},
		Video:     decoder.SampleOptions{Stride: 1, MaxFrames: 10},
		Reference: config.Defaults().Reference,
	})
	return env
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)

	id := env.svc.CreateSession().SessionID
	sum, err := env.svc.GetSession(id)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if sum.ID != id || sum.Frames != 0 {
		t.Errorf("Unexpected summary %+v", sum)
	}

	if err := env.svc.DeleteSession(id); err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.GetSession(id); !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		t.Errorf("Expected not found after delete, got %v", err)
	}
}

func TestAnalyzeFrame_UniformPair(t *testing.T) {
	env := newTestEnv(t)
	id := env.svc.CreateSession().SessionID
	ctx := context.Background()

	first, err := env.svc.AnalyzeFrame(ctx, id, grayPNG(t, 32, 32, 128), "")
	if err != nil {
		t.Fatalf("AnalyzeFrame() error = %v", err)
	}
	if first.Raw.HasFlow {
		t.Error("Expected no flow for the first frame")
	}

	second, err := env.svc.AnalyzeFrame(ctx, id, grayPNG(t, 32, 32, 128), "")
	if err != nil {
		t.Fatal(err)
	}
	wantTemp := 128.0 / 255.0 * 50.0
	if math.Abs(second.Reading.Temperature-wantTemp) > 1e-6 {
		t.Errorf("Expected temperature %f, got %f", wantTemp, second.Reading.Temperature)
	}
	if second.Reading.PH != 7 || second.Reading.Flow != 0 {
		t.Errorf("Expected pH 7 and flow 0, got %+v", second.Reading)
	}
	if second.Reading.Emotion != string(emotion.Neutral) {
		t.Errorf("Expected neutral, got %s", second.Reading.Emotion)
	}
	if second.FrameIndex != 1 {
		t.Errorf("Expected frame index 1, got %d", second.FrameIndex)
	}
}

func TestAnalyzeFrame_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.svc.CreateSession().SessionID

	if _, err := env.svc.AnalyzeFrame(ctx, id, []byte("junk"), ""); !apperrors.IsType(err, apperrors.ErrorTypeInvalidFrame) {
		t.Errorf("Expected invalid frame, got %v", err)
	}
	if _, err := env.svc.AnalyzeFrame(ctx, "00000000-0000-0000-0000-000000000000", grayPNG(t, 8, 8, 1), ""); !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}

	if _, err := env.svc.AnalyzeFrame(ctx, id, grayPNG(t, 16, 16, 1), ""); err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.AnalyzeFrame(ctx, id, grayPNG(t, 20, 16, 1), ""); !apperrors.IsType(err, apperrors.ErrorTypeDimensionMismatch) {
		t.Errorf("Expected dimension mismatch, got %v", err)
	}
}

func TestAnalyzeFrame_OverlayCheck(t *testing.T) {
	env := newTestEnv(t)
	id := env.svc.CreateSession().SessionID

	resp, err := env.svc.AnalyzeFrame(context.Background(), id, grayPNG(t, 40, 40, 90), "cam 01")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Overlay == nil || !resp.Overlay.Matched {
		t.Errorf("Expected a matched overlay check, got %+v", resp.Overlay)
	}
}

func TestAnalyzeFrame_FailedOverlayLeavesSessionUntouched(t *testing.T) {
	tests := []struct {
		name     string
		verifier *overlay.Verifier
		label    string
		wantType apperrors.ErrorType
	}{
		{"no verifier", nil, "cam 01", apperrors.ErrorTypeUnavailable},
		{"blank label", overlay.NewVerifier(stubRecognizer{text: "CAM 01"}), " \t ", apperrors.ErrorTypeValidation},
		{"recognizer failure", overlay.NewVerifier(stubRecognizer{err: apperrors.NewProcessingError("tesseract failed", nil)}), "cam 01", apperrors.ErrorTypeProcessing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnvWithVerifier(t, tt.verifier)
			ctx := context.Background()
			id := env.svc.CreateSession().SessionID

			_, err := env.svc.AnalyzeFrame(ctx, id, grayPNG(t, 24, 24, 120), tt.label)
			if !apperrors.IsType(err, tt.wantType) {
				t.Fatalf("Expected %s error, got %v", tt.wantType, err)
			}

			sum, err := env.svc.GetSession(id)
			if err != nil {
				t.Fatal(err)
			}
			if sum.Frames != 0 {
				t.Errorf("Expected no frames applied, got %d", sum.Frames)
			}
			for metric, n := range sum.Samples {
				if n != 0 {
					t.Errorf("Expected empty %s window, got %d samples", metric, n)
				}
			}

			// a frame of another size must still be accepted: no previous frame was stored
			resp, err := env.svc.AnalyzeFrame(ctx, id, grayPNG(t, 16, 16, 120), "")
			if err != nil {
				t.Fatalf("Expected the session to start fresh, got %v", err)
			}
			if resp.FrameIndex != 0 || resp.Raw.HasFlow {
				t.Errorf("Expected first frame of the stream, got index %d has_flow %v", resp.FrameIndex, resp.Raw.HasFlow)
			}
		})
	}
}

func TestAnalyzeRemoteFrame(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.svc.CreateSession().SessionID

	env.fetcher.data = grayPNG(t, 16, 16, 200)
	resp, err := env.svc.AnalyzeRemoteFrame(ctx, id, models.RemoteFrameRequest{URL: "https://cams.example.com/a.png"})
	if err != nil {
		t.Fatalf("AnalyzeRemoteFrame() error = %v", err)
	}
	if resp.SessionID != id || env.fetcher.last != "https://cams.example.com/a.png" {
		t.Errorf("Unexpected response %+v (fetched %s)", resp, env.fetcher.last)
	}

	if _, err := env.svc.AnalyzeRemoteFrame(ctx, id, models.RemoteFrameRequest{URL: "ftp://x/a.png"}); !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
	if _, err := env.svc.AnalyzeRemoteFrame(ctx, id, models.RemoteFrameRequest{URL: "https://acct.blob.core.windows.net/c/b.png", Source: "azure"}); !apperrors.IsType(err, apperrors.ErrorTypeUnavailable) {
		t.Errorf("Expected unavailable error, got %v", err)
	}

	env.fetcher.err = context.DeadlineExceeded
	if _, err := env.svc.AnalyzeRemoteFrame(ctx, id, models.RemoteFrameRequest{URL: "https://cams.example.com/a.png"}); !apperrors.IsType(err, apperrors.ErrorTypeTimeout) {
		t.Errorf("Expected timeout error, got %v", err)
	}
	env.fetcher.err = errors.New("connection refused")
	if _, err := env.svc.AnalyzeRemoteFrame(ctx, id, models.RemoteFrameRequest{URL: "https://cams.example.com/a.png"}); !apperrors.IsType(err, apperrors.ErrorTypeNetwork) {
		t.Errorf("Expected network error, got %v", err)
	}
}

func TestFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp, err := env.svc.Flow(ctx, "", grayPNG(t, 16, 16, 100), nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Flow != 0 || resp.HasFlow || resp.SessionID != "" {
		t.Errorf("Expected zero flow without a previous frame, got %+v", resp)
	}

	resp, err = env.svc.Flow(ctx, "", grayPNG(t, 16, 16, 100), grayPNG(t, 16, 16, 100))
	if err != nil {
		t.Fatal(err)
	}
	if !resp.HasFlow || resp.Flow != 0 || resp.FlowRateM3S != 0 {
		t.Errorf("Expected a zero flow reading for identical frames, got %+v", resp)
	}

	if _, err := env.svc.Flow(ctx, "", grayPNG(t, 16, 16, 100), grayPNG(t, 8, 8, 100)); !apperrors.IsType(err, apperrors.ErrorTypeDimensionMismatch) {
		t.Errorf("Expected dimension mismatch, got %v", err)
	}
}

func TestAnalyzeVideo(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 4; i++ {
		env.video.frames = append(env.video.frames, grayFrame(t, 16, 16, 128))
	}

	resp, err := env.svc.AnalyzeVideo(context.Background(), "river.mp4")
	if err != nil {
		t.Fatalf("AnalyzeVideo() error = %v", err)
	}
	if resp.FramesAnalyzed != 4 {
		t.Errorf("Expected 4 frames, got %d", resp.FramesAnalyzed)
	}
	if resp.Flow != 0 || resp.PH != 7 {
		t.Errorf("Expected still neutral water, got %+v", resp)
	}
	if !env.video.closed {
		t.Error("Expected video source to be closed")
	}

	if _, err := env.svc.AnalyzeVideo(context.Background(), "river.mp4"); !apperrors.IsType(err, apperrors.ErrorTypeEmptyStream) {
		t.Errorf("Expected empty stream for an exhausted source, got %v", err)
	}
	if _, err := env.svc.AnalyzeVideo(context.Background(), "missing.mp4"); !apperrors.IsType(err, apperrors.ErrorTypeInvalidFrame) {
		t.Errorf("Expected invalid frame, got %v", err)
	}
}

func TestAlertsAndEmotion_Reference(t *testing.T) {
	env := newTestEnv(t)

	report, err := env.svc.Alerts("")
	if err != nil {
		t.Fatal(err)
	}
	// reference readings sit inside every band
	if len(report.Alerts) != 0 || len(report.AwarenessTips) != 2 {
		t.Errorf("Unexpected report %+v", report)
	}

	em, err := env.svc.Emotion("")
	if err != nil {
		t.Fatal(err)
	}
	ref := config.Defaults().Reference
	want := emotion.ClassifyStress(emotion.Readings{Temperature: ref.Temperature, PH: ref.PH, Flow: ref.FlowRate, DissolvedOxygen: ref.DissolvedOxygen})
	if em.Source != "reference" || em.Emotion != string(want) {
		t.Errorf("Expected %s from reference readings, got %+v", want, em)
	}
	if em.WaterLevel != ref.WaterLevel || em.Clarity != ref.Clarity {
		t.Errorf("Expected static water level and clarity, got %+v", em)
	}
}

func TestAlerts_Session(t *testing.T) {
	env := newTestEnv(t)
	id := env.svc.CreateSession().SessionID

	// black frames read as 0 degrees and 0 flow
	for i := 0; i < 2; i++ {
		if _, err := env.svc.AnalyzeFrame(context.Background(), id, grayPNG(t, 16, 16, 0), ""); err != nil {
			t.Fatal(err)
		}
	}

	report, err := env.svc.Alerts(id)
	if err != nil {
		t.Fatal(err)
	}
	kinds := map[string]string{}
	for _, a := range report.Alerts {
		kinds[a.Type] = a.Severity
	}
	if kinds["temperature"] != "low" || kinds["flow"] != "low" {
		t.Errorf("Expected low temperature and flow alerts, got %+v", report.Alerts)
	}

	em, err := env.svc.Emotion(id)
	if err != nil {
		t.Fatal(err)
	}
	if em.Source != "session" || em.Temperature != 0 {
		t.Errorf("Expected session readings, got %+v", em)
	}
}

func TestClassify(t *testing.T) {
	env := newTestEnv(t)
	f := func(v float64) *float64 { return &v }

	resp, err := env.svc.Classify(models.ClassifyRequest{Temperature: f(22), PH: f(7), Flow: f(50)})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Mode != "threshold" || resp.Emotion != string(emotion.Happy) {
		t.Errorf("Expected happy via thresholds, got %+v", resp)
	}

	resp, err = env.svc.Classify(models.ClassifyRequest{Mode: "stress", Temperature: f(22), PH: f(7), Flow: f(50), DissolvedOxygen: f(9)})
	if err != nil {
		t.Fatal(err)
	}
	want := emotion.ClassifyStress(emotion.Readings{Temperature: 22, PH: 7, Flow: 50, DissolvedOxygen: 9})
	if resp.Strategy != "stress" || resp.Emotion != string(want) {
		t.Errorf("Expected %s via stress, got %+v", want, resp)
	}

	if _, err := env.svc.Classify(models.ClassifyRequest{Mode: "tarot", Temperature: f(22), PH: f(7), Flow: f(50)}); !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Errorf("Expected validation error for unknown mode, got %v", err)
	}
	if _, err := env.svc.Classify(models.ClassifyRequest{Temperature: f(22), PH: f(20), Flow: f(50)}); !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Errorf("Expected validation error for pH out of range, got %v", err)
	}
	if _, err := env.svc.Classify(models.ClassifyRequest{Temperature: f(22)}); !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Errorf("Expected validation error for missing readings, got %v", err)
	}
}

func TestDrowningAlerts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a, err := env.svc.RecordDrowningAlert(ctx, models.DrowningAlertRequest{Message: "swimmer in distress", Severity: "critical"})
	if err != nil {
		t.Fatal(err)
	}
	if a.ID == 0 || a.Severity != repository.SeverityCritical {
		t.Errorf("Unexpected alert %+v", a)
	}

	if _, err := env.svc.RecordDrowningAlert(ctx, models.DrowningAlertRequest{Message: "x", Severity: "bogus"}); !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
	if _, err := env.svc.RecordDrowningAlert(ctx, models.DrowningAlertRequest{Message: "x", SessionID: "not-a-uuid"}); !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Errorf("Expected validation error for malformed session id, got %v", err)
	}

	list, err := env.svc.DrowningAlerts(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Message != "swimmer in distress" {
		t.Errorf("Unexpected alerts %+v", list)
	}
}

func TestStats(t *testing.T) {
	env := newTestEnv(t)
	id := env.svc.CreateSession().SessionID
	if _, err := env.svc.AnalyzeFrame(context.Background(), id, grayPNG(t, 16, 16, 60), ""); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for env.svc.Stats().FramesAnalyzed < 1 {
		if time.Now().After(deadline) {
			t.Fatal("Expected the analysed frame to be counted")
		}
		time.Sleep(time.Millisecond)
	}

	st := env.svc.Stats()
	if st.ActiveSessions != 1 || st.Workers != 2 {
		t.Errorf("Unexpected stats %+v", st)
	}
}
