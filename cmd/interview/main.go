package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chadiek/interview-call/internal/config"
	"github.com/chadiek/interview-call/internal/httpserver"
	"github.com/chadiek/interview-call/internal/jobs"
	"github.com/chadiek/interview-call/internal/logging"
	"github.com/chadiek/interview-call/internal/media"
	"github.com/chadiek/interview-call/internal/resume"
	"github.com/chadiek/interview-call/internal/session"
	"github.com/chadiek/interview-call/internal/stt"
	"github.com/chadiek/interview-call/internal/transport"
	"github.com/chadiek/interview-call/internal/tts"
)

func main() {
	cfg := config.Load()
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	log := logging.WithComponent("main")

	catalog, err := jobs.Load(cfg.JobsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("job catalog load failed")
	}
	jobDescription, err := catalog.JobDescription(cfg.JobID)
	if err != nil {
		log.Fatal().Err(err).Str("job_id", cfg.JobID).Msg("job lookup failed")
	}

	resumeText := loadResume(cfg)

	outTrack, err := media.NewOutputTrack()
	if err != nil {
		log.Fatal().Err(err).Msg("output track init failed")
	}
	speaker, err := media.NewSpeaker(outTrack)
	if err != nil {
		log.Fatal().Err(err).Msg("speaker init failed")
	}
	provider := media.NewWebRTCProvider(outTrack)
	manager := media.NewManager(provider, media.WithDegradedHandler(func(kind media.TrackKind) {
		log.Warn().Str("kind", string(kind)).Msg("capture track lost")
	}))

	ctrl := session.New(session.Options{
		JobDescription:   jobDescription,
		Resume:           resumeText,
		SilenceThreshold: cfg.SilenceThreshold,
	})

	client := transport.NewClient(cfg.ServerHost, cfg.SecureOrigin, transport.Callbacks{
		OnConnect: ctrl.OnTransportOpen,
		OnEvent:   ctrl.OnBackendEvent,
		OnError:   ctrl.OnTransportError,
	})

	synth := tts.NewDeepgramSynthesizer(cfg.DeepgramKey, cfg.DeepgramModel)
	player := tts.NewPlayer(synth, speaker, nil, ctrl.OnPlaybackDone)

	e := httpserver.New(ctrl, catalog, provider)
	server := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddress).Msg("server listening")
		serverErrors <- server.ListenAndServe()
	}()

	// Media arrives once the capture page posts its offer; the session
	// starts after camera, microphone, and a full-monitor share are up.
	sessionCtx, cancelSession := context.WithCancel(context.Background())
	defer cancelSession()
	go func() {
		if err := manager.AcquireUserMedia(sessionCtx); err != nil {
			log.Error().Err(err).Msg("camera and microphone unavailable")
			return
		}
		if err := manager.AcquireDisplayMedia(sessionCtx); err != nil {
			log.Error().Err(err).Msg("screen share rejected")
			return
		}

		factory := stt.AssemblyAIFactory(cfg.AssemblyAIKey)
		if src, ok := manager.MicSource(); ok {
			factory = stt.WithAudioFeed(factory, src)
		}
		capture, err := stt.NewCapture(factory, player.Speaking, ctrl.OnAnswer)
		if err != nil {
			log.Error().Err(err).Msg("speech recognition unavailable")
			return
		}

		ctrl.Bind(client, player, capture, manager)
		ctrl.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case <-ctrl.Done():
		log.Info().Msg("session finished")
	}

	cancelSession()
	ctrl.End()
	select {
	case <-ctrl.Done():
	case <-time.After(5 * time.Second):
		log.Warn().Msg("session teardown timed out")
	}
	speaker.Close()
	_ = provider.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		_ = server.Close()
	}
}

func loadResume(cfg config.Config) string {
	log := logging.WithComponent("main")
	var store resume.Store
	if cfg.SupabaseURL != "" && cfg.SupabaseServiceRoleKey != "" {
		s, err := resume.NewSupabaseStore(resume.Config{
			URL:            cfg.SupabaseURL,
			ServiceRoleKey: cfg.SupabaseServiceRoleKey,
			Bucket:         cfg.SupabaseBucket,
			ObjectKey:      cfg.ResumeObjectKey,
		})
		if err != nil {
			log.Warn().Err(err).Msg("supabase store unavailable, trying local resume")
			store = resume.FileStore{Path: cfg.ResumeFile}
		} else {
			store = s
		}
	} else {
		store = resume.FileStore{Path: cfg.ResumeFile}
	}
	text, err := store.Fetch()
	if err != nil {
		log.Warn().Err(err).Msg("no resume available, interviewing without one")
		return ""
	}
	return text
}
