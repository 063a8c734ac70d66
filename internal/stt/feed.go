package stt

// PCMStream is a live 16kHz little-endian mono audio source that outlives
// individual listening turns.
type PCMStream interface {
	PCM16K() <-chan []byte
}

// WithAudioFeed wraps a factory so every engine it creates is fed from src
// until the engine stops accepting audio. The stream itself stays open
// across turns; only the feeding goroutine is per-engine.
func WithAudioFeed(factory EngineFactory, src PCMStream) EngineFactory {
	if factory == nil || src == nil {
		return factory
	}
	return func() (Engine, error) {
		engine, err := factory()
		if err != nil {
			return nil, err
		}
		sink, ok := engine.(AudioSink)
		if !ok {
			return engine, nil
		}
		go func() {
			for chunk := range src.PCM16K() {
				if err := sink.SendPCM16KLE(chunk); err != nil {
					return
				}
			}
		}()
		return engine, nil
	}
}
