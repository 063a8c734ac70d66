package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress string

	// Interview backend connection.
	ServerHost   string
	SecureOrigin bool

	// Turn-taking.
	SilenceThreshold time.Duration

	// Speech engines.
	AssemblyAIKey string
	DeepgramKey   string
	DeepgramModel string

	// Resume storage.
	SupabaseURL            string
	SupabaseServiceRoleKey string
	SupabaseBucket         string
	ResumeObjectKey        string
	ResumeFile             string

	// Job catalog.
	JobsFile string
	JobID    string

	LogLevel  string
	LogFormat string
}

// Load reads environment variables and returns Config with sane defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	addr := getEnv("HTTP_ADDRESS", ":8080")

	host := getEnv("INTERVIEW_SERVER_HOST", "localhost:8000")
	secure := getBool("INTERVIEW_SECURE", false)

	silence := getDurationMs("SILENCE_THRESHOLD_MS", 5000*time.Millisecond)

	assemblyAIKey := os.Getenv("ASSEMBLYAI_API_KEY")
	if assemblyAIKey == "" {
		log.Println("Warning: ASSEMBLYAI_API_KEY not set - answer transcription will not work")
	}

	deepgramKey := os.Getenv("DEEPGRAM_API_KEY")
	if deepgramKey == "" {
		log.Println("Warning: DEEPGRAM_API_KEY not set - question playback will not work")
	}
	deepgramModel := getEnv("DEEPGRAM_MODEL", "aura-2-thalia-en")

	supabaseURL := os.Getenv("SUPABASE_URL")
	supabaseKey := os.Getenv("SUPABASE_SERVICE_ROLE_KEY")
	if supabaseURL == "" || supabaseKey == "" {
		log.Println("Warning: SUPABASE_URL or SUPABASE_SERVICE_ROLE_KEY not set - saved resume will not be loaded")
	}

	cfg := Config{
		HTTPAddress:            addr,
		ServerHost:             host,
		SecureOrigin:           secure,
		SilenceThreshold:       silence,
		AssemblyAIKey:          assemblyAIKey,
		DeepgramKey:            deepgramKey,
		DeepgramModel:          deepgramModel,
		SupabaseURL:            supabaseURL,
		SupabaseServiceRoleKey: supabaseKey,
		SupabaseBucket:         getEnv("SUPABASE_BUCKET", "candidate-files"),
		ResumeObjectKey:        getEnv("RESUME_OBJECT_KEY", "candidateResume.txt"),
		ResumeFile:             getEnv("RESUME_FILE", "resume.txt"),
		JobsFile:               getEnv("JOBS_FILE", "jobs.json"),
		JobID:                  getEnv("JOB_ID", "1"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		LogFormat:              getEnv("LOG_FORMAT", "console"),
	}
	log.Printf("config: HTTP_ADDRESS=%s INTERVIEW_SERVER_HOST=%s", cfg.HTTPAddress, cfg.ServerHost)
	return cfg
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}
	return b
}

func getDurationMs(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		return defaultValue
	}
	return time.Duration(ms) * time.Millisecond
}
