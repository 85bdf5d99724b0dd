package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"mindful-be/pkg/rolling"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Keys      APIKeys
	Ai        AIConfig
	Companion CompanionConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	StreamLogFilePath  string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JwtSecret          string
}

type DatabaseConfig struct {
	Connection string // empty disables transcript + journal persistence
}

type APIKeys struct {
	GoogleGemini string
}

type AIConfig struct {
	Provider        string // "gemini" or "mock"
	GuidanceModel   string
	ChatModel       string
	SearchModel     string
	SpeechModel     string
	SpeechVoice     string
	LiveModel       string
	LiveVoice       string
	LiveURL         string
	FallbackEnabled bool
	RequestTimeout  time.Duration
}

type CompanionConfig struct {
	TimeUnit         time.Duration
	RollingCapacity  int
	FrameSize        int
	InputSampleRate  int
	OutputSampleRate int
	SessionTTL       time.Duration
	DefaultLanguage  string
	TtsEnabled       bool
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			StreamLogFilePath:  getEnv("STREAM_LOG_FILE_PATH", "logs/stream.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			JwtSecret:          getEnv("JWT_SECRET", "mindful-dev-secret"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Keys: APIKeys{
			GoogleGemini: getEnv("GOOGLE_GEMINI_API_KEY", ""),
		},
		Ai: AIConfig{
			Provider:        getEnv("LLM_PROVIDER", "gemini"),
			GuidanceModel:   getEnv("GUIDANCE_MODEL", "gemini-3-pro-preview"),
			ChatModel:       getEnv("CHAT_MODEL", "gemini-3-pro-preview"),
			SearchModel:     getEnv("SEARCH_MODEL", "gemini-2.5-flash"),
			SpeechModel:     getEnv("SPEECH_MODEL", "gemini-2.5-flash-preview-tts"),
			SpeechVoice:     getEnv("SPEECH_VOICE", "Aoede"),
			LiveModel:       getEnv("LIVE_MODEL", "gemini-2.5-flash-native-audio-preview-09-2025"),
			LiveVoice:       getEnv("LIVE_VOICE", "Kore"),
			LiveURL:         getEnv("LIVE_URL", "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"),
			FallbackEnabled: getEnvAsBool("GUIDANCE_FALLBACK_ENABLED", true),
			RequestTimeout:  getEnvAsDuration("LLM_REQUEST_TIMEOUT", 60*time.Second),
		},
		Companion: CompanionConfig{
			TimeUnit:         getEnvAsDuration("COMPANION_TIME_UNIT", time.Second),
			RollingCapacity:  rolling.ClampCapacity(getEnvAsInt("ROLLING_CONTEXT_CAPACITY", rolling.DefaultCapacity)),
			FrameSize:        getEnvAsInt("LIVE_FRAME_SIZE", 4096),
			InputSampleRate:  getEnvAsInt("LIVE_INPUT_SAMPLE_RATE", 16000),
			OutputSampleRate: getEnvAsInt("LIVE_OUTPUT_SAMPLE_RATE", 24000),
			SessionTTL:       getEnvAsDuration("COMPANION_SESSION_TTL", 2*time.Hour),
			DefaultLanguage:  getEnv("DEFAULT_LANGUAGE", "en"),
			TtsEnabled:       getEnvAsBool("TTS_ENABLED", true),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
