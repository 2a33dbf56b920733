package common

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/content-extractor/constants"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Tools         ToolsConfig
	OCR           OCRConfig
	PDF           PDFConfig
	Text          TextConfig
	Vision        VisionConfig
	Transcription TranscriptionConfig
	Generation    GenerationConfig
	Video         VideoConfig
	Audio         AudioConfig
	Summarizer    SummarizerConfig
	Policy        PolicyConfig
	Worker        WorkerConfig
	Cache         CacheConfig
	Log           LogConfig
}

// ServerConfig holds extractd listener and inbox configuration
type ServerConfig struct {
	GRPCAddr              string
	InboxDir              string
	OutboxDir             string
	HealthRefreshInterval time.Duration
}

// DatabaseConfig holds progress-store configuration. An empty DSN selects SQLite.
type DatabaseConfig struct {
	DSN              string
	SQLitePath       string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ToolsConfig names the external binaries; empty means resolve from PATH.
type ToolsConfig struct {
	CmdTimeout    time.Duration
	Pdftotext     string
	Pdfinfo       string
	Pdftoppm      string
	Tesseract     string
	Pandoc        string
	Ffmpeg        string
	Ffprobe       string
	HeicConverter string
	TempDir       string
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Language    string
	DPI         int
	PageBatch   int
	TessdataDir string
	PSM         int
	OEM         int
}

type PDFConfig struct {
	LargePageThreshold int
	BatchPages         int
	MinCharsPerPage    int
}

type TextConfig struct {
	MaxBytes int64
}

// VisionConfig selects and tunes the image-description backend.
type VisionConfig struct {
	Provider     string // ollama | openai | none
	BaseURL      string
	APIKey       string
	Model        string
	Prompt       string
	MaxDimension int
	MaxInFlight  int
	Timeout      time.Duration
}

type TranscriptionConfig struct {
	Provider string // whisper | openai | none
	BaseURL  string
	APIKey   string
	Model    string
	Language string
	Timeout  time.Duration
}

type GenerationConfig struct {
	Provider    string // ollama | openai | none
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

type VideoConfig struct {
	KeyframeInterval      time.Duration
	SceneThreshold        float64
	SceneMaxDuration      time.Duration
	MaxFrames             int
	HybridMinInterval     time.Duration
	FusionWindow          time.Duration
	DescribeFramesEnabled bool
}

type AudioConfig struct {
	ChunkThreshold time.Duration
	ChunkLength    time.Duration
	ChunkOverlap   time.Duration
}

type SummarizerConfig struct {
	Enabled        bool
	TokenThreshold int
	MapReduceBound int
	TargetTokens   int
	WindowTokens   int
	OverlapTokens  int
	ChunkTokens    int
	Concurrency    int
	MaxLevels      int
}

type PolicyConfig struct {
	LargeInputBytes int64
	// StrategyTimeouts overrides the default budget per strategy (TIMEOUT_<STRATEGY>).
	StrategyTimeouts map[constants.Strategy]time.Duration
	AutoOCR          bool
}

type WorkerConfig struct {
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
}

type CacheConfig struct {
	RedisAddr string
	RedisDB   int
	TTL       time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			GRPCAddr:              getEnv("GRPC_ADDR", ":8080"),
			InboxDir:              getEnv("INBOX_DIR", ""),
			OutboxDir:             getEnv("OUTBOX_DIR", ""),
			HealthRefreshInterval: getEnvAsDuration("HEALTH_REFRESH_INTERVAL", constants.HealthRefreshInterval),
		},
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			SQLitePath:       getEnv("SQLITE_PATH", "file:extract-progress.db"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 1),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Tools: ToolsConfig{
			CmdTimeout:    getEnvAsDuration("EXTRACTION_CMD_TIMEOUT", constants.CmdTimeout),
			Pdftotext:     getEnv("PDFTOTEXT_BIN", "pdftotext"),
			Pdfinfo:       getEnv("PDFINFO_BIN", "pdfinfo"),
			Pdftoppm:      getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Tesseract:     getEnv("TESSERACT_BIN", "tesseract"),
			Pandoc:        getEnv("PANDOC_BIN", "pandoc"),
			Ffmpeg:        getEnv("FFMPEG_BIN", "ffmpeg"),
			Ffprobe:       getEnv("FFPROBE_BIN", "ffprobe"),
			HeicConverter: getEnv("HEIC_CONVERTER", "magick"),
			TempDir:       getEnv("EXTRACTION_TMP_DIR", ""),
		},
		OCR: OCRConfig{
			Language:    getEnv("OCR_LANG", constants.OCRLanguage),
			DPI:         getEnvAsInt("OCR_DPI", constants.OCRDPI),
			PageBatch:   getEnvAsInt("OCR_PAGE_BATCH", constants.OCRPageBatch),
			TessdataDir: getEnv("TESSDATA_PREFIX", ""),
			PSM:         getEnvAsInt("OCR_PSM", 0),
			OEM:         getEnvAsInt("OCR_OEM", -1),
		},
		PDF: PDFConfig{
			LargePageThreshold: getEnvAsInt("PDF_LARGE_PAGE_THRESHOLD", constants.PdfLargePageThreshold),
			BatchPages:         getEnvAsInt("PDF_BATCH_PAGES", constants.PdfBatchPages),
			MinCharsPerPage:    getEnvAsInt("PDF_MIN_CHARS_PER_PAGE", constants.PdfMinCharsPerPage),
		},
		Text: TextConfig{
			MaxBytes: getEnvAsInt64("TEXT_EXTRACTION_MAX_BYTES", constants.TextMaxBytes),
		},
		Vision: VisionConfig{
			Provider:     strings.ToLower(getEnv("VISION_PROVIDER", "ollama")),
			BaseURL:      getEnv("VISION_BASE_URL", "http://localhost:11434"),
			APIKey:       getEnv("VISION_API_KEY", getEnv("OPENAI_API_KEY", "")),
			Model:        getEnv("VISION_MODEL", "llava"),
			Prompt:       getEnv("VISION_PROMPT", constants.VisionPrompt),
			MaxDimension: getEnvAsInt("VISION_MAX_DIMENSION", constants.VisionMaxDimension),
			MaxInFlight:  getEnvAsInt("VISION_MAX_IN_FLIGHT", constants.VisionMaxInFlight),
			Timeout:      getEnvAsDuration("VISION_TIMEOUT", constants.DefaultVisionTimeout),
		},
		Transcription: TranscriptionConfig{
			Provider: strings.ToLower(getEnv("TRANSCRIPTION_PROVIDER", "whisper")),
			BaseURL:  getEnv("WHISPER_URL", "http://localhost:8000"),
			APIKey:   getEnv("TRANSCRIPTION_API_KEY", getEnv("OPENAI_API_KEY", "")),
			Model:    getEnv("WHISPER_MODEL", "base"),
			Language: getEnv("TRANSCRIPTION_LANGUAGE", ""),
			Timeout:  getEnvAsDuration("TRANSCRIPTION_TIMEOUT", constants.DefaultTranscribeLimit),
		},
		Generation: GenerationConfig{
			Provider:    strings.ToLower(getEnv("GENERATION_PROVIDER", "ollama")),
			BaseURL:     getEnv("GENERATION_BASE_URL", "http://localhost:11434"),
			APIKey:      getEnv("GENERATION_API_KEY", getEnv("OPENAI_API_KEY", "")),
			Model:       getEnv("GENERATION_MODEL", "llama3.2"),
			Temperature: getEnvAsFloat32("GENERATION_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("GENERATION_TIMEOUT", constants.DefaultGenerateTimeout),
		},
		Video: VideoConfig{
			KeyframeInterval:      getEnvAsDuration("VIDEO_KEYFRAME_INTERVAL", constants.KeyframeInterval),
			SceneThreshold:        getEnvAsFloat64("VIDEO_SCENE_THRESHOLD", constants.SceneThreshold),
			SceneMaxDuration:      getEnvAsDuration("VIDEO_SCENE_MAX_DURATION", constants.SceneMaxVideoDuration),
			MaxFrames:             getEnvAsInt("VIDEO_MAX_FRAMES", constants.MaxKeyframes),
			HybridMinInterval:     getEnvAsDuration("VIDEO_HYBRID_MIN_INTERVAL", constants.HybridMinFrameInterval),
			FusionWindow:          getEnvAsDuration("FUSION_WINDOW", constants.FusionWindow),
			DescribeFramesEnabled: getEnvAsBool("VIDEO_DESCRIBE_FRAMES", true),
		},
		Audio: AudioConfig{
			ChunkThreshold: getEnvAsDuration("AUDIO_CHUNK_THRESHOLD", constants.AudioChunkThreshold),
			ChunkLength:    getEnvAsDuration("AUDIO_CHUNK_LENGTH", constants.AudioChunkLength),
			ChunkOverlap:   getEnvAsDuration("AUDIO_CHUNK_OVERLAP", constants.AudioChunkOverlap),
		},
		Summarizer: SummarizerConfig{
			Enabled:        getEnvAsBool("SUMMARY_ENABLED", true),
			TokenThreshold: getEnvAsInt("SUMMARY_TOKEN_THRESHOLD", constants.SummaryTokenThreshold),
			MapReduceBound: getEnvAsInt("SUMMARY_MAP_REDUCE_BOUND", constants.SummaryMapReduceBound),
			TargetTokens:   getEnvAsInt("SUMMARY_TARGET_TOKENS", constants.SummaryTargetTokens),
			WindowTokens:   getEnvAsInt("SUMMARY_WINDOW_TOKENS", constants.SummaryWindowTokens),
			OverlapTokens:  getEnvAsInt("SUMMARY_OVERLAP_TOKENS", constants.SummaryOverlapTokens),
			ChunkTokens:    getEnvAsInt("SUMMARY_CHUNK_TOKENS", constants.SummaryChunkTokens),
			Concurrency:    getEnvAsInt("SUMMARY_CONCURRENCY", constants.SummaryConcurrency),
			MaxLevels:      getEnvAsInt("SUMMARY_MAX_LEVELS", constants.SummaryMaxLevels),
		},
		Policy: PolicyConfig{
			LargeInputBytes:  getEnvAsInt64("POLICY_LARGE_INPUT_BYTES", constants.PolicyLargeInputBytes),
			StrategyTimeouts: loadStrategyTimeouts(),
			AutoOCR:          getEnvAsBool("AUTO_OCR", true),
		},
		Worker: WorkerConfig{
			Workers:    getEnvAsInt("WORKERS", constants.WorkerCount),
			QueueSize:  getEnvAsInt("QUEUE_SIZE", constants.WorkerQueueSize),
			JobTimeout: getEnvAsDuration("JOB_TIMEOUT", constants.WorkerJobTimeout),
		},
		Cache: CacheConfig{
			RedisAddr: getEnv("REDIS_ADDR", ""),
			RedisDB:   getEnvAsInt("REDIS_DB", 0),
			TTL:       getEnvAsDuration("CACHE_TTL", constants.ResultCacheTTL),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "text")),
		},
	}
}

// loadStrategyTimeouts reads TIMEOUT_PDF_OCR=15m style overrides.
func loadStrategyTimeouts() map[constants.Strategy]time.Duration {
	out := make(map[constants.Strategy]time.Duration)
	for _, s := range constants.AllStrategies() {
		key := "TIMEOUT_" + strings.ToUpper(string(s))
		if d := getEnvAsDuration(key, 0); d > 0 {
			out[s] = d
		}
	}
	return out
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		// bare integers are seconds
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Server.GRPCAddr == "" {
		return NewAppError("CONFIG_ERROR", "GRPC_ADDR is required", ErrInvalidInput)
	}
	if c.Tools.CmdTimeout <= 0 {
		return NewAppError("CONFIG_ERROR", "EXTRACTION_CMD_TIMEOUT must be positive", ErrInvalidInput)
	}
	if c.OCR.DPI < 72 || c.OCR.DPI > 1200 {
		return NewAppError("CONFIG_ERROR", "OCR_DPI must be between 72 and 1200", ErrInvalidInput)
	}
	if c.PDF.BatchPages <= 0 {
		return NewAppError("CONFIG_ERROR", "PDF_BATCH_PAGES must be positive", ErrInvalidInput)
	}
	if c.Video.KeyframeInterval <= 0 || c.Video.FusionWindow <= 0 {
		return NewAppError("CONFIG_ERROR", "VIDEO_KEYFRAME_INTERVAL and FUSION_WINDOW must be positive", ErrInvalidInput)
	}
	if c.Video.MaxFrames <= 0 {
		return NewAppError("CONFIG_ERROR", "VIDEO_MAX_FRAMES must be positive", ErrInvalidInput)
	}
	if c.Audio.ChunkOverlap >= c.Audio.ChunkLength {
		return NewAppError("CONFIG_ERROR", "AUDIO_CHUNK_OVERLAP must be shorter than AUDIO_CHUNK_LENGTH", ErrInvalidInput)
	}
	s := c.Summarizer
	if s.TokenThreshold <= 0 || s.TargetTokens <= 0 || s.TargetTokens > s.TokenThreshold {
		return NewAppError("CONFIG_ERROR", "SUMMARY_TARGET_TOKENS must be positive and not exceed SUMMARY_TOKEN_THRESHOLD", ErrInvalidInput)
	}
	if s.MapReduceBound < s.TokenThreshold {
		return NewAppError("CONFIG_ERROR", "SUMMARY_MAP_REDUCE_BOUND must be at least SUMMARY_TOKEN_THRESHOLD", ErrInvalidInput)
	}
	if s.OverlapTokens >= s.WindowTokens || s.ChunkTokens >= s.WindowTokens {
		return NewAppError("CONFIG_ERROR", "SUMMARY_WINDOW_TOKENS must exceed overlap and chunk sizes", ErrInvalidInput)
	}
	if c.Worker.Workers <= 0 || c.Worker.QueueSize <= 0 {
		return NewAppError("CONFIG_ERROR", "WORKERS and QUEUE_SIZE must be positive", ErrInvalidInput)
	}
	for _, p := range []string{c.Vision.Provider, c.Generation.Provider} {
		switch p {
		case "ollama", "openai", "none":
		default:
			return NewAppError("CONFIG_ERROR", "unknown backend provider "+p, ErrInvalidInput)
		}
	}
	switch c.Transcription.Provider {
	case "whisper", "openai", "none":
	default:
		return NewAppError("CONFIG_ERROR", "unknown TRANSCRIPTION_PROVIDER "+c.Transcription.Provider, ErrInvalidInput)
	}
	v := NewValidator().
		Field("LOG_FORMAT", c.Log.Format, OneOf("text", "json")).
		Field("LOG_LEVEL", c.Log.Level, OneOf("debug", "info", "warn", "error"))
	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}
