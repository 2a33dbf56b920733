package constants

import "time"

// Per-deployment defaults. Every value can be overridden from the environment
// (see common.LoadConfig) and most per job through the options document.
const (
	CmdTimeout = 120 * time.Second

	TextMaxBytes = 10 * 1024 * 1024

	PdfLargePageThreshold = 100
	PdfBatchPages         = 50
	PdfMinCharsPerPage    = 50

	OCRLanguage  = "eng"
	OCRDPI       = 300
	OCRPageBatch = 10

	VisionMaxDimension = 2048
	VisionMaxInFlight  = 2
	VisionPrompt       = "Describe this image in detail. Include any text visible in the image."

	AudioChunkThreshold = 600 * time.Second
	AudioChunkLength    = 300 * time.Second
	AudioChunkOverlap   = 5 * time.Second
	AudioSampleRate     = 16000

	KeyframeInterval       = 10 * time.Second
	SceneThreshold         = 0.3
	SceneMaxVideoDuration  = 600 * time.Second
	MaxKeyframes           = 30
	HybridMinFrameInterval = 2 * time.Second

	FusionWindow = 30 * time.Second

	SummaryTokenThreshold  = 32000
	SummaryMapReduceBound  = 128000
	SummaryTargetTokens    = 8000
	SummaryWindowTokens    = 8000
	SummaryOverlapTokens   = 400
	SummaryChunkTokens     = 1000
	SummaryConcurrency     = 4
	SummaryMaxLevels       = 6
	CharsPerTokenEstimate  = 4
	HealthProbeTimeout     = 5 * time.Second
	PolicyLargeInputBytes  = 50 * 1024 * 1024
	MCPMaxInputBytes       = 512 * 1024 * 1024
	WorkerCount            = 4
	WorkerQueueSize        = 256
	WorkerJobTimeout       = 30 * time.Minute
	ResultCacheTTL         = 24 * time.Hour
	HealthRefreshInterval  = 30 * time.Second
	ProgressHistoryLimit   = 100
	StderrLogCapBytes      = 8 << 10
	MaxTopLevelKeysInMeta  = 10
	MaxSummariesInMeta     = 10
	MaxDeclarationsInMeta  = 500
	DefaultVisionTimeout   = 120 * time.Second
	DefaultTranscribeLimit = 300 * time.Second
	DefaultGenerateTimeout = 120 * time.Second
)

// StrategyTimeouts are the default and extended time budgets per strategy.
var StrategyTimeouts = map[Strategy][2]time.Duration{
	TextNative:        {30 * time.Second, 2 * time.Minute},
	StructuredExtract: {30 * time.Second, 2 * time.Minute},
	CodeAst:           {30 * time.Second, 2 * time.Minute},
	PdfText:           {2 * time.Minute, 10 * time.Minute},
	PdfOcr:            {10 * time.Minute, 45 * time.Minute},
	OfficeConvert:     {2 * time.Minute, 10 * time.Minute},
	Vision:            {3 * time.Minute, 6 * time.Minute},
	AudioTranscribe:   {10 * time.Minute, 60 * time.Minute},
	VideoMultimodal:   {20 * time.Minute, 90 * time.Minute},
}
