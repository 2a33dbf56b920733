package registry

import (
	"slices"
	"time"

	"github.com/joseph-ayodele/content-extractor/constants"
	"github.com/joseph-ayodele/content-extractor/internal/common"
	"github.com/joseph-ayodele/content-extractor/internal/extract"
)

// Fallback is one step of a strategy's fallback chain: when the previous
// attempt failed with one of the On kinds, Strategy is invoked with Options
// layered over the job options.
type Fallback struct {
	On       []common.Kind
	Strategy constants.Strategy
	Options  extract.Options
}

func (f Fallback) matches(k common.Kind) bool {
	return slices.Contains(f.On, k)
}

// Rule is the orchestration policy for one strategy.
type Rule struct {
	Timeout         time.Duration
	ExtendedTimeout time.Duration
	// Gated strategies are not invoked while their health probe fails; the
	// fallback chain runs instead.
	Gated     bool
	Fallbacks []Fallback
}

type Policy struct {
	Rules           map[constants.Strategy]Rule
	LargeInputBytes int64
	ProbeTimeout    time.Duration
	HealthTTL       time.Duration
}

var (
	backendKinds = []common.Kind{
		common.KindDependencyMissing,
		common.KindModelUnavailable,
		common.KindModelError,
		common.KindTimeout,
	}
	// The video adapter already drops a failing modality, so only a backend
	// that is gone entirely sends it to the metadata-only path.
	unavailableKinds = []common.Kind{
		common.KindDependencyMissing,
		common.KindModelUnavailable,
	}
	metadataOnly = extract.Options{"metadata_only": true}
)

// DefaultPolicy declares the per-strategy budgets and fallback chains.
func DefaultPolicy() Policy {
	rules := make(map[constants.Strategy]Rule, len(constants.StrategyTimeouts))
	for s, t := range constants.StrategyTimeouts {
		rules[s] = Rule{Timeout: t[0], ExtendedTimeout: t[1]}
	}
	set := func(s constants.Strategy, gated bool, fb ...Fallback) {
		r := rules[s]
		r.Gated = gated
		r.Fallbacks = fb
		rules[s] = r
	}

	set(constants.PdfOcr, true,
		Fallback{On: []common.Kind{common.KindDependencyMissing, common.KindTimeout, common.KindToolFailed}, Strategy: constants.PdfText},
		Fallback{
			On:       []common.Kind{common.KindDependencyMissing, common.KindTimeout, common.KindToolFailed},
			Strategy: constants.PdfText,
			Options:  extract.Options{"engine": "native"},
		},
	)
	set(constants.PdfText, true,
		Fallback{
			On:       []common.Kind{common.KindDependencyMissing, common.KindToolFailed},
			Strategy: constants.PdfText,
			Options:  extract.Options{"engine": "native"},
		},
	)
	set(constants.Vision, true, Fallback{On: backendKinds, Strategy: constants.Vision, Options: metadataOnly})
	set(constants.AudioTranscribe, true, Fallback{On: backendKinds, Strategy: constants.AudioTranscribe, Options: metadataOnly})
	set(constants.VideoMultimodal, true, Fallback{On: unavailableKinds, Strategy: constants.VideoMultimodal, Options: metadataOnly})
	set(constants.OfficeConvert, false, Fallback{On: []common.Kind{common.KindDependencyMissing}, Strategy: constants.TextNative})

	return Policy{
		Rules:           rules,
		LargeInputBytes: constants.PolicyLargeInputBytes,
		ProbeTimeout:    2 * constants.HealthProbeTimeout,
		HealthTTL:       constants.HealthRefreshInterval,
	}
}

// PolicyFrom applies deployment overrides to DefaultPolicy.
func PolicyFrom(cfg *common.Config) Policy {
	p := DefaultPolicy()
	if cfg.Policy.LargeInputBytes > 0 {
		p.LargeInputBytes = cfg.Policy.LargeInputBytes
	}
	for s, d := range cfg.Policy.StrategyTimeouts {
		r := p.Rules[s]
		r.Timeout = d
		if r.ExtendedTimeout < d {
			r.ExtendedTimeout = d
		}
		p.Rules[s] = r
	}
	if cfg.Server.HealthRefreshInterval > 0 {
		p.HealthTTL = cfg.Server.HealthRefreshInterval
	}
	return p
}

// Budget returns the time budget for one invocation: the timeout_secs
// option, else the extended budget for large inputs or when
// extended_timeout is set, else the default.
func (p Policy) Budget(s constants.Strategy, in extract.Input) time.Duration {
	if d := in.Options.Seconds("timeout_secs", 0); d > 0 {
		return d
	}
	r := p.Rules[s]
	if r.Timeout <= 0 {
		r.Timeout = constants.CmdTimeout
	}
	extended := in.Options.Bool("extended_timeout", false) ||
		(p.LargeInputBytes > 0 && int64(len(in.Data)) >= p.LargeInputBytes)
	if extended && r.ExtendedTimeout > r.Timeout {
		return r.ExtendedTimeout
	}
	return r.Timeout
}
