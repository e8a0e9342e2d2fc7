package filter

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zpam/spamscore/pkg/config"
	"github.com/zpam/spamscore/pkg/dns"
	"github.com/zpam/spamscore/pkg/email"
	"github.com/zpam/spamscore/pkg/reputation"
	"go.uber.org/zap"
)

// FilterResults contains the results of batch filtering
type FilterResults struct {
	Total      int
	Safe       int
	Suspicious int
	LikelySpam int
	Failed     int
	Moved      int
}

// SpamFilter runs the parse, extract, rules and aggregate pipeline
type SpamFilter struct {
	parser     *email.Parser
	config     *config.Config
	engine     *RuleEngine
	aggregator *Aggregator
	provider   reputation.Provider
	recorder   Recorder
	logger     *zap.Logger
}

// NewSpamFilter creates a spam filter with the default configuration and
// the system resolver
func NewSpamFilter() *SpamFilter {
	cfg := config.DefaultConfig()
	probe := reputation.NewProbe(dns.NewClient(dns.Config{
		Timeout: time.Duration(cfg.Reputation.DNS.TimeoutMs) * time.Millisecond,
	}))
	return NewSpamFilterWithConfig(cfg, probe, nil)
}

// NewSpamFilterWithConfig creates a spam filter with custom configuration
func NewSpamFilterWithConfig(cfg *config.Config, provider reputation.Provider, logger *zap.Logger) *SpamFilter {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SpamFilter{
		parser:     email.NewParser(),
		config:     cfg,
		engine:     NewRuleEngine(cfg, provider, logger),
		aggregator: NewAggregator(cfg.Detection),
		provider:   provider,
		logger:     logger,
	}
}

// SetRecorder enables timing of pipeline stages and individual rules
func (sf *SpamFilter) SetRecorder(r Recorder) {
	sf.recorder = r
	sf.engine.SetRecorder(r)
}

// Config returns the active configuration
func (sf *SpamFilter) Config() *config.Config {
	return sf.config
}

// Analyze scores one raw message. Input problems are returned as
// *email.ValidationError, everything else as *InternalError.
func (sf *SpamFilter) Analyze(ctx context.Context, raw string) (result *AnalysisResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			sf.logger.Error("analysis panicked", zap.Any("panic", rec))
			result, err = nil, &InternalError{Err: fmt.Errorf("panic: %v", rec)}
		}
	}()

	if timeout := sf.config.Performance.TimeoutMs; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Millisecond)
		defer cancel()
	}

	start := time.Now()
	msg, err := sf.parser.Parse(raw)
	sf.record("parse", start)
	if err != nil {
		var vErr *email.ValidationError
		if errors.As(err, &vErr) {
			return nil, err
		}
		return nil, &InternalError{Err: err}
	}

	start = time.Now()
	features := email.Extract(msg)
	sf.record("extract", start)

	findings := sf.engine.Evaluate(ctx, msg, features)

	start = time.Now()
	score, category, auth := sf.aggregator.Aggregate(findings)
	sf.record("aggregate", start)

	sf.logger.Debug("message analyzed",
		zap.String("sender_domain", features.SenderDomain),
		zap.Int("score", score),
		zap.String("category", string(category)),
		zap.Strings("rules", ruleNames(findings)))

	return &AnalysisResult{
		Score:      score,
		Category:   category,
		Findings:   findings,
		Links:      features.URLs,
		AuthStatus: auth,
	}, nil
}

// TestEmail analyzes a single message file
func (sf *SpamFilter) TestEmail(ctx context.Context, path string) (*AnalysisResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read email: %w", err)
	}
	return sf.Analyze(ctx, string(data))
}

// IsAtLeast reports whether category is as severe as threshold
func IsAtLeast(category, threshold Category) bool {
	return severity(category) >= severity(threshold)
}

func severity(c Category) int {
	switch c {
	case CategoryLikelySpam:
		return 2
	case CategorySuspicious:
		return 1
	default:
		return 0
	}
}

// ProcessEmails analyzes every message file under inputPath. Messages at or
// above spamCategory move to spamPath, the rest to outputPath; an empty path
// leaves those files in place.
func (sf *SpamFilter) ProcessEmails(ctx context.Context, inputPath, outputPath, spamPath string, spamCategory Category) (*FilterResults, error) {
	results := &FilterResults{}

	for _, dir := range []string{outputPath, spamPath} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	var emailFiles []string
	err := filepath.WalkDir(inputPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isEmailFile(path) {
			return nil
		}
		emailFiles = append(emailFiles, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(emailFiles) == 0 {
		return results, nil
	}

	maxConcurrent := 10
	if sf.config.Performance.MaxConcurrentEmails > 0 {
		maxConcurrent = sf.config.Performance.MaxConcurrentEmails
	}

	return sf.processEmailsParallel(ctx, emailFiles, outputPath, spamPath, spamCategory, maxConcurrent)
}

// processEmailsParallel analyzes files on a worker pool and moves them as
// results arrive
func (sf *SpamFilter) processEmailsParallel(ctx context.Context, emailFiles []string, outputPath, spamPath string, spamCategory Category, maxConcurrent int) (*FilterResults, error) {
	var total, safe, suspicious, likelySpam, failed, moved int32

	type emailResult struct {
		filePath string
		result   *AnalysisResult
		err      error
	}

	jobChan := make(chan string, len(emailFiles))
	resultChan := make(chan emailResult, len(emailFiles))

	var workerWG sync.WaitGroup
	for i := 0; i < maxConcurrent; i++ {
		workerWG.Add(1)
		go func() {
			defer workerWG.Done()
			for filePath := range jobChan {
				if ctx.Err() != nil {
					resultChan <- emailResult{filePath: filePath, err: ctx.Err()}
					continue
				}
				result, err := sf.TestEmail(ctx, filePath)
				resultChan <- emailResult{filePath: filePath, result: result, err: err}
			}
		}()
	}

	go func() {
		defer close(jobChan)
		for _, filePath := range emailFiles {
			jobChan <- filePath
		}
	}()

	go func() {
		defer close(resultChan)
		workerWG.Wait()
	}()

	var moveWG sync.WaitGroup
	for res := range resultChan {
		atomic.AddInt32(&total, 1)
		if res.err != nil {
			atomic.AddInt32(&failed, 1)
			sf.logger.Warn("failed to process email", zap.String("file", res.filePath), zap.Error(res.err))
			continue
		}

		switch res.result.Category {
		case CategoryLikelySpam:
			atomic.AddInt32(&likelySpam, 1)
		case CategorySuspicious:
			atomic.AddInt32(&suspicious, 1)
		default:
			atomic.AddInt32(&safe, 1)
		}

		destDir := outputPath
		if IsAtLeast(res.result.Category, spamCategory) {
			destDir = spamPath
		}
		if destDir == "" {
			continue
		}

		moveWG.Add(1)
		go func(src, dst string) {
			defer moveWG.Done()
			if err := os.Rename(src, dst); err != nil {
				sf.logger.Warn("failed to move email", zap.String("file", src), zap.Error(err))
				return
			}
			atomic.AddInt32(&moved, 1)
		}(res.filePath, filepath.Join(destDir, filepath.Base(res.filePath)))
	}
	moveWG.Wait()

	return &FilterResults{
		Total:      int(total),
		Safe:       int(safe),
		Suspicious: int(suspicious),
		LikelySpam: int(likelySpam),
		Failed:     int(failed),
		Moved:      int(moved),
	}, nil
}

func (sf *SpamFilter) record(stage string, start time.Time) {
	if sf.recorder != nil {
		sf.recorder.Record(stage, time.Since(start))
	}
}

// isEmailFile checks if a file is likely an email file
func isEmailFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".eml", ".msg", ".txt", ".email", "":
		return true
	}
	return false
}

func ruleNames(findings []Finding) []string {
	names := make([]string, len(findings))
	for i, f := range findings {
		names[i] = f.Name
	}
	return names
}
