package milter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/d--j/go-milter"
	"github.com/zpam/spamscore/pkg/config"
	"github.com/zpam/spamscore/pkg/email"
	"github.com/zpam/spamscore/pkg/filter"
	"go.uber.org/zap"
)

// Analyzer scores raw messages
type Analyzer interface {
	Analyze(ctx context.Context, raw string) (*filter.AnalysisResult, error)
}

// headerAdder is the part of milter.Modifier the handler writes through
type headerAdder interface {
	AddHeader(name, value string) error
}

// Handler rebuilds each message from milter callbacks and scores it at the
// end of the message
type Handler struct {
	milter.NoOpMilter
	config   config.MilterConfig
	analyzer Analyzer
	logger   *zap.Logger

	raw       strings.Builder
	sender    string
	startTime time.Time
}

// NewHandler creates a new milter handler
func NewHandler(cfg config.MilterConfig, analyzer Analyzer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		config:    cfg,
		analyzer:  analyzer,
		logger:    logger,
		startTime: time.Now(),
	}
}

// MailFrom starts a new message
func (h *Handler) MailFrom(from string, esmtpArgs string, m milter.Modifier) (*milter.Response, error) {
	h.reset()
	h.sender = from
	return milter.RespContinue, nil
}

// Header appends one header line
func (h *Handler) Header(name string, value string, m milter.Modifier) (*milter.Response, error) {
	h.raw.WriteString(name)
	h.raw.WriteString(": ")
	h.raw.WriteString(value)
	h.raw.WriteString("\r\n")
	return milter.RespContinue, nil
}

// Headers ends the header block
func (h *Handler) Headers(m milter.Modifier) (*milter.Response, error) {
	h.raw.WriteString("\r\n")
	return milter.RespContinue, nil
}

// BodyChunk appends body data
func (h *Handler) BodyChunk(chunk []byte, m milter.Modifier) (*milter.Response, error) {
	h.raw.Write(chunk)
	return milter.RespContinue, nil
}

// EndOfMessage scores the message, tags it and decides whether to accept it
func (h *Handler) EndOfMessage(m milter.Modifier) (*milter.Response, error) {
	defer h.reset()
	return h.finish(context.Background(), m)
}

// Abort discards the current message
func (h *Handler) Abort(m milter.Modifier) error {
	h.reset()
	return nil
}

func (h *Handler) finish(ctx context.Context, m headerAdder) (*milter.Response, error) {
	result, err := h.analyzer.Analyze(ctx, h.raw.String())
	if err != nil {
		var vErr *email.ValidationError
		if errors.As(err, &vErr) {
			h.logger.Warn("message could not be analyzed, accepting",
				zap.String("sender", h.sender), zap.Error(err))
			return milter.RespContinue, nil
		}
		h.logger.Error("analysis failed",
			zap.String("sender", h.sender),
			zap.NamedError("cause", errors.Unwrap(err)))
		return milter.RespTempFail, nil
	}

	h.logger.Info("message scored",
		zap.String("sender", h.sender),
		zap.Int("score", result.Score),
		zap.String("category", string(result.Category)),
		zap.Duration("elapsed", time.Since(h.startTime)))

	if h.config.AddSpamHeaders {
		for _, hdr := range spamHeaders(h.config.SpamHeaderPrefix, result) {
			if err := m.AddHeader(hdr[0], hdr[1]); err != nil {
				return milter.RespTempFail, fmt.Errorf("failed to add spam headers: %w", err)
			}
		}
	}

	return h.decide(result), nil
}

// spamHeaders returns the name/value pairs added to a scored message
func spamHeaders(prefix string, result *filter.AnalysisResult) [][2]string {
	rules := "none"
	if len(result.Findings) > 0 {
		parts := make([]string, len(result.Findings))
		for i, f := range result.Findings {
			parts[i] = f.Name + "=" + strconv.Itoa(f.Points)
		}
		rules = strings.Join(parts, ", ")
	}

	return [][2]string{
		{prefix + "Score", strconv.Itoa(result.Score)},
		{prefix + "Category", string(result.Category)},
		{prefix + "Rules", rules},
		{prefix + "Auth", fmt.Sprintf("spf=%s dkim=%s dmarc=%s",
			result.AuthStatus.SPF, result.AuthStatus.DKIM, result.AuthStatus.DMARC)},
	}
}

// decide rejects messages at or above the configured category
func (h *Handler) decide(result *filter.AnalysisResult) *milter.Response {
	if h.config.RejectCategory == "" ||
		!filter.IsAtLeast(result.Category, filter.Category(h.config.RejectCategory)) {
		return milter.RespContinue
	}

	message := h.config.RejectMessage
	if message == "" {
		message = fmt.Sprintf("5.7.1 Message rejected as %s (score: %d)", result.Category, result.Score)
	}
	resp, err := milter.RejectWithCodeAndReason(550, message)
	if err != nil {
		return milter.RespReject
	}
	return resp
}

func (h *Handler) reset() {
	h.raw.Reset()
	h.sender = ""
	h.startTime = time.Now()
}
