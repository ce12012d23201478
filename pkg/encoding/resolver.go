// Package encoding provides charset detection and decoding for HTTP response
// bodies whose declared, detected, and actual encodings may disagree.
//
// Resolution runs a fixed priority chain: a charset declaration found in the
// content itself wins, then statistical detection, then CJK heuristics, then
// a latin-1 fallback that can represent any byte sequence. Decoding never
// fails; undecodable input degrades through a fallback chain instead of
// returning an error.
package encoding

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/saintfish/chardet"
)

// Prometheus metrics for encoding resolution.
var (
	resolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xthttp_encoding_resolutions_total",
		Help: "Total encoding resolutions by winning step",
	}, []string{"source"})

	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xthttp_encoding_cache_hits_total",
		Help: "Total detection cache hits",
	})

	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xthttp_encoding_cache_misses_total",
		Help: "Total detection cache misses",
	})
)

// DefaultEncoding is the label used for empty content and as the first
// fallback in decoding.
const DefaultEncoding = "utf-8"

const (
	// declaredScanLimit bounds the charset-declaration scan.
	declaredScanLimit = 2048

	// detectScanLimit bounds the statistical detection sample.
	detectScanLimit = 65536

	// heuristicScanLimit bounds the CJK byte-pattern scan.
	heuristicScanLimit = 4096

	// minDetectConfidence is the chardet confidence (percent) below which a
	// statistical result is rejected.
	minDetectConfidence = 60

	// maxCacheSize is the detection cache bound; the oldest half is evicted
	// when it is exceeded.
	maxCacheSize = 1000
)

// chineseEncodings are the labels accepted from an in-content declaration.
var chineseEncodings = map[string]bool{
	"utf-8":   true,
	"gbk":     true,
	"gb18030": true,
	"big5":    true,
	"gb2312":  true,
}

// chineseDomains flags hosts whose content is likely Chinese even without
// byte-pattern evidence.
var chineseDomains = []string{
	"baidu.com", "sina.com", "163.com", "qq.com", "alibaba.com",
	"taobao.com", "jd.com", "sohu.com", "zhihu.com", "weibo.com",
}

var (
	charsetPattern  = regexp.MustCompile(`charset\s*=\s*["']?\s*([\w-]+)`)
	encodingPattern = regexp.MustCompile(`encoding\s*=\s*["']?\s*([\w-]+)`)
)

// Resolver detects and decodes response content. It owns a bounded cache of
// statistical detection results keyed by content hash, since detection is the
// most expensive step and batch workloads repeat similar content.
//
// A Resolver is safe for concurrent use.
type Resolver struct {
	detector *chardet.Detector
	logger   zerolog.Logger

	mu    sync.Mutex
	cache map[string]string
	order []string
}

// NewResolver creates a new encoding resolver with an empty detection cache.
func NewResolver(logger zerolog.Logger) *Resolver {
	return &Resolver{
		detector: chardet.NewTextDetector(),
		logger:   logger,
		cache:    make(map[string]string),
	}
}

// Resolve determines the encoding of content fetched from sourceURL and
// returns the chosen label together with the decoded text. It never fails:
// content that defeats every detection step is decoded as latin-1, which can
// represent any byte sequence.
func (r *Resolver) Resolve(content []byte, sourceURL string) (string, string) {
	label := r.Detect(content, sourceURL)
	return label, r.Decode(content, label)
}

// Detect determines the encoding label for content, running the priority
// chain: declared, statistical, heuristic, fallback. Empty content resolves
// to the default encoding without invoking detection.
func (r *Resolver) Detect(content []byte, sourceURL string) string {
	if len(content) == 0 {
		return DefaultEncoding
	}

	if declared := extractDeclaredEncoding(content); declared != "" {
		resolutionsTotal.WithLabelValues("declared").Inc()
		return declared
	}

	if detected := r.detectStatistical(content); detected != "" {
		resolutionsTotal.WithLabelValues("detected").Inc()
		return detected
	}

	return r.detectByHeuristics(content, sourceURL)
}

// extractDeclaredEncoding scans the first 2 KB of content for a
// charset/encoding declaration. It normalizes synonyms and accepts only
// recognized labels.
func extractDeclaredEncoding(content []byte) string {
	sample := content
	if len(sample) > declaredScanLimit {
		sample = sample[:declaredScanLimit]
	}
	sample = bytes.ToLower(sample)

	for _, pattern := range []*regexp.Regexp{charsetPattern, encodingPattern} {
		match := pattern.FindSubmatch(sample)
		if match == nil {
			continue
		}

		label := NormalizeLabel(string(match[1]))
		if chineseEncodings[label] {
			if label == "gb2312" {
				return "gbk"
			}
			return label
		}
	}

	return ""
}

// detectStatistical runs chardet over the first 64 KB of content, accepting
// the top suggestion only above the confidence threshold. Results are cached
// by content hash.
func (r *Resolver) detectStatistical(content []byte) string {
	sample := content
	if len(sample) > detectScanLimit {
		sample = sample[:detectScanLimit]
	}

	sum := sha256.Sum256(sample)
	key := hex.EncodeToString(sum[:])

	r.mu.Lock()
	if cached, ok := r.cache[key]; ok {
		r.mu.Unlock()
		cacheHitsTotal.Inc()
		return cached
	}
	r.mu.Unlock()
	cacheMissesTotal.Inc()

	result, err := r.detector.DetectBest(sample)
	if err != nil || result == nil {
		return ""
	}
	if result.Confidence <= minDetectConfidence {
		r.logger.Debug().
			Str("charset", result.Charset).
			Int("confidence", result.Confidence).
			Msg("Statistical detection below confidence threshold")
		return ""
	}

	label := NormalizeLabel(result.Charset)
	if label == "gb2312" {
		label = "gbk"
	}
	// Only the recognized label set is trusted, and the suggestion must
	// actually decode the sample; anything else falls through to the
	// heuristic step.
	if !chineseEncodings[label] || !canDecode(sample, label) {
		return ""
	}

	r.mu.Lock()
	r.cache[key] = label
	r.order = append(r.order, key)
	r.evictIfNeeded()
	r.mu.Unlock()

	return label
}

// evictIfNeeded removes the oldest half of the cache when it exceeds the
// bound. Caller must hold r.mu.
func (r *Resolver) evictIfNeeded() {
	if len(r.cache) <= maxCacheSize {
		return
	}

	half := len(r.order) / 2
	for _, key := range r.order[:half] {
		delete(r.cache, key)
	}
	r.order = append([]string(nil), r.order[half:]...)
	r.logger.Debug().Int("evicted", half).Msg("Detection cache evicted oldest half")
}

// detectByHeuristics inspects content and the source host for CJK signals
// and tries Chinese encodings first when either fires. It always returns a
// usable label.
func (r *Resolver) detectByHeuristics(content []byte, sourceURL string) string {
	if hasChineseContent(content) || isChineseDomain(sourceURL) {
		for _, label := range []string{"utf-8", "gbk", "gb18030"} {
			if canDecode(content, label) {
				resolutionsTotal.WithLabelValues("heuristic").Inc()
				return label
			}
		}
	}

	if canDecode(content, "utf-8") {
		resolutionsTotal.WithLabelValues("heuristic").Inc()
		return "utf-8"
	}

	// latin-1 decodes any byte sequence.
	resolutionsTotal.WithLabelValues("fallback").Inc()
	return "latin-1"
}

// isChineseDomain reports whether the URL matches the known-Chinese-site list.
func isChineseDomain(sourceURL string) bool {
	if sourceURL == "" {
		return false
	}

	lower := strings.ToLower(sourceURL)
	for _, domain := range chineseDomains {
		if strings.Contains(lower, domain) {
			return true
		}
	}
	return false
}

// chinesePhrases are UTF-8 byte sequences of high-frequency Chinese words.
var chinesePhrases = [][]byte{
	{0xe4, 0xbd, 0xa0, 0xe5, 0xa5, 0xbd}, // 你好
	{0xe4, 0xb8, 0xad, 0xe5, 0x9b, 0xbd}, // 中国
	{0xe4, 0xb8, 0xad, 0xe6, 0x96, 0x87}, // 中文
	{0xe7, 0x9a, 0x84},                   // 的
	{0xe6, 0x98, 0xaf},                   // 是
}

// hasChineseContent checks the first 4 KB for byte patterns characteristic
// of UTF-8 or GBK encoded Chinese text.
func hasChineseContent(content []byte) bool {
	if len(content) == 0 {
		return false
	}

	sample := content
	if len(sample) > heuristicScanLimit {
		sample = sample[:heuristicScanLimit]
	}

	for _, phrase := range chinesePhrases {
		if bytes.Contains(sample, phrase) {
			return true
		}
	}

	// UTF-8 CJK lead-byte pattern: 0xE4 [0xB8-0xBF] [0x80-0xBF].
	for i := 0; i+2 < len(sample); i++ {
		if sample[i] == 0xe4 &&
			sample[i+1] >= 0xb8 && sample[i+1] <= 0xbf &&
			sample[i+2] >= 0x80 && sample[i+2] <= 0xbf {
			return true
		}
	}

	// GBK two-byte pattern: [0xB0-0xF7] [0xA1-0xFE].
	for i := 0; i+1 < len(sample); i++ {
		if sample[i] >= 0xb0 && sample[i] <= 0xf7 &&
			sample[i+1] >= 0xa1 && sample[i+1] <= 0xfe {
			return true
		}
	}

	return false
}

// NormalizeLabel lower-cases an encoding label, maps '_' to '-', and folds
// common synonyms (utf8, utf8mb4 -> utf-8; gb-18030 -> gb18030).
func NormalizeLabel(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	label = strings.ReplaceAll(label, "_", "-")

	switch label {
	case "utf8", "utf8mb4":
		return "utf-8"
	case "gb-18030":
		return "gb18030"
	case "iso8859-1", "iso-8859-1":
		return "latin-1"
	}
	return label
}
