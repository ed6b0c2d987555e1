/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package bufpool is the C1 Buffer Pool: a byte-slice pool partitioned into
// size classes, with adaptive grow/shrink driven by miss rate and usage
// ratio, a process-memory budget, and optional secure-clear and fallback
// allocation for sizes outside the declared classes.
package bufpool

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// ClassConfig is one (size, ratio) allocation class.
type ClassConfig struct {
	Size  int     `json:"size" yaml:"size" toml:"size" validate:"gt=0"`
	Ratio float64 `json:"ratio" yaml:"ratio" toml:"ratio" validate:"gt=0,lte=1"`
}

// Config configures a Pool. Every field corresponds to one row of the
// configuration surface table: Classes/TotalBuffers/BufferAllocations,
// MinimumIncrease/MaxBufferIncreaseLimit, AdaptiveGrowthFactor,
// MaxMemoryPercentage/MaxMemoryBytes, SecureClear, FallbackToArrayPool,
// EnableMemoryTrimming/TrimInterval/DeepTrimInterval, EnableAnalytics,
// EnableQueueCompaction, AutoTuneOperationThreshold.
type Config struct {
	Classes []ClassConfig `validate:"required,min=1,dive"`

	TotalBuffers int `validate:"gte=0"`

	MinimumIncrease        int     `validate:"gte=0"`
	MaxBufferIncreaseLimit int     `validate:"gte=0"`
	AdaptiveGrowthFactor   float64 `validate:"gte=0"`

	MaxMemoryPercentage float64 `validate:"gte=0,lte=1"`
	MaxMemoryBytes      int64   `validate:"gte=0"`

	SecureClear          bool
	FallbackToArrayPool  bool
	EnableQueueCompaction bool

	EnableMemoryTrimming    bool
	TrimInterval            time.Duration `validate:"gte=0"`
	DeepTrimInterval        time.Duration `validate:"gte=0"`

	AutoTuneOperationThreshold int `validate:"gte=0"`
	EnableAnalytics            bool
}

var validate = validator.New()

// Validate checks the configuration's structural constraints and the
// specification's ratio-sum rule (sum of class ratios ≤ 1.1).
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	var sum float64
	seen := make(map[int]bool, len(c.Classes))
	for _, cl := range c.Classes {
		if seen[cl.Size] {
			return fmt.Errorf("bufpool: duplicate class size %d", cl.Size)
		}
		seen[cl.Size] = true
		sum += cl.Ratio
	}
	if sum > 1.1 {
		return fmt.Errorf("bufpool: class ratios sum to %.3f, exceeds 1.1", sum)
	}
	return nil
}

// SortedClasses returns Classes sorted ascending by Size.
func (c Config) SortedClasses() []ClassConfig {
	out := append([]ClassConfig(nil), c.Classes...)
	sort.Slice(out, func(i, j int) bool { return out[i].Size < out[j].Size })
	return out
}

var parseCache sync.Map // string -> []ClassConfig

// ParseAllocations parses a "<size>,<ratio>;<size>,<ratio>;..." string into
// an ordered list of ClassConfig, ascending by size. An empty or blank
// string is not an error: it returns (nil, nil), leaving class selection to
// the caller (tcpserver falls back to a single class sized off BufferSize).
// Parsing is idempotent modulo a cache keyed by the raw string: the same
// input always yields an identically ordered result, computed once.
func ParseAllocations(raw string) ([]ClassConfig, error) {
	key := raw
	if cached, ok := parseCache.Load(key); ok {
		return append([]ClassConfig(nil), cached.([]ClassConfig)...), nil
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ";")
	out := make([]ClassConfig, 0, len(parts))

	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		fields := strings.Split(p, ",")
		if len(fields) != 2 {
			return nil, fmt.Errorf("bufpool: malformed class entry %q", p)
		}

		size, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return nil, fmt.Errorf("bufpool: invalid size in %q: %w", p, err)
		}
		ratio, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("bufpool: invalid ratio in %q: %w", p, err)
		}

		out = append(out, ClassConfig{Size: size, Ratio: ratio})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Size < out[j].Size })

	stored := append([]ClassConfig(nil), out...)
	parseCache.Store(key, stored)
	return out, nil
}

// FormatAllocations renders classes back to the "<size>,<ratio>;..." form.
func FormatAllocations(classes []ClassConfig) string {
	parts := make([]string, 0, len(classes))
	for _, c := range classes {
		parts = append(parts, fmt.Sprintf("%d,%s", c.Size, strconv.FormatFloat(c.Ratio, 'g', -1, 64)))
	}
	return strings.Join(parts, ";")
}
