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

package tcpserver

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/nabbar/tcpkernel/bufpool"
)

// KeepAlive carries the TCP keep-alive knobs honored when an accepted
// socket is a *net.TCPConn.
type KeepAlive struct {
	Enable        bool          `mapstructure:"enable" json:"enable" yaml:"enable" toml:"enable"`
	Time          time.Duration `mapstructure:"time" json:"time" yaml:"time" toml:"time" validate:"gte=0"`
	Interval      time.Duration `mapstructure:"interval" json:"interval" yaml:"interval" toml:"interval" validate:"gte=0"`
	RetryCount    int           `mapstructure:"retry_count" json:"retry_count" yaml:"retry_count" toml:"retry_count" validate:"gte=0"`
}

// Config is the tcpserver configuration surface. Most fields correspond to
// one row of the specification's configuration-surface table (§6);
// IdleTimeout, UseChannelDispatch, ChannelQueueDepth and DispatchDropOnFull
// are additions of this module.
type Config struct {
	Port        int  `mapstructure:"port" json:"port" yaml:"port" toml:"port" validate:"gte=0,lte=65535"`
	MaxParallel int  `mapstructure:"max_parallel" json:"max_parallel" yaml:"max_parallel" toml:"max_parallel" validate:"gte=1"`
	Backlog     int  `mapstructure:"backlog" json:"backlog" yaml:"backlog" toml:"backlog" validate:"gte=0"`
	BufferSize  int  `mapstructure:"buffer_size" json:"buffer_size" yaml:"buffer_size" toml:"buffer_size" validate:"gt=0"`

	ReuseAddress bool `mapstructure:"reuse_address" json:"reuse_address" yaml:"reuse_address" toml:"reuse_address"`
	EnableIPv6   bool `mapstructure:"enable_ipv6" json:"enable_ipv6" yaml:"enable_ipv6" toml:"enable_ipv6"`
	NoDelay      bool `mapstructure:"no_delay" json:"no_delay" yaml:"no_delay" toml:"no_delay"`

	KeepAlive KeepAlive `mapstructure:"keep_alive" json:"keep_alive" yaml:"keep_alive" toml:"keep_alive"`

	EnableTimeout bool          `mapstructure:"enable_timeout" json:"enable_timeout" yaml:"enable_timeout" toml:"enable_timeout"`
	IdleTimeout   time.Duration `mapstructure:"idle_timeout" json:"idle_timeout" yaml:"idle_timeout" toml:"idle_timeout" validate:"gte=0"`

	// Buffer-pool seed options; translated into a bufpool.Config by New.
	TotalBuffers            int           `mapstructure:"total_buffers" json:"total_buffers" yaml:"total_buffers" toml:"total_buffers" validate:"gte=0"`
	BufferAllocations       string        `mapstructure:"buffer_allocations" json:"buffer_allocations" yaml:"buffer_allocations" toml:"buffer_allocations"`
	MinimumIncrease         int           `mapstructure:"minimum_increase" json:"minimum_increase" yaml:"minimum_increase" toml:"minimum_increase" validate:"gte=0"`
	MaxBufferIncreaseLimit  int           `mapstructure:"max_buffer_increase_limit" json:"max_buffer_increase_limit" yaml:"max_buffer_increase_limit" toml:"max_buffer_increase_limit" validate:"gte=0"`
	AdaptiveGrowthFactor    float64       `mapstructure:"adaptive_growth_factor" json:"adaptive_growth_factor" yaml:"adaptive_growth_factor" toml:"adaptive_growth_factor" validate:"gte=0"`
	MaxMemoryPercentage     float64       `mapstructure:"max_memory_percentage" json:"max_memory_percentage" yaml:"max_memory_percentage" toml:"max_memory_percentage" validate:"gte=0,lte=1"`
	MaxMemoryBytes          int64         `mapstructure:"max_memory_bytes" json:"max_memory_bytes" yaml:"max_memory_bytes" toml:"max_memory_bytes" validate:"gte=0"`
	SecureClear             bool          `mapstructure:"secure_clear" json:"secure_clear" yaml:"secure_clear" toml:"secure_clear"`
	FallbackToArrayPool     bool          `mapstructure:"fallback_to_array_pool" json:"fallback_to_array_pool" yaml:"fallback_to_array_pool" toml:"fallback_to_array_pool"`
	EnableMemoryTrimming    bool          `mapstructure:"enable_memory_trimming" json:"enable_memory_trimming" yaml:"enable_memory_trimming" toml:"enable_memory_trimming"`
	TrimIntervalMinutes     float64       `mapstructure:"trim_interval_minutes" json:"trim_interval_minutes" yaml:"trim_interval_minutes" toml:"trim_interval_minutes" validate:"gte=0"`
	DeepTrimIntervalMinutes float64       `mapstructure:"deep_trim_interval_minutes" json:"deep_trim_interval_minutes" yaml:"deep_trim_interval_minutes" toml:"deep_trim_interval_minutes" validate:"gte=0"`
	AutoTuneOperationThreshold int        `mapstructure:"auto_tune_operation_threshold" json:"auto_tune_operation_threshold" yaml:"auto_tune_operation_threshold" toml:"auto_tune_operation_threshold" validate:"gte=0"`
	EnableAnalytics         bool          `mapstructure:"enable_analytics" json:"enable_analytics" yaml:"enable_analytics" toml:"enable_analytics"`
	EnableQueueCompaction   bool          `mapstructure:"enable_queue_compaction" json:"enable_queue_compaction" yaml:"enable_queue_compaction" toml:"enable_queue_compaction"`

	// Packet-context object-pool sizing.
	PacketContextPreallocate int `mapstructure:"packet_context_preallocate" json:"packet_context_preallocate" yaml:"packet_context_preallocate" toml:"packet_context_preallocate" validate:"gte=0"`
	PacketContextMaxCapacity int `mapstructure:"packet_context_max_capacity" json:"packet_context_max_capacity" yaml:"packet_context_max_capacity" toml:"packet_context_max_capacity" validate:"gte=0"`

	// UseChannelDispatch selects the C7b channel dispatcher over the
	// default inline (C7a) variant.
	UseChannelDispatch bool `mapstructure:"use_channel_dispatch" json:"use_channel_dispatch" yaml:"use_channel_dispatch" toml:"use_channel_dispatch"`
	ChannelQueueDepth  int  `mapstructure:"channel_queue_depth" json:"channel_queue_depth" yaml:"channel_queue_depth" toml:"channel_queue_depth" validate:"gte=0"`

	// DispatchDropOnFull opts into dropping a frame when its priority lane
	// is full instead of the default backpressure (block the pusher until
	// a worker drains space or the dispatcher stops).
	DispatchDropOnFull bool `mapstructure:"dispatch_drop_on_full" json:"dispatch_drop_on_full" yaml:"dispatch_drop_on_full" toml:"dispatch_drop_on_full"`
}

var validate = validator.New()

// Validate checks the configuration's structural constraints. MaxParallel
// must be >= 1 per the specification's §7 construction-failure rule.
func (c Config) Validate() error {
	return validate.Struct(c)
}

// bufpoolConfig translates the buffer-pool-related rows of Config into a
// bufpool.Config, parsing BufferAllocations if set.
func (c Config) bufpoolConfig() (bufpool.Config, error) {
	classes, err := bufpool.ParseAllocations(c.BufferAllocations)
	if err != nil {
		return bufpool.Config{}, err
	}
	if len(classes) == 0 {
		classes = []bufpool.ClassConfig{{Size: c.BufferSize, Ratio: 1.0}}
	}

	return bufpool.Config{
		Classes:                    classes,
		TotalBuffers:               c.TotalBuffers,
		MinimumIncrease:            c.MinimumIncrease,
		MaxBufferIncreaseLimit:     c.MaxBufferIncreaseLimit,
		AdaptiveGrowthFactor:       c.AdaptiveGrowthFactor,
		MaxMemoryPercentage:        c.MaxMemoryPercentage,
		MaxMemoryBytes:             c.MaxMemoryBytes,
		SecureClear:                c.SecureClear,
		FallbackToArrayPool:        c.FallbackToArrayPool,
		EnableQueueCompaction:      c.EnableQueueCompaction,
		EnableMemoryTrimming:       c.EnableMemoryTrimming,
		TrimInterval:               durationFromMinutes(c.TrimIntervalMinutes),
		DeepTrimInterval:           durationFromMinutes(c.DeepTrimIntervalMinutes),
		AutoTuneOperationThreshold: c.AutoTuneOperationThreshold,
		EnableAnalytics:            c.EnableAnalytics,
	}, nil
}

func durationFromMinutes(m float64) time.Duration {
	return time.Duration(m * float64(time.Minute))
}
