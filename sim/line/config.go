package line

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/simline/simline/sim/event"
)

// DefaultMinProcessingTime is the floor applied to processing-time draws
// when the configuration does not set one.
const DefaultMinProcessingTime = 1.0

// Config is the static line description: topology, geometry and the
// stochastic parameters. Loaded from YAML via LoadConfig(path) or built
// with DefaultConfig. Immutable once a run starts.
type Config struct {
	ArrivalIntervalMean float64           `yaml:"arrival_interval_mean"`
	MaxArrivals         int               `yaml:"max_arrivals,omitempty"` // 0 = unlimited (horizon only)
	Processing          ProcessingSpec    `yaml:"processing_time"`
	EntryPosition       event.Position    `yaml:"entry_position"`
	ExitPosition        event.Position    `yaml:"exit_position"`
	Workstations        []WorkstationSpec `yaml:"workstations"`
	Buffers             []BufferSpec      `yaml:"buffers"`
	Stages              []StageSpec       `yaml:"stages"`
}

// ProcessingSpec parameterizes the clamped Gaussian processing time.
type ProcessingSpec struct {
	Mean   float64  `yaml:"mean"`
	StdDev float64  `yaml:"std_dev"`
	Min    *float64 `yaml:"min,omitempty"` // nil = DefaultMinProcessingTime
}

// MinOrDefault returns the configured floor or DefaultMinProcessingTime.
func (p ProcessingSpec) MinOrDefault() float64 {
	if p.Min == nil {
		return DefaultMinProcessingTime
	}
	return *p.Min
}

// WorkstationSpec describes one exclusive-use work center.
type WorkstationSpec struct {
	ID       int            `yaml:"id"`
	Name     string         `yaml:"name"`
	Position event.Position `yaml:"position"`
}

// BufferSpec describes one finite-capacity buffer.
type BufferSpec struct {
	ID       int            `yaml:"id"`
	Name     string         `yaml:"name"`
	Capacity int            `yaml:"capacity"`
	Position event.Position `yaml:"position"`
}

// StageSpec describes one step of the route. Listing more than one
// workstation makes them parallel alternatives.
type StageSpec struct {
	Name         string `yaml:"name"`
	Workstations []int  `yaml:"workstations"`
	BufferBefore *int   `yaml:"buffer_before,omitempty"`
	BufferAfter  *int   `yaml:"buffer_after,omitempty"`
}

// LoadConfig reads and parses a YAML line configuration file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
// The result is not validated; call Validate or pass it to New.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading line config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML line configuration with strict field checking.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing line config: %w", err)
	}
	return &cfg, nil
}

func intPtr(v int) *int { return &v }

// DefaultConfig returns the reference line: nine workstations in six
// stages, three of them with two parallel work centers, separated by five
// buffers of capacity 5.
func DefaultConfig() *Config {
	return &Config{
		ArrivalIntervalMean: 6.0,
		Processing:          ProcessingSpec{Mean: 5.0, StdDev: 1.0},
		EntryPosition:       event.Position{5, 20},
		ExitPosition:        event.Position{115, 20},
		Workstations: []WorkstationSpec{
			{ID: 0, Name: "Pre-processing", Position: event.Position{10, 20}},
			{ID: 1, Name: "Rough machining A", Position: event.Position{30, 30}},
			{ID: 2, Name: "Rough machining B", Position: event.Position{30, 10}},
			{ID: 3, Name: "Finishing A", Position: event.Position{50, 30}},
			{ID: 4, Name: "Finishing B", Position: event.Position{50, 10}},
			{ID: 5, Name: "Assembly", Position: event.Position{70, 20}},
			{ID: 6, Name: "Inspection A", Position: event.Position{90, 30}},
			{ID: 7, Name: "Inspection B", Position: event.Position{90, 10}},
			{ID: 8, Name: "Packaging", Position: event.Position{105, 20}},
		},
		Buffers: []BufferSpec{
			{ID: 0, Name: "Shared buffer 1", Capacity: 5, Position: event.Position{20, 20}},
			{ID: 1, Name: "Shared buffer 2", Capacity: 5, Position: event.Position{40, 20}},
			{ID: 2, Name: "Shared buffer 3", Capacity: 5, Position: event.Position{60, 20}},
			{ID: 3, Name: "Buffer 4", Capacity: 5, Position: event.Position{80, 20}},
			{ID: 4, Name: "Buffer 5", Capacity: 5, Position: event.Position{97.5, 20}},
		},
		Stages: []StageSpec{
			{Name: "pre-processing", Workstations: []int{0}, BufferAfter: intPtr(0)},
			{Name: "rough-machining", Workstations: []int{1, 2}, BufferBefore: intPtr(0), BufferAfter: intPtr(1)},
			{Name: "finishing", Workstations: []int{3, 4}, BufferBefore: intPtr(1), BufferAfter: intPtr(2)},
			{Name: "assembly", Workstations: []int{5}, BufferBefore: intPtr(2), BufferAfter: intPtr(3)},
			{Name: "inspection", Workstations: []int{6, 7}, BufferBefore: intPtr(3), BufferAfter: intPtr(4)},
			{Name: "packaging", Workstations: []int{8}, BufferBefore: intPtr(4)},
		},
	}
}

// SetBufferCapacity overrides the capacity of every buffer.
func (c *Config) SetBufferCapacity(capacity int) {
	for i := range c.Buffers {
		c.Buffers[i].Capacity = capacity
	}
}

// Validate checks parameters and topology. Every run is refused before it
// starts if this fails.
func (c *Config) Validate() error {
	if err := validateFinitePositive("arrival_interval_mean", c.ArrivalIntervalMean); err != nil {
		return err
	}
	if c.MaxArrivals < 0 {
		return fmt.Errorf("max_arrivals must be non-negative, got %d", c.MaxArrivals)
	}
	if err := validateFinitePositive("processing_time.mean", c.Processing.Mean); err != nil {
		return err
	}
	if err := validateFiniteNonNegative("processing_time.std_dev", c.Processing.StdDev); err != nil {
		return err
	}
	if err := validateFiniteNonNegative("processing_time.min", c.Processing.MinOrDefault()); err != nil {
		return err
	}
	if len(c.Workstations) == 0 {
		return fmt.Errorf("at least one workstation required")
	}
	if len(c.Stages) == 0 {
		return fmt.Errorf("at least one stage required")
	}
	for i, ws := range c.Workstations {
		if ws.ID != i {
			return fmt.Errorf("workstations[%d]: id must equal its index, got %d", i, ws.ID)
		}
	}
	for i, b := range c.Buffers {
		if b.ID != i {
			return fmt.Errorf("buffers[%d]: id must equal its index, got %d", i, b.ID)
		}
		if b.Capacity <= 0 {
			return fmt.Errorf("buffers[%d]: capacity must be positive, got %d", i, b.Capacity)
		}
	}
	for i := range c.Stages {
		if err := c.validateStage(i); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateStage(idx int) error {
	s := c.Stages[idx]
	prefix := fmt.Sprintf("stages[%d]", idx)
	if len(s.Workstations) == 0 {
		return fmt.Errorf("%s: at least one workstation required", prefix)
	}
	seen := make(map[int]bool, len(s.Workstations))
	for _, id := range s.Workstations {
		if id < 0 || id >= len(c.Workstations) {
			return fmt.Errorf("%s: unknown workstation %d", prefix, id)
		}
		if seen[id] {
			return fmt.Errorf("%s: workstation %d listed twice", prefix, id)
		}
		seen[id] = true
	}
	if err := c.validateBufferRef(prefix+".buffer_before", s.BufferBefore); err != nil {
		return err
	}
	if err := c.validateBufferRef(prefix+".buffer_after", s.BufferAfter); err != nil {
		return err
	}
	// A buffer filled by one stage must be drained by the next one, and vice versa.
	var next *StageSpec
	if idx+1 < len(c.Stages) {
		next = &c.Stages[idx+1]
	}
	if s.BufferAfter != nil && (next == nil || next.BufferBefore == nil || *next.BufferBefore != *s.BufferAfter) {
		return fmt.Errorf("%s.buffer_after: buffer %d is not drained by the following stage", prefix, *s.BufferAfter)
	}
	if s.BufferAfter == nil && next != nil && next.BufferBefore != nil {
		return fmt.Errorf("stages[%d].buffer_before: buffer %d is never filled by stage %d", idx+1, *next.BufferBefore, idx)
	}
	if idx == 0 && s.BufferBefore != nil {
		return fmt.Errorf("%s.buffer_before: the first stage has no upstream to fill buffer %d", prefix, *s.BufferBefore)
	}
	return nil
}

func (c *Config) validateBufferRef(name string, ref *int) error {
	if ref == nil {
		return nil
	}
	if *ref < 0 || *ref >= len(c.Buffers) {
		return fmt.Errorf("%s: unknown buffer %d", name, *ref)
	}
	return nil
}

func validateFinitePositive(name string, val float64) error {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return fmt.Errorf("%s must be a finite number, got %f", name, val)
	}
	if val <= 0 {
		return fmt.Errorf("%s must be positive, got %f", name, val)
	}
	return nil
}

func validateFiniteNonNegative(name string, val float64) error {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return fmt.Errorf("%s must be a finite number, got %f", name, val)
	}
	if val < 0 {
		return fmt.Errorf("%s must be non-negative, got %f", name, val)
	}
	return nil
}
