// Copyright (C) 2024 NebulaStream Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package config loads the engine's recognised configuration keys from
// YAML, with CLI flags layered on top of the decoded defaults.
package config

import (
	"flag"
	"fmt"

	"sigs.k8s.io/yaml"

	"github.com/nebulastream/streamcore/internal/enginerr"
)

// DumpMode mirrors the external compiler's diagnostics setting. The
// core only stores and validates it; it never interprets it.
type DumpMode string

const (
	DumpNone    DumpMode = "None"
	DumpConsole DumpMode = "Console"
	DumpFile    DumpMode = "File"
	DumpBoth    DumpMode = "Both"
)

// CompilationStrategy and NautilusBackend are external compiler knobs,
// carried here only so register_query can validate and forward them.
type CompilationStrategy string

const (
	StrategyFast          CompilationStrategy = "Fast"
	StrategyDebug         CompilationStrategy = "Debug"
	StrategyOptimize      CompilationStrategy = "Optimize"
	StrategyProxyInlining CompilationStrategy = "ProxyInlining"
)

type NautilusBackend string

const (
	BackendCompiler    NautilusBackend = "Compiler"
	BackendInterpreter NautilusBackend = "Interpreter"
)

// Config holds every key recognised by the streaming core, as listed
// in the external interfaces section of the specification.
type Config struct {
	NumberOfWorkerThreads uint16              `json:"numberOfWorkerThreads"`
	AdmissionQueueSize    uint32              `json:"admissionQueueSize"`
	TaskQueueSize         uint32              `json:"taskQueueSize"`
	OperatorBufferSize    uint32              `json:"operatorBufferSize"`
	QueryCompilerDumpMode DumpMode            `json:"queryCompilerDumpMode"`
	CompilationStrategy   CompilationStrategy `json:"compilationStrategy"`
	NautilusBackend       NautilusBackend     `json:"nautilusBackend"`
	PageSize              uint32              `json:"pageSize"`
}

// Default returns the configuration defaults named in the specification.
func Default() Config {
	return Config{
		NumberOfWorkerThreads: 4,
		AdmissionQueueSize:    1000,
		TaskQueueSize:         10000,
		OperatorBufferSize:    4096,
		QueryCompilerDumpMode: DumpNone,
		CompilationStrategy:   StrategyFast,
		NautilusBackend:       BackendCompiler,
		PageSize:              10240,
	}
}

// Load decodes YAML configuration bytes on top of the defaults. A nil
// or empty input leaves the defaults untouched.
func Load(yamlBytes []byte) (Config, error) {
	cfg := Default()
	if len(yamlBytes) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(yamlBytes, &cfg); err != nil {
		return Config{}, enginerr.Wrap(enginerr.ConfigurationInvalid, err, "decoding configuration")
	}
	return cfg, nil
}

// BindFlags registers CLI flags that override the already-decoded
// configuration, following the flag-then-YAML-then-defaults layering
// used by the engine's command-line entry point.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.Func("numberOfWorkerThreads", "worker pool size", func(s string) error {
		var n uint16
		if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
			return err
		}
		c.NumberOfWorkerThreads = n
		return nil
	})
	fs.Func("admissionQueueSize", "bounded admission queue capacity", func(s string) error {
		var n uint32
		if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
			return err
		}
		c.AdmissionQueueSize = n
		return nil
	})
}

// Validate enforces the invariants named alongside each key.
func (c Config) Validate() error {
	if c.NumberOfWorkerThreads < 1 || c.NumberOfWorkerThreads > 1024 {
		return enginerr.New(enginerr.ConfigurationInvalid, "numberOfWorkerThreads %d out of range [1,1024]", c.NumberOfWorkerThreads)
	}
	if c.AdmissionQueueSize == 0 {
		return enginerr.New(enginerr.ConfigurationInvalid, "admissionQueueSize must be positive")
	}
	if c.OperatorBufferSize == 0 {
		return enginerr.New(enginerr.ConfigurationInvalid, "operatorBufferSize must be positive")
	}
	if c.PageSize == 0 {
		return enginerr.New(enginerr.ConfigurationInvalid, "pageSize must be positive")
	}
	switch c.QueryCompilerDumpMode {
	case DumpNone, DumpConsole, DumpFile, DumpBoth:
	default:
		return enginerr.New(enginerr.ConfigurationInvalid, "queryCompilerDumpMode %q not recognised", c.QueryCompilerDumpMode)
	}
	switch c.CompilationStrategy {
	case StrategyFast, StrategyDebug, StrategyOptimize, StrategyProxyInlining:
	default:
		return enginerr.New(enginerr.ConfigurationInvalid, "compilationStrategy %q not recognised", c.CompilationStrategy)
	}
	switch c.NautilusBackend {
	case BackendCompiler, BackendInterpreter:
	default:
		return enginerr.New(enginerr.ConfigurationInvalid, "nautilusBackend %q not recognised", c.NautilusBackend)
	}
	return nil
}
