package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// RateEntry holds per-million-token USD prices for one model.
type RateEntry struct {
	InputPerMTok      float64
	OutputPerMTok     float64
	CacheWritePerMTok float64
	CacheReadPerMTok  float64
}

type rateVersion struct {
	EffectiveFrom time.Time
	Rates         RateEntry
}

// RateTable maps model identifiers to rate entries. Immutable after load and
// safe for concurrent readers.
type RateTable struct {
	models       map[string][]rateVersion
	aliases      map[string]string
	defaultModel string
}

// builtinRates maps model base names to their current rates.
var builtinRates = map[string]RateEntry{
	"claude-opus-4-6": {
		InputPerMTok: 5.00, OutputPerMTok: 25.00,
		CacheWritePerMTok: 6.25, CacheReadPerMTok: 0.50,
	},
	"claude-opus-4-5": {
		InputPerMTok: 5.00, OutputPerMTok: 25.00,
		CacheWritePerMTok: 6.25, CacheReadPerMTok: 0.50,
	},
	"claude-opus-4-1": {
		InputPerMTok: 15.00, OutputPerMTok: 75.00,
		CacheWritePerMTok: 18.75, CacheReadPerMTok: 1.50,
	},
	"claude-opus-4": {
		InputPerMTok: 15.00, OutputPerMTok: 75.00,
		CacheWritePerMTok: 18.75, CacheReadPerMTok: 1.50,
	},
	"claude-sonnet-4-6": {
		InputPerMTok: 3.00, OutputPerMTok: 15.00,
		CacheWritePerMTok: 3.75, CacheReadPerMTok: 0.30,
	},
	"claude-sonnet-4-5": {
		InputPerMTok: 3.00, OutputPerMTok: 15.00,
		CacheWritePerMTok: 3.75, CacheReadPerMTok: 0.30,
	},
	"claude-sonnet-4": {
		InputPerMTok: 3.00, OutputPerMTok: 15.00,
		CacheWritePerMTok: 3.75, CacheReadPerMTok: 0.30,
	},
	"claude-haiku-4-5": {
		InputPerMTok: 1.00, OutputPerMTok: 5.00,
		CacheWritePerMTok: 1.25, CacheReadPerMTok: 0.10,
	},
	"claude-haiku-3-5": {
		InputPerMTok: 0.80, OutputPerMTok: 4.00,
		CacheWritePerMTok: 1.00, CacheReadPerMTok: 0.08,
	},
}

// DefaultModel is the designated fallback entry for unresolvable identifiers.
const DefaultModel = "claude-sonnet-4-6"

// ratesFile is the on-disk schema of rates.toml.
type ratesFile struct {
	DefaultModel string                   `toml:"default_model,omitempty"`
	Models       map[string]rateFileEntry `toml:"models,omitempty"`
	Aliases      map[string]string        `toml:"aliases,omitempty"`
}

type rateFileEntry struct {
	InputPerMTok      float64 `toml:"input_per_mtok"`
	OutputPerMTok     float64 `toml:"output_per_mtok"`
	CacheWritePerMTok float64 `toml:"cache_write_per_mtok"`
	CacheReadPerMTok  float64 `toml:"cache_read_per_mtok"`
	EffectiveFrom     string  `toml:"effective_from,omitempty"`
}

// LoadRates builds the rate table from the builtin entries merged with the
// user override file at path. A missing file is fine; a malformed one is an
// error the caller treats as fatal, since nothing can be priced without a
// valid table.
func LoadRates(path string) (*RateTable, error) {
	t := &RateTable{
		models:       make(map[string][]rateVersion, len(builtinRates)),
		aliases:      make(map[string]string),
		defaultModel: DefaultModel,
	}
	for name, r := range builtinRates {
		t.models[name] = []rateVersion{{Rates: r}}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return nil, fmt.Errorf("reading rates file: %w", err)
	}

	var rf ratesFile
	if err := toml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	for name, e := range rf.Models {
		if e.InputPerMTok < 0 || e.OutputPerMTok < 0 || e.CacheWritePerMTok < 0 || e.CacheReadPerMTok < 0 {
			return nil, fmt.Errorf("rates for %q: negative price", name)
		}
		v := rateVersion{Rates: RateEntry{
			InputPerMTok:      e.InputPerMTok,
			OutputPerMTok:     e.OutputPerMTok,
			CacheWritePerMTok: e.CacheWritePerMTok,
			CacheReadPerMTok:  e.CacheReadPerMTok,
		}}
		if e.EffectiveFrom != "" {
			from, err := time.Parse("2006-01-02", e.EffectiveFrom)
			if err != nil {
				return nil, fmt.Errorf("rates for %q: bad effective_from %q: %w", name, e.EffectiveFrom, err)
			}
			v.EffectiveFrom = from
		}
		t.insertVersion(name, v)
	}

	for alias, target := range rf.Aliases {
		if _, ok := t.models[target]; !ok {
			return nil, fmt.Errorf("alias %q points at unknown model %q", alias, target)
		}
		t.aliases[alias] = target
	}

	if rf.DefaultModel != "" {
		t.defaultModel = rf.DefaultModel
	}
	if _, ok := t.models[t.defaultModel]; !ok {
		return nil, fmt.Errorf("default model %q has no rate entry", t.defaultModel)
	}

	return t, nil
}

// insertVersion keeps the per-model version list sorted by EffectiveFrom.
// An override without an effective date replaces the undated base entry.
func (t *RateTable) insertVersion(model string, v rateVersion) {
	versions := t.models[model]
	if v.EffectiveFrom.IsZero() {
		if len(versions) > 0 && versions[0].EffectiveFrom.IsZero() {
			versions[0] = v
			t.models[model] = versions
			return
		}
		t.models[model] = append([]rateVersion{v}, versions...)
		return
	}
	idx := len(versions)
	for i, existing := range versions {
		if !existing.EffectiveFrom.IsZero() && v.EffectiveFrom.Before(existing.EffectiveFrom) {
			idx = i
			break
		}
	}
	versions = append(versions, rateVersion{})
	copy(versions[idx+1:], versions[idx:])
	versions[idx] = v
	t.models[model] = versions
}

// NormalizeModel strips date suffixes from model identifiers.
// e.g., "claude-sonnet-4-5-20250929" -> "claude-sonnet-4-5"
func (t *RateTable) NormalizeModel(raw string) string {
	if _, ok := t.models[raw]; ok {
		return raw
	}
	if target, ok := t.aliases[raw]; ok {
		return target
	}

	// Model identifiers can carry 8-digit date suffixes. Try progressively
	// shorter dash-joined prefixes against the table.
	parts := strings.Split(raw, "-")
	for end := len(parts) - 1; end > 2; end-- {
		candidate := strings.Join(parts[:end], "-")
		if _, ok := t.models[candidate]; ok {
			return candidate
		}
	}

	return raw
}

// Resolve returns the rate entry for a model at the given timestamp.
// Unknown identifiers resolve to the default entry with exact=false so the
// caller can flag them instead of dropping the turn.
func (t *RateTable) Resolve(model string, at time.Time) (entry RateEntry, resolved string, exact bool) {
	normalized := t.NormalizeModel(model)
	versions, ok := t.models[normalized]
	if !ok || len(versions) == 0 {
		normalized = t.defaultModel
		versions = t.models[normalized]
		exact = false
	} else {
		exact = true
	}

	if at.IsZero() {
		return versions[len(versions)-1].Rates, normalized, exact
	}

	at = at.UTC()
	selected := versions[0].Rates
	for _, v := range versions {
		if v.EffectiveFrom.IsZero() || !at.Before(v.EffectiveFrom.UTC()) {
			selected = v.Rates
			continue
		}
		break
	}
	return selected, normalized, exact
}

// Models returns every model with a rate entry, sorted by name.
func (t *RateTable) Models() []string {
	names := make([]string, 0, len(t.models))
	for name := range t.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultModelName returns the designated fallback model identifier.
func (t *RateTable) DefaultModelName() string {
	return t.defaultModel
}

// DefaultEntry returns the designated fallback rate entry.
func (t *RateTable) DefaultEntry() RateEntry {
	e, _, _ := t.Resolve(t.defaultModel, time.Time{})
	return e
}

// Cost computes the USD cost of one turn's token counts under an entry.
func (e RateEntry) Cost(input, output, cacheWrite, cacheRead int64) float64 {
	cost := float64(input) * e.InputPerMTok / 1_000_000
	cost += float64(output) * e.OutputPerMTok / 1_000_000
	cost += float64(cacheWrite) * e.CacheWritePerMTok / 1_000_000
	cost += float64(cacheRead) * e.CacheReadPerMTok / 1_000_000
	return cost
}

// CacheSavings computes what the cache reads saved vs full input pricing.
func (e RateEntry) CacheSavings(cacheRead int64) float64 {
	full := float64(cacheRead) * e.InputPerMTok / 1_000_000
	actual := float64(cacheRead) * e.CacheReadPerMTok / 1_000_000
	return full - actual
}
