// Package batch turns lists of (series, volume) lookups into one grouped
// cache read per series, resolves only the misses through the provider chain
// and writes new answers back.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	"github.com/lepinkainen/tankobon/internal/edition"
	"github.com/lepinkainen/tankobon/internal/metadata"
	"github.com/lepinkainen/tankobon/internal/provider"
	"github.com/lepinkainen/tankobon/internal/store"
)

// Resolver looks up what the cache does not have. *provider.Chain implements it.
type Resolver interface {
	ResolveVolume(ctx context.Context, series string, number int) *metadata.Volume
	ResolveSeries(ctx context.Context, name string) provider.SeriesResult
}

// Request is one (series, volume) lookup of GetMany.
type Request struct {
	Series string `json:"series"`
	Volume int    `json:"volume"`
}

// Optimizer answers batch lookups. It never returns errors: unresolved slots
// are nil and the output always has the request's length and order.
type Optimizer struct {
	cache    *store.Cache
	resolver Resolver
	mapper   *edition.Mapper

	prefetchWindow int
	memo           *memo
	prefetches     sync.WaitGroup
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithMapper enables alternate-edition handling.
func WithMapper(m *edition.Mapper) Option {
	return func(o *Optimizer) {
		o.mapper = m
	}
}

// WithPrefetch turns on the locality hint: after a volume is resolved, the
// next window volumes are read from the cache in the background and kept in
// memory for the following lookups. Zero disables it.
func WithPrefetch(window int) Option {
	return func(o *Optimizer) {
		if window > 0 {
			o.prefetchWindow = window
		}
	}
}

// New creates an Optimizer. cache may be a disabled store.Cache; resolver may
// be nil, in which case misses stay unresolved.
func New(cache *store.Cache, resolver Resolver, opts ...Option) *Optimizer {
	if cache == nil {
		cache = store.New(nil)
	}
	o := &Optimizer{
		cache:    cache,
		resolver: resolver,
		memo:     newMemo(defaultMemoSize),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// GetSeries returns the cached series or resolves it. A resolved series is
// cached under both the query and its canonical name.
func (o *Optimizer) GetSeries(ctx context.Context, name string) provider.SeriesResult {
	if s := o.cache.GetSeries(ctx, name); s != nil {
		return provider.SeriesResult{Series: s}
	}
	if o.resolver == nil {
		return provider.SeriesResult{}
	}

	res := o.resolver.ResolveSeries(ctx, name)
	if res.Series == nil {
		return res
	}
	o.cache.PutSeries(ctx, res.Series)
	if canonical := metadata.SeriesKey(res.Series.CanonicalName); canonical != "" && canonical != metadata.SeriesKey(name) {
		alias := res.Series.Clone()
		alias.Key = canonical
		o.cache.PutSeries(ctx, alias)
	}
	return res
}

// GetVolumes looks up numbers of series. For an alternate edition the
// numbers are book numbers: each slot holds the canonical start volume of
// the book, annotated with the edition and its canonical range.
func (o *Optimizer) GetVolumes(ctx context.Context, series string, numbers []int) []*metadata.Volume {
	if o.mapper.IsAlternateEdition(series) {
		return o.getEditionBooks(ctx, series, numbers)
	}
	return o.getCanonical(ctx, series, numbers)
}

// GetMany answers arbitrary (series, volume) pairs with one grouped read per
// distinct series. Results follow the input order.
func (o *Optimizer) GetMany(ctx context.Context, reqs []Request) []*metadata.Volume {
	out := make([]*metadata.Volume, len(reqs))

	type group struct {
		series  string
		numbers []int
		slots   []int
	}
	var order []string
	groups := make(map[string]*group)
	for i, r := range reqs {
		key := metadata.SeriesKey(r.Series)
		if key == "" {
			continue
		}
		g, ok := groups[key]
		if !ok {
			g = &group{series: r.Series}
			groups[key] = g
			order = append(order, key)
		}
		g.numbers = append(g.numbers, r.Volume)
		g.slots = append(g.slots, i)
	}

	for _, key := range order {
		g := groups[key]
		vols := o.GetVolumes(ctx, g.series, g.numbers)
		for j, slot := range g.slots {
			out[slot] = vols[j]
		}
	}
	return out
}

// Wait blocks until background prefetches have finished.
func (o *Optimizer) Wait() {
	o.prefetches.Wait()
}

func (o *Optimizer) getCanonical(ctx context.Context, series string, numbers []int) []*metadata.Volume {
	out := make([]*metadata.Volume, len(numbers))
	key := metadata.SeriesKey(series)
	if key == "" || len(numbers) == 0 {
		return out
	}

	wanted := sortedUnique(numbers)
	if len(wanted) == 0 {
		return out
	}

	found := make(map[int]*metadata.Volume, len(wanted))
	cached := o.cache.GetVolumes(ctx, series, wanted)
	var misses []int
	for i, n := range wanted {
		if cached[i] != nil {
			found[n] = cached[i]
			continue
		}
		misses = append(misses, n)
	}

	for _, n := range misses {
		if v := o.memo.take(key, n); v != nil {
			slog.Debug("Prefetched volume used", "series", series, "volume", n)
			found[n] = v
			continue
		}
		if o.resolver == nil {
			continue
		}
		v := o.resolver.ResolveVolume(ctx, series, n)
		if v == nil {
			slog.Debug("Volume unresolved", "series", series, "volume", n)
			continue
		}
		o.cache.PutVolume(ctx, v)
		found[n] = v
		o.prefetch(ctx, series, key, n)
	}

	for i, n := range numbers {
		if v, ok := found[n]; ok {
			out[i] = v.Clone()
		}
	}
	return out
}

func (o *Optimizer) getEditionBooks(ctx context.Context, name string, books []int) []*metadata.Volume {
	out := make([]*metadata.Volume, len(books))
	standard, _ := o.mapper.StandardSeriesName(name)
	info := o.mapper.Info(name)

	starts := make([]int, len(books))
	ranges := make([]edition.Range, len(books))
	for i, b := range books {
		r, ok := o.mapper.Range(name, strconv.Itoa(b))
		if !ok {
			slog.Debug("Book outside edition", "edition", name, "book", b)
			continue
		}
		starts[i] = r.Start
		ranges[i] = r
	}

	vols := o.getCanonical(ctx, standard, starts)
	for i, v := range vols {
		if v == nil || starts[i] == 0 {
			continue
		}
		v.Edition = info.Name
		v.CanonicalRange = ranges[i].String()
		out[i] = v
	}
	return out
}

// prefetch warms the memo with the cached rows of the next window volumes.
// It runs detached from the caller so the response is never delayed.
func (o *Optimizer) prefetch(ctx context.Context, series, key string, after int) {
	if o.prefetchWindow <= 0 || !o.cache.Enabled() {
		return
	}
	next := make([]int, 0, o.prefetchWindow)
	for n := after + 1; n <= after+o.prefetchWindow; n++ {
		next = append(next, n)
	}

	bg := context.WithoutCancel(ctx)
	o.prefetches.Add(1)
	go func() {
		defer o.prefetches.Done()
		for i, v := range o.cache.GetVolumes(bg, series, next) {
			if v != nil {
				o.memo.put(key, next[i], v)
			}
		}
	}()
}

// Summary reports how many slots of a batch were resolved.
type Summary struct {
	Requested int `json:"requested"`
	Resolved  int `json:"resolved"`
}

// Summarize counts the non-nil slots of results.
func Summarize(results []*metadata.Volume) Summary {
	s := Summary{Requested: len(results)}
	for _, v := range results {
		if v != nil {
			s.Resolved++
		}
	}
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("%d of %d resolved", s.Resolved, s.Requested)
}

func sortedUnique(numbers []int) []int {
	out := make([]int, 0, len(numbers))
	for _, n := range numbers {
		if n > 0 {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
