package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/lepinkainen/tankobon/internal/batch"
	"github.com/lepinkainen/tankobon/internal/cover"
	tberrors "github.com/lepinkainen/tankobon/internal/errors"
	"github.com/lepinkainen/tankobon/internal/metadata"
	"github.com/lepinkainen/tankobon/internal/tui"
)

var selectCandidate = tui.SelectCandidate

// SeriesCmd looks up one series
type SeriesCmd struct {
	Name        string `arg:"" help:"Series name"`
	Interactive bool   `short:"i" help:"Pick from suggested names when the series is not found"`
}

// VolumesCmd looks up a list of volumes of one series
type VolumesCmd struct {
	Series string `arg:"" help:"Series or alternate edition name"`
	Spec   string `arg:"" help:"Volume numbers and ranges, e.g. 1-3,7"`
	Covers bool   `help:"Download covers of the resolved volumes"`
}

// BatchCmd looks up the lookups listed in a CSV file
type BatchCmd struct {
	Input string `arg:"" type:"existingfile" help:"CSV file with series and volume columns"`
}

// EditionCmd describes an alternate edition
type EditionCmd struct {
	Name string `arg:"" help:"Alternate edition name"`
	Book string `arg:"" optional:"" help:"Book number within the edition"`
}

// CoverCmd downloads the cover of one volume
type CoverCmd struct {
	Series string `arg:"" help:"Series name"`
	Volume int    `arg:"" help:"Volume number"`
	Dir    string `short:"d" help:"Directory to save covers in (defaults to covers.dir)"`
	Force  bool   `short:"f" help:"Re-download the cover even if it already exists"`
}

// cliExporter keeps one-shot commands from starting a scrape endpoint.
func cliExporter() string {
	if exp := viper.GetString("metrics.exporter"); exp == "stdout" {
		return exp
	}
	return "none"
}

func (s *SeriesCmd) Run(ctx context.Context) error {
	a, err := newApp(ctx, cliExporter())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	res := a.optimizer.GetSeries(ctx, s.Name)
	if !res.Found() && len(res.Candidates) > 0 && s.Interactive {
		sel, err := selectCandidate(s.Name, res.Candidates)
		if err != nil {
			return fmt.Errorf("candidate selection failed: %w", err)
		}
		switch sel.Action {
		case tui.ActionSelected:
			res = a.optimizer.GetSeries(ctx, sel.Selection)
		case tui.ActionStopped:
			return tberrors.NewStopProcessingError(s.Name, "selection stopped by user")
		}
	}

	if viper.GetBool("output.json") {
		return printJSON(res)
	}
	if res.Found() {
		printSeries(res.Series)
		return nil
	}
	if len(res.Candidates) > 0 {
		fmt.Fprintf(output, "No series found for %q. Did you mean:\n", s.Name)
		for _, c := range res.Candidates {
			fmt.Fprintf(output, "  - %s\n", c)
		}
		return nil
	}
	return fmt.Errorf("no metadata found for series %q", s.Name)
}

func (v *VolumesCmd) Run(ctx context.Context) error {
	numbers, err := batch.ParseVolumeSpec(v.Spec)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cliExporter())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	vols := a.optimizer.GetVolumes(ctx, v.Series, numbers)
	summary := batch.Summarize(vols)

	if v.Covers {
		fetcher := cover.NewFetcher(a.cfg.CoverDir, cover.WithMaxWidth(a.cfg.CoverMaxWidth))
		for _, vol := range vols {
			if vol == nil || vol.CoverURL == nil {
				continue
			}
			if _, err := fetcher.Fetch(ctx, vol); err != nil {
				fmt.Fprintf(output, "cover for volume %d: %v\n", vol.Number, err)
			}
		}
	}

	if viper.GetBool("output.json") {
		return printJSON(struct {
			Series  string             `json:"series"`
			Volumes []*metadata.Volume `json:"volumes"`
			batch.Summary
		}{v.Series, vols, summary})
	}

	for i, vol := range vols {
		if vol == nil {
			fmt.Fprintf(output, "%4d  (not found)\n", numbers[i])
			continue
		}
		printVolumeLine(vol)
	}
	fmt.Fprintln(output, summary)
	return nil
}

func (b *BatchCmd) Run(ctx context.Context) error {
	reqs, err := batch.ReadRequestsFile(b.Input)
	if err != nil {
		return err
	}
	if len(reqs) == 0 {
		return fmt.Errorf("no valid lookups in %s", b.Input)
	}

	a, err := newApp(ctx, cliExporter())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	vols := a.optimizer.GetMany(ctx, reqs)
	summary := batch.Summarize(vols)

	if viper.GetBool("output.json") {
		return printJSON(struct {
			Volumes []*metadata.Volume `json:"volumes"`
			batch.Summary
		}{vols, summary})
	}

	for i, vol := range vols {
		if vol == nil {
			fmt.Fprintf(output, "%s #%d  (not found)\n", reqs[i].Series, reqs[i].Volume)
			continue
		}
		fmt.Fprintf(output, "%s #%d  %s\n", reqs[i].Series, reqs[i].Volume, vol.Title)
	}
	fmt.Fprintln(output, summary)
	return nil
}

func (e *EditionCmd) Run() error {
	mapper, err := loadMapper(viper.GetString("editions.file"))
	if err != nil {
		return err
	}

	if !mapper.IsAlternateEdition(e.Name) {
		fmt.Fprintf(output, "%q is not a known alternate edition. Known editions:\n", e.Name)
		for _, name := range mapper.Names() {
			fmt.Fprintf(output, "  - %s\n", name)
		}
		return nil
	}

	info := mapper.Info(e.Name)
	if e.Book != "" {
		r, ok := mapper.Range(e.Name, e.Book)
		if !ok {
			return fmt.Errorf("%s has no book %s (it has %d books)", info.Name, e.Book, info.BookCount)
		}
		if viper.GetBool("output.json") {
			return printJSON(map[string]any{
				"edition":           info.Name,
				"book":              e.Book,
				"standard_series":   info.StandardSeriesName,
				"canonical_range":   r.String(),
				"canonical_volumes": r.Volumes(),
			})
		}
		fmt.Fprintf(output, "%s book %s = %s volumes %s\n", info.Name, e.Book, info.StandardSeriesName, r)
		return nil
	}

	if viper.GetBool("output.json") {
		return printJSON(info)
	}
	fmt.Fprintf(output, "%s\n", info.Name)
	fmt.Fprintf(output, "  Standard series: %s\n", info.StandardSeriesName)
	if info.Description != "" {
		fmt.Fprintf(output, "  %s\n", info.Description)
	}
	fmt.Fprintf(output, "  %d books covering %d volumes\n", info.BookCount, info.TotalVolumes)
	for i, r := range info.Books {
		fmt.Fprintf(output, "  %3d  %s\n", i+1, r)
	}
	return nil
}

func (c *CoverCmd) Run(ctx context.Context) error {
	a, err := newApp(ctx, cliExporter())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	vol := a.optimizer.GetVolumes(ctx, c.Series, []int{c.Volume})[0]
	if vol == nil {
		return fmt.Errorf("no metadata found for %s volume %d", c.Series, c.Volume)
	}

	dir := c.Dir
	if dir == "" {
		dir = a.cfg.CoverDir
	}
	fetcher := cover.NewFetcher(dir,
		cover.WithMaxWidth(a.cfg.CoverMaxWidth),
		cover.WithOverwrite(c.Force),
	)
	res, err := fetcher.Fetch(ctx, vol)
	if err != nil {
		return err
	}

	if viper.GetBool("output.json") {
		return printJSON(res)
	}
	if res.Downloaded {
		fmt.Fprintf(output, "Saved %s (%dx%d)\n", res.Path, res.Width, res.Height)
	} else {
		fmt.Fprintf(output, "Already exists: %s\n", res.Path)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(output)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSeries(s *metadata.Series) {
	fmt.Fprintf(output, "%s\n", s.CanonicalName)
	if len(s.Authors) > 0 {
		fmt.Fprintf(output, "  Authors:   %s\n", strings.Join(s.Authors, ", "))
	}
	volumes := "unknown"
	if s.TotalVolumes > 0 {
		volumes = strconv.Itoa(s.TotalVolumes)
	}
	fmt.Fprintf(output, "  Volumes:   %s\n", volumes)
	if s.Publisher != "" {
		fmt.Fprintf(output, "  Publisher: %s\n", s.Publisher)
	}
	if s.Status != "" {
		fmt.Fprintf(output, "  Status:    %s\n", s.Status)
	}
	if len(s.Genres) > 0 {
		fmt.Fprintf(output, "  Genres:    %s\n", strings.Join(s.Genres, ", "))
	}
	if s.Summary != "" {
		fmt.Fprintf(output, "\n%s\n", s.Summary)
	}
	if s.Source != "" {
		fmt.Fprintf(output, "\n(source: %s)\n", s.Source)
	}
}

func printVolumeLine(v *metadata.Volume) {
	line := fmt.Sprintf("%4d  %s", v.Number, v.Title)
	if v.CanonicalRange != "" {
		line += fmt.Sprintf("  [%s volumes %s]", v.Edition, v.CanonicalRange)
	}
	if v.ISBN13 != nil {
		line += "  ISBN " + *v.ISBN13
	}
	if v.CopyrightYear != nil {
		line += fmt.Sprintf("  (%d)", *v.CopyrightYear)
	}
	fmt.Fprintln(output, line)
}
