package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kaiseki-nlp/kaiseki"
)

type tokenizeOptions struct {
	mode   string
	format string
	input  string
	all    bool
	dump   bool
}

func newTokenizeCmd() *cobra.Command {
	var opts tokenizeOptions

	cmd := &cobra.Command{
		Use:   "tokenize [text...]",
		Short: "Tokenize each argument, or each input line",
		Long: "Tokenize each argument, or each line of --input (stdin when empty).\n" +
			"Lines are tokenized concurrently and printed in input order.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			if opts.mode != "" {
				cfg.Tokenizer.Mode = opts.mode
			}
			mode, err := kaiseki.ParseSplitMode(cfg.Tokenizer.Mode)
			if err != nil {
				return err
			}
			if opts.format != "text" && opts.format != "json" {
				return fmt.Errorf("unknown format %q (want text|json)", opts.format)
			}

			lines := args
			if len(lines) == 0 {
				if lines, err = readLines(cmd.InOrStdin(), opts.input); err != nil {
					return err
				}
			}

			dict, err := loadDictionary(cfg)
			if err != nil {
				return err
			}
			tokOpts := []kaiseki.TokenizerOption{kaiseki.WithMode(mode)}
			workers := cfg.Tokenizer.Workers
			if opts.dump {
				tokOpts = append(tokOpts, kaiseki.WithDumpOutput(cmd.ErrOrStderr()))
				workers = 1
			}
			tok := dict.Create(tokOpts...)

			results, err := tokenizeAll(cmd.Context(), tok, lines, workers)
			if err != nil {
				return err
			}
			return writeResults(cmd.OutOrStdout(), results, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "", "Split mode (A|B|C), overrides tokenizer.mode")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format (text|json)")
	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "Input file, one text per line")
	cmd.Flags().BoolVarP(&opts.all, "all", "a", false, "Print all morpheme fields in text output")
	cmd.Flags().BoolVar(&opts.dump, "dump", false, "Dump lattices and paths to stderr")

	return cmd
}

func readLines(stdin io.Reader, path string) ([]string, error) {
	r := stdin
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return lines, nil
}

// tokenizeAll tokenizes lines on up to workers goroutines. Results keep
// the order of lines.
func tokenizeAll(ctx context.Context, tok *kaiseki.Tokenizer, lines []string, workers int) ([]*kaiseki.MorphemeList, error) {
	results := make([]*kaiseki.MorphemeList, len(lines))
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, line := range lines {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			list, err := tok.Tokenize(line)
			if err != nil {
				return fmt.Errorf("line %d: %w", i+1, err)
			}
			results[i] = list
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

type morphemeJSON struct {
	Surface        string   `json:"surface"`
	Begin          int      `json:"begin"`
	End            int      `json:"end"`
	POS            []string `json:"pos"`
	NormalizedForm string   `json:"normalized_form"`
	DictionaryForm string   `json:"dictionary_form"`
	ReadingForm    string   `json:"reading_form"`
	DictionaryID   int      `json:"dictionary_id"`
	OOV            bool     `json:"oov"`
}

func writeResults(w io.Writer, results []*kaiseki.MorphemeList, opts tokenizeOptions) error {
	bw := bufio.NewWriter(w)
	if opts.format == "json" {
		enc := json.NewEncoder(bw)
		for _, list := range results {
			out := make([]morphemeJSON, 0, list.Len())
			for _, m := range list.All() {
				out = append(out, morphemeJSON{
					Surface:        m.Surface(),
					Begin:          m.Begin(),
					End:            m.End(),
					POS:            m.PartOfSpeech(),
					NormalizedForm: m.NormalizedForm(),
					DictionaryForm: m.DictionaryForm(),
					ReadingForm:    m.ReadingForm(),
					DictionaryID:   m.DictionaryID(),
					OOV:            m.IsOOV(),
				})
			}
			if err := enc.Encode(out); err != nil {
				return err
			}
		}
		return bw.Flush()
	}

	for _, list := range results {
		for _, m := range list.All() {
			fields := []string{m.Surface(), strings.Join(m.PartOfSpeech(), ","), m.NormalizedForm()}
			if opts.all {
				fields = append(fields, m.DictionaryForm(), m.ReadingForm(), fmt.Sprint(m.DictionaryID()))
				if m.IsOOV() {
					fields = append(fields, "(OOV)")
				}
			}
			if _, err := fmt.Fprintln(bw, strings.Join(fields, "\t")); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(bw, "EOS"); err != nil {
			return err
		}
	}
	return bw.Flush()
}
