package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/xiaobei/rulesconv/internal/fetcher"
	"github.com/xiaobei/rulesconv/internal/ruleconvert"
	"github.com/xiaobei/rulesconv/internal/service"
	"github.com/xiaobei/rulesconv/internal/storage"
)

var (
	flagConfig    string
	flagTarget    string
	flagBase      string
	flagOverwrite bool
	flagOutput    string
)

var convertCommand = &cobra.Command{
	Use:   "convert",
	Short: "Convert the rulesets of a config file into a client document",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if flagOutput != "" {
			f, err := os.Create(flagOutput)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		return runConvert(cmd.Context(), flagConfig, flagTarget, flagBase, flagOverwrite, out)
	},
}

func init() {
	convertCommand.Flags().StringVarP(&flagConfig, "config", "c", "", "Ruleset config file (YAML)")
	convertCommand.Flags().StringVarP(&flagTarget, "target", "t", "", "Output target: clash, mellow, surge2, surge3, surfboard, loon, quan, quanx, singbox")
	convertCommand.Flags().StringVarP(&flagBase, "base", "b", "", "Base document to merge rules into")
	convertCommand.Flags().BoolVar(&flagOverwrite, "overwrite", false, "Replace existing rules in the base document")
	convertCommand.Flags().StringVarP(&flagOutput, "output", "o", "", "Output file, stdout when empty")
	_ = convertCommand.MarkFlagRequired("config")
	_ = convertCommand.MarkFlagRequired("target")
}

// configFile is the offline conversion input.
type configFile struct {
	Settings *storage.Settings `yaml:"settings"`
	Rulesets []configRuleset   `yaml:"rulesets"`
}

type configRuleset struct {
	Group    string `yaml:"group"`
	Path     string `yaml:"path"`
	Type     string `yaml:"type"`
	Interval int    `yaml:"interval"`
	Enabled  *bool  `yaml:"enabled"`
}

// loadConfig reads path; relative local ruleset paths resolve against its directory.
func loadConfig(path string) (*storage.Settings, []storage.Ruleset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg := configFile{Settings: storage.DefaultSettings()}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Settings == nil {
		cfg.Settings = storage.DefaultSettings()
	}

	dir := filepath.Dir(path)
	rulesets := make([]storage.Ruleset, 0, len(cfg.Rulesets))
	for i, r := range cfg.Rulesets {
		rs := storage.Ruleset{
			Group:          r.Group,
			Path:           resolvePath(r.Path, r.Type, dir),
			Type:           r.Type,
			UpdateInterval: r.Interval,
			Priority:       i,
			Enabled:        lo.FromPtrOr(r.Enabled, true),
		}
		if err := service.Validate(&rs); err != nil {
			return nil, nil, fmt.Errorf("ruleset %d: %w", i, err)
		}
		rulesets = append(rulesets, rs)
	}
	return cfg.Settings, rulesets, nil
}

func resolvePath(path, typ, dir string) string {
	if strings.HasPrefix(path, "[]") {
		return path
	}
	prefix := ""
	local := path
	if typ == "" {
		d, p := ruleconvert.ParseTypedPath(path)
		if p != path {
			prefix = ruleconvert.TypedPath(d, "")
		}
		local = p
	}
	if local == "" || fetcher.IsRemote(local) || strings.HasPrefix(local, "data:") || filepath.IsAbs(local) {
		return path
	}
	return prefix + filepath.Join(dir, local)
}

func runConvert(ctx context.Context, configPath, target, basePath string, overwrite bool, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	settings, rulesets, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	base := ""
	if basePath != "" {
		data, err := os.ReadFile(basePath)
		if err != nil {
			return fmt.Errorf("failed to read base document: %w", err)
		}
		base = string(data)
	}

	f := fetcher.NewFetcher(nil, time.Duration(settings.FetchTimeout)*time.Second, 0)
	svc := service.NewConvertService(nil, f)
	text, err := svc.ConvertWith(ctx, service.ConvertRequest{Target: target, Base: base, Overwrite: overwrite}, settings, rulesets)
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, text)
	return err
}
