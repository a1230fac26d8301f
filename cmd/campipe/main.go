package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/abworrall/campipe/pkg/pipeline"
	"github.com/abworrall/campipe/pkg/raster"
)

var (
	fConfigFile string
	fVerbosity  int
	fOutputDir  string
	fWorkers    int
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "campipe",
		Short: "campipe runs photos through a camera-style processing pipeline",
		Long: `campipe applies white balance, demosaicing, sharpening, median denoising
and gamma correction to images, writing each stage's output under the
output directory.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			switch {
			case fVerbosity >= 2:
				log.SetLevel(log.TraceLevel)
			case fVerbosity == 1:
				log.SetLevel(log.DebugLevel)
			default:
				log.SetLevel(log.InfoLevel)
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&fConfigFile, "config", "", "YAML config file")
	rootCmd.PersistentFlags().CountVarP(&fVerbosity, "verbose", "v", "how verbose to get (repeat for more)")
	rootCmd.PersistentFlags().StringVar(&fOutputDir, "out", "", "output directory (overrides config)")
	rootCmd.PersistentFlags().IntVar(&fWorkers, "workers", 0, "images to process at once (overrides config)")

	rootCmd.AddCommand(newProcessCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newDenoiseCmd())
	rootCmd.AddCommand(newSharpenCmd())
	rootCmd.AddCommand(newGammaCmd())
	rootCmd.AddCommand(newWhiteBalanceCmd())
	rootCmd.AddCommand(newDemosaicCmd())
	rootCmd.AddCommand(newDiffCmd())

	return rootCmd
}

// loadConfig starts from the --config file (or the defaults), then lets
// the flags have the last word.
func loadConfig() (pipeline.Config, error) {
	cfg := pipeline.NewConfig()
	if fConfigFile != "" {
		var err error
		if cfg, err = pipeline.LoadConfig(fConfigFile); err != nil {
			return cfg, err
		}
	}
	applyFlags(&cfg)
	return cfg, nil
}

func applyFlags(cfg *pipeline.Config) {
	if fOutputDir != "" {
		cfg.OutputDir = fOutputDir
	}
	if fWorkers > 0 {
		cfg.Workers = fWorkers
	}
	if fVerbosity > cfg.Verbosity {
		cfg.Verbosity = fVerbosity
	}
}

func newProcessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process <file or dir>...",
		Short: "Run every configured stage over the images",
		Long: `Run every configured stage over the images. Directories are walked
recursively; a .yaml file among the arguments is loaded as the config.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			b := pipeline.NewBatch()
			b.Config = cfg
			if err := b.LoadFilesAndDirs(args...); err != nil {
				return err
			}
			applyFlags(&b.Config)

			if b.Config.Verbosity > 0 {
				log.Printf("Final configuration:-\n\n%s\n", b.Config.AsYaml())
			}
			if len(b.Inputs) == 0 {
				return fmt.Errorf("no images found in %v", args)
			}

			_, err = b.Run(cmd.Context())
			return err
		},
	}
}

func newWatchCmd() *cobra.Command {
	var settleMillis int

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Process images as they arrive in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if settleMillis > 0 {
				cfg.Watch.SettleMillis = settleMillis
			}

			p, err := pipeline.NewProcessor(cfg)
			if err != nil {
				return err
			}
			return p.Watch(cmd.Context(), args[0], nil)
		},
	}

	cmd.Flags().IntVar(&settleMillis, "settle", 0, "ms a file must sit unchanged before it's processed")
	return cmd
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Finalize(); err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), cfg.AsYaml())
			return nil
		},
	}
}

// runSingleStage runs one stage over in, and writes just its final image
// to out.
func runSingleStage(ctx context.Context, cfg pipeline.Config, stage, in, out string) error {
	cfg.Stages = []string{stage}
	p, err := pipeline.NewProcessor(cfg)
	if err != nil {
		return err
	}

	f, err := pipeline.LoadFrame(in)
	if err != nil {
		return err
	}
	if err := p.Run(ctx, f, nil); err != nil {
		return err
	}

	if err := pipeline.SaveImage(f.Img, out, p.Config.Output.JPEGQuality); err != nil {
		return err
	}
	log.Infof("%s: %s -> %s", stage, in, out)
	return nil
}

func singleStageCmd(stage, short string, tweak func(*pipeline.Config)) *cobra.Command {
	return &cobra.Command{
		Use:   stage + " <in> <out>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			tweak(&cfg)
			return runSingleStage(cmd.Context(), cfg, stage, args[0], args[1])
		},
	}
}

func newDenoiseCmd() *cobra.Command {
	var region int
	cmd := singleStageCmd("denoise", "Median filter an image", func(cfg *pipeline.Config) {
		if region > 0 {
			cfg.Denoise.RegionSize = region
		}
	})
	cmd.Flags().IntVar(&region, "region", 0, "median region size")
	return cmd
}

func newSharpenCmd() *cobra.Command {
	var scale float64
	var mode string
	cmd := singleStageCmd("sharpen", "Laplacian-sharpen an image", func(cfg *pipeline.Config) {
		if scale > 0 {
			cfg.Sharpen.Scale = scale
		}
		if mode != "" {
			cfg.Sharpen.Mode = mode
		}
		cfg.Sharpen.SaveEdges = false
	})
	cmd.Flags().Float64Var(&scale, "scale", 0, "edge scale")
	cmd.Flags().StringVar(&mode, "mode", "", "where the scale is applied: edge or subtract")
	return cmd
}

func newGammaCmd() *cobra.Command {
	var g float64
	var srgb bool
	cmd := singleStageCmd("gamma", "Gamma-encode an image", func(cfg *pipeline.Config) {
		if g != 0 {
			cfg.Gamma.Value = g
		}
		if srgb {
			cfg.Gamma.Mode = "srgb"
		}
	})
	cmd.Flags().Float64Var(&g, "gamma", 0, "gamma value")
	cmd.Flags().BoolVar(&srgb, "srgb", false, "use the sRGB transfer curve instead of a power law")
	return cmd
}

func newWhiteBalanceCmd() *cobra.Command {
	var pct float64
	cmd := singleStageCmd("whitebalance", "Percentile white-balance an image", func(cfg *pipeline.Config) {
		if pct > 0 {
			cfg.WhiteBalance.Percentile = pct
		}
		cfg.WhiteBalance.PlotHistogram = false
	})
	cmd.Flags().Float64Var(&pct, "percentile", 0, "channel percentile that maps to white")
	return cmd
}

func newDemosaicCmd() *cobra.Command {
	return singleStageCmd("demosaic", "Bilinear-demosaic an image's luma as an RGGB mosaic", func(cfg *pipeline.Config) {})
}

func newDiffCmd() *cobra.Command {
	var low, high int
	var dump string

	cmd := &cobra.Command{
		Use:   "diff <a> <b>",
		Short: "Compare two same-sized images",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := pipeline.LoadFrame(args[0])
			if err != nil {
				return err
			}
			b, err := pipeline.LoadFrame(args[1])
			if err != nil {
				return err
			}

			d, err := raster.Diff(a.Img, b.Img, raster.ClampU8(low), raster.ClampU8(high))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s vs %s: %s\n", a.Name, b.Name, d)

			if dump != "" {
				title := fmt.Sprintf("%s vs %s: %s", a.Name, b.Name, d)
				return d.Grid.ToImg(title, dump)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&low, "low", 0, "ignore samples darker than this")
	cmd.Flags().IntVar(&high, "high", 255, "ignore samples brighter than this")
	cmd.Flags().StringVar(&dump, "dump", "", "write the difference map to this PNG")
	return cmd
}
