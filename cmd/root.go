// Package cmd implements the image-stitch command-line interface.
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jburnhams/image-stitch-sub000/internal/source"
	"github.com/jburnhams/image-stitch-sub000/pkg/compose"
	"github.com/jburnhams/image-stitch-sub000/pkg/decode"
	"github.com/jburnhams/image-stitch-sub000/pkg/layout"
	"github.com/jburnhams/image-stitch-sub000/pkg/pixel"
)

const version = "1.0.0"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "image-stitch [images...]",
	Short: "Composite images into a single PNG grid",
	Long: `image-stitch composites any number of images (PNG or JPEG, local
files or URLs) into one output PNG, laid out as a grid with automatic
padding. The output is produced as a stream, so arbitrarily large
composites need only a small, bounded amount of memory.

Exactly one layout strategy applies per run: a fixed column count, a
fixed row count, or pixel bounds (max width/height).

Examples:
  # Four images in two columns
  image-stitch --columns 2 a.png b.png c.png d.png -o grid.png

  # Pack thumbnails into rows of at most 2000px, white padding
  image-stitch --max-width 2000 --background white *.jpg -o sheet.png

  # Composite remote images
  image-stitch --rows 1 https://example.com/a.png https://example.com/b.png -o strip.png

  # Start HTTP server
  image-stitch serve --port 8080`,
	// If no subcommand is specified and we have args, run the composite
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		return runComposite(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.image-stitch.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug-level logging")

	// Output options
	rootCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	rootCmd.Flags().String("background", "", "padding color: name, #hex or r,g,b[,a] (default: transparent)")

	// Layout options
	rootCmd.Flags().IntP("columns", "c", 0, "fixed column count (row-major fill)")
	rootCmd.Flags().IntP("rows", "r", 0, "fixed row count (column-major fill)")
	rootCmd.Flags().Uint32("max-width", 0, "maximum output width in pixels (greedy row packing)")
	rootCmd.Flags().Uint32("max-height", 0, "maximum output height in pixels (overflowing images are dropped)")

	// HTTP options for URL inputs
	rootCmd.Flags().String("user-agent", "image-stitch/"+version, "HTTP User-Agent header")

	// Bind flags to viper for root command
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("output", rootCmd.Flags().Lookup("output"))
	viper.BindPFlag("background", rootCmd.Flags().Lookup("background"))
	viper.BindPFlag("columns", rootCmd.Flags().Lookup("columns"))
	viper.BindPFlag("rows", rootCmd.Flags().Lookup("rows"))
	viper.BindPFlag("max-width", rootCmd.Flags().Lookup("max-width"))
	viper.BindPFlag("max-height", rootCmd.Flags().Lookup("max-height"))
	viper.BindPFlag("user-agent", rootCmd.Flags().Lookup("user-agent"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".image-stitch" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".image-stitch")
	}

	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func newLogger(w io.Writer) *log.Logger {
	level := log.InfoLevel
	if viper.GetBool("verbose") {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

func runComposite(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd.ErrOrStderr())

	spec := layout.Spec{
		Columns:   viper.GetInt("columns"),
		Rows:      viper.GetInt("rows"),
		MaxWidth:  viper.GetUint32("max-width"),
		MaxHeight: viper.GetUint32("max-height"),
	}
	if spec.IsZero() {
		return fmt.Errorf("a layout constraint is required (use --columns, --rows, --max-width or --max-height)")
	}

	background, err := pixel.ParseColor(viper.GetString("background"))
	if err != nil {
		return err
	}

	// Refuse to dump binary output onto an interactive terminal.
	output := viper.GetString("output")
	if output == "" {
		if stat, _ := os.Stdout.Stat(); (stat.Mode() & os.ModeCharDevice) != 0 {
			return fmt.Errorf("didn't specify output file and standard output is a terminal")
		}
	}

	resolver := source.NewResolver(viper.GetString("user-agent"), decode.NewCache())
	inputs := make([]decode.Decoder, 0, len(args))
	closeAll := func() {
		for _, d := range inputs {
			d.Close()
		}
	}
	for _, arg := range args {
		dec, err := resolver.Open(cmd.Context(), arg)
		if err != nil {
			closeAll()
			return err
		}
		inputs = append(inputs, dec)
	}

	var out io.Writer = os.Stdout
	var outFile *os.File
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			closeAll()
			return fmt.Errorf("create %s: %v", output, err)
		}
		outFile = f
		out = f
	}

	err = compose.Stream(cmd.Context(), compose.Options{
		Inputs:     inputs,
		Layout:     spec,
		Background: background,
		Logger:     logger,
		OnProgress: func(completed, total int) {
			logger.Debug("source complete", "done", completed, "total", total)
		},
	}, out)
	// A failed close can mean buffered output never reached disk; it
	// must not be swallowed.
	if outFile != nil {
		if cerr := outFile.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %v", output, cerr)
		}
	}
	if err != nil {
		return err
	}

	logger.Info("composite written", "inputs", len(args), "output", outputName(output))
	return nil
}

func outputName(output string) string {
	if output == "" {
		return "stdout"
	}
	return output
}
