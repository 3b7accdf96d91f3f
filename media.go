package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"vidshape/capture"
	"vidshape/config"
	"vidshape/encode"
	"vidshape/geometry"
	"vidshape/job"
	"vidshape/models"
	"vidshape/output"
	"vidshape/packager"
	"vidshape/probe"
)

func newProbeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "probe <file>",
		Short: "Print the dimensions, duration and audio presence of a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := probe.FFProbe{Binary: config.GetFFprobePath(), TempDir: config.GetWorkDir()}
			desc, err := p.ProbeFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "size:     %dx%d\n", desc.Width, desc.Height)
			fmt.Fprintf(out, "duration: %.2fs\n", desc.DurationSeconds)
			fmt.Fprintf(out, "bytes:    %s\n", humanize.Bytes(uint64(desc.ByteSize)))
			fmt.Fprintf(out, "audio:    %t\n", desc.HasAudio)
			return nil
		},
	}
}

func newResizeCommand() *cobra.Command {
	var (
		outPath      string
		width        int
		height       int
		videoBitrate int
		audioBitrate int
		container    string
	)
	cmd := &cobra.Command{
		Use:   "resize <input>",
		Short: "Encode a video to a single rendition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if videoBitrate <= 0 {
				return fmt.Errorf("--video-bitrate must be positive")
			}
			input, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			rt, err := job.DefaultRuntime()
			if err != nil {
				return err
			}
			opts := encode.Options{
				TargetWidth:     width,
				TargetHeight:    height,
				VideoBitrateBps: videoBitrate,
				AudioBitrateBps: audioBitrate,
				Container:       container,
				Name:            stem(args[0]),
			}
			if outPath == "" {
				outPath = opts.OutputName()
			}

			bar := newProgressReporter(os.Stderr, "resize")
			data, err := encode.Encode(cmd.Context(), rt.Factory, input, opts, func(ratio float64) { bar.Update(ratio * 100) })
			bar.Finish()
			if err != nil {
				return err
			}
			if err := os.WriteFile(outPath, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", outPath, humanize.Bytes(uint64(len(data))))
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Output file (default <input stem>.<container>)")
	cmd.Flags().IntVar(&width, "width", 0, "Target width, 0 keeps the aspect ratio")
	cmd.Flags().IntVar(&height, "height", 0, "Target height, 0 keeps the aspect ratio")
	cmd.Flags().IntVar(&videoBitrate, "video-bitrate", 2_500_000, "Video bitrate in bits per second")
	cmd.Flags().IntVar(&audioBitrate, "audio-bitrate", 0, "Audio bitrate in bits per second (0 = default)")
	cmd.Flags().StringVar(&container, "container", "mp4", "Output container")
	return cmd
}

func newPackageCommand() *cobra.Command {
	var (
		outDir      string
		presets     []string
		ladderFile  string
		parallel    bool
		maxParallel int
		segment     float64
		noFilter    bool
	)
	cmd := &cobra.Command{
		Use:   "package <input>",
		Short: "Encode a video into an HLS ladder with a master playlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ladder, err := selectLadder(ladderFile, presets)
			if err != nil {
				return err
			}
			input, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			rt, err := job.DefaultRuntime()
			if err != nil {
				return err
			}
			mode := packager.Sequential
			if parallel {
				mode = packager.Parallel
			}

			bar := newProgressReporter(os.Stderr, "package")
			manifest, err := packager.New(rt.Prober, rt.Factory).Package(cmd.Context(), input, ladder, packager.Options{
				Mode:             mode,
				DisableFiltering: noFilter,
				MaxParallel:      maxParallel,
				SegmentSeconds:   segment,
				Progress:         bar.Update,
			})
			bar.Finish()
			if err != nil {
				return err
			}

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			var total uint64
			for name, content := range manifest.Files() {
				if err := os.WriteFile(filepath.Join(outDir, name), content, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", name, err)
				}
				total += uint64(len(content))
			}
			out := cmd.OutOrStdout()
			for _, r := range manifest.Renditions {
				fmt.Fprintf(out, "%-8s %dx%d %d segments\n", r.Level.Name, r.Width, r.Height, len(r.SegmentFiles))
			}
			fmt.Fprintf(out, "wrote %s to %s\n", humanize.Bytes(total), outDir)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "output", "o", "hls", "Output directory")
	cmd.Flags().StringSliceVar(&presets, "presets", nil, "Preset levels, e.g. 360p,720p")
	cmd.Flags().StringVar(&ladderFile, "ladder", "", "TOML ladder file")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "Encode renditions concurrently")
	cmd.Flags().IntVar(&maxParallel, "max-parallel", 0, "Cap on concurrent renditions (0 = no cap)")
	cmd.Flags().Float64Var(&segment, "segment", 0, "Segment length in seconds (0 = default)")
	cmd.Flags().BoolVar(&noFilter, "no-filter", false, "Keep levels larger than the source")
	return cmd
}

// selectLadder prefers a ladder file, then named presets, then the default ladder.
func selectLadder(ladderFile string, presets []string) ([]models.QualityLevel, error) {
	if ladderFile != "" && len(presets) > 0 {
		return nil, fmt.Errorf("--ladder and --presets are mutually exclusive")
	}
	if ladderFile != "" {
		return packager.LoadLadder(ladderFile)
	}
	if len(presets) > 0 {
		return packager.ResolvePresets(presets)
	}
	return models.DefaultLadder(), nil
}

func newCaptureCommand() *cobra.Command {
	var (
		outPath      string
		width        int
		height       int
		fit          string
		fps          float64
		speed        float64
		mimeType     string
		videoBitrate int
		audio        bool
		format       string
	)
	cmd := &cobra.Command{
		Use:   "capture <input>",
		Short: "Play a video onto a sized canvas and record the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := geometry.ParseFitPolicy(fit)
			if err != nil {
				return err
			}
			outFormat, err := output.ParseFormat(format)
			if err != nil {
				return err
			}
			input, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			rt, err := job.DefaultRuntime()
			if err != nil {
				return err
			}

			bar := newProgressReporter(os.Stderr, "capture")
			res, err := capture.New(rt.Platform).Capture(cmd.Context(), input, capture.Options{
				Width:           width,
				Height:          height,
				Fit:             policy,
				FrameRate:       fps,
				Speed:           speed,
				MimeType:        mimeType,
				VideoBitrateBps: videoBitrate,
				IncludeAudio:    audio,
				Output:          outFormat,
				Name:            stem(args[0]),
				Progress:        bar.Update,
			})
			bar.Finish()
			if err != nil {
				return err
			}
			return writeCapture(cmd, res, outPath)
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Output file (default derived from the input name)")
	cmd.Flags().IntVar(&width, "width", 0, "Canvas width")
	cmd.Flags().IntVar(&height, "height", 0, "Canvas height")
	cmd.Flags().StringVar(&fit, "fit", "contain", "Fit policy: contain, cover or fill")
	cmd.Flags().Float64Var(&fps, "fps", 0, "Capture frame rate (0 = default)")
	cmd.Flags().Float64Var(&speed, "speed", 0, "Playback speed multiplier (0 = default)")
	cmd.Flags().StringVar(&mimeType, "mime", "", "Requested recorder MIME type")
	cmd.Flags().IntVar(&videoBitrate, "video-bitrate", 0, "Recorder video bitrate (0 = default)")
	cmd.Flags().BoolVar(&audio, "audio", false, "Include the source audio track")
	cmd.Flags().StringVar(&format, "format", "file", "Result format: file, bytes or dataurl")
	return cmd
}

func writeCapture(cmd *cobra.Command, res *capture.Result, outPath string) error {
	out := cmd.OutOrStdout()
	switch res.Output.Format {
	case output.DataURL:
		if outPath == "" {
			fmt.Fprintln(out, res.Output.DataURL)
			return nil
		}
		return os.WriteFile(outPath, []byte(res.Output.DataURL), 0o644)
	case output.FileFormat:
		if outPath == "" {
			outPath = res.Output.File.Name
		}
		if err := os.WriteFile(outPath, res.Output.File.Bytes(), 0o644); err != nil {
			return err
		}
	default:
		if outPath == "" {
			outPath = "capture" + output.Extension(res.MimeType)
		}
		if err := os.WriteFile(outPath, res.Output.Bytes, 0o644); err != nil {
			return err
		}
	}
	fmt.Fprintf(out, "%s %s %dx%d %d frames (%s)\n", outPath, res.MimeType,
		res.Geometry.CanvasWidth, res.Geometry.CanvasHeight, res.Frames, humanize.Bytes(uint64(len(res.Data))))
	return nil
}

func stem(path string) string {
	base := filepath.Base(path)
	name := encode.SanitizeName(strings.TrimSuffix(base, filepath.Ext(base)))
	if name == "" {
		return "output"
	}
	return name
}
