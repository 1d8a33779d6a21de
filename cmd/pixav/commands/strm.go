package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Charliesj0129/pixAV/cmd/pixav/cmdutil"
	"github.com/Charliesj0129/pixAV/internal/logger"
	"github.com/Charliesj0129/pixAV/pkg/models"
	"github.com/Charliesj0129/pixAV/pkg/resolver"
)

var (
	strmDir     string
	strmBaseURL string
	strmLimit   int
)

var strmCmd = &cobra.Command{
	Use:   "strm",
	Short: "Media library export",
}

var strmExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write .strm library files for available videos",
	Long: `Write one .strm file per available video into a library directory.

A .strm file is a one-line text file holding the resolver's /stream URL
for the video. Media servers such as Jellyfin and Kodi index a directory
of them as a regular library, so every exported video plays through the
resolver without a local copy.

Existing files are overwritten, which refreshes titles after metadata
changes. Run the export again whenever new videos become available.

Examples:
  # Export into a Jellyfin library folder
  pixav strm export --dir /media/pixav

  # Point players at a resolver reachable under a public name
  pixav strm export --dir ./strm --base-url https://pixav.example.net`,
	RunE: runStrmExport,
}

func init() {
	strmExportCmd.Flags().StringVar(&strmDir, "dir", "", "Directory to write .strm files into (required)")
	strmExportCmd.Flags().StringVar(&strmBaseURL, "base-url", "", "Resolver base URL (default http://localhost:<resolver port>)")
	strmExportCmd.Flags().IntVar(&strmLimit, "limit", 1000, "Maximum videos to export")
	_ = strmExportCmd.MarkFlagRequired("dir")

	strmCmd.AddCommand(strmExportCmd)
}

func runStrmExport(cmd *cobra.Command, args []string) error {
	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		return err
	}

	baseURL := strmBaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://localhost:%d", cfg.Resolver.Port)
	}

	st, err := cmdutil.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx := cmd.Context()
	videos, err := st.ListVideosByStatus(ctx, models.VideoAvailable, strmLimit)
	if err != nil {
		return fmt.Errorf("failed to list available videos: %w", err)
	}
	if len(videos) == 0 {
		fmt.Println("No available videos to export.")
		return nil
	}

	writer := resolver.NewStrmWriter(baseURL, strmDir)
	written := 0
	for _, video := range videos {
		if _, err := writer.Write(video); err != nil {
			logger.Warn("failed to write strm file", "video_id", video.ID, "error", err)
			continue
		}
		written++
	}

	if written < len(videos) {
		fmt.Printf("Skipped %d video(s), see warnings above.\n", len(videos)-written)
	}
	cmdutil.PrintSuccess(fmt.Sprintf("Exported %d .strm file(s) to %s", written, strmDir))
	return nil
}
