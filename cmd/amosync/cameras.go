package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"amosync/pkg/amos"
	"amosync/pkg/logger"
	"amosync/pkg/store"
	"amosync/pkg/ui"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

var (
	camerasJSON  bool
	imagesParsed bool
)

var camerasCmd = &cobra.Command{
	Use:   "cameras",
	Short: "Query the AMOS camera directory",
}

var camerasListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every camera with its position",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		client := newClient(cfg, logger.GetLogger(), nil)

		cameras, err := client.ListCameras(cmd.Context())
		if err != nil {
			return err
		}

		if camerasJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(cameras)
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tLATITUDE\tLONGITUDE")
		for _, c := range cameras {
			fmt.Fprintf(tw, "%d\t%.6f\t%.6f\n", c.ID, c.Latitude, c.Longitude)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		if !quiet {
			fmt.Printf("\n%d cameras\n", len(cameras))
		}
		return nil
	},
}

var camerasInfoCmd = &cobra.Command{
	Use:   "info <camera-id>",
	Short: "Print a camera record as it would be stored in info.json",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseCameraID(args[0])
		if err != nil {
			return err
		}
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		client := newClient(cfg, logger.GetLogger(), nil)

		record, err := client.CameraInfo(cmd.Context(), id)
		if err != nil {
			return err
		}
		data, err := store.EncodeRecord(record)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	},
}

var camerasImagesCmd = &cobra.Command{
	Use:   "images <camera-id> <year> <month>",
	Short: "List the image timestamps of one camera month",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseCameraID(args[0])
		if err != nil {
			return err
		}
		year, month, err := parseYearMonth(args[1], args[2])
		if err != nil {
			return err
		}
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		client := newClient(cfg, logger.GetLogger(), nil)

		timestamps, err := client.ListTimestamps(cmd.Context(), id, year, month)
		if err != nil {
			return err
		}
		for _, ts := range timestamps {
			if !imagesParsed {
				fmt.Println(ts)
				continue
			}
			t, err := amos.ParseTimestamp(ts)
			if err != nil {
				fmt.Printf("%s\t(unparsable)\n", ts)
				continue
			}
			fmt.Printf("%s\t%s\n", ts, t.Format("2006-01-02 15:04:05 MST"))
		}
		return nil
	},
}

var camerasImageCmd = &cobra.Command{
	Use:   "image <camera-id> <timestamp> [path]",
	Short: "Download one image",
	Long: `Download the image a camera captured at a timestamp
(YYYYMMDD_HHMMSS). The file defaults to <timestamp>.jpg in the current
directory.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseCameraID(args[0])
		if err != nil {
			return err
		}
		ts := args[1]
		if _, err := amos.ParseTimestamp(ts); err != nil {
			return err
		}
		path := ts + ".jpg"
		if len(args) == 3 {
			path = args[2]
		}

		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		client := newClient(cfg, logger.GetLogger(), nil)

		if err := client.SaveImage(cmd.Context(), id, ts, path); err != nil {
			return err
		}
		if !quiet {
			ui.PrintSuccess(os.Stdout, fmt.Sprintf("Saved %s", path))
		}
		return nil
	},
}

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Work with monthly image archives",
}

var archiveSaveCmd = &cobra.Command{
	Use:   "save <camera-id> <year> <month> [path]",
	Short: "Download one monthly archive without extracting it",
	Long: `Download the zip archive of one camera month. Without a path the file
is written to the current directory under the archive's own name
(YYYY.MM.zip).`,
	Args: cobra.RangeArgs(3, 4),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseCameraID(args[0])
		if err != nil {
			return err
		}
		year, month, err := parseYearMonth(args[1], args[2])
		if err != nil {
			return err
		}
		path := amos.ArchiveName(year, month)
		if len(args) == 4 {
			path = args[3]
		}
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}

		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		client := newClient(cfg, logger.GetLogger(), nil)

		saved, err := client.SaveArchive(cmd.Context(), id, year, month, path)
		if err != nil {
			return err
		}
		if !quiet {
			ui.PrintSuccess(os.Stdout, fmt.Sprintf("Saved %s", saved))
		}
		return nil
	},
}

func init() {
	camerasListCmd.Flags().BoolVar(&camerasJSON, "json", false, "print JSON instead of a table")
	camerasImagesCmd.Flags().BoolVar(&imagesParsed, "parse", false, "show each timestamp as a UTC time")

	camerasCmd.AddCommand(camerasListCmd, camerasInfoCmd, camerasImagesCmd, camerasImageCmd)
	archiveCmd.AddCommand(archiveSaveCmd)
	rootCmd.AddCommand(camerasCmd, archiveCmd)
}
