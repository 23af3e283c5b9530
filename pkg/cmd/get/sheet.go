package get

import (
	"context"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/qa-tracking/qa-report-tool/internal/source"
)

const defaultSheetOutput = "qa-tracking.xlsx"

type sheetInput struct {
	output    string
	worksheet string
}

// NewCmdSheet downloads the remote tracking sheet to a local spreadsheet,
// which can be used later as the report input.
func NewCmdSheet() *cobra.Command {
	data := sheetInput{}
	cmd := &cobra.Command{
		Use:     "sheet",
		Example: "qareport get sheet --sheets-id <id> --output tracking.xlsx",
		Short:   "Download the tracking sheet to a local .xlsx file.",
		Run: func(cmd *cobra.Command, args []string) {
			if err := downloadSheet(cmd.Context(), &data); err != nil {
				log.Error(errors.Wrap(err, "could not download the tracking sheet"))
				os.Exit(1)
			}
		},
	}
	cmd.Flags().StringVarP(&data.output, "output", "o", defaultSheetOutput, "Destination .xlsx file.")
	cmd.Flags().StringVarP(&data.worksheet, "worksheet", "w", "tracking", "Worksheet name in the destination file.")
	return cmd
}

func remoteOptions() (source.Options, error) {
	o := source.Options{
		SheetsID:          viper.GetString("sheets-id"),
		SheetsRange:       viper.GetString("sheets-range"),
		SheetsCredentials: viper.GetString("sheets-credentials"),
		URL:               viper.GetString("source-url"),
	}
	if o.SheetsID == "" && o.URL == "" {
		return o, errors.New("--sheets-id or --source-url is required")
	}
	return o, nil
}

func downloadSheet(ctx context.Context, in *sheetInput) error {
	if ctx == nil {
		ctx = context.Background()
	}
	opts, err := remoteOptions()
	if err != nil {
		return err
	}
	src, err := source.New(ctx, opts)
	if err != nil {
		return err
	}
	log.Infof("Downloading %s", src.Name())
	rows, err := src.Fetch(ctx)
	if err != nil {
		return errors.Wrapf(err, "unable to read %s", src.Name())
	}
	if err := source.SaveXLSX(in.output, in.worksheet, rows); err != nil {
		return err
	}
	log.Infof("Saved %d rows to %s", len(rows), in.output)
	return nil
}
