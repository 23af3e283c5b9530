package publish

import (
	"context"
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/qa-tracking/qa-report-tool/internal/publish"
	"github.com/qa-tracking/qa-report-tool/internal/qa/report"
)

const defaultKeyPrefix = "reports"

type publishInput struct {
	dir         string
	prefix      string
	dryRun      bool
	concurrency int
}

func NewCmdPublish() *cobra.Command {
	data := publishInput{}
	cmd := &cobra.Command{
		Use:     "publish <report-dir>",
		Example: "qareport publish ./results --publish-bucket qa-reports --dry-run",
		Short:   "Publish a saved report to S3.",
		Long: `Publish the files created by 'report --save-to' to an S3 bucket. When
--prefix is not set the objects are stored under reports/<generation date>/.
The CloudFront distribution is invalidated after the upload when configured.`,
		Run: func(cmd *cobra.Command, args []string) {
			data.dir = args[0]
			if err := publishReport(cmd.Context(), &data); err != nil {
				log.Error(errors.Wrapf(err, "could not publish the report: %v", args[0]))
				os.Exit(1)
			}
		},
		Args: cobra.ExactArgs(1),
	}
	cmd.Flags().StringVarP(&data.prefix, "prefix", "p", "", "Object key prefix of the published files.")
	cmd.Flags().BoolVarP(&data.dryRun, "dry-run", "", false, "List the uploads without sending them.")
	cmd.Flags().IntVarP(&data.concurrency, "concurrency", "", publish.DefaultConcurrency, "Number of parallel uploads.")
	return cmd
}

// indexMeta is the part of the report index used as object metadata.
type indexMeta struct {
	Summary struct {
		Title       string    `json:"title"`
		Source      string    `json:"source"`
		Filter      string    `json:"filter"`
		GeneratedAt time.Time `json:"generatedAt"`
	} `json:"summary"`
}

// readIndex loads the metadata of the saved report index.
func readIndex(dir string) (*indexMeta, error) {
	data, err := os.ReadFile(filepath.Join(dir, report.ReportFileNameIndexJSON))
	if err != nil {
		return nil, errors.Wrapf(err, "%s is not a saved report directory", dir)
	}
	idx := &indexMeta{}
	if err := json.Unmarshal(data, idx); err != nil {
		return nil, errors.Wrapf(err, "unable to decode %s", report.ReportFileNameIndexJSON)
	}
	return idx, nil
}

func (idx *indexMeta) metadata() map[string]string {
	meta := map[string]string{
		"title":  idx.Summary.Title,
		"source": filepath.Base(idx.Summary.Source),
	}
	if idx.Summary.Filter != "" {
		meta["filter"] = idx.Summary.Filter
	}
	if !idx.Summary.GeneratedAt.IsZero() {
		meta["generatedAt"] = idx.Summary.GeneratedAt.UTC().Format(time.RFC3339)
	}
	return meta
}

// keyPrefix returns the explicit prefix, or one derived from the report
// generation time.
func keyPrefix(prefix string, idx *indexMeta) string {
	if prefix != "" {
		return prefix
	}
	generated := idx.Summary.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	return path.Join(defaultKeyPrefix, generated.UTC().Format("2006-01-02T150405Z"))
}

func publishConfig(in *publishInput, idx *indexMeta) publish.Config {
	return publish.Config{
		Bucket:       viper.GetString("publish-bucket"),
		Region:       viper.GetString("publish-region"),
		Distribution: viper.GetString("publish-cloudfront-distribution"),
		Prefix:       keyPrefix(in.prefix, idx),
		Concurrency:  in.concurrency,
		DryRun:       in.dryRun,
	}
}

func publishReport(ctx context.Context, in *publishInput) error {
	if ctx == nil {
		ctx = context.Background()
	}
	idx, err := readIndex(in.dir)
	if err != nil {
		return err
	}
	p, err := publish.NewPublisher(publishConfig(in, idx))
	if err != nil {
		return err
	}
	log.Info("Publishing the report to storage...")
	objects, err := p.Publish(ctx, in.dir, idx.metadata())
	if err != nil {
		return err
	}
	log.Infof("%d files processed under s3://%s/%s", len(objects), p.Bucket, p.Prefix)
	return nil
}
