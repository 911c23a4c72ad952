package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"cardflow/internal/config"
	"cardflow/internal/queue"
)

type addRequest struct {
	Name    string   `validate:"required_without=BatchID,excluded_with=BatchID,max=120"`
	BatchID int64    `validate:"gte=0"`
	Images  []string `validate:"required,min=1,max=500,dive,required,max=1024"`
}

var validate = validator.New()

func newAddCommand(ctx *commandContext) *cobra.Command {
	var (
		batchName string
		batchID   int64
	)

	cmd := &cobra.Command{
		Use:   "add <image>...",
		Short: "Add card images to a new or existing batch",
		Long: `Add card images and queue their first OCR job.

Images are local paths, file:// URLs, or s3://bucket/key references. Relative
local paths that exist in the working directory are stored as absolute paths;
other relative paths resolve under paths.image_dir when processed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := addRequest{
				Name:    strings.TrimSpace(batchName),
				BatchID: batchID,
				Images:  normalizeImageRefs(args),
			}
			if err := validate.Struct(req); err != nil {
				return describeValidation(err)
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				out := cmd.OutOrStdout()
				if req.BatchID > 0 {
					for _, ref := range req.Images {
						asset, err := store.AddAsset(cmd.Context(), req.BatchID, ref)
						if err != nil {
							return err
						}
						fmt.Fprintf(out, "Queued asset %d (%s) in batch %d\n", asset.ID, asset.FileName(), req.BatchID)
					}
					return nil
				}
				batch, assets, err := store.CreateBatch(cmd.Context(), req.Name, req.Images)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Created batch %d (%s) with %d asset(s)\n", batch.ID, batch.Name, len(assets))
				for _, asset := range assets {
					fmt.Fprintf(out, "  asset %d: %s\n", asset.ID, asset.ImageRef)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&batchName, "batch", "b", "", "Name of a new batch")
	cmd.Flags().Int64Var(&batchID, "to-batch", 0, "Existing batch id to append to")
	return cmd
}

func normalizeImageRefs(args []string) []string {
	refs := make([]string, 0, len(args))
	for _, arg := range args {
		ref := strings.TrimSpace(arg)
		if ref != "" && !strings.Contains(ref, "://") && !filepath.IsAbs(ref) && !strings.HasPrefix(ref, "~") {
			if _, err := os.Stat(ref); err == nil {
				if abs, err := filepath.Abs(ref); err == nil {
					ref = abs
				}
			}
		}
		refs = append(refs, ref)
	}
	return refs
}

func describeValidation(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch {
		case fe.Field() == "Name" && fe.Tag() == "required_without":
			messages = append(messages, "either --batch or --to-batch is required")
		case fe.Field() == "Name" && fe.Tag() == "excluded_with":
			messages = append(messages, "--batch and --to-batch cannot be combined")
		case strings.HasPrefix(fe.Field(), "Images"):
			messages = append(messages, fmt.Sprintf("image reference %s failed %s", fe.Field(), fe.Tag()))
		default:
			messages = append(messages, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
		}
	}
	return errors.New("invalid input: " + strings.Join(messages, "; "))
}
