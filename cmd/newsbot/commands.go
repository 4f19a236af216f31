package main

import (
	"context"
	"time"

	"news_bot/internal/app"
	"news_bot/internal/config"
	"news_bot/internal/logger"

	"github.com/spf13/cobra"
)

// withApp 加载配置并初始化应用，结束后关闭
func withApp(ctx context.Context, fn func(*app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			logger.L().Errorf("Shutdown error: %v", err)
		}
	}()

	return fn(a)
}

func withPipeline(fn func(*app.Pipeline) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	return fn(app.NewPipeline(cfg, time.Now(), cfg.RetryCount))
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Download today's newspapers and highlights",
		Long:  "Scans every configured channel, downloads today's files and writes download_status.json. Exits 1 when not all newspapers were found.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				status, err := a.Download(cmd.Context(), time.Now(), a.Config.RetryCount)
				if err != nil {
					return err
				}
				if !status.Success() {
					logger.L().Errorf("Missing newspapers: %v", status.MissingNewspapers())
					return errIncomplete
				}
				return nil
			})
		},
	}
}

func newListenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "listen",
		Short: "Run the bot and journal channel posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				return a.Listen(cmd.Context())
			})
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Journal channel posts and run the full pipeline every day",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				return a.Serve(cmd.Context())
			})
		},
	}
}

func newOCRCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ocr",
		Short: "Extract text from today's highlight images",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipeline(func(p *app.Pipeline) error {
				result, err := p.OCR(cmd.Context())
				if err != nil {
					return err
				}
				logger.L().Infof("OCR finished: written=%d, failed=%d", len(result.Written), len(result.Failed))
				return nil
			})
		},
	}
}

func newOrganizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "organize",
		Short: "Group OCR text into page sections",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipeline(func(p *app.Pipeline) error {
				written, err := p.Organize(cmd.Context())
				if err != nil {
					return err
				}
				logger.L().Infof("Organized %d files", len(written))
				return nil
			})
		},
	}
}

func newAssembleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assemble",
		Short: "Build reading documents from page sections and newspaper PDFs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipeline(func(p *app.Pipeline) error {
				written, err := p.Assemble(cmd.Context())
				if err != nil {
					return err
				}
				logger.L().Infof("Assembled %d documents", len(written))
				return nil
			})
		},
	}
}

func newUploadCmd() *cobra.Command {
	var folder string
	cmd := &cobra.Command{
		Use:   "upload [dir]",
		Short: "Upload a directory (default: today's output) to cloud storage",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipeline(func(p *app.Pipeline) error {
				result, err := p.Upload(cmd.Context(), firstArg(args), folder)
				if err != nil {
					return err
				}
				for _, item := range result.Items {
					if item.Error != "" {
						logger.L().Errorf("Failed: %s: %s", item.LocalPath, item.Error)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&folder, "folder", "", "Destination folder (default: UPLOAD_FOLDER or today's date)")
	return cmd
}

func newEmailCmd() *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "email [dir]",
		Short: "Email the files of a directory (default: today's output)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipeline(func(p *app.Pipeline) error {
				files, err := p.Email(cmd.Context(), firstArg(args), filter)
				if err != nil {
					return err
				}
				logger.L().Infof("Emailed %d files", len(files))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "Only attach files whose name contains this text")
	return cmd
}

func newPipelineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pipeline",
		Short: "Run download, OCR, organize, assemble, upload and email in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				now := time.Now()
				status, err := a.Download(cmd.Context(), now, a.Config.RetryCount)
				if err != nil {
					return err
				}

				if err := app.NewPipeline(a.Config, now, a.Config.RetryCount).RunAll(cmd.Context()); err != nil {
					return err
				}

				if !status.Success() {
					logger.L().Errorf("Missing newspapers: %v", status.MissingNewspapers())
					return errIncomplete
				}
				return nil
			})
		},
	}
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
