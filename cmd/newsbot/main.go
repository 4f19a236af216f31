package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"news_bot/internal/logger"

	"github.com/spf13/cobra"
)

// errIncomplete 报纸未全部下载，以状态码 1 退出
var errIncomplete = errors.New("not all newspapers were downloaded")

func main() {
	logger.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errIncomplete) {
			fmt.Fprintf(os.Stderr, "newsbot: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "newsbot",
		Short: "Daily newspaper locator and distribution pipeline",
		Long: `newsbot finds today's newspaper PDFs and highlight images in Telegram channels,
downloads them into a dated folder, turns the highlights into reading documents
and distributes the results by cloud upload and email.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newRunCmd(),
		newListenCmd(),
		newServeCmd(),
		newOCRCmd(),
		newOrganizeCmd(),
		newAssembleCmd(),
		newUploadCmd(),
		newEmailCmd(),
		newPipelineCmd(),
	)
	return cmd
}
