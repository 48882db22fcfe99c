// normalize-recipes 將儲存中所有混色的食譜改寫為標準格式 {components, totalDrops}
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"paint-mixer/internal/infrastructure/config"
	"paint-mixer/internal/infrastructure/store"
	"paint-mixer/internal/pkg/common"
)

// 結束碼：0 成功，1 中止，2 部分食譜無法轉換或保留未改寫
const (
	exitOK      = 0
	exitAborted = 1
	exitPartial = 2
)

func main() {
	dryRun := flag.Bool("dry-run", false, "report what would change without writing")
	flag.Parse()

	os.Exit(run(*dryRun))
}

// run 執行正規化並回傳結束碼；所有清理都在回傳前完成
func run(dryRun bool) int {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return exitAborted
	}

	if err := common.InitLogger(common.LoggerOptions{
		Level:   cfg.LogLevel,
		Dir:     cfg.LogDir,
		Service: "normalize-recipes",
	}); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		return exitAborted
	}
	defer common.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	paints, err := store.New(ctx, cfg.Store)
	if err != nil {
		common.LogError("Failed to open palette store", zap.Error(err), zap.String("driver", cfg.Store.Driver))
		return exitAborted
	}
	defer paints.Close()

	common.LogInfo("Normalizing mix recipes",
		zap.String("driver", cfg.Store.Driver),
		zap.Bool("dry_run", dryRun),
	)

	summary, err := store.NormalizeRecipes(ctx, paints, dryRun)

	fmt.Println("Recipe normalization summary")
	fmt.Printf("  mixes:   %d\n", summary.Total)
	fmt.Printf("  updated: %d\n", summary.Updated)
	fmt.Printf("  skipped: %d\n", summary.Skipped)
	fmt.Printf("  errors:  %d\n", summary.Errors)
	fmt.Printf("  lossy:   %d\n", summary.Lossy)
	if dryRun {
		fmt.Println("  (dry run, nothing written)")
	}

	if err != nil {
		common.LogError("Normalization aborted", zap.Error(err))
		return exitAborted
	}
	if summary.Errors > 0 || summary.Lossy > 0 {
		return exitPartial
	}
	return exitOK
}
