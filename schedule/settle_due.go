package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"stakereferral/internal/app"
	"stakereferral/internal/referral"
	"stakereferral/pkg/config"
)

const (
	defaultSettleCron = "0 0 * * * *" // 每小时整点
	settleRunTimeout  = 10 * time.Minute
)

// settleCaller returns SETTLE_CALLER, or the registry admin when unset.
func settleCaller(ctx context.Context, engine *referral.Engine) (solana.PublicKey, error) {
	if v := os.Getenv("SETTLE_CALLER"); v != "" {
		return solana.PublicKeyFromBase58(v)
	}
	registry, err := engine.Registry(ctx)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return solana.PublicKeyFromBase58(registry.AdminAccount)
}

func settleDue(ctx context.Context, engine *referral.Engine) {
	ctx, cancel := context.WithTimeout(ctx, settleRunTimeout)
	defer cancel()

	caller, err := settleCaller(ctx, engine)
	if err != nil {
		log.Errorf("> 无法确定结算调用方: %v", err)
		return
	}
	start := time.Now()
	n, err := engine.SettleDue(ctx, caller)
	if err != nil {
		log.Errorf("> 结算中断: %v", err)
	}
	log.WithFields(log.Fields{"settled": n, "elapsed": time.Since(start).String()}).Info("> 到期结算完成")
}

func main() {
	// 日志输出到文件
	config.LogToFile("settle_due_schedule")
	log.Info("> 开始初始化程序...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.New(ctx)
	if err != nil {
		log.Fatalf("> 初始化失败: %v", err)
	}

	spec := os.Getenv("SETTLE_CRON")
	if spec == "" {
		spec = defaultSettleCron
	}

	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err = c.AddFunc(spec, func() { settleDue(ctx, rt.Engine) })
	if err != nil {
		log.Fatalf("> 添加定时任务失败: %v", err)
	}

	log.Infof("> 定时任务已启动: %s", spec)
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	log.Info("> 定时任务已停止")
}
