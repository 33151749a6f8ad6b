package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/StayScout/config"
)

func main() {
	once := flag.Bool("once", false, "выполнить один проход поиска и выйти")
	testNotify := flag.Bool("test-notify", false, "отправить тестовое уведомление и выйти")
	flag.Parse()

	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	if sp := os.Getenv("swaggerPath"); sp != "" {
		cfg.Agent.SwaggerPath = sp
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := runOpts{once: *once, testNotify: *testNotify}
	if err := RunAgent(ctx, cfg, defaultAgentFactories(), opts); err != nil && err != context.Canceled {
		panic(err)
	}
}
