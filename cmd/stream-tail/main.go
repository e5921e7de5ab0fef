// Command stream-tail follows the live stream of one conversation over NATS
// and prints it to the terminal. Useful for watching a tutoring session from
// the operator side while the real transport serves the student.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/fatih/color"
	"github.com/paideia-ai/paideia/broker"
	"github.com/paideia-ai/paideia/pkg/natsx"
	"github.com/paideia-ai/paideia/pkg/slogx"
	"github.com/paideia-ai/paideia/provider"
	"github.com/phsym/zeroslog"
	"github.com/rs/zerolog"
)

func init() {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Stamp}
	log := zerolog.New(output).With().Timestamp().Logger()
	slog.SetDefault(slog.New(
		zeroslog.NewHandler(log, &zeroslog.HandlerOptions{Level: slog.LevelInfo}),
	))
}

type printer struct{}

func (printer) OnToken(ctx context.Context, token string) {
	fmt.Fprint(os.Stdout, token)
}

func (printer) OnComplete(ctx context.Context, fullText string, usage provider.Usage) {
	fmt.Fprintf(os.Stdout, "\n%s total_tokens=%d\n", color.GreenString("[complete]"), usage.TotalTokens)
}

func (printer) OnError(ctx context.Context, err error) {
	fmt.Fprintf(os.Stdout, "\n%s %v\n", color.RedString("[error]"), err)
}

func main() {
	flag.Parse()
	conversationID := flag.Arg(0)
	if conversationID == "" {
		fmt.Fprintln(os.Stderr, "usage: stream-tail <conversation-id>")
		os.Exit(2)
	}

	nc, err := natsx.NewClient()
	if err != nil {
		slog.Error("failed to connect to NATS", slogx.Error(err))
		os.Exit(1)
	}
	defer nc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	topic := broker.NATS(nc).Topic(ctx, conversationID)
	sub, err := topic.Subscribe(ctx, printer{})
	if err != nil {
		slog.Error("failed to subscribe", slogx.Error(err))
		os.Exit(1)
	}
	defer sub.Unsubscribe()

	slog.Info("tailing conversation", slog.String("conversation_id", conversationID))
	<-ctx.Done()
}
