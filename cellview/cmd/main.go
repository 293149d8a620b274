package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DRuggeri/cellwatch/cellview"
	"github.com/DRuggeri/cellwatch/watchers/common"
	"github.com/alecthomas/kingpin/v2"
)

var (
	app     = kingpin.New("cellview", "Shows the cells a cellwatch daemon currently sees.")
	baseURL = app.Flag("url", "Base URL of the cellwatch daemon.").Default("http://localhost:8080").Envar("CELLWATCH_URL").String()
	debug   = app.Flag("debug", "Enable debug logging.").Bool()

	watchCmd    = app.Command("watch", "Render cell cards whenever they change.").Default()
	clearScreen = watchCmd.Flag("clear", "Clear the terminal before each render.").Default("true").Bool()

	resumeCmd = app.Command("resume", "Ask the daemon to re-check permissions and scan.")

	toggleCmd    = app.Command("toggle", "Mark a cell as an active connection or not.")
	toggleCell   = toggleCmd.Arg("cell-id", "Cell identity.").Required().Int64()
	toggleActive = toggleCmd.Arg("active", "true or false.").Required().Bool()
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	client, err := cellview.NewClient(*baseURL, log)
	app.FatalIfError(err, "")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch command {
	case resumeCmd.FullCommand():
		app.FatalIfError(client.Resume(ctx), "resume")
	case toggleCmd.FullCommand():
		rec, err := client.Toggle(ctx, *toggleCell, *toggleActive)
		app.FatalIfError(err, "toggle")
		fmt.Printf("%s active=%t\n", rec.Title(), rec.IsActive())
	case watchCmd.FullCommand():
		watch(ctx, client, log)
	}
}

func watch(ctx context.Context, client *cellview.Client, log *slog.Logger) {
	statuses := make(chan common.CellStatus)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case s := <-statuses:
				if *clearScreen {
					fmt.Print("\033[H\033[2J")
				}
				fmt.Println(time.Now().Format(time.RFC3339))
				cellview.Render(os.Stdout, s)
			}
		}
	}()

	for ctx.Err() == nil {
		if err := client.Watch(ctx, statuses); err != nil {
			log.Error("watch failed", "error", err)
		}
		select {
		case <-ctx.Done():
		case <-time.After(5 * time.Second):
			log.Info("reconnecting")
		}
	}
}
