package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/DRuggeri/cellwatch/modem"
	"github.com/DRuggeri/cellwatch/scanner"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	port := "/dev/ttyUSB2"
	if len(os.Args) > 1 {
		port = os.Args[1]
	}

	m, err := modem.NewModem(port, 115200, 2*time.Second, log)
	if err != nil {
		panic(err)
	}
	defer m.Close()

	for {
		samples, err := m.Scan(context.Background())
		if err != nil {
			log.Error("scan failed", "error", err)
		} else {
			b, _ := json.MarshalIndent(scanner.ToRecords(samples, log), "", "  ")
			log.Info(string(b))
		}
		time.Sleep(time.Second * 5)
	}
}
