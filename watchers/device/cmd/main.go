package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/DRuggeri/cellwatch/watchers/device"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	paths := os.Args[1:]
	if len(paths) == 0 {
		paths = []string{"/dev/ttyUSB2", "/etc/cellwatch/grants.yaml"}
	}

	w, err := device.NewDeviceWatcher(context.Background(), paths, log)
	if err != nil {
		panic(err)
	}

	info := make(chan device.DeviceStatus)
	go w.Watch(context.Background(), info)
	for {
		status := <-info
		fmt.Println(time.Now().String())

		for path, state := range status {
			fmt.Printf("%s\t%t\t%s\n", path, state.Present, state.ModTime)
		}
		fmt.Println()
	}
}
