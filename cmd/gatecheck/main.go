package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"smartgate_go/internal/config"
	"smartgate_go/internal/device"
	"smartgate_go/internal/events"
	"smartgate_go/internal/push"
)

func main() {
	cfgPath := flag.String("config", "smartgate.yaml", "config file")
	listen := flag.Duration("listen", 10*time.Second, "how long to read the push channel")
	flag.Parse()

	if _, err := config.LoadDotEnv(".env"); err != nil {
		fmt.Printf("env load warning: %v\n", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Printf("config error: %v\n", err)
		os.Exit(1)
	}
	if cfg.SimAutostart {
		if err := cfg.UseSimulator(); err != nil {
			fmt.Printf("simulator config error: %v\n", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	host := cfg.ResolveHost(ctx)
	cancel()
	fmt.Printf("device host: %s (configured %s)\n", host, cfg.DeviceHost)
	fmt.Printf("command surface: %s\n", cfg.BaseURL(host))
	fmt.Printf("push channel: %s\n", cfg.PushURL(host))
	fmt.Println("")

	checkCommands(device.New(cfg.BaseURL(host), cfg.RequestTimeout), cfg.RequestTimeout)
	fmt.Println("")
	listenPush(cfg.PushURL(host), *listen)
}

func checkCommands(client *device.Client, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	status, err := client.LearnStatus(ctx)
	fmt.Printf("learn status: %s", time.Since(start).Round(time.Millisecond))
	if err != nil {
		fmt.Printf(" error: %v\n", err)
		return
	}
	fmt.Printf(" learning=%v\n", status.LearningMode)

	if keys, err := client.Keys(ctx); err != nil {
		fmt.Printf("keys error: %v\n", err)
	} else {
		fmt.Printf("keys: %d\n", len(keys))
		for i, k := range keys {
			fmt.Printf("%2d) %s code=%d bits=%d proto=%d enabled=%v\n", i+1, k.Name, k.Code, k.BitLength, k.Protocol, k.Enabled)
		}
	}

	if phones, err := client.Phones(ctx); err != nil {
		fmt.Printf("phones error: %v\n", err)
	} else {
		fmt.Printf("phones: %d\n", len(phones))
		for i, p := range phones {
			fmt.Printf("%2d) %s sms=%v call=%v\n", i+1, p.Number, p.SMSEnabled, p.CallEnabled)
		}
	}

	if radio, err := client.RadioConfig(ctx); err != nil {
		fmt.Printf("radio error: %v\n", err)
	} else {
		fmt.Printf("radio: %.2f MHz bitrate=%.2f power=%d rssi=%d\n", radio.Frequency, radio.BitRate, radio.OutputPower, radio.RSSI)
	}
}

func listenPush(url string, d time.Duration) {
	fmt.Printf("listening for %s:\n", d)
	ch := push.NewChannel(url, push.WithBackoff(time.Second))
	defer ch.Close()
	_ = ch.Connect()

	deadline := time.After(d)
	for {
		select {
		case <-deadline:
			return
		case msg, ok := <-ch.Messages():
			if !ok {
				return
			}
			printMessage(msg)
		}
	}
}

func printMessage(msg push.Message) {
	stamp := msg.When.Format("15:04:05.000")
	switch msg.Kind {
	case push.KindState:
		if msg.Err != nil {
			fmt.Printf("  %s state=%s err=%v\n", stamp, msg.State, msg.Err)
			return
		}
		fmt.Printf("  %s state=%s\n", stamp, msg.State)
	case push.KindReconnecting:
		fmt.Printf("  %s reconnecting\n", stamp)
	case push.KindFrame:
		ev, err := events.Decode(msg.Data)
		if err != nil {
			fmt.Printf("  %s dropped: %v\n", stamp, err)
			return
		}
		fmt.Printf("  %s %s %+v\n", stamp, ev.Kind(), ev)
	}
}
