// Command pausectl administers the cluster-wide pause set: pause or resume
// queues, inspect the authoritative state, or watch notifications the way a
// worker process does.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/you/pausectl"
	pauseredis "github.com/you/pausectl/coord/redis"
)

func main() {
	var (
		redisAddr  string
		keyPrefix  string
		configPath string
		name       string
		verbose    bool
	)

	flag.StringVar(&redisAddr, "redis", "127.0.0.1:6379", "redis address")
	flag.StringVar(&keyPrefix, "prefix", "", "key prefix for the pause set and channels")
	flag.StringVar(&configPath, "config", "", "optional YAML config file")
	flag.StringVar(&name, "name", "", "subscriber name for watch mode (defaults to a random id)")
	flag.BoolVar(&verbose, "v", false, "verbose logging")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	cfg := pausectl.DefaultConfig()
	opts := pauseredis.Options{Addr: redisAddr, KeyPrefix: keyPrefix}
	if configPath != "" {
		if err := loadFile(configPath, &cfg, &opts); err != nil {
			log.Fatalf("load config: %v", err)
		}
	}

	store, err := pauseredis.New(opts)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer store.Close()

	logger := stdLogger{verbose: verbose || args[0] == "watch"}
	coordinator, err := pausectl.NewCoordinator(cfg, store, store.Broadcast(), pausectl.DefaultCodec{}, logger, pausectl.NopMetrics())
	if err != nil {
		log.Fatalf("coordinator: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, coordinator, name, args); err != nil {
		log.Fatalf("%s: %v", args[0], err)
	}
}

func run(ctx context.Context, c *pausectl.Coordinator, name string, args []string) error {
	switch args[0] {
	case "pause":
		if len(args) != 2 {
			return fmt.Errorf("usage: pause <queue>")
		}
		return c.Pause(ctx, args[1])
	case "resume":
		if len(args) != 2 {
			return fmt.Errorf("usage: resume <queue>")
		}
		return c.Resume(ctx, args[1])
	case "check":
		if len(args) != 2 {
			return fmt.Errorf("usage: check <queue>")
		}
		paused, err := c.IsPaused(ctx, args[1])
		if err != nil {
			return err
		}
		if paused {
			fmt.Println("paused")
		} else {
			fmt.Println("running")
		}
		return nil
	case "list":
		names, err := c.ListPausedQueues(ctx)
		if err != nil {
			return err
		}
		sort.Strings(names)
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	case "watch":
		if name == "" {
			name = uuid.NewString()
		}
		log.Printf("watching pause notifications as %s", name)
		return c.Run(ctx)
	case "shell":
		return shell(ctx, c)
	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func shell(ctx context.Context, c *pausectl.Coordinator) error {
	shellCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	// Keep the local mirror live so the filter command reflects reality.
	go func() { _ = c.Run(shellCtx) }()

	rl, err := readline.New("pausectl> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "pause", "resume", "check":
			if len(fields) != 2 {
				fmt.Printf("usage: %s <queue>\n", fields[0])
				continue
			}
			if err := run(ctx, c, "", fields[:2]); err != nil {
				fmt.Printf("error: %v\n", err)
			}
		case "list":
			if err := run(ctx, c, "", fields[:1]); err != nil {
				fmt.Printf("error: %v\n", err)
			}
		case "filter":
			fmt.Println(strings.Join(c.Filter(fields[1:]), " "))
		case "help":
			fmt.Println("commands: pause <q>, resume <q>, check <q>, list, filter <q...>, quit")
		case "quit", "exit":
			return nil
		default:
			fmt.Printf("unknown command %q (try help)\n", fields[0])
		}
	}
}

type fileConfig struct {
	Redis struct {
		Addr           string   `yaml:"addr"`
		SentinelAddrs  []string `yaml:"sentinelAddrs"`
		SentinelMaster string   `yaml:"sentinelMaster"`
		Username       string   `yaml:"username"`
		Password       string   `yaml:"password"`
		DB             int      `yaml:"db"`
	} `yaml:"redis"`
	KeyPrefix      string   `yaml:"keyPrefix"`
	ResyncInterval string   `yaml:"resyncInterval"`
	JitterRatio    *float64 `yaml:"jitterRatio"`
}

func loadFile(path string, cfg *pausectl.Config, opts *pauseredis.Options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return err
	}
	if file.Redis.Addr != "" {
		opts.Addr = file.Redis.Addr
	}
	opts.SentinelAddrs = file.Redis.SentinelAddrs
	opts.SentinelMaster = file.Redis.SentinelMaster
	opts.Username = file.Redis.Username
	opts.Password = file.Redis.Password
	opts.DB = file.Redis.DB
	if file.KeyPrefix != "" {
		opts.KeyPrefix = file.KeyPrefix
	}
	if file.ResyncInterval != "" {
		d, err := time.ParseDuration(file.ResyncInterval)
		if err != nil {
			return fmt.Errorf("resyncInterval: %w", err)
		}
		cfg.ResyncInterval = d
	}
	if file.JitterRatio != nil {
		cfg.JitterRatio = *file.JitterRatio
	}
	return cfg.Validate()
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: pausectl [flags] <command>

commands:
  pause <queue>    add a queue to the shared pause set and notify workers
  resume <queue>   remove a queue from the shared pause set and notify workers
  check <queue>    authoritative paused check against the shared store
  list             print the shared pause set
  watch            run a worker-style subscriber and log notifications
  shell            interactive session

flags:
`)
	flag.PrintDefaults()
}

type stdLogger struct {
	verbose bool
}

func (l stdLogger) Debug(msg string, fields ...pausectl.Field) {
	if l.verbose {
		log.Print(format(msg, fields...))
	}
}

func (l stdLogger) Info(msg string, fields ...pausectl.Field) { log.Print(format(msg, fields...)) }
func (l stdLogger) Warn(msg string, fields ...pausectl.Field) {
	log.Print("WARN: " + format(msg, fields...))
}
func (l stdLogger) Error(msg string, fields ...pausectl.Field) {
	log.Print("ERROR: " + format(msg, fields...))
}

func format(msg string, fields ...pausectl.Field) string {
	if len(fields) == 0 {
		return msg
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s=%v", f.Key, f.Value))
	}
	return msg + " " + strings.Join(parts, " ")
}
