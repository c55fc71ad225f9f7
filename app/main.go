package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	log "github.com/go-pkgz/lgr"
	"github.com/umputun/go-flags"
	"gopkg.in/natefinch/lumberjack.v2"
)

var opts struct {
	Config string `short:"f" long:"config" env:"DATAQUIZ_CONFIG" default:"dataquiz.yml" description:"pipeline config file"`
	Dbg    bool   `long:"dbg" env:"DATAQUIZ_DEBUG" description:"debug mode"`

	Log struct {
		Enabled    bool   `long:"enabled" env:"ENABLED" description:"enable file logging"`
		File       string `long:"file" env:"FILE" default:"dataquiz.log" description:"log file location"`
		MaxSize    int    `long:"max-size" env:"MAX_SIZE" default:"100" description:"max log size, megabytes"`
		MaxBackups int    `long:"max-backups" env:"MAX_BACKUPS" default:"7" description:"max number of rotated files"`
	} `group:"log" namespace:"log" env-namespace:"DATAQUIZ_LOG"`

	SampleCmd   SampleCommand   `command:"sample" description:"sample per-student dataset variants from the master"`
	GenerateCmd GenerateCommand `command:"generate" description:"derive question/answer pairs for each variant"`
	PublishCmd  PublishCommand  `command:"publish" description:"push quizzes, questions and overrides to the LMS"`
	ServerCmd   ServerCommand   `command:"server" description:"serve pipeline status over http"`
}

var revision = "unknown"

// rootCtx is canceled on SIGTERM, commands run under it
var rootCtx context.Context

func main() {
	fmt.Printf("dataquiz %s\n", revision)

	var cancel context.CancelFunc
	rootCtx, cancel = context.WithCancel(context.Background())
	signals(cancel) // handle SIGQUIT and SIGTERM

	defer func() {
		if x := recover(); x != nil {
			log.Printf("[WARN] run time panic:\n%v", x)
			panic(x)
		}
	}()

	p := flags.NewParser(&opts, flags.Default)
	p.CommandHandler = func(command flags.Commander, args []string) error {
		setupLog(opts.Log.Enabled, opts.Dbg)
		return command.Execute(args)
	}

	if _, err := p.Parse(); err != nil {
		var flagsErr *flags.Error
		if ok := asFlagsErr(err, &flagsErr); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
}

func asFlagsErr(err error, target **flags.Error) bool {
	e, ok := err.(*flags.Error) // nolint errorlint // go-flags returns the error directly
	if ok {
		*target = e
	}
	return ok
}

func setupLog(fileEnabled, dbg bool) {
	logOpts := []log.Option{log.Msec, log.LevelBraces}
	if dbg {
		logOpts = []log.Option{log.Debug, log.Msec, log.LevelBraces, log.CallerFunc, log.CallerPkg, log.CallerFile}
	}

	if fileEnabled {
		fileWriter := &lumberjack.Logger{
			Filename:   opts.Log.File,
			MaxSize:    opts.Log.MaxSize,
			MaxBackups: opts.Log.MaxBackups,
			Compress:   true,
		}
		logOpts = append(logOpts, log.Out(io.MultiWriter(os.Stdout, fileWriter)),
			log.Err(io.MultiWriter(os.Stderr, fileWriter)))
	}
	log.Setup(logOpts...)
}

func signals(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	go func() {
		stacktrace := make([]byte, 8192)
		for sig := range sigChan {
			if sig == syscall.SIGQUIT { // catch SIGQUIT and print stack traces
				length := runtime.Stack(stacktrace, true)
				fmt.Println(string(stacktrace[:length]))
				continue
			}
			cancel() // terminate on SIGTERM
		}
	}()
	signal.Notify(sigChan, syscall.SIGQUIT, syscall.SIGTERM)
}
