package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	raven "github.com/getsentry/raven-go"
	flag "github.com/ogier/pflag"

	"github.com/pgsleuth/pgsleuth/cache"
	"github.com/pgsleuth/pgsleuth/config"
	"github.com/pgsleuth/pgsleuth/deadlock"
	"github.com/pgsleuth/pgsleuth/explain"
	"github.com/pgsleuth/pgsleuth/input/logtail"
	"github.com/pgsleuth/pgsleuth/input/tracker"
	"github.com/pgsleuth/pgsleuth/scheduler"
	"github.com/pgsleuth/pgsleuth/state"
	"github.com/pgsleuth/pgsleuth/templates"
	"github.com/pgsleuth/pgsleuth/util"
	"github.com/pgsleuth/pgsleuth/web"
)

func main() {
	var verbose bool
	var quiet bool
	var configFilename string

	flag.BoolVarP(&verbose, "verbose", "v", false, "Include verbose debug output")
	flag.BoolVarP(&quiet, "quiet", "q", false, "Only log errors")
	flag.StringVar(&configFilename, "config", "pgsleuth.conf", "Specify alternative path for config file")
	flag.Parse()

	logger := util.NewLogger(os.Stderr, verbose, quiet)

	conf, err := config.Read(logger, configFilename)
	if err != nil {
		logger.PrintError("Failed to read configuration: %s", err)
		os.Exit(1)
	}

	var sentryClient *raven.Client
	if conf.SentryDSN != "" {
		sentryClient, err = raven.New(conf.SentryDSN)
		if err != nil {
			logger.PrintError("Failed to setup Sentry client: %s", err)
			os.Exit(1)
		}
	}

	analyzer := deadlock.NewAnalyzer(logger, conf.CriticalTableList(), sentryClient)
	resultCache := cache.New(logger, conf.RedisURL, conf.CacheTTLSecs)

	server := &web.Server{
		Logger:       logger,
		Analyzer:     analyzer,
		Cache:        resultCache,
		SentryClient: sentryClient,
	}

	var trackerClient *tracker.Client
	if conf.TrackerAPIBaseURL != "" {
		trackerClient = tracker.NewClient(logger, conf.TrackerAPIBaseURL, conf.TrackerAPIKey, conf.TrackerOrg, conf.TrackerProject)
		server.Events = trackerClient
	}

	if conf.DatabaseURL != "" {
		templateStore, err := templates.NewStore(conf.DatabaseURL)
		if err != nil {
			logger.PrintError("Failed to setup template store: %s", err)
			os.Exit(1)
		}
		defer templateStore.Close()
		server.Templates = templateStore
	}

	var providers []explain.Provider
	if conf.OpenAIAPIKey != "" {
		providers = append(providers, explain.NewProvider("openai", conf.OpenAIAPIKey, conf.OpenAIBaseURL, conf.AIModel))
	}
	if conf.AIFallbackAPIKey != "" {
		providers = append(providers, explain.NewProvider("fallback", conf.AIFallbackAPIKey, conf.AIFallbackBaseURL, conf.AIModel))
	}
	if len(providers) > 0 {
		server.Explainer = explain.NewExplainer(logger, providers...)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	web.Serve(ctx, logger, conf.ListenAddress, server.Handler())

	cacheAnalysis := func(info *state.DeadlockInfo) {
		payload, err := json.Marshal(info)
		if err != nil {
			logger.PrintError("Failed to marshal analysis %s: %s", info.AnalysisID, err)
			return
		}
		resultCache.Put("analysis:"+info.AnalysisID, string(payload))
	}

	var stopChannels []chan bool

	if conf.LogLocation != "" {
		stopTail, err := logtail.SetupLogTail(conf.LogLocation, analyzer, cacheAnalysis, logger.WithPrefix("logtail"))
		if err != nil {
			logger.PrintError("Failed to setup log tail: %s", err)
			os.Exit(1)
		}
		stopChannels = append(stopChannels, stopTail)
	}

	if trackerClient != nil && conf.PollSchedule != "" {
		group, err := scheduler.NewGroup(conf.PollSchedule)
		if err != nil {
			logger.PrintError("Failed to parse poll schedule: %s", err)
			os.Exit(1)
		}
		pollLogger := logger.WithPrefix("poll")
		stopPoll := group.Schedule(func() {
			pollTracker(pollLogger, trackerClient, analyzer, resultCache)
		}, logger, "tracker poll")
		stopChannels = append(stopChannels, stopPoll)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	<-sigs
	signal.Stop(sigs)

	logger.PrintInfo("Shutting down")
	for _, stop := range stopChannels {
		close(stop)
	}
}

// pollTracker - Analyzes any recent deadlock events that are not cached yet
func pollTracker(logger *util.Logger, client *tracker.Client, analyzer *deadlock.Analyzer, resultCache *cache.Cache) {
	eventIDs, err := client.ListRecentEventIDs()
	if err != nil {
		logger.PrintWarning("Failed to list recent events: %s", err)
		return
	}
	for _, eventID := range eventIDs {
		cacheKey := "analysis:" + eventID
		if _, ok := resultCache.Get(cacheKey); ok {
			continue
		}
		event, err := client.GetEvent(eventID)
		if err != nil {
			logger.PrintWarning("Failed to fetch event %s: %s", eventID, err)
			continue
		}
		info := analyzer.AnalyzeEvent(event.ToRecord())
		if info == nil {
			continue
		}
		payload, err := json.Marshal(info)
		if err != nil {
			logger.PrintError("Failed to marshal analysis for event %s: %s", eventID, err)
			continue
		}
		resultCache.Put(cacheKey, string(payload))
		logger.PrintInfo("Analyzed event %s, severity %d", eventID, info.SeverityScore)
	}
}
