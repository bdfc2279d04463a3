package logtail

import (
	"strings"

	"github.com/hpcloud/tail"
	"github.com/pkg/errors"

	"github.com/pgsleuth/pgsleuth/deadlock"
	"github.com/pgsleuth/pgsleuth/state"
	"github.com/pgsleuth/pgsleuth/util"
)

// Lines belonging to the multi-line deadlock report are indented or
// carry one of the standard continuation severities
var continuationPrefixes = []string{
	"\t", " ", "DETAIL:", "HINT:", "CONTEXT:", "STATEMENT:", "Process ",
}

// SetupLogTail - Follows the configured PostgreSQL log file, assembles
// multi-line deadlock reports and forwards each completed report to the
// analyzer. Results go through the provided sink callback (the server
// wires this to the cache).
func SetupLogTail(path string, analyzer *deadlock.Analyzer, sink func(info *state.DeadlockInfo), prefixedLogger *util.Logger) (chan bool, error) {
	prefixedLogger.PrintVerbose("Tailing log file %s", path)

	t, err := tail.TailFile(path, tail.Config{Follow: true, MustExist: true, ReOpen: true, Logger: tail.DiscardingLogger})
	if err != nil {
		return nil, errors.Wrap(err, "failed to setup log tail")
	}

	stop := make(chan bool)

	go func() {
		defer t.Cleanup()
		var report []string
		flush := func() {
			if len(report) == 0 {
				return
			}
			message := strings.Join(report, "\n")
			report = nil
			if info := analyzer.AnalyzeMessage(message); info != nil {
				prefixedLogger.PrintInfo("Deadlock detected in log stream, severity %d", info.SeverityScore)
				sink(info)
			}
		}
		for {
			select {
			case line := <-t.Lines:
				if line == nil {
					flush()
					return
				}
				switch {
				case strings.Contains(line.Text, "deadlock detected"):
					flush()
					report = append(report, line.Text)
				case len(report) > 0 && isContinuationLine(line.Text):
					report = append(report, line.Text)
				default:
					flush()
				}
			case <-stop:
				flush()
				prefixedLogger.PrintVerbose("Stopping log tail for %s (stop requested)", path)
				t.Stop()
				return
			}
		}
	}()

	return stop, nil
}

func isContinuationLine(line string) bool {
	for _, prefix := range continuationPrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}
