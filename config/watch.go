/*
NAME
  watch.go

DESCRIPTION
  watch.go rereads a daemon's config file whenever it is written and hands
  the parsed key/value pairs to a callback. It does not reopen or
  reconfigure a running link itself; only what the callback applies takes
  effect.
*/

package config

import (
	"bufio"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// ParseFile reads name as a sequence of "key value" lines (blank lines and
// lines starting with # are ignored) into a vars map suitable for
// Config.Update.
func ParseFile(name string) (map[string]string, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	vars := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.SplitN(line, " ", 2)
		if len(fields) != 2 {
			continue
		}
		vars[fields[0]] = strings.TrimSpace(fields[1])
	}
	return vars, scanner.Err()
}

// WatchFile watches name for writes and, on each one, reparses it and calls
// onChange with the resulting vars map. It runs until stop is closed or the
// watcher's channels are closed; errors reported by the watcher are
// ignored. It is meant to be started in its own goroutine.
func WatchFile(name string, onChange func(map[string]string), stop <-chan struct{}) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(name); err != nil {
		return err
	}

	for {
		select {
		case <-stop:
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			vars, err := ParseFile(name)
			if err != nil {
				continue
			}
			onChange(vars)
		case _, ok := <-w.Errors:
			if !ok {
				return nil
			}
		}
	}
}
