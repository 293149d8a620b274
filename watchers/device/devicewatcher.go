package device

import (
	"context"
	"log/slog"
	"os"
	"time"
)

var checkInterval = time.Second

// PathState is what the watcher last saw at a path.
type PathState struct {
	Present bool      `json:"present"`
	ModTime time.Time `json:"modTime"`
}

type singlePathState struct {
	path  string
	state PathState
}

// DeviceStatus maps each watched path to its state.
type DeviceStatus map[string]PathState

// DeviceWatcher polls device nodes and grant files. A modem appearing, a
// grant file being edited and similar changes are reported so the caller can
// trigger a resume.
type DeviceWatcher struct {
	paths              map[string]PathState
	internalStatusChan chan singlePathState
	log                *slog.Logger
}

func NewDeviceWatcher(ctx context.Context, paths []string, log *slog.Logger) (*DeviceWatcher, error) {
	if log == nil {
		log = slog.Default()
	}

	p := map[string]PathState{}
	for _, tmp := range paths {
		p[tmp] = PathState{}
	}

	return &DeviceWatcher{
		paths:              p,
		internalStatusChan: make(chan singlePathState),
		log:                log.With("operation", "DeviceWatcher"),
	}, nil
}

func stat(path string) PathState {
	fi, err := os.Stat(path)
	if err != nil {
		return PathState{}
	}
	return PathState{Present: true, ModTime: fi.ModTime()}
}

func (w *DeviceWatcher) snapshot() DeviceStatus {
	out := DeviceStatus{}
	for k, v := range w.paths {
		out[k] = v
	}
	return out
}

func (w *DeviceWatcher) Watch(controlContext context.Context, resultChan chan<- DeviceStatus) {
	for path := range w.paths {
		w.paths[path] = stat(path)
	}

	select {
	case <-controlContext.Done():
		return
	case resultChan <- w.snapshot():
	}

	for path, initial := range w.paths {
		path, initial := path, initial
		go func() {
			last := initial
			for {
				select {
				case <-controlContext.Done():
					return
				case <-time.After(checkInterval):
				}

				current := stat(path)

				// Only notify on change
				if current != last {
					w.log.Debug("path changed", "path", path, "present", current.Present)
					last = current
					select {
					case <-controlContext.Done():
						return
					case w.internalStatusChan <- singlePathState{path: path, state: current}:
					}
				}
			}
		}()
	}

	for {
		select {
		case <-controlContext.Done():
			return
		case s := <-w.internalStatusChan:
			w.paths[s.path] = s.state
			select {
			case <-controlContext.Done():
				return
			case resultChan <- w.snapshot():
			}
		}
	}
}
