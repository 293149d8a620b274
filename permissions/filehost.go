package permissions

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
	"gopkg.in/yaml.v3"
)

// Grants is the content of the grants file an operator edits to allow access.
type Grants struct {
	Granted []Permission `yaml:"granted"`
}

// AccessRequest is written to the request file when access is needed.
type AccessRequest struct {
	ID          string       `yaml:"id"`
	Permissions []Permission `yaml:"permissions"`
	RequestedAt time.Time    `yaml:"requested-at"`
}

// FileHost reads grants from a YAML file. A permission may additionally be
// tied to a device node that must be readable and writable by this process.
type FileHost struct {
	grantsFile  string
	requestFile string
	devices     map[Permission]string
	log         *slog.Logger
	wg          sync.WaitGroup
	writeMux    sync.Mutex
}

func NewFileHost(grantsFile string, requestFile string, devices map[Permission]string, log *slog.Logger) (*FileHost, error) {
	if log == nil {
		log = slog.Default()
	}
	if grantsFile == "" {
		return nil, fmt.Errorf("a grants file is required")
	}
	for p := range devices {
		if !p.IsValid() {
			return nil, fmt.Errorf("device configured for unknown permission %q", p)
		}
	}

	return &FileHost{
		grantsFile:  grantsFile,
		requestFile: requestFile,
		devices:     devices,
		log:         log.With("operation", "FileHost"),
	}, nil
}

func (h *FileHost) readGrants() (Grants, error) {
	g := Grants{}
	b, err := os.ReadFile(h.grantsFile)
	if errors.Is(err, os.ErrNotExist) {
		return g, nil
	}
	if err != nil {
		return g, fmt.Errorf("failed to read grants file %s: %w", h.grantsFile, err)
	}
	if err := yaml.Unmarshal(b, &g); err != nil {
		return g, fmt.Errorf("failed to parse grants file %s: %w", h.grantsFile, err)
	}
	return g, nil
}

func (h *FileHost) HasPermission(p Permission) (bool, error) {
	g, err := h.readGrants()
	if err != nil {
		return false, err
	}

	granted := false
	for _, tmp := range g.Granted {
		if tmp == p {
			granted = true
			break
		}
	}
	if !granted {
		return false, nil
	}

	if dev, ok := h.devices[p]; ok && dev != "" {
		if err := unix.Access(dev, unix.R_OK|unix.W_OK); err != nil {
			h.log.Debug("device not accessible", "permission", p, "device", dev, "error", err)
			return false, nil
		}
	}
	return true, nil
}

// RequestPermissions writes the request file in the background.
func (h *FileHost) RequestPermissions(ps []Permission) {
	req := AccessRequest{
		ID:          uuid.New().String(),
		Permissions: append([]Permission(nil), ps...),
		RequestedAt: time.Now().UTC(),
	}

	if h.requestFile == "" {
		h.log.Warn("access required - grant it in the grants file", "permissions", ps, "grantsFile", h.grantsFile)
		return
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := h.writeRequest(req); err != nil {
			h.log.Error("failed to write access request", "file", h.requestFile, "error", err)
			return
		}
		h.log.Info("access request written", "file", h.requestFile, "id", req.ID)
	}()
}

func (h *FileHost) writeRequest(req AccessRequest) error {
	h.writeMux.Lock()
	defer h.writeMux.Unlock()

	b, err := yaml.Marshal(req)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(h.requestFile), ".request-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), h.requestFile)
}

// Wait blocks until background request writes have finished.
func (h *FileHost) Wait() {
	h.wg.Wait()
}
