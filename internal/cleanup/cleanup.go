// Package cleanup removes the resources this process owns: containers
// carrying its pod tag, build-context archives, and bound ports.
package cleanup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/codexec/codexec/internal/driver"
)

// Markers recorded in the activity descriptor fields. The field being
// non-empty is what drives the step; the value only labels the request.
const (
	ActivityContainer = "container"
	ActivityAllTars   = "all tars"
)

// Activity describes one cleanup request. Any subset of fields may be
// populated; each populated field drives an independent step.
type Activity struct {
	Container string
	Image     string
	AllTars   string
	OneTar    string
	Ports     []int
}

// Service executes cleanup activities.
type Service struct {
	drv        driver.Driver
	labelKey   string
	podTag     string
	tarBaseDir string
	// killPortsScript frees TCP ports; failures are logged and non-fatal.
	killPortsScript string
}

// NewService wires a cleanup service for the given ownership identity.
func NewService(drv driver.Driver, labelKey, podTag, tarBaseDir string) *Service {
	return &Service{
		drv:             drv,
		labelKey:        labelKey,
		podTag:          podTag,
		tarBaseDir:      tarBaseDir,
		killPortsScript: "./scripts/kill_ports.sh",
	}
}

// Run executes every step the activity requests. The first hard failure is
// returned; port cleanup never fails the run.
func (s *Service) Run(ctx context.Context, activity Activity) error {
	if activity.Container != "" {
		log.Info().Msg("Cleaning up owned containers")
		if err := s.cleanupContainers(ctx); err != nil {
			return err
		}
	}
	if activity.Image != "" {
		// Reserved: image removal is not part of the cleanup contract yet.
		log.Debug().Msg("Image cleanup requested, skipping (reserved)")
	}
	if activity.AllTars != "" {
		log.Info().Str("dir", s.tarBaseDir).Msg("Cleaning up build-context archives")
		if err := s.cleanupAllTars(); err != nil {
			return err
		}
	}
	if activity.OneTar != "" {
		if err := s.cleanupSingleTar(activity.OneTar); err != nil {
			return err
		}
	}
	if len(activity.Ports) > 0 {
		s.cleanupPorts(activity.Ports)
	}
	return nil
}

// cleanupContainers force-removes every container whose ownership label
// matches this pod's tag. Containers labelled by other pods are untouched.
func (s *Service) cleanupContainers(ctx context.Context) error {
	owned, err := s.drv.ListOwned(ctx, s.labelKey, s.podTag)
	if err != nil {
		return fmt.Errorf("failed to list owned containers: %w", err)
	}

	for _, c := range owned {
		if err := s.drv.RemoveContainer(ctx, c.ID); err != nil {
			log.Warn().Err(err).Str("container", c.Name).Msg("Failed to remove owned container")
			continue
		}
		log.Info().Str("container", c.Name).Msg("Removed owned container")
	}
	return nil
}

func (s *Service) cleanupAllTars() error {
	entries, err := os.ReadDir(s.tarBaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read tar dir %s: %w", s.tarBaseDir, err)
	}

	for _, entry := range entries {
		path := filepath.Join(s.tarBaseDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return nil
}

func (s *Service) cleanupSingleTar(tarPath string) error {
	if err := os.Remove(tarPath); err != nil {
		if os.IsNotExist(err) {
			log.Debug().Str("tar", tarPath).Msg("Build-context archive already gone")
			return nil
		}
		return fmt.Errorf("failed to remove %s: %w", tarPath, err)
	}
	log.Debug().Str("tar", tarPath).Msg("Removed build-context archive")
	return nil
}

// cleanupPorts shells out to the helper script releasing the given TCP
// ports. The step is best-effort.
func (s *Service) cleanupPorts(ports []int) {
	args := make([]string, 0, len(ports))
	for _, p := range ports {
		args = append(args, strconv.Itoa(p))
	}
	portsArg := strings.Join(args, " ")

	out, err := exec.Command(s.killPortsScript, portsArg).CombinedOutput()
	if err != nil {
		log.Warn().Err(err).Str("output", string(out)).Msg("Port cleanup script failed")
		return
	}
	log.Info().Str("ports", portsArg).Msg("Released bound ports")
}
